package extract

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/dice-jobs-crawler/internal/crawler"
)

const searchPage = `<html><body>
<div data-cy="search-card">
  <a data-cy="card-title-link" href="/job-detail/aaa-111">Go &amp; Rust Dev</a>
  <span data-cy="search-result-company-name">Acme</span>
  <span data-cy="search-result-location">Remote</span>
  <span data-cy="search-result-salary">$60/hr</span>
  <span data-cy="card-posted-date">2025-03-17</span>
  <span data-cy="search-result-employment-type">Contract</span>
  <span data-cy="card-easy-apply">Easy Apply</span>
</div>
<dhi-search-card>
  <a class="card-title-link" href="https://www.dice.com/jobs/detail/xyz">Data Engineer</a>
</dhi-search-card>
<div data-cy="search-card"><span>No link</span></div>
</body></html>`

func TestParseSearchCards(t *testing.T) {
	t.Parallel()

	cards := ParseSearchCards(mustDoc(t, searchPage), "https://www.dice.com", testNow)
	require.Len(t, cards, 2)

	first := cards[0]
	require.Equal(t, "aaa-111", first.ID)
	require.Equal(t, "https://www.dice.com/job-detail/aaa-111", first.URL)
	require.Equal(t, "Go & Rust Dev", first.Title)
	require.Equal(t, "Acme", first.Company)
	require.Equal(t, "Remote", first.Location)
	require.Equal(t, "$60/hr", first.Salary)
	require.Equal(t, "hour", first.SalaryDetails.Period)
	require.Equal(t, "3 days ago", first.PostedDate)
	require.NotNil(t, first.PostedDateTimestamp)
	require.Equal(t, "Contract", first.EmploymentType)
	require.True(t, first.EasyApply)
	require.Equal(t, crawler.SourceHTML, first.Source)

	second := cards[1]
	require.Equal(t, "job-1742472000000-1", second.ID)
	require.Equal(t, "Data Engineer", second.Title)
	require.Empty(t, second.Company)
	require.Equal(t, "Unknown", second.PostedDate)
	require.False(t, second.EasyApply)
	require.Nil(t, second.SalaryDetails)
}

func TestParseSearchCardsEmpty(t *testing.T) {
	t.Parallel()

	require.Empty(t, ParseSearchCards(mustDoc(t, `<html><body><p>No results</p></body></html>`), "https://www.dice.com", testNow))
	require.Nil(t, ParseSearchCards(nil, "https://www.dice.com", testNow))
}

func TestNextPageURL(t *testing.T) {
	t.Parallel()

	current := "https://www.dice.com/jobs?q=go&page=2"
	testCases := []struct {
		name   string
		body   string
		want   string
		wantOK bool
	}{
		{
			name:   "link",
			body:   `<ul><li class="pagination-next"><a href="/jobs?q=go&amp;page=3">Next</a></li></ul>`,
			want:   "https://www.dice.com/jobs?q=go&page=3",
			wantOK: true,
		},
		{
			name:   "button rewrites page",
			body:   `<button data-cy="pagination-next">Next</button>`,
			want:   "https://www.dice.com/jobs?page=3&q=go",
			wantOK: true,
		},
		{
			name:   "hash href rewrites page",
			body:   `<a data-cy="pagination-next" href="#">Next</a>`,
			want:   "https://www.dice.com/jobs?page=3&q=go",
			wantOK: true,
		},
		{name: "disabled class", body: `<ul><li class="pagination-next disabled"><a href="#">Next</a></li></ul>`},
		{name: "aria disabled", body: `<button data-cy="pagination-next" aria-disabled="true">Next</button>`},
		{name: "disabled attribute", body: `<button data-cy="pagination-next" disabled>Next</button>`},
		{name: "no control", body: `<p>last page</p>`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			got, ok := NextPageURL(mustDoc(t, "<html><body>"+tc.body+"</body></html>"), current, 2)
			require.Equal(t, tc.wantOK, ok)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestInferExperienceLevel(t *testing.T) {
	t.Parallel()

	testCases := map[string]string{
		"Requires 3-5 years of experience with Go":  "3-5 years",
		"7+ years hands-on backend experience":      "7+ years",
		"1 year of experience":                      "1 year",
		"We are hiring a Sr. engineer":              "Senior",
		"Great junior role for new grads":           "Entry Level",
		"Mid-level developer wanted":                "Mid Level",
		"Engineering Manager for the platform team": "Manager",
		"Director of Engineering":                   "Director",
		"Work on internal tools":                    "",
		"":                                          "",
	}
	for in, want := range testCases {
		require.Equal(t, want, InferExperienceLevel(in), "input %q", in)
	}
}

func TestInferEducationLevel(t *testing.T) {
	t.Parallel()

	testCases := map[string]string{
		"Bachelor's degree in CS; Master's preferred": "Bachelor's Degree",
		"PhD or equivalent research experience":       "Doctorate",
		"MBA a plus":                                  "Master's Degree",
		"Associate degree or high school diploma":     "Associate Degree",
		"High school diploma or GED":                  "High School",
		"No degree needed":                            "",
	}
	for in, want := range testCases {
		require.Equal(t, want, InferEducationLevel(in), "input %q", in)
	}
}
