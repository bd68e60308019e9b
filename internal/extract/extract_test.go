package extract

import (
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/dice-jobs-crawler/internal/crawler"
)

var testNow = time.Date(2025, time.March, 20, 12, 0, 0, 0, time.UTC)

const detailURL = "https://www.dice.com/job-detail/abc-123"

const detailPage = `<html><body>
<h1 data-cy="jobTitle">Senior Go Engineer</h1>
<a data-cy="companyNameLink" href="/company/acme">Acme &amp; Sons</a>
<ul><li data-cy="location">Austin, TX</li></ul>
<span data-cy="payDetails">$150,000 - $180,000/year</span>
<span data-cy="employmentDetails">Full-time</span>
<span data-cy="workplaceTypes">Hybrid</span>
<span data-cy="postedDate">2025-03-19</span>
<div data-testid="jobDescriptionHtml"><p>We need Go and Kubernetes.</p><p>5+ years of professional experience. Bachelor's degree required.</p></div>
<div data-cy="skillsList"><span>Golang</span><span>gRPC</span><span>kubernetes</span></div>
<ul data-cy="benefitsList"><li>401k</li><li>Health</li></ul>
<div data-cy="companyInfo">Acme builds things.</div>
<img data-cy="companyLogo" src="/logos/acme.png"/>
<div data-cy="applyButton"><a href="https://apply.example.com/123">Apply</a></div>
<span data-cy="easyApplyBadge">Easy Apply</span>
</body></html>`

func mustDoc(t *testing.T, body string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	require.NoError(t, err)
	return doc
}

func sampleBasic() *crawler.JobListingBasic {
	ts := int64(1742000000000)
	lo, hi := 100000.0, 120000.0
	return &crawler.JobListingBasic{
		ID:                  "basic-id",
		Title:               "Go Engineer",
		Company:             "Acme",
		Location:            "Remote",
		Salary:              "$100K - $120K",
		SalaryDetails:       &crawler.SalaryDetails{Min: &lo, Max: &hi, Currency: "USD", Period: "year"},
		EmploymentType:      "Contract",
		WorkplaceType:       "Remote",
		PostedDate:          "3 days ago",
		PostedDateTimestamp: &ts,
		URL:                 "https://www.dice.com/job-detail/basic-id",
		EasyApply:           false,
		Summary:             "Short summary",
		Source:              crawler.SourceAPI,
	}
}

func TestExtractJobDetailsFullPage(t *testing.T) {
	t.Parallel()

	full, err := ExtractJobDetails(mustDoc(t, detailPage), nil, detailURL, testNow)
	require.NoError(t, err)

	require.Equal(t, "abc-123", full.ID)
	require.Equal(t, detailURL, full.URL)
	require.Equal(t, "Senior Go Engineer", full.Title)
	require.Equal(t, "Acme & Sons", full.Company)
	require.Equal(t, "Austin, TX", full.Location)
	require.Equal(t, "$150,000 - $180,000/year", full.Salary)
	require.NotNil(t, full.SalaryDetails)
	require.Equal(t, 150000.0, *full.SalaryDetails.Min)
	require.Equal(t, "Full-time", full.EmploymentType)
	require.Equal(t, "Hybrid", full.WorkplaceType)
	require.Equal(t, "Yesterday", full.PostedDate)
	require.NotNil(t, full.PostedDateTimestamp)
	require.Equal(t, time.Date(2025, time.March, 19, 0, 0, 0, 0, time.UTC).UnixMilli(), *full.PostedDateTimestamp)
	require.True(t, full.EasyApply)
	require.Equal(t, crawler.SourceDetail, full.Source)
	require.Equal(t, "We need Go and Kubernetes. 5+ years of professional experience. Bachelor's degree required.", full.Description)
	require.Contains(t, full.DescriptionHTML, "<p>We need Go and Kubernetes.</p>")
	require.Equal(t, []string{"Golang", "gRPC", "kubernetes"}, full.Skills)
	require.Equal(t, "5+ years", full.ExperienceLevel)
	require.Equal(t, "Bachelor's Degree", full.EducationLevel)
	require.Equal(t, []string{"401k", "Health"}, full.Benefits)
	require.Equal(t, "Acme builds things.", full.CompanyDescription)
	require.Equal(t, "https://www.dice.com/logos/acme.png", full.CompanyLogo)
	require.Equal(t, "https://apply.example.com/123", full.ApplicationURL)
	require.Equal(t, testNow, full.ScrapedAt)
	require.Empty(t, full.DetailError)
}

func TestExtractJobDetailsDefaults(t *testing.T) {
	t.Parallel()

	full, err := ExtractJobDetails(mustDoc(t, `<html><body><p>nothing here</p></body></html>`), nil, "https://www.dice.com/x", testNow)
	require.NoError(t, err)
	require.Equal(t, "job-1742472000000", full.ID)
	require.Equal(t, UnknownTitle, full.Title)
	require.Equal(t, UnknownCompany, full.Company)
	require.Equal(t, UnknownLocation, full.Location)
	require.Equal(t, UnknownPosted, full.PostedDate)
	require.Empty(t, full.Salary)
	require.Nil(t, full.SalaryDetails)
	require.Nil(t, full.Skills)
	require.Nil(t, full.Benefits)
	require.Empty(t, full.ExperienceLevel)
	require.Empty(t, full.CompanyLogo)
	require.NoError(t, full.Validate())
}

// Page values win when present; the carried basic record fills the rest.
func TestExtractJobDetailsMergeLaw(t *testing.T) {
	t.Parallel()

	basic := sampleBasic()

	empty, err := ExtractJobDetails(mustDoc(t, `<html><body></body></html>`), basic, "", testNow)
	require.NoError(t, err)
	full, err := ExtractJobDetails(mustDoc(t, detailPage), basic, detailURL, testNow)
	require.NoError(t, err)

	fields := []struct {
		name       string
		empty, hit string
		basic, doc string
	}{
		{"title", empty.Title, full.Title, basic.Title, "Senior Go Engineer"},
		{"company", empty.Company, full.Company, basic.Company, "Acme & Sons"},
		{"location", empty.Location, full.Location, basic.Location, "Austin, TX"},
		{"salary", empty.Salary, full.Salary, basic.Salary, "$150,000 - $180,000/year"},
		{"employmentType", empty.EmploymentType, full.EmploymentType, basic.EmploymentType, "Full-time"},
		{"workplaceType", empty.WorkplaceType, full.WorkplaceType, basic.WorkplaceType, "Hybrid"},
		{"postedDate", empty.PostedDate, full.PostedDate, basic.PostedDate, "Yesterday"},
		{"summary", empty.Summary, full.Summary, basic.Summary, basic.Summary},
		{"id", empty.ID, full.ID, basic.ID, basic.ID},
	}
	for _, f := range fields {
		require.Equal(t, f.basic, f.empty, "%s should fall back to the basic record", f.name)
		require.Equal(t, f.doc, f.hit, "%s should come from the page", f.name)
	}

	require.Equal(t, basic.URL, empty.URL)
	require.Equal(t, basic.PostedDateTimestamp, empty.PostedDateTimestamp)
	require.NotNil(t, empty.SalaryDetails)
	require.Equal(t, 100000.0, *empty.SalaryDetails.Min)
	require.Equal(t, 150000.0, *full.SalaryDetails.Min)
	require.True(t, full.EasyApply)
	require.False(t, empty.EasyApply)
}

func TestExtractJobDetailsSalaryDetailsFollowPageText(t *testing.T) {
	t.Parallel()

	page := `<html><body><span data-cy="payDetails">Competitive</span></body></html>`
	full, err := ExtractJobDetails(mustDoc(t, page), sampleBasic(), detailURL, testNow)
	require.NoError(t, err)
	require.Equal(t, "Competitive", full.Salary)
	require.Nil(t, full.SalaryDetails)
}

func TestExtractJobDetailsKeepsScrapedAt(t *testing.T) {
	t.Parallel()

	basic := sampleBasic()
	first := testNow.Add(-time.Hour)
	basic.ScrapedAt = first

	full, err := ExtractJobDetails(mustDoc(t, detailPage), basic, detailURL, testNow)
	require.NoError(t, err)
	require.Equal(t, first, full.ScrapedAt)
}

func TestExtractJobDetailsDropsOversizedHTML(t *testing.T) {
	t.Parallel()

	body := `<html><body><div id="jobDescription"><p>` + strings.Repeat("Python ", 8000) + `</p></div></body></html>`
	full, err := ExtractJobDetails(mustDoc(t, body), nil, detailURL, testNow)
	require.NoError(t, err)
	require.Empty(t, full.DescriptionHTML)
	require.True(t, strings.HasPrefix(full.Description, "Python Python"))
	require.Equal(t, []string{"Python"}, full.Skills)
}

func TestExtractJobDetailsNilDocument(t *testing.T) {
	t.Parallel()

	_, err := ExtractJobDetails(nil, sampleBasic(), detailURL, testNow)
	require.ErrorIs(t, err, ErrNilDocument)
}

func TestFirstOf(t *testing.T) {
	t.Parallel()

	calls := 0
	miss := func() (int, bool) { calls++; return 0, false }
	hit := func() (int, bool) { calls++; return 7, true }
	never := func() (int, bool) { t.Fatal("evaluated after a hit"); return 0, false }

	v, ok := FirstOf[int](miss, nil, hit, never)
	require.True(t, ok)
	require.Equal(t, 7, v)
	require.Equal(t, 2, calls)

	_, ok = FirstOf[int](miss)
	require.False(t, ok)
	require.Equal(t, "fallback", StringOr("fallback", Value("")))
}
