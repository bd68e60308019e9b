package extract

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/dice-jobs-crawler/internal/crawler"
	"github.com/JakeFAU/dice-jobs-crawler/internal/normalize"
)

// Search-results selectors.
const (
	selCard           = `[data-cy="search-card"], dhi-search-card`
	selCardLink       = `a[data-cy="card-title-link"]`
	selCardLinkAlt    = `a.card-title-link`
	selCardCompany    = `[data-cy="search-result-company-name"]`
	selCardCompanyAlt = `.card-company a`
	selCardLocation   = `[data-cy="search-result-location"]`
	selCardSalary     = `[data-cy="search-result-salary"]`
	selCardPosted     = `[data-cy="card-posted-date"]`
	selCardPostedAlt  = `.posted-date`
	selCardEmployment = `[data-cy="search-result-employment-type"]`
	selCardWorkplace  = `[data-cy="search-result-workplace-type"]`
	selCardSummary    = `[data-cy="card-summary"]`
	selCardEasyApply  = `[data-cy="card-easy-apply"]`
	selNext           = `[data-cy="pagination-next"], li.pagination-next, a[rel="next"]`
)

// ParseSearchCards returns one basic listing per job card, in page order.
// Cards without a detail link are skipped. Missing IDs are synthesized as
// job-<unix millis>-<index>.
func ParseSearchCards(doc *goquery.Document, baseURL string, now time.Time) []crawler.JobListingBasic {
	if doc == nil || doc.Selection == nil {
		return nil
	}
	var out []crawler.JobListingBasic
	doc.Find(selCard).Each(func(i int, card *goquery.Selection) {
		href := StringOr("", Attr(card, selCardLink, "href"), Attr(card, selCardLinkAlt, "href"))
		if href == "" {
			return
		}
		link := normalize.AbsoluteURL(baseURL, href)

		listing := crawler.JobListingBasic{
			URL:            link,
			Title:          StringOr("", Text(card, selCardLink), Text(card, selCardLinkAlt)),
			Company:        StringOr("", Text(card, selCardCompany), Text(card, selCardCompanyAlt)),
			Location:       StringOr("", Text(card, selCardLocation)),
			Salary:         StringOr("", Text(card, selCardSalary)),
			EmploymentType: StringOr("", Text(card, selCardEmployment)),
			WorkplaceType:  StringOr("", Text(card, selCardWorkplace)),
			Summary:        StringOr("", Text(card, selCardSummary)),
			EasyApply:      card.Find(selCardEasyApply).Length() > 0,
			Source:         crawler.SourceHTML,
		}
		listing.ID = StringOr(fmt.Sprintf("job-%d-%d", now.UnixMilli(), i), urlID(link))
		listing.SalaryDetails = normalize.SalaryDetailsFromText(listing.Salary)

		raw := StringOr("", Text(card, selCardPosted), Text(card, selCardPostedAlt))
		listing.PostedDate = normalize.FormatPostedDate(raw, now)
		if ts, ok := normalize.ParseTimestamp(raw); ok {
			ms := ts.UnixMilli()
			listing.PostedDateTimestamp = &ms
		}
		out = append(out, listing)
	})
	return out
}

// NextPageURL returns the URL of the page after page when the document has an
// enabled "next" control. The control's href is used when it is a real link;
// otherwise the page query parameter of currentURL is rewritten.
func NextPageURL(doc *goquery.Document, currentURL string, page int) (string, bool) {
	if doc == nil || doc.Selection == nil {
		return "", false
	}
	next := doc.Find(selNext).First()
	if next.Length() == 0 || disabled(next) {
		return "", false
	}
	link := next
	if goquery.NodeName(next) != "a" {
		link = next.Find("a").First()
	}
	if href, ok := link.Attr("href"); ok {
		href = strings.TrimSpace(href)
		if href != "" && href != "#" && !strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return normalize.AbsoluteURL(currentURL, href), true
		}
	}
	u, err := url.Parse(currentURL)
	if err != nil {
		return "", false
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page+1))
	u.RawQuery = q.Encode()
	return u.String(), true
}

func disabled(sel *goquery.Selection) bool {
	for _, s := range []*goquery.Selection{sel, sel.Find("a").First()} {
		if s.Length() == 0 {
			continue
		}
		if s.HasClass("disabled") {
			return true
		}
		if _, ok := s.Attr("disabled"); ok {
			return true
		}
		if v, _ := s.Attr("aria-disabled"); strings.EqualFold(v, "true") {
			return true
		}
	}
	return false
}
