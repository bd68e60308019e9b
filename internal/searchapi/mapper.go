package searchapi

import (
	"strings"
	"time"

	"github.com/JakeFAU/dice-jobs-crawler/internal/crawler"
	"github.com/JakeFAU/dice-jobs-crawler/internal/normalize"
)

// ParseJobFromAPI maps one API result to a basic listing. Text fields are
// cleaned, relative detail URLs are resolved against baseURL, and the posted
// date is humanized relative to now.
func ParseJobFromAPI(job APIJob, baseURL string, now time.Time) crawler.JobListingBasic {
	id := strings.TrimSpace(job.ID)
	if id == "" {
		id = strings.TrimSpace(job.GUID)
	}

	listing := crawler.JobListingBasic{
		ID:             id,
		Title:          normalize.CleanText(job.Title),
		Company:        normalize.CleanText(job.CompanyName),
		EmploymentType: normalize.CleanText(job.EmploymentType),
		EasyApply:      job.EasyApply,
		Summary:        normalize.CleanText(job.Summary),
		Source:         crawler.SourceAPI,
		URL:            detailURL(job.DetailsPageURL, id, baseURL),
	}
	if job.JobLocation != nil {
		listing.Location = normalize.CleanText(job.JobLocation.DisplayName)
	}

	if s := normalize.CleanText(job.Salary); s != "" {
		listing.Salary = s
	} else if s, ok := normalize.FormatSalary(job.SalaryEstimate); ok {
		listing.Salary = s
	}
	listing.SalaryDetails = salaryDetails(job.SalaryEstimate, listing.Salary)

	listing.WorkplaceType = workplaceType(job)

	listing.PostedDate = normalize.FormatPostedDate(job.PostedDate, now)
	if ts, ok := normalize.ParseTimestamp(job.PostedDate); ok {
		ms := ts.UnixMilli()
		listing.PostedDateTimestamp = &ms
	}
	return listing
}

func detailURL(raw, id, baseURL string) string {
	if raw = strings.TrimSpace(raw); raw != "" {
		return normalize.AbsoluteURL(baseURL, raw)
	}
	if id == "" {
		return ""
	}
	return strings.TrimRight(baseURL, "/") + normalize.DetailPathSegment + id
}

func workplaceType(job APIJob) string {
	for _, t := range job.WorkplaceTypes {
		if t = normalize.CleanText(t); t != "" {
			return t
		}
	}
	if job.IsRemote {
		return "Remote"
	}
	return ""
}

func salaryDetails(est *normalize.SalaryEstimate, text string) *crawler.SalaryDetails {
	if est != nil && (est.MinValue != nil || est.MaxValue != nil) {
		currency := strings.ToUpper(strings.TrimSpace(est.Currency))
		if currency == "" {
			currency = "USD"
		}
		return &crawler.SalaryDetails{
			Min:      est.MinValue,
			Max:      est.MaxValue,
			Currency: currency,
			Period:   strings.ToLower(strings.TrimSpace(est.UnitText)),
		}
	}
	return normalize.SalaryDetailsFromText(text)
}
