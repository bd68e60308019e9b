package extract

import (
	"errors"
	"fmt"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/dice-jobs-crawler/internal/crawler"
	"github.com/JakeFAU/dice-jobs-crawler/internal/normalize"
)

// MaxDescriptionHTML bounds the stored description markup. Longer markup is
// dropped; the cleaned description text is kept.
const MaxDescriptionHTML = 50000

// Identity-field defaults used when neither the page nor the carried basic
// record has a value.
const (
	UnknownTitle    = "Unknown Title"
	UnknownCompany  = "Unknown Company"
	UnknownLocation = "Unknown Location"
	UnknownPosted   = "Unknown"
)

// ErrNilDocument is returned when there is no document to extract from.
var ErrNilDocument = errors.New("nil document")

// Detail-page selectors, primary first.
const (
	selTitle          = `h1[data-cy="jobTitle"]`
	selCompany        = `a[data-cy="companyNameLink"]`
	selCompanyAlt     = `[data-cy="companyName"]`
	selLocation       = `li[data-cy="location"]`
	selLocationAlt    = `[data-cy="locationDetails"]`
	selSalary         = `[data-cy="payDetails"]`
	selSalaryAlt      = `[data-cy="compensationText"]`
	selEmployment     = `[data-cy="employmentDetails"]`
	selEmploymentAlt  = `[data-cy="employmentType"]`
	selWorkplace      = `[data-cy="workplaceTypes"]`
	selPosted         = `[data-cy="postedDate"]`
	selPostedAlt      = `#timeAgo`
	selDescription    = `[data-testid="jobDescriptionHtml"]`
	selDescriptionAlt = `#jobDescription`
	selDescriptionOld = `.job-description`
	selSkills         = `[data-cy="skillsList"] span`
	selSkillsAlt      = `.skill-badge`
	selExperience     = `[data-cy="experienceLevel"]`
	selEducation      = `[data-cy="educationLevel"]`
	selBenefits       = `[data-cy="benefitsList"] li`
	selBenefitsAlt    = `.benefits li`
	selCompanyInfo    = `[data-cy="companyInfo"]`
	selCompanyInfoAlt = `.company-description`
	selLogo           = `img[data-cy="companyLogo"]`
	selApply          = `[data-cy="applyButton"] a`
	selApplyAlt       = `a[data-cy="applyButton"]`
	selEasyApply      = `[data-cy="easyApplyBadge"]`
)

// ExtractJobDetails builds a full listing from a detail page. For every field
// the page value wins when non-empty, then the carried basic record, then
// (for title, company, location and posted date only) a fixed default.
//
// basic may be nil. Panics caused by unexpected document shapes are recovered
// and returned as an error so the caller can fall back to the basic record.
func ExtractJobDetails(doc *goquery.Document, basic *crawler.JobListingBasic, pageURL string, now time.Time) (full crawler.JobListingFull, err error) {
	defer func() {
		if r := recover(); r != nil {
			full = crawler.JobListingFull{}
			err = fmt.Errorf("extract %s: recovered: %v", pageURL, r)
		}
	}()
	if doc == nil || doc.Selection == nil {
		return crawler.JobListingFull{}, ErrNilDocument
	}

	var b crawler.JobListingBasic
	if basic != nil {
		b = *basic
	}
	root := doc.Selection
	pageURL = StringOr("", Value(pageURL), Value(b.URL))

	full.ID = StringOr(fmt.Sprintf("job-%d", now.UnixMilli()), Value(b.ID), urlID(pageURL))
	full.URL = pageURL
	full.Title = StringOr(UnknownTitle, Text(root, selTitle), Text(root, "h1"), Value(b.Title))
	full.Company = StringOr(UnknownCompany, Text(root, selCompany), Text(root, selCompanyAlt), Value(b.Company))
	full.Location = StringOr(UnknownLocation, Text(root, selLocation), Text(root, selLocationAlt), Value(b.Location))

	pageSalary := StringOr("", Text(root, selSalary), Text(root, selSalaryAlt))
	full.Salary = StringOr("", Value(pageSalary), Value(b.Salary))
	// Details follow whichever salary text won.
	full.SalaryDetails = b.SalaryDetails
	if pageSalary != "" {
		full.SalaryDetails = normalize.SalaryDetailsFromText(pageSalary)
	}

	full.EmploymentType = StringOr("", Text(root, selEmployment), Text(root, selEmploymentAlt), Value(b.EmploymentType))
	full.WorkplaceType = StringOr("", Text(root, selWorkplace), Value(b.WorkplaceType))

	rawPosted := StringOr("", Text(root, selPosted), Text(root, selPostedAlt))
	full.PostedDateTimestamp = b.PostedDateTimestamp
	if rawPosted != "" {
		full.PostedDate = normalize.FormatPostedDate(rawPosted, now)
		if ts, ok := normalize.ParseTimestamp(rawPosted); ok {
			ms := ts.UnixMilli()
			full.PostedDateTimestamp = &ms
		}
	}
	full.PostedDate = StringOr(UnknownPosted, Value(full.PostedDate), Value(b.PostedDate))

	full.EasyApply = b.EasyApply || root.Find(selEasyApply).Length() > 0
	full.Summary = b.Summary
	full.Source = crawler.SourceDetail
	full.ScrapedAt = b.ScrapedAt

	descHTML := StringOr("", HTML(root, selDescription), HTML(root, selDescriptionAlt), HTML(root, selDescriptionOld))
	full.Description = normalize.CleanText(descHTML)
	if len(descHTML) < MaxDescriptionHTML {
		full.DescriptionHTML = descHTML
	}

	explicit, _ := FirstOf(TextList(root, selSkills), TextList(root, selSkillsAlt))
	full.Skills = normalize.MergeUnique(explicit, normalize.ExtractSkills(full.Description))
	if len(full.Skills) == 0 {
		full.Skills = nil
	}

	full.ExperienceLevel = StringOr("", Text(root, selExperience), infer(InferExperienceLevel, full.Description))
	full.EducationLevel = StringOr("", Text(root, selEducation), infer(InferEducationLevel, full.Description))

	full.Benefits, _ = FirstOf(TextList(root, selBenefits), TextList(root, selBenefitsAlt))
	full.CompanyDescription = StringOr("", Text(root, selCompanyInfo), Text(root, selCompanyInfoAlt))
	if logo := StringOr("", Attr(root, selLogo, "src")); logo != "" {
		full.CompanyLogo = normalize.AbsoluteURL(pageURL, logo)
	}
	if apply := StringOr("", Attr(root, selApply, "href"), Attr(root, selApplyAlt, "href")); apply != "" {
		full.ApplicationURL = normalize.AbsoluteURL(pageURL, apply)
	}

	full.Stamp(now)
	return full, nil
}

// FromBasic converts a basic listing into a full one without detail data.
func FromBasic(b crawler.JobListingBasic) crawler.JobListingFull {
	return crawler.JobListingFull{JobListingBasic: b}
}

func urlID(u string) Strategy[string] {
	return func() (string, bool) { return normalize.ExtractJobIDFromURL(u) }
}

func infer(fn func(string) string, text string) Strategy[string] {
	return func() (string, bool) { return nonEmpty(fn(text)) }
}
