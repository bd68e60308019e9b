package crawler

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// EmploymentType is one of the site's employment filter values.
type EmploymentType string

// Employment filter values understood by the search surfaces.
const (
	EmploymentFullTime   EmploymentType = "FULLTIME"
	EmploymentPartTime   EmploymentType = "PARTTIME"
	EmploymentContracts  EmploymentType = "CONTRACTS"
	EmploymentThirdParty EmploymentType = "THIRD_PARTY"
)

// Valid reports whether t is a known employment type.
func (t EmploymentType) Valid() bool {
	switch t {
	case EmploymentFullTime, EmploymentPartTime, EmploymentContracts, EmploymentThirdParty:
		return true
	default:
		return false
	}
}

// WorkplaceType classifies where the work happens.
type WorkplaceType string

// Workplace filter values.
const (
	WorkplaceRemote WorkplaceType = "remote"
	WorkplaceOnsite WorkplaceType = "onsite"
	WorkplaceHybrid WorkplaceType = "hybrid"
)

// Valid reports whether t is a known workplace type.
func (t WorkplaceType) Valid() bool {
	switch t {
	case WorkplaceRemote, WorkplaceOnsite, WorkplaceHybrid:
		return true
	default:
		return false
	}
}

// PostedDate is the posted-date bucket filter.
type PostedDate string

// Posted-date buckets. PostedAny disables the filter.
const (
	PostedAny    PostedDate = "ANY"
	PostedOne    PostedDate = "ONE"
	PostedThree  PostedDate = "THREE"
	PostedSeven  PostedDate = "SEVEN"
	PostedThirty PostedDate = "THIRTY"
)

// Valid reports whether p is a known bucket. The empty value counts as ANY.
func (p PostedDate) Valid() bool {
	switch p {
	case "", PostedAny, PostedOne, PostedThree, PostedSeven, PostedThirty:
		return true
	default:
		return false
	}
}

// SearchParams captures one page worth of search filters. It is a value type:
// NextPage derives the following page without mutating the receiver.
type SearchParams struct {
	Query           string           `json:"query"`
	Location        string           `json:"location"`
	Radius          int              `json:"radius"`
	EmploymentTypes []EmploymentType `json:"employmentTypes,omitempty"`
	PostedDate      PostedDate       `json:"postedDate"`
	WorkplaceTypes  []WorkplaceType  `json:"workplaceTypes,omitempty"`
	EasyApply       bool             `json:"easyApply"`
	Page            int              `json:"page"`
	PageSize        int              `json:"pageSize"`
}

// NextPage returns a copy of p with the page number incremented.
func (p SearchParams) NextPage() SearchParams {
	next := p
	next.EmploymentTypes = append([]EmploymentType(nil), p.EmploymentTypes...)
	next.WorkplaceTypes = append([]WorkplaceType(nil), p.WorkplaceTypes...)
	next.Page = p.Page + 1
	return next
}

// ListingSource records which surface produced a listing.
type ListingSource string

// Listing sources.
const (
	SourceAPI    ListingSource = "api"
	SourceHTML   ListingSource = "html"
	SourceDetail ListingSource = "detail"
)

// SalaryDetails is the parsed form of a salary string.
type SalaryDetails struct {
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	Currency string   `json:"currency,omitempty"`
	Period   string   `json:"period,omitempty"`
}

// JobListingBasic is the listing shape produced from search results.
type JobListingBasic struct {
	ID                  string         `json:"id"`
	Title               string         `json:"title"`
	Company             string         `json:"company"`
	Location            string         `json:"location"`
	Salary              string         `json:"salary,omitempty"`
	SalaryDetails       *SalaryDetails `json:"salaryDetails,omitempty"`
	EmploymentType      string         `json:"employmentType,omitempty"`
	WorkplaceType       string         `json:"workplaceType,omitempty"`
	PostedDate          string         `json:"postedDate,omitempty"`
	PostedDateTimestamp *int64         `json:"postedDateTimestamp,omitempty"`
	URL                 string         `json:"url"`
	EasyApply           bool           `json:"easyApply"`
	Summary             string         `json:"summary,omitempty"`
	Source              ListingSource  `json:"source"`
	ScrapedAt           time.Time      `json:"scrapedAt"`
}

// Stamp sets ScrapedAt once. Later calls keep the original timestamp.
func (b *JobListingBasic) Stamp(now time.Time) {
	if b.ScrapedAt.IsZero() {
		b.ScrapedAt = now.UTC()
	}
}

// JobListingFull is a basic listing enriched with detail-page data.
type JobListingFull struct {
	JobListingBasic
	Description        string   `json:"description,omitempty"`
	DescriptionHTML    string   `json:"descriptionHtml,omitempty"`
	Skills             []string `json:"skills,omitempty"`
	ExperienceLevel    string   `json:"experienceLevel,omitempty"`
	EducationLevel     string   `json:"educationLevel,omitempty"`
	Benefits           []string `json:"benefits,omitempty"`
	CompanyDescription string   `json:"companyDescription,omitempty"`
	CompanyLogo        string   `json:"companyLogo,omitempty"`
	ApplicationURL     string   `json:"applicationUrl,omitempty"`
	DetailError        string   `json:"detailError,omitempty"`
}

// Validate enforces the persistence invariants.
func (f JobListingFull) Validate() error {
	if strings.TrimSpace(f.ID) == "" {
		return fmt.Errorf("listing id is required")
	}
	if strings.TrimSpace(f.URL) == "" {
		return fmt.Errorf("listing %s: url is required", f.ID)
	}
	return nil
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL         string
	Headers     http.Header
	UseHeadless bool
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL          string
	StatusCode   int
	Headers      http.Header
	Body         []byte
	Duration     time.Duration
	UsedHeadless bool
}

// StatusError reports a non-2xx response from the fetch layer.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d for %s", e.StatusCode, e.URL)
}

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool {
	switch {
	case e.StatusCode == http.StatusRequestTimeout, e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= 500:
		return true
	default:
		return false
	}
}
