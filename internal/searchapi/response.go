package searchapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/JakeFAU/dice-jobs-crawler/internal/normalize"
)

// ErrMissingData is returned when a search response has no data array.
var ErrMissingData = errors.New("search response has no data")

// SearchResponse is the JSON envelope returned by the search API.
type SearchResponse struct {
	Data []APIJob `json:"data"`
	Meta Meta     `json:"meta"`
}

// Meta carries pagination details for a search response.
type Meta struct {
	TotalJobs   int `json:"totalJobs"`
	Page        int `json:"page"`
	PageSize    int `json:"pageSize"`
	CurrentPage int `json:"currentPage"`
	TotalPages  int `json:"totalPages"`
}

// APIJob is one search result as the API returns it.
type APIJob struct {
	ID             string                    `json:"id"`
	GUID           string                    `json:"guid"`
	Title          string                    `json:"title"`
	CompanyName    string                    `json:"companyName"`
	JobLocation    *APILocation              `json:"jobLocation,omitempty"`
	Salary         string                    `json:"salary"`
	SalaryEstimate *normalize.SalaryEstimate `json:"salaryEstimate,omitempty"`
	EmploymentType string                    `json:"employmentType"`
	WorkplaceTypes []string                  `json:"workplaceTypes"`
	IsRemote       bool                      `json:"isRemote"`
	PostedDate     string                    `json:"postedDate"`
	DetailsPageURL string                    `json:"detailsPageUrl"`
	EasyApply      bool                      `json:"easyApply"`
	Summary        string                    `json:"summary"`
}

// APILocation is the nested location object on an APIJob.
type APILocation struct {
	DisplayName string `json:"displayName"`
}

// DecodeSearchResponse parses body. An empty body, invalid JSON, or a
// response without a data array is an error; an empty data array is not.
func DecodeSearchResponse(body []byte) (SearchResponse, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return SearchResponse{}, ErrMissingData
	}
	var resp SearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return SearchResponse{}, fmt.Errorf("decode search response: %w", err)
	}
	if resp.Data == nil {
		return SearchResponse{}, ErrMissingData
	}
	return resp, nil
}

// CurrentPageOr reports the page index of the response, falling back to fallback
// when the API omits it.
func (m Meta) CurrentPageOr(fallback int) int {
	switch {
	case m.CurrentPage > 0:
		return m.CurrentPage
	case m.Page > 0:
		return m.Page
	default:
		return fallback
	}
}
