// Package searchapi speaks the job site's search surfaces: it builds JSON API
// and HTML search URLs from SearchParams and maps API results to listings.
package searchapi

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/JakeFAU/dice-jobs-crawler/internal/crawler"
)

// DefaultPageSize is used when SearchParams.PageSize is unset.
const DefaultPageSize = 20

var workplaceNames = map[crawler.WorkplaceType]string{
	crawler.WorkplaceRemote: "Remote",
	crawler.WorkplaceOnsite: "On-Site",
	crawler.WorkplaceHybrid: "Hybrid",
}

var postedDays = map[crawler.PostedDate]string{
	crawler.PostedOne:    "1",
	crawler.PostedThree:  "3",
	crawler.PostedSeven:  "7",
	crawler.PostedThirty: "30",
}

// BuildSearchAPIQuery encodes params using the API's filter vocabulary.
// Filters at their zero value are omitted; page, pageSize, language and
// includeRemote are always present. Keys are sorted, so the output is
// deterministic and differs for every page number.
func BuildSearchAPIQuery(params crawler.SearchParams) string {
	v := url.Values{}
	if q := strings.TrimSpace(params.Query); q != "" {
		v.Set("q", q)
	}
	if loc := strings.TrimSpace(params.Location); loc != "" {
		v.Set("location", loc)
	}
	if params.Radius > 0 {
		v.Set("radius", strconv.Itoa(params.Radius))
		v.Set("radiusUnit", "mi")
	}
	if len(params.EmploymentTypes) > 0 {
		types := make([]string, 0, len(params.EmploymentTypes))
		for _, t := range params.EmploymentTypes {
			types = append(types, string(t))
		}
		v.Set("employmentType", strings.Join(types, ","))
	}
	if len(params.WorkplaceTypes) > 0 {
		types := make([]string, 0, len(params.WorkplaceTypes))
		for _, t := range params.WorkplaceTypes {
			if name, ok := workplaceNames[t]; ok {
				types = append(types, name)
			}
		}
		if len(types) > 0 {
			v.Set("workplaceTypes", strings.Join(types, ","))
		}
	}
	if days, ok := postedDays[params.PostedDate]; ok {
		v.Set("postedDate", days)
	}
	if params.EasyApply {
		v.Set("easyApply", "true")
	}
	v.Set("page", strconv.Itoa(pageOf(params.Page)))
	v.Set("pageSize", strconv.Itoa(pageSizeOf(params.PageSize)))
	v.Set("language", "en")
	v.Set("includeRemote", "true")
	return v.Encode()
}

// SearchAPIURL joins endpoint and the encoded query.
func SearchAPIURL(endpoint string, params crawler.SearchParams) string {
	sep := "?"
	if strings.Contains(endpoint, "?") {
		sep = "&"
	}
	return endpoint + sep + BuildSearchAPIQuery(params)
}

// BuildSearchURL builds the HTML search-results URL for page. Multi-value
// filters use repeated "filters."-prefixed keys.
func BuildSearchURL(baseURL string, params crawler.SearchParams, page int) string {
	v := url.Values{}
	if q := strings.TrimSpace(params.Query); q != "" {
		v.Set("q", q)
	}
	if loc := strings.TrimSpace(params.Location); loc != "" {
		v.Set("location", loc)
	}
	if params.Radius > 0 {
		v.Set("radius", strconv.Itoa(params.Radius))
		v.Set("radiusUnit", "mi")
	}
	for _, t := range params.EmploymentTypes {
		v.Add("filters.employmentType", string(t))
	}
	for _, t := range params.WorkplaceTypes {
		if name, ok := workplaceNames[t]; ok {
			v.Add("filters.workplaceTypes", name)
		}
	}
	if _, ok := postedDays[params.PostedDate]; ok {
		v.Set("filters.postedDate", string(params.PostedDate))
	}
	if params.EasyApply {
		v.Set("filters.easyApply", "true")
	}
	v.Set("page", strconv.Itoa(pageOf(page)))
	v.Set("pageSize", strconv.Itoa(pageSizeOf(params.PageSize)))
	v.Set("language", "en")
	return strings.TrimRight(baseURL, "/") + "/jobs?" + v.Encode()
}

// Endpoint describes the JSON search API.
type Endpoint struct {
	URL    string
	APIKey string
}

// Request builds the queued request for one API page.
func (e Endpoint) Request(params crawler.SearchParams) crawler.SearchAPIRequest {
	params.Page = pageOf(params.Page)
	header := http.Header{}
	header.Set("Accept", "application/json")
	if e.APIKey != "" {
		header.Set("x-api-key", e.APIKey)
	}
	return crawler.SearchAPIRequest{
		URL:    SearchAPIURL(e.URL, params),
		Params: params,
		Header: header,
	}
}

// HTMLRequest builds the queued request for one HTML results page.
func HTMLRequest(baseURL string, params crawler.SearchParams, page int) crawler.SearchHTMLRequest {
	page = pageOf(page)
	return crawler.SearchHTMLRequest{URL: BuildSearchURL(baseURL, params, page), Page: page}
}

func pageOf(p int) int {
	if p < 1 {
		return 1
	}
	return p
}

func pageSizeOf(n int) int {
	if n <= 0 {
		return DefaultPageSize
	}
	return n
}
