package crawler

import "net/http"

// Label identifies which handler processes a queued request.
type Label string

// Request labels.
const (
	LabelSearchAPI Label = "SEARCH_API"
	LabelSearch    Label = "SEARCH"
	LabelJobDetail Label = "JOB_DETAIL"
)

// Request is a queued fetch. The set of implementations is closed: only the
// three variants in this file satisfy it.
type Request interface {
	Label() Label
	// Target is the absolute URL to fetch.
	Target() string
	// Key de-duplicates scheduling; enqueuing an already seen key is a no-op.
	Key() string
	// Headers returns extra request headers, or nil.
	Headers() http.Header
	sealed()
}

// SearchAPIRequest fetches one page of the JSON search API.
type SearchAPIRequest struct {
	URL    string
	Params SearchParams
	Header http.Header
}

// Label implements Request.
func (r SearchAPIRequest) Label() Label { return LabelSearchAPI }

// Target implements Request.
func (r SearchAPIRequest) Target() string { return r.URL }

// Key implements Request. The URL embeds the page number, so keys are page scoped.
func (r SearchAPIRequest) Key() string { return string(LabelSearchAPI) + ":" + r.URL }

// Headers implements Request.
func (r SearchAPIRequest) Headers() http.Header { return r.Header }

func (SearchAPIRequest) sealed() {}

// SearchHTMLRequest fetches one page of the HTML search results.
type SearchHTMLRequest struct {
	URL  string
	Page int
}

// Label implements Request.
func (r SearchHTMLRequest) Label() Label { return LabelSearch }

// Target implements Request.
func (r SearchHTMLRequest) Target() string { return r.URL }

// Key implements Request.
func (r SearchHTMLRequest) Key() string { return string(LabelSearch) + ":" + r.URL }

// Headers implements Request.
func (r SearchHTMLRequest) Headers() http.Header { return nil }

func (SearchHTMLRequest) sealed() {}

// JobDetailRequest fetches a listing's detail page. Basic is the carried
// search-result record and may be nil for custom start URLs.
type JobDetailRequest struct {
	URL   string
	Basic *JobListingBasic
}

// Label implements Request.
func (r JobDetailRequest) Label() Label { return LabelJobDetail }

// Target implements Request.
func (r JobDetailRequest) Target() string { return r.URL }

// Key implements Request.
func (r JobDetailRequest) Key() string { return string(LabelJobDetail) + ":" + r.URL }

// Headers implements Request.
func (r JobDetailRequest) Headers() http.Header { return nil }

func (JobDetailRequest) sealed() {}
