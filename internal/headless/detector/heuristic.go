// Package detector decides when an HTML page must be re-fetched in a headless browser.
package detector

import (
	"bytes"
	"net/http"
	"regexp"

	"github.com/JakeFAU/dice-jobs-crawler/internal/crawler"
)

// Heuristic implements a handful of rule-based promotions.
type Heuristic struct {
	BodyLengthThreshold int
	// ContentMarkers identify server-rendered listing markup. A page carrying
	// any of them is never promoted.
	ContentMarkers [][]byte
}

// DefaultContentMarkers match search cards and detail-page titles.
var DefaultContentMarkers = [][]byte{
	[]byte(`data-cy="search-card"`),
	[]byte(`data-cy="card-title-link"`),
	[]byte(`data-cy="jobTitle"`),
	[]byte(`jobDescriptionHtml`),
}

// NewHeuristic creates a new detector using DefaultContentMarkers.
func NewHeuristic(threshold int) *Heuristic {
	if threshold == 0 {
		threshold = 2048
	}
	return &Heuristic{BodyLengthThreshold: threshold, ContentMarkers: DefaultContentMarkers}
}

var spaMarkers = [][]byte{
	[]byte("__next"),
	[]byte("id=\"root\""),
	[]byte("id=\"app\""),
	[]byte("data-reactroot"),
	[]byte("<dhi-"),
	[]byte("<app-root"),
}

// Reasons reported by Decide.
const (
	ReasonNone          = ""
	ReasonEmptyBody     = "empty_body"
	ReasonScriptDensity = "script_density"
	ReasonSPAShell      = "spa_shell"
)

// scriptBlock matches a script element, or an unterminated one up to the end
// of the document.
var scriptBlock = regexp.MustCompile(`(?is)<script\b[^>]*>.*?(?:</script>|\z)`)

// minScriptShare is the percentage of a short body that must be script
// before it counts as an unrendered shell.
const minScriptShare = 25

// ShouldPromote decides whether a headless fetch is required.
func (h *Heuristic) ShouldPromote(resp crawler.FetchResponse) bool {
	return h.Decide(resp) != ReasonNone
}

// Decide returns why resp needs a headless render, or ReasonNone. Only 200
// responses are considered, and a page that already carries listing markup is
// never promoted.
func (h *Heuristic) Decide(resp crawler.FetchResponse) string {
	if resp.StatusCode != http.StatusOK {
		return ReasonNone
	}
	body := resp.Body
	if len(bytes.TrimSpace(body)) == 0 {
		return ReasonEmptyBody
	}
	if containsAny(body, h.ContentMarkers) {
		return ReasonNone
	}
	if len(body) < h.BodyLengthThreshold && scriptShare(body) >= minScriptShare {
		return ReasonScriptDensity
	}
	if containsAny(body, spaMarkers) {
		return ReasonSPAShell
	}
	return ReasonNone
}

func containsAny(body []byte, markers [][]byte) bool {
	for _, m := range markers {
		if bytes.Contains(body, m) {
			return true
		}
	}
	return false
}

// scriptShare returns the percentage of body covered by script elements.
func scriptShare(body []byte) int {
	covered := 0
	for _, loc := range scriptBlock.FindAllIndex(body, -1) {
		covered += loc[1] - loc[0]
	}
	return covered * 100 / len(body)
}
