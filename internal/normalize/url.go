package normalize

import (
	"net/url"
	"regexp"
	"strings"
)

var jobDetailPath = regexp.MustCompile(`(?i)/job-detail/([a-f0-9-]+)(?:[/?#]|$)`)

// DetailPathSegment marks detail-page URLs on the target site.
const DetailPathSegment = "/job-detail/"

// IsValidURL reports whether s is an absolute http(s) URL with a host.
func IsValidURL(s string) bool {
	u, err := url.ParseRequestURI(strings.TrimSpace(s))
	if err != nil {
		return false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}
	return u.Host != ""
}

// ExtractJobIDFromURL returns the token of a /job-detail/<token> path, or
// false when the URL is not a detail page.
func ExtractJobIDFromURL(rawURL string) (string, bool) {
	m := jobDetailPath.FindStringSubmatch(rawURL)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// IsDetailURL reports whether rawURL points at a listing detail page.
func IsDetailURL(rawURL string) bool {
	return strings.Contains(strings.ToLower(rawURL), DetailPathSegment)
}

// AbsoluteURL resolves ref against base. Absolute refs are returned as-is and
// an unparseable base falls back to simple concatenation.
func AbsoluteURL(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if IsValidURL(ref) {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil {
		return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(ref, "/")
	}
	r, err := url.Parse(ref)
	if err != nil {
		return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(ref, "/")
	}
	return b.ResolveReference(r).String()
}
