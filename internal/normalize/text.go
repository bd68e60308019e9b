// Package normalize holds the pure text and value helpers used by the mapper
// and the extractors: cleaning, dates, salaries, skills, and URLs.
package normalize

import (
	"regexp"
	"strings"
)

var (
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
	blockBreakPattern = regexp.MustCompile(`(?i)<\s*(?:br|hr|/\s*(?:p|div|li|ul|ol|tr|td|th|h[1-6]|section|article|blockquote))\b[^>]*>`)
	whitespacePattern = regexp.MustCompile(`\s+`)

	entityReplacer = strings.NewReplacer(
		"&nbsp;", " ",
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
	)
)

// CleanText decodes a fixed set of HTML entities, strips tags, and collapses
// whitespace runs to a single space. Line breaks and closing block tags become
// a space; inline tags are removed so "C<sup>#</sup>" stays "C#". It repeats
// until the output is stable so that CleanText(CleanText(s)) == CleanText(s).
func CleanText(s string) string {
	out := cleanOnce(s)
	// A pass never lengthens its input, so this terminates.
	for {
		next := cleanOnce(out)
		if next == out {
			return out
		}
		out = next
	}
}

func cleanOnce(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	s = entityReplacer.Replace(s)
	s = blockBreakPattern.ReplaceAllString(s, " ")
	s = tagPattern.ReplaceAllString(s, "")
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
