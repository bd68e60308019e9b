// Package extract pulls listing fields out of the site's HTML pages. Each
// field is resolved by an ordered list of strategies; the first one that
// yields a value wins.
package extract

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/dice-jobs-crawler/internal/normalize"
)

// Strategy produces a candidate value for a field, or false when it has none.
type Strategy[T any] func() (T, bool)

// FirstOf returns the value of the first strategy that succeeds.
func FirstOf[T any](strategies ...Strategy[T]) (T, bool) {
	for _, s := range strategies {
		if s == nil {
			continue
		}
		if v, ok := s(); ok {
			return v, true
		}
	}
	var zero T
	return zero, false
}

// StringOr resolves strategies to a string, or def when none succeed.
func StringOr(def string, strategies ...Strategy[string]) string {
	if v, ok := FirstOf(strategies...); ok {
		return v
	}
	return def
}

// Text reads the cleaned text of the first element matching selector under sel.
func Text(sel *goquery.Selection, selector string) Strategy[string] {
	return func() (string, bool) {
		return nonEmpty(normalize.CleanText(sel.Find(selector).First().Text()))
	}
}

// Attr reads attribute attr of the first element matching selector.
func Attr(sel *goquery.Selection, selector, attr string) Strategy[string] {
	return func() (string, bool) {
		v, _ := sel.Find(selector).First().Attr(attr)
		return nonEmpty(strings.TrimSpace(v))
	}
}

// HTML reads the inner HTML of the first element matching selector.
func HTML(sel *goquery.Selection, selector string) Strategy[string] {
	return func() (string, bool) {
		node := sel.Find(selector).First()
		if node.Length() == 0 {
			return "", false
		}
		h, err := node.Html()
		if err != nil {
			return "", false
		}
		return nonEmpty(strings.TrimSpace(h))
	}
}

// Value returns v when it is non-empty. It is the "carried basic record"
// step at the end of most chains.
func Value(v string) Strategy[string] {
	return func() (string, bool) { return nonEmpty(v) }
}

// TextList collects the cleaned, non-empty text of every element matching selector.
func TextList(sel *goquery.Selection, selector string) Strategy[[]string] {
	return func() ([]string, bool) {
		var out []string
		sel.Find(selector).Each(func(_ int, s *goquery.Selection) {
			if t := normalize.CleanText(s.Text()); t != "" {
				out = append(out, t)
			}
		})
		return out, len(out) > 0
	}
}

func nonEmpty(v string) (string, bool) {
	return v, v != ""
}
