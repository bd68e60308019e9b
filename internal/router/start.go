package router

import (
	"github.com/JakeFAU/dice-jobs-crawler/internal/crawler"
	"github.com/JakeFAU/dice-jobs-crawler/internal/normalize"
)

// LabelForURL routes a custom start URL: detail pages go to JOB_DETAIL,
// everything else to the HTML search handler.
func LabelForURL(rawURL string) crawler.Label {
	if normalize.IsDetailURL(rawURL) {
		return crawler.LabelJobDetail
	}
	return crawler.LabelSearch
}

// RequestForURL builds the seed request for a custom start URL.
func RequestForURL(rawURL string) crawler.Request {
	switch LabelForURL(rawURL) {
	case crawler.LabelJobDetail:
		return crawler.JobDetailRequest{URL: rawURL}
	default:
		return crawler.SearchHTMLRequest{URL: rawURL, Page: 1}
	}
}
