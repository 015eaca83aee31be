package parse

import (
	"bytes"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/hakilens/hakilens-scraper/internal/scrape"
)

// listingItemThreshold is the minimum number of repeated result containers
// that marks a page as a listing.
const listingItemThreshold = 5

// Classify inspects a fetched page and decides whether it is a listing, a
// case-detail page, or unrecognized. It is total: any well-formed HTML input
// yields exactly one of the three kinds and never an error. Structural
// signals are checked first; the URL path shape is only a fallback.
func Classify(pageURL string, body []byte) scrape.PageKind {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return classifyByURL(pageURL)
	}

	if isListing(doc) {
		return scrape.PageKindListing
	}
	if isCaseDetail(doc) {
		return scrape.PageKindCaseDetail
	}
	return classifyByURL(pageURL)
}

// isListing mirrors the listing heuristic: pagination controls or a run of
// repeated result containers.
func isListing(doc *goquery.Document) bool {
	if doc.Find("a[rel='next']").Length() > 0 {
		return true
	}
	return doc.Find(listingItemSelectors).Length() >= listingItemThreshold
}

// isCaseDetail requires only the minimum signal set: a title element plus a
// body/content container. Optional metadata fields missing upstream must not
// downgrade the page to Unknown.
func isCaseDetail(doc *goquery.Document) bool {
	if firstText(doc, titleSelectors) == "" {
		return false
	}
	for _, sel := range contentSelectors {
		if doc.Find(sel).Length() > 0 {
			return true
		}
	}
	return false
}

func classifyByURL(pageURL string) scrape.PageKind {
	u, err := url.Parse(pageURL)
	if err != nil {
		return scrape.PageKindUnknown
	}
	path := strings.ToLower(u.Path)
	switch {
	case strings.Contains(path, "/akn/") || strings.Contains(path, "eng@"):
		return scrape.PageKindCaseDetail
	case strings.HasSuffix(strings.TrimRight(path, "/"), "/judgments"),
		strings.HasSuffix(strings.TrimRight(path, "/"), "/legislation"),
		strings.Contains(path, "/search"):
		return scrape.PageKindListing
	}
	return scrape.PageKindUnknown
}
