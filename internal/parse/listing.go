package parse

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/hakilens/hakilens-scraper/internal/scrape"
)

// ListingResult holds the case links and pagination cursor found on one
// listing page.
type ListingResult struct {
	CaseURLs    []string
	NextPageURL string
}

// Listing extracts case-detail links and the next-page link from a listing
// page. Case URLs preserve document order with first-seen deduplication and
// are resolved against baseURL. An empty CaseURLs is a valid outcome (end of
// results); only a page with no listing structure at all fails.
func Listing(baseURL string, body []byte) (ListingResult, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ListingResult{}, &scrape.ParseError{Reason: fmt.Sprintf("unreadable listing HTML: %v", err)}
	}

	base, err := url.Parse(baseURL)
	if err != nil {
		return ListingResult{}, &scrape.ParseError{Reason: fmt.Sprintf("invalid base URL %q", baseURL)}
	}

	anchors := doc.Find("a[href]")
	if anchors.Length() == 0 && doc.Find(listingItemSelectors).Length() == 0 {
		return ListingResult{}, &scrape.ParseError{Reason: "no recognizable listing structure"}
	}

	var result ListingResult
	if next := findNextLink(doc); next != "" {
		abs := resolveURL(base, next)
		// A "next" pointing back at the current page is no pagination at all.
		if abs != "" && abs != baseURL {
			result.NextPageURL = abs
		}
	}

	seen := make(map[string]struct{})
	anchors.Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok || href == "" {
			return
		}
		if !looksLikeCaseLink(a.Text(), href) {
			return
		}
		abs := resolveURL(base, href)
		if abs == "" || abs == baseURL || abs == result.NextPageURL {
			return
		}
		// Same path as the listing itself, differing only in query: another
		// pagination link, not a case.
		if ref, err := url.Parse(abs); err == nil && ref.Path == base.Path {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		result.CaseURLs = append(result.CaseURLs, abs)
	})
	return result, nil
}

func looksLikeCaseLink(text, href string) bool {
	lowText := strings.ToLower(strings.TrimSpace(text))
	for _, kw := range caseLinkTextKeywords {
		if strings.Contains(lowText, kw) {
			return true
		}
	}
	lowHref := strings.ToLower(href)
	for _, kw := range caseLinkHrefKeywords {
		if strings.Contains(lowHref, kw) {
			return true
		}
	}
	return false
}

func findNextLink(doc *goquery.Document) string {
	for _, sel := range nextPageSelectors {
		if href, ok := doc.Find(sel).First().Attr("href"); ok && href != "" {
			return href
		}
	}
	var fallback string
	doc.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		if strings.EqualFold(strings.TrimSpace(a.Text()), "next") {
			fallback, _ = a.Attr("href")
			return false
		}
		return true
	})
	return fallback
}

func resolveURL(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	resolved := base.ResolveReference(ref)
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}
	resolved.Fragment = ""
	return resolved.String()
}
