// Package parse implements page classification and the listing/case-detail
// parsers over the upstream site's HTML.
//
// The upstream schema is versioned and inconsistent, so every selector lives
// in the tables below rather than inline; adapting to layout drift means
// editing these tables, not the extraction logic.
package parse

// titleSelectors are tried in order; the first match wins.
var titleSelectors = []string{"h1", "h2", ".title", ".case-title"}

// metaSelectors map a case field to its direct CSS selectors.
var metaSelectors = map[string][]string{
	"case_number": {".case-number", "#case-number"},
	"court":       {".court"},
	"parties":     {".parties"},
	"judges":      {".judges"},
	"date":        {".date"},
	"citation":    {".citation"},
}

// labelKeywords drive label/value scanning over definition lists, tables and
// "Label: value" paragraphs when direct selectors miss.
var labelKeywords = map[string][]string{
	"case_number": {"case number", "case no", "case no."},
	"court":       {"court"},
	"parties":     {"parties", "between"},
	"judges":      {"judge", "judges", "coram"},
	"date":        {"date", "delivered", "decision date"},
	"citation":    {"citation"},
}

// contentSelectors locate the body-text container, most specific first.
var contentSelectors = []string{
	"main",
	"article",
	".content",
	"#content",
	".judgment-text",
	".case-body",
	"[class*='akn']",
	".document",
	".entry-content",
}

// chromeSelectors are pruned from the content container before text
// extraction.
var chromeSelectors = []string{
	".breadcrumbs", ".breadcrumb", "nav", ".nav", ".menu",
	".header", "header", ".footer", "footer", "aside", ".sidebar",
}

// listingItemSelectors mark repeated result containers on index pages.
var listingItemSelectors = ".result, .results, .list, .search-results, .card"

// nextPageSelectors locate the pagination control, tried in order.
var nextPageSelectors = []string{"a[rel='next']", "a.page-next", "li.next a", "nav.pagination a"}

// caseLinkTextKeywords and caseLinkHrefKeywords identify anchors pointing at
// case-detail pages on a listing.
var (
	caseLinkTextKeywords = []string{"read more", "view", "case", "judgment", "ruling"}
	caseLinkHrefKeywords = []string{"/case", "/judgment", "/ruling", "/download"}
)
