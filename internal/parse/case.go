package parse

import (
	"bytes"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/hakilens/hakilens-scraper/internal/scrape"
)

var whitespaceRun = regexp.MustCompile(`\s+`)

// judgeSeparators splits a coram line like "Maraga CJ; Mwilu DCJ & Lenaola J"
// into individual names.
var judgeSeparators = regexp.MustCompile(`\s*(?:;|,|&|\band\b)\s*`)

// Case extracts a structured record from a case-detail page. Title is the
// only required field; every other field is individually optional and its
// absence never aborts the record.
func Case(sourceURL string, body []byte) (scrape.CaseRecord, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return scrape.CaseRecord{}, &scrape.ParseError{Reason: fmt.Sprintf("unreadable case HTML: %v", err)}
	}

	title := firstText(doc, titleSelectors)
	if title == "" {
		return scrape.CaseRecord{}, &scrape.ParseError{MissingField: "title"}
	}

	labels := scanLabelValues(doc)
	field := func(name string) string {
		if v := firstText(doc, metaSelectors[name]); v != "" {
			return v
		}
		return labels[name]
	}

	rec := scrape.CaseRecord{
		SourceURL:  sourceURL,
		Title:      title,
		CaseNumber: field("case_number"),
		Court:      field("court"),
		Parties:    field("parties"),
		Judges:     splitJudges(field("judges")),
		Date:       field("date"),
		Citation:   field("citation"),
	}
	rec.ContentText = extractContentText(doc)
	rec.DocumentLinks = extractDocumentLinks(doc, sourceURL)
	return rec, nil
}

// firstText returns the normalized text of the first matching selector.
func firstText(doc *goquery.Document, selectors []string) string {
	for _, sel := range selectors {
		if node := doc.Find(sel).First(); node.Length() > 0 {
			if text := normalizeWhitespace(node.Text()); text != "" {
				return text
			}
		}
	}
	return ""
}

// scanLabelValues walks the generic label/value layouts the site has used
// over time: dl/dt+dd pairs, table th+td pairs, and "Label: value" lines in
// paragraphs or list items. First hit per field wins.
func scanLabelValues(doc *goquery.Document) map[string]string {
	found := make(map[string]string)

	record := func(label, value string) {
		label = strings.ToLower(label)
		value = normalizeWhitespace(value)
		if value == "" {
			return
		}
		for field, keywords := range labelKeywords {
			if _, done := found[field]; done {
				continue
			}
			for _, kw := range keywords {
				if strings.Contains(label, kw) {
					found[field] = value
					break
				}
			}
		}
	}

	doc.Find("dl dt").Each(func(_ int, dt *goquery.Selection) {
		record(dt.Text(), dt.NextFiltered("dd").Text())
	})
	doc.Find("table th").Each(func(_ int, th *goquery.Selection) {
		record(th.Text(), th.NextFiltered("td").Text())
	})
	doc.Find("p, li").Each(func(_ int, p *goquery.Selection) {
		text := normalizeWhitespace(p.Text())
		low := strings.ToLower(text)
		for field, keywords := range labelKeywords {
			if _, done := found[field]; done {
				continue
			}
			for _, kw := range keywords {
				if strings.HasPrefix(low, kw+":") {
					found[field] = strings.TrimSpace(text[len(kw)+1:])
					break
				}
			}
		}
	})
	return found
}

// extractContentText locates the body container, prunes navigation chrome,
// and joins the recognized text blocks with normalized whitespace.
func extractContentText(doc *goquery.Document) string {
	var container *goquery.Selection
	for _, sel := range contentSelectors {
		if cand := doc.Find(sel).First(); cand.Length() > 0 {
			container = cand
			break
		}
	}
	if container == nil {
		return ""
	}
	for _, sel := range chromeSelectors {
		container.Find(sel).Remove()
	}

	var parts []string
	container.Find("p, li, pre, blockquote, h2, h3, h4").Each(func(_ int, block *goquery.Selection) {
		if text := normalizeWhitespace(block.Text()); text != "" {
			parts = append(parts, text)
		}
	})
	if len(parts) == 0 {
		return normalizeWhitespace(container.Text())
	}
	return strings.Join(parts, "\n")
}

// extractDocumentLinks enumerates PDF, image and AKN-XML attachments in page
// order, deduplicated by resolved URL.
func extractDocumentLinks(doc *goquery.Document, sourceURL string) []scrape.DocumentLink {
	base, err := url.Parse(sourceURL)
	if err != nil {
		return nil
	}
	var links []scrape.DocumentLink
	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		kind, ok := classifyLink(href, a.Text())
		if !ok {
			return
		}
		abs := resolveURL(base, href)
		if abs == "" {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, scrape.DocumentLink{URL: abs, Kind: kind})
	})
	return links
}

func classifyLink(href, text string) (scrape.DocKind, bool) {
	lowHref := strings.ToLower(href)
	lowText := strings.ToLower(normalizeWhitespace(text))
	switch {
	case strings.HasSuffix(lowHref, ".pdf"),
		strings.Contains(lowText, "pdf") && strings.Contains(lowText, "download"):
		return scrape.DocKindPDF, true
	case strings.HasSuffix(lowHref, ".jpg"), strings.HasSuffix(lowHref, ".jpeg"),
		strings.HasSuffix(lowHref, ".png"), strings.HasSuffix(lowHref, ".gif"):
		return scrape.DocKindImage, true
	case strings.HasSuffix(lowHref, ".xml"), strings.Contains(lowHref, "/akn/") && strings.Contains(lowHref, "main"):
		return scrape.DocKindAKN, true
	}
	return "", false
}

func splitJudges(raw string) []string {
	if raw == "" {
		return nil
	}
	var judges []string
	for _, part := range judgeSeparators.Split(raw, -1) {
		if name := strings.TrimSpace(part); name != "" {
			judges = append(judges, name)
		}
	}
	return judges
}

func normalizeWhitespace(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}
