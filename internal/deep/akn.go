package deep

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"
)

// aknBodyXPaths are tried in order; local-name matching keeps the extraction
// tolerant of the namespace prefixes different AKN publishers use.
var aknBodyXPaths = []string{
	"//*[local-name()='judgment']/*[local-name()='body']",
	"//*[local-name()='act']/*[local-name()='body']",
	"//*[local-name()='body']",
}

// extractAKNText renders the plain text of an Akoma Ntoso document body.
func extractAKNText(xmlBytes []byte) (string, error) {
	doc, err := xmlquery.Parse(bytes.NewReader(xmlBytes))
	if err != nil {
		return "", fmt.Errorf("parse AKN XML: %w", err)
	}
	for _, xpath := range aknBodyXPaths {
		nodes, err := xmlquery.QueryAll(doc, xpath)
		if err != nil || len(nodes) == 0 {
			continue
		}
		var parts []string
		for _, node := range nodes {
			collectText(node, &parts)
		}
		if len(parts) > 0 {
			return strings.Join(parts, "\n"), nil
		}
	}
	return "", fmt.Errorf("no body element in AKN document")
}

func collectText(node *xmlquery.Node, parts *[]string) {
	if node.Type == xmlquery.TextNode {
		if text := strings.TrimSpace(node.Data); text != "" {
			*parts = append(*parts, text)
		}
		return
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		collectText(child, parts)
	}
}

// aknCandidateURLs derives likely AKN XML locations from an expression URI
// style page URL (".../akn/ke/judgment/.../eng@2022-03-17").
func aknCandidateURLs(pageURL string) []string {
	idx := strings.Index(pageURL, "/eng@")
	if idx < 0 {
		return nil
	}
	base := pageURL[:idx]
	return []string{
		base + "/eng@/main.xml",
		base + "/eng@/main",
		base + "/eng@.xml",
		base + "/eng@/document.xml",
	}
}
