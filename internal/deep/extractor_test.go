package deep

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/hakilens/hakilens-scraper/internal/scrape"
)

const aknJudgmentXML = `<?xml version="1.0" encoding="UTF-8"?>
<akomaNtoso xmlns="http://docs.oasis-open.org/legaldocml/ns/akn/3.0">
  <judgment>
    <meta><identification source="#source"/></meta>
    <body>
      <paragraph><content><p>The court has considered the petition.</p></content></paragraph>
      <paragraph><content><p>Orders accordingly.</p></content></paragraph>
    </body>
  </judgment>
</akomaNtoso>`

type fakeFetcher struct {
	responses map[string]scrape.FetchResult
	calls     []string
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) (scrape.FetchResult, error) {
	f.calls = append(f.calls, url)
	if result, ok := f.responses[url]; ok {
		return result, nil
	}
	return scrape.FetchResult{}, &scrape.HTTPStatusError{URL: url, StatusCode: 404}
}

func TestExtractAKNText(t *testing.T) {
	text, err := extractAKNText([]byte(aknJudgmentXML))
	require.NoError(t, err)
	assert.Contains(t, text, "The court has considered the petition.")
	assert.Contains(t, text, "Orders accordingly.")
}

func TestExtractAKNText_NoBody(t *testing.T) {
	_, err := extractAKNText([]byte(`<akomaNtoso><judgment><meta/></judgment></akomaNtoso>`))
	require.Error(t, err)
}

func TestAKNCandidateURLs(t *testing.T) {
	urls := aknCandidateURLs("https://example.org/akn/ke/judgment/2022/42/eng@2022-03-17")
	require.Len(t, urls, 4)
	assert.Equal(t, "https://example.org/akn/ke/judgment/2022/42/eng@/main.xml", urls[0])

	assert.Nil(t, aknCandidateURLs("https://example.org/judgments/42"))
}

func TestEnrich_AKNWinsWhenLonger(t *testing.T) {
	sourceURL := "https://example.org/akn/ke/judgment/2022/42/eng@2022-03-17"
	fetcher := &fakeFetcher{responses: map[string]scrape.FetchResult{
		"https://example.org/akn/ke/judgment/2022/42/eng@/main.xml": {
			StatusCode:  200,
			Body:        []byte(aknJudgmentXML),
			ContentType: "application/xml",
		},
	}}
	e := New(fetcher, nil, zap.NewNop())

	rec := scrape.CaseRecord{SourceURL: sourceURL, ContentText: "short"}
	enriched := e.Enrich(context.Background(), rec, nil)
	assert.Contains(t, enriched.ContentText, "Orders accordingly.")
}

func TestEnrich_ShorterAKNDoesNotReplace(t *testing.T) {
	long := "a very long judgment body text that the HTML parser already extracted in full detail"
	sourceURL := "https://example.org/akn/ke/judgment/2022/42/eng@2022-03-17"
	fetcher := &fakeFetcher{responses: map[string]scrape.FetchResult{
		"https://example.org/akn/ke/judgment/2022/42/eng@/main.xml": {
			StatusCode: 200,
			Body: []byte(`<akomaNtoso><judgment><body><p>tiny</p></body></judgment></akomaNtoso>`),
		},
	}}
	e := New(fetcher, nil, zap.NewNop())

	rec := scrape.CaseRecord{SourceURL: sourceURL, ContentText: long}
	enriched := e.Enrich(context.Background(), rec, nil)
	assert.Equal(t, long, enriched.ContentText)
}

func TestEnrich_AllFailuresAbsorbed(t *testing.T) {
	// Every candidate fetch 404s and the downloaded "PDF" is garbage: the
	// record must come back unchanged, never an error.
	fetcher := &fakeFetcher{}
	e := New(fetcher, nil, zap.NewNop())

	rec := scrape.CaseRecord{
		SourceURL:   "https://example.org/akn/ke/judgment/2022/42/eng@2022-03-17",
		ContentText: "parsed text",
		DocumentLinks: []scrape.DocumentLink{
			{URL: "https://example.org/docs/broken.pdf", Kind: scrape.DocKindPDF},
		},
	}
	downloads := []DownloadedDocument{
		{Link: rec.DocumentLinks[0], Body: []byte("not a pdf at all")},
	}
	enriched := e.Enrich(context.Background(), rec, downloads)
	assert.Equal(t, "parsed text", enriched.ContentText)
	assert.NotEmpty(t, fetcher.calls)
}

func TestExtractPDFText_Garbage(t *testing.T) {
	_, err := extractPDFText([]byte("definitely not a pdf"))
	require.Error(t, err)
}
