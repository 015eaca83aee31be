// Package deep enriches a parsed case with text extracted from its linked
// primary document: structured Akoma Ntoso XML when available, PDF text
// otherwise.
//
// Every failure in this stage is absorbed: partial data beats no data, so a
// broken attachment never fails the case ingestion.
package deep

import (
	"context"

	"go.uber.org/zap"

	"github.com/hakilens/hakilens-scraper/internal/scrape"
)

// DownloadedDocument pairs an attachment link with its already-fetched bytes.
// The pipeline downloads attachments once for archival; passing the payloads
// here avoids a second fetch of the same files.
type DownloadedDocument struct {
	Link scrape.DocumentLink
	Body []byte
}

// Extractor follows a case's primary document and extracts its text.
type Extractor struct {
	fetcher scrape.Fetcher
	archive scrape.Archive
	logger  *zap.Logger
}

// New builds an Extractor.
func New(fetcher scrape.Fetcher, archive scrape.Archive, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{fetcher: fetcher, archive: archive, logger: logger}
}

// Enrich returns rec with ContentText possibly replaced by higher-fidelity
// document text. Priority order: AKN XML, then PDF, then leave as parsed.
// Replacement happens only when the extracted text is longer than what the
// HTML parser already produced; the length comparison is a tunable heuristic,
// not a guarantee of quality.
func (e *Extractor) Enrich(ctx context.Context, rec scrape.CaseRecord, downloads []DownloadedDocument) scrape.CaseRecord {
	if text := e.aknText(ctx, rec); len(text) > len(rec.ContentText) {
		e.logger.Debug("deep extraction: AKN text wins",
			zap.String("url", rec.SourceURL),
			zap.Int("parsed_len", len(rec.ContentText)),
			zap.Int("akn_len", len(text)),
		)
		rec.ContentText = text
		return rec
	}
	if text := e.pdfText(downloads); len(text) > len(rec.ContentText) {
		e.logger.Debug("deep extraction: PDF text wins",
			zap.String("url", rec.SourceURL),
			zap.Int("parsed_len", len(rec.ContentText)),
			zap.Int("pdf_len", len(text)),
		)
		rec.ContentText = text
	}
	return rec
}

// aknText tries AKN links discovered on the page, then candidate URLs derived
// from the source URL. The longest successfully extracted body wins.
func (e *Extractor) aknText(ctx context.Context, rec scrape.CaseRecord) string {
	urls := make([]string, 0, 4)
	for _, link := range rec.DocumentLinks {
		if link.Kind == scrape.DocKindAKN {
			urls = append(urls, link.URL)
		}
	}
	urls = append(urls, aknCandidateURLs(rec.SourceURL)...)

	var best string
	for _, xmlURL := range urls {
		result, err := e.fetcher.Fetch(ctx, xmlURL)
		if err != nil {
			e.logger.Debug("AKN fetch failed", zap.String("url", xmlURL), zap.Error(err))
			continue
		}
		if len(result.Body) == 0 {
			continue
		}
		if e.archive != nil {
			if _, err := e.archive.SaveBinary(xmlURL, result.Body, result.ContentType, scrape.DocKindAKN); err != nil {
				e.logger.Warn("AKN archive failed", zap.String("url", xmlURL), zap.Error(err))
			}
		}
		text, err := extractAKNText(result.Body)
		if err != nil {
			e.logger.Debug("AKN parse failed", zap.String("url", xmlURL), zap.Error(err))
			continue
		}
		if len(text) > len(best) {
			best = text
		}
	}
	return best
}

// pdfText extracts text from the first PDF among the downloaded attachments.
func (e *Extractor) pdfText(downloads []DownloadedDocument) string {
	for _, d := range downloads {
		if d.Link.Kind != scrape.DocKindPDF || len(d.Body) == 0 {
			continue
		}
		text, err := extractPDFText(d.Body)
		if err != nil {
			e.logger.Debug("PDF extraction failed", zap.String("url", d.Link.URL), zap.Error(err))
			return ""
		}
		return text
	}
	return ""
}
