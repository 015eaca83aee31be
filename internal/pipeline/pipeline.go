// Package pipeline composes fetching, classification, parsing, deep
// extraction and persistence into the two entry flows: scrape one URL and
// crawl a paginated listing.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/hakilens/hakilens-scraper/internal/deep"
	"github.com/hakilens/hakilens-scraper/internal/metrics"
	"github.com/hakilens/hakilens-scraper/internal/parse"
	"github.com/hakilens/hakilens-scraper/internal/scrape"
)

// Enricher is the deep-extraction stage; its failures are absorbed by the
// implementation, so Enrich never fails a case.
type Enricher interface {
	Enrich(ctx context.Context, rec scrape.CaseRecord, downloads []deep.DownloadedDocument) scrape.CaseRecord
}

// Config bounds crawl loops and anchors search crawls.
type Config struct {
	MaxPagesDefault int
	SearchBaseURL   string
}

// Pipeline runs the scrape-and-ingest flows sequentially: one fetch in
// flight at a time, all parsing and storage synchronous behind it.
type Pipeline struct {
	fetcher  scrape.Fetcher
	store    scrape.Store
	archive  scrape.Archive
	enricher Enricher
	cfg      Config
	logger   *zap.Logger
}

// New builds a Pipeline.
func New(
	fetcher scrape.Fetcher,
	store scrape.Store,
	archive scrape.Archive,
	enricher Enricher,
	cfg Config,
	logger *zap.Logger,
) *Pipeline {
	if cfg.MaxPagesDefault <= 0 {
		cfg.MaxPagesDefault = 10
	}
	if cfg.SearchBaseURL == "" {
		cfg.SearchBaseURL = defaultSearchBaseURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		fetcher:  fetcher,
		store:    store,
		archive:  archive,
		enricher: enricher,
		cfg:      cfg,
		logger:   logger,
	}
}

// ScrapeURL fetches a URL, classifies it, and dispatches: a case-detail page
// yields one case id, a listing page is crawled with the default page cap,
// and an unrecognized page fails at the classifying stage with no partial
// store.
func (p *Pipeline) ScrapeURL(ctx context.Context, url string, deepExtract bool) ([]int64, error) {
	result, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, &scrape.StageError{Stage: scrape.StageFetching, URL: url, Err: err}
	}

	switch kind := parse.Classify(result.FinalURL, result.Body); kind {
	case scrape.PageKindCaseDetail:
		id, err := p.ingestFetched(ctx, result, deepExtract)
		if err != nil {
			return nil, err
		}
		return []int64{id}, nil
	case scrape.PageKindListing:
		crawl, err := p.crawlFrom(ctx, result, p.cfg.MaxPagesDefault, deepExtract)
		if err != nil {
			return crawl.CaseIDs, err
		}
		return crawl.CaseIDs, nil
	default:
		return nil, &scrape.StageError{
			Stage: scrape.StageClassifying,
			URL:   url,
			Err:   errors.New("unrecognized page"),
		}
	}
}

const defaultSearchBaseURL = "https://new.kenyalaw.org/judgments/"

// Sites disagree on which query-string key their search endpoint reads, so
// a search tries each of these against the listing URL in order.
var searchQueryParams = []string{"q", "search", "query"}

// searchMaxPages caps each candidate crawl; search results are ranked, so
// deep pagination adds little.
const searchMaxPages = 3

// SearchAndScrape runs the configured listing URL through each search
// query-string candidate and crawls whatever comes back. A candidate that
// fails entirely is recorded and skipped, and case ids are deduplicated
// preserving first-seen order, so a site answering on two keys does not
// double-count.
func (p *Pipeline) SearchAndScrape(ctx context.Context, query string, deepExtract bool) (scrape.CrawlResult, error) {
	if strings.TrimSpace(query) == "" {
		return scrape.CrawlResult{}, errors.New("empty search query")
	}
	base, err := url.Parse(p.cfg.SearchBaseURL)
	if err != nil {
		return scrape.CrawlResult{}, fmt.Errorf("invalid search base url %q: %w", p.cfg.SearchBaseURL, err)
	}

	var combined scrape.CrawlResult
	seen := make(map[int64]struct{})
	for _, param := range searchQueryParams {
		if err := ctx.Err(); err != nil {
			return combined, err
		}
		candidate := *base
		values := candidate.Query()
		values.Set(param, query)
		candidate.RawQuery = values.Encode()

		result, err := p.CrawlListing(ctx, candidate.String(), searchMaxPages, deepExtract)
		if err != nil {
			p.logger.Debug("search candidate failed, skipping",
				zap.String("url", candidate.String()),
				zap.Error(err),
			)
			combined.Failed = append(combined.Failed, failedURL(candidate.String(), err))
			continue
		}
		combined.PagesVisited += result.PagesVisited
		combined.Failed = append(combined.Failed, result.Failed...)
		for _, id := range result.CaseIDs {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			combined.CaseIDs = append(combined.CaseIDs, id)
		}
	}
	return combined, nil
}

// ScrapeCase ingests a known case-detail URL and returns its case id.
func (p *Pipeline) ScrapeCase(ctx context.Context, url string, deepExtract bool) (int64, error) {
	result, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		return 0, &scrape.StageError{Stage: scrape.StageFetching, URL: url, Err: err}
	}
	return p.ingestFetched(ctx, result, deepExtract)
}

// CrawlListing paginates a listing, scraping every discovered case URL. One
// bad case page never aborts the crawl: failures are recorded in the result
// and the loop continues. Termination is guaranteed by the page cap and a
// visited-page cycle guard.
func (p *Pipeline) CrawlListing(ctx context.Context, url string, maxPages int, deepExtract bool) (scrape.CrawlResult, error) {
	result, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		return scrape.CrawlResult{}, &scrape.StageError{Stage: scrape.StageFetching, URL: url, Err: err}
	}
	return p.crawlFrom(ctx, result, maxPages, deepExtract)
}

func (p *Pipeline) crawlFrom(ctx context.Context, first scrape.FetchResult, maxPages int, deepExtract bool) (scrape.CrawlResult, error) {
	if maxPages <= 0 {
		maxPages = p.cfg.MaxPagesDefault
	}

	var crawl scrape.CrawlResult
	visited := make(map[string]struct{})
	page := first

	for {
		visited[page.FinalURL] = struct{}{}
		crawl.PagesVisited++
		metrics.ObserveListingPage()

		listing, err := parse.Listing(page.FinalURL, page.Body)
		if err != nil {
			return crawl, &scrape.StageError{Stage: scrape.StageParsing, URL: page.FinalURL, Err: err}
		}
		for _, caseURL := range listing.CaseURLs {
			if err := ctx.Err(); err != nil {
				return crawl, err
			}
			id, err := p.ScrapeCase(ctx, caseURL, deepExtract)
			if err != nil {
				p.logger.Warn("case ingestion failed, skipping",
					zap.String("url", caseURL),
					zap.Error(err),
				)
				crawl.Failed = append(crawl.Failed, failedURL(caseURL, err))
				continue
			}
			crawl.CaseIDs = append(crawl.CaseIDs, id)
		}

		if listing.NextPageURL == "" || crawl.PagesVisited >= maxPages {
			return crawl, nil
		}
		if _, seen := visited[listing.NextPageURL]; seen {
			p.logger.Debug("pagination cycle detected, stopping",
				zap.String("url", listing.NextPageURL),
			)
			return crawl, nil
		}

		next, err := p.fetcher.Fetch(ctx, listing.NextPageURL)
		if err != nil {
			crawl.Failed = append(crawl.Failed, failedURL(listing.NextPageURL, err))
			return crawl, nil
		}
		page = next
	}
}

// ingestFetched runs the per-URL state machine from the parsing stage on:
// parse, download attachments, optionally deep-extract, then store.
func (p *Pipeline) ingestFetched(ctx context.Context, result scrape.FetchResult, deepExtract bool) (int64, error) {
	rec, err := parse.Case(result.FinalURL, result.Body)
	if err != nil {
		return 0, &scrape.StageError{Stage: scrape.StageParsing, URL: result.FinalURL, Err: err}
	}
	rec.SnapshotPath = result.SnapshotPath

	docs, downloads := p.downloadAttachments(ctx, rec)
	if rec.SnapshotPath != "" {
		docs = append(docs, scrape.Document{
			SourceURL: rec.SourceURL,
			LocalPath: rec.SnapshotPath,
			MimeType:  "text/html",
			Kind:      scrape.DocKindHTMLSnapshot,
		})
	}

	if deepExtract && p.enricher != nil {
		rec = p.enricher.Enrich(ctx, rec, downloads)
	}

	caseID, err := p.store.UpsertCase(ctx, rec)
	if err != nil {
		return 0, &scrape.StageError{Stage: scrape.StageStoring, URL: result.FinalURL, Err: err}
	}
	for _, doc := range docs {
		if err := p.store.UpsertDocument(ctx, caseID, doc); err != nil {
			return 0, &scrape.StageError{Stage: scrape.StageStoring, URL: result.FinalURL, Err: err}
		}
	}

	p.logger.Info("case ingested",
		zap.Int64("case_id", caseID),
		zap.String("url", rec.SourceURL),
		zap.Int("documents", len(docs)),
	)
	return caseID, nil
}

// downloadAttachments fetches and archives the PDF and image links of a
// case. A failed attachment is logged and skipped; the page itself already
// parsed, so partial artifacts are acceptable.
func (p *Pipeline) downloadAttachments(ctx context.Context, rec scrape.CaseRecord) ([]scrape.Document, []deep.DownloadedDocument) {
	var (
		docs      []scrape.Document
		downloads []deep.DownloadedDocument
	)
	for _, link := range rec.DocumentLinks {
		if link.Kind != scrape.DocKindPDF && link.Kind != scrape.DocKindImage {
			continue
		}
		result, err := p.fetcher.Fetch(ctx, link.URL)
		if err != nil {
			p.logger.Warn("attachment fetch failed, skipping",
				zap.String("url", link.URL),
				zap.Error(err),
			)
			continue
		}
		path, err := p.archive.SaveBinary(link.URL, result.Body, result.ContentType, link.Kind)
		if err != nil {
			p.logger.Warn("attachment archive failed, skipping",
				zap.String("url", link.URL),
				zap.Error(err),
			)
			continue
		}
		docs = append(docs, scrape.Document{
			SourceURL: link.URL,
			LocalPath: path,
			MimeType:  result.ContentType,
			Kind:      link.Kind,
		})
		downloads = append(downloads, deep.DownloadedDocument{Link: link, Body: result.Body})
	}
	return docs, downloads
}

func failedURL(url string, err error) scrape.FailedURL {
	stage := scrape.StageFetching
	var stageErr *scrape.StageError
	if errors.As(err, &stageErr) {
		stage = stageErr.Stage
	}
	return scrape.FailedURL{URL: url, Stage: stage, Err: fmt.Sprintf("%v", err)}
}
