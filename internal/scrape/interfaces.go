package scrape

import "context"

// Fetcher performs a rate-limited HTTP GET and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (FetchResult, error)
}

// Limiter blocks until one more outbound request is permitted.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Archive persists raw artifacts (HTML snapshots, PDFs, images, XML) on disk
// and returns the path written.
type Archive interface {
	SaveHTML(url string, body []byte) (string, error)
	SaveBinary(url string, body []byte, contentType string, kind DocKind) (string, error)
}

// Store persists case rows and their owned documents.
type Store interface {
	UpsertCase(ctx context.Context, rec CaseRecord) (int64, error)
	UpsertDocument(ctx context.Context, caseID int64, doc Document) error
	SearchCases(ctx context.Context, query string, limit, offset int) ([]CaseSummary, error)
}
