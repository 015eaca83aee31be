package scrape

import "time"

// PageKind classifies a fetched page.
type PageKind string

// Page kinds produced by Classify.
const (
	PageKindCaseDetail PageKind = "case_detail"
	PageKindListing    PageKind = "listing"
	PageKindUnknown    PageKind = "unknown"
)

// DocKind identifies the type of a linked attachment.
type DocKind string

// Attachment kinds recognized on case-detail pages.
const (
	DocKindPDF          DocKind = "pdf"
	DocKindImage        DocKind = "image"
	DocKindAKN          DocKind = "akn_xml"
	DocKindHTMLSnapshot DocKind = "html_snapshot"
)

// FetchResult is the outcome of a successful HTTP GET. SnapshotPath is set
// when the body was HTML and the raw snapshot landed in the archive.
type FetchResult struct {
	StatusCode   int
	Body         []byte
	ContentType  string
	FinalURL     string
	SnapshotPath string
}

// IsHTML reports whether the response looks like an HTML page.
func (r FetchResult) IsHTML() bool {
	return r.ContentType == "" || containsFold(r.ContentType, "html")
}

// DocumentLink is one attachment discovered on a case-detail page.
type DocumentLink struct {
	URL  string
	Kind DocKind
}

// CaseRecord is the structured result of parsing one case-detail page.
// Every field except Title and SourceURL is optional; absent fields stay
// zero-valued rather than failing the record.
type CaseRecord struct {
	SourceURL     string
	Title         string
	CaseNumber    string
	Citation      string
	Court         string
	Parties       string
	Judges        []string
	Date          string
	ContentText   string
	SnapshotPath  string
	DocumentLinks []DocumentLink
}

// Document is a stored binary artifact owned by a case.
type Document struct {
	ID        int64   `json:"id"`
	CaseID    int64   `json:"case_id"`
	SourceURL string  `json:"source_url"`
	LocalPath string  `json:"local_path"`
	MimeType  string  `json:"mime_type"`
	Kind      DocKind `json:"kind"`
}

// CaseSummary is the row shape returned by store searches and listings.
type CaseSummary struct {
	ID        int64     `json:"id"`
	SourceURL string    `json:"source_url"`
	Title     string    `json:"title"`
	Citation  string    `json:"citation"`
	Court     string    `json:"court"`
	Date      string    `json:"date"`
	CreatedAt time.Time `json:"created_at"`
}

// CrawlResult aggregates the outcome of one listing crawl. Failed URLs are
// reported alongside their causes rather than silently dropped.
type CrawlResult struct {
	CaseIDs      []int64     `json:"case_ids"`
	PagesVisited int         `json:"pages_visited"`
	Failed       []FailedURL `json:"failed,omitempty"`
}

// FailedURL records a case URL that could not be ingested during a crawl.
type FailedURL struct {
	URL   string `json:"url"`
	Stage Stage  `json:"stage"`
	Err   string `json:"error"`
}

// Stage names one state of the per-URL scrape state machine.
type Stage string

// Pipeline stages, in execution order.
const (
	StageFetching       Stage = "fetching"
	StageClassifying    Stage = "classifying"
	StageParsing        Stage = "parsing"
	StageDeepExtracting Stage = "deep_extracting"
	StageStoring        Stage = "storing"
)
