package scrape

import (
	"fmt"
	"strings"
)

// FetchError reports a fetch that failed after exhausting retries.
type FetchError struct {
	URL      string
	Attempts int
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s failed after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// HTTPStatusError reports a non-2xx response after redirects. Client errors
// are never retried; server errors surface here only after the retry bound.
type HTTPStatusError struct {
	URL        string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
}

// Retryable reports whether the status is worth another attempt.
func (e *HTTPStatusError) Retryable() bool { return e.StatusCode >= 500 }

// ParseError reports a structurally unrecognizable page or a missing
// required field.
type ParseError struct {
	Reason       string
	MissingField string
}

func (e *ParseError) Error() string {
	if e.MissingField != "" {
		return fmt.Sprintf("parse: missing required field %q", e.MissingField)
	}
	return "parse: " + e.Reason
}

// StoreError wraps a persistence failure. It aborts the current record's
// ingestion, never the whole crawl.
type StoreError struct {
	Op  string
	Err error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// StageError tags a failure with the pipeline stage it occurred in.
type StageError struct {
	Stage Stage
	URL   string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Stage, e.URL, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
