package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/hakilens/hakilens-scraper/internal/scrape"
	"github.com/hakilens/hakilens-scraper/internal/store/postgres"
)

type fakeScraper struct {
	scrapeURLFn   func(ctx context.Context, url string, deep bool) ([]int64, error)
	scrapeCaseFn  func(ctx context.Context, url string, deep bool) (int64, error)
	crawlListFn   func(ctx context.Context, url string, maxPages int, deep bool) (scrape.CrawlResult, error)
	searchFn      func(ctx context.Context, query string, deep bool) (scrape.CrawlResult, error)
	lastDeep      bool
	lastMaxPages  int
	lastTargetURL string
	lastQuery     string
}

func (f *fakeScraper) ScrapeURL(ctx context.Context, url string, deep bool) ([]int64, error) {
	f.lastTargetURL, f.lastDeep = url, deep
	if f.scrapeURLFn != nil {
		return f.scrapeURLFn(ctx, url, deep)
	}
	return []int64{1}, nil
}

func (f *fakeScraper) ScrapeCase(ctx context.Context, url string, deep bool) (int64, error) {
	f.lastTargetURL, f.lastDeep = url, deep
	if f.scrapeCaseFn != nil {
		return f.scrapeCaseFn(ctx, url, deep)
	}
	return 1, nil
}

func (f *fakeScraper) CrawlListing(ctx context.Context, url string, maxPages int, deep bool) (scrape.CrawlResult, error) {
	f.lastTargetURL, f.lastMaxPages, f.lastDeep = url, maxPages, deep
	if f.crawlListFn != nil {
		return f.crawlListFn(ctx, url, maxPages, deep)
	}
	return scrape.CrawlResult{CaseIDs: []int64{1, 2}, PagesVisited: 1}, nil
}

func (f *fakeScraper) SearchAndScrape(ctx context.Context, query string, deep bool) (scrape.CrawlResult, error) {
	f.lastQuery, f.lastDeep = query, deep
	if f.searchFn != nil {
		return f.searchFn(ctx, query, deep)
	}
	return scrape.CrawlResult{CaseIDs: []int64{3, 4}, PagesVisited: 2}, nil
}

type fakeCaseStore struct {
	cases     map[int64]postgres.CaseDetail
	summaries map[int64]string
	searchErr error
}

func newFakeCaseStore() *fakeCaseStore {
	return &fakeCaseStore{
		cases:     make(map[int64]postgres.CaseDetail),
		summaries: make(map[int64]string),
	}
}

func (f *fakeCaseStore) SearchCases(context.Context, string, int, int) ([]scrape.CaseSummary, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	var out []scrape.CaseSummary
	for id, c := range f.cases {
		out = append(out, scrape.CaseSummary{ID: id, Title: c.Title})
	}
	return out, nil
}

func (f *fakeCaseStore) GetCase(_ context.Context, id int64) (postgres.CaseDetail, error) {
	c, ok := f.cases[id]
	if !ok {
		return postgres.CaseDetail{}, postgres.ErrNotFound
	}
	return c, nil
}

func (f *fakeCaseStore) ListDocuments(context.Context, int64) ([]scrape.Document, error) {
	return nil, nil
}

func (f *fakeCaseStore) SetSummary(_ context.Context, id int64, summary string) error {
	if _, ok := f.cases[id]; !ok {
		return postgres.ErrNotFound
	}
	f.summaries[id] = summary
	return nil
}

func newTestServer(scraper *fakeScraper, store *fakeCaseStore) *Server {
	return NewServer(scraper, store, zap.NewNop())
}

func doJSON(t *testing.T, handler http.Handler, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("encode payload: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &body)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	s := newTestServer(&fakeScraper{}, newFakeCaseStore())
	rec := doJSON(t, s.Handler(), http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected X-Request-ID header")
	}
}

func TestScrapeURL(t *testing.T) {
	t.Parallel()

	scraper := &fakeScraper{}
	s := newTestServer(scraper, newFakeCaseStore())
	rec := doJSON(t, s.Handler(), http.MethodPost, "/scrape/url",
		map[string]any{"url": "https://example.org/judgments/1", "deep": true})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if !scraper.lastDeep {
		t.Fatal("expected deep flag to be forwarded")
	}
	var resp struct {
		CaseIDs []int64 `json:"case_ids"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.CaseIDs) != 1 || resp.CaseIDs[0] != 1 {
		t.Fatalf("unexpected case ids: %v", resp.CaseIDs)
	}
}

func TestScrapeURLMissingURL(t *testing.T) {
	t.Parallel()

	s := newTestServer(&fakeScraper{}, newFakeCaseStore())
	rec := doJSON(t, s.Handler(), http.MethodPost, "/scrape/url", map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestScrapeURLStageErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		stage scrape.Stage
		want  int
	}{
		{"fetch failure", scrape.StageFetching, http.StatusBadGateway},
		{"unrecognized page", scrape.StageClassifying, http.StatusUnprocessableEntity},
		{"parse failure", scrape.StageParsing, http.StatusUnprocessableEntity},
		{"store failure", scrape.StageStoring, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			scraper := &fakeScraper{
				scrapeURLFn: func(context.Context, string, bool) ([]int64, error) {
					return nil, &scrape.StageError{Stage: tt.stage, URL: "u", Err: errors.New("boom")}
				},
			}
			s := newTestServer(scraper, newFakeCaseStore())
			rec := doJSON(t, s.Handler(), http.MethodPost, "/scrape/url",
				map[string]any{"url": "https://example.org/x"})
			if rec.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestScrapeListingForwardsMaxPages(t *testing.T) {
	t.Parallel()

	scraper := &fakeScraper{}
	s := newTestServer(scraper, newFakeCaseStore())
	rec := doJSON(t, s.Handler(), http.MethodPost, "/scrape/listing",
		map[string]any{"url": "https://example.org/judgments/", "max_pages": 3})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if scraper.lastMaxPages != 3 {
		t.Fatalf("expected max_pages 3, got %d", scraper.lastMaxPages)
	}
}

func TestScrapeSearch(t *testing.T) {
	t.Parallel()

	scraper := &fakeScraper{}
	s := newTestServer(scraper, newFakeCaseStore())
	rec := doJSON(t, s.Handler(), http.MethodPost, "/scrape/search",
		map[string]any{"query": "mwangi", "deep": true})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if scraper.lastQuery != "mwangi" {
		t.Fatalf("expected query forwarded, got %q", scraper.lastQuery)
	}
	if !scraper.lastDeep {
		t.Fatal("expected deep flag forwarded")
	}
	var body struct {
		Query        string  `json:"query"`
		SavedCaseIDs []int64 `json:"saved_case_ids"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Query != "mwangi" {
		t.Fatalf("expected query echoed, got %q", body.Query)
	}
	if len(body.SavedCaseIDs) != 2 {
		t.Fatalf("expected 2 case ids, got %v", body.SavedCaseIDs)
	}
}

func TestScrapeSearchMissingQuery(t *testing.T) {
	t.Parallel()

	s := newTestServer(&fakeScraper{}, newFakeCaseStore())
	rec := doJSON(t, s.Handler(), http.MethodPost, "/scrape/search", map[string]any{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestGetCase(t *testing.T) {
	t.Parallel()

	store := newFakeCaseStore()
	store.cases[7] = postgres.CaseDetail{ID: 7, Title: "Republic v Mwangi"}
	s := newTestServer(&fakeScraper{}, store)

	rec := doJSON(t, s.Handler(), http.MethodGet, "/cases/7", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = doJSON(t, s.Handler(), http.MethodGet, "/cases/99", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}

	rec = doJSON(t, s.Handler(), http.MethodGet, "/cases/not-a-number", nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSearchCasesEmptyIsJSONArray(t *testing.T) {
	t.Parallel()

	s := newTestServer(&fakeScraper{}, newFakeCaseStore())
	rec := doJSON(t, s.Handler(), http.MethodGet, "/cases/?q=nothing", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp struct {
		Cases []scrape.CaseSummary `json:"cases"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Cases == nil {
		t.Fatal("expected empty array, got null")
	}
}

func TestSetSummary(t *testing.T) {
	t.Parallel()

	store := newFakeCaseStore()
	store.cases[3] = postgres.CaseDetail{ID: 3, Title: "Republic v Otieno"}
	s := newTestServer(&fakeScraper{}, store)

	rec := doJSON(t, s.Handler(), http.MethodPost, "/cases/3/summary",
		map[string]string{"summary": "Appeal dismissed."})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if store.summaries[3] != "Appeal dismissed." {
		t.Fatalf("expected summary to be stored, got %q", store.summaries[3])
	}

	rec = doJSON(t, s.Handler(), http.MethodPost, "/cases/3/summary", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty summary, got %d", rec.Code)
	}

	rec = doJSON(t, s.Handler(), http.MethodPost, "/cases/42/summary",
		map[string]string{"summary": "x"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	scraper := &fakeScraper{
		scrapeCaseFn: func(context.Context, string, bool) (int64, error) {
			panic(fmt.Errorf("handler exploded"))
		},
	}
	s := newTestServer(scraper, newFakeCaseStore())
	rec := doJSON(t, s.Handler(), http.MethodPost, "/scrape/case",
		map[string]any{"url": "https://example.org/judgments/1"})
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
}
