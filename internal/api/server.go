// Package api exposes the HTTP interface for the scraper service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/hakilens/hakilens-scraper/internal/scrape"
	"github.com/hakilens/hakilens-scraper/internal/store/postgres"
)

// Scraper is the pipeline surface the handlers drive.
type Scraper interface {
	ScrapeURL(ctx context.Context, url string, deepExtract bool) ([]int64, error)
	ScrapeCase(ctx context.Context, url string, deepExtract bool) (int64, error)
	CrawlListing(ctx context.Context, url string, maxPages int, deepExtract bool) (scrape.CrawlResult, error)
	SearchAndScrape(ctx context.Context, query string, deepExtract bool) (scrape.CrawlResult, error)
}

// CaseStore is the read/annotate surface the handlers query.
type CaseStore interface {
	SearchCases(ctx context.Context, query string, limit, offset int) ([]scrape.CaseSummary, error)
	GetCase(ctx context.Context, id int64) (postgres.CaseDetail, error)
	ListDocuments(ctx context.Context, caseID int64) ([]scrape.Document, error)
	SetSummary(ctx context.Context, id int64, summary string) error
}

// Server wires HTTP handlers to the pipeline and the case store.
type Server struct {
	router  chi.Router
	scraper Scraper
	store   CaseStore
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(scraper Scraper, store CaseStore, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		scraper: scraper,
		store:   store,
		logger:  logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/scrape", func(r chi.Router) {
		r.Post("/url", s.scrapeURL)
		r.Post("/listing", s.scrapeListing)
		r.Post("/case", s.scrapeCase)
		r.Post("/search", s.scrapeSearch)
	})
	r.Route("/cases", func(r chi.Router) {
		r.Get("/", s.searchCases)
		r.Route("/{case_id}", func(r chi.Router) {
			r.Get("/", s.getCase)
			r.Get("/documents", s.listDocuments)
			r.Post("/summary", s.setSummary)
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type scrapeRequest struct {
	URL      string `json:"url"`
	MaxPages int    `json:"max_pages"`
	Deep     bool   `json:"deep"`
}

func (s *Server) scrapeURL(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeScrapeRequest(w, r)
	if !ok {
		return
	}
	ids, err := s.scraper.ScrapeURL(r.Context(), req.URL, req.Deep)
	if err != nil {
		s.writeScrapeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"case_ids": ids})
}

func (s *Server) scrapeListing(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeScrapeRequest(w, r)
	if !ok {
		return
	}
	result, err := s.scraper.CrawlListing(r.Context(), req.URL, req.MaxPages, req.Deep)
	if err != nil {
		s.writeScrapeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, result)
}

func (s *Server) scrapeCase(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeScrapeRequest(w, r)
	if !ok {
		return
	}
	id, err := s.scraper.ScrapeCase(r.Context(), req.URL, req.Deep)
	if err != nil {
		s.writeScrapeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]int64{"case_id": id})
}

type searchScrapeRequest struct {
	Query string `json:"query"`
	Deep  bool   `json:"deep"`
}

func (s *Server) scrapeSearch(w http.ResponseWriter, r *http.Request) {
	var req searchScrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Query == "" {
		s.writeError(w, http.StatusBadRequest, "query is required")
		return
	}
	result, err := s.scraper.SearchAndScrape(r.Context(), req.Query, req.Deep)
	if err != nil {
		s.writeScrapeError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"query":          req.Query,
		"saved_case_ids": result.CaseIDs,
		"pages_visited":  result.PagesVisited,
		"failed":         result.Failed,
	})
}

func (s *Server) searchCases(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	limit := intQueryParam(r, "limit", 50)
	offset := intQueryParam(r, "offset", 0)

	cases, err := s.store.SearchCases(r.Context(), query, limit, offset)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "search failed")
		return
	}
	if cases == nil {
		cases = []scrape.CaseSummary{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"cases": cases})
}

func (s *Server) getCase(w http.ResponseWriter, r *http.Request) {
	id, ok := s.caseIDParam(w, r)
	if !ok {
		return
	}
	detail, err := s.store.GetCase(r.Context(), id)
	if errors.Is(err, postgres.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "case not found")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "fetch case failed")
		return
	}
	s.writeJSON(w, http.StatusOK, detail)
}

func (s *Server) listDocuments(w http.ResponseWriter, r *http.Request) {
	id, ok := s.caseIDParam(w, r)
	if !ok {
		return
	}
	docs, err := s.store.ListDocuments(r.Context(), id)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "list documents failed")
		return
	}
	if docs == nil {
		docs = []scrape.Document{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (s *Server) setSummary(w http.ResponseWriter, r *http.Request) {
	id, ok := s.caseIDParam(w, r)
	if !ok {
		return
	}
	var req struct {
		Summary string `json:"summary"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Summary == "" {
		s.writeError(w, http.StatusBadRequest, "missing summary")
		return
	}
	err := s.store.SetSummary(r.Context(), id, req.Summary)
	if errors.Is(err, postgres.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "case not found")
		return
	}
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "set summary failed")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"case_id": id, "summary": req.Summary})
}

func (s *Server) decodeScrapeRequest(w http.ResponseWriter, r *http.Request) (scrapeRequest, bool) {
	var req scrapeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		s.writeError(w, http.StatusBadRequest, "missing url")
		return scrapeRequest{}, false
	}
	return req, true
}

// writeScrapeError maps pipeline failures to HTTP statuses: unreachable or
// unrecognizable pages are the remote site's fault, storage failures are ours.
func (s *Server) writeScrapeError(w http.ResponseWriter, err error) {
	var stageErr *scrape.StageError
	if errors.As(err, &stageErr) {
		switch stageErr.Stage {
		case scrape.StageFetching:
			s.writeError(w, http.StatusBadGateway, err.Error())
			return
		case scrape.StageClassifying, scrape.StageParsing:
			s.writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
	}
	s.writeError(w, http.StatusInternalServerError, err.Error())
}

func (s *Server) caseIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "case_id"), 10, 64)
	if err != nil || id <= 0 {
		s.writeError(w, http.StatusBadRequest, "invalid case id")
		return 0, false
	}
	return id, true
}

func intQueryParam(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Int64("duration_ms", time.Since(start).Milliseconds()),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("panic", rec))
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					_, _ = w.Write([]byte(`{"error":"internal server error"}`))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (sw *statusWriter) WriteHeader(code int) {
	sw.status = code
	sw.ResponseWriter.WriteHeader(code)
}
