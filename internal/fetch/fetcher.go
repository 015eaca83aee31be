// Package fetch implements the rate-limited, retrying HTTP fetcher on top of
// a Colly collector.
package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/hakilens/hakilens-scraper/internal/metrics"
	"github.com/hakilens/hakilens-scraper/internal/scrape"
)

// Config controls fetcher behavior. MaxRetries bounds total attempts per
// URL: zero means a single attempt, negative falls back to the default.
type Config struct {
	UserAgent     string
	Timeout       time.Duration
	MaxRetries    int
	RespectRobots bool
}

// Fetcher performs HTTP GETs through the shared rate limiter, retrying
// transient failures with jittered backoff. Successful HTML responses are
// snapshotted into the archive before being returned; snapshot failures are
// logged but never fail the fetch.
type Fetcher struct {
	cfg           Config
	limiter       scrape.Limiter
	archive       scrape.Archive
	retry         *retryPolicy
	robots        *robotsCache
	baseCollector *colly.Collector
	logger        *zap.Logger
}

// New builds a Fetcher.
func New(cfg Config, limiter scrape.Limiter, archive scrape.Archive, logger *zap.Logger) *Fetcher {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := colly.NewCollector(colly.Async(false))
	c.AllowURLRevisit = true
	// Robots enforcement happens in robotsCache before any attempt, so the
	// collector itself never consults robots.txt.
	c.IgnoreRobotsTxt = true
	c.SetRequestTimeout(cfg.Timeout)

	var robots *robotsCache
	if cfg.RespectRobots {
		robots = newRobotsCache(cfg.UserAgent, cfg.Timeout)
	}
	return &Fetcher{
		cfg:           cfg,
		limiter:       limiter,
		archive:       archive,
		retry:         newRetryPolicy(cfg.MaxRetries),
		robots:        robots,
		baseCollector: c,
		logger:        logger,
	}
}

// Fetch executes a GET with retry/backoff. Redirects are followed; the result
// carries the final URL. A non-2xx terminal response surfaces as
// *scrape.HTTPStatusError, anything else as *scrape.FetchError.
func (f *Fetcher) Fetch(ctx context.Context, url string) (scrape.FetchResult, error) {
	if f.robots != nil && !f.robots.allowed(url) {
		return scrape.FetchResult{}, &scrape.FetchError{
			URL:      url,
			Attempts: 0,
			Err:      fmt.Errorf("disallowed by robots.txt"),
		}
	}

	var (
		lastErr  error
		attempts int
	)
	for attempt := 0; ; attempt++ {
		attempts = attempt + 1
		if attempt > 0 {
			metrics.ObserveRetry()
			select {
			case <-time.After(f.retry.backoff(attempt - 1)):
			case <-ctx.Done():
				return scrape.FetchResult{}, &scrape.FetchError{URL: url, Attempts: attempt, Err: ctx.Err()}
			}
		}
		if err := f.limiter.Wait(ctx); err != nil {
			return scrape.FetchResult{}, &scrape.FetchError{URL: url, Attempts: attempt, Err: err}
		}

		result, err := f.doFetch(url)
		if err == nil {
			result.SnapshotPath = f.snapshot(url, result)
			return result, nil
		}
		lastErr = err
		f.logger.Debug("fetch attempt failed",
			zap.String("url", url),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
		if !f.retry.shouldRetry(err, attempt+1) {
			break
		}
	}

	if statusErr, ok := lastErr.(*scrape.HTTPStatusError); ok {
		return scrape.FetchResult{}, statusErr
	}
	return scrape.FetchResult{}, &scrape.FetchError{URL: url, Attempts: attempts, Err: lastErr}
}

func (f *Fetcher) doFetch(url string) (scrape.FetchResult, error) {
	var (
		result   scrape.FetchResult
		fetchErr error
	)
	start := time.Now()
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.SetRequestTimeout(f.cfg.Timeout)

	collector.OnResponse(func(r *colly.Response) {
		result = scrape.FetchResult{
			StatusCode:  r.StatusCode,
			Body:        r.Body,
			ContentType: r.Headers.Get("Content-Type"),
			FinalURL:    r.Request.URL.String(),
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode >= 400 {
			fetchErr = &scrape.HTTPStatusError{URL: url, StatusCode: r.StatusCode}
			return
		}
		fetchErr = err
	})

	if err := collector.Visit(url); err != nil && fetchErr == nil {
		fetchErr = fmt.Errorf("visit %s: %w", url, err)
	}
	collector.Wait()

	if fetchErr != nil {
		metrics.ObserveFetch(statusOf(fetchErr), time.Since(start))
		return scrape.FetchResult{}, fetchErr
	}
	if result.StatusCode == 0 {
		return scrape.FetchResult{}, fmt.Errorf("no response received for %s", url)
	}
	metrics.ObserveFetch(result.StatusCode, time.Since(start))
	return result, nil
}

// snapshot archives raw HTML bodies, best effort. It returns the snapshot
// path, or empty when nothing was written.
func (f *Fetcher) snapshot(url string, result scrape.FetchResult) string {
	if f.archive == nil || !result.IsHTML() {
		return ""
	}
	path, err := f.archive.SaveHTML(result.FinalURL, result.Body)
	if err != nil {
		metrics.ObserveSnapshotFailure()
		f.logger.Warn("HTML snapshot failed", zap.String("url", url), zap.Error(err))
		return ""
	}
	return path
}

func statusOf(err error) int {
	if statusErr, ok := err.(*scrape.HTTPStatusError); ok {
		return statusErr.StatusCode
	}
	return 0
}
