// Package ratelimit implements a token bucket limiter that caps the long-run
// outbound request rate of the scrape pipeline.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/hakilens/hakilens-scraper/internal/metrics"
)

// Config holds rate limiter configuration.
type Config struct {
	RequestsPerMinute int
	Burst             int
}

// Limiter throttles outbound requests. One shared instance serves the whole
// process; the upstream is a single host, so a single bucket suffices.
type Limiter struct {
	bucket *rate.Limiter
}

// New creates a Limiter. A non-positive RequestsPerMinute disables limiting.
func New(cfg Config) *Limiter {
	r := rate.Inf
	if cfg.RequestsPerMinute > 0 {
		r = rate.Limit(float64(cfg.RequestsPerMinute) / 60.0)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{bucket: rate.NewLimiter(r, burst)}
}

// Wait blocks until a token is available, respecting the context.
func (l *Limiter) Wait(ctx context.Context) error {
	start := time.Now()
	if err := l.bucket.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if d := time.Since(start); d > time.Millisecond {
		metrics.ObserveRateLimitDelay(d)
	}
	return nil
}
