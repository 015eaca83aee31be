package fetch

import (
	"context"
	"crypto/rand"
	"errors"
	"math"
	"math/big"
	"time"

	"github.com/hakilens/hakilens-scraper/internal/scrape"
)

// retryPolicy implements jittered exponential backoff for fetch attempts.
type retryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

// newRetryPolicy bounds a fetch to maxAttempts tries. Zero means exactly one
// attempt with no retries; only a negative value falls back to the default.
func newRetryPolicy(maxAttempts int) *retryPolicy {
	if maxAttempts < 0 {
		maxAttempts = 3
	}
	if maxAttempts == 0 {
		maxAttempts = 1
	}
	return &retryPolicy{
		maxAttempts: maxAttempts,
		baseDelay:   250 * time.Millisecond,
		maxDelay:    5 * time.Second,
	}
}

// shouldRetry decides whether the error is retryable. Client errors (4xx) and
// context cancellation never are; server errors and network failures are,
// up to the attempt bound.
func (p *retryPolicy) shouldRetry(err error, attempt int) bool {
	if err == nil {
		return false
	}
	if attempt >= p.maxAttempts {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *scrape.HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}
	// Timeouts and connection failures are both retryable.
	return true
}

// backoff returns the wait duration before the next attempt.
func (p *retryPolicy) backoff(attempt int) time.Duration {
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	return time.Duration(delay/2) + p.randomJitter(time.Duration(delay)/2)
}

func (p *retryPolicy) randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
