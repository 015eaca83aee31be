// Package metrics exposes Prometheus collectors for the scraper service.
package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fetchesTotal          *prometheus.CounterVec
	fetchRetriesTotal     prometheus.Counter
	fetchDurationSeconds  prometheus.Histogram
	rateLimitDelaySeconds prometheus.Histogram
	casesStoredTotal      prometheus.Counter
	documentsStoredTotal  *prometheus.CounterVec
	listingPagesTotal     prometheus.Counter
	snapshotFailuresTotal prometheus.Counter

	once sync.Once
)

// Init registers the Prometheus collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_fetches_total",
				Help: "Total outbound fetches, labeled by status code.",
			},
			[]string{"status"},
		)

		fetchRetriesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scraper_fetch_retries_total",
				Help: "Total fetch attempts beyond the first.",
			},
		)

		fetchDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scraper_fetch_duration_seconds",
				Help:    "Wall time of completed fetches.",
				Buckets: prometheus.DefBuckets,
			},
		)

		rateLimitDelaySeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "scraper_rate_limit_delay_seconds",
				Help:    "Delay introduced by the outbound rate limiter.",
				Buckets: []float64{.01, .05, .1, .5, 1, 2.5, 5, 10, 30},
			},
		)

		casesStoredTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scraper_cases_stored_total",
				Help: "Total case rows upserted.",
			},
		)

		documentsStoredTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "scraper_documents_stored_total",
				Help: "Total document rows upserted, labeled by kind.",
			},
			[]string{"kind"},
		)

		listingPagesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scraper_listing_pages_total",
				Help: "Total listing pages visited during crawls.",
			},
		)

		snapshotFailuresTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scraper_snapshot_failures_total",
				Help: "Total best-effort HTML snapshot writes that failed.",
			},
		)
	})
}

// ObserveFetch records one completed fetch.
func ObserveFetch(statusCode int, duration time.Duration) {
	if fetchesTotal == nil {
		return
	}
	fetchesTotal.WithLabelValues(strconv.Itoa(statusCode)).Inc()
	fetchDurationSeconds.Observe(duration.Seconds())
}

// ObserveRetry counts one retried fetch attempt.
func ObserveRetry() {
	if fetchRetriesTotal == nil {
		return
	}
	fetchRetriesTotal.Inc()
}

// ObserveRateLimitDelay records time spent blocked on the limiter.
func ObserveRateLimitDelay(d time.Duration) {
	if rateLimitDelaySeconds == nil {
		return
	}
	rateLimitDelaySeconds.Observe(d.Seconds())
}

// ObserveCaseStored counts one case upsert.
func ObserveCaseStored() {
	if casesStoredTotal == nil {
		return
	}
	casesStoredTotal.Inc()
}

// ObserveDocumentStored counts one document upsert by kind.
func ObserveDocumentStored(kind string) {
	if documentsStoredTotal == nil {
		return
	}
	documentsStoredTotal.WithLabelValues(kind).Inc()
}

// ObserveListingPage counts one listing page visited.
func ObserveListingPage() {
	if listingPagesTotal == nil {
		return
	}
	listingPagesTotal.Inc()
}

// ObserveSnapshotFailure counts one failed snapshot write.
func ObserveSnapshotFailure() {
	if snapshotFailuresTotal == nil {
		return
	}
	snapshotFailuresTotal.Inc()
}
