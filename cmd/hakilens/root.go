package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hakilens/hakilens-scraper/internal/archive"
	"github.com/hakilens/hakilens-scraper/internal/config"
	"github.com/hakilens/hakilens-scraper/internal/deep"
	"github.com/hakilens/hakilens-scraper/internal/fetch"
	"github.com/hakilens/hakilens-scraper/internal/logging"
	"github.com/hakilens/hakilens-scraper/internal/metrics"
	"github.com/hakilens/hakilens-scraper/internal/pipeline"
	"github.com/hakilens/hakilens-scraper/internal/ratelimit"
	"github.com/hakilens/hakilens-scraper/internal/store/postgres"
)

var cfgFile string

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hakilens",
		Short: "Scrapes and ingests legal cases from Kenya Law",
		Long: `hakilens fetches case-law pages politely, parses their metadata and
full text, archives raw artifacts to disk, and persists structured rows
to Postgres. It runs either as one-shot scrape commands or as an HTTP
service.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (env vars with HAKILENS_ prefix also apply)")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newScrapeURLCmd())
	cmd.AddCommand(newCrawlListingCmd())
	cmd.AddCommand(newCaseDetailCmd())
	cmd.AddCommand(newSearchCmd())

	return cmd
}

// app bundles the wired service graph for one command invocation.
type app struct {
	cfg      config.Config
	logger   *zap.Logger
	store    *postgres.Store
	pipeline *pipeline.Pipeline
}

func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// setup loads config and wires the full pipeline: limiter, fetcher, archive,
// Postgres store, deep extractor.
func setup(ctx context.Context) (*app, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	zap.ReplaceGlobals(logger)
	metrics.Init()

	arch, err := archive.New(cfg.Storage.Dir, logger)
	if err != nil {
		return nil, fmt.Errorf("init archive: %w", err)
	}
	limiter := ratelimit.New(ratelimit.Config{RequestsPerMinute: cfg.HTTP.RequestsPerMinute})
	fetcher := fetch.New(fetch.Config{
		UserAgent:     cfg.HTTP.UserAgent,
		Timeout:       time.Duration(cfg.HTTP.TimeoutSeconds) * time.Second,
		MaxRetries:    cfg.HTTP.MaxRetries,
		RespectRobots: cfg.HTTP.RespectRobots,
	}, limiter, arch, logger)

	store, err := postgres.New(ctx, postgres.Config{DSN: cfg.DB.DSN})
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := store.Bootstrap(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}

	enricher := deep.New(fetcher, arch, logger)
	pipe := pipeline.New(fetcher, store, arch, enricher, pipeline.Config{
		MaxPagesDefault: cfg.Crawler.MaxPagesDefault,
		SearchBaseURL:   cfg.Crawler.SearchBaseURL,
	}, logger)

	return &app{cfg: cfg, logger: logger, store: store, pipeline: pipe}, nil
}
