package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newScrapeURLCmd() *cobra.Command {
	var deepExtract bool
	cmd := &cobra.Command{
		Use:   "scrape-url <url>",
		Short: "Fetches a URL, classifies it, and ingests what it finds",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			ids, err := a.pipeline.ScrapeURL(cmd.Context(), args[0], deepExtract)
			if err != nil {
				return err
			}
			a.logger.Info("scrape finished", zap.Int64s("case_ids", ids))
			return printJSON(map[string]any{"case_ids": ids})
		},
	}
	cmd.Flags().BoolVar(&deepExtract, "deep", false, "fetch linked judgment documents for full text")
	return cmd
}

func newCrawlListingCmd() *cobra.Command {
	var (
		maxPages    int
		deepExtract bool
	)
	cmd := &cobra.Command{
		Use:   "crawl-listing <url>",
		Short: "Paginates a listing and ingests every discovered case",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.pipeline.CrawlListing(cmd.Context(), args[0], maxPages, deepExtract)
			if err != nil {
				return err
			}
			a.logger.Info("crawl finished",
				zap.Int("pages_visited", result.PagesVisited),
				zap.Int("cases", len(result.CaseIDs)),
				zap.Int("failed", len(result.Failed)),
			)
			return printJSON(result)
		},
	}
	cmd.Flags().IntVar(&maxPages, "max-pages", 0, "pagination cap (0 uses the configured default)")
	cmd.Flags().BoolVar(&deepExtract, "deep", false, "fetch linked judgment documents for full text")
	return cmd
}

func newCaseDetailCmd() *cobra.Command {
	var deepExtract bool
	cmd := &cobra.Command{
		Use:   "case-detail <url>",
		Short: "Ingests a known case-detail page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			id, err := a.pipeline.ScrapeCase(cmd.Context(), args[0], deepExtract)
			if err != nil {
				return err
			}
			a.logger.Info("case ingested", zap.Int64("case_id", id))
			return printJSON(map[string]int64{"case_id": id})
		},
	}
	cmd.Flags().BoolVar(&deepExtract, "deep", true, "fetch linked judgment documents for full text")
	return cmd
}

func newSearchCmd() *cobra.Command {
	var deepExtract bool
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Searches the configured listing site and ingests the results",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.pipeline.SearchAndScrape(cmd.Context(), args[0], deepExtract)
			if err != nil {
				return err
			}
			a.logger.Info("search finished",
				zap.String("query", args[0]),
				zap.Int("cases", len(result.CaseIDs)),
				zap.Int("failed", len(result.Failed)),
			)
			return printJSON(map[string]any{
				"query":          args[0],
				"saved_case_ids": result.CaseIDs,
			})
		},
	}
	cmd.Flags().BoolVar(&deepExtract, "deep", true, "fetch linked judgment documents for full text")
	return cmd
}

func printJSON(payload any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
