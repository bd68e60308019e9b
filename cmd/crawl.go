// Package cmd defines the CLI commands for the dicecrawler executable.
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/dice-jobs-crawler/internal/config"
	"github.com/JakeFAU/dice-jobs-crawler/internal/logging"
)

// flagKeys maps crawl flags to their configuration keys.
var flagKeys = map[string]string{
	"query":           "search.query",
	"location":        "search.location",
	"radius":          "search.radius",
	"posted-date":     "search.posted_date",
	"max-jobs":        "crawler.max_jobs",
	"max-concurrency": "crawler.max_concurrency",
	"details":         "crawler.scrape_job_details",
	"start-url":       "crawler.start_urls",
	"headless":        "headless.enabled",
	"output-dir":      "storage.output_dir",
	"port":            "server.port",
	"dev":             "logging.development",
}

func newCrawlCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Run one crawl and write the dataset",
		Long: `Seeds page 1 of the search API and the HTML results (or the given
start URLs), crawls until the frontier drains or --max-jobs listings were
produced, and writes a run summary.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawlCommand(cmd, v)
		},
	}

	f := cmd.Flags()
	f.String("query", "", "search query text")
	f.String("location", "", "search location")
	f.Int("radius", 0, "search radius in miles (0-500)")
	f.String("posted-date", "ANY", "posted date bucket: ANY, ONE, THREE, SEVEN or THIRTY")
	f.Int("max-jobs", 100, "stop after this many listings (0 = unbounded)")
	f.Int("max-concurrency", 5, "concurrent requests (1-50)")
	f.Bool("details", true, "follow each listing to its detail page")
	f.StringSlice("start-url", nil, "custom start URL, repeatable; replaces the search seeds")
	f.Bool("headless", false, "render HTML pages in headless Chrome when they look unrendered")
	f.String("output-dir", "./storage", "local dataset directory (empty disables)")
	f.Int("port", 0, "monitoring server port (0 disables)")
	f.Bool("dev", false, "human-readable development logging")

	for name, key := range flagKeys {
		if err := v.BindPFlag(key, f.Lookup(name)); err != nil {
			panic(fmt.Sprintf("bind flag %s: %v", name, err))
		}
	}
	return cmd
}

func runCrawlCommand(cmd *cobra.Command, v *viper.Viper) error {
	cfgPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("read --config: %w", err)
	}
	cfg, err := config.LoadWith(v, cfgPath)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync() // stderr/stdout sync fails on some platforms
	}()
	restore := zap.ReplaceGlobals(logger)
	defer restore()

	summary, err := runCrawl(cmd.Context(), cfg, logger)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Warn("crawl canceled, partial results kept", zap.Int64("listings", summary.ListingsPersisted))
			return nil
		}
		return fmt.Errorf("run crawl: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d listings, %d requests, %d errors in %dms\n",
		summary.RunID, summary.ListingsPersisted, summary.Requests, summary.Errors, summary.DurationMs)
	return nil
}
