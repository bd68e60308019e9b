package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/JakeFAU/dice-jobs-crawler/internal/app"
	"github.com/JakeFAU/dice-jobs-crawler/internal/config"
	"github.com/JakeFAU/dice-jobs-crawler/internal/stats"
)

// runCrawl executes one crawl. It is a variable so tests can replace it.
var runCrawl = func(ctx context.Context, cfg config.Config, logger *zap.Logger) (stats.Summary, error) {
	runner, err := app.New(ctx, cfg, app.Deps{}, logger)
	if err != nil {
		return stats.Summary{}, fmt.Errorf("initialize crawl: %w", err)
	}
	defer runner.Close()
	return runner.Run(ctx)
}

// newRootCmd creates the root command and its subcommands. Flags are bound
// into v so they override file and environment configuration.
func newRootCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dicecrawler",
		Short: "Crawls job listings from Dice into a de-duplicated dataset.",
		Long: `dicecrawler searches Dice through its JSON search API and its HTML
results pages in parallel, optionally follows each listing to its detail
page, and writes every listing once to the configured stores.`,
		SilenceUsage: true,
	}
	cmd.PersistentFlags().String("config", "", "config file (default ./dicecrawler.yaml)")
	cmd.AddCommand(newCrawlCmd(v))
	return cmd
}

// Execute runs the CLI with ctx, which is canceled on SIGINT/SIGTERM.
func Execute(ctx context.Context) error {
	if err := newRootCmd(viper.New()).ExecuteContext(ctx); err != nil {
		return fmt.Errorf("dicecrawler: %w", err)
	}
	return nil
}
