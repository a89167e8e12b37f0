package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/easydom/hellosure/internal/app"
	"github.com/easydom/hellosure/internal/config"
	"github.com/easydom/hellosure/internal/ingest"
)

var (
	ingestStartURL string
	ingestMaxPages int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Crawl the product site and rebuild the document corpus",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(cmd)
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestStartURL, "start", "", "start URL (overrides config)")
	ingestCmd.Flags().IntVar(&ingestMaxPages, "max-pages", 500, "maximum number of pages to crawl")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := newLogger(cfg)

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	start := ingestStartURL
	if start == "" {
		start = cfg.IngestStartURL
	}

	source, err := ingest.NewSiteSource(start, ingestMaxPages, logger.With("component", "crawler"))
	if err != nil {
		return fmt.Errorf("creating site source: %w", err)
	}

	pipeline, err := ingest.NewPipeline(source, a.Store, cfg.IngestLockPath, logger.With("component", "ingest"))
	if err != nil {
		return fmt.Errorf("creating pipeline: %w", err)
	}

	stats, err := pipeline.Run(ctx)
	if err != nil {
		if errors.Is(err, ingest.ErrAlreadyRunning) {
			return fmt.Errorf("another ingestion holds %s: %w", cfg.IngestLockPath, err)
		}
		return fmt.Errorf("running ingestion: %w", err)
	}

	cmd.Printf("Ingested %d pages into %d chunks (%d documents in corpus)\n",
		stats.Pages, stats.Chunks, stats.Indexed)
	return nil
}
