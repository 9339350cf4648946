package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/masahif/sitegraph/internal/config"
	"github.com/masahif/sitegraph/internal/crawler"
	"github.com/masahif/sitegraph/internal/export"
	"github.com/masahif/sitegraph/internal/frontier"
	"github.com/masahif/sitegraph/internal/logging"
	"github.com/masahif/sitegraph/internal/parser"
	"github.com/masahif/sitegraph/internal/storage"
)

// crawlResult is what the exporters receive after Run returned.
type crawlResult struct {
	ID         uuid.UUID
	StartedAt  time.Time
	FinishedAt time.Time
	Snapshot   *frontier.Snapshot
	Aborted    bool
}

func runCrawler(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	if showConfig, _ := cmd.Flags().GetBool("show-config"); showConfig {
		return showCurrentConfig(cmd.OutOrStdout(), cfg)
	}

	logCfg, err := loggingConfig()
	if err != nil {
		return err
	}
	logCloser, err := logging.SetDefault(logCfg)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}
	defer func() { _ = logCloser.Close() }()

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	client := crawler.NewHTTPClient(cfg.UserAgent, cfg.RequestTimeout, cfg.MaxBodySize)
	defer client.Close()

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runPipeline(ctx, cfg, client, cmd.OutOrStdout())
}

// runPipeline crawls from cfg's seed with fetcher and runs the exporters
// exactly once on the final graph, also after cancellation or a fatal crawl
// error.
func runPipeline(ctx context.Context, cfg *config.CrawlConfig, fetcher crawler.Fetcher, out io.Writer) error {
	extractor, err := parser.New(parser.Kind(cfg.Extractor))
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	c, err := crawler.NewCrawler(cfg, fetcher, extractor)
	if err != nil {
		return fmt.Errorf("failed to initialize crawler: %w", err)
	}

	result := crawlResult{
		ID:        uuid.New(),
		StartedAt: time.Now(),
	}
	slog.Info("Crawl started", "crawl_id", result.ID, "seed", cfg.SeedSite(), "graph", cfg.GraphPath())

	snapshot, runErr := c.Run(ctx)
	result.FinishedAt = time.Now()
	result.Snapshot = snapshot
	result.Aborted = runErr != nil

	// Exporters must run even when ctx was cancelled.
	exportErr := exportResults(context.WithoutCancel(ctx), cfg, result, out)

	return errors.Join(runErr, exportErr)
}

// exportResults writes the DOT graph and, when configured, the Markdown
// report and the database dump. Every configured exporter is attempted.
func exportResults(ctx context.Context, cfg *config.CrawlConfig, result crawlResult, out io.Writer) error {
	snap := result.Snapshot
	var errs []error

	graphPath := cfg.GraphPath()
	if err := export.WriteDOTFile(graphPath, snap); err != nil {
		errs = append(errs, fmt.Errorf("failed to write graph: %w", err))
	} else {
		fmt.Fprintf(out, "Wrote %s: %d sites crawled, %d seen, %d links\n",
			graphPath, len(snap.Edges), len(snap.Seen), snap.EdgeCount())
	}

	if cfg.ReportPath != "" {
		report := export.Report{
			CrawlID:    result.ID.String(),
			StartedAt:  result.StartedAt,
			FinishedAt: result.FinishedAt,
			Snapshot:   snap,
			Settings:   crawlSettings(cfg),
		}
		if err := export.WriteMarkdownFile(cfg.ReportPath, report); err != nil {
			errs = append(errs, fmt.Errorf("failed to write report: %w", err))
		} else {
			fmt.Fprintf(out, "Wrote report %s\n", cfg.ReportPath)
		}
	}

	if cfg.DatabasePath != "" {
		if err := saveCrawl(ctx, cfg, result); err != nil {
			errs = append(errs, err)
		} else {
			fmt.Fprintf(out, "Stored crawl %s in %s\n", result.ID, cfg.DatabasePath)
		}
	}

	return errors.Join(errs...)
}

func saveCrawl(ctx context.Context, cfg *config.CrawlConfig, result crawlResult) error {
	store, err := storage.NewSQLiteStorage(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = store.Close() }()

	crawl := &storage.Crawl{
		ID:         result.ID,
		StartedAt:  result.StartedAt,
		FinishedAt: result.FinishedAt,
		Snapshot:   result.Snapshot,
		Aborted:    result.Aborted,
		Meta:       crawlSettings(cfg),
	}
	if err := store.SaveCrawl(ctx, crawl); err != nil {
		return fmt.Errorf("failed to store crawl: %w", err)
	}
	return nil
}

// settingKeys are the crawl options stored as crawl metadata and listed in
// Markdown reports.
var settingKeys = []string{"concurrency", "extractor", "scheme", "user_agent", "request_timeout", "seed_url"}

func crawlSettings(cfg *config.CrawlConfig) map[string]string {
	return map[string]string{
		"concurrency":     strconv.Itoa(cfg.Concurrency),
		"extractor":       cfg.Extractor,
		"scheme":          cfg.Scheme,
		"user_agent":      cfg.UserAgent,
		"request_timeout": cfg.RequestTimeout.String(),
		"seed_url":        cfg.SeedURL,
	}
}
