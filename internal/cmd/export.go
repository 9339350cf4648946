package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/masahif/sitegraph/internal/export"
	"github.com/masahif/sitegraph/internal/storage"
)

// ErrNoDatabase is returned by the database commands when no database path is configured
var ErrNoDatabase = errors.New("no database configured, use --database or SG_DATABASE_PATH")

var exportCmd = &cobra.Command{
	Use:   "export <crawl-id>",
	Short: "Export a stored crawl graph",
	Long: `Export a crawl stored with --database as a DOT graph or a Markdown report.
The output goes to stdout unless --output is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringP("output", "o", "", "Output file (default stdout)")
	exportCmd.Flags().StringP("format", "f", "dot", "Output format: dot or markdown")
}

func runExport(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid crawl id %q: %w", args[0], err)
	}

	format, _ := cmd.Flags().GetString("format")
	output, _ := cmd.Flags().GetString("output")

	store, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	ctx := commandContext(cmd)

	var write func(io.Writer) error
	switch format {
	case "dot":
		snap, err := store.LoadGraph(ctx, id)
		if err != nil {
			return err
		}
		write = func(w io.Writer) error { return export.WriteDOT(w, snap) }
	case "markdown", "md":
		rec, err := store.GetCrawl(ctx, id)
		if err != nil {
			return err
		}
		snap, err := store.LoadGraph(ctx, id)
		if err != nil {
			return err
		}
		settings, err := loadSettings(ctx, store, id)
		if err != nil {
			return err
		}
		report := export.Report{
			CrawlID:    rec.ID.String(),
			StartedAt:  rec.StartedAt,
			FinishedAt: rec.FinishedAt,
			Snapshot:   snap,
			Settings:   settings,
		}
		write = func(w io.Writer) error { return export.WriteMarkdown(w, report) }
	default:
		return fmt.Errorf("unknown export format %q", format)
	}

	if output == "" || output == "-" {
		return write(cmd.OutOrStdout())
	}
	return export.WriteFile(output, write)
}

// loadSettings reads the stored crawl options of a crawl. Crawls stored
// without an option simply lack it.
func loadSettings(ctx context.Context, store *storage.SQLiteStorage, id uuid.UUID) (map[string]string, error) {
	settings := make(map[string]string, len(settingKeys))
	for _, key := range settingKeys {
		value, err := store.GetMeta(ctx, id, key)
		if err != nil {
			return nil, err
		}
		settings[key] = value
	}
	return settings, nil
}

// commandContext returns the context of cmd, which is nil when cmd was not
// started through Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// openStore opens the database configured through --database.
func openStore() (*storage.SQLiteStorage, error) {
	path := viper.GetString("database_path")
	if path == "" {
		return nil, ErrNoDatabase
	}
	store, err := storage.NewSQLiteStorage(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database %s: %w", path, err)
	}
	return store, nil
}
