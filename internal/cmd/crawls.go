package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"
)

var crawlsCmd = &cobra.Command{
	Use:   "crawls",
	Short: "List the crawls stored in the database",
	Args:  cobra.NoArgs,
	RunE:  runListCrawls,
}

var deleteCrawlCmd = &cobra.Command{
	Use:   "delete <crawl-id>",
	Short: "Delete a stored crawl",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeleteCrawl,
}

func init() {
	crawlsCmd.AddCommand(deleteCrawlCmd)
}

func runListCrawls(cmd *cobra.Command, _ []string) error {
	store, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	records, err := store.ListCrawls(commandContext(cmd))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(records) == 0 {
		_, err := fmt.Fprintln(out, "No crawls stored.")
		return err
	}

	rows := make([][]string, len(records))
	for i, rec := range records {
		rows[i] = []string{
			rec.ID.String(),
			rec.Seed.String(),
			rec.Status,
			rec.StartedAt.Local().Format("2006-01-02 15:04:05"),
			rec.FinishedAt.Sub(rec.StartedAt).Round(time.Millisecond).String(),
			strconv.Itoa(rec.SitesCrawled),
			strconv.Itoa(rec.SitesSeen),
			strconv.Itoa(rec.EdgeCount),
		}
	}

	md := markdown.NewMarkdown(out)
	md.Table(markdown.TableSet{
		Header: []string{"ID", "Seed", "Status", "Started", "Duration", "Crawled", "Seen", "Links"},
		Rows:   rows,
	})
	return md.Build()
}

func runDeleteCrawl(cmd *cobra.Command, args []string) error {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid crawl id %q: %w", args[0], err)
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.DeleteCrawl(commandContext(cmd), id); err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "Deleted crawl %s\n", id)
	return err
}
