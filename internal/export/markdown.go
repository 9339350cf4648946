package export

import (
	"cmp"
	"io"
	"slices"
	"strconv"
	"time"

	"github.com/nao1215/markdown"

	"github.com/masahif/sitegraph/internal/frontier"
	"github.com/masahif/sitegraph/internal/site"
)

// topLinkedLimit caps the "most linked sites" table.
const topLinkedLimit = 10

// Report is the input of the Markdown report.
type Report struct {
	CrawlID    string
	StartedAt  time.Time
	FinishedAt time.Time
	Snapshot   *frontier.Snapshot

	// Settings are the crawl options to list, such as "concurrency" or
	// "extractor". Empty values are skipped.
	Settings map[string]string
}

// WriteMarkdown writes a crawl summary in GitHub-flavored Markdown.
func WriteMarkdown(w io.Writer, r Report) error {
	md := markdown.NewMarkdown(w)

	writeSummary(md, r)
	writeSettings(md, r.Settings)
	writeTopLinked(md, r.Snapshot)
	writeCrawled(md, r.Snapshot)

	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Generated by sitegraph*")

	return md.Build()
}

// WriteMarkdownFile writes the report to path.
func WriteMarkdownFile(path string, r Report) error {
	return WriteFile(path, func(w io.Writer) error {
		return WriteMarkdown(w, r)
	})
}

func writeSummary(md *markdown.Markdown, r Report) {
	snap := r.Snapshot

	md.H1("Site Graph: " + snap.Seed.String())
	md.PlainText("")

	rows := [][]string{
		{"Seed", "`" + snap.Seed.String() + "`"},
	}
	if r.CrawlID != "" {
		rows = append(rows, []string{"Crawl ID", "`" + r.CrawlID + "`"})
	}
	if !r.StartedAt.IsZero() {
		rows = append(rows, []string{"Started", r.StartedAt.Format("2006-01-02 15:04:05 MST")})
	}
	if !r.StartedAt.IsZero() && !r.FinishedAt.IsZero() {
		rows = append(rows, []string{"Duration", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond).String()})
	}
	rows = append(rows,
		[]string{"Status", status(snap)},
		[]string{"Sites Seen", strconv.Itoa(len(snap.Seen))},
		[]string{"Sites Crawled", strconv.Itoa(len(snap.Edges))},
		[]string{"Sites Not Crawled", strconv.Itoa(len(snap.Seen) - len(snap.Edges))},
		[]string{"Links", strconv.Itoa(snap.EdgeCount())},
	)

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")

	if snap.Cancelled {
		md.Warning("The crawl was cancelled. The graph only covers the sites crawled before cancellation.")
		md.PlainText("")
	}
}

func writeSettings(md *markdown.Markdown, settings map[string]string) {
	keys := make([]string, 0, len(settings))
	for k, v := range settings {
		if v != "" {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return
	}
	slices.Sort(keys)

	rows := make([][]string, len(keys))
	for i, k := range keys {
		rows[i] = []string{k, "`" + settings[k] + "`"}
	}

	md.H2("Crawl Settings")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Setting", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

func status(snap *frontier.Snapshot) string {
	if snap.Cancelled {
		return "Cancelled (partial graph)"
	}
	return "Complete"
}

type linkedSite struct {
	site  site.Site
	count int
}

// topLinked returns the sites with the most incoming links, ties broken by
// name.
func topLinked(snap *frontier.Snapshot, limit int) []linkedSite {
	in := snap.InDegree()
	out := make([]linkedSite, 0, len(in))
	for s, n := range in {
		out = append(out, linkedSite{site: s, count: n})
	}
	slices.SortFunc(out, func(a, b linkedSite) int {
		if c := cmp.Compare(b.count, a.count); c != 0 {
			return c
		}
		return cmp.Compare(a.site, b.site)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func writeTopLinked(md *markdown.Markdown, snap *frontier.Snapshot) {
	md.H2("Most Linked Sites")
	md.PlainText("")

	top := topLinked(snap, topLinkedLimit)
	if len(top) == 0 {
		md.PlainText("No links recorded.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(top))
	for i, ls := range top {
		crawled := "no"
		if snap.Crawled(ls.site) {
			crawled = "yes"
		}
		rows[i] = []string{strconv.Itoa(i + 1), ls.site.String(), strconv.Itoa(ls.count), crawled}
	}
	md.Table(markdown.TableSet{
		Header: []string{"#", "Site", "Incoming Links", "Crawled"},
		Rows:   rows,
	})
	md.PlainText("")
}

func writeCrawled(md *markdown.Markdown, snap *frontier.Snapshot) {
	md.H2("Crawled Sites")
	md.PlainText("")

	if len(snap.Edges) == 0 {
		md.PlainText("No site was crawled successfully.")
		md.PlainText("")
		return
	}

	items := make([]string, len(snap.Edges))
	for i, adj := range snap.Edges {
		items[i] = adj.Source.String() + " (" + strconv.Itoa(len(adj.Targets)) + " outgoing)"
	}
	md.BulletList(items...)
	md.PlainText("")
}
