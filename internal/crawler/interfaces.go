package crawler

import (
	"context"

	"github.com/masahif/sitegraph/internal/frontier"
)

// Crawler defines the main crawling interface
type Crawler interface {
	// Run crawls until the frontier reports Done for every worker or ctx is
	// cancelled, and returns the final graph.
	Run(ctx context.Context) (*frontier.Snapshot, error)
	GetStats() CrawlStats
}

// Fetcher retrieves a single page. Implementations follow redirects, honor a
// bounded timeout and return an error for anything that is not an HTML page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Page, error)
}

// LinkExtractor returns the raw href values found in a page body.
type LinkExtractor interface {
	Extract(body []byte) ([]string, error)
}
