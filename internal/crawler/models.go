package crawler

import (
	"time"

	"github.com/masahif/sitegraph/internal/frontier"
	"github.com/masahif/sitegraph/internal/site"
)

// Page represents a fetched HTML page
type Page struct {
	URL         string    // Final URL after redirects
	Site        site.Site // Site of the final URL
	StatusCode  int       // HTTP status code (200, 404, 500, etc.)
	ContentType string    // HTTP Content-Type header
	ContentHash string    // xxhash of the body
	Body        []byte
	Metrics     HTTPMetrics
}

// CrawlStats represents crawling statistics
type CrawlStats struct {
	frontier.Stats
	StartTime time.Time
	Duration  time.Duration
}
