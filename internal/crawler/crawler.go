// Package crawler provides the concurrent site crawler.
// A fixed pool of workers claims sites from a shared frontier, fetches them,
// extracts and normalizes their links and submits the result back, until the
// frontier reports that no work is left or the crawl is cancelled.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/masahif/sitegraph/internal/config"
	"github.com/masahif/sitegraph/internal/frontier"
	"github.com/masahif/sitegraph/internal/site"
)

// ErrWorkerPanic is returned by Run when a worker panicked. The crawl is
// aborted because the shared state can no longer be trusted.
var ErrWorkerPanic = errors.New("crawl worker panicked")

// DefaultCrawler implements the Crawler interface
type DefaultCrawler struct {
	config      *config.CrawlConfig
	fetcher     Fetcher
	extractor   LinkExtractor
	resolver    *LinkResolver
	rateLimiter *RateLimiter
	frontier    *frontier.Frontier

	startTime time.Time
	statsMu   sync.RWMutex
}

// NewCrawler creates a crawler for cfg's seed site. The frontier is created
// and seeded immediately; call Run to start the workers.
func NewCrawler(cfg *config.CrawlConfig, fetcher Fetcher, extractor LinkExtractor, opts ...frontier.Option) (*DefaultCrawler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if fetcher == nil || extractor == nil {
		return nil, errors.New("crawler needs a fetcher and a link extractor")
	}

	return &DefaultCrawler{
		config:      cfg,
		fetcher:     fetcher,
		extractor:   extractor,
		resolver:    NewLinkResolver(),
		rateLimiter: NewRateLimiter(cfg.MaxRequestsPerSecond),
		frontier:    frontier.New(cfg.SeedSite(), opts...),
	}, nil
}

// Run starts the workers and blocks until all of them stopped.
//
// Cancelling ctx cancels the frontier: idle workers stop at once, busy
// workers finish (or abort) their fetch, submit it and stop at their next
// claim. The returned snapshot is taken after every worker returned, for
// natural completion, cancellation and fatal errors alike.
func (c *DefaultCrawler) Run(ctx context.Context) (*frontier.Snapshot, error) {
	c.statsMu.Lock()
	c.startTime = time.Now()
	c.statsMu.Unlock()

	slog.Info("Starting crawler",
		"seed", c.config.SeedSite(),
		"workers", c.config.Concurrency,
		"rate_limited", c.rateLimiter.Enabled(),
		"max_requests_per_second", c.config.MaxRequestsPerSecond,
	)

	stop := context.AfterFunc(ctx, c.frontier.Cancel)
	defer stop()

	reporterCtx, stopReporter := context.WithCancel(ctx)
	var reporter sync.WaitGroup
	if c.config.ProgressInterval > 0 {
		reporter.Add(1)
		go func() {
			defer reporter.Done()
			c.statsReporter(reporterCtx)
		}()
	}

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < c.config.Concurrency; i++ {
		id := i
		g.Go(func() error {
			return c.runWorker(gctx, id)
		})
	}

	err := g.Wait()
	stopReporter()
	reporter.Wait()

	// AfterFunc runs asynchronously; make sure a cancelled run is marked
	// before the snapshot is taken.
	if ctx.Err() != nil {
		c.frontier.Cancel()
	}

	snapshot := c.frontier.Snapshot()
	stats := c.GetStats()

	switch {
	case err != nil:
		slog.Error("Crawling aborted", "error", err, "crawled", stats.Crawled, "seen", stats.Seen)
		return snapshot, err
	case snapshot.Cancelled:
		slog.Info("Crawling cancelled", "crawled", stats.Crawled, "seen", stats.Seen, "duration", stats.Duration)
	default:
		slog.Info("Crawling completed", "crawled", stats.Crawled, "seen", stats.Seen, "duration", stats.Duration)
	}

	return snapshot, nil
}

// GetStats returns current crawling statistics
func (c *DefaultCrawler) GetStats() CrawlStats {
	c.statsMu.RLock()
	start := c.startTime
	c.statsMu.RUnlock()

	stats := CrawlStats{
		Stats:     c.frontier.Stats(),
		StartTime: start,
	}
	if !start.IsZero() {
		stats.Duration = time.Since(start)
	}
	return stats
}

// runWorker runs the worker loop and turns a panic into a fatal crawl error.
func (c *DefaultCrawler) runWorker(ctx context.Context, id int) (err error) {
	defer func() {
		if r := recover(); r != nil {
			c.frontier.Cancel()
			slog.Error("Worker panicked", "worker_id", id, "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("%w: worker %d: %v", ErrWorkerPanic, id, r)
		}
	}()

	c.worker(ctx, id)
	return nil
}

// worker claims sites until the frontier reports Done.
// Termination conditions:
// 1. Claim returns Done (nothing pending, nothing in flight, or cancelled)
// 2. Context cancelled while waiting for work
func (c *DefaultCrawler) worker(ctx context.Context, id int) {
	slog.Debug("Worker started", "worker_id", id)
	defer slog.Debug("Worker stopped", "worker_id", id)

	for {
		if ctx.Err() != nil {
			return
		}

		claim := c.frontier.Claim()
		switch claim.State {
		case frontier.Done:
			return
		case frontier.Wait:
			if !c.waitForWork(ctx, claim) {
				return
			}
			continue
		}

		c.processSite(ctx, id, claim.Site)
	}
}

// waitForWork blocks until the frontier changes, the poll interval elapses
// or ctx is done. It returns false when the worker should stop.
func (c *DefaultCrawler) waitForWork(ctx context.Context, claim frontier.Claim) bool {
	timer := time.NewTimer(c.config.PollInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-claim.Wake():
	case <-timer.C:
	}
	return true
}

// processSite fetches and parses one claimed site and always submits exactly
// one outcome for it.
func (c *DefaultCrawler) processSite(ctx context.Context, id int, claimed site.Site) {
	outcome := c.visit(ctx, id, claimed)
	if err := c.frontier.Submit(outcome); err != nil {
		slog.Error("Worker failed to submit", "worker_id", id, "site", claimed, "error", err)
	}
}

// visit produces the outcome for a claimed site.
func (c *DefaultCrawler) visit(ctx context.Context, id int, claimed site.Site) frontier.Outcome {
	url := site.URL(claimed, c.config.Scheme)

	if err := c.rateLimiter.Wait(ctx); err != nil {
		slog.Debug("Worker rate limiting aborted", "worker_id", id, "url", url, "error", err)
		return frontier.Failure(claimed)
	}

	slog.Debug("Worker fetching", "worker_id", id, "url", url)

	page, err := c.fetcher.Fetch(ctx, url)
	if err != nil {
		slog.Info("Worker failed to fetch site", "worker_id", id, "url", url, "error", err)
		return frontier.Failure(claimed)
	}

	hrefs, err := c.extractor.Extract(page.Body)
	if err != nil {
		slog.Info("Worker failed to extract links", "worker_id", id, "url", page.URL, "error", err)
		return frontier.Failure(claimed)
	}

	source := page.Site
	if source == "" {
		source = site.Normalize(page.URL)
	}
	discovered := c.resolver.Sites(page.URL, hrefs)

	slog.Info("Worker processed site",
		"worker_id", id,
		"site", source,
		"url", page.URL,
		"status", page.StatusCode,
		"links", len(hrefs),
		"sites", len(discovered),
		"ttfb", page.Metrics.TTFB,
	)
	if source != claimed {
		slog.Debug("Site redirected", "worker_id", id, "claimed", claimed, "site", source)
	}

	return frontier.Success(source, discovered)
}

// statsReporter periodically reports crawling statistics
func (c *DefaultCrawler) statsReporter(ctx context.Context) {
	ticker := time.NewTicker(c.config.ProgressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := c.GetStats()
			slog.Info("Crawling stats",
				"seen", stats.Seen,
				"pending", stats.Pending,
				"in_flight", stats.InFlight,
				"crawled", stats.Crawled,
				"failed", stats.Failed,
				"duration", stats.Duration,
			)
		}
	}
}
