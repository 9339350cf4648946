package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/masahif/sitegraph/internal/config"
	"github.com/masahif/sitegraph/internal/frontier"
	"github.com/masahif/sitegraph/internal/site"
)

func init() {
	// Set error level logging during tests to only show critical issues
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
	slog.SetDefault(logger)
}

// fakeWeb serves a fixed site graph. Each page body is its list of hrefs,
// one per line.
type fakeWeb struct {
	links     map[site.Site][]string
	failing   map[site.Site]bool
	redirects map[site.Site]site.Site
	blocking  map[site.Site]bool
	delay     time.Duration

	active  atomic.Int32
	maxSeen atomic.Int32
	fetches atomic.Int32
	started chan site.Site
}

func (w *fakeWeb) Fetch(ctx context.Context, url string) (*Page, error) {
	n := w.active.Add(1)
	defer w.active.Add(-1)
	for {
		m := w.maxSeen.Load()
		if n <= m || w.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	w.fetches.Add(1)

	s := site.Normalize(url)

	if w.started != nil {
		w.started <- s
	}

	if w.blocking[s] {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if w.delay > 0 {
		select {
		case <-time.After(w.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if w.failing[s] {
		return nil, errors.New("connection refused")
	}

	final := s
	if to, ok := w.redirects[s]; ok {
		final = to
	}

	return &Page{
		URL:        "https://" + string(final) + "/",
		Site:       final,
		StatusCode: 200,
		Body:       []byte(strings.Join(w.links[final], "\n")),
	}, nil
}

// lineExtractor treats every line of the body as an href.
type lineExtractor struct{}

func (lineExtractor) Extract(body []byte) ([]string, error) {
	return strings.Fields(string(body)), nil
}

type panicExtractor struct{}

func (panicExtractor) Extract([]byte) ([]string, error) {
	panic("corrupted parser state")
}

func testConfig(seed string, workers int) *config.CrawlConfig {
	cfg := config.DefaultConfig()
	cfg.SeedURL = seed
	cfg.Concurrency = workers
	cfg.PollInterval = 20 * time.Millisecond
	cfg.ProgressInterval = 0
	return cfg
}

func graphOf(snap *frontier.Snapshot) map[site.Site][]site.Site {
	g := make(map[site.Site][]site.Site, len(snap.Edges))
	for _, adj := range snap.Edges {
		g[adj.Source] = adj.Targets
	}
	return g
}

// layeredWeb builds an acyclic graph where site i links to sites 2i+1 and
// 2i+2, through a mix of absolute, subdomain and filtered hrefs.
func layeredWeb(m int) (*fakeWeb, map[site.Site][]site.Site) {
	name := func(i int) site.Site { return site.Site(fmt.Sprintf("site%02d.com", i)) }
	web := &fakeWeb{links: map[site.Site][]string{}}
	want := map[site.Site][]site.Site{}

	for i := 0; i < m; i++ {
		var hrefs []string
		var targets []site.Site
		hrefs = append(hrefs, "/about", "mailto:me@"+string(name(i)), "https://cdn."+string(name(i))+"/logo.png")
		for _, j := range []int{2*i + 1, 2*i + 2} {
			if j >= m {
				continue
			}
			hrefs = append(hrefs, "https://www."+string(name(j))+"/index.html", "http://blog."+string(name(j))+"/")
			targets = append(targets, name(j))
		}
		web.links[name(i)] = hrefs
		want[name(i)] = targets
	}
	return web, want
}

func TestCrawlerGraphIndependentOfWorkerCount(t *testing.T) {
	const m = 31

	for _, workers := range []int{1, 2, 4, 8} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			web, want := layeredWeb(m)
			web.delay = time.Millisecond

			c, err := NewCrawler(testConfig("site00.com", workers), web, lineExtractor{})
			require.NoError(t, err)

			snap, err := c.Run(context.Background())
			require.NoError(t, err)

			got := graphOf(snap)
			require.Len(t, got, m)
			for s, targets := range want {
				if len(targets) == 0 {
					assert.Empty(t, got[s], "site %s", s)
					continue
				}
				assert.Equal(t, targets, got[s], "site %s", s)
			}
			assert.Len(t, snap.Seen, m)
			assert.Equal(t, site.Site("site00.com"), snap.Seen[0])
			assert.False(t, snap.Cancelled)
			assert.Equal(t, int32(m), web.fetches.Load(), "every site fetched exactly once")

			stats := c.GetStats()
			assert.Equal(t, 0, stats.InFlight)
			assert.Equal(t, 0, stats.Pending)
			assert.Equal(t, m, stats.Crawled)
		})
	}
}

func TestCrawlerFailedFetchLeavesNodeWithoutEdges(t *testing.T) {
	web := &fakeWeb{
		links: map[site.Site][]string{
			"alpha.com":   {"https://bravo.com/", "https://www.charlie.com/"},
			"charlie.com": {"https://alpha.com/"},
		},
		failing: map[site.Site]bool{"bravo.com": true},
	}

	c, err := NewCrawler(testConfig("https://www.alpha.com/start", 3), web, lineExtractor{})
	require.NoError(t, err)

	snap, err := c.Run(context.Background())
	require.NoError(t, err)

	got := graphOf(snap)
	assert.Equal(t, []site.Site{"bravo.com", "charlie.com"}, got["alpha.com"])
	assert.Equal(t, []site.Site{"alpha.com"}, got["charlie.com"])
	assert.NotContains(t, got, site.Site("bravo.com"))
	assert.ElementsMatch(t, []site.Site{"alpha.com", "bravo.com", "charlie.com"}, snap.Seen)
	assert.Equal(t, 1, c.GetStats().Failed)
}

func TestCrawlerRecordsRedirectTarget(t *testing.T) {
	web := &fakeWeb{
		links: map[site.Site][]string{
			"oldsite.com": {"https://ignored.com/"},
			"newsite.org": {"https://xray.com/"},
		},
		redirects: map[site.Site]site.Site{"oldsite.com": "newsite.org"},
	}

	c, err := NewCrawler(testConfig("oldsite.com", 2), web, lineExtractor{})
	require.NoError(t, err)

	snap, err := c.Run(context.Background())
	require.NoError(t, err)

	got := graphOf(snap)
	assert.Equal(t, []site.Site{"xray.com"}, got["newsite.org"])
	assert.NotContains(t, got, site.Site("oldsite.com"))
	assert.Equal(t, []site.Site{"oldsite.com", "xray.com", "newsite.org"}, snap.Seen)
}

func TestCrawlerNeverFinishesWhileFetching(t *testing.T) {
	web := &fakeWeb{
		links: map[site.Site][]string{
			"alpha.com":   {"https://bravo.com/"},
			"bravo.com":   {"https://charlie.com/"},
			"charlie.com": {"https://delta.com/"},
		},
		delay: 30 * time.Millisecond,
	}

	c, err := NewCrawler(testConfig("alpha.com", 6), web, lineExtractor{})
	require.NoError(t, err)

	snap, err := c.Run(context.Background())
	require.NoError(t, err)

	// A chain forces every idle worker through Wait; all four sites must
	// still be resolved before Run returns.
	assert.Equal(t, int32(0), web.active.Load())
	assert.Equal(t, int32(4), web.fetches.Load())
	assert.Len(t, snap.Edges, 4)
	assert.Equal(t, int32(1), web.maxSeen.Load(), "a chain never has two fetches in parallel")
}

func TestCrawlerCancellation(t *testing.T) {
	web := &fakeWeb{
		links: map[site.Site][]string{
			"alpha.com": {"https://slow1.com/", "https://slow2.com/", "https://slow3.com/", "https://slow4.com/"},
		},
		blocking: map[site.Site]bool{
			"slow1.com": true, "slow2.com": true, "slow3.com": true, "slow4.com": true,
		},
		started: make(chan site.Site, 16),
	}

	cfg := testConfig("alpha.com", 3)
	c, err := NewCrawler(cfg, web, lineExtractor{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type result struct {
		snap *frontier.Snapshot
		err  error
	}
	done := make(chan result, 1)
	go func() {
		snap, err := c.Run(ctx)
		done <- result{snap, err}
	}()

	// Seed plus three blocked fetches: every worker is busy.
	for i := 0; i < 4; i++ {
		select {
		case <-web.started:
		case <-time.After(2 * time.Second):
			t.Fatal("workers did not start fetching")
		}
	}

	cancelledAt := time.Now()
	cancel()

	var res result
	select {
	case res = <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("crawler did not stop after cancellation")
	}

	require.NoError(t, res.err)
	assert.Less(t, time.Since(cancelledAt), cfg.PollInterval+500*time.Millisecond)
	assert.True(t, res.snap.Cancelled)
	assert.Len(t, res.snap.Edges, 1)
	assert.Len(t, res.snap.Seen, 5)

	stats := c.GetStats()
	assert.Equal(t, 0, stats.InFlight, "every claim was submitted")
	assert.Equal(t, 3, stats.Failed)
	assert.Equal(t, 1, stats.Pending, "the unclaimed site stays pending")
}

func TestCrawlerWorkerPanicAbortsCrawl(t *testing.T) {
	web := &fakeWeb{links: map[site.Site][]string{"alpha.com": {"https://bravo.com/"}}}

	c, err := NewCrawler(testConfig("alpha.com", 4), web, panicExtractor{})
	require.NoError(t, err)

	snap, err := c.Run(context.Background())
	require.ErrorIs(t, err, ErrWorkerPanic)
	require.NotNil(t, snap)
	assert.True(t, snap.Cancelled)
}

func TestCrawlerRateLimit(t *testing.T) {
	web := &fakeWeb{
		links: map[site.Site][]string{
			"alpha.com": {"https://bravo.com/", "https://charlie.com/"},
		},
	}

	cfg := testConfig("alpha.com", 3)
	cfg.MaxRequestsPerSecond = 20 // one request every 50ms

	c, err := NewCrawler(cfg, web, lineExtractor{})
	require.NoError(t, err)

	start := time.Now()
	_, err = c.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(3), web.fetches.Load())
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestCrawlerStartLogReportsRateLimit(t *testing.T) {
	previous := slog.Default()
	defer slog.SetDefault(previous)

	for _, rps := range []float64{0, 20} {
		var buf strings.Builder
		slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})))

		cfg := testConfig("alpha.com", 1)
		cfg.MaxRequestsPerSecond = rps
		c, err := NewCrawler(cfg, &fakeWeb{}, lineExtractor{})
		require.NoError(t, err)
		_, err = c.Run(context.Background())
		require.NoError(t, err)

		want := fmt.Sprintf("rate_limited=%t", rps > 0)
		assert.Contains(t, buf.String(), "Starting crawler")
		assert.Contains(t, buf.String(), want, "rps=%v", rps)
	}
}

func TestNewCrawlerValidation(t *testing.T) {
	_, err := NewCrawler(testConfig("alpha.com", 0), &fakeWeb{}, lineExtractor{})
	require.ErrorIs(t, err, config.ErrInvalidConcurrency)

	_, err = NewCrawler(testConfig("alpha.com", 1), nil, lineExtractor{})
	require.Error(t, err)
}
