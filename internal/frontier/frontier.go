// Package frontier holds the shared crawl state: the seen set, the pending
// queue, the in-flight counter and the accumulated site graph.
//
// Workers interact with it only through Claim and Submit. Both run under a
// single mutex, so every invariant between the seen set, the pending queue
// and the graph holds at each lock release:
//
//   - every pending site is also seen, and a site is pending at most once
//   - a site gets at most one graph entry (first successful submit wins)
//   - each Claim that assigns a site is matched by exactly one Submit
//
// Completion is detected inside Claim: an empty pending queue with nothing in
// flight (or a cancelled frontier) yields Done.
package frontier

import (
	"math/rand/v2"
	"sync"
	"sync/atomic"

	"github.com/masahif/sitegraph/internal/site"
)

// State is the result kind of a Claim
type State int

const (
	// Assigned means the caller now owns the claimed site and must Submit it.
	Assigned State = iota
	// Wait means nothing is pending but work is in flight; retry later.
	Wait
	// Done means no work is left and none will arrive.
	Done
)

func (s State) String() string {
	switch s {
	case Assigned:
		return "assigned"
	case Wait:
		return "wait"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// Claim is the answer to a claim request.
type Claim struct {
	State State
	Site  site.Site
	wake  <-chan struct{}
}

// Wake returns a channel that is closed on the next frontier change after the
// claim was made: a push to pending, a completed submit or a cancellation.
func (c Claim) Wake() <-chan struct{} {
	return c.wake
}

// Outcome reports the result of processing a claimed site.
type Outcome struct {
	// Site is the site the graph entry is recorded under. It may differ from
	// the claimed site when the fetch was redirected.
	Site       site.Site
	Discovered []site.Site
	ok         bool
}

// Success reports a fetched and parsed page of s linking to discovered.
func Success(s site.Site, discovered []site.Site) Outcome {
	return Outcome{Site: s, Discovered: discovered, ok: true}
}

// Failure reports that the claimed site s yielded nothing.
func Failure(s site.Site) Outcome {
	return Outcome{Site: s}
}

// OK reports whether the outcome is a success
func (o Outcome) OK() bool {
	return o.ok
}

// Stats is a point-in-time view of the frontier counters.
type Stats struct {
	Seen     int
	Pending  int
	InFlight int
	Crawled  int
	Failed   int
}

// Frontier is the mutex-guarded crawl state. The zero value is not usable;
// create one with New.
type Frontier struct {
	mu sync.Mutex

	seed      site.Site
	seen      map[site.Site]struct{}
	seenOrder []site.Site

	pending *pendingSet
	inFlight int

	graph      map[site.Site][]site.Site
	graphOrder []site.Site

	failed int

	wake      chan struct{}
	cancelled atomic.Bool
	rng       *rand.Rand
}

// Option configures a Frontier.
type Option func(*Frontier)

// WithRand sets the random source used to pick pending sites.
func WithRand(r *rand.Rand) Option {
	return func(f *Frontier) {
		f.rng = r
	}
}

// New creates a frontier seeded with a single site, which is both seen and
// pending.
func New(seed site.Site, opts ...Option) *Frontier {
	f := &Frontier{
		seed:    seed,
		seen:    make(map[site.Site]struct{}),
		pending: newPendingSet(),
		graph:   make(map[site.Site][]site.Site),
		wake:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.rng == nil {
		f.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	f.discover(seed)
	f.pending.add(seed)
	return f
}

// Claim hands out one pending site chosen uniformly at random. When nothing
// is pending it returns Wait while work is in flight and Done otherwise.
// A cancelled frontier always returns Done.
func (f *Frontier) Claim() Claim {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.cancelled.Load() {
		return Claim{State: Done, wake: f.wake}
	}

	if f.pending.len() > 0 {
		s := f.pending.removeAt(f.rng.IntN(f.pending.len()))
		f.inFlight++
		return Claim{State: Assigned, Site: s, wake: f.wake}
	}

	if f.inFlight <= 0 {
		return Claim{State: Done, wake: f.wake}
	}
	return Claim{State: Wait, wake: f.wake}
}

// Submit resolves one claim. Successful outcomes record a graph entry for
// o.Site (unless one exists already) and push every newly discovered site to
// pending. Failures only release the claim.
func (f *Frontier) Submit(o Outcome) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.inFlight <= 0 {
		return ErrNotInFlight
	}
	f.inFlight--

	if !o.ok {
		f.failed++
		f.broadcast()
		return nil
	}

	for _, d := range o.Discovered {
		if f.discover(d) {
			f.pending.add(d)
		}
	}

	// The outcome site is normally already seen; a redirect to a new site
	// makes it known without queueing it.
	f.discover(o.Site)

	if _, exists := f.graph[o.Site]; !exists {
		f.graph[o.Site] = targets(o.Site, o.Discovered)
		f.graphOrder = append(f.graphOrder, o.Site)
	}

	f.broadcast()
	return nil
}

// Cancel forces every later Claim to return Done. Claims already handed out
// are still expected to Submit.
func (f *Frontier) Cancel() {
	if f.cancelled.Swap(true) {
		return
	}
	f.mu.Lock()
	f.broadcast()
	f.mu.Unlock()
}

// Cancelled reports whether Cancel was called
func (f *Frontier) Cancelled() bool {
	return f.cancelled.Load()
}

// Stats returns the current counters.
func (f *Frontier) Stats() Stats {
	f.mu.Lock()
	defer f.mu.Unlock()

	return Stats{
		Seen:     len(f.seenOrder),
		Pending:  f.pending.len(),
		InFlight: f.inFlight,
		Crawled:  len(f.graphOrder),
		Failed:   f.failed,
	}
}

// discover marks s as seen and reports whether it was new. Caller holds mu.
func (f *Frontier) discover(s site.Site) bool {
	if _, ok := f.seen[s]; ok {
		return false
	}
	f.seen[s] = struct{}{}
	f.seenOrder = append(f.seenOrder, s)
	return true
}

// broadcast wakes every waiter of the current wake channel. Caller holds mu.
func (f *Frontier) broadcast() {
	close(f.wake)
	f.wake = make(chan struct{})
}

// targets removes self-loops and duplicates while keeping first-seen order.
func targets(source site.Site, discovered []site.Site) []site.Site {
	out := make([]site.Site, 0, len(discovered))
	dup := make(map[site.Site]struct{}, len(discovered))
	for _, d := range discovered {
		if d == source {
			continue
		}
		if _, ok := dup[d]; ok {
			continue
		}
		dup[d] = struct{}{}
		out = append(out, d)
	}
	return out
}
