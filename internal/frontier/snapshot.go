package frontier

import "github.com/masahif/sitegraph/internal/site"

// Adjacency is one recorded graph entry: the sites a crawled site links to.
type Adjacency struct {
	Source  site.Site
	Targets []site.Site
}

// Snapshot is a read-only copy of the frontier taken for export.
type Snapshot struct {
	Seed      site.Site
	Seen      []site.Site // discovery order
	Edges     []Adjacency // graph insertion order
	Cancelled bool
}

// Snapshot copies the seen sites and the graph in their insertion order.
func (f *Frontier) Snapshot() *Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()

	snap := &Snapshot{
		Seed:      f.seed,
		Seen:      append([]site.Site(nil), f.seenOrder...),
		Edges:     make([]Adjacency, 0, len(f.graphOrder)),
		Cancelled: f.cancelled.Load(),
	}
	for _, src := range f.graphOrder {
		snap.Edges = append(snap.Edges, Adjacency{
			Source:  src,
			Targets: append([]site.Site(nil), f.graph[src]...),
		})
	}
	return snap
}

// EdgeCount returns the number of directed edges in the snapshot
func (s *Snapshot) EdgeCount() int {
	n := 0
	for _, adj := range s.Edges {
		n += len(adj.Targets)
	}
	return n
}

// Crawled reports whether target has a graph entry.
func (s *Snapshot) Crawled(target site.Site) bool {
	for _, adj := range s.Edges {
		if adj.Source == target {
			return true
		}
	}
	return false
}

// InDegree counts incoming edges per site.
func (s *Snapshot) InDegree() map[site.Site]int {
	in := make(map[site.Site]int, len(s.Seen))
	for _, adj := range s.Edges {
		for _, t := range adj.Targets {
			in[t]++
		}
	}
	return in
}
