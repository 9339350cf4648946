package frontier

import "github.com/masahif/sitegraph/internal/site"

// pendingSet is an unordered bag of sites with O(1) add and O(1) removal by
// index. Removal swaps the last element into the freed slot.
type pendingSet struct {
	items []site.Site
}

func newPendingSet() *pendingSet {
	return &pendingSet{}
}

func (p *pendingSet) len() int {
	return len(p.items)
}

func (p *pendingSet) add(s site.Site) {
	p.items = append(p.items, s)
}

// removeAt removes and returns the element at i. i must be in range.
func (p *pendingSet) removeAt(i int) site.Site {
	last := len(p.items) - 1
	s := p.items[i]
	p.items[i] = p.items[last]
	p.items[last] = ""
	p.items = p.items[:last]
	return s
}
