package tiled

import (
	"fmt"
	"sort"
	"sync"
)

// contribution is one tile's partial for a shared region. rank is the
// tile's position in the classification's tile order.
type contribution[P any] struct {
	rank  int
	value P
	err   error
}

// sharedCombiner collects the partials of shared regions. A region's entry
// lives from its first contribution until its last, so the map only ever
// holds regions that are in flight.
type sharedCombiner[P any] struct {
	// expected is read-only after construction.
	expected map[int]int

	mu      sync.Mutex
	pending map[int][]contribution[P]
	peak    int
}

func newSharedCombiner[P any](cl *Classification) *sharedCombiner[P] {
	expected := make(map[int]int, len(cl.SharedTiles))
	for id, tiles := range cl.SharedTiles {
		expected[id] = len(tiles)
	}
	return &sharedCombiner[P]{
		expected: expected,
		pending:  map[int][]contribution[P]{},
	}
}

// deliver records a partial for region id. When it is the region's last
// partial the entry is removed and its contributions are returned sorted
// by tile rank; exactly one deliver call per region returns ready.
func (c *sharedCombiner[P]) deliver(id int, part contribution[P]) ([]contribution[P], bool, error) {
	want, ok := c.expected[id]
	if !ok {
		return nil, false, fmt.Errorf("%w: partial for region %d, which is not shared", ErrInternalConsistency, id)
	}

	c.mu.Lock()
	parts, inFlight := c.pending[id]
	parts = append(parts, part)
	if len(parts) < want {
		c.pending[id] = parts
		if !inFlight {
			pendingSharedGauge.Inc()
			c.peak = max(c.peak, len(c.pending))
		}
		c.mu.Unlock()
		return nil, false, nil
	}
	delete(c.pending, id)
	c.mu.Unlock()

	if inFlight {
		pendingSharedGauge.Dec()
	}
	sort.Slice(parts, func(i, j int) bool { return parts[i].rank < parts[j].rank })
	return parts, true, nil
}

// peakPending returns the largest number of regions that were in flight
// at once.
func (c *sharedCombiner[P]) peakPending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peak
}

// discard drops every unresolved region and returns how many there were.
func (c *sharedCombiner[P]) discard() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := len(c.pending)
	pendingSharedGauge.Sub(float64(n))
	c.pending = map[int][]contribution[P]{}
	return n
}
