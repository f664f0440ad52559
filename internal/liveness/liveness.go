// Package liveness tracks outstanding read/write operations routed to each
// adult, surfacing adults that exceed a pending-operation threshold as
// eviction candidates (spec.md §4, component C3).
//
// Grounded on core/connection_pool.go's mutex-guarded per-peer counter
// shape, generalized from connection counts to outstanding-operation
// counts.
package liveness

import (
	"sync"

	"github.com/safevault/node/internal/xorname"
)

// DefaultThreshold is the default LIVENESS_THRESHOLD (spec.md §4.2): the
// number of outstanding operations routed to an adult before it is deemed
// unresponsive.
const DefaultThreshold = 10

// Tracker counts outstanding operations per adult and flags adults that
// cross a threshold.
type Tracker struct {
	mu        sync.Mutex
	threshold int
	pending   map[xorname.Name]int
}

// NewTracker returns a Tracker with the given threshold. A non-positive
// threshold falls back to DefaultThreshold.
func NewTracker(threshold int) *Tracker {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Tracker{threshold: threshold, pending: make(map[xorname.Name]int)}
}

// RequestStarted records a new outstanding operation against adult and
// reports whether the adult is now over the unresponsive threshold.
func (t *Tracker) RequestStarted(adult xorname.Name) (unresponsive bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending[adult]++
	return t.pending[adult] > t.threshold
}

// RequestFinished records that an outstanding operation against adult has
// completed (successfully or not).
func (t *Tracker) RequestFinished(adult xorname.Name) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if n, ok := t.pending[adult]; ok {
		if n <= 1 {
			delete(t.pending, adult)
		} else {
			t.pending[adult] = n - 1
		}
	}
}

// Outstanding returns the current outstanding-operation count for adult.
func (t *Tracker) Outstanding(adult xorname.Name) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending[adult]
}

// IsUnresponsive reports whether adult currently exceeds the threshold.
func (t *Tracker) IsUnresponsive(adult xorname.Name) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending[adult] > t.threshold
}

// Unresponsive returns every adult currently over the threshold.
func (t *Tracker) Unresponsive() []xorname.Name {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []xorname.Name
	for a, n := range t.pending {
		if n > t.threshold {
			out = append(out, a)
		}
	}
	return out
}

// Forget drops all tracked state for adult, e.g. once it has been proposed
// offline to the routing layer.
func (t *Tracker) Forget(adult xorname.Name) {
	t.mu.Lock()
	delete(t.pending, adult)
	t.mu.Unlock()
}
