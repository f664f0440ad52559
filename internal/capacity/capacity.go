// Package capacity tracks the set of adults believed to be at or over
// storage capacity (the "full adult" set, component C2). Per spec.md's Open
// Question resolution, this unifies the source's overlapping
// Capacity/full_nodes and AdultsStorageInfo designs into a single in-memory
// snapshot, rebuilt from peers on elder promotion.
//
// Grounded on core/quorum_tracker.go's small mutex-guarded set shape.
package capacity

import (
	"sync"

	"github.com/safevault/node/internal/xorname"
)

// FullAdults is a thread-safe snapshot of adults excluded from new chunk
// placements because they are believed to have reached capacity.
type FullAdults struct {
	mu   sync.RWMutex
	full map[xorname.Name]struct{}
}

// New returns an empty FullAdults set.
func New() *FullAdults {
	return &FullAdults{full: make(map[xorname.Name]struct{})}
}

// MarkFull records that adult is at or over capacity.
func (f *FullAdults) MarkFull(adult xorname.Name) {
	f.mu.Lock()
	f.full[adult] = struct{}{}
	f.mu.Unlock()
}

// MarkNotFull clears a previously-full adult, e.g. after it rejoins with
// freed space or is replaced.
func (f *FullAdults) MarkNotFull(adult xorname.Name) {
	f.mu.Lock()
	delete(f.full, adult)
	f.mu.Unlock()
}

// IsFull reports whether adult is currently excluded from placement.
func (f *FullAdults) IsFull(adult xorname.Name) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.full[adult]
	return ok
}

// Snapshot returns a copy of the current full-adult set, usable as the
// exclude set for xorname.Closest.
func (f *FullAdults) Snapshot() map[xorname.Name]struct{} {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[xorname.Name]struct{}, len(f.full))
	for n := range f.full {
		out[n] = struct{}{}
	}
	return out
}

// Rebuild replaces the entire set, used when an elder is promoted and
// fetches the current full-adult snapshot from its peers.
func (f *FullAdults) Rebuild(adults []xorname.Name) {
	next := make(map[xorname.Name]struct{}, len(adults))
	for _, a := range adults {
		next[a] = struct{}{}
	}
	f.mu.Lock()
	f.full = next
	f.mu.Unlock()
}

// Len reports how many adults are currently marked full.
func (f *FullAdults) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.full)
}
