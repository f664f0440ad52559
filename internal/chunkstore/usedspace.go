// Package chunkstore implements the on-disk chunk store (spec.md §4.1,
// component C1): one sub-directory per chunk partition under a root, a
// shared capacity budget tracked atomically across partitions, and a
// durable per-partition used-space counter.
//
// Grounded on original_source/src/chunk_store/{mod.rs,used_space.rs} for the
// reserve-before-write / release-on-failure discipline, expressed in the
// teacher's on-disk idiom (core/storage.go's diskLRU: os.MkdirAll,
// os.WriteFile, directory-per-partition).
package chunkstore

import (
	"sync/atomic"

	"github.com/safevault/node/internal/verr"
)

// UsedSpace is the process-wide shared capacity accounting structure
// (spec.md §3). total is updated by compare-and-swap so concurrent writers
// across partitions observe a consistent total; it is never allowed to
// exceed maxCapacity.
type UsedSpace struct {
	total       atomic.Int64
	maxCapacity atomic.Int64
}

// NewUsedSpace creates a shared accounting structure with the given cap.
func NewUsedSpace(maxCapacity uint64) *UsedSpace {
	u := &UsedSpace{}
	u.maxCapacity.Store(int64(maxCapacity))
	return u
}

// Total returns the current total bytes used across all partitions.
func (u *UsedSpace) Total() uint64 { return uint64(u.total.Load()) }

// MaxCapacity returns the configured capacity budget.
func (u *UsedSpace) MaxCapacity() uint64 { return uint64(u.maxCapacity.Load()) }

// SetTotal forces the total to a known value; used only when a partition
// reloads its durable counter at startup.
func (u *UsedSpace) SetTotal(v uint64) { u.total.Store(int64(v)) }

// FillRatio returns Total/MaxCapacity in [0,1], the section pressure figure
// the store-cost oracle prices against (spec.md §4.3/§9). 0 if no capacity
// budget is configured.
func (u *UsedSpace) FillRatio() float64 {
	cap := u.MaxCapacity()
	if cap == 0 {
		return 0
	}
	ratio := float64(u.Total()) / float64(cap)
	if ratio > 1 {
		ratio = 1
	}
	return ratio
}

// reserve attempts to add n bytes to the shared total via CAS, failing
// verr.NotEnoughSpace if that would exceed the capacity budget. On success
// it returns nil; the caller must call release(n) on any subsequent
// failure to keep reservation and release symmetric.
func (u *UsedSpace) reserve(n uint64) error {
	for {
		cur := u.total.Load()
		next := cur + int64(n)
		if next > u.maxCapacity.Load() {
			return verr.NotEnoughSpace
		}
		if u.total.CompareAndSwap(cur, next) {
			return nil
		}
	}
}

// release subtracts n bytes from the shared total via CAS.
func (u *UsedSpace) release(n uint64) {
	for {
		cur := u.total.Load()
		next := cur - int64(n)
		if next < 0 {
			next = 0
		}
		if u.total.CompareAndSwap(cur, next) {
			return
		}
	}
}
