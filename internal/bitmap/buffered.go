package bitmap

import (
	"sort"
	"sync"

	"github.com/iamNilotpal/facet/internal/mmapx"
	"github.com/iamNilotpal/facet/internal/types"
)

// BufferedUpdateWrapper combines the mmapped bit array with an in-memory
// overlay of pending writes. Reads consult the overlay first and fall through
// to the mmap, so readers always observe the freshest state; the mmap itself
// is only written when the flusher runs. This keeps page dirtying off the
// query path and makes flushing an explicit, host-scheduled step.
type BufferedUpdateWrapper struct {
	mu      sync.RWMutex
	pending map[int]bool
	bits    BitSlice
	region  *mmapx.Region
}

// NewBufferedUpdateWrapper wraps the bit array backed by region.
func NewBufferedUpdateWrapper(bits BitSlice, region *mmapx.Region) *BufferedUpdateWrapper {
	return &BufferedUpdateWrapper{
		pending: make(map[int]bool),
		bits:    bits,
		region:  region,
	}
}

// Len returns the capacity in bits.
func (w *BufferedUpdateWrapper) Len() int {
	return w.bits.Len()
}

// Get returns bit i, preferring a pending overlay write over the mmapped
// state. The second return is false when i is out of range.
func (w *BufferedUpdateWrapper) Get(i int) (bool, bool) {
	if i < 0 || i >= w.bits.Len() {
		return false, false
	}

	w.mu.RLock()
	v, ok := w.pending[i]
	w.mu.RUnlock()
	if ok {
		return v, true
	}
	return w.bits.Get(i), true
}

// Set records bit i in the overlay. Out-of-range indices are ignored; the
// bit array is sized at build time and never grows.
func (w *BufferedUpdateWrapper) Set(i int, v bool) {
	if i < 0 || i >= w.bits.Len() {
		return
	}

	w.mu.Lock()
	w.pending[i] = v
	w.mu.Unlock()
}

// CountOnes counts set bits across the overlay and the mmap combined.
func (w *BufferedUpdateWrapper) CountOnes() int {
	w.mu.RLock()
	defer w.mu.RUnlock()

	count := w.bits.CountOnes()
	for i, v := range w.pending {
		if was := w.bits.Get(i); v && !was {
			count++
		} else if !v && was {
			count--
		}
	}
	return count
}

// Flusher returns a closure that drains a snapshot of the overlay, taken at
// call time, into the mmap in ascending index order and flushes the dirty
// pages. Writes that arrive after Flusher was called belong to the next flush
// cycle. Snapshot entries stay in the overlay until the closure has written
// them, so reads keep seeing them in between; an entry leaves the overlay
// only if it still holds the value written to the mmap. The closure is safe
// to run on a background thread while readers are active: indices applied to
// the mmap read identically through either path.
func (w *BufferedUpdateWrapper) Flusher() types.Flusher {
	w.mu.RLock()
	taken := make(map[int]bool, len(w.pending))
	for i, v := range w.pending {
		taken[i] = v
	}
	w.mu.RUnlock()

	bits := w.bits
	region := w.region

	return func() error {
		indices := make([]int, 0, len(taken))
		for i := range taken {
			indices = append(indices, i)
		}
		sort.Ints(indices)

		for _, i := range indices {
			bits.Set(i, taken[i])
		}

		w.mu.Lock()
		for i, v := range taken {
			if cur, ok := w.pending[i]; ok && cur == v {
				delete(w.pending, i)
			}
		}
		w.mu.Unlock()
		return region.Flush()
	}
}
