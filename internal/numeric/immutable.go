package numeric

import (
	"iter"
	"sort"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/iamNilotpal/facet/internal/histogram"
	"github.com/iamNilotpal/facet/internal/types"
)

// Immutable is the in-RAM read-optimized variant: a sorted array of
// (value, id) keys searched by binary search, plus dense per-point value
// lists. It accepts no new values; deletion is an in-memory tombstone that
// range scans filter on the fly. When loaded from a memory-mapped index the
// backing store is retained so tombstones also reach the on-disk bitmap.
type Immutable[T any] struct {
	codec             ValueCodec[T]
	points            []Point[T]
	pointToValues     [][]T
	deleted           *roaring.Bitmap
	histogram         *histogram.Histogram[T]
	pointsCount       int
	totalValues       int
	maxValuesPerPoint int
	backing           *MmapStore[T]
}

// NewImmutable freezes dense per-point value lists into the sorted-array
// form. The histogram is built from the sorted keys, so its counts start
// exact.
func NewImmutable[T any](codec ValueCodec[T], pointValues [][]T, maxBucketSize int, precision float64) *Immutable[T] {
	idx := &Immutable[T]{
		codec:         codec,
		pointToValues: pointValues,
		deleted:       roaring.New(),
	}

	for id, values := range pointValues {
		if len(values) == 0 {
			continue
		}
		idx.pointsCount++
		idx.totalValues += len(values)
		if len(values) > idx.maxValuesPerPoint {
			idx.maxValuesPerPoint = len(values)
		}
		for _, v := range values {
			idx.points = append(idx.points, Point[T]{Value: v, ID: types.PointOffsetType(id)})
		}
	}

	sort.Slice(idx.points, func(i, j int) bool {
		return codec.cmpPoint(idx.points[i], idx.points[j]) < 0
	})
	idx.histogram = histogram.BuildFromSorted(codec.ops(), maxBucketSize, precision, idx.points)
	return idx
}

// ImmutableFromMmap loads a memory-mapped index fully into RAM, keeping the
// mmap as backing storage so tombstone flips persist through its bitmap.
func ImmutableFromMmap[T any](store *MmapStore[T]) *Immutable[T] {
	pointValues := make([][]T, store.pointToValues.Len())
	for id := range pointValues {
		seq, ok := store.pointToValues.GetValues(types.PointOffsetType(id))
		if !ok {
			continue
		}
		seq(func(v T) bool {
			pointValues[id] = append(pointValues[id], v)
			return true
		})
	}

	idx := NewImmutable(store.codec, pointValues, store.maxBucketSize, store.precision)
	idx.backing = store

	// Tombstones already present on disk carry over.
	for id := range pointValues {
		pid := types.PointOffsetType(id)
		if deleted, ok := store.deleted.Get(int(pid)); ok && deleted && len(pointValues[id]) > 0 {
			idx.removeInMemory(pid)
		}
	}
	return idx
}

// GetPointsCount returns the number of live points carrying values.
func (im *Immutable[T]) GetPointsCount() int {
	return im.pointsCount
}

// TotalUniqueValuesCount returns the number of live (value, id) keys.
func (im *Immutable[T]) TotalUniqueValuesCount() int {
	return im.totalValues
}

// GetMaxValuesPerPoint returns the largest value list seen at build time.
func (im *Immutable[T]) GetMaxValuesPerPoint() int {
	return im.maxValuesPerPoint
}

// Histogram exposes the build-time histogram.
func (im *Immutable[T]) Histogram() *histogram.Histogram[T] {
	return im.histogram
}

// RemovePoint tombstones the point. Idempotent; unknown ids are a no-op.
func (im *Immutable[T]) RemovePoint(id types.PointOffsetType) {
	if im.removeInMemory(id) && im.backing != nil {
		im.backing.RemovePoint(id)
	}
}

func (im *Immutable[T]) removeInMemory(id types.PointOffsetType) bool {
	if int(id) >= len(im.pointToValues) || im.deleted.Contains(id) {
		return false
	}
	values := im.pointToValues[id]
	if len(values) == 0 {
		return false
	}

	im.deleted.Add(id)
	im.pointsCount--
	im.totalValues -= len(values)
	return true
}

// GetValues returns the values of a live point, or ok=false for unknown or
// tombstoned ids.
func (im *Immutable[T]) GetValues(id types.PointOffsetType) (iter.Seq[T], bool) {
	if int(id) >= len(im.pointToValues) || im.deleted.Contains(id) {
		return nil, false
	}
	values := im.pointToValues[id]
	if len(values) == 0 {
		return nil, false
	}
	return func(yield func(T) bool) {
		for _, v := range values {
			if !yield(v) {
				return
			}
		}
	}, true
}

// ValuesCount returns how many values the live point carries.
func (im *Immutable[T]) ValuesCount(id types.PointOffsetType) (int, bool) {
	if int(id) >= len(im.pointToValues) || im.deleted.Contains(id) {
		return 0, false
	}
	if len(im.pointToValues[id]) == 0 {
		return 0, false
	}
	return len(im.pointToValues[id]), true
}

// CheckValuesAny reports whether any value of the live point satisfies the
// predicate.
func (im *Immutable[T]) CheckValuesAny(id types.PointOffsetType, pred func(T) bool) bool {
	values, ok := im.GetValues(id)
	if !ok {
		return false
	}
	found := false
	values(func(v T) bool {
		if pred(v) {
			found = true
			return false
		}
		return true
	})
	return found
}

// searchRange resolves [start, end] to a half-open slice window.
func (im *Immutable[T]) searchRange(start, end PointBound[T]) (int, int) {
	if !checkBoundaries(im.codec, start, end) {
		return 0, 0
	}

	lo := sort.Search(len(im.points), func(i int) bool {
		return !belowStart(im.codec, im.points[i], start)
	})
	hi := sort.Search(len(im.points), func(i int) bool {
		return aboveEnd(im.codec, im.points[i], end)
	})
	if hi < lo {
		hi = lo
	}
	return lo, hi
}

// ValuesRange yields the live point ids of keys inside [start, end] in key
// order.
func (im *Immutable[T]) ValuesRange(start, end PointBound[T]) iter.Seq[types.PointOffsetType] {
	lo, hi := im.searchRange(start, end)
	return func(yield func(types.PointOffsetType) bool) {
		for _, p := range im.points[lo:hi] {
			if im.deleted.Contains(p.ID) {
				continue
			}
			if !yield(p.ID) {
				return
			}
		}
	}
}

// ValuesRangeSize counts the keys inside [start, end]. Tombstoned keys are
// included: the count is an upper bound used for estimation.
func (im *Immutable[T]) ValuesRangeSize(start, end PointBound[T]) int {
	lo, hi := im.searchRange(start, end)
	return hi - lo
}

// StreamRange yields (value, id) pairs of live keys inside [start, end],
// ascending or descending by key.
func (im *Immutable[T]) StreamRange(start, end PointBound[T], reverse bool) iter.Seq2[T, types.PointOffsetType] {
	lo, hi := im.searchRange(start, end)
	return func(yield func(T, types.PointOffsetType) bool) {
		if reverse {
			for i := hi - 1; i >= lo; i-- {
				p := im.points[i]
				if im.deleted.Contains(p.ID) {
					continue
				}
				if !yield(p.Value, p.ID) {
					return
				}
			}
			return
		}
		for _, p := range im.points[lo:hi] {
			if im.deleted.Contains(p.ID) {
				continue
			}
			if !yield(p.Value, p.ID) {
				return
			}
		}
	}
}

// Flusher persists pending tombstones when mmap-backed; otherwise a no-op.
func (im *Immutable[T]) Flusher() types.Flusher {
	if im.backing != nil {
		return im.backing.Flusher()
	}
	return types.NoopFlusher()
}

// Files enumerates the backing paths when mmap-backed.
func (im *Immutable[T]) Files() []string {
	if im.backing != nil {
		return im.backing.Files()
	}
	return nil
}

// ImmutableFiles enumerates the backing paths that never change after build.
func (im *Immutable[T]) ImmutableFiles() []string {
	if im.backing != nil {
		return im.backing.ImmutableFiles()
	}
	return nil
}

// Wipe removes the backing files when mmap-backed.
func (im *Immutable[T]) Wipe() error {
	if im.backing != nil {
		return im.backing.Wipe()
	}
	return nil
}

// ClearCache drops cached pages of the backing storage, leaving the in-RAM
// representation untouched.
func (im *Immutable[T]) ClearCache() error {
	if im.backing != nil {
		return im.backing.ClearCache()
	}
	return nil
}

// Close releases the backing storage when mmap-backed.
func (im *Immutable[T]) Close() error {
	if im.backing != nil {
		return im.backing.Close()
	}
	return nil
}
