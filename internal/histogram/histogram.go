// Package histogram implements the piecewise-constant approximation of the
// indexed value distribution. The numeric index maintains one histogram per
// field and uses it for two planner services: estimating how many encoded
// points fall inside a range, and slicing the value domain into blocks of
// roughly equal cardinality.
//
// The structure is a sorted run of buckets, each covering a closed value
// interval with a point count. Bulk construction chunks the sorted key
// sequence into equal-count buckets, so counts start exact. Online inserts
// grow a bucket until it exceeds twice the target size, then split it at the
// inserted point when that point lies strictly inside the bucket, halving the
// count between the two sides; inserts beyond either edge start a fresh
// bucket once the edge bucket is full. From then on the
// per-bucket counts are approximate, which is the accepted trade-off of the
// estimator.
package histogram

import (
	"github.com/iamNilotpal/facet/internal/types"
)

// Point pairs a payload value with the id of the point carrying it. The
// histogram and the ordered numeric stores share this key type; its total
// order is value-major, id-minor.
type Point[T any] struct {
	Value T
	ID    types.PointOffsetType
}

// BoundKind discriminates interval endpoints.
type BoundKind uint8

const (
	Unbounded BoundKind = iota
	Included
	Excluded
)

// Bound is one endpoint of a value interval.
type Bound[T any] struct {
	Kind  BoundKind
	Value T
}

// UnboundedOf returns the open endpoint.
func UnboundedOf[T any]() Bound[T] {
	return Bound[T]{Kind: Unbounded}
}

// IncludedOf returns a closed endpoint at v.
func IncludedOf[T any](v T) Bound[T] {
	return Bound[T]{Kind: Included, Value: v}
}

// ExcludedOf returns an open endpoint at v.
func ExcludedOf[T any](v T) Bound[T] {
	return Bound[T]{Kind: Excluded, Value: v}
}

// Ops supplies the value-type behavior the histogram needs: a total-order
// comparator consistent with the key codec, and a projection to float64 for
// interpolation.
type Ops[T any] struct {
	Cmp   func(a, b T) int
	ToF64 func(T) float64
}

// CmpPoint orders keys value-major, id-minor.
func CmpPoint[T any](ops Ops[T], a, b Point[T]) int {
	if c := ops.Cmp(a.Value, b.Value); c != 0 {
		return c
	}
	switch {
	case a.ID < b.ID:
		return -1
	case a.ID > b.ID:
		return 1
	default:
		return 0
	}
}

type bucket[T any] struct {
	lo    Point[T]
	hi    Point[T]
	count int
}

// Histogram is the estimator. It is not safe for concurrent mutation; the
// single-writer model of the index applies here too.
type Histogram[T any] struct {
	ops           Ops[T]
	maxBucketSize int
	precision     float64
	total         int
	buckets       []bucket[T]
}

// New creates an empty histogram.
func New[T any](ops Ops[T], maxBucketSize int, precision float64) *Histogram[T] {
	return &Histogram[T]{ops: ops, maxBucketSize: maxBucketSize, precision: precision}
}

// BuildFromSorted constructs the histogram from the ascending key sequence,
// chunking it into equal-count buckets. Counts are exact after a bulk build.
func BuildFromSorted[T any](ops Ops[T], maxBucketSize int, precision float64, points []Point[T]) *Histogram[T] {
	h := New(ops, maxBucketSize, precision)
	h.total = len(points)
	if len(points) == 0 {
		return h
	}

	size := h.CurrentBucketSize()
	for start := 0; start < len(points); start += size {
		end := start + size
		if end > len(points) {
			end = len(points)
		}
		h.buckets = append(h.buckets, bucket[T]{
			lo:    points[start],
			hi:    points[end-1],
			count: end - start,
		})
	}
	return h
}

// GetTotalCount returns the number of keys the histogram currently covers.
func (h *Histogram[T]) GetTotalCount() int {
	return h.total
}

// CurrentBucketSize returns the target bucket size for the current total:
// total scaled by the precision, clamped to [4, maxBucketSize].
func (h *Histogram[T]) CurrentBucketSize() int {
	size := int(float64(h.total) * h.precision)
	if size < 4 {
		size = 4
	}
	if size > h.maxBucketSize {
		size = h.maxBucketSize
	}
	return size
}

// Insert registers a new key. The containing bucket grows; a key in the gap
// between two buckets joins the bucket above the gap, whose lower border
// extends to it. A key below the first or above the last bucket extends that
// edge bucket, or starts a fresh single-key bucket once the edge bucket holds
// twice the target size. A bucket exceeding twice the target size splits at
// the inserted key when the key lies strictly inside it.
func (h *Histogram[T]) Insert(p Point[T]) {
	h.total++

	if len(h.buckets) == 0 {
		h.buckets = append(h.buckets, bucket[T]{lo: p, hi: p, count: 1})
		return
	}

	limit := 2 * h.CurrentBucketSize()

	idx := h.locate(p)
	if idx < 0 {
		// Below the first bucket: extend its lower border, or start a fresh
		// bucket when it is already full. Edge inserts can't be split at the
		// pivot, so prepend-heavy workloads grow buckets here instead.
		if h.buckets[0].count >= limit {
			h.buckets = append([]bucket[T]{{lo: p, hi: p, count: 1}}, h.buckets...)
			return
		}
		h.buckets[0].lo = p
		h.buckets[0].count++
		idx = 0
	} else if idx >= len(h.buckets) {
		// Above the last bucket: the mirror case, covering append-only id
		// ordered ingestion.
		idx = len(h.buckets) - 1
		if h.buckets[idx].count >= limit {
			h.buckets = append(h.buckets, bucket[T]{lo: p, hi: p, count: 1})
			return
		}
		h.buckets[idx].hi = p
		h.buckets[idx].count++
	} else {
		h.buckets[idx].count++
		if CmpPoint(h.ops, p, h.buckets[idx].lo) < 0 {
			h.buckets[idx].lo = p
		}
		if CmpPoint(h.ops, p, h.buckets[idx].hi) > 0 {
			h.buckets[idx].hi = p
		}
	}

	if h.buckets[idx].count > limit {
		h.split(idx, p)
	}
}

// Remove unregisters a key. The containing bucket shrinks; empty buckets are
// dropped. Border points are not re-derived, so borders may overhang after
// removals, which only widens estimates.
func (h *Histogram[T]) Remove(p Point[T]) {
	if h.total == 0 {
		return
	}

	idx := h.locate(p)
	if idx < 0 || idx >= len(h.buckets) {
		return
	}

	h.total--
	h.buckets[idx].count--
	if h.buckets[idx].count <= 0 {
		h.buckets = append(h.buckets[:idx], h.buckets[idx+1:]...)
	}
}

// locate returns the index of the bucket whose interval contains or adjoins
// p: -1 when p sorts below every bucket, len(buckets) when above.
func (h *Histogram[T]) locate(p Point[T]) int {
	if len(h.buckets) == 0 {
		return -1
	}
	if CmpPoint(h.ops, p, h.buckets[0].lo) < 0 {
		return -1
	}

	// Binary search for the first bucket with hi >= p, then absorb the gap
	// between it and its predecessor.
	lo, hi := 0, len(h.buckets)
	for lo < hi {
		mid := (lo + hi) / 2
		if CmpPoint(h.ops, h.buckets[mid].hi, p) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// split divides bucket idx at the pivot key, distributing the count evenly.
func (h *Histogram[T]) split(idx int, pivot Point[T]) {
	old := h.buckets[idx]
	if CmpPoint(h.ops, old.lo, pivot) >= 0 || CmpPoint(h.ops, pivot, old.hi) >= 0 {
		return
	}

	left := bucket[T]{lo: old.lo, hi: pivot, count: old.count / 2}
	right := bucket[T]{lo: pivot, hi: old.hi, count: old.count - old.count/2}

	h.buckets = append(h.buckets, bucket[T]{})
	copy(h.buckets[idx+2:], h.buckets[idx+1:])
	h.buckets[idx] = left
	h.buckets[idx+1] = right
}

// Estimate returns (min, expected, max) for the number of keys inside the
// interval: buckets fully covered count toward all three, partially covered
// buckets count toward max in full and toward expected by linear
// interpolation over the bucket's value width.
func (h *Histogram[T]) Estimate(lo, hi Bound[T]) (int, float64, int) {
	var minCount, maxCount int
	var expected float64

	for _, b := range h.buckets {
		if h.bucketBelow(b, lo) || h.bucketAbove(b, hi) {
			continue
		}

		fullyInside := h.boundCoversLow(lo, b.lo.Value) && h.boundCoversHigh(hi, b.hi.Value)
		if fullyInside {
			minCount += b.count
			maxCount += b.count
			expected += float64(b.count)
			continue
		}

		maxCount += b.count
		expected += float64(b.count) * h.overlapFraction(b, lo, hi)
	}

	return minCount, expected, maxCount
}

// GetRangeBySize returns the smallest upper bound such that the expected
// count of keys in (lower, upper] reaches size, or Unbounded when the
// remaining tail is smaller than size.
func (h *Histogram[T]) GetRangeBySize(lower Bound[T], size float64) Bound[T] {
	var accumulated float64

	for _, b := range h.buckets {
		if h.bucketBelow(b, lower) {
			continue
		}

		if h.boundCoversLow(lower, b.lo.Value) {
			accumulated += float64(b.count)
		} else {
			accumulated += float64(b.count) * h.overlapFraction(b, lower, UnboundedOf[T]())
		}

		if accumulated >= size {
			return IncludedOf(b.hi.Value)
		}
	}
	return UnboundedOf[T]()
}

// bucketBelow reports whether the whole bucket sorts below the lower bound.
func (h *Histogram[T]) bucketBelow(b bucket[T], lo Bound[T]) bool {
	switch lo.Kind {
	case Unbounded:
		return false
	case Included:
		return h.ops.Cmp(b.hi.Value, lo.Value) < 0
	default:
		return h.ops.Cmp(b.hi.Value, lo.Value) <= 0
	}
}

// bucketAbove reports whether the whole bucket sorts above the upper bound.
func (h *Histogram[T]) bucketAbove(b bucket[T], hi Bound[T]) bool {
	switch hi.Kind {
	case Unbounded:
		return false
	case Included:
		return h.ops.Cmp(b.lo.Value, hi.Value) > 0
	default:
		return h.ops.Cmp(b.lo.Value, hi.Value) >= 0
	}
}

// boundCoversLow reports whether the lower bound admits value v.
func (h *Histogram[T]) boundCoversLow(lo Bound[T], v T) bool {
	switch lo.Kind {
	case Unbounded:
		return true
	case Included:
		return h.ops.Cmp(lo.Value, v) <= 0
	default:
		return h.ops.Cmp(lo.Value, v) < 0
	}
}

// boundCoversHigh reports whether the upper bound admits value v.
func (h *Histogram[T]) boundCoversHigh(hi Bound[T], v T) bool {
	switch hi.Kind {
	case Unbounded:
		return true
	case Included:
		return h.ops.Cmp(hi.Value, v) >= 0
	default:
		return h.ops.Cmp(hi.Value, v) > 0
	}
}

// overlapFraction approximates the share of a bucket's keys falling inside
// the interval, assuming uniform distribution across the bucket's width.
func (h *Histogram[T]) overlapFraction(b bucket[T], lo, hi Bound[T]) float64 {
	bLo, bHi := h.ops.ToF64(b.lo.Value), h.ops.ToF64(b.hi.Value)
	width := bHi - bLo
	if width <= 0 {
		// Degenerate single-value bucket partially admitted by a bound.
		return 0.5
	}

	cutLo := bLo
	if lo.Kind != Unbounded {
		if v := h.ops.ToF64(lo.Value); v > cutLo {
			cutLo = v
		}
	}
	cutHi := bHi
	if hi.Kind != Unbounded {
		if v := h.ops.ToF64(hi.Value); v < cutHi {
			cutHi = v
		}
	}

	if cutHi <= cutLo {
		return 0
	}
	return (cutHi - cutLo) / width
}
