package numeric

import (
	"iter"

	"github.com/tidwall/btree"

	"github.com/iamNilotpal/facet/internal/histogram"
	"github.com/iamNilotpal/facet/internal/types"
)

// Mutable is the appendable in-memory variant: an ordered tree over
// (value, id) keys plus a per-point value list. It is the only variant that
// accepts new values; the histogram is maintained online so estimates stay
// usable while the segment is still being written.
type Mutable[T any] struct {
	codec             ValueCodec[T]
	tree              *btree.BTreeG[Point[T]]
	pointToValues     map[types.PointOffsetType][]T
	histogram         *histogram.Histogram[T]
	maxBucketSize     int
	precision         float64
	maxValuesPerPoint int
}

// NewMutable creates an empty mutable index.
func NewMutable[T any](codec ValueCodec[T], maxBucketSize int, precision float64) *Mutable[T] {
	return &Mutable[T]{
		codec: codec,
		tree: btree.NewBTreeGOptions(
			func(a, b Point[T]) bool { return codec.cmpPoint(a, b) < 0 },
			btree.Options{NoLocks: true},
		),
		pointToValues: make(map[types.PointOffsetType][]T),
		histogram:     histogram.New(codec.ops(), maxBucketSize, precision),
		maxBucketSize: maxBucketSize,
		precision:     precision,
	}
}

// AddMany registers the values of a point, replacing anything previously
// stored for the same id. Points with no values are not recorded.
func (m *Mutable[T]) AddMany(id types.PointOffsetType, values []T) {
	m.RemovePoint(id)
	if len(values) == 0 {
		return
	}

	stored := make([]T, len(values))
	copy(stored, values)
	m.pointToValues[id] = stored

	for _, v := range stored {
		p := Point[T]{Value: v, ID: id}
		if _, replaced := m.tree.Set(p); !replaced {
			m.histogram.Insert(p)
		}
	}

	if len(stored) > m.maxValuesPerPoint {
		m.maxValuesPerPoint = len(stored)
	}
}

// RemovePoint drops every key of the point. Unknown ids are a no-op.
func (m *Mutable[T]) RemovePoint(id types.PointOffsetType) {
	values, ok := m.pointToValues[id]
	if !ok {
		return
	}

	for _, v := range values {
		p := Point[T]{Value: v, ID: id}
		if _, removed := m.tree.Delete(p); removed {
			m.histogram.Remove(p)
		}
	}
	delete(m.pointToValues, id)
}

// Clear resets the index to empty.
func (m *Mutable[T]) Clear() {
	m.tree.Clear()
	m.pointToValues = make(map[types.PointOffsetType][]T)
	m.histogram = histogram.New(m.codec.ops(), m.maxBucketSize, m.precision)
	m.maxValuesPerPoint = 0
}

// GetPointsCount returns the number of points carrying at least one value.
func (m *Mutable[T]) GetPointsCount() int {
	return len(m.pointToValues)
}

// TotalUniqueValuesCount returns the number of distinct (value, id) keys.
func (m *Mutable[T]) TotalUniqueValuesCount() int {
	return m.tree.Len()
}

// GetMaxValuesPerPoint returns the largest value list seen. Zero when empty.
func (m *Mutable[T]) GetMaxValuesPerPoint() int {
	return m.maxValuesPerPoint
}

// Histogram exposes the online histogram.
func (m *Mutable[T]) Histogram() *histogram.Histogram[T] {
	return m.histogram
}

// GetValues returns the values of a point, or ok=false when unknown.
func (m *Mutable[T]) GetValues(id types.PointOffsetType) (iter.Seq[T], bool) {
	values, ok := m.pointToValues[id]
	if !ok {
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

// ValuesCount returns how many values the point carries.
func (m *Mutable[T]) ValuesCount(id types.PointOffsetType) (int, bool) {
	values, ok := m.pointToValues[id]
	if !ok {
		return 0, false
	}
	return len(values), true
}

// CheckValuesAny reports whether any value of the point satisfies the
// predicate, short-circuiting on the first match.
func (m *Mutable[T]) CheckValuesAny(id types.PointOffsetType, pred func(T) bool) bool {
	for _, v := range m.pointToValues[id] {
		if pred(v) {
			return true
		}
	}
	return false
}

// belowStart reports whether p sorts before the interval start.
func belowStart[T any](c ValueCodec[T], p Point[T], start PointBound[T]) bool {
	switch start.Kind {
	case histogram.Included:
		return c.cmpPoint(p, start.Value) < 0
	case histogram.Excluded:
		return c.cmpPoint(p, start.Value) <= 0
	default:
		return false
	}
}

// aboveEnd reports whether p sorts after the interval end.
func aboveEnd[T any](c ValueCodec[T], p Point[T], end PointBound[T]) bool {
	switch end.Kind {
	case histogram.Included:
		return c.cmpPoint(p, end.Value) > 0
	case histogram.Excluded:
		return c.cmpPoint(p, end.Value) >= 0
	default:
		return false
	}
}

// ValuesRange yields the point ids of keys inside [start, end] in key order.
// Invalid intervals yield nothing.
func (m *Mutable[T]) ValuesRange(start, end PointBound[T]) iter.Seq[types.PointOffsetType] {
	return func(yield func(types.PointOffsetType) bool) {
		m.streamForward(start, end, func(p Point[T]) bool {
			return yield(p.ID)
		})
	}
}

// ValuesRangeSize counts the keys inside [start, end].
func (m *Mutable[T]) ValuesRangeSize(start, end PointBound[T]) int {
	count := 0
	m.streamForward(start, end, func(Point[T]) bool {
		count++
		return true
	})
	return count
}

// StreamRange yields (value, id) pairs inside [start, end], ascending or
// descending by key. The descending direction serves reverse order-by scans.
func (m *Mutable[T]) StreamRange(start, end PointBound[T], reverse bool) iter.Seq2[T, types.PointOffsetType] {
	return func(yield func(T, types.PointOffsetType) bool) {
		emit := func(p Point[T]) bool {
			return yield(p.Value, p.ID)
		}
		if reverse {
			m.streamBackward(start, end, emit)
		} else {
			m.streamForward(start, end, emit)
		}
	}
}

// RangeEndpoints returns the first and last keys inside [start, end]. Used
// by the facade's point estimation, which only needs the two endpoints
// instead of a full walk.
func (m *Mutable[T]) RangeEndpoints(start, end PointBound[T]) (Point[T], Point[T], int) {
	var first, last Point[T]
	found := 0

	m.streamForward(start, end, func(p Point[T]) bool {
		first = p
		found = 1
		return false
	})
	if found == 0 {
		return first, last, 0
	}

	m.streamBackward(start, end, func(p Point[T]) bool {
		last = p
		return false
	})
	if m.codec.cmpPoint(first, last) == 0 {
		return first, last, 1
	}
	return first, last, 2
}

func (m *Mutable[T]) streamForward(start, end PointBound[T], visit func(Point[T]) bool) {
	if !checkBoundaries(m.codec, start, end) {
		return
	}

	walk := func(p Point[T]) bool {
		// The ascent may begin on the excluded start key itself; skip past
		// it. The first key above the end terminates the scan.
		if belowStart(m.codec, p, start) {
			return true
		}
		if aboveEnd(m.codec, p, end) {
			return false
		}
		return visit(p)
	}

	if start.Kind == histogram.Unbounded {
		m.tree.Scan(walk)
	} else {
		m.tree.Ascend(start.Value, walk)
	}
}

func (m *Mutable[T]) streamBackward(start, end PointBound[T], visit func(Point[T]) bool) {
	if !checkBoundaries(m.codec, start, end) {
		return
	}

	walk := func(p Point[T]) bool {
		if aboveEnd(m.codec, p, end) {
			return true
		}
		if belowStart(m.codec, p, start) {
			return false
		}
		return visit(p)
	}

	if end.Kind == histogram.Unbounded {
		m.tree.Reverse(walk)
	} else {
		m.tree.Descend(end.Value, walk)
	}
}
