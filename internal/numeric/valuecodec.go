// Package numeric implements the ordered index over scalar numeric payloads:
// signed 64-bit integers, 64-bit floats, millisecond timestamps and 128-bit
// UUID integers. Three storage variants sit behind one facade: a mutable
// in-memory tree, an immutable in-RAM sorted array, and a memory-mapped
// sorted key file. The facade translates planner conditions into key ranges,
// estimates range cardinality through the histogram, and partitions the
// domain into payload blocks.
package numeric

import (
	"time"

	"github.com/iamNilotpal/facet/internal/codec"
	"github.com/iamNilotpal/facet/internal/histogram"
	"github.com/iamNilotpal/facet/internal/pointvalues"
	"github.com/iamNilotpal/facet/internal/types"
)

// Point is the ordered key of the numeric index: a value paired with the
// point id carrying it, ordered value-major.
type Point[T any] = histogram.Point[T]

// PointBound is an endpoint of a key interval.
type PointBound[T any] = histogram.Bound[Point[T]]

// ValueCodec bundles everything the index needs to know about one scalar
// type: the ascending key codec, the total-order comparator, the projections
// used by estimation, and the packed representation for the point-to-values
// side.
type ValueCodec[T any] struct {
	// KeySize is the fixed encoded key length: value prefix plus point id.
	KeySize int

	// EncodeKey produces the order-preserving key for (value, id).
	EncodeKey func(v T, id types.PointOffsetType) []byte

	// DecodeKey reverses EncodeKey.
	DecodeKey func(key []byte) (types.PointOffsetType, T)

	// Cmp is the total order consistent with the encoded byte order.
	Cmp func(a, b T) int

	// ToF64 projects a value into estimation space.
	ToF64 func(v T) float64

	// FromF64 maps a float range endpoint into the value domain.
	FromF64 func(f float64) T

	// FromDateTime maps a date-time range endpoint into the value domain.
	FromDateTime func(t time.Time) T

	// PointValues packs values into the point-to-values region.
	PointValues pointvalues.Codec[T]
}

// ops bridges the codec into the histogram's value operations.
func (c ValueCodec[T]) ops() histogram.Ops[T] {
	return histogram.Ops[T]{Cmp: c.Cmp, ToF64: c.ToF64}
}

// cmpPoint orders keys value-major, id-minor.
func (c ValueCodec[T]) cmpPoint(a, b Point[T]) int {
	return histogram.CmpPoint(c.ops(), a, b)
}

// Int64Codec indexes signed integer payloads.
var Int64Codec = ValueCodec[int64]{
	KeySize:      codec.I64KeySize,
	EncodeKey:    codec.EncodeI64Ascending,
	DecodeKey:    codec.DecodeI64Ascending,
	Cmp:          codec.CmpI64,
	ToF64:        func(v int64) float64 { return float64(v) },
	FromF64:      func(f float64) int64 { return int64(f) },
	FromDateTime: func(t time.Time) int64 { return t.UnixMilli() },
	PointValues:  pointvalues.Int64Codec,
}

// Float64Codec indexes float payloads under the NaN-below-everything total
// order.
var Float64Codec = ValueCodec[float64]{
	KeySize:      codec.F64KeySize,
	EncodeKey:    codec.EncodeF64Ascending,
	DecodeKey:    codec.DecodeF64Ascending,
	Cmp:          codec.CmpF64,
	ToF64:        func(v float64) float64 { return v },
	FromF64:      func(f float64) float64 { return f },
	FromDateTime: func(t time.Time) float64 { return float64(t.UnixMilli()) },
	PointValues:  pointvalues.Float64Codec,
}

// U128Codec indexes UUID payloads by their 128-bit integer value.
var U128Codec = ValueCodec[codec.U128]{
	KeySize:      codec.U128KeySize,
	EncodeKey:    codec.EncodeU128Ascending,
	DecodeKey:    codec.DecodeU128Ascending,
	Cmp:          codec.CmpU128,
	ToF64:        codec.U128.F64,
	FromF64:      codec.U128FromF64,
	FromDateTime: func(t time.Time) codec.U128 { return codec.U128FromU64(uint64(t.UnixMilli())) },
	PointValues:  pointvalues.U128Codec,
}

// asIndexKeyBounds translates a value-typed range into key-interval bounds
// per the index's bound table: gte overrides gt and lte overrides lt; an
// exclusive lower bound starts above every id of the boundary value, an
// exclusive upper bound stops below every id of it.
func asIndexKeyBounds[T any](gt, gte, lt, lte *T) (PointBound[T], PointBound[T]) {
	start := histogram.UnboundedOf[Point[T]]()
	switch {
	case gte != nil:
		start = histogram.IncludedOf(Point[T]{Value: *gte, ID: types.PointIDMin})
	case gt != nil:
		start = histogram.ExcludedOf(Point[T]{Value: *gt, ID: types.PointIDMax})
	}

	end := histogram.UnboundedOf[Point[T]]()
	switch {
	case lte != nil:
		end = histogram.IncludedOf(Point[T]{Value: *lte, ID: types.PointIDMax})
	case lt != nil:
		end = histogram.ExcludedOf(Point[T]{Value: *lt, ID: types.PointIDMin})
	}

	return start, end
}

// checkBoundaries reports whether the interval can hold any key. A start
// above the end, or a degenerate interval with an exclusive side, yields an
// empty iterator rather than a scan.
func checkBoundaries[T any](c ValueCodec[T], start, end PointBound[T]) bool {
	if start.Kind == histogram.Unbounded || end.Kind == histogram.Unbounded {
		return true
	}

	cmp := c.cmpPoint(start.Value, end.Value)
	if cmp > 0 {
		return false
	}
	if cmp == 0 && (start.Kind == histogram.Excluded || end.Kind == histogram.Excluded) {
		return false
	}
	return true
}

// valueRange converts a planner range into value-typed endpoints.
func valueRange[T any](c ValueCodec[T], r *types.RangeInterface) (gt, gte, lt, lte *T) {
	conv := func(f *float64) *T {
		if f == nil {
			return nil
		}
		v := c.FromF64(*f)
		return &v
	}
	convTime := func(t *time.Time) *T {
		if t == nil {
			return nil
		}
		v := c.FromDateTime(*t)
		return &v
	}

	switch {
	case r == nil:
		return nil, nil, nil, nil
	case r.Float != nil:
		return conv(r.Float.GT), conv(r.Float.GTE), conv(r.Float.LT), conv(r.Float.LTE)
	case r.DateTime != nil:
		return convTime(r.DateTime.GT), convTime(r.DateTime.GTE), convTime(r.DateTime.LT), convTime(r.DateTime.LTE)
	default:
		return nil, nil, nil, nil
	}
}
