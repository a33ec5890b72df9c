package histogram

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamNilotpal/facet/internal/codec"
	"github.com/iamNilotpal/facet/internal/types"
)

var i64Ops = Ops[int64]{
	Cmp:   codec.CmpI64,
	ToF64: func(v int64) float64 { return float64(v) },
}

func sortedPoints(n int) []Point[int64] {
	points := make([]Point[int64], 0, n)
	for i := 0; i < n; i++ {
		points = append(points, Point[int64]{Value: int64(i), ID: types.PointOffsetType(i)})
	}
	return points
}

func TestBuildFromSortedCounts(t *testing.T) {
	h := BuildFromSorted(i64Ops, 10_000, 0.01, sortedPoints(1000))

	assert.Equal(t, 1000, h.GetTotalCount())
	assert.Equal(t, 10, h.CurrentBucketSize())

	// The full domain estimate is exact after a bulk build.
	min, exp, max := h.Estimate(UnboundedOf[int64](), UnboundedOf[int64]())
	assert.Equal(t, 1000, min)
	assert.Equal(t, 1000, max)
	assert.InDelta(t, 1000, exp, 0.001)
}

func TestEstimateSubRange(t *testing.T) {
	h := BuildFromSorted(i64Ops, 10_000, 0.01, sortedPoints(1000))

	// [100, 300) holds exactly 200 uniform values.
	min, exp, max := h.Estimate(IncludedOf[int64](100), ExcludedOf[int64](300))
	assert.LessOrEqual(t, min, 200)
	assert.GreaterOrEqual(t, max, 200)
	assert.InDelta(t, 200, exp, 25)
}

func TestEstimateEmptyRange(t *testing.T) {
	h := BuildFromSorted(i64Ops, 10_000, 0.01, sortedPoints(100))

	min, exp, max := h.Estimate(IncludedOf[int64](5000), UnboundedOf[int64]())
	assert.Zero(t, min)
	assert.Zero(t, max)
	assert.Zero(t, exp)
}

func TestInsertAndRemove(t *testing.T) {
	h := New(i64Ops, 10_000, 0.01)

	for i := int64(0); i < 200; i++ {
		h.Insert(Point[int64]{Value: i, ID: types.PointOffsetType(i)})
	}
	assert.Equal(t, 200, h.GetTotalCount())

	_, exp, max := h.Estimate(UnboundedOf[int64](), UnboundedOf[int64]())
	assert.Equal(t, 200, max)
	assert.InDelta(t, 200, exp, 0.001)

	h.Remove(Point[int64]{Value: 50, ID: 50})
	assert.Equal(t, 199, h.GetTotalCount())
}

func TestGetRangeBySizeWalksDomain(t *testing.T) {
	h := BuildFromSorted(i64Ops, 10_000, 0.01, sortedPoints(1000))

	// Walking the histogram in ~100-key steps must terminate at Unbounded and
	// produce strictly increasing borders.
	lower := UnboundedOf[int64]()
	var borders []int64
	for range 1000 {
		upper := h.GetRangeBySize(lower, 100)
		if upper.Kind == Unbounded {
			break
		}
		require.Equal(t, Included, upper.Kind)
		if len(borders) > 0 {
			require.Greater(t, upper.Value, borders[len(borders)-1])
		}
		borders = append(borders, upper.Value)
		lower = ExcludedOf(upper.Value)
	}

	assert.GreaterOrEqual(t, len(borders), 5)
	assert.LessOrEqual(t, len(borders), 20)
}

func TestGetRangeBySizeExhausted(t *testing.T) {
	h := BuildFromSorted(i64Ops, 10_000, 0.01, sortedPoints(10))

	upper := h.GetRangeBySize(UnboundedOf[int64](), 1e9)
	assert.Equal(t, Unbounded, upper.Kind)
}

func TestCmpPoint(t *testing.T) {
	a := Point[int64]{Value: 1, ID: 5}
	b := Point[int64]{Value: 1, ID: 9}
	c := Point[int64]{Value: 2, ID: 0}

	assert.Negative(t, CmpPoint(i64Ops, a, b))
	assert.Negative(t, CmpPoint(i64Ops, b, c))
	assert.Zero(t, CmpPoint(i64Ops, a, a))
}
