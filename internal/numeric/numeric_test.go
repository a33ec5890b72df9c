package numeric

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamNilotpal/facet/internal/codec"
	"github.com/iamNilotpal/facet/internal/types"
	"github.com/iamNilotpal/facet/pkg/errors"
	"github.com/iamNilotpal/facet/pkg/options"
)

func testOptions() options.Options {
	return options.NewDefaultOptions()
}

func f64p(v float64) *float64 { return &v }

func collectIDs(seq func(yield func(types.PointOffsetType) bool)) []types.PointOffsetType {
	out := []types.PointOffsetType{}
	seq(func(id types.PointOffsetType) bool {
		out = append(out, id)
		return true
	})
	return out
}

// eachVariant builds the same dataset into all three storage variants and
// runs the assertion against each, so the shared contract is tested once.
func eachVariant(t *testing.T, pointValues [][]int64, check func(t *testing.T, idx *Index[int64])) {
	t.Helper()

	t.Run("mutable", func(t *testing.T) {
		idx := NewMutableIndex(Int64Codec, testOptions(), nil)
		for id, values := range pointValues {
			require.NoError(t, idx.AddMany(types.PointOffsetType(id), values, nil))
		}
		check(t, idx)
	})

	t.Run("immutable", func(t *testing.T) {
		idx := NewImmutableIndex(Int64Codec, pointValues, testOptions(), nil)
		check(t, idx)
	})

	t.Run("mmap", func(t *testing.T) {
		builder := NewMmapBuilder(filepath.Join(t.TempDir(), "numeric"), Int64Codec, testOptions(), nil)
		for id, values := range pointValues {
			builder.AddPoint(types.PointOffsetType(id), values, nil)
		}
		idx, err := builder.Finalize()
		require.NoError(t, err)
		t.Cleanup(func() { idx.Close() })
		check(t, idx)
	})
}

func TestRangeQueryInclusive(t *testing.T) {
	eachVariant(t, [][]int64{{1}, {2}, {3}}, func(t *testing.T, idx *Index[int64]) {
		seq, ok := idx.Filter(types.NewRangeCondition("num", types.Range{
			GTE: f64p(2),
			LTE: f64p(3),
		}), nil)
		require.True(t, ok)
		assert.Equal(t, []types.PointOffsetType{1, 2}, collectIDs(seq))
	})
}

func TestRangeQueryExclusiveBounds(t *testing.T) {
	eachVariant(t, [][]int64{{1}, {2}, {3}, {4}}, func(t *testing.T, idx *Index[int64]) {
		seq, ok := idx.Filter(types.NewRangeCondition("num", types.Range{
			GT: f64p(1),
			LT: f64p(4),
		}), nil)
		require.True(t, ok)
		assert.Equal(t, []types.PointOffsetType{1, 2}, collectIDs(seq))
	})
}

func TestInvalidRangeYieldsEmpty(t *testing.T) {
	eachVariant(t, [][]int64{{1}, {2}}, func(t *testing.T, idx *Index[int64]) {
		// start > end must not panic, just match nothing.
		seq, ok := idx.Filter(types.NewRangeCondition("num", types.Range{
			GTE: f64p(10),
			LTE: f64p(2),
		}), nil)
		require.True(t, ok)
		assert.Empty(t, collectIDs(seq))
	})
}

func TestPointIDsByValue(t *testing.T) {
	eachVariant(t, [][]int64{{7}, {8}, {7, 9}}, func(t *testing.T, idx *Index[int64]) {
		assert.Equal(t, []types.PointOffsetType{0, 2}, collectIDs(idx.PointIDsByValue(7, nil)))
		assert.Empty(t, collectIDs(idx.PointIDsByValue(100, nil)))
	})
}

func TestRemovePointHidesIDs(t *testing.T) {
	eachVariant(t, [][]int64{{7}, {7}, {8}}, func(t *testing.T, idx *Index[int64]) {
		idx.RemovePoint(0)
		assert.Equal(t, []types.PointOffsetType{1}, collectIDs(idx.PointIDsByValue(7, nil)))

		_, ok := idx.GetValues(0)
		assert.False(t, ok)
		assert.True(t, idx.ValuesIsEmpty(0))
	})
}

func TestGetValuesAndCounts(t *testing.T) {
	eachVariant(t, [][]int64{{5, 6}, {5}, {}}, func(t *testing.T, idx *Index[int64]) {
		assert.Equal(t, 2, idx.GetPointsCount())
		assert.Equal(t, 3, idx.TotalUniqueValuesCount())
		assert.Equal(t, 2, idx.GetMaxValuesPerPoint())
		assert.Equal(t, 2, idx.ValuesCount(0))
		assert.True(t, idx.ValuesIsEmpty(2))

		seq, ok := idx.GetValues(1)
		require.True(t, ok)
		values := []int64{}
		seq(func(v int64) bool {
			values = append(values, v)
			return true
		})
		assert.Equal(t, []int64{5}, values)

		assert.True(t, idx.CheckValuesAny(0, func(v int64) bool { return v == 6 }, nil))
		assert.False(t, idx.CheckValuesAny(1, func(v int64) bool { return v == 6 }, nil))
	})
}

func TestEstimatePointsAtLeastOne(t *testing.T) {
	pointValues := [][]float64{{1.0, 2.0}, {1.0}}

	t.Run("mutable", func(t *testing.T) {
		idx := NewMutableIndex(Float64Codec, testOptions(), nil)
		for id, values := range pointValues {
			require.NoError(t, idx.AddMany(types.PointOffsetType(id), values, nil))
		}
		assert.GreaterOrEqual(t, idx.EstimatePoints(1.0, nil), 1)
	})

	t.Run("immutable", func(t *testing.T) {
		idx := NewImmutableIndex(Float64Codec, pointValues, testOptions(), nil)
		assert.GreaterOrEqual(t, idx.EstimatePoints(1.0, nil), 1)
	})
}

func TestEstimatePointsMissingValue(t *testing.T) {
	eachVariant(t, [][]int64{{1}, {2}}, func(t *testing.T, idx *Index[int64]) {
		assert.Zero(t, idx.EstimatePoints(1000, nil))
	})
}

func TestStreamRangeBothDirections(t *testing.T) {
	eachVariant(t, [][]int64{{3}, {1}, {2}}, func(t *testing.T, idx *Index[int64]) {
		r := &types.RangeInterface{Float: &types.Range{}}

		var forward []int64
		idx.StreamRange(r, false)(func(v int64, _ types.PointOffsetType) bool {
			forward = append(forward, v)
			return true
		})
		assert.Equal(t, []int64{1, 2, 3}, forward)

		var backward []int64
		idx.StreamRange(r, true)(func(v int64, _ types.PointOffsetType) bool {
			backward = append(backward, v)
			return true
		})
		assert.Equal(t, []int64{3, 2, 1}, backward)
	})
}

func TestRangeCardinalityBounds(t *testing.T) {
	pointValues := make([][]int64, 1000)
	for i := range pointValues {
		pointValues[i] = []int64{int64(i)}
	}

	eachVariant(t, pointValues, func(t *testing.T, idx *Index[int64]) {
		r := &types.RangeInterface{Float: &types.Range{GTE: f64p(100), LT: f64p(300)}}
		estimation := idx.RangeCardinality(r)

		actual := 0
		seq, ok := idx.Filter(types.FieldCondition{Key: "num", Range: r}, nil)
		require.True(t, ok)
		seq(func(types.PointOffsetType) bool {
			actual++
			return true
		})

		assert.Equal(t, 200, actual)
		assert.LessOrEqual(t, estimation.Min, actual)
		assert.GreaterOrEqual(t, estimation.Max, actual)
		assert.InDelta(t, actual, estimation.Exp, 60)
	})
}

func TestRangeCardinalityEmptyIndex(t *testing.T) {
	idx := NewMutableIndex(Int64Codec, testOptions(), nil)
	estimation := idx.RangeCardinality(&types.RangeInterface{Float: &types.Range{GTE: f64p(0)}})
	assert.Zero(t, estimation.Min)
	assert.Zero(t, estimation.Exp)
	assert.Zero(t, estimation.Max)
}

func TestEstimateCardinalityAttachesPrimaryClause(t *testing.T) {
	eachVariant(t, [][]int64{{1}, {2}, {3}}, func(t *testing.T, idx *Index[int64]) {
		cond := types.NewRangeCondition("num", types.Range{GTE: f64p(2)})
		estimation, ok := idx.EstimateCardinality(cond, nil)
		require.True(t, ok)
		require.Len(t, estimation.PrimaryClauses, 1)
		assert.Equal(t, "num", estimation.PrimaryClauses[0].Condition.Key)
	})
}

func TestEstimateCardinalityUnanswerable(t *testing.T) {
	idx := NewMutableIndex(Int64Codec, testOptions(), nil)
	keyword := "not-a-uuid"
	_, ok := idx.EstimateCardinality(types.FieldCondition{
		Key:   "num",
		Match: &types.MatchValue{Keyword: &keyword},
	}, nil)
	assert.False(t, ok)
}

func TestPayloadBlocksCoverDomain(t *testing.T) {
	pointValues := make([][]int64, 1000)
	for i := range pointValues {
		pointValues[i] = []int64{int64(i)}
	}

	eachVariant(t, pointValues, func(t *testing.T, idx *Index[int64]) {
		blocks := idx.PayloadBlocks(100, "num")
		require.GreaterOrEqual(t, len(blocks), 10)

		// The first block opens the domain, the last closes it, and every
		// boundary is shared exactly once: gt of block i+1 equals the upper
		// border of block i, so blocks never overlap.
		first := blocks[0].Condition.Range.Float
		assert.Nil(t, first.GT)
		assert.Nil(t, first.GTE)

		last := blocks[len(blocks)-1].Condition.Range.Float
		assert.Nil(t, last.LT)
		assert.Nil(t, last.LTE)

		for i := 1; i < len(blocks); i++ {
			prev := blocks[i-1].Condition.Range.Float
			curr := blocks[i].Condition.Range.Float
			require.NotNil(t, prev.LTE)
			require.NotNil(t, curr.GT)
			assert.Equal(t, *prev.LTE, *curr.GT)
		}
	})
}

func TestPayloadBlocksTinyIndex(t *testing.T) {
	eachVariant(t, [][]int64{{1}, {2}}, func(t *testing.T, idx *Index[int64]) {
		blocks := idx.PayloadBlocks(100, "num")
		require.Len(t, blocks, 1)
		r := blocks[0].Condition.Range.Float
		assert.Nil(t, r.GT)
		assert.Nil(t, r.GTE)
		assert.Nil(t, r.LT)
		assert.Nil(t, r.LTE)
		assert.Equal(t, 2, blocks[0].Cardinality)
	})
}

func TestWrongMutability(t *testing.T) {
	immutable := NewImmutableIndex(Int64Codec, [][]int64{{1}}, testOptions(), nil)
	err := immutable.AddMany(5, []int64{9}, nil)
	require.Error(t, err)

	builder := NewMmapBuilder(filepath.Join(t.TempDir(), "numeric"), Int64Codec, testOptions(), nil)
	builder.AddPoint(0, []int64{1}, nil)
	mmapIdx, err := builder.Finalize()
	require.NoError(t, err)
	defer mmapIdx.Close()

	err = mmapIdx.AddMany(5, []int64{9}, nil)
	require.Error(t, err)
}

func TestBuildMmapRejectsInvalidConfig(t *testing.T) {
	_, err := BuildMmap(MmapConfig{
		MaxBucketSize: options.DefaultHistogramMaxBucketSize,
		Precision:     options.DefaultHistogramPrecision,
	}, Int64Codec, [][]int64{{1}})
	require.Error(t, err, "missing dir must be rejected")
	assert.Equal(t, errors.ErrorCodeInvalidInput, errors.GetErrorCode(err))

	_, err = BuildMmap(MmapConfig{
		Dir:           filepath.Join(t.TempDir(), "numeric"),
		MaxBucketSize: options.DefaultHistogramMaxBucketSize,
		Precision:     2.0,
	}, Int64Codec, [][]int64{{1}})
	require.Error(t, err, "precision outside (0, 1) must be rejected")
	assert.Equal(t, errors.ErrorCodeInvalidInput, errors.GetErrorCode(err))
}

func TestMutableReAddReplacesValues(t *testing.T) {
	idx := NewMutableIndex(Int64Codec, testOptions(), nil)
	require.NoError(t, idx.AddMany(0, []int64{1, 2}, nil))
	require.NoError(t, idx.AddMany(0, []int64{3}, nil))

	assert.Empty(t, collectIDs(idx.PointIDsByValue(1, nil)))
	assert.Equal(t, []types.PointOffsetType{0}, collectIDs(idx.PointIDsByValue(3, nil)))
	assert.Equal(t, 1, idx.TotalUniqueValuesCount())
}

func TestMmapReopenAfterFlush(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "numeric")

	builder := NewMmapBuilder(dir, Int64Codec, testOptions(), nil)
	builder.AddPoint(0, []int64{10}, nil)
	builder.AddPoint(1, []int64{20}, nil)
	idx, err := builder.Finalize()
	require.NoError(t, err)

	idx.RemovePoint(0)
	require.NoError(t, idx.Flusher()())
	require.NoError(t, idx.Close())

	onDisk := testOptions()
	onDisk.OnDisk = true
	reopened, err := OpenMmapIndex(dir, Int64Codec, onDisk, nil)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, "mmap_numeric", reopened.Variant())
	assert.Empty(t, collectIDs(reopened.PointIDsByValue(10, nil)))
	assert.Equal(t, []types.PointOffsetType{1}, collectIDs(reopened.PointIDsByValue(20, nil)))
}

func TestMmapOpensAsImmutableInRAM(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "numeric")

	builder := NewMmapBuilder(dir, Int64Codec, testOptions(), nil)
	builder.AddPoint(0, []int64{10}, nil)
	idx, err := builder.Finalize()
	require.NoError(t, err)
	require.NoError(t, idx.Close())

	reopened, err := OpenMmapIndex(dir, Int64Codec, testOptions(), nil)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, "immutable_numeric", reopened.Variant())
	assert.Equal(t, []types.PointOffsetType{0}, collectIDs(reopened.PointIDsByValue(10, nil)))
	assert.NotEmpty(t, reopened.Files())
}

func TestEmptyPointTombstonedAtBuild(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "numeric")

	builder := NewMmapBuilder(dir, Int64Codec, testOptions(), nil)
	builder.AddPoint(0, nil, nil)
	builder.AddPoint(1, []int64{5}, nil)
	idx, err := builder.Finalize()
	require.NoError(t, err)
	defer idx.Close()

	_, ok := idx.GetValues(0)
	assert.False(t, ok)
	assert.Equal(t, 1, idx.GetPointsCount())
}

func TestUUIDFilter(t *testing.T) {
	target := uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")
	other := uuid.MustParse("00000000-0000-0000-0000-000000000001")

	idx := NewMutableIndex(U128Codec, testOptions(), nil)
	require.NoError(t, idx.AddMany(0, []codec.U128{codec.U128FromUUID(target)}, nil))
	require.NoError(t, idx.AddMany(1, []codec.U128{codec.U128FromUUID(other)}, nil))

	keyword := target.String()
	seq, ok := idx.Filter(types.FieldCondition{
		Key:   "uuid",
		Match: &types.MatchValue{Keyword: &keyword},
	}, nil)
	require.True(t, ok)
	assert.Equal(t, []types.PointOffsetType{0}, collectIDs(seq))

	estimation, ok := idx.EstimateCardinality(types.FieldCondition{
		Key:   "uuid",
		Match: &types.MatchValue{Keyword: &keyword},
	}, nil)
	require.True(t, ok)
	assert.GreaterOrEqual(t, estimation.Exp, 1)
}

func TestDateTimeRange(t *testing.T) {
	day := func(d int) time.Time {
		return time.Date(2024, 6, d, 0, 0, 0, 0, time.UTC)
	}

	idx := NewMutableIndex(Int64Codec, testOptions(), nil)
	for i := 1; i <= 5; i++ {
		require.NoError(t, idx.AddMany(
			types.PointOffsetType(i-1),
			[]int64{day(i).UnixMilli()},
			nil,
		))
	}

	from, to := day(2), day(4)
	seq, ok := idx.Filter(types.FieldCondition{
		Key: "ts",
		Range: &types.RangeInterface{DateTime: &types.DateTimeRange{
			GTE: &from,
			LTE: &to,
		}},
	}, nil)
	require.True(t, ok)
	assert.Equal(t, []types.PointOffsetType{1, 2, 3}, collectIDs(seq))
}

func TestTelemetry(t *testing.T) {
	eachVariant(t, [][]int64{{1}, {2}}, func(t *testing.T, idx *Index[int64]) {
		telemetry := idx.Telemetry()
		assert.Equal(t, 2, telemetry.PointsCount)
		assert.Equal(t, idx.Variant(), telemetry.IndexType)
	})
}
