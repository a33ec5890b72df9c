package mapindex

import (
	"iter"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamNilotpal/facet/internal/hw"
	"github.com/iamNilotpal/facet/internal/types"
	"github.com/iamNilotpal/facet/pkg/errors"
	"github.com/iamNilotpal/facet/pkg/filesys"
)

func collectIDs(seq func(yield func(types.PointOffsetType) bool)) []types.PointOffsetType {
	out := []types.PointOffsetType{}
	seq(func(id types.PointOffsetType) bool {
		out = append(out, id)
		return true
	})
	return out
}

func buildStringIndex(t *testing.T, pointValues [][]string) *Index[string] {
	t.Helper()

	cfg := Config{Path: filepath.Join(t.TempDir(), "map_index")}
	builder := NewBuilder[string](cfg)
	for id, values := range pointValues {
		builder.AddPoint(types.PointOffsetType(id), values)
	}

	idx, err := builder.Finalize()
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestGetIteratorReturnsSortedIDs(t *testing.T) {
	idx := buildStringIndex(t, [][]string{
		{"a"},
		{"b"},
		{"a"},
	})

	assert.Equal(t, []types.PointOffsetType{0, 2}, collectIDs(idx.GetIterator("a", nil)))
	assert.Equal(t, []types.PointOffsetType{1}, collectIDs(idx.GetIterator("b", nil)))
	assert.Empty(t, collectIDs(idx.GetIterator("missing", nil)))
}

func TestRemovePointFiltersIterator(t *testing.T) {
	idx := buildStringIndex(t, [][]string{
		{"a"},
		{"b"},
		{"a"},
	})

	require.NoError(t, idx.RemovePoint(0))
	assert.Equal(t, []types.PointOffsetType{2}, collectIDs(idx.GetIterator("a", nil)))
	assert.Equal(t, 1, idx.storageDeletedCount())

	// Idempotent: a second removal changes nothing.
	require.NoError(t, idx.RemovePoint(0))
	assert.Equal(t, 1, idx.storageDeletedCount())

	// The tombstone hides the point's values too.
	_, ok := idx.GetValues(0)
	assert.False(t, ok)
}

// storageDeletedCount exposes the tombstone count to the tests in this
// package.
func (idx *Index[K]) storageDeletedCount() int {
	return idx.deletedCount
}

func TestEmptyPointsTombstonedAtBuild(t *testing.T) {
	idx := buildStringIndex(t, [][]string{
		{},
	})

	_, ok := idx.GetValues(0)
	assert.False(t, ok)
	assert.Equal(t, 1, idx.storageDeletedCount())
	assert.Equal(t, 0, idx.GetIndexedPoints())
}

func TestCountsAndTotals(t *testing.T) {
	idx := buildStringIndex(t, [][]string{
		{"x", "y"},
		{"x"},
		{},
	})

	assert.Equal(t, 2, idx.GetUniqueValuesCount())
	assert.Equal(t, 3, idx.GetValuesCount())

	count, ok := idx.GetCountForValue("x", nil)
	require.True(t, ok)
	assert.Equal(t, 2, count)

	_, ok = idx.GetCountForValue("zzz", nil)
	assert.False(t, ok)

	// get_values_count stays at the build-time figure after deletion.
	idx.RemovePoint(0)
	assert.Equal(t, 3, idx.GetValuesCount())

	// get_count_for_value doesn't filter tombstones either: upper bound.
	count, ok = idx.GetCountForValue("x", nil)
	require.True(t, ok)
	assert.Equal(t, 2, count)
}

func TestIterCountsPerValueFiltersTombstones(t *testing.T) {
	idx := buildStringIndex(t, [][]string{
		{"a"},
		{"a", "b"},
		{"b"},
	})
	idx.RemovePoint(2)

	counts := map[string]int{}
	idx.IterCountsPerValue()(func(k string, n int) bool {
		counts[k] = n
		return true
	})
	assert.Equal(t, map[string]int{"a": 2, "b": 1}, counts)
}

func TestIterValuesMap(t *testing.T) {
	idx := buildStringIndex(t, [][]string{
		{"a"},
		{"b"},
	})

	got := map[string][]types.PointOffsetType{}
	idx.IterValuesMap(nil)(func(k string, ids iter.Seq[types.PointOffsetType]) bool {
		got[k] = collectIDs(ids)
		return true
	})
	assert.Equal(t, map[string][]types.PointOffsetType{
		"a": {0},
		"b": {1},
	}, got)
}

func TestCheckValuesAny(t *testing.T) {
	idx := buildStringIndex(t, [][]string{
		{"red", "green"},
	})

	assert.True(t, idx.CheckValuesAny(0, func(v string) bool { return v == "green" }, nil))
	assert.False(t, idx.CheckValuesAny(0, func(v string) bool { return v == "blue" }, nil))

	idx.RemovePoint(0)
	assert.False(t, idx.CheckValuesAny(0, func(v string) bool { return true }, nil))
}

func TestOpenMissingConfigYieldsStub(t *testing.T) {
	idx, err := Open[string](Config{Path: filepath.Join(t.TempDir(), "never_built")})
	require.NoError(t, err)

	assert.False(t, idx.Load())
	assert.Empty(t, collectIDs(idx.GetIterator("anything", nil)))
	assert.Equal(t, 0, idx.GetIndexedPoints())
	_, ok := idx.GetValues(0)
	assert.False(t, ok)

	// Reads stay live, but a write against the stub fails fast.
	err = idx.RemovePoint(1)
	require.Error(t, err)
	assert.Equal(t, errors.ErrorCodeNotInitialized, errors.GetErrorCode(err))
	require.NoError(t, idx.Flusher()())
}

func TestBuildRejectsMissingPath(t *testing.T) {
	_, err := Build(Config{}, [][]string{{"a"}}, map[string][]types.PointOffsetType{"a": {0}})
	require.Error(t, err)
	assert.Equal(t, errors.ErrorCodeInvalidInput, errors.GetErrorCode(err))
}

func TestReopenPreservesState(t *testing.T) {
	cfg := Config{Path: filepath.Join(t.TempDir(), "map_index")}

	builder := NewBuilder[string](cfg)
	builder.AddPoint(0, []string{"a"})
	builder.AddPoint(1, []string{"b"})
	idx, err := builder.Finalize()
	require.NoError(t, err)

	idx.RemovePoint(1)
	require.NoError(t, idx.Flusher()())
	require.NoError(t, idx.Close())

	reopened, err := Open[string](cfg)
	require.NoError(t, err)
	defer reopened.Close()

	assert.True(t, reopened.Load())
	assert.Equal(t, 1, reopened.storageDeletedCount())
	assert.Empty(t, collectIDs(reopened.GetIterator("b", nil)))
	assert.Equal(t, []types.PointOffsetType{0}, collectIDs(reopened.GetIterator("a", nil)))
}

func TestIntKeys(t *testing.T) {
	cfg := Config{Path: filepath.Join(t.TempDir(), "int_map_index")}
	builder := NewBuilder[int64](cfg)
	builder.AddPoint(0, []int64{-7})
	builder.AddPoint(1, []int64{42, -7})

	idx, err := builder.Finalize()
	require.NoError(t, err)
	defer idx.Close()

	assert.Equal(t, []types.PointOffsetType{0, 1}, collectIDs(idx.GetIterator(int64(-7), nil)))
	assert.Equal(t, []types.PointOffsetType{1}, collectIDs(idx.GetIterator(int64(42), nil)))

	values := []int64{}
	seq, ok := idx.GetValues(1)
	require.True(t, ok)
	seq(func(v int64) bool {
		values = append(values, v)
		return true
	})
	assert.Equal(t, []int64{42, -7}, values)
}

func TestFilesAndWipe(t *testing.T) {
	cfg := Config{Path: filepath.Join(t.TempDir(), "map_index")}
	builder := NewBuilder[string](cfg)
	builder.AddPoint(0, []string{"a"})
	idx, err := builder.Finalize()
	require.NoError(t, err)

	files := idx.Files()
	assert.Len(t, files, 5)
	for _, f := range files {
		exists, err := filesys.Exists(f)
		require.NoError(t, err)
		assert.True(t, exists, f)
	}

	// The tombstone bitmap is the only mutable file.
	immutable := idx.ImmutableFiles()
	assert.Len(t, immutable, 4)
	for _, f := range immutable {
		assert.NotContains(t, f, DeletedFileName)
	}

	require.NoError(t, idx.Wipe())
	for _, f := range files {
		exists, err := filesys.Exists(f)
		require.NoError(t, err)
		assert.False(t, exists, f)
	}
}

func TestHardwareCounterCharged(t *testing.T) {
	cfg := Config{Path: filepath.Join(t.TempDir(), "map_index"), OnDisk: true}
	builder := NewBuilder[string](cfg)
	builder.AddPoint(0, []string{"a"})
	idx, err := builder.Finalize()
	require.NoError(t, err)
	defer idx.Close()

	counter := hw.NewCounterCell()
	collectIDs(idx.GetIterator("a", counter))
	assert.Positive(t, counter.PayloadIndexIORead())

	// RAM-resident indexes charge nothing.
	cfgRAM := Config{Path: cfg.Path, OnDisk: false}
	ramIdx, err := Open[string](cfgRAM)
	require.NoError(t, err)
	defer ramIdx.Close()

	ramCounter := hw.NewCounterCell()
	collectIDs(ramIdx.GetIterator("a", ramCounter))
	assert.Zero(t, ramCounter.PayloadIndexIORead())
}
