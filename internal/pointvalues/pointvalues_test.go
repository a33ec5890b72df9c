package pointvalues

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamNilotpal/facet/internal/types"
)

func buildStringStore(t *testing.T, pointValues [][]string) *Store[string] {
	t.Helper()

	cfg := Config{Dir: t.TempDir()}
	require.NoError(t, Build(cfg, StringCodec, pointValues))

	store, err := Open(cfg, StringCodec)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func collect[V any](seq func(yield func(V) bool)) []V {
	var out []V
	seq(func(v V) bool {
		out = append(out, v)
		return true
	})
	return out
}

func TestGetValuesStrings(t *testing.T) {
	store := buildStringStore(t, [][]string{
		{"alpha", "beta"},
		{},
		{"gamma"},
	})

	require.Equal(t, 3, store.Len())

	values, ok := store.GetValues(0)
	require.True(t, ok)
	assert.Equal(t, []string{"alpha", "beta"}, collect(values))

	values, ok = store.GetValues(1)
	require.True(t, ok)
	assert.Empty(t, collect(values))

	count, ok := store.GetValuesCount(2)
	require.True(t, ok)
	assert.Equal(t, 1, count)

	// Out-of-range ids report absence instead of failing.
	_, ok = store.GetValues(99)
	assert.False(t, ok)
}

func TestCheckValuesAnyShortCircuits(t *testing.T) {
	store := buildStringStore(t, [][]string{
		{"a", "b", "c"},
	})

	calls := 0
	found := store.CheckValuesAny(0, func(v string) bool {
		calls++
		return v == "b"
	})
	assert.True(t, found)
	assert.Equal(t, 2, calls)

	assert.False(t, store.CheckValuesAny(0, func(v string) bool { return v == "z" }))
	assert.False(t, store.CheckValuesAny(types.PointOffsetType(5), func(string) bool { return true }))
}

func TestGetValuesInt64(t *testing.T) {
	cfg := Config{Dir: t.TempDir()}
	require.NoError(t, Build(cfg, Int64Codec, [][]int64{
		{-3, 0, 9},
		{42},
	}))

	store, err := Open(cfg, Int64Codec)
	require.NoError(t, err)
	defer store.Close()

	values, ok := store.GetValues(0)
	require.True(t, ok)
	assert.Equal(t, []int64{-3, 0, 9}, collect(values))

	size := store.SizeOfValues(0)
	assert.Equal(t, 24, size)
}

func TestFilesEnumeration(t *testing.T) {
	store := buildStringStore(t, [][]string{{"x"}})

	files := store.Files()
	require.Len(t, files, 2)
	assert.Equal(t, files, store.ImmutableFiles())
}
