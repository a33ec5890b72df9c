package hashmap

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamNilotpal/facet/internal/types"
)

func buildTestMap(t *testing.T, entries []Entry) *Map {
	t.Helper()

	path := filepath.Join(t.TempDir(), "values_to_points.bin")
	require.NoError(t, Build(path, entries))

	m, err := Open(path, false)
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestBuildAndGet(t *testing.T) {
	m := buildTestMap(t, []Entry{
		{Key: []byte("red"), Values: []types.PointOffsetType{0, 2, 7}},
		{Key: []byte("green"), Values: []types.PointOffsetType{1}},
		{Key: []byte("blue"), Values: []types.PointOffsetType{3, 4, 5, 6}},
	})

	assert.Equal(t, 3, m.KeysCount())

	values, err := m.Get([]byte("red"))
	require.NoError(t, err)
	assert.Equal(t, []types.PointOffsetType{0, 2, 7}, values)

	values, err = m.Get([]byte("green"))
	require.NoError(t, err)
	assert.Equal(t, []types.PointOffsetType{1}, values)

	values, err = m.Get([]byte("purple"))
	require.NoError(t, err)
	assert.Nil(t, values)
}

func TestBuildSortsAndDeduplicatesValues(t *testing.T) {
	m := buildTestMap(t, []Entry{
		{Key: []byte("k"), Values: []types.PointOffsetType{9, 3, 3, 1, 9}},
	})

	values, err := m.Get([]byte("k"))
	require.NoError(t, err)
	assert.Equal(t, []types.PointOffsetType{1, 3, 9}, values)
}

func TestAllIteratesInKeyOrder(t *testing.T) {
	m := buildTestMap(t, []Entry{
		{Key: []byte("cc"), Values: []types.PointOffsetType{2}},
		{Key: []byte("aa"), Values: []types.PointOffsetType{0}},
		{Key: []byte("bb"), Values: []types.PointOffsetType{1}},
	})

	var keys []string
	m.All()(func(key []byte, values []types.PointOffsetType) bool {
		keys = append(keys, string(key))
		return true
	})
	assert.Equal(t, []string{"aa", "bb", "cc"}, keys)
}

func TestManyKeysWithProbing(t *testing.T) {
	entries := make([]Entry, 0, 500)
	for i := 0; i < 500; i++ {
		entries = append(entries, Entry{
			Key:    fmt.Appendf(nil, "key-%04d", i),
			Values: []types.PointOffsetType{types.PointOffsetType(i), types.PointOffsetType(i + 1000)},
		})
	}
	m := buildTestMap(t, entries)

	assert.Equal(t, 500, m.KeysCount())
	for i := 0; i < 500; i += 17 {
		values, err := m.Get(fmt.Appendf(nil, "key-%04d", i))
		require.NoError(t, err)
		require.Len(t, values, 2)
		assert.Equal(t, types.PointOffsetType(i), values[0])
	}
}

func TestIntegerKeys(t *testing.T) {
	key := func(v int64) []byte {
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, uint64(v))
		return b
	}

	m := buildTestMap(t, []Entry{
		{Key: key(-5), Values: []types.PointOffsetType{1}},
		{Key: key(42), Values: []types.PointOffsetType{2, 3}},
	})

	values, err := m.Get(key(42))
	require.NoError(t, err)
	assert.Equal(t, []types.PointOffsetType{2, 3}, values)
}

func TestIdempotentBuild(t *testing.T) {
	entries := []Entry{
		{Key: []byte("b"), Values: []types.PointOffsetType{4, 2}},
		{Key: []byte("a"), Values: []types.PointOffsetType{1}},
	}

	dir := t.TempDir()
	first := filepath.Join(dir, "first.bin")
	second := filepath.Join(dir, "second.bin")
	require.NoError(t, Build(first, entries))
	require.NoError(t, Build(second, entries))

	a, err := os.ReadFile(first)
	require.NoError(t, err)
	b, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Equal(t, a, b, "identical inputs must produce byte-identical files")
}

func TestOpenRejectsCorruptedHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.bin")
	require.NoError(t, os.WriteFile(path, []byte("not an index file at all, but long enough to map"), 0644))

	_, err := Open(path, false)
	require.Error(t, err)
}

func TestEmptyMap(t *testing.T) {
	m := buildTestMap(t, nil)

	assert.Equal(t, 0, m.KeysCount())
	values, err := m.Get([]byte("anything"))
	require.NoError(t, err)
	assert.Nil(t, values)
}
