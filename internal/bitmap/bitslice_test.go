package bitmap

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamNilotpal/facet/internal/mmapx"
)

func newTestRegion(t *testing.T, numBits int) *mmapx.Region {
	t.Helper()

	path := filepath.Join(t.TempDir(), "deleted.bin")
	region, err := mmapx.Create(path, int64(WordLengthFor(numBits)))
	require.NoError(t, err)
	t.Cleanup(func() { region.Close() })
	return region
}

func TestWordLengthFor(t *testing.T) {
	assert.Equal(t, 0, WordLengthFor(0))
	assert.Equal(t, 8, WordLengthFor(1))
	assert.Equal(t, 8, WordLengthFor(64))
	assert.Equal(t, 16, WordLengthFor(65))
	assert.Equal(t, 8, WordLengthFor(8))
	assert.Equal(t, 16, WordLengthFor(100))
}

func TestBitSliceSetGet(t *testing.T) {
	region := newTestRegion(t, 130)
	bits := NewBitSlice(region.Bytes())

	require.GreaterOrEqual(t, bits.Len(), 130)
	assert.False(t, bits.Get(0))

	bits.Set(0, true)
	bits.Set(64, true)
	bits.Set(129, true)

	assert.True(t, bits.Get(0))
	assert.True(t, bits.Get(64))
	assert.True(t, bits.Get(129))
	assert.False(t, bits.Get(1))
	assert.Equal(t, 3, bits.CountOnes())

	bits.Set(64, false)
	assert.False(t, bits.Get(64))
	assert.Equal(t, 2, bits.CountOnes())
}

func TestBufferedWrapperOverlay(t *testing.T) {
	region := newTestRegion(t, 64)
	bits := NewBitSlice(region.Bytes())
	wrapper := NewBufferedUpdateWrapper(bits, region)

	// Overlay wins over the mmap before any flush.
	wrapper.Set(3, true)
	v, ok := wrapper.Get(3)
	require.True(t, ok)
	assert.True(t, v)
	assert.False(t, bits.Get(3), "mmap must stay untouched until flush")
	assert.Equal(t, 1, wrapper.CountOnes())

	// Out-of-range reads report absence instead of failing.
	_, ok = wrapper.Get(1 << 20)
	assert.False(t, ok)
}

func TestBufferedWrapperFlusher(t *testing.T) {
	region := newTestRegion(t, 64)
	bits := NewBitSlice(region.Bytes())
	wrapper := NewBufferedUpdateWrapper(bits, region)

	wrapper.Set(1, true)
	wrapper.Set(9, true)

	flush := wrapper.Flusher()

	// Writes after the flusher snapshot belong to the next cycle.
	wrapper.Set(33, true)

	require.NoError(t, flush())
	assert.True(t, bits.Get(1))
	assert.True(t, bits.Get(9))
	assert.False(t, bits.Get(33))

	// The pending write is still visible through the wrapper.
	v, ok := wrapper.Get(33)
	require.True(t, ok)
	assert.True(t, v)

	require.NoError(t, wrapper.Flusher()())
	assert.True(t, bits.Get(33))
}
