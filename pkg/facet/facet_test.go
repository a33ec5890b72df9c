package facet

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamNilotpal/facet/pkg/options"
)

func f64p(v float64) *float64 { return &v }

func collect(seq func(yield func(PointOffsetType) bool)) []PointOffsetType {
	out := []PointOffsetType{}
	seq(func(id PointOffsetType) bool {
		out = append(out, id)
		return true
	})
	return out
}

func TestStringMapIndexEndToEnd(t *testing.T) {
	cfg := Config{Path: filepath.Join(t.TempDir(), "color")}

	builder := NewStringMapIndexBuilder(cfg)
	builder.AddPoint(0, []string{"red"})
	builder.AddPoint(1, []string{"blue"})
	builder.AddPoint(2, []string{"red", "blue"})

	idx, err := builder.Finalize()
	require.NoError(t, err)
	defer idx.Close()

	assert.Equal(t, []PointOffsetType{0, 2}, collect(idx.GetIterator("red", nil)))
	assert.Equal(t, 3, idx.GetIndexedPoints())

	idx.RemovePoint(0)
	assert.Equal(t, []PointOffsetType{2}, collect(idx.GetIterator("red", nil)))
	require.NoError(t, idx.Flusher()())
}

func TestIntMmapIndexEndToEnd(t *testing.T) {
	cfg := Config{Path: filepath.Join(t.TempDir(), "price")}

	builder := NewIntMmapBuilder(cfg, options.WithOnDisk(true))
	builder.AddPoint(0, []int64{100}, nil)
	builder.AddPoint(1, []int64{200}, nil)
	builder.AddPoint(2, []int64{300}, nil)

	idx, err := builder.Finalize()
	require.NoError(t, err)
	defer idx.Close()

	seq, ok := idx.Filter(FieldCondition{
		Key:   "price",
		Range: &RangeInterface{Float: &Range{GTE: f64p(200), LTE: f64p(300)}},
	}, NewHardwareCounter())
	require.True(t, ok)
	assert.Equal(t, []PointOffsetType{1, 2}, collect(seq))
}

func TestUUIDIndexKeywordMatch(t *testing.T) {
	id := uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")

	idx := NewMutableUUIDIndex(Config{})
	require.NoError(t, idx.AddMany(7, []UUIDInt{UUIDIntOf(id)}, nil))

	keyword := id.String()
	seq, ok := idx.Filter(FieldCondition{
		Key:   "external_id",
		Match: &MatchValue{Keyword: &keyword},
	}, nil)
	require.True(t, ok)
	assert.Equal(t, []PointOffsetType{7}, collect(seq))
}

func TestDateTimeIndexEndToEnd(t *testing.T) {
	cfg := Config{Path: filepath.Join(t.TempDir(), "created_at")}

	moment := func(h int) time.Time {
		return time.Date(2024, 5, 1, h, 0, 0, 0, time.UTC)
	}

	builder := NewDateTimeMmapBuilder(cfg)
	builder.AddPoint(0, []time.Time{moment(1)}, nil)
	builder.AddPoint(1, []time.Time{moment(5)}, nil)
	builder.AddPoint(2, []time.Time{moment(9)}, nil)

	idx, err := builder.Finalize()
	require.NoError(t, err)
	defer idx.Close()

	from, to := moment(4), moment(10)
	seq, ok := idx.Filter(FieldCondition{
		Key:   "created_at",
		Range: &RangeInterface{DateTime: &DateTimeRange{GTE: &from, LTE: &to}},
	}, nil)
	require.True(t, ok)
	assert.Equal(t, []PointOffsetType{1, 2}, collect(seq))

	values, ok := idx.GetValues(1)
	require.True(t, ok)
	var got []time.Time
	values(func(v time.Time) bool {
		got = append(got, v)
		return true
	})
	require.Len(t, got, 1)
	assert.True(t, got[0].Equal(moment(5)))
}
