package codec

import (
	"bytes"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iamNilotpal/facet/internal/types"
)

func TestEncodeI64RoundTrip(t *testing.T) {
	values := []int64{math.MinInt64, -1_000_000, -1, 0, 1, 42, 1_000_000, math.MaxInt64}
	ids := []types.PointOffsetType{0, 1, 77, math.MaxUint32}

	for _, v := range values {
		for _, id := range ids {
			key := EncodeI64Ascending(v, id)
			require.Len(t, key, I64KeySize)

			gotID, gotValue := DecodeI64Ascending(key)
			assert.Equal(t, id, gotID)
			assert.Equal(t, v, gotValue)
		}
	}
}

func TestEncodeI64Ordering(t *testing.T) {
	pairs := []struct {
		value int64
		id    types.PointOffsetType
	}{
		{math.MinInt64, 0},
		{-5, 10},
		{-5, 11},
		{0, 0},
		{0, math.MaxUint32},
		{1, 0},
		{math.MaxInt64, 3},
	}

	for i := 1; i < len(pairs); i++ {
		prev := EncodeI64Ascending(pairs[i-1].value, pairs[i-1].id)
		curr := EncodeI64Ascending(pairs[i].value, pairs[i].id)
		assert.Negative(t, bytes.Compare(prev, curr),
			"expected (%d,%d) < (%d,%d) in byte order",
			pairs[i-1].value, pairs[i-1].id, pairs[i].value, pairs[i].id)
	}
}

func TestEncodeF64RoundTrip(t *testing.T) {
	values := []float64{
		math.Inf(-1), -math.MaxFloat64, -1.5, -0.0, 0.0, 0.25, 1.5,
		math.MaxFloat64, math.Inf(1),
	}

	for _, v := range values {
		key := EncodeF64Ascending(v, 7)
		id, got := DecodeF64Ascending(key)
		assert.Equal(t, types.PointOffsetType(7), id)
		assert.Equal(t, v, got)
	}
}

func TestEncodeF64Ordering(t *testing.T) {
	ordered := []float64{
		math.NaN(), math.Inf(-1), -math.MaxFloat64, -1.0, -0.25, 0.0, 0.25, 1.0,
		math.MaxFloat64, math.Inf(1),
	}

	for i := 1; i < len(ordered); i++ {
		prev := EncodeF64Ascending(ordered[i-1], 0)
		curr := EncodeF64Ascending(ordered[i], 0)
		assert.Negative(t, bytes.Compare(prev, curr),
			"expected %v < %v in byte order", ordered[i-1], ordered[i])
	}
}

func TestEncodeF64NaN(t *testing.T) {
	// All NaN payloads collapse to one canonical key prefix.
	a := EncodeF64Ascending(math.NaN(), 3)
	b := EncodeF64Ascending(math.Float64frombits(0x7FF8000000000001), 3)
	assert.Equal(t, a, b)

	_, decoded := DecodeF64Ascending(a)
	assert.True(t, math.IsNaN(decoded))

	assert.Equal(t, 0, CmpF64(math.NaN(), math.NaN()))
	assert.Equal(t, -1, CmpF64(math.NaN(), math.Inf(-1)))
	assert.Equal(t, 1, CmpF64(0.0, math.NaN()))
}

func TestEncodeU128RoundTrip(t *testing.T) {
	values := []U128{
		{},
		{Lo: 1},
		{Lo: math.MaxUint64},
		{Hi: 1},
		{Hi: math.MaxUint64, Lo: math.MaxUint64},
	}

	for i, v := range values {
		key := EncodeU128Ascending(v, 9)
		require.Len(t, key, U128KeySize)

		id, got := DecodeU128Ascending(key)
		assert.Equal(t, types.PointOffsetType(9), id)
		assert.Equal(t, v, got)

		if i > 0 {
			prev := EncodeU128Ascending(values[i-1], 9)
			assert.Negative(t, bytes.Compare(prev, key))
		}
	}
}

func TestU128UUIDRoundTrip(t *testing.T) {
	u := uuid.MustParse("550e8400-e29b-41d4-a716-446655440000")
	v := U128FromUUID(u)
	assert.Equal(t, u, v.UUID())
}

func TestEncodeDateTimeRoundTrip(t *testing.T) {
	moments := []time.Time{
		time.Unix(0, 0).UTC(),
		time.Date(1969, 12, 31, 23, 59, 59, 250_000_000, time.UTC),
		time.Date(2024, 3, 1, 12, 30, 45, 125_000_000, time.UTC),
		time.Date(2100, 1, 1, 0, 0, 0, 0, time.UTC),
	}

	for _, m := range moments {
		key := EncodeDateTimeAscending(m, 4)
		id, got := DecodeDateTimeAscending(key)
		assert.Equal(t, types.PointOffsetType(4), id)
		// Encoding has millisecond resolution.
		assert.Equal(t, m.UnixMilli(), got.UnixMilli())
	}
}

func TestDateTimeOrdering(t *testing.T) {
	early := EncodeDateTimeAscending(time.Date(1950, 1, 1, 0, 0, 0, 0, time.UTC), 0)
	late := EncodeDateTimeAscending(time.Date(2050, 1, 1, 0, 0, 0, 0, time.UTC), 0)
	assert.Negative(t, bytes.Compare(early, late))
}
