// Package codec implements the order-preserving key encodings the numeric
// index stores on disk. Every scalar type is encoded as a value prefix
// followed by the point id big-endian, such that byte-lexicographic order of
// the encoded keys matches (value, id) order under the type's total order.
package codec

import (
	"encoding/binary"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/iamNilotpal/facet/internal/types"
)

// Encoded key sizes: value prefix plus the 4-byte big-endian point id.
const (
	I64KeySize  = 8 + 4
	F64KeySize  = 8 + 4
	U128KeySize = 16 + 4
)

// All NaNs are canonicalized to one negative quiet NaN before encoding, so
// every NaN lands on the same key prefix and that prefix sorts below -Inf.
// This realizes the documented total order: NaN < all non-NaN, NaN == NaN.
const canonicalNaNBits = 0xFFF8000000000000

// log is the fallback logger for decode anomalies. Codecs are pure functions
// without config injection, so the package keeps one swappable logger that
// defaults to discarding.
var log = zap.NewNop().Sugar()

// SetLogger replaces the package logger. Intended to be called once at
// library initialization with the injected service logger.
func SetLogger(l *zap.SugaredLogger) {
	if l != nil {
		log = l
	}
}

// EncodeI64Ascending encodes a signed 64-bit value with the sign bit flipped,
// big-endian, so that unsigned byte order matches signed numeric order.
func EncodeI64Ascending(value int64, id types.PointOffsetType) []byte {
	key := make([]byte, I64KeySize)
	binary.BigEndian.PutUint64(key, uint64(value)^(1<<63))
	binary.BigEndian.PutUint32(key[8:], id)
	return key
}

// DecodeI64Ascending reverses EncodeI64Ascending.
func DecodeI64Ascending(key []byte) (types.PointOffsetType, int64) {
	value := int64(binary.BigEndian.Uint64(key) ^ (1 << 63))
	id := binary.BigEndian.Uint32(key[8:])
	return id, value
}

// EncodeF64Ascending encodes a float so that byte order matches the total
// order with NaN below everything: negative values have all bits inverted,
// non-negative values have the sign bit flipped, NaN is canonicalized first.
func EncodeF64Ascending(value float64, id types.PointOffsetType) []byte {
	bits := math.Float64bits(value)
	if math.IsNaN(value) {
		bits = canonicalNaNBits
	}
	if bits&(1<<63) != 0 {
		bits = ^bits
	} else {
		bits ^= 1 << 63
	}

	key := make([]byte, F64KeySize)
	binary.BigEndian.PutUint64(key, bits)
	binary.BigEndian.PutUint32(key[8:], id)
	return key
}

// DecodeF64Ascending reverses EncodeF64Ascending.
func DecodeF64Ascending(key []byte) (types.PointOffsetType, float64) {
	enc := binary.BigEndian.Uint64(key)
	var bits uint64
	if enc&(1<<63) != 0 {
		bits = enc ^ (1 << 63)
	} else {
		bits = ^enc
	}
	id := binary.BigEndian.Uint32(key[8:])
	return id, math.Float64frombits(bits)
}

// EncodeU128Ascending encodes an unsigned 128-bit value big-endian.
func EncodeU128Ascending(value U128, id types.PointOffsetType) []byte {
	key := make([]byte, U128KeySize)
	binary.BigEndian.PutUint64(key, value.Hi)
	binary.BigEndian.PutUint64(key[8:], value.Lo)
	binary.BigEndian.PutUint32(key[16:], id)
	return key
}

// DecodeU128Ascending reverses EncodeU128Ascending.
func DecodeU128Ascending(key []byte) (types.PointOffsetType, U128) {
	value := U128{
		Hi: binary.BigEndian.Uint64(key),
		Lo: binary.BigEndian.Uint64(key[8:]),
	}
	id := binary.BigEndian.Uint32(key[16:])
	return id, value
}

// EncodeDateTimeAscending encodes a timestamp via the i64 rule. The stored
// integer is the millisecond timestamp, which is what the decoder's
// seconds/remainder split expects.
func EncodeDateTimeAscending(value time.Time, id types.PointOffsetType) []byte {
	return EncodeI64Ascending(value.UnixMilli(), id)
}

// DecodeDateTimeAscending reconstructs the UTC date-time from the stored
// timestamp: timestamp/1000 seconds plus (timestamp%1000)*1e6 nanoseconds.
// A timestamp that fails to round-trip is logged and mapped to the epoch.
func DecodeDateTimeAscending(key []byte) (types.PointOffsetType, time.Time) {
	id, timestamp := DecodeI64Ascending(key)
	datetime := time.Unix(timestamp/1000, (timestamp%1000)*1_000_000).UTC()
	if datetime.UnixMilli() != timestamp {
		log.Warnw("Failed to decode timestamp, fallback to UNIX_EPOCH", "timestamp", timestamp)
		return id, time.Unix(0, 0).UTC()
	}
	return id, datetime
}

// CmpI64 compares two signed values, consistent with the encoded byte order.
func CmpI64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// CmpF64 compares two floats under the codec's total order: NaN is strictly
// less than every non-NaN value and compares equal to NaN. This deliberately
// differs from the IEEE-754 partial order.
func CmpF64(a, b float64) int {
	aNaN, bNaN := math.IsNaN(a), math.IsNaN(b)
	switch {
	case aNaN && bNaN:
		return 0
	case aNaN:
		return -1
	case bNaN:
		return 1
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
