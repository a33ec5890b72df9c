package pointvalues

import (
	"encoding/binary"
	"math"
	"time"

	"github.com/iamNilotpal/facet/internal/codec"
)

// StringCodec packs strings with a uvarint length prefix.
var StringCodec = Codec[string]{
	Append: func(dst []byte, v string) []byte {
		dst = binary.AppendUvarint(dst, uint64(len(v)))
		return append(dst, v...)
	},
	Decode: func(b []byte) (string, int) {
		length, n := binary.Uvarint(b)
		if n <= 0 || uint64(len(b)-n) < length {
			return "", -1
		}
		return string(b[n : n+int(length)]), n + int(length)
	},
}

// Int64Codec packs signed integers as fixed 8-byte little-endian values.
var Int64Codec = Codec[int64]{
	FixedSize: 8,
	Append: func(dst []byte, v int64) []byte {
		return binary.LittleEndian.AppendUint64(dst, uint64(v))
	},
	Decode: func(b []byte) (int64, int) {
		if len(b) < 8 {
			return 0, -1
		}
		return int64(binary.LittleEndian.Uint64(b)), 8
	},
}

// Float64Codec packs floats by their IEEE-754 bits, fixed 8 bytes.
var Float64Codec = Codec[float64]{
	FixedSize: 8,
	Append: func(dst []byte, v float64) []byte {
		return binary.LittleEndian.AppendUint64(dst, math.Float64bits(v))
	},
	Decode: func(b []byte) (float64, int) {
		if len(b) < 8 {
			return 0, -1
		}
		return math.Float64frombits(binary.LittleEndian.Uint64(b)), 8
	},
}

// U128Codec packs 128-bit integers as two fixed little-endian words.
var U128Codec = Codec[codec.U128]{
	FixedSize: 16,
	Append: func(dst []byte, v codec.U128) []byte {
		dst = binary.LittleEndian.AppendUint64(dst, v.Hi)
		return binary.LittleEndian.AppendUint64(dst, v.Lo)
	},
	Decode: func(b []byte) (codec.U128, int) {
		if len(b) < 16 {
			return codec.U128{}, -1
		}
		return codec.U128{
			Hi: binary.LittleEndian.Uint64(b),
			Lo: binary.LittleEndian.Uint64(b[8:]),
		}, 16
	},
}

// DateTimeCodec packs timestamps as their millisecond i64 projection.
var DateTimeCodec = Codec[time.Time]{
	FixedSize: 8,
	Append: func(dst []byte, v time.Time) []byte {
		return binary.LittleEndian.AppendUint64(dst, uint64(v.UnixMilli()))
	},
	Decode: func(b []byte) (time.Time, int) {
		if len(b) < 8 {
			return time.Time{}, -1
		}
		ms := int64(binary.LittleEndian.Uint64(b))
		return time.Unix(ms/1000, (ms%1000)*1_000_000).UTC(), 8
	},
}
