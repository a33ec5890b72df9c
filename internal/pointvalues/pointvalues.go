// Package pointvalues implements the memory-mapped inverse map from point id
// to the list of payload values the point carries. It is the read side the
// indexes use to answer "which values does point X have" without touching the
// inverted structure.
//
// The store is two files built together and immutable afterwards:
//
//	point_to_values_offsets.bin:
//	  - Magic: "FCPV" (4 bytes), Version: uint32, Points count: uint64
//	  - Per point: offset uint64 into the values region, byte length uint32,
//	    values count uint32
//
//	point_to_values.bin:
//	  - The packed values region. Fixed-size values are laid out back to
//	    back; variable-length values are length-prefixed by their codec.
//
// Deletion is never reflected here; callers cross-check the tombstone bitmap.
package pointvalues

import (
	"encoding/binary"
	"iter"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/iamNilotpal/facet/internal/mmapx"
	"github.com/iamNilotpal/facet/internal/types"
	"github.com/iamNilotpal/facet/pkg/errors"
)

const (
	// OffsetsFileName is the per-point offsets array.
	OffsetsFileName = "point_to_values_offsets.bin"

	// ValuesFileName is the packed values region.
	ValuesFileName = "point_to_values.bin"

	magic       = "FCPV"
	version     = uint32(1)
	headerSize  = 16
	entryStride = 16
)

// Codec serializes one value type into the packed region. Fixed-size codecs
// set FixedSize; variable-size codecs (strings) length-prefix each value and
// leave FixedSize zero.
type Codec[V any] struct {
	FixedSize int

	// Append serializes v onto dst and returns the extended slice.
	Append func(dst []byte, v V) []byte

	// Decode reads one value from the front of b, returning it and the number
	// of bytes consumed. A negative count signals a malformed value.
	Decode func(b []byte) (V, int)
}

// Store is the opened read-only view over both files.
type Store[V any] struct {
	dir     string
	log     *zap.SugaredLogger
	codec   Codec[V]
	offsets *mmapx.Region
	values  *mmapx.Region
	points  uint64
}

// Config carries the parameters shared by Build and Open.
type Config struct {
	Dir      string
	Populate bool
	Logger   *zap.SugaredLogger
}

// Build materializes both files from the dense per-point value lists:
// slot i of pointValues holds every value of point i, possibly empty.
func Build[V any](cfg Config, codec Codec[V], pointValues [][]V) error {
	var packed []byte
	offsets := make([]byte, headerSize+entryStride*len(pointValues))

	copy(offsets[:4], magic)
	binary.LittleEndian.PutUint32(offsets[4:], version)
	binary.LittleEndian.PutUint64(offsets[8:], uint64(len(pointValues)))

	for i, values := range pointValues {
		start := len(packed)
		for _, v := range values {
			packed = codec.Append(packed, v)
		}

		entry := offsets[headerSize+entryStride*i:]
		binary.LittleEndian.PutUint64(entry, uint64(start))
		binary.LittleEndian.PutUint32(entry[8:], uint32(len(packed)-start))
		binary.LittleEndian.PutUint32(entry[12:], uint32(len(values)))
	}

	if err := writeRegion(filepath.Join(cfg.Dir, OffsetsFileName), offsets); err != nil {
		return err
	}
	return writeRegion(filepath.Join(cfg.Dir, ValuesFileName), packed)
}

func writeRegion(path string, contents []byte) error {
	region, err := mmapx.Create(path, int64(len(contents)))
	if err != nil {
		return err
	}
	copy(region.Bytes(), contents)
	if err := region.Flush(); err != nil {
		region.Close()
		return err
	}
	return region.Close()
}

// Open maps both files and validates the offsets header.
func Open[V any](cfg Config, codec Codec[V]) (*Store[V], error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	offsets, err := mmapx.Open(filepath.Join(cfg.Dir, OffsetsFileName), false, cfg.Populate)
	if err != nil {
		return nil, err
	}

	data := offsets.Bytes()
	if len(data) < headerSize || string(data[:4]) != magic ||
		binary.LittleEndian.Uint32(data[4:]) != version {
		offsets.Close()
		return nil, errors.NewCorruptionError("Open", nil).
			WithDetail("path", offsets.Path()).
			WithDetail("reason", "bad magic or version in offsets header")
	}

	points := binary.LittleEndian.Uint64(data[8:])
	if headerSize+entryStride*points > uint64(len(data)) {
		offsets.Close()
		return nil, errors.NewCorruptionError("Open", nil).
			WithDetail("path", offsets.Path()).
			WithDetail("reason", "offsets array exceeds file size")
	}

	values, err := mmapx.Open(filepath.Join(cfg.Dir, ValuesFileName), false, cfg.Populate)
	if err != nil {
		offsets.Close()
		return nil, err
	}

	return &Store[V]{
		dir:     cfg.Dir,
		log:     log,
		codec:   codec,
		offsets: offsets,
		values:  values,
		points:  points,
	}, nil
}

// Len returns the number of points covered at build time.
func (s *Store[V]) Len() int {
	return int(s.points)
}

// entry returns the (offset, byteLen, count) triple for a point id, with the
// values region bounds already verified.
func (s *Store[V]) entry(id types.PointOffsetType) (uint64, uint32, uint32, bool) {
	if uint64(id) >= s.points {
		return 0, 0, 0, false
	}

	raw := s.offsets.Bytes()[headerSize+entryStride*uint64(id):]
	offset := binary.LittleEndian.Uint64(raw)
	byteLen := binary.LittleEndian.Uint32(raw[8:])
	count := binary.LittleEndian.Uint32(raw[12:])

	if offset+uint64(byteLen) > uint64(s.values.Len()) {
		// Read paths stay live on corruption: log it, report the point as
		// absent.
		s.log.Errorw(
			"Point values entry exceeds packed region, treating as absent",
			"pointID", id,
			"offset", offset,
			"byteLength", byteLen,
			"regionSize", s.values.Len(),
		)
		return 0, 0, 0, false
	}
	return offset, byteLen, count, true
}

// GetValues returns a lazy iterator over the point's values, zero-copying
// from the mmap, or ok=false when the id is out of range.
func (s *Store[V]) GetValues(id types.PointOffsetType) (iter.Seq[V], bool) {
	offset, byteLen, count, ok := s.entry(id)
	if !ok {
		return nil, false
	}

	region := s.values.Bytes()[offset : offset+uint64(byteLen)]
	codec := s.codec
	log := s.log

	return func(yield func(V) bool) {
		rest := region
		for i := uint32(0); i < count; i++ {
			v, n := codec.Decode(rest)
			if n < 0 || n > len(rest) {
				log.Errorw("Malformed packed value, truncating iteration", "pointID", id)
				return
			}
			if !yield(v) {
				return
			}
			rest = rest[n:]
		}
	}, true
}

// GetValuesCount returns how many values the point carries.
func (s *Store[V]) GetValuesCount(id types.PointOffsetType) (int, bool) {
	_, _, count, ok := s.entry(id)
	if !ok {
		return 0, false
	}
	return int(count), true
}

// CheckValuesAny reports whether any value of the point satisfies the
// predicate, short-circuiting on the first match.
func (s *Store[V]) CheckValuesAny(id types.PointOffsetType, pred func(V) bool) bool {
	values, ok := s.GetValues(id)
	if !ok {
		return false
	}

	found := false
	values(func(v V) bool {
		if pred(v) {
			found = true
			return false
		}
		return true
	})
	return found
}

// SizeOfValues returns the packed byte length of the point's values, used by
// read sites to report their cost.
func (s *Store[V]) SizeOfValues(id types.PointOffsetType) int {
	_, byteLen, _, ok := s.entry(id)
	if !ok {
		return 0
	}
	return int(byteLen)
}

// Files enumerates the backing paths.
func (s *Store[V]) Files() []string {
	return []string{
		filepath.Join(s.dir, OffsetsFileName),
		filepath.Join(s.dir, ValuesFileName),
	}
}

// ImmutableFiles matches Files: nothing here is written after build.
func (s *Store[V]) ImmutableFiles() []string {
	return s.Files()
}

// Populate blocks until all pages of both files are resident.
func (s *Store[V]) Populate() {
	s.offsets.Populate()
	s.values.Populate()
}

// ClearCache hints the kernel to drop cached pages of both files.
func (s *Store[V]) ClearCache() error {
	if err := s.offsets.ClearCache(); err != nil {
		return err
	}
	return s.values.ClearCache()
}

// Close unmaps both files.
func (s *Store[V]) Close() error {
	if err := s.offsets.Close(); err != nil {
		s.values.Close()
		return err
	}
	return s.values.Close()
}
