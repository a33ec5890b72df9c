// Package facet provides payload field indexing for vector-search segments:
// inverted map indexes over categorical values and ordered numeric indexes
// over scalar payloads, both backed by memory-mapped files built once and
// opened read-mostly afterwards.
//
// The package is the public entry point of the library. It exposes typed
// constructors for each supported payload type and re-exports the shared
// query vocabulary, while the index machinery itself lives in the internal
// packages.
package facet

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iamNilotpal/facet/internal/codec"
	"github.com/iamNilotpal/facet/internal/hw"
	"github.com/iamNilotpal/facet/internal/mapindex"
	"github.com/iamNilotpal/facet/internal/numeric"
	"github.com/iamNilotpal/facet/internal/types"
	"github.com/iamNilotpal/facet/pkg/logger"
	"github.com/iamNilotpal/facet/pkg/options"
)

// Shared query vocabulary, re-exported for callers.
type (
	// PointOffsetType identifies a point within a segment.
	PointOffsetType = types.PointOffsetType

	// FieldCondition is the filter clause resolved against an index.
	FieldCondition = types.FieldCondition

	// MatchValue is the exact-match clause of a condition.
	MatchValue = types.MatchValue

	// Range bounds a numeric interval.
	Range = types.Range

	// DateTimeRange bounds a timestamp interval.
	DateTimeRange = types.DateTimeRange

	// RangeInterface carries either a float or a date-time range.
	RangeInterface = types.RangeInterface

	// CardinalityEstimation describes the expected result size of a filter.
	CardinalityEstimation = types.CardinalityEstimation

	// PayloadBlockCondition is one block of a domain partition.
	PayloadBlockCondition = types.PayloadBlockCondition

	// PayloadIndexTelemetry is the reporting snapshot of an index.
	PayloadIndexTelemetry = types.PayloadIndexTelemetry

	// Flusher persists pending index state; safe to run on a background
	// thread while readers are active.
	Flusher = types.Flusher

	// HardwareCounter accumulates the I/O cost of index reads and writes.
	HardwareCounter = hw.CounterCell

	// UUIDInt is the 128-bit integer form of a UUID payload.
	UUIDInt = codec.U128
)

// NewHardwareCounter creates a fresh cost accumulator.
func NewHardwareCounter() *HardwareCounter {
	return hw.NewCounterCell()
}

// Map indexes over categorical payloads.
type (
	// StringMapIndex is the inverted index over string payloads.
	StringMapIndex = mapindex.Index[string]

	// IntMapIndex is the inverted index over integer payloads.
	IntMapIndex = mapindex.Index[int64]

	// StringMapIndexBuilder bulk-builds a StringMapIndex.
	StringMapIndexBuilder = mapindex.Builder[string]

	// IntMapIndexBuilder bulk-builds an IntMapIndex.
	IntMapIndexBuilder = mapindex.Builder[int64]
)

// Numeric indexes over scalar payloads.
type (
	// IntIndex is the ordered index over signed integer payloads.
	IntIndex = numeric.Index[int64]

	// FloatIndex is the ordered index over float payloads.
	FloatIndex = numeric.Index[float64]

	// UUIDIndex is the ordered index over UUID payloads.
	UUIDIndex = numeric.Index[codec.U128]
)

// Config carries the cross-cutting construction parameters: where the index
// lives, how it is placed, and where it logs.
type Config struct {
	// Path is the index directory. Unused by purely in-memory variants.
	Path string

	// Service tags the logger when no explicit logger is given.
	Service string

	// Logger overrides the default service logger.
	Logger *zap.SugaredLogger
}

func (c Config) logger() *zap.SugaredLogger {
	if c.Logger != nil {
		return c.Logger
	}
	if c.Service != "" {
		return logger.New(c.Service)
	}
	return logger.NewNop()
}

func resolveOptions(opts []options.OptionFunc) options.Options {
	resolved := options.NewDefaultOptions()
	for _, opt := range opts {
		opt(&resolved)
	}
	return resolved
}

// OpenStringMapIndex maps a built string map index. A directory never built
// opens as an empty stub serving empty results.
func OpenStringMapIndex(cfg Config, opts ...options.OptionFunc) (*StringMapIndex, error) {
	resolved := resolveOptions(opts)
	return mapindex.Open[string](mapindex.Config{
		Path:   cfg.Path,
		OnDisk: resolved.OnDisk,
		Logger: cfg.logger(),
	})
}

// OpenIntMapIndex maps a built integer map index.
func OpenIntMapIndex(cfg Config, opts ...options.OptionFunc) (*IntMapIndex, error) {
	resolved := resolveOptions(opts)
	return mapindex.Open[int64](mapindex.Config{
		Path:   cfg.Path,
		OnDisk: resolved.OnDisk,
		Logger: cfg.logger(),
	})
}

// NewStringMapIndexBuilder creates the bulk construction pipeline for a
// string map index at cfg.Path.
func NewStringMapIndexBuilder(cfg Config, opts ...options.OptionFunc) *StringMapIndexBuilder {
	resolved := resolveOptions(opts)
	return mapindex.NewBuilder[string](mapindex.Config{
		Path:   cfg.Path,
		OnDisk: resolved.OnDisk,
		Logger: cfg.logger(),
	})
}

// NewIntMapIndexBuilder creates the bulk construction pipeline for an
// integer map index at cfg.Path.
func NewIntMapIndexBuilder(cfg Config, opts ...options.OptionFunc) *IntMapIndexBuilder {
	resolved := resolveOptions(opts)
	return mapindex.NewBuilder[int64](mapindex.Config{
		Path:   cfg.Path,
		OnDisk: resolved.OnDisk,
		Logger: cfg.logger(),
	})
}

// NewMutableIntIndex creates an appendable in-memory integer index.
func NewMutableIntIndex(cfg Config, opts ...options.OptionFunc) *IntIndex {
	return numeric.NewMutableIndex(numeric.Int64Codec, resolveOptions(opts), cfg.logger())
}

// NewMutableFloatIndex creates an appendable in-memory float index.
func NewMutableFloatIndex(cfg Config, opts ...options.OptionFunc) *FloatIndex {
	return numeric.NewMutableIndex(numeric.Float64Codec, resolveOptions(opts), cfg.logger())
}

// NewMutableUUIDIndex creates an appendable in-memory UUID index.
func NewMutableUUIDIndex(cfg Config, opts ...options.OptionFunc) *UUIDIndex {
	return numeric.NewMutableIndex(numeric.U128Codec, resolveOptions(opts), cfg.logger())
}

// OpenIntMmapIndex loads a built on-disk integer index. RAM placement loads
// the keys into the immutable in-memory form backed by the same files.
func OpenIntMmapIndex(cfg Config, opts ...options.OptionFunc) (*IntIndex, error) {
	return numeric.OpenMmapIndex(cfg.Path, numeric.Int64Codec, resolveOptions(opts), cfg.logger())
}

// OpenFloatMmapIndex loads a built on-disk float index.
func OpenFloatMmapIndex(cfg Config, opts ...options.OptionFunc) (*FloatIndex, error) {
	return numeric.OpenMmapIndex(cfg.Path, numeric.Float64Codec, resolveOptions(opts), cfg.logger())
}

// OpenUUIDMmapIndex loads a built on-disk UUID index.
func OpenUUIDMmapIndex(cfg Config, opts ...options.OptionFunc) (*UUIDIndex, error) {
	return numeric.OpenMmapIndex(cfg.Path, numeric.U128Codec, resolveOptions(opts), cfg.logger())
}

// NewIntMmapBuilder creates the bulk construction pipeline for an on-disk
// integer index at cfg.Path.
func NewIntMmapBuilder(cfg Config, opts ...options.OptionFunc) *numeric.MmapBuilder[int64] {
	return numeric.NewMmapBuilder(cfg.Path, numeric.Int64Codec, resolveOptions(opts), cfg.logger())
}

// NewFloatMmapBuilder creates the bulk construction pipeline for an on-disk
// float index at cfg.Path.
func NewFloatMmapBuilder(cfg Config, opts ...options.OptionFunc) *numeric.MmapBuilder[float64] {
	return numeric.NewMmapBuilder(cfg.Path, numeric.Float64Codec, resolveOptions(opts), cfg.logger())
}

// NewUUIDMmapBuilder creates the bulk construction pipeline for an on-disk
// UUID index at cfg.Path.
func NewUUIDMmapBuilder(cfg Config, opts ...options.OptionFunc) *numeric.MmapBuilder[codec.U128] {
	return numeric.NewMmapBuilder(cfg.Path, numeric.U128Codec, resolveOptions(opts), cfg.logger())
}

// UUIDIntOf converts a parsed UUID into its index value form.
func UUIDIntOf(u uuid.UUID) UUIDInt {
	return codec.U128FromUUID(u)
}
