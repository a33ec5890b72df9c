package numeric

import (
	"go.uber.org/zap"

	"github.com/iamNilotpal/facet/internal/hw"
	"github.com/iamNilotpal/facet/internal/types"
	"github.com/iamNilotpal/facet/pkg/options"
)

// accumulator collects dense per-point value lists during bulk construction.
// Re-adding a point replaces its previous values, matching incremental
// upsert semantics at build time.
type accumulator[T any] struct {
	pointValues [][]T
}

func (a *accumulator[T]) addPoint(id types.PointOffsetType, values []T) {
	for int(id) >= len(a.pointValues) {
		a.pointValues = append(a.pointValues, nil)
	}

	stored := make([]T, len(values))
	copy(stored, values)
	a.pointValues[id] = stored
}

// MmapBuilder is the bulk construction pipeline for the memory-mapped
// variant: ingest everything in RAM, then materialize the on-disk layout in
// one pass and open it.
type MmapBuilder[T any] struct {
	codec ValueCodec[T]
	dir   string
	opts  options.Options
	log   *zap.SugaredLogger
	acc   accumulator[T]
}

// NewMmapBuilder creates a builder targeting dir.
func NewMmapBuilder[T any](dir string, vc ValueCodec[T], opts options.Options, log *zap.SugaredLogger) *MmapBuilder[T] {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &MmapBuilder[T]{codec: vc, dir: dir, opts: opts, log: log}
}

// AddPoint ingests the values of one point, replacing anything previously
// added for the same id. The serialized key bytes are charged as write cost.
func (b *MmapBuilder[T]) AddPoint(id types.PointOffsetType, values []T, counter *hw.CounterCell) {
	counter.IncrPayloadIndexIOWrite(len(values) * b.codec.KeySize)
	b.acc.addPoint(id, values)
}

// Finalize materializes the index files and returns the opened mmap-variant
// index.
func (b *MmapBuilder[T]) Finalize() (*Index[T], error) {
	store, err := BuildMmap(MmapConfig{
		Dir:           b.dir,
		OnDisk:        b.opts.OnDisk,
		Logger:        b.log,
		MaxBucketSize: b.opts.HistogramMaxBucketSize,
		Precision:     b.opts.HistogramPrecision,
	}, b.codec, b.acc.pointValues)
	if err != nil {
		return nil, err
	}

	return &Index[T]{codec: b.codec, log: b.log, mmap: store}, nil
}

// ImmutableBuilder is the bulk construction pipeline for the in-RAM
// read-optimized variant.
type ImmutableBuilder[T any] struct {
	codec ValueCodec[T]
	opts  options.Options
	log   *zap.SugaredLogger
	acc   accumulator[T]
}

// NewImmutableBuilder creates a builder for an in-RAM index.
func NewImmutableBuilder[T any](vc ValueCodec[T], opts options.Options, log *zap.SugaredLogger) *ImmutableBuilder[T] {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &ImmutableBuilder[T]{codec: vc, opts: opts, log: log}
}

// AddPoint ingests the values of one point.
func (b *ImmutableBuilder[T]) AddPoint(id types.PointOffsetType, values []T) {
	b.acc.addPoint(id, values)
}

// Finalize freezes the accumulated data into the immutable variant.
func (b *ImmutableBuilder[T]) Finalize() *Index[T] {
	return NewImmutableIndex(b.codec, b.acc.pointValues, b.opts, b.log)
}

// MutableBuilder constructs the appendable variant, which is its own
// accumulation structure; finalize just runs the flusher for symmetry with
// the other pipelines.
type MutableBuilder[T any] struct {
	index *Index[T]
}

// NewMutableBuilder creates a builder over a fresh mutable index.
func NewMutableBuilder[T any](vc ValueCodec[T], opts options.Options, log *zap.SugaredLogger) *MutableBuilder[T] {
	return &MutableBuilder[T]{index: NewMutableIndex(vc, opts, log)}
}

// AddPoint ingests the values of one point.
func (b *MutableBuilder[T]) AddPoint(id types.PointOffsetType, values []T, counter *hw.CounterCell) error {
	return b.index.AddMany(id, values, counter)
}

// Finalize flushes and returns the mutable index.
func (b *MutableBuilder[T]) Finalize() (*Index[T], error) {
	if err := b.index.Flusher()(); err != nil {
		return nil, err
	}
	return b.index, nil
}
