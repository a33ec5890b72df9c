package facet

import (
	"iter"
	"time"

	"github.com/iamNilotpal/facet/internal/numeric"
	"github.com/iamNilotpal/facet/internal/types"
	"github.com/iamNilotpal/facet/pkg/options"
)

// DateTimeIndex indexes timestamp payloads. Internally the keys are the
// millisecond i64 projection served by an integer index; this wrapper keeps
// the time.Time surface at the API boundary.
type DateTimeIndex struct {
	inner *IntIndex
}

// NewMutableDateTimeIndex creates an appendable in-memory timestamp index.
func NewMutableDateTimeIndex(cfg Config, opts ...options.OptionFunc) *DateTimeIndex {
	return &DateTimeIndex{
		inner: numeric.NewMutableIndex(numeric.Int64Codec, resolveOptions(opts), cfg.logger()),
	}
}

// OpenDateTimeMmapIndex loads a built on-disk timestamp index.
func OpenDateTimeMmapIndex(cfg Config, opts ...options.OptionFunc) (*DateTimeIndex, error) {
	inner, err := numeric.OpenMmapIndex(cfg.Path, numeric.Int64Codec, resolveOptions(opts), cfg.logger())
	if err != nil {
		return nil, err
	}
	return &DateTimeIndex{inner: inner}, nil
}

// DateTimeMmapBuilder bulk-builds an on-disk timestamp index.
type DateTimeMmapBuilder struct {
	inner *numeric.MmapBuilder[int64]
}

// NewDateTimeMmapBuilder creates the bulk construction pipeline at cfg.Path.
func NewDateTimeMmapBuilder(cfg Config, opts ...options.OptionFunc) *DateTimeMmapBuilder {
	return &DateTimeMmapBuilder{
		inner: numeric.NewMmapBuilder(cfg.Path, numeric.Int64Codec, resolveOptions(opts), cfg.logger()),
	}
}

// AddPoint ingests the timestamps of one point.
func (b *DateTimeMmapBuilder) AddPoint(id PointOffsetType, values []time.Time, counter *HardwareCounter) {
	b.inner.AddPoint(id, timestamps(values), counter)
}

// Finalize materializes the index files and returns the opened index.
func (b *DateTimeMmapBuilder) Finalize() (*DateTimeIndex, error) {
	inner, err := b.inner.Finalize()
	if err != nil {
		return nil, err
	}
	return &DateTimeIndex{inner: inner}, nil
}

// AddMany registers the timestamps of a point. Mutable variant only.
func (d *DateTimeIndex) AddMany(id PointOffsetType, values []time.Time, counter *HardwareCounter) error {
	return d.inner.AddMany(id, timestamps(values), counter)
}

// RemovePoint deletes a point.
func (d *DateTimeIndex) RemovePoint(id PointOffsetType) {
	d.inner.RemovePoint(id)
}

// GetValues returns the timestamps of a live point.
func (d *DateTimeIndex) GetValues(id PointOffsetType) (iter.Seq[time.Time], bool) {
	raw, ok := d.inner.GetValues(id)
	if !ok {
		return nil, false
	}
	return func(yield func(time.Time) bool) {
		raw(func(ms int64) bool {
			return yield(fromMillis(ms))
		})
	}, true
}

// Filter resolves a condition to matching point ids. Date-time ranges are
// translated onto the millisecond keys.
func (d *DateTimeIndex) Filter(cond FieldCondition, counter *HardwareCounter) (iter.Seq[PointOffsetType], bool) {
	return d.inner.Filter(cond, counter)
}

// EstimateCardinality estimates the result size of a condition.
func (d *DateTimeIndex) EstimateCardinality(cond FieldCondition, counter *HardwareCounter) (CardinalityEstimation, bool) {
	return d.inner.EstimateCardinality(cond, counter)
}

// PayloadBlocks partitions the time domain into planner blocks.
func (d *DateTimeIndex) PayloadBlocks(threshold int, key string) []PayloadBlockCondition {
	return d.inner.PayloadBlocks(threshold, key)
}

// StreamRange yields (timestamp, id) pairs in key order; reverse serves
// descending order-by scans.
func (d *DateTimeIndex) StreamRange(r *RangeInterface, reverse bool) iter.Seq2[time.Time, PointOffsetType] {
	raw := d.inner.StreamRange(r, reverse)
	return func(yield func(time.Time, PointOffsetType) bool) {
		raw(func(ms int64, id types.PointOffsetType) bool {
			return yield(fromMillis(ms), id)
		})
	}
}

// Flusher persists pending tombstones.
func (d *DateTimeIndex) Flusher() Flusher {
	return d.inner.Flusher()
}

// Files enumerates the backing paths.
func (d *DateTimeIndex) Files() []string {
	return d.inner.Files()
}

// Telemetry returns the reporting snapshot.
func (d *DateTimeIndex) Telemetry() PayloadIndexTelemetry {
	return d.inner.Telemetry()
}

// Wipe removes every backing file.
func (d *DateTimeIndex) Wipe() error {
	return d.inner.Wipe()
}

// Close releases the backing storage.
func (d *DateTimeIndex) Close() error {
	return d.inner.Close()
}

func timestamps(values []time.Time) []int64 {
	out := make([]int64, len(values))
	for i, v := range values {
		out[i] = v.UnixMilli()
	}
	return out
}

func fromMillis(ms int64) time.Time {
	return time.Unix(ms/1000, (ms%1000)*1_000_000).UTC()
}
