// Package mapindex implements the memory-mapped inverted index from
// categorical payload values to the points carrying them. One index is a
// directory of four coherent structures: a persistent hashmap from value to
// sorted point ids, the point-to-values inverse, a tombstone bitmap with
// buffered updates, and a JSON config sidecar fixing the build-time totals.
//
// An index whose config sidecar is missing opens as an empty stub: every
// read short-circuits to an empty result so the query planner never has to
// distinguish "no index" from "no matches".
package mapindex

import (
	"encoding/binary"
	"fmt"
	"iter"
	"os"
	"path/filepath"

	"github.com/c2h5oh/datasize"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/iamNilotpal/facet/internal/bitmap"
	"github.com/iamNilotpal/facet/internal/hashmap"
	"github.com/iamNilotpal/facet/internal/hw"
	"github.com/iamNilotpal/facet/internal/mmapx"
	"github.com/iamNilotpal/facet/internal/pointvalues"
	"github.com/iamNilotpal/facet/internal/types"
	"github.com/iamNilotpal/facet/pkg/errors"
	"github.com/iamNilotpal/facet/pkg/filesys"
)

const (
	// ConfigFileName is the JSON sidecar whose presence marks a built index.
	ConfigFileName = "mmap_field_index_config.json"

	// HashmapFileName is the persistent value-to-points hashmap.
	HashmapFileName = "values_to_points.bin"

	// DeletedFileName is the tombstone bit array.
	DeletedFileName = "deleted.bin"
)

// Key constrains the categorical value types the map index supports.
type Key interface {
	~string | ~int64
}

// config is the sidecar payload. The pair total is counted once at build and
// never decremented by deletions, which keeps planner estimates stable.
type config struct {
	TotalKeyValuePairs uint64 `json:"total_key_value_pairs"`
}

// storage bundles the three mmapped structures of an opened index.
type storage[K Key] struct {
	valueToPoints *hashmap.Map
	pointToValues *pointvalues.Store[K]
	deletedRegion *mmapx.Region
	deleted       *bitmap.BufferedUpdateWrapper
}

// Index is the opened (or stub) map index.
type Index[K Key] struct {
	path               string
	log                *zap.SugaredLogger
	onDisk             bool
	storage            *storage[K]
	deletedCount       int
	totalKeyValuePairs int
}

// Config carries the open parameters.
type Config struct {
	Path   string
	OnDisk bool
	Logger *zap.SugaredLogger
}

// Open maps a built index at cfg.Path. A missing config sidecar yields an
// empty stub rather than an error; the tombstone count is recomputed from
// the bitmap.
func Open[K Key](cfg Config) (*Index[K], error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	idx := &Index[K]{path: cfg.Path, log: log, onDisk: cfg.OnDisk}

	configPath := filepath.Join(cfg.Path, ConfigFileName)
	exists, err := filesys.Exists(configPath)
	if err != nil {
		return nil, err
	}
	if !exists {
		// The index was never built; serve empty results.
		return idx, nil
	}

	var cfgFile config
	if err := filesys.ReadJSON(configPath, &cfgFile); err != nil {
		return nil, errors.NewConfigurationValidationError(
			ConfigFileName, "config sidecar is present but unreadable or malformed",
		).WithDetail("path", configPath).WithDetail("cause", err.Error())
	}
	idx.totalKeyValuePairs = int(cfgFile.TotalKeyValuePairs)

	populate := !cfg.OnDisk

	valueToPoints, err := hashmap.Open(filepath.Join(cfg.Path, HashmapFileName), populate)
	if err != nil {
		return nil, err
	}

	pointToValues, err := pointvalues.Open(pointvalues.Config{
		Dir:      cfg.Path,
		Populate: populate,
		Logger:   log,
	}, pvCodec[K]())
	if err != nil {
		valueToPoints.Close()
		return nil, err
	}

	deletedRegion, err := mmapx.Open(filepath.Join(cfg.Path, DeletedFileName), true, populate)
	if err != nil {
		valueToPoints.Close()
		pointToValues.Close()
		return nil, err
	}

	bits := bitmap.NewBitSlice(deletedRegion.Bytes())
	idx.deletedCount = bits.CountOnes()
	idx.storage = &storage[K]{
		valueToPoints: valueToPoints,
		pointToValues: pointToValues,
		deletedRegion: deletedRegion,
		deleted:       bitmap.NewBufferedUpdateWrapper(bits, deletedRegion),
	}

	log.Infow(
		"Opened mmap map index",
		"path", cfg.Path,
		"uniqueValues", valueToPoints.KeysCount(),
		"points", pointToValues.Len(),
		"deleted", idx.deletedCount,
		"onDisk", cfg.OnDisk,
	)
	return idx, nil
}

// Load reports whether backing storage is present.
func (idx *Index[K]) Load() bool {
	return idx.storage != nil
}

// IsOnDisk reports the configured storage placement.
func (idx *Index[K]) IsOnDisk() bool {
	return idx.onDisk
}

// RemovePoint tombstones the point. Idempotent; ids outside the build range
// are a no-op. Writes fail fast: an index that was never built surfaces
// NOT_INITIALIZED instead of silently dropping the deletion.
func (idx *Index[K]) RemovePoint(id types.PointOffsetType) error {
	if idx.storage == nil {
		return errors.NewNotInitializedError("RemovePoint")
	}

	deleted, ok := idx.storage.deleted.Get(int(id))
	if ok && !deleted {
		idx.storage.deleted.Set(int(id), true)
		idx.deletedCount++
	}
	return nil
}

// GetValues returns an iterator over the point's values, or ok=false when
// the point is tombstoned or out of range.
func (idx *Index[K]) GetValues(id types.PointOffsetType) (iter.Seq[K], bool) {
	if idx.storage == nil {
		return nil, false
	}

	if deleted, ok := idx.storage.deleted.Get(int(id)); !ok || deleted {
		return nil, false
	}
	return idx.storage.pointToValues.GetValues(id)
}

// ValuesCount returns how many values the live point carries.
func (idx *Index[K]) ValuesCount(id types.PointOffsetType) (int, bool) {
	if idx.storage == nil {
		return 0, false
	}

	if deleted, ok := idx.storage.deleted.Get(int(id)); !ok || deleted {
		return 0, false
	}
	return idx.storage.pointToValues.GetValuesCount(id)
}

// CheckValuesAny reports whether any value of the live point satisfies the
// predicate, short-circuiting on the first match.
func (idx *Index[K]) CheckValuesAny(id types.PointOffsetType, pred func(K) bool, counter *hw.CounterCell) bool {
	if idx.storage == nil {
		return false
	}

	cc := idx.conditioned(counter)
	cc.IncrRead(1) // the tombstone probe

	if deleted, ok := idx.storage.deleted.Get(int(id)); !ok || deleted {
		return false
	}

	cc.IncrRead(idx.storage.pointToValues.SizeOfValues(id))
	return idx.storage.pointToValues.CheckValuesAny(id, pred)
}

// GetIterator yields the live points carrying the value, ascending by id.
// Corrupted entries are logged and served as "no matches" to keep the query
// alive.
func (idx *Index[K]) GetIterator(value K, counter *hw.CounterCell) iter.Seq[types.PointOffsetType] {
	if idx.storage == nil {
		return emptySeq
	}

	cc := idx.conditioned(counter)

	points, err := idx.storage.valueToPoints.Get(keyBytes(value))
	if err != nil {
		idx.log.Errorw(
			"Error while getting iterator for value",
			"value", value,
			"error", err,
			"errorCode", errors.GetErrorCode(err),
			"errorDetails", errors.GetErrorDetails(err),
		)
		return emptySeq
	}
	if points == nil {
		cc.IncrRead(hashmap.ReadEntryOverhead)
		return emptySeq
	}

	// The whole mmapped slice is handed to the iterator.
	cc.IncrRead(len(points)*4 + hashmap.ReadEntryOverhead)

	deleted := idx.storage.deleted
	return func(yield func(types.PointOffsetType) bool) {
		for _, id := range points {
			if d, ok := deleted.Get(int(id)); ok && d {
				continue
			}
			if !yield(id) {
				return
			}
		}
	}
}

// GetCountForValue returns the stored list length for the value without
// filtering tombstones: an upper bound the planner can fetch cheaply.
func (idx *Index[K]) GetCountForValue(value K, counter *hw.CounterCell) (int, bool) {
	if idx.storage == nil {
		return 0, false
	}

	// The hashmap lookup doesn't materialize the value list, so only the
	// lookup overhead is charged.
	idx.conditioned(counter).IncrRead(hashmap.ReadEntryOverhead)

	points, err := idx.storage.valueToPoints.Get(keyBytes(value))
	if err != nil {
		idx.log.Errorw(
			"Error while getting count for value",
			"value", value,
			"error", err,
			"errorCode", errors.GetErrorCode(err),
			"errorDetails", errors.GetErrorDetails(err),
		)
		return 0, false
	}
	if points == nil {
		return 0, false
	}
	return len(points), true
}

// IterValues yields every distinct value.
func (idx *Index[K]) IterValues() iter.Seq[K] {
	if idx.storage == nil {
		return func(func(K) bool) {}
	}

	all := idx.storage.valueToPoints.All()
	return func(yield func(K) bool) {
		all(func(key []byte, _ []types.PointOffsetType) bool {
			return yield(keyFromBytes[K](key))
		})
	}
}

// IterCountsPerValue yields, for every value, the count of live points
// carrying it. Stored lists are deduplicated at build, so the live count is
// a plain filter.
func (idx *Index[K]) IterCountsPerValue() iter.Seq2[K, int] {
	if idx.storage == nil {
		return func(func(K, int) bool) {}
	}

	all := idx.storage.valueToPoints.All()
	deleted := idx.storage.deleted
	return func(yield func(K, int) bool) {
		all(func(key []byte, points []types.PointOffsetType) bool {
			count := 0
			for _, id := range points {
				if d, ok := deleted.Get(int(id)); ok && !d {
					count++
				}
			}
			return yield(keyFromBytes[K](key), count)
		})
	}
}

// IterValuesMap yields, for every value, an iterator over its live points.
// Reading a key charges its byte length; each id yielded charges its size.
func (idx *Index[K]) IterValuesMap(counter *hw.CounterCell) iter.Seq2[K, iter.Seq[types.PointOffsetType]] {
	if idx.storage == nil {
		return func(func(K, iter.Seq[types.PointOffsetType]) bool) {}
	}

	cc := idx.conditioned(counter)
	all := idx.storage.valueToPoints.All()
	deleted := idx.storage.deleted

	return func(yield func(K, iter.Seq[types.PointOffsetType]) bool) {
		all(func(key []byte, points []types.PointOffsetType) bool {
			cc.IncrRead(len(key))

			ids := func(yieldID func(types.PointOffsetType) bool) {
				for _, id := range points {
					if d, ok := deleted.Get(int(id)); ok && d {
						continue
					}
					cc.IncrRead(4)
					if !yieldID(id) {
						return
					}
				}
			}
			return yield(keyFromBytes[K](key), ids)
		})
	}
}

// GetUniqueValuesCount returns the number of distinct values.
func (idx *Index[K]) GetUniqueValuesCount() int {
	if idx.storage == nil {
		return 0
	}
	return idx.storage.valueToPoints.KeysCount()
}

// GetValuesCount returns the build-time total of key-value pairs. Deletions
// never decrement it: the planner relies on the figure staying stable.
func (idx *Index[K]) GetValuesCount() int {
	return idx.totalKeyValuePairs
}

// GetIndexedPoints returns the number of live points, saturating at zero.
func (idx *Index[K]) GetIndexedPoints() int {
	if idx.storage == nil {
		return 0
	}

	points := idx.storage.pointToValues.Len() - idx.deletedCount
	if points < 0 {
		return 0
	}
	return points
}

// Telemetry returns the reporting snapshot for this index.
func (idx *Index[K]) Telemetry() types.PayloadIndexTelemetry {
	return types.PayloadIndexTelemetry{
		PointsCount:       idx.GetIndexedPoints(),
		PointsValuesCount: idx.totalKeyValuePairs,
		IndexType:         "mmap_map",
	}
}

// Flusher returns a closure persisting pending tombstone flips; a stub
// returns a no-op.
func (idx *Index[K]) Flusher() types.Flusher {
	if idx.storage == nil {
		return types.NoopFlusher()
	}
	return idx.storage.deleted.Flusher()
}

// Files enumerates all backing paths.
func (idx *Index[K]) Files() []string {
	files := []string{
		filepath.Join(idx.path, HashmapFileName),
		filepath.Join(idx.path, DeletedFileName),
		filepath.Join(idx.path, ConfigFileName),
	}
	if idx.storage != nil {
		files = append(files, idx.storage.pointToValues.Files()...)
	}
	return files
}

// ImmutableFiles omits the tombstone bitmap, the only file written after
// build.
func (idx *Index[K]) ImmutableFiles() []string {
	files := []string{
		filepath.Join(idx.path, HashmapFileName),
		filepath.Join(idx.path, ConfigFileName),
	}
	if idx.storage != nil {
		files = append(files, idx.storage.pointToValues.ImmutableFiles()...)
	}
	return files
}

// Populate blocks until all pages of every backing file are resident.
func (idx *Index[K]) Populate() {
	if idx.storage == nil {
		return
	}
	idx.storage.valueToPoints.Populate()
	idx.storage.pointToValues.Populate()
	idx.storage.deletedRegion.Populate()
}

// ClearCache hints the kernel to drop cached pages of the hashmap and the
// tombstone bitmap, then of the point-to-values files.
func (idx *Index[K]) ClearCache() error {
	if err := mmapx.ClearDiskCache(filepath.Join(idx.path, HashmapFileName)); err != nil {
		return err
	}
	if err := mmapx.ClearDiskCache(filepath.Join(idx.path, DeletedFileName)); err != nil {
		return err
	}
	if idx.storage != nil {
		return idx.storage.pointToValues.ClearCache()
	}
	return nil
}

// Close unmaps every backing file.
func (idx *Index[K]) Close() error {
	if idx.storage == nil {
		return nil
	}
	return multierr.Combine(
		idx.storage.valueToPoints.Close(),
		idx.storage.pointToValues.Close(),
		idx.storage.deletedRegion.Close(),
	)
}

// Wipe closes the index and removes every backing file, then the directory.
func (idx *Index[K]) Wipe() error {
	files := idx.Files()
	var errs error
	errs = multierr.Append(errs, idx.Close())
	idx.storage = nil

	for _, f := range files {
		if exists, _ := filesys.Exists(f); exists {
			errs = multierr.Append(errs, filesys.DeleteFile(f))
		}
	}
	_ = os.Remove(idx.path)

	if errs == nil {
		idx.log.Infow("Wiped map index", "path", idx.path)
	}
	return errs
}

func (idx *Index[K]) conditioned(counter *hw.CounterCell) hw.ConditionedCounter {
	return hw.NewConditionedCounter(idx.onDisk, counter)
}

func emptySeq(func(types.PointOffsetType) bool) {}

// keyBytes renders a categorical value into its stable byte representation:
// raw bytes for strings, big-endian for integers.
func keyBytes[K Key](k K) []byte {
	switch v := any(k).(type) {
	case string:
		return []byte(v)
	case int64:
		b := make([]byte, 8)
		binary.BigEndian.PutUint64(b, uint64(v))
		return b
	default:
		// The Key constraint admits derived types; normalize through fmt as
		// the defensive fallback.
		return fmt.Append(nil, v)
	}
}

// keyFromBytes reverses keyBytes.
func keyFromBytes[K Key](b []byte) K {
	var zero K
	switch any(zero).(type) {
	case string:
		return any(string(b)).(K)
	case int64:
		return any(int64(binary.BigEndian.Uint64(b))).(K)
	default:
		return zero
	}
}

// humanSize formats a byte count for logs.
func humanSize(n int64) string {
	return datasize.ByteSize(n).HumanReadable()
}
