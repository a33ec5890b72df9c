package numeric

import (
	"bytes"
	"iter"
	"os"
	"path/filepath"
	"sort"

	"github.com/c2h5oh/datasize"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/iamNilotpal/facet/internal/bitmap"
	"github.com/iamNilotpal/facet/internal/histogram"
	"github.com/iamNilotpal/facet/internal/hw"
	"github.com/iamNilotpal/facet/internal/mmapx"
	"github.com/iamNilotpal/facet/internal/pointvalues"
	"github.com/iamNilotpal/facet/internal/types"
	"github.com/iamNilotpal/facet/pkg/errors"
	"github.com/iamNilotpal/facet/pkg/filesys"
	"github.com/iamNilotpal/facet/pkg/options"
)

const (
	// DataFileName holds the ascending sequence of encoded keys at a fixed
	// stride determined by the value codec.
	DataFileName = "data.bin"

	// DeletedFileName is the tombstone bit array.
	DeletedFileName = "deleted.bin"
)

// MmapStore is the memory-mapped variant: the sorted key file searched by
// binary search over fixed-stride encoded keys, the point-to-values inverse,
// and the buffered tombstone bitmap. Everything but the bitmap is immutable
// after build.
type MmapStore[T any] struct {
	codec         ValueCodec[T]
	dir           string
	log           *zap.SugaredLogger
	onDisk        bool
	maxBucketSize int
	precision     float64

	data          *mmapx.Region
	deletedRegion *mmapx.Region
	deleted       *bitmap.BufferedUpdateWrapper
	pointToValues *pointvalues.Store[T]
	histogram     *histogram.Histogram[T]

	keysCount         int
	pointsCount       int
	totalValues       int
	maxValuesPerPoint int
	deletedCount      int
}

// MmapConfig carries the parameters shared by build and open.
type MmapConfig struct {
	Dir           string
	OnDisk        bool
	Logger        *zap.SugaredLogger
	MaxBucketSize int
	Precision     float64
}

// BuildMmap materializes the three on-disk structures from dense per-point
// value lists and opens the result. Points with no values are tombstoned in
// the fresh bitmap.
func BuildMmap[T any](cfg MmapConfig, codec ValueCodec[T], pointValues [][]T) (*MmapStore[T], error) {
	if cfg.Dir == "" {
		return nil, errors.NewRequiredFieldError("dir")
	}
	if cfg.MaxBucketSize <= 0 || cfg.MaxBucketSize > options.DefaultHistogramMaxBucketSize {
		return nil, errors.NewFieldRangeError(
			"maxBucketSize", cfg.MaxBucketSize, 1, options.DefaultHistogramMaxBucketSize,
		)
	}
	if cfg.Precision <= 0 || cfg.Precision >= 1 {
		return nil, errors.NewValidationError(
			nil, errors.ErrorCodeInvalidInput, "Histogram precision must be a ratio",
		).WithField("precision").
			WithRule("range").
			WithProvided(cfg.Precision).
			WithExpected("a value strictly between 0 and 1")
	}

	if err := filesys.CreateDir(cfg.Dir, 0755, true); err != nil {
		return nil, err
	}

	points := make([]Point[T], 0, len(pointValues))
	for id, values := range pointValues {
		for _, v := range values {
			points = append(points, Point[T]{Value: v, ID: types.PointOffsetType(id)})
		}
	}
	sort.Slice(points, func(i, j int) bool {
		return codec.cmpPoint(points[i], points[j]) < 0
	})

	dataPath := filepath.Join(cfg.Dir, DataFileName)
	data, err := mmapx.Create(dataPath, int64(len(points)*codec.KeySize))
	if err != nil {
		return nil, err
	}
	raw := data.Bytes()
	for i, p := range points {
		copy(raw[i*codec.KeySize:], codec.EncodeKey(p.Value, p.ID))
	}
	if err := data.Flush(); err != nil {
		data.Close()
		return nil, err
	}
	if err := data.Close(); err != nil {
		return nil, err
	}

	if err := pointvalues.Build(pointvalues.Config{Dir: cfg.Dir}, codec.PointValues, pointValues); err != nil {
		return nil, err
	}

	deletedPath := filepath.Join(cfg.Dir, DeletedFileName)
	deletedRegion, err := mmapx.Create(deletedPath, int64(bitmap.WordLengthFor(len(pointValues))))
	if err != nil {
		return nil, err
	}
	bits := bitmap.NewBitSlice(deletedRegion.Bytes())
	for id, values := range pointValues {
		if len(values) == 0 {
			bits.Set(id, true)
		}
	}
	if err := deletedRegion.Flush(); err != nil {
		deletedRegion.Close()
		return nil, err
	}
	if err := deletedRegion.Close(); err != nil {
		return nil, err
	}

	return OpenMmap(cfg, codec)
}

// OpenMmap maps the on-disk structures. The histogram is rebuilt from the
// key file; point statistics are recomputed from the offsets array crossed
// with the tombstone bitmap.
func OpenMmap[T any](cfg MmapConfig, codec ValueCodec[T]) (*MmapStore[T], error) {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	populate := !cfg.OnDisk

	data, err := mmapx.Open(filepath.Join(cfg.Dir, DataFileName), false, populate)
	if err != nil {
		return nil, err
	}

	deletedRegion, err := mmapx.Open(filepath.Join(cfg.Dir, DeletedFileName), true, populate)
	if err != nil {
		data.Close()
		return nil, err
	}

	p2v, err := pointvalues.Open(pointvalues.Config{
		Dir:      cfg.Dir,
		Populate: populate,
		Logger:   log,
	}, codec.PointValues)
	if err != nil {
		data.Close()
		deletedRegion.Close()
		return nil, err
	}

	s := &MmapStore[T]{
		codec:         codec,
		dir:           cfg.Dir,
		log:           log,
		onDisk:        cfg.OnDisk,
		maxBucketSize: cfg.MaxBucketSize,
		precision:     cfg.Precision,
		data:          data,
		deletedRegion: deletedRegion,
		deleted:       bitmap.NewBufferedUpdateWrapper(bitmap.NewBitSlice(deletedRegion.Bytes()), deletedRegion),
		pointToValues: p2v,
		keysCount:     data.Len() / codec.KeySize,
	}

	// Rebuild the histogram from the sorted key file.
	points := make([]Point[T], 0, s.keysCount)
	for i := 0; i < s.keysCount; i++ {
		id, v := codec.DecodeKey(s.keyAt(i))
		points = append(points, Point[T]{Value: v, ID: id})
	}
	s.histogram = histogram.BuildFromSorted(codec.ops(), cfg.MaxBucketSize, cfg.Precision, points)
	s.totalValues = s.keysCount

	bits := bitmap.NewBitSlice(deletedRegion.Bytes())
	for id := 0; id < p2v.Len(); id++ {
		count, ok := p2v.GetValuesCount(types.PointOffsetType(id))
		if !ok || count == 0 {
			continue
		}
		if bits.Get(id) {
			s.totalValues -= count
			continue
		}
		s.pointsCount++
		if count > s.maxValuesPerPoint {
			s.maxValuesPerPoint = count
		}
	}
	// Build-time tombstones for empty points count toward deletions too.
	s.deletedCount = bits.CountOnes()

	log.Infow(
		"Opened mmap numeric index",
		"dir", cfg.Dir,
		"keys", s.keysCount,
		"points", s.pointsCount,
		"dataSize", datasize.ByteSize(data.Len()).HumanReadable(),
		"onDisk", cfg.OnDisk,
	)
	return s, nil
}

func (s *MmapStore[T]) keyAt(i int) []byte {
	return s.data.Bytes()[i*s.codec.KeySize : (i+1)*s.codec.KeySize]
}

func (s *MmapStore[T]) idAt(i int) types.PointOffsetType {
	id, _ := s.codec.DecodeKey(s.keyAt(i))
	return id
}

// searchRange resolves [start, end] to a half-open window over the key file
// using binary search on the encoded form, which shares the key order.
func (s *MmapStore[T]) searchRange(start, end PointBound[T]) (int, int) {
	if !checkBoundaries(s.codec, start, end) {
		return 0, 0
	}

	lo := 0
	if start.Kind != histogram.Unbounded {
		enc := s.codec.EncodeKey(start.Value.Value, start.Value.ID)
		strict := start.Kind == histogram.Excluded
		lo = sort.Search(s.keysCount, func(i int) bool {
			c := bytes.Compare(s.keyAt(i), enc)
			if strict {
				return c > 0
			}
			return c >= 0
		})
	}

	hi := s.keysCount
	if end.Kind != histogram.Unbounded {
		enc := s.codec.EncodeKey(end.Value.Value, end.Value.ID)
		strict := end.Kind == histogram.Excluded
		hi = sort.Search(s.keysCount, func(i int) bool {
			c := bytes.Compare(s.keyAt(i), enc)
			if strict {
				return c >= 0
			}
			return c > 0
		})
	}

	if hi < lo {
		hi = lo
	}
	return lo, hi
}

// ValuesRange yields the live point ids of keys inside [start, end] in key
// order, charging the scanned key bytes to the cost counter.
func (s *MmapStore[T]) ValuesRange(start, end PointBound[T], counter *hw.CounterCell) iter.Seq[types.PointOffsetType] {
	lo, hi := s.searchRange(start, end)
	s.conditioned(counter).IncrRead((hi - lo) * s.codec.KeySize)

	return func(yield func(types.PointOffsetType) bool) {
		for i := lo; i < hi; i++ {
			id := s.idAt(i)
			if deleted, ok := s.deleted.Get(int(id)); ok && deleted {
				continue
			}
			if !yield(id) {
				return
			}
		}
	}
}

// ValuesRangeSize counts the keys inside [start, end], tombstones included.
func (s *MmapStore[T]) ValuesRangeSize(start, end PointBound[T]) int {
	lo, hi := s.searchRange(start, end)
	return hi - lo
}

// StreamRange yields (value, id) pairs of live keys inside [start, end],
// ascending or descending by key.
func (s *MmapStore[T]) StreamRange(start, end PointBound[T], reverse bool) iter.Seq2[T, types.PointOffsetType] {
	lo, hi := s.searchRange(start, end)
	return func(yield func(T, types.PointOffsetType) bool) {
		emit := func(i int) bool {
			id, v := s.codec.DecodeKey(s.keyAt(i))
			if deleted, ok := s.deleted.Get(int(id)); ok && deleted {
				return true
			}
			return yield(v, id)
		}
		if reverse {
			for i := hi - 1; i >= lo; i-- {
				if !emit(i) {
					return
				}
			}
			return
		}
		for i := lo; i < hi; i++ {
			if !emit(i) {
				return
			}
		}
	}
}

// RemovePoint tombstones the point through the buffered bitmap. Idempotent.
func (s *MmapStore[T]) RemovePoint(id types.PointOffsetType) {
	deleted, ok := s.deleted.Get(int(id))
	if !ok || deleted {
		return
	}

	s.deleted.Set(int(id), true)
	s.deletedCount++
	if count, ok := s.pointToValues.GetValuesCount(id); ok && count > 0 {
		s.pointsCount--
		s.totalValues -= count
	}
}

// GetValues returns the values of a live point.
func (s *MmapStore[T]) GetValues(id types.PointOffsetType) (iter.Seq[T], bool) {
	if deleted, ok := s.deleted.Get(int(id)); !ok || deleted {
		return nil, false
	}
	return s.pointToValues.GetValues(id)
}

// ValuesCount returns how many values the live point carries.
func (s *MmapStore[T]) ValuesCount(id types.PointOffsetType) (int, bool) {
	if deleted, ok := s.deleted.Get(int(id)); !ok || deleted {
		return 0, false
	}
	return s.pointToValues.GetValuesCount(id)
}

// CheckValuesAny reports whether any value of the live point satisfies the
// predicate, charging the tombstone probe and the scanned bytes.
func (s *MmapStore[T]) CheckValuesAny(id types.PointOffsetType, pred func(T) bool, counter *hw.CounterCell) bool {
	cc := s.conditioned(counter)
	cc.IncrRead(1)

	if deleted, ok := s.deleted.Get(int(id)); !ok || deleted {
		return false
	}
	cc.IncrRead(s.pointToValues.SizeOfValues(id))
	return s.pointToValues.CheckValuesAny(id, pred)
}

// GetPointsCount returns the number of live points carrying values.
func (s *MmapStore[T]) GetPointsCount() int {
	return s.pointsCount
}

// TotalUniqueValuesCount returns the number of live (value, id) keys.
func (s *MmapStore[T]) TotalUniqueValuesCount() int {
	return s.totalValues
}

// GetMaxValuesPerPoint returns the largest value list seen at open time.
func (s *MmapStore[T]) GetMaxValuesPerPoint() int {
	return s.maxValuesPerPoint
}

// Histogram exposes the histogram rebuilt at open.
func (s *MmapStore[T]) Histogram() *histogram.Histogram[T] {
	return s.histogram
}

// IsOnDisk reports the configured storage placement.
func (s *MmapStore[T]) IsOnDisk() bool {
	return s.onDisk
}

// Flusher persists pending tombstone flips.
func (s *MmapStore[T]) Flusher() types.Flusher {
	return s.deleted.Flusher()
}

// Files enumerates all backing paths.
func (s *MmapStore[T]) Files() []string {
	files := []string{
		filepath.Join(s.dir, DataFileName),
		filepath.Join(s.dir, DeletedFileName),
	}
	return append(files, s.pointToValues.Files()...)
}

// ImmutableFiles omits the tombstone bitmap, the only file written after
// build.
func (s *MmapStore[T]) ImmutableFiles() []string {
	files := []string{filepath.Join(s.dir, DataFileName)}
	return append(files, s.pointToValues.ImmutableFiles()...)
}

// Populate blocks until all pages of every backing file are resident.
func (s *MmapStore[T]) Populate() {
	s.data.Populate()
	s.deletedRegion.Populate()
	s.pointToValues.Populate()
}

// ClearCache hints the kernel to drop cached pages of every backing file.
func (s *MmapStore[T]) ClearCache() error {
	if err := s.data.ClearCache(); err != nil {
		return err
	}
	if err := s.deletedRegion.ClearCache(); err != nil {
		return err
	}
	return s.pointToValues.ClearCache()
}

// Close unmaps every backing file.
func (s *MmapStore[T]) Close() error {
	return multierr.Combine(
		s.data.Close(),
		s.deletedRegion.Close(),
		s.pointToValues.Close(),
	)
}

// Wipe closes the store and removes every backing file and the directory.
func (s *MmapStore[T]) Wipe() error {
	files := s.Files()
	var errs error
	errs = multierr.Append(errs, s.Close())
	for _, f := range files {
		errs = multierr.Append(errs, filesys.DeleteFile(f))
	}
	// The directory may hold sibling indexes; removing it is best-effort.
	_ = os.Remove(s.dir)
	return errs
}

func (s *MmapStore[T]) conditioned(counter *hw.CounterCell) hw.ConditionedCounter {
	return hw.NewConditionedCounter(s.onDisk, counter)
}
