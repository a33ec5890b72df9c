package numeric

import (
	"iter"
	"math"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/iamNilotpal/facet/internal/codec"
	"github.com/iamNilotpal/facet/internal/histogram"
	"github.com/iamNilotpal/facet/internal/hw"
	"github.com/iamNilotpal/facet/internal/types"
	"github.com/iamNilotpal/facet/pkg/errors"
	"github.com/iamNilotpal/facet/pkg/options"
)

// Index is the numeric index facade: exactly one of the three storage
// variants is set, and every operation dispatches to it. The variant is
// picked at construction time, so the per-iterator hot path never pays for
// dynamic dispatch.
type Index[T any] struct {
	codec     ValueCodec[T]
	log       *zap.SugaredLogger
	mutable   *Mutable[T]
	immutable *Immutable[T]
	mmap      *MmapStore[T]
}

// NewMutableIndex creates an appendable in-memory index.
func NewMutableIndex[T any](vc ValueCodec[T], opts options.Options, log *zap.SugaredLogger) *Index[T] {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Index[T]{
		codec:   vc,
		log:     log,
		mutable: NewMutable(vc, opts.HistogramMaxBucketSize, opts.HistogramPrecision),
	}
}

// NewImmutableIndex freezes dense per-point value lists into the in-RAM
// read-optimized variant.
func NewImmutableIndex[T any](vc ValueCodec[T], pointValues [][]T, opts options.Options, log *zap.SugaredLogger) *Index[T] {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Index[T]{
		codec:     vc,
		log:       log,
		immutable: NewImmutable(vc, pointValues, opts.HistogramMaxBucketSize, opts.HistogramPrecision),
	}
}

// OpenMmapIndex loads a built on-disk index. On-disk placement keeps the
// mmap variant; RAM placement loads the keys into the immutable variant with
// the mmap retained as backing storage.
func OpenMmapIndex[T any](dir string, vc ValueCodec[T], opts options.Options, log *zap.SugaredLogger) (*Index[T], error) {
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	store, err := OpenMmap(MmapConfig{
		Dir:           dir,
		OnDisk:        opts.OnDisk,
		Logger:        log,
		MaxBucketSize: opts.HistogramMaxBucketSize,
		Precision:     opts.HistogramPrecision,
	}, vc)
	if err != nil {
		return nil, err
	}

	if opts.OnDisk {
		return &Index[T]{codec: vc, log: log, mmap: store}, nil
	}
	return &Index[T]{codec: vc, log: log, immutable: ImmutableFromMmap(store)}, nil
}

// Variant names the active storage variant.
func (idx *Index[T]) Variant() string {
	switch {
	case idx.mutable != nil:
		return "mutable_numeric"
	case idx.immutable != nil:
		return "immutable_numeric"
	default:
		return "mmap_numeric"
	}
}

// Load reports whether storage is present. All constructed variants are
// loaded by definition; the method exists for the planner's probing contract.
func (idx *Index[T]) Load() bool {
	return idx.mutable != nil || idx.immutable != nil || idx.mmap != nil
}

// AddMany registers values for a point. Only the mutable variant accepts it.
func (idx *Index[T]) AddMany(id types.PointOffsetType, values []T, counter *hw.CounterCell) error {
	if idx.mutable == nil {
		return errors.NewWrongMutabilityError(idx.Variant())
	}

	counter.IncrPayloadIndexIOWrite(len(values) * idx.codec.KeySize)
	idx.mutable.AddMany(id, values)
	return nil
}

// RemovePoint deletes a point: physically for the mutable variant, via
// tombstone for the others. Unknown ids are a no-op.
func (idx *Index[T]) RemovePoint(id types.PointOffsetType) {
	switch {
	case idx.mutable != nil:
		idx.mutable.RemovePoint(id)
	case idx.immutable != nil:
		idx.immutable.RemovePoint(id)
	default:
		idx.mmap.RemovePoint(id)
	}
}

// GetPointsCount returns the number of live points carrying values.
func (idx *Index[T]) GetPointsCount() int {
	switch {
	case idx.mutable != nil:
		return idx.mutable.GetPointsCount()
	case idx.immutable != nil:
		return idx.immutable.GetPointsCount()
	default:
		return idx.mmap.GetPointsCount()
	}
}

// TotalUniqueValuesCount returns the number of (value, id) keys.
func (idx *Index[T]) TotalUniqueValuesCount() int {
	switch {
	case idx.mutable != nil:
		return idx.mutable.TotalUniqueValuesCount()
	case idx.immutable != nil:
		return idx.immutable.TotalUniqueValuesCount()
	default:
		return idx.mmap.TotalUniqueValuesCount()
	}
}

// GetMaxValuesPerPoint returns the largest value list of any point. Zero for
// an empty index.
func (idx *Index[T]) GetMaxValuesPerPoint() int {
	switch {
	case idx.mutable != nil:
		return idx.mutable.GetMaxValuesPerPoint()
	case idx.immutable != nil:
		return idx.immutable.GetMaxValuesPerPoint()
	default:
		return idx.mmap.GetMaxValuesPerPoint()
	}
}

// Histogram returns the active variant's histogram.
func (idx *Index[T]) Histogram() *histogram.Histogram[T] {
	switch {
	case idx.mutable != nil:
		return idx.mutable.Histogram()
	case idx.immutable != nil:
		return idx.immutable.Histogram()
	default:
		return idx.mmap.Histogram()
	}
}

// GetValues returns the values of a live point.
func (idx *Index[T]) GetValues(id types.PointOffsetType) (iter.Seq[T], bool) {
	switch {
	case idx.mutable != nil:
		return idx.mutable.GetValues(id)
	case idx.immutable != nil:
		return idx.immutable.GetValues(id)
	default:
		return idx.mmap.GetValues(id)
	}
}

// ValuesCount returns how many values the live point carries.
func (idx *Index[T]) ValuesCount(id types.PointOffsetType) int {
	var count int
	switch {
	case idx.mutable != nil:
		count, _ = idx.mutable.ValuesCount(id)
	case idx.immutable != nil:
		count, _ = idx.immutable.ValuesCount(id)
	default:
		count, _ = idx.mmap.ValuesCount(id)
	}
	return count
}

// ValuesIsEmpty reports whether the point carries no values.
func (idx *Index[T]) ValuesIsEmpty(id types.PointOffsetType) bool {
	return idx.ValuesCount(id) == 0
}

// CheckValuesAny reports whether any value of the live point satisfies the
// predicate.
func (idx *Index[T]) CheckValuesAny(id types.PointOffsetType, pred func(T) bool, counter *hw.CounterCell) bool {
	switch {
	case idx.mutable != nil:
		return idx.mutable.CheckValuesAny(id, pred)
	case idx.immutable != nil:
		return idx.immutable.CheckValuesAny(id, pred)
	default:
		return idx.mmap.CheckValuesAny(id, pred, counter)
	}
}

// ValuesRange yields the live point ids of keys inside [start, end].
func (idx *Index[T]) ValuesRange(start, end PointBound[T], counter *hw.CounterCell) iter.Seq[types.PointOffsetType] {
	switch {
	case idx.mutable != nil:
		return idx.mutable.ValuesRange(start, end)
	case idx.immutable != nil:
		return idx.immutable.ValuesRange(start, end)
	default:
		return idx.mmap.ValuesRange(start, end, counter)
	}
}

// ValuesRangeSize counts keys inside [start, end], tombstones included.
func (idx *Index[T]) ValuesRangeSize(start, end PointBound[T]) int {
	switch {
	case idx.mutable != nil:
		return idx.mutable.ValuesRangeSize(start, end)
	case idx.immutable != nil:
		return idx.immutable.ValuesRangeSize(start, end)
	default:
		return idx.mmap.ValuesRangeSize(start, end)
	}
}

// PointIDsByValue yields every live point carrying exactly this value.
func (idx *Index[T]) PointIDsByValue(value T, counter *hw.CounterCell) iter.Seq[types.PointOffsetType] {
	start := histogram.IncludedOf(Point[T]{Value: value, ID: types.PointIDMin})
	end := histogram.IncludedOf(Point[T]{Value: value, ID: types.PointIDMax})
	return idx.ValuesRange(start, end, counter)
}

// StreamRange yields (value, id) pairs inside the planner range in key
// order; the reverse direction serves descending order-by scans. Invalid
// intervals yield nothing.
func (idx *Index[T]) StreamRange(r *types.RangeInterface, reverse bool) iter.Seq2[T, types.PointOffsetType] {
	gt, gte, lt, lte := valueRange(idx.codec, r)
	start, end := asIndexKeyBounds(gt, gte, lt, lte)

	switch {
	case idx.mutable != nil:
		return idx.mutable.StreamRange(start, end, reverse)
	case idx.immutable != nil:
		return idx.immutable.StreamRange(start, end, reverse)
	default:
		return idx.mmap.StreamRange(start, end, reverse)
	}
}

// Filter resolves a planner condition to an iterator of matching point ids.
// A string match that parses as a UUID is answered as a 128-bit value
// lookup; a range condition becomes a key-interval scan; anything else is
// not answerable by this index.
func (idx *Index[T]) Filter(cond types.FieldCondition, counter *hw.CounterCell) (iter.Seq[types.PointOffsetType], bool) {
	if cond.Match != nil && cond.Match.Keyword != nil {
		if parsed, err := uuid.Parse(*cond.Match.Keyword); err == nil {
			value := idx.valueFromU128(codec.U128FromUUID(parsed))
			return idx.PointIDsByValue(value, counter), true
		}
	}

	if cond.Range == nil {
		return nil, false
	}

	gt, gte, lt, lte := valueRange(idx.codec, cond.Range)
	start, end := asIndexKeyBounds(gt, gte, lt, lte)
	return idx.ValuesRange(start, end, counter), true
}

// EstimateCardinality estimates the result size of a condition and attaches
// it as the primary clause. UUID equality is answered exactly.
func (idx *Index[T]) EstimateCardinality(cond types.FieldCondition, counter *hw.CounterCell) (types.CardinalityEstimation, bool) {
	if cond.Match != nil && cond.Match.Keyword != nil {
		if parsed, err := uuid.Parse(*cond.Match.Keyword); err == nil {
			value := idx.valueFromU128(codec.U128FromUUID(parsed))
			estimated := idx.EstimatePoints(value, counter)
			return types.Exact(estimated).WithPrimaryClause(&cond), true
		}
	}

	if cond.Range == nil {
		return types.CardinalityEstimation{}, false
	}

	estimation := idx.RangeCardinality(cond.Range)
	return estimation.WithPrimaryClause(&cond), true
}

// RangeCardinality estimates how many distinct points a range condition
// touches, combining the histogram estimate with the multi-value occupancy
// correction.
func (idx *Index[T]) RangeCardinality(r *types.RangeInterface) types.CardinalityEstimation {
	maxValuesPerPoint := idx.GetMaxValuesPerPoint()
	if maxValuesPerPoint == 0 {
		return types.Exact(0)
	}

	gt, gte, lt, lte := valueRange(idx.codec, r)

	gbound := histogram.UnboundedOf[T]()
	switch {
	case gte != nil:
		gbound = histogram.IncludedOf(*gte)
	case gt != nil:
		gbound = histogram.ExcludedOf(*gt)
	}

	lbound := histogram.UnboundedOf[T]()
	switch {
	case lte != nil:
		lbound = histogram.IncludedOf(*lte)
	case lt != nil:
		lbound = histogram.ExcludedOf(*lt)
	}

	minEstimation, expEstimation, maxEstimation := idx.Histogram().Estimate(gbound, lbound)

	totalValues := idx.TotalUniqueValuesCount()
	pointsCount := idx.GetPointsCount()

	// A point with k values can contribute up to k keys to the histogram
	// count, so dividing by the worst-case multiplicity lower-bounds the
	// distinct points. The second term tightens it when values outnumber
	// points only slightly.
	surplus := totalValues - pointsCount
	expectedMin := max(
		minEstimation/maxValuesPerPoint,
		max(min(1, minEstimation), saturatingSub(minEstimation, surplus)),
	)
	expectedMax := min(pointsCount, maxEstimation)

	estimation := int(math.Round(
		estimateMultiValueSelectionCardinality(pointsCount, totalValues, expEstimation),
	))

	return types.CardinalityEstimation{
		Min: expectedMin,
		Exp: min(expectedMax, max(estimation, expectedMin)),
		Max: expectedMax,
	}
}

// EstimatePoints estimates how many points carry the given value. The
// mutable variant reads at most the two endpoints of the sub-tree; the array
// variants divide the key-range size by the average value multiplicity. The
// cost of the two binary searches is charged to the counter.
func (idx *Index[T]) EstimatePoints(value T, counter *hw.CounterCell) int {
	start := histogram.IncludedOf(Point[T]{Value: value, ID: types.PointIDMin})
	end := histogram.IncludedOf(Point[T]{Value: value, ID: types.PointIDMax})

	if unique := idx.TotalUniqueValuesCount(); unique > 0 {
		counter.IncrPayloadIndexIORead(2 * int(math.Ceil(math.Log2(float64(unique)))))
	}

	if idx.mutable != nil {
		first, last, n := idx.mutable.RangeEndpoints(start, end)
		switch n {
		case 0:
			return 0
		case 1:
			return 1
		default:
			// Ids inside one value run ascend, so the id distance estimates
			// the run length without walking it.
			return int(last.ID - first.ID)
		}
	}

	rangeSize := idx.ValuesRangeSize(start, end)
	if rangeSize == 0 {
		return 0
	}

	avgValuesPerPoint := float64(idx.TotalUniqueValuesCount()) / float64(idx.GetPointsCount())
	return int(math.Round(math.Max(float64(rangeSize)/avgValuesPerPoint, 1)))
}

// PayloadBlocks partitions the value domain into non-overlapping conditions,
// each targeting a cardinality around the threshold, by walking the
// histogram in lock-step with GetRangeBySize. An empty or tiny index yields
// one all-covering block.
func (idx *Index[T]) PayloadBlocks(threshold int, key string) []types.PayloadBlockCondition {
	pointsCount := idx.GetPointsCount()

	effectiveThreshold := threshold
	if pointsCount > 0 {
		valuePerPoint := float64(idx.TotalUniqueValuesCount()) / float64(pointsCount)
		effectiveThreshold = int(float64(threshold) * valuePerPoint)
	}

	var blocks []types.PayloadBlockCondition
	lowerBound := histogram.UnboundedOf[T]()

	for {
		upperBound := idx.Histogram().GetRangeBySize(lowerBound, float64(effectiveThreshold/2))

		if lowerBound.Kind == histogram.Unbounded && upperBound.Kind == histogram.Unbounded {
			// One block covers all points.
			blocks = append(blocks, types.PayloadBlockCondition{
				Condition:   types.NewRangeCondition(key, types.Range{}),
				Cardinality: pointsCount,
			})
			break
		}

		// Each consecutive (lower, upper) pair becomes one block; the next
		// lower continues exclusively above this upper, so blocks never
		// overlap and their union covers the whole domain.
		r := types.Range{}
		switch lowerBound.Kind {
		case histogram.Excluded:
			v := idx.codec.ToF64(lowerBound.Value)
			r.GT = &v
		case histogram.Included:
			v := idx.codec.ToF64(lowerBound.Value)
			r.GTE = &v
		}
		switch upperBound.Kind {
		case histogram.Excluded:
			v := idx.codec.ToF64(upperBound.Value)
			r.LT = &v
		case histogram.Included:
			v := idx.codec.ToF64(upperBound.Value)
			r.LTE = &v
		}

		cardinality := idx.RangeCardinality(&types.RangeInterface{Float: &r})
		blocks = append(blocks, types.PayloadBlockCondition{
			Condition:   types.NewRangeCondition(key, r),
			Cardinality: cardinality.Exp,
		})

		if upperBound.Kind == histogram.Unbounded {
			break
		}
		lowerBound = histogram.ExcludedOf(upperBound.Value)
	}

	return blocks
}

// Telemetry returns the reporting snapshot for this index.
func (idx *Index[T]) Telemetry() types.PayloadIndexTelemetry {
	return types.PayloadIndexTelemetry{
		PointsCount:         idx.GetPointsCount(),
		PointsValuesCount:   idx.Histogram().GetTotalCount(),
		HistogramBucketSize: idx.Histogram().CurrentBucketSize(),
		IndexType:           idx.Variant(),
	}
}

// IsOnDisk reports whether the active variant serves reads from disk.
func (idx *Index[T]) IsOnDisk() bool {
	return idx.mmap != nil && idx.mmap.IsOnDisk()
}

// Flusher returns the pending-tombstone flusher of the active variant.
func (idx *Index[T]) Flusher() types.Flusher {
	switch {
	case idx.mutable != nil:
		return types.NoopFlusher()
	case idx.immutable != nil:
		return idx.immutable.Flusher()
	default:
		return idx.mmap.Flusher()
	}
}

// Files enumerates the backing paths of the active variant.
func (idx *Index[T]) Files() []string {
	switch {
	case idx.mutable != nil:
		return nil
	case idx.immutable != nil:
		return idx.immutable.Files()
	default:
		return idx.mmap.Files()
	}
}

// ImmutableFiles enumerates the backing paths never written after build.
func (idx *Index[T]) ImmutableFiles() []string {
	switch {
	case idx.mutable != nil:
		return nil
	case idx.immutable != nil:
		return idx.immutable.ImmutableFiles()
	default:
		return idx.mmap.ImmutableFiles()
	}
}

// Populate blocks until all mmapped pages of the active variant are resident.
func (idx *Index[T]) Populate() {
	if idx.mmap != nil {
		idx.mmap.Populate()
	}
}

// ClearCache drops cached pages of the backing storage. In-memory variants
// only clear their backing files, never their RAM representation.
func (idx *Index[T]) ClearCache() error {
	switch {
	case idx.mutable != nil:
		return nil
	case idx.immutable != nil:
		return idx.immutable.ClearCache()
	default:
		return idx.mmap.ClearCache()
	}
}

// Wipe removes every backing file of the index.
func (idx *Index[T]) Wipe() error {
	switch {
	case idx.mutable != nil:
		return nil
	case idx.immutable != nil:
		return idx.immutable.Wipe()
	default:
		return idx.mmap.Wipe()
	}
}

// Close releases the backing storage.
func (idx *Index[T]) Close() error {
	switch {
	case idx.mutable != nil:
		return nil
	case idx.immutable != nil:
		return idx.immutable.Close()
	default:
		return idx.mmap.Close()
	}
}

// valueFromU128 maps a parsed UUID integer into the value domain.
func (idx *Index[T]) valueFromU128(u codec.U128) T {
	var zero T
	switch any(zero).(type) {
	case codec.U128:
		return any(u).(T)
	default:
		// Non-UUID indexes answer UUID equality through the float projection,
		// which only UUID-typed fields populate meaningfully.
		return idx.codec.FromF64(u.F64())
	}
}

func saturatingSub(a, b int) int {
	if b >= a {
		return 0
	}
	return a - b
}
