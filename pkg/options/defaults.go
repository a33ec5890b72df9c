package options

const (
	// Defines the upper limit of the histogram's target bucket size. A bucket
	// splits once it holds more than twice the target size. Larger buckets
	// mean a smaller histogram but coarser range estimates.
	DefaultHistogramMaxBucketSize = 10_000

	// Defines the target relative precision of histogram estimates. The bucket
	// size chosen at build time is derived from the total point count and this
	// value, clamped to the configured maximum bucket size.
	DefaultHistogramPrecision = 0.01
)

// Holds the default configuration settings for a field index.
var defaultOptions = Options{
	OnDisk:                 false,
	HistogramMaxBucketSize: DefaultHistogramMaxBucketSize,
	HistogramPrecision:     DefaultHistogramPrecision,
}

func NewDefaultOptions() Options {
	return defaultOptions
}
