// Package options provides data structures and functions for configuring
// field indexes. It defines the parameters that control storage placement
// (RAM-resident versus on-disk memory maps) and the histogram that backs
// range cardinality estimation.
package options

// Defines the configuration parameters for a field index instance.
type Options struct {
	// Controls whether the memory-mapped files are treated as on-disk storage.
	// When false, pages are eagerly populated at open so queries never stall
	// on page faults; when true, pages are faulted in lazily and reads are
	// charged to the hardware cost counter.
	//
	// Default: false
	OnDisk bool `json:"onDisk"`

	// Defines the upper limit of the histogram's target bucket size; a bucket
	// splits once it holds more than twice the target size.
	//
	// Default: 10000
	HistogramMaxBucketSize int `json:"histogramMaxBucketSize"`

	// Defines the target relative precision for histogram estimates.
	//
	// Default: 0.01
	HistogramPrecision float64 `json:"histogramPrecision"`
}

// OptionFunc is a function type that modifies the index configuration.
type OptionFunc func(*Options)

// Applies a predefined set of default configuration values to the Options struct.
func WithDefaultOptions() OptionFunc {
	return func(o *Options) {
		opts := NewDefaultOptions()
		o.OnDisk = opts.OnDisk
		o.HistogramMaxBucketSize = opts.HistogramMaxBucketSize
		o.HistogramPrecision = opts.HistogramPrecision
	}
}

// Marks the index as on-disk: pages stay cold until touched and reads are
// accounted against the hardware cost counter.
func WithOnDisk(onDisk bool) OptionFunc {
	return func(o *Options) {
		o.OnDisk = onDisk
	}
}

// Sets the maximum histogram bucket size.
func WithHistogramMaxBucketSize(size int) OptionFunc {
	return func(o *Options) {
		if size > 0 && size <= DefaultHistogramMaxBucketSize {
			o.HistogramMaxBucketSize = size
		}
	}
}

// Sets the target relative precision for histogram estimates.
func WithHistogramPrecision(precision float64) OptionFunc {
	return func(o *Options) {
		if precision > 0 && precision < 1 {
			o.HistogramPrecision = precision
		}
	}
}
