package embeddb

import (
	"go.uber.org/zap"

	"github.com/ubco-db/embeddb-go/internal/bitmap"
	"github.com/ubco-db/embeddb-go/internal/elog"
)

// DataComparator orders two fixed-width data columns, used for per-page
// min/max aggregates (spec.md §4.1) and for the iterator's per-record
// data-range test. The default treats data as an
// unsigned little-endian integer, the common case for the sensor-reading
// style payloads this engine targets.
type DataComparator func(a, b []byte) bool

func defaultDataLess(a, b []byte) bool {
	for i := len(a) - 1; i >= 0; i-- {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

// Options configures an Engine at construction, built with functional
// options mirroring segmentmanager.DiskSegmentManagerOption from the
// teacher (SPEC_FULL.md §1.3).
type Options struct {
	KeySize  uint8
	DataSize uint8
	PageSize uint32

	NumDataPages     uint32
	NumIndexPages    uint32
	NumVarPages      uint32
	EraseSizeInPages uint32

	NumSplinePoints int
	IndexMaxError   uint32

	UseIndex   bool
	UseMinMax  bool
	UseVarData bool

	BitmapBounds *bitmap.BucketBoundaries // required when UseIndex is set; ignored otherwise

	UseBloomPrefilter bool
	BloomExpectedKeys uint
	BloomFalsePosRate float64

	RadixBits uint // 0 disables the radix table

	UseChecksums bool

	DataLess DataComparator

	Logger elog.Logger
}

// Option mutates an Options value at construction time.
type Option func(*Options)

// NewOptions returns the required, sizing-only configuration together with
// every optional feature disabled, matching spec.md §6's init contract: the
// caller must still supply key/data/page sizing and ring geometry.
func NewOptions(keySize, dataSize uint8, pageSize, numDataPages, eraseSizeInPages uint32) Options {
	return Options{
		KeySize:           keySize,
		DataSize:          dataSize,
		PageSize:          pageSize,
		NumDataPages:      numDataPages,
		EraseSizeInPages:  eraseSizeInPages,
		NumSplinePoints:   64,
		IndexMaxError:     1,
		BloomFalsePosRate: 0.01,
		DataLess:          defaultDataLess,
		Logger:            elog.Nop(),
	}
}

func WithMinMax() Option {
	return func(o *Options) { o.UseMinMax = true }
}

// WithIndex enables the secondary bitmap index, backed by numIndexPages of
// index-ring storage and bucketed per bounds.
func WithIndex(numIndexPages uint32, bounds *bitmap.BucketBoundaries) Option {
	return func(o *Options) {
		o.UseIndex = true
		o.NumIndexPages = numIndexPages
		o.BitmapBounds = bounds
	}
}

func WithVarData(numVarPages uint32) Option {
	return func(o *Options) {
		o.UseVarData = true
		o.NumVarPages = numVarPages
	}
}

func WithBloomPrefilter(expectedKeys uint, falsePositiveRate float64) Option {
	return func(o *Options) {
		o.UseBloomPrefilter = true
		o.BloomExpectedKeys = expectedKeys
		o.BloomFalsePosRate = falsePositiveRate
	}
}

func WithRadix(bits uint) Option {
	return func(o *Options) { o.RadixBits = bits }
}

func WithSpline(numPoints int, maxError uint32) Option {
	return func(o *Options) {
		o.NumSplinePoints = numPoints
		o.IndexMaxError = maxError
	}
}

func WithChecksums() Option {
	return func(o *Options) { o.UseChecksums = true }
}

func WithDataComparator(less DataComparator) Option {
	return func(o *Options) { o.DataLess = less }
}

func WithLogger(z *zap.Logger) Option {
	return func(o *Options) { o.Logger = elog.New(z) }
}

func (o Options) apply(opts ...Option) Options {
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
