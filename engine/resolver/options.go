package resolver

import "github.com/compozy/taskref/pkg/logger"

const (
	DefaultMaxExpansion   = 100000
	DefaultParseCacheSize = 4096
)

type options struct {
	maxExpansion   int
	parseCacheSize int
	log            logger.Logger
}

func defaultOptions() *options {
	return &options{
		maxExpansion:   DefaultMaxExpansion,
		parseCacheSize: DefaultParseCacheSize,
	}
}

// Option configures a Context.
type Option func(*options)

// WithMaxExpansion bounds the number of entries an expression may expand to.
func WithMaxExpansion(limit int) Option {
	return func(o *options) {
		if limit > 0 {
			o.maxExpansion = limit
		}
	}
}

// WithParseCacheSize sets how many parsed expressions are kept; 0 disables
// the cache.
func WithParseCacheSize(size int) Option {
	return func(o *options) {
		if size >= 0 {
			o.parseCacheSize = size
		}
	}
}

// WithLogger overrides the logger taken from the call context.
func WithLogger(log logger.Logger) Option {
	return func(o *options) {
		o.log = log
	}
}

type evalOptions struct {
	strip bool
}

// EvalOption configures a single EvalExpr call.
type EvalOption func(*evalOptions)

// WithoutStrip keeps duplicate entries in the top-level result.
func WithoutStrip() EvalOption {
	return func(o *evalOptions) {
		o.strip = false
	}
}
