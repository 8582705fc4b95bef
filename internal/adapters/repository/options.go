package repository

import (
	"time"

	"github.com/okian/tiergate/pkg/logger"
)

type options struct {
	maxConns int32
	now      func() time.Time
	log      logger.Logger
}

// Option applies a configuration option to a Store backend.
type Option func(*options)

// WithMaxConns caps the Postgres connection pool.
func WithMaxConns(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxConns = int32(n)
		}
	}
}

// WithClock overrides the time source used for updated_at.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

func newOptions(opts []Option) options {
	o := options{
		maxConns: 10,
		now:      func() time.Time { return time.Now().UTC() },
		log:      logger.Named("store"),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
