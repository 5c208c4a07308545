package repository

import (
	"os"
	"time"

	"github.com/eito54/grosoq/pkg/logger"
)

const (
	defaultLockTimeout = 2 * time.Second
	defaultLockRetry   = 50 * time.Millisecond
	defaultFileMode    = os.FileMode(0o600)
)

type options struct {
	logger      logger.Logger
	lockTimeout time.Duration
	fileMode    os.FileMode
}

func newOptions(opts []Option) options {
	o := options{
		logger:      logger.Nop(),
		lockTimeout: defaultLockTimeout,
		fileMode:    defaultFileMode,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Option applies a configuration option to a store backend.
type Option func(*options)

// WithLogger sets the store logger.
func WithLogger(l logger.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithLockTimeout bounds how long a file or bolt store waits for its lock.
func WithLockTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.lockTimeout = d
		}
	}
}

// WithFileMode sets the permission bits of created files.
func WithFileMode(mode os.FileMode) Option {
	return func(o *options) {
		if mode != 0 {
			o.fileMode = mode
		}
	}
}
