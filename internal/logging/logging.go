// Package logging builds the process logger. It is initialized once at
// startup and handed to every component that logs.
package logging

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Options select the logger level and encoding.
type Options struct {
	Level       string
	Development bool
}

// New builds a zap logger for opts.
func New(opts Options) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.UnmarshalText([]byte(opts.Level)); err != nil {
			return nil, fmt.Errorf("parse log level %q: %w", opts.Level, err)
		}
	}

	cfg := zap.NewProductionConfig()
	if opts.Development {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(level)

	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}

// Once builds the logger on the first Get and returns the same instance
// afterwards.
type Once struct {
	opts   Options
	once   sync.Once
	logger *zap.Logger
	err    error
}

// NewOnce returns a guard that builds a logger for opts at most once.
func NewOnce(opts Options) *Once {
	return &Once{opts: opts}
}

// Get returns the logger, building it on first use.
func (o *Once) Get() (*zap.Logger, error) {
	o.once.Do(func() {
		o.logger, o.err = New(o.opts)
	})
	return o.logger, o.err
}

// Nop returns a logger that discards everything.
func Nop() *zap.Logger {
	return zap.NewNop()
}
