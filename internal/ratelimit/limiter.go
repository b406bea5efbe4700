package ratelimit

import (
	"context"
	"time"
)

// Limiter paces requests to one source and supplies the backoff between
// retries.
type Limiter interface {
	// Wait blocks until the next request may be sent or ctx is done.
	Wait(ctx context.Context) error
	// RetryAfter is the backoff before retry attempt+1.
	RetryAfter(attempt int) time.Duration
}

var (
	_ Limiter = (*TokenBucket)(nil)
	_ Limiter = (*FixedWindow)(nil)
	_ Limiter = (*FixedDelayLimiter)(nil)
)

// Strategy defines the rate limiting strategy.
type Strategy string

const (
	StrategyTokenBucket Strategy = "token_bucket"
	StrategyFixedWindow Strategy = "fixed_window"
	StrategyFixedDelay  Strategy = "fixed_delay"
)

// NewLimiter creates a rate limiter based on config.
func NewLimiter(cfg Config) Limiter {
	cfg = applyDefaults(cfg)
	switch cfg.Strategy {
	case StrategyFixedWindow:
		return NewFixedWindow(cfg)
	case StrategyFixedDelay:
		return NewFixedDelayLimiter(cfg)
	default:
		return NewTokenBucket(cfg)
	}
}

// Sleep blocks for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
