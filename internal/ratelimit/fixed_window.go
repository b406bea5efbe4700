package ratelimit

import (
	"context"
	"math/rand/v2"
	"sync"
	"time"
)

// FixedWindow implements fixed window rate limiting.
type FixedWindow struct {
	limit       int
	window      time.Duration
	count       int
	windowStart time.Time
	mu          sync.Mutex
	config      Config
}

// NewFixedWindow creates a new fixed window limiter.
func NewFixedWindow(cfg Config) *FixedWindow {
	cfg = applyDefaults(cfg)

	return &FixedWindow{
		limit:       max(1, int(cfg.RequestsPerSec)),
		window:      time.Second,
		windowStart: time.Now(),
		config:      cfg,
	}
}

// Wait blocks until a slot in the current window opens or ctx is done.
func (fw *FixedWindow) Wait(ctx context.Context) error {
	for {
		if fw.allow() {
			return nil
		}

		wait := fw.reserve()
		if wait <= 0 {
			continue
		}

		var jitter time.Duration
		if q := int64(wait) / 4; q > 0 {
			jitter = time.Duration(rand.Int64N(q))
		}
		if err := Sleep(ctx, wait+jitter); err != nil {
			return err
		}
	}
}

// allow takes a slot in the current window if one is free.
func (fw *FixedWindow) allow() bool {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	fw.resetWindowIfNeeded()

	if fw.count < fw.limit {
		fw.count++
		return true
	}

	return false
}

// reserve returns the wait until the next window opens.
func (fw *FixedWindow) reserve() time.Duration {
	fw.mu.Lock()
	defer fw.mu.Unlock()

	fw.resetWindowIfNeeded()

	if fw.count < fw.limit {
		return 0
	}

	elapsed := time.Since(fw.windowStart)
	return fw.window - elapsed
}

// RetryAfter returns exponential backoff duration.
func (fw *FixedWindow) RetryAfter(attempt int) time.Duration {
	return CalculateBackoff(attempt, fw.config)
}

func (fw *FixedWindow) resetWindowIfNeeded() {
	now := time.Now()
	if now.Sub(fw.windowStart) >= fw.window {
		fw.count = 0
		fw.windowStart = now
	}
}
