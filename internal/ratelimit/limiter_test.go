package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestTokenBucketTakeAndRefill(t *testing.T) {
	cfg := Config{RequestsPerSec: 5, Burst: 5}
	tb := NewTokenBucket(cfg)

	for i := 0; i < 5; i++ {
		if tb.take() != 0 {
			t.Fatalf("expected token available at %d", i)
		}
	}
	if tb.take() == 0 {
		t.Fatalf("expected no token after burst")
	}

	time.Sleep(250 * time.Millisecond)
	if tb.take() != 0 {
		t.Fatalf("expected token after partial refill")
	}
}

func TestTokenBucketWaitRespectsContext(t *testing.T) {
	cfg := Config{RequestsPerSec: 1, Burst: 1}
	tb := NewTokenBucket(cfg)

	// consume initial token
	if tb.take() != 0 {
		t.Fatalf("expected first token")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := tb.Wait(ctx); err == nil {
		t.Fatalf("expected timeout")
	}
}

func TestFixedWindow(t *testing.T) {
	fw := NewFixedWindow(Config{RequestsPerSec: 2})
	if !fw.allow() || !fw.allow() {
		t.Fatalf("expected first two to pass")
	}
	if fw.allow() {
		t.Fatalf("expected third to be blocked")
	}

	time.Sleep(time.Second)
	if !fw.allow() {
		t.Fatalf("expected allow after window reset")
	}
}

func TestFixedDelay(t *testing.T) {
	delay := 50 * time.Millisecond
	fdl := NewFixedDelayLimiter(Config{FixedDelay: delay})

	if err := fdl.Wait(context.Background()); err != nil {
		t.Fatalf("first wait: %v", err)
	}

	wait, _ := fdl.reserve(time.Now())
	if wait <= 0 {
		t.Fatalf("expected reserve to request wait, got %v", wait)
	}

	if wait < delay/2 {
		t.Fatalf("expected wait close to delay; got %v", wait)
	}
}

func TestFixedWindowWaitRespectsContext(t *testing.T) {
	fw := NewFixedWindow(Config{RequestsPerSec: 1})
	if !fw.allow() {
		t.Fatalf("expected first allow")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	if err := fw.Wait(ctx); err == nil {
		t.Fatalf("expected context error while window is full")
	}
}

func TestCalculateBackoffBounds(t *testing.T) {
	cfg := Config{InitialBackoff: time.Second, MaxBackoff: 10 * time.Second, BackoffMultiplier: 2, MaxRetries: 5}

	for attempt := 1; attempt <= 5; attempt++ {
		d := CalculateBackoff(attempt, cfg)
		if d <= 0 {
			t.Fatalf("backoff should be positive")
		}
		if d > cfg.MaxBackoff {
			t.Fatalf("backoff should cap at max")
		}
	}

	if d := CalculateBackoff(10, cfg); d != cfg.MaxBackoff {
		t.Fatalf("expected max backoff when attempts exceed max retries")
	}
}

func TestCalculateBackoffGrowsWithinJitter(t *testing.T) {
	cfg := Config{InitialBackoff: 2 * time.Second, MaxBackoff: time.Minute, BackoffMultiplier: 2, MaxRetries: 3}

	for attempt, want := range map[int]time.Duration{1: 2 * time.Second, 2: 4 * time.Second, 3: 8 * time.Second} {
		d := CalculateBackoff(attempt, cfg)
		lo, hi := want*3/4, want*5/4
		if d < lo || d > hi {
			t.Fatalf("attempt %d: backoff %v outside [%v, %v]", attempt, d, lo, hi)
		}
	}
}

func TestShouldRetry(t *testing.T) {
	if !ShouldRetry(1, 3) || !ShouldRetry(2, 3) {
		t.Fatalf("expected retries within budget")
	}
	if ShouldRetry(3, 3) {
		t.Fatalf("expected no retry once budget is spent")
	}
}

func TestSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Sleep(ctx, time.Hour); err == nil {
		t.Fatalf("expected cancelled sleep to fail")
	}
}

func TestConfigLoader(t *testing.T) {
	yamlData := []byte(`rate_limits:
  chembl:
    strategy: token_bucket
    requests_per_second: 3
    burst: 5
    max_retries: 5
    initial_backoff: 1s
    max_backoff: 60s
    backoff_multiplier: 2
`)

	cfgs, err := LoadSourceConfigs(yamlData)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	chembl, err := cfgs.Get("chembl")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if chembl.RequestsPerSec != 3 {
		t.Fatalf("expected requests_per_second=3, got %v", chembl.RequestsPerSec)
	}

	if _, err := cfgs.Get("uniprot"); err == nil {
		t.Fatalf("expected error for unconfigured source")
	}
}

func TestResolveLayersOverFallback(t *testing.T) {
	cfgs, err := LoadSourceConfigs([]byte(`rate_limits:
  pubmed:
    max_retries: 7
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fallback := Config{Strategy: StrategyFixedDelay, FixedDelay: 340 * time.Millisecond, MaxRetries: 5, InitialBackoff: 5 * time.Second}

	got := cfgs.Resolve("pubmed", fallback)
	if got.MaxRetries != 7 {
		t.Fatalf("expected override max_retries=7, got %d", got.MaxRetries)
	}
	if got.Strategy != StrategyFixedDelay || got.FixedDelay != 340*time.Millisecond {
		t.Fatalf("expected fallback strategy to survive, got %+v", got)
	}
	if got.InitialBackoff != 5*time.Second {
		t.Fatalf("expected fallback backoff, got %v", got.InitialBackoff)
	}

	other := cfgs.Resolve("chembl", Config{})
	if other != DefaultConfig() {
		t.Fatalf("expected defaults for unconfigured source, got %+v", other)
	}
}

func TestLoadSourceConfigsFileEmptyPath(t *testing.T) {
	cfgs, err := LoadSourceConfigsFile("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(cfgs.RateLimits) != 0 {
		t.Fatalf("expected empty configs")
	}
}
