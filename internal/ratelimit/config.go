package ratelimit

import "time"

// Config holds rate limiter and retry configuration for one source.
type Config struct {
	Strategy          Strategy      `yaml:"strategy" json:"strategy"`
	RequestsPerSec    float64       `yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int           `yaml:"burst" json:"burst"`
	FixedDelay        time.Duration `yaml:"fixed_delay" json:"fixed_delay"`
	MaxRetries        int           `yaml:"max_retries" json:"max_retries"`
	InitialBackoff    time.Duration `yaml:"initial_backoff" json:"initial_backoff"`
	MaxBackoff        time.Duration `yaml:"max_backoff" json:"max_backoff"`
	BackoffMultiplier float64       `yaml:"backoff_multiplier" json:"backoff_multiplier"`
}

// DefaultConfig returns the settings shared by most public biomedical APIs:
// three attempts, backoff base of two seconds.
func DefaultConfig() Config {
	return Config{
		Strategy:          StrategyTokenBucket,
		RequestsPerSec:    3.0,
		Burst:             5,
		FixedDelay:        time.Second,
		MaxRetries:        3,
		InitialBackoff:    2 * time.Second,
		MaxBackoff:        60 * time.Second,
		BackoffMultiplier: 2.0,
	}
}

func applyDefaults(cfg Config) Config {
	return merge(cfg, DefaultConfig())
}

// merge fills every zero field of cfg from fallback.
func merge(cfg, fallback Config) Config {
	if cfg.Strategy == "" {
		cfg.Strategy = fallback.Strategy
	}
	if cfg.RequestsPerSec <= 0 {
		cfg.RequestsPerSec = fallback.RequestsPerSec
	}
	if cfg.Burst <= 0 {
		cfg.Burst = fallback.Burst
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = fallback.MaxRetries
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = fallback.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = fallback.MaxBackoff
	}
	if cfg.BackoffMultiplier <= 0 {
		cfg.BackoffMultiplier = fallback.BackoffMultiplier
	}
	if cfg.FixedDelay <= 0 {
		cfg.FixedDelay = fallback.FixedDelay
	}
	return cfg
}
