package ratelimit

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SourceConfigs represents a map of source name to limiter config.
type SourceConfigs struct {
	RateLimits map[string]Config `yaml:"rate_limits" json:"rate_limits"`
}

// LoadSourceConfigs loads YAML bytes into SourceConfigs. Entries are kept
// sparse so Resolve can layer them over per-source defaults.
func LoadSourceConfigs(data []byte) (SourceConfigs, error) {
	var cfgs SourceConfigs
	if err := yaml.Unmarshal(data, &cfgs); err != nil {
		return SourceConfigs{}, fmt.Errorf("parse rate limits: %w", err)
	}
	return cfgs, nil
}

// LoadSourceConfigsFile reads path. An empty path yields an empty set.
func LoadSourceConfigsFile(path string) (SourceConfigs, error) {
	if path == "" {
		return SourceConfigs{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return SourceConfigs{}, fmt.Errorf("read rate limits: %w", err)
	}
	return LoadSourceConfigs(data)
}

// Get returns limiter config for a source or default if missing.
func (s SourceConfigs) Get(source string) (Config, error) {
	if s.RateLimits == nil {
		return DefaultConfig(), fmt.Errorf("no rate_limits configured")
	}
	cfg, ok := s.RateLimits[source]
	if !ok {
		return DefaultConfig(), fmt.Errorf("rate_limits for %s not found", source)
	}
	return applyDefaults(cfg), nil
}

// Resolve layers the configured entry for source over fallback.
func (s SourceConfigs) Resolve(source string, fallback Config) Config {
	fallback = applyDefaults(fallback)
	cfg, ok := s.RateLimits[source]
	if !ok {
		return fallback
	}
	return merge(cfg, fallback)
}
