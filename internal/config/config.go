// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults; Load() layers file and env.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"runtime"
	"time"
)

// RedisConfig holds connection settings for the Redis store backend.
type RedisConfig struct {
	// Addr is the host:port of the Redis server.
	Addr string `koanf:"addr"`

	// Password authenticates against the server; empty means none.
	Password string `koanf:"password"`

	// DB selects the logical database.
	DB int `koanf:"db"`

	// PoolSize bounds the connection pool.
	PoolSize int `koanf:"pool_size"`
}

// RateLimitConfig holds one fixed-window policy.
type RateLimitConfig struct {
	// Limit is the number of requests allowed per window.
	Limit int `koanf:"limit"`

	// WindowSeconds is the window length.
	WindowSeconds int `koanf:"window_seconds"`
}

// Window returns the policy window as a duration.
func (c RateLimitConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DataDir is where published snapshots and replay artifacts live.
	DataDir string `koanf:"data_dir"`

	// StoreBackend selects the queue store: "memory" or "redis".
	StoreBackend string `koanf:"store_backend"`

	// Redis configures the Redis backend when selected.
	Redis RedisConfig `koanf:"redis"`

	// ReconcileIntervalSeconds is the cadence of reconciliation passes.
	ReconcileIntervalSeconds int `koanf:"reconcile_interval_seconds"`

	// ReconcileOnStart triggers a pass immediately at boot.
	ReconcileOnStart bool `koanf:"reconcile_on_start"`

	// VerifyWorkers bounds the replay verification fan-out per pass.
	VerifyWorkers int `koanf:"verify_workers"`

	// MaxScores is how many entries the published snapshot retains.
	MaxScores int `koanf:"max_scores"`

	// TopDefault is how many entries are shown by default.
	TopDefault int `koanf:"top_default"`

	// FlagThreshold hides an entry once its flag count reaches it.
	FlagThreshold int `koanf:"flag_threshold"`

	// AdvisoryCacheSize bounds the gateway's duplicate-hash cache.
	AdvisoryCacheSize int `koanf:"advisory_cache_size"`

	// Per-action rate limit policies.
	ScoreLimit        RateLimitConfig `koanf:"score_limit"`
	VoteLimit         RateLimitConfig `koanf:"vote_limit"`
	FeedbackLimit     RateLimitConfig `koanf:"feedback_limit"`
	FeedbackVoteLimit RateLimitConfig `koanf:"feedback_vote_limit"`
}

// ReconcileInterval returns the pass cadence as a duration.
func (c *Config) ReconcileInterval() time.Duration {
	return time.Duration(c.ReconcileIntervalSeconds) * time.Second
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:     "info",
		Addr:         ":9080",
		DataDir:      "data",
		StoreBackend: "memory",
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
		},
		ReconcileIntervalSeconds: 300,
		ReconcileOnStart:         false,
		VerifyWorkers:            runtime.NumCPU(),
		MaxScores:                50,
		TopDefault:               20,
		FlagThreshold:            3,
		AdvisoryCacheSize:        50_000,
		ScoreLimit:               RateLimitConfig{Limit: 10, WindowSeconds: 60},
		VoteLimit:                RateLimitConfig{Limit: 30, WindowSeconds: 60},
		FeedbackLimit:            RateLimitConfig{Limit: 5, WindowSeconds: 300},
		FeedbackVoteLimit:        RateLimitConfig{Limit: 30, WindowSeconds: 60},
	}
}
