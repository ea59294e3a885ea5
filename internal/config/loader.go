package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):.
//  1. defaults (New())
//  2. file (YAML) if WORDFALL_CONFIG is set
//  3. env (prefix WORDFALL_)
func Load() (*Config, error) {
	base := New()

	k := koanf.New(".")

	// Load from file if provided
	if path := os.Getenv("WORDFALL_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: WORDFALL_ADDR, WORDFALL_DATA_DIR, ...
	// Map env keys like WORDFALL_DATA_DIR -> data_dir (flat keys) and
	// WORDFALL_REDIS__ADDR -> redis.addr (double underscore nests).
	envProvider := env.Provider("WORDFALL_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "wordfall_")
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate rejects configurations the service cannot start with.
func validate(cfg *Config) error {
	if cfg.Addr == "" {
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	}
	if cfg.DataDir == "" {
		return fmt.Errorf("%w: data_dir must not be empty", ErrInvalidConfig)
	}
	switch cfg.StoreBackend {
	case "memory", "redis":
	default:
		return fmt.Errorf("%w: unknown store_backend %q", ErrInvalidConfig, cfg.StoreBackend)
	}
	if cfg.StoreBackend == "redis" && cfg.Redis.Addr == "" {
		return fmt.Errorf("%w: redis.addr must not be empty", ErrInvalidConfig)
	}
	if cfg.ReconcileIntervalSeconds <= 0 {
		return fmt.Errorf("%w: reconcile_interval_seconds must be positive", ErrInvalidConfig)
	}
	for name, rl := range map[string]RateLimitConfig{
		"score_limit":         cfg.ScoreLimit,
		"vote_limit":          cfg.VoteLimit,
		"feedback_limit":      cfg.FeedbackLimit,
		"feedback_vote_limit": cfg.FeedbackVoteLimit,
	} {
		if rl.Limit <= 0 || rl.WindowSeconds <= 0 {
			return fmt.Errorf("%w: %s must have positive limit and window", ErrInvalidConfig, name)
		}
	}
	return nil
}
