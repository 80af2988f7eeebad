package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if MATCHPULSE_CONFIG is set
//  3. env (prefix MATCHPULSE_)
func Load(ctx context.Context) (*Config, error) {
	_ = ctx

	base := New()

	k := koanf.New(".")

	// Load from file if provided
	if path := os.Getenv("MATCHPULSE_CONFIG"); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
		}
	}

	// Environment variables: MATCHPULSE_ADDR, MATCHPULSE_TICK_SECONDS, ...
	// Map env keys like MATCHPULSE_TICK_SECONDS -> tick_seconds (flat keys).
	// Preserve underscores to match koanf tags on the struct.
	envProvider := env.Provider("MATCHPULSE_", ".", func(s string) string {
		s = strings.ToLower(s)
		s = strings.TrimPrefix(s, "matchpulse_")
		return s
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	// Unmarshal into a copy
	cfg := *base
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.TickSeconds < 1:
		return fmt.Errorf("%w: tick_seconds must be at least 1", ErrInvalidConfig)
	case c.GoalProbability < 0 || c.GoalProbability > 1:
		return fmt.Errorf("%w: goal_probability must be within [0, 1]", ErrInvalidConfig)
	case c.HomeBias < 0 || c.HomeBias > 1:
		return fmt.Errorf("%w: home_bias must be within [0, 1]", ErrInvalidConfig)
	case c.MaxMinute < 90:
		return fmt.Errorf("%w: max_minute must cover a full match", ErrInvalidConfig)
	case c.BroadcastQueueSize < 1:
		return fmt.Errorf("%w: broadcast_queue_size must be positive", ErrInvalidConfig)
	case c.SessionFailureLimit < 1:
		return fmt.Errorf("%w: session_failure_limit must be positive", ErrInvalidConfig)
	}
	return nil
}
