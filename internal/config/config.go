// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Keep fields unexported where possible and use functional options.
// - Provide New(...Option) initializer to build a Config with defaults.
// - External errors must be wrapped via this package's error helpers.
package config

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// TickSeconds sets the scheduler tick period.
	TickSeconds int `koanf:"tick_seconds"`

	// GoalProbability is the per-team, per-tick goal chance. The realized
	// goal rate is approximately probability * tick interval in minutes,
	// so rescale it if TickSeconds changes.
	GoalProbability float64 `koanf:"goal_probability"`

	// HomeBias is the chance of one extra home goal in a drawn final score.
	HomeBias float64 `koanf:"home_bias"`

	// LookaheadMinutes bounds how far ahead of kickoff a scheduled match
	// is pulled into the live registry.
	LookaheadMinutes int `koanf:"lookahead_minutes"`

	// MaxMinute is the simulated minute after which a match completes.
	MaxMinute int `koanf:"max_minute"`

	// BroadcastQueueSize bounds the in-memory broadcast event queue.
	BroadcastQueueSize int `koanf:"broadcast_queue_size"`

	// SessionFailureLimit is the number of consecutive delivery failures
	// after which a subscriber session is dropped.
	SessionFailureLimit int `koanf:"session_failure_limit"`

	// Seed controls whether the bootstrap seeder runs at startup.
	Seed bool `koanf:"seed"`

	// RandomSeed pins the simulation RNG for reproducible runs; 0 means
	// seed from the clock.
	RandomSeed int64 `koanf:"random_seed"`

	// RedisAddr selects the redis-backed match store when non-empty; the
	// in-memory store is used otherwise.
	RedisAddr string `koanf:"redis_addr"`

	// FeedMinIntervalMS is the minimum spacing between calls to the same
	// external feed endpoint.
	FeedMinIntervalMS int `koanf:"feed_min_interval_ms"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:            "info",
		Addr:                ":9080",
		TickSeconds:         60,
		GoalProbability:     0.02,
		HomeBias:            0.1,
		LookaheadMinutes:    15,
		MaxMinute:           95,
		BroadcastQueueSize:  4096,
		SessionFailureLimit: 3,
		Seed:                true,
		RandomSeed:          0,
		RedisAddr:           "",
		FeedMinIntervalMS:   60_000,
	}
}
