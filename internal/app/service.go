// Package service wires the match progression engine together and
// implements the dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"matchpulse/internal/adapters/broker"
	"matchpulse/internal/adapters/feed"
	"matchpulse/internal/adapters/repository"
	"matchpulse/internal/adapters/ws"
	"matchpulse/internal/config"
	"matchpulse/internal/domain/model"
	"matchpulse/internal/domain/sim"
	"matchpulse/internal/registry"
	"matchpulse/internal/scheduler"
	"matchpulse/internal/seed"
	"matchpulse/pkg/logger"
	"matchpulse/pkg/metrics"
)

// Service owns the store, the broker, the scheduler and the websocket
// transport, and exposes the read/override operations the API needs.
type Service struct {
	mu sync.RWMutex

	// Core components
	store     repository.Store
	reg       *registry.Registry
	broker    *broker.Broker
	sched     *scheduler.Scheduler
	wsHandler *ws.Handler

	// Configuration
	tickInterval        time.Duration
	lookahead           time.Duration
	maxMinute           int
	goalProbability     float64
	homeBias            float64
	queueSize           int
	sessionFailureLimit int
	seedOnStart         bool
	randomSeed          int64
	redisAddr           string
	feedMinInterval     time.Duration

	feedProvider feed.Provider

	// State
	started bool

	now    func() time.Time
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// FromConfig derives service settings from loaded configuration.
func FromConfig(cfg *config.Config) Option {
	return func(s *Service) {
		if cfg == nil {
			return
		}
		s.tickInterval = time.Duration(cfg.TickSeconds) * time.Second
		s.lookahead = time.Duration(cfg.LookaheadMinutes) * time.Minute
		s.maxMinute = cfg.MaxMinute
		s.goalProbability = cfg.GoalProbability
		s.homeBias = cfg.HomeBias
		s.queueSize = cfg.BroadcastQueueSize
		s.sessionFailureLimit = cfg.SessionFailureLimit
		s.seedOnStart = cfg.Seed
		s.randomSeed = cfg.RandomSeed
		s.redisAddr = cfg.RedisAddr
		s.feedMinInterval = time.Duration(cfg.FeedMinIntervalMS) * time.Millisecond
	}
}

// WithStore injects a pre-built match store, mostly for tests.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithFeedProvider attaches an external authoritative score feed. It is
// wrapped with the configured rate limit at startup.
func WithFeedProvider(p feed.Provider) Option {
	return func(s *Service) {
		s.feedProvider = p
	}
}

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		reg:                 registry.New(),
		tickInterval:        60 * time.Second,
		lookahead:           15 * time.Minute,
		maxMinute:           95,
		goalProbability:     0.02,
		homeBias:            0.1,
		queueSize:           4096,
		sessionFailureLimit: 3,
		seedOnStart:         true,
		now:                 time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start builds and launches every component: store, broker, optional
// seeding, then the scheduler.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}

	s.logger.Info(ctx, "starting match service...")

	if s.store == nil {
		if s.redisAddr != "" {
			store, err := repository.NewRedisStore(ctx, s.redisAddr)
			if err != nil {
				return fmt.Errorf("connect match store: %w", err)
			}
			s.store = store
			s.logger.Info(ctx, "using redis store", logger.String("addr", s.redisAddr))
		} else {
			s.store = repository.NewMemoryStore()
			s.logger.Info(ctx, "using in-memory store")
		}
	}

	s.broker = broker.New(
		broker.WithQueueSize(s.queueSize),
		broker.WithFailureLimit(s.sessionFailureLimit),
	)
	s.broker.Start(ctx)
	s.wsHandler = ws.NewHandler(s.broker)

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	if s.randomSeed != 0 {
		rng = rand.New(rand.NewSource(s.randomSeed))
	}
	scoringModel := sim.NewModel(
		sim.WithRand(rng),
		sim.WithGoalProbability(s.goalProbability),
		sim.WithHomeBias(s.homeBias),
	)

	if s.seedOnStart {
		seeder := seed.New(s.store,
			seed.WithModel(scoringModel),
			seed.WithRand(rng),
			seed.WithNow(s.now),
		)
		if _, err := seeder.Seed(ctx); err != nil {
			return fmt.Errorf("seed match store: %w", err)
		}
	}

	schedOpts := []scheduler.Option{
		scheduler.WithTickInterval(s.tickInterval),
		scheduler.WithLookahead(s.lookahead),
		scheduler.WithMaxMinute(s.maxMinute),
		scheduler.WithModel(scoringModel),
		scheduler.WithNow(s.now),
	}
	if s.feedProvider != nil {
		schedOpts = append(schedOpts,
			scheduler.WithFeed(feed.NewRateLimited(s.feedProvider, s.feedMinInterval)))
	}
	s.sched = scheduler.New(s.store, s.reg, s.broker, schedOpts...)
	s.sched.Start(ctx)

	s.started = true
	s.logger.Info(ctx, "match service started",
		logger.Duration("tick", s.tickInterval),
		logger.Duration("lookahead", s.lookahead),
		logger.Int("maxMinute", s.maxMinute),
	)
	return nil
}

// Stop shuts the scheduler down first so no new events are produced,
// then drains and stops the broker.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.logger.Info(ctx, "stopping match service...")

	if s.sched != nil {
		s.sched.Stop(ctx)
	}
	if s.broker != nil {
		s.broker.Stop(ctx)
	}
	if closer, ok := s.store.(interface{ Close() error }); ok {
		_ = closer.Close()
	}

	s.started = false
	s.logger.Info(ctx, "match service stopped")
}

// WSHandler returns the websocket endpoint handler.
func (s *Service) WSHandler() http.Handler {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.wsHandler
}

// ListMatches returns every stored match ordered by kickoff.
func (s *Service) ListMatches(ctx context.Context) ([]model.Match, error) {
	return s.store.List(ctx)
}

// LiveMatches returns matches currently in play.
func (s *Service) LiveMatches(ctx context.Context) ([]model.Match, error) {
	return s.store.FindByStatus(ctx, model.StatusLive)
}

// TodayMatches returns matches kicking off today, any status.
func (s *Service) TodayMatches(ctx context.Context) ([]model.Match, error) {
	now := s.now()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return s.store.FindByKickoffBetween(ctx, midnight, midnight.AddDate(0, 0, 1))
}

// GetMatch returns one match by id.
func (s *Service) GetMatch(ctx context.Context, id string) (model.Match, error) {
	return s.store.FindByID(ctx, id)
}

// OverrideStatus forces a match status from outside the progression
// loop. The change is persisted and announced; a match pushed into a
// final state is deregistered right away rather than waiting for the
// scheduler's next-tick status detection, and no synthetic completion
// is emitted either way.
func (s *Service) OverrideStatus(ctx context.Context, id string, status model.MatchStatus) (model.Match, error) {
	m, err := s.store.FindByID(ctx, id)
	if err != nil {
		return model.Match{}, err
	}
	if !model.CanTransition(m.Status, status) {
		return model.Match{}, fmt.Errorf("%w: %s -> %s", model.ErrInvalidTransition, m.Status, status)
	}

	m.Status = status
	saved, err := s.store.Save(ctx, m)
	if err != nil {
		return model.Match{}, err
	}

	if status.Final() && s.reg != nil {
		s.reg.Deregister(id)
	}

	now := s.now()
	elapsed := int(now.Sub(m.Kickoff).Minutes())
	if elapsed < 0 {
		elapsed = 0
	}
	s.broker.Publish(ctx, model.NewStatusChanged(saved, elapsed, now))

	s.logger.Info(ctx, "match status overridden",
		logger.String("match_id", id),
		logger.String("status", string(status)))
	return saved, nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":      s.started,
		"tickSeconds":  int(s.tickInterval / time.Second),
		"maxMinute":    s.maxMinute,
		"seedOnStart":  s.seedOnStart,
		"storeBackend": storeBackend(s.redisAddr),
	}

	if s.started {
		ctx := context.Background()
		stats["totalMatches"] = s.store.Count(ctx)
		stats["liveMatches"] = s.reg.Len()
		stats["sessions"] = s.broker.SessionCount()
		stats["topics"] = s.broker.TopicCount()

		metrics.UpdateStoreMatches(s.store.Count(ctx))
		metrics.UpdateLiveMatches(s.reg.Len())
	}
	return stats
}

func storeBackend(redisAddr string) string {
	if redisAddr != "" {
		return "redis"
	}
	return "memory"
}
