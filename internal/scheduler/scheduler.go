// Package scheduler drives match progression on a fixed tick.
//
// One goroutine owns the whole progression pass: it drains queued
// registry commands, registers fresh candidates from the store, then
// walks every entry and applies elapsed-time transitions and the goal
// model. Ticks never overlap; a tick finishes persisting before the
// next one fires.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"matchpulse/internal/adapters/feed"
	"matchpulse/internal/adapters/repository"
	"matchpulse/internal/domain/model"
	"matchpulse/internal/domain/sim"
	"matchpulse/internal/registry"
	"matchpulse/pkg/logger"
	"matchpulse/pkg/metrics"
)

const (
	defaultTickInterval = 60 * time.Second
	defaultLookahead    = 15 * time.Minute
	defaultMaxMinute    = 95

	halfTimeStart = 45
	halfTimeEnd   = 50
)

// Publisher is the event sink. The broker satisfies it.
type Publisher interface {
	Publish(ctx context.Context, e model.Event)
}

// Scheduler progresses registered matches once per tick interval.
type Scheduler struct {
	store repository.Store
	reg   *registry.Registry
	pub   Publisher
	model *sim.Model
	feed  feed.Provider

	tickInterval time.Duration
	lookahead    time.Duration
	maxMinute    int

	now func() time.Time
	log logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithTickInterval sets the progression tick interval. The goal model's
// realized rate is probability times tick interval in minutes, so
// changing this without rescaling the probability shifts event cadence.
func WithTickInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.tickInterval = d
		}
	}
}

// WithLookahead sets how far ahead of kickoff a match is registered.
func WithLookahead(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.lookahead = d
		}
	}
}

// WithMaxMinute sets the elapsed minute after which a match completes.
func WithMaxMinute(m int) Option {
	return func(s *Scheduler) {
		if m > 0 {
			s.maxMinute = m
		}
	}
}

// WithModel injects the scoring model, seeded for tests.
func WithModel(m *sim.Model) Option {
	return func(s *Scheduler) {
		if m != nil {
			s.model = m
		}
	}
}

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

// WithFeed attaches an authoritative external provider. When set, its
// snapshots supersede the goal model for matches it can answer for.
func WithFeed(p feed.Provider) Option {
	return func(s *Scheduler) {
		s.feed = p
	}
}

// New creates a scheduler over the given store, registry and publisher.
func New(store repository.Store, reg *registry.Registry, pub Publisher, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:        store,
		reg:          reg,
		pub:          pub,
		model:        sim.NewModel(),
		tickInterval: defaultTickInterval,
		lookahead:    defaultLookahead,
		maxMinute:    defaultMaxMinute,
		now:          time.Now,
		log:          logger.Get().Named("scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start runs an immediate tick, then ticks on the configured interval
// until the context is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		s.Tick(ctx)

		ticker := time.NewTicker(s.tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Tick(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the tick loop. An in-flight tick finishes first.
func (s *Scheduler) Stop(ctx context.Context) {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn(ctx, "tick loop did not stop before shutdown deadline")
	}
}

// Tick runs one full progression pass at the current clock reading.
func (s *Scheduler) Tick(ctx context.Context) {
	start := time.Now()
	now := s.now()

	s.reg.Drain()
	s.registerCandidates(ctx, now)
	s.reg.Drain()

	for _, entry := range s.reg.Snapshot() {
		s.progress(ctx, entry, now)
	}

	metrics.UpdateLiveMatches(s.reg.Len())
	metrics.RecordTick(float64(time.Since(start).Milliseconds()))
}

// registerCandidates pulls progression candidates out of the store:
// SCHEDULED matches inside the lookahead window get a one-time kickoff
// score draw, and LIVE matches found unregistered (bootstrap seed,
// restart) are adopted as-is.
func (s *Scheduler) registerCandidates(ctx context.Context, now time.Time) {
	candidates, err := s.store.FindLiveCandidates(ctx, now, s.lookahead)
	if err != nil {
		s.log.Warn(ctx, "candidate scan failed", logger.Error(err))
	}
	for _, m := range candidates {
		if s.reg.Contains(m.ID) {
			continue
		}
		m.HomeScore, m.AwayScore = s.model.KickoffScore()
		if _, err := s.store.Save(ctx, m); err != nil {
			s.log.Warn(ctx, "kickoff score persist failed",
				logger.String("match_id", m.ID), logger.Error(err))
			continue
		}
		s.reg.Register(m.ID, m.Kickoff)
	}

	live, err := s.store.FindByStatus(ctx, model.StatusLive)
	if err != nil {
		s.log.Warn(ctx, "live scan failed", logger.Error(err))
		return
	}
	for _, m := range live {
		if !s.reg.Contains(m.ID) {
			s.reg.Register(m.ID, m.Kickoff)
		}
	}
}

// progress applies one tick to one entry.
func (s *Scheduler) progress(ctx context.Context, entry registry.Entry, now time.Time) {
	m, err := s.store.FindByID(ctx, entry.MatchID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.log.Debug(ctx, "registered match vanished, dropping",
				logger.String("match_id", entry.MatchID))
			s.reg.Remove(entry.MatchID)
			return
		}
		// Transient store failure: keep the entry and retry next tick.
		// Dropping it would re-adopt the match with fresh progression
		// state and repeat one-shot events like half-time.
		s.log.Warn(ctx, "match load failed, retrying next tick",
			logger.String("match_id", entry.MatchID), logger.Error(err))
		return
	}

	// Administrative override: someone forced the match out of normal
	// progression. Deregister silently, no synthetic completion.
	if m.Status.Final() {
		s.log.Info(ctx, "match left progression by external status change",
			logger.String("match_id", m.ID),
			logger.String("status", string(m.Status)))
		s.reg.Remove(m.ID)
		return
	}

	elapsed := int(now.Sub(entry.SimulatedStart).Minutes())
	if elapsed < 0 {
		// Registered ahead of kickoff; nothing to do yet.
		return
	}

	if elapsed > s.maxMinute {
		s.complete(ctx, m, entry, elapsed, now)
		return
	}

	s.progressLive(ctx, m, entry, elapsed, now)
}

// complete finishes a match whose elapsed time passed the final
// minute. A match that never ran a live tick gets a weighted final
// score draw; an accumulated score is never lowered.
func (s *Scheduler) complete(ctx context.Context, m model.Match, entry registry.Entry, elapsed int, now time.Time) {
	m.Status = model.StatusCompleted
	if entry.LiveTicks == 0 {
		home, away := s.model.FinalScore()
		if home > m.HomeScore {
			m.HomeScore = home
		}
		if away > m.AwayScore {
			m.AwayScore = away
		}
	}

	if _, err := s.store.Save(ctx, m); err != nil {
		s.log.Warn(ctx, "completion persist failed, retrying next tick",
			logger.String("match_id", m.ID), logger.Error(err))
		return
	}

	s.pub.Publish(ctx, model.NewCompleted(m, elapsed, now))
	s.reg.Remove(m.ID)
	metrics.RecordMatchCompleted()
	s.log.Info(ctx, "match completed",
		logger.String("match_id", m.ID),
		logger.Int("home_score", m.HomeScore),
		logger.Int("away_score", m.AwayScore))
}

// progressLive runs the in-play transition for one tick: first tick
// flips SCHEDULED to LIVE, the half-time window announces itself once,
// and the goal model (or the authoritative feed) moves the score.
func (s *Scheduler) progressLive(ctx context.Context, m model.Match, entry registry.Entry, elapsed int, now time.Time) {
	started := m.Status == model.StatusScheduled
	m.Status = model.StatusLive

	homeGoals, awayGoals := s.advanceScore(ctx, &m)

	changed := started || homeGoals > 0 || awayGoals > 0
	if changed {
		if _, err := s.store.Save(ctx, m); err != nil {
			s.log.Warn(ctx, "progression persist failed, retrying next tick",
				logger.String("match_id", m.ID), logger.Error(err))
			return
		}
	}

	if started {
		s.pub.Publish(ctx, model.NewLiveStarted(m, elapsed, now))
		metrics.RecordMatchStarted()
	}
	if elapsed >= halfTimeStart && elapsed < halfTimeEnd && !entry.HalfTimeSent {
		s.pub.Publish(ctx, model.NewHalfTime(m, elapsed, now))
		s.reg.MarkHalfTime(m.ID)
	}
	for i := 0; i < homeGoals; i++ {
		s.pub.Publish(ctx, model.NewGoal(m, elapsed, now))
		metrics.RecordGoal("home")
	}
	for i := 0; i < awayGoals; i++ {
		s.pub.Publish(ctx, model.NewGoal(m, elapsed, now))
		metrics.RecordGoal("away")
	}

	s.reg.RecordLiveTick(m.ID)
}

// advanceScore mutates the match score for this tick and returns how
// many goals each side gained. An authoritative feed snapshot, when
// available, replaces the probabilistic draw; scores never go down.
func (s *Scheduler) advanceScore(ctx context.Context, m *model.Match) (homeGoals, awayGoals int) {
	if s.feed != nil {
		snap, err := s.feed.Fetch(ctx, m.ID)
		switch {
		case err == nil:
			if snap.HomeScore > m.HomeScore {
				homeGoals = snap.HomeScore - m.HomeScore
				m.HomeScore = snap.HomeScore
			}
			if snap.AwayScore > m.AwayScore {
				awayGoals = snap.AwayScore - m.AwayScore
				m.AwayScore = snap.AwayScore
			}
			return homeGoals, awayGoals
		case errors.Is(err, feed.ErrThrottled):
			// Inside the provider's minimum interval; the goal model
			// carries this tick.
		default:
			s.log.Warn(ctx, "feed fetch failed, using goal model",
				logger.String("match_id", m.ID), logger.Error(err))
		}
	}

	if s.model.GoalThisTick() {
		m.HomeScore++
		homeGoals++
	}
	if s.model.GoalThisTick() {
		m.AwayScore++
		awayGoals++
	}
	return homeGoals, awayGoals
}
