// Package sim holds the scoring model used to progress live matches.
package sim

import (
	"math/rand"
	"time"
)

const (
	defaultGoalProbability = 0.02
	defaultHomeBias        = 0.1
)

// finalScoreWeights is the per-side goal distribution for a finished
// match, indexed by goal count 0..5.
var finalScoreWeights = []int{10, 25, 30, 20, 10, 5}

// kickoffScoreWeights skews registration scores toward 0..2 so matches
// joined mid-progression start from a plausible scoreline.
var kickoffScoreWeights = []int{45, 35, 20}

// Model draws goals for live matches. Every draw goes through the
// injected rng, so a seeded rand.Rand makes a whole run reproducible.
type Model struct {
	rng             *rand.Rand
	goalProbability float64
	homeBias        float64
}

// Option configures a Model.
type Option func(*Model)

// WithRand sets the random source. Tests pass a seeded one.
func WithRand(rng *rand.Rand) Option {
	return func(m *Model) {
		if rng != nil {
			m.rng = rng
		}
	}
}

// WithGoalProbability sets the per-team, per-tick goal probability.
func WithGoalProbability(p float64) Option {
	return func(m *Model) {
		if p >= 0 && p <= 1 {
			m.goalProbability = p
		}
	}
}

// WithHomeBias sets the home-side bump applied to final score draws.
func WithHomeBias(b float64) Option {
	return func(m *Model) {
		if b >= 0 && b <= 1 {
			m.homeBias = b
		}
	}
}

// NewModel creates a scoring model with default probabilities and a
// time-seeded rng.
func NewModel(opts ...Option) *Model {
	m := &Model{
		rng:             rand.New(rand.NewSource(time.Now().UnixNano())),
		goalProbability: defaultGoalProbability,
		homeBias:        defaultHomeBias,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// GoalThisTick reports whether a team scores on this tick. With the
// default 2% probability and one-minute ticks a side averages roughly
// 1.8 goals over a 90 minute match.
func (m *Model) GoalThisTick() bool {
	return m.rng.Float64() < m.goalProbability
}

// KickoffScore draws the scoreline a match carries when it enters
// progression, favouring low counts.
func (m *Model) KickoffScore() (home, away int) {
	return m.weighted(kickoffScoreWeights), m.weighted(kickoffScoreWeights)
}

// FinalScore draws a full-time scoreline. The home side gets a small
// upward bias: with probability homeBias its draw is bumped by one,
// capped at the distribution's maximum.
func (m *Model) FinalScore() (home, away int) {
	home = m.weighted(finalScoreWeights)
	away = m.weighted(finalScoreWeights)
	if m.rng.Float64() < m.homeBias && home < len(finalScoreWeights)-1 {
		home++
	}
	return home, away
}

// weighted draws an index from weights proportional to its weight.
func (m *Model) weighted(weights []int) int {
	total := 0
	for _, w := range weights {
		total += w
	}
	n := m.rng.Intn(total)
	for i, w := range weights {
		if n < w {
			return i
		}
		n -= w
	}
	return len(weights) - 1
}
