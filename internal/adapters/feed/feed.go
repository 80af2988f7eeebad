// Package feed integrates an external authoritative score provider.
package feed

import (
	"context"
	"errors"
	"sync"
	"time"

	"matchpulse/internal/domain/model"
	"matchpulse/pkg/metrics"
)

// ErrThrottled is returned when an endpoint is queried again before its
// minimum interval has passed.
var ErrThrottled = errors.New("feed endpoint throttled")

// Snapshot is the authoritative state the feed reports for one match.
type Snapshot struct {
	MatchID   string
	HomeScore int
	AwayScore int
	Status    model.MatchStatus
}

// Provider fetches the authoritative snapshot for a match.
type Provider interface {
	Fetch(ctx context.Context, matchID string) (Snapshot, error)
}

// RateLimited wraps a Provider and enforces a minimum interval between
// calls per endpoint key. Calls inside the interval fail fast with
// ErrThrottled instead of hitting the upstream.
type RateLimited struct {
	inner       Provider
	minInterval time.Duration
	now         func() time.Time

	mu       sync.Mutex
	lastCall map[string]time.Time
}

// RateLimitedOption configures a RateLimited provider.
type RateLimitedOption func(*RateLimited)

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) RateLimitedOption {
	return func(r *RateLimited) {
		if now != nil {
			r.now = now
		}
	}
}

// NewRateLimited wraps inner so each match endpoint is queried at most
// once per minInterval.
func NewRateLimited(inner Provider, minInterval time.Duration, opts ...RateLimitedOption) *RateLimited {
	r := &RateLimited{
		inner:       inner,
		minInterval: minInterval,
		now:         time.Now,
		lastCall:    make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Fetch proxies to the wrapped provider unless the endpoint was called
// too recently. The last-call timestamp advances only on attempts that
// reach the upstream, so a throttled call does not extend the window.
func (r *RateLimited) Fetch(ctx context.Context, matchID string) (Snapshot, error) {
	now := r.now()

	r.mu.Lock()
	last, seen := r.lastCall[matchID]
	if seen && now.Sub(last) < r.minInterval {
		r.mu.Unlock()
		metrics.RecordFeedThrottled()
		return Snapshot{}, ErrThrottled
	}
	r.lastCall[matchID] = now
	r.mu.Unlock()

	metrics.RecordFeedFetch()
	snap, err := r.inner.Fetch(ctx, matchID)
	if err != nil {
		metrics.RecordFeedError()
		return Snapshot{}, err
	}
	return snap, nil
}
