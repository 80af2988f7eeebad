package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"matchpulse/internal/domain/model"
	"matchpulse/pkg/logger"
	"matchpulse/pkg/metrics"
)

const (
	matchKeyPrefix = "match:"
	matchIndexKey  = "matches:index"
)

// RedisStore implements Store on a Redis hash per match plus an id
// index set. Intended for multi-instance deployments where matches
// must survive a process restart.
type RedisStore struct {
	rdb *redis.Client
	log logger.Logger
}

// NewRedisStore connects to Redis at addr and verifies the connection
// with a ping before returning.
func NewRedisStore(ctx context.Context, addr string) (*RedisStore, error) {
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return &RedisStore{
		rdb: rdb,
		log: logger.Get().Named("redis-store"),
	}, nil
}

// Close releases the underlying Redis connection pool.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

func matchKey(id string) string {
	return matchKeyPrefix + id
}

// Save persists the match under match:{id} and records the id in the
// index set.
func (s *RedisStore) Save(ctx context.Context, m model.Match) (model.Match, error) {
	start := time.Now()
	defer func() {
		metrics.RecordStoreOpLatency(float64(time.Since(start).Milliseconds()))
	}()

	if m.ID == "" {
		metrics.RecordStoreError()
		return model.Match{}, fmt.Errorf("%w: missing id", ErrInvalidMatch)
	}
	if m.HomeScore < 0 || m.AwayScore < 0 {
		metrics.RecordStoreError()
		return model.Match{}, fmt.Errorf("%w: negative score", ErrInvalidMatch)
	}

	body, err := json.Marshal(m)
	if err != nil {
		metrics.RecordStoreError()
		return model.Match{}, fmt.Errorf("marshal match %s: %w", m.ID, err)
	}

	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, matchKey(m.ID),
		"body", body,
		"status", string(m.Status),
		"kickoff", m.Kickoff.UTC().Format(time.RFC3339),
	)
	pipe.SAdd(ctx, matchIndexKey, m.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		metrics.RecordStoreError()
		return model.Match{}, fmt.Errorf("save match %s: %w", m.ID, err)
	}
	return m, nil
}

// FindByID returns the match stored under match:{id}.
func (s *RedisStore) FindByID(ctx context.Context, id string) (model.Match, error) {
	body, err := s.rdb.HGet(ctx, matchKey(id), "body").Result()
	if err == redis.Nil {
		return model.Match{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		metrics.RecordStoreError()
		return model.Match{}, fmt.Errorf("get match %s: %w", id, err)
	}

	var m model.Match
	if err := json.Unmarshal([]byte(body), &m); err != nil {
		metrics.RecordStoreError()
		return model.Match{}, fmt.Errorf("unmarshal match %s: %w", id, err)
	}
	return m, nil
}

// FindLiveCandidates returns SCHEDULED matches already underway or
// kicking off within the lookahead window.
func (s *RedisStore) FindLiveCandidates(ctx context.Context, now time.Time, lookahead time.Duration) ([]model.Match, error) {
	horizon := now.Add(lookahead)
	return s.scan(ctx, func(m model.Match) bool {
		return m.Status == model.StatusScheduled && !m.Kickoff.After(horizon)
	})
}

// FindByStatus returns all matches with the given status.
func (s *RedisStore) FindByStatus(ctx context.Context, status model.MatchStatus) ([]model.Match, error) {
	return s.scan(ctx, func(m model.Match) bool {
		return m.Status == status
	})
}

// FindByKickoffBetween returns matches kicking off in [from, to).
func (s *RedisStore) FindByKickoffBetween(ctx context.Context, from, to time.Time) ([]model.Match, error) {
	return s.scan(ctx, func(m model.Match) bool {
		return !m.Kickoff.Before(from) && m.Kickoff.Before(to)
	})
}

// List returns all matches ordered by kickoff.
func (s *RedisStore) List(ctx context.Context) ([]model.Match, error) {
	return s.scan(ctx, func(model.Match) bool { return true })
}

// Count returns the number of indexed matches.
func (s *RedisStore) Count(ctx context.Context) int {
	n, err := s.rdb.SCard(ctx, matchIndexKey).Result()
	if err != nil {
		metrics.RecordStoreError()
		s.log.Warn(ctx, "count matches", logger.Error(err))
		return 0
	}
	return int(n)
}

// scan loads every indexed match and keeps those matching the
// predicate. A match whose hash has expired or gone missing is logged
// and skipped rather than failing the whole query.
func (s *RedisStore) scan(ctx context.Context, keep func(model.Match) bool) ([]model.Match, error) {
	ids, err := s.rdb.SMembers(ctx, matchIndexKey).Result()
	if err != nil {
		metrics.RecordStoreError()
		return nil, fmt.Errorf("list match ids: %w", err)
	}

	out := make([]model.Match, 0, len(ids))
	for _, id := range ids {
		m, err := s.FindByID(ctx, id)
		if err != nil {
			s.log.Warn(ctx, "skipping unreadable match",
				logger.String("match_id", id),
				logger.Error(err))
			continue
		}
		if keep(m) {
			out = append(out, m)
		}
	}

	sortByKickoff(out)
	return out, nil
}
