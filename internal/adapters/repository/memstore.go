package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"matchpulse/internal/domain/model"
	"matchpulse/pkg/metrics"
)

// MemoryStore implements Store with a mutex-guarded map. It is the
// in-process default; reads return copies, never shared references.
type MemoryStore struct {
	mu      sync.RWMutex
	matches map[string]model.Match
}

// NewMemoryStore creates an empty in-memory match store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{matches: make(map[string]model.Match)}
}

// Save persists the match, creating or replacing it by id.
func (s *MemoryStore) Save(ctx context.Context, m model.Match) (model.Match, error) {
	_ = ctx
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

	s.mu.Lock()
	s.matches[m.ID] = m
	size := len(s.matches)
	s.mu.Unlock()

	metrics.UpdateStoreMatches(size)
	return m, nil
}

// FindByID returns the match with the given id.
func (s *MemoryStore) FindByID(ctx context.Context, id string) (model.Match, error) {
	_ = ctx
	s.mu.RLock()
	m, ok := s.matches[id]
	s.mu.RUnlock()

	if !ok {
		return model.Match{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return m, nil
}

// FindLiveCandidates returns SCHEDULED matches already underway or
// kicking off within the lookahead window.
func (s *MemoryStore) FindLiveCandidates(ctx context.Context, now time.Time, lookahead time.Duration) ([]model.Match, error) {
	_ = ctx
	horizon := now.Add(lookahead)

	s.mu.RLock()
	candidates := make([]model.Match, 0)
	for _, m := range s.matches {
		if m.Status != model.StatusScheduled {
			continue
		}
		if m.Kickoff.After(horizon) {
			continue
		}
		candidates = append(candidates, m)
	}
	s.mu.RUnlock()

	sortByKickoff(candidates)
	return candidates, nil
}

// FindByStatus returns all matches with the given status.
func (s *MemoryStore) FindByStatus(ctx context.Context, status model.MatchStatus) ([]model.Match, error) {
	_ = ctx
	s.mu.RLock()
	out := make([]model.Match, 0)
	for _, m := range s.matches {
		if m.Status == status {
			out = append(out, m)
		}
	}
	s.mu.RUnlock()

	sortByKickoff(out)
	return out, nil
}

// FindByKickoffBetween returns matches kicking off in [from, to).
func (s *MemoryStore) FindByKickoffBetween(ctx context.Context, from, to time.Time) ([]model.Match, error) {
	_ = ctx
	s.mu.RLock()
	out := make([]model.Match, 0)
	for _, m := range s.matches {
		if m.Kickoff.Before(from) || !m.Kickoff.Before(to) {
			continue
		}
		out = append(out, m)
	}
	s.mu.RUnlock()

	sortByKickoff(out)
	return out, nil
}

// List returns all matches ordered by kickoff.
func (s *MemoryStore) List(ctx context.Context) ([]model.Match, error) {
	_ = ctx
	s.mu.RLock()
	out := make([]model.Match, 0, len(s.matches))
	for _, m := range s.matches {
		out = append(out, m)
	}
	s.mu.RUnlock()

	sortByKickoff(out)
	return out, nil
}

// Count returns the number of stored matches.
func (s *MemoryStore) Count(ctx context.Context) int {
	_ = ctx
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.matches)
}

func sortByKickoff(matches []model.Match) {
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Kickoff.Equal(matches[j].Kickoff) {
			return matches[i].ID < matches[j].ID
		}
		return matches[i].Kickoff.Before(matches[j].Kickoff)
	})
}
