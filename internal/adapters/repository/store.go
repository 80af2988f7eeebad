// Package repository defines the match store interface and errors.
package repository

import (
	"context"
	"time"

	"matchpulse/internal/domain/model"
)

// Store provides read/write access to durable match state. The engine
// treats it as an external collaborator: one failing operation affects
// one match only.
type Store interface {
	// Save persists the match, creating or replacing it by id.
	Save(ctx context.Context, m model.Match) (model.Match, error)

	// FindByID returns the match with the given id.
	// Returns ErrNotFound if the id is unknown.
	FindByID(ctx context.Context, id string) (model.Match, error)

	// FindLiveCandidates returns SCHEDULED matches whose kickoff has
	// already passed or falls within the lookahead window.
	FindLiveCandidates(ctx context.Context, now time.Time, lookahead time.Duration) ([]model.Match, error)

	// FindByStatus returns all matches with the given status.
	FindByStatus(ctx context.Context, status model.MatchStatus) ([]model.Match, error)

	// FindByKickoffBetween returns matches kicking off in [from, to),
	// ordered by kickoff.
	FindByKickoffBetween(ctx context.Context, from, to time.Time) ([]model.Match, error)

	// List returns all matches ordered by kickoff.
	List(ctx context.Context) ([]model.Match, error)

	// Count returns the number of stored matches.
	Count(ctx context.Context) int
}
