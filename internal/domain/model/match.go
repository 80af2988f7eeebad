// Package model contains domain models passed between layers.
package model

import (
	"errors"
	"time"
)

// ErrInvalidTransition rejects a status change the lifecycle forbids.
var ErrInvalidTransition = errors.New("invalid status transition")

// MatchStatus enumerates the lifecycle states of a match.
type MatchStatus string

// Match lifecycle states. SCHEDULED, LIVE and COMPLETED advance forward
// only; CANCELLED and POSTPONED are absorbing administrative states.
const (
	StatusScheduled MatchStatus = "SCHEDULED"
	StatusLive      MatchStatus = "LIVE"
	StatusCompleted MatchStatus = "COMPLETED"
	StatusCancelled MatchStatus = "CANCELLED"
	StatusPostponed MatchStatus = "POSTPONED"
)

// Valid reports whether s is a known match status.
func (s MatchStatus) Valid() bool {
	switch s {
	case StatusScheduled, StatusLive, StatusCompleted, StatusCancelled, StatusPostponed:
		return true
	}
	return false
}

// Final reports whether s admits no further progression.
func (s MatchStatus) Final() bool {
	switch s {
	case StatusCompleted, StatusCancelled, StatusPostponed:
		return true
	}
	return false
}

// CanTransition reports whether a match may move from one status to
// another. Forward-only along SCHEDULED -> LIVE -> COMPLETED; the
// administrative states are reachable from SCHEDULED or LIVE and never
// left again.
func CanTransition(from, to MatchStatus) bool {
	if from == to {
		return false
	}
	switch from {
	case StatusScheduled:
		return to == StatusLive || to == StatusCompleted || to == StatusCancelled || to == StatusPostponed
	case StatusLive:
		return to == StatusCompleted || to == StatusCancelled || to == StatusPostponed
	}
	return false
}

// Match is the durable record of a fixture. Participants and league are
// immutable after creation; scores are non-negative and, while LIVE,
// only ever increase.
type Match struct {
	ID string `json:"id"`

	HomeTeamID string `json:"homeTeamId"`
	HomeTeam   string `json:"homeTeam"`
	AwayTeamID string `json:"awayTeamId"`
	AwayTeam   string `json:"awayTeam"`

	LeagueID string `json:"leagueId"`
	League   string `json:"league"`

	Kickoff time.Time   `json:"kickoff"`
	Status  MatchStatus `json:"status"`

	HomeScore int `json:"homeScore"`
	AwayScore int `json:"awayScore"`

	Venue      string `json:"venue"`
	Referee    string `json:"referee"`
	Attendance int    `json:"attendance"`
}
