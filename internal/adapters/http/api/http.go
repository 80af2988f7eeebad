// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"matchpulse/internal/domain/model"
)

// MatchReader exposes the read side of the match store to handlers.
type MatchReader interface {
	ListMatches(ctx context.Context) ([]model.Match, error)
	LiveMatches(ctx context.Context) ([]model.Match, error)
	TodayMatches(ctx context.Context) ([]model.Match, error)
	GetMatch(ctx context.Context, id string) (model.Match, error)
}

// StatusOverrider forces a match status from outside the progression
// loop. The scheduler notices the change on its next tick.
type StatusOverrider interface {
	OverrideStatus(ctx context.Context, id string, status model.MatchStatus) (model.Match, error)
}

// Dependencies bundles what the handlers need from the application.
type Dependencies interface {
	MatchReader
	StatusOverrider
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	matchesHandler *MatchesHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(statsProvider),
		matchesHandler: NewMatchesHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/matches", MetricsMiddleware(s.matchesHandler.HandleMatches, "matches"))
	mux.HandleFunc("/matches/", MetricsMiddleware(s.matchesHandler.HandleMatch, "match"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
