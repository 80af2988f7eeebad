// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"matchpulse/internal/adapters/repository"
	"matchpulse/internal/domain/model"
)

// MatchesHandler serves match collection and single-match routes.
type MatchesHandler struct {
	deps Dependencies
}

// NewMatchesHandler creates a new matches handler.
func NewMatchesHandler(deps Dependencies) *MatchesHandler {
	return &MatchesHandler{deps: deps}
}

// HandleMatches handles GET /matches requests.
func (h *MatchesHandler) HandleMatches(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	matches, err := h.deps.ListMatches(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

// HandleMatch dispatches /matches/{...} routes:
//
//	GET  /matches/live
//	GET  /matches/today
//	GET  /matches/{id}
//	POST /matches/{id}/status
func (h *MatchesHandler) HandleMatch(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/matches/")

	switch {
	case path == "live":
		h.handleCollection(w, r, h.deps.LiveMatches)
	case path == "today":
		h.handleCollection(w, r, h.deps.TodayMatches)
	case strings.HasSuffix(path, "/status"):
		h.handleStatusOverride(w, r, strings.TrimSuffix(path, "/status"))
	default:
		h.handleGetMatch(w, r, path)
	}
}

func (h *MatchesHandler) handleCollection(w http.ResponseWriter, r *http.Request, load func(ctx context.Context) ([]model.Match, error)) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	matches, err := load(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

func (h *MatchesHandler) handleGetMatch(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	m, err := h.deps.GetMatch(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "internal_error", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// statusOverrideRequest is the body of POST /matches/{id}/status.
type statusOverrideRequest struct {
	Status string `json:"status"`
}

func (h *MatchesHandler) handleStatusOverride(w http.ResponseWriter, r *http.Request, id string) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}

	var req statusOverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	status := model.MatchStatus(strings.ToUpper(strings.TrimSpace(req.Status)))
	if !status.Valid() {
		writeError(w, http.StatusBadRequest, "invalid_status",
			fmt.Errorf("%w: %q", ErrInvalidStatus, req.Status))
		return
	}

	m, err := h.deps.OverrideStatus(r.Context(), id, status)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			writeError(w, http.StatusNotFound, "not_found", err)
		case errors.Is(err, model.ErrInvalidTransition):
			writeError(w, http.StatusConflict, "invalid_transition", err)
		default:
			writeError(w, http.StatusInternalServerError, "internal_error", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, m)
}
