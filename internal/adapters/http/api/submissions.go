// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	service "github.com/wordfall/leaderboard/internal/app"
	"github.com/wordfall/leaderboard/internal/domain/session"
)

// SubmissionDependencies defines the interface for score submission handling.
type SubmissionDependencies interface {
	SubmitScore(ctx context.Context, sub service.ScoreSubmission) error
}

// SubmissionsHandler handles score submission requests.
type SubmissionsHandler struct {
	deps SubmissionDependencies
}

// NewSubmissionsHandler creates a new submissions handler.
func NewSubmissionsHandler(deps SubmissionDependencies) *SubmissionsHandler {
	return &SubmissionsHandler{deps: deps}
}

// scoreRequest mirrors the wire schema for POST /api/scores.
type scoreRequest struct {
	UserID      string         `json:"userId"`
	Initials    string         `json:"initials"`
	SessionHash string         `json:"sessionHash"`
	Session     session.Record `json:"sessionData"`
}

func (s scoreRequest) validate() error {
	switch {
	case strings.TrimSpace(s.UserID) == "":
		return errors.New("missing userId")
	case strings.TrimSpace(s.Initials) == "":
		return errors.New("missing initials")
	case strings.TrimSpace(s.SessionHash) == "":
		return errors.New("missing sessionHash")
	}
	return nil
}

// HandlePostScore handles POST /api/scores requests.
func (h *SubmissionsHandler) HandlePostScore(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_score"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req scoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	err := h.deps.SubmitScore(r.Context(), service.ScoreSubmission{
		UserID:      req.UserID,
		Initials:    req.Initials,
		SessionHash: req.SessionHash,
		Session:     req.Session,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}

	// Accepted means enqueued: ranking happens on the next pass.
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", UserID: req.UserID})
}
