// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	service "github.com/wordfall/leaderboard/internal/app"
)

// VoteDependencies defines the interface for vote handling.
type VoteDependencies interface {
	CastVote(ctx context.Context, req service.VoteRequest) error
}

// VotesHandler handles vote requests against scores and replays.
type VotesHandler struct {
	deps VoteDependencies
}

// NewVotesHandler creates a new votes handler.
func NewVotesHandler(deps VoteDependencies) *VotesHandler {
	return &VotesHandler{deps: deps}
}

// voteRequest mirrors the wire schema for POST /api/votes. The sender
// is userId on the wire and becomes the record's voterId.
type voteRequest struct {
	UserID     string `json:"userId"`
	TargetHash string `json:"targetHash"`
	TargetType string `json:"targetType"`
	VoteType   string `json:"voteType"`
}

func (v voteRequest) validate() error {
	switch {
	case strings.TrimSpace(v.UserID) == "":
		return errors.New("missing userId")
	case strings.TrimSpace(v.TargetHash) == "":
		return errors.New("missing targetHash")
	case strings.TrimSpace(v.TargetType) == "":
		return errors.New("missing targetType")
	case strings.TrimSpace(v.VoteType) == "":
		return errors.New("missing voteType")
	}
	return nil
}

// HandlePostVote handles POST /api/votes requests.
func (h *VotesHandler) HandlePostVote(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_vote"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req voteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	err := h.deps.CastVote(r.Context(), service.VoteRequest{
		VoterID:    req.UserID,
		TargetHash: req.TargetHash,
		TargetType: req.TargetType,
		VoteType:   req.VoteType,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
}
