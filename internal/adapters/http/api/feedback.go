// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	service "github.com/wordfall/leaderboard/internal/app"
	"github.com/wordfall/leaderboard/internal/domain/ranking"
)

// FeedbackDependencies defines the interface for feedback handling.
type FeedbackDependencies interface {
	SubmitFeedback(ctx context.Context, req service.FeedbackRequest) (string, error)
	Feedback(ctx context.Context) (ranking.FeedbackDoc, error)
}

// FeedbackHandler handles feedback submission and snapshot reads.
type FeedbackHandler struct {
	deps FeedbackDependencies
}

// NewFeedbackHandler creates a new feedback handler.
func NewFeedbackHandler(deps FeedbackDependencies) *FeedbackHandler {
	return &FeedbackHandler{deps: deps}
}

// feedbackRequest mirrors the wire schema for POST /api/feedback.
type feedbackRequest struct {
	UserID      string            `json:"userId"`
	Kind        string            `json:"kind"`
	Description string            `json:"description"`
	Context     map[string]string `json:"context,omitempty"`
}

func (f feedbackRequest) validate() error {
	switch {
	case strings.TrimSpace(f.UserID) == "":
		return errors.New("missing userId")
	case strings.TrimSpace(f.Kind) == "":
		return errors.New("missing kind")
	case strings.TrimSpace(f.Description) == "":
		return errors.New("missing description")
	}
	return nil
}

// HandleFeedback routes POST (submit) and GET (published snapshot) for
// /api/feedback.
func (h *FeedbackHandler) HandleFeedback(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handlePost(w, r)
	case http.MethodGet:
		h.handleGet(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *FeedbackHandler) handlePost(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_feedback"
	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	id, err := h.deps.SubmitFeedback(r.Context(), service.FeedbackRequest{
		UserID:      req.UserID,
		Kind:        req.Kind,
		Description: req.Description,
		Context:     req.Context,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted", FeedbackID: id})
}

func (h *FeedbackHandler) handleGet(w http.ResponseWriter, r *http.Request) {
	doc, err := h.deps.Feedback(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", nil)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// FeedbackVoteDependencies defines the interface for feedback vote handling.
type FeedbackVoteDependencies interface {
	VoteFeedback(ctx context.Context, req service.FeedbackVoteRequest) error
}

// FeedbackVotesHandler handles endorsements of feedback items.
type FeedbackVotesHandler struct {
	deps FeedbackVoteDependencies
}

// NewFeedbackVotesHandler creates a new feedback votes handler.
func NewFeedbackVotesHandler(deps FeedbackVoteDependencies) *FeedbackVotesHandler {
	return &FeedbackVotesHandler{deps: deps}
}

// feedbackVoteRequest mirrors the wire schema for POST
// /api/feedback/votes. The sender is userId on the wire and becomes the
// record's voterId.
type feedbackVoteRequest struct {
	UserID     string `json:"userId"`
	FeedbackID string `json:"feedbackId"`
}

func (f feedbackVoteRequest) validate() error {
	switch {
	case strings.TrimSpace(f.UserID) == "":
		return errors.New("missing userId")
	case strings.TrimSpace(f.FeedbackID) == "":
		return errors.New("missing feedbackId")
	}
	return nil
}

// HandlePostFeedbackVote handles POST /api/feedback/votes requests.
func (h *FeedbackVotesHandler) HandlePostFeedbackVote(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_feedback_vote"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req feedbackVoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", WrapKind(op, ErrBadRequest, err))
		return
	}

	err := h.deps.VoteFeedback(r.Context(), service.FeedbackVoteRequest{
		VoterID:    req.UserID,
		FeedbackID: req.FeedbackID,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, ackResponse{Status: "accepted"})
}
