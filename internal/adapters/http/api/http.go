// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	service "github.com/wordfall/leaderboard/internal/app"
	"github.com/wordfall/leaderboard/internal/domain/ranking"
	"github.com/wordfall/leaderboard/internal/reconciler"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	// Write operations enqueue records for asynchronous reconciliation.
	SubmitScore(ctx context.Context, sub service.ScoreSubmission) error
	CastVote(ctx context.Context, req service.VoteRequest) error
	SubmitFeedback(ctx context.Context, req service.FeedbackRequest) (string, error)
	VoteFeedback(ctx context.Context, req service.FeedbackVoteRequest) error

	// Read operations expose the published snapshots.
	Leaderboard(ctx context.Context) (ranking.LeaderboardDoc, error)
	Feedback(ctx context.Context) (ranking.FeedbackDoc, error)
	Replay(ctx context.Context, sessionHash string) (reconciler.ReplayArtifact, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler       *HealthHandler
	statsHandler        *StatsHandler
	submissionsHandler  *SubmissionsHandler
	votesHandler        *VotesHandler
	feedbackHandler     *FeedbackHandler
	feedbackVoteHandler *FeedbackVotesHandler
	artifactsHandler    *ArtifactsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:       NewHealthHandler(),
		statsHandler:        NewStatsHandler(statsProvider),
		submissionsHandler:  NewSubmissionsHandler(deps),
		votesHandler:        NewVotesHandler(deps),
		feedbackHandler:     NewFeedbackHandler(deps),
		feedbackVoteHandler: NewFeedbackVotesHandler(deps),
		artifactsHandler:    NewArtifactsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/api/scores", MetricsMiddleware(s.submissionsHandler.HandlePostScore, "scores"))
	mux.HandleFunc("/api/votes", MetricsMiddleware(s.votesHandler.HandlePostVote, "votes"))
	mux.HandleFunc("/api/feedback/votes", MetricsMiddleware(s.feedbackVoteHandler.HandlePostFeedbackVote, "feedback_votes"))
	mux.HandleFunc("/api/feedback", MetricsMiddleware(s.feedbackHandler.HandleFeedback, "feedback"))
	mux.HandleFunc("/api/leaderboard", MetricsMiddleware(s.artifactsHandler.HandleGetLeaderboard, "leaderboard"))
	mux.HandleFunc("/api/replays/", MetricsMiddleware(s.artifactsHandler.HandleGetReplay, "replays"))
}

type ackResponse struct {
	Status     string `json:"status"`
	UserID     string `json:"userId,omitempty"`
	FeedbackID string `json:"feedbackId,omitempty"`
}

type errorResponse struct {
	Code              string `json:"code"`
	Message           string `json:"message"`
	RetryAfterSeconds int    `json:"retryAfterSeconds,omitempty"`
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
