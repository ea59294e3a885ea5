// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/wordfall/leaderboard/internal/domain/ranking"
	"github.com/wordfall/leaderboard/internal/reconciler"
)

// ArtifactDependencies defines the interface for snapshot and replay reads.
type ArtifactDependencies interface {
	Leaderboard(ctx context.Context) (ranking.LeaderboardDoc, error)
	Replay(ctx context.Context, sessionHash string) (reconciler.ReplayArtifact, error)
}

// ArtifactsHandler serves the published leaderboard snapshot and replay
// artifacts. Documents are immutable between reconciliation passes, so
// these reads never contend with writers.
type ArtifactsHandler struct {
	deps ArtifactDependencies
}

// NewArtifactsHandler creates a new artifacts handler.
func NewArtifactsHandler(deps ArtifactDependencies) *ArtifactsHandler {
	return &ArtifactsHandler{deps: deps}
}

// HandleGetLeaderboard handles GET /api/leaderboard requests. With
// ?view=visible only the default display slice is returned; otherwise
// the full retained document is served, hidden entries included.
func (h *ArtifactsHandler) HandleGetLeaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	doc, err := h.deps.Leaderboard(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", nil)
		return
	}

	if r.URL.Query().Get("view") == "visible" {
		doc.Scores = doc.Visible()
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "bad_request", errors.New("limit must be a non-negative integer"))
			return
		}
		if n < len(doc.Scores) {
			doc.Scores = doc.Scores[:n]
		}
	}
	writeJSON(w, http.StatusOK, doc)
}

// HandleGetReplay handles GET /api/replays/{hash} requests.
func (h *ArtifactsHandler) HandleGetReplay(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	hash := strings.TrimPrefix(r.URL.Path, "/api/replays/")
	hash = strings.TrimSuffix(hash, ".json")
	if hash == "" || strings.Contains(hash, "/") {
		writeError(w, http.StatusBadRequest, "bad_request", errors.New("missing replay hash"))
		return
	}

	artifact, err := h.deps.Replay(r.Context(), hash)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, artifact)
	case errors.Is(err, reconciler.ErrBadArtifactRef):
		writeError(w, http.StatusBadRequest, "invalid_hash", err)
	case errors.Is(err, os.ErrNotExist):
		writeError(w, http.StatusNotFound, "not_found", errors.New("replay not found"))
	default:
		writeError(w, http.StatusInternalServerError, "internal", nil)
	}
}
