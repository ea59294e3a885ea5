// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"net/http"

	service "github.com/wordfall/leaderboard/internal/app"
)

// StatsProvider reports the gateway's pending-queue and cache counters.
type StatsProvider interface {
	GetStats() service.Stats
}

// StatsHandler serves the gateway statistics document.
type StatsHandler struct {
	provider StatsProvider
}

// NewStatsHandler creates a new stats handler.
func NewStatsHandler(provider StatsProvider) *StatsHandler {
	return &StatsHandler{provider: provider}
}

// HandleStats handles GET /stats requests.
func (h *StatsHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	writeJSON(w, http.StatusOK, h.provider.GetStats())
}
