package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	service "github.com/wordfall/leaderboard/internal/app"
)

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
)

// NewKind tags a sentinel with the operation that raised it.
func NewKind(op string, kind error) error {
	return fmt.Errorf("%s: %w", op, kind)
}

// WrapKind tags a sentinel and its cause with the operation.
func WrapKind(op string, kind, err error) error {
	return fmt.Errorf("%s: %w: %w", op, kind, err)
}

// writeServiceError maps gateway errors onto the HTTP error taxonomy.
// Validation failures are 400, duplicates 409, rate limiting 429 with a
// Retry-After hint; anything else is an opaque 500.
func writeServiceError(w http.ResponseWriter, err error) {
	var limited *service.RateLimitedError
	switch {
	case errors.As(err, &limited):
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Retry-After", strconv.Itoa(limited.RetryAfterSeconds))
		w.WriteHeader(http.StatusTooManyRequests)
		_ = json.NewEncoder(w).Encode(errorResponse{
			Code:              "rate_limited",
			Message:           err.Error(),
			RetryAfterSeconds: limited.RetryAfterSeconds,
		})
	case errors.Is(err, service.ErrDuplicate):
		writeError(w, http.StatusConflict, "duplicate", err)
	case errors.Is(err, service.ErrInvalidUserID):
		writeError(w, http.StatusBadRequest, "invalid_user_id", err)
	case errors.Is(err, service.ErrInvalidInitials):
		writeError(w, http.StatusBadRequest, "invalid_initials", err)
	case errors.Is(err, service.ErrInvalidSessionHash):
		writeError(w, http.StatusBadRequest, "invalid_hash", err)
	case errors.Is(err, service.ErrInvalidSession):
		writeError(w, http.StatusBadRequest, "invalid_session", err)
	case errors.Is(err, service.ErrInvalidVote):
		writeError(w, http.StatusBadRequest, "invalid_vote", err)
	case errors.Is(err, service.ErrInvalidFeedback):
		writeError(w, http.StatusBadRequest, "invalid_feedback", err)
	default:
		// Internal detail stays out of the response body.
		writeError(w, http.StatusInternalServerError, "internal", nil)
	}
}
