package service

import (
	"errors"
	"fmt"
)

// Sentinel error kinds for this package. These allow errors.Is/As from callers.
var (
	ErrInvalidUserID      = errors.New("invalid user id")
	ErrInvalidInitials    = errors.New("invalid initials")
	ErrInvalidSessionHash = errors.New("invalid session hash")
	ErrInvalidSession     = errors.New("invalid session record")
	ErrInvalidVote        = errors.New("invalid vote")
	ErrInvalidFeedback    = errors.New("invalid feedback")
	ErrDuplicate          = errors.New("duplicate submission")
	ErrRateLimited        = errors.New("rate limited")
	ErrNotStarted         = errors.New("service not started")
)

// RateLimitedError carries the denial details for one action.
type RateLimitedError struct {
	Action            string
	RetryAfterSeconds int
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited on %s, retry after %ds", e.Action, e.RetryAfterSeconds)
}

// Unwrap makes errors.Is(err, ErrRateLimited) hold.
func (e *RateLimitedError) Unwrap() error {
	return ErrRateLimited
}
