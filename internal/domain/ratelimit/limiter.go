package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/wordfall/leaderboard/internal/adapters/store"
)

// Limiter persists window state in the queue store and applies Decide.
// Read-then-write is not atomic against concurrent calls from the same
// subject; see the package comment.
type Limiter struct {
	store    store.Store
	policies map[string]Policy
	now      func() time.Time
}

// Option applies a configuration option to the Limiter.
type Option func(*Limiter)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		if now != nil {
			l.now = now
		}
	}
}

// NewLimiter creates a Limiter over the given store. policies maps action
// kinds to their ceilings; actions without a policy are unlimited.
func NewLimiter(st store.Store, policies map[string]Policy, opts ...Option) *Limiter {
	l := &Limiter{
		store:    st,
		policies: policies,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Check admits or denies one call for (key, action), where key is the
// store key for the subject's window. On admit the updated window is
// written back with TTL equal to the window length.
func (l *Limiter) Check(ctx context.Context, key, action string) (Decision, error) {
	policy, ok := l.policies[action]
	if !ok {
		return Decision{Allowed: true}, nil
	}

	var current *Window
	raw, err := l.store.Get(ctx, key)
	switch {
	case err == nil:
		var w Window
		if jsonErr := json.Unmarshal(raw, &w); jsonErr == nil {
			current = &w
		}
		// An undecodable window is treated as absent and overwritten.
	case errors.Is(err, store.ErrNotFound):
		// First call in this window.
	default:
		return Decision{}, fmt.Errorf("read rate limit window: %w", err)
	}

	decision := Decide(policy, l.now(), current)
	if !decision.Allowed {
		return decision, nil
	}

	buf, err := json.Marshal(decision.Window)
	if err != nil {
		return Decision{}, fmt.Errorf("encode rate limit window: %w", err)
	}
	if err := l.store.Put(ctx, key, buf, policy.Window); err != nil {
		return Decision{}, fmt.Errorf("write rate limit window: %w", err)
	}
	return decision, nil
}
