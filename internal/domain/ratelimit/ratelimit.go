// Package ratelimit implements fixed-window admission counters. The
// window state is explicit and the decision is a pure function, so the
// limiter is testable without a store; persistence of windows is the
// caller's concern. Admission is advisory: concurrent read-then-write
// races can briefly over-admit, and the reconciler's authoritative dedup
// corrects for it.
package ratelimit

import (
	"time"
)

// Policy is the ceiling for one action kind within one window.
type Policy struct {
	Limit  int           `koanf:"limit"`
	Window time.Duration `koanf:"window"`
}

// Window is the persisted counter state for one (subject, action) pair.
type Window struct {
	Start time.Time `json:"start"`
	Count int       `json:"count"`
}

// Decision is the outcome of an admission check.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration // time until the window resets, when denied
	Window     Window        // state to persist when allowed
}

// Decide applies policy to the current window state. A nil or expired
// window starts fresh with count 1; an active window under the limit
// increments; a window at the limit denies and reports the remaining
// window time.
func Decide(policy Policy, now time.Time, w *Window) Decision {
	if policy.Limit <= 0 || policy.Window <= 0 {
		// Unconfigured policies admit everything.
		return Decision{Allowed: true, Window: Window{Start: now, Count: 1}}
	}

	if w == nil || now.Sub(w.Start) >= policy.Window {
		return Decision{Allowed: true, Window: Window{Start: now, Count: 1}}
	}

	if w.Count < policy.Limit {
		return Decision{Allowed: true, Window: Window{Start: w.Start, Count: w.Count + 1}}
	}

	remaining := policy.Window - now.Sub(w.Start)
	return Decision{Allowed: false, RetryAfter: remaining, Window: *w}
}

// RetryAfterSeconds reports the denial wait rounded up to whole seconds,
// the granularity surfaced to callers.
func (d Decision) RetryAfterSeconds() int {
	if d.Allowed || d.RetryAfter <= 0 {
		return 0
	}
	secs := int((d.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
