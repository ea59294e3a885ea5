package reconciler

import (
	"time"

	"github.com/wordfall/leaderboard/pkg/logger"
)

// Option applies a configuration option to the Reconciler.
type Option func(*Reconciler)

// WithVerifyWorkers bounds the replay verification fan-out.
func WithVerifyWorkers(n int) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.verifyWorkers = n
		}
	}
}

// WithMaxScores sets how many entries the snapshot retains.
func WithMaxScores(n int) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.buildOpts.MaxScores = n
		}
	}
}

// WithTopDefault sets how many entries are shown by default.
func WithTopDefault(n int) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.buildOpts.TopDefault = n
		}
	}
}

// WithFlagThreshold sets the flag count that hides an entry from
// default display.
func WithFlagThreshold(n int) Option {
	return func(r *Reconciler) {
		if n > 0 {
			r.buildOpts.FlagThreshold = n
		}
	}
}

// WithLogger sets a custom logger for the reconciler.
func WithLogger(log logger.Logger) Option {
	return func(r *Reconciler) {
		if log != nil {
			r.log = log
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) {
		if now != nil {
			r.now = now
		}
	}
}
