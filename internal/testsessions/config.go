// Package testsessions generates valid recorded sessions and submits
// them against a running gateway. Sessions are built by reproducing the
// engine's own spawn sequence, so every generated record verifies.
package testsessions

import (
	"time"
)

// Config controls a generation and submission run.
type Config struct {
	BaseURL     string
	NumSessions int
	Workers     int
	Timeout     time.Duration
	MaxStage    int
	Verbose     bool
}

// Stats accumulates run results.
type Stats struct {
	SessionsGenerated int
	SessionsSubmitted int
	Accepted          int
	Duplicate         int
	RateLimited       int
	Failed            int
}
