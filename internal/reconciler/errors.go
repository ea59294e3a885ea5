package reconciler

import "errors"

// Sentinel kinds for reconciler errors.
var (
	// ErrPassInProgress means a pass was requested while another was
	// still running; the request is dropped, not queued.
	ErrPassInProgress = errors.New("reconciliation pass already in progress")

	// ErrBadArtifactRef means a requested artifact name is not a
	// canonical session hash.
	ErrBadArtifactRef = errors.New("invalid artifact reference")
)
