package session

import "errors"

// Sentinel kinds for replay verification errors.
var (
	// ErrUnknownCorpus means the record names a word-corpus version this
	// build cannot reproduce. Unverifiable, so the record is rejected.
	ErrUnknownCorpus = errors.New("unknown corpus version")

	// ErrMalformedRecord means the record cannot be replayed at all
	// (empty keystroke log, non-increasing timestamps, bad indices).
	ErrMalformedRecord = errors.New("malformed session record")

	// ErrHashMismatch means the recomputed hash or derived stats differ
	// from the claimed values. Treated as tampering.
	ErrHashMismatch = errors.New("session hash mismatch")
)
