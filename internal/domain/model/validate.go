package model

import (
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var (
	initialsRe    = regexp.MustCompile(`^[A-Z]{3}$`)
	sessionHashRe = regexp.MustCompile(`^[0-9a-f]{64}$`)
)

// ValidInitials reports whether s is exactly three uppercase letters.
func ValidInitials(s string) bool {
	return initialsRe.MatchString(s)
}

// NormalizeSessionHash folds a hex digest to its canonical lowercase
// form. Validation happens separately so callers can reject bad input
// before storing the canonical value.
func NormalizeSessionHash(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// ValidSessionHash reports whether s is a canonical SHA-256 hex digest.
func ValidSessionHash(s string) bool {
	return sessionHashRe.MatchString(s)
}

// ValidUserID reports whether s parses as a UUID.
func ValidUserID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// Description length bounds for feedback items.
const (
	MinDescriptionLen = 10
	MaxDescriptionLen = 1000
)

// ValidDescription reports whether a feedback description is within the
// allowed length bounds.
func ValidDescription(s string) bool {
	n := len([]rune(s))
	return n >= MinDescriptionLen && n <= MaxDescriptionLen
}
