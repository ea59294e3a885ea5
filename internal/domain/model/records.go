// Package model contains the durable record types that flow through the
// queue store between the gateway and the reconciler.
package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wordfall/leaderboard/internal/domain/session"
)

// ActionKind identifies a rate-limited gateway action.
type ActionKind string

// Gateway action kinds.
const (
	ActionScore        ActionKind = "score"
	ActionVote         ActionKind = "vote"
	ActionFeedback     ActionKind = "feedback"
	ActionFeedbackVote ActionKind = "feedback_vote"
)

// TargetType identifies what a vote points at.
type TargetType string

// Vote target types.
const (
	TargetScore  TargetType = "score"
	TargetReplay TargetType = "replay"
)

// VoteType distinguishes endorsements from cheat reports.
type VoteType string

// Vote types.
const (
	VoteUp   VoteType = "up"
	VoteFlag VoteType = "flag"
)

// FeedbackKind categorizes a feedback item.
type FeedbackKind string

// Feedback kinds.
const (
	FeedbackBug     FeedbackKind = "bug"
	FeedbackFeature FeedbackKind = "feature"
)

// Submission is a pending score submission awaiting reconciliation.
type Submission struct {
	UserID      string         `json:"userId"`
	Initials    string         `json:"initials"`
	SessionHash string         `json:"sessionHash"`
	Session     session.Record `json:"sessionData"`
	EnqueuedAt  int64          `json:"enqueuedAt"` // unix ms
}

// Vote is a pending up-vote or flag against a score or replay.
type Vote struct {
	VoterID    string     `json:"voterId"`
	TargetHash string     `json:"targetHash"`
	TargetType TargetType `json:"targetType"`
	VoteType   VoteType   `json:"voteType"`
	Timestamp  int64      `json:"timestamp"` // unix ms
}

// Feedback is a pending bug report or feature request.
type Feedback struct {
	FeedbackID  string            `json:"feedbackId"`
	UserID      string            `json:"userId"`
	Kind        FeedbackKind      `json:"kind"`
	Description string            `json:"description"`
	Context     map[string]string `json:"context,omitempty"`
	Timestamp   int64             `json:"timestamp"` // unix ms
}

// FeedbackVote is a pending endorsement of a feedback item.
type FeedbackVote struct {
	VoterID    string `json:"voterId"`
	FeedbackID string `json:"feedbackId"`
	Timestamp  int64  `json:"timestamp"` // unix ms
}

// Record TTLs. Vote records live for their full TTL: the reconciler
// recounts them every pass and never deletes them, so the (target,
// voter) key both enforces one vote per pair and carries the tally.
const (
	SubmissionTTL = 7 * 24 * time.Hour
	FeedbackTTL   = 30 * 24 * time.Hour
	VoteTTL       = 90 * 24 * time.Hour
)

// Store key prefixes. Queue entries are keyed {kind}:{timestamp}:{uuid};
// vote records are keyed by (target, voter) so that the at-most-one-vote
// invariant reduces to a key-existence check.
const (
	ScoreQueuePrefix    = "queue:score:"
	FeedbackQueuePrefix = "queue:feedback:"
	VotePrefix          = "vote:"
	FeedbackVotePrefix  = "feedback-vote:"
	RateLimitPrefix     = "ratelimit:"
)

// ScoreQueueKey builds a unique queue key for a score submission.
func ScoreQueueKey(now time.Time) string {
	return fmt.Sprintf("%s%d:%s", ScoreQueuePrefix, now.UnixMilli(), uuid.NewString())
}

// FeedbackQueueKey builds a unique queue key for a feedback item.
func FeedbackQueueKey(now time.Time) string {
	return fmt.Sprintf("%s%d:%s", FeedbackQueuePrefix, now.UnixMilli(), uuid.NewString())
}

// VoteKey builds the deterministic key for a (target, voter) pair.
func VoteKey(targetHash, voterID string) string {
	return VotePrefix + targetHash + ":" + voterID
}

// FeedbackVoteKey builds the deterministic key for a (feedback, voter) pair.
func FeedbackVoteKey(feedbackID, voterID string) string {
	return FeedbackVotePrefix + feedbackID + ":" + voterID
}

// RateLimitKey builds the window-counter key for a (user, action) pair.
func RateLimitKey(userID string, action ActionKind) string {
	return RateLimitPrefix + userID + ":" + string(action)
}
