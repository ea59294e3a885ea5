// Package service provides the ingestion gateway that implements the
// dependencies required by the HTTP API: validation, advisory duplicate
// rejection, per-user rate limiting and fire-and-forget enqueueing into
// the durable queue store. Verification and ranking happen later, in the
// reconciler; nothing here touches the published snapshots except reads.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wordfall/leaderboard/internal/adapters/store"
	"github.com/wordfall/leaderboard/internal/domain/dedupe"
	"github.com/wordfall/leaderboard/internal/domain/model"
	"github.com/wordfall/leaderboard/internal/domain/ranking"
	"github.com/wordfall/leaderboard/internal/domain/ratelimit"
	"github.com/wordfall/leaderboard/internal/domain/session"
	"github.com/wordfall/leaderboard/internal/reconciler"
	"github.com/wordfall/leaderboard/pkg/logger"
	"github.com/wordfall/leaderboard/pkg/metrics"
)

// ScoreSubmission is the gateway input for a score.
type ScoreSubmission struct {
	UserID      string
	Initials    string
	SessionHash string
	Session     session.Record
}

// VoteRequest is the gateway input for an up-vote or flag.
type VoteRequest struct {
	VoterID    string
	TargetHash string
	TargetType string
	VoteType   string
}

// FeedbackRequest is the gateway input for a bug report or feature request.
type FeedbackRequest struct {
	UserID      string
	Kind        string
	Description string
	Context     map[string]string
}

// FeedbackVoteRequest is the gateway input for endorsing a feedback item.
type FeedbackVoteRequest struct {
	VoterID    string
	FeedbackID string
}

// Service implements the API dependencies for the ingestion gateway.
type Service struct {
	mu sync.RWMutex

	// Core components
	store   store.Store
	pub     *reconciler.Publisher
	deduper dedupe.Deduper
	limiter *ratelimit.Limiter

	// Configuration
	dedupeSize int
	policies   map[string]ratelimit.Policy
	now        func() time.Time

	// State
	started bool

	// Logging
	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the backing queue store. Required before Start.
func WithStore(st store.Store) Option {
	return func(s *Service) {
		s.store = st
	}
}

// WithPublisher sets the snapshot publisher used for reads and for
// seeding the advisory cache. Required before Start.
func WithPublisher(pub *reconciler.Publisher) Option {
	return func(s *Service) {
		s.pub = pub
	}
}

// WithDedupeSize sets the size of the advisory duplicate cache.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithPolicies sets the per-action rate limit policies.
func WithPolicies(policies map[string]ratelimit.Policy) Option {
	return func(s *Service) {
		if policies != nil {
			s.policies = policies
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.logger = log
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		dedupeSize: 50_000,
		policies:   map[string]ratelimit.Policy{},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes the gateway components and preloads the advisory
// cache from the published snapshot and the pending queue.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.store == nil || s.pub == nil {
		return fmt.Errorf("%w: store and publisher are required", ErrNotStarted)
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	s.logger.Info(ctx, "starting gateway service...")

	s.deduper = dedupe.NewSeenCache(
		dedupe.WithMaxSize(s.dedupeSize),
	)
	s.limiter = ratelimit.NewLimiter(s.store, s.policies,
		ratelimit.WithClock(s.now),
	)

	seeded, err := s.seedAdvisoryCache(ctx)
	if err != nil {
		// Seeding is best effort: an empty cache only weakens advisory
		// rejection, authoritative dedup still holds.
		s.logger.Warn(ctx, "advisory cache seeding incomplete", logger.Error(err))
	}

	s.started = true
	s.logger.Info(ctx, "gateway service started",
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Int("seededHashes", seeded),
	)
	return nil
}

// Stop marks the service stopped. The store is owned by the caller and
// closed there.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.started = false
	s.logger.Info(context.Background(), "gateway service stopped")
}

// seedAdvisoryCache loads known session hashes from the published
// snapshot and the pending score queue.
func (s *Service) seedAdvisoryCache(ctx context.Context) (int, error) {
	var hashes []string

	board, err := s.pub.LoadLeaderboard()
	if err != nil {
		return 0, fmt.Errorf("load snapshot: %w", err)
	}
	hashes = append(hashes, board.Hashes()...)

	keys, err := s.store.List(ctx, model.ScoreQueuePrefix)
	if err != nil {
		return 0, fmt.Errorf("list score queue: %w", err)
	}
	for _, key := range keys {
		raw, err := s.store.Get(ctx, key)
		if err != nil {
			continue
		}
		var sub model.Submission
		if err := json.Unmarshal(raw, &sub); err != nil {
			continue
		}
		if sub.SessionHash != "" {
			hashes = append(hashes, sub.SessionHash)
		}
	}

	s.deduper.Seed(ctx, hashes)
	return len(hashes), nil
}

// SubmitScore validates, deduplicates and enqueues a score submission.
// Acceptance is an acknowledgment of receipt, not of ranking: the
// reconciler may still reject the session during replay verification.
func (s *Service) SubmitScore(ctx context.Context, sub ScoreSubmission) error {
	if !s.isStarted() {
		return ErrNotStarted
	}

	if !model.ValidUserID(sub.UserID) {
		metrics.RecordSubmissionRejected("invalid_user_id")
		return fmt.Errorf("%w: %q", ErrInvalidUserID, sub.UserID)
	}
	sub.Initials = strings.ToUpper(strings.TrimSpace(sub.Initials))
	if !model.ValidInitials(sub.Initials) {
		metrics.RecordSubmissionRejected("invalid_initials")
		return fmt.Errorf("%w: %q", ErrInvalidInitials, sub.Initials)
	}
	sub.SessionHash = model.NormalizeSessionHash(sub.SessionHash)
	if !model.ValidSessionHash(sub.SessionHash) {
		metrics.RecordSubmissionRejected("invalid_hash")
		return ErrInvalidSessionHash
	}
	if err := checkSessionShape(sub.Session); err != nil {
		metrics.RecordSubmissionRejected("invalid_session")
		return err
	}

	if err := s.checkRate(ctx, sub.UserID, model.ActionScore); err != nil {
		return err
	}

	// Advisory only: a concurrent duplicate can slip through here and is
	// dropped by the reconciler instead.
	if s.deduper.SeenAndRecord(ctx, sub.SessionHash) {
		metrics.RecordDuplicateHit()
		metrics.RecordSubmissionRejected("duplicate")
		return fmt.Errorf("%w: session %s", ErrDuplicate, sub.SessionHash)
	}

	record := model.Submission{
		UserID:      sub.UserID,
		Initials:    sub.Initials,
		SessionHash: sub.SessionHash,
		Session:     sub.Session,
		EnqueuedAt:  s.now().UnixMilli(),
	}
	buf, err := json.Marshal(record)
	if err != nil {
		s.deduper.Unrecord(ctx, sub.SessionHash)
		return fmt.Errorf("encode submission: %w", err)
	}
	if err := s.store.Put(ctx, model.ScoreQueueKey(s.now()), buf, model.SubmissionTTL); err != nil {
		s.deduper.Unrecord(ctx, sub.SessionHash)
		return fmt.Errorf("enqueue submission: %w", err)
	}

	metrics.RecordSubmissionAccepted()
	s.logger.Debug(ctx, "submission enqueued",
		logger.String("userId", sub.UserID),
		logger.String("hash", sub.SessionHash),
	)
	return nil
}

// CastVote validates and records an up-vote or flag. At most one vote
// per (target, voter) pair; a repeat is rejected as a duplicate.
func (s *Service) CastVote(ctx context.Context, req VoteRequest) error {
	if !s.isStarted() {
		return ErrNotStarted
	}

	if !model.ValidUserID(req.VoterID) {
		return fmt.Errorf("%w: %q", ErrInvalidUserID, req.VoterID)
	}
	req.TargetHash = model.NormalizeSessionHash(req.TargetHash)
	if !model.ValidSessionHash(req.TargetHash) {
		return fmt.Errorf("%w: bad target hash", ErrInvalidVote)
	}
	targetType := model.TargetType(req.TargetType)
	if targetType != model.TargetScore && targetType != model.TargetReplay {
		return fmt.Errorf("%w: bad target type %q", ErrInvalidVote, req.TargetType)
	}
	voteType := model.VoteType(req.VoteType)
	if voteType != model.VoteUp && voteType != model.VoteFlag {
		return fmt.Errorf("%w: bad vote type %q", ErrInvalidVote, req.VoteType)
	}

	if err := s.checkRate(ctx, req.VoterID, model.ActionVote); err != nil {
		return err
	}

	key := model.VoteKey(req.TargetHash, req.VoterID)
	if _, err := s.store.Get(ctx, key); err == nil {
		return fmt.Errorf("%w: already voted on %s", ErrDuplicate, req.TargetHash)
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("check vote: %w", err)
	}

	vote := model.Vote{
		VoterID:    req.VoterID,
		TargetHash: req.TargetHash,
		TargetType: targetType,
		VoteType:   voteType,
		Timestamp:  s.now().UnixMilli(),
	}
	buf, err := json.Marshal(vote)
	if err != nil {
		return fmt.Errorf("encode vote: %w", err)
	}
	if err := s.store.Put(ctx, key, buf, model.VoteTTL); err != nil {
		return fmt.Errorf("enqueue vote: %w", err)
	}

	metrics.RecordVoteAccepted()
	return nil
}

// SubmitFeedback validates and enqueues a feedback item, returning its
// assigned id.
func (s *Service) SubmitFeedback(ctx context.Context, req FeedbackRequest) (string, error) {
	if !s.isStarted() {
		return "", ErrNotStarted
	}

	if !model.ValidUserID(req.UserID) {
		return "", fmt.Errorf("%w: %q", ErrInvalidUserID, req.UserID)
	}
	kind := model.FeedbackKind(req.Kind)
	if kind != model.FeedbackBug && kind != model.FeedbackFeature {
		return "", fmt.Errorf("%w: bad kind %q", ErrInvalidFeedback, req.Kind)
	}
	req.Description = strings.TrimSpace(req.Description)
	if !model.ValidDescription(req.Description) {
		return "", fmt.Errorf("%w: description length out of bounds", ErrInvalidFeedback)
	}

	if err := s.checkRate(ctx, req.UserID, model.ActionFeedback); err != nil {
		return "", err
	}

	fb := model.Feedback{
		FeedbackID:  uuid.NewString(),
		UserID:      req.UserID,
		Kind:        kind,
		Description: req.Description,
		Context:     req.Context,
		Timestamp:   s.now().UnixMilli(),
	}
	buf, err := json.Marshal(fb)
	if err != nil {
		return "", fmt.Errorf("encode feedback: %w", err)
	}
	if err := s.store.Put(ctx, model.FeedbackQueueKey(s.now()), buf, model.FeedbackTTL); err != nil {
		return "", fmt.Errorf("enqueue feedback: %w", err)
	}

	metrics.RecordFeedbackAccepted()
	return fb.FeedbackID, nil
}

// VoteFeedback records an endorsement of a feedback item, at most one
// per (feedback, voter) pair.
func (s *Service) VoteFeedback(ctx context.Context, req FeedbackVoteRequest) error {
	if !s.isStarted() {
		return ErrNotStarted
	}

	if !model.ValidUserID(req.VoterID) {
		return fmt.Errorf("%w: %q", ErrInvalidUserID, req.VoterID)
	}
	if !model.ValidUserID(req.FeedbackID) {
		return fmt.Errorf("%w: bad feedback id", ErrInvalidVote)
	}

	if err := s.checkRate(ctx, req.VoterID, model.ActionFeedbackVote); err != nil {
		return err
	}

	key := model.FeedbackVoteKey(req.FeedbackID, req.VoterID)
	if _, err := s.store.Get(ctx, key); err == nil {
		return fmt.Errorf("%w: already voted on feedback %s", ErrDuplicate, req.FeedbackID)
	} else if !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("check feedback vote: %w", err)
	}

	fv := model.FeedbackVote{
		VoterID:    req.VoterID,
		FeedbackID: req.FeedbackID,
		Timestamp:  s.now().UnixMilli(),
	}
	buf, err := json.Marshal(fv)
	if err != nil {
		return fmt.Errorf("encode feedback vote: %w", err)
	}
	if err := s.store.Put(ctx, key, buf, model.VoteTTL); err != nil {
		return fmt.Errorf("enqueue feedback vote: %w", err)
	}

	metrics.RecordVoteAccepted()
	return nil
}

// Leaderboard returns the current published snapshot.
func (s *Service) Leaderboard(ctx context.Context) (ranking.LeaderboardDoc, error) {
	return s.pub.LoadLeaderboard()
}

// Feedback returns the current published feedback snapshot.
func (s *Service) Feedback(ctx context.Context) (ranking.FeedbackDoc, error) {
	return s.pub.LoadFeedback()
}

// Replay returns one published replay artifact.
func (s *Service) Replay(ctx context.Context, sessionHash string) (reconciler.ReplayArtifact, error) {
	return s.pub.LoadReplay(model.NormalizeSessionHash(sessionHash))
}

// HasReplay reports whether an artifact exists for the hash.
func (s *Service) HasReplay(ctx context.Context, sessionHash string) bool {
	return s.pub.HasReplay(model.NormalizeSessionHash(sessionHash))
}

// Stats is a point-in-time view of the gateway: what is pending in the
// queue store and how much the advisory cache is tracking. Pending vote
// counts include records already tallied by the reconciler, since those
// stay in the store for their TTL.
type Stats struct {
	Started              bool `json:"started"`
	DedupeTracked        int  `json:"dedupeTracked"`
	PendingScores        int  `json:"pendingScores"`
	PendingVotes         int  `json:"pendingVotes"`
	PendingFeedback      int  `json:"pendingFeedback"`
	PendingFeedbackVotes int  `json:"pendingFeedbackVotes"`
}

// GetStats reports gateway statistics for the stats endpoint.
func (s *Service) GetStats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := Stats{Started: s.started}
	if !s.started {
		return stats
	}

	ctx := context.Background()
	stats.DedupeTracked = int(s.deduper.Size())
	count := func(prefix string) int {
		keys, err := s.store.List(ctx, prefix)
		if err != nil {
			return 0
		}
		return len(keys)
	}
	stats.PendingScores = count(model.ScoreQueuePrefix)
	stats.PendingVotes = count(model.VotePrefix)
	stats.PendingFeedback = count(model.FeedbackQueuePrefix)
	stats.PendingFeedbackVotes = count(model.FeedbackVotePrefix)
	return stats
}

// checkRate runs the limiter for one (user, action) pair and converts a
// denial into a RateLimitedError.
func (s *Service) checkRate(ctx context.Context, userID string, action model.ActionKind) error {
	decision, err := s.limiter.Check(ctx, model.RateLimitKey(userID, action), string(action))
	if err != nil {
		return fmt.Errorf("rate limit check: %w", err)
	}
	if !decision.Allowed {
		metrics.RecordRateLimited(string(action))
		return &RateLimitedError{
			Action:            string(action),
			RetryAfterSeconds: decision.RetryAfterSeconds(),
		}
	}
	return nil
}

// checkSessionShape applies the cheap structural checks the gateway can
// afford per request. Full replay verification is deferred.
func checkSessionShape(rec session.Record) error {
	if _, err := session.Words(rec.CorpusVersion); err != nil {
		return fmt.Errorf("%w: unknown corpus %q", ErrInvalidSession, rec.CorpusVersion)
	}
	if rec.Stage < 1 {
		return fmt.Errorf("%w: bad stage", ErrInvalidSession)
	}
	if len(rec.Keystrokes) == 0 {
		return fmt.Errorf("%w: empty keystroke log", ErrInvalidSession)
	}
	return nil
}

func (s *Service) isStarted() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}
