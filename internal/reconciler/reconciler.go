// Package reconciler runs the scheduled reconciliation pass: drain
// pending records from the queue store, verify score submissions by
// deterministic replay, recount votes, rebuild the ranked snapshots and
// publish them atomically, then delete the consumed queue records. Vote
// records are left in place for their TTL so the one-vote-per-pair key
// check at the gateway keeps holding; tallies are recomputed from the
// live records on every pass. The queue is fire-and-forget on the write
// side; all consistency lives here.
package reconciler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wordfall/leaderboard/internal/adapters/store"
	"github.com/wordfall/leaderboard/internal/domain/model"
	"github.com/wordfall/leaderboard/internal/domain/ranking"
	"github.com/wordfall/leaderboard/internal/domain/session"
	"github.com/wordfall/leaderboard/pkg/logger"
	"github.com/wordfall/leaderboard/pkg/metrics"
)

// Defaults for pass construction.
const (
	defaultVerifyWorkers = 4
	defaultMaxScores     = 50
	defaultTopDefault    = 20
	defaultFlagThreshold = 3
)

// Reconciler owns the drain-verify-publish cycle. At most one pass runs
// at a time; an overlapping trigger is dropped, not queued.
type Reconciler struct {
	store         store.Store
	pub           *Publisher
	log           logger.Logger
	verifyWorkers int
	buildOpts     ranking.BuildOptions
	now           func() time.Time

	running sync.Mutex
}

// New creates a Reconciler over the given store and publisher.
func New(st store.Store, pub *Publisher, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:         st,
		pub:           pub,
		verifyWorkers: defaultVerifyWorkers,
		buildOpts: ranking.BuildOptions{
			MaxScores:     defaultMaxScores,
			TopDefault:    defaultTopDefault,
			FlagThreshold: defaultFlagThreshold,
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logger.Named("reconciler")
	}
	return r
}

// Run executes one reconciliation pass. It returns ErrPassInProgress
// when another pass holds the lock.
func (r *Reconciler) Run(ctx context.Context) error {
	if !r.running.TryLock() {
		metrics.RecordReconcileSkipped()
		r.log.Warn(ctx, "pass already running, skipping trigger")
		return ErrPassInProgress
	}
	defer r.running.Unlock()

	start := time.Now()
	err := r.pass(ctx)
	metrics.RecordReconcileDuration(float64(time.Since(start).Milliseconds()))
	if err != nil {
		metrics.RecordReconcileFailure()
		r.log.Error(ctx, "pass failed", logger.Error(err))
		return err
	}
	metrics.RecordReconcilePass()
	return nil
}

// verifiedSubmission pairs a queue entry with its replay result.
type verifiedSubmission struct {
	key string
	sub model.Submission
	res session.Result
}

func (r *Reconciler) pass(ctx context.Context) error {
	prevBoard, err := r.pub.LoadLeaderboard()
	if err != nil {
		return fmt.Errorf("load leaderboard: %w", err)
	}
	prevFeedback, err := r.pub.LoadFeedback()
	if err != nil {
		return fmt.Errorf("load feedback: %w", err)
	}

	subs, badKeys, err := r.drainSubmissions(ctx)
	if err != nil {
		return err
	}
	verified, rejectedKeys := r.verifyAll(ctx, subs)
	consumed := append(badKeys, rejectedKeys...)

	// Published hashes and replay artifacts on disk are the dedup
	// authority; the gateway's cache is only advisory.
	known := make(map[string]struct{}, len(prevBoard.Scores))
	for _, h := range prevBoard.Hashes() {
		known[h] = struct{}{}
	}

	var newEntries []ranking.ScoreEntry
	newArtifacts := make(map[string]ReplayArtifact)
	duplicates := 0
	for _, v := range verified {
		consumed = append(consumed, v.key)
		hash := v.sub.SessionHash
		_, dup := known[hash]
		if !dup && r.pub.HasReplay(hash) {
			dup = true
		}
		if dup {
			duplicates++
			continue
		}
		known[hash] = struct{}{}
		newEntries = append(newEntries, ranking.ScoreEntry{
			SessionHash: hash,
			UserID:      v.sub.UserID,
			Initials:    v.sub.Initials,
			WPM:         v.res.Stats.WPM,
			Accuracy:    v.res.Stats.Accuracy,
			Stage:       v.sub.Session.Stage,
			Timestamp:   v.sub.EnqueuedAt,
			ReplayURL:   replaysDir + "/" + hash + ".json",
		})
		newArtifacts[hash] = ReplayArtifact{
			SessionHash: hash,
			Version:     ranking.DocVersion,
			Metadata: ReplayMetadata{
				UserID:     v.sub.UserID,
				Initials:   v.sub.Initials,
				WPM:        v.res.Stats.WPM,
				Accuracy:   v.res.Stats.Accuracy,
				Stage:      v.sub.Session.Stage,
				DurationMs: v.res.Stats.DurationMs,
				Timestamp:  v.sub.EnqueuedAt,
			},
			Record: v.sub.Session,
		}
	}
	if duplicates > 0 {
		r.log.Info(ctx, "dropped duplicate submissions", logger.Int("count", duplicates))
	}

	tallies, voteCount, badVoteKeys, err := r.tallyVotes(ctx, known)
	if err != nil {
		return err
	}

	fbIncoming, fbKeys, err := r.drainFeedback(ctx)
	if err != nil {
		return err
	}
	fbVotes, fbVoteCount, badFBVoteKeys, err := r.tallyFeedbackVotes(ctx, prevFeedback, fbIncoming)
	if err != nil {
		return err
	}

	// A pass over a drained queue with published documents in place is
	// a no-op: republishing would only churn the generated stamp.
	changed := len(newEntries) > 0 ||
		r.talliesChanged(prevBoard, newArtifacts, tallies) ||
		len(fbIncoming) > 0 ||
		feedbackVotesChanged(prevFeedback, fbVotes) ||
		!r.pub.HasLeaderboard() ||
		!r.pub.HasFeedback()

	if changed {
		generated := r.now().UnixMilli()
		board := ranking.BuildLeaderboard(prevBoard.Scores, newEntries, tallies, generated, r.buildOpts)
		fbDoc := ranking.BuildFeedback(prevFeedback.Items, fbIncoming, fbVotes, generated)

		// Replay artifacts go first so every snapshot entry already
		// resolves, feedback next, leaderboard last as the visible swap.
		if err := r.publishArtifacts(ctx, newArtifacts, tallies); err != nil {
			return err
		}
		if err := r.pub.PublishFeedback(fbDoc); err != nil {
			return fmt.Errorf("publish feedback: %w", err)
		}
		if err := r.pub.PublishLeaderboard(board); err != nil {
			return fmt.Errorf("publish leaderboard: %w", err)
		}
		metrics.UpdatePublishedScores(len(board.Scores))
		metrics.UpdateSnapshotGeneration(generated)
		r.log.Info(ctx, "published snapshots",
			logger.Int("scores", len(board.Scores)),
			logger.Int("feedback", len(fbDoc.Items)),
			logger.Int64("generated", generated))
	}

	// Deletion happens only after publication succeeded, and only for
	// queue entries and undecodable records. Vote records are never
	// consumed: their key existence is what rejects a repeat vote from
	// the same (voter, target) pair, so they must outlive the pass and
	// age out at their TTL instead.
	consumed = append(consumed, fbKeys...)
	consumed = append(consumed, badVoteKeys...)
	consumed = append(consumed, badFBVoteKeys...)
	if len(consumed) > 0 {
		if err := r.store.DeleteMany(ctx, consumed); err != nil {
			return fmt.Errorf("delete consumed records: %w", err)
		}
	}

	metrics.RecordReconcileDrained("score", len(subs)+len(badKeys))
	metrics.RecordReconcileDrained("vote", voteCount)
	metrics.RecordReconcileDrained("feedback", len(fbKeys))
	metrics.RecordReconcileDrained("feedback_vote", fbVoteCount)
	return nil
}

// drainSubmissions lists and decodes the pending score queue. Keys whose
// payloads cannot be decoded are returned separately for deletion.
func (r *Reconciler) drainSubmissions(ctx context.Context) (map[string]model.Submission, []string, error) {
	keys, err := r.store.List(ctx, model.ScoreQueuePrefix)
	if err != nil {
		return nil, nil, fmt.Errorf("list score queue: %w", err)
	}

	subs := make(map[string]model.Submission, len(keys))
	var bad []string
	for _, key := range keys {
		raw, err := r.store.Get(ctx, key)
		if err != nil {
			// Expired between list and read; nothing to consume.
			continue
		}
		var sub model.Submission
		if err := json.Unmarshal(raw, &sub); err != nil {
			r.log.Warn(ctx, "dropping undecodable submission",
				logger.String("key", key), logger.Error(err))
			bad = append(bad, key)
			continue
		}
		subs[key] = sub
	}
	return subs, bad, nil
}

// verifyAll replays every drained submission across a bounded worker
// pool. It returns the verified submissions in stable key order and the
// keys of rejected ones.
func (r *Reconciler) verifyAll(ctx context.Context, subs map[string]model.Submission) ([]verifiedSubmission, []string) {
	keys := make([]string, 0, len(subs))
	for key := range subs {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	workers := r.verifyWorkers
	if workers > len(keys) {
		workers = len(keys)
	}
	if workers < 1 {
		workers = 1
	}

	type outcome struct {
		key string
		res session.Result
		err error
	}
	jobs := make(chan string)
	results := make(chan outcome, len(keys))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for key := range jobs {
				start := time.Now()
				res, err := r.verifyOne(subs[key])
				metrics.RecordReplayLatency(float64(time.Since(start).Milliseconds()))
				results <- outcome{key: key, res: res, err: err}
			}
		}()
	}
	for _, key := range keys {
		jobs <- key
	}
	close(jobs)
	wg.Wait()
	close(results)

	verified := make(map[string]session.Result, len(keys))
	var rejected []string
	rejectedCount := 0
	for out := range results {
		if out.err != nil {
			metrics.RecordReplayFailure(failureCause(out.err))
			r.log.Warn(ctx, "rejected submission",
				logger.String("key", out.key), logger.Error(out.err))
			rejected = append(rejected, out.key)
			rejectedCount++
			continue
		}
		metrics.RecordReplayVerification()
		verified[out.key] = out.res
	}
	if rejectedCount > 0 {
		metrics.RecordReconcileRejected(rejectedCount)
	}

	// Re-impose key order: the map drain above is unordered, and key
	// order (enqueue time) decides who wins an in-batch duplicate.
	ordered := make([]verifiedSubmission, 0, len(verified))
	for _, key := range keys {
		res, ok := verified[key]
		if !ok {
			continue
		}
		ordered = append(ordered, verifiedSubmission{key: key, sub: subs[key], res: res})
	}
	return ordered, rejected
}

// verifyOne checks a submission's fields and replays its session.
func (r *Reconciler) verifyOne(sub model.Submission) (session.Result, error) {
	if !model.ValidUserID(sub.UserID) {
		return session.Result{}, fmt.Errorf("%w: bad user id", session.ErrMalformedRecord)
	}
	if !model.ValidInitials(sub.Initials) {
		return session.Result{}, fmt.Errorf("%w: bad initials", session.ErrMalformedRecord)
	}
	if !model.ValidSessionHash(sub.SessionHash) {
		return session.Result{}, fmt.Errorf("%w: bad session hash", session.ErrMalformedRecord)
	}
	return session.Verify(sub.Session, sub.SessionHash)
}

// tallyVotes recounts vote records for targets that are known
// (published, on disk as an artifact, or verified this pass). Valid
// records are never consumed: their keys enforce the one-vote-per-pair
// invariant at the gateway, so tallies are recomputed from live keys on
// every pass and the record TTL bounds the count. Votes for unknown
// targets stay queued: their submission may still be in flight. The
// returned keys are only the undecodable records.
func (r *Reconciler) tallyVotes(ctx context.Context, known map[string]struct{}) (map[string]ranking.VoteCounts, int, []string, error) {
	keys, err := r.store.List(ctx, model.VotePrefix)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("list votes: %w", err)
	}

	tallies := make(map[string]ranking.VoteCounts)
	counted := 0
	var bad []string
	for _, key := range keys {
		raw, err := r.store.Get(ctx, key)
		if err != nil {
			continue
		}
		var vote model.Vote
		if err := json.Unmarshal(raw, &vote); err != nil {
			r.log.Warn(ctx, "dropping undecodable vote",
				logger.String("key", key), logger.Error(err))
			bad = append(bad, key)
			continue
		}

		_, ok := known[vote.TargetHash]
		if !ok && r.pub.HasReplay(vote.TargetHash) {
			ok = true
		}
		if !ok {
			continue
		}

		counts := tallies[vote.TargetHash]
		switch vote.VoteType {
		case model.VoteFlag:
			counts.Flags++
		default:
			counts.Up++
		}
		tallies[vote.TargetHash] = counts
		counted++
	}
	return tallies, counted, bad, nil
}

// talliesChanged reports whether any recounted target differs from its
// published counts. Fresh submissions are covered by the new-entries
// check; targets living only as artifacts compare against the artifact.
func (r *Reconciler) talliesChanged(prev ranking.LeaderboardDoc, fresh map[string]ReplayArtifact, tallies map[string]ranking.VoteCounts) bool {
	published := make(map[string]ranking.VoteCounts, len(prev.Scores))
	for _, s := range prev.Scores {
		published[s.SessionHash] = s.Votes
	}

	for hash, counts := range tallies {
		if _, isNew := fresh[hash]; isNew {
			continue
		}
		base, ok := published[hash]
		if !ok {
			artifact, err := r.pub.LoadReplay(hash)
			if err != nil {
				return true
			}
			base = artifact.Votes
		}
		if counts != base {
			return true
		}
	}
	return false
}

// publishArtifacts writes replay artifacts for freshly verified
// submissions and rewrites existing artifacts whose counts changed.
func (r *Reconciler) publishArtifacts(ctx context.Context, fresh map[string]ReplayArtifact, tallies map[string]ranking.VoteCounts) error {
	for hash, artifact := range fresh {
		artifact.Votes = tallies[hash]
		if err := r.pub.PublishReplay(artifact); err != nil {
			return fmt.Errorf("publish replay %s: %w", hash, err)
		}
	}
	for hash, counts := range tallies {
		if _, isNew := fresh[hash]; isNew {
			continue
		}
		artifact, err := r.pub.LoadReplay(hash)
		if err != nil {
			r.log.Warn(ctx, "vote target artifact unreadable",
				logger.String("hash", hash), logger.Error(err))
			continue
		}
		if artifact.Votes == counts {
			continue
		}
		artifact.Votes = counts
		if err := r.pub.PublishReplay(artifact); err != nil {
			return fmt.Errorf("update replay %s: %w", hash, err)
		}
	}
	return nil
}

// drainFeedback lists and decodes the pending feedback queue.
func (r *Reconciler) drainFeedback(ctx context.Context) ([]ranking.FeedbackEntry, []string, error) {
	keys, err := r.store.List(ctx, model.FeedbackQueuePrefix)
	if err != nil {
		return nil, nil, fmt.Errorf("list feedback queue: %w", err)
	}
	sort.Strings(keys)

	var incoming []ranking.FeedbackEntry
	var consumed []string
	for _, key := range keys {
		raw, err := r.store.Get(ctx, key)
		if err != nil {
			continue
		}
		consumed = append(consumed, key)
		var fb model.Feedback
		if err := json.Unmarshal(raw, &fb); err != nil {
			r.log.Warn(ctx, "dropping undecodable feedback",
				logger.String("key", key), logger.Error(err))
			continue
		}
		incoming = append(incoming, ranking.FeedbackEntry{
			ID:          fb.FeedbackID,
			Kind:        string(fb.Kind),
			Description: fb.Description,
			UserID:      fb.UserID,
			Context:     fb.Context,
			Timestamp:   fb.Timestamp,
		})
	}
	return incoming, consumed, nil
}

// tallyFeedbackVotes recounts endorsements against known feedback
// items. Like score votes, valid records stay in the store so the
// one-endorsement-per-pair key check holds; only undecodable records
// are returned for deletion. Votes for unknown items stay queued until
// the item lands or the record expires.
func (r *Reconciler) tallyFeedbackVotes(ctx context.Context, prev ranking.FeedbackDoc, incoming []ranking.FeedbackEntry) (map[string]int, int, []string, error) {
	keys, err := r.store.List(ctx, model.FeedbackVotePrefix)
	if err != nil {
		return nil, 0, nil, fmt.Errorf("list feedback votes: %w", err)
	}

	known := make(map[string]struct{}, len(prev.Items)+len(incoming))
	for _, item := range prev.Items {
		known[item.ID] = struct{}{}
	}
	for _, item := range incoming {
		known[item.ID] = struct{}{}
	}

	counts := make(map[string]int)
	counted := 0
	var bad []string
	for _, key := range keys {
		raw, err := r.store.Get(ctx, key)
		if err != nil {
			continue
		}
		var fv model.FeedbackVote
		if err := json.Unmarshal(raw, &fv); err != nil {
			r.log.Warn(ctx, "dropping undecodable feedback vote",
				logger.String("key", key), logger.Error(err))
			bad = append(bad, key)
			continue
		}
		if _, ok := known[fv.FeedbackID]; !ok {
			continue
		}
		counts[fv.FeedbackID]++
		counted++
	}
	return counts, counted, bad, nil
}

// feedbackVotesChanged reports whether any recounted item differs from
// its published count.
func feedbackVotesChanged(prev ranking.FeedbackDoc, counts map[string]int) bool {
	published := make(map[string]int, len(prev.Items))
	for _, item := range prev.Items {
		published[item.ID] = item.Votes
	}
	for id, n := range counts {
		if n != published[id] {
			return true
		}
	}
	return false
}

// failureCause maps a verification error onto a metrics label.
func failureCause(err error) string {
	switch {
	case errors.Is(err, session.ErrHashMismatch):
		return "hash_mismatch"
	case errors.Is(err, session.ErrUnknownCorpus):
		return "unknown_corpus"
	default:
		return "malformed"
	}
}
