package reconciler_test

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	. "github.com/smartystreets/goconvey/convey"

	store "github.com/wordfall/leaderboard/internal/adapters/store"
	"github.com/wordfall/leaderboard/internal/domain/model"
	"github.com/wordfall/leaderboard/internal/domain/ranking"
	reconciler "github.com/wordfall/leaderboard/internal/reconciler"
	"github.com/wordfall/leaderboard/internal/testsessions"
	"github.com/wordfall/leaderboard/pkg/logger"
)

func TestMain(m *testing.M) {
	if err := logger.Init(); err != nil {
		panic(err)
	}
	_ = logger.SetLevelString("error")
	os.Exit(m.Run())
}

// fixture bundles a reconciler with its store and output directory.
type fixture struct {
	st  *store.MemStore
	pub *reconciler.Publisher
	rec *reconciler.Reconciler
	now time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		st:  store.NewMemStore(),
		now: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	t.Cleanup(func() { _ = f.st.Close() })

	pub, err := reconciler.NewPublisher(t.TempDir())
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	f.pub = pub
	f.rec = reconciler.New(f.st, pub,
		reconciler.WithVerifyWorkers(2),
		reconciler.WithMaxScores(50),
		reconciler.WithTopDefault(20),
		reconciler.WithFlagThreshold(3),
		reconciler.WithClock(func() time.Time { return f.now }),
	)
	return f
}

func (f *fixture) enqueueScore(t *testing.T, s testsessions.GeneratedSession) {
	t.Helper()
	sub := model.Submission{
		UserID:      s.UserID,
		Initials:    s.Initials,
		SessionHash: s.SessionHash,
		Session:     s.Session,
		EnqueuedAt:  f.now.UnixMilli(),
	}
	buf, err := json.Marshal(sub)
	if err != nil {
		t.Fatalf("marshal submission: %v", err)
	}
	if err := f.st.Put(context.Background(), model.ScoreQueueKey(f.now), buf, model.SubmissionTTL); err != nil {
		t.Fatalf("enqueue submission: %v", err)
	}
	f.now = f.now.Add(time.Millisecond)
}

func (f *fixture) enqueueVote(t *testing.T, targetHash, voterID string, voteType model.VoteType) {
	t.Helper()
	vote := model.Vote{
		VoterID:    voterID,
		TargetHash: targetHash,
		TargetType: model.TargetScore,
		VoteType:   voteType,
		Timestamp:  f.now.UnixMilli(),
	}
	buf, _ := json.Marshal(vote)
	key := model.VoteKey(targetHash, voterID)
	if err := f.st.Put(context.Background(), key, buf, model.VoteTTL); err != nil {
		t.Fatalf("enqueue vote: %v", err)
	}
}

func (f *fixture) enqueueFeedback(t *testing.T, id, description string) {
	t.Helper()
	fb := model.Feedback{
		FeedbackID:  id,
		UserID:      uuid.NewString(),
		Kind:        model.FeedbackBug,
		Description: description,
		Timestamp:   f.now.UnixMilli(),
	}
	buf, _ := json.Marshal(fb)
	if err := f.st.Put(context.Background(), model.FeedbackQueueKey(f.now), buf, model.FeedbackTTL); err != nil {
		t.Fatalf("enqueue feedback: %v", err)
	}
	f.now = f.now.Add(time.Millisecond)
}

func (f *fixture) enqueueFeedbackVote(t *testing.T, feedbackID, voterID string) {
	t.Helper()
	fv := model.FeedbackVote{VoterID: voterID, FeedbackID: feedbackID, Timestamp: f.now.UnixMilli()}
	buf, _ := json.Marshal(fv)
	if err := f.st.Put(context.Background(), model.FeedbackVoteKey(feedbackID, voterID), buf, model.VoteTTL); err != nil {
		t.Fatalf("enqueue feedback vote: %v", err)
	}
}

func mustGenerate(t *testing.T) testsessions.GeneratedSession {
	t.Helper()
	s, err := testsessions.Generate(5)
	if err != nil {
		t.Fatalf("generate session: %v", err)
	}
	return s
}

func TestReconcilerPass(t *testing.T) {
	ctx := context.Background()

	Convey("Given pending submissions, votes and feedback", t, func() {
		f := newFixture(t)
		s1 := mustGenerate(t)
		s2 := mustGenerate(t)
		f.enqueueScore(t, s1)
		f.enqueueScore(t, s2)

		// One forged submission: valid shape, wrong hash.
		forged := mustGenerate(t)
		forged.SessionHash = fmt.Sprintf("%064x", 12345)
		f.enqueueScore(t, forged)

		// Votes: one up-vote for s1, three flags for s2, one for a
		// target nobody submitted.
		f.enqueueVote(t, s1.SessionHash, uuid.NewString(), model.VoteUp)
		flaggers := []string{uuid.NewString(), uuid.NewString(), uuid.NewString()}
		for _, voter := range flaggers {
			f.enqueueVote(t, s2.SessionHash, voter, model.VoteFlag)
		}
		orphanTarget := fmt.Sprintf("%064x", 777)
		f.enqueueVote(t, orphanTarget, uuid.NewString(), model.VoteUp)

		// Feedback: one item with two endorsements, plus a vote for an
		// unknown item.
		fbID := uuid.NewString()
		f.enqueueFeedback(t, fbID, "the falling words overlap on stage six")
		f.enqueueFeedbackVote(t, fbID, uuid.NewString())
		f.enqueueFeedbackVote(t, fbID, uuid.NewString())
		f.enqueueFeedbackVote(t, uuid.NewString(), uuid.NewString())

		Convey("When running a pass", func() {
			err := f.rec.Run(ctx)
			So(err, ShouldBeNil)

			board, loadErr := f.pub.LoadLeaderboard()
			So(loadErr, ShouldBeNil)

			Convey("Then verified submissions are published and the forgery is dropped", func() {
				So(board.Scores, ShouldHaveLength, 2)
				hashes := map[string]bool{}
				for _, s := range board.Scores {
					hashes[s.SessionHash] = true
				}
				So(hashes[s1.SessionHash], ShouldBeTrue)
				So(hashes[s2.SessionHash], ShouldBeTrue)
				So(hashes[forged.SessionHash], ShouldBeFalse)
			})

			Convey("Then entries are ranked by WPM", func() {
				So(board.Scores[0].Rank, ShouldEqual, 1)
				So(board.Scores[1].Rank, ShouldEqual, 2)
				So(board.Scores[0].WPM, ShouldBeGreaterThanOrEqualTo, board.Scores[1].WPM)
			})

			Convey("Then vote tallies land on their targets", func() {
				byHash := map[string]ranking.ScoreEntry{}
				for _, s := range board.Scores {
					byHash[s.SessionHash] = s
				}
				So(byHash[s1.SessionHash].Votes, ShouldResemble, ranking.VoteCounts{Up: 1})
				So(byHash[s2.SessionHash].Votes, ShouldResemble, ranking.VoteCounts{Flags: 3})
			})

			Convey("Then three flags hide the entry without deleting it", func() {
				byHash := map[string]ranking.ScoreEntry{}
				for _, s := range board.Scores {
					byHash[s.SessionHash] = s
				}
				So(byHash[s2.SessionHash].Hidden, ShouldBeTrue)
				So(byHash[s1.SessionHash].Hidden, ShouldBeFalse)
				So(f.pub.HasReplay(s2.SessionHash), ShouldBeTrue)
			})

			Convey("Then replay artifacts exist with matching vote counts", func() {
				a1, err := f.pub.LoadReplay(s1.SessionHash)
				So(err, ShouldBeNil)
				So(a1.Votes, ShouldResemble, ranking.VoteCounts{Up: 1})
				So(a1.Metadata.Initials, ShouldEqual, s1.Initials)
				So(a1.Record.RNGSeed, ShouldEqual, s1.Session.RNGSeed)

				So(f.pub.HasReplay(forged.SessionHash), ShouldBeFalse)
			})

			Convey("Then the feedback snapshot carries the endorsements", func() {
				fbDoc, err := f.pub.LoadFeedback()
				So(err, ShouldBeNil)
				So(fbDoc.Items, ShouldHaveLength, 1)
				So(fbDoc.Items[0].ID, ShouldEqual, fbID)
				So(fbDoc.Items[0].Votes, ShouldEqual, 2)
				So(fbDoc.Items[0].Status, ShouldEqual, "open")
			})

			Convey("Then queue records are deleted but vote records stay", func() {
				scoreKeys, _ := f.st.List(ctx, model.ScoreQueuePrefix)
				So(scoreKeys, ShouldBeEmpty)

				fbKeys, _ := f.st.List(ctx, model.FeedbackQueuePrefix)
				So(fbKeys, ShouldBeEmpty)

				// Vote keys survive the pass: the (target, voter) pair
				// key is what rejects a repeat vote at the gateway.
				voteKeys, _ := f.st.List(ctx, model.VotePrefix)
				So(voteKeys, ShouldHaveLength, 5)
				orphanKeys, _ := f.st.List(ctx, model.VotePrefix+orphanTarget)
				So(orphanKeys, ShouldHaveLength, 1)

				fvKeys, _ := f.st.List(ctx, model.FeedbackVotePrefix)
				So(fvKeys, ShouldHaveLength, 3)
			})
		})
	})
}

func TestReconcilerIdempotence(t *testing.T) {
	ctx := context.Background()

	Convey("Given a pass that has drained the queue", t, func() {
		f := newFixture(t)
		s1 := mustGenerate(t)
		f.enqueueScore(t, s1)
		So(f.rec.Run(ctx), ShouldBeNil)

		board, err := f.pub.LoadLeaderboard()
		So(err, ShouldBeNil)
		firstGeneration := board.Generated

		Convey("When running again with nothing pending", func() {
			f.now = f.now.Add(time.Hour)
			So(f.rec.Run(ctx), ShouldBeNil)

			Convey("Then the snapshot is untouched", func() {
				again, err := f.pub.LoadLeaderboard()
				So(err, ShouldBeNil)
				So(again.Generated, ShouldEqual, firstGeneration)
				So(again.Scores, ShouldResemble, board.Scores)
			})
		})

		Convey("When the same session is submitted again", func() {
			f.now = f.now.Add(time.Hour)
			f.enqueueScore(t, s1)
			So(f.rec.Run(ctx), ShouldBeNil)

			Convey("Then the duplicate is consumed without changing the snapshot", func() {
				scoreKeys, _ := f.st.List(ctx, model.ScoreQueuePrefix)
				So(scoreKeys, ShouldBeEmpty)

				again, err := f.pub.LoadLeaderboard()
				So(err, ShouldBeNil)
				So(again.Scores, ShouldHaveLength, 1)
				So(again.Generated, ShouldEqual, firstGeneration)
			})
		})
	})
}

func TestReconcilerVoteRetention(t *testing.T) {
	ctx := context.Background()

	Convey("Given a published entry with one vote counted", t, func() {
		f := newFixture(t)
		s1 := mustGenerate(t)
		voter := uuid.NewString()
		f.enqueueScore(t, s1)
		f.enqueueVote(t, s1.SessionHash, voter, model.VoteUp)
		So(f.rec.Run(ctx), ShouldBeNil)

		Convey("Then the vote record outlives the pass", func() {
			_, err := f.st.Get(ctx, model.VoteKey(s1.SessionHash, voter))
			So(err, ShouldBeNil)
		})

		Convey("When further passes run over the same record", func() {
			f.now = f.now.Add(time.Hour)
			So(f.rec.Run(ctx), ShouldBeNil)
			f.now = f.now.Add(time.Hour)
			So(f.rec.Run(ctx), ShouldBeNil)

			Convey("Then the count holds at one vote per pair", func() {
				board, err := f.pub.LoadLeaderboard()
				So(err, ShouldBeNil)
				So(board.Scores[0].Votes, ShouldResemble, ranking.VoteCounts{Up: 1})

				artifact, err := f.pub.LoadReplay(s1.SessionHash)
				So(err, ShouldBeNil)
				So(artifact.Votes, ShouldResemble, ranking.VoteCounts{Up: 1})
			})
		})
	})
}

func TestReconcilerLateVotes(t *testing.T) {
	ctx := context.Background()

	Convey("Given a published entry from an earlier pass", t, func() {
		f := newFixture(t)
		s1 := mustGenerate(t)
		f.enqueueScore(t, s1)
		So(f.rec.Run(ctx), ShouldBeNil)

		Convey("When votes arrive in a later pass", func() {
			f.now = f.now.Add(time.Hour)
			f.enqueueVote(t, s1.SessionHash, uuid.NewString(), model.VoteUp)
			f.enqueueVote(t, s1.SessionHash, uuid.NewString(), model.VoteUp)
			So(f.rec.Run(ctx), ShouldBeNil)

			Convey("Then counts accumulate onto the published totals", func() {
				board, err := f.pub.LoadLeaderboard()
				So(err, ShouldBeNil)
				So(board.Scores[0].Votes, ShouldResemble, ranking.VoteCounts{Up: 2})

				artifact, err := f.pub.LoadReplay(s1.SessionHash)
				So(err, ShouldBeNil)
				So(artifact.Votes, ShouldResemble, ranking.VoteCounts{Up: 2})
			})

			Convey("And more votes in yet another pass keep accumulating", func() {
				f.now = f.now.Add(time.Hour)
				f.enqueueVote(t, s1.SessionHash, uuid.NewString(), model.VoteUp)
				So(f.rec.Run(ctx), ShouldBeNil)

				board, err := f.pub.LoadLeaderboard()
				So(err, ShouldBeNil)
				So(board.Scores[0].Votes, ShouldResemble, ranking.VoteCounts{Up: 3})
			})
		})
	})
}
