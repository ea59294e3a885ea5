package service_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	. "github.com/smartystreets/goconvey/convey"

	store "github.com/wordfall/leaderboard/internal/adapters/store"
	service "github.com/wordfall/leaderboard/internal/app"
	"github.com/wordfall/leaderboard/internal/domain/model"
	"github.com/wordfall/leaderboard/internal/domain/ratelimit"
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

func newService(t *testing.T, policies map[string]ratelimit.Policy) (*service.Service, *store.MemStore) {
	t.Helper()
	st := store.NewMemStore()
	t.Cleanup(func() { _ = st.Close() })

	pub, err := reconciler.NewPublisher(t.TempDir())
	if err != nil {
		t.Fatalf("new publisher: %v", err)
	}
	svc := service.New(
		service.WithStore(st),
		service.WithPublisher(pub),
		service.WithPolicies(policies),
	)
	if err := svc.Start(context.Background()); err != nil {
		t.Fatalf("start service: %v", err)
	}
	t.Cleanup(svc.Stop)
	return svc, st
}

func validSubmission(t *testing.T) service.ScoreSubmission {
	t.Helper()
	s, err := testsessions.Generate(3)
	if err != nil {
		t.Fatalf("generate session: %v", err)
	}
	return service.ScoreSubmission{
		UserID:      s.UserID,
		Initials:    s.Initials,
		SessionHash: s.SessionHash,
		Session:     s.Session,
	}
}

func TestSubmitScore(t *testing.T) {
	ctx := context.Background()

	Convey("Given a started gateway", t, func() {
		svc, st := newService(t, nil)

		Convey("When submitting a valid score", func() {
			sub := validSubmission(t)
			err := svc.SubmitScore(ctx, sub)

			Convey("Then it is accepted and queued", func() {
				So(err, ShouldBeNil)
				keys, _ := st.List(ctx, model.ScoreQueuePrefix)
				So(keys, ShouldHaveLength, 1)

				raw, err := st.Get(ctx, keys[0])
				So(err, ShouldBeNil)
				var queued model.Submission
				So(json.Unmarshal(raw, &queued), ShouldBeNil)
				So(queued.SessionHash, ShouldEqual, sub.SessionHash)
				So(queued.EnqueuedAt, ShouldBeGreaterThan, 0)
			})
		})

		Convey("When initials arrive lowercase with spaces", func() {
			sub := validSubmission(t)
			sub.Initials = " abc "
			err := svc.SubmitScore(ctx, sub)

			Convey("Then they are normalized before queuing", func() {
				So(err, ShouldBeNil)
				keys, _ := st.List(ctx, model.ScoreQueuePrefix)
				raw, _ := st.Get(ctx, keys[0])
				var queued model.Submission
				So(json.Unmarshal(raw, &queued), ShouldBeNil)
				So(queued.Initials, ShouldEqual, "ABC")
			})
		})

		Convey("When the hash arrives uppercase", func() {
			sub := validSubmission(t)
			orig := sub.SessionHash
			sub.SessionHash = upperHex(sub.SessionHash)
			err := svc.SubmitScore(ctx, sub)

			Convey("Then it is folded to canonical lowercase", func() {
				So(err, ShouldBeNil)
				keys, _ := st.List(ctx, model.ScoreQueuePrefix)
				raw, _ := st.Get(ctx, keys[0])
				var queued model.Submission
				So(json.Unmarshal(raw, &queued), ShouldBeNil)
				So(queued.SessionHash, ShouldEqual, orig)
			})
		})

		Convey("When fields are invalid", func() {
			Convey("A bad user id is rejected", func() {
				sub := validSubmission(t)
				sub.UserID = "not-a-uuid"
				So(svc.SubmitScore(ctx, sub), ShouldWrap, service.ErrInvalidUserID)
			})

			Convey("Bad initials are rejected", func() {
				sub := validSubmission(t)
				sub.Initials = "TOOLONG"
				So(svc.SubmitScore(ctx, sub), ShouldWrap, service.ErrInvalidInitials)
			})

			Convey("A malformed hash is rejected", func() {
				sub := validSubmission(t)
				sub.SessionHash = "zzz"
				So(svc.SubmitScore(ctx, sub), ShouldWrap, service.ErrInvalidSessionHash)
			})

			Convey("An unknown corpus is rejected", func() {
				sub := validSubmission(t)
				sub.Session.CorpusVersion = "v999"
				So(svc.SubmitScore(ctx, sub), ShouldWrap, service.ErrInvalidSession)
			})

			Convey("An empty keystroke log is rejected", func() {
				sub := validSubmission(t)
				sub.Session.Keystrokes = nil
				So(svc.SubmitScore(ctx, sub), ShouldWrap, service.ErrInvalidSession)
			})
		})

		Convey("When the same hash is submitted twice", func() {
			sub := validSubmission(t)
			So(svc.SubmitScore(ctx, sub), ShouldBeNil)

			second := sub
			second.UserID = uuid.NewString()
			err := svc.SubmitScore(ctx, second)

			Convey("Then the repeat is rejected as a duplicate", func() {
				So(err, ShouldWrap, service.ErrDuplicate)
				keys, _ := st.List(ctx, model.ScoreQueuePrefix)
				So(keys, ShouldHaveLength, 1)
			})
		})
	})

	Convey("Given a gateway with a tight score limit", t, func() {
		svc, _ := newService(t, map[string]ratelimit.Policy{
			"score": {Limit: 2, Window: time.Minute},
		})
		userID := uuid.NewString()

		Convey("When one user submits past the ceiling", func() {
			var err error
			for i := 0; i < 3; i++ {
				sub := validSubmission(t)
				sub.UserID = userID
				err = svc.SubmitScore(ctx, sub)
			}

			Convey("Then the third submission is rate limited with a retry hint", func() {
				So(err, ShouldWrap, service.ErrRateLimited)
				var limited *service.RateLimitedError
				So(errors.As(err, &limited), ShouldBeTrue)
				So(limited.RetryAfterSeconds, ShouldBeGreaterThan, 0)
				So(limited.Action, ShouldEqual, "score")
			})
		})
	})
}

func TestCastVote(t *testing.T) {
	ctx := context.Background()

	Convey("Given a started gateway", t, func() {
		svc, st := newService(t, nil)
		target := validSubmission(t).SessionHash
		voter := uuid.NewString()

		Convey("When casting a valid vote", func() {
			err := svc.CastVote(ctx, service.VoteRequest{
				VoterID:    voter,
				TargetHash: target,
				TargetType: "score",
				VoteType:   "up",
			})

			Convey("Then the vote record is stored under its pair key", func() {
				So(err, ShouldBeNil)
				raw, err := st.Get(ctx, model.VoteKey(target, voter))
				So(err, ShouldBeNil)
				var vote model.Vote
				So(json.Unmarshal(raw, &vote), ShouldBeNil)
				So(vote.VoteType, ShouldEqual, model.VoteUp)
			})

			Convey("And the same voter cannot vote on the target again", func() {
				err := svc.CastVote(ctx, service.VoteRequest{
					VoterID:    voter,
					TargetHash: target,
					TargetType: "score",
					VoteType:   "flag",
				})
				So(err, ShouldWrap, service.ErrDuplicate)
			})

			Convey("But a different voter can", func() {
				err := svc.CastVote(ctx, service.VoteRequest{
					VoterID:    uuid.NewString(),
					TargetHash: target,
					TargetType: "score",
					VoteType:   "flag",
				})
				So(err, ShouldBeNil)
			})
		})

		Convey("When the vote is malformed", func() {
			base := service.VoteRequest{
				VoterID:    voter,
				TargetHash: target,
				TargetType: "score",
				VoteType:   "up",
			}

			Convey("A bad voter id is rejected", func() {
				req := base
				req.VoterID = "nope"
				So(svc.CastVote(ctx, req), ShouldWrap, service.ErrInvalidUserID)
			})

			Convey("A bad target type is rejected", func() {
				req := base
				req.TargetType = "comment"
				So(svc.CastVote(ctx, req), ShouldWrap, service.ErrInvalidVote)
			})

			Convey("A bad vote type is rejected", func() {
				req := base
				req.VoteType = "down"
				So(svc.CastVote(ctx, req), ShouldWrap, service.ErrInvalidVote)
			})
		})
	})
}

func TestFeedback(t *testing.T) {
	ctx := context.Background()

	Convey("Given a started gateway", t, func() {
		svc, st := newService(t, nil)
		userID := uuid.NewString()

		Convey("When submitting valid feedback", func() {
			id, err := svc.SubmitFeedback(ctx, service.FeedbackRequest{
				UserID:      userID,
				Kind:        "bug",
				Description: "words sometimes spawn on top of each other",
				Context:     map[string]string{"stage": "6"},
			})

			Convey("Then it is queued with an assigned id", func() {
				So(err, ShouldBeNil)
				So(id, ShouldNotBeEmpty)
				keys, _ := st.List(ctx, model.FeedbackQueuePrefix)
				So(keys, ShouldHaveLength, 1)
			})

			Convey("And it can be endorsed once per voter", func() {
				voter := uuid.NewString()
				So(svc.VoteFeedback(ctx, service.FeedbackVoteRequest{
					VoterID: voter, FeedbackID: id,
				}), ShouldBeNil)
				So(svc.VoteFeedback(ctx, service.FeedbackVoteRequest{
					VoterID: voter, FeedbackID: id,
				}), ShouldWrap, service.ErrDuplicate)
			})
		})

		Convey("When feedback is malformed", func() {
			Convey("An unknown kind is rejected", func() {
				_, err := svc.SubmitFeedback(ctx, service.FeedbackRequest{
					UserID: userID, Kind: "rant", Description: "long enough description",
				})
				So(err, ShouldWrap, service.ErrInvalidFeedback)
			})

			Convey("A too-short description is rejected", func() {
				_, err := svc.SubmitFeedback(ctx, service.FeedbackRequest{
					UserID: userID, Kind: "bug", Description: "short",
				})
				So(err, ShouldWrap, service.ErrInvalidFeedback)
			})
		})
	})
}

func TestVoteSurvivesReconciliation(t *testing.T) {
	ctx := context.Background()

	Convey("Given a vote that a reconciliation pass has counted", t, func() {
		st := store.NewMemStore()
		defer st.Close()
		pub, err := reconciler.NewPublisher(t.TempDir())
		So(err, ShouldBeNil)

		svc := service.New(service.WithStore(st), service.WithPublisher(pub))
		So(svc.Start(ctx), ShouldBeNil)
		defer svc.Stop()

		s, err := testsessions.Generate(3)
		So(err, ShouldBeNil)
		So(svc.SubmitScore(ctx, service.ScoreSubmission{
			UserID:      s.UserID,
			Initials:    s.Initials,
			SessionHash: s.SessionHash,
			Session:     s.Session,
		}), ShouldBeNil)

		voter := uuid.NewString()
		vote := service.VoteRequest{
			VoterID:    voter,
			TargetHash: s.SessionHash,
			TargetType: "score",
			VoteType:   "up",
		}
		So(svc.CastVote(ctx, vote), ShouldBeNil)

		rec := reconciler.New(st, pub)
		So(rec.Run(ctx), ShouldBeNil)

		Convey("When the same voter votes on the target again", func() {
			err := svc.CastVote(ctx, vote)

			Convey("Then the repeat is still rejected", func() {
				So(err, ShouldWrap, service.ErrDuplicate)
			})

			Convey("And the next pass does not double-count", func() {
				So(rec.Run(ctx), ShouldBeNil)
				board, err := pub.LoadLeaderboard()
				So(err, ShouldBeNil)
				So(board.Scores, ShouldHaveLength, 1)
				So(board.Scores[0].Votes.Up, ShouldEqual, 1)
			})
		})
	})
}

func TestAdvisorySeeding(t *testing.T) {
	ctx := context.Background()

	Convey("Given a queue with a pending submission", t, func() {
		st := store.NewMemStore()
		defer st.Close()
		pub, err := reconciler.NewPublisher(t.TempDir())
		So(err, ShouldBeNil)

		s, err := testsessions.Generate(3)
		So(err, ShouldBeNil)
		sub := model.Submission{
			UserID:      s.UserID,
			Initials:    s.Initials,
			SessionHash: s.SessionHash,
			Session:     s.Session,
			EnqueuedAt:  time.Now().UnixMilli(),
		}
		buf, _ := json.Marshal(sub)
		So(st.Put(ctx, model.ScoreQueueKey(time.Now()), buf, model.SubmissionTTL), ShouldBeNil)

		Convey("When a gateway starts over that store", func() {
			svc := service.New(service.WithStore(st), service.WithPublisher(pub))
			So(svc.Start(ctx), ShouldBeNil)
			defer svc.Stop()

			Convey("Then the pending hash is already known to the advisory cache", func() {
				err := svc.SubmitScore(ctx, service.ScoreSubmission{
					UserID:      uuid.NewString(),
					Initials:    "XYZ",
					SessionHash: s.SessionHash,
					Session:     s.Session,
				})
				So(err, ShouldWrap, service.ErrDuplicate)
			})
		})
	})
}

func upperHex(s string) string {
	out := []byte(s)
	for i, c := range out {
		if c >= 'a' && c <= 'f' {
			out[i] = c - 'a' + 'A'
		}
	}
	return string(out)
}
