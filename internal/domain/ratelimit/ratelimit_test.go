package ratelimit_test

import (
	"context"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	store "github.com/wordfall/leaderboard/internal/adapters/store"
	ratelimit "github.com/wordfall/leaderboard/internal/domain/ratelimit"
)

func TestDecide(t *testing.T) {
	policy := ratelimit.Policy{Limit: 3, Window: time.Minute}
	base := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	Convey("Given a fixed-window policy of 3 per minute", t, func() {
		Convey("When there is no prior window", func() {
			d := ratelimit.Decide(policy, base, nil)

			Convey("Then the call is admitted into a fresh window", func() {
				So(d.Allowed, ShouldBeTrue)
				So(d.Window.Count, ShouldEqual, 1)
				So(d.Window.Start, ShouldResemble, base)
			})
		})

		Convey("When the window is under the limit", func() {
			w := &ratelimit.Window{Start: base, Count: 2}
			d := ratelimit.Decide(policy, base.Add(10*time.Second), w)

			Convey("Then the count increments and the start is kept", func() {
				So(d.Allowed, ShouldBeTrue)
				So(d.Window.Count, ShouldEqual, 3)
				So(d.Window.Start, ShouldResemble, base)
			})
		})

		Convey("When the window is at the limit", func() {
			w := &ratelimit.Window{Start: base, Count: 3}
			d := ratelimit.Decide(policy, base.Add(15*time.Second), w)

			Convey("Then the call is denied with the remaining window time", func() {
				So(d.Allowed, ShouldBeFalse)
				So(d.RetryAfter, ShouldEqual, 45*time.Second)
				So(d.RetryAfterSeconds(), ShouldEqual, 45)
			})
		})

		Convey("When the window has expired", func() {
			w := &ratelimit.Window{Start: base, Count: 3}
			d := ratelimit.Decide(policy, base.Add(time.Minute), w)

			Convey("Then a fresh window starts at count 1", func() {
				So(d.Allowed, ShouldBeTrue)
				So(d.Window.Count, ShouldEqual, 1)
			})
		})

		Convey("When the denial is a fraction of a second from reset", func() {
			w := &ratelimit.Window{Start: base, Count: 3}
			d := ratelimit.Decide(policy, base.Add(time.Minute-200*time.Millisecond), w)

			Convey("Then the retry hint rounds up to one second", func() {
				So(d.Allowed, ShouldBeFalse)
				So(d.RetryAfterSeconds(), ShouldEqual, 1)
			})
		})
	})

	Convey("Given an unconfigured policy", t, func() {
		d := ratelimit.Decide(ratelimit.Policy{}, base, &ratelimit.Window{Start: base, Count: 1000})

		Convey("Then everything is admitted", func() {
			So(d.Allowed, ShouldBeTrue)
		})
	})
}

func TestLimiter(t *testing.T) {
	Convey("Given a limiter backed by the memory store", t, func() {
		now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
		clock := func() time.Time { return now }

		st := store.NewMemStore(store.WithMemClock(clock))
		defer st.Close()

		limiter := ratelimit.NewLimiter(st, map[string]ratelimit.Policy{
			"score": {Limit: 2, Window: time.Minute},
		}, ratelimit.WithClock(clock))
		ctx := context.Background()

		Convey("When a subject stays under the ceiling", func() {
			d1, err1 := limiter.Check(ctx, "ratelimit:u1:score", "score")
			d2, err2 := limiter.Check(ctx, "ratelimit:u1:score", "score")

			Convey("Then both calls are admitted", func() {
				So(err1, ShouldBeNil)
				So(err2, ShouldBeNil)
				So(d1.Allowed, ShouldBeTrue)
				So(d2.Allowed, ShouldBeTrue)
			})
		})

		Convey("When a subject exceeds the ceiling", func() {
			_, _ = limiter.Check(ctx, "ratelimit:u2:score", "score")
			_, _ = limiter.Check(ctx, "ratelimit:u2:score", "score")
			d, err := limiter.Check(ctx, "ratelimit:u2:score", "score")

			Convey("Then the third call is denied with a retry hint", func() {
				So(err, ShouldBeNil)
				So(d.Allowed, ShouldBeFalse)
				So(d.RetryAfterSeconds(), ShouldBeGreaterThan, 0)
			})

			Convey("And the window resets after it elapses", func() {
				now = now.Add(61 * time.Second)
				d, err := limiter.Check(ctx, "ratelimit:u2:score", "score")
				So(err, ShouldBeNil)
				So(d.Allowed, ShouldBeTrue)
			})
		})

		Convey("When distinct subjects share an action", func() {
			_, _ = limiter.Check(ctx, "ratelimit:u3:score", "score")
			_, _ = limiter.Check(ctx, "ratelimit:u3:score", "score")
			d, err := limiter.Check(ctx, "ratelimit:u4:score", "score")

			Convey("Then each subject has its own window", func() {
				So(err, ShouldBeNil)
				So(d.Allowed, ShouldBeTrue)
			})
		})

		Convey("When the action has no policy", func() {
			for i := 0; i < 50; i++ {
				d, err := limiter.Check(ctx, "ratelimit:u5:other", "other")
				So(err, ShouldBeNil)
				So(d.Allowed, ShouldBeTrue)
			}
		})
	})
}
