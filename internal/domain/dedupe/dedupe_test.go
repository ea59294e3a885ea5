package dedupe_test

import (
	"context"
	"fmt"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	dedupe "github.com/wordfall/leaderboard/internal/domain/dedupe"
)

func TestSeenCache(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new seen-cache", t, func() {
		d := dedupe.NewSeenCache()

		Convey("When recording a new hash", func() {
			seen := d.SeenAndRecord(ctx, "hash-1")

			Convey("Then it is not seen yet and gets recorded", func() {
				So(seen, ShouldBeFalse)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When recording the same hash twice", func() {
			d.SeenAndRecord(ctx, "hash-1")
			seen := d.SeenAndRecord(ctx, "hash-1")

			Convey("Then the repeat is reported as seen", func() {
				So(seen, ShouldBeTrue)
				So(d.Size(), ShouldEqual, 1)
			})
		})

		Convey("When unrecording a hash", func() {
			d.SeenAndRecord(ctx, "hash-1")
			d.Unrecord(ctx, "hash-1")

			Convey("Then it can be recorded again", func() {
				So(d.SeenAndRecord(ctx, "hash-1"), ShouldBeFalse)
			})

			Convey("And unrecording an absent hash is harmless", func() {
				d.Unrecord(ctx, "never-seen")
				So(d.Size(), ShouldEqual, 0)
			})
		})

		Convey("When seeding from a snapshot", func() {
			d.Seed(ctx, []string{"a", "b", "c", "a"})

			Convey("Then seeded hashes count as seen once each", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord(ctx, "a"), ShouldBeTrue)
				So(d.SeenAndRecord(ctx, "d"), ShouldBeFalse)
			})
		})
	})

	Convey("Given a bounded seen-cache", t, func() {
		d := dedupe.NewSeenCache(dedupe.WithMaxSize(3))

		Convey("When recording past capacity", func() {
			for i := 0; i < 4; i++ {
				d.SeenAndRecord(ctx, fmt.Sprintf("hash-%d", i))
			}

			Convey("Then the oldest hash is evicted first", func() {
				So(d.Size(), ShouldEqual, 3)
				So(d.SeenAndRecord(ctx, "hash-0"), ShouldBeFalse) // evicted, so new again
			})
		})
	})
}
