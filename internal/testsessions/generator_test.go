package testsessions_test

import (
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/wordfall/leaderboard/internal/domain/session"
	"github.com/wordfall/leaderboard/internal/testsessions"
)

func TestGenerate(t *testing.T) {
	Convey("Given the session generator", t, func() {
		Convey("When generating a single session", func() {
			s, err := testsessions.Generate(5)
			So(err, ShouldBeNil)

			Convey("Then the payload is submission ready", func() {
				So(s.UserID, ShouldNotBeEmpty)
				So(s.Initials, ShouldHaveLength, 3)
				So(s.SessionHash, ShouldHaveLength, 64)
				So(s.Session.Stage, ShouldBeBetweenOrEqual, 1, 5)
				So(s.Session.Keystrokes, ShouldNotBeEmpty)
			})

			Convey("Then its hash survives verification", func() {
				res, err := session.Verify(s.Session, s.SessionHash)
				So(err, ShouldBeNil)
				So(res.Hash, ShouldEqual, s.SessionHash)
			})

			Convey("Then the injected misses keep accuracy under perfect", func() {
				So(s.Session.Stats.Accuracy, ShouldBeLessThan, 100.0)
				So(s.Session.Stats.Accuracy, ShouldBeGreaterThan, 0.0)
			})
		})

		Convey("When generating a batch", func() {
			batch, err := testsessions.GenerateBatch(5, 3)
			So(err, ShouldBeNil)
			So(batch, ShouldHaveLength, 5)

			Convey("Then hashes are distinct", func() {
				seen := map[string]bool{}
				for _, s := range batch {
					So(seen[s.SessionHash], ShouldBeFalse)
					seen[s.SessionHash] = true
				}
			})
		})
	})
}
