package green_test

import (
	"testing"

	"github.com/okian/tierboard/internal/domain/green"
	. "github.com/smartystreets/goconvey/convey"
)

type fixedRoll int

func (f fixedRoll) Intn(int) int { return int(f) }

func TestDecider(t *testing.T) {
	Convey("Given a decider that always rolls 40", t, func() {
		d := green.NewDecider(green.WithRoller(fixedRoll(40)))

		Convey("Then a week right after a green one stays plain", func() {
			So(d.Decide(0), ShouldBeFalse)
		})

		Convey("Then two plain weeks are not enough", func() {
			So(d.Decide(2), ShouldBeFalse)
		})

		Convey("Then three plain weeks turn it green", func() {
			So(d.Decide(3), ShouldBeTrue)
		})
	})

	Convey("Given a roll equal to the threshold", t, func() {
		d := green.NewDecider(green.WithRoller(fixedRoll(60)))

		So(d.Threshold(3), ShouldEqual, 60)
		So(d.Decide(3), ShouldBeFalse)
		So(d.Decide(4), ShouldBeTrue)
	})

	Convey("Given a roll one below the threshold", t, func() {
		d := green.NewDecider(green.WithRoller(fixedRoll(39)))

		So(d.Decide(2), ShouldBeTrue)
		So(d.Decide(1), ShouldBeFalse)
	})

	Convey("Given a custom step", t, func() {
		d := green.NewDecider(green.WithStep(50), green.WithRoller(fixedRoll(60)))

		So(d.Threshold(2), ShouldEqual, 100)
		So(d.Decide(1), ShouldBeFalse)
		So(d.Decide(2), ShouldBeTrue)
	})

	Convey("Given probabilities", t, func() {
		d := green.NewDecider()

		So(d.Probability(0), ShouldEqual, 0.0)
		So(d.Probability(-3), ShouldEqual, 0.0)
		So(d.Probability(10), ShouldEqual, 1.0)
		So(d.Probability(1), ShouldAlmostEqual, 20.0/101, 1e-12)
	})
}
