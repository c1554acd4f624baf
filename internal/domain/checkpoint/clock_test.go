package checkpoint_test

import (
	"testing"
	"time"

	"github.com/okian/tally/internal/domain/checkpoint"
	"github.com/okian/tally/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

var t0 = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func TestClockPauseResume(t *testing.T) {
	Convey("Given a running clock with deadline T0+60m", t, func() {
		c := checkpoint.Clock{Deadline: t0.Add(60 * time.Minute)}

		Convey("When paused at T0+50m and resumed 10m later", func() {
			So(c.Pause(t0.Add(50*time.Minute)), ShouldBeNil)
			So(c.Paused(), ShouldBeTrue)
			So(c.EffectiveDeadline(), ShouldEqual, t0.Add(50*time.Minute))
			So(c.Remaining(t0.Add(55*time.Minute)), ShouldEqual, 10*time.Minute)

			So(c.Resume(t0.Add(60*time.Minute)), ShouldBeNil)

			Convey("Then the deadline preserves the remaining time", func() {
				So(c.Paused(), ShouldBeFalse)
				So(c.Deadline, ShouldEqual, t0.Add(70*time.Minute))
				So(c.EffectiveDeadline(), ShouldEqual, t0.Add(70*time.Minute))
			})
		})

		Convey("When paused twice", func() {
			So(c.Pause(t0), ShouldBeNil)
			Convey("Then the second pause is rejected", func() {
				So(c.Pause(t0.Add(time.Minute)), ShouldEqual, checkpoint.ErrAlreadyPaused)
			})
		})

		Convey("When resumed while running", func() {
			Convey("Then it is rejected", func() {
				So(c.Resume(t0), ShouldEqual, checkpoint.ErrNotPaused)
			})
		})

		Convey("When paused after the deadline", func() {
			err := c.Pause(t0.Add(61 * time.Minute))
			Convey("Then it is rejected and the clock keeps running", func() {
				So(err, ShouldEqual, checkpoint.ErrDeadlinePassed)
				So(c.Paused(), ShouldBeFalse)
			})
		})
	})
}

func TestClockExtendAndSet(t *testing.T) {
	Convey("Given a paused clock", t, func() {
		c := checkpoint.Clock{Deadline: t0.Add(time.Hour)}
		So(c.Pause(t0.Add(30*time.Minute)), ShouldBeNil)

		Convey("When extended by 15 minutes", func() {
			So(c.Extend(15*time.Minute), ShouldBeNil)
			Convey("Then the deadline moves and the clock stays paused", func() {
				So(c.Deadline, ShouldEqual, t0.Add(75*time.Minute))
				So(c.Paused(), ShouldBeTrue)
			})
		})

		Convey("When extended by a non-positive amount", func() {
			So(c.Extend(0), ShouldEqual, checkpoint.ErrInvalidExtension)
			So(c.Extend(-time.Minute), ShouldEqual, checkpoint.ErrInvalidExtension)
		})

		Convey("When the deadline is set", func() {
			So(c.SetDeadline(t0.Add(2*time.Hour)), ShouldBeNil)
			Convey("Then the pause is cleared", func() {
				So(c.Paused(), ShouldBeFalse)
				So(c.EffectiveDeadline(), ShouldEqual, t0.Add(2*time.Hour))
			})
		})

		Convey("When the deadline is set to zero", func() {
			So(c.SetDeadline(time.Time{}), ShouldEqual, checkpoint.ErrInvalidDeadline)
		})
	})
}

func TestClockStageRoundTrip(t *testing.T) {
	Convey("Given a stage", t, func() {
		s := model.Stage{ID: "s1", Deadline: t0.Add(time.Hour)}

		Convey("When its clock is paused and written back", func() {
			c := checkpoint.FromStage(s)
			So(c.Pause(t0), ShouldBeNil)
			c.ApplyTo(&s)

			Convey("Then the stage reflects the pause", func() {
				So(s.Paused(), ShouldBeTrue)
				So(*s.PausedAt, ShouldEqual, t0)
				So(s.EffectiveDeadline(), ShouldEqual, t0)
			})
		})
	})
}
