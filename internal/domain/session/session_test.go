package session_test

import (
	"testing"
	"time"

	"github.com/okian/padcal/internal/domain/session"
	"github.com/okian/padcal/internal/domain/threshold"
	. "github.com/smartystreets/goconvey/convey"
)

func TestExtentPosition(t *testing.T) {
	Convey("Given a sensor extent from y=100 with height 200", t, func() {
		e := session.Extent{Top: 100, Height: 200}

		Convey("Then positions map linearly from 1 at the top to 0 at the bottom", func() {
			So(e.Position(100), ShouldEqual, 1)
			So(e.Position(200), ShouldEqual, 0.5)
			So(e.Position(300), ShouldEqual, 0)
		})

		Convey("And positions outside the extent clamp", func() {
			So(e.Position(-50), ShouldEqual, 1)
			So(e.Position(900), ShouldEqual, 0)
		})
	})

	Convey("Given a degenerate extent", t, func() {
		e := session.Extent{Top: 0, Height: 0}
		So(e.Position(0.5), ShouldEqual, 0.5)
	})
}

func TestSession(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ext := session.Extent{Top: 0, Height: 100}

	Convey("Given an idle session", t, func() {
		var s session.Session

		Convey("Then moves and ends are no-ops", func() {
			So(s.Move(10, ext, now), ShouldBeFalse)
			_, _, ok := s.End()
			So(ok, ShouldBeFalse)
			_, ok = s.Cancel()
			So(ok, ShouldBeFalse)
			_, ok = s.Active()
			So(ok, ShouldBeFalse)
			So(s.ID(), ShouldBeEmpty)
		})

		Convey("When an activation drag begins on sensor 2", func() {
			ok := s.Begin(2, session.EditActivation, threshold.Pair{Activation: 0.5, Release: 0.4}, now)

			Convey("Then the session captures the current thresholds", func() {
				So(ok, ShouldBeTrue)
				target, active := s.Active()
				So(active, ShouldBeTrue)
				So(target, ShouldResemble, session.Target{Sensor: 2, Edit: session.EditActivation})
				So(s.Pending(), ShouldResemble, threshold.Pair{Activation: 0.5, Release: 0.4})
				So(s.ID(), ShouldNotBeEmpty)
			})

			Convey("And a second begin on another sensor is ignored", func() {
				So(s.Begin(3, session.EditActivation, threshold.Pair{Activation: 0.9, Release: 0.9}, now), ShouldBeFalse)
				target, _ := s.Active()
				So(target.Sensor, ShouldEqual, 2)
				So(s.Pending().Activation, ShouldEqual, 0.5)
			})

			Convey("And pointer moves update only the pending activation", func() {
				So(s.Move(25, ext, now), ShouldBeTrue)
				So(s.Pending(), ShouldResemble, threshold.Pair{Activation: 0.75, Release: 0.4})
				So(s.Move(-40, ext, now), ShouldBeTrue)
				So(s.Pending().Activation, ShouldEqual, 1)
			})

			Convey("And ending returns the pending pair and goes idle", func() {
				s.Move(70, ext, now)
				target, pair, ok := s.End()
				So(ok, ShouldBeTrue)
				So(target.Sensor, ShouldEqual, 2)
				So(pair.Activation, ShouldAlmostEqual, 0.3)
				_, active := s.Active()
				So(active, ShouldBeFalse)
				So(s.Begin(3, session.EditActivation, threshold.Pair{}, now), ShouldBeTrue)
			})

			Convey("And cancelling discards it", func() {
				target, ok := s.Cancel()
				So(ok, ShouldBeTrue)
				So(target.Sensor, ShouldEqual, 2)
				So(s.Pending(), ShouldResemble, threshold.Pair{})
			})
		})

		Convey("When a release drag moves above the pending activation", func() {
			s.Begin(0, session.EditRelease, threshold.Pair{Activation: 0.6, Release: 0.3}, now)
			s.Move(10, ext, now)

			Convey("Then the pending release is clamped to the pending activation", func() {
				So(s.Pending(), ShouldResemble, threshold.Pair{Activation: 0.6, Release: 0.6})
			})

			Convey("And moving lower tracks the pointer", func() {
				s.Move(80, ext, now)
				So(s.Pending().Release, ShouldAlmostEqual, 0.2)
			})
		})

		Convey("When a drag sees no activity", func() {
			s.Begin(1, session.EditActivation, threshold.Pair{Activation: 0.5, Release: 0.5}, now)

			Convey("Then it becomes stale after the timeout", func() {
				So(s.Stale(now.Add(time.Second), 2*time.Second), ShouldBeFalse)
				So(s.Stale(now.Add(2*time.Second), 2*time.Second), ShouldBeTrue)
				So(s.Stale(now.Add(time.Hour), 0), ShouldBeFalse)
				So(s.Duration(now.Add(3*time.Second)), ShouldEqual, 3*time.Second)
			})

			Convey("And a move refreshes activity", func() {
				s.Move(50, ext, now.Add(1500*time.Millisecond))
				So(s.Stale(now.Add(2*time.Second), 2*time.Second), ShouldBeFalse)
			})
		})
	})
}

func TestParseEdit(t *testing.T) {
	Convey("Given edit names", t, func() {
		e, ok := session.ParseEdit("release")
		So(ok, ShouldBeTrue)
		So(e, ShouldEqual, session.EditRelease)
		e, ok = session.ParseEdit("")
		So(ok, ShouldBeTrue)
		So(e, ShouldEqual, session.EditActivation)
		_, ok = session.ParseEdit("both")
		So(ok, ShouldBeFalse)
		So(session.EditRelease.String(), ShouldEqual, "release")
	})
}
