package mapping_test

import (
	"errors"
	"testing"

	"github.com/okian/padcal/internal/domain/mapping"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMapping(t *testing.T) {
	Convey("Given a mapping with two sensors on button 1 and one on button 3", t, func() {
		m, err := mapping.FromTable(map[int]int{0: 1, 4: 1, 2: 3, 5: mapping.Unmapped})
		So(err, ShouldBeNil)

		Convey("Then lookups and grouping reflect the table", func() {
			So(m.Button(0), ShouldEqual, 1)
			So(m.Button(5), ShouldEqual, mapping.Unmapped)
			So(m.Button(99), ShouldEqual, mapping.Unmapped)
			So(m.Len(), ShouldEqual, 3)
			So(m.Group(), ShouldResemble, map[int][]int{1: {0, 4}, 3: {2}})
			So(m.Buttons(), ShouldResemble, []int{1, 3})
			So(m.Sensors(), ShouldResemble, []int{0, 4, 2})
		})

		Convey("When aggregating pressed state", func() {
			pressed := map[int]bool{4: true}
			got := m.Pressed(func(s int) bool { return pressed[s] })

			Convey("Then a button is pressed if any sensor is", func() {
				So(got, ShouldResemble, map[int]bool{1: true, 3: false})
			})
		})

		Convey("When unmapping a sensor", func() {
			So(m.Set(2, mapping.Unmapped), ShouldBeNil)

			Convey("Then its button disappears from the grouping", func() {
				So(m.Buttons(), ShouldResemble, []int{1})
			})
		})

		Convey("When setting invalid indices", func() {
			So(errors.Is(m.Set(-1, 1), mapping.ErrInvalidSensor), ShouldBeTrue)
			So(errors.Is(m.Set(1, -2), mapping.ErrInvalidButton), ShouldBeTrue)
		})

		Convey("When truncating to three sensors", func() {
			m.Truncate(3)
			So(m.Table(), ShouldResemble, map[int]int{0: 1, 2: 3})
		})

		Convey("When cloning", func() {
			c := m.Clone()
			_ = c.Set(0, 7)
			So(m.Button(0), ShouldEqual, 1)
			So(c.Button(0), ShouldEqual, 7)
		})
	})
}

func TestDiff(t *testing.T) {
	Convey("Given an old and an updated mapping", t, func() {
		old, _ := mapping.FromTable(map[int]int{0: 1, 1: 1, 2: 2, 3: 4})
		updated, _ := mapping.FromTable(map[int]int{0: 1, 1: 1, 2: 3, 3: 4})

		Convey("When diffing them", func() {
			changes := mapping.Diff(old, updated)

			Convey("Then only buttons whose sensor set changed are reported", func() {
				So(changes, ShouldResemble, []mapping.Change{
					{Button: 2, Before: []int{2}},
					{Button: 3, After: []int{2}},
				})
			})
		})

		Convey("When diffing identical mappings", func() {
			So(mapping.Diff(old, old.Clone()), ShouldBeEmpty)
		})
	})
}
