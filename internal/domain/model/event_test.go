package model_test

import (
	"testing"

	model "github.com/okian/padcal/internal/domain/model"
	"github.com/okian/padcal/internal/domain/release"
	"github.com/smartystreets/goconvey/convey"
)

func TestCommand(t *testing.T) {
	convey.Convey("Given the command constructors", t, func() {
		convey.Convey("When building a threshold command", func() {
			cmd := model.NewThreshold(3, 0.6, 0.4)

			convey.Convey("Then only the threshold fields are set", func() {
				convey.So(cmd.Kind, convey.ShouldEqual, model.SetThreshold)
				convey.So(cmd.Sensor, convey.ShouldEqual, 3)
				convey.So(cmd.Activation, convey.ShouldEqual, 0.6)
				convey.So(cmd.Release, convey.ShouldEqual, 0.4)
				convey.So(cmd.ID, convey.ShouldNotBeEmpty)
				convey.So(cmd.TS.IsZero(), convey.ShouldBeFalse)
			})
		})

		convey.Convey("When building a release mode command", func() {
			cmd := model.NewReleaseMode(release.Global, 0.7)
			convey.So(cmd.Kind, convey.ShouldEqual, model.SetReleaseMode)
			convey.So(cmd.Mode, convey.ShouldEqual, release.Global)
			convey.So(cmd.Ratio, convey.ShouldEqual, 0.7)
		})

		convey.Convey("When building a mapping command", func() {
			cmd := model.NewButtonMapping(2, 5)
			convey.So(cmd.Kind, convey.ShouldEqual, model.SetButtonMapping)
			convey.So(cmd.Button, convey.ShouldEqual, 5)
		})

		convey.Convey("Then ids are unique", func() {
			convey.So(model.NewThreshold(0, 1, 1).ID, convey.ShouldNotEqual, model.NewThreshold(0, 1, 1).ID)
		})

		convey.Convey("Then kinds have stable names", func() {
			convey.So(model.SetThreshold.String(), convey.ShouldEqual, "set_threshold")
			convey.So(model.SetReleaseMode.String(), convey.ShouldEqual, "set_release_mode")
			convey.So(model.SetButtonMapping.String(), convey.ShouldEqual, "set_button_mapping")
			convey.So(model.CommandKind(0).String(), convey.ShouldEqual, "command(0)")
		})
	})
}
