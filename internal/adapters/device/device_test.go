package device_test

import (
	"context"
	"errors"
	"testing"

	"github.com/okian/padcal/internal/adapters/device"
	"github.com/okian/padcal/internal/adapters/device/sim"
	"github.com/okian/padcal/internal/domain/model"
	"github.com/okian/padcal/internal/domain/release"
	"github.com/okian/padcal/internal/domain/threshold"
	. "github.com/smartystreets/goconvey/convey"
)

func TestSwitchAndSink(t *testing.T) {
	Convey("Given an empty switch", t, func() {
		ctx := context.Background()
		sw := device.NewSwitch(nil)
		sink := device.Sink{Transport: sw}

		Convey("Then no device is active and commands fail", func() {
			_, ok := sw.ActiveDevice(ctx)
			So(ok, ShouldBeFalse)
			So(errors.Is(sink.Apply(ctx, model.NewThreshold(0, 1, 1)), device.ErrNotConnected), ShouldBeTrue)
		})

		Convey("When a device is plugged in", func() {
			pad := sim.New(2, 4)
			So(sw.Set(pad), ShouldBeNil)

			Convey("Then commands reach it", func() {
				So(sink.Apply(ctx, model.NewThreshold(1, 0.7, 0.3)), ShouldBeNil)
				So(sink.Apply(ctx, model.NewReleaseMode(release.Individual, 0)), ShouldBeNil)
				So(sink.Apply(ctx, model.NewButtonMapping(0, 4)), ShouldBeNil)

				pair, _, _ := pad.SensorConfig(ctx, 1)
				So(pair, ShouldResemble, threshold.Pair{Activation: 0.7, Release: 0.3})
				mode, _, _ := pad.ReleaseConfig(ctx)
				So(mode, ShouldEqual, release.Individual)
				_, b, _ := pad.SensorConfig(ctx, 0)
				So(b, ShouldEqual, 4)
			})

			Convey("And unknown command kinds are refused", func() {
				err := sink.Apply(ctx, model.Command{Kind: model.CommandKind(99)})
				So(errors.Is(err, device.ErrUnsupported), ShouldBeTrue)
			})

			Convey("And unplugging returns it", func() {
				So(sw.Set(nil), ShouldEqual, pad)
			})
		})
	})
}
