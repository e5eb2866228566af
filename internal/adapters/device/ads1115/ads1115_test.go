package ads1115

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/okian/padcal/internal/adapters/device"
	"github.com/okian/padcal/internal/domain/release"
	"github.com/okian/padcal/internal/domain/threshold"
	. "github.com/smartystreets/goconvey/convey"
)

// fakeDev records writes and answers conversion reads with code.
type fakeDev struct {
	writes [][]byte
	code   int16
	err    error
}

func (f *fakeDev) Tx(w, r []byte) error {
	if f.err != nil {
		return f.err
	}
	f.writes = append(f.writes, append([]byte(nil), w...))
	if len(r) == 2 {
		r[0] = byte(uint16(f.code) >> 8)
		r[1] = byte(uint16(f.code))
	}
	return nil
}

func TestConfigWord(t *testing.T) {
	Convey("Given channel 2 at 128 SPS", t, func() {
		msb, lsb := configWord(2, 128)

		Convey("Then the register selects AIN2 single-ended, ±4.096V, single-shot", func() {
			So(msb, ShouldEqual, byte(0xE3))
			So(lsb, ShouldEqual, byte(0x83))
		})
	})
}

func TestRawValue(t *testing.T) {
	Convey("Given a pad on channels 0 and 3", t, func() {
		dev := &fakeDev{code: 16384}
		p, err := newPad(dev, []int{0, 3}, 860)
		So(err, ShouldBeNil)
		p.sleep = func(time.Duration) {}
		ctx := context.Background()

		Convey("When reading sensor 1", func() {
			v, err := p.RawValue(ctx, 1)
			So(err, ShouldBeNil)

			Convey("Then the code is scaled to [0,1]", func() {
				So(v, ShouldAlmostEqual, 16384.0/32767.0, 1e-9)
			})

			Convey("And channel 3 was configured before reading", func() {
				So(dev.writes, ShouldHaveLength, 2)
				So(dev.writes[0][0], ShouldEqual, byte(pointerConfig))
				So(dev.writes[0][1]>>4, ShouldEqual, byte(0xF))
				So(dev.writes[1], ShouldResemble, []byte{pointerConv})
			})
		})

		Convey("When the reading is negative", func() {
			dev.code = -200
			v, _ := p.RawValue(ctx, 0)
			So(v, ShouldEqual, 0)
		})

		Convey("When the bus fails", func() {
			dev.err = errors.New("nack")
			_, err := p.RawValue(ctx, 0)
			So(err, ShouldNotBeNil)
		})

		Convey("When the sensor index is wrong", func() {
			_, err := p.RawValue(ctx, 2)
			So(errors.Is(err, device.ErrUnknownSensor), ShouldBeTrue)
		})

		Convey("When calibration is written", func() {
			So(p.SetThreshold(ctx, 0, 0.7, 0.2), ShouldBeNil)
			So(p.SetButtonMapping(ctx, 0, 5), ShouldBeNil)
			So(p.SetReleaseMode(ctx, release.Individual, 0.3), ShouldBeNil)

			Convey("Then it is served back from host memory", func() {
				pair, b, err := p.SensorConfig(ctx, 0)
				So(err, ShouldBeNil)
				So(pair, ShouldResemble, threshold.Pair{Activation: 0.7, Release: 0.2})
				So(b, ShouldEqual, 5)
				mode, ratio, _ := p.ReleaseConfig(ctx)
				So(mode, ShouldEqual, release.Individual)
				So(ratio, ShouldEqual, 0.3)
			})
		})
	})

	Convey("Given an invalid channel", t, func() {
		_, err := newPad(&fakeDev{}, []int{4}, 0)
		So(err, ShouldNotBeNil)
	})
}
