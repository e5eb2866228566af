package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/smartystreets/goconvey/convey"
)

func TestLoggerInit(t *testing.T) {
	convey.Convey("Given the global logger", t, func() {
		convey.Convey("When initialized with defaults", func() {
			err := Init()

			convey.Convey("Then Get returns a usable logger", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(Get(), convey.ShouldNotBeNil)
				convey.So(Sync(), convey.ShouldBeNil)
			})
		})

		convey.Convey("When initialized with an unknown format", func() {
			err := InitWith(&bytes.Buffer{}, "xml")

			convey.Convey("Then it fails", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestLoggerJSONOutput(t *testing.T) {
	convey.Convey("Given a JSON logger writing to a buffer", t, func() {
		var buf bytes.Buffer
		convey.So(InitWith(&buf, "json"), convey.ShouldBeNil)
		convey.So(SetLevelString("info"), convey.ShouldBeNil)
		ctx := context.Background()

		convey.Convey("When logging through a named logger with fields", func() {
			Named("poller").With(Int("sensors", 4)).Info(ctx, "tick", Bool("pressed", true))

			convey.Convey("Then the record carries component, fields and source", func() {
				var rec map[string]any
				convey.So(json.Unmarshal(buf.Bytes(), &rec), convey.ShouldBeNil)
				convey.So(rec["msg"], convey.ShouldEqual, "tick")
				convey.So(rec["component"], convey.ShouldEqual, "poller")
				convey.So(rec["sensors"], convey.ShouldEqual, float64(4))
				convey.So(rec["pressed"], convey.ShouldEqual, true)
				convey.So(rec["source"], convey.ShouldContainSubstring, "logger_test.go")
			})
		})

		convey.Convey("When logging below the configured level", func() {
			Get().Debug(ctx, "hidden")

			convey.Convey("Then nothing is written", func() {
				convey.So(buf.Len(), convey.ShouldEqual, 0)
			})
		})
	})
}

func TestSetLevelString(t *testing.T) {
	convey.Convey("Given level strings", t, func() {
		for _, lvl := range []string{"debug", "INFO", " warn ", "warning", "error", ""} {
			convey.So(SetLevelString(lvl), convey.ShouldBeNil)
		}
		convey.So(SetLevelString("loud"), convey.ShouldNotBeNil)

		var buf bytes.Buffer
		convey.So(InitWith(&buf, "text"), convey.ShouldBeNil)
		convey.So(SetLevelString("error"), convey.ShouldBeNil)
		Get().Warn(context.Background(), "suppressed")
		Get().Error(context.Background(), "shown")
		convey.So(strings.Contains(buf.String(), "suppressed"), convey.ShouldBeFalse)
		convey.So(strings.Contains(buf.String(), "shown"), convey.ShouldBeTrue)
		_ = SetLevelString("info")
	})
}
