package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/padcal/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

var configEnvVars = []string{
	"PADCAL_CONFIG",
	"PADCAL_ADDR",
	"PADCAL_DEVICE",
	"PADCAL_SIM_SENSORS",
	"PADCAL_POLL_INTERVAL_MS",
	"PADCAL_SERIAL_PORT",
	"PADCAL_MQTT_SERVER",
	"PADCAL_HISTORY_SIZE",
}

func clearConfigEnvVars() {
	for _, k := range configEnvVars {
		_ = os.Unsetenv(k)
	}
}

func writeConfigFile(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "padcal.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx, "")

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.Device, convey.ShouldEqual, config.DeviceSim)
				convey.So(cfg.SimSensors, convey.ShouldEqual, 4)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("PADCAL_ADDR", ":8080")
			_ = os.Setenv("PADCAL_SIM_SENSORS", "8")
			_ = os.Setenv("PADCAL_POLL_INTERVAL_MS", "5")
			_ = os.Setenv("PADCAL_MQTT_SERVER", "tcp://broker:1883")

			cfg, err := config.Load(ctx, "")

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.SimSensors, convey.ShouldEqual, 8)
				convey.So(cfg.PollIntervalMS, convey.ShouldEqual, 5)
				convey.So(cfg.MQTTServer, convey.ShouldEqual, "tcp://broker:1883")
			})
		})

		convey.Convey("When loading config with a YAML file", func() {
			path := writeConfigFile(t, `
addr: ":9090"
device: serial
serial_port: /dev/ttyACM0
serial_baud: 57600
history_size: 120
live_origins:
  - http://dashboard.local:3000
`)

			convey.Convey("Then an explicit path is used", func() {
				cfg, err := config.Load(ctx, path)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.Device, convey.ShouldEqual, config.DeviceSerial)
				convey.So(cfg.SerialPort, convey.ShouldEqual, "/dev/ttyACM0")
				convey.So(cfg.SerialBaud, convey.ShouldEqual, 57600)
				convey.So(cfg.HistorySize, convey.ShouldEqual, 120)
				convey.So(cfg.LiveOrigins, convey.ShouldResemble, []string{"http://dashboard.local:3000"})
			})

			convey.Convey("And PADCAL_CONFIG is honoured", func() {
				_ = os.Setenv("PADCAL_CONFIG", path)
				cfg, err := config.Load(ctx, "")
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
			})

			convey.Convey("And env vars override the file", func() {
				_ = os.Setenv("PADCAL_HISTORY_SIZE", "60")
				cfg, err := config.Load(ctx, path)
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.HistorySize, convey.ShouldEqual, 60)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
			})
		})

		convey.Convey("When the file does not exist", func() {
			_, err := config.Load(ctx, "/non/existent/padcal.yaml")

			convey.Convey("Then it should fail to load", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a value does not parse", func() {
			_ = os.Setenv("PADCAL_SIM_SENSORS", "many")
			_, err := config.Load(ctx, "")

			convey.Convey("Then it should be rejected as invalid", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the result fails validation", func() {
			_ = os.Setenv("PADCAL_DEVICE", "serial")
			_, err := config.Load(ctx, "")

			convey.Convey("Then validation errors surface", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})
	})
}
