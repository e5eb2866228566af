// Package config defines process configuration and its loading.
//
// Conventions:
//   - Flat snake_case keys shared by the YAML file and PADCAL_* env vars.
//   - New(ctx) returns the defaults; Load layers file and env on top.
//   - Validation failures wrap ErrInvalidConfig.
package config

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"
)

// Device backends selectable with the device key.
const (
	DeviceSim     = "sim"
	DeviceSerial  = "serial"
	DeviceADS1115 = "ads1115"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects text or json log output.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":9080".
	Addr string `koanf:"addr"`

	// PollIntervalMS is the period between sensor reads.
	PollIntervalMS int `koanf:"poll_interval_ms"`

	// HistorySize bounds each sensor's sample history.
	HistorySize int `koanf:"history_size"`

	// SessionTimeoutMS cancels a calibration drag idle this long; 0 disables.
	SessionTimeoutMS int `koanf:"session_timeout_ms"`

	// Device selects the backend: sim, serial or ads1115.
	Device string `koanf:"device"`

	// SimSensors and SimButtons shape the simulated pad.
	SimSensors int `koanf:"sim_sensors"`
	SimButtons int `koanf:"sim_buttons"`

	// SerialPort and SerialBaud address a serial pad controller.
	SerialPort string `koanf:"serial_port"`
	SerialBaud int    `koanf:"serial_baud"`

	// I2CBus, I2CAddress and ADS1115Channels address an ADS1115 converter.
	I2CBus          string `koanf:"i2c_bus"`
	I2CAddress      int    `koanf:"i2c_address"`
	ADS1115Channels int    `koanf:"ads1115_channels"`

	// CommandQueueSize bounds the device command queue.
	CommandQueueSize int `koanf:"command_queue_size"`

	// ProfileDir holds named profiles; empty disables the profile store.
	ProfileDir string `koanf:"profile_dir"`

	// MQTTServer enables publishing to a broker when set.
	MQTTServer   string `koanf:"mqtt_server"`
	MQTTClientID string `koanf:"mqtt_client_id"`
	MQTTTopic    string `koanf:"mqtt_topic"`

	// LiveIntervalMS is the period between snapshots on the live stream.
	LiveIntervalMS int `koanf:"live_interval_ms"`
	// LiveOrigins lists browser origins besides the server's own that may
	// open the live stream, e.g. "http://dashboard.local:3000".
	LiveOrigins []string `koanf:"live_origins"`
}

// New creates a Config holding the defaults.
func New(_ context.Context) *Config {
	return &Config{
		LogLevel:         "info",
		LogFormat:        "text",
		Addr:             ":9080",
		PollIntervalMS:   10,
		HistorySize:      360,
		SessionTimeoutMS: 30_000,
		Device:           DeviceSim,
		SimSensors:       4,
		SimButtons:       4,
		SerialBaud:       115200,
		I2CBus:           "",
		I2CAddress:       0x48,
		ADS1115Channels:  4,
		CommandQueueSize: 256,
		ProfileDir:       "profiles",
		MQTTClientID:     "padcal",
		MQTTTopic:        "padcal",
		LiveIntervalMS:   50,
	}
}

// PollInterval returns the poll period.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMS) * time.Millisecond
}

// SessionTimeout returns the drag idle timeout.
func (c *Config) SessionTimeout() time.Duration {
	return time.Duration(c.SessionTimeoutMS) * time.Millisecond
}

// LiveInterval returns the live stream period.
func (c *Config) LiveInterval() time.Duration {
	return time.Duration(c.LiveIntervalMS) * time.Millisecond
}

// Validate checks field ranges and cross-field requirements.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if c.Addr == "" {
		add("addr must not be empty")
	}
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(c.LogLevel)) {
		add("log_level %q unknown", c.LogLevel)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		add("log_format %q unknown", c.LogFormat)
	}
	if c.PollIntervalMS <= 0 {
		add("poll_interval_ms must be positive")
	}
	if c.HistorySize <= 0 {
		add("history_size must be positive")
	}
	if c.SessionTimeoutMS < 0 {
		add("session_timeout_ms must not be negative")
	}
	if c.CommandQueueSize <= 0 {
		add("command_queue_size must be positive")
	}
	if c.LiveIntervalMS <= 0 {
		add("live_interval_ms must be positive")
	}

	switch c.Device {
	case DeviceSim:
		if c.SimSensors < 0 || c.SimButtons < 0 {
			add("sim_sensors and sim_buttons must not be negative")
		}
	case DeviceSerial:
		if c.SerialPort == "" {
			add("serial_port required for device %q", c.Device)
		}
		if c.SerialBaud <= 0 {
			add("serial_baud must be positive")
		}
	case DeviceADS1115:
		if c.I2CAddress <= 0 || c.I2CAddress > 0x7f {
			add("i2c_address %#x out of range", c.I2CAddress)
		}
		if c.ADS1115Channels < 1 || c.ADS1115Channels > 4 {
			add("ads1115_channels must be 1..4")
		}
	default:
		add("device %q unknown", c.Device)
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(problems, "; "))
	}
	return nil
}
