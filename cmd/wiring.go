package main

import (
	"context"
	"fmt"
	"io"

	"github.com/okian/padcal/internal/adapters/device"
	"github.com/okian/padcal/internal/adapters/device/ads1115"
	"github.com/okian/padcal/internal/adapters/device/serialpad"
	"github.com/okian/padcal/internal/adapters/device/sim"
	"github.com/okian/padcal/internal/adapters/publish/mqtt"
	"github.com/okian/padcal/internal/adapters/repository"
	app "github.com/okian/padcal/internal/app"
	"github.com/okian/padcal/internal/config"
	"github.com/okian/padcal/pkg/logger"
)

// openDevice builds the configured device backend.
func openDevice(ctx context.Context, cfg *config.Config) (device.Device, error) {
	switch cfg.Device {
	case config.DeviceSim:
		return sim.New(cfg.SimSensors, cfg.SimButtons, sim.WithWave()), nil
	case config.DeviceSerial:
		dev, err := serialpad.Open(ctx, serialpad.Options{Port: cfg.SerialPort, Baud: cfg.SerialBaud})
		if err != nil {
			return nil, fmt.Errorf("open serial pad: %w", err)
		}
		return dev, nil
	case config.DeviceADS1115:
		channels := make([]int, cfg.ADS1115Channels)
		for i := range channels {
			channels[i] = i
		}
		dev, err := ads1115.Open(ads1115.Options{
			Bus:      cfg.I2CBus,
			Address:  uint16(cfg.I2CAddress),
			Channels: channels,
		})
		if err != nil {
			return nil, fmt.Errorf("open ads1115: %w", err)
		}
		return dev, nil
	}
	return nil, fmt.Errorf("%w: device %q", config.ErrInvalidConfig, cfg.Device)
}

// serviceOptions translates configuration into service options. cleanup
// releases the publisher, if one was created.
func serviceOptions(ctx context.Context, cfg *config.Config, transport device.Transport) ([]app.Option, func(), error) {
	log := logger.Get()
	opts := []app.Option{
		app.WithTransport(transport),
		app.WithLogger(log.Named("service")),
		app.WithPollInterval(cfg.PollInterval()),
		app.WithSessionTimeout(cfg.SessionTimeout()),
		app.WithHistorySize(cfg.HistorySize),
		app.WithQueueSize(cfg.CommandQueueSize),
	}
	cleanup := func() {}

	if cfg.ProfileDir != "" {
		store, err := repository.NewFileStore(cfg.ProfileDir)
		if err != nil {
			return nil, cleanup, fmt.Errorf("profile store: %w", err)
		}
		opts = append(opts, app.WithStore(store))
	}

	if cfg.MQTTServer != "" {
		pub, err := mqtt.New(mqtt.Config{
			Server:   cfg.MQTTServer,
			ClientID: cfg.MQTTClientID,
			Topic:    cfg.MQTTTopic,
		})
		if err != nil {
			// Publishing is optional; the pad still works without a broker.
			log.Warn(ctx, "mqtt publisher disabled", logger.String("server", cfg.MQTTServer), logger.Error(err))
		} else {
			opts = append(opts, app.WithPublisher(pub))
			cleanup = func() { _ = pub.Close() }
		}
	}
	return opts, cleanup, nil
}

func closeQuietly(dev device.Device) {
	if c, ok := dev.(io.Closer); ok {
		_ = c.Close()
	}
}
