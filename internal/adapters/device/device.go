// Package device defines the transport contract the calibration service
// consumes, plus helpers shared by concrete transports.
package device

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/padcal/internal/domain/model"
	"github.com/okian/padcal/internal/domain/release"
	"github.com/okian/padcal/internal/domain/threshold"
)

// Info describes a connected pad.
type Info struct {
	Name      string `json:"name"`
	Transport string `json:"transport"`
	Sensors   int    `json:"sensors"`
	// Buttons is the highest button index the device accepts, 0 if unknown.
	Buttons int `json:"buttons"`
}

// Device is one connected pad.
type Device interface {
	Info() Info
	SensorCount(ctx context.Context) (int, error)
	// RawValue returns sensor i's reading normalized to [0,1].
	RawValue(ctx context.Context, i int) (float64, error)
	SetThreshold(ctx context.Context, i int, activation, rel float64) error
	SetReleaseMode(ctx context.Context, mode release.Mode, ratio float64) error
	SetButtonMapping(ctx context.Context, i, button int) error
}

// Sampler is implemented by devices that read every sensor in one round trip.
type Sampler interface {
	Sample(ctx context.Context) ([]float64, error)
}

// ConfigReader is implemented by devices that can report their stored
// calibration.
type ConfigReader interface {
	SensorConfig(ctx context.Context, i int) (threshold.Pair, int, error)
	ReleaseConfig(ctx context.Context) (release.Mode, float64, error)
}

// Transport yields the currently active device, if any.
type Transport interface {
	ActiveDevice(ctx context.Context) (Device, bool)
}

// Sample reads all sensors of d, in one call when d is a Sampler.
func Sample(ctx context.Context, d Device) ([]float64, error) {
	if s, ok := d.(Sampler); ok {
		return s.Sample(ctx)
	}
	n, err := d.SensorCount(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]float64, n)
	for i := range out {
		if out[i], err = d.RawValue(ctx, i); err != nil {
			return nil, fmt.Errorf("sensor %d: %w", i, err)
		}
	}
	return out, nil
}

// Apply performs the device call c stands for.
func Apply(ctx context.Context, d Device, c model.Command) error { //nolint:gocritic // hugeParam: commands are values
	switch c.Kind {
	case model.SetThreshold:
		return d.SetThreshold(ctx, c.Sensor, c.Activation, c.Release)
	case model.SetReleaseMode:
		return d.SetReleaseMode(ctx, c.Mode, c.Ratio)
	case model.SetButtonMapping:
		return d.SetButtonMapping(ctx, c.Sensor, c.Button)
	default:
		return fmt.Errorf("%w: %s", ErrUnsupported, c.Kind)
	}
}

// Switch is a Transport whose active device is swapped at runtime, e.g. on
// hot-plug. The zero value has no device.
type Switch struct {
	mu  sync.RWMutex
	dev Device
}

// NewSwitch returns a Switch holding dev, which may be nil.
func NewSwitch(dev Device) *Switch {
	return &Switch{dev: dev}
}

// ActiveDevice implements Transport.
func (s *Switch) ActiveDevice(context.Context) (Device, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dev, s.dev != nil
}

// Set replaces the active device and returns the previous one.
func (s *Switch) Set(dev Device) Device {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.dev
	s.dev = dev
	return prev
}

// Sink adapts a Transport to the dispatcher: each command goes to whatever
// device is active when it is dequeued.
type Sink struct {
	Transport Transport
}

// Apply implements worker.Sink.
func (s Sink) Apply(ctx context.Context, c model.Command) error { //nolint:gocritic // hugeParam: commands are values
	dev, ok := s.Transport.ActiveDevice(ctx)
	if !ok {
		return ErrNotConnected
	}
	return Apply(ctx, dev, c)
}
