// Package sim is an in-memory pad used for demos and tests. It keeps its own
// copy of the calibration so readback behaves like real firmware.
package sim

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/okian/padcal/internal/adapters/device"
	"github.com/okian/padcal/internal/domain/release"
	"github.com/okian/padcal/internal/domain/threshold"
)

// Pad is a simulated device.
type Pad struct {
	mu       sync.Mutex
	name     string
	values   []float64
	pairs    []threshold.Pair
	buttons  []int
	maxBtn   int
	mode     release.Mode
	ratio    float64
	wave     bool
	start    time.Time
	failNext error
	writes   int
}

// Option configures a simulated pad.
type Option func(*Pad)

// WithName sets the reported device name.
func WithName(name string) Option {
	return func(p *Pad) {
		if name != "" {
			p.name = name
		}
	}
}

// WithWave makes readings follow a slow sine per sensor instead of the
// values set with SetValue.
func WithWave() Option {
	return func(p *Pad) {
		p.wave = true
	}
}

// New returns a simulated pad with sensors sensors accepting buttons up to maxButton.
func New(sensors, maxButton int, opts ...Option) *Pad {
	sensors = max(sensors, 0)
	p := &Pad{
		name:    "simulated pad",
		values:  make([]float64, sensors),
		pairs:   make([]threshold.Pair, sensors),
		buttons: make([]int, sensors),
		maxBtn:  maxButton,
		mode:    release.None,
		ratio:   release.DefaultRatio,
		start:   time.Now(),
	}
	for i := range p.pairs {
		p.pairs[i] = threshold.Pair{Activation: 0.5, Release: 0.5}
		p.buttons[i] = i + 1
		if maxButton > 0 && p.buttons[i] > maxButton {
			p.buttons[i] = 0
		}
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

var _ device.Device = (*Pad)(nil)
var _ device.ConfigReader = (*Pad)(nil)

// Info implements device.Device.
func (p *Pad) Info() device.Info {
	p.mu.Lock()
	defer p.mu.Unlock()
	return device.Info{Name: p.name, Transport: "sim", Sensors: len(p.values), Buttons: p.maxBtn}
}

// SensorCount implements device.Device.
func (p *Pad) SensorCount(context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.values), nil
}

// RawValue implements device.Device.
func (p *Pad) RawValue(_ context.Context, i int) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(i); err != nil {
		return 0, err
	}
	if p.wave {
		t := time.Since(p.start).Seconds()
		return 0.5 + 0.5*math.Sin(t*2+float64(i)), nil
	}
	return p.values[i], nil
}

// SetValue sets the reading sensor i reports.
func (p *Pad) SetValue(i int, v float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i >= 0 && i < len(p.values) {
		p.values[i] = v
	}
}

// SetThreshold implements device.Device.
func (p *Pad) SetThreshold(_ context.Context, i int, activation, rel float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.write(i); err != nil {
		return err
	}
	p.pairs[i] = threshold.Pair{Activation: activation, Release: rel}.Normalize()
	return nil
}

// SetReleaseMode implements device.Device.
func (p *Pad) SetReleaseMode(_ context.Context, mode release.Mode, ratio float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.write(-1); err != nil {
		return err
	}
	p.mode, p.ratio = mode, threshold.Clamp01(ratio)
	return nil
}

// SetButtonMapping implements device.Device.
func (p *Pad) SetButtonMapping(_ context.Context, i, button int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if button < 0 || (p.maxBtn > 0 && button > p.maxBtn) {
		return fmt.Errorf("button %d out of range", button)
	}
	if err := p.write(i); err != nil {
		return err
	}
	p.buttons[i] = button
	return nil
}

// SensorConfig implements device.ConfigReader.
func (p *Pad) SensorConfig(_ context.Context, i int) (threshold.Pair, int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.check(i); err != nil {
		return threshold.Pair{}, 0, err
	}
	return p.pairs[i], p.buttons[i], nil
}

// ReleaseConfig implements device.ConfigReader.
func (p *Pad) ReleaseConfig(context.Context) (release.Mode, float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode, p.ratio, nil
}

// FailNext makes the next write return err.
func (p *Pad) FailNext(err error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failNext = err
}

// Writes returns the number of successful writes so far.
func (p *Pad) Writes() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.writes
}

func (p *Pad) check(i int) error {
	if i < 0 || i >= len(p.values) {
		return fmt.Errorf("%w: %d", device.ErrUnknownSensor, i)
	}
	return nil
}

// write gates a device write on sensor i; i < 0 is a pad-wide write.
func (p *Pad) write(i int) error {
	if i >= 0 {
		if err := p.check(i); err != nil {
			return err
		}
	}
	if err := p.failNext; err != nil {
		p.failNext = nil
		return err
	}
	p.writes++
	return nil
}
