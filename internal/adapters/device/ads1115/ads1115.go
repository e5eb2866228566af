// Package ads1115 reads pad sensors from an ADS1115 I2C ADC. The chip has no
// notion of thresholds, so calibration writes are kept host-side and served
// back through device.ConfigReader.
package ads1115

import (
	"context"
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/host/v3"

	"github.com/okian/padcal/internal/adapters/device"
	"github.com/okian/padcal/internal/domain/release"
	"github.com/okian/padcal/internal/domain/threshold"
)

const (
	pointerConv   = 0x00
	pointerConfig = 0x01

	// DefaultAddress is the ADDR-to-GND slave address.
	DefaultAddress = 0x48
	// fullScale is the positive code limit of a 16-bit signed conversion.
	fullScale = 32767.0
)

// Options selects the bus, address and channels.
type Options struct {
	Bus        string
	Address    uint16
	Channels   []int
	SampleRate int
}

// tx is the slice of i2c.Dev the driver uses.
type tx interface {
	Tx(w, r []byte) error
}

// Pad is an ADS1115-backed pad.
type Pad struct {
	mu         sync.Mutex
	dev        tx
	bus        i2c.BusCloser
	channels   []int
	sampleRate int
	sleep      func(time.Duration)

	pairs   []threshold.Pair
	buttons []int
	mode    release.Mode
	ratio   float64
}

var (
	_ device.Device       = (*Pad)(nil)
	_ device.ConfigReader = (*Pad)(nil)
)

// Open initializes the host drivers and opens the I2C bus.
func Open(opts Options) (*Pad, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("host init: %w", err)
	}
	bus, err := i2creg.Open(opts.Bus)
	if err != nil {
		return nil, fmt.Errorf("open i2c: %w", err)
	}
	addr := opts.Address
	if addr == 0 {
		addr = DefaultAddress
	}
	p, err := newPad(&i2c.Dev{Addr: addr, Bus: bus}, opts.Channels, opts.SampleRate)
	if err != nil {
		_ = bus.Close()
		return nil, err
	}
	p.bus = bus
	return p, nil
}

func newPad(dev tx, channels []int, sampleRate int) (*Pad, error) {
	if len(channels) == 0 {
		channels = []int{0, 1, 2, 3}
	}
	for _, ch := range channels {
		if ch < 0 || ch > 3 {
			return nil, fmt.Errorf("invalid channel %d", ch)
		}
	}
	if sampleRate <= 0 {
		sampleRate = 860
	}
	p := &Pad{
		dev:        dev,
		channels:   channels,
		sampleRate: sampleRate,
		sleep:      time.Sleep,
		pairs:      make([]threshold.Pair, len(channels)),
		buttons:    make([]int, len(channels)),
		mode:       release.None,
		ratio:      release.DefaultRatio,
	}
	for i := range p.pairs {
		p.pairs[i] = threshold.Pair{Activation: 0.5, Release: 0.5}
		p.buttons[i] = i + 1
	}
	return p, nil
}

// Close releases the bus.
func (p *Pad) Close() error {
	if p.bus != nil {
		return p.bus.Close()
	}
	return nil
}

// Info implements device.Device.
func (p *Pad) Info() device.Info {
	return device.Info{Name: "ads1115", Transport: "i2c", Sensors: len(p.channels), Buttons: len(p.channels)}
}

// SensorCount implements device.Device.
func (p *Pad) SensorCount(context.Context) (int, error) {
	return len(p.channels), nil
}

// RawValue runs a single-shot conversion on sensor i's channel and scales
// the positive code range to [0,1].
func (p *Pad) RawValue(ctx context.Context, i int) (float64, error) {
	if err := p.check(i); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	msb, lsb := configWord(p.channels[i], p.sampleRate)
	if err := p.dev.Tx([]byte{pointerConfig, msb, lsb}, nil); err != nil {
		return 0, fmt.Errorf("write config: %w", err)
	}
	p.sleep(conversionDelay(p.sampleRate))
	buf := make([]byte, 2)
	if err := p.dev.Tx([]byte{pointerConv}, buf); err != nil {
		return 0, fmt.Errorf("read conv: %w", err)
	}
	raw := int16(buf[0])<<8 | int16(buf[1])
	return threshold.Clamp01(float64(raw) / fullScale), nil
}

func conversionDelay(rate int) time.Duration {
	return time.Duration(1000/rate+1) * time.Millisecond
}

// configWord builds the config register for a single-ended single-shot
// conversion on channel at ±4.096V.
func configWord(channel, rate int) (byte, byte) {
	mux := byte(0x4 + channel)
	pga := byte(0x1)
	var dr byte
	switch rate {
	case 8:
		dr = 0x0
	case 16:
		dr = 0x1
	case 32:
		dr = 0x2
	case 64:
		dr = 0x3
	case 128:
		dr = 0x4
	case 250:
		dr = 0x5
	case 475:
		dr = 0x6
	default:
		dr = 0x7
	}
	var config uint16 = 0x8000 // OS: start conversion
	config |= uint16(mux) << 12
	config |= uint16(pga) << 9
	config |= 1 << 8 // single-shot
	config |= uint16(dr) << 5
	config |= 0x3 // comparator off
	return byte(config >> 8), byte(config & 0xFF)
}

func (p *Pad) check(i int) error {
	if i < 0 || i >= len(p.channels) {
		return fmt.Errorf("%w: %d", device.ErrUnknownSensor, i)
	}
	return nil
}

// SetThreshold implements device.Device.
func (p *Pad) SetThreshold(_ context.Context, i int, activation, rel float64) error {
	if err := p.check(i); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pairs[i] = threshold.Pair{Activation: activation, Release: rel}.Normalize()
	return nil
}

// SetReleaseMode implements device.Device.
func (p *Pad) SetReleaseMode(_ context.Context, mode release.Mode, ratio float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mode, p.ratio = mode, threshold.Clamp01(ratio)
	return nil
}

// SetButtonMapping implements device.Device.
func (p *Pad) SetButtonMapping(_ context.Context, i, button int) error {
	if err := p.check(i); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.buttons[i] = button
	return nil
}

// SensorConfig implements device.ConfigReader.
func (p *Pad) SensorConfig(_ context.Context, i int) (threshold.Pair, int, error) {
	if err := p.check(i); err != nil {
		return threshold.Pair{}, 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pairs[i], p.buttons[i], nil
}

// ReleaseConfig implements device.ConfigReader.
func (p *Pad) ReleaseConfig(context.Context) (release.Mode, float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.mode, p.ratio, nil
}
