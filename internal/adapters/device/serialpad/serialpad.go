// Package serialpad talks to pad firmware over a serial line using a small
// request/response text protocol. Each request is one line; each reply is
// one line, either the echoed verb followed by fields, "OK" or "ERR <reason>".
//
//	C              -> C <sensors> <buttons>
//	R              -> R <v0> <v1> ...
//	T <i> <a> <r>  -> OK
//	M <mode> <ratio> -> OK
//	B <i> <button> -> OK
//	Q <i>          -> Q <i> <a> <r> <button>
//	G              -> G <mode> <ratio>
package serialpad

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jacobsa/go-serial/serial"

	"github.com/okian/padcal/internal/adapters/device"
	"github.com/okian/padcal/internal/domain/release"
	"github.com/okian/padcal/internal/domain/threshold"
)

// ErrProtocol is returned for replies that do not follow the protocol.
var ErrProtocol = errors.New("serial protocol error")

// DefaultReplyTimeout bounds one request/response exchange when the caller's
// context carries no earlier deadline.
const DefaultReplyTimeout = time.Second

// Options selects the port.
type Options struct {
	Port string
	Baud int
	// ReplyTimeout overrides DefaultReplyTimeout when positive.
	ReplyTimeout time.Duration
}

// Option configures a Pad.
type Option func(*Pad)

// WithReplyTimeout bounds each exchange with the firmware.
func WithReplyTimeout(d time.Duration) Option {
	return func(p *Pad) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// Pad is a serial-attached pad.
//
// An exchange that misses its deadline leaves the line out of step with the
// firmware, so the pad closes the stream and every later call fails with
// device.ErrNotConnected.
type Pad struct {
	mu      sync.Mutex
	rwc     io.ReadWriteCloser
	r       *bufio.Reader
	name    string
	timeout time.Duration
	broken  error
	sensors int
	buttons int
}

type reply struct {
	line string
	err  error
}

var (
	_ device.Device       = (*Pad)(nil)
	_ device.Sampler      = (*Pad)(nil)
	_ device.ConfigReader = (*Pad)(nil)
)

// Open opens the serial port and performs the count handshake.
func Open(ctx context.Context, opts Options) (*Pad, error) {
	baud := opts.Baud
	if baud <= 0 {
		baud = 115200
	}
	port, err := serial.Open(serial.OpenOptions{
		PortName:              opts.Port,
		BaudRate:              uint(baud),
		DataBits:              8,
		StopBits:              1,
		MinimumReadSize:       1,
		ParityMode:            serial.PARITY_NONE,
		InterCharacterTimeout: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", opts.Port, err)
	}
	p, err := New(ctx, port, opts.Port, WithReplyTimeout(opts.ReplyTimeout))
	if err != nil {
		_ = port.Close()
		return nil, err
	}
	return p, nil
}

// New wraps an already open stream and performs the count handshake.
func New(ctx context.Context, rwc io.ReadWriteCloser, name string, opts ...Option) (*Pad, error) {
	p := &Pad{rwc: rwc, r: bufio.NewReader(rwc), name: name, timeout: DefaultReplyTimeout}
	for _, opt := range opts {
		opt(p)
	}
	fields, err := p.call(ctx, "C")
	if err != nil {
		return nil, err
	}
	if len(fields) != 2 {
		return nil, fmt.Errorf("%w: count reply %v", ErrProtocol, fields)
	}
	if p.sensors, err = strconv.Atoi(fields[0]); err != nil {
		return nil, fmt.Errorf("%w: sensors %q", ErrProtocol, fields[0])
	}
	if p.buttons, err = strconv.Atoi(fields[1]); err != nil {
		return nil, fmt.Errorf("%w: buttons %q", ErrProtocol, fields[1])
	}
	return p, nil
}

// Close closes the port.
func (p *Pad) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.broken != nil {
		return nil
	}
	return p.teardown(fmt.Errorf("%w: %s closed", device.ErrNotConnected, p.name))
}

// teardown closes the stream for good. Caller holds p.mu.
func (p *Pad) teardown(cause error) error {
	p.broken = cause
	return p.rwc.Close()
}

// call sends one request and returns the reply fields after the echoed verb.
func (p *Pad) call(ctx context.Context, verb string, args ...string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.broken != nil {
		return nil, p.broken
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	line := strings.Join(append([]string{verb}, args...), " ") + "\n"
	done := make(chan reply, 1)
	go func() {
		if _, err := io.WriteString(p.rwc, line); err != nil {
			done <- reply{err: fmt.Errorf("write %s: %w", verb, err)}
			return
		}
		l, err := p.r.ReadString('\n')
		if err != nil {
			err = fmt.Errorf("read %s: %w", verb, err)
		}
		done <- reply{line: l, err: err}
	}()

	var res reply
	select {
	case res = <-done:
	case <-ctx.Done():
		// Closing the stream unblocks the exchange goroutine.
		_ = p.teardown(fmt.Errorf("%w: %s stalled on %s", device.ErrNotConnected, p.name, verb))
		return nil, fmt.Errorf("%s: %w: %w", verb, device.ErrNotConnected, ctx.Err())
	}
	if res.err != nil {
		_ = p.teardown(fmt.Errorf("%w: %w", device.ErrNotConnected, res.err))
		return nil, p.broken
	}
	fields := strings.Fields(res.line)
	switch {
	case len(fields) == 0:
		return nil, fmt.Errorf("%w: empty reply to %s", ErrProtocol, verb)
	case fields[0] == "ERR":
		return nil, fmt.Errorf("device rejected %s: %s", verb, strings.Join(fields[1:], " "))
	case fields[0] == "OK":
		return nil, nil
	case fields[0] != verb:
		return nil, fmt.Errorf("%w: reply %q to %s", ErrProtocol, fields[0], verb)
	}
	return fields[1:], nil
}

func ftoa(v float64) string { return strconv.FormatFloat(v, 'f', 4, 64) }

func (p *Pad) check(i int) error {
	if i < 0 || i >= p.sensors {
		return fmt.Errorf("%w: %d", device.ErrUnknownSensor, i)
	}
	return nil
}

// Info implements device.Device.
func (p *Pad) Info() device.Info {
	return device.Info{Name: p.name, Transport: "serial", Sensors: p.sensors, Buttons: p.buttons}
}

// SensorCount implements device.Device. It fails once the stream is torn
// down so a stalled pad is not attached again.
func (p *Pad) SensorCount(context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.broken != nil {
		return 0, p.broken
	}
	return p.sensors, nil
}

// Sample implements device.Sampler.
func (p *Pad) Sample(ctx context.Context) ([]float64, error) {
	fields, err := p.call(ctx, "R")
	if err != nil {
		return nil, err
	}
	out := make([]float64, len(fields))
	for i, f := range fields {
		if out[i], err = strconv.ParseFloat(f, 64); err != nil {
			return nil, fmt.Errorf("%w: value %q", ErrProtocol, f)
		}
	}
	return out, nil
}

// RawValue implements device.Device.
func (p *Pad) RawValue(ctx context.Context, i int) (float64, error) {
	if err := p.check(i); err != nil {
		return 0, err
	}
	values, err := p.Sample(ctx)
	if err != nil {
		return 0, err
	}
	if i >= len(values) {
		return 0, fmt.Errorf("%w: %d values for sensor %d", ErrProtocol, len(values), i)
	}
	return values[i], nil
}

// SetThreshold implements device.Device.
func (p *Pad) SetThreshold(ctx context.Context, i int, activation, rel float64) error {
	if err := p.check(i); err != nil {
		return err
	}
	_, err := p.call(ctx, "T", strconv.Itoa(i), ftoa(activation), ftoa(rel))
	return err
}

// SetReleaseMode implements device.Device.
func (p *Pad) SetReleaseMode(ctx context.Context, mode release.Mode, ratio float64) error {
	_, err := p.call(ctx, "M", mode.String(), ftoa(ratio))
	return err
}

// SetButtonMapping implements device.Device.
func (p *Pad) SetButtonMapping(ctx context.Context, i, button int) error {
	if err := p.check(i); err != nil {
		return err
	}
	_, err := p.call(ctx, "B", strconv.Itoa(i), strconv.Itoa(button))
	return err
}

// SensorConfig implements device.ConfigReader.
func (p *Pad) SensorConfig(ctx context.Context, i int) (threshold.Pair, int, error) {
	if err := p.check(i); err != nil {
		return threshold.Pair{}, 0, err
	}
	fields, err := p.call(ctx, "Q", strconv.Itoa(i))
	if err != nil {
		return threshold.Pair{}, 0, err
	}
	if len(fields) != 4 {
		return threshold.Pair{}, 0, fmt.Errorf("%w: sensor reply %v", ErrProtocol, fields)
	}
	a, errA := strconv.ParseFloat(fields[1], 64)
	r, errR := strconv.ParseFloat(fields[2], 64)
	b, errB := strconv.Atoi(fields[3])
	if err := errors.Join(errA, errR, errB); err != nil {
		return threshold.Pair{}, 0, fmt.Errorf("%w: %w", ErrProtocol, err)
	}
	return threshold.Pair{Activation: a, Release: r}, b, nil
}

// ReleaseConfig implements device.ConfigReader.
func (p *Pad) ReleaseConfig(ctx context.Context) (release.Mode, float64, error) {
	fields, err := p.call(ctx, "G")
	if err != nil {
		return release.None, 0, err
	}
	if len(fields) != 2 {
		return release.None, 0, fmt.Errorf("%w: release reply %v", ErrProtocol, fields)
	}
	mode, err := release.Parse(fields[0])
	if err != nil {
		return release.None, 0, fmt.Errorf("%w: %w", ErrProtocol, err)
	}
	ratio, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return release.None, 0, fmt.Errorf("%w: ratio %q", ErrProtocol, fields[1])
	}
	return mode, ratio, nil
}
