package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/okian/padcal/internal/adapters/device"
	"github.com/okian/padcal/internal/domain/release"
	"github.com/okian/padcal/internal/domain/threshold"
	"github.com/okian/padcal/pkg/logger"
	"github.com/okian/padcal/pkg/metrics"
)

func isNoDevice(err error) bool {
	return errors.Is(err, ErrNoDevice) || errors.Is(err, device.ErrNotConnected)
}

// readback is the calibration a device reported, taken outside s.mu.
type readback struct {
	sensors int
	// gen is the edit generation the readback was started under.
	gen uint64
	// config is false when the device has no ConfigReader or the readback
	// was skipped.
	config  bool
	modeOK  bool
	mode    release.Mode
	ratio   float64
	entries map[int]sensorConfig
}

type sensorConfig struct {
	pair   threshold.Pair
	button int
}

// Tick runs one poll step: resolve the device, read every sensor, update
// the pad and reconcile it with device readback when nothing is in flight.
// Device I/O runs without s.mu held; the lock only covers applying results.
func (s *Service) Tick(ctx context.Context) error {
	start := time.Now()

	dev, err := s.attach(ctx)
	if err != nil {
		return err
	}
	values, err := device.Sample(ctx, dev)
	if err != nil {
		if errors.Is(err, device.ErrNotConnected) {
			s.lost(ctx, dev)
		}
		return fmt.Errorf("sample: %w", err)
	}

	var rb *readback
	if s.reconcileDue(start) {
		rb = s.takeReadback(ctx, dev)
	}

	s.mu.Lock()
	if s.active != dev {
		s.mu.Unlock()
		return ErrNoDevice
	}
	if n := s.pad.Count(); len(values) != n {
		s.mu.Unlock()
		metrics.RecordErrorByComponent("service", "sample_length")
		return fmt.Errorf("sample: %w: %d values for %d sensors", device.ErrSampleLength, len(values), n)
	}

	before := s.pad.ButtonsPressed()
	transitions := s.pad.Update(values)
	after := s.pad.ButtonsPressed()

	if s.pad.CancelStale(s.sessionTimeout) {
		metrics.RecordSessionCancelled("timeout")
		s.logger.Info(ctx, "calibration drag timed out")
	}
	if rb != nil {
		s.reconcile(ctx, rb)
	}
	s.tickStats(start)
	s.mu.Unlock()

	for i, v := range values {
		metrics.UpdateSensorValue(i, v)
	}
	for _, t := range transitions {
		metrics.RecordSensorTransition(t.Sensor, t.Pressed)
	}
	s.publishButtons(ctx, before, after)
	metrics.RecordPollTick(float64(time.Since(start).Microseconds()) / 1000)
	return nil
}

// attach resolves the active device and handles connect, disconnect and
// device swaps. The probe of a new device runs without s.mu held.
func (s *Service) attach(ctx context.Context) (device.Device, error) {
	dev, ok := s.transport.ActiveDevice(ctx)

	s.mu.Lock()
	switch {
	case !ok:
		if s.active != nil {
			s.detach(ctx)
		}
		s.mu.Unlock()
		return nil, ErrNoDevice
	case dev == s.active:
		s.mu.Unlock()
		return dev, nil
	}
	gen := s.generation.Load()
	s.mu.Unlock()

	n, err := dev.SensorCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: sensor count: %w", ErrNoDevice, err)
	}
	rb := s.readConfig(ctx, dev, n, gen)

	s.mu.Lock()
	defer s.mu.Unlock()
	if dev == s.active {
		return dev, nil
	}
	if s.active != nil {
		s.logger.Info(ctx, "device replaced", logger.String("previous", s.info.Name))
		if s.pad.CancelDrag() {
			metrics.RecordSessionCancelled("disconnect")
		}
	}
	s.active = dev
	s.info = dev.Info()
	s.pad.SetButtonLimit(s.info.Buttons)
	s.resize(ctx, n)
	s.adopt(rb)
	s.lastReconcile = time.Now()
	metrics.UpdateDeviceConnected(true)
	s.logger.Info(ctx, "device connected",
		logger.String("name", s.info.Name),
		logger.String("transport", s.info.Transport),
		logger.Int("sensors", n),
		logger.Int("buttons", s.info.Buttons),
	)
	return dev, nil
}

// lost detaches dev after its transport gave up on it.
func (s *Service) lost(ctx context.Context, dev device.Device) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == dev {
		s.detach(ctx)
	}
}

// detach forgets the active device. Caller holds s.mu.
func (s *Service) detach(ctx context.Context) {
	if s.pad.CancelDrag() {
		metrics.RecordSessionCancelled("disconnect")
	}
	s.logger.Warn(ctx, "device disconnected", logger.String("name", s.info.Name))
	s.active = nil
	s.info = device.Info{}
	s.rateTicks, s.pollingRate = 0, 0
	metrics.UpdateDeviceConnected(false)
	metrics.UpdatePollingRate(0)
}

// resize adapts the pad to a new sensor count, keeping surviving sensors.
// Caller holds s.mu.
func (s *Service) resize(ctx context.Context, n int) {
	if n == s.pad.Count() {
		return
	}
	s.logger.Info(ctx, "sensor count changed", logger.Int("from", s.pad.Count()), logger.Int("to", n))
	s.pad.Resize(n)
	metrics.ResetSensorSeries()
	metrics.UpdateSensorCount(n)
}

// reconcileDue reports whether a readback is worth taking this tick.
func (s *Service) reconcileDue(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastReconcile) >= s.reconcileInterval
}

// takeReadback queries the device's sensor count and, when no edit is pending,
// its stored calibration.
func (s *Service) takeReadback(ctx context.Context, dev device.Device) *readback {
	n, err := dev.SensorCount(ctx)
	if err != nil {
		s.logger.Debug(ctx, "sensor count readback failed", logger.Error(err))
		return nil
	}
	s.mu.Lock()
	_, dragging := s.pad.Dragging()
	idle := s.inFlight.Load() == 0 && !dragging
	gen := s.generation.Load()
	s.mu.Unlock()
	if !idle {
		return &readback{sensors: n}
	}
	return s.readConfig(ctx, dev, n, gen)
}

// readConfig reads the stored calibration of n sensors from dev, if it can
// report one. gen is the edit generation observed before the first read.
func (s *Service) readConfig(ctx context.Context, dev device.Device, n int, gen uint64) *readback {
	rb := &readback{sensors: n, gen: gen}
	reader, ok := dev.(device.ConfigReader)
	if !ok {
		return rb
	}
	rb.config = true
	if mode, ratio, err := reader.ReleaseConfig(ctx); err == nil {
		rb.modeOK, rb.mode, rb.ratio = true, mode, ratio
	}
	rb.entries = make(map[int]sensorConfig, n)
	for i := range n {
		pair, button, err := reader.SensorConfig(ctx, i)
		if err != nil {
			s.logger.Debug(ctx, "sensor readback failed", logger.Int("sensor", i), logger.Error(err))
			continue
		}
		rb.entries[i] = sensorConfig{pair: pair, button: button}
	}
	return rb
}

// adopt loads a readback into the pad. Caller holds s.mu.
func (s *Service) adopt(rb *readback) {
	if !rb.config {
		return
	}
	if rb.modeOK {
		_ = s.pad.SyncRelease(rb.mode, rb.ratio)
		metrics.UpdateReleaseMode(rb.mode.String(), releaseNames())
	}
	for i, e := range rb.entries {
		_ = s.pad.SyncSensor(i, e.pair, e.button)
	}
}

// reconcile corrects the pad from device readback. Calibration is only
// adopted when no edit was committed since the readback started, nothing is
// in flight and no drag is active, so pending edits are never overwritten.
// Caller holds s.mu.
func (s *Service) reconcile(ctx context.Context, rb *readback) {
	s.lastReconcile = time.Now()
	s.resize(ctx, rb.sensors)
	if !rb.config || rb.gen != s.generation.Load() || s.inFlight.Load() > 0 {
		return
	}
	if _, dragging := s.pad.Dragging(); dragging {
		return
	}
	before := s.pad.Profile()
	s.adopt(rb)
	after := s.pad.Profile()
	if before.ReleaseMode != after.ReleaseMode ||
		!maps.Equal(before.Sensors, after.Sensors) ||
		!maps.Equal(before.Mapping, after.Mapping) {
		s.logger.Info(ctx, "pad reconciled from device readback")
	}
}

func (s *Service) tickStats(now time.Time) {
	s.ticks++
	if s.rateStart.IsZero() {
		s.rateStart = now
	}
	s.rateTicks++
	if elapsed := now.Sub(s.rateStart); elapsed >= rateWindow {
		s.pollingRate = float64(s.rateTicks) / elapsed.Seconds()
		s.rateTicks = 0
		s.rateStart = now
		metrics.UpdatePollingRate(s.pollingRate)
	}
}

// publishButtons reports button state changes between two aggregations.
func (s *Service) publishButtons(ctx context.Context, before, after map[int]bool) {
	for b, pressed := range after {
		if before[b] == pressed {
			continue
		}
		metrics.UpdateButtonPressed(b, pressed)
		if s.publisher == nil {
			continue
		}
		if err := s.publisher.PublishButton(ctx, b, pressed); err != nil {
			s.logger.Debug(ctx, "publish button failed", logger.Int("button", b), logger.Error(err))
			metrics.RecordErrorByComponent("publisher", "button")
		}
	}
}

// lockAttached attaches the active device and, on success, returns with
// s.mu held.
func (s *Service) lockAttached(ctx context.Context) error {
	if _, err := s.attach(ctx); err != nil {
		return err
	}
	s.mu.Lock()
	if s.active == nil {
		s.mu.Unlock()
		return ErrNoDevice
	}
	return nil
}
