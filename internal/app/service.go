// Package service owns the pad calibration model and drives it: it polls
// the active device, serializes calibration edits with poll ticks and ships
// the resulting device commands through the command queue.
package service

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/padcal/internal/adapters/device"
	cmdqueue "github.com/okian/padcal/internal/adapters/mq/queue"
	dispatcher "github.com/okian/padcal/internal/adapters/mq/worker"
	"github.com/okian/padcal/internal/adapters/repository"
	"github.com/okian/padcal/internal/domain/history"
	"github.com/okian/padcal/internal/domain/model"
	"github.com/okian/padcal/internal/domain/pad"
	"github.com/okian/padcal/internal/domain/threshold"
	"github.com/okian/padcal/pkg/logger"
	"github.com/okian/padcal/pkg/metrics"
)

// Default service configuration.
const (
	defaultPollInterval      = 10 * time.Millisecond
	defaultSessionTimeout    = 30 * time.Second
	defaultReconcileInterval = time.Second
	defaultQueueSize         = 256
	shutdownTimeout          = 5 * time.Second
	rateWindow               = time.Second
)

// Publisher receives pad activity worth broadcasting.
type Publisher interface {
	PublishButton(ctx context.Context, button int, pressed bool) error
	PublishThresholds(ctx context.Context, sensor int, pair threshold.Pair) error
}

// Service serializes every access to the pad behind one mutex so a poll
// tick runs to completion before any reader or editor sees the pad.
type Service struct {
	mu sync.Mutex

	// Core components
	pad        *pad.Pad
	transport  device.Transport
	queue      *cmdqueue.InMemoryQueue
	dispatcher *dispatcher.Dispatcher
	store      repository.Store
	publisher  Publisher

	// Configuration
	pollInterval      time.Duration
	sessionTimeout    time.Duration
	reconcileInterval time.Duration
	historySize       int
	queueSize         int

	// Device state
	active        device.Device
	info          device.Info
	lastReconcile time.Time
	inFlight      atomic.Int64
	dropped       atomic.Int64
	failed        atomic.Int64

	// generation counts dispatched edits; readback started under an older
	// generation is never adopted.
	generation atomic.Uint64

	// Poll statistics
	ticks       uint64
	rateStart   time.Time
	rateTicks   int
	pollingRate float64

	// State
	started bool
	stopCh  chan struct{}
	loopEnd chan struct{}
	cancel  context.CancelFunc

	logger logger.Logger
}

// New constructs a Service. Without WithTransport it never sees a device.
func New(opts ...Option) *Service {
	s := &Service{
		transport:         device.NewSwitch(nil),
		pollInterval:      defaultPollInterval,
		sessionTimeout:    defaultSessionTimeout,
		reconcileInterval: defaultReconcileInterval,
		historySize:       history.DefaultCapacity,
		queueSize:         defaultQueueSize,
		stopCh:            make(chan struct{}),
		loopEnd:           make(chan struct{}),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	s.pad = pad.New(0, pad.WithHistorySize(s.historySize))
	s.queue = cmdqueue.NewInMemoryQueue(cmdqueue.WithCapacity(s.queueSize))
	s.dispatcher = dispatcher.NewDispatcher(s.queue, device.Sink{Transport: s.transport},
		dispatcher.WithOnDone(s.commandDone),
	)
	return s
}

// Start launches the dispatcher and the poll loop.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	go s.dispatcher.Run(runCtx)
	go s.loop(runCtx)

	s.started = true
	s.logger.Info(ctx, "calibration service started",
		logger.Int("poll_interval_ms", int(s.pollInterval.Milliseconds())),
		logger.Int("queue_size", s.queueSize),
		logger.Int("history_size", s.historySize),
	)
	return nil
}

// Stop halts the poll loop, drains queued commands and stops the dispatcher.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	close(s.stopCh)
	s.mu.Unlock()

	ctx := context.Background()
	s.logger.Info(ctx, "stopping calibration service...")
	<-s.loopEnd

	_ = s.queue.Close()
	select {
	case <-s.dispatcher.Done():
	case <-time.After(shutdownTimeout):
		s.logger.Warn(ctx, "dispatcher did not drain in time")
	}
	s.cancel()
	s.logger.Info(ctx, "calibration service stopped")
}

func (s *Service) loop(ctx context.Context) {
	defer close(s.loopEnd)
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil && !isNoDevice(err) {
				s.logger.Warn(ctx, "poll tick failed", logger.Error(err))
				metrics.RecordErrorByComponent("service", "poll")
			}
		}
	}
}

// dispatch queues cmds for the device. A full queue drops the command; the
// next reconcile corrects the pad. Caller holds s.mu so commands reach the
// queue in the order their edits were applied to the pad.
func (s *Service) dispatch(ctx context.Context, cmds []model.Command) {
	if len(cmds) == 0 {
		return
	}
	s.generation.Add(1)
	for _, c := range cmds {
		s.inFlight.Add(1)
		if !s.queue.Enqueue(ctx, c) {
			s.inFlight.Add(-1)
			s.dropped.Add(1)
			s.logger.Warn(ctx, "device command dropped",
				logger.String("command_id", c.ID),
				logger.String("kind", c.Kind.String()),
			)
		}
	}
}

func (s *Service) commandDone(_ model.Command, err error) {
	s.inFlight.Add(-1)
	if err != nil {
		s.failed.Add(1)
	}
}

// publishThresholds forwards committed thresholds, best effort.
func (s *Service) publishThresholds(ctx context.Context, cmds []model.Command) {
	if s.publisher == nil {
		return
	}
	for _, c := range cmds {
		if c.Kind != model.SetThreshold {
			continue
		}
		pair := threshold.Pair{Activation: c.Activation, Release: c.Release}
		if err := s.publisher.PublishThresholds(ctx, c.Sensor, pair); err != nil {
			s.logger.Debug(ctx, "publish thresholds failed", logger.Int("sensor", c.Sensor), logger.Error(err))
			metrics.RecordErrorByComponent("publisher", "thresholds")
		}
	}
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx := context.Background()
	mode, ratio := s.pad.ReleaseMode()
	_, dragging := s.pad.Dragging()
	stats := map[string]interface{}{
		"started":          s.started,
		"connected":        s.active != nil,
		"sensors":          s.pad.Count(),
		"releaseMode":      mode.String(),
		"globalRatio":      ratio,
		"pollingRate":      s.pollingRate,
		"ticks":            s.ticks,
		"sessionActive":    dragging,
		"queueSize":        s.queueSize,
		"queueLength":      s.queue.Len(ctx),
		"commandsInFlight": s.inFlight.Load(),
		"commandsDropped":  s.dropped.Load(),
		"commandsFailed":   s.failed.Load(),
	}
	if s.active != nil {
		stats["device"] = s.info
	}
	return stats
}
