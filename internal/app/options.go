package service

import (
	"time"

	"github.com/okian/padcal/internal/adapters/device"
	"github.com/okian/padcal/internal/adapters/repository"
	"github.com/okian/padcal/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithTransport sets where the active device comes from.
func WithTransport(t device.Transport) Option {
	return func(s *Service) {
		if t != nil {
			s.transport = t
		}
	}
}

// WithPollInterval sets the poll tick period.
func WithPollInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithSessionTimeout sets how long a drag may sit idle before it is
// cancelled. Zero disables the timeout.
func WithSessionTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.sessionTimeout = d
		}
	}
}

// WithReconcileInterval sets how often device readback is compared with the
// pad while no commands are in flight.
func WithReconcileInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.reconcileInterval = d
		}
	}
}

// WithHistorySize sets the per-sensor sample history capacity.
func WithHistorySize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.historySize = n
		}
	}
}

// WithQueueSize sets the capacity of the device command queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithStore enables named profile save/load.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		s.store = store
	}
}

// WithPublisher forwards button transitions and committed thresholds.
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(logger logger.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}
