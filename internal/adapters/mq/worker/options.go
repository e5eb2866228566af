package worker

import (
	"time"

	"github.com/okian/padcal/pkg/logger"
)

// Option applies a configuration option to the Dispatcher.
type Option func(*Dispatcher)

// WithName sets the dispatcher name for identification and logging.
func WithName(name string) Option {
	return func(d *Dispatcher) {
		if name != "" {
			d.name = name
			d.logger = d.logger.Named(name)
		}
	}
}

// WithLogger sets a custom logger for the dispatcher.
func WithLogger(logger logger.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithCommandTimeout bounds each device write.
func WithCommandTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.commandTimeout = timeout
		}
	}
}

// WithOnDone registers a callback run after every command, successful or not.
func WithOnDone(fn func(Command, error)) Option {
	return func(d *Dispatcher) {
		d.onDone = fn
	}
}
