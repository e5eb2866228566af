// Package worker drains the command queue and pushes each command to the
// device. One dispatcher runs per pad so commands reach the device in the
// order the pad produced them.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/padcal/internal/domain/model"
	"github.com/okian/padcal/pkg/logger"
	"github.com/okian/padcal/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultCommandTimeout = 2 * time.Second
)

// Command abstracts what the dispatcher reads off the queue.
type Command = model.Command

// Sink delivers one command to the device.
type Sink interface {
	Apply(ctx context.Context, c Command) error
}

// Queue defines how the dispatcher receives commands.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Command
}

// Worker processes commands until stopped.
type Worker interface {
	// Run starts the worker loop until ctx is canceled.
	Run(ctx context.Context)

	// Shutdown gracefully stops the worker.
	Shutdown(ctx context.Context) error
}

// Dispatcher implements Worker for device commands. Failed writes are logged
// and counted, never retried: the next poll reconciles.
type Dispatcher struct {
	queue          Queue
	sink           Sink
	name           string
	commandTimeout time.Duration
	onDone         func(Command, error)

	// Shutdown control
	shutdown chan struct{}
	done     chan struct{}

	logger logger.Logger
}

// NewDispatcher creates a dispatcher with configuration options.
func NewDispatcher(queue Queue, sink Sink, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		queue:          queue,
		sink:           sink,
		name:           "dispatcher",
		commandTimeout: defaultCommandTimeout,
		shutdown:       make(chan struct{}),
		done:           make(chan struct{}),
		logger:         logger.Get().Named("dispatcher"),
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Run starts the dispatcher loop.
func (d *Dispatcher) Run(ctx context.Context) {
	defer close(d.done)

	commands := d.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.shutdown:
			return
		case c, ok := <-commands:
			if !ok {
				return
			}
			err := d.process(ctx, c)
			if d.onDone != nil {
				d.onDone(c, err)
			}
		}
	}
}

// Shutdown gracefully stops the dispatcher.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	select {
	case <-d.shutdown:
	default:
		close(d.shutdown)
	}

	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		d.logger.Warn(ctx, "shutdown timed out")
		return fmt.Errorf("shutdown timed out: %w", ctx.Err())
	}
}

// Done is closed once Run has returned.
func (d *Dispatcher) Done() <-chan struct{} {
	return d.done
}

func (d *Dispatcher) process(ctx context.Context, c Command) error { //nolint:gocritic // hugeParam: Command must be passed by value for channel semantics
	start := time.Now()
	defer func() {
		metrics.RecordCommandLatency(float64(time.Since(start).Milliseconds()))
	}()

	cctx, cancel := context.WithTimeout(ctx, d.commandTimeout)
	defer cancel()

	if err := d.sink.Apply(cctx, c); err != nil {
		metrics.RecordCommandFailed(c.Kind.String())
		metrics.RecordErrorByComponent("dispatcher", "device_write")
		d.logger.Error(ctx, "device write failed",
			logger.String("command_id", c.ID),
			logger.String("kind", c.Kind.String()),
			logger.Int("sensor", c.Sensor),
			logger.Error(err),
		)
		return fmt.Errorf("apply %s %s: %w", c.Kind, c.ID, err)
	}

	d.logger.Debug(ctx, "command applied",
		logger.String("command_id", c.ID),
		logger.String("kind", c.Kind.String()),
	)
	return nil
}
