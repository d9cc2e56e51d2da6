package view

import (
	"context"
	"sync"

	"github.com/GriffinCanCode/valkyrie/internal/infrastructure/logging"
	"go.uber.org/zap"
)

// dispatcher is the UI loop: a bounded FIFO of closures run on the goroutine
// that calls run.
type dispatcher struct {
	jobs   chan func()
	done   chan struct{}
	once   sync.Once
	logger *logging.Logger
}

func newDispatcher(size int, logger *logging.Logger) *dispatcher {
	if size <= 0 {
		size = DefaultDispatchSize
	}
	return &dispatcher{
		jobs:   make(chan func(), size),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Dispatch queues fn. It blocks while the queue is full until ctx ends or
// the view terminates.
func (d *dispatcher) Dispatch(ctx context.Context, fn func()) error {
	select {
	case <-d.done:
		return ErrTerminated
	default:
	}
	select {
	case d.jobs <- fn:
		return nil
	case <-d.done:
		return ErrTerminated
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Terminate stops the loop. Queued closures are discarded.
func (d *dispatcher) Terminate() {
	d.once.Do(func() { close(d.done) })
}

// Done is closed after Terminate.
func (d *dispatcher) Done() <-chan struct{} {
	return d.done
}

// run executes closures until ctx ends, Terminate is called or fail yields.
func (d *dispatcher) run(ctx context.Context, fail <-chan error) error {
	defer d.Terminate()
	for {
		select {
		case fn := <-d.jobs:
			d.invoke(fn)
		case err := <-fail:
			return err
		case <-ctx.Done():
			return nil
		case <-d.done:
			return nil
		}
	}
}

func (d *dispatcher) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("ui job panicked", zap.Any("panic", r))
		}
	}()
	fn()
}
