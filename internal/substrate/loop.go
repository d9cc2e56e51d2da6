// Package substrate provides the single event loop that owns a script
// runtime and serializes every callback into it.
//
// Blocking I/O runs on goroutines started with Go; their completions are
// posted back to the loop, so script code, timers and network callbacks never
// run concurrently. Stop cancels outstanding I/O, waits for it to report,
// drains jobs already queued and only then halts the loop.
package substrate

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/GriffinCanCode/valkyrie/internal/infrastructure/logging"
	"github.com/GriffinCanCode/valkyrie/internal/infrastructure/monitoring"
	"github.com/dop251/goja"
	"github.com/dop251/goja_nodejs/eventloop"
	"go.uber.org/zap"
)

// ErrStopped is returned when work is submitted to a stopped loop.
var ErrStopped = errors.New("substrate: loop stopped")

// DefaultDrainTimeout bounds how long Stop waits for queued jobs.
const DefaultDrainTimeout = 5 * time.Second

// Job runs on the loop with exclusive access to the runtime.
type Job func(vm *goja.Runtime)

// Op performs blocking work off the loop and returns the job that delivers
// its result. A nil job means there is nothing to deliver.
type Op func(ctx context.Context) Job

// Timer is a handle to a scheduled one-shot job.
type Timer struct {
	t *eventloop.Timer
}

// Loop is the logic-side event loop.
type Loop struct {
	el      *eventloop.EventLoop
	logger  *logging.Logger
	metrics *monitoring.Metrics

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	started  bool
	stopped  bool
	inflight sync.WaitGroup
	vm       *goja.Runtime

	drainTimeout time.Duration
	stopOnce     sync.Once
}

// New creates a loop. It does not start running until Start.
func New(logger *logging.Logger, metrics *monitoring.Metrics) *Loop {
	ctx, cancel := context.WithCancel(context.Background())
	return &Loop{
		el:           eventloop.NewEventLoop(eventloop.EnableConsole(false)),
		logger:       logging.OrNop(logger).Named("substrate"),
		metrics:      metrics,
		ctx:          ctx,
		cancel:       cancel,
		drainTimeout: DefaultDrainTimeout,
	}
}

// SetDrainTimeout overrides DefaultDrainTimeout. Must be called before Stop.
func (l *Loop) SetDrainTimeout(d time.Duration) {
	l.drainTimeout = d
}

// Context is cancelled when Stop begins. I/O goroutines should honour it.
func (l *Loop) Context() context.Context {
	return l.ctx
}

// Start runs the loop in the background.
func (l *Loop) Start() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.stopped {
		return ErrStopped
	}
	if l.started {
		return nil
	}
	l.started = true
	l.el.Start()

	l.el.RunOnLoop(func(vm *goja.Runtime) {
		l.mu.Lock()
		l.vm = vm
		l.mu.Unlock()
	})

	l.logger.Debug("loop started")
	return nil
}

// Post queues job to run on the loop. Jobs run in submission order.
func (l *Loop) Post(job Job) error {
	l.mu.Lock()
	stopped := l.stopped
	l.mu.Unlock()
	if stopped {
		return ErrStopped
	}

	l.el.RunOnLoop(func(vm *goja.Runtime) {
		l.safeRun(job, vm)
	})
	return nil
}

// Go runs op on its own goroutine and posts the job it returns. The op's
// context is cancelled when the loop stops; Stop waits for every op to
// return before draining.
func (l *Loop) Go(op Op) error {
	return l.Stream(func(ctx context.Context, emit func(Job)) {
		if job := op(ctx); job != nil {
			emit(job)
		}
	})
}

// Stream runs producer on its own goroutine. Every job passed to emit is
// posted to the loop in emission order. Like Go, the producer is tracked:
// Stop cancels ctx and waits for producer to return.
func (l *Loop) Stream(producer func(ctx context.Context, emit func(Job))) error {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return ErrStopped
	}
	l.inflight.Add(1)
	l.mu.Unlock()

	l.metrics.PendingAdd(1)
	go func() {
		defer l.inflight.Done()
		defer l.metrics.PendingAdd(-1)

		// Emitted jobs are delivered even while stopping so every
		// operation reports before the loop halts.
		producer(l.ctx, func(job Job) {
			l.el.RunOnLoop(func(vm *goja.Runtime) {
				l.safeRun(job, vm)
			})
		})
	}()
	return nil
}

// After schedules a one-shot job after d.
func (l *Loop) After(d time.Duration, job Job) (*Timer, error) {
	l.mu.Lock()
	stopped := l.stopped
	l.mu.Unlock()
	if stopped {
		return nil, ErrStopped
	}

	t := l.el.SetTimeout(func(vm *goja.Runtime) {
		l.safeRun(job, vm)
	}, d)
	return &Timer{t: t}, nil
}

// Cancel stops a timer that has not fired yet.
func (l *Loop) Cancel(t *Timer) {
	if t == nil || t.t == nil {
		return
	}
	l.el.ClearTimeout(t.t)
}

// Call runs job on the loop and waits for it to finish or ctx to end.
// Must not be called from the loop itself.
func (l *Loop) Call(ctx context.Context, job Job) error {
	done := make(chan struct{})
	if err := l.Post(func(vm *goja.Runtime) {
		defer close(done)
		job(vm)
	}); err != nil {
		return err
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stop cancels in-flight I/O, waits for it, drains queued jobs and halts
// the loop. Safe to call more than once and from any goroutine except the
// loop itself.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		l.mu.Lock()
		l.stopped = true
		started := l.started
		l.mu.Unlock()

		l.cancel()
		l.inflight.Wait()

		if !started {
			return
		}

		drained := make(chan struct{})
		l.el.RunOnLoop(func(*goja.Runtime) { close(drained) })

		select {
		case <-drained:
		case <-time.After(l.drainTimeout):
			l.logger.Warn("loop drain timed out, interrupting script", zap.Duration("timeout", l.drainTimeout))
			l.mu.Lock()
			vm := l.vm
			l.mu.Unlock()
			if vm != nil {
				vm.Interrupt("runtime stopping")
			}
		}

		l.el.Stop()
		l.logger.Debug("loop stopped")
	})
}

// Stopped reports whether Stop has begun.
func (l *Loop) Stopped() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stopped
}

// safeRun keeps a panicking job from killing the loop goroutine.
func (l *Loop) safeRun(job Job, vm *goja.Runtime) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("job panicked", zap.Any("panic", r))
		}
	}()
	job(vm)
}
