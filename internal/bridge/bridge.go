package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/GriffinCanCode/valkyrie/internal/infrastructure/logging"
	"github.com/GriffinCanCode/valkyrie/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/valkyrie/internal/shared/id"
	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

var (
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("bridge: closed")
	// ErrMalformedPayload is returned for payloads that are not valid JSON.
	ErrMalformedPayload = errors.New("bridge: malformed payload")
	// ErrNoUI is returned when no UI is attached.
	ErrNoUI = errors.New("bridge: no ui attached")
	// ErrInvalidEvent is returned for event names that are not identifiers.
	ErrInvalidEvent = errors.New("bridge: invalid event name")
)

// DefaultQueueSize is used when Config.QueueSize is not positive.
const DefaultQueueSize = 1024

// Message is one inbound payload.
type Message struct {
	ID        id.MessageID
	Payload   string
	Timestamp time.Time
}

// UI is the outbound side: a loop that runs closures and evaluates script
// in the page. Dispatch must return once ctx is done, even while its queue
// is full.
type UI interface {
	Dispatch(ctx context.Context, fn func()) error
	Eval(js string)
}

// Config sizes the bridge.
type Config struct {
	QueueSize int
}

// Bridge is the only synchronization point between the two loops.
type Bridge struct {
	inbound chan Message
	done    chan struct{}
	// ctx is cancelled by Close and releases blocked outbound dispatches.
	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.RWMutex
	wake func()
	ui   UI

	closeOnce sync.Once
	builtins  *Commands

	logger  *logging.Logger
	metrics *monitoring.Metrics
}

// New creates a bridge. Logger and metrics may be nil.
func New(cfg Config, logger *logging.Logger, metrics *monitoring.Metrics) *Bridge {
	size := cfg.QueueSize
	if size <= 0 {
		size = DefaultQueueSize
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Bridge{
		inbound: make(chan Message, size),
		done:    make(chan struct{}),
		ctx:     ctx,
		cancel:  cancel,
		logger:  logging.OrNop(logger).Named("bridge"),
		metrics: metrics,
	}
}

// SetWake installs the logic-side wake signal. It must be safe to call from
// any goroutine and must not block.
func (b *Bridge) SetWake(fn func()) {
	b.mu.Lock()
	b.wake = fn
	b.mu.Unlock()
}

// AttachUI sets the outbound target.
func (b *Bridge) AttachUI(ui UI) {
	b.mu.Lock()
	b.ui = ui
	b.mu.Unlock()
}

// UseCommands installs the built-in command handler run by Receive.
func (b *Bridge) UseCommands(c *Commands) {
	b.mu.Lock()
	b.builtins = c
	b.mu.Unlock()
}

// Receive is the UI-side native entry point: it validates the payload, runs
// the built-in command handler and forwards the payload to the logic loop.
// Malformed payloads are dropped.
func (b *Bridge) Receive(ctx context.Context, payload string) error {
	if !sonic.ValidString(payload) {
		b.metrics.RecordBridgeDrop("malformed")
		b.logger.Warn("dropping malformed payload", zap.Int("bytes", len(payload)))
		return ErrMalformedPayload
	}

	b.mu.RLock()
	builtins := b.builtins
	b.mu.RUnlock()
	if builtins != nil {
		builtins.Handle(payload)
	}

	_, err := b.Submit(ctx, payload)
	return err
}

// Submit enqueues payload and wakes the logic loop. It blocks while the
// queue is full until ctx ends.
func (b *Bridge) Submit(ctx context.Context, payload string) (id.MessageID, error) {
	select {
	case <-b.done:
		return "", ErrClosed
	default:
	}

	msg := Message{
		ID:        id.NewMessageID(),
		Payload:   payload,
		Timestamp: time.Now(),
	}

	select {
	case b.inbound <- msg:
	case <-b.done:
		return "", ErrClosed
	case <-ctx.Done():
		b.metrics.RecordBridgeDrop("timeout")
		return "", ctx.Err()
	}

	b.metrics.RecordBridgeMessage("inbound")
	b.logger.Debug("message queued", zap.String("message_id", msg.ID.String()))

	b.mu.RLock()
	wake := b.wake
	b.mu.RUnlock()
	if wake != nil {
		wake()
	}
	return msg.ID, nil
}

// Drain pops at most one message without blocking. Called from the logic
// loop in response to a wake.
func (b *Bridge) Drain() (Message, bool) {
	select {
	case msg := <-b.inbound:
		return msg, true
	default:
		return Message{}, false
	}
}

// Pending returns the number of queued messages.
func (b *Bridge) Pending() int {
	return len(b.inbound)
}

// DispatchToUI schedules fn on the UI loop. A call blocked on a full UI
// queue returns ErrClosed when the bridge is closed.
func (b *Bridge) DispatchToUI(fn func()) error {
	select {
	case <-b.done:
		return ErrClosed
	default:
	}

	b.mu.RLock()
	ui := b.ui
	b.mu.RUnlock()
	if ui == nil {
		return ErrNoUI
	}
	if err := ui.Dispatch(b.ctx, fn); err != nil {
		if b.ctx.Err() != nil {
			return ErrClosed
		}
		return err
	}
	b.metrics.RecordBridgeMessage("outbound")
	return nil
}

// Emit calls window.<event>(payload) in the page if such a handler exists.
func (b *Bridge) Emit(event, payload string) error {
	if !ValidEventName(event) {
		return fmt.Errorf("%w: %q", ErrInvalidEvent, event)
	}
	return b.EvalInUI(FormatEvent(event, payload))
}

// EvalInUI evaluates js in the page on the UI loop.
func (b *Bridge) EvalInUI(js string) error {
	b.mu.RLock()
	ui := b.ui
	b.mu.RUnlock()
	if ui == nil {
		return ErrNoUI
	}
	return b.DispatchToUI(func() { ui.Eval(js) })
}

// Close rejects further traffic. Queued messages are discarded.
func (b *Bridge) Close() {
	b.closeOnce.Do(func() {
		close(b.done)
		b.cancel()
		if n := len(b.inbound); n > 0 {
			b.logger.Debug("discarding queued messages", zap.Int("count", n))
		}
	})
}
