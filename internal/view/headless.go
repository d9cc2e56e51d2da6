package view

import (
	"context"
	"sync"

	"github.com/GriffinCanCode/valkyrie/internal/infrastructure/logging"
	"go.uber.org/zap"
)

// Headless is a View with no display. It keeps the current document and
// every evaluated snippet.
type Headless struct {
	*dispatcher

	mu       sync.Mutex
	title    string
	html     string
	evals    []string
	receiver Receiver

	logger *logging.Logger
}

// NewHeadless creates a headless view with a dispatch queue of size.
func NewHeadless(size int, logger *logging.Logger) *Headless {
	logger = logging.OrNop(logger).Named("view")
	return &Headless{
		dispatcher: newDispatcher(size, logger),
		logger:     logger,
	}
}

func (h *Headless) Eval(js string) {
	h.mu.Lock()
	h.evals = append(h.evals, js)
	h.mu.Unlock()
	h.logger.Debug("eval", zap.Int("bytes", len(js)))
}

func (h *Headless) SetTitle(title string) {
	h.mu.Lock()
	h.title = title
	h.mu.Unlock()
}

func (h *Headless) SetHTML(html string) {
	h.mu.Lock()
	h.html = html
	h.mu.Unlock()
}

func (h *Headless) Bind(fn Receiver) {
	h.mu.Lock()
	h.receiver = fn
	h.mu.Unlock()
}

func (h *Headless) Run(ctx context.Context) error {
	h.logger.Info("headless view running")
	return h.run(ctx, nil)
}

// Send delivers payload as if the page had called native_send.
func (h *Headless) Send(ctx context.Context, payload string) error {
	h.mu.Lock()
	fn := h.receiver
	h.mu.Unlock()
	if fn == nil {
		return ErrNoReceiver
	}
	fn(ctx, payload)
	return nil
}

// Title returns the last title set.
func (h *Headless) Title() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.title
}

// HTML returns the current document.
func (h *Headless) HTML() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.html
}

// Evals returns a copy of the evaluated snippets in order.
func (h *Headless) Evals() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.evals...)
}
