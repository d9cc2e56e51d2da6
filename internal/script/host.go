package script

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/GriffinCanCode/valkyrie/internal/assets"
	"github.com/GriffinCanCode/valkyrie/internal/bridge"
	"github.com/GriffinCanCode/valkyrie/internal/infrastructure/logging"
	"github.com/GriffinCanCode/valkyrie/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/valkyrie/internal/network"
	"github.com/GriffinCanCode/valkyrie/internal/providers/native"
	"github.com/GriffinCanCode/valkyrie/internal/substrate"
	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// Version is reported to scripts as process.versions.valkyrie.
const Version = "1.0.0"

// Error boundaries, used as the metric label and in log lines.
const (
	BoundaryScript = "script"
	BoundaryModule = "module"
	BoundaryBridge = "bridge"
	BoundaryTimer  = "timer"
	BoundarySocket = "socket"
)

// Config tunes the host.
type Config struct {
	// ModuleCache keeps module.exports per resolved path. Off by default,
	// so every require re-evaluates the module source.
	ModuleCache  bool
	MaxCallStack int
	Network      network.Config
	DrainTimeout time.Duration
}

// Deps are the collaborators a Host exposes to scripts. Any of them may be
// nil; the matching bindings then return empty results.
type Deps struct {
	Assets       *assets.Store
	Bridge       *bridge.Bridge
	Capabilities native.Capabilities
	Logger       *logging.Logger
	Metrics      *monitoring.Metrics
}

// Host runs scripts on its own logic loop.
type Host struct {
	cfg     Config
	loop    *substrate.Loop
	assets  *assets.Store
	bridge  *bridge.Bridge
	caps    native.Capabilities
	client  *network.Client
	logger  *logging.Logger
	console *logging.Logger
	metrics *monitoring.Metrics

	ready     chan struct{}
	startOnce sync.Once
	closeOnce sync.Once

	// Owned by the loop goroutine.
	cache     map[string]goja.Value
	timers    map[int64]*timer
	nextTimer int64
}

// New creates a host. Start must be called before scripts run.
func New(cfg Config, deps Deps) *Host {
	logger := logging.OrNop(deps.Logger)
	loop := substrate.New(logger, deps.Metrics)
	if cfg.DrainTimeout > 0 {
		loop.SetDrainTimeout(cfg.DrainTimeout)
	}

	return &Host{
		cfg:     cfg,
		loop:    loop,
		assets:  deps.Assets,
		bridge:  deps.Bridge,
		caps:    deps.Capabilities,
		client:  network.NewClient(cfg.Network, logger, deps.Metrics),
		logger:  logger.Named("script"),
		console: logger.Named("console"),
		metrics: deps.Metrics,
		ready:   make(chan struct{}),
		cache:   make(map[string]goja.Value),
		timers:  make(map[int64]*timer),
	}
}

// Start runs the loop and installs the bindings on it. Ready is closed once
// installation has finished.
func (h *Host) Start() error {
	var err error
	h.startOnce.Do(func() {
		if err = h.loop.Start(); err != nil {
			return
		}
		err = h.loop.Post(func(vm *goja.Runtime) {
			if ierr := h.install(vm); ierr != nil {
				h.logger.Error("failed to install bindings", zap.Error(ierr))
			}
			close(h.ready)
			h.logger.Debug("script host ready")
		})
		if err != nil {
			return
		}
		if h.bridge != nil {
			h.bridge.SetWake(h.wake)
		}
	})
	return err
}

// Ready is closed when the bindings are installed.
func (h *Host) Ready() <-chan struct{} {
	return h.ready
}

// Eval queues code for evaluation. Exceptions are reported, not returned.
func (h *Host) Eval(code, name string) error {
	return h.loop.Post(func(vm *goja.Runtime) {
		if _, err := vm.RunScript(name, code); err != nil {
			h.report(BoundaryScript, err)
		}
	})
}

// EvalSync evaluates code and waits for its exported result.
func (h *Host) EvalSync(ctx context.Context, code, name string) (any, error) {
	var (
		result any
		err    error
	)
	cerr := h.loop.Call(ctx, func(vm *goja.Runtime) {
		var v goja.Value
		v, err = vm.RunScript(name, code)
		if err != nil {
			h.report(BoundaryScript, err)
			return
		}
		if v != nil {
			result = v.Export()
		}
	})
	if cerr != nil {
		return nil, cerr
	}
	return result, err
}

// Run executes fn on the loop and waits for it.
func (h *Host) Run(ctx context.Context, fn func(vm *goja.Runtime)) error {
	return h.loop.Call(ctx, fn)
}

// Close stops the loop: in-flight I/O is cancelled and reported, queued
// jobs drain and the runtime is released.
func (h *Host) Close() {
	h.closeOnce.Do(func() {
		if h.bridge != nil {
			h.bridge.SetWake(nil)
		}
		h.loop.Stop()
		h.logger.Debug("script host closed")
	})
}

// wake is installed on the bridge; it runs on the UI side.
func (h *Host) wake() {
	if err := h.loop.Post(h.deliverMessage); err != nil {
		h.logger.Debug("wake after stop ignored")
	}
}

// deliverMessage pops one bridge message and hands it to handleCommand.
func (h *Host) deliverMessage(vm *goja.Runtime) {
	msg, ok := h.bridge.Drain()
	if !ok {
		return
	}
	log := h.logger.With(zap.String("message_id", msg.ID.String()))

	handler, ok := goja.AssertFunction(vm.Get("handleCommand"))
	if !ok {
		log.Debug("no handleCommand defined, message dropped")
		return
	}

	parsed, err := parseJSON(vm, msg.Payload)
	if err != nil {
		h.metrics.RecordBridgeDrop("unparsable")
		log.Warn("dropping unparsable payload", zap.Error(err))
		return
	}

	if _, err := handler(vm.GlobalObject(), parsed); err != nil {
		h.report(BoundaryBridge, err)
	}
}

// call invokes a script callback at boundary.
func (h *Host) call(boundary string, fn goja.Callable, args ...goja.Value) {
	if fn == nil {
		return
	}
	if _, err := fn(goja.Undefined(), args...); err != nil {
		h.report(boundary, err)
	}
}

// report logs a script exception and forwards it to the view console.
func (h *Host) report(boundary string, err error) {
	msg := errorText(err)
	h.metrics.RecordScriptError(boundary)
	h.logger.Error("script exception", zap.String("boundary", boundary), zap.Error(err))

	if h.bridge == nil {
		return
	}
	if uerr := h.bridge.EvalInUI("console.error('JS Error: " + bridge.EscapeJS(msg) + "')"); uerr != nil && !errors.Is(uerr, bridge.ErrNoUI) {
		h.logger.Debug("failed to forward script error", zap.Error(uerr))
	}
}

func errorText(err error) string {
	var ex *goja.Exception
	if errors.As(err, &ex) && ex.Value() != nil {
		return ex.Value().String()
	}
	return err.Error()
}

func parseJSON(vm *goja.Runtime, text string) (goja.Value, error) {
	parse, ok := goja.AssertFunction(vm.Get("JSON").ToObject(vm).Get("parse"))
	if !ok {
		return nil, errors.New("JSON.parse unavailable")
	}
	return parse(goja.Undefined(), vm.ToValue(text))
}

func stringify(vm *goja.Runtime, v goja.Value) string {
	if s, ok := v.Export().(string); ok {
		return s
	}
	fn, ok := goja.AssertFunction(vm.Get("JSON").ToObject(vm).Get("stringify"))
	if !ok {
		return v.String()
	}
	out, err := fn(goja.Undefined(), v)
	if err != nil || out == nil || goja.IsUndefined(out) {
		return v.String()
	}
	return out.String()
}
