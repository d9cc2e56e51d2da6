package script

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"time"

	"github.com/GriffinCanCode/valkyrie/internal/shared/id"
	"github.com/GriffinCanCode/valkyrie/internal/substrate"
	"github.com/dop251/goja"
	"go.uber.org/zap"
)

//go:embed prelude.js
var prelude string

// Globals the event loop installs that the host does not offer. Timers are
// one-shot only.
var removedGlobals = []string{"setInterval", "clearInterval", "setImmediate", "clearImmediate"}

// install sets up the global environment. Runs once, on the loop.
func (h *Host) install(vm *goja.Runtime) error {
	if h.cfg.MaxCallStack > 0 {
		vm.SetMaxCallStackSize(h.cfg.MaxCallStack)
	}

	global := vm.GlobalObject()
	for _, name := range removedGlobals {
		global.Delete(name)
	}

	h.installConsole(vm)
	h.installTimers(vm)
	h.installBuffers(vm)
	h.installUI(vm)
	h.installFetch(vm)
	h.installSocket(vm)
	h.installFS(vm)
	h.installSystem(vm)
	h.installNative(vm)
	h.installRequire(vm)

	src := strings.Replace(prelude, "__VALKYRIE_VERSION__", Version, 1)
	if _, err := vm.RunScript("prelude.js", src); err != nil {
		return fmt.Errorf("run prelude: %w", err)
	}
	return nil
}

func (h *Host) installConsole(vm *goja.Runtime) {
	console := vm.NewObject()
	console.Set("log", h.makeConsoleFunc("log"))
	console.Set("info", h.makeConsoleFunc("info"))
	console.Set("warn", h.makeConsoleFunc("warn"))
	console.Set("error", h.makeConsoleFunc("error"))
	console.Set("debug", h.makeConsoleFunc("debug"))
	vm.Set("console", console)

	vm.Set("native_print", func(call goja.FunctionCall) goja.Value {
		h.console.Info(joinArgs(call.Arguments))
		return goja.Undefined()
	})
}

// makeConsoleFunc routes one console method to the console logger.
func (h *Host) makeConsoleFunc(level string) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		msg := joinArgs(call.Arguments)
		switch level {
		case "error":
			h.console.Error(msg)
		case "warn":
			h.console.Warn(msg)
		case "debug":
			h.console.Debug(msg)
		default:
			h.console.Info(msg)
		}
		return goja.Undefined()
	}
}

func joinArgs(args []goja.Value) string {
	parts := make([]string, len(args))
	for i, arg := range args {
		parts[i] = arg.String()
	}
	return strings.Join(parts, " ")
}

type timer struct {
	id     id.TimerID
	handle *substrate.Timer
}

func (h *Host) installTimers(vm *goja.Runtime) {
	vm.Set("setTimeout", func(call goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			panic(vm.NewTypeError("setTimeout: callback is not a function"))
		}
		delay := time.Duration(call.Argument(1).ToInteger()) * time.Millisecond
		if delay < 0 {
			delay = 0
		}
		var args []goja.Value
		if len(call.Arguments) > 2 {
			args = append(args, call.Arguments[2:]...)
		}

		h.nextTimer++
		key := h.nextTimer
		t := &timer{id: id.NewTimerID()}

		handle, err := h.loop.After(delay, func(*goja.Runtime) {
			if _, live := h.timers[key]; !live {
				return
			}
			delete(h.timers, key)
			h.metrics.RecordTimerFired()
			h.call(BoundaryTimer, fn, args...)
		})
		if err != nil {
			panic(vm.NewGoError(err))
		}
		t.handle = handle
		h.timers[key] = t
		h.logger.Debug("timer scheduled", zap.String("timer_id", t.id.String()), zap.Duration("delay", delay))
		return vm.ToValue(key)
	})

	vm.Set("clearTimeout", func(call goja.FunctionCall) goja.Value {
		key := call.Argument(0).ToInteger()
		if t, ok := h.timers[key]; ok {
			delete(h.timers, key)
			h.loop.Cancel(t.handle)
		}
		return goja.Undefined()
	})
}

func (h *Host) installBuffers(vm *goja.Runtime) {
	vm.Set("buffer_alloc", func(call goja.FunctionCall) goja.Value {
		n := call.Argument(0).ToInteger()
		if n < 0 {
			panic(vm.NewTypeError("buffer_alloc: negative size"))
		}
		return vm.ToValue(vm.NewArrayBuffer(make([]byte, n)))
	})

	vm.Set("buffer_from_bytes", func(call goja.FunctionCall) goja.Value {
		data, ok := toBytes(vm, call.Argument(0))
		if !ok {
			data = []byte{}
		}
		return vm.ToValue(vm.NewArrayBuffer(data))
	})

	vm.Set("buffer_from_string", func(call goja.FunctionCall) goja.Value {
		return vm.ToValue(vm.NewArrayBuffer([]byte(call.Argument(0).String())))
	})

	vm.Set("buffer_to_string", func(call goja.FunctionCall) goja.Value {
		data, _ := toBytes(vm, call.Argument(0))
		start, end := 0, len(data)
		if v := call.Argument(1); !goja.IsUndefined(v) {
			start = clamp(int(v.ToInteger()), 0, len(data))
		}
		if v := call.Argument(2); !goja.IsUndefined(v) {
			end = clamp(int(v.ToInteger()), start, len(data))
		}
		return vm.ToValue(string(data[start:end]))
	})
}

// installUI exposes the reverse bridge channel.
func (h *Host) installUI(vm *goja.Runtime) {
	vm.Set("sendToUI", func(call goja.FunctionCall) goja.Value {
		if h.bridge == nil {
			return vm.ToValue(false)
		}
		event := call.Argument(0).String()
		payload := ""
		if v := call.Argument(1); !goja.IsUndefined(v) && !goja.IsNull(v) {
			payload = stringify(vm, v)
		}
		if err := h.bridge.Emit(event, payload); err != nil {
			h.logger.Warn("sendToUI failed", zap.String("event", event), zap.Error(err))
			return vm.ToValue(false)
		}
		return vm.ToValue(true)
	})
}

// toBytes copies the bytes of an ArrayBuffer, typed array, string or array
// of numbers.
func toBytes(vm *goja.Runtime, v goja.Value) ([]byte, bool) {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, false
	}

	switch x := v.Export().(type) {
	case goja.ArrayBuffer:
		return bytes.Clone(x.Bytes()), true
	case []byte:
		return bytes.Clone(x), true
	case string:
		return []byte(x), true
	case []any:
		out := make([]byte, len(x))
		for i, e := range x {
			out[i] = byte(vm.ToValue(e).ToInteger())
		}
		return out, true
	}

	// Views exported as something else still expose their buffer.
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil, false
	}
	bufVal := obj.Get("buffer")
	if bufVal == nil {
		return nil, false
	}
	ab, ok := bufVal.Export().(goja.ArrayBuffer)
	if !ok {
		return nil, false
	}
	raw := ab.Bytes()
	off := clamp(int(obj.Get("byteOffset").ToInteger()), 0, len(raw))
	n := clamp(int(obj.Get("byteLength").ToInteger()), 0, len(raw)-off)
	return bytes.Clone(raw[off : off+n]), true
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
