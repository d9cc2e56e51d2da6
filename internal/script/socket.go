package script

import (
	"context"

	"github.com/GriffinCanCode/valkyrie/internal/network"
	"github.com/GriffinCanCode/valkyrie/internal/substrate"
	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// jsSocket is the loop-side state behind one NativeSocket object.
type jsSocket struct {
	sock      *network.Socket
	connected bool
	closed    bool

	onConnect goja.Callable
	onData    goja.Callable
	onError   goja.Callable
	onClose   goja.Callable
}

// release drops the callbacks so the script objects they close over can
// be collected.
func (s *jsSocket) release() {
	s.onConnect, s.onData, s.onError, s.onClose = nil, nil, nil, nil
}

func (h *Host) installSocket(vm *goja.Runtime) {
	vm.Set("NativeSocket", func(call goja.ConstructorCall) *goja.Object {
		s := &jsSocket{sock: network.NewSocket(h.cfg.Network, h.logger, h.metrics)}
		this := call.This

		setter := func(dst *goja.Callable) func(goja.FunctionCall) goja.Value {
			return func(c goja.FunctionCall) goja.Value {
				fn, ok := goja.AssertFunction(c.Argument(0))
				if !ok {
					*dst = nil
					return goja.Undefined()
				}
				*dst = fn
				return goja.Undefined()
			}
		}
		this.Set("setOnConnect", setter(&s.onConnect))
		this.Set("setOnData", setter(&s.onData))
		this.Set("setOnError", setter(&s.onError))
		this.Set("setOnClose", setter(&s.onClose))

		this.Set("connect", func(c goja.FunctionCall) goja.Value {
			host := c.Argument(0).String()
			port := int(c.Argument(1).ToInteger())
			if err := s.sock.Connect(h.loop.Context(), host, port); err != nil {
				panic(vm.NewGoError(err))
			}
			if err := h.pumpSocket(s); err != nil {
				s.sock.Close()
				panic(vm.NewGoError(err))
			}
			return vm.ToValue(true)
		})

		this.Set("write", func(c goja.FunctionCall) goja.Value {
			if !s.connected {
				panic(vm.NewGoError(network.ErrNotConnected))
			}
			data, ok := toBytes(vm, c.Argument(0))
			if !ok {
				panic(vm.NewTypeError("write: expected ArrayBuffer, typed array or string"))
			}
			if err := s.sock.Write(data); err != nil {
				panic(vm.NewGoError(err))
			}
			return vm.ToValue(true)
		})

		this.Set("close", func(goja.FunctionCall) goja.Value {
			s.connected = false
			s.closed = true
			s.release()
			if err := s.sock.Close(); err != nil {
				h.logger.Debug("socket close failed", zap.Error(err))
			}
			return goja.Undefined()
		})

		this.Set("isConnected", func(goja.FunctionCall) goja.Value {
			return vm.ToValue(s.connected)
		})
		this.Set("id", s.sock.ID().String())
		return this
	})
}

// pumpSocket forwards the socket's event stream onto the loop.
func (h *Host) pumpSocket(s *jsSocket) error {
	return h.loop.Stream(func(_ context.Context, emit func(substrate.Job)) {
		for ev := range s.sock.Events() {
			emit(func(vm *goja.Runtime) {
				h.deliverSocketEvent(vm, s, ev)
			})
		}
	})
}

func (h *Host) deliverSocketEvent(vm *goja.Runtime, s *jsSocket, ev network.Event) {
	if s.closed {
		return
	}

	switch ev.Kind {
	case network.EventConnect:
		s.connected = true
		h.call(BoundarySocket, s.onConnect)
	case network.EventData:
		h.call(BoundarySocket, s.onData, vm.ToValue(vm.NewArrayBuffer(ev.Data)))
	case network.EventError:
		fn := s.onError
		s.connected = false
		s.closed = true
		s.release()
		h.call(BoundarySocket, fn, vm.ToValue(ev.Err.Error()))
	case network.EventClose:
		fn := s.onClose
		s.connected = false
		s.closed = true
		s.release()
		h.call(BoundarySocket, fn)
	}
}
