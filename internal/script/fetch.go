package script

import (
	"context"

	"github.com/GriffinCanCode/valkyrie/internal/network"
	"github.com/GriffinCanCode/valkyrie/internal/substrate"
	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// installFetch defines fetch(url, {method, headers, body}). The promise
// always resolves; resolution and connection failures yield status 0.
func (h *Host) installFetch(vm *goja.Runtime) {
	vm.Set("fetch", func(call goja.FunctionCall) goja.Value {
		promise, resolve, reject := vm.NewPromise()

		req, err := buildRequest(vm, call.Argument(0).String(), call.Argument(1))
		if err != nil {
			reject(vm.NewTypeError(err.Error()))
			return vm.ToValue(promise)
		}

		err = h.loop.Go(func(ctx context.Context) substrate.Job {
			resp := h.client.Do(ctx, req)
			return func(vm *goja.Runtime) {
				if err := resolve(responseObject(vm, resp)); err != nil {
					h.logger.Debug("fetch resolve failed", zap.Error(err))
				}
			}
		})
		if err != nil {
			reject(vm.NewGoError(err))
		}
		return vm.ToValue(promise)
	})
}

func buildRequest(vm *goja.Runtime, rawURL string, opts goja.Value) (*network.Request, error) {
	var (
		method  string
		body    []byte
		headers *goja.Object
	)
	if opts != nil && !goja.IsUndefined(opts) && !goja.IsNull(opts) {
		o := opts.ToObject(vm)
		if v := o.Get("method"); v != nil && !goja.IsUndefined(v) {
			method = v.String()
		}
		if v := o.Get("body"); v != nil {
			body, _ = toBytes(vm, v)
		}
		if v := o.Get("headers"); v != nil && !goja.IsUndefined(v) && !goja.IsNull(v) {
			headers = v.ToObject(vm)
		}
	}

	req, err := network.NewRequest(method, rawURL, body)
	if err != nil {
		return nil, err
	}
	if headers != nil {
		for _, name := range headers.Keys() {
			if err := req.AddHeader(name, headers.Get(name).String()); err != nil {
				return nil, err
			}
		}
	}
	return req, nil
}

func responseObject(vm *goja.Runtime, resp *network.Response) *goja.Object {
	headers := vm.NewObject()
	for k, v := range resp.Headers {
		headers.Set(k, v)
	}

	obj := vm.NewObject()
	obj.Set("status", resp.Status)
	obj.Set("ok", resp.OK())
	obj.Set("headers", headers)
	obj.Set("body", vm.NewArrayBuffer(resp.Body))
	obj.Set("text", resp.Text())
	return obj
}
