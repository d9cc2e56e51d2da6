package script

import (
	"errors"
	"path"
	"strings"

	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// builtinModules resolve without touching the asset store. Each returns the
// global the module aliases.
var builtinModules = map[string]func(vm *goja.Runtime) goja.Value{
	"http":          httpModule,
	"https":         httpModule,
	"fs":            globalModule("fs"),
	"path":          globalModule("path"),
	"os":            globalModule("os"),
	"child_process": globalModule("child_process"),
	"events":        globalModule("EventEmitter"),
}

func httpModule(vm *goja.Runtime) goja.Value {
	mod := vm.NewObject()
	mod.Set("fetch", vm.Get("fetch"))
	return mod
}

func globalModule(name string) func(vm *goja.Runtime) goja.Value {
	return func(vm *goja.Runtime) goja.Value {
		return vm.Get(name)
	}
}

func (h *Host) installRequire(vm *goja.Runtime) {
	vm.Set("require", func(call goja.FunctionCall) goja.Value {
		return h.require(vm, call.Argument(0).String())
	})
}

// require loads a module by specifier. Misses throw ReferenceError; errors
// raised by the module propagate to the caller.
func (h *Host) require(vm *goja.Runtime, specifier string) goja.Value {
	if load, ok := builtinModules[specifier]; ok {
		h.metrics.RecordModuleLoad("builtin")
		return load(vm)
	}

	key, source, ok := h.resolveModule(specifier)
	if !ok {
		h.metrics.RecordModuleLoad("missing")
		h.logger.Debug("module not found", zap.String("module", specifier))
		throwReferenceError(vm, "Module not found: "+specifier)
	}

	if h.cfg.ModuleCache {
		if exports, hit := h.cache[key]; hit {
			h.metrics.RecordModuleLoad("cached")
			return exports
		}
	}

	exports, err := evalModule(vm, key, source)
	if err != nil {
		h.metrics.RecordModuleLoad("error")
		h.metrics.RecordScriptError(BoundaryModule)
		h.logger.Warn("module threw during load", zap.String("module", key), zap.Error(err))
		rethrow(vm, err)
	}

	h.metrics.RecordModuleLoad("loaded")
	if h.cfg.ModuleCache {
		h.cache[key] = exports
	}
	return exports
}

// resolveModule looks the specifier up verbatim, then with ".js" appended
// when it has no extension. A leading "./" is ignored.
func (h *Host) resolveModule(specifier string) (string, string, bool) {
	if h.assets == nil || specifier == "" {
		return "", "", false
	}
	specifier = strings.TrimPrefix(specifier, "./")

	candidates := []string{specifier}
	if path.Ext(specifier) == "" {
		candidates = append(candidates, specifier+".js")
	}
	for _, c := range candidates {
		if a, ok := h.assets.Read(c); ok {
			return a.Path, a.Text(), true
		}
	}
	return "", "", false
}

// evalModule runs source with fresh module and exports globals, restoring
// the previous values afterwards whether or not it threw.
func evalModule(vm *goja.Runtime, name, source string) (goja.Value, error) {
	global := vm.GlobalObject()
	prevModule := global.Get("module")
	prevExports := global.Get("exports")
	defer func() {
		restoreGlobal(global, "module", prevModule)
		restoreGlobal(global, "exports", prevExports)
	}()

	exports := vm.NewObject()
	module := vm.NewObject()
	module.Set("exports", exports)
	global.Set("module", module)
	global.Set("exports", exports)

	if _, err := vm.RunScript(name, source); err != nil {
		return nil, err
	}
	return module.Get("exports"), nil
}

func restoreGlobal(global *goja.Object, name string, v goja.Value) {
	if v == nil {
		global.Delete(name)
		return
	}
	global.Set(name, v)
}

func throwReferenceError(vm *goja.Runtime, msg string) {
	ctor, ok := goja.AssertConstructor(vm.Get("ReferenceError"))
	if !ok {
		panic(vm.NewGoError(errors.New(msg)))
	}
	obj, err := ctor(nil, vm.ToValue(msg))
	if err != nil {
		panic(vm.NewGoError(err))
	}
	panic(obj)
}

// rethrow propagates an error from nested evaluation to the calling script.
func rethrow(vm *goja.Runtime, err error) {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		panic(ex)
	}
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		panic(interrupted)
	}
	panic(vm.NewGoError(err))
}
