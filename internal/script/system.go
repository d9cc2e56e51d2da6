package script

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// installFS defines the fs and path globals. Failures return null, false or
// an empty list, never an exception.
func (h *Host) installFS(vm *goja.Runtime) {
	fsObj := vm.NewObject()

	fsObj.Set("readFile", func(p string) goja.Value {
		data, err := os.ReadFile(p)
		if err != nil {
			return goja.Null()
		}
		return vm.ToValue(string(data))
	})
	fsObj.Set("writeFile", func(call goja.FunctionCall) goja.Value {
		data, ok := toBytes(vm, call.Argument(1))
		if !ok {
			data = []byte{}
		}
		err := os.WriteFile(call.Argument(0).String(), data, 0o644)
		return vm.ToValue(err == nil)
	})
	fsObj.Set("exists", func(p string) bool {
		_, err := os.Stat(p)
		return err == nil
	})
	fsObj.Set("listDir", func(p string) goja.Value {
		entries, err := os.ReadDir(p)
		if err != nil {
			return vm.NewArray()
		}
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		return stringArray(vm, names)
	})
	fsObj.Set("isDir", func(p string) bool {
		info, err := os.Stat(p)
		return err == nil && info.IsDir()
	})
	fsObj.Set("mkdir", func(p string) bool {
		return os.MkdirAll(p, 0o755) == nil
	})
	fsObj.Set("unlink", func(p string) bool {
		info, err := os.Lstat(p)
		if err != nil || info.IsDir() {
			return false
		}
		return os.Remove(p) == nil
	})
	fsObj.Set("rmdir", func(p string) bool {
		if _, err := os.Lstat(p); err != nil {
			return false
		}
		return os.RemoveAll(p) == nil
	})
	fsObj.Set("cwd", func() string {
		wd, err := os.Getwd()
		if err != nil {
			return ""
		}
		return wd
	})
	fsObj.Set("chdir", func(p string) bool {
		return os.Chdir(p) == nil
	})
	fsObj.Set("glob", func(call goja.FunctionCall) goja.Value {
		return stringArray(vm, globFiles(call.Argument(0).String(), optionalString(call.Argument(1))))
	})
	fsObj.Set("walk", func(root string) goja.Value {
		files, err := walkFiles(root)
		if err != nil {
			h.logger.Debug("fs.walk failed", zap.String("root", root), zap.Error(err))
		}
		return stringArray(vm, files)
	})
	vm.Set("fs", fsObj)

	pathObj := vm.NewObject()
	pathObj.Set("join", func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, a := range call.Arguments {
			parts[i] = a.String()
		}
		return vm.ToValue(path.Join(parts...))
	})
	pathObj.Set("dirname", path.Dir)
	pathObj.Set("basename", path.Base)
	pathObj.Set("extname", path.Ext)
	pathObj.Set("sep", "/")
	vm.Set("path", pathObj)
}

// globFiles matches pattern on disk, relative to root when one is given.
func globFiles(pattern, root string) []string {
	var (
		matches []string
		err     error
	)
	if root != "" {
		matches, err = doublestar.Glob(os.DirFS(root), pattern, doublestar.WithFilesOnly())
	} else {
		matches, err = doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
	}
	if err != nil || matches == nil {
		return []string{}
	}
	return matches
}

// walkFiles lists every regular file under root by slash-separated
// relative path.
func walkFiles(root string) ([]string, error) {
	var (
		mu    sync.Mutex
		files = []string{}
	)
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, rerr := filepath.Rel(root, p)
		if rerr != nil {
			return nil
		}
		mu.Lock()
		files = append(files, filepath.ToSlash(rel))
		mu.Unlock()
		return nil
	})
	return files, err
}

// installSystem defines os, child_process and systemInfo.
func (h *Host) installSystem(vm *goja.Runtime) {
	osObj := vm.NewObject()
	osObj.Set("homedir", func() goja.Value {
		home, err := os.UserHomeDir()
		if err != nil {
			return goja.Null()
		}
		return vm.ToValue(home)
	})
	osObj.Set("tmpdir", os.TempDir)
	osObj.Set("env", func(name string) goja.Value {
		v, ok := os.LookupEnv(name)
		if !ok {
			return goja.Null()
		}
		return vm.ToValue(v)
	})
	osObj.Set("platform", Platform)
	osObj.Set("arch", Arch)
	osObj.Set("hostname", func() string {
		name, _ := os.Hostname()
		return name
	})
	vm.Set("os", osObj)

	cp := vm.NewObject()
	cp.Set("exec", func(command string) goja.Value {
		out, status, err := h.exec(h.loop.Context(), command)
		if err != nil {
			h.logger.Debug("exec failed", zap.String("command", command), zap.Error(err))
			return goja.Null()
		}
		res := vm.NewObject()
		res.Set("stdout", out)
		res.Set("status", status)
		return res
	})
	cp.Set("spawn", func(command string) bool {
		cmd := shellCommand(context.Background(), command)
		if err := cmd.Start(); err != nil {
			h.logger.Debug("spawn failed", zap.String("command", command), zap.Error(err))
			return false
		}
		go cmd.Wait()
		return true
	})
	vm.Set("child_process", cp)

	vm.Set("systemInfo", func() map[string]any {
		name, _ := os.Hostname()
		return map[string]any{
			"platform": Platform(),
			"arch":     Arch(),
			"hostname": name,
		}
	})
}

// exec runs command through the shell and captures stdout. A non-zero
// exit is reported through status, not err.
func (h *Host) exec(ctx context.Context, command string) (string, int, error) {
	cmd := shellCommand(ctx, command)
	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return string(out), exitErr.ExitCode(), nil
		}
		return "", 0, err
	}
	return string(out), 0, nil
}

func shellCommand(ctx context.Context, command string) *exec.Cmd {
	if runtime.GOOS == "windows" {
		return exec.CommandContext(ctx, "cmd", "/C", command)
	}
	return exec.CommandContext(ctx, "sh", "-c", command)
}

// Platform returns the platform name scripts see, using Node's spelling.
func Platform() string {
	if runtime.GOOS == "windows" {
		return "win32"
	}
	return runtime.GOOS
}

// Arch returns the CPU architecture using Node's spelling.
func Arch() string {
	switch runtime.GOARCH {
	case "amd64":
		return "x64"
	case "386":
		return "ia32"
	default:
		return runtime.GOARCH
	}
}

// stringArray converts to a real script array so array methods that
// mutate, like sort, behave as scripts expect.
func stringArray(vm *goja.Runtime, items []string) goja.Value {
	vals := make([]any, len(items))
	for i, s := range items {
		vals[i] = s
	}
	return vm.NewArray(vals...)
}

func optionalString(v goja.Value) string {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	return v.String()
}
