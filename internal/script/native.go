package script

import (
	"errors"

	"github.com/GriffinCanCode/valkyrie/internal/providers/native"
	"github.com/dop251/goja"
	"go.uber.org/zap"
)

// installNative defines clipboard, dialog, notify and openExternal. The
// calls block the loop for as long as the platform tool runs.
func (h *Host) installNative(vm *goja.Runtime) {
	caps := h.caps

	clip := vm.NewObject()
	clip.Set("read", func() string {
		if caps.Clipboard == nil {
			return ""
		}
		text, err := caps.Clipboard.ReadText()
		if err != nil {
			h.logger.Debug("clipboard read failed", zap.Error(err))
			return ""
		}
		return text
	})
	clip.Set("write", func(text string) bool {
		if caps.Clipboard == nil {
			return false
		}
		return caps.Clipboard.WriteText(text) == nil
	})
	vm.Set("clipboard", clip)

	picker := func(pick func(native.Dialogs, string) (string, error)) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			if caps.Dialogs == nil {
				return goja.Null()
			}
			title := optionalString(call.Argument(0))
			p, err := pick(caps.Dialogs, title)
			if err != nil {
				if !errors.Is(err, native.ErrCancelled) {
					h.logger.Debug("dialog failed", zap.Error(err))
				}
				return goja.Null()
			}
			if p == "" {
				return goja.Null()
			}
			return vm.ToValue(p)
		}
	}

	dialog := vm.NewObject()
	dialog.Set("showMessage", func(title, message string) bool {
		if caps.Dialogs == nil {
			return false
		}
		return caps.Dialogs.Message(title, message) == nil
	})
	dialog.Set("showOpen", picker(native.Dialogs.OpenFile))
	dialog.Set("showFolder", picker(native.Dialogs.OpenFolder))
	dialog.Set("showSave", picker(native.Dialogs.SaveFile))
	vm.Set("dialog", dialog)

	vm.Set("notify", func(title, body string) bool {
		if caps.Notifier == nil {
			return false
		}
		return caps.Notifier.Notify(title, body) == nil
	})

	vm.Set("openExternal", func(target string) bool {
		if caps.Opener == nil || target == "" {
			return false
		}
		return caps.Opener.Open(target) == nil
	})
}
