package bridge

import (
	"errors"
	"strings"

	"github.com/GriffinCanCode/valkyrie/internal/infrastructure/logging"
	"github.com/GriffinCanCode/valkyrie/internal/providers/native"
	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

// Built-in command names recognized in the "command" field.
const (
	CmdDialog         = "dialog"
	CmdOpenFile       = "open_file"
	CmdOpenFolder     = "open_folder"
	CmdSaveFile       = "save_file"
	CmdNotify         = "notify"
	CmdClipboardWrite = "clipboard_write"
	CmdClipboardRead  = "clipboard_read"
	CmdOpenURL        = "open_url"
)

// Page events that carry results of built-in commands back to the page.
const (
	EventFileOpen      = "onFileOpen"
	EventFolderOpen    = "onFolderOpen"
	EventFileSave      = "onFileSave"
	EventClipboardRead = "onClipboardRead"
)

// Command is the wire form of a page-to-native call.
type Command struct {
	Command string `json:"command"`
	Message string `json:"message,omitempty"`
	Text    string `json:"text,omitempty"`
	URL     string `json:"url,omitempty"`
}

// Emitter pushes an event to the page.
type Emitter interface {
	Emit(event, payload string) error
}

// Commands runs the built-in commands on the UI side before a payload is
// forwarded to the logic loop. Native calls block the caller.
type Commands struct {
	caps    native.Capabilities
	emitter Emitter
	logger  *logging.Logger
}

// NewCommands creates the handler. Results of pickers and clipboard reads
// are sent back through emitter.
func NewCommands(caps native.Capabilities, emitter Emitter, logger *logging.Logger) *Commands {
	return &Commands{
		caps:    caps,
		emitter: emitter,
		logger:  logging.OrNop(logger).Named("commands"),
	}
}

// Handle runs the command in payload. Unknown commands and payloads that do
// not decode are ignored. It reports whether a built-in command ran.
func (c *Commands) Handle(payload string) bool {
	var cmd Command
	if err := sonic.UnmarshalString(payload, &cmd); err != nil {
		return false
	}

	switch cmd.Command {
	case CmdDialog:
		if c.caps.Dialogs == nil {
			c.unavailable(cmd.Command)
			break
		}
		c.check(cmd.Command, c.caps.Dialogs.Message("Message", cmd.Message))
	case CmdOpenFile, CmdOpenFolder, CmdSaveFile:
		if c.caps.Dialogs == nil {
			c.unavailable(cmd.Command)
			break
		}
		d := c.caps.Dialogs
		switch cmd.Command {
		case CmdOpenFile:
			c.pick(EventFileOpen, func() (string, error) { return d.OpenFile("Open File") })
		case CmdOpenFolder:
			c.pick(EventFolderOpen, func() (string, error) { return d.OpenFolder("Open Folder") })
		default:
			c.pick(EventFileSave, func() (string, error) { return d.SaveFile("Save File") })
		}
	case CmdNotify:
		if c.caps.Notifier == nil {
			c.unavailable(cmd.Command)
			break
		}
		title, body := SplitNotification(cmd.Message)
		c.check(cmd.Command, c.caps.Notifier.Notify(title, body))
	case CmdClipboardWrite:
		if c.caps.Clipboard == nil {
			c.unavailable(cmd.Command)
			break
		}
		c.check(cmd.Command, c.caps.Clipboard.WriteText(cmd.Text))
	case CmdClipboardRead:
		text := ""
		if c.caps.Clipboard == nil {
			c.unavailable(cmd.Command)
		} else if t, err := c.caps.Clipboard.ReadText(); err != nil {
			c.check(cmd.Command, err)
		} else {
			text = t
		}
		c.emit(EventClipboardRead, text)
	case CmdOpenURL:
		if cmd.URL == "" {
			break
		}
		if c.caps.Opener == nil {
			c.unavailable(cmd.Command)
			break
		}
		c.check(cmd.Command, c.caps.Opener.Open(cmd.URL))
	default:
		return false
	}
	return true
}

// pick runs a picker and emits its result. Cancelled or failed pickers emit
// nothing.
func (c *Commands) pick(event string, show func() (string, error)) {
	p, err := show()
	if err != nil {
		if !errors.Is(err, native.ErrCancelled) {
			c.logger.Warn("picker failed", zap.String("event", event), zap.Error(err))
		}
		return
	}
	if p != "" {
		c.emit(event, p)
	}
}

func (c *Commands) emit(event, payload string) {
	if c.emitter == nil {
		return
	}
	if err := c.emitter.Emit(event, payload); err != nil {
		c.logger.Debug("emit failed", zap.String("event", event), zap.Error(err))
	}
}

// unavailable logs a command whose capability was not provided. It behaves
// like a failed native call.
func (c *Commands) unavailable(command string) {
	c.logger.Warn("native capability unavailable", zap.String("command", command))
}

func (c *Commands) check(command string, err error) {
	if err != nil {
		c.logger.Warn("native command failed", zap.String("command", command), zap.Error(err))
	}
}

// SplitNotification splits "title: body" at the first colon. Without a
// colon the whole message is the body under a generic title.
func SplitNotification(message string) (title, body string) {
	t, b, ok := strings.Cut(message, ":")
	if !ok {
		return "Notification", message
	}
	return t, strings.TrimPrefix(b, " ")
}
