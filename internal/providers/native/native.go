package native

import (
	"errors"
	"fmt"
	"os/exec"
	"runtime"
	"strings"

	"github.com/GriffinCanCode/valkyrie/internal/infrastructure/logging"
	"github.com/atotto/clipboard"
	"go.uber.org/zap"
)

// ErrCancelled is returned when the user dismisses a picker.
var ErrCancelled = errors.New("native: dialog cancelled")

// ErrUnsupported is returned when no tool exists for the platform.
var ErrUnsupported = errors.New("native: unsupported on this platform")

// Clipboard reads and writes the system clipboard as text.
type Clipboard interface {
	ReadText() (string, error)
	WriteText(text string) error
}

// Dialogs shows modal dialogs. Pickers return the chosen path.
type Dialogs interface {
	Message(title, message string) error
	OpenFile(title string) (string, error)
	OpenFolder(title string) (string, error)
	SaveFile(title string) (string, error)
}

// Notifier shows desktop notifications.
type Notifier interface {
	Notify(title, body string) error
}

// Opener opens a URL or path with the system handler.
type Opener interface {
	Open(target string) error
}

// Capabilities groups the native services handed to the bridge and the
// script host.
type Capabilities struct {
	Clipboard Clipboard
	Dialogs   Dialogs
	Notifier  Notifier
	Opener    Opener
}

// System returns capabilities backed by the host platform.
func System(logger *logging.Logger) Capabilities {
	log := logging.OrNop(logger).Named("native")
	r := runner{logger: log}
	return Capabilities{
		Clipboard: systemClipboard{},
		Dialogs:   &zenityDialogs{run: r},
		Notifier:  &desktopNotifier{run: r},
		Opener:    &systemOpener{run: r},
	}
}

type systemClipboard struct{}

func (systemClipboard) ReadText() (string, error) {
	text, err := clipboard.ReadAll()
	if err != nil {
		return "", fmt.Errorf("read clipboard: %w", err)
	}
	return text, nil
}

func (systemClipboard) WriteText(text string) error {
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("write clipboard: %w", err)
	}
	return nil
}

// runner executes helper binaries.
type runner struct {
	logger *logging.Logger
}

// output runs name and returns the first line of its stdout.
func (r runner) output(name string, args ...string) (string, error) {
	out, err := exec.Command(name, args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			// zenity exits 1 when the user cancels.
			return "", ErrCancelled
		}
		r.logger.Debug("helper failed", zap.String("cmd", name), zap.Error(err))
		return "", fmt.Errorf("%s: %w", name, err)
	}

	line, _, _ := strings.Cut(string(out), "\n")
	return strings.TrimRight(line, "\r"), nil
}

// start launches name without waiting for it.
func (r runner) start(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if err := cmd.Start(); err != nil {
		r.logger.Debug("helper failed to start", zap.String("cmd", name), zap.Error(err))
		return fmt.Errorf("%s: %w", name, err)
	}
	go cmd.Wait()
	return nil
}

type zenityDialogs struct {
	run runner
}

func (d *zenityDialogs) Message(title, message string) error {
	switch runtime.GOOS {
	case "darwin":
		script := fmt.Sprintf("display dialog %q with title %q buttons {\"OK\"}", message, title)
		return d.run.start("osascript", "-e", script)
	case "windows":
		return d.run.start("msg", "*", message)
	default:
		return d.run.start("zenity", "--info", "--title="+title, "--text="+message)
	}
}

func (d *zenityDialogs) OpenFile(title string) (string, error) {
	if runtime.GOOS == "darwin" {
		return d.run.output("osascript", "-e", fmt.Sprintf("POSIX path of (choose file with prompt %q)", title))
	}
	return d.run.output("zenity", "--file-selection", "--title="+title)
}

func (d *zenityDialogs) OpenFolder(title string) (string, error) {
	if runtime.GOOS == "darwin" {
		return d.run.output("osascript", "-e", fmt.Sprintf("POSIX path of (choose folder with prompt %q)", title))
	}
	return d.run.output("zenity", "--file-selection", "--directory", "--title="+title)
}

func (d *zenityDialogs) SaveFile(title string) (string, error) {
	if runtime.GOOS == "darwin" {
		return d.run.output("osascript", "-e", fmt.Sprintf("POSIX path of (choose file name with prompt %q)", title))
	}
	return d.run.output("zenity", "--file-selection", "--save", "--confirm-overwrite", "--title="+title)
}

type desktopNotifier struct {
	run runner
}

func (n *desktopNotifier) Notify(title, body string) error {
	switch runtime.GOOS {
	case "darwin":
		return n.run.start("osascript", "-e", fmt.Sprintf("display notification %q with title %q", body, title))
	case "linux", "freebsd", "openbsd", "netbsd":
		return n.run.start("notify-send", title, body)
	default:
		return ErrUnsupported
	}
}

type systemOpener struct {
	run runner
}

func (o *systemOpener) Open(target string) error {
	if target == "" {
		return errors.New("native: empty open target")
	}
	switch runtime.GOOS {
	case "darwin":
		return o.run.start("open", target)
	case "windows":
		return o.run.start("rundll32", "url.dll,FileProtocolHandler", target)
	default:
		return o.run.start("xdg-open", target)
	}
}
