package native

import "sync"

// Call is one invocation captured by a Recorder.
type Call struct {
	Method string
	Args   []string
}

// Recorder is an in-memory Capabilities implementation for headless runs
// and tests. Pickers return the configured paths; an empty path reports
// ErrCancelled.
type Recorder struct {
	mu        sync.Mutex
	calls     []Call
	clipboard string

	OpenPath   string
	FolderPath string
	SavePath   string
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

// Capabilities exposes r through every capability interface.
func (r *Recorder) Capabilities() Capabilities {
	return Capabilities{Clipboard: r, Dialogs: r, Notifier: r, Opener: r}
}

// Calls returns a snapshot of recorded calls.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.calls...)
}

func (r *Recorder) record(method string, args ...string) {
	r.mu.Lock()
	r.calls = append(r.calls, Call{Method: method, Args: args})
	r.mu.Unlock()
}

func (r *Recorder) ReadText() (string, error) {
	r.record("clipboard.read")
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.clipboard, nil
}

func (r *Recorder) WriteText(text string) error {
	r.record("clipboard.write", text)
	r.mu.Lock()
	r.clipboard = text
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Message(title, message string) error {
	r.record("dialog.message", title, message)
	return nil
}

func (r *Recorder) OpenFile(title string) (string, error) {
	r.record("dialog.open", title)
	return pick(r.OpenPath)
}

func (r *Recorder) OpenFolder(title string) (string, error) {
	r.record("dialog.folder", title)
	return pick(r.FolderPath)
}

func (r *Recorder) SaveFile(title string) (string, error) {
	r.record("dialog.save", title)
	return pick(r.SavePath)
}

func (r *Recorder) Notify(title, body string) error {
	r.record("notify", title, body)
	return nil
}

func (r *Recorder) Open(target string) error {
	r.record("open", target)
	return nil
}

func pick(p string) (string, error) {
	if p == "" {
		return "", ErrCancelled
	}
	return p, nil
}
