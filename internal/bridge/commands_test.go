package bridge

import (
	"errors"
	"testing"

	"github.com/GriffinCanCode/valkyrie/internal/providers/native"
	"github.com/stretchr/testify/assert"
)

type emitted struct {
	event   string
	payload string
}

type recordingEmitter struct {
	events []emitted
}

func (e *recordingEmitter) Emit(event, payload string) error {
	e.events = append(e.events, emitted{event, payload})
	return nil
}

type failingClipboard struct{}

func (failingClipboard) ReadText() (string, error) { return "", errors.New("no display") }
func (failingClipboard) WriteText(string) error     { return errors.New("no display") }

func TestCommandsDispatch(t *testing.T) {
	tests := []struct {
		name      string
		payload   string
		handled   bool
		wantCalls []native.Call
	}{
		{
			name:      "dialog",
			payload:   `{"command":"dialog","message":"hi"}`,
			handled:   true,
			wantCalls: []native.Call{{Method: "dialog.message", Args: []string{"Message", "hi"}}},
		},
		{
			name:      "notify with title",
			payload:   `{"command":"notify","message":"Build: done"}`,
			handled:   true,
			wantCalls: []native.Call{{Method: "notify", Args: []string{"Build", "done"}}},
		},
		{
			name:      "notify without title",
			payload:   `{"command":"notify","message":"done"}`,
			handled:   true,
			wantCalls: []native.Call{{Method: "notify", Args: []string{"Notification", "done"}}},
		},
		{
			name:      "clipboard write",
			payload:   `{"command":"clipboard_write","text":"abc"}`,
			handled:   true,
			wantCalls: []native.Call{{Method: "clipboard.write", Args: []string{"abc"}}},
		},
		{
			name:      "open url",
			payload:   `{"command":"open_url","url":"https://example.com"}`,
			handled:   true,
			wantCalls: []native.Call{{Method: "open", Args: []string{"https://example.com"}}},
		},
		{
			name:    "open url without url",
			payload: `{"command":"open_url"}`,
			handled: true,
		},
		{
			name:    "unknown command",
			payload: `{"command":"custom_action","data":1}`,
			handled: false,
		},
		{
			name:    "not an object",
			payload: `[1,2]`,
			handled: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := native.NewRecorder()
			c := NewCommands(rec.Capabilities(), &recordingEmitter{}, nil)

			assert.Equal(t, tt.handled, c.Handle(tt.payload))
			if tt.wantCalls == nil {
				assert.Empty(t, rec.Calls())
			} else {
				assert.Equal(t, tt.wantCalls, rec.Calls())
			}
		})
	}
}

func TestPickerResultsAreEmitted(t *testing.T) {
	rec := native.NewRecorder()
	rec.OpenPath = "/home/u/it's.txt"
	rec.FolderPath = "/home/u"
	em := &recordingEmitter{}
	c := NewCommands(rec.Capabilities(), em, nil)

	c.Handle(`{"command":"open_file"}`)
	c.Handle(`{"command":"open_folder"}`)
	c.Handle(`{"command":"save_file"}`) // cancelled: no event

	assert.Equal(t, []emitted{
		{EventFileOpen, "/home/u/it's.txt"},
		{EventFolderOpen, "/home/u"},
	}, em.events)
}

func TestClipboardReadEmitsText(t *testing.T) {
	rec := native.NewRecorder()
	_ = rec.WriteText("line1\nline2")
	em := &recordingEmitter{}
	c := NewCommands(rec.Capabilities(), em, nil)

	c.Handle(`{"command":"clipboard_read"}`)
	assert.Equal(t, []emitted{{EventClipboardRead, "line1\nline2"}}, em.events)
}

func TestClipboardFailureEmitsEmpty(t *testing.T) {
	caps := native.NewRecorder().Capabilities()
	caps.Clipboard = failingClipboard{}
	em := &recordingEmitter{}
	c := NewCommands(caps, em, nil)

	c.Handle(`{"command":"clipboard_read"}`)
	assert.Equal(t, []emitted{{EventClipboardRead, ""}}, em.events)
}

func TestCommandsWithoutCapabilities(t *testing.T) {
	payloads := []string{
		`{"command":"dialog","message":"hi"}`,
		`{"command":"open_file"}`,
		`{"command":"open_folder"}`,
		`{"command":"save_file"}`,
		`{"command":"notify","message":"a: b"}`,
		`{"command":"clipboard_write","text":"x"}`,
		`{"command":"clipboard_read"}`,
		`{"command":"open_url","url":"https://example.com"}`,
	}
	em := &recordingEmitter{}
	c := NewCommands(native.Capabilities{}, em, nil)

	for _, p := range payloads {
		assert.NotPanics(t, func() { assert.True(t, c.Handle(p)) }, p)
	}
	assert.Equal(t, []emitted{{EventClipboardRead, ""}}, em.events)
}

func TestReceiveForwardsWithoutCapabilities(t *testing.T) {
	b := New(Config{}, nil, nil)
	b.AttachUI(&fakeUI{})
	b.UseCommands(NewCommands(native.Capabilities{}, b, nil))

	assert.NoError(t, b.Receive(t.Context(), `{"command":"dialog","message":"hi"}`))
	msg, ok := b.Drain()
	assert.True(t, ok)
	assert.Equal(t, `{"command":"dialog","message":"hi"}`, msg.Payload)
}

func TestReceiveRunsBuiltinsThenForwards(t *testing.T) {
	rec := native.NewRecorder()
	ui := &fakeUI{}
	b := New(Config{}, nil, nil)
	b.AttachUI(ui)
	b.UseCommands(NewCommands(rec.Capabilities(), b, nil))

	rec.OpenPath = "/tmp/x"
	assert.NoError(t, b.Receive(t.Context(), `{"command":"open_file"}`))
	assert.NoError(t, b.Receive(t.Context(), `{"command":"unknown"}`))

	assert.Equal(t, []string{`if(window.onFileOpen){window.onFileOpen('/tmp/x');}`}, ui.Evals())
	assert.Equal(t, 2, b.Pending())
}

func TestSplitNotification(t *testing.T) {
	title, body := SplitNotification("Title: Body: more")
	assert.Equal(t, "Title", title)
	assert.Equal(t, "Body: more", body)
}
