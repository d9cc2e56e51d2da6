package native

import (
	"testing"

	"github.com/GriffinCanCode/valkyrie/internal/infrastructure/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderClipboardRoundTrip(t *testing.T) {
	r := NewRecorder()
	caps := r.Capabilities()

	require.NoError(t, caps.Clipboard.WriteText("copied"))
	text, err := caps.Clipboard.ReadText()
	require.NoError(t, err)
	assert.Equal(t, "copied", text)

	assert.Equal(t, []Call{
		{Method: "clipboard.write", Args: []string{"copied"}},
		{Method: "clipboard.read"},
	}, r.Calls())
}

func TestRecorderPickers(t *testing.T) {
	r := NewRecorder()
	r.OpenPath = "/tmp/a.txt"

	p, err := r.OpenFile("Open File")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/a.txt", p)

	_, err = r.SaveFile("Save File")
	assert.ErrorIs(t, err, ErrCancelled)
}

func TestSystemOpenerRejectsEmptyTarget(t *testing.T) {
	caps := System(nil)
	assert.Error(t, caps.Opener.Open(""))
}

func TestRunnerFirstLine(t *testing.T) {
	out, err := runner{logger: logging.Nop()}.output("sh", "-c", "printf 'one\\ntwo\\n'")
	if err != nil {
		t.Skip("sh not available")
	}
	assert.Equal(t, "one", out)
}
