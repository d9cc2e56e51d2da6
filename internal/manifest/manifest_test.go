package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		data   string
		want   Manifest
	}{
		{
			name:   "toml",
			format: FormatTOML,
			data:   "title = \"Notes\"\nwidth = 800\nheight = 600\nentry = \"main.js\"\n",
			want:   Manifest{Title: "Notes", Width: 800, Height: 600, Entry: "main.js", Index: DefaultIndex},
		},
		{
			name:   "yaml",
			format: FormatYAML,
			data:   "title: Notes\nindex: ui/index.html\n",
			want:   Manifest{Title: "Notes", Width: DefaultWidth, Height: DefaultHeight, Entry: DefaultEntry, Index: "ui/index.html"},
		},
		{
			name:   "package.json falls back to name",
			format: FormatJSON,
			data:   `{"name": "my-app", "version": "0.2.0", "dependencies": {}}`,
			want:   Manifest{Name: "my-app", Version: "0.2.0", Title: "my-app", Width: DefaultWidth, Height: DefaultHeight, Entry: DefaultEntry, Index: DefaultIndex},
		},
		{
			name:   "empty",
			format: FormatYAML,
			data:   "",
			want:   Default(),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse([]byte(tt.data), tt.format)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseErrors(t *testing.T) {
	_, err := Parse([]byte("title = "), FormatTOML)
	assert.Error(t, err)

	_, err = Parse([]byte("{}"), Format("ini"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	_, err = FormatOf("app.ini")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()

	m, path, err := Discover(dir)
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, Default(), m)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "package.json"), []byte(`{"name":"pkg"}`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.yaml"), []byte("title: From YAML\n"), 0o644))

	m, path, err = Discover(dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "app.yaml"), path)
	assert.Equal(t, "From YAML", m.Title)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "app.toml"))
	assert.Error(t, err)
}
