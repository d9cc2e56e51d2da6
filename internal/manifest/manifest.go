// Package manifest reads the app description that sits next to an app's
// assets: app.toml, app.yaml or the name and version of a package.json.
package manifest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"
)

// ErrUnsupportedFormat is returned for files that are not TOML, YAML or JSON.
var ErrUnsupportedFormat = errors.New("manifest: unsupported format")

// Format identifies a manifest encoding.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
)

// Defaults applied to fields a manifest leaves empty.
const (
	DefaultTitle  = "Valkyrie App"
	DefaultWidth  = 1280
	DefaultHeight = 720
	DefaultEntry  = "app.js"
	DefaultIndex  = "index.html"
)

// candidates are probed in order by Discover.
var candidates = []string{"app.toml", "app.yaml", "app.yml", "package.json"}

// Manifest describes how to launch an app.
type Manifest struct {
	Name    string `toml:"name" yaml:"name" json:"name"`
	Version string `toml:"version" yaml:"version" json:"version"`
	Title   string `toml:"title" yaml:"title" json:"title"`
	Width   int    `toml:"width" yaml:"width" json:"width"`
	Height  int    `toml:"height" yaml:"height" json:"height"`
	// Entry is the asset path of the logic script.
	Entry string `toml:"entry" yaml:"entry" json:"entry"`
	// Index is the asset path of the page.
	Index string `toml:"index" yaml:"index" json:"index"`
}

// Default returns the manifest used when an app ships none.
func Default() Manifest {
	return Manifest{}.withDefaults()
}

func (m Manifest) withDefaults() Manifest {
	if m.Title == "" {
		m.Title = m.Name
	}
	if m.Title == "" {
		m.Title = DefaultTitle
	}
	if m.Width <= 0 {
		m.Width = DefaultWidth
	}
	if m.Height <= 0 {
		m.Height = DefaultHeight
	}
	if m.Entry == "" {
		m.Entry = DefaultEntry
	}
	if m.Index == "" {
		m.Index = DefaultIndex
	}
	return m
}

// FormatOf maps a file name to its format.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".json":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedFormat, path)
	}
}

// Parse decodes data and fills defaults.
func Parse(data []byte, format Format) (Manifest, error) {
	var (
		m   Manifest
		err error
	)
	switch format {
	case FormatTOML:
		err = toml.Unmarshal(data, &m)
	case FormatYAML:
		err = yaml.Unmarshal(data, &m)
	case FormatJSON:
		err = sonic.Unmarshal(data, &m)
	default:
		return Manifest{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return Manifest{}, fmt.Errorf("failed to parse %s manifest: %w", format, err)
	}
	return m.withDefaults(), nil
}

// Load reads the manifest at path.
func Load(path string) (Manifest, error) {
	format, err := FormatOf(path)
	if err != nil {
		return Manifest{}, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("failed to read manifest: %w", err)
	}
	return Parse(data, format)
}

// Discover loads the first manifest found in dir. With none present it
// returns Default and an empty path.
func Discover(dir string) (Manifest, string, error) {
	for _, name := range candidates {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		m, err := Load(path)
		return m, path, err
	}
	return Default(), "", nil
}
