package assets

import (
	"bytes"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/GriffinCanCode/valkyrie/internal/infrastructure/logging"
	"github.com/GriffinCanCode/valkyrie/internal/infrastructure/monitoring"
	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"
)

// Asset is one registered blob.
type Asset struct {
	Path  string
	Bytes []byte
	MIME  string
}

// Text returns the asset contents as a string.
func (a Asset) Text() string {
	return string(a.Bytes)
}

// Store is a path-keyed asset registry safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	entries map[string]Asset

	logger  *logging.Logger
	metrics *monitoring.Metrics
}

// NewStore creates an empty store. Logger and metrics may be nil.
func NewStore(logger *logging.Logger, metrics *monitoring.Metrics) *Store {
	return &Store{
		entries: make(map[string]Asset),
		logger:  logging.OrNop(logger).Named("assets"),
		metrics: metrics,
	}
}

// Register inserts or overwrites the entry at p. The bytes are copied so the
// caller may reuse its slice. An empty mimeHint is filled by detection.
func (s *Store) Register(p string, data []byte, mimeHint string) {
	owned := bytes.Clone(data)
	if owned == nil {
		owned = []byte{}
	}
	if mimeHint == "" {
		mimeHint = DetectMIME(p, owned)
	}

	s.mu.Lock()
	s.entries[p] = Asset{Path: p, Bytes: owned, MIME: mimeHint}
	n := len(s.entries)
	s.mu.Unlock()

	s.metrics.SetAssetCount(n)
	s.logger.Debug("asset registered", zap.String("path", p), zap.String("mime", mimeHint))
}

// Read returns the entry for p, trying p verbatim and then with one leading
// separator stripped or added.
func (s *Store) Read(p string) (Asset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if a, ok := s.entries[p]; ok {
		return a, true
	}
	if alt, ok := strings.CutPrefix(p, "/"); ok {
		a, found := s.entries[alt]
		return a, found
	}
	a, found := s.entries["/"+p]
	return a, found
}

// Exists reports whether Read(p) would succeed.
func (s *Store) Exists(p string) bool {
	_, ok := s.Read(p)
	return ok
}

// List returns all registered paths in no particular order.
func (s *Store) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	paths := make([]string, 0, len(s.entries))
	for p := range s.entries {
		paths = append(paths, p)
	}
	return paths
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Glob returns the registered paths matching a doublestar pattern such as
// "ui/**/*.css". A leading "/" on either side is ignored.
func (s *Store) Glob(pattern string) ([]string, error) {
	pattern = strings.TrimPrefix(pattern, "/")
	if !doublestar.ValidatePattern(pattern) {
		return nil, fmt.Errorf("%w: %q", doublestar.ErrBadPattern, pattern)
	}

	var matches []string
	for _, p := range s.List() {
		if ok, _ := doublestar.Match(pattern, strings.TrimPrefix(p, "/")); ok {
			matches = append(matches, p)
		}
	}
	return matches, nil
}

// LoadDir registers every regular file under dir by its slash-separated path
// relative to dir. It returns the number of files registered.
func (s *Store) LoadDir(dir string) (int, error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return 0, fmt.Errorf("resolve asset dir: %w", err)
	}

	var (
		mu    sync.Mutex
		count int
	)
	conf := fastwalk.Config{Follow: false}
	err = fastwalk.Walk(&conf, root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			s.logger.Warn("asset walk error", zap.String("path", p), zap.Error(err))
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		data, err := os.ReadFile(p)
		if err != nil {
			s.logger.Warn("asset read failed", zap.String("path", p), zap.Error(err))
			return nil
		}
		s.Register(filepath.ToSlash(rel), data, "")

		mu.Lock()
		count++
		mu.Unlock()
		return nil
	})
	if err != nil {
		return count, fmt.Errorf("walk %s: %w", root, err)
	}

	s.logger.Info("assets loaded", zap.String("dir", root), zap.Int("count", count))
	return count, nil
}

// DetectMIME guesses a MIME type from the extension, falling back to
// content sniffing.
func DetectMIME(p string, data []byte) string {
	if t := mime.TypeByExtension(path.Ext(p)); t != "" {
		return t
	}
	return mimetype.Detect(data).String()
}
