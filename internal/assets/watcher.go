package assets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/GriffinCanCode/valkyrie/internal/infrastructure/logging"
	"github.com/charlievieth/fastwalk"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watcher re-registers files under a directory when they change on disk.
// Because the module loader re-reads the store on every require, a changed
// script takes effect on its next import.
type Watcher struct {
	store   *Store
	root    string
	fsw     *fsnotify.Watcher
	logger  *logging.Logger
	onWrite func(path string)

	closeOnce sync.Once
	done      chan struct{}
}

// NewWatcher watches root and every directory beneath it.
func NewWatcher(store *Store, root string, logger *logging.Logger) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve watch root: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	w := &Watcher{
		store:  store,
		root:   abs,
		fsw:    fsw,
		logger: logging.OrNop(logger).Named("assets.watch"),
		done:   make(chan struct{}),
	}

	if err := w.addTree(abs); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// OnWrite sets a callback invoked with the store path after each reload.
// Must be called before Run.
func (w *Watcher) OnWrite(fn func(path string)) {
	w.onWrite = fn
}

func (w *Watcher) addTree(dir string) error {
	var mu sync.Mutex
	var dirs []string
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			mu.Lock()
			dirs = append(dirs, p)
			mu.Unlock()
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("walk %s: %w", dir, err)
	}

	for _, d := range dirs {
		if err := w.fsw.Add(d); err != nil {
			return fmt.Errorf("watch %s: %w", d, err)
		}
	}
	return nil
}

// Run processes filesystem events until ctx is cancelled or Close is called.
func (w *Watcher) Run(ctx context.Context) {
	defer w.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
		return
	}

	info, err := os.Stat(ev.Name)
	if err != nil {
		return
	}
	if info.IsDir() {
		if ev.Has(fsnotify.Create) {
			if err := w.addTree(ev.Name); err != nil {
				w.logger.Warn("watch new dir failed", zap.String("dir", ev.Name), zap.Error(err))
			}
		}
		return
	}

	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil {
		return
	}
	data, err := os.ReadFile(ev.Name)
	if err != nil {
		w.logger.Warn("reload read failed", zap.String("path", ev.Name), zap.Error(err))
		return
	}

	p := filepath.ToSlash(rel)
	w.store.Register(p, data, "")
	w.logger.Info("asset reloaded", zap.String("path", p))

	if w.onWrite != nil {
		w.onWrite(p)
	}
}

// Close stops watching. Safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.fsw.Close()
		if errors.Is(err, fsnotify.ErrClosed) {
			err = nil
		}
	})
	return err
}
