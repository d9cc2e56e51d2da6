package shell

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/GriffinCanCode/valkyrie/internal/assets"
	"github.com/GriffinCanCode/valkyrie/internal/bridge"
	"github.com/GriffinCanCode/valkyrie/internal/infrastructure/logging"
	"github.com/GriffinCanCode/valkyrie/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/valkyrie/internal/providers/native"
	"github.com/GriffinCanCode/valkyrie/internal/script"
	"github.com/GriffinCanCode/valkyrie/internal/view"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrInvalidState is returned when an operation is not valid in the
	// current lifecycle state.
	ErrInvalidState = errors.New("shell: invalid state")
	// ErrNotReady is returned when the script host did not become ready
	// within the configured timeout. The evaluation is skipped.
	ErrNotReady = errors.New("shell: script host not ready")
	// ErrAssetNotFound is returned for asset paths missing from the store.
	ErrAssetNotFound = errors.New("shell: asset not found")
)

//go:embed api.js
var apiScript string

// DefaultHTML is shown when Run starts without content.
//
//go:embed default.html
var DefaultHTML string

// Options supplies collaborators. All fields are optional.
type Options struct {
	Logger       *logging.Logger
	Metrics      *monitoring.Metrics
	Capabilities native.Capabilities
	// Store is used instead of a fresh Asset Store.
	Store *assets.Store
	// View is used instead of the one Config selects.
	View view.View
}

// Shell owns the Asset Store, Bridge, Script Host and View of one app and
// drives them through the lifecycle.
type Shell struct {
	cfg Config
	id  string

	store   *assets.Store
	bridge  *bridge.Bridge
	host    *script.Host
	view    view.View
	watcher *assets.Watcher

	logger  *logging.Logger
	metrics *monitoring.Metrics

	mu         sync.Mutex
	state      State
	hasContent bool
	page       string
	running    bool

	stopping chan struct{}
	stopped  chan struct{}
}

// New builds the components. Nothing runs until Init.
func New(cfg Config, opts Options) *Shell {
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = DefaultReadyTimeout
	}
	instance := uuid.NewString()
	logger := opts.Logger.WithFields(zap.String("instance_id", instance))

	store := opts.Store
	if store == nil {
		store = assets.NewStore(logger, opts.Metrics)
	}

	v := opts.View
	if v == nil {
		if cfg.Headless {
			v = view.NewHeadless(cfg.View.DispatchSize, logger)
		} else {
			webCfg := cfg.View
			webCfg.ID = instance
			v = view.NewWeb(webCfg, store, logger, opts.Metrics)
		}
	}

	b := bridge.New(cfg.Bridge, logger, opts.Metrics)
	b.AttachUI(v)
	b.UseCommands(bridge.NewCommands(opts.Capabilities, b, logger))

	host := script.New(cfg.Script, script.Deps{
		Assets:       store,
		Bridge:       b,
		Capabilities: opts.Capabilities,
		Logger:       logger,
		Metrics:      opts.Metrics,
	})

	s := &Shell{
		cfg:      cfg,
		id:       instance,
		store:    store,
		bridge:   b,
		host:     host,
		view:     v,
		logger:   logger.Named("shell"),
		metrics:  opts.Metrics,
		state:    Created,
		stopping: make(chan struct{}),
		stopped:  make(chan struct{}),
	}

	v.Bind(s.receive)
	if cfg.Title != "" {
		v.SetTitle(cfg.Title)
	}
	return s
}

// ID identifies this shell instance in logs and the view's /health.
func (s *Shell) ID() string {
	return s.id
}

// Assets returns the shell's Asset Store.
func (s *Shell) Assets() *assets.Store {
	return s.store
}

// View returns the UI surface.
func (s *Shell) View() view.View {
	return s.view
}

// State returns the current lifecycle state.
func (s *Shell) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Init starts the logic loop. The shell is Running once the script host
// has installed its bindings.
func (s *Shell) Init() error {
	s.mu.Lock()
	if s.state != Created {
		st := s.state
		s.mu.Unlock()
		return fmt.Errorf("%w: init while %s", ErrInvalidState, st)
	}
	s.state = Initializing
	s.mu.Unlock()

	if s.cfg.WatchDir != "" {
		w, err := assets.NewWatcher(s.store, s.cfg.WatchDir, s.logger)
		if err != nil {
			s.logger.Warn("asset watching disabled", zap.String("dir", s.cfg.WatchDir), zap.Error(err))
		} else {
			w.OnWrite(s.assetChanged)
			s.watcher = w
		}
	}

	if err := s.host.Start(); err != nil {
		s.Stop()
		return fmt.Errorf("failed to start script host: %w", err)
	}

	go func() {
		select {
		case <-s.host.Ready():
			s.mu.Lock()
			if s.state == Initializing {
				s.state = Running
			}
			s.mu.Unlock()
			s.logger.Info("shell running")
		case <-s.stopping:
		}
	}()
	return nil
}

// WaitReady blocks until the shell is Running, ctx ends or the shell stops.
func (s *Shell) WaitReady(ctx context.Context) error {
	if st := s.State(); st == Created || st >= Stopping {
		return fmt.Errorf("%w: wait while %s", ErrInvalidState, st)
	}
	select {
	case <-s.host.Ready():
		return nil
	case <-s.stopping:
		return fmt.Errorf("%w: stopped while waiting", ErrInvalidState)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drives the view until ctx ends or the view terminates, then stops
// the shell.
func (s *Shell) Run(ctx context.Context) error {
	s.mu.Lock()
	st := s.state
	if (st != Initializing && st != Running) || s.running {
		s.mu.Unlock()
		return fmt.Errorf("%w: run while %s", ErrInvalidState, st)
	}
	s.running = true
	hasContent := s.hasContent
	s.mu.Unlock()

	if !hasContent {
		if err := s.SetContent(DefaultHTML); err != nil {
			return err
		}
	}

	if s.watcher != nil {
		wctx, cancel := context.WithCancel(ctx)
		defer cancel()
		go s.watcher.Run(wctx)
	}

	err := s.view.Run(ctx)
	s.Stop()
	if err != nil {
		return fmt.Errorf("view stopped: %w", err)
	}
	return nil
}

// Stop tears the shell down: the bridge stops accepting traffic, the logic
// loop cancels in-flight I/O and drains, the host is released and the view
// terminates. Concurrent callers all return once the shell is Stopped.
func (s *Shell) Stop() {
	s.mu.Lock()
	switch s.state {
	case Stopped:
		s.mu.Unlock()
		return
	case Stopping:
		s.mu.Unlock()
		<-s.stopped
		return
	}
	from := s.state
	s.state = Stopping
	close(s.stopping)
	s.mu.Unlock()

	start := time.Now()
	s.bridge.Close()
	if from != Created {
		s.host.Close()
	}
	s.view.Terminate()
	if s.watcher != nil {
		if err := s.watcher.Close(); err != nil {
			s.logger.Warn("failed to close asset watcher", zap.Error(err))
		}
	}

	s.mu.Lock()
	s.state = Stopped
	s.mu.Unlock()
	close(s.stopped)

	s.logger.Info("shell stopped", zap.String("from", from.String()), zap.Duration("took", time.Since(start)))
}

// SetContent injects the window.valkyrie API into html and shows it.
func (s *Shell) SetContent(html string) error {
	if st := s.State(); st >= Stopping {
		return fmt.Errorf("%w: set content while %s", ErrInvalidState, st)
	}
	doc, err := view.InjectScript(html, pageAPI())
	if err != nil {
		return fmt.Errorf("failed to inject page api: %w", err)
	}

	s.mu.Lock()
	s.hasContent = true
	s.mu.Unlock()
	s.view.SetHTML(doc)
	return nil
}

// LoadPage shows the HTML asset at p. With asset watching on, the page is
// re-shown whenever the file changes.
func (s *Shell) LoadPage(p string) error {
	asset, ok := s.store.Read(p)
	if !ok {
		return fmt.Errorf("%w: %s", ErrAssetNotFound, p)
	}
	if err := s.SetContent(asset.Text()); err != nil {
		return err
	}
	s.mu.Lock()
	s.page = asset.Path
	s.mu.Unlock()
	return nil
}

// Evaluate runs code on the logic loop.
func (s *Shell) Evaluate(code string) error {
	return s.LoadScript(code, "<eval>")
}

// LoadScript runs code on the logic loop under name. Script exceptions are
// reported to the log and the view console, not returned.
func (s *Shell) LoadScript(code, name string) error {
	if err := s.awaitReady(); err != nil {
		return err
	}
	if err := s.host.Eval(code, name); err != nil {
		return fmt.Errorf("failed to queue %s: %w", name, err)
	}
	return nil
}

// LoadFromAssets runs the script asset at p.
func (s *Shell) LoadFromAssets(p string) error {
	asset, ok := s.store.Read(p)
	if !ok {
		return fmt.Errorf("%w: %s", ErrAssetNotFound, p)
	}
	return s.LoadScript(asset.Text(), asset.Path)
}

// awaitReady waits up to the ready timeout for the host.
func (s *Shell) awaitReady() error {
	st := s.State()
	if st != Initializing && st != Running {
		return fmt.Errorf("%w: evaluate while %s", ErrInvalidState, st)
	}
	if st == Running {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ReadyTimeout)
	defer cancel()
	if err := s.WaitReady(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			s.logger.Warn("script host not ready, evaluation skipped", zap.Duration("timeout", s.cfg.ReadyTimeout))
			return ErrNotReady
		}
		return err
	}
	return nil
}

// receive is bound to the view as the native_send entry point.
func (s *Shell) receive(ctx context.Context, payload string) {
	if err := s.bridge.Receive(ctx, payload); err != nil && !errors.Is(err, bridge.ErrMalformedPayload) {
		s.logger.Debug("page message not delivered", zap.Error(err))
	}
}

func (s *Shell) assetChanged(p string) {
	s.mu.Lock()
	page := s.page
	s.mu.Unlock()
	if page == "" || p != page {
		return
	}
	if err := s.LoadPage(p); err != nil {
		s.logger.Warn("failed to reload page", zap.String("path", p), zap.Error(err))
	}
}

func pageAPI() string {
	return strings.NewReplacer(
		"__VALKYRIE_VERSION__", script.Version,
		"__VALKYRIE_PLATFORM__", script.Platform(),
	).Replace(apiScript)
}
