package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/GriffinCanCode/valkyrie/internal/infrastructure/config"
	"github.com/GriffinCanCode/valkyrie/internal/infrastructure/logging"
	"github.com/GriffinCanCode/valkyrie/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/valkyrie/internal/manifest"
	"github.com/GriffinCanCode/valkyrie/internal/providers/native"
	"github.com/GriffinCanCode/valkyrie/internal/shell"
	"go.uber.org/zap"
)

func main() {
	if err := run(os.Args[1:]); err != nil && !errors.Is(err, flag.ErrHelp) {
		fmt.Fprintln(os.Stderr, "valkyrie:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	titleSet, err := applyFlags(cfg, args)
	if err != nil {
		return err
	}

	logger := logging.FromConfig(cfg.Logging.Level, cfg.Logging.Development)
	defer logger.Sync()

	m, err := loadManifest(cfg)
	if err != nil {
		return err
	}
	if _, env := os.LookupEnv("APP_TITLE"); !env && !titleSet {
		cfg.App.Title = m.Title
	}

	logger.Info("starting valkyrie",
		zap.String("dir", cfg.App.Dir),
		zap.String("title", cfg.App.Title),
		zap.Int("width", m.Width),
		zap.Int("height", m.Height),
		zap.Bool("headless", cfg.View.Headless))

	s := shell.New(shell.ConfigFrom(cfg), shell.Options{
		Logger:       logger,
		Metrics:      monitoring.NewMetrics(),
		Capabilities: native.System(logger),
	})
	defer s.Stop()

	n, err := s.Assets().LoadDir(cfg.App.Dir)
	if err != nil {
		return fmt.Errorf("failed to load app: %w", err)
	}
	logger.Info("assets loaded", zap.Int("count", n))

	if err := s.Init(); err != nil {
		return err
	}

	if s.Assets().Exists(m.Index) {
		if err := s.LoadPage(m.Index); err != nil {
			logger.Warn("failed to load page", zap.String("index", m.Index), zap.Error(err))
		}
	}
	if err := s.LoadFromAssets(m.Entry); err != nil {
		if !errors.Is(err, shell.ErrAssetNotFound) {
			return err
		}
		logger.Warn("no entry script", zap.String("entry", m.Entry))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := s.Run(ctx); err != nil {
		return err
	}
	logger.Info("valkyrie stopped")
	return nil
}

// applyFlags overrides c with the flags given in args. It reports whether
// the title was set explicitly.
func applyFlags(c *config.Config, args []string) (bool, error) {
	fs := flag.NewFlagSet("valkyrie", flag.ContinueOnError)
	dir := fs.String("dir", c.App.Dir, "App directory")
	manifestPath := fs.String("manifest", c.App.Manifest, "Manifest file (default: discovered in -dir)")
	title := fs.String("title", c.App.Title, "Window title")
	host := fs.String("host", c.View.Host, "View listen host")
	port := fs.String("port", c.View.Port, "View listen port")
	headless := fs.Bool("headless", c.View.Headless, "Run without serving the page")
	watch := fs.Bool("watch", c.Assets.Watch, "Reload assets when files change")
	moduleCache := fs.Bool("module-cache", c.Script.ModuleCache, "Cache module exports")
	level := fs.String("log-level", c.Logging.Level, "Log level")
	dev := fs.Bool("dev", c.Logging.Development, "Development mode (colored logs, debug level)")
	if err := fs.Parse(args); err != nil {
		return false, err
	}

	c.App.Dir = *dir
	c.App.Manifest = *manifestPath
	c.App.Title = *title
	c.View.Host = *host
	c.View.Port = *port
	c.View.Headless = *headless
	c.Assets.Watch = *watch
	c.Script.ModuleCache = *moduleCache
	c.Logging.Level = *level
	c.Logging.Development = *dev
	if *dev && !flagSet(fs, "log-level") {
		c.Logging.Level = "debug"
	}
	return flagSet(fs, "title"), nil
}

func flagSet(fs *flag.FlagSet, name string) bool {
	set := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}

// loadManifest reads the configured manifest, or discovers one in the app
// directory.
func loadManifest(c *config.Config) (manifest.Manifest, error) {
	if c.App.Manifest != "" {
		m, err := manifest.Load(c.App.Manifest)
		if err != nil {
			return manifest.Manifest{}, fmt.Errorf("failed to load manifest: %w", err)
		}
		return m, nil
	}
	m, _, err := manifest.Discover(c.App.Dir)
	if err != nil {
		return manifest.Manifest{}, fmt.Errorf("failed to load manifest: %w", err)
	}
	return m, nil
}
