package shell

import (
	"net"
	"time"

	"github.com/GriffinCanCode/valkyrie/internal/bridge"
	"github.com/GriffinCanCode/valkyrie/internal/infrastructure/config"
	"github.com/GriffinCanCode/valkyrie/internal/network"
	"github.com/GriffinCanCode/valkyrie/internal/script"
	"github.com/GriffinCanCode/valkyrie/internal/view"
	"github.com/GriffinCanCode/valkyrie/internal/view/middleware"
)

// DefaultReadyTimeout bounds how long evaluation waits for the host.
const DefaultReadyTimeout = 5 * time.Second

// Config wires the shell's components.
type Config struct {
	Title        string
	ReadyTimeout time.Duration
	Headless     bool
	// WatchDir, when set, is watched and changed files are re-registered.
	WatchDir string

	View   view.WebConfig
	Script script.Config
	Bridge bridge.Config
}

// ConfigFrom maps runtime configuration onto the shell.
func ConfigFrom(c *config.Config) Config {
	cfg := Config{
		Title:        c.App.Title,
		ReadyTimeout: c.Shell.ReadyTimeout,
		Headless:     c.View.Headless,
		View: view.WebConfig{
			Addr:         net.JoinHostPort(c.View.Host, c.View.Port),
			Gzip:         c.View.Gzip,
			DispatchSize: c.Bridge.DispatchSize,
			RateLimited:  c.RateLimit.Enabled,
			RateLimit: middleware.RateLimitConfig{
				RequestsPerSecond: c.RateLimit.RequestsPerSecond,
				Burst:             c.RateLimit.Burst,
			},
			Development: c.Logging.Development,
		},
		Script: script.Config{
			ModuleCache:  c.Script.ModuleCache,
			MaxCallStack: c.Script.MaxCallStack,
			Network: network.Config{
				DialTimeout: c.Network.DialTimeout,
				ReadBuffer:  c.Network.ReadBuffer,
			},
		},
		Bridge: bridge.Config{QueueSize: c.Bridge.QueueSize},
	}
	if c.Assets.Watch {
		cfg.WatchDir = c.App.Dir
	}
	return cfg
}
