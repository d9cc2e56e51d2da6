package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all runtime configuration.
type Config struct {
	App       AppConfig
	View      ViewConfig
	Script    ScriptConfig
	Network   NetworkConfig
	Bridge    BridgeConfig
	Shell     ShellConfig
	Assets    AssetsConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// AppConfig describes the hosted application.
type AppConfig struct {
	Title    string `envconfig:"APP_TITLE" default:"Valkyrie App"`
	Width    int    `envconfig:"APP_WIDTH" default:"1280"`
	Height   int    `envconfig:"APP_HEIGHT" default:"720"`
	Dir      string `envconfig:"APP_DIR" default:"."`
	Manifest string `envconfig:"APP_MANIFEST" default:""`
}

// ViewConfig holds UI surface configuration.
type ViewConfig struct {
	Host     string `envconfig:"VIEW_HOST" default:"127.0.0.1"`
	Port     string `envconfig:"VIEW_PORT" default:"8765"`
	Headless bool   `envconfig:"VIEW_HEADLESS" default:"false"`
	Gzip     bool   `envconfig:"VIEW_GZIP" default:"true"`
}

// ScriptConfig holds Script Host configuration.
type ScriptConfig struct {
	ModuleCache  bool `envconfig:"SCRIPT_MODULE_CACHE" default:"false"`
	MaxCallStack int  `envconfig:"SCRIPT_MAX_CALL_STACK" default:"1024"`
}

// NetworkConfig holds network stack configuration.
type NetworkConfig struct {
	DialTimeout time.Duration `envconfig:"NET_DIAL_TIMEOUT" default:"10s"`
	ReadBuffer  int           `envconfig:"NET_READ_BUFFER" default:"65536"`
}

// BridgeConfig holds cross-thread bridge configuration.
type BridgeConfig struct {
	QueueSize    int `envconfig:"BRIDGE_QUEUE_SIZE" default:"1024"`
	DispatchSize int `envconfig:"BRIDGE_DISPATCH_SIZE" default:"256"`
}

// ShellConfig holds application shell configuration.
type ShellConfig struct {
	ReadyTimeout time.Duration `envconfig:"SHELL_READY_TIMEOUT" default:"5s"`
}

// AssetsConfig holds asset store configuration.
type AssetsConfig struct {
	Watch bool `envconfig:"ASSETS_WATCH" default:"false"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds inbound UI message rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"200"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"400"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		App: AppConfig{
			Title:  "Valkyrie App",
			Width:  1280,
			Height: 720,
			Dir:    ".",
		},
		View: ViewConfig{
			Host: "127.0.0.1",
			Port: "8765",
			Gzip: true,
		},
		Script: ScriptConfig{
			ModuleCache:  false,
			MaxCallStack: 1024,
		},
		Network: NetworkConfig{
			DialTimeout: 10 * time.Second,
			ReadBuffer:  65536,
		},
		Bridge: BridgeConfig{
			QueueSize:    1024,
			DispatchSize: 256,
		},
		Shell: ShellConfig{
			ReadyTimeout: 5 * time.Second,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 200,
			Burst:             400,
			Enabled:           true,
		},
	}
}
