// Package config provides 12-factor configuration management for the runtime.
//
// Configuration is loaded from environment variables with sensible defaults.
// CLI flags in cmd/valkyrie override environment variables.
//
// Configuration Sections:
//   - App: title, window size, application directory, manifest path
//   - View: UI surface listen address, headless mode, gzip
//   - Script: module cache toggle, call stack limit
//   - Network: dial timeout, read buffer size
//   - Bridge: inbound queue and UI dispatch capacities
//   - Shell: logic loop readiness timeout
//   - Assets: hot reload watcher
//   - Logging: log level and output format
//   - RateLimit: inbound UI message rate limiting
//
// Example Usage:
//
//	cfg := config.LoadOrDefault()
//	fmt.Printf("view on %s:%s\n", cfg.View.Host, cfg.View.Port)
//
// Environment Variables:
//   - APP_TITLE, APP_WIDTH, APP_HEIGHT, APP_DIR, APP_MANIFEST
//   - VIEW_HOST, VIEW_PORT, VIEW_HEADLESS, VIEW_GZIP
//   - SCRIPT_MODULE_CACHE, SCRIPT_MAX_CALL_STACK
//   - NET_DIAL_TIMEOUT, NET_READ_BUFFER
//   - BRIDGE_QUEUE_SIZE, BRIDGE_DISPATCH_SIZE
//   - SHELL_READY_TIMEOUT, ASSETS_WATCH
//   - LOG_LEVEL, LOG_DEV
//   - RATE_LIMIT_RPS, RATE_LIMIT_BURST, RATE_LIMIT_ENABLED
package config
