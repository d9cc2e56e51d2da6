// Package main is the entry point for the Valkyrie app runtime.
//
// It loads an app directory into the Asset Store, reads its manifest
// (app.toml, app.yaml or package.json), shows the manifest's index page,
// runs its entry script and serves the page until interrupted.
//
// Configuration:
//   - Environment variables (see internal/infrastructure/config)
//   - CLI flags (override env vars)
//
// Usage:
//
//	# Serve ./myapp on http://127.0.0.1:8765
//	./valkyrie -dir ./myapp
//
//	# Headless, with hot reload and debug logs
//	./valkyrie -dir ./myapp -headless -watch -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
