// Package logging provides structured logging using uber/zap.
//
// Two presets are offered:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Every runtime component takes a *Logger and derives a named child from
// it (bridge, substrate, network, script, view, shell), so log lines carry
// the component in the logger name field. Script console output is routed
// through the "script" logger.
//
// Example Usage:
//
//	logger := logging.NewDefault()
//	logger.Named("bridge").Info("message queued", zap.String("id", msg.ID))
//	logger.Error("fetch failed", zap.Error(err))
package logging
