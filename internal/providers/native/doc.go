// Package native provides the blocking host capabilities exposed to
// applications: clipboard, file dialogs, desktop notifications and opening
// URLs with the system handler.
//
// Every call blocks until the platform tool returns. Failures are returned
// as errors; callers that face scripts turn them into empty or false values.
package native
