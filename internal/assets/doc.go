// Package assets implements the in-memory virtual file system that supplies
// both UI assets and script source to a running application.
//
// Entries are immutable once registered. A later Register with the same path
// replaces the entry atomically; readers never observe a partial entry.
// Lookups accept paths with or without one leading "/".
package assets
