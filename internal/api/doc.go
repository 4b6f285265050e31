// Package api defines wire-format types and converters for the IPC and HTTP
// API layer. It translates internal queue, recording, and journal models into
// transport-friendly DTOs that the CLI and web clients render without coupling
// to internal types.
//
// # Key Types
//
// JobItem: transport representation of an encode job with progress.
//
// RecordingItem: a catalogued recording together with its encoded files.
//
// DaemonStatus: aggregated runtime information including encoder dependencies.
//
// HistoryEntry, LogEvent, StateEvent: journal, log tail, and client
// notification payloads.
//
// # Design Notes
//
// DTOs use camelCase JSON tags for JavaScript consumers. Internal enums
// (queue.Status, queue.Mode) are exposed as lowercase strings. Timestamps use
// RFC3339 with milliseconds.
package api
