// Package logs reads daemon logs for the CLI: offset-based tailing of the
// per-run log file (served over IPC) and a client for the HTTP log stream.
//
// Negative offsets mean "last N lines". Follow mode polls until new lines
// arrive or the wait elapses, so callers loop with the returned offset.
package logs
