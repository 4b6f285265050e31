// Package services defines shared utilities consumed by the encode pipeline
// and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp recording IDs, encode job IDs, and
//     correlation identifiers for logging and tracing.
//   - Structured error markers plus the Wrap helper so callers can classify
//     failures (bad submission, missing recording, tool failure) with
//     errors.Is instead of string matching.
//
// Use these helpers when wiring new components so error handling and
// observability stay uniform across the daemon.
package services
