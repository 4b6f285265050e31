// Package queue persists encode jobs in SQLite and exposes helpers for
// driving their lifecycle.
//
// The Store owns job rows from submission through completion: workers claim
// the oldest pending job atomically, report progress and heartbeats while
// encoding, and record the final output path or failure message. Jobs left in
// the encoding state by a crash are reset at startup, and jobs whose heartbeat
// expires are reclaimed while the daemon runs.
//
// The database is treated as durable storage for in-flight and recent jobs
// rather than a long-term archive; the journal package keeps the outcome
// history. When you add columns, update schema.sql and bump schemaVersion.
package queue
