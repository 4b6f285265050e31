// Package encodemanager owns the encode queue: it accepts jobs, runs them on
// a fixed pool of worker goroutines, and tells registered listeners how each
// job ended.
//
// Jobs are persisted in the queue store before Push returns, so work survives
// daemon restarts. Each worker claims the oldest pending job, keeps its
// heartbeat fresh while the encoder runs, persists throttled progress, and
// finally marks the job completed or failed. Only after the queue row and the
// journal entry are written are the completion or error listeners invoked,
// on the worker goroutine that ran the job.
//
// In-place jobs encode into a per-job staging directory and then replace the
// recording's source file through a verified copy; the produced path reported
// to listeners is the source path itself.
package encodemanager
