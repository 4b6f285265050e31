// Package logging assembles structured slog loggers and formatting helpers used
// across tsencode.
//
// It owns the configurable console/JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so worker and RPC code can tag
// log lines with job IDs, recording IDs, and correlation IDs. StreamHub keeps a
// bounded in-memory tail of records for the HTTP log endpoint.
package logging
