// Package journal keeps a history of finished encode jobs in a Pebble
// key-value store.
//
// Every job that leaves the encoding state writes one Entry under a
// success/ or failure/ prefix keyed by job id. The queue database only
// tracks live state and can be cleared; the journal is what the history API
// and the CLI read when an operator asks what happened to a recording last
// week. Entries older than journal.retention_days are pruned by Cleanup.
package journal
