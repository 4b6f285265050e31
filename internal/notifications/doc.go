// Package notifications delivers operator push alerts via ntfy.
//
// The default implementation publishes to the ntfy topic configured in
// config.toml and degrades to a no-op when no topic is set. Events are
// enumerated so callers emit consistent messages without duplicating HTTP
// glue; per-event toggles in the notifications section suppress the ones an
// operator does not want.
//
// These alerts are for people, not programs: client state-change signalling
// lives in package notify.
package notifications
