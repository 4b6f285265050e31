// Package notify tells connected clients that recording or queue state
// changed.
//
// NotifyClients bumps an in-memory Hub that HTTP clients long-poll through
// GET /api/events, and, when a Redis address is configured, publishes a
// small JSON message on the broadcast channel so out-of-process subscribers
// refresh too. The message carries no payload beyond a sequence number:
// clients re-read whatever state they display. Publishing never blocks the
// caller and never fails from the caller's point of view.
package notify
