// Package coordinator connects the encode queue to the rest of the daemon.
//
// The Coordinator forwards encode jobs to the queue manager and reacts to the
// manager's outcome events. A completed job either registers its produced
// file with the metadata registrar or, for in-place encodes, refreshes the
// recording's stored file size. Whatever the persistence step returns,
// connected clients are then notified exactly once. Failed jobs only trigger
// the notification.
//
// The coordinator keeps no state between events and takes no locks;
// handlers run on the manager's worker goroutines and may interleave.
package coordinator
