// Package ipc exposes the daemon over JSON-RPC on a Unix socket and ships the
// matching client used by the CLI.
//
// The server embeds the daemon and converts results into the api package
// DTOs so socket and HTTP callers see the same shapes. The client wraps each
// call with the dial timeout so commands fail fast when the daemon is
// offline. Registrar adapts RegisterFile to the coordinator's registrar
// contract for processes that encode outside the daemon.
package ipc
