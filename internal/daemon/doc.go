// Package daemon coordinates the long-running tsencode process.
//
// It wires configuration, the queue and recordings stores, the encode manager,
// the coordinator, and client notification into a single lifecycle with
// flock-based locking to prevent multiple instances. The daemon exposes the
// maintenance helpers used by the IPC server, serves the HTTP API, and sends
// operator push alerts when encodes finish.
//
// Keep orchestration logic here: encode execution lives in encodemanager and
// result persistence in coordinator, while the daemon focuses on startup,
// shutdown, and high level coordination.
package daemon
