// Command tsencode is the CLI for the tsencode recording encoder.
//
// The hidden `daemon` subcommand runs the long-lived daemon in the
// foreground; every other subcommand talks to it over the unix socket
// (see internal/ipc) or, for logs, the optional HTTP API.
package main
