package ipc

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Registrar forwards produced-file registrations to a running daemon. Each
// call dials a fresh connection so a restarted daemon is picked up without
// reconnect logic.
type Registrar struct {
	socket string
}

// NewRegistrar returns a Registrar for the daemon listening on socket.
func NewRegistrar(socket string) *Registrar {
	return &Registrar{socket: socket}
}

// RegisterProducedFile asks the daemon to catalogue the file. The context
// deadline bounds both the dial and the call.
func (r *Registrar) RegisterProducedFile(ctx context.Context, recordingID int64, name, path string, deleteSource bool) error {
	if r == nil || strings.TrimSpace(r.socket) == "" {
		return errors.New("registrar socket not configured")
	}
	client, err := DialContext(ctx, r.socket)
	if err != nil {
		return fmt.Errorf("dial daemon: %w", err)
	}
	defer client.Close()

	resp, err := client.RegisterFile(ctx, RegisterFileRequest{
		RecordingID:  recordingID,
		Name:         name,
		Path:         path,
		DeleteSource: deleteSource,
	})
	if err != nil {
		return fmt.Errorf("register produced file: %w", err)
	}
	if !resp.Registered {
		return fmt.Errorf("daemon did not register file for recording %d", recordingID)
	}
	return nil
}
