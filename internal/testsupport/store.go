package testsupport

import (
	"context"
	"path/filepath"
	"testing"

	"tsencode/internal/config"
	"tsencode/internal/queue"
	"tsencode/internal/recordings"
)

// MustOpenQueue opens a queue.Store for tests and registers cleanup.
func MustOpenQueue(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("queue.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// MustOpenRecordings opens a recordings.Store for tests and registers cleanup.
func MustOpenRecordings(t testing.TB, cfg *config.Config) *recordings.Store {
	t.Helper()

	store, err := recordings.Open(cfg)
	if err != nil {
		t.Fatalf("recordings.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewRecording writes a source file of the given size under the test base
// directory and catalogues it.
func NewRecording(t testing.TB, cfg *config.Config, store *recordings.Store, name string, size int64) *recordings.Recording {
	t.Helper()

	source := filepath.Join(BaseDir(cfg), "recorded", name+".ts")
	WriteFile(t, source, size)
	rec, err := store.NewRecording(context.Background(), name, "", source)
	if err != nil {
		t.Fatalf("store.NewRecording: %v", err)
	}
	return rec
}
