package staging

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"tsencode/internal/logging"
)

func TestJobDirRoundTrip(t *testing.T) {
	dir := JobDir("/stage", 42)
	if dir != filepath.Join("/stage", "job-42") {
		t.Fatalf("unexpected job dir %q", dir)
	}
	if id, ok := ParseJobDir(filepath.Base(dir)); !ok || id != 42 {
		t.Fatalf("ParseJobDir = %d, %v", id, ok)
	}
	for _, name := range []string{"job-", "job-abc", "job--1", "queue-3", "42"} {
		if _, ok := ParseJobDir(name); ok {
			t.Fatalf("expected %q to be rejected", name)
		}
	}
}

func TestCleanOrphanedInvalidPaths(t *testing.T) {
	for _, dir := range []string{"", "   ", "/nonexistent/path/12345"} {
		result := CleanOrphaned(context.Background(), dir, nil, logging.NewNop())
		if len(result.Removed) != 0 || len(result.Errors) != 0 {
			t.Errorf("expected empty result for path %q", dir)
		}
	}
}

func TestCleanOrphanedKeepsActiveAndForeignDirectories(t *testing.T) {
	root := t.TempDir()
	mk := func(name string) string {
		path := filepath.Join(root, name)
		if err := os.MkdirAll(path, 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(filepath.Join(path, "partial.mkv"), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
		return path
	}
	orphan := mk("job-1")
	active := mk("job-2")
	foreign := mk("scratch")
	if err := os.WriteFile(filepath.Join(root, "job-3"), []byte("file"), 0o644); err != nil {
		t.Fatal(err)
	}

	result := CleanOrphaned(context.Background(), root, map[int64]struct{}{2: {}}, logging.NewNop())
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %+v", result.Errors)
	}
	if len(result.Removed) != 1 || result.Removed[0] != orphan {
		t.Fatalf("expected only %s removed, got %v", orphan, result.Removed)
	}
	if _, err := os.Stat(orphan); !os.IsNotExist(err) {
		t.Fatal("orphaned directory should be gone")
	}
	for _, keep := range []string{active, foreign, filepath.Join(root, "job-3")} {
		if _, err := os.Stat(keep); err != nil {
			t.Fatalf("expected %s to remain: %v", keep, err)
		}
	}
}
