package fileutil

import (
	"errors"
	"os"
	"path/filepath"
	"syscall"
	"testing"
)

func TestCopyFileVerified(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")

	content := []byte("verified copy content")
	if err := os.WriteFile(src, content, 0o640); err != nil {
		t.Fatal(err)
	}

	if err := CopyFileVerified(src, dst); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Fatalf("content mismatch: got %q, want %q", got, content)
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm()&0o004 != 0 {
		t.Fatalf("expected source permissions to carry over, got %o", info.Mode().Perm())
	}
}

func TestCopyFileVerified_MissingSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "nonexistent")
	dst := filepath.Join(dir, "dst.bin")

	if err := CopyFileVerified(src, dst); err == nil {
		t.Fatal("expected error for missing source")
	}
}

func TestCopyFileVerified_RejectsDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := CopyFileVerified(dir, filepath.Join(dir, "dst")); err == nil {
		t.Fatal("expected error when source is a directory")
	}
}

func TestReplaceFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "staged.mkv")
	dst := filepath.Join(dir, "recording.ts")
	if err := os.WriteFile(src, []byte("small"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(dst, []byte("much larger original"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := ReplaceFile(src, dst); err != nil {
		t.Fatalf("ReplaceFile: %v", err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "small" {
		t.Fatalf("expected replaced content, got %q", got)
	}
	if _, err := os.Stat(src); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected staged file to be gone, got %v", err)
	}
}

func TestReplaceFile_MissingDestination(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "staged.mkv")
	if err := os.WriteFile(src, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := ReplaceFile(src, filepath.Join(dir, "missing.ts")); err == nil {
		t.Fatal("expected error when destination does not exist")
	}
	if _, err := os.Stat(src); err != nil {
		t.Fatalf("expected staged file to remain, got %v", err)
	}
}

func TestMoveFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a")
	dst := filepath.Join(dir, "b")
	if err := os.WriteFile(src, []byte("data"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := MoveFile(src, dst); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(src); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("expected source removed, got %v", err)
	}
	if got, _ := os.ReadFile(dst); string(got) != "data" {
		t.Fatalf("unexpected content %q", got)
	}
}

func TestIsCrossDevice(t *testing.T) {
	if !isCrossDevice(&os.LinkError{Op: "rename", Old: "a", New: "b", Err: syscall.EXDEV}) {
		t.Fatal("expected EXDEV to be detected")
	}
	if isCrossDevice(&os.LinkError{Op: "rename", Old: "a", New: "b", Err: syscall.ENOENT}) {
		t.Fatal("expected ENOENT to be ignored")
	}
	if isCrossDevice(errors.New("plain")) {
		t.Fatal("expected plain error to be ignored")
	}
}
