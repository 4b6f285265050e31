package preflight

import (
	"os"
	"path/filepath"
	"testing"

	"tsencode/internal/config"
	"tsencode/internal/testsupport"
)

func TestCheckDirectoryAccess_OK(t *testing.T) {
	dir := t.TempDir()
	result := CheckDirectoryAccess("test", dir)
	if !result.Passed {
		t.Fatalf("expected pass for temp dir, got: %s", result.Detail)
	}
}

func TestCheckDirectoryAccess_NotExist(t *testing.T) {
	result := CheckDirectoryAccess("test", filepath.Join(t.TempDir(), "nope"))
	if result.Passed {
		t.Fatal("expected failure for missing dir")
	}
	if result.Detail == "" {
		t.Fatal("expected non-empty detail")
	}
}

func TestCheckDirectoryAccess_NotDir(t *testing.T) {
	f := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(f, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	result := CheckDirectoryAccess("test", f)
	if result.Passed {
		t.Fatal("expected failure for file path")
	}
}

func TestRunAll_NilConfig(t *testing.T) {
	if results := RunAll(nil); results != nil {
		t.Fatalf("expected nil results, got %v", results)
	}
}

func TestRunAll_CLIEngineWithStubs(t *testing.T) {
	cfg := testsupport.NewConfig(t,
		testsupport.WithEngine(config.EngineCLI),
		testsupport.WithStubbedBinaries("drapto", "ffmpeg", "ffprobe"),
	)
	results := RunAll(cfg)
	if failed := Failed(results); len(failed) != 0 {
		t.Fatalf("expected all checks to pass, failed: %+v", failed)
	}
	names := make(map[string]bool, len(results))
	for _, r := range results {
		names[r.Name] = true
	}
	for _, want := range []string{"Data directory", "Staging directory", "Output directory", "drapto", "ffmpeg", "ffprobe"} {
		if !names[want] {
			t.Fatalf("missing check %q in %+v", want, results)
		}
	}
}

func TestCheckSystemDeps_LibraryEngineSkipsDrapto(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithEngine(config.EngineLibrary))
	t.Setenv("PATH", t.TempDir())
	statuses := CheckSystemDeps(cfg)
	if len(statuses) != 2 {
		t.Fatalf("expected ffmpeg and ffprobe only, got %+v", statuses)
	}
	for _, s := range statuses {
		if s.Name == "drapto" {
			t.Fatal("library engine should not require the drapto binary")
		}
		if s.Available {
			t.Fatalf("expected %s to be missing with empty PATH", s.Name)
		}
	}
	failed := Failed(RunAll(cfg))
	if len(failed) != 2 {
		t.Fatalf("expected two failed checks, got %+v", failed)
	}
}
