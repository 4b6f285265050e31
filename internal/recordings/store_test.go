package recordings_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"tsencode/internal/recordings"
	"tsencode/internal/services"
	"tsencode/internal/testsupport"
)

func TestNewRecordingCapturesSourceSize(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenRecordings(t, cfg)

	rec := testsupport.NewRecording(t, cfg, store, "news", 2048)
	if rec.ID == 0 || rec.SourceSize != 2048 || rec.Name != "news" {
		t.Fatalf("unexpected recording: %+v", rec)
	}

	list, err := store.List(context.Background())
	if err != nil || len(list) != 1 {
		t.Fatalf("List = %d, %v", len(list), err)
	}
	missing, err := store.Get(context.Background(), 999)
	if err != nil || missing != nil {
		t.Fatalf("expected nil for missing recording, got %+v, %v", missing, err)
	}
}

func TestNewRecordingValidatesInput(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenRecordings(t, cfg)
	ctx := context.Background()

	if _, err := store.NewRecording(ctx, " ", "", ""); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for blank name, got %v", err)
	}
	if _, err := store.NewRecording(ctx, "x", "", filepath.Join(t.TempDir(), "missing.ts")); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error for missing source, got %v", err)
	}
}

func TestUpdateFileSizeRereadsSource(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenRecordings(t, cfg)
	ctx := context.Background()

	rec := testsupport.NewRecording(t, cfg, store, "movie", 4096)
	testsupport.WriteFile(t, rec.SourcePath, 1000)

	if err := store.UpdateFileSize(ctx, rec.ID); err != nil {
		t.Fatalf("UpdateFileSize: %v", err)
	}
	updated, _ := store.Get(ctx, rec.ID)
	if updated.SourceSize != 1000 {
		t.Fatalf("source size = %d, want 1000", updated.SourceSize)
	}

	if err := store.UpdateFileSize(ctx, 12345); !errors.Is(err, recordings.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if !errors.Is(recordings.ErrNotFound, services.ErrNotFound) {
		t.Fatal("expected recordings.ErrNotFound to carry the services marker")
	}
}

func TestAddEncodedFileAndArchive(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenRecordings(t, cfg)
	ctx := context.Background()

	rec := testsupport.NewRecording(t, cfg, store, "drama", 512)
	out := filepath.Join(cfg.Paths.OutputDir, "drama.mkv")
	testsupport.WriteFile(t, out, 128)

	file, err := store.AddEncodedFile(ctx, rec.ID, "drama.mkv", out)
	if err != nil {
		t.Fatalf("AddEncodedFile: %v", err)
	}
	if file.Size != 128 || file.RecordingID != rec.ID {
		t.Fatalf("unexpected encoded file: %+v", file)
	}
	if err := store.SetArchivedURL(ctx, file.ID, "s3://bucket/drama.mkv"); err != nil {
		t.Fatalf("SetArchivedURL: %v", err)
	}
	files, err := store.Files(ctx, rec.ID)
	if err != nil || len(files) != 1 || files[0].ArchivedURL != "s3://bucket/drama.mkv" {
		t.Fatalf("Files = %+v, %v", files, err)
	}

	if _, err := store.AddEncodedFile(ctx, 777, "x.mkv", out); !errors.Is(err, recordings.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown recording, got %v", err)
	}
}

func TestClearSourceAndRemoveCascade(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenRecordings(t, cfg)
	ctx := context.Background()

	rec := testsupport.NewRecording(t, cfg, store, "sports", 64)
	out := filepath.Join(cfg.Paths.OutputDir, "sports.mkv")
	testsupport.WriteFile(t, out, 32)
	if _, err := store.AddEncodedFile(ctx, rec.ID, "sports.mkv", out); err != nil {
		t.Fatalf("AddEncodedFile: %v", err)
	}

	if err := store.ClearSource(ctx, rec.ID); err != nil {
		t.Fatalf("ClearSource: %v", err)
	}
	cleared, _ := store.Get(ctx, rec.ID)
	if cleared.HasSource() || cleared.SourceSize != 0 {
		t.Fatalf("expected source cleared, got %+v", cleared)
	}
	if err := store.UpdateFileSize(ctx, rec.ID); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error without source, got %v", err)
	}
	if err := store.ClearSource(ctx, 4242); !errors.Is(err, recordings.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	removed, err := store.Remove(ctx, rec.ID)
	if err != nil || !removed {
		t.Fatalf("Remove = %v, %v", removed, err)
	}
	files, _ := store.Files(ctx, rec.ID)
	if len(files) != 0 {
		t.Fatalf("expected encoded files removed with recording, got %d", len(files))
	}
	if err := store.CheckHealth(ctx); err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
}
