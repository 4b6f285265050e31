package registrar_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"tsencode/internal/logging"
	"tsencode/internal/recordings"
	"tsencode/internal/registrar"
	"tsencode/internal/services"
	"tsencode/internal/testsupport"
)

type fakeUploader struct {
	keys []string
	err  error
}

func (f *fakeUploader) Upload(_ context.Context, _ string, key string) (string, error) {
	f.keys = append(f.keys, key)
	if f.err != nil {
		return "", f.err
	}
	return "s3://bucket/" + key, nil
}

func (f *fakeUploader) Close() error { return nil }

func producedFile(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	testsupport.WriteFile(t, path, 512)
	return path
}

func TestRegisterDeletesSourceAfterSuccess(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenRecordings(t, cfg)
	rec := testsupport.NewRecording(t, cfg, store, "foo", 4096)
	out := producedFile(t, cfg.Paths.OutputDir, "foo.mp4")

	svc := registrar.New(store, nil, "", logging.NewNop())
	if err := svc.RegisterProducedFile(context.Background(), rec.ID, "foo.mp4", out, true); err != nil {
		t.Fatalf("RegisterProducedFile: %v", err)
	}

	files, err := store.Files(context.Background(), rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 1 || files[0].Name != "foo.mp4" || files[0].Size != 512 {
		t.Fatalf("unexpected files %+v", files)
	}
	testsupport.AssertMissing(t, rec.SourcePath)
	got, err := store.Get(context.Background(), rec.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.HasSource() {
		t.Fatalf("expected source reference cleared, got %q", got.SourcePath)
	}
}

func TestRegisterKeepsSourceWhenNotRequested(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenRecordings(t, cfg)
	rec := testsupport.NewRecording(t, cfg, store, "keep", 100)
	out := producedFile(t, cfg.Paths.OutputDir, "keep.mkv")

	svc := registrar.New(store, nil, "", nil)
	if err := svc.RegisterProducedFile(context.Background(), rec.ID, "", out, false); err != nil {
		t.Fatalf("RegisterProducedFile: %v", err)
	}
	if _, err := os.Stat(rec.SourcePath); err != nil {
		t.Fatalf("expected source to remain: %v", err)
	}
	files, _ := store.Files(context.Background(), rec.ID)
	if len(files) != 1 || files[0].Name != "keep.mkv" {
		t.Fatalf("expected name defaulted from path, got %+v", files)
	}
}

func TestRegisterFailureNeverDeletesSource(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenRecordings(t, cfg)
	rec := testsupport.NewRecording(t, cfg, store, "bar", 100)
	missing := filepath.Join(cfg.Paths.OutputDir, "never-written.mkv")

	svc := registrar.New(store, nil, "", nil)
	if err := svc.RegisterProducedFile(context.Background(), rec.ID, "bar.mkv", missing, true); err == nil {
		t.Fatal("expected registration of a missing file to fail")
	}
	if _, err := os.Stat(rec.SourcePath); err != nil {
		t.Fatalf("expected source to survive failed registration: %v", err)
	}
}

func TestRegisterUnknownRecording(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenRecordings(t, cfg)
	out := producedFile(t, cfg.Paths.OutputDir, "x.mkv")

	svc := registrar.New(store, nil, "", nil)
	err := svc.RegisterProducedFile(context.Background(), 404, "x.mkv", out, true)
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := svc.RegisterProducedFile(context.Background(), 0, "x.mkv", out, false); !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestRegisterArchivesFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenRecordings(t, cfg)
	rec := testsupport.NewRecording(t, cfg, store, "arch", 100)
	out := producedFile(t, cfg.Paths.OutputDir, "arch.mkv")
	up := &fakeUploader{}

	svc := registrar.New(store, up, "encoded/", nil)
	if err := svc.RegisterProducedFile(context.Background(), rec.ID, "arch.mkv", out, false); err != nil {
		t.Fatal(err)
	}
	files, _ := store.Files(context.Background(), rec.ID)
	if len(files) != 1 {
		t.Fatalf("expected one file, got %d", len(files))
	}
	want := "s3://bucket/" + up.keys[0]
	if files[0].ArchivedURL != want {
		t.Fatalf("expected archived url %q, got %q", want, files[0].ArchivedURL)
	}
}

func TestRegisterArchiveFailureIsNotFatal(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenRecordings(t, cfg)
	rec := testsupport.NewRecording(t, cfg, store, "flaky", 100)
	out := producedFile(t, cfg.Paths.OutputDir, "flaky.mkv")

	svc := registrar.New(store, &fakeUploader{err: errors.New("bucket gone")}, "", nil)
	if err := svc.RegisterProducedFile(context.Background(), rec.ID, "flaky.mkv", out, true); err != nil {
		t.Fatalf("expected archive failure to be swallowed, got %v", err)
	}
	testsupport.AssertMissing(t, rec.SourcePath)
}

var _ registrar.Store = (*recordings.Store)(nil)
