package journal

import (
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := OpenDir(filepath.Join(t.TempDir(), "journal"))
	if err != nil {
		t.Fatalf("OpenDir: %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func TestRecordAndGet(t *testing.T) {
	j := openTestJournal(t)

	if err := j.RecordSuccess(12, 5, "/out/foo.mkv", false, 3*time.Minute); err != nil {
		t.Fatalf("RecordSuccess: %v", err)
	}
	entry, err := j.Get(12)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if entry == nil || entry.Kind != KindSuccess || entry.RecordingID != 5 || entry.OutputPath != "/out/foo.mkv" {
		t.Fatalf("unexpected entry %+v", entry)
	}
	if entry.Duration != 3*time.Minute {
		t.Fatalf("expected duration to round-trip, got %s", entry.Duration)
	}

	missing, err := j.Get(99)
	if err != nil || missing != nil {
		t.Fatalf("expected nil for unknown job, got %+v, %v", missing, err)
	}
}

func TestGetPrefersLatestAttempt(t *testing.T) {
	j := openTestJournal(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return base }
	if err := j.RecordFailure(3, 1, errors.New("drapto exited 1"), time.Second); err != nil {
		t.Fatal(err)
	}
	j.now = func() time.Time { return base.Add(time.Hour) }
	if err := j.RecordSuccess(3, 1, "/out/a.mkv", false, time.Minute); err != nil {
		t.Fatal(err)
	}

	entry, err := j.Get(3)
	if err != nil {
		t.Fatal(err)
	}
	if entry.Kind != KindSuccess {
		t.Fatalf("expected newer success entry, got %s", entry.Kind)
	}
}

func TestListNewestFirstWithLimit(t *testing.T) {
	j := openTestJournal(t)
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := int64(1); i <= 4; i++ {
		at := base.Add(time.Duration(i) * time.Minute)
		j.now = func() time.Time { return at }
		if err := j.RecordFailure(i, 10+i, errors.New("boom"), 0); err != nil {
			t.Fatal(err)
		}
	}
	if err := j.RecordSuccess(50, 1, "/out/x.mkv", true, 0); err != nil {
		t.Fatal(err)
	}

	failures, err := j.List(KindFailure, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(failures) != 2 {
		t.Fatalf("expected 2 failures, got %d", len(failures))
	}
	if failures[0].JobID != 4 || failures[1].JobID != 3 {
		t.Fatalf("expected newest first, got %d then %d", failures[0].JobID, failures[1].JobID)
	}
	if failures[0].Error != "boom" {
		t.Fatalf("expected error text, got %q", failures[0].Error)
	}

	successes, err := j.List(KindSuccess, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(successes) != 1 || !successes[0].InPlace {
		t.Fatalf("unexpected successes %+v", successes)
	}
}

func TestCleanupRemovesOldEntries(t *testing.T) {
	j := openTestJournal(t)
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	j.now = func() time.Time { return now.Add(-48 * time.Hour) }
	if err := j.RecordSuccess(1, 1, "/out/old.mkv", false, 0); err != nil {
		t.Fatal(err)
	}
	if err := j.RecordFailure(2, 1, errors.New("old"), 0); err != nil {
		t.Fatal(err)
	}
	j.now = func() time.Time { return now }
	if err := j.RecordSuccess(3, 1, "/out/new.mkv", false, 0); err != nil {
		t.Fatal(err)
	}

	removed, err := j.Cleanup(24 * time.Hour)
	if err != nil {
		t.Fatalf("Cleanup: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 removed, got %d", removed)
	}
	if entry, _ := j.Get(1); entry != nil {
		t.Fatalf("expected old entry removed, got %+v", entry)
	}
	if entry, _ := j.Get(3); entry == nil {
		t.Fatal("expected recent entry to survive")
	}
}

func TestRejectsMissingJobID(t *testing.T) {
	j := openTestJournal(t)
	if err := j.RecordSuccess(0, 1, "/out/a.mkv", false, 0); err == nil {
		t.Fatal("expected error for missing job id")
	}
}

func TestClosedJournal(t *testing.T) {
	j, err := OpenDir(filepath.Join(t.TempDir(), "journal"))
	if err != nil {
		t.Fatal(err)
	}
	if err := j.CheckHealth(); err != nil {
		t.Fatalf("CheckHealth: %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatal(err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("second close should be a no-op, got %v", err)
	}
	if err := j.CheckHealth(); err == nil {
		t.Fatal("expected health check to fail once closed")
	}
}

func TestParseKind(t *testing.T) {
	if k, ok := ParseKind("failure"); !ok || k != KindFailure {
		t.Fatalf("unexpected parse result %q %v", k, ok)
	}
	if _, ok := ParseKind("other"); ok {
		t.Fatal("expected unknown kind to be rejected")
	}
}
