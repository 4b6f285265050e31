package api

import (
	"errors"
	"testing"
	"time"

	"tsencode/internal/encodemanager"
	"tsencode/internal/journal"
	"tsencode/internal/logging"
	"tsencode/internal/queue"
	"tsencode/internal/recordings"
)

func TestFromJobCopiesProgressAndTimes(t *testing.T) {
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	finished := started.Add(90 * time.Second)
	dto := FromJob(&queue.Job{
		ID:              7,
		RecordingID:     7,
		SourcePath:      "/rec/bar.ts",
		Mode:            queue.ModeInPlace,
		Status:          queue.StatusCompleted,
		ProgressStage:   "Encoding",
		ProgressPercent: 100,
		OutputPath:      "/rec/bar.ts",
		StartedAt:       &started,
		FinishedAt:      &finished,
	})
	if dto.Mode != "in_place" || dto.Progress.Stage != "Encoding" || dto.Progress.Percent != 100 {
		t.Fatalf("unexpected dto: %+v", dto)
	}
	if dto.StartedAt != "2026-03-01T10:00:00.000Z" {
		t.Fatalf("unexpected startedAt %q", dto.StartedAt)
	}
	if !ParseTime(dto.FinishedAt).Equal(finished) {
		t.Fatalf("finishedAt did not round trip: %q", dto.FinishedAt)
	}
	if FromJob(nil).ID != 0 {
		t.Fatal("expected zero dto for nil job")
	}
}

func TestFromEncodeStatus(t *testing.T) {
	status := FromEncodeStatus(encodemanager.StatusSummary{
		Running:    true,
		Workers:    2,
		Active:     []queue.Job{{ID: 1, Status: queue.StatusEncoding}},
		LastError:  "drapto exited 1",
		QueueStats: map[queue.Status]int{queue.StatusEncoding: 1},
	})
	if !status.Running || status.Workers != 2 || len(status.Active) != 1 {
		t.Fatalf("unexpected status: %+v", status)
	}
	if status.QueueStats["encoding"] != 1 || status.QueueStats["pending"] != 0 {
		t.Fatalf("unexpected stats: %v", status.QueueStats)
	}
}

func TestFromRecordingIncludesFiles(t *testing.T) {
	rec := &recordings.Recording{ID: 5, Name: "News", SourcePath: "/rec/news.ts", SourceSize: 100}
	files := []*recordings.EncodedFile{{ID: 1, RecordingID: 5, Name: "foo.mp4", Path: "/out/foo.mp4", Size: 40, ArchivedURL: "s3://b/k"}}
	dto := FromRecording(rec, files)
	if dto.ID != 5 || len(dto.Files) != 1 || dto.Files[0].ArchivedURL != "s3://b/k" {
		t.Fatalf("unexpected recording dto: %+v", dto)
	}
	list := FromRecordings([]*recordings.Recording{rec, nil})
	if len(list) != 1 || list[0].Files != nil {
		t.Fatalf("unexpected list: %+v", list)
	}
}

func TestFromHistory(t *testing.T) {
	ts := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	entries := FromHistory([]journal.Entry{
		{Kind: journal.KindFailure, JobID: 9, RecordingID: 9, Error: errors.New("boom").Error(), Timestamp: ts, Duration: 1500 * time.Millisecond},
	})
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Kind != "failure" || e.Error != "boom" || e.Seconds != 1.5 || e.Timestamp == "" {
		t.Fatalf("unexpected history entry: %+v", e)
	}
}

func TestFromLogEvents(t *testing.T) {
	out := FromLogEvents([]logging.LogEvent{{
		Sequence:    3,
		Level:       "INFO",
		Message:     "encode completed",
		Component:   "encode-manager",
		JobID:       5,
		RecordingID: 5,
		Details:     []logging.DetailField{{Label: "Output", Value: "/out/foo.mp4"}},
	}})
	if len(out) != 1 || out[0].JobID != 5 || len(out[0].Details) != 1 {
		t.Fatalf("unexpected log events: %+v", out)
	}
	if FromLogEvents(nil) != nil {
		t.Fatal("expected nil for empty input")
	}
}

func TestParseTimeRejectsGarbage(t *testing.T) {
	if !ParseTime("yesterday").IsZero() || !ParseTime("").IsZero() {
		t.Fatal("expected zero time for unparsable input")
	}
}
