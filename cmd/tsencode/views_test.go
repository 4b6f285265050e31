package main

import (
	"strings"
	"testing"

	"tsencode/internal/api"
)

func TestFormatStatusLabel(t *testing.T) {
	tests := map[string]string{
		"pending":  "Pending",
		"in_place": "In Place",
		"new_file": "New File",
		"":         "",
	}
	for in, want := range tests {
		if got := formatStatusLabel(in); got != want {
			t.Fatalf("formatStatusLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBuildQueueStatusRowsOrdersByPipeline(t *testing.T) {
	rows := buildQueueStatusRows(map[string]int{"failed": 2, "pending": 1, "legacy": 3, "ghost": 0})
	var labels []string
	for _, row := range rows {
		labels = append(labels, row[0])
	}
	got := strings.Join(labels, ",")
	if got != "Pending,Encoding,Completed,Failed,Legacy" {
		t.Fatalf("unexpected row order %q", got)
	}
	if rows[3][1] != "2" {
		t.Fatalf("expected failed count 2, got %q", rows[3][1])
	}
	if buildQueueStatusRows(nil) != nil {
		t.Fatal("expected nil rows for empty stats")
	}
}

func TestFormatProgress(t *testing.T) {
	tests := []struct {
		in   api.JobProgress
		want string
	}{
		{api.JobProgress{}, "-"},
		{api.JobProgress{Stage: "analysis"}, "Analysis"},
		{api.JobProgress{Percent: 12.4}, "12%"},
		{api.JobProgress{Stage: "encoding", Percent: 50}, "Encoding 50%"},
	}
	for _, tt := range tests {
		if got := formatProgress(tt.in); got != tt.want {
			t.Fatalf("formatProgress(%+v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := map[int64]string{
		0:               "0 B",
		1023:            "1023 B",
		1536:            "1.5 KiB",
		5 * 1024 * 1024: "5.0 MiB",
		3 << 30:         "3.0 GiB",
	}
	for in, want := range tests {
		if got := formatBytes(in); got != want {
			t.Fatalf("formatBytes(%d) = %q, want %q", in, got, want)
		}
	}
}

func TestJobTitleFallsBackToSource(t *testing.T) {
	if got := jobTitle(api.JobItem{SourcePath: "/rec/news.ts"}); got != "news.ts" {
		t.Fatalf("unexpected title %q", got)
	}
	if got := jobTitle(api.JobItem{}); got != "Unknown" {
		t.Fatalf("unexpected title %q", got)
	}
}

func TestBuildHistoryRows(t *testing.T) {
	rows := buildHistoryRows([]api.HistoryEntry{
		{Kind: "success", JobID: 1, RecordingID: 2, OutputPath: "/out/a.mkv", Seconds: 61},
		{Kind: "success", JobID: 3, RecordingID: 4, OutputPath: "/rec/b.ts", InPlace: true},
		{Kind: "failure", JobID: 5, RecordingID: 6, Error: "exit status 1"},
	})
	if rows[0][4] != "1m1s" || rows[0][5] != "/out/a.mkv" {
		t.Fatalf("unexpected success row %q", rows[0])
	}
	if rows[1][5] != "/rec/b.ts (in place)" || rows[1][4] != "-" {
		t.Fatalf("unexpected in-place row %q", rows[1])
	}
	if rows[2][1] != "Failure" || rows[2][5] != "exit status 1" {
		t.Fatalf("unexpected failure row %q", rows[2])
	}
}
