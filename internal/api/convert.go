package api

import (
	"time"

	"tsencode/internal/deps"
	"tsencode/internal/encodemanager"
	"tsencode/internal/journal"
	"tsencode/internal/logging"
	"tsencode/internal/notify"
	"tsencode/internal/queue"
	"tsencode/internal/recordings"
)

// FromJob converts a queue job to its API representation.
func FromJob(job *queue.Job) JobItem {
	if job == nil {
		return JobItem{}
	}
	dto := JobItem{
		ID:           job.ID,
		RecordingID:  job.RecordingID,
		SourcePath:   job.SourcePath,
		OutputName:   job.OutputName,
		OutputPath:   job.OutputPath,
		Mode:         string(job.Mode),
		DeleteSource: job.DeleteSource,
		Status:       string(job.Status),
		Progress: JobProgress{
			Stage:   job.ProgressStage,
			Percent: job.ProgressPercent,
			Message: job.ProgressMessage,
		},
		ErrorMessage: job.ErrorMessage,
		CreatedAt:    FormatTime(job.CreatedAt),
		UpdatedAt:    FormatTime(job.UpdatedAt),
	}
	if job.StartedAt != nil {
		dto.StartedAt = FormatTime(*job.StartedAt)
	}
	if job.FinishedAt != nil {
		dto.FinishedAt = FormatTime(*job.FinishedAt)
	}
	return dto
}

// FromJobs converts a slice of queue jobs into API DTOs.
func FromJobs(jobs []*queue.Job) []JobItem {
	if len(jobs) == 0 {
		return nil
	}
	out := make([]JobItem, 0, len(jobs))
	for _, job := range jobs {
		if job == nil {
			continue
		}
		out = append(out, FromJob(job))
	}
	return out
}

// FromEncodeStatus converts manager diagnostics.
func FromEncodeStatus(summary encodemanager.StatusSummary) EncodeStatus {
	status := EncodeStatus{
		Running:    summary.Running,
		Workers:    summary.Workers,
		QueueStats: MergeQueueStats(summary.QueueStats),
		LastError:  summary.LastError,
	}
	for i := range summary.Active {
		status.Active = append(status.Active, FromJob(&summary.Active[i]))
	}
	return status
}

// MergeQueueStats keys queue counts by status string, including zero counts
// for every known status.
func MergeQueueStats(stats map[queue.Status]int) map[string]int {
	out := make(map[string]int, len(queue.AllStatuses()))
	for _, status := range queue.AllStatuses() {
		out[string(status)] = 0
	}
	for status, count := range stats {
		out[string(status)] = count
	}
	return out
}

// FromDependencies converts dependency checks.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, 0, len(statuses))
	for _, dep := range statuses {
		out = append(out, DependencyStatus{
			Name:        dep.Name,
			Command:     dep.Command,
			Description: dep.Description,
			Optional:    dep.Optional,
			Available:   dep.Available,
			Detail:      dep.Detail,
		})
	}
	return out
}

// FromRecording converts a recording and its encoded files.
func FromRecording(rec *recordings.Recording, files []*recordings.EncodedFile) RecordingItem {
	if rec == nil {
		return RecordingItem{}
	}
	dto := RecordingItem{
		ID:         rec.ID,
		Name:       rec.Name,
		Channel:    rec.Channel,
		SourcePath: rec.SourcePath,
		SourceSize: rec.SourceSize,
		CreatedAt:  FormatTime(rec.CreatedAt),
		UpdatedAt:  FormatTime(rec.UpdatedAt),
	}
	for _, f := range files {
		if f == nil {
			continue
		}
		dto.Files = append(dto.Files, EncodedFileItem{
			ID:          f.ID,
			Name:        f.Name,
			Path:        f.Path,
			Size:        f.Size,
			ArchivedURL: f.ArchivedURL,
			CreatedAt:   FormatTime(f.CreatedAt),
		})
	}
	return dto
}

// FromRecordings converts recordings without their file lists.
func FromRecordings(recs []*recordings.Recording) []RecordingItem {
	if len(recs) == 0 {
		return nil
	}
	out := make([]RecordingItem, 0, len(recs))
	for _, rec := range recs {
		if rec == nil {
			continue
		}
		out = append(out, FromRecording(rec, nil))
	}
	return out
}

// FromHistory converts journal entries.
func FromHistory(entries []journal.Entry) []HistoryEntry {
	out := make([]HistoryEntry, 0, len(entries))
	for _, e := range entries {
		out = append(out, HistoryEntry{
			Kind:        string(e.Kind),
			JobID:       e.JobID,
			RecordingID: e.RecordingID,
			OutputPath:  e.OutputPath,
			InPlace:     e.InPlace,
			Error:       e.Error,
			Timestamp:   FormatTime(e.Timestamp),
			Seconds:     e.Duration.Seconds(),
		})
	}
	return out
}

// FromStateEvent converts a client notification event.
func FromStateEvent(evt notify.Event) StateEvent {
	return StateEvent{
		Type:     evt.Type,
		Sequence: evt.Sequence,
		Time:     FormatTime(evt.Time),
	}
}

// FromLogEvents converts streamed log events.
func FromLogEvents(events []logging.LogEvent) []LogEvent {
	if len(events) == 0 {
		return nil
	}
	out := make([]LogEvent, 0, len(events))
	for _, evt := range events {
		var details []DetailField
		for _, d := range evt.Details {
			details = append(details, DetailField{Label: d.Label, Value: d.Value})
		}
		out = append(out, LogEvent{
			Sequence:    evt.Sequence,
			Timestamp:   FormatTime(evt.Timestamp),
			Level:       evt.Level,
			Message:     evt.Message,
			Component:   evt.Component,
			JobID:       evt.JobID,
			RecordingID: evt.RecordingID,
			Fields:      evt.Fields,
			Details:     details,
		})
	}
	return out
}

// FormatTime renders t in the API timestamp format; the zero time is empty.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}

// ParseTime parses an API timestamp, returning the zero time on bad input.
func ParseTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{dateTimeFormat, time.RFC3339Nano, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return time.Time{}
}
