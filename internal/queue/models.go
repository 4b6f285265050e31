package queue

import (
	"fmt"
	"strings"
	"time"
)

// Status represents the lifecycle of an encode job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusEncoding  Status = "encoding"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// DaemonStopReason is the progress stage recorded when jobs are reset at startup.
const DaemonStopReason = "Reset after daemon restart"

var allStatuses = []Status{StatusPending, StatusEncoding, StatusCompleted, StatusFailed}

// AllStatuses returns every known status in lifecycle order.
func AllStatuses() []Status {
	return append([]Status(nil), allStatuses...)
}

// ParseStatus converts user input to a Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	for _, status := range allStatuses {
		if status == normalized {
			return status, true
		}
	}
	return "", false
}

// Mode selects where an encode writes its output.
type Mode string

const (
	// ModeNewFile writes a new output file next to the other encoded files.
	ModeNewFile Mode = "new_file"
	// ModeInPlace replaces the recording's source file with the encoded output.
	ModeInPlace Mode = "in_place"
)

// ParseMode converts user input to a Mode; empty input means ModeNewFile.
func ParseMode(value string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(value))) {
	case "", ModeNewFile:
		return ModeNewFile, nil
	case ModeInPlace:
		return ModeInPlace, nil
	default:
		return "", fmt.Errorf("unknown encode mode %q", value)
	}
}

// Job is an encode request persisted in SQLite.
type Job struct {
	ID              int64      `json:"id"`
	RecordingID     int64      `json:"recording_id"`
	SourcePath      string     `json:"source_path"`
	OutputDir       string     `json:"output_dir,omitempty"`
	OutputName      string     `json:"output_name,omitempty"`
	Mode            Mode       `json:"mode"`
	DeleteSource    bool       `json:"delete_source"`
	Status          Status     `json:"status"`
	ProgressStage   string     `json:"progress_stage,omitempty"`
	ProgressPercent float64    `json:"progress_percent"`
	ProgressMessage string     `json:"progress_message,omitempty"`
	OutputPath      string     `json:"output_path,omitempty"`
	ErrorMessage    string     `json:"error_message,omitempty"`
	CorrelationID   string     `json:"correlation_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	FinishedAt      *time.Time `json:"finished_at,omitempty"`
	LastHeartbeat   *time.Time `json:"last_heartbeat,omitempty"`
}

// InPlace reports whether the job overwrites its source file.
func (j *Job) InPlace() bool {
	return j != nil && j.Mode == ModeInPlace
}

// IsProcessing reports whether a worker currently owns the job.
func (j *Job) IsProcessing() bool {
	return j != nil && j.Status == StatusEncoding
}

// Duration returns how long the job ran, or zero when it has not finished.
func (j *Job) Duration() time.Duration {
	if j == nil || j.StartedAt == nil || j.FinishedAt == nil {
		return 0
	}
	return j.FinishedAt.Sub(*j.StartedAt)
}

// DatabaseHealth captures diagnostic information about the queue database.
type DatabaseHealth struct {
	DBPath         string `json:"db_path"`
	DatabaseExists bool   `json:"database_exists"`
	IntegrityCheck bool   `json:"integrity_check"`
	TotalJobs      int    `json:"total_jobs"`
	Error          string `json:"error,omitempty"`
}
