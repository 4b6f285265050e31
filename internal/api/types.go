package api

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// JobItem describes an encode job in a transport-friendly format.
type JobItem struct {
	ID           int64       `json:"id"`
	RecordingID  int64       `json:"recordingId"`
	SourcePath   string      `json:"sourcePath"`
	OutputName   string      `json:"outputName,omitempty"`
	OutputPath   string      `json:"outputPath,omitempty"`
	Mode         string      `json:"mode"`
	DeleteSource bool        `json:"deleteSource"`
	Status       string      `json:"status"`
	Progress     JobProgress `json:"progress"`
	ErrorMessage string      `json:"errorMessage,omitempty"`
	CreatedAt    string      `json:"createdAt,omitempty"`
	UpdatedAt    string      `json:"updatedAt,omitempty"`
	StartedAt    string      `json:"startedAt,omitempty"`
	FinishedAt   string      `json:"finishedAt,omitempty"`
}

// JobProgress captures encoder progress for a job.
type JobProgress struct {
	Stage   string  `json:"stage"`
	Percent float64 `json:"percent"`
	Message string  `json:"message"`
}

// EncodeStatus summarizes encode worker state.
type EncodeStatus struct {
	Running    bool           `json:"running"`
	Workers    int            `json:"workers"`
	QueueStats map[string]int `json:"queueStats"`
	Active     []JobItem      `json:"active,omitempty"`
	LastError  string         `json:"lastError,omitempty"`
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running          bool               `json:"running"`
	PID              int                `json:"pid"`
	QueueDBPath      string             `json:"queueDbPath"`
	RecordingsDBPath string             `json:"recordingsDbPath"`
	JournalDir       string             `json:"journalDir"`
	LockFilePath     string             `json:"lockFilePath"`
	EventSequence    uint64             `json:"eventSequence"`
	Encode           EncodeStatus       `json:"encode"`
	Dependencies     []DependencyStatus `json:"dependencies"`
}

// EncodedFileItem describes an output registered against a recording.
type EncodedFileItem struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Path        string `json:"path"`
	Size        int64  `json:"size"`
	ArchivedURL string `json:"archivedUrl,omitempty"`
	CreatedAt   string `json:"createdAt,omitempty"`
}

// RecordingItem describes a catalogued recording.
type RecordingItem struct {
	ID         int64             `json:"id"`
	Name       string            `json:"name"`
	Channel    string            `json:"channel,omitempty"`
	SourcePath string            `json:"sourcePath,omitempty"`
	SourceSize int64             `json:"sourceSize"`
	CreatedAt  string            `json:"createdAt,omitempty"`
	UpdatedAt  string            `json:"updatedAt,omitempty"`
	Files      []EncodedFileItem `json:"files,omitempty"`
}

// HistoryEntry is one journalled encode outcome.
type HistoryEntry struct {
	Kind        string  `json:"kind"`
	JobID       int64   `json:"jobId"`
	RecordingID int64   `json:"recordingId"`
	OutputPath  string  `json:"outputPath,omitempty"`
	InPlace     bool    `json:"inPlace,omitempty"`
	Error       string  `json:"error,omitempty"`
	Timestamp   string  `json:"timestamp"`
	Seconds     float64 `json:"durationSeconds"`
}

// EncodeRequest asks the daemon to queue an encode for a recording.
type EncodeRequest struct {
	RecordingID  int64  `json:"recordingId"`
	Mode         string `json:"mode,omitempty"`
	OutputName   string `json:"outputName,omitempty"`
	OutputDir    string `json:"outputDir,omitempty"`
	DeleteSource bool   `json:"deleteSource,omitempty"`
}

// StateEvent tells clients that recording or job state changed.
type StateEvent struct {
	Type     string `json:"type"`
	Sequence uint64 `json:"sequence"`
	Time     string `json:"time,omitempty"`
}

// DetailField is a highlighted log attribute.
type DetailField struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// LogEvent is a structured log line for live tailing.
type LogEvent struct {
	Sequence    uint64            `json:"seq"`
	Timestamp   string            `json:"ts"`
	Level       string            `json:"level"`
	Message     string            `json:"msg"`
	Component   string            `json:"component,omitempty"`
	JobID       int64             `json:"jobId,omitempty"`
	RecordingID int64             `json:"recordingId,omitempty"`
	Fields      map[string]string `json:"fields,omitempty"`
	Details     []DetailField     `json:"details,omitempty"`
}

// JobListResponse wraps a collection of jobs.
type JobListResponse struct {
	Items []JobItem `json:"items"`
}

// JobResponse wraps a single job.
type JobResponse struct {
	Item JobItem `json:"item"`
}

// RecordingListResponse wraps a collection of recordings.
type RecordingListResponse struct {
	Items []RecordingItem `json:"items"`
}

// RecordingResponse wraps a single recording.
type RecordingResponse struct {
	Item RecordingItem `json:"item"`
}

// HistoryResponse wraps journal entries, newest first.
type HistoryResponse struct {
	Entries []HistoryEntry `json:"entries"`
}

// LogStreamResponse carries log events and the cursor for the next fetch.
type LogStreamResponse struct {
	Events []LogEvent `json:"events"`
	Next   uint64     `json:"next"`
}
