package ipc

import "tsencode/internal/api"

// ServiceName is the RPC receiver name registered by the server.
const ServiceName = "TSEncode"

// StartRequest triggers daemon startup.
type StartRequest struct{}

// StartResponse indicates whether the daemon was started.
type StartResponse struct {
	Started bool   `json:"started"`
	Message string `json:"message"`
}

// StopRequest stops background encoding.
type StopRequest struct{}

// StopResponse indicates stop result.
type StopResponse struct {
	Stopped bool `json:"stopped"`
}

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse carries the same status document as GET /api/status.
type StatusResponse struct {
	Status api.DaemonStatus `json:"status"`
}

// EncodePushRequest queues an encode for a recording.
type EncodePushRequest = api.EncodeRequest

// EncodePushResponse acknowledges a queued encode.
type EncodePushResponse struct {
	Queued bool `json:"queued"`
}

// QueueListRequest filters job listing by status.
type QueueListRequest struct {
	Statuses []string `json:"statuses"`
}

// QueueListResponse contains encode jobs.
type QueueListResponse struct {
	Items []api.JobItem `json:"items"`
}

// QueueDescribeRequest fetches a single job by id.
type QueueDescribeRequest struct {
	ID int64 `json:"id"`
}

// QueueDescribeResponse contains a single job.
type QueueDescribeResponse struct {
	Item api.JobItem `json:"item"`
}

// QueueRetryRequest retries failed jobs. Empty list means all failed jobs.
type QueueRetryRequest struct {
	IDs []int64 `json:"ids"`
}

// QueueRetryResponse reports number of retried jobs.
type QueueRetryResponse struct {
	Updated int64 `json:"updated"`
}

// QueueResetRequest resets jobs left in the encoding state.
type QueueResetRequest struct{}

// QueueResetResponse reports number of jobs reset.
type QueueResetResponse struct {
	Updated int64 `json:"updated"`
}

// QueueClearCompletedRequest removes completed jobs.
type QueueClearCompletedRequest struct{}

// QueueClearCompletedResponse reports number of removed jobs.
type QueueClearCompletedResponse struct {
	Removed int64 `json:"removed"`
}

// RecordingListRequest lists catalogued recordings.
type RecordingListRequest struct{}

// RecordingListResponse contains recordings without their files.
type RecordingListResponse struct {
	Items []api.RecordingItem `json:"items"`
}

// RecordingShowRequest fetches one recording with its encoded files.
type RecordingShowRequest struct {
	ID int64 `json:"id"`
}

// RecordingShowResponse contains the recording and its files.
type RecordingShowResponse struct {
	Item api.RecordingItem `json:"item"`
}

// RecordingAddRequest catalogues an existing recording file.
type RecordingAddRequest struct {
	Name       string `json:"name"`
	Channel    string `json:"channel"`
	SourcePath string `json:"source_path"`
}

// RecordingAddResponse returns the catalogued recording.
type RecordingAddResponse struct {
	Item api.RecordingItem `json:"item"`
}

// RegisterFileRequest records a produced file against a recording.
type RegisterFileRequest struct {
	RecordingID  int64  `json:"recording_id"`
	Name         string `json:"name"`
	Path         string `json:"path"`
	DeleteSource bool   `json:"delete_source"`
}

// RegisterFileResponse acknowledges a registration.
type RegisterFileResponse struct {
	Registered bool `json:"registered"`
}

// HistoryRequest lists journalled outcomes.
type HistoryRequest struct {
	Kind  string `json:"kind"`
	Limit int    `json:"limit"`
}

// HistoryResponse contains journal entries, newest first.
type HistoryResponse struct {
	Entries []api.HistoryEntry `json:"entries"`
}

// LogTailRequest fetches log lines based on offset and follow semantics.
type LogTailRequest struct {
	Offset     int64 `json:"offset"`
	Limit      int   `json:"limit"`
	Follow     bool  `json:"follow"`
	WaitMillis int   `json:"wait_millis"`
}

// LogTailResponse returns log lines and the next offset.
type LogTailResponse struct {
	Lines  []string `json:"lines"`
	Offset int64    `json:"offset"`
}

// TestNotificationRequest triggers a notification test.
type TestNotificationRequest struct{}

// TestNotificationResponse reports notification test outcome.
type TestNotificationResponse struct {
	Sent    bool   `json:"sent"`
	Message string `json:"message"`
}
