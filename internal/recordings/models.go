package recordings

import "time"

// Recording is a captured broadcast known to the catalogue.
type Recording struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Channel    string    `json:"channel,omitempty"`
	SourcePath string    `json:"source_path,omitempty"`
	SourceSize int64     `json:"source_size"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// HasSource reports whether the recording still references a source file.
func (r *Recording) HasSource() bool {
	return r != nil && r.SourcePath != ""
}

// EncodedFile is an output produced by encoding a recording.
type EncodedFile struct {
	ID          int64     `json:"id"`
	RecordingID int64     `json:"recording_id"`
	Name        string    `json:"name"`
	Path        string    `json:"path"`
	Size        int64     `json:"size"`
	ArchivedURL string    `json:"archived_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
