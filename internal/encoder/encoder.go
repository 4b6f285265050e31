package encoder

import (
	"context"
	"path/filepath"
	"strings"
	"time"

	"tsencode/internal/config"
)

// EventType distinguishes the encoder events carried by ProgressUpdate.
type EventType string

const (
	EventStage      EventType = "stage_progress"
	EventEncoding   EventType = "encoding_progress"
	EventValidation EventType = "validation"
	EventComplete   EventType = "encoding_complete"
	EventWarning    EventType = "warning"
	EventError      EventType = "error"
)

// ProgressUpdate captures one encoder progress event.
type ProgressUpdate struct {
	Type      EventType
	Timestamp time.Time
	Percent   float64
	Stage     string
	Message   string
	ETA       time.Duration
	Speed     float64
	FPS       float64
	Bitrate   string
	Warning   string
	Issue     *Issue
	Result    *Result
}

// Issue describes an error reported by the encoder before it exits.
type Issue struct {
	Title      string
	Message    string
	Suggestion string
}

// Result summarizes a finished encode.
type Result struct {
	InputFile    string
	OutputPath   string
	OriginalSize int64
	EncodedSize  int64
	Duration     time.Duration
}

// ReductionPercent returns how much smaller the encoded file is.
func (r *Result) ReductionPercent() float64 {
	if r == nil || r.OriginalSize <= 0 {
		return 0
	}
	return 100 * (1 - float64(r.EncodedSize)/float64(r.OriginalSize))
}

// Client defines encode behaviour.
type Client interface {
	Encode(ctx context.Context, inputPath, outputDir string, progress func(ProgressUpdate)) (string, error)
}

// New returns the Client selected by encode.engine.
func New(cfg *config.Config) Client {
	if cfg != nil && cfg.UsesCLIEncoder() {
		return NewCLI(WithBinary(cfg.Encode.DraptoBinary))
	}
	return NewLibrary()
}

// OutputPath returns where Drapto writes the encode of inputPath inside outputDir.
func OutputPath(inputPath, outputDir string) string {
	base := filepath.Base(inputPath)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	if stem == "" {
		stem = base
	}
	return filepath.Join(strings.TrimSpace(outputDir), stem+".mkv")
}
