package encoder

import (
	"fmt"
	"time"

	draptolib "github.com/five82/drapto"
)

// reporter adapts Drapto's Reporter callbacks to ProgressUpdate values.
// Events the encode manager has no use for are folded into stage messages.
type reporter struct {
	callback func(ProgressUpdate)
	now      func() time.Time
}

func newReporter(callback func(ProgressUpdate)) *reporter {
	return &reporter{callback: callback, now: time.Now}
}

func (r *reporter) stage(stage, message string, percent float64) {
	r.callback(ProgressUpdate{Type: EventStage, Timestamp: r.now(), Stage: stage, Message: message, Percent: percent})
}

func (r *reporter) Hardware(s draptolib.HardwareSummary) {
	r.stage("initializing", "host "+s.Hostname, 0)
}

func (r *reporter) Initialization(s draptolib.InitializationSummary) {
	r.stage("initializing", fmt.Sprintf("%s (%v)", s.InputFile, s.Resolution), 0)
}

func (r *reporter) StageProgress(s draptolib.StageProgress) {
	var eta time.Duration
	if s.ETA != nil {
		eta = *s.ETA
	}
	r.callback(ProgressUpdate{
		Type:      EventStage,
		Timestamp: r.now(),
		Percent:   float64(s.Percent),
		Stage:     s.Stage,
		Message:   s.Message,
		ETA:       eta,
	})
}

func (r *reporter) CropResult(s draptolib.CropSummary) {
	r.stage("analysis", s.Message, -1)
}

func (r *reporter) EncodingConfig(s draptolib.EncodingConfigSummary) {
	r.stage("analysis", fmt.Sprintf("%v preset %v", s.Encoder, s.Preset), -1)
}

func (r *reporter) EncodingStarted(totalFrames uint64) {
	r.stage("encoding", fmt.Sprintf("%d frames", totalFrames), 0)
}

func (r *reporter) EncodingProgress(s draptolib.ProgressSnapshot) {
	r.callback(ProgressUpdate{
		Type:      EventEncoding,
		Timestamp: r.now(),
		Percent:   float64(s.Percent),
		Stage:     "encoding",
		Speed:     float64(s.Speed),
		FPS:       float64(s.FPS),
		ETA:       s.ETA,
		Bitrate:   s.Bitrate,
	})
}

func (r *reporter) ValidationComplete(s draptolib.ValidationSummary) {
	message := "validation passed"
	if !s.Passed {
		message = "validation failed"
		for _, step := range s.Steps {
			if !step.Passed {
				message = fmt.Sprintf("validation failed: %v (%v)", step.Name, step.Details)
				break
			}
		}
	}
	r.callback(ProgressUpdate{Type: EventValidation, Timestamp: r.now(), Stage: "validation", Message: message, Percent: 100})
}

func (r *reporter) EncodingComplete(s draptolib.EncodingOutcome) {
	r.callback(ProgressUpdate{
		Type:      EventComplete,
		Timestamp: r.now(),
		Stage:     "complete",
		Percent:   100,
		Result: &Result{
			InputFile:    s.InputFile,
			OutputPath:   s.OutputPath,
			OriginalSize: int64(s.OriginalSize),
			EncodedSize:  int64(s.EncodedSize),
			Duration:     s.TotalTime,
		},
	})
}

func (r *reporter) Warning(message string) {
	r.callback(ProgressUpdate{Type: EventWarning, Timestamp: r.now(), Warning: message, Percent: -1})
}

func (r *reporter) Error(e draptolib.ReporterError) {
	r.callback(ProgressUpdate{
		Type:      EventError,
		Timestamp: r.now(),
		Percent:   -1,
		Issue:     &Issue{Title: e.Title, Message: e.Message, Suggestion: e.Suggestion},
	})
}

func (r *reporter) OperationComplete(message string) {
	r.stage("complete", message, 100)
}

func (r *reporter) BatchStarted(s draptolib.BatchStartInfo) {
	r.stage("initializing", fmt.Sprintf("%v file(s) to %s", s.TotalFiles, s.OutputDir), 0)
}

func (r *reporter) FileProgress(s draptolib.FileProgressContext) {
	r.stage("encoding", fmt.Sprintf("file %v of %v", s.CurrentFile, s.TotalFiles), -1)
}

func (r *reporter) BatchComplete(s draptolib.BatchSummary) {
	r.stage("complete", fmt.Sprintf("%v of %v file(s) encoded", s.SuccessfulCount, s.TotalFiles), 100)
}

var _ draptolib.Reporter = (*reporter)(nil)
