package encodemanager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"tsencode/internal/encoder"
	"tsencode/internal/fileutil"
	"tsencode/internal/logging"
	"tsencode/internal/queue"
	"tsencode/internal/services"
	"tsencode/internal/staging"
)

func (m *Manager) runJob(ctx context.Context, workerLogger *slog.Logger, job *queue.Job) {
	requestID := job.CorrelationID
	if requestID == "" {
		requestID = uuid.NewString()
	}
	jobCtx := services.WithRequestID(ctx, requestID)
	jobCtx = services.WithRecordingID(jobCtx, job.RecordingID)
	jobCtx = services.WithJobID(jobCtx, job.ID)
	teed, closeJobLog := m.jobLogger(workerLogger, job.ID)
	defer closeJobLog()
	logger := logging.WithContext(jobCtx, teed)

	m.trackActive(job, true)
	defer m.trackActive(job, false)

	start := time.Now()
	logger.Info("encode started",
		logging.String(logging.FieldEventType, "encode_start"),
		logging.String("source_file", job.SourcePath),
		logging.String("mode", string(job.Mode)),
	)

	outputPath, err := m.encode(jobCtx, logger, job)
	if err != nil {
		if ctx.Err() != nil {
			// Left in encoding; ResetStuck requeues it on the next start.
			logger.Info("encode interrupted by shutdown", logging.String(logging.FieldEventType, "encode_interrupted"))
			return
		}
		m.fail(jobCtx, logger, job, err, time.Since(start))
		return
	}
	m.complete(jobCtx, logger, job, outputPath, time.Since(start))
}

// JobLogPath is where the log lines of a single job are copied.
func JobLogPath(logDir string, jobID int64) string {
	return filepath.Join(logDir, "jobs", fmt.Sprintf("job-%d.log", jobID))
}

// jobLogger tees logger into the job's own log file. When the file cannot be
// opened the job still runs against logger alone.
func (m *Manager) jobLogger(logger *slog.Logger, jobID int64) (*slog.Logger, func()) {
	dir := strings.TrimSpace(m.cfg.Paths.LogDir)
	if dir == "" {
		return logger, func() {}
	}
	path := JobLogPath(dir, jobID)
	handler, closeFile, err := logging.NewFileHandler(path, m.cfg.Logging.Format, m.cfg.Logging.Level)
	if err != nil {
		logging.WarnWithContext(logger, "job log unavailable", "job_log_open_failed",
			logging.Error(err),
			logging.String("job_log", path),
			logging.String(logging.FieldImpact, "job lines only appear in the daemon log"),
		)
		return logger, func() {}
	}
	return logging.TeeLogger(logger, handler), func() { _ = closeFile() }
}

// encode runs the encoder and moves its output to the job's final path.
func (m *Manager) encode(ctx context.Context, logger *slog.Logger, job *queue.Job) (string, error) {
	hbCtx, hbCancel := context.WithCancel(ctx)
	var hbWG sync.WaitGroup
	hbWG.Add(1)
	go func() {
		defer hbWG.Done()
		m.heartbeatLoop(hbCtx, logger, job.ID)
	}()
	defer func() {
		hbCancel()
		hbWG.Wait()
	}()

	workDir := staging.JobDir(m.cfg.Paths.StagingDir, job.ID)
	defer os.RemoveAll(workDir)
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrConfiguration, "encode-manager", "prepare staging", workDir, err)
	}

	tracker := newProgressTracker(ctx, m.store, logger, job.ID)
	encoded, err := m.encoder.Encode(ctx, job.SourcePath, workDir, tracker.handle)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(encoded); err != nil {
		return "", services.Wrap(services.ErrExternalTool, "encode-manager", "verify output", "encoder reported success without output", err)
	}

	if job.InPlace() {
		if err := fileutil.ReplaceFile(encoded, job.SourcePath); err != nil {
			return "", services.Wrap(services.ErrTransient, "encode-manager", "replace source", job.SourcePath, err)
		}
		return job.SourcePath, nil
	}
	return m.publishOutput(logger, job, encoded)
}

// publishOutput moves encoded into the job's output directory without
// replacing an existing file.
func (m *Manager) publishOutput(logger *slog.Logger, job *queue.Job, encoded string) (string, error) {
	if err := os.MkdirAll(job.OutputDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrConfiguration, "encode-manager", "prepare output", job.OutputDir, err)
	}

	m.outputMu.Lock()
	defer m.outputMu.Unlock()
	name, ok := availableName(job.OutputDir, job.OutputName, pathExists)
	if !ok {
		return "", services.Wrap(services.ErrConfiguration, "encode-manager", "rename output",
			fmt.Sprintf("no free output name for %s", job.OutputName), nil)
	}
	if name != job.OutputName {
		logging.WarnWithContext(logger, "output name taken, using suffixed name", "encode_output_renamed",
			logging.String("requested_name", job.OutputName),
			logging.String("output_name", name),
			logging.String(logging.FieldImpact, "produced file is registered under the suffixed name"),
		)
	}
	final := filepath.Join(job.OutputDir, name)
	if err := fileutil.MoveFile(encoded, final); err != nil {
		return "", services.Wrap(services.ErrTransient, "encode-manager", "rename output", final, err)
	}
	return final, nil
}

func (m *Manager) complete(ctx context.Context, logger *slog.Logger, job *queue.Job, outputPath string, elapsed time.Duration) {
	// Persist and notify even if the daemon is stopping; the encode is done.
	persistCtx := context.WithoutCancel(ctx)
	if err := m.store.MarkCompleted(persistCtx, job.ID, outputPath); err != nil {
		m.setLastError(err)
		logger.Error("failed to persist encode completion",
			logging.Error(err),
			logging.String(logging.FieldEventType, "encode_state_persist_failed"),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
	}
	if m.journal != nil {
		if err := m.journal.RecordSuccess(job.ID, job.RecordingID, outputPath, job.InPlace(), elapsed); err != nil {
			logger.Warn("failed to journal encode success",
				logging.Error(err),
				logging.String(logging.FieldEventType, "journal_write_failed"),
				logging.String(logging.FieldErrorHint, "check journal directory permissions"),
			)
		}
	}
	logger.Info("encode completed",
		logging.String(logging.FieldEventType, "encode_complete"),
		logging.String("output_file", outputPath),
		logging.Bool("in_place", job.InPlace()),
		logging.Duration("encode_duration", elapsed),
	)

	event := Completion{
		JobID:        job.ID,
		RecordingID:  job.RecordingID,
		OutputName:   filepath.Base(outputPath),
		OutputPath:   outputPath,
		DeleteSource: job.DeleteSource,
		InPlace:      job.InPlace(),
	}
	for _, handler := range m.completionHandlers() {
		handler(persistCtx, event)
	}
}

func (m *Manager) fail(ctx context.Context, logger *slog.Logger, job *queue.Job, cause error, elapsed time.Duration) {
	m.setLastError(cause)
	persistCtx := context.WithoutCancel(ctx)

	message := strings.TrimSpace(cause.Error())
	if message == "" {
		message = "encode failed"
	}
	logger.Error("encode failed",
		logging.Error(cause),
		logging.String(logging.FieldEventType, "encode_failed"),
		logging.String(logging.FieldErrorHint, failureHint(cause)),
		logging.String("error_kind", services.Kind(cause)),
		logging.Alert("encode_failure"),
	)
	if err := m.store.MarkFailed(persistCtx, job.ID, message); err != nil {
		logger.Error("failed to persist encode failure",
			logging.Error(err),
			logging.String(logging.FieldEventType, "encode_state_persist_failed"),
			logging.String(logging.FieldErrorHint, "check queue database access"),
		)
	}
	if m.journal != nil {
		if err := m.journal.RecordFailure(job.ID, job.RecordingID, cause, elapsed); err != nil {
			logger.Warn("failed to journal encode failure",
				logging.Error(err),
				logging.String(logging.FieldEventType, "journal_write_failed"),
				logging.String(logging.FieldErrorHint, "check journal directory permissions"),
			)
		}
	}

	event := Failure{JobID: job.ID, RecordingID: job.RecordingID, Err: cause}
	for _, handler := range m.errorHandlers() {
		handler(persistCtx, event)
	}
}

func failureHint(err error) string {
	switch {
	case errors.Is(err, services.ErrExternalTool):
		return "inspect drapto output in the daemon log"
	case errors.Is(err, services.ErrConfiguration):
		return "check paths and encode settings in config.toml"
	default:
		return "retry with tsencode queue retry"
	}
}

// progressTracker persists encoder progress when the percent moves by at
// least one point or the stage changes, and samples it into the log.
type progressTracker struct {
	ctx     context.Context
	store   *queue.Store
	logger  *slog.Logger
	jobID   int64
	sampler *logging.ProgressSampler

	lastStage   string
	lastPercent float64
	persisted   bool
}

func newProgressTracker(ctx context.Context, store *queue.Store, logger *slog.Logger, jobID int64) *progressTracker {
	return &progressTracker{
		ctx:     ctx,
		store:   store,
		logger:  logger,
		jobID:   jobID,
		sampler: logging.NewProgressSampler(10, 30*time.Second),
	}
}

func (p *progressTracker) handle(update encoder.ProgressUpdate) {
	switch update.Type {
	case encoder.EventWarning:
		logging.WarnWithContext(p.logger, "encoder warning", "encoder_warning",
			logging.String(logging.FieldErrorHint, "review the encoded output"),
			logging.String("warning", update.Warning),
		)
		return
	case encoder.EventError:
		if update.Issue != nil {
			p.logger.Debug("encoder reported error",
				logging.String("title", update.Issue.Title),
				logging.String("message", update.Issue.Message),
			)
		}
		return
	}

	stage := strings.TrimSpace(update.Stage)
	if stage == "" {
		stage = p.lastStage
	}
	percent := update.Percent
	if percent < 0 {
		percent = p.lastPercent
	}
	if !p.shouldPersist(stage, percent) {
		return
	}
	p.lastStage = stage
	p.lastPercent = percent
	p.persisted = true

	message := update.Message
	if update.Type == encoder.EventEncoding && update.ETA > 0 {
		message = fmt.Sprintf("%.1fx, ETA %s", update.Speed, update.ETA.Round(time.Second))
	}
	if err := p.store.UpdateProgress(p.ctx, p.jobID, stage, percent, message); err != nil {
		p.logger.Debug("progress update failed", logging.Error(err))
	}
	if p.sampler.ShouldLog(percent, stage) {
		p.logger.Info("encode progress",
			logging.String(logging.FieldProgressStage, stage),
			logging.Float64(logging.FieldProgressPercent, percent),
			logging.String("progress_message", message),
		)
	}
}

func (p *progressTracker) shouldPersist(stage string, percent float64) bool {
	if !p.persisted || stage != p.lastStage {
		return true
	}
	delta := percent - p.lastPercent
	return delta >= 1 || delta <= -1
}
