package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"

	"tsencode/internal/api"
	"tsencode/internal/config"
	"tsencode/internal/coordinator"
	"tsencode/internal/deps"
	"tsencode/internal/encodemanager"
	"tsencode/internal/journal"
	"tsencode/internal/logging"
	"tsencode/internal/notifications"
	"tsencode/internal/notify"
	"tsencode/internal/preflight"
	"tsencode/internal/queue"
	"tsencode/internal/recordings"
	"tsencode/internal/registrar"
	"tsencode/internal/services"
)

// Deps bundles the services the daemon orchestrates.
type Deps struct {
	Queue       *queue.Store
	Recordings  *recordings.Store
	Journal     *journal.Journal
	Manager     *encodemanager.Manager
	Coordinator *coordinator.Coordinator
	Broadcaster *notify.Broadcaster
	Registrar   *registrar.Service
	Notifier    notifications.Service
	LogHub      *logging.StreamHub
	LogPath     string
}

// Daemon coordinates the background encode services and enforces single-instance execution.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	deps   Deps
	api    *apiServer

	lockPath string
	lock     *flock.Flock

	mu      sync.Mutex
	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running          bool
	PID              int
	Encode           encodemanager.StatusSummary
	QueueDBPath      string
	RecordingsDBPath string
	JournalDir       string
	LockFilePath     string
	EventSequence    uint64
	Dependencies     []deps.Status
}

// New constructs a daemon and registers its push-alert listeners on the
// encode manager.
func New(cfg *config.Config, d Deps, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || d.Queue == nil || d.Recordings == nil || d.Manager == nil || d.Coordinator == nil || d.Broadcaster == nil {
		return nil, errors.New("daemon requires config, stores, encode manager, coordinator, and broadcaster")
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	if d.Notifier == nil {
		d.Notifier = notifications.NewService(cfg)
	}

	lockPath := cfg.LockPath()
	daemon := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		deps:     d,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.Manager.OnCompletion(daemon.alertCompleted)
	d.Manager.OnError(daemon.alertFailed)

	api, err := newAPIServer(cfg, daemon, logger)
	if err != nil {
		return nil, err
	}
	daemon.api = api
	return daemon, nil
}

// Start launches the encode workers and the HTTP API and acquires the daemon lock.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another tsencode daemon instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.pruneJournal()

	if err := d.deps.Manager.Start(runCtx); err != nil {
		cancel()
		_ = d.lock.Unlock()
		return fmt.Errorf("start encode manager: %w", err)
	}
	if err := d.api.start(runCtx); err != nil {
		d.deps.Manager.Stop()
		cancel()
		_ = d.lock.Unlock()
		return err
	}

	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("tsencode daemon started",
		logging.String(logging.FieldEventType, "daemon_start"),
		logging.String("lock", d.lockPath))
	return nil
}

// Stop stops background processing and releases the daemon lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.api.stop()
	d.deps.Manager.Stop()
	if err := d.lock.Unlock(); err != nil {
		logging.WarnWithContext(d.logger, "failed to release daemon lock", "daemon_lock_release_failed",
			logging.Error(err),
			logging.String("lock", d.lockPath),
			logging.String(logging.FieldErrorHint, "remove the lock file if no daemon is running"))
	}
	d.running.Store(false)
	d.logger.Info("tsencode daemon stopped", logging.String(logging.FieldEventType, "daemon_stop"))
}

// Close stops the daemon and flushes pending client broadcasts.
func (d *Daemon) Close() error {
	d.Stop()
	return d.deps.Broadcaster.Close()
}

// Running reports whether the encode workers are active.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:          d.running.Load(),
		PID:              os.Getpid(),
		Encode:           d.deps.Manager.Status(ctx),
		QueueDBPath:      d.cfg.QueueDBPath(),
		RecordingsDBPath: d.cfg.RecordingsDBPath(),
		LockFilePath:     d.lockPath,
		EventSequence:    d.deps.Broadcaster.Hub().Current().Sequence,
		Dependencies:     preflight.CheckSystemDeps(d.cfg),
	}
	if d.deps.Journal != nil {
		status.JournalDir = d.deps.Journal.Dir()
	}
	return status
}

// ListJobs returns encode jobs filtered by optional statuses.
func (d *Daemon) ListJobs(ctx context.Context, statuses []queue.Status) ([]*queue.Job, error) {
	return d.deps.Queue.List(ctx, statuses...)
}

// GetJob fetches a single encode job.
func (d *Daemon) GetJob(ctx context.Context, id int64) (*queue.Job, error) {
	job, err := d.deps.Queue.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, services.Wrap(services.ErrNotFound, "daemon", "get job", fmt.Sprintf("job %d", id), nil)
	}
	return job, nil
}

// RetryFailed resets failed jobs (optionally a subset) back to pending and
// wakes the workers.
func (d *Daemon) RetryFailed(ctx context.Context, ids []int64) (int64, error) {
	updated, err := d.deps.Queue.RetryFailed(ctx, ids...)
	if err != nil {
		return 0, err
	}
	if updated > 0 {
		d.deps.Manager.Wake()
		d.deps.Broadcaster.NotifyClients()
	}
	return updated, nil
}

// ResetStuck returns jobs left in the encoding state to pending. Workers own
// those jobs while the daemon runs, so the reset is refused until it stops.
func (d *Daemon) ResetStuck(ctx context.Context) (int64, error) {
	if d.running.Load() {
		return 0, services.Wrap(services.ErrValidation, "daemon", "reset stuck", "stop the daemon before resetting in-flight jobs", nil)
	}
	updated, err := d.deps.Queue.ResetStuck(ctx)
	if err != nil {
		return 0, err
	}
	if updated > 0 {
		d.deps.Broadcaster.NotifyClients()
	}
	return updated, nil
}

// ClearCompleted removes completed jobs from the queue.
func (d *Daemon) ClearCompleted(ctx context.Context) (int64, error) {
	removed, err := d.deps.Queue.ClearCompleted(ctx)
	if err != nil {
		return 0, err
	}
	if removed > 0 {
		d.deps.Broadcaster.NotifyClients()
	}
	return removed, nil
}

// Encode resolves the recording and queues an encode through the coordinator.
func (d *Daemon) Encode(ctx context.Context, req api.EncodeRequest) error {
	if req.RecordingID <= 0 {
		return services.Wrap(services.ErrValidation, "daemon", "encode", fmt.Sprintf("invalid recording id %d", req.RecordingID), nil)
	}
	mode, err := queue.ParseMode(req.Mode)
	if err != nil {
		return services.Wrap(services.ErrValidation, "daemon", "encode", "parse mode", err)
	}
	rec, err := d.deps.Recordings.Get(ctx, req.RecordingID)
	if err != nil {
		return err
	}
	if rec == nil {
		return recordings.ErrNotFound
	}
	if !rec.HasSource() {
		return services.Wrap(services.ErrValidation, "daemon", "encode", fmt.Sprintf("recording %d has no source file", rec.ID), nil)
	}

	job := encodemanager.Job{
		RecordingID:  rec.ID,
		SourcePath:   rec.SourcePath,
		OutputDir:    strings.TrimSpace(req.OutputDir),
		OutputName:   strings.TrimSpace(req.OutputName),
		Mode:         mode,
		DeleteSource: req.DeleteSource,
	}
	if err := d.deps.Coordinator.Push(ctx, job); err != nil {
		return err
	}
	d.deps.Broadcaster.NotifyClients()
	return nil
}

// ListRecordings returns the recording catalogue, newest first.
func (d *Daemon) ListRecordings(ctx context.Context) ([]*recordings.Recording, error) {
	return d.deps.Recordings.List(ctx)
}

// GetRecording fetches a recording with its encoded files.
func (d *Daemon) GetRecording(ctx context.Context, id int64) (*recordings.Recording, []*recordings.EncodedFile, error) {
	rec, err := d.deps.Recordings.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if rec == nil {
		return nil, nil, recordings.ErrNotFound
	}
	files, err := d.deps.Recordings.Files(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return rec, files, nil
}

// AddRecording catalogues an existing recording file.
func (d *Daemon) AddRecording(ctx context.Context, name, channel, sourcePath string) (*recordings.Recording, error) {
	trimmed := strings.TrimSpace(sourcePath)
	if trimmed == "" {
		return nil, services.Wrap(services.ErrValidation, "daemon", "add recording", "source path is required", nil)
	}
	absPath, err := filepath.Abs(trimmed)
	if err != nil {
		return nil, fmt.Errorf("resolve source path: %w", err)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "daemon", "add recording", "stat source file", err)
	}
	if info.IsDir() {
		return nil, services.Wrap(services.ErrValidation, "daemon", "add recording", fmt.Sprintf("source path %q is a directory", absPath), nil)
	}
	if strings.TrimSpace(name) == "" {
		name = strings.TrimSuffix(info.Name(), filepath.Ext(info.Name()))
	}
	rec, err := d.deps.Recordings.NewRecording(ctx, name, channel, absPath)
	if err != nil {
		return nil, err
	}
	d.logger.Info("recording added",
		logging.Int64(logging.FieldRecordingID, rec.ID),
		logging.String(logging.FieldEventType, "recording_added"),
		logging.String("source_file", absPath))
	d.deps.Broadcaster.NotifyClients()
	return rec, nil
}

// RegisterFile records a produced file against a recording on behalf of a
// remote coordinator.
func (d *Daemon) RegisterFile(ctx context.Context, recordingID int64, name, path string, deleteSource bool) error {
	if d.deps.Registrar == nil {
		return services.Wrap(services.ErrConfiguration, "daemon", "register file", "registrar unavailable", nil)
	}
	return d.deps.Registrar.RegisterProducedFile(ctx, recordingID, name, path, deleteSource)
}

// History returns journalled outcomes of kind, newest first.
func (d *Daemon) History(kind journal.Kind, limit int) ([]journal.Entry, error) {
	if d.deps.Journal == nil {
		return nil, nil
	}
	return d.deps.Journal.List(kind, limit)
}

// TestNotification triggers a test notification using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if strings.TrimSpace(d.cfg.Notifications.NtfyTopic) == "" {
		return false, "ntfy topic not configured", nil
	}
	if err := d.deps.Notifier.Publish(ctx, notifications.EventTest, nil); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

// Events returns the client notification hub.
func (d *Daemon) Events() *notify.Hub {
	return d.deps.Broadcaster.Hub()
}

// LogStream returns the in-memory log hub, if any.
func (d *Daemon) LogStream() *logging.StreamHub {
	return d.deps.LogHub
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.deps.LogPath
}

func (d *Daemon) pruneJournal() {
	if d.deps.Journal == nil || d.cfg.Journal.RetentionDays <= 0 {
		return
	}
	maxAge := time.Duration(d.cfg.Journal.RetentionDays) * 24 * time.Hour
	removed, err := d.deps.Journal.Cleanup(maxAge)
	if err != nil {
		logging.WarnWithContext(d.logger, "journal cleanup failed", "journal_cleanup_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check the journal directory"))
		return
	}
	if removed > 0 {
		d.logger.Info("journal pruned",
			logging.String(logging.FieldEventType, "journal_pruned"),
			logging.Int("removed", removed))
	}
}

func (d *Daemon) alertCompleted(ctx context.Context, event encodemanager.Completion) {
	payload := notifications.Payload{
		"name":         event.OutputName,
		"path":         event.OutputPath,
		"in_place":     event.InPlace,
		"recording_id": event.RecordingID,
	}
	if err := d.deps.Notifier.Publish(ctx, notifications.EventEncodeCompleted, payload); err != nil {
		d.alertFailedToSend(err, event.RecordingID)
	}
}

func (d *Daemon) alertFailed(ctx context.Context, event encodemanager.Failure) {
	payload := notifications.Payload{
		"recording_id": event.RecordingID,
		"error":        event.Err,
	}
	if err := d.deps.Notifier.Publish(ctx, notifications.EventEncodeFailed, payload); err != nil {
		d.alertFailedToSend(err, event.RecordingID)
	}
}

func (d *Daemon) alertFailedToSend(err error, recordingID int64) {
	logging.WarnWithContext(d.logger, "push notification failed", "notification_failed",
		logging.Error(err),
		logging.Int64(logging.FieldRecordingID, recordingID),
		logging.String(logging.FieldErrorHint, "check notifications.ntfy_topic"),
		logging.String(logging.FieldImpact, "operators were not alerted about this encode"))
}

// APIAddr returns the address the HTTP API is listening on, or "" when the
// API is disabled or stopped.
func (d *Daemon) APIAddr() string {
	return d.api.Addr()
}
