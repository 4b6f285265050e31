package encodemanager

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"tsencode/internal/config"
	"tsencode/internal/encoder"
	"tsencode/internal/logging"
	"tsencode/internal/queue"
	"tsencode/internal/services"
)

// Job is an encode request for one recording.
type Job struct {
	RecordingID  int64      `json:"recording_id"`
	SourcePath   string     `json:"source_path"`
	OutputDir    string     `json:"output_dir,omitempty"`
	OutputName   string     `json:"output_name,omitempty"`
	Mode         queue.Mode `json:"mode,omitempty"`
	DeleteSource bool       `json:"delete_source,omitempty"`
}

// Completion describes a finished job.
type Completion struct {
	JobID        int64
	RecordingID  int64
	OutputName   string
	OutputPath   string
	DeleteSource bool
	InPlace      bool
}

// Failure describes a job that did not produce output.
type Failure struct {
	JobID       int64
	RecordingID int64
	Err         error
}

// CompletionHandler is invoked once per completed job.
type CompletionHandler func(ctx context.Context, event Completion)

// ErrorHandler is invoked once per failed job.
type ErrorHandler func(ctx context.Context, event Failure)

// Journal records job outcomes.
type Journal interface {
	RecordSuccess(jobID, recordingID int64, outputPath string, inPlace bool, duration time.Duration) error
	RecordFailure(jobID, recordingID int64, cause error, duration time.Duration) error
}

// Manager runs encode jobs from the queue store.
type Manager struct {
	cfg     *config.Config
	store   *queue.Store
	encoder encoder.Client
	journal Journal
	logger  *slog.Logger

	workers           int
	pollInterval      time.Duration
	errorRetry        time.Duration
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration

	wake chan struct{}

	// submitMu serialises output name reservation; outputMu serialises the
	// final existence check and move into the output directory.
	submitMu sync.Mutex
	outputMu sync.Mutex

	listenerMu  sync.RWMutex
	onCompleted []CompletionHandler
	onFailed    []ErrorHandler

	mu      sync.RWMutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	lastErr error
	active  map[int64]queue.Job
}

// Option configures optional Manager behaviour.
type Option func(*Manager)

// WithJournal records every job outcome in j.
func WithJournal(j Journal) Option {
	return func(m *Manager) {
		m.journal = j
	}
}

// New constructs a Manager. Workers are not started until Start.
func New(cfg *config.Config, store *queue.Store, enc encoder.Client, logger *slog.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = logging.NewNop()
	}
	workers := cfg.Encode.Concurrency
	if workers <= 0 {
		workers = 1
	}
	m := &Manager{
		cfg:               cfg,
		store:             store,
		encoder:           enc,
		logger:            logging.NewComponentLogger(logger, "encode-manager"),
		workers:           workers,
		pollInterval:      seconds(cfg.Workflow.QueuePollInterval),
		errorRetry:        seconds(cfg.Workflow.ErrorRetryInterval),
		heartbeatInterval: seconds(cfg.Workflow.HeartbeatInterval),
		heartbeatTimeout:  seconds(cfg.Workflow.HeartbeatTimeout),
		wake:              make(chan struct{}, 1),
		active:            make(map[int64]queue.Job),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// OnCompletion registers a listener for completed jobs.
func (m *Manager) OnCompletion(handler CompletionHandler) {
	if handler == nil {
		return
	}
	m.listenerMu.Lock()
	m.onCompleted = append(m.onCompleted, handler)
	m.listenerMu.Unlock()
}

// OnError registers a listener for failed jobs.
func (m *Manager) OnError(handler ErrorHandler) {
	if handler == nil {
		return
	}
	m.listenerMu.Lock()
	m.onFailed = append(m.onFailed, handler)
	m.listenerMu.Unlock()
}

// Push validates job, persists it as pending and wakes an idle worker.
func (m *Manager) Push(ctx context.Context, job Job) error {
	_, err := m.Submit(ctx, job)
	return err
}

// Submit behaves like Push and returns the stored queue row.
func (m *Manager) Submit(ctx context.Context, job Job) (*queue.Job, error) {
	normalized, err := m.normalize(job)
	if err != nil {
		return nil, err
	}

	m.submitMu.Lock()
	defer m.submitMu.Unlock()
	if !normalized.InPlace() {
		name, err := m.reserveOutputName(ctx, normalized)
		if err != nil {
			return nil, err
		}
		normalized.OutputName = name
	}
	stored, err := m.store.Enqueue(ctx, normalized)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "encode-manager", "enqueue", "", err)
	}
	logging.WithContext(services.WithJobID(services.WithRecordingID(ctx, stored.RecordingID), stored.ID), m.logger).Info(
		"encode job queued",
		logging.String(logging.FieldEventType, "encode_queued"),
		logging.String("source_file", stored.SourcePath),
		logging.String("mode", string(stored.Mode)),
		logging.Bool("delete_source", stored.DeleteSource),
		logging.String(logging.FieldCorrelationID, stored.CorrelationID),
	)
	m.Wake()
	return stored, nil
}

// Wake nudges an idle worker to poll the queue now.
func (m *Manager) Wake() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

func (m *Manager) normalize(job Job) (queue.Job, error) {
	invalid := func(msg string) error {
		return services.Wrap(services.ErrValidation, "encode-manager", "push", msg, nil)
	}
	if job.RecordingID <= 0 {
		return queue.Job{}, invalid("recording id must be positive")
	}
	source := strings.TrimSpace(job.SourcePath)
	if source == "" {
		return queue.Job{}, invalid("source path is required")
	}
	info, err := os.Stat(source)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return queue.Job{}, invalid(fmt.Sprintf("source file %s does not exist", source))
		}
		return queue.Job{}, services.Wrap(services.ErrTransient, "encode-manager", "push", "stat source", err)
	}
	if info.IsDir() {
		return queue.Job{}, invalid(fmt.Sprintf("source %s is a directory", source))
	}
	mode, err := queue.ParseMode(string(job.Mode))
	if err != nil {
		return queue.Job{}, invalid(err.Error())
	}

	out := queue.Job{
		RecordingID:  job.RecordingID,
		SourcePath:   source,
		Mode:         mode,
		DeleteSource: job.DeleteSource,
	}
	if mode == queue.ModeInPlace {
		if job.DeleteSource {
			return queue.Job{}, invalid("delete source cannot be combined with an in-place encode")
		}
		out.OutputName = filepath.Base(source)
		return out, nil
	}

	out.OutputDir = strings.TrimSpace(job.OutputDir)
	if out.OutputDir == "" {
		out.OutputDir = m.cfg.Paths.OutputDir
	}
	out.OutputDir = filepath.Clean(out.OutputDir)
	out.OutputName = strings.TrimSpace(job.OutputName)
	if out.OutputName == "" {
		out.OutputName = filepath.Base(encoder.OutputPath(source, out.OutputDir))
	}
	if strings.ContainsRune(out.OutputName, filepath.Separator) {
		return queue.Job{}, invalid("output name must not contain a path separator")
	}
	return out, nil
}

// reserveOutputName returns job's output name, suffixed "-1", "-2"... when the
// file already exists or a pending or running job will write the same path.
func (m *Manager) reserveOutputName(ctx context.Context, job queue.Job) (string, error) {
	active, err := m.store.List(ctx, queue.StatusPending, queue.StatusEncoding)
	if err != nil {
		return "", services.Wrap(services.ErrTransient, "encode-manager", "push", "list active jobs", err)
	}
	claimed := make(map[string]struct{}, len(active))
	for _, other := range active {
		if !other.InPlace() {
			claimed[filepath.Join(other.OutputDir, other.OutputName)] = struct{}{}
		}
	}
	name, ok := availableName(job.OutputDir, job.OutputName, func(path string) bool {
		_, busy := claimed[path]
		return busy || pathExists(path)
	})
	if !ok {
		msg := fmt.Sprintf("no free output name for %s in %s", job.OutputName, job.OutputDir)
		return "", services.Wrap(services.ErrValidation, "encode-manager", "push", msg, nil)
	}
	return name, nil
}

const maxNameSuffix = 999

func availableName(dir, name string, taken func(path string) bool) (string, bool) {
	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	candidate := name
	for i := 1; taken(filepath.Join(dir, candidate)); i++ {
		if i > maxNameSuffix {
			return "", false
		}
		candidate = fmt.Sprintf("%s-%d%s", stem, i, ext)
	}
	return candidate, true
}

func pathExists(path string) bool {
	_, err := os.Lstat(path)
	return !errors.Is(err, fs.ErrNotExist)
}

func (m *Manager) completionHandlers() []CompletionHandler {
	m.listenerMu.RLock()
	defer m.listenerMu.RUnlock()
	return append([]CompletionHandler(nil), m.onCompleted...)
}

func (m *Manager) errorHandlers() []ErrorHandler {
	m.listenerMu.RLock()
	defer m.listenerMu.RUnlock()
	return append([]ErrorHandler(nil), m.onFailed...)
}
