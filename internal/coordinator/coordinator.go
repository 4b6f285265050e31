package coordinator

import (
	"context"
	"fmt"
	"log/slog"

	"tsencode/internal/encodemanager"
	"tsencode/internal/logging"
	"tsencode/internal/services"
)

// QueueManager accepts encode jobs and reports their outcome.
type QueueManager interface {
	Push(ctx context.Context, job encodemanager.Job) error
	OnCompletion(handler encodemanager.CompletionHandler)
	OnError(handler encodemanager.ErrorHandler)
}

// Registrar records a newly produced file against its recording.
type Registrar interface {
	RegisterProducedFile(ctx context.Context, recordingID int64, name, path string, deleteSource bool) error
}

// RecordingStore refreshes stored recording metadata.
type RecordingStore interface {
	UpdateFileSize(ctx context.Context, recordingID int64) error
}

// Notifier tells connected clients that recording state changed.
type Notifier interface {
	NotifyClients()
}

// Coordinator wires encode outcomes to persistence and client notification.
type Coordinator struct {
	manager   QueueManager
	notifier  Notifier
	store     RecordingStore
	registrar Registrar
	logger    *slog.Logger
}

// New constructs a Coordinator and registers its listeners on manager.
func New(manager QueueManager, notifier Notifier, store RecordingStore, registrar Registrar, logger *slog.Logger) *Coordinator {
	c := &Coordinator{
		manager:   manager,
		notifier:  notifier,
		store:     store,
		registrar: registrar,
		logger:    logging.NewComponentLogger(logger, "encode-coordinator"),
	}
	manager.OnCompletion(c.handleCompletion)
	manager.OnError(c.handleError)
	return c
}

// Push forwards job to the queue manager unchanged.
func (c *Coordinator) Push(ctx context.Context, job encodemanager.Job) error {
	return c.manager.Push(ctx, job)
}

func (c *Coordinator) handleCompletion(ctx context.Context, event encodemanager.Completion) {
	ctx = services.WithRecordingID(ctx, event.RecordingID)

	var err error
	if event.InPlace {
		err = attempt(func() error {
			return c.store.UpdateFileSize(ctx, event.RecordingID)
		})
	} else {
		err = attempt(func() error {
			return c.registrar.RegisterProducedFile(ctx, event.RecordingID, event.OutputName, event.OutputPath, event.DeleteSource)
		})
	}
	if err != nil {
		logging.ErrorWithContext(logging.WithContext(ctx, c.logger), "failed to persist encode result", "encode_persist_failed",
			logging.Error(err),
			logging.Bool("in_place", event.InPlace),
			logging.String("output_file", event.OutputPath),
			logging.String(logging.FieldErrorHint, persistHint(event.InPlace)),
		)
	}

	c.notifier.NotifyClients()
}

func (c *Coordinator) handleError(ctx context.Context, event encodemanager.Failure) {
	c.logger.Debug("encode failure observed",
		logging.Int64(logging.FieldJobID, event.JobID),
		logging.Int64(logging.FieldRecordingID, event.RecordingID),
	)
	c.notifier.NotifyClients()
}

// attempt runs op and hands back its error so the caller can log it and
// carry on. A panic in op is converted into an error.
func attempt(op func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = services.Wrap(services.ErrTransient, "encode-coordinator", "persist", "panic", panicError{value: r})
		}
	}()
	return op()
}

type panicError struct {
	value any
}

func (p panicError) Error() string {
	if err, ok := p.value.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(p.value)
}

func persistHint(inPlace bool) string {
	if inPlace {
		return "check the recording source file and recordings database"
	}
	return "check that the daemon is running and the produced file exists"
}
