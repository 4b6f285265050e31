// Package registrar records encoded outputs against their recordings.
//
// It is the daemon-side handler for "register produced file" requests. After
// the encoded file row is committed it optionally archives the file to object
// storage and, when asked, deletes the recording's source. The source is only
// deleted once registration succeeded; a failed registration leaves it alone.
// Archive and deletion problems are logged and never fail the registration.
package registrar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"tsencode/internal/archive"
	"tsencode/internal/logging"
	"tsencode/internal/recordings"
	"tsencode/internal/services"
)

// Store is the subset of recordings.Store the registrar writes to.
type Store interface {
	Get(ctx context.Context, id int64) (*recordings.Recording, error)
	AddEncodedFile(ctx context.Context, recordingID int64, name, path string) (*recordings.EncodedFile, error)
	SetArchivedURL(ctx context.Context, fileID int64, url string) error
	ClearSource(ctx context.Context, recordingID int64) error
}

// Service registers produced files.
type Service struct {
	store    Store
	uploader archive.Uploader
	prefix   string
	logger   *slog.Logger
	remove   func(string) error
}

// New constructs a Service. uploader may be nil when archiving is disabled.
func New(store Store, uploader archive.Uploader, prefix string, logger *slog.Logger) *Service {
	return &Service{
		store:    store,
		uploader: uploader,
		prefix:   prefix,
		logger:   logging.NewComponentLogger(logger, "registrar"),
		remove:   os.Remove,
	}
}

// RegisterProducedFile adds the encoded file to the recording's catalogue
// entry, archives it when configured and deletes the source when requested.
func (s *Service) RegisterProducedFile(ctx context.Context, recordingID int64, name, path string, deleteSource bool) error {
	if recordingID <= 0 {
		return services.Wrap(services.ErrValidation, "registrar", "register", "recording id must be positive", nil)
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return services.Wrap(services.ErrValidation, "registrar", "register", "produced file path is required", nil)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name = filepath.Base(path)
	}

	ctx = services.WithRecordingID(ctx, recordingID)
	logger := logging.WithContext(ctx, s.logger)

	rec, err := s.store.Get(ctx, recordingID)
	if err != nil {
		return fmt.Errorf("load recording %d: %w", recordingID, err)
	}
	if rec == nil {
		return fmt.Errorf("register produced file: %w", recordings.ErrNotFound)
	}

	file, err := s.store.AddEncodedFile(ctx, recordingID, name, path)
	if err != nil {
		return err
	}
	logger.Info("encoded file registered",
		logging.String(logging.FieldEventType, "encoded_file_registered"),
		logging.Int64("file_id", file.ID),
		logging.String("output_file", file.Path),
		logging.Int64("size_bytes", file.Size),
	)

	s.archiveFile(ctx, logger, file)

	if deleteSource {
		s.deleteSource(ctx, logger, rec, path)
	}
	return nil
}

func (s *Service) archiveFile(ctx context.Context, logger *slog.Logger, file *recordings.EncodedFile) {
	if s.uploader == nil {
		return
	}
	key := archive.ObjectKey(s.prefix, file.RecordingID, file.Name)
	url, err := s.uploader.Upload(ctx, file.Path, key)
	if err != nil {
		logging.WarnWithContext(logger, "archive upload failed", "archive_upload_failed",
			logging.Error(err),
			logging.String("object_key", key),
			logging.String(logging.FieldErrorHint, "check archive credentials and bucket"),
			logging.String(logging.FieldImpact, "encoded file kept locally only"),
		)
		return
	}
	if err := s.store.SetArchivedURL(ctx, file.ID, url); err != nil {
		logging.WarnWithContext(logger, "failed to record archive url", "archive_url_persist_failed",
			logging.Error(err),
			logging.String("archived_url", url),
		)
		return
	}
	logger.Info("encoded file archived",
		logging.String(logging.FieldEventType, "encoded_file_archived"),
		logging.String("archived_url", url),
	)
}

func (s *Service) deleteSource(ctx context.Context, logger *slog.Logger, rec *recordings.Recording, produced string) {
	if !rec.HasSource() {
		return
	}
	if filepath.Clean(rec.SourcePath) == filepath.Clean(produced) {
		logging.WarnWithContext(logger, "source deletion skipped", "source_delete_skipped",
			logging.String("source_file", rec.SourcePath),
			logging.String(logging.FieldErrorHint, "produced file is the source file"),
			logging.String(logging.FieldImpact, "source kept"),
		)
		return
	}
	if err := s.remove(rec.SourcePath); err != nil && !errors.Is(err, os.ErrNotExist) {
		logging.WarnWithContext(logger, "failed to delete source file", "source_delete_failed",
			logging.Error(err),
			logging.String("source_file", rec.SourcePath),
			logging.String(logging.FieldErrorHint, "check permissions on the recording directory"),
			logging.String(logging.FieldImpact, "source file remains on disk"),
		)
		return
	}
	if err := s.store.ClearSource(ctx, rec.ID); err != nil {
		logging.WarnWithContext(logger, "failed to clear source reference", "source_clear_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check recordings database access"),
		)
		return
	}
	logger.Info("source file deleted",
		logging.String(logging.FieldEventType, "source_deleted"),
		logging.String("source_file", rec.SourcePath),
	)
}
