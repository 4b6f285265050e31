// Package archive copies produced encodes to object storage.
//
// Archiving is optional: New returns a nil Uploader when archive.backend is
// empty, and callers skip the upload. S3 (and S3-compatible endpoints such as
// MinIO) and Google Cloud Storage are supported.
package archive

import (
	"context"
	"fmt"
	"mime"
	"path"
	"path/filepath"
	"strings"

	"tsencode/internal/config"
)

// Uploader copies a local file to object storage and returns its URL.
type Uploader interface {
	Upload(ctx context.Context, localPath, key string) (string, error)
	Close() error
}

// New builds the uploader selected by cfg.Archive.Backend. It returns nil,
// nil when archiving is disabled.
func New(ctx context.Context, cfg *config.Config) (Uploader, error) {
	if cfg == nil || !cfg.ArchiveEnabled() {
		return nil, nil
	}
	switch cfg.Archive.Backend {
	case config.ArchiveS3:
		return NewS3(cfg.Archive), nil
	case config.ArchiveGCS:
		return NewGCS(ctx, cfg.Archive)
	default:
		return nil, fmt.Errorf("unsupported archive backend %q", cfg.Archive.Backend)
	}
}

// ObjectKey returns the object name for a produced file of a recording.
func ObjectKey(prefix string, recordingID int64, name string) string {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	base := filepath.Base(strings.TrimSpace(name))
	key := path.Join(fmt.Sprintf("%d", recordingID), base)
	if prefix == "" {
		return key
	}
	return prefix + "/" + key
}

func contentType(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".mkv":
		return "video/x-matroska"
	case ".ts", ".m2ts":
		return "video/mp2t"
	}
	if ct := mime.TypeByExtension(filepath.Ext(name)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
