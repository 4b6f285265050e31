// Package staging manages the per-job scratch directories the encoder writes
// into before the output is moved to its output directory or over the
// recording's source file.
package staging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"tsencode/internal/logging"
)

const jobDirPrefix = "job-"

// CleanResult contains the outcome of a cleanup pass.
type CleanResult struct {
	Removed []string
	Errors  []CleanupError
}

// CleanupError pairs a directory path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// JobDir returns the scratch directory for an encode job.
func JobDir(stagingDir string, jobID int64) string {
	return filepath.Join(stagingDir, fmt.Sprintf("%s%d", jobDirPrefix, jobID))
}

// ParseJobDir extracts the job id from a scratch directory name.
func ParseJobDir(name string) (int64, bool) {
	rest, ok := strings.CutPrefix(name, jobDirPrefix)
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(rest, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// CleanOrphaned removes job scratch directories whose ids are not in active.
// Directories that do not follow the job naming scheme are left alone.
func CleanOrphaned(ctx context.Context, stagingDir string, active map[int64]struct{}, logger *slog.Logger) CleanResult {
	result := CleanResult{}

	stagingDir = strings.TrimSpace(stagingDir)
	if stagingDir == "" {
		return result
	}

	entries, err := os.ReadDir(stagingDir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			result.Errors = append(result.Errors, CleanupError{Path: stagingDir, Error: err})
		}
		return result
	}

	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		if !entry.IsDir() {
			continue
		}
		id, ok := ParseJobDir(entry.Name())
		if !ok {
			continue
		}
		if _, running := active[id]; running {
			continue
		}

		dirPath := filepath.Join(stagingDir, entry.Name())
		if err := os.RemoveAll(dirPath); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dirPath, Error: err})
			if logger != nil {
				logger.Warn("failed to remove orphaned staging directory",
					logging.String("path", dirPath),
					logging.Int64(logging.FieldJobID, id),
					logging.Error(err),
					logging.String(logging.FieldEventType, "staging_cleanup_failed"),
					logging.String(logging.FieldErrorHint, "check staging_dir permissions"),
					logging.String(logging.FieldImpact, "disk space not reclaimed"),
				)
			}
			continue
		}
		result.Removed = append(result.Removed, dirPath)
		if logger != nil {
			logger.Info("removed orphaned staging directory",
				logging.String("path", dirPath),
				logging.Int64(logging.FieldJobID, id),
				logging.String(logging.FieldEventType, "staging_cleanup"),
			)
		}
	}

	return result
}
