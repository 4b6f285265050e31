package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"time"
)

// RetentionTarget names the per-run log files to prune in one directory.
// Files listed in Exclude (usually the current run's log) are never removed.
type RetentionTarget struct {
	Dir     string
	Pattern string
	Exclude []string
}

// CleanupOldLogs removes files matching each target that were last written
// more than retentionDays ago and returns how many were removed. Zero or
// negative retention disables pruning.
func CleanupOldLogs(logger *slog.Logger, retentionDays int, targets ...RetentionTarget) int {
	if retentionDays <= 0 {
		return 0
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	removed := 0
	for _, target := range targets {
		removed += pruneTarget(logger, target, cutoff)
	}
	return removed
}

func pruneTarget(logger *slog.Logger, target RetentionTarget, cutoff time.Time) int {
	if target.Dir == "" || target.Pattern == "" {
		return 0
	}
	matches, err := filepath.Glob(filepath.Join(target.Dir, target.Pattern))
	if err != nil {
		return 0
	}
	keep := make([]string, 0, len(target.Exclude))
	for _, path := range target.Exclude {
		keep = append(keep, filepath.Clean(path))
	}

	removed := 0
	for _, path := range matches {
		if slices.Contains(keep, filepath.Clean(path)) {
			continue
		}
		info, err := os.Lstat(path)
		if err != nil || info.IsDir() || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			WarnWithContext(logger, "log retention remove failed; file remains", "log_retention_failed",
				String("path", path),
				Error(err),
				String(FieldErrorHint, "check log_dir ownership"),
				String(FieldImpact, "old log file stays on disk"),
			)
			continue
		}
		removed++
		if logger != nil {
			logger.Debug("log pruned", String("path", path), String(FieldEventType, "log_pruned"))
		}
	}
	return removed
}
