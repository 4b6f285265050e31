package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"tsencode/internal/sqlitedb"
)

// ClaimNext atomically moves the oldest pending job to encoding and returns
// it. It returns nil, nil when no job is pending.
func (s *Store) ClaimNext(ctx context.Context) (*Job, error) {
	var job *Job
	err := sqlitedb.RetryOnBusy(ctx, func() error {
		now := sqlitedb.Now()
		row := s.db.QueryRowContext(ctx,
			`UPDATE encode_jobs
             SET status = ?, progress_stage = 'Starting', progress_percent = 0, progress_message = NULL,
                 error_message = NULL, started_at = ?, finished_at = NULL, last_heartbeat = ?, updated_at = ?
             WHERE id = (
                 SELECT id FROM encode_jobs WHERE status = ? ORDER BY created_at, id LIMIT 1
             )
             RETURNING `+jobColumns,
			StatusEncoding, now, now, now, StatusPending,
		)
		claimed, scanErr := scanJob(row)
		if scanErr != nil {
			return scanErr
		}
		job = claimed
		return nil
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claim next job: %w", err)
	}
	return job, nil
}

// UpdateProgress records the encoder's current phase and completion percent.
func (s *Store) UpdateProgress(ctx context.Context, id int64, stage string, percent float64, message string) error {
	if _, err := sqlitedb.Exec(ctx, s.db,
		`UPDATE encode_jobs SET progress_stage = ?, progress_percent = ?, progress_message = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		sqlitedb.NullableString(strings.TrimSpace(stage)),
		clampPercent(percent),
		sqlitedb.NullableString(strings.TrimSpace(message)),
		sqlitedb.Now(),
		id,
		StatusEncoding,
	); err != nil {
		return fmt.Errorf("update progress: %w", err)
	}
	return nil
}

// UpdateHeartbeat updates the last heartbeat timestamp for an in-flight job.
func (s *Store) UpdateHeartbeat(ctx context.Context, id int64) error {
	now := sqlitedb.Now()
	if _, err := sqlitedb.Exec(ctx, s.db,
		`UPDATE encode_jobs SET last_heartbeat = ?, updated_at = ? WHERE id = ?`,
		now, now, id,
	); err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	return nil
}

// MarkCompleted records a successful encode and its produced path.
func (s *Store) MarkCompleted(ctx context.Context, id int64, outputPath string) error {
	now := sqlitedb.Now()
	if _, err := sqlitedb.Exec(ctx, s.db,
		`UPDATE encode_jobs
         SET status = ?, output_path = ?, progress_stage = 'Completed', progress_percent = 100,
             progress_message = NULL, error_message = NULL, finished_at = ?, last_heartbeat = NULL, updated_at = ?
         WHERE id = ?`,
		StatusCompleted, outputPath, now, now, id,
	); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	return nil
}

// MarkFailed records a failed encode with its error message.
func (s *Store) MarkFailed(ctx context.Context, id int64, message string) error {
	now := sqlitedb.Now()
	if _, err := sqlitedb.Exec(ctx, s.db,
		`UPDATE encode_jobs
         SET status = ?, error_message = ?, progress_stage = 'Failed', finished_at = ?,
             last_heartbeat = NULL, updated_at = ?
         WHERE id = ?`,
		StatusFailed, sqlitedb.NullableString(message), now, now, id,
	); err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

// ResetStuck returns every encoding job to pending. The daemon calls it at
// startup, when no worker can own a job yet.
func (s *Store) ResetStuck(ctx context.Context) (int64, error) {
	res, err := sqlitedb.Exec(ctx, s.db,
		`UPDATE encode_jobs
         SET status = ?, progress_stage = ?, progress_percent = 0, progress_message = NULL,
             started_at = NULL, last_heartbeat = NULL, updated_at = ?
         WHERE status = ?`,
		StatusPending, DaemonStopReason, sqlitedb.Now(), StatusEncoding,
	)
	if err != nil {
		return 0, fmt.Errorf("reset stuck jobs: %w", err)
	}
	return res.RowsAffected()
}

// ReclaimStale returns encoding jobs to pending when their heartbeat is older
// than cutoff.
func (s *Store) ReclaimStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := sqlitedb.Exec(ctx, s.db,
		`UPDATE encode_jobs
         SET status = ?, progress_stage = 'Reclaimed from stale processing', progress_percent = 0,
             progress_message = NULL, started_at = NULL, last_heartbeat = NULL, updated_at = ?
         WHERE status = ? AND last_heartbeat IS NOT NULL AND last_heartbeat < ?`,
		StatusPending, sqlitedb.Now(), StatusEncoding, sqlitedb.FormatTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("reclaim stale jobs: %w", err)
	}
	return res.RowsAffected()
}

// RetryFailed moves failed jobs back to pending. With no ids every failed
// job is retried.
func (s *Store) RetryFailed(ctx context.Context, ids ...int64) (int64, error) {
	query := `UPDATE encode_jobs
        SET status = ?, progress_stage = 'Retry requested', progress_percent = 0,
            progress_message = NULL, error_message = NULL, output_path = NULL,
            started_at = NULL, finished_at = NULL, updated_at = ?
        WHERE status = ?`
	args := []any{StatusPending, sqlitedb.Now(), StatusFailed}
	if len(ids) > 0 {
		query += ` AND id IN (` + sqlitedb.Placeholders(len(ids)) + `)`
		for _, id := range ids {
			args = append(args, id)
		}
	}
	res, err := sqlitedb.Exec(ctx, s.db, query, args...)
	if err != nil {
		return 0, fmt.Errorf("retry failed jobs: %w", err)
	}
	return res.RowsAffected()
}

func clampPercent(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}
