package queue

import (
	"context"
	"errors"
	"fmt"
	"os"

	"tsencode/internal/sqlitedb"
)

// Stats returns a count of jobs grouped by status.
func (s *Store) Stats(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM encode_jobs GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("queue stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[Status]int)
	for rows.Next() {
		var (
			status Status
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan queue stats: %w", err)
		}
		stats[status] = count
	}
	return stats, rows.Err()
}

// CheckHealth runs the SQLite integrity check and counts jobs. Failures are
// reported both in the returned Error field and as the error value.
func (s *Store) CheckHealth(ctx context.Context) (DatabaseHealth, error) {
	health := DatabaseHealth{DBPath: s.path}
	if info, err := os.Stat(s.path); err != nil || info.IsDir() {
		if err == nil {
			err = fmt.Errorf("%s is a directory", s.path)
		}
		if errors.Is(err, os.ErrNotExist) {
			return health, nil
		}
		health.Error = err.Error()
		return health, fmt.Errorf("queue database: %w", err)
	}
	health.DatabaseExists = true

	fail := func(err error) (DatabaseHealth, error) {
		health.Error = err.Error()
		return health, err
	}
	ok, err := sqlitedb.IntegrityCheck(ctx, s.db)
	if err != nil {
		return fail(err)
	}
	health.IntegrityCheck = ok
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM encode_jobs`).Scan(&health.TotalJobs); err != nil {
		return fail(fmt.Errorf("count jobs: %w", err))
	}
	return health, nil
}

// ClearCompleted removes completed jobs from the queue.
func (s *Store) ClearCompleted(ctx context.Context) (int64, error) {
	res, err := sqlitedb.Exec(ctx, s.db, `DELETE FROM encode_jobs WHERE status = ?`, StatusCompleted)
	if err != nil {
		return 0, fmt.Errorf("clear completed: %w", err)
	}
	return res.RowsAffected()
}
