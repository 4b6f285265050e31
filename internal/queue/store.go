package queue

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"tsencode/internal/config"
	"tsencode/internal/sqlitedb"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when schema.sql changes.
const schemaVersion = 1

const jobColumns = "id, recording_id, source_path, output_dir, output_name, mode, delete_source, status, progress_stage, progress_percent, progress_message, output_path, error_message, correlation_id, created_at, updated_at, started_at, finished_at, last_heartbeat"

// Store manages encode job persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the queue database configured in cfg.
func Open(cfg *config.Config) (*Store, error) {
	return OpenPath(context.Background(), cfg.QueueDBPath())
}

// OpenPath opens the queue database at an explicit location.
func OpenPath(ctx context.Context, path string) (*Store, error) {
	db, err := sqlitedb.Open(ctx, path, sqlitedb.Schema{Name: "queue", SQL: schemaSQL, Version: schemaVersion})
	if err != nil {
		return nil, err
	}
	return &Store{db: db, path: path}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Enqueue persists a new pending job and returns the stored row. A
// correlation ID is generated when the caller did not supply one.
func (s *Store) Enqueue(ctx context.Context, job Job) (*Job, error) {
	if job.RecordingID <= 0 {
		return nil, errors.New("enqueue: recording id is required")
	}
	if strings.TrimSpace(job.SourcePath) == "" {
		return nil, errors.New("enqueue: source path is required")
	}
	if job.Mode == "" {
		job.Mode = ModeNewFile
	}
	if job.CorrelationID == "" {
		job.CorrelationID = uuid.NewString()
	}

	now := sqlitedb.Now()
	res, err := sqlitedb.Exec(ctx, s.db,
		`INSERT INTO encode_jobs (
            recording_id, source_path, output_dir, output_name, mode, delete_source,
            status, progress_percent, correlation_id, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?, ?, ?)`,
		job.RecordingID,
		job.SourcePath,
		sqlitedb.NullableString(job.OutputDir),
		sqlitedb.NullableString(job.OutputName),
		job.Mode,
		sqlitedb.BoolToInt(job.DeleteSource),
		StatusPending,
		job.CorrelationID,
		now,
		now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.Get(ctx, id)
}

// Get fetches a job by identifier. It returns nil, nil when missing.
func (s *Store) Get(ctx context.Context, id int64) (*Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM encode_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// List returns jobs filtered by status set (or all jobs when no status is provided).
func (s *Store) List(ctx context.Context, statuses ...Status) ([]*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM encode_jobs`
	args := make([]any, 0, len(statuses))
	if len(statuses) > 0 {
		query += ` WHERE status IN (` + sqlitedb.Placeholders(len(statuses)) + `)`
		for _, status := range statuses {
			args = append(args, status)
		}
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

// ForRecording returns every job submitted for a recording, oldest first.
func (s *Store) ForRecording(ctx context.Context, recordingID int64) ([]*Job, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobColumns+` FROM encode_jobs WHERE recording_id = ? ORDER BY created_at, id`, recordingID)
	if err != nil {
		return nil, fmt.Errorf("jobs for recording: %w", err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}

func scanJob(row interface{ Scan(dest ...any) error }) (*Job, error) {
	var (
		job             Job
		outputDir       sql.NullString
		outputName      sql.NullString
		mode            string
		deleteSource    int
		status          string
		progressStage   sql.NullString
		progressMessage sql.NullString
		outputPath      sql.NullString
		errorMessage    sql.NullString
		correlationID   sql.NullString
		createdRaw      string
		updatedRaw      string
		startedRaw      sql.NullString
		finishedRaw     sql.NullString
		heartbeatRaw    sql.NullString
	)
	if err := row.Scan(
		&job.ID,
		&job.RecordingID,
		&job.SourcePath,
		&outputDir,
		&outputName,
		&mode,
		&deleteSource,
		&status,
		&progressStage,
		&job.ProgressPercent,
		&progressMessage,
		&outputPath,
		&errorMessage,
		&correlationID,
		&createdRaw,
		&updatedRaw,
		&startedRaw,
		&finishedRaw,
		&heartbeatRaw,
	); err != nil {
		return nil, err
	}

	job.OutputDir = outputDir.String
	job.OutputName = outputName.String
	job.Mode = Mode(mode)
	job.DeleteSource = deleteSource != 0
	job.Status = Status(status)
	job.ProgressStage = progressStage.String
	job.ProgressMessage = progressMessage.String
	job.OutputPath = outputPath.String
	job.ErrorMessage = errorMessage.String
	job.CorrelationID = correlationID.String
	if t, err := sqlitedb.ParseTime(createdRaw); err == nil {
		job.CreatedAt = t
	}
	if t, err := sqlitedb.ParseTime(updatedRaw); err == nil {
		job.UpdatedAt = t
	}
	job.StartedAt = optionalTime(startedRaw)
	job.FinishedAt = optionalTime(finishedRaw)
	job.LastHeartbeat = optionalTime(heartbeatRaw)
	return &job, nil
}

func optionalTime(raw sql.NullString) *time.Time {
	if !raw.Valid {
		return nil
	}
	t, err := sqlitedb.ParseTime(raw.String)
	if err != nil {
		return nil
	}
	return &t
}
