package recordings

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"

	"tsencode/internal/config"
	"tsencode/internal/services"
	"tsencode/internal/sqlitedb"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes.
const schemaVersion = 1

const (
	recordingColumns = "id, name, channel, source_path, source_size, created_at, updated_at"
	fileColumns      = "id, recording_id, name, path, size, archived_url, created_at"
)

// ErrNotFound reports an unknown recording identifier.
var ErrNotFound = fmt.Errorf("recording %w", services.ErrNotFound)

// Store manages the recording catalogue backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the recordings database configured in cfg.
func Open(cfg *config.Config) (*Store, error) {
	return OpenPath(context.Background(), cfg.RecordingsDBPath())
}

// OpenPath opens the recordings database at an explicit location.
func OpenPath(ctx context.Context, path string) (*Store, error) {
	db, err := sqlitedb.Open(ctx, path, sqlitedb.Schema{Name: "recordings", SQL: schemaSQL, Version: schemaVersion})
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

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// NewRecording inserts a recording, capturing the current size of its source file.
func (s *Store) NewRecording(ctx context.Context, name, channel, sourcePath string) (*Recording, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, services.Wrap(services.ErrValidation, "recordings", "new recording", "name is required", nil)
	}
	var size int64
	if sourcePath != "" {
		info, err := os.Stat(sourcePath)
		if err != nil {
			return nil, services.Wrap(services.ErrValidation, "recordings", "new recording", "stat source", err)
		}
		size = info.Size()
	}

	now := sqlitedb.Now()
	res, err := sqlitedb.Exec(ctx, s.db,
		`INSERT INTO recordings (name, channel, source_path, source_size, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?)`,
		name, sqlitedb.NullableString(channel), sqlitedb.NullableString(sourcePath), size, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert recording: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.Get(ctx, id)
}

// Get fetches a recording by identifier. It returns nil, nil when missing.
func (s *Store) Get(ctx context.Context, id int64) (*Recording, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordingColumns+` FROM recordings WHERE id = ?`, id)
	rec, err := scanRecording(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get recording: %w", err)
	}
	return rec, nil
}

// List returns all recordings, newest first.
func (s *Store) List(ctx context.Context) ([]*Recording, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+recordingColumns+` FROM recordings ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list recordings: %w", err)
	}
	defer rows.Close()

	var out []*Recording
	for rows.Next() {
		rec, err := scanRecording(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Files returns the encoded outputs registered for a recording.
func (s *Store) Files(ctx context.Context, recordingID int64) ([]*EncodedFile, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+fileColumns+` FROM encoded_files WHERE recording_id = ? ORDER BY id`, recordingID)
	if err != nil {
		return nil, fmt.Errorf("list encoded files: %w", err)
	}
	defer rows.Close()

	var out []*EncodedFile
	for rows.Next() {
		file, err := scanFile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, file)
	}
	return out, rows.Err()
}

// AddEncodedFile registers a produced file against a recording.
func (s *Store) AddEncodedFile(ctx context.Context, recordingID int64, name, path string) (*EncodedFile, error) {
	if err := s.ensureExists(ctx, recordingID); err != nil {
		return nil, err
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat encoded file: %w", err)
	}

	now := sqlitedb.Now()
	res, err := sqlitedb.Exec(ctx, s.db,
		`INSERT INTO encoded_files (recording_id, name, path, size, created_at) VALUES (?, ?, ?, ?, ?)`,
		recordingID, name, path, info.Size(), now,
	)
	if err != nil {
		return nil, fmt.Errorf("insert encoded file: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	if _, err := sqlitedb.Exec(ctx, s.db, `UPDATE recordings SET updated_at = ? WHERE id = ?`, now, recordingID); err != nil {
		return nil, fmt.Errorf("touch recording: %w", err)
	}

	row := s.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM encoded_files WHERE id = ?`, id)
	file, err := scanFile(row)
	if err != nil {
		return nil, fmt.Errorf("read encoded file: %w", err)
	}
	return file, nil
}

// UpdateFileSize re-reads the size of the recording's source file and stores it.
func (s *Store) UpdateFileSize(ctx context.Context, recordingID int64) error {
	rec, err := s.Get(ctx, recordingID)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("update file size for %d: %w", recordingID, ErrNotFound)
	}
	if !rec.HasSource() {
		return services.Wrap(services.ErrValidation, "recordings", "update file size", fmt.Sprintf("recording %d has no source file", recordingID), nil)
	}
	info, err := os.Stat(rec.SourcePath)
	if err != nil {
		return fmt.Errorf("stat source for recording %d: %w", recordingID, err)
	}
	if _, err := sqlitedb.Exec(ctx, s.db,
		`UPDATE recordings SET source_size = ?, updated_at = ? WHERE id = ?`,
		info.Size(), sqlitedb.Now(), recordingID,
	); err != nil {
		return fmt.Errorf("update file size: %w", err)
	}
	return nil
}

// ClearSource drops the source reference after the source file was deleted.
func (s *Store) ClearSource(ctx context.Context, recordingID int64) error {
	res, err := sqlitedb.Exec(ctx, s.db,
		`UPDATE recordings SET source_path = NULL, source_size = 0, updated_at = ? WHERE id = ?`,
		sqlitedb.Now(), recordingID,
	)
	if err != nil {
		return fmt.Errorf("clear source: %w", err)
	}
	return requireAffected(res, recordingID)
}

// SetArchivedURL records where an encoded file was archived.
func (s *Store) SetArchivedURL(ctx context.Context, fileID int64, url string) error {
	if _, err := sqlitedb.Exec(ctx, s.db,
		`UPDATE encoded_files SET archived_url = ? WHERE id = ?`,
		sqlitedb.NullableString(url), fileID,
	); err != nil {
		return fmt.Errorf("set archived url: %w", err)
	}
	return nil
}

// Remove deletes a recording and its encoded file rows.
func (s *Store) Remove(ctx context.Context, recordingID int64) (bool, error) {
	res, err := sqlitedb.Exec(ctx, s.db, `DELETE FROM recordings WHERE id = ?`, recordingID)
	if err != nil {
		return false, fmt.Errorf("delete recording: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Count returns the number of recordings in the catalogue.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM recordings`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count recordings: %w", err)
	}
	return n, nil
}

// CheckHealth runs an integrity check against the database.
func (s *Store) CheckHealth(ctx context.Context) error {
	ok, err := sqlitedb.IntegrityCheck(ctx, s.db)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("recordings database %s failed integrity check", s.path)
	}
	return nil
}

func (s *Store) ensureExists(ctx context.Context, recordingID int64) error {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM recordings WHERE id = ?`, recordingID).Scan(&n); err != nil {
		return fmt.Errorf("lookup recording: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("recording %d: %w", recordingID, ErrNotFound)
	}
	return nil
}

func requireAffected(res sql.Result, recordingID int64) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("recording %d: %w", recordingID, ErrNotFound)
	}
	return nil
}

type scanner interface{ Scan(dest ...any) error }

func scanRecording(row scanner) (*Recording, error) {
	var (
		rec        Recording
		channel    sql.NullString
		sourcePath sql.NullString
		createdRaw string
		updatedRaw string
	)
	if err := row.Scan(&rec.ID, &rec.Name, &channel, &sourcePath, &rec.SourceSize, &createdRaw, &updatedRaw); err != nil {
		return nil, err
	}
	rec.Channel = channel.String
	rec.SourcePath = sourcePath.String
	if t, err := sqlitedb.ParseTime(createdRaw); err == nil {
		rec.CreatedAt = t
	}
	if t, err := sqlitedb.ParseTime(updatedRaw); err == nil {
		rec.UpdatedAt = t
	}
	return &rec, nil
}

func scanFile(row scanner) (*EncodedFile, error) {
	var (
		file       EncodedFile
		archived   sql.NullString
		createdRaw string
	)
	if err := row.Scan(&file.ID, &file.RecordingID, &file.Name, &file.Path, &file.Size, &archived, &createdRaw); err != nil {
		return nil, err
	}
	file.ArchivedURL = archived.String
	if t, err := sqlitedb.ParseTime(createdRaw); err == nil {
		file.CreatedAt = t
	}
	return &file, nil
}
