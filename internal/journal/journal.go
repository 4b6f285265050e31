package journal

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	pebble "github.com/cockroachdb/pebble"

	"tsencode/internal/config"
)

// Kind separates successful and failed outcomes.
type Kind string

const (
	KindSuccess Kind = "success"
	KindFailure Kind = "failure"
)

// ParseKind converts user input into a Kind.
func ParseKind(value string) (Kind, bool) {
	switch Kind(value) {
	case KindSuccess, KindFailure:
		return Kind(value), true
	default:
		return "", false
	}
}

// Entry records how one encode job ended.
type Entry struct {
	Kind        Kind          `json:"kind"`
	JobID       int64         `json:"job_id"`
	RecordingID int64         `json:"recording_id"`
	OutputPath  string        `json:"output_path,omitempty"`
	InPlace     bool          `json:"in_place,omitempty"`
	Error       string        `json:"error,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
	Duration    time.Duration `json:"duration"`
}

var errClosed = errors.New("journal closed")

// Journal wraps the Pebble database.
type Journal struct {
	mu  sync.RWMutex
	db  *pebble.DB
	dir string
	now func() time.Time
}

// Open opens the journal configured for cfg.
func Open(cfg *config.Config) (*Journal, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	return OpenDir(cfg.JournalDir())
}

// OpenDir opens or creates a journal in dir.
func OpenDir(dir string) (*Journal, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	return &Journal{db: db, dir: dir, now: time.Now}, nil
}

// Dir returns the directory holding the journal.
func (j *Journal) Dir() string {
	return j.dir
}

// Close flushes and closes the journal.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.db == nil {
		return nil
	}
	err := j.db.Close()
	j.db = nil
	return err
}

// RecordSuccess stores a completed job.
func (j *Journal) RecordSuccess(jobID, recordingID int64, outputPath string, inPlace bool, duration time.Duration) error {
	return j.put(Entry{
		Kind:        KindSuccess,
		JobID:       jobID,
		RecordingID: recordingID,
		OutputPath:  outputPath,
		InPlace:     inPlace,
		Duration:    duration,
	})
}

// RecordFailure stores a failed job.
func (j *Journal) RecordFailure(jobID, recordingID int64, cause error, duration time.Duration) error {
	entry := Entry{
		Kind:        KindFailure,
		JobID:       jobID,
		RecordingID: recordingID,
		Duration:    duration,
	}
	if cause != nil {
		entry.Error = cause.Error()
	}
	return j.put(entry)
}

func (j *Journal) put(entry Entry) error {
	if entry.JobID <= 0 {
		return fmt.Errorf("journal entry requires job id")
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = j.now().UTC()
	}
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal journal entry: %w", err)
	}

	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.db == nil {
		return errClosed
	}
	return j.db.Set(entryKey(entry.Kind, entry.JobID), data, pebble.Sync)
}

// Get returns the most recent outcome for jobID, or nil when none exists.
// A success entry wins over a failure entry from an earlier attempt.
func (j *Journal) Get(jobID int64) (*Entry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.db == nil {
		return nil, errClosed
	}

	var latest *Entry
	for _, kind := range []Kind{KindSuccess, KindFailure} {
		entry, err := j.get(kind, jobID)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			continue
		}
		if latest == nil || entry.Timestamp.After(latest.Timestamp) {
			latest = entry
		}
	}
	return latest, nil
}

func (j *Journal) get(kind Kind, jobID int64) (*Entry, error) {
	data, closer, err := j.db.Get(entryKey(kind, jobID))
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get journal entry: %w", err)
	}
	defer closer.Close()

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("unmarshal journal entry: %w", err)
	}
	return &entry, nil
}

// List returns entries of kind, newest first. limit <= 0 returns everything.
func (j *Journal) List(kind Kind, limit int) ([]Entry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.db == nil {
		return nil, errClosed
	}

	var entries []Entry
	err := j.scan(kind, func(_ []byte, entry Entry) {
		entries = append(entries, entry)
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(a, b int) bool {
		return entries[a].Timestamp.After(entries[b].Timestamp)
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Cleanup removes entries older than maxAge and returns how many were deleted.
func (j *Journal) Cleanup(maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, nil
	}
	cutoff := j.now().Add(-maxAge)

	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.db == nil {
		return 0, errClosed
	}

	var stale [][]byte
	for _, kind := range []Kind{KindSuccess, KindFailure} {
		err := j.scan(kind, func(key []byte, entry Entry) {
			if entry.Timestamp.Before(cutoff) {
				stale = append(stale, append([]byte(nil), key...))
			}
		})
		if err != nil {
			return 0, err
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	batch := j.db.NewBatch()
	defer batch.Close()
	for _, key := range stale {
		if err := batch.Delete(key, nil); err != nil {
			return 0, fmt.Errorf("delete journal entry: %w", err)
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return 0, fmt.Errorf("commit journal cleanup: %w", err)
	}
	return len(stale), nil
}

// CheckHealth verifies the database answers reads.
func (j *Journal) CheckHealth() error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.db == nil {
		return errClosed
	}
	_, closer, err := j.db.Get([]byte("__health_check__"))
	if err != nil && !errors.Is(err, pebble.ErrNotFound) {
		return fmt.Errorf("journal health check failed: %w", err)
	}
	if closer != nil {
		closer.Close()
	}
	return nil
}

func (j *Journal) scan(kind Kind, fn func(key []byte, entry Entry)) error {
	prefix := []byte(string(kind) + "/")
	iter, err := j.db.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return fmt.Errorf("create journal iterator: %w", err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		var entry Entry
		if err := json.Unmarshal(iter.Value(), &entry); err != nil {
			continue
		}
		fn(iter.Key(), entry)
	}
	if err := iter.Error(); err != nil {
		return fmt.Errorf("journal iteration: %w", err)
	}
	return nil
}

func entryKey(kind Kind, jobID int64) []byte {
	// Zero padded so keys sort by job id.
	return []byte(fmt.Sprintf("%s/%020d", kind, jobID))
}

func prefixUpperBound(prefix []byte) []byte {
	end := append([]byte(nil), prefix...)
	end[len(end)-1]++
	return end
}
