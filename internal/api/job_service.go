package api

import (
	"context"

	"tsencode/internal/queue"
)

// JobReader abstracts queue persistence interactions needed for API queries.
type JobReader interface {
	List(ctx context.Context, statuses ...queue.Status) ([]*queue.Job, error)
	Stats(ctx context.Context) (map[queue.Status]int, error)
	Get(ctx context.Context, id int64) (*queue.Job, error)
}

// JobService exposes read-only job queries returning API DTOs.
type JobService struct {
	store JobReader
}

// NewJobService constructs a JobService around the provided reader.
func NewJobService(store JobReader) *JobService {
	if store == nil {
		return nil
	}
	return &JobService{store: store}
}

// List returns jobs filtered by status.
func (s *JobService) List(ctx context.Context, statuses ...queue.Status) ([]JobItem, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	jobs, err := s.store.List(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	return FromJobs(jobs), nil
}

// Stats returns job counts keyed by status string.
func (s *JobService) Stats(ctx context.Context) (map[string]int, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	stats, err := s.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return MergeQueueStats(stats), nil
}

// Describe fetches a single job. It returns nil, nil when missing.
func (s *JobService) Describe(ctx context.Context, id int64) (*JobItem, error) {
	if s == nil || s.store == nil {
		return nil, nil
	}
	job, err := s.store.Get(ctx, id)
	if err != nil || job == nil {
		return nil, err
	}
	dto := FromJob(job)
	return &dto, nil
}

// ParseStatuses converts user-supplied status names, dropping unknown values.
func ParseStatuses(values []string) []queue.Status {
	out := make([]queue.Status, 0, len(values))
	for _, v := range values {
		if status, ok := queue.ParseStatus(v); ok {
			out = append(out, status)
		}
	}
	return out
}
