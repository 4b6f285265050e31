// Package queueaccess lets CLI commands read and maintain the encode queue
// whether or not the daemon is running.
package queueaccess

import (
	"context"
	"fmt"

	"tsencode/internal/api"
	"tsencode/internal/ipc"
	"tsencode/internal/queue"
	"tsencode/internal/services"
)

// Access provides queue operations regardless of IPC or direct store backing.
type Access interface {
	Stats(ctx context.Context) (map[string]int, error)
	List(ctx context.Context, statuses []string) ([]api.JobItem, error)
	Describe(ctx context.Context, id int64) (*api.JobItem, error)
	Retry(ctx context.Context, ids []int64) (int64, error)
	ClearCompleted(ctx context.Context) (int64, error)
	ResetStuck(ctx context.Context) (int64, error)
}

// NewIPCAccess returns an Access backed by daemon IPC.
func NewIPCAccess(client *ipc.Client) Access {
	return &ipcAccess{client: client}
}

// NewStoreAccess returns an Access backed by direct database access. It is
// only safe while no daemon owns the queue.
func NewStoreAccess(store *queue.Store) Access {
	return &storeAccess{store: store}
}

type ipcAccess struct {
	client *ipc.Client
}

func (a *ipcAccess) Stats(_ context.Context) (map[string]int, error) {
	resp, err := a.client.Status()
	if err != nil {
		return nil, err
	}
	return resp.Status.Encode.QueueStats, nil
}

func (a *ipcAccess) List(_ context.Context, statuses []string) ([]api.JobItem, error) {
	resp, err := a.client.QueueList(statuses)
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

func (a *ipcAccess) Describe(_ context.Context, id int64) (*api.JobItem, error) {
	resp, err := a.client.QueueDescribe(id)
	if err != nil {
		return nil, err
	}
	return &resp.Item, nil
}

func (a *ipcAccess) Retry(_ context.Context, ids []int64) (int64, error) {
	resp, err := a.client.QueueRetry(ids)
	if err != nil {
		return 0, err
	}
	return resp.Updated, nil
}

func (a *ipcAccess) ClearCompleted(_ context.Context) (int64, error) {
	resp, err := a.client.QueueClearCompleted()
	if err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

func (a *ipcAccess) ResetStuck(_ context.Context) (int64, error) {
	resp, err := a.client.QueueReset()
	if err != nil {
		return 0, err
	}
	return resp.Updated, nil
}

type storeAccess struct {
	store *queue.Store
}

func (a *storeAccess) Stats(ctx context.Context) (map[string]int, error) {
	stats, err := a.store.Stats(ctx)
	if err != nil {
		return nil, err
	}
	return api.MergeQueueStats(stats), nil
}

func (a *storeAccess) List(ctx context.Context, statuses []string) ([]api.JobItem, error) {
	jobs, err := a.store.List(ctx, api.ParseStatuses(statuses)...)
	if err != nil {
		return nil, err
	}
	return api.FromJobs(jobs), nil
}

func (a *storeAccess) Describe(ctx context.Context, id int64) (*api.JobItem, error) {
	job, err := a.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, services.Wrap(services.ErrNotFound, "queue", "describe", fmt.Sprintf("job %d", id), nil)
	}
	item := api.FromJob(job)
	return &item, nil
}

func (a *storeAccess) Retry(ctx context.Context, ids []int64) (int64, error) {
	return a.store.RetryFailed(ctx, ids...)
}

func (a *storeAccess) ClearCompleted(ctx context.Context) (int64, error) {
	return a.store.ClearCompleted(ctx)
}

func (a *storeAccess) ResetStuck(ctx context.Context) (int64, error) {
	return a.store.ResetStuck(ctx)
}
