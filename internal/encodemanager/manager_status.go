package encodemanager

import (
	"context"
	"sort"

	"tsencode/internal/logging"
	"tsencode/internal/queue"
)

// StatusSummary represents lightweight encode manager diagnostics.
type StatusSummary struct {
	Running    bool                 `json:"running"`
	Workers    int                  `json:"workers"`
	Active     []queue.Job          `json:"active,omitempty"`
	LastError  string               `json:"last_error,omitempty"`
	QueueStats map[queue.Status]int `json:"queue_stats"`
}

// Status returns the latest manager information.
func (m *Manager) Status(ctx context.Context) StatusSummary {
	m.mu.RLock()
	summary := StatusSummary{Running: m.running, Workers: m.workers}
	if m.lastErr != nil {
		summary.LastError = m.lastErr.Error()
	}
	for _, job := range m.active {
		summary.Active = append(summary.Active, job)
	}
	m.mu.RUnlock()

	sort.Slice(summary.Active, func(i, j int) bool { return summary.Active[i].ID < summary.Active[j].ID })

	stats, err := m.store.Stats(ctx)
	if err != nil {
		m.logger.Warn("failed to read queue stats", logging.Error(err))
	}
	summary.QueueStats = stats
	return summary
}

func (m *Manager) setLastError(err error) {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
}

func (m *Manager) trackActive(job *queue.Job, running bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if running {
		m.active[job.ID] = *job
		return
	}
	delete(m.active, job.ID)
}
