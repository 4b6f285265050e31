package encodemanager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tsencode/internal/logging"
	"tsencode/internal/services"
	"tsencode/internal/staging"
)

// Start launches the worker pool. Jobs left in the encoding state by a
// previous run are returned to pending first.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return errors.New("encode manager already running")
	}
	if m.encoder == nil {
		m.mu.Unlock()
		return errors.New("encode manager has no encoder")
	}
	m.running = true
	m.mu.Unlock()

	reset, err := m.store.ResetStuck(ctx)
	if err != nil {
		m.mu.Lock()
		m.running = false
		m.mu.Unlock()
		return fmt.Errorf("reset interrupted jobs: %w", err)
	}
	if reset > 0 {
		m.logger.Info("requeued interrupted encode jobs",
			logging.Int64("count", reset),
			logging.String(logging.FieldEventType, "encode_requeued"),
		)
	}
	// No worker is running yet, so every job scratch directory is left over.
	staging.CleanOrphaned(ctx, m.cfg.Paths.StagingDir, nil, m.logger)

	runCtx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	m.cancel = cancel
	m.wg.Add(m.workers)
	m.mu.Unlock()

	for i := 0; i < m.workers; i++ {
		name := fmt.Sprintf("worker-%d", i+1)
		go m.runWorker(services.WithWorker(runCtx, name), name, i == 0)
	}
	m.logger.Info("encode workers started", logging.Int("workers", m.workers))
	return nil
}

// Stop cancels running encodes and waits for the workers to exit.
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.running = false
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	m.wg.Wait()
}

func (m *Manager) runWorker(ctx context.Context, name string, reclaimer bool) {
	defer m.wg.Done()
	logger := m.logger.With(logging.String(logging.FieldWorker, name))

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if reclaimer {
			m.reclaimStale(ctx, logger)
		}

		job, err := m.store.ClaimNext(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			m.setLastError(err)
			logger.Error("failed to claim next encode job",
				logging.Error(err),
				logging.String(logging.FieldEventType, "queue_fetch_failed"),
				logging.String(logging.FieldErrorHint, "check queue database access"),
			)
			m.sleep(ctx, m.errorRetry)
			continue
		}
		if job == nil {
			m.waitForWork(ctx)
			continue
		}

		m.runJob(ctx, logger, job)
	}
}

func (m *Manager) reclaimStale(ctx context.Context, logger *slog.Logger) {
	if m.heartbeatTimeout <= 0 {
		return
	}
	cutoff := time.Now().Add(-m.heartbeatTimeout)
	reclaimed, err := m.store.ReclaimStale(ctx, cutoff)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warn("reclaim stale jobs failed; stuck jobs may remain",
				logging.Error(err),
				logging.String(logging.FieldEventType, "heartbeat_reclaim_failed"),
				logging.String(logging.FieldErrorHint, "check queue database access"),
			)
		}
		return
	}
	if reclaimed > 0 {
		logger.Info("reclaimed stale encode jobs", logging.Int64("count", reclaimed))
	}
}

func (m *Manager) waitForWork(ctx context.Context) {
	timer := time.NewTimer(m.pollInterval)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-m.wake:
	case <-timer.C:
	}
}

func (m *Manager) sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

// heartbeatLoop refreshes the job heartbeat until ctx is cancelled.
func (m *Manager) heartbeatLoop(ctx context.Context, logger *slog.Logger, jobID int64) {
	if m.heartbeatInterval <= 0 {
		return
	}
	ticker := time.NewTicker(m.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.store.UpdateHeartbeat(ctx, jobID); err != nil {
				if errors.Is(err, context.Canceled) {
					return
				}
				logger.Warn("heartbeat update failed", logging.Error(err))
			}
		}
	}
}
