package notify

import (
	"context"
	"sync"
	"time"
)

// Event is one client notification.
type Event struct {
	Type     string    `json:"type"`
	Sequence uint64    `json:"sequence"`
	Time     time.Time `json:"time"`
}

// EventStateChanged is the only event type emitted today.
const EventStateChanged = "state_changed"

// Hub tracks the latest notification and wakes long-poll waiters.
type Hub struct {
	mu   sync.Mutex
	cond *sync.Cond
	last Event
	now  func() time.Time
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	h := &Hub{now: time.Now}
	h.cond = sync.NewCond(&h.mu)
	return h
}

// Bump records a new notification and wakes all waiters.
func (h *Hub) Bump() Event {
	h.mu.Lock()
	h.last = Event{Type: EventStateChanged, Sequence: h.last.Sequence + 1, Time: h.now().UTC()}
	evt := h.last
	h.cond.Broadcast()
	h.mu.Unlock()
	return evt
}

// Current returns the latest notification without blocking.
func (h *Hub) Current() Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.last
}

// Wait returns the latest event once its sequence is greater than since.
// It blocks until that happens or ctx ends, in which case the current event
// is returned with the context error.
func (h *Hub) Wait(ctx context.Context, since uint64) (Event, error) {
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			h.cond.Broadcast()
			h.mu.Unlock()
		case <-stop:
		}
	}()

	h.mu.Lock()
	defer h.mu.Unlock()
	for h.last.Sequence <= since {
		if err := ctx.Err(); err != nil {
			return h.last, err
		}
		h.cond.Wait()
	}
	return h.last, nil
}
