package logging

import (
	"context"
	"log/slog"
	"maps"
	"strings"
	"sync"
	"time"
)

// LogEvent represents a structured log line published to the streaming hub.
type LogEvent struct {
	Sequence      uint64            `json:"seq"`
	Timestamp     time.Time         `json:"ts"`
	Level         string            `json:"level"`
	Message       string            `json:"msg"`
	Component     string            `json:"component,omitempty"`
	JobID         int64             `json:"job_id,omitempty"`
	RecordingID   int64             `json:"recording_id,omitempty"`
	Worker        string            `json:"worker,omitempty"`
	EventType     string            `json:"event_type,omitempty"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Fields        map[string]string `json:"fields,omitempty"`
	Details       []DetailField     `json:"details,omitempty"`
}

// DetailField is one highlighted field as the console handler would render it.
type DetailField struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// StreamHub keeps the most recent log events in a ring and lets readers block
// until newer events arrive.
type StreamHub struct {
	mu      sync.Mutex
	ring    []LogEvent
	head    int
	size    int
	lastSeq uint64
	changed chan struct{}
}

// NewStreamHub constructs a hub holding at most capacity events.
func NewStreamHub(capacity int) *StreamHub {
	if capacity <= 0 {
		capacity = 512
	}
	return &StreamHub{
		ring:    make([]LogEvent, capacity),
		changed: make(chan struct{}),
	}
}

// Publish stamps evt with the next sequence number and stores it, evicting the
// oldest event once the ring is full.
func (h *StreamHub) Publish(evt LogEvent) {
	if h == nil {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now().UTC()
	}
	h.mu.Lock()
	h.lastSeq++
	evt.Sequence = h.lastSeq
	slot := (h.head + h.size) % len(h.ring)
	h.ring[slot] = evt
	if h.size < len(h.ring) {
		h.size++
	} else {
		h.head = (h.head + 1) % len(h.ring)
	}
	wake := h.changed
	h.changed = make(chan struct{})
	h.mu.Unlock()
	close(wake)
}

// Fetch returns up to limit events whose sequence is greater than since. With
// wait set it blocks until such an event exists or ctx is done.
func (h *StreamHub) Fetch(ctx context.Context, since uint64, limit int, wait bool) ([]LogEvent, uint64, error) {
	if h == nil {
		return nil, since, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	for {
		h.mu.Lock()
		events := h.afterLocked(since, h.clampLimit(limit))
		last, changed := h.lastSeq, h.changed
		h.mu.Unlock()

		if len(events) > 0 || !wait {
			return events, last, ctx.Err()
		}
		select {
		case <-ctx.Done():
			return nil, last, ctx.Err()
		case <-changed:
		}
	}
}

// Tail returns the newest limit events without blocking.
func (h *StreamHub) Tail(limit int) ([]LogEvent, uint64) {
	if h == nil {
		return nil, 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	n := h.clampLimit(limit)
	if n > h.size {
		n = h.size
	}
	return h.copyLocked(h.size-n, n), h.lastSeq
}

// FirstSequence reports the oldest sequence still held, or the last issued
// sequence when the hub is empty.
func (h *StreamHub) FirstSequence() uint64 {
	if h == nil {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.size == 0 {
		return h.lastSeq
	}
	return h.ring[h.head].Sequence
}

func (h *StreamHub) clampLimit(limit int) int {
	if limit <= 0 || limit > len(h.ring) {
		return len(h.ring)
	}
	return limit
}

// afterLocked relies on sequences being contiguous inside the ring.
func (h *StreamHub) afterLocked(since uint64, limit int) []LogEvent {
	if h.size == 0 || since >= h.lastSeq {
		return nil
	}
	oldest := h.lastSeq - uint64(h.size) + 1
	offset := 0
	if since >= oldest {
		offset = int(since - oldest + 1)
	}
	n := h.size - offset
	if n > limit {
		n = limit
	}
	return h.copyLocked(offset, n)
}

func (h *StreamHub) copyLocked(offset, n int) []LogEvent {
	if n <= 0 {
		return nil
	}
	out := make([]LogEvent, n)
	for i := range out {
		out[i] = h.ring[(h.head+offset+i)%len(h.ring)]
	}
	return out
}

// streamHandler mirrors every record into the hub before passing it on.
// Logger-level attrs are folded into base once so Handle only applies the
// call-site attrs.
type streamHandler struct {
	next slog.Handler
	hub  *StreamHub
	base LogEvent
}

func newStreamHandler(next slog.Handler, hub *StreamHub) slog.Handler {
	if hub == nil || next == nil {
		return next
	}
	return &streamHandler{next: next, hub: hub}
}

func (h *streamHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *streamHandler) Handle(ctx context.Context, record slog.Record) error {
	h.hub.Publish(h.event(record))
	return h.next.Handle(ctx, record.Clone())
}

func (h *streamHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	base := h.base
	base.Fields = maps.Clone(h.base.Fields)
	for _, attr := range attrs {
		applyEventAttr(&base, attr)
	}
	return &streamHandler{next: h.next.WithAttrs(attrs), hub: h.hub, base: base}
}

func (h *streamHandler) WithGroup(name string) slog.Handler {
	return &streamHandler{next: h.next.WithGroup(name), hub: h.hub, base: h.base}
}

func (h *streamHandler) event(record slog.Record) LogEvent {
	evt := h.base
	evt.Timestamp = record.Time
	evt.Level = strings.ToUpper(record.Level.String())
	evt.Message = strings.TrimSpace(record.Message)
	evt.Fields = maps.Clone(h.base.Fields)
	if evt.Fields == nil {
		evt.Fields = make(map[string]string)
	}

	var attrs []kv
	record.Attrs(func(attr slog.Attr) bool {
		if applyEventAttr(&evt, attr) {
			attrs = append(attrs, kv{key: strings.TrimSpace(attr.Key), value: attr.Value})
		}
		return true
	})
	if len(attrs) == 0 {
		return evt
	}
	info, _ := selectInfoFields(attrs, infoAttrLimit, false)
	for _, field := range info {
		evt.Details = append(evt.Details, DetailField{Label: field.label, Value: field.value})
	}
	return evt
}

// applyEventAttr copies attr into the matching LogEvent field, or into Fields
// for anything unrecognised. It reports false for attrs with a blank key.
func applyEventAttr(evt *LogEvent, attr slog.Attr) bool {
	key := strings.TrimSpace(attr.Key)
	if key == "" {
		return false
	}
	switch key {
	case FieldJobID:
		evt.JobID = attrInt64(attr.Value)
	case FieldRecordingID:
		evt.RecordingID = attrInt64(attr.Value)
	case FieldWorker:
		evt.Worker = attrString(attr.Value)
	case FieldCorrelationID:
		evt.CorrelationID = attrString(attr.Value)
	case FieldComponent:
		evt.Component = attrString(attr.Value)
	case FieldEventType:
		evt.EventType = attrString(attr.Value)
		setField(evt, key, evt.EventType)
	default:
		setField(evt, key, attrString(attr.Value))
	}
	return true
}

func setField(evt *LogEvent, key, value string) {
	if evt.Fields == nil {
		evt.Fields = make(map[string]string)
	}
	evt.Fields[key] = value
}

func attrInt64(v slog.Value) int64 {
	switch v = v.Resolve(); v.Kind() {
	case slog.KindInt64:
		return v.Int64()
	case slog.KindUint64:
		return int64(v.Uint64())
	default:
		return 0
	}
}
