package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"tsencode/internal/config"
)

const userAgent = "tsencode/0.1.0"

// Event identifies a notification kind.
type Event string

const (
	EventEncodeCompleted Event = "encode_completed"
	EventEncodeFailed    Event = "encode_failed"
	EventTest            Event = "test"
)

// Payload carries event fields.
type Payload map[string]any

// Service defines the notification surface exposed to daemon components.
type Service interface {
	Publish(ctx context.Context, event Event, payload Payload) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.Notifications.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
		enabled: map[Event]bool{
			EventEncodeCompleted: cfg.Notifications.EncodeCompleted,
			EventEncodeFailed:    cfg.Notifications.EncodeFailed,
			EventTest:            true,
		},
	}
}

type message struct {
	title    string
	body     string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
	enabled  map[Event]bool
}

func (n *ntfyService) Publish(ctx context.Context, event Event, payload Payload) error {
	if n == nil || !n.enabled[event] {
		return nil
	}
	msg, ok := buildMessage(event, payload)
	if !ok {
		return nil
	}
	return n.send(ctx, msg)
}

func buildMessage(event Event, payload Payload) (message, bool) {
	switch event {
	case EventEncodeCompleted:
		name := payloadString(payload, "name")
		if name == "" {
			name = filepath.Base(payloadString(payload, "path"))
		}
		body := fmt.Sprintf("🎞️ Encoded: %s", name)
		if payloadBool(payload, "in_place") {
			body = fmt.Sprintf("🎞️ Re-encoded in place: %s", name)
		}
		return message{
			title: "tsencode - Encoded",
			body:  body,
			tags:  []string{"tsencode", "encode", "completed"},
		}, true
	case EventEncodeFailed:
		var b strings.Builder
		b.WriteString("❌ Encode failed")
		if id := payloadString(payload, "recording_id"); id != "" {
			b.WriteString(" for recording ")
			b.WriteString(id)
		}
		b.WriteString(": ")
		if errText := payloadString(payload, "error"); errText != "" {
			b.WriteString(errText)
		} else {
			b.WriteString("unknown")
		}
		return message{
			title:    "tsencode - Encode Failed",
			body:     b.String(),
			tags:     []string{"tsencode", "encode", "error"},
			priority: "high",
		}, true
	case EventTest:
		return message{
			title:    "tsencode - Test",
			body:     "🧪 Notification system test",
			tags:     []string{"tsencode", "test"},
			priority: "low",
		}, true
	default:
		return message{}, false
	}
}

func payloadString(payload Payload, key string) string {
	if payload == nil {
		return ""
	}
	switch v := payload[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case error:
		return strings.TrimSpace(v.Error())
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

func payloadBool(payload Payload, key string) bool {
	v, _ := payload[key].(bool)
	return v
}

func (n *ntfyService) send(ctx context.Context, data message) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.body))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) Publish(context.Context, Event, Payload) error { return nil }
