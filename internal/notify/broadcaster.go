package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"tsencode/internal/config"
	"tsencode/internal/logging"
)

// Publisher sends a message on a pub/sub channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, message []byte) error
	Close() error
}

// Broadcaster implements client notification over the Hub and an optional
// Publisher.
type Broadcaster struct {
	hub       *Hub
	publisher Publisher
	channel   string
	timeout   time.Duration
	logger    *slog.Logger
	wg        sync.WaitGroup
}

// NewBroadcaster builds a Broadcaster from configuration. A Redis publisher
// is attached when broadcast.redis_addr is set; an unreachable server is
// logged and publishing is still attempted on every notification.
func NewBroadcaster(ctx context.Context, cfg *config.Config, hub *Hub, logger *slog.Logger) *Broadcaster {
	logger = logging.NewComponentLogger(logger, "notify")
	var pub Publisher
	if cfg != nil && cfg.BroadcastEnabled() {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Broadcast.RedisAddr,
			Password: cfg.Broadcast.RedisPassword,
			DB:       cfg.Broadcast.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
		if err := client.Ping(pingCtx).Err(); err != nil {
			logging.WarnWithContext(logger, "redis broadcast unavailable", "broadcast_unavailable",
				logging.Error(err),
				logging.String("redis_addr", cfg.Broadcast.RedisAddr),
				logging.String(logging.FieldErrorHint, "check broadcast.redis_addr and that redis is running"),
				logging.String(logging.FieldImpact, "subscribers miss state changes until redis is reachable"),
			)
		}
		cancel()
		pub = &redisPublisher{client: client}
	}
	channel := ""
	timeout := 3 * time.Second
	if cfg != nil {
		channel = cfg.Broadcast.Channel
		if cfg.Broadcast.PublishTimeout > 0 {
			timeout = time.Duration(cfg.Broadcast.PublishTimeout) * time.Second
		}
	}
	return New(hub, pub, channel, timeout, logger)
}

// New constructs a Broadcaster. publisher may be nil.
func New(hub *Hub, publisher Publisher, channel string, timeout time.Duration, logger *slog.Logger) *Broadcaster {
	if hub == nil {
		hub = NewHub()
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Broadcaster{
		hub:       hub,
		publisher: publisher,
		channel:   strings.TrimSpace(channel),
		timeout:   timeout,
		logger:    logger,
	}
}

// Hub returns the in-memory hub backing this broadcaster.
func (b *Broadcaster) Hub() *Hub {
	return b.hub
}

// NotifyClients records a state change and publishes it asynchronously.
func (b *Broadcaster) NotifyClients() {
	evt := b.hub.Bump()
	if b.publisher == nil || b.channel == "" {
		return
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		b.logger.Warn("failed to encode broadcast", logging.Error(err))
		return
	}
	b.wg.Add(1)
	go func() {
		defer b.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
		defer cancel()
		if err := b.publisher.Publish(ctx, b.channel, payload); err != nil {
			logging.WarnWithContext(b.logger, "broadcast publish failed", "broadcast_publish_failed",
				logging.Error(err),
				logging.Uint64("sequence", evt.Sequence),
				logging.String(logging.FieldErrorHint, "check redis connectivity"),
				logging.String(logging.FieldImpact, "redis subscribers miss this state change"),
			)
		}
	}()
}

// Close waits for in-flight publishes and releases the publisher.
func (b *Broadcaster) Close() error {
	b.wg.Wait()
	if b.publisher == nil {
		return nil
	}
	return b.publisher.Close()
}

type redisPublisher struct {
	client *redis.Client
}

func (p *redisPublisher) Publish(ctx context.Context, channel string, message []byte) error {
	return p.client.Publish(ctx, channel, message).Err()
}

func (p *redisPublisher) Close() error {
	return p.client.Close()
}
