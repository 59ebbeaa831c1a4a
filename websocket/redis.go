package websocket

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"form-analytics-server/models"
)

// NewRedisClient parses a redis:// URL and checks the server answers.
func NewRedisClient(ctx context.Context, redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// RedisSink publishes events on a Redis channel so every server instance
// can relay them to its own dashboards.
type RedisSink struct {
	Client  *redis.Client
	Channel string
}

func (s RedisSink) Deliver(ctx context.Context, event models.ResponseEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	if err := s.Client.Publish(ctx, s.Channel, payload).Err(); err != nil {
		return fmt.Errorf("failed to publish to Redis: %w", err)
	}
	return nil
}

// RedisRelay subscribes to the channel and forwards events into the local hub.
type RedisRelay struct {
	Client  *redis.Client
	Channel string
	Hub     *Hub
	Log     *logrus.Entry
}

// Run blocks until ctx is cancelled or the subscription fails.
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.Client.Subscribe(ctx, r.Channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to %s: %w", r.Channel, err)
	}
	r.Log.WithField("channel", r.Channel).Info("📡 Relaying Redis events to dashboards")

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var event models.ResponseEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				r.Log.WithError(err).Warn("⚠️ Ignoring malformed event")
				continue
			}
			if err := r.Hub.Broadcast(ctx, NewEventMessage(event)); err != nil {
				return nil
			}
		}
	}
}
