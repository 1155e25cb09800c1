// Package fanout carries live events from the ingestion side to connected
// browser clients: a Redis pub/sub backplane on the inside, a websocket hub
// on the outside. Delivery is fire-and-forget, at-most-once, no backlog.
package fanout

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"aquadash/internal/models"
)

// Publisher delivers a live event to whoever is listening right now.
type Publisher interface {
	Publish(ctx context.Context, event *models.LiveEvent) error
}

// RedisPublisher publishes live events to a Redis pub/sub channel. The hub
// subscribes the same channel, so multiple server processes can share one
// broadcast plane.
type RedisPublisher struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

var _ Publisher = (*RedisPublisher)(nil)

func NewRedisPublisher(client *redis.Client, channel string, logger *zap.Logger) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel, logger: logger}
}

// Publish serializes the event and fires it into the channel. Subscribers
// joining later never see it.
func (p *RedisPublisher) Publish(ctx context.Context, event *models.LiveEvent) error {
	b, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal live event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, b).Err(); err != nil {
		return fmt.Errorf("failed to publish live event: %w", err)
	}
	return nil
}
