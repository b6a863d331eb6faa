package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// DefaultEventChannel is the Redis channel broadcasts are mirrored to.
	DefaultEventChannel = "livepoll:events"
	publishTimeout      = 5 * time.Second
)

// redisPayload is the message published to Redis for external observers.
type redisPayload struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
	At    int64           `json:"at"`
}

// RedisPubSub publishes broadcast messages to a Redis channel for external observers.
type RedisPubSub struct {
	client  *redis.Client
	channel string
}

// NewRedisPubSub creates a Redis mirror on channel.
func NewRedisPubSub(client *redis.Client, channel string) *RedisPubSub {
	if channel == "" {
		channel = DefaultEventChannel
	}
	return &RedisPubSub{client: client, channel: channel}
}

// Publish implements Publisher.
func (r *RedisPubSub) Publish(event string, payload []byte) error {
	body, err := json.Marshal(redisPayload{Event: event, Data: payload, At: time.Now().Unix()})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	return r.client.Publish(ctx, r.channel, body).Err()
}
