package broadcast

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBroadcaster republishes room deltas over Redis Pub/Sub on a
// `room:{id}` channel, letting multiple server processes share
// fan-out for the same room without any change to the room manager
// or connection hub's single-process invariants.
type RedisBroadcaster struct {
	client redis.UniversalClient
	logger *zap.Logger
}

// NewRedisBroadcaster dials addr and verifies connectivity with Ping.
func NewRedisBroadcaster(addr, password string, db int, logger *zap.Logger) (*RedisBroadcaster, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("broadcast: redis ping: %w", err)
	}
	return &RedisBroadcaster{client: client, logger: logger.With(zap.String("component", "redis-broadcaster"))}, nil
}

func channelName(roomID string) string { return "room:" + roomID }

// Publish sends delta to the room's Redis channel.
func (b *RedisBroadcaster) Publish(ctx context.Context, roomID string, delta []byte) error {
	return b.client.Publish(ctx, channelName(roomID), delta).Err()
}

// Subscribe listens on the room's Redis channel until ctx is done or
// the returned unsubscribe func is called.
func (b *RedisBroadcaster) Subscribe(ctx context.Context, roomID string) (<-chan []byte, func()) {
	sub := b.client.Subscribe(ctx, channelName(roomID))
	out := make(chan []byte, 16)

	go func() {
		defer close(out)
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- []byte(msg.Payload):
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, func() {
		if err := sub.Close(); err != nil {
			b.logger.Warn("redis unsubscribe failed", zap.Error(err))
		}
	}
}

var _ Broadcaster = (*RedisBroadcaster)(nil)
