package pubsub

import (
	"context"

	"github.com/codearena/core/internal/ports"
	"github.com/redis/go-redis/v9"
)

// Redis is a ports.PubSub backed by Redis Pub/Sub, grounded on the
// teacher's internal/ws/redis.go idle_events/game_events subscriber. It
// exists for horizontal deployments; cmd/server wires neither this nor
// InProcess, since room events go through session.Hub.
type Redis struct {
	client *redis.Client
}

// NewRedis wraps an existing Redis client as a ports.PubSub.
func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Publish(ctx context.Context, channel string, payload []byte) error {
	return r.client.Publish(ctx, channel, payload).Err()
}

func (r *Redis) Subscribe(ctx context.Context, channels ...string) ports.Subscription {
	sub := r.client.Subscribe(ctx, channels...)
	out := make(chan ports.Message, 64)

	go func() {
		defer close(out)
		for msg := range sub.Channel() {
			out <- ports.Message{Channel: msg.Channel, Payload: []byte(msg.Payload)}
		}
	}()

	return &redisSubscription{sub: sub, ch: out}
}

type redisSubscription struct {
	sub *redis.PubSub
	ch  chan ports.Message
}

func (s *redisSubscription) Channel() <-chan ports.Message { return s.ch }

func (s *redisSubscription) Close() error {
	return s.sub.Close()
}
