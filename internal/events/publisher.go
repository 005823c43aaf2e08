package events

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Publisher hands committed notifications to downstream consumers.
type Publisher interface {
	Publish(ctx context.Context, notification Notification) error
}

// RedisStreamPublisher appends notifications to a Redis stream.
type RedisStreamPublisher struct {
	client *redis.Client
	stream string
	maxLen int64
}

// NewRedisStreamPublisher builds a publisher. maxLen <= 0 leaves the stream untrimmed.
func NewRedisStreamPublisher(client *redis.Client, stream string, maxLen int64) *RedisStreamPublisher {
	return &RedisStreamPublisher{client: client, stream: stream, maxLen: maxLen}
}

func (p *RedisStreamPublisher) Publish(ctx context.Context, notification Notification) error {
	if p == nil || p.client == nil {
		return fmt.Errorf("redis publisher not configured")
	}
	args := &redis.XAddArgs{
		Stream: p.stream,
		Values: streamValues(notification),
	}
	if p.maxLen > 0 {
		args.MaxLen = p.maxLen
		args.Approx = true
	}
	if err := p.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", p.stream, err)
	}
	return nil
}

func streamValues(n Notification) map[string]any {
	return map[string]any{
		"id":        n.ID,
		"ticket_id": strconv.FormatInt(n.TicketID, 10),
		"actor_id":  strconv.FormatInt(n.ActorID, 10),
		"message":   n.Message,
		"timestamp": n.Timestamp.UTC().Format(time.RFC3339Nano),
	}
}
