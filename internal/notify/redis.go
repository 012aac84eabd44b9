package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces dealflow channels.
const DefaultPrefix = "dealflow"

// RedisOptions configures the Redis publisher.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// RedisPublisher publishes events with Redis PUBLISH on one channel per deal.
type RedisPublisher struct {
	client *redis.Client
	prefix string
}

// NewRedisPublisher creates a publisher. The connection is established lazily.
func NewRedisPublisher(opts RedisOptions) *RedisPublisher {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return &RedisPublisher{client: rdb, prefix: prefix}
}

// Channel returns the channel name for a deal.
func (p *RedisPublisher) Channel(dealID string) string {
	return ChannelName(p.prefix, dealID)
}

// ChannelName formats "<prefix>:deal:<dealID>".
func ChannelName(prefix, dealID string) string {
	return fmt.Sprintf("%s:deal:%s", prefix, dealID)
}

// Ping checks the Redis connection.
func (p *RedisPublisher) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

// Publish encodes e as JSON and publishes it on the deal's channel.
func (p *RedisPublisher) Publish(ctx context.Context, e Event) error {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	payload, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	if err := p.client.Publish(ctx, p.Channel(e.DealID), payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", e.Type, err)
	}
	return nil
}

// Subscribe streams events for dealID until ctx is cancelled.
func (p *RedisPublisher) Subscribe(ctx context.Context, dealID string) (<-chan Event, error) {
	sub := p.client.Subscribe(ctx, p.Channel(dealID))
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	out := make(chan Event)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var e Event
				if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
					continue
				}
				select {
				case out <- e:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// Close closes the Redis client.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
