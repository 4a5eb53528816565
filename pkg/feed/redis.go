package feed

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisBus fans change signals out across processes over Redis pub/sub.
type RedisBus struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// NewRedisBus constructs a pub/sub backed bus. The client is owned by the caller.
func NewRedisBus(client *redis.Client, channel string, logger *zap.Logger) *RedisBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	if channel == "" {
		channel = "academic:changes"
	}
	return &RedisBus{client: client, channel: channel, logger: logger}
}

// Publish sends the entity stream name on the configured channel.
func (b *RedisBus) Publish(ctx context.Context, entity string) error {
	if b == nil || b.client == nil {
		return errors.New("redis feed bus not initialized")
	}
	return b.client.Publish(ctx, b.channel, entity).Err()
}

// Subscribe starts a forwarder goroutine that lives until ctx is cancelled.
func (b *RedisBus) Subscribe(ctx context.Context) (<-chan string, error) {
	if b == nil || b.client == nil {
		return nil, errors.New("redis feed bus not initialized")
	}

	sub := b.client.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("redis subscribe %s: %w", b.channel, err)
	}

	out := make(chan string, subscriberBuffer)
	go func() {
		defer close(out)
		defer sub.Close()
		in := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-in:
				if !ok || msg == nil {
					return
				}
				select {
				case out <- msg.Payload:
				default:
					b.logger.Debug("feed subscriber busy, dropping signal", zap.String("entity", msg.Payload))
				}
			}
		}
	}()

	return out, nil
}

// Close is a no-op; the shared client is closed by its owner.
func (b *RedisBus) Close() error { return nil }
