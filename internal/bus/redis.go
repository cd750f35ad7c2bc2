package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"lifeline/internal/events"
)

// RedisBus publishes alert changes over Redis pub/sub. Each change goes to the
// alert's category channel (for matching feeds) and to its per-record channel
// (for the requester and accepting responder watchers).
type RedisBus struct {
	client *redis.Client
}

// NewRedisBus creates a bus backed by the given Redis client.
func NewRedisBus(client *redis.Client) *RedisBus {
	return &RedisBus{client: client}
}

var _ Bus = (*RedisBus)(nil)

// Publish serializes the change event and publishes it to the category and
// per-alert channels.
func (b *RedisBus) Publish(ctx context.Context, ev *events.AlertChanged) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal alert changed event: %w", err)
	}

	pipe := b.client.Pipeline()
	pipe.Publish(ctx, categoryChannel(ev.Category), payload)
	pipe.Publish(ctx, alertChannel(ev.AlertID), payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to publish alert changed event: %w", err)
	}

	return nil
}

// SubscribeCategory returns a subscription delivering every change to alerts of
// the given category.
func (b *RedisBus) SubscribeCategory(ctx context.Context, category string) (Subscription, error) {
	return b.subscribe(ctx, categoryChannel(category))
}

// SubscribeAlert returns a subscription delivering every change to one alert
// record. Deletion of the record arrives as an event with ActionDeleted; the
// channel itself stays open until the subscriber closes it.
func (b *RedisBus) SubscribeAlert(ctx context.Context, alertID string) (Subscription, error) {
	return b.subscribe(ctx, alertChannel(alertID))
}

func (b *RedisBus) subscribe(ctx context.Context, channel string) (Subscription, error) {
	pubsub := b.client.Subscribe(ctx, channel)

	// Force the SUBSCRIBE round trip so a failed subscription surfaces here
	// rather than as a silently empty stream.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", channel, err)
	}

	sub := &RedisSubscription{
		pubsub:  pubsub,
		channel: channel,
		out:     make(chan *events.AlertChanged, subscriberBuffer),
	}
	go sub.pump()
	return sub, nil
}

// RedisSubscription adapts a Redis pub/sub stream to a typed event channel.
type RedisSubscription struct {
	pubsub  *redis.PubSub
	channel string
	out     chan *events.AlertChanged
}

// Events returns the stream of change events. The channel is closed when the
// subscription is closed or the underlying connection drops.
func (s *RedisSubscription) Events() <-chan *events.AlertChanged {
	return s.out
}

// Close tears down the subscription and releases the Redis channel.
func (s *RedisSubscription) Close() error {
	return s.pubsub.Close()
}

// pump decodes raw pub/sub messages onto the typed channel until the
// subscription closes.
func (s *RedisSubscription) pump() {
	defer close(s.out)
	for msg := range s.pubsub.Channel() {
		var ev events.AlertChanged
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			slog.Warn("Dropping malformed alert changed event", "channel", s.channel, "error", err)
			continue
		}
		select {
		case s.out <- &ev:
		default:
			slog.Warn("Subscriber too slow, dropping alert changed event",
				"channel", s.channel,
				"alert_id", ev.AlertID,
				"action", ev.Action,
			)
		}
	}
}
