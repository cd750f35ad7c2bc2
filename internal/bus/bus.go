// Package bus provides change-notification fan-out for alert records. It is the
// Go rendition of the document store's snapshot-listener primitive: every
// committed write to an alert is published once, and subscribers observe the
// updates for a given record in commit order.
//
// Two implementations share the same shape: RedisBus for multi-node deployments
// and MemoryBus for tests and single-node runs. There is deliberately no
// process-wide listener variable; every subscription is scoped to a category or
// a single alert id.
package bus

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"lifeline/internal/events"
)

// Subscription is a live stream of change events for one channel.
type Subscription interface {
	// Events returns the stream of change events. The channel closes when the
	// subscription is closed.
	Events() <-chan *events.AlertChanged

	// Close tears down the subscription.
	Close() error
}

// Bus is the change-notification contract consumed by the coordinator, the
// matching feeds, and the client sessions.
type Bus interface {
	// Publish fans one committed change out to the alert's category channel
	// and its per-record channel.
	Publish(ctx context.Context, ev *events.AlertChanged) error

	// SubscribeCategory delivers every change to alerts of one category.
	SubscribeCategory(ctx context.Context, category string) (Subscription, error)

	// SubscribeAlert delivers every change to one alert record.
	SubscribeAlert(ctx context.Context, alertID string) (Subscription, error)
}

// subscriberBuffer is the per-subscriber channel depth. A subscriber that falls
// this far behind starts losing updates rather than blocking the publisher;
// sessions recover by re-reading the store.
const subscriberBuffer = 16

// Connect creates and validates a Redis connection.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", addr, err)
	}

	return client, nil
}

// categoryChannel names the pub/sub channel carrying all changes for one alert
// category. Responder matching feeds subscribe here.
func categoryChannel(category string) string {
	return "alerts.cat." + category
}

// alertChannel names the pub/sub channel carrying changes for one alert record.
// The requester and the accepting responder subscribe here.
func alertChannel(alertID string) string {
	return "alerts.id." + alertID
}
