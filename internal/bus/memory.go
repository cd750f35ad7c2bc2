package bus

import (
	"context"
	"log/slog"
	"sync"

	"lifeline/internal/events"
)

// MemoryBus is an in-process bus with the same semantics as RedisBus. It backs
// unit tests and single-node runs where Redis is not configured.
type MemoryBus struct {
	mu   sync.Mutex
	subs map[string][]*MemorySubscription // channel name -> subscribers
}

// NewMemoryBus creates an empty in-process bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[string][]*MemorySubscription)}
}

var _ Bus = (*MemoryBus)(nil)

// Publish delivers the event to every subscriber of the alert's category and
// per-record channels. A subscriber with a full buffer loses the event rather
// than blocking the publisher, matching the Redis path.
func (b *MemoryBus) Publish(_ context.Context, ev *events.AlertChanged) error {
	b.mu.Lock()
	targets := make([]*MemorySubscription, 0, 4)
	targets = append(targets, b.subs[categoryChannel(ev.Category)]...)
	targets = append(targets, b.subs[alertChannel(ev.AlertID)]...)
	b.mu.Unlock()

	for _, sub := range targets {
		sub.deliver(ev)
	}
	return nil
}

// SubscribeCategory returns a subscription for all changes in one category.
func (b *MemoryBus) SubscribeCategory(_ context.Context, category string) (Subscription, error) {
	return b.subscribe(categoryChannel(category)), nil
}

// SubscribeAlert returns a subscription for changes to one alert record.
func (b *MemoryBus) SubscribeAlert(_ context.Context, alertID string) (Subscription, error) {
	return b.subscribe(alertChannel(alertID)), nil
}

func (b *MemoryBus) subscribe(channel string) *MemorySubscription {
	sub := &MemorySubscription{
		bus:     b,
		channel: channel,
		out:     make(chan *events.AlertChanged, subscriberBuffer),
	}
	b.mu.Lock()
	b.subs[channel] = append(b.subs[channel], sub)
	b.mu.Unlock()
	return sub
}

func (b *MemoryBus) unsubscribe(sub *MemorySubscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	subs := b.subs[sub.channel]
	for i, s := range subs {
		if s == sub {
			b.subs[sub.channel] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subs[sub.channel]) == 0 {
		delete(b.subs, sub.channel)
	}
}

// MemorySubscription is an in-process subscription.
type MemorySubscription struct {
	bus     *MemoryBus
	channel string
	out     chan *events.AlertChanged

	closeMu sync.Mutex
	closed  bool
}

// Events returns the stream of change events.
func (s *MemorySubscription) Events() <-chan *events.AlertChanged {
	return s.out
}

// Close detaches the subscription from the bus and closes the event channel.
// Closing twice is safe.
func (s *MemorySubscription) Close() error {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.bus.unsubscribe(s)
	close(s.out)
	return nil
}

func (s *MemorySubscription) deliver(ev *events.AlertChanged) {
	s.closeMu.Lock()
	defer s.closeMu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.out <- ev:
	default:
		slog.Warn("Subscriber too slow, dropping alert changed event",
			"channel", s.channel,
			"alert_id", ev.AlertID,
			"action", ev.Action,
		)
	}
}
