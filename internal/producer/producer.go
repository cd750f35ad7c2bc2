// Package producer provides Kafka producer functionality for the
// alerts.lifecycle topic. The lifecycle stream is audit/integration plumbing;
// alert correctness never depends on a publish succeeding.
package producer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"lifeline/internal/events"
	kafkautil "lifeline/pkg/kafka"
)

const (
	// SchemaVersion tags every published lifecycle event.
	SchemaVersion = 1

	// writeTimeout is the maximum time to wait for a Kafka write operation.
	writeTimeout = 10 * time.Second
)

// LifecyclePublisher is the interface the coordinator publishes through. The
// NoOp implementation stands in when Kafka is not configured.
type LifecyclePublisher interface {
	// Publish sends an alert lifecycle event to Kafka.
	Publish(ctx context.Context, ev *events.AlertLifecycle) error

	// Close gracefully closes the publisher and releases resources.
	Close() error
}

// NoOpPublisher drops every event. Used when no Kafka brokers are configured,
// avoiding nil checks at call sites.
type NoOpPublisher struct{}

var _ LifecyclePublisher = (*NoOpPublisher)(nil)

func (NoOpPublisher) Publish(_ context.Context, _ *events.AlertLifecycle) error { return nil }
func (NoOpPublisher) Close() error                                              { return nil }

// Producer wraps a Kafka writer and publishes alert lifecycle events.
type Producer struct {
	writer *kafka.Writer
	topic  string
}

var _ LifecyclePublisher = (*Producer)(nil)

// NewProducer creates a new Kafka producer with the specified brokers and topic.
// The producer is configured for at-least-once delivery with synchronous writes.
func NewProducer(brokers string, topic string) (*Producer, error) {
	if err := kafkautil.ValidateProducerParams(brokers, topic); err != nil {
		return nil, err
	}

	brokerList := kafkautil.ParseBrokers(brokers)

	slog.Info("Initializing Kafka producer",
		"brokers", brokerList,
		"topic", topic,
	)

	// Key by alert_id so every event for one alert lands on one partition and
	// consumers observe its lifecycle in order.
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokerList...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		WriteTimeout: writeTimeout,
		RequiredAcks: kafka.RequireOne,
		Async:        false,
	}

	return &Producer{
		writer: writer,
		topic:  topic,
	}, nil
}

// Publish serializes a lifecycle event to JSON and publishes it to Kafka,
// keyed by alert id.
func (p *Producer) Publish(ctx context.Context, ev *events.AlertLifecycle) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal lifecycle event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(ev.AlertID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "schema_version", Value: []byte(fmt.Sprintf("%d", ev.SchemaVersion))},
			{Key: "action", Value: []byte(ev.Action)},
			{Key: "alert_id", Value: []byte(ev.AlertID)},
		},
		Time: time.Unix(ev.OccurredAt, 0),
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to write message to Kafka: %w", err)
	}

	slog.Info("Published alert lifecycle event",
		"alert_id", ev.AlertID,
		"action", ev.Action,
		"category", ev.Category,
	)

	return nil
}

// Close gracefully closes the Kafka writer and releases resources.
func (p *Producer) Close() error {
	slog.Info("Closing Kafka producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		slog.Error("Error closing Kafka producer", "error", err)
		return err
	}
	return nil
}
