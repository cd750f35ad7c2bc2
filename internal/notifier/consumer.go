// Package notifier consumes the alerts.lifecycle topic and forwards lifecycle
// events to the configured channels (webhook, email), with retry on transient
// failures. It runs as its own binary so a slow or down channel never
// backpressures the API service.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"lifeline/internal/events"
	kafkautil "lifeline/pkg/kafka"
)

// lifecycleReader is the subset of kafka.Reader the consumer uses. Fetching
// and committing are separate calls so an offset only ever advances after the
// event is processed.
type lifecycleReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Consumer wraps a Kafka reader and provides a simple interface for consuming
// alert lifecycle events.
type Consumer struct {
	reader lifecycleReader
	topic  string
}

// NewConsumer creates a new Kafka consumer with the specified brokers, topic,
// and group ID. The consumer is configured for at-least-once delivery.
func NewConsumer(brokers, topic, groupID string) (*Consumer, error) {
	if err := kafkautil.ValidateConsumerParams(brokers, topic, groupID); err != nil {
		return nil, err
	}

	brokerList := kafkautil.ParseBrokers(brokers)

	slog.Info("Initializing Kafka consumer",
		"brokers", brokerList,
		"topic", topic,
		"group_id", groupID,
	)

	reader := kafka.NewReader(kafkautil.NewReaderConfig(brokerList, topic, groupID))
	kafkautil.LogReaderConfig()

	return &Consumer{
		reader: reader,
		topic:  topic,
	}, nil
}

// ReadMessage fetches the next message from Kafka and deserializes it as an
// AlertLifecycle. It deliberately uses FetchMessage rather than ReadMessage:
// with a consumer group, ReadMessage commits the offset as it reads, which
// would drop events that fail mid-delivery on a restart. The offset is only
// committed via CommitMessage once delivery succeeds.
func (c *Consumer) ReadMessage(ctx context.Context) (*events.AlertLifecycle, *kafka.Message, error) {
	msg, err := c.reader.FetchMessage(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read message from Kafka: %w", err)
	}

	var ev events.AlertLifecycle
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		return nil, &msg, fmt.Errorf("failed to unmarshal alert lifecycle event: %w", err)
	}

	return &ev, &msg, nil
}

// CommitMessage commits the offset for the given message.
// This should be called after successfully processing a message.
func (c *Consumer) CommitMessage(ctx context.Context, msg *kafka.Message) error {
	return c.reader.CommitMessages(ctx, *msg)
}

// Close gracefully closes the Kafka reader and releases resources.
func (c *Consumer) Close() error {
	slog.Info("Closing Kafka consumer", "topic", c.topic)
	if err := c.reader.Close(); err != nil {
		slog.Error("Error closing Kafka consumer", "error", err)
		return err
	}
	return nil
}
