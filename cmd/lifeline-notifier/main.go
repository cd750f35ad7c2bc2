// Package main provides the CLI entry point for the lifeline notifier. It
// consumes the alert lifecycle topic and forwards events to the configured
// notification channels (webhook, email).
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"lifeline/internal/notifier"
	"lifeline/internal/notifier/provider"
)

type notifierConfig struct {
	KafkaBrokers        string
	AlertLifecycleTopic string
	ConsumerGroup       string
	WebhookURL          string
	EmailFrom           string
	EmailTo             string
	EmailProvider       string
	ResendAPIKey        string
	AWSRegion           string
	MaxRetries          int
}

func (c *notifierConfig) validate() error {
	if c.KafkaBrokers == "" {
		return fmt.Errorf("kafka-brokers cannot be empty")
	}
	if c.AlertLifecycleTopic == "" {
		return fmt.Errorf("alert-lifecycle-topic cannot be empty")
	}
	if c.ConsumerGroup == "" {
		return fmt.Errorf("consumer-group cannot be empty")
	}
	if c.WebhookURL == "" && c.EmailTo == "" {
		return fmt.Errorf("at least one channel is required: set webhook-url or email-to")
	}
	if c.EmailTo != "" && c.EmailFrom == "" {
		return fmt.Errorf("email-from is required when email-to is set")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max-retries cannot be negative")
	}
	return nil
}

// recipients splits the comma-separated email-to flag.
func (c *notifierConfig) recipients() []string {
	var out []string
	for _, addr := range strings.Split(c.EmailTo, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}

func main() {
	cfg := &notifierConfig{}
	flag.StringVar(&cfg.KafkaBrokers, "kafka-brokers", "localhost:9092", "Kafka broker addresses (comma-separated)")
	flag.StringVar(&cfg.AlertLifecycleTopic, "alert-lifecycle-topic", "alerts.lifecycle", "Kafka topic for alert lifecycle events")
	flag.StringVar(&cfg.ConsumerGroup, "consumer-group", "lifeline-notifier", "Kafka consumer group id")
	flag.StringVar(&cfg.WebhookURL, "webhook-url", "", "Webhook URL lifecycle events are delivered to")
	flag.StringVar(&cfg.EmailFrom, "email-from", "", "From address for email notifications")
	flag.StringVar(&cfg.EmailTo, "email-to", "", "Email recipients (comma-separated); empty disables email")
	flag.StringVar(&cfg.EmailProvider, "email-provider", "resend", "Primary email provider (resend or ses)")
	flag.StringVar(&cfg.ResendAPIKey, "resend-api-key", os.Getenv("RESEND_API_KEY"), "Resend API key (defaults to RESEND_API_KEY)")
	flag.StringVar(&cfg.AWSRegion, "aws-region", "", "AWS region for SES; empty disables SES")
	flag.IntVar(&cfg.MaxRetries, "max-retries", 3, "Maximum delivery retries per event")
	flag.Parse()

	// Set up structured logging
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	slog.Info("Starting lifeline-notifier",
		"kafka_brokers", cfg.KafkaBrokers,
		"topic", cfg.AlertLifecycleTopic,
		"consumer_group", cfg.ConsumerGroup,
		"webhook_url", cfg.WebhookURL,
		"email_to", cfg.EmailTo,
	)

	if err := cfg.validate(); err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		slog.Info("Received shutdown signal, shutting down gracefully...")
		cancel()
	}()

	sender, err := buildSender(ctx, cfg)
	if err != nil {
		slog.Error("Invalid channel configuration", "error", err)
		os.Exit(1)
	}

	consumer, err := notifier.NewConsumer(cfg.KafkaBrokers, cfg.AlertLifecycleTopic, cfg.ConsumerGroup)
	if err != nil {
		slog.Error("Failed to create Kafka consumer", "error", err)
		slog.Info("Tip: Start Kafka with 'docker compose up -d kafka'")
		os.Exit(1)
	}
	defer consumer.Close()

	retry := notifier.DefaultRetryConfig()
	retry.MaxRetries = cfg.MaxRetries

	processor := notifier.NewProcessor(consumer, sender, retry)
	if err := processor.Run(ctx); err != nil {
		slog.Error("Processing loop failed", "error", err)
		os.Exit(1)
	}

	slog.Info("Lifeline-notifier stopped")
}

// buildSender assembles the delivery channels from the configuration.
func buildSender(ctx context.Context, cfg *notifierConfig) (notifier.Sender, error) {
	var senders []notifier.Sender

	if cfg.WebhookURL != "" {
		webhook, err := notifier.NewWebhookSender(cfg.WebhookURL)
		if err != nil {
			return nil, err
		}
		senders = append(senders, webhook)
	}

	if cfg.EmailTo != "" {
		registry := provider.NewRegistry()
		registry.Register(provider.NewResendProvider(cfg.ResendAPIKey))
		registry.Register(provider.NewSESProvider(ctx, cfg.AWSRegion))
		if err := registry.SetPrimary(cfg.EmailProvider); err != nil {
			return nil, err
		}

		email, err := notifier.NewEmailSender(registry, cfg.EmailFrom, cfg.recipients())
		if err != nil {
			return nil, err
		}
		senders = append(senders, email)
	}

	if len(senders) == 1 {
		return senders[0], nil
	}
	return notifier.NewFanoutSender(senders...), nil
}
