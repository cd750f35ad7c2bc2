package notifier

import (
	"context"
	"log/slog"
	"sync"

	"github.com/segmentio/kafka-go"

	"lifeline/internal/events"
)

const workerCount = 10

// work represents a unit of work for the worker pool.
type work struct {
	ev  *events.AlertLifecycle
	msg *kafka.Message
}

// Sender delivers a lifecycle event to a notification channel.
type Sender interface {
	Send(ctx context.Context, ev *events.AlertLifecycle) error
}

// Processor reads alert lifecycle events from Kafka and delivers them through
// a worker pool. Delivery is at-least-once: offsets commit only after a
// successful send, so receivers must tolerate duplicates.
type Processor struct {
	consumer *Consumer
	sender   Sender
	retry    RetryConfig
}

// NewProcessor creates a processor over the given consumer and sender.
func NewProcessor(consumer *Consumer, sender Sender, retry RetryConfig) *Processor {
	return &Processor{
		consumer: consumer,
		sender:   sender,
		retry:    retry,
	}
}

// Run processes lifecycle events until the context is cancelled.
func (p *Processor) Run(ctx context.Context) error {
	slog.Info("Starting lifecycle processing loop", "workers", workerCount)

	jobs := make(chan work, workerCount*2)
	var wg sync.WaitGroup

	// Start worker goroutines
	for i := 0; i < workerCount; i++ {
		wg.Add(1)
		go p.runWorker(ctx, jobs, &wg)
	}

	// Read messages and dispatch to workers
	p.dispatchMessages(ctx, jobs)

	close(jobs)
	wg.Wait()
	slog.Info("Lifecycle processing loop stopped")
	return nil
}

// runWorker processes jobs from the channel until it's closed.
func (p *Processor) runWorker(ctx context.Context, jobs <-chan work, wg *sync.WaitGroup) {
	defer wg.Done()
	for job := range jobs {
		p.processOne(ctx, job.ev, job.msg)
	}
}

// dispatchMessages reads messages from Kafka and dispatches them to workers.
func (p *Processor) dispatchMessages(ctx context.Context, jobs chan<- work) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
			ev, msg, err := p.consumer.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				if msg != nil {
					// Poison message; commit past it rather than loop forever.
					slog.Error("Skipping undecodable lifecycle event", "error", err, "offset", msg.Offset)
					if cerr := p.consumer.CommitMessage(ctx, msg); cerr != nil {
						slog.Error("Failed to commit skipped message", "error", cerr)
					}
					continue
				}
				slog.Error("Failed to read alert lifecycle event", "error", err)
				continue
			}
			jobs <- work{ev: ev, msg: msg}
		}
	}
}

// processOne handles a single lifecycle event: send with retry, then commit.
func (p *Processor) processOne(ctx context.Context, ev *events.AlertLifecycle, msg *kafka.Message) {
	err := withRetry(ctx, p.retry, "notification send", func() error {
		return p.sender.Send(ctx, ev)
	})
	if err != nil {
		// Leave the offset uncommitted; the group will redeliver.
		slog.Error("Failed to deliver lifecycle event",
			"alert_id", ev.AlertID,
			"action", ev.Action,
			"error", err,
		)
		return
	}

	if err := p.consumer.CommitMessage(ctx, msg); err != nil {
		slog.Error("Failed to commit message offset",
			"alert_id", ev.AlertID,
			"error", err,
		)
	}
}
