package notifier

import (
	"context"
	"fmt"
	"strings"

	"lifeline/internal/events"
	"lifeline/internal/notifier/provider"
)

// emailRegistry is satisfied by *provider.Registry.
type emailRegistry interface {
	Send(ctx context.Context, req *provider.EmailRequest) error
}

// EmailSender delivers lifecycle events as plain-text email through the
// provider registry.
type EmailSender struct {
	registry emailRegistry
	from     string
	to       []string
}

// NewEmailSender creates a sender addressed to the given recipients.
func NewEmailSender(registry emailRegistry, from string, to []string) (*EmailSender, error) {
	if from == "" {
		return nil, fmt.Errorf("email from address is required")
	}
	if len(to) == 0 {
		return nil, fmt.Errorf("at least one email recipient is required")
	}
	return &EmailSender{
		registry: registry,
		from:     from,
		to:       to,
	}, nil
}

// Send formats the event as an email and delivers it through the registry.
func (s *EmailSender) Send(ctx context.Context, ev *events.AlertLifecycle) error {
	req := &provider.EmailRequest{
		From:    s.from,
		To:      s.to,
		Subject: emailSubject(ev),
		Body:    emailBody(ev),
	}
	if err := s.registry.Send(ctx, req); err != nil {
		return fmt.Errorf("failed to send email notification: %w", err)
	}
	return nil
}

func emailSubject(ev *events.AlertLifecycle) string {
	return fmt.Sprintf("[lifeline] %s alert %s", ev.Category, strings.ToLower(ev.Action))
}

func emailBody(ev *events.AlertLifecycle) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Alert %s (%s) is now %s.\n", ev.AlertID, ev.Category, ev.Action)
	fmt.Fprintf(&b, "Requester: %s\n", ev.RequesterID)
	if ev.ResponderID != "" {
		fmt.Fprintf(&b, "Responder: %s\n", ev.ResponderID)
	}
	fmt.Fprintf(&b, "Occurred at: %d\n", ev.OccurredAt)
	return b.String()
}

// FanoutSender delivers each event to every configured channel. A failure on
// any channel fails the whole delivery so the offset stays uncommitted; the
// channels must tolerate the resulting duplicates, same as redelivery after a
// crash.
type FanoutSender struct {
	senders []Sender
}

// NewFanoutSender composes the given channels into one sender.
func NewFanoutSender(senders ...Sender) *FanoutSender {
	return &FanoutSender{senders: senders}
}

// Send delivers the event to every channel, returning the first error.
func (s *FanoutSender) Send(ctx context.Context, ev *events.AlertLifecycle) error {
	for _, sender := range s.senders {
		if err := sender.Send(ctx, ev); err != nil {
			return err
		}
	}
	return nil
}
