package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"lifeline/internal/events"
)

// WebhookSender delivers lifecycle events to a configured URL via HTTP POST.
type WebhookSender struct {
	url        string
	httpClient *http.Client
}

// NewWebhookSender creates a sender for the given webhook URL.
func NewWebhookSender(url string) (*WebhookSender, error) {
	if url == "" {
		return nil, fmt.Errorf("webhook URL is required")
	}
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, fmt.Errorf("invalid webhook URL: %q (must be a valid HTTP/HTTPS URL)", url)
	}
	return &WebhookSender{
		url: url,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}, nil
}

// Send posts one lifecycle event to the webhook as JSON.
func (s *WebhookSender) Send(ctx context.Context, ev *events.AlertLifecycle) error {
	jsonData, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	slog.Info("Successfully sent webhook notification",
		"webhook_url", s.url,
		"alert_id", ev.AlertID,
		"action", ev.Action,
	)
	return nil
}
