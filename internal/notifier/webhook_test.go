package notifier

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"lifeline/internal/events"
)

func lifecycleEvent() *events.AlertLifecycle {
	return &events.AlertLifecycle{
		AlertID:       "a1",
		RequesterID:   "u1",
		Category:      "female",
		Action:        events.LifecycleCreated,
		OccurredAt:    time.Now().Unix(),
		SchemaVersion: 1,
	}
}

func TestNewWebhookSender_ValidatesURL(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"http url", "http://localhost:9000/hook", false},
		{"https url", "https://hooks.example.com/lifeline", false},
		{"empty", "", true},
		{"missing scheme", "hooks.example.com/lifeline", true},
		{"wrong scheme", "ftp://hooks.example.com", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewWebhookSender(tt.url)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewWebhookSender(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestWebhookSender_Send(t *testing.T) {
	var received events.AlertLifecycle
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %s, want application/json", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	sender, err := NewWebhookSender(srv.URL)
	if err != nil {
		t.Fatalf("NewWebhookSender() error = %v", err)
	}

	if err := sender.Send(context.Background(), lifecycleEvent()); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if received.AlertID != "a1" || received.Action != events.LifecycleCreated {
		t.Errorf("received event = %+v, want a1 CREATED", received)
	}
}

func TestWebhookSender_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	sender, err := NewWebhookSender(srv.URL)
	if err != nil {
		t.Fatalf("NewWebhookSender() error = %v", err)
	}

	err = sender.Send(context.Background(), lifecycleEvent())
	if err == nil {
		t.Fatal("Send() = nil, want error for 503")
	}
	if !strings.Contains(err.Error(), "503") {
		t.Errorf("Send() error = %v, want it to carry the status code", err)
	}
	// A 5xx from the receiver must look transient to the retry loop.
	if !isRetryable(err) {
		t.Errorf("isRetryable(%v) = false, want true", err)
	}
}
