// Package provider defines the email backends the notifier can deliver
// lifecycle notifications through, behind a common interface so the channel
// composition is decided by flags at startup.
package provider

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// EmailRequest is a single outbound email.
type EmailRequest struct {
	From    string
	To      []string
	Subject string
	Body    string
}

// Provider is one email backend.
type Provider interface {
	// Name identifies the backend ("resend", "ses").
	Name() string

	// Send delivers the email through this backend.
	Send(ctx context.Context, req *EmailRequest) error

	// IsConfigured reports whether the backend has the credentials it needs.
	IsConfigured() bool
}

// Registry holds the registered backends in registration order. Send goes to
// the primary first and falls through to the remaining configured backends
// when the primary fails.
type Registry struct {
	mu        sync.RWMutex
	providers []Provider
	primary   string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register appends a backend. The first configured backend acts as primary
// until SetPrimary overrides it.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers = append(r.providers, p)
	slog.Info("Registered email provider", "name", p.Name(), "configured", p.IsConfigured())
}

// SetPrimary selects the backend tried first by name.
func (r *Registry) SetPrimary(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.providers {
		if p.Name() == name {
			r.primary = name
			return nil
		}
	}
	return fmt.Errorf("email provider %q not registered", name)
}

// ordered returns the configured backends, primary first.
func (r *Registry) ordered() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Provider
	for _, p := range r.providers {
		if p.Name() == r.primary && p.IsConfigured() {
			out = append(out, p)
		}
	}
	for _, p := range r.providers {
		if p.Name() != r.primary && p.IsConfigured() {
			out = append(out, p)
		}
	}
	return out
}

// Send delivers the email through the first backend that succeeds. The first
// failure is returned when every backend fails, since the fall-throughs are
// secondary to it.
func (r *Registry) Send(ctx context.Context, req *EmailRequest) error {
	candidates := r.ordered()
	if len(candidates) == 0 {
		return fmt.Errorf("no configured email provider available")
	}

	var firstErr error
	for i, p := range candidates {
		err := p.Send(ctx, req)
		if err == nil {
			return nil
		}
		if firstErr == nil {
			firstErr = err
		}
		if i < len(candidates)-1 {
			slog.Warn("Email provider failed, trying next",
				"provider", p.Name(),
				"error", err,
			)
		}
	}
	return firstErr
}
