// Package handlers provides HTTP handlers for the lifeline API.
package handlers

import (
	"lifeline/internal/bus"
	"lifeline/internal/session"

	"lifeline/pkg/metrics"
)

// Handlers wraps dependencies for HTTP handlers.
type Handlers struct {
	alerts   AlertService
	accounts AccountRepository
	tokens   TokenIssuer
	bus      bus.Bus
	store    SessionStore
	registry *session.Registry

	metricsReader *metrics.Reader
}

// Option is a functional option for configuring Handlers.
type Option func(*Handlers)

// WithMetricsReader enables the service metrics endpoint.
func WithMetricsReader(r *metrics.Reader) Option {
	return func(h *Handlers) {
		h.metricsReader = r
	}
}

// NewHandlers creates a new handlers instance.
func NewHandlers(alerts AlertService, accounts AccountRepository, tokens TokenIssuer, changeBus bus.Bus, sessionStore SessionStore, registry *session.Registry, opts ...Option) *Handlers {
	h := &Handlers{
		alerts:   alerts,
		accounts: accounts,
		tokens:   tokens,
		bus:      changeBus,
		store:    sessionStore,
		registry: registry,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Tokens exposes the token verifier for the router's auth middleware.
func (h *Handlers) Tokens() TokenIssuer {
	return h.tokens
}
