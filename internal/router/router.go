// Package router provides HTTP routing configuration for the lifeline API.
// It sets up routes and applies middleware like CORS and bearer auth.
package router

import (
	"net/http"

	"lifeline/internal/handlers"
	"lifeline/pkg/metrics"
)

// Router wraps the HTTP mux and provides route configuration.
type Router struct {
	mux      *http.ServeMux
	handlers *handlers.Handlers
	metrics  *metrics.Collector
}

// Option is a functional option for configuring the Router.
type Option func(*Router)

// WithMetrics enables the HTTP metrics middleware.
func WithMetrics(c *metrics.Collector) Option {
	return func(r *Router) {
		r.metrics = c
	}
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *handlers.Handlers, opts ...Option) *Router {
	r := &Router{
		mux:      http.NewServeMux(),
		handlers: h,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.setupRoutes()
	return r
}

// Handler returns the HTTP handler with middleware applied.
func (r *Router) Handler() http.Handler {
	var h http.Handler = r.mux
	h = authMiddleware(r.handlers.Tokens())(h)
	h = metricsMiddleware(r.metrics)(h)
	h = corsMiddleware(h)
	return h
}
