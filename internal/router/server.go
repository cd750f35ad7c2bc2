// Package router provides HTTP routing configuration for the lifeline API.
package router

import (
	"net/http"
	"time"

	"lifeline/internal/handlers"
)

// NewServer creates a new HTTP server with the router configured. The write
// timeout is disabled because the streaming endpoints hold connections open
// indefinitely.
func NewServer(port string, h *handlers.Handlers, opts ...Option) *http.Server {
	router := NewRouter(h, opts...)
	return &http.Server{
		Addr:        ":" + port,
		Handler:     router.Handler(),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}
}
