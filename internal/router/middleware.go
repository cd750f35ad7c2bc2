// Package router provides HTTP routing configuration for the lifeline API.
package router

import (
	"net/http"
	"strings"
	"time"

	"lifeline/internal/handlers"
	"lifeline/internal/identity"
	"lifeline/pkg/metrics"
)

// publicPaths are reachable without a bearer token.
var publicPaths = map[string]struct{}{
	"/api/v1/register": {},
	"/api/v1/login":    {},
	"/health":          {},
}

// corsMiddleware applies CORS headers to all requests.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// authMiddleware verifies the bearer token and attaches the session to the
// request context. Public paths pass through untouched; everything else gets
// 401 on a missing or invalid token before reaching a handler.
func authMiddleware(tokens handlers.TokenIssuer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, public := publicPaths[r.URL.Path]; public {
				next.ServeHTTP(w, r)
				return
			}

			header := r.Header.Get("Authorization")
			token := strings.TrimPrefix(header, "Bearer ")
			if header == "" || token == header {
				http.Error(w, "Authentication required", http.StatusUnauthorized)
				return
			}

			sess, err := tokens.Verify(token)
			if err != nil {
				http.Error(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(identity.ContextWithSession(r.Context(), sess)))
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture status code. Flush is
// forwarded so the SSE endpoints keep working behind the middleware.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// metricsMiddleware tracks HTTP request metrics.
func metricsMiddleware(collector *metrics.Collector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if collector == nil {
				next.ServeHTTP(w, r)
				return
			}

			// Skip metrics endpoints to avoid recursion
			if r.URL.Path == "/api/v1/services/metrics" || r.URL.Path == "/health" {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			if wrapped.statusCode >= 500 {
				collector.RecordError()
			}

			// Track by HTTP method
			collector.IncrementCustom("http_" + r.Method)
			collector.AddCustom("http_request_ns_total", uint64(time.Since(start).Nanoseconds()))
		})
	}
}
