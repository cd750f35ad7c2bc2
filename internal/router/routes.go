// Package router provides HTTP routing configuration for the lifeline API.
package router

import (
	"net/http"
)

// setupRoutes configures all HTTP routes for the API.
func (r *Router) setupRoutes() {
	// Account endpoints
	r.mux.HandleFunc("/api/v1/register", r.handlers.Register)
	r.mux.HandleFunc("/api/v1/login", r.handlers.Login)
	r.mux.HandleFunc("/api/v1/account", r.handlers.GetAccount)

	// Alert endpoints
	r.mux.HandleFunc("/api/v1/alerts", func(w http.ResponseWriter, req *http.Request) {
		switch req.Method {
		case http.MethodPost:
			r.handlers.CreateAlert(w, req)
		case http.MethodGet:
			r.handlers.GetAlert(w, req)
		default:
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
	r.mux.HandleFunc("/api/v1/alerts/cancel", r.handlers.CancelAlert)
	r.mux.HandleFunc("/api/v1/alerts/accept", r.handlers.AcceptAlert)
	r.mux.HandleFunc("/api/v1/alerts/decline", r.handlers.DeclineAlert)
	r.mux.HandleFunc("/api/v1/alerts/complete", r.handlers.CompleteAlert)
	r.mux.HandleFunc("/api/v1/alerts/pending", r.handlers.ListPendingAlerts)

	// Streaming endpoints
	r.mux.HandleFunc("/api/v1/alerts/stream", r.handlers.StreamAlert)
	r.mux.HandleFunc("/api/v1/offers/stream", r.handlers.StreamOffers)

	// Wallet endpoints
	r.mux.HandleFunc("/api/v1/wallet/deposit", r.handlers.Deposit)
	r.mux.HandleFunc("/api/v1/wallet/withdraw", r.handlers.Withdraw)

	// Service metrics endpoint (from Redis)
	r.mux.HandleFunc("/api/v1/services/metrics", r.handlers.GetServiceMetrics)

	// Health check endpoint
	r.mux.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
}
