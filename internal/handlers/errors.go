// Package handlers provides HTTP handlers for the lifeline API.
package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"lifeline/internal/coordinator"
	"lifeline/internal/store"
)

// writeServiceError maps a coordinator or store error onto an HTTP response.
// Returns true if err was non-nil and handled.
func writeServiceError(w http.ResponseWriter, err error, operation string) bool {
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, coordinator.ErrNotAuthenticated):
		http.Error(w, "Authentication required", http.StatusUnauthorized)
	case errors.Is(err, coordinator.ErrInvalidCategory):
		http.Error(w, "Invalid category", http.StatusBadRequest)
	case errors.Is(err, coordinator.ErrLocationUnavailable):
		http.Error(w, "Location unavailable", http.StatusBadRequest)
	case errors.Is(err, coordinator.ErrAlreadyTaken):
		http.Error(w, "Alert already taken", http.StatusConflict)
	case errors.Is(err, coordinator.ErrPermissionDenied), errors.Is(err, store.ErrPermissionDenied):
		http.Error(w, "Permission denied", http.StatusForbidden)
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, "Not found", http.StatusNotFound)
	case errors.Is(err, store.ErrAlreadyExists):
		http.Error(w, "Already exists", http.StatusConflict)
	case errors.Is(err, store.ErrInsufficientFunds):
		http.Error(w, "Insufficient funds", http.StatusConflict)
	case errors.Is(err, coordinator.ErrStoreUnavailable):
		slog.Error("Store unavailable", "operation", operation, "error", err)
		http.Error(w, "Service temporarily unavailable", http.StatusServiceUnavailable)
	default:
		slog.Error("Unhandled service error", "operation", operation, "error", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
	return true
}
