package handlers

import (
	"net/http"
)

// GetServiceMetrics returns the latest metrics snapshot a service wrote to
// Redis. Returns 404 when metrics reporting is not configured.
func (h *Handlers) GetServiceMetrics(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	if h.metricsReader == nil {
		http.Error(w, "Metrics not configured", http.StatusNotFound)
		return
	}

	service, ok := requireQueryParam(w, r, "service")
	if !ok {
		return
	}

	m, err := h.metricsReader.GetServiceMetrics(r.Context(), service)
	if err != nil {
		http.Error(w, "No metrics found for service", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, m)
}
