package handlers

import (
	"net/http"

	"lifeline/internal/geo"
	"lifeline/internal/store"
)

// CreateAlertRequest represents a request to raise an alert. Latitude and
// longitude are the client device's reading; when the client could not obtain
// one it sends location_ok=false and the alert is rejected before any write.
type CreateAlertRequest struct {
	Phone      string  `json:"phone,omitempty"`
	Category   string  `json:"category"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	LocationOK bool    `json:"location_ok"`
}

// CreateAlert raises a new pending alert for the authenticated requester.
func (h *Handlers) CreateAlert(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	sess, ok := h.requireSession(w, r)
	if !ok {
		return
	}

	var req CreateAlertRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Phone != "" && !isValidPhone(req.Phone) {
		http.Error(w, "phone must be a valid number", http.StatusBadRequest)
		return
	}

	var locator geo.Locator = geo.NoLocator{}
	if req.LocationOK {
		locator = geo.FixedLocator{Position: geo.Position{Latitude: req.Latitude, Longitude: req.Longitude}}
	}

	alert, err := h.alerts.CreateAlert(r.Context(), sess, req.Phone, req.Category, locator)
	if writeServiceError(w, err, "create alert") {
		return
	}

	writeJSON(w, http.StatusCreated, alert)
}

// CancelAlert deletes the requester's own alert. Cancelling an alert that is
// already gone succeeds with the same response.
func (h *Handlers) CancelAlert(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodDelete) {
		return
	}

	sess, ok := h.requireSession(w, r)
	if !ok {
		return
	}

	alertID, ok := requireQueryParam(w, r, "alert_id")
	if !ok {
		return
	}

	if writeServiceError(w, h.alerts.CancelAlert(r.Context(), alertID, sess.CurrentUserID()), "cancel alert") {
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// AcceptAlertRequest identifies the offer a responder is accepting.
type AcceptAlertRequest struct {
	AlertID string `json:"alert_id"`
}

// AcceptAlert runs the accept race for the authenticated responder. Exactly
// one of any number of concurrent accepts for the same alert succeeds; the
// rest get 409.
func (h *Handlers) AcceptAlert(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	sess, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	if !sess.IsResponder() {
		http.Error(w, "Only responders may accept alerts", http.StatusForbidden)
		return
	}

	var req AcceptAlertRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.AlertID == "" {
		http.Error(w, "alert_id is required", http.StatusBadRequest)
		return
	}

	alert, err := h.alerts.AttemptAccept(r.Context(), req.AlertID, sess.CurrentUserID())
	if writeServiceError(w, err, "accept alert") {
		return
	}

	writeJSON(w, http.StatusOK, alert)
}

// DeclineAlert hides the offer from this responder only. The alert stays
// pending for everyone else.
func (h *Handlers) DeclineAlert(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	sess, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	if !sess.IsResponder() {
		http.Error(w, "Only responders may decline alerts", http.StatusForbidden)
		return
	}

	var req AcceptAlertRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.AlertID == "" {
		http.Error(w, "alert_id is required", http.StatusBadRequest)
		return
	}

	h.alerts.DeclineOffer(sess.CurrentUserID(), req.AlertID)
	w.WriteHeader(http.StatusNoContent)
}

// CompleteAlert deletes an accepted alert after the encounter is over. Only
// the responder who accepted it may complete it.
func (h *Handlers) CompleteAlert(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	sess, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	if !sess.IsResponder() {
		http.Error(w, "Only responders may complete alerts", http.StatusForbidden)
		return
	}

	var req AcceptAlertRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.AlertID == "" {
		http.Error(w, "alert_id is required", http.StatusBadRequest)
		return
	}

	if writeServiceError(w, h.alerts.CompleteAlert(r.Context(), req.AlertID, sess.CurrentUserID()), "complete alert") {
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GetAlert retrieves one alert by id. Requesters and responders both use it to
// reconcile after a reconnect.
func (h *Handlers) GetAlert(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	if _, ok := h.requireSession(w, r); !ok {
		return
	}

	alertID, ok := requireQueryParam(w, r, "alert_id")
	if !ok {
		return
	}

	alert, err := h.store.GetAlert(r.Context(), alertID)
	if writeServiceError(w, err, "get alert") {
		return
	}

	writeJSON(w, http.StatusOK, alert)
}

// ListPendingAlerts returns the pending alerts in the responder's category,
// oldest first. Poll fallback for clients that cannot hold a stream open.
func (h *Handlers) ListPendingAlerts(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	sess, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	if !sess.IsResponder() {
		http.Error(w, "Only responders may list pending alerts", http.StatusForbidden)
		return
	}

	alerts, err := h.alerts.PendingAlerts(r.Context(), sess.Category)
	if writeServiceError(w, err, "list pending alerts") {
		return
	}
	if alerts == nil {
		alerts = []*store.Alert{}
	}

	writeJSON(w, http.StatusOK, alerts)
}
