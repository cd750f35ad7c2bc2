package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"lifeline/internal/session"
)

// heartbeatInterval keeps idle SSE connections alive through proxies.
const heartbeatInterval = 15 * time.Second

// StreamAlert streams the requester's alert state over SSE. The client gets
// the current state immediately, then a new snapshot on every transition,
// ending with idle when the alert is deleted.
func (h *Handlers) StreamAlert(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
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

	flusher, ok := beginStream(w)
	if !ok {
		return
	}

	s := session.NewRequesterSession(sess.CurrentUserID(), alertID, h.bus, h.store)
	go func() {
		if err := s.Run(r.Context()); err != nil && r.Context().Err() == nil {
			slog.Error("Requester session failed", "user_id", sess.CurrentUserID(), "alert_id", alertID, "error", err)
		}
	}()

	h.pumpUpdates(w, r, flusher, s.Updates())
}

// StreamOffers streams the responder's matching feed over SSE. The session is
// registered so declines routed through the alert service reach this feed.
func (h *Handlers) StreamOffers(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	sess, ok := h.requireSession(w, r)
	if !ok {
		return
	}
	if !sess.IsResponder() {
		http.Error(w, "Only responders may stream offers", http.StatusForbidden)
		return
	}

	flusher, ok := beginStream(w)
	if !ok {
		return
	}

	s := session.NewResponderSession(sess.CurrentUserID(), sess.Category, h.bus, h.store)
	h.registry.AddResponder(s)
	defer h.registry.RemoveResponder(s)

	go func() {
		if err := s.Run(r.Context()); err != nil && r.Context().Err() == nil {
			slog.Error("Responder session failed", "user_id", sess.CurrentUserID(), "category", sess.Category, "error", err)
		}
	}()

	h.pumpUpdates(w, r, flusher, s.Updates())
}

// beginStream sets SSE headers and returns the flusher. Streaming needs flush
// support from the underlying writer; without it the endpoint cannot work.
func beginStream(w http.ResponseWriter) (http.Flusher, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return flusher, true
}

// pumpUpdates forwards session updates to the SSE connection until the session
// finishes or the client disconnects.
func (h *Handlers) pumpUpdates(w http.ResponseWriter, r *http.Request, flusher http.Flusher, updates <-chan session.Update) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			fmt.Fprint(w, ": heartbeat\n\n")
			flusher.Flush()
		case u, ok := <-updates:
			if !ok {
				return
			}
			if err := writeSSE(w, "state", u); err != nil {
				slog.Warn("Failed to write SSE event", "error", err)
				return
			}
			flusher.Flush()
		}
	}
}

// writeSSE writes one named SSE event with a JSON payload.
func writeSSE(w http.ResponseWriter, event string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal SSE payload: %w", err)
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}
