// Package session holds the per-connection state machines behind the streaming
// endpoints. Each connected client gets one session object whose event loop
// runs on a single goroutine, consuming its own bus subscription; all the
// concurrency in the alert race lives in the store, not here.
package session

import (
	"log/slog"
	"sync"

	"lifeline/internal/feed"
)

// Requester states.
const (
	StateIdle     = "idle"
	StatePending  = "pending"
	StateAccepted = "accepted"
)

// Responder states.
const (
	StateOffered = "offered"
)

// updateBuffer bounds each session's outbound update channel. A slow stream
// consumer drops intermediate snapshots; the latest state always goes out.
const updateBuffer = 16

// Update is one state snapshot pushed to a connected client.
type Update struct {
	State string      `json:"state"`
	Alert *feed.Offer `json:"alert,omitempty"`

	// ResponderID is set once the alert is accepted, on both sides.
	ResponderID string `json:"responder_id,omitempty"`

	// Offers is the responder's full visible queue, oldest first.
	Offers []feed.Offer `json:"offers,omitempty"`
}

// Registry tracks live responder sessions by user id so declines can be routed
// to the session holding the offer. It satisfies the coordinator's offer
// directory contract.
type Registry struct {
	mu         sync.Mutex
	responders map[string]*ResponderSession
}

// NewRegistry creates an empty session registry.
func NewRegistry() *Registry {
	return &Registry{responders: make(map[string]*ResponderSession)}
}

// AddResponder registers a responder session, replacing any previous session
// for the same user. A reconnecting client starts a fresh feed.
func (r *Registry) AddResponder(s *ResponderSession) {
	r.mu.Lock()
	r.responders[s.UserID()] = s
	r.mu.Unlock()
}

// RemoveResponder drops the session if it is still the registered one.
func (r *Registry) RemoveResponder(s *ResponderSession) {
	r.mu.Lock()
	if r.responders[s.UserID()] == s {
		delete(r.responders, s.UserID())
	}
	r.mu.Unlock()
}

// Decline forwards a decline to the responder's live session. Returns false
// when the responder has no session; the decline is then meaningless anyway,
// since decline state only exists inside a live feed.
func (r *Registry) Decline(responderID, alertID string) bool {
	r.mu.Lock()
	s, ok := r.responders[responderID]
	r.mu.Unlock()
	if !ok {
		slog.Warn("Decline for responder with no live session", "responder_id", responderID, "alert_id", alertID)
		return false
	}
	s.Feed().Decline(alertID)
	return true
}

// Remove drops an alert from the responder's live feed. Called when a direct
// read (a lost accept race) showed the record is no longer pending, so the
// feed converges even if the removal event never arrived.
func (r *Registry) Remove(responderID, alertID string) bool {
	r.mu.Lock()
	s, ok := r.responders[responderID]
	r.mu.Unlock()
	if !ok {
		return false
	}
	s.Feed().Remove(alertID)
	return true
}
