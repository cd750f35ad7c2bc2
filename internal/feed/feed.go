// Package feed maintains one responder's live view of the pending alerts in
// their category. The feed is backfilled from the store and then kept current
// by change events; between the two it converges on the store's truth, so a
// dropped event only delays, never corrupts, the view.
package feed

import (
	"sort"
	"sync"

	"lifeline/internal/events"
	"lifeline/internal/store"
)

// Offer is one pending alert as presented to a responder.
type Offer struct {
	AlertID     string  `json:"alert_id"`
	RequesterID string  `json:"requester_id"`
	Phone       string  `json:"phone"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Category    string  `json:"category"`
	CreatedAt   int64   `json:"created_at"`
}

// Feed is the ordered set of pending alerts one responder can see. Offers are
// served oldest first. Declined alerts are hidden for this responder only and
// stay hidden until the underlying record vanishes.
//
// Apply and Backfill are called from the session's event loop; Decline may be
// called from any goroutine via the offer directory.
type Feed struct {
	category string

	mu       sync.Mutex
	pending  []Offer
	declined map[string]struct{}

	changed chan struct{}
}

// New creates an empty feed for the given category.
func New(category string) *Feed {
	return &Feed{
		category: category,
		declined: make(map[string]struct{}),
		changed:  make(chan struct{}, 1),
	}
}

// Category returns the category this feed is filtered to.
func (f *Feed) Category() string {
	return f.category
}

// Changed signals after any mutation that may have altered the current offer.
// The channel is buffered and coalescing: consecutive mutations between reads
// collapse into one signal.
func (f *Feed) Changed() <-chan struct{} {
	return f.changed
}

// Backfill replaces the pending set with the store's current state. Declines
// survive a backfill only for alerts that are still present; a vanished record
// clears its decline so a later record under the same id starts fresh.
func (f *Feed) Backfill(alerts []*store.Alert) {
	f.mu.Lock()
	f.pending = f.pending[:0]
	for _, a := range alerts {
		if a.Status != store.StatusPending || a.Category != f.category {
			continue
		}
		f.pending = append(f.pending, offerFromAlert(a))
	}
	f.sortLocked()
	f.pruneDeclinesLocked()
	f.mu.Unlock()
	f.notify()
}

// Apply folds one change event into the feed. Events for other categories are
// ignored. A CREATED adds the alert, an ACCEPTED or DELETED removes it; either
// removal also forgets any decline for that id.
func (f *Feed) Apply(ev *events.AlertChanged) {
	if ev.Category != f.category {
		return
	}
	f.mu.Lock()
	switch ev.Action {
	case events.ActionCreated:
		f.upsertLocked(Offer{
			AlertID:     ev.AlertID,
			RequesterID: ev.RequesterID,
			Phone:       ev.Phone,
			Latitude:    ev.Latitude,
			Longitude:   ev.Longitude,
			Category:    ev.Category,
			CreatedAt:   ev.CreatedAt,
		})
	case events.ActionAccepted, events.ActionDeleted:
		f.removeLocked(ev.AlertID)
		delete(f.declined, ev.AlertID)
	}
	f.mu.Unlock()
	f.notify()
}

// Decline hides the alert from this feed. The record itself is untouched.
func (f *Feed) Decline(alertID string) {
	f.mu.Lock()
	f.declined[alertID] = struct{}{}
	f.mu.Unlock()
	f.notify()
}

// Remove drops the alert after a direct read showed the record is no longer
// pending. Any decline for the id is forgotten, same as an observed removal
// event.
func (f *Feed) Remove(alertID string) {
	f.mu.Lock()
	f.removeLocked(alertID)
	delete(f.declined, alertID)
	f.mu.Unlock()
	f.notify()
}

// CurrentOffer returns the oldest pending alert this responder has not
// declined, or nil when nothing is on offer.
func (f *Feed) CurrentOffer() *Offer {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.pending {
		if _, skip := f.declined[f.pending[i].AlertID]; skip {
			continue
		}
		o := f.pending[i]
		return &o
	}
	return nil
}

// Offers returns the visible pending alerts, oldest first.
func (f *Feed) Offers() []Offer {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Offer, 0, len(f.pending))
	for i := range f.pending {
		if _, skip := f.declined[f.pending[i].AlertID]; skip {
			continue
		}
		out = append(out, f.pending[i])
	}
	return out
}

// Len returns the number of visible offers.
func (f *Feed) Len() int {
	return len(f.Offers())
}

func (f *Feed) upsertLocked(o Offer) {
	for i := range f.pending {
		if f.pending[i].AlertID == o.AlertID {
			f.pending[i] = o
			f.sortLocked()
			return
		}
	}
	f.pending = append(f.pending, o)
	f.sortLocked()
}

func (f *Feed) removeLocked(alertID string) {
	for i := range f.pending {
		if f.pending[i].AlertID == alertID {
			f.pending = append(f.pending[:i], f.pending[i+1:]...)
			return
		}
	}
}

// sortLocked keeps oldest-first order with the id as a tiebreaker so two
// alerts created in the same millisecond still order deterministically.
func (f *Feed) sortLocked() {
	sort.SliceStable(f.pending, func(i, j int) bool {
		if f.pending[i].CreatedAt != f.pending[j].CreatedAt {
			return f.pending[i].CreatedAt < f.pending[j].CreatedAt
		}
		return f.pending[i].AlertID < f.pending[j].AlertID
	})
}

func (f *Feed) pruneDeclinesLocked() {
	present := make(map[string]struct{}, len(f.pending))
	for i := range f.pending {
		present[f.pending[i].AlertID] = struct{}{}
	}
	for id := range f.declined {
		if _, ok := present[id]; !ok {
			delete(f.declined, id)
		}
	}
}

func (f *Feed) notify() {
	select {
	case f.changed <- struct{}{}:
	default:
	}
}

func offerFromAlert(a *store.Alert) Offer {
	return Offer{
		AlertID:     a.AlertID,
		RequesterID: a.RequesterID,
		Phone:       a.Phone,
		Latitude:    a.Latitude,
		Longitude:   a.Longitude,
		Category:    a.Category,
		CreatedAt:   a.CreatedAt.UnixMilli(),
	}
}
