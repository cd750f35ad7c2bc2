package feed

import (
	"fmt"
	"testing"
	"time"

	"lifeline/internal/events"
	"lifeline/internal/store"
)

func pendingAlert(id, category string, createdAt time.Time) *store.Alert {
	return &store.Alert{
		AlertID:     id,
		RequesterID: "req-" + id,
		Phone:       "+911234567890",
		Latitude:    19.07,
		Longitude:   72.87,
		Category:    category,
		Status:      store.StatusPending,
		CreatedAt:   createdAt,
	}
}

func createdEvent(id, category string, createdAt int64) *events.AlertChanged {
	return &events.AlertChanged{
		AlertID:     id,
		RequesterID: "req-" + id,
		Category:    category,
		Action:      events.ActionCreated,
		CreatedAt:   createdAt,
	}
}

func TestFeed_OldestFirst(t *testing.T) {
	f := New("female")
	now := time.Now()

	// Backfill out of order; the feed sorts oldest first.
	f.Backfill([]*store.Alert{
		pendingAlert("a3", "female", now),
		pendingAlert("a1", "female", now.Add(-2*time.Minute)),
		pendingAlert("a2", "female", now.Add(-time.Minute)),
	})

	offers := f.Offers()
	if len(offers) != 3 {
		t.Fatalf("Offers() len = %d, want 3", len(offers))
	}
	for i, want := range []string{"a1", "a2", "a3"} {
		if offers[i].AlertID != want {
			t.Errorf("Offers()[%d] = %s, want %s", i, offers[i].AlertID, want)
		}
	}

	if got := f.CurrentOffer(); got == nil || got.AlertID != "a1" {
		t.Errorf("CurrentOffer() = %v, want a1", got)
	}
}

func TestFeed_TieBreakByID(t *testing.T) {
	f := New("female")
	ts := time.Unix(1700000000, 0)

	f.Backfill([]*store.Alert{
		pendingAlert("zz", "female", ts),
		pendingAlert("aa", "female", ts),
	})

	offers := f.Offers()
	if offers[0].AlertID != "aa" || offers[1].AlertID != "zz" {
		t.Errorf("tie-break order = [%s %s], want [aa zz]", offers[0].AlertID, offers[1].AlertID)
	}
}

func TestFeed_CategoryIsolation(t *testing.T) {
	f := New("female")

	f.Apply(createdEvent("a1", "male", 100))
	f.Apply(createdEvent("a2", "female", 100))

	offers := f.Offers()
	if len(offers) != 1 || offers[0].AlertID != "a2" {
		t.Errorf("Offers() = %v, want only a2", offers)
	}

	// Backfill also filters foreign categories.
	f.Backfill([]*store.Alert{
		pendingAlert("b1", "trans", time.Now()),
	})
	if f.Len() != 0 {
		t.Errorf("Len() after foreign backfill = %d, want 0", f.Len())
	}
}

func TestFeed_AcceptedAndDeletedRemove(t *testing.T) {
	f := New("female")
	f.Apply(createdEvent("a1", "female", 100))
	f.Apply(createdEvent("a2", "female", 200))

	f.Apply(&events.AlertChanged{AlertID: "a1", Category: "female", Action: events.ActionAccepted})
	if got := f.CurrentOffer(); got == nil || got.AlertID != "a2" {
		t.Fatalf("CurrentOffer() after accept = %v, want a2", got)
	}

	f.Apply(&events.AlertChanged{AlertID: "a2", Category: "female", Action: events.ActionDeleted})
	if got := f.CurrentOffer(); got != nil {
		t.Errorf("CurrentOffer() after delete = %v, want nil", got)
	}
}

func TestFeed_DeclineIsSticky(t *testing.T) {
	f := New("female")
	f.Apply(createdEvent("a1", "female", 100))
	f.Apply(createdEvent("a2", "female", 200))

	f.Decline("a1")

	// a1 stays hidden; the next offer is a2.
	if got := f.CurrentOffer(); got == nil || got.AlertID != "a2" {
		t.Fatalf("CurrentOffer() after decline = %v, want a2", got)
	}

	// Re-applying the same CREATED does not resurface a declined alert.
	f.Apply(createdEvent("a1", "female", 100))
	if got := f.CurrentOffer(); got == nil || got.AlertID != "a2" {
		t.Errorf("CurrentOffer() after duplicate CREATED = %v, want a2", got)
	}
}

func TestFeed_DeclineClearedWhenRecordVanishes(t *testing.T) {
	f := New("female")
	f.Apply(createdEvent("a1", "female", 100))
	f.Decline("a1")

	// The record vanishes; its decline is forgotten.
	f.Apply(&events.AlertChanged{AlertID: "a1", Category: "female", Action: events.ActionDeleted})

	// A new record under the same id starts fresh and is offered again.
	f.Apply(createdEvent("a1", "female", 300))
	if got := f.CurrentOffer(); got == nil || got.AlertID != "a1" {
		t.Errorf("CurrentOffer() after reappearance = %v, want a1", got)
	}
}

func TestFeed_RemoveGhostOffer(t *testing.T) {
	f := New("female")
	f.Apply(createdEvent("a1", "female", 100))

	// A direct read showed the record is gone; the ghost entry is dropped.
	f.Remove("a1")
	if f.Len() != 0 {
		t.Errorf("Len() after Remove = %d, want 0", f.Len())
	}
}

func TestFeed_BackfillPrunesStaleDeclines(t *testing.T) {
	f := New("female")
	f.Apply(createdEvent("a1", "female", 100))
	f.Decline("a1")

	// Reconnect-style backfill without a1: decline state for it is dropped.
	f.Backfill([]*store.Alert{pendingAlert("a2", "female", time.Now())})

	f.Apply(createdEvent("a1", "female", 300))
	offers := f.Offers()
	if len(offers) != 2 {
		t.Errorf("Offers() len = %d, want 2 (a1 visible again)", len(offers))
	}
}

func TestFeed_ChangedSignalCoalesces(t *testing.T) {
	f := New("female")

	for i := 0; i < 5; i++ {
		f.Apply(createdEvent(fmt.Sprintf("a%d", i), "female", int64(i)))
	}

	// Multiple mutations collapse into at most one pending signal.
	select {
	case <-f.Changed():
	default:
		t.Fatal("Changed() has no pending signal after mutations")
	}
	select {
	case <-f.Changed():
		t.Fatal("Changed() delivered a second signal, want coalesced single signal")
	default:
	}
}

func TestFeed_SubSecondOrdering(t *testing.T) {
	f := New("female")
	base := time.Unix(1700000000, 0)

	// Same second, different milliseconds; the id order is the reverse of the
	// creation order, so second-granularity timestamps would misorder these.
	f.Backfill([]*store.Alert{
		pendingAlert("a1", "female", base.Add(800*time.Millisecond)),
		pendingAlert("a9", "female", base.Add(200*time.Millisecond)),
	})

	offers := f.Offers()
	if len(offers) != 2 {
		t.Fatalf("Offers() len = %d, want 2", len(offers))
	}
	if offers[0].AlertID != "a9" || offers[1].AlertID != "a1" {
		t.Errorf("order = [%s, %s], want [a9, a1] (creation order)", offers[0].AlertID, offers[1].AlertID)
	}
	if offers[0].CreatedAt >= offers[1].CreatedAt {
		t.Errorf("timestamps not strictly increasing: %d then %d", offers[0].CreatedAt, offers[1].CreatedAt)
	}
}
