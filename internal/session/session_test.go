package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"lifeline/internal/bus"
	"lifeline/internal/events"
	"lifeline/internal/store"
)

// fakeAlertStore serves GetAlert and ListPendingByCategory from a mutable map.
type fakeAlertStore struct {
	mu     sync.Mutex
	alerts map[string]*store.Alert
}

func newFakeAlertStore(alerts ...*store.Alert) *fakeAlertStore {
	f := &fakeAlertStore{alerts: make(map[string]*store.Alert)}
	for _, a := range alerts {
		f.alerts[a.AlertID] = a
	}
	return f
}

func (f *fakeAlertStore) GetAlert(_ context.Context, alertID string) (*store.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.alerts[alertID]
	if !ok {
		return nil, fmt.Errorf("alert %s: %w", alertID, store.ErrNotFound)
	}
	c := *a
	return &c, nil
}

func (f *fakeAlertStore) ListPendingByCategory(_ context.Context, category string) ([]*store.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*store.Alert
	for _, a := range f.alerts {
		if a.Category == category && a.Status == store.StatusPending {
			c := *a
			out = append(out, &c)
		}
	}
	return out, nil
}

func (f *fakeAlertStore) remove(alertID string) {
	f.mu.Lock()
	delete(f.alerts, alertID)
	f.mu.Unlock()
}

func pendingAlert(id, category string) *store.Alert {
	return &store.Alert{
		AlertID:     id,
		RequesterID: "req-" + id,
		Phone:       "+911234567890",
		Category:    category,
		Status:      store.StatusPending,
		CreatedAt:   time.Now(),
	}
}

func waitForUpdate(t *testing.T, updates <-chan Update) Update {
	t.Helper()
	select {
	case u, ok := <-updates:
		if !ok {
			t.Fatal("updates channel closed while waiting for update")
		}
		return u
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for update")
		return Update{}
	}
}

// waitForState consumes updates until one with the wanted state arrives.
// Sessions may emit intermediate snapshots; only the target state matters.
func waitForState(t *testing.T, updates <-chan Update, state string) Update {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case u, ok := <-updates:
			if !ok {
				t.Fatalf("updates channel closed before reaching state %q", state)
			}
			if u.State == state {
				return u
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state %q", state)
		}
	}
}

func TestRequesterSession_PendingThenAcceptedThenIdle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mb := bus.NewMemoryBus()
	fs := newFakeAlertStore(pendingAlert("a1", "female"))

	s := NewRequesterSession("req-a1", "a1", mb, fs)
	go s.Run(ctx)

	// Initial reconcile: the alert is pending.
	if u := waitForUpdate(t, s.Updates()); u.State != StatePending {
		t.Fatalf("initial state = %s, want pending", u.State)
	}

	mb.Publish(ctx, &events.AlertChanged{
		AlertID: "a1", Category: "female", ResponderID: "resp-1",
		Action: events.ActionAccepted,
	})
	u := waitForState(t, s.Updates(), StateAccepted)
	if u.ResponderID != "resp-1" {
		t.Errorf("accepted responder = %s, want resp-1", u.ResponderID)
	}

	mb.Publish(ctx, &events.AlertChanged{
		AlertID: "a1", Category: "female", Action: events.ActionDeleted,
	})
	waitForState(t, s.Updates(), StateIdle)

	// The session finishes after the record vanishes.
	select {
	case _, open := <-s.Updates():
		if open {
			t.Error("updates channel still open after terminal state")
		}
	case <-time.After(time.Second):
		t.Error("updates channel not closed after terminal state")
	}
}

func TestRequesterSession_AlertAlreadyGone(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mb := bus.NewMemoryBus()
	fs := newFakeAlertStore() // empty store

	s := NewRequesterSession("req-1", "a1", mb, fs)
	go s.Run(ctx)

	if u := waitForUpdate(t, s.Updates()); u.State != StateIdle {
		t.Fatalf("state = %s, want idle for vanished alert", u.State)
	}
}

func TestResponderSession_BackfillThenLiveEvents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mb := bus.NewMemoryBus()
	fs := newFakeAlertStore(pendingAlert("a1", "female"))

	s := NewResponderSession("resp-1", "female", mb, fs)
	go s.Run(ctx)

	// Backfill snapshot carries the existing pending alert.
	u := waitForState(t, s.Updates(), StateOffered)
	if u.Alert == nil || u.Alert.AlertID != "a1" {
		t.Fatalf("backfill offer = %v, want a1", u.Alert)
	}

	// A live CREATED extends the queue; the current offer stays the oldest.
	mb.Publish(ctx, &events.AlertChanged{
		AlertID: "a2", RequesterID: "req-a2", Category: "female",
		Action: events.ActionCreated, CreatedAt: time.Now().Unix() + 10,
	})
	deadline := time.After(time.Second)
	for {
		var got Update
		select {
		case got = <-s.Updates():
		case <-deadline:
			t.Fatal("timed out waiting for two-offer snapshot")
		}
		if len(got.Offers) == 2 {
			if got.Alert.AlertID != "a1" {
				t.Fatalf("current offer = %s, want a1 (oldest)", got.Alert.AlertID)
			}
			break
		}
	}

	// DELETED for the head promotes the next offer.
	mb.Publish(ctx, &events.AlertChanged{
		AlertID: "a1", Category: "female", Action: events.ActionDeleted,
	})
	for {
		u := waitForUpdate(t, s.Updates())
		if len(u.Offers) == 1 {
			if u.Alert == nil || u.Alert.AlertID != "a2" {
				t.Fatalf("offer after delete = %v, want a2", u.Alert)
			}
			break
		}
	}
}

func TestResponderSession_ForeignCategoryIgnored(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mb := bus.NewMemoryBus()
	fs := newFakeAlertStore()

	s := NewResponderSession("resp-1", "female", mb, fs)
	go s.Run(ctx)

	// Empty backfill snapshot.
	if u := waitForUpdate(t, s.Updates()); u.State != StateIdle {
		t.Fatalf("initial state = %s, want idle", u.State)
	}

	// Category channels are isolated at the bus level; nothing arrives for a
	// male alert and the feed stays empty.
	mb.Publish(ctx, &events.AlertChanged{
		AlertID: "a1", Category: "male", Action: events.ActionCreated,
	})
	select {
	case u := <-s.Updates():
		t.Errorf("got update %+v for foreign category, want none", u)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRegistry_DeclineRouting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mb := bus.NewMemoryBus()
	fs := newFakeAlertStore(pendingAlert("a1", "female"))

	r := NewRegistry()
	s := NewResponderSession("resp-1", "female", mb, fs)
	r.AddResponder(s)
	go s.Run(ctx)

	waitForState(t, s.Updates(), StateOffered)

	if !r.Decline("resp-1", "a1") {
		t.Fatal("Decline() = false for registered responder")
	}
	waitForState(t, s.Updates(), StateIdle)

	// Unknown responder has no live session.
	if r.Decline("resp-2", "a1") {
		t.Error("Decline() = true for unregistered responder")
	}

	r.RemoveResponder(s)
	if r.Decline("resp-1", "a1") {
		t.Error("Decline() = true after RemoveResponder")
	}
}

func TestRegistry_ReplaceKeepsNewest(t *testing.T) {
	mb := bus.NewMemoryBus()
	fs := newFakeAlertStore()

	r := NewRegistry()
	old := NewResponderSession("resp-1", "female", mb, fs)
	r.AddResponder(old)

	// A reconnect registers a fresh session under the same user.
	fresh := NewResponderSession("resp-1", "female", mb, fs)
	r.AddResponder(fresh)

	// Removing the stale session must not evict the fresh one.
	r.RemoveResponder(old)
	if !r.Decline("resp-1", "a1") {
		t.Error("fresh session evicted by stale RemoveResponder")
	}
}

func TestRegistry_RemoveRouting(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mb := bus.NewMemoryBus()
	fs := newFakeAlertStore(pendingAlert("a1", "female"))

	r := NewRegistry()
	s := NewResponderSession("resp-1", "female", mb, fs)
	r.AddResponder(s)
	go s.Run(ctx)

	waitForState(t, s.Updates(), StateOffered)

	// The alert got taken elsewhere but the removal event never arrived; a
	// lost accept routes the removal through the registry instead.
	if !r.Remove("resp-1", "a1") {
		t.Fatal("Remove() = false for registered responder")
	}
	waitForState(t, s.Updates(), StateIdle)
	if s.Feed().Len() != 0 {
		t.Errorf("feed length after removal = %d, want 0", s.Feed().Len())
	}

	if r.Remove("resp-2", "a1") {
		t.Error("Remove() = true for unregistered responder")
	}
}

// TestResponderSession_RefreshClearsStaleOffer deletes the record behind the
// session's back without publishing any event, simulating a removal dropped on
// a full subscriber buffer, and checks the periodic refresh converges the feed
// back to the store's truth.
func TestResponderSession_RefreshClearsStaleOffer(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mb := bus.NewMemoryBus()
	fs := newFakeAlertStore(pendingAlert("a1", "female"))

	s := NewResponderSession("resp-1", "female", mb, fs)
	s.refresh = 10 * time.Millisecond
	go s.Run(ctx)

	waitForState(t, s.Updates(), StateOffered)

	fs.remove("a1")

	u := waitForState(t, s.Updates(), StateIdle)
	if len(u.Offers) != 0 {
		t.Errorf("offers after refresh = %v, want none", u.Offers)
	}
}
