package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"lifeline/internal/bus"
	"lifeline/internal/geo"
	"lifeline/internal/identity"
	"lifeline/internal/store"
)

// fakeStore is an in-memory AlertStore. AcceptAlert holds the mutex across the
// check and the write, matching the atomicity the real conditional UPDATE has.
type fakeStore struct {
	mu     sync.Mutex
	alerts map[string]*store.Alert
	seq    int

	failAll bool

	// createNotFound makes CreateAlert fail as if the requester row vanished.
	createNotFound bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{alerts: make(map[string]*store.Alert)}
}

func (f *fakeStore) CreateAlert(_ context.Context, requesterID, phone string, lat, lon float64, category string) (*store.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return nil, errors.New("connection refused")
	}
	if f.createNotFound {
		return nil, fmt.Errorf("requester %s: %w", requesterID, store.ErrNotFound)
	}
	f.seq++
	a := &store.Alert{
		AlertID:     fmt.Sprintf("alert-%d", f.seq),
		RequesterID: requesterID,
		Phone:       phone,
		Latitude:    lat,
		Longitude:   lon,
		Category:    category,
		Status:      store.StatusPending,
		CreatedAt:   time.Now(),
	}
	f.alerts[a.AlertID] = a
	return copyAlert(a), nil
}

func (f *fakeStore) GetAlert(_ context.Context, alertID string) (*store.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return nil, errors.New("connection refused")
	}
	a, ok := f.alerts[alertID]
	if !ok {
		return nil, fmt.Errorf("alert %s: %w", alertID, store.ErrNotFound)
	}
	return copyAlert(a), nil
}

func (f *fakeStore) AcceptAlert(_ context.Context, alertID, responderID string) (*store.Alert, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return nil, false, errors.New("connection refused")
	}
	a, ok := f.alerts[alertID]
	if !ok || a.Status != store.StatusPending {
		return nil, false, nil
	}
	a.Status = store.StatusAccepted
	a.ResponderID = responderID
	return copyAlert(a), true, nil
}

func (f *fakeStore) DeleteAlertByRequester(_ context.Context, alertID, requesterID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.alerts[alertID]
	if !ok {
		return false, nil
	}
	if a.RequesterID != requesterID {
		return false, fmt.Errorf("alert %s: %w", alertID, store.ErrPermissionDenied)
	}
	delete(f.alerts, alertID)
	return true, nil
}

func (f *fakeStore) DeleteAlertByResponder(_ context.Context, alertID, responderID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.alerts[alertID]
	if !ok {
		return false, nil
	}
	if a.Status != store.StatusAccepted || a.ResponderID != responderID {
		return false, fmt.Errorf("alert %s: %w", alertID, store.ErrPermissionDenied)
	}
	delete(f.alerts, alertID)
	return true, nil
}

func (f *fakeStore) ListPendingByCategory(_ context.Context, category string) ([]*store.Alert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*store.Alert
	for _, a := range f.alerts {
		if a.Category == category && a.Status == store.StatusPending {
			out = append(out, copyAlert(a))
		}
	}
	return out, nil
}

func copyAlert(a *store.Alert) *store.Alert {
	c := *a
	return &c
}

// countingRecorder tallies coordinator outcomes for assertions.
type countingRecorder struct {
	created, accepted, acceptLost, declined, cancelled, completed, errs atomic.Int64
}

func (c *countingRecorder) RecordCreated()    { c.created.Add(1) }
func (c *countingRecorder) RecordAccepted()   { c.accepted.Add(1) }
func (c *countingRecorder) RecordAcceptLost() { c.acceptLost.Add(1) }
func (c *countingRecorder) RecordDeclined()   { c.declined.Add(1) }
func (c *countingRecorder) RecordCancelled()  { c.cancelled.Add(1) }
func (c *countingRecorder) RecordCompleted()  { c.completed.Add(1) }
func (c *countingRecorder) RecordError()      { c.errs.Add(1) }

var testCategories = []string{"male", "female", "trans"}

func requesterSession() identity.Session {
	return identity.Session{UserID: "req-1", Phone: "+911234567890", Role: store.RoleRequester}
}

func testLocator() geo.Locator {
	return geo.FixedLocator{Position: geo.Position{Latitude: 19.07, Longitude: 72.87}}
}

func TestCreateAlert(t *testing.T) {
	tests := []struct {
		name     string
		sess     identity.Session
		category string
		locator  geo.Locator
		failAll  bool
		wantErr  error
	}{
		{
			name:     "success",
			sess:     requesterSession(),
			category: "female",
			locator:  testLocator(),
		},
		{
			name:     "not authenticated",
			sess:     identity.Session{},
			category: "female",
			locator:  testLocator(),
			wantErr:  ErrNotAuthenticated,
		},
		{
			name:     "invalid category",
			sess:     requesterSession(),
			category: "unknown",
			locator:  testLocator(),
			wantErr:  ErrInvalidCategory,
		},
		{
			name:     "location unavailable",
			sess:     requesterSession(),
			category: "female",
			locator:  geo.NoLocator{},
			wantErr:  ErrLocationUnavailable,
		},
		{
			name:     "store unavailable",
			sess:     requesterSession(),
			category: "female",
			locator:  testLocator(),
			failAll:  true,
			wantErr:  ErrStoreUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := newFakeStore()
			fs.failAll = tt.failAll
			c := New(fs, bus.NewMemoryBus(), testCategories)

			alert, err := c.CreateAlert(context.Background(), tt.sess, "", tt.category, tt.locator)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("CreateAlert() error = %v, want errors.Is %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("CreateAlert() error = %v", err)
			}
			if alert.Status != store.StatusPending {
				t.Errorf("CreateAlert() status = %s, want pending", alert.Status)
			}
			if alert.Phone != tt.sess.Phone {
				t.Errorf("CreateAlert() phone = %s, want session phone %s", alert.Phone, tt.sess.Phone)
			}
		})
	}
}

// TestCreateAlert_NoWriteOnLocationFailure verifies the ordering guarantee: a
// failed position capture aborts before anything reaches the store.
func TestCreateAlert_NoWriteOnLocationFailure(t *testing.T) {
	fs := newFakeStore()
	c := New(fs, bus.NewMemoryBus(), testCategories)

	_, err := c.CreateAlert(context.Background(), requesterSession(), "", "female", geo.NoLocator{})
	if !errors.Is(err, ErrLocationUnavailable) {
		t.Fatalf("CreateAlert() error = %v, want ErrLocationUnavailable", err)
	}
	if len(fs.alerts) != 0 {
		t.Errorf("store has %d alerts after location failure, want 0", len(fs.alerts))
	}
}

// TestAttemptAccept_SingleWinner races many responders at one alert and checks
// exactly one wins while every loser gets ErrAlreadyTaken.
func TestAttemptAccept_SingleWinner(t *testing.T) {
	const responders = 32

	fs := newFakeStore()
	rec := &countingRecorder{}
	c := New(fs, bus.NewMemoryBus(), testCategories, WithMetrics(rec))

	alert, err := c.CreateAlert(context.Background(), requesterSession(), "", "female", testLocator())
	if err != nil {
		t.Fatalf("CreateAlert() error = %v", err)
	}

	var (
		wins   atomic.Int64
		losses atomic.Int64
		start  = make(chan struct{})
		wg     sync.WaitGroup
	)

	winners := make(map[string]bool)
	var winnersMu sync.Mutex

	for i := 0; i < responders; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			<-start
			responderID := fmt.Sprintf("resp-%d", id)
			got, err := c.AttemptAccept(context.Background(), alert.AlertID, responderID)
			switch {
			case err == nil:
				wins.Add(1)
				winnersMu.Lock()
				winners[got.ResponderID] = true
				winnersMu.Unlock()
			case errors.Is(err, ErrAlreadyTaken):
				losses.Add(1)
			default:
				t.Errorf("AttemptAccept() unexpected error = %v", err)
			}
		}(i)
	}

	close(start)
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("wins = %d, want exactly 1", wins.Load())
	}
	if losses.Load() != responders-1 {
		t.Errorf("losses = %d, want %d", losses.Load(), responders-1)
	}
	if rec.accepted.Load() != 1 || rec.acceptLost.Load() != responders-1 {
		t.Errorf("recorded accepted=%d acceptLost=%d, want 1 and %d",
			rec.accepted.Load(), rec.acceptLost.Load(), responders-1)
	}

	// The stored record names the same single winner.
	stored, err := fs.GetAlert(context.Background(), alert.AlertID)
	if err != nil {
		t.Fatalf("GetAlert() error = %v", err)
	}
	if stored.Status != store.StatusAccepted || !winners[stored.ResponderID] {
		t.Errorf("stored alert = %+v, want accepted by the recorded winner", stored)
	}
}

// TestAttemptAccept_Vanished covers accepting an alert that no longer exists.
func TestAttemptAccept_Vanished(t *testing.T) {
	fs := newFakeStore()
	c := New(fs, bus.NewMemoryBus(), testCategories)

	_, err := c.AttemptAccept(context.Background(), "no-such-alert", "resp-1")
	if !errors.Is(err, ErrAlreadyTaken) {
		t.Fatalf("AttemptAccept() error = %v, want ErrAlreadyTaken", err)
	}
}

func TestCancelAlert(t *testing.T) {
	ctx := context.Background()

	t.Run("cancel pending alert", func(t *testing.T) {
		fs := newFakeStore()
		rec := &countingRecorder{}
		c := New(fs, bus.NewMemoryBus(), testCategories, WithMetrics(rec))

		alert, err := c.CreateAlert(ctx, requesterSession(), "", "female", testLocator())
		if err != nil {
			t.Fatalf("CreateAlert() error = %v", err)
		}
		if err := c.CancelAlert(ctx, alert.AlertID, "req-1"); err != nil {
			t.Fatalf("CancelAlert() error = %v", err)
		}
		if _, err := fs.GetAlert(ctx, alert.AlertID); !errors.Is(err, store.ErrNotFound) {
			t.Errorf("alert still present after cancel")
		}
		if rec.cancelled.Load() != 1 {
			t.Errorf("cancelled count = %d, want 1", rec.cancelled.Load())
		}
	})

	t.Run("cancel is idempotent", func(t *testing.T) {
		fs := newFakeStore()
		rec := &countingRecorder{}
		c := New(fs, bus.NewMemoryBus(), testCategories, WithMetrics(rec))

		alert, err := c.CreateAlert(ctx, requesterSession(), "", "female", testLocator())
		if err != nil {
			t.Fatalf("CreateAlert() error = %v", err)
		}
		if err := c.CancelAlert(ctx, alert.AlertID, "req-1"); err != nil {
			t.Fatalf("first CancelAlert() error = %v", err)
		}
		if err := c.CancelAlert(ctx, alert.AlertID, "req-1"); err != nil {
			t.Fatalf("second CancelAlert() error = %v, want nil", err)
		}
		if rec.cancelled.Load() != 1 {
			t.Errorf("cancelled count = %d, want 1 (second cancel is a no-op)", rec.cancelled.Load())
		}
	})

	t.Run("cancel someone else's alert", func(t *testing.T) {
		fs := newFakeStore()
		c := New(fs, bus.NewMemoryBus(), testCategories)

		alert, err := c.CreateAlert(ctx, requesterSession(), "", "female", testLocator())
		if err != nil {
			t.Fatalf("CreateAlert() error = %v", err)
		}
		err = c.CancelAlert(ctx, alert.AlertID, "someone-else")
		if !errors.Is(err, ErrPermissionDenied) {
			t.Fatalf("CancelAlert() error = %v, want ErrPermissionDenied", err)
		}
	})
}

func TestCompleteAlert(t *testing.T) {
	ctx := context.Background()

	fs := newFakeStore()
	rec := &countingRecorder{}
	c := New(fs, bus.NewMemoryBus(), testCategories, WithMetrics(rec))

	alert, err := c.CreateAlert(ctx, requesterSession(), "", "female", testLocator())
	if err != nil {
		t.Fatalf("CreateAlert() error = %v", err)
	}
	if _, err := c.AttemptAccept(ctx, alert.AlertID, "resp-1"); err != nil {
		t.Fatalf("AttemptAccept() error = %v", err)
	}

	// Another responder cannot complete it.
	if err := c.CompleteAlert(ctx, alert.AlertID, "resp-2"); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("CompleteAlert() by non-winner error = %v, want ErrPermissionDenied", err)
	}

	if err := c.CompleteAlert(ctx, alert.AlertID, "resp-1"); err != nil {
		t.Fatalf("CompleteAlert() error = %v", err)
	}
	if _, err := fs.GetAlert(ctx, alert.AlertID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("alert still present after completion")
	}

	// Completing again is a no-op.
	if err := c.CompleteAlert(ctx, alert.AlertID, "resp-1"); err != nil {
		t.Fatalf("repeat CompleteAlert() error = %v, want nil", err)
	}
	if rec.completed.Load() != 1 {
		t.Errorf("completed count = %d, want 1", rec.completed.Load())
	}
}

// fakeDirectory records declines and removals forwarded by the coordinator.
type fakeDirectory struct {
	mu       sync.Mutex
	declines map[string][]string
	removals map[string][]string
}

func (f *fakeDirectory) Decline(responderID, alertID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.declines == nil {
		f.declines = make(map[string][]string)
	}
	f.declines[responderID] = append(f.declines[responderID], alertID)
	return true
}

func (f *fakeDirectory) Remove(responderID, alertID string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.removals == nil {
		f.removals = make(map[string][]string)
	}
	f.removals[responderID] = append(f.removals[responderID], alertID)
	return true
}

// TestDeclineOffer verifies declines are local: forwarded to the responder's
// session, never touching the shared record.
func TestDeclineOffer(t *testing.T) {
	fs := newFakeStore()
	dir := &fakeDirectory{}
	c := New(fs, bus.NewMemoryBus(), testCategories)
	c.SetOfferDirectory(dir)

	alert, err := c.CreateAlert(context.Background(), requesterSession(), "", "female", testLocator())
	if err != nil {
		t.Fatalf("CreateAlert() error = %v", err)
	}

	c.DeclineOffer("resp-1", alert.AlertID)

	if got := dir.declines["resp-1"]; len(got) != 1 || got[0] != alert.AlertID {
		t.Errorf("directory declines = %v, want [%s]", got, alert.AlertID)
	}

	// The record is untouched and still pending.
	stored, err := fs.GetAlert(context.Background(), alert.AlertID)
	if err != nil {
		t.Fatalf("GetAlert() error = %v", err)
	}
	if stored.Status != store.StatusPending {
		t.Errorf("status after decline = %s, want pending", stored.Status)
	}
}

// TestLifecycle_PublishesChangeEvents subscribes to the category channel and
// checks the CREATED, ACCEPTED, DELETED sequence comes out in order.
func TestLifecycle_PublishesChangeEvents(t *testing.T) {
	ctx := context.Background()
	mb := bus.NewMemoryBus()
	fs := newFakeStore()
	c := New(fs, mb, testCategories)

	sub, err := mb.SubscribeCategory(ctx, "female")
	if err != nil {
		t.Fatalf("SubscribeCategory() error = %v", err)
	}
	defer sub.Close()

	alert, err := c.CreateAlert(ctx, requesterSession(), "", "female", testLocator())
	if err != nil {
		t.Fatalf("CreateAlert() error = %v", err)
	}
	if _, err := c.AttemptAccept(ctx, alert.AlertID, "resp-1"); err != nil {
		t.Fatalf("AttemptAccept() error = %v", err)
	}
	if err := c.CompleteAlert(ctx, alert.AlertID, "resp-1"); err != nil {
		t.Fatalf("CompleteAlert() error = %v", err)
	}

	wantActions := []string{"CREATED", "ACCEPTED", "DELETED"}
	for _, want := range wantActions {
		select {
		case ev := <-sub.Events():
			if ev.Action != want || ev.AlertID != alert.AlertID {
				t.Fatalf("event = %s for %s, want %s for %s", ev.Action, ev.AlertID, want, alert.AlertID)
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %s event", want)
		}
	}
}

// TestCreateAlert_RequesterVanished verifies that an insert failing because
// the requester row is gone surfaces as not-found, not as a retryable store
// outage.
func TestCreateAlert_RequesterVanished(t *testing.T) {
	fs := newFakeStore()
	fs.createNotFound = true
	c := New(fs, bus.NewMemoryBus(), testCategories)

	_, err := c.CreateAlert(context.Background(), requesterSession(), "", "female", testLocator())
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("CreateAlert() error = %v, want errors.Is store.ErrNotFound", err)
	}
	if errors.Is(err, ErrStoreUnavailable) {
		t.Error("CreateAlert() error wraps ErrStoreUnavailable for a vanished requester")
	}
}

// TestAttemptAccept_LostRaceClearsOffer verifies a losing accept removes the
// stale offer from that responder's feed through the directory, so the feed
// converges even when the removal event was dropped.
func TestAttemptAccept_LostRaceClearsOffer(t *testing.T) {
	ctx := context.Background()
	fs := newFakeStore()
	dir := &fakeDirectory{}
	c := New(fs, bus.NewMemoryBus(), testCategories)
	c.SetOfferDirectory(dir)

	alert, err := c.CreateAlert(ctx, requesterSession(), "", "female", testLocator())
	if err != nil {
		t.Fatalf("CreateAlert() error = %v", err)
	}
	if _, err := c.AttemptAccept(ctx, alert.AlertID, "resp-1"); err != nil {
		t.Fatalf("AttemptAccept() error = %v", err)
	}

	if _, err := c.AttemptAccept(ctx, alert.AlertID, "resp-2"); !errors.Is(err, ErrAlreadyTaken) {
		t.Fatalf("AttemptAccept() error = %v, want ErrAlreadyTaken", err)
	}

	if got := dir.removals["resp-2"]; len(got) != 1 || got[0] != alert.AlertID {
		t.Errorf("directory removals for resp-2 = %v, want [%s]", got, alert.AlertID)
	}
	if got := dir.removals["resp-1"]; len(got) != 0 {
		t.Errorf("directory removals for the winner = %v, want none", got)
	}
}
