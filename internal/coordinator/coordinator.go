// Package coordinator owns the alert lifecycle: creation, the accept race,
// cancellation, and completion. It is the only writer path to alert records and
// the only place the change bus and lifecycle stream are published from.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"lifeline/internal/bus"
	"lifeline/internal/events"
	"lifeline/internal/geo"
	"lifeline/internal/identity"
	"lifeline/internal/producer"
	"lifeline/internal/store"
)

// Coordinator mediates every alert lifecycle transition against the store and
// fans the resulting change events out on the bus.
type Coordinator struct {
	store      AlertStore
	bus        bus.Bus
	lifecycle  producer.LifecyclePublisher
	metrics    Recorder
	categories map[string]struct{}

	offers OfferDirectory // set after construction, may stay nil
}

// Option is a functional option for configuring the Coordinator.
type Option func(*Coordinator)

// WithMetrics sets a custom outcome recorder.
func WithMetrics(r Recorder) Option {
	return func(c *Coordinator) {
		if r != nil {
			c.metrics = r
		}
	}
}

// WithLifecycle sets the Kafka lifecycle publisher.
func WithLifecycle(p producer.LifecyclePublisher) Option {
	return func(c *Coordinator) {
		if p != nil {
			c.lifecycle = p
		}
	}
}

// New creates a coordinator over the given store and bus. categories is the
// closed set of responder categories alerts may target.
func New(alertStore AlertStore, changeBus bus.Bus, categories []string, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:      alertStore,
		bus:        changeBus,
		lifecycle:  producer.NoOpPublisher{},
		metrics:    NoOpRecorder{},
		categories: make(map[string]struct{}, len(categories)),
	}
	for _, cat := range categories {
		c.categories[cat] = struct{}{}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetOfferDirectory wires the responder session registry in after both sides
// are constructed.
func (c *Coordinator) SetOfferDirectory(d OfferDirectory) {
	c.offers = d
}

// ValidCategory reports whether the category is in the configured closed set.
func (c *Coordinator) ValidCategory(category string) bool {
	_, ok := c.categories[category]
	return ok
}

// CreateAlert captures a position from the geolocation source and inserts a new
// pending alert for the authenticated requester. Nothing is written if the
// position cannot be obtained, and no local state is mutated until the insert
// commits, so a failed call may simply be retried.
//
// phone overrides the session's verified number when the requester typed a
// different contact number into the form; empty means use the verified one.
func (c *Coordinator) CreateAlert(ctx context.Context, sess identity.Session, phone, category string, locator geo.Locator) (*store.Alert, error) {
	if !sess.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}
	if category == "" || !c.ValidCategory(category) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidCategory, category)
	}
	if phone == "" {
		phone = sess.CurrentPhone()
	}

	pos, err := locator.CurrentPosition(ctx)
	if err != nil {
		c.metrics.RecordError()
		return nil, fmt.Errorf("%w: %v", ErrLocationUnavailable, err)
	}

	alert, err := c.store.CreateAlert(ctx, sess.CurrentUserID(), phone, pos.Latitude, pos.Longitude, category)
	if err != nil {
		if isNotFound(err) {
			// The requester row is gone (account deleted mid-session). Not a
			// store fault and not retryable; surface it as not-found.
			return nil, err
		}
		c.metrics.RecordError()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	c.publishChange(ctx, alert, events.ActionCreated)
	c.publishLifecycle(ctx, alert, events.LifecycleCreated)
	c.metrics.RecordCreated()

	slog.Info("Alert created",
		"alert_id", alert.AlertID,
		"requester_id", alert.RequesterID,
		"category", alert.Category,
	)
	return alert, nil
}

// AttemptAccept runs the accept-race transaction for one responder. Across any
// number of concurrent callers exactly one returns the accepted alert; every
// other caller gets ErrAlreadyTaken, which is an expected outcome, not a fault.
func (c *Coordinator) AttemptAccept(ctx context.Context, alertID, responderID string) (*store.Alert, error) {
	alert, won, err := c.store.AcceptAlert(ctx, alertID, responderID)
	if err != nil {
		c.metrics.RecordError()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !won {
		// The direct read just told this responder the record is no longer
		// pending; clear it from their feed rather than waiting on a change
		// event that may have been dropped.
		if c.offers != nil {
			c.offers.Remove(responderID, alertID)
		}
		c.metrics.RecordAcceptLost()
		return nil, ErrAlreadyTaken
	}

	c.publishChange(ctx, alert, events.ActionAccepted)
	c.publishLifecycle(ctx, alert, events.LifecycleAccepted)
	c.metrics.RecordAccepted()

	slog.Info("Alert accepted",
		"alert_id", alert.AlertID,
		"responder_id", responderID,
		"category", alert.Category,
	)
	return alert, nil
}

// DeclineOffer removes the alert from one responder's consideration. The shared
// record is untouched: the alert stays pending and visible to every other
// responder, and this responder may see it again only if the record reappears.
func (c *Coordinator) DeclineOffer(responderID, alertID string) {
	if c.offers != nil {
		c.offers.Decline(responderID, alertID)
	}
	c.metrics.RecordDeclined()
	slog.Info("Offer declined", "alert_id", alertID, "responder_id", responderID)
}

// CancelAlert deletes the requester's own alert regardless of status. Observers
// see the record vanish. Cancelling an alert that no longer exists is a no-op,
// not an error: the requester lands in idle either way.
func (c *Coordinator) CancelAlert(ctx context.Context, alertID, requesterID string) error {
	alert, err := c.store.GetAlert(ctx, alertID)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		c.metrics.RecordError()
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	deleted, err := c.store.DeleteAlertByRequester(ctx, alertID, requesterID)
	if err != nil {
		if isPermissionDenied(err) {
			return fmt.Errorf("%w: alert %s", ErrPermissionDenied, alertID)
		}
		c.metrics.RecordError()
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !deleted {
		// Gone between the read and the delete; same terminal state.
		return nil
	}

	c.publishChange(ctx, alert, events.ActionDeleted)
	c.publishLifecycle(ctx, alert, events.LifecycleCancelled)
	c.metrics.RecordCancelled()

	slog.Info("Alert cancelled", "alert_id", alertID, "requester_id", requesterID)
	return nil
}

// CompleteAlert deletes an accepted alert after the encounter concludes. Only
// the responder who won the accept race may complete it. Deletion releases the
// lingering subscriptions on both sides.
func (c *Coordinator) CompleteAlert(ctx context.Context, alertID, responderID string) error {
	alert, err := c.store.GetAlert(ctx, alertID)
	if err != nil {
		if isNotFound(err) {
			return nil
		}
		c.metrics.RecordError()
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	deleted, err := c.store.DeleteAlertByResponder(ctx, alertID, responderID)
	if err != nil {
		if isPermissionDenied(err) {
			return fmt.Errorf("%w: alert %s", ErrPermissionDenied, alertID)
		}
		c.metrics.RecordError()
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if !deleted {
		return nil
	}

	c.publishChange(ctx, alert, events.ActionDeleted)
	c.publishLifecycle(ctx, alert, events.LifecycleCompleted)
	c.metrics.RecordCompleted()

	slog.Info("Alert completed", "alert_id", alertID, "responder_id", responderID)
	return nil
}

// PendingAlerts lists the pending alerts for one category, oldest first. Used
// by matching feeds to backfill before applying live events.
func (c *Coordinator) PendingAlerts(ctx context.Context, category string) ([]*store.Alert, error) {
	alerts, err := c.store.ListPendingByCategory(ctx, category)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return alerts, nil
}

// publishChange publishes a change event after a successful store write. It
// logs failures but never fails the operation: feeds reconcile from the store,
// so a lost notification degrades latency, not correctness.
func (c *Coordinator) publishChange(ctx context.Context, alert *store.Alert, action string) {
	ev := &events.AlertChanged{
		AlertID:     alert.AlertID,
		RequesterID: alert.RequesterID,
		ResponderID: alert.ResponderID,
		Category:    alert.Category,
		Phone:       alert.Phone,
		Latitude:    alert.Latitude,
		Longitude:   alert.Longitude,
		Action:      action,
		CreatedAt:   alert.CreatedAt.UnixMilli(),
	}
	if err := c.bus.Publish(ctx, ev); err != nil {
		slog.Error("Failed to publish alert changed event",
			"alert_id", alert.AlertID,
			"action", action,
			"error", err,
		)
	}
}

// publishLifecycle publishes an audit event to the Kafka lifecycle stream.
// Best effort only.
func (c *Coordinator) publishLifecycle(ctx context.Context, alert *store.Alert, action string) {
	ev := &events.AlertLifecycle{
		AlertID:       alert.AlertID,
		RequesterID:   alert.RequesterID,
		ResponderID:   alert.ResponderID,
		Category:      alert.Category,
		Action:        action,
		OccurredAt:    time.Now().Unix(),
		SchemaVersion: producer.SchemaVersion,
	}
	if err := c.lifecycle.Publish(ctx, ev); err != nil {
		slog.Error("Failed to publish alert lifecycle event",
			"alert_id", alert.AlertID,
			"action", action,
			"error", err,
		)
	}
}
