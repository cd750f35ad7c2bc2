package coordinator

import (
	"context"

	"lifeline/internal/store"
)

// AlertStore is the persistence contract the coordinator depends on. The
// *store.DB implements it against PostgreSQL; tests use an in-memory fake.
//
// AcceptAlert MUST be a true atomic compare-and-swap: the status check and the
// responder assignment execute as one indivisible unit. An implementation that
// reads and then separately writes breaks the at-most-one-winner guarantee.
type AlertStore interface {
	CreateAlert(ctx context.Context, requesterID, phone string, latitude, longitude float64, category string) (*store.Alert, error)
	GetAlert(ctx context.Context, alertID string) (*store.Alert, error)
	AcceptAlert(ctx context.Context, alertID, responderID string) (*store.Alert, bool, error)
	DeleteAlertByRequester(ctx context.Context, alertID, requesterID string) (bool, error)
	DeleteAlertByResponder(ctx context.Context, alertID, responderID string) (bool, error)
	ListPendingByCategory(ctx context.Context, category string) ([]*store.Alert, error)
}

// OfferDirectory lets the coordinator forward feed mutations to whichever
// responder session currently holds the offer. Both calls touch local session
// state only; nothing in the shared store changes.
type OfferDirectory interface {
	// Decline marks the alert as declined for one responder. Returns false if
	// that responder has no live session.
	Decline(responderID, alertID string) bool

	// Remove drops the alert from one responder's feed after a direct read
	// showed the record is no longer pending for them. Covers the case where
	// the corresponding change event was dropped on a full subscriber buffer.
	Remove(responderID, alertID string) bool
}

// Recorder counts coordinator outcomes. The no-op implementation stands in
// when metrics are not configured.
type Recorder interface {
	RecordCreated()
	RecordAccepted()
	RecordAcceptLost()
	RecordDeclined()
	RecordCancelled()
	RecordCompleted()
	RecordError()
}

// NoOpRecorder is a no-op implementation of Recorder, avoiding nil checks.
type NoOpRecorder struct{}

var _ Recorder = (*NoOpRecorder)(nil)

func (NoOpRecorder) RecordCreated()    {}
func (NoOpRecorder) RecordAccepted()   {}
func (NoOpRecorder) RecordAcceptLost() {}
func (NoOpRecorder) RecordDeclined()   {}
func (NoOpRecorder) RecordCancelled()  {}
func (NoOpRecorder) RecordCompleted()  {}
func (NoOpRecorder) RecordError()      {}
