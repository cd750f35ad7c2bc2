// Package handlers provides HTTP handlers for the lifeline API.
package handlers

import (
	"context"

	"lifeline/internal/geo"
	"lifeline/internal/identity"
	"lifeline/internal/store"
)

// AlertService defines the alert lifecycle operations handlers call into.
// This interface allows for dependency injection and easier testing.
type AlertService interface {
	// CreateAlert validates and inserts a new pending alert.
	CreateAlert(ctx context.Context, sess identity.Session, phone, category string, locator geo.Locator) (*store.Alert, error)

	// AttemptAccept runs the accept race for one responder.
	AttemptAccept(ctx context.Context, alertID, responderID string) (*store.Alert, error)

	// DeclineOffer hides the alert from one responder's feed.
	DeclineOffer(responderID, alertID string)

	// CancelAlert deletes the requester's own alert. Idempotent.
	CancelAlert(ctx context.Context, alertID, requesterID string) error

	// CompleteAlert deletes an accepted alert on the responder's behalf.
	CompleteAlert(ctx context.Context, alertID, responderID string) error

	// PendingAlerts lists pending alerts for a category, oldest first.
	PendingAlerts(ctx context.Context, category string) ([]*store.Alert, error)

	// ValidCategory reports membership in the configured category set.
	ValidCategory(category string) bool
}

// AccountRepository defines the user and wallet operations handlers depend on.
// This allows handlers to be tested without a real database.
type AccountRepository interface {
	CreateUser(ctx context.Context, phone, role, category string) (*store.User, error)
	GetUser(ctx context.Context, userID string) (*store.User, error)
	GetUserByPhone(ctx context.Context, phone string) (*store.User, error)
	Deposit(ctx context.Context, userID string, amount int64) (int64, error)
	Withdraw(ctx context.Context, userID string, amount int64) (int64, error)
}

// TokenIssuer issues and verifies bearer tokens.
type TokenIssuer interface {
	Issue(user *store.User) (string, error)
	Verify(token string) (identity.Session, error)
}

// SessionStore is the read surface the streaming sessions reconcile against.
type SessionStore interface {
	GetAlert(ctx context.Context, alertID string) (*store.Alert, error)
	ListPendingByCategory(ctx context.Context, category string) ([]*store.Alert, error)
}
