package handlers

import (
	"context"

	"lifeline/internal/geo"
	"lifeline/internal/identity"
	"lifeline/internal/store"
)

// mockAlertService implements AlertService with function fields so each test
// overrides only what it exercises.
type mockAlertService struct {
	createFunc   func(ctx context.Context, sess identity.Session, phone, category string, locator geo.Locator) (*store.Alert, error)
	acceptFunc   func(ctx context.Context, alertID, responderID string) (*store.Alert, error)
	declineFunc  func(responderID, alertID string)
	cancelFunc   func(ctx context.Context, alertID, requesterID string) error
	completeFunc func(ctx context.Context, alertID, responderID string) error
	pendingFunc  func(ctx context.Context, category string) ([]*store.Alert, error)
	categories   map[string]bool
}

func (m *mockAlertService) CreateAlert(ctx context.Context, sess identity.Session, phone, category string, locator geo.Locator) (*store.Alert, error) {
	return m.createFunc(ctx, sess, phone, category, locator)
}

func (m *mockAlertService) AttemptAccept(ctx context.Context, alertID, responderID string) (*store.Alert, error) {
	return m.acceptFunc(ctx, alertID, responderID)
}

func (m *mockAlertService) DeclineOffer(responderID, alertID string) {
	if m.declineFunc != nil {
		m.declineFunc(responderID, alertID)
	}
}

func (m *mockAlertService) CancelAlert(ctx context.Context, alertID, requesterID string) error {
	return m.cancelFunc(ctx, alertID, requesterID)
}

func (m *mockAlertService) CompleteAlert(ctx context.Context, alertID, responderID string) error {
	return m.completeFunc(ctx, alertID, responderID)
}

func (m *mockAlertService) PendingAlerts(ctx context.Context, category string) ([]*store.Alert, error) {
	return m.pendingFunc(ctx, category)
}

func (m *mockAlertService) ValidCategory(category string) bool {
	return m.categories[category]
}

// mockAccountRepository implements AccountRepository with function fields.
type mockAccountRepository struct {
	createUserFunc     func(ctx context.Context, phone, role, category string) (*store.User, error)
	getUserFunc        func(ctx context.Context, userID string) (*store.User, error)
	getUserByPhoneFunc func(ctx context.Context, phone string) (*store.User, error)
	depositFunc        func(ctx context.Context, userID string, amount int64) (int64, error)
	withdrawFunc       func(ctx context.Context, userID string, amount int64) (int64, error)
}

func (m *mockAccountRepository) CreateUser(ctx context.Context, phone, role, category string) (*store.User, error) {
	return m.createUserFunc(ctx, phone, role, category)
}

func (m *mockAccountRepository) GetUser(ctx context.Context, userID string) (*store.User, error) {
	return m.getUserFunc(ctx, userID)
}

func (m *mockAccountRepository) GetUserByPhone(ctx context.Context, phone string) (*store.User, error) {
	return m.getUserByPhoneFunc(ctx, phone)
}

func (m *mockAccountRepository) Deposit(ctx context.Context, userID string, amount int64) (int64, error) {
	return m.depositFunc(ctx, userID, amount)
}

func (m *mockAccountRepository) Withdraw(ctx context.Context, userID string, amount int64) (int64, error) {
	return m.withdrawFunc(ctx, userID, amount)
}

// mockTokenIssuer implements TokenIssuer with function fields.
type mockTokenIssuer struct {
	issueFunc  func(user *store.User) (string, error)
	verifyFunc func(token string) (identity.Session, error)
}

func (m *mockTokenIssuer) Issue(user *store.User) (string, error) {
	if m.issueFunc != nil {
		return m.issueFunc(user)
	}
	return "test-token", nil
}

func (m *mockTokenIssuer) Verify(token string) (identity.Session, error) {
	return m.verifyFunc(token)
}

// mockSessionStore implements SessionStore with function fields.
type mockSessionStore struct {
	getAlertFunc func(ctx context.Context, alertID string) (*store.Alert, error)
	listFunc     func(ctx context.Context, category string) ([]*store.Alert, error)
}

func (m *mockSessionStore) GetAlert(ctx context.Context, alertID string) (*store.Alert, error) {
	return m.getAlertFunc(ctx, alertID)
}

func (m *mockSessionStore) ListPendingByCategory(ctx context.Context, category string) ([]*store.Alert, error) {
	return m.listFunc(ctx, category)
}
