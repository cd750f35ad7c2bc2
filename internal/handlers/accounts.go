package handlers

import (
	"log/slog"
	"net/http"

	"lifeline/internal/identity"
	"lifeline/internal/store"
)

// RegisterRequest represents a request to create an account.
type RegisterRequest struct {
	Phone    string `json:"phone"`
	Role     string `json:"role"`
	Category string `json:"category,omitempty"`
}

// AuthResponse carries the bearer token and profile returned by register and
// login.
type AuthResponse struct {
	Token string      `json:"token"`
	User  *store.User `json:"user"`
}

// Register creates a new account and issues a bearer token. The phone number
// arrives already verified by the OTP front door; this endpoint trusts it.
func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if !isValidPhone(req.Phone) {
		http.Error(w, "phone must be a valid number", http.StatusBadRequest)
		return
	}
	if !isValidRole(req.Role) {
		http.Error(w, "role must be requester or responder", http.StatusBadRequest)
		return
	}
	if req.Role == store.RoleResponder && !h.alerts.ValidCategory(req.Category) {
		http.Error(w, "responder requires a valid category", http.StatusBadRequest)
		return
	}
	if req.Role == store.RoleRequester && req.Category != "" {
		http.Error(w, "requester must not set a category", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	user, err := h.accounts.CreateUser(ctx, req.Phone, req.Role, req.Category)
	if writeServiceError(w, err, "register") {
		return
	}

	token, err := h.tokens.Issue(user)
	if err != nil {
		slog.Error("Failed to issue token", "error", err, "user_id", user.UserID)
		http.Error(w, "Failed to issue token", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, AuthResponse{Token: token, User: user})
}

// LoginRequest represents a login for an existing account.
type LoginRequest struct {
	Phone string `json:"phone"`
}

// Login re-issues a bearer token for an existing, OTP-verified phone number.
func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	var req LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !isValidPhone(req.Phone) {
		http.Error(w, "phone must be a valid number", http.StatusBadRequest)
		return
	}

	user, err := h.accounts.GetUserByPhone(r.Context(), req.Phone)
	if writeServiceError(w, err, "login") {
		return
	}

	token, err := h.tokens.Issue(user)
	if err != nil {
		slog.Error("Failed to issue token", "error", err, "user_id", user.UserID)
		http.Error(w, "Failed to issue token", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, AuthResponse{Token: token, User: user})
}

// GetAccount returns the authenticated user's profile, wallet balance included.
func (h *Handlers) GetAccount(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodGet) {
		return
	}

	sess, ok := h.requireSession(w, r)
	if !ok {
		return
	}

	user, err := h.accounts.GetUser(r.Context(), sess.CurrentUserID())
	if writeServiceError(w, err, "get account") {
		return
	}

	writeJSON(w, http.StatusOK, user)
}

// requireSession extracts the verified session placed in the context by the
// auth middleware. Writes a 401 and returns false when it is missing.
func (h *Handlers) requireSession(w http.ResponseWriter, r *http.Request) (identity.Session, bool) {
	sess := identity.SessionFromContext(r.Context())
	if !sess.IsAuthenticated() {
		http.Error(w, "Authentication required", http.StatusUnauthorized)
		return identity.Session{}, false
	}
	return sess, true
}
