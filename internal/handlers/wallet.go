package handlers

import (
	"net/http"
)

// WalletRequest carries an amount in the smallest currency unit.
type WalletRequest struct {
	Amount int64 `json:"amount"`
}

// WalletResponse returns the balance after the operation.
type WalletResponse struct {
	Balance int64 `json:"balance"`
}

// Deposit credits the authenticated user's wallet.
func (h *Handlers) Deposit(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	sess, ok := h.requireSession(w, r)
	if !ok {
		return
	}

	var req WalletRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Amount <= 0 {
		http.Error(w, "amount must be positive", http.StatusBadRequest)
		return
	}

	balance, err := h.accounts.Deposit(r.Context(), sess.CurrentUserID(), req.Amount)
	if writeServiceError(w, err, "deposit") {
		return
	}

	writeJSON(w, http.StatusOK, WalletResponse{Balance: balance})
}

// Withdraw debits the authenticated user's wallet. The balance never goes
// negative; an overdraw returns 409.
func (h *Handlers) Withdraw(w http.ResponseWriter, r *http.Request) {
	if !requireMethod(w, r, http.MethodPost) {
		return
	}

	sess, ok := h.requireSession(w, r)
	if !ok {
		return
	}

	var req WalletRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Amount <= 0 {
		http.Error(w, "amount must be positive", http.StatusBadRequest)
		return
	}

	balance, err := h.accounts.Withdraw(r.Context(), sess.CurrentUserID(), req.Amount)
	if writeServiceError(w, err, "withdraw") {
		return
	}

	writeJSON(w, http.StatusOK, WalletResponse{Balance: balance})
}
