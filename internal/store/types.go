// Package store provides PostgreSQL-backed persistence for alerts and users.
package store

import "time"

// Alert statuses. A cancelled or completed alert is represented by record
// deletion, not by a status value.
const (
	StatusPending  = "pending"
	StatusAccepted = "accepted"
)

// User roles.
const (
	RoleRequester = "requester"
	RoleResponder = "responder"
)

// Alert is a single help request record.
//
// Exactly one of {record absent, pending with ResponderID empty, accepted with
// ResponderID set} holds at any time. ResponderID is set at most once by the
// accept transaction and never cleared or reassigned.
type Alert struct {
	AlertID     string    `json:"alert_id"`
	RequesterID string    `json:"requester_id"`
	Phone       string    `json:"phone"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	Category    string    `json:"category"`
	Status      string    `json:"status"`
	ResponderID string    `json:"responder_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// User is an account profile. Category is set only for responders and names the
// alert category this responder serves. WalletBalance is whole rupees.
type User struct {
	UserID        string    `json:"user_id"`
	Phone         string    `json:"phone"`
	Role          string    `json:"role"`
	Category      string    `json:"category,omitempty"`
	WalletBalance int64     `json:"wallet_balance"`
	CreatedAt     time.Time `json:"created_at"`
}
