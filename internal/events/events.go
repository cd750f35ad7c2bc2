// Package events defines the change and lifecycle event structures shared by the
// store-change bus and the Kafka lifecycle stream.
package events

// AlertChanged is the change notification published on the bus whenever an alert
// record is inserted, accepted, or deleted. It is the Go rendition of a document
// snapshot listener update: subscribers receive one AlertChanged per committed
// write to the record, in commit order.
type AlertChanged struct {
	AlertID     string  `json:"alert_id"`
	RequesterID string  `json:"requester_id"`
	ResponderID string  `json:"responder_id,omitempty"`
	Category    string  `json:"category"`
	Phone       string  `json:"phone,omitempty"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	Action      string  `json:"action"`     // CREATED, ACCEPTED, DELETED
	CreatedAt   int64   `json:"created_at"` // Unix milliseconds of the record's creation
}

// Valid actions for AlertChanged.
const (
	ActionCreated  = "CREATED"
	ActionAccepted = "ACCEPTED"
	ActionDeleted  = "DELETED"
)

// AlertLifecycle is the audit event published to the alerts.lifecycle Kafka topic
// on every lifecycle transition. Unlike AlertChanged it distinguishes why a record
// was deleted (cancelled by the requester vs completed by the responder).
type AlertLifecycle struct {
	AlertID       string `json:"alert_id"`
	RequesterID   string `json:"requester_id"`
	ResponderID   string `json:"responder_id,omitempty"`
	Category      string `json:"category"`
	Action        string `json:"action"`      // CREATED, ACCEPTED, CANCELLED, COMPLETED
	OccurredAt    int64  `json:"occurred_at"` // Unix timestamp
	SchemaVersion int    `json:"schema_version"`
}

// Valid actions for AlertLifecycle.
const (
	LifecycleCreated   = "CREATED"
	LifecycleAccepted  = "ACCEPTED"
	LifecycleCancelled = "CANCELLED"
	LifecycleCompleted = "COMPLETED"
)
