// Package store provides PostgreSQL-backed persistence for alerts and users.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// CreateAlert inserts a new pending alert and returns it with the assigned id
// and server timestamp. No partial record is left behind on failure, so callers
// may safely retry the same operation.
func (db *DB) CreateAlert(ctx context.Context, requesterID, phone string, latitude, longitude float64, category string) (*Alert, error) {
	query := `
		INSERT INTO alerts (alert_id, requester_id, phone, latitude, longitude, category, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, 'pending', NOW())
		RETURNING alert_id, requester_id, phone, latitude, longitude, category, status, created_at
	`
	alertID := uuid.NewString()

	var alert Alert
	err := db.conn.QueryRowContext(ctx, query, alertID, requesterID, phone, latitude, longitude, category).Scan(
		&alert.AlertID,
		&alert.RequesterID,
		&alert.Phone,
		&alert.Latitude,
		&alert.Longitude,
		&alert.Category,
		&alert.Status,
		&alert.CreatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23503" { // foreign_key_violation
				return nil, fmt.Errorf("requester %s: %w", requesterID, ErrNotFound)
			}
		}
		return nil, fmt.Errorf("failed to create alert: %w", err)
	}
	return &alert, nil
}

// GetAlert retrieves an alert by ID.
func (db *DB) GetAlert(ctx context.Context, alertID string) (*Alert, error) {
	query := `
		SELECT alert_id, requester_id, phone, latitude, longitude, category, status, responder_id, created_at
		FROM alerts
		WHERE alert_id = $1
	`
	var alert Alert
	var responderID sql.NullString
	err := db.conn.QueryRowContext(ctx, query, alertID).Scan(
		&alert.AlertID,
		&alert.RequesterID,
		&alert.Phone,
		&alert.Latitude,
		&alert.Longitude,
		&alert.Category,
		&alert.Status,
		&responderID,
		&alert.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("alert %s: %w", alertID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert: %w", err)
	}
	alert.ResponderID = responderID.String
	return &alert, nil
}

// AcceptAlert performs the accept-race transaction: a single conditional UPDATE
// that flips status to accepted and records the responder only if the record is
// still pending. The read-then-conditional-write runs as one statement, so with
// K concurrent callers exactly one sees won=true and the rest see won=false.
//
// won=false covers both a lost race and a record that no longer exists; either
// way the alert is not this responder's to take.
func (db *DB) AcceptAlert(ctx context.Context, alertID, responderID string) (*Alert, bool, error) {
	query := `
		UPDATE alerts
		SET status = 'accepted',
		    responder_id = $2
		WHERE alert_id = $1 AND status = 'pending'
		RETURNING alert_id, requester_id, phone, latitude, longitude, category, status, responder_id, created_at
	`
	var alert Alert
	var respID sql.NullString
	err := db.conn.QueryRowContext(ctx, query, alertID, responderID).Scan(
		&alert.AlertID,
		&alert.RequesterID,
		&alert.Phone,
		&alert.Latitude,
		&alert.Longitude,
		&alert.Category,
		&alert.Status,
		&respID,
		&alert.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to accept alert: %w", err)
	}
	alert.ResponderID = respID.String
	return &alert, true, nil
}

// DeleteAlert removes an alert unconditionally. Deleting an alert that no
// longer exists is a no-op, not an error; the returned flag reports whether a
// row was actually removed so callers can decide to publish a change event.
func (db *DB) DeleteAlert(ctx context.Context, alertID string) (bool, error) {
	query := `DELETE FROM alerts WHERE alert_id = $1`
	result, err := db.conn.ExecContext(ctx, query, alertID)
	if err != nil {
		return false, fmt.Errorf("failed to delete alert: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// DeleteAlertByRequester removes an alert only if it was created by the given
// requester. The ownership check and the delete run as one statement. When no
// row is removed the alert is either already gone (fine) or owned by someone
// else; the second query distinguishes the two.
func (db *DB) DeleteAlertByRequester(ctx context.Context, alertID, requesterID string) (bool, error) {
	query := `DELETE FROM alerts WHERE alert_id = $1 AND requester_id = $2`
	result, err := db.conn.ExecContext(ctx, query, alertID, requesterID)
	if err != nil {
		return false, fmt.Errorf("failed to delete alert: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		var exists bool
		checkQuery := `SELECT EXISTS(SELECT 1 FROM alerts WHERE alert_id = $1)`
		if err := db.conn.QueryRowContext(ctx, checkQuery, alertID).Scan(&exists); err == nil && exists {
			return false, fmt.Errorf("alert %s is not owned by requester %s: %w", alertID, requesterID, ErrPermissionDenied)
		}
		return false, nil
	}
	return true, nil
}

// DeleteAlertByResponder removes an accepted alert only if the given responder
// is the one who accepted it. Used for completion after the encounter.
func (db *DB) DeleteAlertByResponder(ctx context.Context, alertID, responderID string) (bool, error) {
	query := `DELETE FROM alerts WHERE alert_id = $1 AND responder_id = $2 AND status = 'accepted'`
	result, err := db.conn.ExecContext(ctx, query, alertID, responderID)
	if err != nil {
		return false, fmt.Errorf("failed to delete alert: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		var exists bool
		checkQuery := `SELECT EXISTS(SELECT 1 FROM alerts WHERE alert_id = $1)`
		if err := db.conn.QueryRowContext(ctx, checkQuery, alertID).Scan(&exists); err == nil && exists {
			return false, fmt.Errorf("alert %s was not accepted by responder %s: %w", alertID, responderID, ErrPermissionDenied)
		}
		return false, nil
	}
	return true, nil
}

// ListPendingByCategory retrieves all pending alerts for a category, oldest
// first. Equal timestamps are tie-broken by id so every client observes the
// same order. An empty result is a steady idle state, not an error.
func (db *DB) ListPendingByCategory(ctx context.Context, category string) ([]*Alert, error) {
	query := `
		SELECT alert_id, requester_id, phone, latitude, longitude, category, status, created_at
		FROM alerts
		WHERE category = $1 AND status = 'pending'
		ORDER BY created_at ASC, alert_id ASC
	`
	rows, err := db.conn.QueryContext(ctx, query, category)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending alerts: %w", err)
	}
	defer rows.Close()

	var alerts []*Alert
	for rows.Next() {
		var alert Alert
		if err := rows.Scan(
			&alert.AlertID,
			&alert.RequesterID,
			&alert.Phone,
			&alert.Latitude,
			&alert.Longitude,
			&alert.Category,
			&alert.Status,
			&alert.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		alerts = append(alerts, &alert)
	}
	return alerts, rows.Err()
}
