// Package store provides PostgreSQL-backed persistence for alerts and users.
package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// CreateUser inserts a new user profile. Responders carry the category they
// serve; requesters have none.
func (db *DB) CreateUser(ctx context.Context, phone, role, category string) (*User, error) {
	query := `
		INSERT INTO users (user_id, phone, role, category, wallet_balance, created_at)
		VALUES ($1, $2, $3, $4, 0, NOW())
		RETURNING user_id, phone, role, category, wallet_balance, created_at
	`
	userID := uuid.NewString()

	var categoryArg interface{}
	if category != "" {
		categoryArg = category
	}

	var user User
	var cat sql.NullString
	err := db.conn.QueryRowContext(ctx, query, userID, phone, role, categoryArg).Scan(
		&user.UserID,
		&user.Phone,
		&user.Role,
		&cat,
		&user.WalletBalance,
		&user.CreatedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok {
			if pqErr.Code == "23505" { // unique_violation
				return nil, fmt.Errorf("user for phone %s: %w", phone, ErrAlreadyExists)
			}
			if pqErr.Code == "23514" { // check_violation
				return nil, fmt.Errorf("invalid role/category combination (role=%s, category=%s)", role, category)
			}
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	user.Category = cat.String
	return &user, nil
}

// GetUser retrieves a user by ID.
func (db *DB) GetUser(ctx context.Context, userID string) (*User, error) {
	return db.getUserBy(ctx, "user_id", userID)
}

// GetUserByPhone retrieves a user by verified phone number.
func (db *DB) GetUserByPhone(ctx context.Context, phone string) (*User, error) {
	return db.getUserBy(ctx, "phone", phone)
}

func (db *DB) getUserBy(ctx context.Context, column, value string) (*User, error) {
	query := fmt.Sprintf(`
		SELECT user_id, phone, role, category, wallet_balance, created_at
		FROM users
		WHERE %s = $1
	`, column)
	var user User
	var cat sql.NullString
	err := db.conn.QueryRowContext(ctx, query, value).Scan(
		&user.UserID,
		&user.Phone,
		&user.Role,
		&cat,
		&user.WalletBalance,
		&user.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("user %s: %w", value, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	user.Category = cat.String
	return &user, nil
}

// Deposit adds the amount to the user's wallet balance as a single atomic
// update and returns the new balance. Amounts are whole rupees.
func (db *DB) Deposit(ctx context.Context, userID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("deposit amount must be positive, got %d", amount)
	}
	query := `
		UPDATE users
		SET wallet_balance = wallet_balance + $2
		WHERE user_id = $1
		RETURNING wallet_balance
	`
	var balance int64
	err := db.conn.QueryRowContext(ctx, query, userID, amount).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to deposit: %w", err)
	}
	return balance, nil
}

// Withdraw subtracts the amount from the user's wallet balance only if funds
// cover it. The balance check and the update run as one conditional statement;
// two concurrent withdrawals can never overdraw the account.
func (db *DB) Withdraw(ctx context.Context, userID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, fmt.Errorf("withdrawal amount must be positive, got %d", amount)
	}
	query := `
		UPDATE users
		SET wallet_balance = wallet_balance - $2
		WHERE user_id = $1 AND wallet_balance >= $2
		RETURNING wallet_balance
	`
	var balance int64
	err := db.conn.QueryRowContext(ctx, query, userID, amount).Scan(&balance)
	if err == sql.ErrNoRows {
		// Distinguish a missing user from insufficient funds
		var exists bool
		checkQuery := `SELECT EXISTS(SELECT 1 FROM users WHERE user_id = $1)`
		if err := db.conn.QueryRowContext(ctx, checkQuery, userID).Scan(&exists); err == nil && exists {
			return 0, fmt.Errorf("withdrawal of %d: %w", amount, ErrInsufficientFunds)
		}
		return 0, fmt.Errorf("user %s: %w", userID, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to withdraw: %w", err)
	}
	return balance, nil
}
