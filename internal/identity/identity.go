// Package identity wraps the identity provider behind the narrow session
// contract the coordinator consumes: current user id, verified phone, and role.
// Registration, OTP delivery, and session teardown stay outside the core.
package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"lifeline/internal/store"
)

// ErrInvalidToken covers every way a bearer token can fail verification.
var ErrInvalidToken = errors.New("invalid token")

// Session is the verified identity attached to one authenticated request. It is
// an immutable value; the coordinator reads it and never writes it.
type Session struct {
	UserID   string
	Phone    string
	Role     string // store.RoleRequester or store.RoleResponder
	Category string // responder category, empty for requesters
}

// CurrentUserID returns the authenticated user's id.
func (s Session) CurrentUserID() string { return s.UserID }

// CurrentPhone returns the verified phone number.
func (s Session) CurrentPhone() string { return s.Phone }

// IsAuthenticated reports whether the session carries a verified identity.
func (s Session) IsAuthenticated() bool { return s.UserID != "" }

// IsResponder reports whether this session belongs to a responder.
func (s Session) IsResponder() bool { return s.Role == store.RoleResponder }

// Claims is the JWT payload carried by lifeline bearer tokens.
type Claims struct {
	Phone    string `json:"phone"`
	Role     string `json:"role"`
	Category string `json:"category,omitempty"`
	jwt.RegisteredClaims
}

// TokenManager issues and verifies bearer tokens for authenticated users.
type TokenManager struct {
	secret []byte
	expiry time.Duration
}

// NewTokenManager creates a token manager with the given signing secret and
// token lifetime.
func NewTokenManager(secret string, expiry time.Duration) *TokenManager {
	return &TokenManager{secret: []byte(secret), expiry: expiry}
}

// Issue signs a token for the given user profile.
func (m *TokenManager) Issue(user *store.User) (string, error) {
	now := time.Now()
	claims := &Claims{
		Phone:    user.Phone,
		Role:     user.Role,
		Category: user.Category,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.expiry)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify parses and validates a bearer token, returning the session it carries.
func (m *TokenManager) Verify(tokenString string) (Session, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return m.secret, nil
	})
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return Session{}, ErrInvalidToken
	}
	return Session{
		UserID:   claims.Subject,
		Phone:    claims.Phone,
		Role:     claims.Role,
		Category: claims.Category,
	}, nil
}
