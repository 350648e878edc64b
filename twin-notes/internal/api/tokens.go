package api

import (
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenTTL is how long a login token stays valid.
const TokenTTL = 24 * time.Hour

var errInvalidToken = errors.New("invalid token")

// TokenManager issues and verifies HS256 session tokens. Expiry is checked
// against the twin's simulated clock.
type TokenManager struct {
	secret []byte
	now    func() time.Time
}

// NewTokenManager creates a manager with a random signing secret.
func NewTokenManager(now func() time.Time) (*TokenManager, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generating token secret: %w", err)
	}
	return &TokenManager{secret: secret, now: now}, nil
}

// Issue returns a signed token for userID and its token ID.
func (m *TokenManager) Issue(userID string) (token, tokenID string, err error) {
	now := m.now()
	tokenID = uuid.NewString()
	claims := jwt.RegisteredClaims{
		Issuer:    "twin-notes",
		Subject:   userID,
		ID:        tokenID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(TokenTTL)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", "", fmt.Errorf("signing token: %w", err)
	}
	return signed, tokenID, nil
}

// Verify parses token and returns its claims.
func (m *TokenManager) Verify(token string) (*jwt.RegisteredClaims, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer("twin-notes"),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidToken, err)
	}
	if claims.Subject == "" || claims.ID == "" {
		return nil, fmt.Errorf("%w: missing subject or id", errInvalidToken)
	}
	return claims, nil
}
