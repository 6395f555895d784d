// Package session issues and verifies the signed tokens that identify the
// acting user on each HTTP request.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"lockbox/internal/lockbox"
)

// MinSecretLength is the minimum HMAC secret size in bytes.
const MinSecretLength = 32

const issuer = "lockbox"

// ErrInvalidToken is returned for tokens that are malformed, expired,
// signed with another key or revoked. It wraps lockbox.ErrAuthenticationRequired.
var ErrInvalidToken = fmt.Errorf("%w: invalid session token", lockbox.ErrAuthenticationRequired)

// Manager issues HS256 JWTs whose subject is the username.
type Manager struct {
	secret  []byte
	ttl     time.Duration
	revoked RevocationStore
	clock   lockbox.Clock
}

// NewManager creates a Manager. The secret must be at least MinSecretLength bytes.
func NewManager(secret string, ttl time.Duration, revoked RevocationStore, clock lockbox.Clock) (*Manager, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("token secret must be at least %d bytes, got %d", MinSecretLength, len(secret))
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("token ttl must be positive, got %s", ttl)
	}
	return &Manager{
		secret:  []byte(secret),
		ttl:     ttl,
		revoked: revoked,
		clock:   clock,
	}, nil
}

// TTL returns how long issued tokens stay valid.
func (m *Manager) TTL() time.Duration {
	return m.ttl
}

// Issue returns a signed token for username and its expiry time.
func (m *Manager) Issue(username string) (string, time.Time, error) {
	now := m.clock.Now()
	expires := now.Add(m.ttl)

	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   username,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	return signed, expires, nil
}

// Verify checks a token and returns the username it was issued to.
func (m *Manager) Verify(ctx context.Context, tokenString string) (string, error) {
	claims, err := m.parse(tokenString)
	if err != nil {
		return "", err
	}

	revoked, err := m.revoked.IsRevoked(ctx, claims.ID)
	if err != nil {
		return "", fmt.Errorf("checking revocation: %w", err)
	}
	if revoked {
		return "", fmt.Errorf("%w: revoked", ErrInvalidToken)
	}
	return claims.Subject, nil
}

// Revoke invalidates a token until it would have expired anyway.
func (m *Manager) Revoke(ctx context.Context, tokenString string) error {
	claims, err := m.parse(tokenString)
	if err != nil {
		return err
	}
	return m.revoked.Revoke(ctx, claims.ID, claims.ExpiresAt.Time)
}

func (m *Manager) parse(tokenString string) (*jwt.RegisteredClaims, error) {
	if tokenString == "" {
		return nil, lockbox.ErrAuthenticationRequired
	}

	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(m.clock.Now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" || claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}

// IsInvalidToken reports whether err came from a rejected token.
func IsInvalidToken(err error) bool {
	return errors.Is(err, ErrInvalidToken)
}
