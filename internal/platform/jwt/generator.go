package jwtmw

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// EnvKeySessionSecret is the environment variable holding the HMAC secret for session tokens.
const EnvKeySessionSecret = "SESSION_SECRET"

// ErrInvalidToken is returned when a session token cannot be verified.
var ErrInvalidToken = errors.New("invalid session token")

// generator signs and verifies session tokens whose subject is the session UUID.
type generator struct {
	secret     []byte
	expiration time.Duration
}

// NewGenerator creates a new JWT generator with the provided secret and expiration duration.
func NewGenerator(secret string, expiration time.Duration) *generator {
	return &generator{
		secret:     []byte(secret),
		expiration: expiration,
	}
}

// GenerateToken creates a signed JWT token with standard claims for the session.
func (g *generator) GenerateToken(sessionID string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   sessionID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(g.expiration)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(g.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, nil
}

// ParseToken verifies the token and returns the session ID from its subject.
func (g *generator) ParseToken(tokenStr string) (string, error) {
	id, _, err := g.parse(tokenStr)
	return id, err
}

// parse verifies the token and returns the session ID and the token's expiry.
func (g *generator) parse(tokenStr string) (string, time.Time, error) {
	var claims jwt.RegisteredClaims
	token, err := jwt.ParseWithClaims(tokenStr, &claims, func(t *jwt.Token) (interface{}, error) {
		// Check signing algorithm (only HMAC allowed)
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return g.secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return "", time.Time{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	id, err := uuid.Parse(claims.Subject)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: subject is not a session id", ErrInvalidToken)
	}
	return id.String(), claims.ExpiresAt.Time, nil
}

// needsRenewal reports whether a token expiring at exp has used up half its lifetime.
func (g *generator) needsRenewal(exp time.Time) bool {
	return time.Until(exp) < g.expiration/2
}
