package operator

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidSessionToken is returned when a dashboard session token is
// malformed, forged, or expired.
var ErrInvalidSessionToken = errors.New("invalid session token")

const tokenIssuer = "gradeproof"

// SessionClaims holds JWT claims for an operator dashboard session.
type SessionClaims struct {
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies operator session tokens using HS256.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer returns a TokenIssuer. secret must be non-empty; ttl falls
// back to 12 hours when zero.
func NewTokenIssuer(secret []byte, ttl time.Duration) (*TokenIssuer, error) {
	if len(secret) == 0 {
		return nil, errors.New("session token secret is required")
	}
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	return &TokenIssuer{secret: secret, ttl: ttl, now: func() time.Time { return time.Now().UTC() }}, nil
}

// SetClock overrides the issuer clock, for tests.
func (ti *TokenIssuer) SetClock(now func() time.Time) {
	ti.now = now
}

// Issue signs a session token for the operator.
func (ti *TokenIssuer) Issue(username string) (token string, expiresAt time.Time, err error) {
	now := ti.now()
	expiresAt = now.Add(ti.ttl)
	claims := SessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			Issuer:    tokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(ti.secret)
	return token, expiresAt, err
}

// Verify parses a session token and returns the operator username.
func (ti *TokenIssuer) Verify(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSessionToken
		}
		return ti.secret, nil
	}, jwt.WithTimeFunc(ti.now))
	if err != nil {
		return "", ErrInvalidSessionToken
	}
	claims, ok := token.Claims.(*SessionClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidSessionToken
	}
	if claims.Issuer != tokenIssuer || claims.Subject == "" {
		return "", ErrInvalidSessionToken
	}
	return claims.Subject, nil
}
