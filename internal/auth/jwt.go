// Package auth adapts the platform identity provider: it issues and verifies
// HS256 bearer tokens carrying the caller's role and profile.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"alumnet/engagement-service/internal/lifecycle"
)

// Claims is the token payload. Subject holds the profile id.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Issuer signs and verifies tokens with a shared key.
type Issuer struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

// NewIssuer returns an Issuer. ttl is the lifetime of issued tokens.
func NewIssuer(signingKey string, ttl time.Duration) *Issuer {
	return &Issuer{key: []byte(signingKey), ttl: ttl, now: time.Now}
}

// Issue creates a token for c.
func (i *Issuer) Issue(c lifecycle.Caller) (string, error) {
	if c.ProfileID <= 0 {
		return "", errors.New("profile id is required")
	}
	now := i.now()
	claims := Claims{
		Role: string(c.Role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(c.ProfileID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.key)
}

// Parse verifies a token and returns the caller it identifies.
func (i *Issuer) Parse(token string) (lifecycle.Caller, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims,
		func(t *jwt.Token) (any, error) { return i.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(i.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return lifecycle.Caller{}, fmt.Errorf("parse token: %w", err)
	}

	role, err := lifecycle.ParseRole(claims.Role)
	if err != nil {
		return lifecycle.Caller{}, err
	}
	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return lifecycle.Caller{}, fmt.Errorf("invalid subject %q", claims.Subject)
	}
	return lifecycle.Caller{Role: role, ProfileID: id}, nil
}
