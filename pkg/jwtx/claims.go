package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default lifetimes for the two token kinds.
const (
	// DefaultAccessTokenTTL keeps bearer tokens short-lived; a stolen access
	// token is useful for at most this long after a salt rotation misses it.
	DefaultAccessTokenTTL = 15 * time.Minute

	// DefaultRefreshTokenTTL is how long a login survives without a password.
	DefaultRefreshTokenTTL = 14 * 24 * time.Hour
)

// Claims are the claims carried by both access and refresh tokens.
type Claims struct {
	jwt.RegisteredClaims

	// Login session identifier, shared by the access and refresh token of
	// one login.
	SID string `json:"sid,omitempty"`

	// Effective permission scopes at issue time, "namespace:action".
	Scopes []string `json:"scopes,omitempty"`

	// Secret is the user's secret salt at issue time. Tokens whose salt no
	// longer matches the stored one are revoked.
	Secret string `json:"sst,omitempty"`
}

// NewClaims builds the identity part of a token. Timestamps, jti and issuer are
// filled in when the token is issued.
func NewClaims(subject, sessionID, secret string, scopes []string) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: subject},
		SID:              sessionID,
		Scopes:           scopes,
		Secret:           secret,
	}
}

// Stamp sets iss, iat, nbf, exp and a fresh jti.
func (c *Claims) Stamp(issuer string, now time.Time, ttl time.Duration) {
	c.Issuer = issuer
	c.IssuedAt = jwt.NewNumericDate(now)
	c.NotBefore = jwt.NewNumericDate(now)
	c.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	c.ID = NewJTI()
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil // nothing to enforce
	}

	if c.Issuer != expected {
		return ErrIssuer
	}

	return nil
}

// ValidateExpiry ensures the token hasn't expired (exp) and isn't before nbf.
func (c *Claims) ValidateExpiry() error {
	return c.ValidateExpiryAt(time.Now().UTC())
}

// ValidateExpiryAt is ValidateExpiry against an explicit clock. A token without
// exp is treated as expired.
func (c *Claims) ValidateExpiryAt(now time.Time) error {
	if c.ExpiresAt == nil || !now.Before(c.ExpiresAt.Time) {
		return ErrExpired
	}

	if c.NotBefore != nil && now.Before(c.NotBefore.Time) {
		return ErrNotYetValid
	}

	return nil
}
