package service

import (
	"fmt"
	"time"

	"github.com/aussiebroadwan/tavern/internal/auth/domain"
	"github.com/aussiebroadwan/tavern/pkg/jwtx"
)

// TokenConfig configures one TokenService instance. Access and refresh tokens
// get separate instances with separate secrets.
type TokenConfig struct {
	Secret []byte
	TTL    time.Duration
	Issuer string
	Leeway time.Duration

	// Now overrides the clock for issuing and verifying. Defaults to time.Now.
	Now func() time.Time
}

// TokenService issues and decodes HS256 bearer tokens.
type TokenService struct {
	signer   *jwtx.HMACSigner
	verifier *jwtx.HMACVerifier
	ttl      time.Duration
	issuer   string
	now      func() time.Time
}

func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if cfg.TTL <= 0 {
		return nil, fmt.Errorf("token ttl must be positive, got %s", cfg.TTL)
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	signer, err := jwtx.NewHMACSigner(cfg.Secret)
	if err != nil {
		return nil, err
	}
	verifier, err := jwtx.NewHMACVerifier(cfg.Secret, jwtx.VerifyOptions{
		Issuer: cfg.Issuer,
		Leeway: cfg.Leeway,
		Now:    cfg.Now,
	})
	if err != nil {
		return nil, err
	}

	return &TokenService{
		signer:   signer,
		verifier: verifier,
		ttl:      cfg.TTL,
		issuer:   cfg.Issuer,
		now:      cfg.Now,
	}, nil
}

// TTL is the lifetime used when Issue is given none.
func (s *TokenService) TTL() time.Duration { return s.ttl }

// Issue stamps iss, iat, nbf, exp and jti onto claims and signs them.
// ttl <= 0 uses the instance default.
func (s *TokenService) Issue(claims jwtx.Claims, ttl time.Duration) (string, time.Time, error) {
	if ttl <= 0 {
		ttl = s.ttl
	}

	claims.Stamp(s.issuer, s.now().UTC(), ttl)
	token, err := s.signer.Sign(claims)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return token, claims.ExpiresAt.Time, nil
}

// Decode verifies the signature, algorithm, issuer and expiry. Every failure
// wraps jwtx.ErrTokenInvalid.
func (s *TokenService) Decode(token string) (jwtx.Claims, error) {
	return s.verifier.Verify(token)
}

// DecodePrincipal is Decode plus a non-empty subject. It reports every
// failure as ErrInvalidCredentials.
func (s *TokenService) DecodePrincipal(token string) (domain.Principal, error) {
	claims, err := s.Decode(token)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("%w: %w", ErrInvalidCredentials, err)
	}
	if claims.Subject == "" {
		return domain.Principal{}, ErrInvalidCredentials
	}

	return domain.Principal{
		UserID:    claims.Subject,
		Scopes:    claims.Scopes,
		Secret:    claims.Secret,
		SessionID: claims.SID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}
