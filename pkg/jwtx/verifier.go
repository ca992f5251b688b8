package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Verifier validates a JWT and gives you back the claims if it's legit.
type Verifier interface {
	Verify(token string) (Claims, error)
}

// VerifyOptions captures common expectations used by verifiers.
type VerifyOptions struct {
	// Issuer the token must have (claims.iss). Empty means "don't care".
	Issuer string

	// Leeway allows small clock skew when validating exp/nbf.
	Leeway time.Duration

	// Now overrides the clock, mostly for tests.
	Now func() time.Time
}

var (
	// ErrTokenInvalid wraps every verification failure.
	ErrTokenInvalid = errors.New("jwtx: token invalid")

	ErrMalformed   = errors.New("jwtx: malformed token")
	ErrAlgMismatch = errors.New("jwtx: algorithm mismatch")
	ErrInvalidSig  = errors.New("jwtx: invalid signature")

	ErrIssuer      = errors.New("jwtx: issuer mismatch")
	ErrExpired     = errors.New("jwtx: token expired")
	ErrNotYetValid = errors.New("jwtx: token not yet valid")
)

// HMACVerifier validates HS256 tokens signed with the same secret as an
// HMACSigner.
type HMACVerifier struct {
	key  []byte
	opts VerifyOptions
}

// NewHMACVerifier copies secret, which must be at least MinSecretLength bytes.
func NewHMACVerifier(secret []byte, opts VerifyOptions) (*HMACVerifier, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("jwtx: hmac secret must be at least %d bytes, got %d", MinSecretLength, len(secret))
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &HMACVerifier{key: append([]byte(nil), secret...), opts: opts}, nil
}

// Verify parses token, checks the signature, algorithm, exp, nbf and issuer and
// returns the claims. Every failure wraps ErrTokenInvalid and one of the more
// specific errors above.
func (v *HMACVerifier) Verify(token string) (Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.opts.Leeway),
		jwt.WithTimeFunc(v.opts.Now),
	)

	var claims Claims
	parsed, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.key, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %w", ErrTokenInvalid, classify(err))
	}
	if !parsed.Valid {
		return Claims{}, fmt.Errorf("%w: %w", ErrTokenInvalid, ErrMalformed)
	}

	if err := claims.ValidateIssuer(v.opts.Issuer); err != nil {
		return Claims{}, fmt.Errorf("%w: %w", ErrTokenInvalid, err)
	}

	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet):
		return ErrNotYetValid
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrInvalidSig
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrAlgMismatch
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return ErrExpired
	default:
		return ErrMalformed
	}
}
