package httpx

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/tavern/pkg/slogx"
)

// ErrInsufficientScope is returned by an Authorizer when the token is valid but
// lacks a required scope. Any other error is treated as an invalid token.
var ErrInsufficientScope = errors.New("httpx: insufficient scope")

// Authorizer checks a bearer token against the scopes a route requires.
type Authorizer interface {
	AuthorizeBearer(ctx context.Context, token string, required []string) (Identity, error)
}

// AuthorizerFunc adapts a function to Authorizer.
type AuthorizerFunc func(ctx context.Context, token string, required []string) (Identity, error)

func (f AuthorizerFunc) AuthorizeBearer(ctx context.Context, token string, required []string) (Identity, error) {
	return f(ctx, token, required)
}

// AuthnMiddleware requires a bearer token carrying every scope in required.
// Failures answer 401 invalid_token or 403 insufficient_scope per RFC 6750.
func AuthnMiddleware(a Authorizer, required ...string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			log := slogx.FromContext(ctx)

			raw, ok := BearerToken(r)
			if !ok {
				writeBearerError(w, "missing bearer token")
				return
			}

			id, err := a.AuthorizeBearer(ctx, raw, required)
			switch {
			case errors.Is(err, ErrInsufficientScope):
				log.Info("bearer lacks scope", "required", required)
				writeBearerScopeError(w, required...)
				return
			case err != nil:
				log.Warn("bearer rejected", "err", err)
				writeBearerError(w, "token verification failed")
				return
			}

			ctx = slogx.With(ContextWithIdentity(ctx, id), "user_id", id.UserID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer" header.
func BearerToken(r *http.Request) (string, bool) {
	authz := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(authz, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// RFC 6750-compliant error response for bearer auth.
func writeBearerError(w http.ResponseWriter, desc string) {
	w.Header().Set("WWW-Authenticate", `Bearer error="invalid_token", error_description="`+desc+`"`)
	WriteError(w, http.StatusUnauthorized, "invalid_token", desc)
}

// RFC 6750-compliant error response for bearer insufficient_scope.
func writeBearerScopeError(w http.ResponseWriter, required ...string) {
	w.Header().
		Set("WWW-Authenticate", `Bearer error="insufficient_scope", scope="`+strings.Join(required, " ")+`"`)
	WriteError(w, http.StatusForbidden, "insufficient_scope", "token lacks a required scope")
}
