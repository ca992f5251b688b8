package http

import (
	"context"
	"errors"
	"fmt"

	"github.com/aussiebroadwan/tavern/internal/auth/service"
	"github.com/aussiebroadwan/tavern/pkg/httpx"
)

// Authorizer adapts AuthService.Authorize to httpx.Authorizer.
type Authorizer struct {
	Auth *service.AuthService
}

func NewAuthorizer(auth *service.AuthService) *Authorizer {
	return &Authorizer{Auth: auth}
}

func (a *Authorizer) AuthorizeBearer(ctx context.Context, token string, required []string) (httpx.Identity, error) {
	p, err := a.Auth.Authorize(ctx, token, required...)
	if errors.Is(err, service.ErrNoPermissions) {
		return httpx.Identity{}, fmt.Errorf("%w: %w", httpx.ErrInsufficientScope, err)
	}
	if err != nil {
		return httpx.Identity{}, err
	}

	return httpx.Identity{
		UserID:    p.UserID,
		SessionID: p.SessionID,
		Scopes:    p.Scopes,
	}, nil
}
