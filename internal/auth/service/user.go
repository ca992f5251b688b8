package service

import (
	"context"
	"errors"

	"github.com/aussiebroadwan/tavern/internal/auth/domain"
	"github.com/aussiebroadwan/tavern/internal/auth/store"
)

// Profile is an account as its owner sees it.
type Profile struct {
	User      domain.User
	Scopes    []string
	Federated *domain.FederatedIdentity
}

type UserService struct {
	Store    store.Store
	Resolver *ScopeResolver
}

// GetUserByID fetches a user by id.
func (s *UserService) GetUserByID(ctx context.Context, userID string) (domain.User, error) {
	user, err := s.Store.Users().GetUserByID(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrUserNotFound
	}
	return user, err
}

// Profile loads the account with its effective scopes and federated link.
func (s *UserService) Profile(ctx context.Context, userID string) (Profile, error) {
	user, err := s.GetUserByID(ctx, userID)
	if err != nil {
		return Profile{}, err
	}

	p := Profile{User: user, Scopes: s.Resolver.EffectiveScopes(user.Roles)}

	fi, err := s.Store.FederatedIdentities().GetByUserID(ctx, userID)
	switch {
	case err == nil:
		p.Federated = &fi
	case !errors.Is(err, store.ErrNotFound):
		return Profile{}, err
	}
	return p, nil
}
