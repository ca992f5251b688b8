package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/tavern/internal/auth/domain"
	"github.com/aussiebroadwan/tavern/internal/auth/store"
	"github.com/aussiebroadwan/tavern/pkg/idx"
	"github.com/aussiebroadwan/tavern/pkg/openidx"
	"github.com/aussiebroadwan/tavern/pkg/slogx"
)

const DefaultFederatedProvider = "steam"

// AssertionVerifier confirms a callback assertion with its provider.
// *openidx.Verifier implements it.
type AssertionVerifier interface {
	IsValid(ctx context.Context, a openidx.Assertion) (bool, error)
}

// FederatedService links local accounts to identities at one external
// OpenID provider and resolves them back on login.
type FederatedService struct {
	Store    store.Store
	Verifier AssertionVerifier
	Provider string
	Now      func() time.Time

	// ReturnTo and Endpoint, when set, must equal the assertion's
	// openid.return_to and openid.op_endpoint. An assertion minted for
	// another relying party or provider is refused before the provider is
	// asked about it.
	ReturnTo string
	Endpoint string
}

// Authenticate verifies the assertion with the provider and links the
// external identity to userID. An identity owned by another account and an
// account that already has a link are both refused.
func (s *FederatedService) Authenticate(
	ctx context.Context,
	userID string,
	a openidx.Assertion,
) (domain.FederatedIdentity, error) {
	l := slogx.FromContext(ctx)

	externalID, err := s.verify(ctx, a)
	if err != nil {
		l.Info("federated assertion rejected", slog.String("user_id", userID), slog.Any("error", err))
		return domain.FederatedIdentity{}, err
	}

	if err := s.checkLinkable(ctx, userID, externalID); err != nil {
		return domain.FederatedIdentity{}, err
	}

	fi := domain.FederatedIdentity{
		ID:         idx.New().String(),
		Provider:   s.provider(),
		ExternalID: externalID,
		UserID:     userID,
		CreatedAt:  s.now(),
	}
	err = s.Store.FederatedIdentities().CreateIdentity(ctx, fi)
	switch {
	case errors.Is(err, store.ErrAlreadyExists):
		// Lost a race with a concurrent link; report it the same way the
		// checks above would have.
		if err := s.checkLinkable(ctx, userID, externalID); err != nil {
			return domain.FederatedIdentity{}, err
		}
		return domain.FederatedIdentity{}, ErrUserAlreadyLinked
	case errors.Is(err, store.ErrNotFound):
		return domain.FederatedIdentity{}, ErrUserNotFound
	case err != nil:
		return domain.FederatedIdentity{}, fmt.Errorf("create federated identity: %w", err)
	}

	l.Info("federated identity linked",
		slog.String("user_id", userID),
		slog.String("provider", fi.Provider),
		slog.String("external_id", externalID),
	)
	return fi, nil
}

// Resolve verifies the assertion and returns the local account linked to it.
// An unlinked identity fails the same way as a rejected assertion.
func (s *FederatedService) Resolve(ctx context.Context, a openidx.Assertion) (domain.User, error) {
	externalID, err := s.verify(ctx, a)
	if err != nil {
		slogx.FromContext(ctx).Info("federated assertion rejected", slog.Any("error", err))
		return domain.User{}, err
	}

	fi, err := s.Store.FederatedIdentities().GetByExternalID(ctx, s.provider(), externalID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrFederatedAuthFailed
	}
	if err != nil {
		return domain.User{}, err
	}

	user, err := s.Store.Users().GetUserByID(ctx, fi.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return domain.User{}, ErrFederatedAuthFailed
	}
	return user, err
}

// verify asks the provider about the assertion and extracts the external id.
// Provider transport failures are reported as ErrFederatedAuthFailed too.
func (s *FederatedService) verify(ctx context.Context, a openidx.Assertion) (string, error) {
	if s.Verifier == nil {
		return "", fmt.Errorf("%w: no provider configured", ErrFederatedAuthFailed)
	}
	if s.ReturnTo != "" && a.ReturnTo != s.ReturnTo {
		return "", fmt.Errorf("%w: return_to mismatch", ErrFederatedAuthFailed)
	}
	if s.Endpoint != "" && a.OPEndpoint != s.Endpoint {
		return "", fmt.Errorf("%w: op_endpoint mismatch", ErrFederatedAuthFailed)
	}

	ok, err := s.Verifier.IsValid(ctx, a)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrFederatedAuthFailed, err)
	}
	if !ok {
		return "", ErrFederatedAuthFailed
	}

	externalID, err := openidx.IdentityFromClaim(a.ClaimedID)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrFederatedAuthFailed, err)
	}
	return externalID, nil
}

func (s *FederatedService) checkLinkable(ctx context.Context, userID, externalID string) error {
	existing, err := s.Store.FederatedIdentities().GetByExternalID(ctx, s.provider(), externalID)
	switch {
	case err == nil && existing.UserID != userID:
		return ErrFederatedIdentityAlreadyLinked
	case err != nil && !errors.Is(err, store.ErrNotFound):
		return err
	}

	_, err = s.Store.FederatedIdentities().GetByUserID(ctx, userID)
	switch {
	case err == nil:
		return ErrUserAlreadyLinked
	case errors.Is(err, store.ErrNotFound):
		return nil
	default:
		return err
	}
}

func (s *FederatedService) provider() string {
	if s.Provider == "" {
		return DefaultFederatedProvider
	}
	return s.Provider
}

func (s *FederatedService) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}
