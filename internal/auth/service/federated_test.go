package service_test

import (
	"context"
	"errors"
	"testing"

	"github.com/aussiebroadwan/tavern/internal/auth/service"
	"github.com/aussiebroadwan/tavern/internal/auth/store"
	"github.com/aussiebroadwan/tavern/pkg/openidx"
	"github.com/stretchr/testify/require"
)

func TestFederatedTamperedAssertionCreatesNothing(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	alice := h.activeUser(t, "alice", "Secret123!")

	_, err := h.auth.ConnectFederatedIdentity(ctx, alice.ID, steamAssertion("76561197960287930", "tampered"))
	require.ErrorIs(t, err, service.ErrFederatedAuthFailed)

	_, err = h.store.FederatedIdentities().GetByUserID(ctx, alice.ID)
	require.ErrorIs(t, err, store.ErrNotFound)
}

func TestFederatedLinking(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	alice := h.activeUser(t, "alice", "Secret123!")
	bob := h.activeUser(t, "bob", "Secret123!")

	fi, err := h.auth.ConnectFederatedIdentity(ctx, alice.ID, steamAssertion("100", "good"))
	require.NoError(t, err)
	require.Equal(t, "100", fi.ExternalID)
	require.Equal(t, "steam", fi.Provider)
	require.Equal(t, alice.ID, fi.UserID)
	require.Equal(t, alice.ID, h.events.last(t, service.EventFederatedIdentityLinked).UserID)

	// Identity owned by alice cannot move to bob.
	_, err = h.auth.ConnectFederatedIdentity(ctx, bob.ID, steamAssertion("100", "good"))
	require.ErrorIs(t, err, service.ErrFederatedIdentityAlreadyLinked)

	// Alice already has a link.
	_, err = h.auth.ConnectFederatedIdentity(ctx, alice.ID, steamAssertion("200", "good"))
	require.ErrorIs(t, err, service.ErrUserAlreadyLinked)

	// Relinking the same identity is also refused.
	_, err = h.auth.ConnectFederatedIdentity(ctx, alice.ID, steamAssertion("100", "good"))
	require.ErrorIs(t, err, service.ErrUserAlreadyLinked)
}

func TestFederatedLogin(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	alice := h.activeUser(t, "alice", "Secret123!")

	_, err := h.auth.LoginFederated(ctx, steamAssertion("100", "good"))
	require.ErrorIs(t, err, service.ErrFederatedAuthFailed, "unlinked identity")

	_, err = h.auth.ConnectFederatedIdentity(ctx, alice.ID, steamAssertion("100", "good"))
	require.NoError(t, err)

	res, err := h.auth.LoginFederated(ctx, steamAssertion("100", "good"))
	require.NoError(t, err)
	require.Equal(t, alice.ID, res.User.ID)

	p, err := h.auth.Authorize(ctx, res.Tokens.AccessToken, "users:me")
	require.NoError(t, err)
	require.Equal(t, alice.ID, p.UserID)

	_, err = h.auth.LoginFederated(ctx, steamAssertion("100", "bad"))
	require.ErrorIs(t, err, service.ErrFederatedAuthFailed)
}

type failingProvider struct{ err error }

func (p failingProvider) IsValid(context.Context, openidx.Assertion) (bool, error) {
	return false, p.err
}

func TestFederatedProviderUnavailable(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	alice := h.activeUser(t, "alice", "Secret123!")

	down := errors.New("connection refused")
	fed := &service.FederatedService{Store: h.store, Verifier: failingProvider{err: down}}

	_, err := fed.Authenticate(ctx, alice.ID, steamAssertion("100", "good"))
	require.ErrorIs(t, err, service.ErrFederatedAuthFailed)
	require.ErrorIs(t, err, down)
}

func TestFederatedRejectsClaimWithoutIdentifier(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	alice := h.activeUser(t, "alice", "Secret123!")

	a := steamAssertion("", "good")
	a.ClaimedID = ""
	_, err := h.auth.ConnectFederatedIdentity(ctx, alice.ID, a)
	require.ErrorIs(t, err, service.ErrFederatedAuthFailed)
}

func TestFederatedRejectsAssertionForAnotherRelyingParty(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	alice := h.activeUser(t, "alice", "Secret123!")

	const (
		returnTo = "https://tavern.test/v1/auth/federated/callback"
		endpoint = "https://steamcommunity.com/openid/login"
	)
	fed := &service.FederatedService{Store: h.store, Verifier: fakeProvider{}, ReturnTo: returnTo, Endpoint: endpoint}

	foreign := steamAssertion("100", "good")
	foreign.ReturnTo = "https://elsewhere.test/openid/callback"
	foreign.OPEndpoint = endpoint
	_, err := fed.Authenticate(ctx, alice.ID, foreign)
	require.ErrorIs(t, err, service.ErrFederatedAuthFailed)

	wrongProvider := steamAssertion("100", "good")
	wrongProvider.ReturnTo = returnTo
	wrongProvider.OPEndpoint = "https://evil.test/openid/login"
	_, err = fed.Resolve(ctx, wrongProvider)
	require.ErrorIs(t, err, service.ErrFederatedAuthFailed)

	_, err = h.store.FederatedIdentities().GetByUserID(ctx, alice.ID)
	require.ErrorIs(t, err, store.ErrNotFound)

	ours := steamAssertion("100", "good")
	ours.ReturnTo = returnTo
	ours.OPEndpoint = endpoint
	fi, err := fed.Authenticate(ctx, alice.ID, ours)
	require.NoError(t, err)
	require.Equal(t, alice.ID, fi.UserID)
}
