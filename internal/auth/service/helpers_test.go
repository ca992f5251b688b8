package service_test

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aussiebroadwan/tavern/internal/auth/domain"
	"github.com/aussiebroadwan/tavern/internal/auth/service"
	"github.com/aussiebroadwan/tavern/internal/auth/store/drivers/redis"
	"github.com/aussiebroadwan/tavern/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/tavern/pkg/cryptox"
	"github.com/aussiebroadwan/tavern/pkg/openidx"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

const (
	accessSecret  = "access-secret-access-secret-0123456789"
	refreshSecret = "refresh-secret-refresh-secret-0123456789"
	testIssuer    = "tavern-test"
)

// clock is a settable time source shared by every component under test.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// recorder keeps every observed event.
type recorder struct {
	mu     sync.Mutex
	events []service.Event
}

func (r *recorder) Notify(_ context.Context, e service.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// last returns the most recent event of type t.
func (r *recorder) last(t *testing.T, typ service.EventType) service.Event {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Type == typ {
			return r.events[i]
		}
	}
	t.Fatalf("no %s event recorded", typ)
	return service.Event{}
}

// fakeProvider accepts assertions whose signature is "good".
type fakeProvider struct{}

func (fakeProvider) IsValid(_ context.Context, a openidx.Assertion) (bool, error) {
	return a.Sig == "good", nil
}

func steamAssertion(externalID, sig string) openidx.Assertion {
	return openidx.Assertion{
		NS:        openidx.Namespace,
		Mode:      openidx.ModeIDRes,
		ClaimedID: "https://steamcommunity.com/openid/id/" + externalID,
		Identity:  "https://steamcommunity.com/openid/id/" + externalID,
		Sig:       sig,
	}
}

type harness struct {
	auth      *service.AuthService
	roles     *service.RolesService
	users     *service.UserService
	bootstrap *service.BootstrapService
	store     *sqlite.Store
	redis     *miniredis.Miniredis
	clock     *clock
	events    *recorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.ApplyMigrations())

	mr := miniredis.RunT(t)
	kv := redis.NewStore(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = kv.Close() })

	clk := &clock{now: time.Now().UTC().Truncate(time.Second)}

	access, err := service.NewTokenService(service.TokenConfig{
		Secret: []byte(accessSecret), TTL: 15 * time.Minute, Issuer: testIssuer, Now: clk.Now,
	})
	require.NoError(t, err)
	refresh, err := service.NewTokenService(service.TokenConfig{
		Secret: []byte(refreshSecret), TTL: 14 * 24 * time.Hour, Issuer: testIssuer, Now: clk.Now,
	})
	require.NoError(t, err)

	resolver := service.NewScopeResolver()
	events := &recorder{}

	auth := &service.AuthService{
		Store:         db,
		Hasher:        cryptox.NewArgon2Hasher(cryptox.Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1}, "pepper"),
		AccessTokens:  access,
		RefreshTokens: refresh,
		Scopes:        resolver,
		Codes:         service.NewVerificationCodeStore(kv),
		Federated:     &service.FederatedService{Store: db, Verifier: fakeProvider{}, Now: clk.Now},
		Observer:      events,
		CodeConfig:    service.DefaultCodeConfig,
		Now:           clk.Now,
	}
	roles := &service.RolesService{Store: db, Resolver: resolver}
	require.NoError(t, roles.SeedRoles(ctx))

	return &harness{
		auth:      auth,
		roles:     roles,
		users:     &service.UserService{Store: db, Resolver: resolver},
		bootstrap: &service.BootstrapService{Store: db, Roles: roles, Auth: auth, Token: "bootstrap-token"},
		store:     db,
		redis:     mr,
		clock:     clk,
		events:    events,
	}
}

// activeUser registers and activates an account and returns it.
func (h *harness) activeUser(t *testing.T, username, password string) domain.User {
	t.Helper()
	ctx := context.Background()

	res, err := h.auth.Register(ctx, service.RegisterInput{
		Username: username,
		Email:    strings.ToLower(username) + "@x.test",
		Password: password,
	})
	require.NoError(t, err)
	require.NoError(t, h.auth.Activate(ctx, res.ActivationCode))
	return res.User
}

func (h *harness) login(t *testing.T, username, password string) domain.TokenPair {
	t.Helper()
	res, err := h.auth.Authenticate(context.Background(), username, password)
	require.NoError(t, err)
	return res.Tokens
}
