package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	httpapi "github.com/aussiebroadwan/tavern/internal/auth/http"
	"github.com/aussiebroadwan/tavern/internal/auth/service"
	"github.com/aussiebroadwan/tavern/internal/auth/store/drivers/redis"
	"github.com/aussiebroadwan/tavern/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/tavern/pkg/authsdk"
	"github.com/aussiebroadwan/tavern/pkg/cryptox"
	"github.com/aussiebroadwan/tavern/pkg/httpx"
	"github.com/aussiebroadwan/tavern/pkg/openidx"
	"github.com/aussiebroadwan/tavern/pkg/slogx"
)

const (
	bootstrapToken   = "test-bootstrap-token-12345"
	providerEndpoint = "https://provider.test/openid/login"
	returnTo         = "https://tavern.test/v1/auth/federated/callback"
)

// TestMain lifts the rate limits; every test request comes from the same
// httptest address.
func TestMain(m *testing.M) {
	relaxed := httpx.RateLimitConfig{RequestsPerWindow: 10000, Window: time.Minute, Burst: 10000}
	httpx.StrictLimit = relaxed
	httpx.ModerateLimit = relaxed
	httpx.LenientLimit = relaxed
	os.Exit(m.Run())
}

// mailbox keeps the codes the service hands to its observer.
type mailbox struct {
	mu    sync.Mutex
	codes map[service.EventType]string
}

func (m *mailbox) Notify(_ context.Context, e service.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e.Code != "" {
		m.codes[e.Type] = e.Code
	}
	return nil
}

func (m *mailbox) code(t *testing.T, typ service.EventType) string {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	code, ok := m.codes[typ]
	require.True(t, ok, "no code delivered for %s", typ)
	return code
}

// fakeProvider accepts assertions signed "good".
type fakeProvider struct{}

func (fakeProvider) IsValid(_ context.Context, a openidx.Assertion) (bool, error) {
	return a.Sig == "good", nil
}

func assertion(externalID, sig string) openidx.Assertion {
	claim := "https://steamcommunity.com/openid/id/" + externalID
	return openidx.Assertion{
		NS:        openidx.Namespace,
		Mode:      openidx.ModeIDRes,
		ClaimedID: claim,
		Identity:  claim,
		Sig:       sig,
	}
}

type server struct {
	router *httpapi.Router
	redis  *miniredis.Miniredis
	mail   *mailbox
}

func newServer(t *testing.T) *server {
	t.Helper()

	db, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, db.ApplyMigrations())

	mr := miniredis.RunT(t)
	kv := redis.NewStore(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = kv.Close() })

	access, err := service.NewTokenService(service.TokenConfig{
		Secret: []byte("access-secret-access-secret-0123456789"), TTL: 15 * time.Minute, Issuer: "tavern-test",
	})
	require.NoError(t, err)
	refresh, err := service.NewTokenService(service.TokenConfig{
		Secret: []byte("refresh-secret-refresh-secret-0123456789"), TTL: 24 * time.Hour, Issuer: "tavern-test",
	})
	require.NoError(t, err)

	resolver := service.NewScopeResolver()
	mail := &mailbox{codes: make(map[service.EventType]string)}

	auth := &service.AuthService{
		Store:         db,
		Hasher:        cryptox.NewArgon2Hasher(cryptox.Argon2Params{Memory: 1024, Iterations: 1, Parallelism: 1}, "pepper"),
		AccessTokens:  access,
		RefreshTokens: refresh,
		Scopes:        resolver,
		Codes:         service.NewVerificationCodeStore(kv),
		Federated:     &service.FederatedService{Store: db, Verifier: fakeProvider{}},
		Observer:      mail,
		CodeConfig:    service.DefaultCodeConfig,
	}
	roles := &service.RolesService{Store: db, Resolver: resolver}
	require.NoError(t, roles.SeedRoles(context.Background()))

	r := httpapi.NewRouter("test", db, kv, slogx.Discard())
	r.AuthService = auth
	r.UserService = &service.UserService{Store: db, Resolver: resolver}
	r.RolesService = roles
	r.BootstrapService = &service.BootstrapService{Store: db, Roles: roles, Auth: auth, Token: bootstrapToken}
	r.OpenID = openidx.NewVerifier(providerEndpoint, "https://tavern.test", time.Second)
	r.OpenIDReturnTo = returnTo
	r.ApplyRoutes()

	return &server{router: r, redis: mr, mail: mail}
}

// do sends a request through the full router. body is JSON encoded unless it
// is nil.
func (s *server) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// requireError checks status and error code of a failed response.
func requireError(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) authsdk.ErrorResponse {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	resp := decodeBody[authsdk.ErrorResponse](t, rec)
	require.Equal(t, code, resp.Error)
	return resp
}

// bootstrap creates the admin account over HTTP and logs it in.
func (s *server) bootstrap(t *testing.T) authsdk.TokenResponse {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/v1/bootstrap", strings.NewReader(
		`{"admin_username":"admin","admin_email":"admin@tavern.test","admin_password":"Admin123!"}`))
	req.Header.Set(httpapi.BootstrapTokenHeader, bootstrapToken)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	return s.login(t, "admin", "Admin123!")
}

// member registers, activates and logs in an account.
func (s *server) member(t *testing.T, username, password string) (authsdk.RegisterResponse, authsdk.TokenResponse) {
	t.Helper()

	rec := s.do(t, http.MethodPost, "/v1/auth/register", "", authsdk.RegisterRequest{
		Username: username,
		Email:    strings.ToLower(username) + "@tavern.test",
		Password: password,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	reg := decodeBody[authsdk.RegisterResponse](t, rec)

	rec = s.do(t, http.MethodPost, "/v1/auth/activate", "", authsdk.CodeRequest{
		Code: s.mail.code(t, service.EventUserRegistered),
	})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	return reg, s.login(t, username, password)
}

func (s *server) login(t *testing.T, username, password string) authsdk.TokenResponse {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/v1/auth/login", "", authsdk.LoginRequest{Username: username, Password: password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decodeBody[authsdk.TokenResponse](t, rec)
}
