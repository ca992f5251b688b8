package auth_test

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/network"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/aussiebroadwan/tavern/pkg/authsdk"
)

/*
 * Common constants and helper functions for auth service end-to-end tests.
 * Each test gets its own network with a redis container and an auth
 * container. The auth container runs with ENV=dev, so verification codes
 * show up in its log, which is where these tests read them from.
 */

const (
	testImageName = "tavern-auth-test:latest"

	bootstrapToken = "test-bootstrap-token-12345"
	adminUsername  = "admin"
	adminEmail     = "admin@tavern.test"
	adminPassword  = "Admin123!"
)

// TestMain manages the test lifecycle, builds the Docker image once before
// all tests and cleans it up after all tests complete.
func TestMain(m *testing.M) {
	flag.Parse()
	if testing.Short() {
		fmt.Fprintln(os.Stdout, "skipping e2e tests in short mode")
		os.Exit(0)
	}

	fmt.Fprintf(os.Stdout, "Building Auth Service Docker image...")

	// Build the Docker image once before all tests
	if err := buildDockerImage(); err != nil {
		fmt.Fprintf(os.Stderr, "\nFailed to build Docker image: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintf(os.Stdout, " done\n")

	exitCode := m.Run()

	fmt.Fprintf(os.Stdout, "Cleaning up Auth Service Docker image...")
	cleanupDockerImage()
	fmt.Fprintf(os.Stdout, " done\n")

	os.Exit(exitCode)
}

// buildDockerImage builds the test Docker image.
func buildDockerImage() error {
	ctx := context.Background()
	cmd := exec.CommandContext(ctx, "docker", "build",
		"-t", testImageName,
		"-f", "../../../cmd/auth/Dockerfile",
		"../../../")
	cmd.Dir = "."
	cmd.Stdout = os.Stdout
	cmd.Stderr = nil

	return cmd.Run()
}

// cleanupDockerImage removes the test Docker image.
func cleanupDockerImage() {
	ctx := context.Background()
	cmd := exec.CommandContext(ctx, "docker", "rmi", "-f", testImageName)
	_ = cmd.Run() // Ignore errors - image might not exist
}

// authService is a running auth container.
type authService struct {
	baseURL   string
	container testcontainers.Container
}

// relaxedRateLimits keeps tests that make many rapid requests clear of the
// production limits.
var relaxedRateLimits = map[string]string{
	"RATELIMIT_STRICT_REQUESTS":   "1000",
	"RATELIMIT_STRICT_WINDOW_SEC": "60",
	"RATELIMIT_STRICT_BURST":      "1000",
	"RATELIMIT_MODERATE_REQUESTS": "1000",
	"RATELIMIT_MODERATE_BURST":    "1000",
}

// setupAuthContainer starts redis and the auth service with relaxed rate limits.
func setupAuthContainer(t *testing.T) *authService {
	return startAuthService(t, relaxedRateLimits)
}

// setupAuthContainerWithDefaultRateLimits starts the auth service with the
// production rate limits. Only the rate limit tests should need it.
func setupAuthContainerWithDefaultRateLimits(t *testing.T) *authService {
	return startAuthService(t, nil)
}

func startAuthService(t *testing.T, extraEnv map[string]string) *authService {
	t.Helper()
	ctx := context.Background()

	nw, err := network.New(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { _ = nw.Remove(context.Background()) })

	redisC, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:          "redis:7-alpine",
			ExposedPorts:   []string{"6379/tcp"},
			Networks:       []string{nw.Name},
			NetworkAliases: map[string][]string{nw.Name: {"redis"}},
			WaitingFor:     wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := redisC.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate redis container: %v", err)
		}
	})

	env := map[string]string{
		"BOOTSTRAP_TOKEN":     bootstrapToken,
		"AUTH_DATABASE_FILE":  "/data/auth.db",
		"AUTH_PEPPER_FILE":    "/data/pepper",
		"AUTH_ISSUER":         "tavern-auth",
		"AUTH_ACCESS_SECRET":  "e2e-access-secret-0123456789abcdef0123",
		"AUTH_REFRESH_SECRET": "e2e-refresh-secret-0123456789abcdef012",
		"REDIS_ADDR":          "redis:6379",
		"ENV":                 "dev",
		"LOG_LEVEL":           "info",
		"LOG_FORMAT":          "json",
	}
	for k, v := range extraEnv {
		env[k] = v
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        testImageName,
			ExposedPorts: []string{"8080/tcp"},
			Env:          env,
			Networks:     []string{nw.Name},
			WaitingFor: wait.ForHTTP("/livez").
				WithPort("8080/tcp").
				WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	mappedPort, err := container.MappedPort(ctx, "8080")
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)

	return &authService{
		baseURL:   fmt.Sprintf("http://%s:%s", host, mappedPort.Port()),
		container: container,
	}
}

func (s *authService) client() *authsdk.SDKClient {
	return authsdk.NewSDKClient(s.baseURL)
}

// accountEvent is the part of an "account event" log line the tests read.
type accountEvent struct {
	Msg    string `json:"msg"`
	Event  string `json:"event"`
	UserID string `json:"user_id"`
	Code   string `json:"code"`
}

// code returns the latest verification code logged for event and userID.
func (s *authService) code(t *testing.T, event, userID string) string {
	t.Helper()

	var code string
	require.Eventually(t, func() bool {
		code = s.latestCode(t, event, userID)
		return code != ""
	}, 10*time.Second, 200*time.Millisecond, "no %s code logged for %s", event, userID)
	return code
}

func (s *authService) latestCode(t *testing.T, event, userID string) string {
	logs, err := s.container.Logs(context.Background())
	require.NoError(t, err)
	defer logs.Close()

	var code string
	scanner := bufio.NewScanner(logs)
	for scanner.Scan() {
		line := scanner.Text()
		start := strings.IndexByte(line, '{')
		if start < 0 {
			continue
		}

		var e accountEvent
		if err := json.Unmarshal([]byte(line[start:]), &e); err != nil {
			continue
		}
		if e.Msg == "account event" && e.Event == event && e.UserID == userID && e.Code != "" {
			code = e.Code
		}
	}
	return code
}

// bootstrapService creates the admin account and returns its user id.
func bootstrapService(t *testing.T, client *authsdk.SDKClient) string {
	t.Helper()

	resp, err := client.Bootstrap(t.Context(), bootstrapToken, authsdk.BootstrapRequest{
		AdminUsername: adminUsername,
		AdminEmail:    adminEmail,
		AdminPassword: adminPassword,
	})
	require.NoError(t, err, "Bootstrap should succeed")
	require.NotEmpty(t, resp.AdminUserID, "Admin user ID should not be empty")

	return resp.AdminUserID
}

// registerMember signs up and activates an account, returning its id.
func registerMember(t *testing.T, s *authService, username, password string) string {
	t.Helper()
	client := s.client()

	reg, err := client.Register(t.Context(), authsdk.RegisterRequest{
		Username: username,
		Email:    username + "@tavern.test",
		Password: password,
	})
	require.NoError(t, err, "Register should succeed")

	require.NoError(t, client.Activate(t.Context(), s.code(t, "user.registered", reg.UserID)))
	return reg.UserID
}

// performLogin logs in with a password and returns a session.
func performLogin(t *testing.T, client *authsdk.SDKClient, username, password string) *authsdk.Session {
	t.Helper()

	session, err := client.AuthenticateWithPassword(t.Context(), username, password)
	require.NoError(t, err, "Login should succeed")
	require.NotNil(t, session, "Session should not be nil")

	return session
}

// assertTokenResponse verifies a token response has all required fields.
func assertTokenResponse(t *testing.T, resp *authsdk.TokenResponse) {
	t.Helper()
	require.NotNil(t, resp)
	require.NotEmpty(t, resp.AccessToken, "Access token should not be empty")
	require.NotEmpty(t, resp.RefreshToken, "Refresh token should not be empty")
	require.Equal(t, "Bearer", resp.TokenType, "Token type should be Bearer")
	require.NotEmpty(t, resp.SessionID, "Session ID should not be empty")
}

// assertCode checks that err is an API error with the given status and code.
func assertCode(t *testing.T, err error, status int, code, context string) {
	t.Helper()
	require.Error(t, err, context)

	var apiErr *authsdk.APIError
	require.ErrorAs(t, err, &apiErr, context)
	require.Equal(t, status, apiErr.StatusCode, "%s: %v", context, err)
	require.Equal(t, code, apiErr.Code, "%s: %v", context, err)
}

// assertHealthy verifies a health check response is OK.
func assertHealthy(t *testing.T, health *authsdk.HealthResponse, err error) {
	t.Helper()
	require.NoError(t, err)
	require.NotNil(t, health)
	require.Equal(t, "ok", health.Status)
}
