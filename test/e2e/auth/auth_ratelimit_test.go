package auth_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aussiebroadwan/tavern/pkg/authsdk"
)

// TestRateLimitLoginEndpoint verifies that login is rate limited per IP and
// username. The strict limit is 5 req/min.
func TestRateLimitLoginEndpoint(t *testing.T) {
	client := setupAuthContainerWithDefaultRateLimits(t).client()
	ctx := context.Background()

	for range 5 {
		_, err := client.Login(ctx, "wronguser", "wrongpass")
		assertCode(t, err, http.StatusUnauthorized, authsdk.ErrorCodeIncorrectCredentials,
			"Should not be rate limited yet")
	}

	_, err := client.Login(ctx, "wronguser", "wrongpass")
	assertCode(t, err, http.StatusTooManyRequests, authsdk.ErrorCodeRateLimitExceeded,
		"Should be rate limited after 5 requests")

	// A different username keeps its own counter.
	_, err = client.Login(ctx, "otheruser", "wrongpass")
	assertCode(t, err, http.StatusUnauthorized, authsdk.ErrorCodeIncorrectCredentials,
		"Other usernames should not share the counter")

	t.Logf("Successfully rate limited /v1/auth/login after 5 requests")
}

// TestRateLimitBootstrapEndpoint verifies that the /bootstrap endpoint is rate limited.
func TestRateLimitBootstrapEndpoint(t *testing.T) {
	client := setupAuthContainerWithDefaultRateLimits(t).client()
	ctx := context.Background()

	req := authsdk.BootstrapRequest{
		AdminUsername: "admin",
		AdminEmail:    "admin@tavern.test",
		AdminPassword: "Admin123!",
	}

	var lastErr error
	for range 6 {
		_, lastErr = client.Bootstrap(ctx, "wrong-token", req)
		require.Error(t, lastErr)
	}
	assertCode(t, lastErr, http.StatusTooManyRequests, authsdk.ErrorCodeRateLimitExceeded,
		"Bootstrap should be rate limited")
}

// TestRateLimitHealthEndpoints verifies probes are not throttled at normal rates.
func TestRateLimitHealthEndpoints(t *testing.T) {
	client := setupAuthContainerWithDefaultRateLimits(t).client()
	ctx := context.Background()

	for range 30 {
		health, err := client.GetLiveness(ctx)
		assertHealthy(t, health, err)

		health, err = client.GetReadiness(ctx)
		assertHealthy(t, health, err)
	}
}

// TestRateLimitResponseFormat checks the headers and body of a 429.
func TestRateLimitResponseFormat(t *testing.T) {
	s := setupAuthContainerWithDefaultRateLimits(t)

	var resp *http.Response
	for range 6 {
		if resp != nil {
			resp.Body.Close()
		}
		var err error
		resp, err = http.Post(s.baseURL+"/v1/auth/activate/resend", "application/json",
			strings.NewReader(`{"email":"nobody@tavern.test"}`))
		require.NoError(t, err)
	}
	defer resp.Body.Close()

	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	require.NotEmpty(t, resp.Header.Get("Retry-After"))
	require.Equal(t, "5", resp.Header.Get("X-RateLimit-Limit"))
	require.Equal(t, "1m0s", resp.Header.Get("X-RateLimit-Window"))

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var errResp authsdk.ErrorResponse
	require.NoError(t, json.Unmarshal(body, &errResp))
	require.Equal(t, authsdk.ErrorCodeRateLimitExceeded, errResp.Error)
	require.NotEmpty(t, errResp.ErrorDescription)

	t.Logf("Rate limit error response format: %s", body)
}

// TestRateLimitConcurrentRequests verifies concurrent readers are served.
func TestRateLimitConcurrentRequests(t *testing.T) {
	s := setupAuthContainerWithDefaultRateLimits(t)
	client := s.client()
	bootstrapService(t, client)
	session := performLogin(t, client, adminUsername, adminPassword)

	const numRequests = 10
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for range numRequests {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := session.Me(context.Background()); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Empty(t, errs)
	t.Logf("Successfully handled %d concurrent requests", numRequests)
}
