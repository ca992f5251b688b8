package authsdk

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// SDKClient is a client for the Tavern authentication service.
// It provides access to unauthenticated operations and can create authenticated Sessions.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client

	// CheckScopes makes a Session refuse requests its token lacks the scopes
	// for, without a round trip. Turn it off to exercise server-side checks.
	// Default: true
	CheckScopes bool
}

// NewSDKClient creates a new auth service client with scope checking enabled.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		CheckScopes: true,
	}
}

// AuthenticateWithPassword logs in and returns a session for the account.
func (c *SDKClient) AuthenticateWithPassword(ctx context.Context, username, password string) (*Session, error) {
	tokenResp, err := c.Login(ctx, username, password)
	if err != nil {
		return nil, err
	}
	return newSession(c, tokenResp), nil
}

// AuthenticateWithRefreshToken creates a session from an existing refresh token.
func (c *SDKClient) AuthenticateWithRefreshToken(ctx context.Context, refreshToken string) (*Session, error) {
	tokenResp, err := c.Refresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	return newSession(c, tokenResp), nil
}

// AuthenticateWithFederatedCallback completes a federated login with the
// openid.* parameters the provider redirected back with.
func (c *SDKClient) AuthenticateWithFederatedCallback(ctx context.Context, params url.Values) (*Session, error) {
	tokenResp, err := c.FederatedCallback(ctx, params)
	if err != nil {
		return nil, err
	}
	return newSession(c, tokenResp), nil
}

// NewSessionFromTokens creates an authenticated session from existing tokens,
// e.g. ones kept from an earlier login. It refreshes like any other session.
func (c *SDKClient) NewSessionFromTokens(accessToken, refreshToken, scope string, expiresIn int) *Session {
	return newSession(c, &TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    expiresIn,
		Scope:        scope,
	})
}

// ============================================================================
// Tokens
// ============================================================================

// Login exchanges a username and password for a token pair.
func (c *SDKClient) Login(ctx context.Context, username, password string) (*TokenResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/auth/login",
		LoginRequest{Username: username, Password: password}, nil)
	if err != nil {
		return nil, err
	}

	var tokenResp TokenResponse
	if err := decodeJSON(resp, &tokenResp, http.StatusOK); err != nil {
		return nil, err
	}
	return &tokenResp, nil
}

// Refresh mints a new access token. The refresh token comes back unchanged.
func (c *SDKClient) Refresh(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/auth/refresh",
		RefreshRequest{RefreshToken: refreshToken}, nil)
	if err != nil {
		return nil, err
	}

	var tokenResp TokenResponse
	if err := decodeJSON(resp, &tokenResp, http.StatusOK); err != nil {
		return nil, err
	}
	return &tokenResp, nil
}

// FederatedLoginURL is where a browser starts a federated login.
func (c *SDKClient) FederatedLoginURL() string {
	return c.url("/v1/auth/federated/login")
}

// FederatedCallback forwards the provider's openid.* parameters and returns
// the token pair of the linked account.
func (c *SDKClient) FederatedCallback(ctx context.Context, params url.Values) (*TokenResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/v1/auth/federated/callback?"+params.Encode(), nil, nil)
	if err != nil {
		return nil, err
	}

	var tokenResp TokenResponse
	if err := decodeJSON(resp, &tokenResp, http.StatusOK); err != nil {
		return nil, err
	}
	return &tokenResp, nil
}

// ============================================================================
// Account lifecycle
// ============================================================================

// Register signs up a new, inactive account.
func (c *SDKClient) Register(ctx context.Context, req RegisterRequest) (*RegisterResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/v1/auth/register", req, nil)
	if err != nil {
		return nil, err
	}

	var regResp RegisterResponse
	if err := decodeJSON(resp, &regResp, http.StatusCreated); err != nil {
		return nil, err
	}
	return &regResp, nil
}

func (c *SDKClient) Activate(ctx context.Context, code string) error {
	return c.send(ctx, "/v1/auth/activate", CodeRequest{Code: code}, http.StatusNoContent)
}

// ResendActivation succeeds whether or not the address has an account.
func (c *SDKClient) ResendActivation(ctx context.Context, email string) error {
	return c.send(ctx, "/v1/auth/activate/resend", EmailRequest{Email: email}, http.StatusAccepted)
}

// RequestPasswordReset succeeds whether or not the address has an account.
func (c *SDKClient) RequestPasswordReset(ctx context.Context, email string) error {
	return c.send(ctx, "/v1/auth/password/reset", EmailRequest{Email: email}, http.StatusAccepted)
}

// CheckPasswordResetCode reports the masked address a live reset code belongs to.
// The code stays usable.
func (c *SDKClient) CheckPasswordResetCode(ctx context.Context, code string) (*PasswordResetCheckResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/v1/auth/password/reset/"+url.PathEscape(code), nil, nil)
	if err != nil {
		return nil, err
	}

	var checkResp PasswordResetCheckResponse
	if err := decodeJSON(resp, &checkResp, http.StatusOK); err != nil {
		return nil, err
	}
	return &checkResp, nil
}

func (c *SDKClient) ResetPassword(ctx context.Context, code, password string) error {
	return c.send(ctx, "/v1/auth/password/reset/confirm",
		PasswordResetConfirmRequest{Code: code, Password: password}, http.StatusNoContent)
}

func (c *SDKClient) ConfirmEmailChange(ctx context.Context, code string) error {
	return c.send(ctx, "/v1/auth/email/confirm", CodeRequest{Code: code}, http.StatusNoContent)
}

// send POSTs body and expects a bodiless status.
func (c *SDKClient) send(ctx context.Context, path string, body any, expectedStatus int) error {
	resp, err := c.doRequest(ctx, http.MethodPost, path, body, nil)
	if err != nil {
		return err
	}
	return checkStatus(resp, expectedStatus)
}
