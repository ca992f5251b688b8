package authsdk

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// Me returns the profile of the logged-in account.
// Requires: users:me scope
func (s *Session) Me(ctx context.Context) (*UserResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/v1/users/me", nil, "users:me")
	if err != nil {
		return nil, err
	}

	var user UserResponse
	if err := decodeJSON(resp, &user, http.StatusOK); err != nil {
		return nil, err
	}
	return &user, nil
}

// ChangePassword replaces the password after checking the current one.
// Requires: users:password scope
func (s *Session) ChangePassword(ctx context.Context, current, next string) error {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/auth/password",
		ChangePasswordRequest{CurrentPassword: current, NewPassword: next}, "users:password")
	if err != nil {
		return err
	}
	return checkStatus(resp, http.StatusNoContent)
}

// RequestEmailChange sends a confirmation code for the new address. The
// address only changes once the code is confirmed with
// SDKClient.ConfirmEmailChange.
// Requires: users:email scope
func (s *Session) RequestEmailChange(ctx context.Context, email string) error {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/auth/email",
		EmailRequest{Email: email}, "users:email")
	if err != nil {
		return err
	}
	return checkStatus(resp, http.StatusAccepted)
}

// ConnectFederated links a federated identity to the account using the
// openid.* parameters of a positive assertion.
// Requires: users:connect scope
func (s *Session) ConnectFederated(ctx context.Context, params url.Values) (*FederatedIdentityInfo, error) {
	flat := make(map[string]string, len(params))
	for key := range params {
		flat[key] = params.Get(key)
	}

	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/auth/federated/connect",
		FederatedConnectRequest{Params: flat}, "users:connect")
	if err != nil {
		return nil, err
	}

	var info FederatedIdentityInfo
	if err := decodeJSON(resp, &info, http.StatusCreated); err != nil {
		return nil, err
	}
	return &info, nil
}

// Logout ends the server-side session. The refresh token stops working
// immediately; access tokens already issued live out their TTL.
func (s *Session) Logout(ctx context.Context) error {
	resp, err := s.doAuthRequest(ctx, http.MethodPost, "/v1/auth/logout", nil)
	if err != nil {
		return err
	}
	if err := checkStatus(resp, http.StatusNoContent); err != nil {
		return fmt.Errorf("logout: %w", err)
	}

	s.mu.Lock()
	s.refreshToken = ""
	s.mu.Unlock()
	return nil
}
