package authsdk

import (
	"context"
	"net/http"
	"net/url"
)

// ListRoles retrieves every role with its scope set.
// Requires: roles:read scope
func (s *Session) ListRoles(ctx context.Context) (*ListRolesResponse, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodGet, "/v1/roles", nil, "roles:read")
	if err != nil {
		return nil, err
	}

	var rolesResp ListRolesResponse
	if err := decodeJSON(resp, &rolesResp, http.StatusOK); err != nil {
		return nil, err
	}
	return &rolesResp, nil
}

// UpdateRoleScopes replaces the scope set of the role with the given tag.
// Holders see the change on their next token refresh.
// Requires: roles:manage scope
func (s *Session) UpdateRoleScopes(ctx context.Context, tag string, scopes []string) (*RoleInfo, error) {
	resp, err := s.doAuthRequest(ctx, http.MethodPut, "/v1/roles/"+url.PathEscape(tag)+"/scopes",
		UpdateRoleScopesRequest{Scopes: scopes}, "roles:manage")
	if err != nil {
		return nil, err
	}

	var role RoleInfo
	if err := decodeJSON(resp, &role, http.StatusOK); err != nil {
		return nil, err
	}
	return &role, nil
}

// BanUser moves an account into the banned role.
// Requires: users:ban scope
func (s *Session) BanUser(ctx context.Context, userID string) error {
	return s.moderate(ctx, http.MethodPost, userID)
}

// UnbanUser restores an account to the member role.
// Requires: users:ban scope
func (s *Session) UnbanUser(ctx context.Context, userID string) error {
	return s.moderate(ctx, http.MethodDelete, userID)
}

func (s *Session) moderate(ctx context.Context, method, userID string) error {
	resp, err := s.doAuthRequest(ctx, method, "/v1/users/"+url.PathEscape(userID)+"/ban", nil, "users:ban")
	if err != nil {
		return err
	}
	return checkStatus(resp, http.StatusNoContent)
}
