package http

import (
	"strings"
	"time"

	"github.com/aussiebroadwan/tavern/internal/auth/domain"
	"github.com/aussiebroadwan/tavern/internal/auth/service"
	"github.com/aussiebroadwan/tavern/pkg/authsdk"
)

func tokenResponse(p domain.TokenPair) authsdk.TokenResponse {
	return authsdk.TokenResponse{
		AccessToken:      p.AccessToken,
		RefreshToken:     p.RefreshToken,
		TokenType:        p.TokenType,
		ExpiresIn:        secondsUntil(p.AccessExpiresAt),
		RefreshExpiresIn: secondsUntil(p.RefreshExpiresAt),
		Scope:            strings.Join(p.Scopes, " "),
		SessionID:        p.SessionID,
	}
}

func secondsUntil(t time.Time) int {
	return max(int(time.Until(t).Seconds()), 0)
}

func userResponse(p service.Profile) authsdk.UserResponse {
	resp := authsdk.UserResponse{
		ID:          p.User.ID,
		Username:    p.User.Username,
		Email:       p.User.Email,
		IsActivated: p.User.IsActivated,
		IsSuperuser: p.User.IsSuperuser,
		Roles:       p.User.RoleTags(),
		Scopes:      p.Scopes,
		LastLoginAt: p.User.LastLoginAt,
		CreatedAt:   p.User.CreatedAt,
	}
	if p.Federated != nil {
		resp.Federated = federatedInfo(*p.Federated)
	}
	return resp
}

func federatedInfo(fi domain.FederatedIdentity) *authsdk.FederatedIdentityInfo {
	return &authsdk.FederatedIdentityInfo{
		Provider:   fi.Provider,
		ExternalID: fi.ExternalID,
		LinkedAt:   fi.CreatedAt,
	}
}

func roleInfo(role domain.Role) authsdk.RoleInfo {
	return authsdk.RoleInfo{
		ID:     role.ID,
		Tag:    role.Tag,
		Name:   role.Name,
		Scopes: role.ScopeStrings(),
	}
}
