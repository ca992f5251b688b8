package authsdk

import "time"

// ============================================================================
// Error Types
// ============================================================================

// ErrorResponse is the body of every failing request.
type ErrorResponse struct {
	// Error is the machine readable code (e.g. "invalid_credentials")
	Error string `json:"error"`

	// ErrorDescription is a human-readable description of the error
	ErrorDescription string `json:"error_description"`

	// Details maps a field name to its validation failure, when the request
	// failed input validation
	Details map[string]string `json:"details,omitempty"`
}

// ============================================================================
// Account Types
// ============================================================================

// RegisterRequest signs up a new account. The account starts inactive; the
// activation code is delivered out of band.
type RegisterRequest struct {
	// Username is 3-32 letters, digits or underscores
	Username string `json:"username"`

	// Email is where verification codes are sent
	Email string `json:"email"`

	// Password is 8-128 characters
	Password string `json:"password"`
}

// RegisterResponse identifies the account that was created.
type RegisterResponse struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// CodeRequest redeems a verification code (activation, email change).
type CodeRequest struct {
	Code string `json:"code"`
}

// EmailRequest names an address; used by activation resend, password reset
// and email change requests.
type EmailRequest struct {
	Email string `json:"email"`
}

// PasswordResetCheckResponse is returned for a live password reset code.
type PasswordResetCheckResponse struct {
	Email string `json:"email"` // masked, e.g. a***@example.com
}

type PasswordResetConfirmRequest struct {
	Code     string `json:"code"`
	Password string `json:"password"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ============================================================================
// Token Types
// ============================================================================

// TokenResponse is returned by login, federated login and refresh.
type TokenResponse struct {
	// AccessToken authenticates API requests as a bearer token
	AccessToken string `json:"access_token"`

	// RefreshToken obtains new access tokens. Refresh echoes it unchanged.
	RefreshToken string `json:"refresh_token"`

	// TokenType is always "Bearer"
	TokenType string `json:"token_type"`

	// ExpiresIn is the lifetime in seconds of the access token
	ExpiresIn int `json:"expires_in"`

	// RefreshExpiresIn is the remaining lifetime in seconds of the refresh token
	RefreshExpiresIn int `json:"refresh_expires_in"`

	// Scope is the space-delimited list of scopes granted to this token
	Scope string `json:"scope"`

	// SessionID identifies the login the pair belongs to
	SessionID string `json:"session_id,omitempty"`
}

// ============================================================================
// Federated Identity Types
// ============================================================================

// FederatedConnectRequest carries the openid.* parameters the provider
// redirected back with.
type FederatedConnectRequest struct {
	Params map[string]string `json:"params"`
}

type FederatedIdentityInfo struct {
	Provider   string    `json:"provider"`
	ExternalID string    `json:"external_id"`
	LinkedAt   time.Time `json:"linked_at"`
}

// ============================================================================
// User Types
// ============================================================================

// UserResponse is an account as its owner sees it.
type UserResponse struct {
	ID          string                 `json:"id"`
	Username    string                 `json:"username"`
	Email       string                 `json:"email"`
	IsActivated bool                   `json:"is_activated"`
	IsSuperuser bool                   `json:"is_superuser"`
	Roles       []string               `json:"roles"`
	Scopes      []string               `json:"scopes"`
	Federated   *FederatedIdentityInfo `json:"federated,omitempty"`
	LastLoginAt *time.Time             `json:"last_login_at,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// ============================================================================
// Role Types
// ============================================================================

type RoleInfo struct {
	ID     string   `json:"id"`
	Tag    string   `json:"tag"`
	Name   string   `json:"name"`
	Scopes []string `json:"scopes"`
}

type ListRolesResponse struct {
	Roles []RoleInfo `json:"roles"`
}

// UpdateRoleScopesRequest replaces a role's scope list. Order is kept.
type UpdateRoleScopesRequest struct {
	Scopes []string `json:"scopes"`
}

// ============================================================================
// Bootstrap Types
// ============================================================================

// BootstrapRequest creates the first superuser. The reserved roles are seeded
// alongside it.
type BootstrapRequest struct {
	AdminUsername string `json:"admin_username"`
	AdminEmail    string `json:"admin_email"`
	AdminPassword string `json:"admin_password"`
}

type BootstrapResponse struct {
	AdminUserID string `json:"admin_user_id"`
}

// ============================================================================
// Health Types
// ============================================================================

// HealthResponse is returned by /livez and /readyz.
type HealthResponse struct {
	// Status is "ok" or "degraded"
	Status string `json:"status"`

	// Uptime is how long the service has been running
	Uptime string `json:"uptime"`

	// Version is the build version
	Version string `json:"version"`

	// Checks is only present on /readyz
	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks reports each dependency as "ok" or "error: <reason>".
type HealthChecks struct {
	Database string `json:"database"`
	Cache    string `json:"cache"`
}
