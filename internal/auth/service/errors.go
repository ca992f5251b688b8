package service

import "errors"

var (
	// ErrInvalidCredentials covers a bad, expired or tampered token, a missing
	// subject and a stale secret salt alike.
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrNoPermissions      = errors.New("no_permissions")

	// ErrIncorrectCredentials is the login failure, identical for an unknown
	// username and a wrong password.
	ErrIncorrectCredentials = errors.New("incorrect_credentials")
	ErrInactiveUser         = errors.New("inactive_user")
	ErrAlreadyActivated     = errors.New("already_activated")
	ErrInvalidOrExpiredCode = errors.New("invalid_or_expired_code")
	ErrUserAlreadyExists    = errors.New("user_already_exists")
	ErrUserNotFound         = errors.New("user_not_found")
	ErrEmailUnchanged       = errors.New("email_unchanged")

	ErrFederatedAuthFailed            = errors.New("federated_auth_failed")
	ErrFederatedIdentityAlreadyLinked = errors.New("federated_identity_already_linked")
	ErrUserAlreadyLinked              = errors.New("user_already_linked")

	ErrRoleNotFound = errors.New("role_not_found")
	ErrUnknownScope = errors.New("unknown_scope")

	// ErrInvalidInput wraps field validation failures. The wrapped error is an
	// ozzo validation.Errors when the failure is per field.
	ErrInvalidInput = errors.New("invalid_input")
)
