package authsdk

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// ============================================================================
// Error Codes
// ============================================================================

const (
	ErrorCodeInvalidRequest       = "invalid_request"
	ErrorCodeInvalidInput         = "invalid_input"
	ErrorCodeInvalidToken         = "invalid_token"
	ErrorCodeInsufficientScope    = "insufficient_scope"
	ErrorCodeInvalidCredentials   = "invalid_credentials"
	ErrorCodeIncorrectCredentials = "incorrect_credentials"
	ErrorCodeInactiveUser         = "inactive_user"
	ErrorCodeAlreadyActivated     = "already_activated"
	ErrorCodeInvalidOrExpiredCode = "invalid_or_expired_code"
	ErrorCodeUserAlreadyExists    = "user_already_exists"
	ErrorCodeUserNotFound         = "user_not_found"
	ErrorCodeEmailUnchanged       = "email_unchanged"
	ErrorCodeFederatedAuthFailed  = "federated_auth_failed"
	ErrorCodeIdentityLinked       = "federated_identity_already_linked"
	ErrorCodeUserAlreadyLinked    = "user_already_linked"
	ErrorCodeRoleNotFound         = "role_not_found"
	ErrorCodeUnknownScope         = "unknown_scope"
	ErrorCodeRateLimitExceeded    = "rate_limit_exceeded"
	ErrorCodeServerError          = "server_error"
)

// ============================================================================
// APIError
// ============================================================================

// APIError is a failed request as reported by the service.
type APIError struct {
	// StatusCode is the HTTP status code of the response
	StatusCode int

	// Code is the machine readable error code (one of the ErrorCode constants)
	Code string

	// Description is a human-readable description of the error
	Description string

	// Details holds per-field validation failures for ErrorCodeInvalidInput
	Details map[string]string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("%d %s: %s", e.StatusCode, e.Code, e.Description)
}

// IsCode reports whether err is an APIError carrying code.
func IsCode(err error, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Code == code
}

// ============================================================================
// Error Parsing Helpers
// ============================================================================

// parseErrorResponse turns a non-2xx response into an *APIError. Returns nil
// for 2xx responses.
func parseErrorResponse(resp *http.Response, body []byte) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	var errResp ErrorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error != "" {
		return &APIError{
			StatusCode:  resp.StatusCode,
			Code:        errResp.Error,
			Description: errResp.ErrorDescription,
			Details:     errResp.Details,
		}
	}

	// Fallback: create generic error from status code
	return &APIError{
		StatusCode:  resp.StatusCode,
		Code:        ErrorCodeServerError,
		Description: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode)),
	}
}
