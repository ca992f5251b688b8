package http

import (
	"errors"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/aussiebroadwan/tavern/internal/auth/service"
	"github.com/aussiebroadwan/tavern/pkg/authsdk"
	"github.com/aussiebroadwan/tavern/pkg/httpx"
	"github.com/aussiebroadwan/tavern/pkg/slogx"
)

type errorMapping struct {
	err         error
	status      int
	description string
}

// serviceErrors maps service sentinels to responses. The sentinel's text is
// the error code on the wire.
var serviceErrors = []errorMapping{
	{service.ErrInvalidCredentials, http.StatusUnauthorized, "the token is invalid, expired or revoked"},
	{service.ErrIncorrectCredentials, http.StatusUnauthorized, "incorrect username or password"},
	{service.ErrFederatedAuthFailed, http.StatusUnauthorized, "the provider assertion could not be verified"},
	{service.ErrNoPermissions, http.StatusForbidden, "missing a required scope"},
	{service.ErrInactiveUser, http.StatusForbidden, "the account has not been activated"},
	{service.ErrUserAlreadyExists, http.StatusConflict, "username or email already in use"},
	{service.ErrAlreadyActivated, http.StatusConflict, "the account is already active"},
	{service.ErrFederatedIdentityAlreadyLinked, http.StatusConflict, "the provider identity is linked to another account"},
	{service.ErrUserAlreadyLinked, http.StatusConflict, "the account already has a linked identity"},
	{service.ErrInvalidOrExpiredCode, http.StatusBadRequest, "the code is invalid or has expired"},
	{service.ErrEmailUnchanged, http.StatusBadRequest, "the new email matches the current one"},
	{service.ErrUnknownScope, http.StatusBadRequest, "unknown scope"},
	{service.ErrUserNotFound, http.StatusNotFound, "user not found"},
	{service.ErrRoleNotFound, http.StatusNotFound, "role not found"},
}

// writeServiceError answers with the mapping for err. Validation failures
// carry per-field details; anything unmapped is logged and hidden behind a
// 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, service.ErrInvalidInput) {
		writeValidationError(w, err)
		return
	}

	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			httpx.WriteError(w, m.status, m.err.Error(), m.description)
			return
		}
	}

	slogx.FromContext(r.Context()).Error("request failed", "path", r.URL.Path, "error", err)
	httpx.WriteError(w, http.StatusInternalServerError, "server_error", "an internal error occurred")
}

func writeValidationError(w http.ResponseWriter, err error) {
	resp := authsdk.ErrorResponse{
		Error:            service.ErrInvalidInput.Error(),
		ErrorDescription: "validation failed for some fields",
	}

	var fields validation.Errors
	if errors.As(err, &fields) {
		resp.Details = make(map[string]string, len(fields))
		for name, ferr := range fields {
			resp.Details[name] = ferr.Error()
		}
	} else {
		resp.ErrorDescription = err.Error()
	}

	httpx.WriteJSON(w, http.StatusBadRequest, resp)
}

// decode reads the JSON body into dst, answering 400 on failure.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := httpx.DecodeJSON(w, r, dst); err != nil {
		slogx.FromContext(r.Context()).Debug("bad request body", "error", err)
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "request body must be a valid JSON object")
		return false
	}
	return true
}

// identity is the bearer identity AuthnMiddleware left in the context.
func identity(w http.ResponseWriter, r *http.Request) (httpx.Identity, bool) {
	id, ok := httpx.IdentityFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, http.StatusUnauthorized, "invalid_token", "missing bearer identity")
	}
	return id, ok
}
