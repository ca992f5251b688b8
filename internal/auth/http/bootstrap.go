package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/aussiebroadwan/tavern/internal/auth/domain"
	"github.com/aussiebroadwan/tavern/internal/auth/service"
	"github.com/aussiebroadwan/tavern/pkg/authsdk"
	"github.com/aussiebroadwan/tavern/pkg/httpx"
	"github.com/aussiebroadwan/tavern/pkg/slogx"
)

// BootstrapTokenHeader carries the pre-shared bootstrap token.
const BootstrapTokenHeader = "X-Bootstrap-Token"

type BootstrapHandler struct {
	BootstrapService *service.BootstrapService
}

// ServeHTTP creates the first superuser and seeds the reserved roles. It only
// succeeds once, and only when a bootstrap token is configured.
func (h *BootstrapHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	l := slogx.FromContext(r.Context())
	l.Info("Starting to bootstrap")

	// 1. Check if enabled
	if h.BootstrapService.Token == "" {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "Bootstrap endpoint is not enabled")
		return
	}

	// 2. Require bootstrap token header
	token := r.Header.Get(BootstrapTokenHeader)
	if token == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "unauthorized",
			"Bootstrap token is required in "+BootstrapTokenHeader+" header")
		return
	}

	// 3. Parse request body
	var req authsdk.BootstrapRequest
	if !decode(w, r, &req) {
		return
	}

	// 4. Perform bootstrap; field validation happens in the service
	admin, err := h.BootstrapService.Bootstrap(r.Context(), token, domain.BootstrapData{
		AdminUsername: strings.TrimSpace(req.AdminUsername),
		AdminEmail:    strings.TrimSpace(req.AdminEmail),
		AdminPassword: req.AdminPassword,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBootstrapDisabled):
			httpx.WriteError(w, http.StatusNotFound, "not_found", "Bootstrap endpoint is not enabled")
		case errors.Is(err, service.ErrBootstrapAlready):
			httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "System has already been bootstrapped")
		case errors.Is(err, service.ErrBootstrapUnauthorized):
			httpx.WriteError(w, http.StatusUnauthorized, "unauthorized", "Invalid bootstrap token")
		default:
			writeServiceError(w, r, err)
		}
		return
	}

	// 5. Respond with the created admin id
	httpx.WriteJSON(w, http.StatusCreated, authsdk.BootstrapResponse{AdminUserID: admin.ID})
}
