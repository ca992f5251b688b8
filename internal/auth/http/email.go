package http

import (
	"net/http"

	"github.com/aussiebroadwan/tavern/internal/auth/service"
	"github.com/aussiebroadwan/tavern/pkg/authsdk"
)

type EmailHandler struct {
	AuthService *service.AuthService
}

// HandleRequestChange sends a confirmation code for the bearer's new address.
func (h *EmailHandler) HandleRequestChange(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req authsdk.EmailRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.AuthService.RequestEmailChange(r.Context(), id.UserID, req.Email); err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// HandleConfirmChange is unauthenticated: the code alone identifies the
// account, so it can be redeemed from a link in the mail.
func (h *EmailHandler) HandleConfirmChange(w http.ResponseWriter, r *http.Request) {
	var req authsdk.CodeRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.AuthService.ConfirmEmailChange(r.Context(), req.Code); err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
