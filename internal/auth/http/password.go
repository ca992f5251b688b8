package http

import (
	"net/http"

	"github.com/aussiebroadwan/tavern/internal/auth/service"
	"github.com/aussiebroadwan/tavern/pkg/authsdk"
	"github.com/aussiebroadwan/tavern/pkg/httpx"
)

type PasswordHandler struct {
	AuthService *service.AuthService
}

// HandleRequestReset answers 202 whether or not the address has an account.
func (h *PasswordHandler) HandleRequestReset(w http.ResponseWriter, r *http.Request) {
	var req authsdk.EmailRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.AuthService.RequestPasswordReset(r.Context(), req.Email); err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}

// HandleCheckReset lets a reset form confirm the code is live before asking
// for a new password. The code is not consumed.
func (h *PasswordHandler) HandleCheckReset(w http.ResponseWriter, r *http.Request) {
	email, err := h.AuthService.CheckPasswordResetCode(r.Context(), r.PathValue("code"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, authsdk.PasswordResetCheckResponse{Email: email})
}

func (h *PasswordHandler) HandleConfirmReset(w http.ResponseWriter, r *http.Request) {
	var req authsdk.PasswordResetConfirmRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.AuthService.ResetPassword(r.Context(), req.Code, req.Password); err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleChange sets a new password for the bearer. Every token of the
// account, including the one used here, stops working.
func (h *PasswordHandler) HandleChange(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req authsdk.ChangePasswordRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.AuthService.ChangePassword(r.Context(), id.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
