package http

import (
	"net/http"

	"github.com/aussiebroadwan/tavern/internal/auth/service"
	"github.com/aussiebroadwan/tavern/pkg/authsdk"
	"github.com/aussiebroadwan/tavern/pkg/httpx"
	"github.com/aussiebroadwan/tavern/pkg/slogx"
)

// AuthHandler serves registration, login, refresh, logout and activation.
type AuthHandler struct {
	AuthService *service.AuthService
}

// HandleRegister creates an inactive account. The activation code goes to the
// service's observer, never into the response.
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RegisterRequest
	if !decode(w, r, &req) {
		return
	}

	res, err := h.AuthService.Register(r.Context(), service.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, authsdk.RegisterResponse{
		UserID:   res.User.ID,
		Username: res.User.Username,
		Email:    res.User.Email,
	})
}

func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req authsdk.LoginRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Username == "" || req.Password == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "username and password are required")
		return
	}

	res, err := h.AuthService.Authenticate(ctx, req.Username, req.Password)
	if err != nil {
		slogx.FromContext(ctx).Info("login rejected", "username", req.Username, "error", err)
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tokenResponse(res.Tokens))
}

func (h *AuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	var req authsdk.RefreshRequest
	if !decode(w, r, &req) {
		return
	}
	if req.RefreshToken == "" {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "refresh_token is required")
		return
	}

	pair, err := h.AuthService.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tokenResponse(pair))
}

// HandleLogout revokes every token of the bearer's account.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	if err := h.AuthService.Logout(r.Context(), id.UserID); err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) HandleActivate(w http.ResponseWriter, r *http.Request) {
	var req authsdk.CodeRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.AuthService.Activate(r.Context(), req.Code); err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleResendActivation always answers 202 so addresses cannot be probed.
func (h *AuthHandler) HandleResendActivation(w http.ResponseWriter, r *http.Request) {
	var req authsdk.EmailRequest
	if !decode(w, r, &req) {
		return
	}

	if err := h.AuthService.ResendActivation(r.Context(), req.Email); err != nil {
		writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusAccepted)
}
