package http

import (
	"context"
	"net/http"

	"github.com/aussiebroadwan/tavern/internal/auth/service"
	"github.com/aussiebroadwan/tavern/pkg/httpx"
	"github.com/aussiebroadwan/tavern/pkg/slogx"
)

type UsersHandler struct {
	AuthService *service.AuthService
	UserService *service.UserService
}

// HandleMe returns the bearer's own account.
func (h *UsersHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	profile, err := h.UserService.Profile(r.Context(), id.UserID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, userResponse(profile))
}

func (h *UsersHandler) HandleBan(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, "ban", h.AuthService.Ban)
}

func (h *UsersHandler) HandleUnban(w http.ResponseWriter, r *http.Request) {
	h.moderate(w, r, "unban", h.AuthService.Unban)
}

func (h *UsersHandler) moderate(
	w http.ResponseWriter,
	r *http.Request,
	action string,
	apply func(ctx context.Context, userID string) error,
) {
	ctx := r.Context()
	target := r.PathValue("id")

	moderator, ok := identity(w, r)
	if !ok {
		return
	}
	if target == moderator.UserID {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_request", "cannot "+action+" yourself")
		return
	}

	if err := apply(ctx, target); err != nil {
		writeServiceError(w, r, err)
		return
	}

	slogx.FromContext(ctx).Info("moderation applied", "action", action, "target_user_id", target)
	w.WriteHeader(http.StatusNoContent)
}
