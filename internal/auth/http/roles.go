package http

import (
	"net/http"

	"github.com/aussiebroadwan/tavern/internal/auth/service"
	"github.com/aussiebroadwan/tavern/pkg/authsdk"
	"github.com/aussiebroadwan/tavern/pkg/httpx"
)

type RolesHandler struct {
	RolesService *service.RolesService
}

func (h *RolesHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	roles, err := h.RolesService.ListAll(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	response := authsdk.ListRolesResponse{
		Roles: make([]authsdk.RoleInfo, len(roles)),
	}
	for i, role := range roles {
		response.Roles[i] = roleInfo(role)
	}

	httpx.WriteJSON(w, http.StatusOK, response)
}

// HandleUpdateScopes replaces a role's scopes. Holders pick the change up on
// their next refresh.
func (h *RolesHandler) HandleUpdateScopes(w http.ResponseWriter, r *http.Request) {
	var req authsdk.UpdateRoleScopesRequest
	if !decode(w, r, &req) {
		return
	}

	role, err := h.RolesService.UpdateRoleScopes(r.Context(), r.PathValue("tag"), req.Scopes)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, roleInfo(role))
}
