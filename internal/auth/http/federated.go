package http

import (
	"net/http"
	"net/url"

	"github.com/aussiebroadwan/tavern/internal/auth/service"
	"github.com/aussiebroadwan/tavern/pkg/authsdk"
	"github.com/aussiebroadwan/tavern/pkg/httpx"
	"github.com/aussiebroadwan/tavern/pkg/openidx"
	"github.com/aussiebroadwan/tavern/pkg/slogx"
)

// FederatedHandler serves OpenID 2.0 login and account linking.
type FederatedHandler struct {
	AuthService *service.AuthService
	OpenID      *openidx.Verifier
	ReturnTo    string
}

// HandleLogin redirects the browser to the provider's sign-in page.
func (h *FederatedHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	if h.OpenID == nil || h.ReturnTo == "" {
		httpx.WriteError(w, http.StatusNotFound, "not_found", "federated login is not enabled")
		return
	}

	httpx.NoCache(w)
	http.Redirect(w, r, h.OpenID.AuthURL(h.ReturnTo), http.StatusFound)
}

// HandleCallback receives the provider's openid.* query and logs in the
// linked account.
func (h *FederatedHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	a := openidx.ParseAssertion(r.URL.Query())
	res, err := h.AuthService.LoginFederated(ctx, a)
	if err != nil {
		slogx.FromContext(ctx).Info("federated login rejected", "error", err)
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, tokenResponse(res.Tokens))
}

// HandleConnect links the provider identity in the posted assertion to the
// bearer's account.
func (h *FederatedHandler) HandleConnect(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req authsdk.FederatedConnectRequest
	if !decode(w, r, &req) {
		return
	}

	params := make(url.Values, len(req.Params))
	for k, v := range req.Params {
		params.Set(k, v)
	}

	fi, err := h.AuthService.ConnectFederatedIdentity(r.Context(), id.UserID, openidx.ParseAssertion(params))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, federatedInfo(fi))
}
