package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/aussiebroadwan/tavern/internal/auth/service"
	"github.com/aussiebroadwan/tavern/internal/auth/store"
	"github.com/aussiebroadwan/tavern/pkg/httpx"
	"github.com/aussiebroadwan/tavern/pkg/openidx"
	"github.com/aussiebroadwan/tavern/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store store.Store
	cache store.Ephemeral

	AuthService      *service.AuthService
	UserService      *service.UserService
	RolesService     *service.RolesService
	BootstrapService *service.BootstrapService

	// OpenID and OpenIDReturnTo drive the federated login redirect. When
	// OpenID is nil the redirect answers 404.
	OpenID         *openidx.Verifier
	OpenIDReturnTo string

	authorizer httpx.Authorizer
}

func NewRouter(
	buildVersion string,
	st store.Store,
	cache store.Ephemeral,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		cache:        cache,
		logger:       logger,
	}

	// Set default middleware chain
	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

// ApplyRoutes registers every endpoint. Services must be set first.
func (r *Router) ApplyRoutes() {
	r.authorizer = NewAuthorizer(r.AuthService)

	r.registerAuth()
	r.registerPassword()
	r.registerEmail()
	r.registerFederated()
	r.registerUsers()
	r.registerRoles()
	r.registerBootstrap()
	r.registerSystem()
}

// ServeHTTP implements http.Handler for Router and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

// secured requires a bearer token with the given scopes, then rate limits by user.
func (r *Router) secured(h http.Handler, limit httpx.RateLimitConfig, scopes ...string) http.Handler {
	return httpx.Chain(h,
		httpx.AuthnMiddleware(r.authorizer, scopes...),
		httpx.RateLimitByUser(limit),
	)
}

func (r *Router) registerAuth() {
	h := &AuthHandler{AuthService: r.AuthService}

	// Credential endpoints - strict, keyed on IP plus the submitted username
	r.Mux.Handle("POST /v1/auth/register",
		httpx.Chain(http.HandlerFunc(h.HandleRegister),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIPAndJSONField(httpx.StrictLimit, "username"),
		),
	)
	r.Mux.Handle("POST /v1/auth/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// Any valid token may log itself out
	r.Mux.Handle("POST /v1/auth/logout",
		r.secured(http.HandlerFunc(h.HandleLogout), httpx.ModerateLimit),
	)

	// Code endpoints - strict to slow down guessing
	r.Mux.Handle("POST /v1/auth/activate",
		httpx.Chain(http.HandlerFunc(h.HandleActivate),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/activate/resend",
		httpx.Chain(http.HandlerFunc(h.HandleResendActivation),
			httpx.RateLimitByIPAndJSONField(httpx.StrictLimit, "email"),
		),
	)
}

func (r *Router) registerPassword() {
	h := &PasswordHandler{AuthService: r.AuthService}

	r.Mux.Handle("POST /v1/auth/password/reset",
		httpx.Chain(http.HandlerFunc(h.HandleRequestReset),
			httpx.RateLimitByIPAndJSONField(httpx.StrictLimit, "email"),
		),
	)
	r.Mux.Handle("GET /v1/auth/password/reset/{code}",
		httpx.Chain(http.HandlerFunc(h.HandleCheckReset),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/password/reset/confirm",
		httpx.Chain(http.HandlerFunc(h.HandleConfirmReset),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// Changing the password needs the current one, so it is strict too
	r.Mux.Handle("POST /v1/auth/password",
		r.secured(http.HandlerFunc(h.HandleChange), httpx.StrictLimit, "users:password"),
	)
}

func (r *Router) registerEmail() {
	h := &EmailHandler{AuthService: r.AuthService}

	r.Mux.Handle("POST /v1/auth/email",
		r.secured(http.HandlerFunc(h.HandleRequestChange), httpx.ModerateLimit, "users:email"),
	)
	r.Mux.Handle("POST /v1/auth/email/confirm",
		httpx.Chain(http.HandlerFunc(h.HandleConfirmChange),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerFederated() {
	h := &FederatedHandler{
		AuthService: r.AuthService,
		OpenID:      r.OpenID,
		ReturnTo:    r.OpenIDReturnTo,
	}

	r.Mux.Handle("GET /v1/auth/federated/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("GET /v1/auth/federated/callback",
		httpx.Chain(http.HandlerFunc(h.HandleCallback),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("POST /v1/auth/federated/connect",
		r.secured(http.HandlerFunc(h.HandleConnect), httpx.ModerateLimit, "users:connect"),
	)
}

func (r *Router) registerUsers() {
	h := &UsersHandler{
		AuthService: r.AuthService,
		UserService: r.UserService,
	}

	r.Mux.Handle("GET /v1/users/me",
		r.secured(http.HandlerFunc(h.HandleMe), httpx.LenientLimit, "users:me"),
	)

	// Moderation
	r.Mux.Handle("POST /v1/users/{id}/ban",
		r.secured(http.HandlerFunc(h.HandleBan), httpx.ModerateLimit, "users:ban"),
	)
	r.Mux.Handle("DELETE /v1/users/{id}/ban",
		r.secured(http.HandlerFunc(h.HandleUnban), httpx.ModerateLimit, "users:ban"),
	)
}

func (r *Router) registerRoles() {
	h := &RolesHandler{RolesService: r.RolesService}

	r.Mux.Handle("GET /v1/roles",
		r.secured(http.HandlerFunc(h.HandleList), httpx.ModerateLimit, "roles:read"),
	)
	r.Mux.Handle("PUT /v1/roles/{tag}/scopes",
		r.secured(http.HandlerFunc(h.HandleUpdateScopes), httpx.ModerateLimit, "roles:manage"),
	)
}

func (r *Router) registerBootstrap() {
	// POST /bootstrap - very strict rate limit by IP (one-time setup endpoint)
	bootstrapHandler := &BootstrapHandler{BootstrapService: r.BootstrapService}
	r.Mux.Handle("POST /v1/bootstrap",
		httpx.Chain(bootstrapHandler,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerSystem() {
	// Health check endpoints - lenient rate limits (monitoring systems may poll frequently)
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.cache),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}
