package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	goredis "github.com/redis/go-redis/v9"

	httpapi "github.com/aussiebroadwan/tavern/internal/auth/http"
	"github.com/aussiebroadwan/tavern/internal/auth/service"
	"github.com/aussiebroadwan/tavern/internal/auth/store"
	"github.com/aussiebroadwan/tavern/internal/auth/store/drivers/redis"
	"github.com/aussiebroadwan/tavern/internal/auth/store/drivers/sqlite"
	"github.com/aussiebroadwan/tavern/pkg/cryptox"
	"github.com/aussiebroadwan/tavern/pkg/httpx"
	"github.com/aussiebroadwan/tavern/pkg/openidx"
	"github.com/aussiebroadwan/tavern/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application encapsulates the auth service application with all its dependencies
type Application struct {
	cfg    Config
	logger *slog.Logger

	// Core dependencies
	db       store.Store
	cache    store.Ephemeral
	observer service.Observer

	// Services
	authService         *service.AuthService
	userService         *service.UserService
	rolesService        *service.RolesService
	bootstrapService    *service.BootstrapService
	housekeepingService *service.HousekeepingService
	openID              *openidx.Verifier

	// HTTP server
	server *http.Server
	router *httpapi.Router
}

// Option customises an Application before its services are wired.
type Option func(*Application)

// WithLogger replaces the logger built from the config.
func WithLogger(logger *slog.Logger) Option {
	return func(app *Application) { app.logger = logger }
}

// WithObserver sends account events to o instead of the log.
func WithObserver(o service.Observer) Option {
	return func(app *Application) { app.observer = o }
}

// New creates a new Application instance with all dependencies initialized
func New(cfg Config, opts ...Option) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	app := &Application{cfg: cfg}
	for _, opt := range opts {
		opt(app)
	}
	if app.logger == nil {
		app.logger = slogx.New(slogx.Config{
			Service: "auth-service",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		})
	}
	if app.observer == nil {
		app.observer = LogObserver(app.logger, cfg.Env == "dev")
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	if err := app.initCache(); err != nil {
		_ = app.db.Close()
		return nil, err
	}
	if err := app.initServices(); err != nil {
		app.closeStores()
		return nil, err
	}
	app.initHTTP()

	return app, nil
}

// Handler returns the fully wired HTTP handler.
func (app *Application) Handler() http.Handler {
	return app.router
}

// Run starts the application and blocks until shutdown is requested
func (app *Application) Run() error {
	app.housekeepingService.Start()

	app.logger.Info("auth service starting", "port", app.cfg.Port, "version", BuildVersion)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- app.server.ListenAndServe()
	}()

	// Setup signal handling for graceful shutdown
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a shutdown signal or server error
	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.housekeepingService.Stop()
			app.closeStores()
			return fmt.Errorf("server failed: %w", err)
		}
	case sig := <-shutdown:
		app.logger.Info("shutdown signal received", "signal", sig)

		if err := app.Shutdown(); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// Shutdown gracefully shuts down the application
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down auth service...")

	// Give outstanding requests a deadline for completion
	ctx, cancel := context.WithTimeout(context.Background(), app.cfg.ShutdownGracePeriod)
	defer cancel()

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Error("graceful server shutdown failed", "error", err)
		if err := app.server.Close(); err != nil {
			app.logger.Error("error closing server", "error", err)
		}
	}

	app.housekeepingService.Stop()

	if err := app.closeStores(); err != nil {
		return err
	}

	app.logger.Info("auth service stopped")
	return nil
}

// Close releases the stores without touching the HTTP server or the
// housekeeping loop. It is for applications that were never Run.
func (app *Application) Close() error {
	return app.closeStores()
}

func (app *Application) closeStores() error {
	var errs []error
	if err := app.cache.Close(); err != nil {
		app.logger.Error("error closing cache", "error", err)
		errs = append(errs, err)
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// initDatabase initializes the database and applies migrations
func (app *Application) initDatabase() error {
	dsn := app.cfg.DatabaseFile
	if dsn != ":memory:" {
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", app.cfg.DatabaseFile)
	}

	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to apply database migrations: %w", err)
	}

	app.logger.Info("database migrations applied successfully")
	return nil
}

// initCache connects to redis, which holds the verification codes.
func (app *Application) initCache() error {
	cache := redis.NewStore(&goredis.Options{
		Addr:     app.cfg.RedisAddr,
		Password: app.cfg.RedisPassword,
		DB:       app.cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := cache.Ping(ctx); err != nil {
		_ = cache.Close()
		return fmt.Errorf("failed to connect to redis at %s: %w", app.cfg.RedisAddr, err)
	}

	app.cache = cache
	return nil
}

// initServices initializes all business logic services
func (app *Application) initServices() error {
	pepper, err := cryptox.LoadOrGeneratePepper(app.cfg.PepperFile)
	if err != nil {
		return fmt.Errorf("failed to load pepper: %w", err)
	}

	accessSecret, err := app.secret(app.cfg.AccessSecret, "AUTH_ACCESS_SECRET")
	if err != nil {
		return err
	}
	refreshSecret, err := app.secret(app.cfg.RefreshSecret, "AUTH_REFRESH_SECRET")
	if err != nil {
		return err
	}

	accessTokens, err := service.NewTokenService(service.TokenConfig{
		Secret: accessSecret,
		TTL:    app.cfg.AccessTTL,
		Issuer: app.cfg.Issuer,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize access tokens: %w", err)
	}
	refreshTokens, err := service.NewTokenService(service.TokenConfig{
		Secret: refreshSecret,
		TTL:    app.cfg.RefreshTTL,
		Issuer: app.cfg.Issuer,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize refresh tokens: %w", err)
	}

	resolver := service.NewScopeResolver()

	federated := &service.FederatedService{Store: app.db}
	if app.cfg.OpenIDEndpoint != "" {
		app.openID = openidx.NewVerifier(app.cfg.OpenIDEndpoint, app.cfg.OpenIDRealm, app.cfg.OpenIDTimeout)
		federated.Verifier = app.openID
		federated.ReturnTo = app.cfg.OpenIDReturnTo
		federated.Endpoint = app.cfg.OpenIDEndpoint
		app.logger.Info("federated login enabled", "endpoint", app.cfg.OpenIDEndpoint)
	}

	app.authService = &service.AuthService{
		Store:         app.db,
		Hasher:        cryptox.NewArgon2Hasher(cryptox.DefaultArgon2Params, pepper),
		AccessTokens:  accessTokens,
		RefreshTokens: refreshTokens,
		Scopes:        resolver,
		Codes:         service.NewVerificationCodeStore(app.cache),
		Federated:     federated,
		Observer:      app.observer,
		CodeConfig:    app.cfg.CodeConfig(),
	}
	app.userService = &service.UserService{Store: app.db, Resolver: resolver}
	app.rolesService = &service.RolesService{Store: app.db, Resolver: resolver}
	app.bootstrapService = &service.BootstrapService{
		Store: app.db,
		Roles: app.rolesService,
		Auth:  app.authService,
		Token: app.cfg.BootstrapToken,
	}

	// Reserved roles must exist before the first registration.
	if err := app.rolesService.SeedRoles(context.Background()); err != nil {
		return fmt.Errorf("failed to seed roles: %w", err)
	}

	app.housekeepingService = service.NewHousekeepingService(
		app.db,
		app.logger,
		app.cfg.HousekeepingInterval,
		app.cfg.HousekeepingRetention,
	)
	return nil
}

// secret returns the configured token secret, or a random one in dev.
func (app *Application) secret(configured, name string) ([]byte, error) {
	if configured != "" {
		return []byte(configured), nil
	}

	generated, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, fmt.Errorf("failed to generate %s: %w", name, err)
	}
	app.logger.Warn("token secret not configured, using a random one", "env", name)
	return []byte(generated), nil
}

// initHTTP initializes the HTTP router and server
func (app *Application) initHTTP() {
	httpx.StrictLimit = httpx.ParseRateLimitFromEnv("STRICT", httpx.StrictLimit)
	httpx.ModerateLimit = httpx.ParseRateLimitFromEnv("MODERATE", httpx.ModerateLimit)
	httpx.LenientLimit = httpx.ParseRateLimitFromEnv("LENIENT", httpx.LenientLimit)

	router := httpapi.NewRouter(BuildVersion, app.db, app.cache, app.logger)

	// Wire services to router
	router.AuthService = app.authService
	router.UserService = app.userService
	router.RolesService = app.rolesService
	router.BootstrapService = app.bootstrapService
	router.OpenID = app.openID // nil disables federated login
	router.OpenIDReturnTo = app.cfg.OpenIDReturnTo
	router.ApplyRoutes()

	app.router = router

	// Initialize HTTP server
	app.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", app.cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 3 * time.Second,
	}
}
