package app

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/aussiebroadwan/tavern/internal/auth/service"
)

// minSecretLength is the shortest HS256 secret accepted outside dev.
const minSecretLength = 32

type Config struct {
	Issuer        string        // Optional: issuer claim for tokens (default: tavern-auth)
	AccessSecret  string        // Required outside dev: HS256 secret for access tokens
	RefreshSecret string        // Required outside dev: HS256 secret for refresh tokens, distinct from AccessSecret
	AccessTTL     time.Duration // Optional: access token lifetime (default: 15m)
	RefreshTTL    time.Duration // Optional: refresh token lifetime (default: 14 days)

	DatabaseFile  string // Optional: path to SQLite database file (default: ./auth.db)
	PepperFile    string // Optional: path to file containing pepper for password hashing (default: ./pepper)
	RedisAddr     string // Optional: redis address for verification codes (default: localhost:6379)
	RedisPassword string // Optional
	RedisDB       int    // Optional (default: 0)

	CodeLength       int           // Optional: verification code length (default: 6)
	ActivationTTL    time.Duration // Optional (default: 24h)
	PasswordResetTTL time.Duration // Optional (default: 30m)
	EmailChangeTTL   time.Duration // Optional (default: 1h)

	OpenIDEndpoint string        // Optional: provider login endpoint; federated login is off when empty
	OpenIDRealm    string        // Optional: realm sent with every request to the provider
	OpenIDReturnTo string        // Optional: callback URL the provider redirects to
	OpenIDTimeout  time.Duration // Optional: timeout for check_authentication calls (default: 10s)

	BootstrapToken string // Optional: bootstrap is disabled unless set

	Env                   string        // Environment (dev, staging, prod) (default: dev)
	LogLevel              string        // Log level (debug, info, warn, error) (default: info)
	LogFormat             string        // Log format (json, text) (default: json)
	Port                  int           // HTTP server port (default: 8080)
	ShutdownGracePeriod   time.Duration // Graceful shutdown timeout (default: 10s)
	HousekeepingInterval  time.Duration // Housekeeping interval (default: 1h)
	HousekeepingRetention time.Duration // Age at which unactivated accounts are pruned (default: 7 days)
}

func LoadConfig() Config {
	return Config{
		Issuer:        getEnvOrDefault("AUTH_ISSUER", "tavern-auth"),
		AccessSecret:  os.Getenv("AUTH_ACCESS_SECRET"),
		RefreshSecret: os.Getenv("AUTH_REFRESH_SECRET"),
		AccessTTL:     getEnvDurationOrDefault("AUTH_ACCESS_TTL", 15*time.Minute),
		RefreshTTL:    getEnvDurationOrDefault("AUTH_REFRESH_TTL", 14*24*time.Hour),

		DatabaseFile:  getEnvOrDefault("AUTH_DATABASE_FILE", "auth.db"),
		PepperFile:    getEnvOrDefault("AUTH_PEPPER_FILE", "pepper"),
		RedisAddr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getEnvIntOrDefault("REDIS_DB", 0),

		CodeLength:       getEnvIntOrDefault("AUTH_CODE_LENGTH", service.DefaultCodeConfig.Length),
		ActivationTTL:    getEnvDurationOrDefault("AUTH_ACTIVATION_TTL", service.DefaultCodeConfig.ActivationTTL),
		PasswordResetTTL: getEnvDurationOrDefault("AUTH_PASSWORD_RESET_TTL", service.DefaultCodeConfig.PasswordResetTTL),
		EmailChangeTTL:   getEnvDurationOrDefault("AUTH_EMAIL_CHANGE_TTL", service.DefaultCodeConfig.EmailChangeTTL),

		OpenIDEndpoint: os.Getenv("OPENID_ENDPOINT"),
		OpenIDRealm:    os.Getenv("OPENID_REALM"),
		OpenIDReturnTo: os.Getenv("OPENID_RETURN_TO"),
		OpenIDTimeout:  getEnvDurationOrDefault("OPENID_TIMEOUT", 10*time.Second),

		BootstrapToken: os.Getenv("BOOTSTRAP_TOKEN"),

		Env:                   getEnvOrDefault("ENV", "dev"),
		LogLevel:              getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:             getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                  getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod:   getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
		HousekeepingInterval:  getEnvDurationOrDefault("HOUSEKEEPING_INTERVAL", 1*time.Hour),
		HousekeepingRetention: getEnvDurationOrDefault("HOUSEKEEPING_RETENTION", 7*24*time.Hour),
	}
}

// Validate checks the settings New cannot recover from. In dev, missing
// token secrets are filled with random ones, so tokens do not survive a
// restart.
func (c *Config) Validate() error {
	var errs []error

	if c.Env != "dev" {
		switch {
		case len(c.AccessSecret) < minSecretLength:
			errs = append(errs, fmt.Errorf("AUTH_ACCESS_SECRET must be at least %d bytes", minSecretLength))
		case len(c.RefreshSecret) < minSecretLength:
			errs = append(errs, fmt.Errorf("AUTH_REFRESH_SECRET must be at least %d bytes", minSecretLength))
		}
	}
	if c.AccessSecret != "" && c.AccessSecret == c.RefreshSecret {
		errs = append(errs, errors.New("AUTH_ACCESS_SECRET and AUTH_REFRESH_SECRET must differ"))
	}
	if c.AccessTTL <= 0 || c.RefreshTTL <= 0 {
		errs = append(errs, errors.New("token TTLs must be positive"))
	}
	if c.CodeLength < 4 {
		errs = append(errs, errors.New("AUTH_CODE_LENGTH must be at least 4"))
	}
	if c.HousekeepingRetention <= c.ActivationTTL {
		errs = append(errs, errors.New("HOUSEKEEPING_RETENTION must exceed AUTH_ACTIVATION_TTL"))
	}
	if c.OpenIDEndpoint != "" && (c.OpenIDRealm == "" || c.OpenIDReturnTo == "") {
		errs = append(errs, errors.New("OPENID_REALM and OPENID_RETURN_TO are required with OPENID_ENDPOINT"))
	}

	return errors.Join(errs...)
}

// CodeConfig returns the verification code settings.
func (c *Config) CodeConfig() service.CodeConfig {
	return service.CodeConfig{
		Length:           c.CodeLength,
		ActivationTTL:    c.ActivationTTL,
		PasswordResetTTL: c.PasswordResetTTL,
		EmailChangeTTL:   c.EmailChangeTTL,
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
