// Package config handles application configuration and environment loading.
package config

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Token lifecycle defaults; overridable through the environment.
const (
	defaultAccessTTL     = 30 * time.Minute
	defaultRefreshTTL    = 30 * 24 * time.Hour
	defaultKDFIterations = 100_000
)

// GoogleConfig holds the external identity-provider configuration.
type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// Enabled returns true when the Google OAuth flow is configured.
func (g *GoogleConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

// Config holds the configuration for the HTTP API, token subsystem, and
// SQLite storage.
type Config struct {
	SecretKey    string // shared secret for JWT signing and enduser-token key derivation
	JWTAlgorithm string // HS256 (default), HS384, or HS512
	AccessTTL    time.Duration
	RefreshTTL   time.Duration
	// KDFIterations is the PBKDF2 iteration count for the enduser-token
	// key. Changing it invalidates every previously issued enduser token.
	KDFIterations int

	DBPath     string // path to the SQLite database file
	ListenAddr string // HTTP listen address (default ":8080")
	LogLevel   string // log level: debug, info, warn, error (default "info")
	Env        string // environment: "development" (default) or "production"

	FrontendURL        string   // base URL the OAuth callback redirects to
	CORSAllowedOrigins []string // allowed origins for CORS (defaults to [FrontendURL])

	// TokenCleanupInterval gates the background sweep that deactivates
	// expired refresh tokens. Zero disables the scheduler; the admin
	// cleanup endpoint remains available either way.
	TokenCleanupInterval time.Duration

	Google GoogleConfig

	// Warnings collects non-fatal warnings generated during config loading.
	// These are logged by the caller after the logger is initialised.
	Warnings []string
}

// SlogLevel maps the LogLevel string to an slog.Level.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// IsProduction returns true when the server is running in production mode.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

const insecureDefaultSecret = "dev-secret-change-in-production"

// LoadFromEnv loads configuration from environment variables.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		SecretKey:    os.Getenv("SECRET_KEY"),
		JWTAlgorithm: os.Getenv("JWT_ALGORITHM"),
		DBPath:       os.Getenv("DB_PATH"),
		ListenAddr:   os.Getenv("LISTEN_ADDR"),
		LogLevel:     os.Getenv("LOG_LEVEL"),
		Env:          os.Getenv("ENV"),
		FrontendURL:  os.Getenv("FRONTEND_URL"),
		Google: GoogleConfig{
			ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
			ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
			RedirectURI:  os.Getenv("GOOGLE_REDIRECT_URI"),
		},
	}

	cfg.AccessTTL = parseDurationEnvDefault("ACCESS_TOKEN_TTL", defaultAccessTTL)
	cfg.RefreshTTL = parseDurationEnvDefault("REFRESH_TOKEN_TTL", defaultRefreshTTL)
	cfg.TokenCleanupInterval = parseDurationEnvDefault("TOKEN_CLEANUP_INTERVAL", 0)

	cfg.KDFIterations = defaultKDFIterations
	if v := os.Getenv("KDF_ITERATIONS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid KDF_ITERATIONS %q", v)
		}
		cfg.KDFIterations = n
	}

	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		origins := strings.Split(v, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
		cfg.CORSAllowedOrigins = compactNonEmpty(origins)
	}

	// Defaults
	if cfg.SecretKey == "" {
		cfg.SecretKey = insecureDefaultSecret
		cfg.Warnings = append(cfg.Warnings, "SECRET_KEY not set, using insecure default. Set SECRET_KEY in production!")
	}
	if cfg.JWTAlgorithm == "" {
		cfg.JWTAlgorithm = "HS256"
	}
	switch cfg.JWTAlgorithm {
	case "HS256", "HS384", "HS512":
	default:
		return nil, fmt.Errorf("unsupported JWT_ALGORITHM %q: must be HS256, HS384, or HS512", cfg.JWTAlgorithm)
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "qpin.sqlite"
	}
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = ":8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.FrontendURL == "" {
		cfg.FrontendURL = "http://localhost:3000"
	}
	if len(cfg.CORSAllowedOrigins) == 0 {
		cfg.CORSAllowedOrigins = []string{cfg.FrontendURL}
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, fmt.Errorf("token TTLs must be positive (access=%s refresh=%s)", cfg.AccessTTL, cfg.RefreshTTL)
	}
	if !cfg.Google.Enabled() {
		cfg.Warnings = append(cfg.Warnings, "Google OAuth is not configured; set GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET")
	}

	// Production mode: insecure defaults are fatal errors.
	if cfg.IsProduction() {
		if cfg.SecretKey == insecureDefaultSecret {
			return nil, fmt.Errorf("SECRET_KEY must be set in production (ENV=production)")
		}
		if !cfg.Google.Enabled() {
			return nil, fmt.Errorf("Google OAuth must be configured in production (ENV=production)")
		}
	}

	return cfg, nil
}

func parseDurationEnvDefault(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func compactNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}

// LoadDotEnv reads a .env file and sets any variables not already in the environment.
// Lines must be in KEY=VALUE format. Comments (#) and blank lines are skipped.
func LoadDotEnv(path string) error {
	f, err := os.Open(path) //nolint:gosec // path is caller-controlled
	if err != nil {
		if os.IsNotExist(err) {
			return nil // .env not found is not an error
		}
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		value = stripQuotes(value)
		// Only set if not already in the environment (env vars take precedence)
		if os.Getenv(key) == "" {
			if err := os.Setenv(key, value); err != nil {
				return fmt.Errorf("setenv %s: %w", key, err)
			}
		}
	}
	return scanner.Err()
}

// stripQuotes removes surrounding double or single quotes from a value.
// Only strips if both the first and last characters are matching quotes.
func stripQuotes(s string) string {
	if len(s) >= 2 {
		if (s[0] == '"' && s[len(s)-1] == '"') || (s[0] == '\'' && s[len(s)-1] == '\'') {
			return s[1 : len(s)-1]
		}
	}
	return s
}
