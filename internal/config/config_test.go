package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"SECRET_KEY", "JWT_ALGORITHM", "ACCESS_TOKEN_TTL", "REFRESH_TOKEN_TTL",
		"KDF_ITERATIONS", "DB_PATH", "LISTEN_ADDR", "LOG_LEVEL", "ENV",
		"FRONTEND_URL", "CORS_ALLOWED_ORIGINS", "TOKEN_CLEANUP_INTERVAL",
		"GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET", "GOOGLE_REDIRECT_URI",
	} {
		t.Setenv(k, "")
	}
}

func TestLoadFromEnv_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "qpin.sqlite", cfg.DBPath)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "HS256", cfg.JWTAlgorithm)
	assert.Equal(t, 30*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 30*24*time.Hour, cfg.RefreshTTL)
	assert.Equal(t, 100_000, cfg.KDFIterations)
	assert.Equal(t, insecureDefaultSecret, cfg.SecretKey)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSAllowedOrigins)
	assert.Zero(t, cfg.TokenCleanupInterval)
	assert.NotEmpty(t, cfg.Warnings, "insecure defaults should produce warnings")
}

func TestLoadFromEnv_AllVarsSet(t *testing.T) {
	clearEnv(t)
	t.Setenv("SECRET_KEY", "super-secret")
	t.Setenv("JWT_ALGORITHM", "HS512")
	t.Setenv("ACCESS_TOKEN_TTL", "15m")
	t.Setenv("REFRESH_TOKEN_TTL", "168h")
	t.Setenv("KDF_ITERATIONS", "200000")
	t.Setenv("DB_PATH", "/tmp/test.sqlite")
	t.Setenv("FRONTEND_URL", "https://app.example.com")
	t.Setenv("TOKEN_CLEANUP_INTERVAL", "1h")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)

	assert.Equal(t, "super-secret", cfg.SecretKey)
	assert.Equal(t, "HS512", cfg.JWTAlgorithm)
	assert.Equal(t, 15*time.Minute, cfg.AccessTTL)
	assert.Equal(t, 168*time.Hour, cfg.RefreshTTL)
	assert.Equal(t, 200_000, cfg.KDFIterations)
	assert.Equal(t, "/tmp/test.sqlite", cfg.DBPath)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.CORSAllowedOrigins)
	assert.Equal(t, time.Hour, cfg.TokenCleanupInterval)
}

func TestLoadFromEnv_InvalidAlgorithm(t *testing.T) {
	clearEnv(t)
	t.Setenv("JWT_ALGORITHM", "RS256")

	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_ALGORITHM")
}

func TestLoadFromEnv_InvalidKDFIterations(t *testing.T) {
	clearEnv(t)
	t.Setenv("KDF_ITERATIONS", "not-a-number")

	_, err := LoadFromEnv()
	require.Error(t, err)
}

func TestLoadFromEnv_CORSOrigins(t *testing.T) {
	clearEnv(t)
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example.com, https://b.example.com")

	cfg, err := LoadFromEnv()
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.CORSAllowedOrigins)
}

func TestLoadFromEnv_ProductionRequiresSecret(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENV", "production")
	t.Setenv("GOOGLE_CLIENT_ID", "client")
	t.Setenv("GOOGLE_CLIENT_SECRET", "secret")

	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SECRET_KEY")
}

func TestLoadFromEnv_ProductionRequiresGoogle(t *testing.T) {
	clearEnv(t)
	t.Setenv("ENV", "production")
	t.Setenv("SECRET_KEY", "real-secret")

	_, err := LoadFromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Google OAuth")
}

func TestSlogLevel(t *testing.T) {
	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"bogus", slog.LevelInfo},
	}
	for _, tt := range tests {
		cfg := &Config{LogLevel: tt.level}
		assert.Equal(t, tt.want, cfg.SlogLevel(), "level %q", tt.level)
	}
}

func TestLoadDotEnv_FileNotFound(t *testing.T) {
	err := LoadDotEnv("/nonexistent/.env")
	assert.NoError(t, err, ".env not found should not be an error")
}

func TestLoadDotEnv_ParsesAndRespectsExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	content := "# comment\nDOTENV_TEST_A=\"quoted\"\nDOTENV_TEST_B=plain\n\nnot a pair\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	t.Setenv("DOTENV_TEST_A", "")
	t.Setenv("DOTENV_TEST_B", "already-set")

	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "quoted", os.Getenv("DOTENV_TEST_A"))
	assert.Equal(t, "already-set", os.Getenv("DOTENV_TEST_B"), "existing env vars take precedence")
}
