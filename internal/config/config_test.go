package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authkit/session-auth/internal/config"
)

// chdirTemp isolates the test from any .env files in the package directory.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestLoad_Defaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("APP_ENV", "")
	t.Setenv("SESSION_SECRET", "s3cret")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, config.EnvDevelopment, cfg.App.Env)
	assert.False(t, cfg.IsProduction())
	assert.Equal(t, "sid", cfg.Session.CookieName)
	assert.Equal(t, 24*time.Hour, cfg.Session.TTL())
	assert.Equal(t, 5, cfg.RateLimit.Max)
	assert.Equal(t, 15*time.Minute, cfg.RateLimit.Window())
	assert.Equal(t, "http://localhost:5173", cfg.CORS.AllowedOrigin)
	assert.Equal(t, 30*time.Second, cfg.App.RequestTimeout())
}

func TestLoad_MissingSecret(t *testing.T) {
	chdirTemp(t)
	t.Setenv("SESSION_SECRET", "")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SESSION_SECRET")
}

func TestLoad_ProductionRequiresDSN(t *testing.T) {
	chdirTemp(t)
	t.Setenv("APP_ENV", "production")
	t.Setenv("SESSION_SECRET", "s3cret")
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("DATABASE_URL", "")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "POSTGRES_DSN")
}

func TestLoad_ModeSpecificEnvFile(t *testing.T) {
	dir := chdirTemp(t)
	t.Setenv("APP_ENV", "production")
	// godotenv only fills variables that are absent, so unset them; t.Setenv
	// restores the previous values afterwards.
	for _, key := range []string{"SESSION_SECRET", "POSTGRES_DSN", "DATABASE_URL", "APP_PORT", "PORT"} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.production"),
		[]byte("SESSION_SECRET=from-prod-file\nPOSTGRES_DSN=postgres://db/prod\nPORT=9000\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"),
		[]byte("SESSION_SECRET=from-generic-file\n"), 0o600))

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.True(t, cfg.IsProduction())
	assert.Equal(t, "from-prod-file", cfg.Session.Secret)
	assert.Equal(t, "postgres://db/prod", cfg.Postgres.DSN)
	assert.Equal(t, "9000", cfg.App.Port)
}

func TestLoad_InvalidRedisDB(t *testing.T) {
	chdirTemp(t)
	t.Setenv("SESSION_SECRET", "s3cret")
	t.Setenv("REDIS_DB", "one")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REDIS_DB")
}
