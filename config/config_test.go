package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaultsAndEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/contests")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("RESET_TOKEN_TTL", "30m")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "5000", cfg.Server.Port)
	assert.Equal(t, "postgres://localhost/contests", cfg.Database.URL)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, 30*time.Minute, cfg.Auth.ResetTokenTTL)
	assert.Equal(t, 6*time.Hour, cfg.Auth.AdminTokenTTL)
	assert.Equal(t, 25, cfg.Database.MaxOpenConns)
	require.NoError(t, cfg.Validate())
}

func TestLoad_YAMLThenEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yml := `
server:
  port: "8080"
database:
  url: postgres://from-file
auth:
  jwt_secret: file-secret
  reset_token_ttl: 45m
storage:
  driver: local
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o600))
	t.Setenv("DATABASE_URL", "postgres://from-env")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "postgres://from-env", cfg.Database.URL)
	assert.Equal(t, "file-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, 45*time.Minute, cfg.Auth.ResetTokenTTL)
}

func TestLoad_PoolSettingsFromEnv(t *testing.T) {
	t.Setenv("DB_MAX_OPEN_CONNS", "40")
	t.Setenv("DB_MAX_IDLE_CONNS", "10")
	t.Setenv("DB_CONN_MAX_LIFETIME", "5m")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 40, cfg.Database.MaxOpenConns)
	assert.Equal(t, 10, cfg.Database.MaxIdleConns)
	assert.Equal(t, 5*time.Minute, cfg.Database.ConnMaxLifetime)

	t.Setenv("DB_MAX_OPEN_CONNS", "many")
	_, err = Load("")
	require.Error(t, err)
}

func TestLoad_InvalidDurationFails(t *testing.T) {
	t.Setenv("USER_TOKEN_TTL", "soon")
	_, err := Load("")
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	assert.ErrorContains(t, cfg.Validate(), "DATABASE_URL")

	cfg.Database.URL = "postgres://x"
	cfg.Auth.JWTSecret = "k"
	cfg.Auth.ResetTokenTTL = 2 * time.Hour
	assert.ErrorContains(t, cfg.Validate(), "reset token ttl")

	cfg.Auth.ResetTokenTTL = time.Hour
	cfg.Storage.Driver = "r2"
	assert.ErrorContains(t, cfg.Validate(), "r2 storage")

	cfg.Storage.Driver = "ftp"
	assert.ErrorContains(t, cfg.Validate(), "unknown storage driver")
}
