package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "")
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("AUTH_SECRET", "")

	cfg := Load()

	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.NotEmpty(t, cfg.SessionSecret)
	assert.True(t, cfg.SecretFellBack())
}

func TestLoadExplicitSecret(t *testing.T) {
	t.Setenv("SESSION_SECRET", "explicit-secret")

	cfg := Load()
	assert.Equal(t, "explicit-secret", cfg.SessionSecret)
	assert.False(t, cfg.SecretFellBack())
}

func TestLoadFallbackSecretEnv(t *testing.T) {
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("AUTH_SECRET", "shared-secret")

	cfg := Load()
	assert.Equal(t, "shared-secret", cfg.SessionSecret)
	assert.False(t, cfg.SecretFellBack())
}

func TestValidateProductionRequiresSecret(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("UPSTREAM_BASE_URL", "https://api.example.com")
	t.Setenv("SESSION_SECRET", "")
	t.Setenv("AUTH_SECRET", "")

	cfg := Load()
	err := cfg.Validate(zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SESSION_SECRET")
}

func TestValidateProductionRequiresUpstream(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("SESSION_SECRET", "s3cret")

	cfg := Load()
	err := cfg.Validate(zap.NewNop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "UPSTREAM_BASE_URL")
}

func TestValidateDevelopmentToleratesFallback(t *testing.T) {
	cfg := Load()
	require.NoError(t, cfg.Validate(zap.NewNop()))
}

func TestNormalizeEnvironment(t *testing.T) {
	assert.Equal(t, EnvProduction, normalizeEnvironment("PROD"))
	assert.Equal(t, EnvStaging, normalizeEnvironment(" stage "))
	assert.Equal(t, EnvDevelopment, normalizeEnvironment("local"))
	assert.Equal(t, EnvDevelopment, normalizeEnvironment(""))
}

func TestUpstreamBaseURLTrailingSlashTrimmed(t *testing.T) {
	t.Setenv("UPSTREAM_BASE_URL", "https://api.example.com/")

	cfg := Load()
	assert.Equal(t, "https://api.example.com", cfg.UpstreamBaseURL)
}
