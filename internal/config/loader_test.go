package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ronl/business-api/pkg/errors"
	"github.com/ronl/business-api/pkg/logger"
)

func TestLoader_Defaults(t *testing.T) {
	cfg, err := NewLoader(filepath.Join(t.TempDir(), "absent.yaml"), logger.NewNoopLogger()).Load()
	require.NoError(t, err)

	assert.Equal(t, 3002, cfg.Server.Port)
	assert.Equal(t, "RS256", cfg.JWT.Algorithm)
	assert.Equal(t, 5*time.Minute, cfg.JWT.CacheTTLDuration())
	assert.Equal(t, 30*time.Second, cfg.Operaton.Timeout())
	assert.Equal(t, 10*time.Second, cfg.BRP.Timeout())
	assert.Equal(t, time.Minute, cfg.RateLimit.Window())
	assert.True(t, cfg.Tenant.IsolationEnabled)
	assert.True(t, cfg.Audit.IncludeIP)
	assert.Equal(t, 1000, cfg.Audit.Capacity)
	assert.Equal(t, "http://localhost:8080/realms/ronl/protocol/openid-connect/certs", cfg.Keycloak.JWKSURL())
}

func TestLoader_EnvironmentOverrides(t *testing.T) {
	t.Setenv("PORT", "4000")
	t.Setenv("KEYCLOAK_URL", "https://auth.example.nl/")
	t.Setenv("KEYCLOAK_REALM", "gemeenten")
	t.Setenv("OPERATON_TIMEOUT", "5000")
	t.Setenv("ENABLE_TENANT_ISOLATION", "false")
	t.Setenv("CORS_ORIGIN", "https://a.example.nl,https://b.example.nl")
	t.Setenv("BUSINESS_API_AUDIT_QUEUE_SIZE", "16")

	cfg, err := NewLoader(filepath.Join(t.TempDir(), "absent.yaml"), logger.NewNoopLogger()).Load()
	require.NoError(t, err)

	assert.Equal(t, 4000, cfg.Server.Port)
	assert.Equal(t, "https://auth.example.nl/realms/gemeenten/protocol/openid-connect/certs", cfg.Keycloak.JWKSURL())
	assert.Equal(t, 5*time.Second, cfg.Operaton.Timeout())
	assert.False(t, cfg.Tenant.IsolationEnabled)
	assert.Equal(t, []string{"https://a.example.nl", "https://b.example.nl"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 16, cfg.Audit.QueueSize)
}

func TestLoader_ConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("server:\n  port: 8088\nrate_limit:\n  max_requests: 7\nlog:\n  level: debug\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	loader := NewLoader(path, logger.NewNoopLogger())
	cfg, err := loader.Load()
	require.NoError(t, err)

	assert.Equal(t, 8088, cfg.Server.Port)
	assert.Equal(t, 7, cfg.RateLimit.MaxRequests)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Same(t, cfg, loader.Current())
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := NewLoader(filepath.Join(t.TempDir(), "absent.yaml"), logger.NewNoopLogger()).Load()
		require.NoError(t, err)
		return cfg
	}

	t.Run("symmetric algorithm rejected", func(t *testing.T) {
		cfg := valid()
		cfg.JWT.Algorithm = "HS256"
		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "HS256")
	})

	t.Run("missing operaton url", func(t *testing.T) {
		cfg := valid()
		cfg.Operaton.BaseURL = ""
		assert.Error(t, cfg.Validate())
	})

	t.Run("production forbids disabled tenant isolation", func(t *testing.T) {
		cfg := valid()
		cfg.Env = "production"
		cfg.Keycloak.ClientSecret = "s3cr3t"
		cfg.Tenant.IsolationEnabled = false
		err := cfg.Validate()
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.CodeInternal))
	})

	t.Run("production requires a client secret", func(t *testing.T) {
		cfg := valid()
		cfg.Env = "production"
		assert.Error(t, cfg.Validate())
		cfg.Keycloak.ClientSecret = "s3cr3t"
		assert.NoError(t, cfg.Validate())
	})
}
