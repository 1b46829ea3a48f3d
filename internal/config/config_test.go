package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testEncryptionKey = "0123456789abcdef0123456789abcdef"

func setRequired(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "secret")
	t.Setenv("SERVER_KEY_ENCRYPTION_KEY", testEncryptionKey)
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg := Load()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, "8000", cfg.GetPort())
	assert.Equal(t, StoreDynamoDB, cfg.StoreDriver)
	assert.Equal(t, "HS256", cfg.JWTAlgorithm)
	assert.Equal(t, 30*time.Minute, cfg.AccessTokenTTL())
	assert.Equal(t, 10*time.Second, cfg.HandshakeTimeout)
	assert.Equal(t, 30*time.Second, cfg.InvokeTimeout)
	assert.False(t, cfg.HealthCheckEnabled())
	assert.True(t, cfg.RequireAdminAuth)
	assert.Equal(t, "ToolServers", cfg.ToolServersTableName)
	assert.Equal(t, "UniqueKeys", cfg.UniqueKeysTableName)
	assert.Empty(t, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.AllowStdio)
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("STORE_DRIVER", "Memory")
	t.Setenv("JWT_ALGORITHM", "hs512")
	t.Setenv("MCP_HANDSHAKE_TIMEOUT", "5")
	t.Setenv("MCP_INVOKE_TIMEOUT", "1m")
	t.Setenv("HEALTH_CHECK_INTERVAL", "30s")
	t.Setenv("REQUIRE_ADMIN_AUTH", "false")
	t.Setenv("MCP_ALLOW_STDIO", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://console.test, ,https://ops.test")

	cfg := Load()

	require.NoError(t, cfg.Validate())
	assert.Equal(t, StoreMemory, cfg.StoreDriver)
	assert.Equal(t, "HS512", cfg.JWTAlgorithm)
	assert.Equal(t, 5*time.Second, cfg.HandshakeTimeout)
	assert.Equal(t, time.Minute, cfg.InvokeTimeout)
	assert.True(t, cfg.HealthCheckEnabled())
	assert.False(t, cfg.RequireAdminAuth)
	assert.Equal(t, []string{"https://console.test", "https://ops.test"}, cfg.CORSAllowedOrigins)
	assert.True(t, cfg.AllowStdio)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{name: "Missing JWT secret", env: map[string]string{"JWT_SECRET_KEY": ""}, wantErr: "JWT_SECRET_KEY"},
		{name: "Short encryption key", env: map[string]string{"SERVER_KEY_ENCRYPTION_KEY": "short"}, wantErr: "exactly 32 characters"},
		{name: "Asymmetric algorithm", env: map[string]string{"JWT_ALGORITHM": "RS256"}, wantErr: "JWT_ALGORITHM"},
		{name: "Unknown store", env: map[string]string{"STORE_DRIVER": "postgres"}, wantErr: "STORE_DRIVER"},
		{name: "Bad timeout", env: map[string]string{"MCP_INVOKE_TIMEOUT": "soon"}, wantErr: "MCP_INVOKE_TIMEOUT"},
		{name: "Bad expiry", env: map[string]string{"ACCESS_TOKEN_EXPIRE_MINUTES": "abc"}, wantErr: "ACCESS_TOKEN_EXPIRE_MINUTES"},
		{name: "Admin without password", env: map[string]string{"ADMIN_USERNAME": "admin"}, wantErr: "ADMIN_PASSWORD"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			err := Load().Validate()

			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestNewPanicsOnInvalidConfig(t *testing.T) {
	t.Setenv("JWT_SECRET_KEY", "")
	t.Setenv("SERVER_KEY_ENCRYPTION_KEY", "")

	assert.Panics(t, func() { New() })
}
