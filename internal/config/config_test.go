package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		GitHubClientID:     "client",
		GitHubClientSecret: "secret",
		SessionSecret:      strings.Repeat("s", 32),
		SessionTTL:         time.Hour,
		StorageType:        "sqlite",
		SQLitePath:         "test.db",
		CacheSize:          10,
	}
}

// unsetEnv clears keys for the duration of the test.
func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, key := range keys {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	unsetEnv(t, "STORAGE_TYPE", "SQLITE_PATH", "CACHE_TTL", "API_PORT", "API_ENDPOINT")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.StorageType)
	assert.Equal(t, "./syscope.db", cfg.SQLitePath)
	assert.Equal(t, 24*time.Hour, cfg.CacheTTL)
	assert.Equal(t, "8080", cfg.APIPort)
	assert.Equal(t, "http://localhost:8080", cfg.APIEndpoint)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("STORAGE_TYPE", "postgres")
	t.Setenv("POSTGRES_URL", "postgres://localhost/syscope")
	t.Setenv("CACHE_TTL", "30m")
	t.Setenv("MEMBER_SYNC_SCHEDULE", "@hourly")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.StorageType)
	assert.Equal(t, "postgres://localhost/syscope", cfg.PostgresURL)
	assert.Equal(t, 30*time.Minute, cfg.CacheTTL)
	assert.Equal(t, "@hourly", cfg.MemberSyncSchedule)
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CACHE_TTL", "soon")

	_, err := Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing client id", func(c *Config) { c.GitHubClientID = "" }, "GITHUB_CLIENT_ID"},
		{"missing client secret", func(c *Config) { c.GitHubClientSecret = "" }, "GITHUB_CLIENT_SECRET"},
		{"short session secret", func(c *Config) { c.SessionSecret = "short" }, "SESSION_SECRET"},
		{"bad storage", func(c *Config) { c.StorageType = "mongo" }, "STORAGE_TYPE"},
		{"postgres without url", func(c *Config) { c.StorageType = "postgres" }, "POSTGRES_URL"},
		{"zero cache size", func(c *Config) { c.CacheSize = 0 }, "CACHE_SIZE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.field == "" {
				assert.NoError(t, err)
				return
			}
			var cfgErr *ConfigError
			require.ErrorAs(t, err, &cfgErr)
			assert.Equal(t, tt.field, cfgErr.Field)
		})
	}
}

func TestValidateClient(t *testing.T) {
	cfg := &Config{APIEndpoint: "http://localhost:8080"}
	assert.Error(t, cfg.ValidateClient())

	cfg.Token = "token"
	assert.NoError(t, cfg.ValidateClient())
}
