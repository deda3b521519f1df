package config

import (
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds the application configuration
type Config struct {
	// GitHub OAuth application
	GitHubClientID     string `env:"GITHUB_CLIENT_ID"`
	GitHubClientSecret string `env:"GITHUB_CLIENT_SECRET"`
	GitHubRedirectURL  string `env:"GITHUB_REDIRECT_URL" envDefault:"http://localhost:8080/auth/callback"`

	// Sessions
	SessionSecret string        `env:"SESSION_SECRET"`
	SessionTTL    time.Duration `env:"SESSION_TTL" envDefault:"168h"`

	// Storage
	StorageType string `env:"STORAGE_TYPE" envDefault:"sqlite"` // "sqlite" or "postgres"
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"./syscope.db"`
	PostgresURL string `env:"POSTGRES_URL"`

	// Commit cache
	CacheTTL  time.Duration `env:"CACHE_TTL" envDefault:"24h"`
	CacheSize int           `env:"CACHE_SIZE" envDefault:"1024"`

	// Cron spec for the collaborator sync job; empty disables it
	MemberSyncSchedule string `env:"MEMBER_SYNC_SCHEDULE"`

	// API Server
	APIPort  string `env:"API_PORT" envDefault:"8080"`
	APIHost  string `env:"API_HOST" envDefault:"localhost"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// CLI
	APIEndpoint string `env:"API_ENDPOINT" envDefault:"http://localhost:8080"`
	Token       string `env:"SYSCOPE_TOKEN"`
}

// Load loads the configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate validates the server configuration
func (c *Config) Validate() error {
	if c.GitHubClientID == "" {
		return &ConfigError{Field: "GITHUB_CLIENT_ID", Message: "GitHub OAuth client ID is required"}
	}
	if c.GitHubClientSecret == "" {
		return &ConfigError{Field: "GITHUB_CLIENT_SECRET", Message: "GitHub OAuth client secret is required"}
	}
	if len(c.SessionSecret) < 32 {
		return &ConfigError{Field: "SESSION_SECRET", Message: "must be at least 32 characters"}
	}
	if c.SessionTTL <= 0 {
		return &ConfigError{Field: "SESSION_TTL", Message: "must be positive"}
	}
	if c.StorageType != "sqlite" && c.StorageType != "postgres" {
		return &ConfigError{Field: "STORAGE_TYPE", Message: "must be 'sqlite' or 'postgres'"}
	}
	if c.StorageType == "postgres" && c.PostgresURL == "" {
		return &ConfigError{Field: "POSTGRES_URL", Message: "PostgreSQL URL is required when STORAGE_TYPE is 'postgres'"}
	}
	if c.CacheSize <= 0 {
		return &ConfigError{Field: "CACHE_SIZE", Message: "must be positive"}
	}
	return nil
}

// ValidateClient validates the settings the CLI needs
func (c *Config) ValidateClient() error {
	if c.APIEndpoint == "" {
		return &ConfigError{Field: "API_ENDPOINT", Message: "API endpoint is required"}
	}
	if c.Token == "" {
		return &ConfigError{Field: "SYSCOPE_TOKEN", Message: "session token is required (log in via /auth/login)"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Field + ": " + e.Message
}
