package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for the family registry service.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8443"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Authentication configuration
	Auth AuthConfig `yaml:"auth"`

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// Redis configuration (optional, member label cache)
	Redis RedisConfig `yaml:"redis"`

	// MigrationsPath is the directory containing SQL migration files.
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`
}

// AuthConfig holds authentication-related configuration.
type AuthConfig struct {
	// EnableVerification controls whether JWT tokens are validated.
	// Set to false for local development without the auth server.
	EnableVerification bool `yaml:"enable_verification" env:"AUTH_ENABLE_VERIFICATION" env-default:"true"`

	// JWKSEndpointsStr is a comma-separated list of issuer=jwks_url pairs.
	// Format: "issuer1=url1,issuer2=url2"
	JWKSEndpointsStr string `yaml:"jwks_endpoints" env:"JWKS_ENDPOINTS" env-default:""`

	// JWKSEndpoints is the parsed map from JWKSEndpointsStr (not from config file).
	JWKSEndpoints map[string]string `yaml:"-"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"registry"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"family_registry"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// URL returns the PostgreSQL connection URL.
func (c *DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

// RedisConfig holds Redis configuration. An empty Host disables Redis.
type RedisConfig struct {
	Host     string `yaml:"host" env:"REDIS_HOST" env-default:""`
	Port     int    `yaml:"port" env:"REDIS_PORT" env-default:"6379"`
	Password string `yaml:"-" env:"REDIS_PASSWORD"` // Secret - not in YAML
	DB       int    `yaml:"db" env:"REDIS_DB" env-default:"0"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// If config.yaml does not exist, configuration comes from the environment alone.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment config: %w", err)
		}
	}

	cfg.Auth.JWKSEndpoints = parseJWKSEndpoints(cfg.Auth.JWKSEndpointsStr)

	if cfg.Auth.EnableVerification && len(cfg.Auth.JWKSEndpoints) == 0 {
		return nil, fmt.Errorf("auth verification enabled but no JWKS endpoints configured")
	}

	return cfg, nil
}

// parseJWKSEndpoints parses "issuer1=url1,issuer2=url2" into a map.
// Malformed pairs are skipped.
func parseJWKSEndpoints(s string) map[string]string {
	endpoints := make(map[string]string)
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			continue
		}
		endpoints[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return endpoints
}
