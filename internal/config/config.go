// Package config provides configuration management for the researcher
// identity service.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// SSL mode constants for database connections.
const (
	// SSLModeDisable disables SSL (use only for local development).
	SSLModeDisable = "disable"
	// SSLModeRequire requires SSL but does not verify certificates.
	SSLModeRequire = "require"
	// SSLModeVerifyCA verifies the server certificate against a CA.
	SSLModeVerifyCA = "verify-ca"
	// SSLModeVerifyFull verifies the server certificate and hostname.
	SSLModeVerifyFull = "verify-full"
)

// Config holds all configuration for the researcher identity service.
type Config struct {
	// Server contains HTTP server settings.
	Server ServerConfig `mapstructure:"server"`
	// Database contains PostgreSQL connection settings.
	Database DatabaseConfig `mapstructure:"database"`
	// Logging contains structured logging settings.
	Logging LoggingConfig `mapstructure:"logging"`
	// Metrics contains Prometheus metrics exposure settings.
	Metrics MetricsConfig `mapstructure:"metrics"`
	// Upstreams contains upstream data source configurations.
	Upstreams UpstreamsConfig `mapstructure:"upstreams"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	// Host is the address to bind the server to (default: 0.0.0.0).
	Host string `mapstructure:"host"`
	// HTTPPort is the HTTP server port (default: 8080).
	HTTPPort int `mapstructure:"http_port"`
	// ReadTimeout is the maximum duration for reading request body.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
	// WriteTimeout is the maximum duration for writing response.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// ShutdownTimeout is the maximum duration to wait for graceful shutdown.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig holds database connection configuration.
type DatabaseConfig struct {
	// Host is the PostgreSQL server hostname.
	Host string `mapstructure:"host"`
	// Port is the PostgreSQL server port (default: 5432).
	Port int `mapstructure:"port"`
	// User is the database username.
	User string `mapstructure:"user"`
	// Password is the database password (use environment variable in production).
	Password string `mapstructure:"password"`
	// Name is the database name.
	Name string `mapstructure:"name"`
	// SSLMode controls SSL connection security (require, verify-ca, verify-full, disable).
	// Default is "require" for production security. Use "disable" only for local development.
	SSLMode string `mapstructure:"ssl_mode"`
	// MaxConns is the maximum number of connections in the pool (default: 50).
	MaxConns int32 `mapstructure:"max_conns"`
	// MinConns is the minimum number of connections to keep open (default: 10).
	MinConns int32 `mapstructure:"min_conns"`
	// MaxConnLifetime is the maximum lifetime of a connection before it's closed.
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	// MaxConnIdleTime is the maximum time a connection can be idle before it's closed.
	MaxConnIdleTime time.Duration `mapstructure:"max_conn_idle_time"`
	// HealthCheckPeriod is the interval between health checks of idle connections.
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	// ConnectTimeout is the maximum time to wait for a connection.
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	// MigrationPath is the path to migration files (relative or absolute).
	MigrationPath string `mapstructure:"migration_path"`
	// MigrationAutoRun enables automatic migration on startup (default: false).
	MigrationAutoRun bool `mapstructure:"migration_auto_run"`
	// StatementCacheCapacity is the size of the prepared statement cache.
	StatementCacheCapacity int `mapstructure:"statement_cache_capacity"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	// Level is the log level (trace, debug, info, warn, error, fatal, panic).
	Level string `mapstructure:"level"`
	// Format is the log format (json, console).
	Format string `mapstructure:"format"`
	// Output is the log output destination (stdout, stderr, file path).
	Output string `mapstructure:"output"`
	// AddSource adds source file and line to log output.
	AddSource bool `mapstructure:"add_source"`
	// TimeFormat is the timestamp format.
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	// Enabled enables metrics collection and exposure.
	Enabled bool `mapstructure:"enabled"`
	// Path is the HTTP path for metrics endpoint.
	Path string `mapstructure:"path"`
	// Namespace prefixes all metric names.
	Namespace string `mapstructure:"namespace"`
}

// UpstreamsConfig holds configuration for all upstream data sources.
type UpstreamsConfig struct {
	// Registry contains identity registry API settings.
	Registry RegistryConfig `mapstructure:"registry"`
	// Bibliography contains bibliographic database API settings.
	Bibliography BibliographyConfig `mapstructure:"bibliography"`
	// Scholar contains scholarly search scraping settings.
	Scholar ScholarConfig `mapstructure:"scholar"`
}

// RegistryConfig holds identity registry API settings.
type RegistryConfig struct {
	// BaseURL is the registry API base URL.
	BaseURL string `mapstructure:"base_url"`
	// TokenURL is the client-credentials token endpoint.
	TokenURL string `mapstructure:"token_url"`
	// ClientID identifies this service for bearer-token auth.
	ClientID string `mapstructure:"client_id"`
	// ClientSecret is loaded from RESEARCHERID_UPSTREAMS_REGISTRY_CLIENT_SECRET.
	ClientSecret string `mapstructure:"-"`
	// Scope is the token scope requested during the exchange.
	Scope string `mapstructure:"scope"`
	// Timeout is the timeout for API calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit"`
	// BurstSize is the maximum burst of requests allowed.
	BurstSize int `mapstructure:"burst_size"`
	// MaxAttempts is the total request invocations per call, including
	// the first.
	MaxAttempts int `mapstructure:"max_attempts"`
	// RetryDelay is the delay before the first retry; it doubles after
	// each failed attempt.
	RetryDelay time.Duration `mapstructure:"retry_delay"`
	// DetailThreshold controls eager enrichment of search hits.
	DetailThreshold int `mapstructure:"detail_threshold"`
}

// BibliographyConfig holds bibliographic database API settings.
type BibliographyConfig struct {
	// BaseURL is the API base URL.
	BaseURL string `mapstructure:"base_url"`
	// APIKey is loaded from RESEARCHERID_UPSTREAMS_BIBLIOGRAPHY_API_KEY.
	APIKey string `mapstructure:"-"`
	// Timeout is the timeout for API calls.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit"`
	// BurstSize is the maximum burst of requests allowed.
	BurstSize int `mapstructure:"burst_size"`
	// MaxResults is the default maximum results per search.
	MaxResults int `mapstructure:"max_results"`
}

// ScholarConfig holds scholarly search scraping settings.
type ScholarConfig struct {
	// BaseURL is the site root.
	BaseURL string `mapstructure:"base_url"`
	// Timeout is the timeout for page fetches.
	Timeout time.Duration `mapstructure:"timeout"`
	// RateLimit is the maximum requests per second.
	RateLimit float64 `mapstructure:"rate_limit"`
	// BurstSize is the maximum burst of requests allowed.
	BurstSize int `mapstructure:"burst_size"`
	// MaxAttempts bounds fetch attempts for a single page.
	MaxAttempts int `mapstructure:"max_attempts"`
	// UserAgent overrides the browser-like default.
	UserAgent string `mapstructure:"user_agent"`
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	params := url.Values{}
	params.Set("sslmode", c.SSLMode)
	if c.ConnectTimeout > 0 {
		params.Set("connect_timeout", fmt.Sprintf("%d", int(c.ConnectTimeout.Seconds())))
	}
	if c.StatementCacheCapacity > 0 {
		params.Set("statement_cache_capacity", fmt.Sprintf("%d", c.StatementCacheCapacity))
	}

	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?%s",
		url.QueryEscape(c.User),
		url.QueryEscape(c.Password),
		c.Host,
		c.Port,
		c.Name,
		params.Encode(),
	)
}

// HTTPAddress returns the HTTP server address.
func (c *ServerConfig) HTTPAddress() string {
	return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort)
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("RESEARCHERID")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file if present
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/researcher-identity-service")

	if err := v.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &configNotFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use env vars and defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Load secrets exclusively from environment variables.
	// These fields use mapstructure:"-" to prevent loading from config files.
	loadSecrets(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadSecrets populates secret fields exclusively from environment variables.
// These fields are tagged with mapstructure:"-" to prevent loading from config files.
func loadSecrets(cfg *Config) {
	cfg.Upstreams.Registry.ClientSecret = os.Getenv("RESEARCHERID_UPSTREAMS_REGISTRY_CLIENT_SECRET")
	cfg.Upstreams.Bibliography.APIKey = os.Getenv("RESEARCHERID_UPSTREAMS_BIBLIOGRAPHY_API_KEY")
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.http_port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "30s")

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "researcherid")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "researcher_identity_service")
	// Default to "require" for production security. Use RESEARCHERID_DATABASE_SSL_MODE=disable for local development.
	v.SetDefault("database.ssl_mode", SSLModeRequire)
	v.SetDefault("database.max_conns", 50)
	v.SetDefault("database.min_conns", 10)
	v.SetDefault("database.max_conn_lifetime", "1h")
	v.SetDefault("database.max_conn_idle_time", "30m")
	v.SetDefault("database.health_check_period", "30s")
	v.SetDefault("database.connect_timeout", "10s")
	v.SetDefault("database.migration_path", "migrations")
	v.SetDefault("database.migration_auto_run", false)
	v.SetDefault("database.statement_cache_capacity", 512)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stdout")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
	v.SetDefault("metrics.namespace", "researcherid")

	// Registry defaults
	// The client secret is loaded exclusively from environment variables (see loadSecrets).
	v.SetDefault("upstreams.registry.base_url", "https://pub.orcid.org/v3.0")
	v.SetDefault("upstreams.registry.token_url", "https://orcid.org/oauth/token")
	v.SetDefault("upstreams.registry.client_id", "")
	v.SetDefault("upstreams.registry.scope", "/read-public")
	v.SetDefault("upstreams.registry.timeout", "30s")
	v.SetDefault("upstreams.registry.rate_limit", 0.1) // one request per 10 seconds
	v.SetDefault("upstreams.registry.burst_size", 1)
	v.SetDefault("upstreams.registry.max_attempts", 3)
	v.SetDefault("upstreams.registry.retry_delay", "2s")
	v.SetDefault("upstreams.registry.detail_threshold", 5)

	// Bibliography defaults
	v.SetDefault("upstreams.bibliography.base_url", "https://eutils.ncbi.nlm.nih.gov/entrez/eutils")
	v.SetDefault("upstreams.bibliography.timeout", "30s")
	v.SetDefault("upstreams.bibliography.rate_limit", 3.0) // NCBI recommends max 3 req/sec without API key
	v.SetDefault("upstreams.bibliography.burst_size", 3)
	v.SetDefault("upstreams.bibliography.max_results", 20)

	// Scholar defaults
	v.SetDefault("upstreams.scholar.base_url", "https://scholar.google.com")
	v.SetDefault("upstreams.scholar.timeout", "30s")
	v.SetDefault("upstreams.scholar.rate_limit", 0.2) // one request per 5 seconds
	v.SetDefault("upstreams.scholar.burst_size", 1)
	v.SetDefault("upstreams.scholar.max_attempts", 3)
	v.SetDefault("upstreams.scholar.user_agent", "")
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	// Validate server ports
	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.Server.HTTPPort)
	}

	// Validate database config
	if c.Database.Host == "" {
		return fmt.Errorf("database host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		return fmt.Errorf("invalid database port: %d", c.Database.Port)
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database name is required")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		return fmt.Errorf("max_conns (%d) must be >= min_conns (%d)", c.Database.MaxConns, c.Database.MinConns)
	}

	// Validate log level
	validLogLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	// Validate upstream configs
	if c.Upstreams.Registry.BaseURL == "" {
		return fmt.Errorf("registry base URL is required")
	}
	if c.Upstreams.Registry.RateLimit <= 0 {
		return fmt.Errorf("registry rate limit must be positive")
	}
	if c.Upstreams.Registry.DetailThreshold < 0 {
		return fmt.Errorf("registry detail threshold must not be negative")
	}
	if c.Upstreams.Registry.ClientID != "" && c.Upstreams.Registry.ClientSecret == "" {
		return fmt.Errorf("registry client_id requires RESEARCHERID_UPSTREAMS_REGISTRY_CLIENT_SECRET to be set")
	}
	if c.Upstreams.Bibliography.BaseURL == "" {
		return fmt.Errorf("bibliography base URL is required")
	}
	if c.Upstreams.Bibliography.RateLimit <= 0 {
		return fmt.Errorf("bibliography rate limit must be positive")
	}
	if c.Upstreams.Bibliography.MaxResults <= 0 {
		return fmt.Errorf("bibliography max_results must be positive")
	}
	if c.Upstreams.Scholar.BaseURL == "" {
		return fmt.Errorf("scholar base URL is required")
	}
	if c.Upstreams.Scholar.RateLimit <= 0 {
		return fmt.Errorf("scholar rate limit must be positive")
	}
	if c.Upstreams.Scholar.MaxAttempts <= 0 {
		return fmt.Errorf("scholar max_attempts must be positive")
	}

	return nil
}
