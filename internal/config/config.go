// Package config loads and validates the portal configuration using Viper.
//
// Configuration is layered: built-in defaults < YAML config file < environment
// variables. Environment variables use the RP_ prefix (e.g., RP_BACKEND_URL
// overrides backend.url in the YAML). This layering allows the same binary to
// run with a config.yaml in local development and with pure environment variables
// in containerized deployments.
package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Login modes.
const (
	// AuthModeBackend sends the browser to the backend's own OAuth entry point,
	// which redirects back to /auth/callback?token=...
	AuthModeBackend = "backend"
	// AuthModeOIDC runs the authorization-code flow in the portal and uses the
	// verified ID token as the backend bearer token.
	AuthModeOIDC = "oidc"
)

// Session persistence backends.
const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Backend   BackendConfig   `mapstructure:"backend"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Session   SessionConfig   `mapstructure:"session"`
	Redis     RedisConfig     `mapstructure:"redis"`
	I18n      I18nConfig      `mapstructure:"i18n"`
	Site      SiteConfig      `mapstructure:"site"`
	Security  SecurityConfig  `mapstructure:"security"`
	Audit     AuditConfig     `mapstructure:"audit"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	BaseURL      string        `mapstructure:"base_url"`
	PublicURL    string        `mapstructure:"public_url"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// DevMode relaxes secret requirements and marks cookies non-Secure.
	DevMode bool `mapstructure:"dev_mode"`
}

// GetPublicURL returns the public-facing URL used for OAuth callbacks and external redirects.
// When server.public_url is set it is returned as-is; otherwise it falls back to server.base_url.
func (s *ServerConfig) GetPublicURL() string {
	if s.PublicURL != "" {
		return strings.TrimRight(s.PublicURL, "/")
	}
	return strings.TrimRight(s.BaseURL, "/")
}

// GetAddress returns the server address in host:port format
func (s *ServerConfig) GetAddress() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// BackendConfig locates the REST API the portal presents.
type BackendConfig struct {
	URL        string        `mapstructure:"url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	LoginPath  string        `mapstructure:"login_path"`
	HealthPath string        `mapstructure:"health_path"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	Mode string     `mapstructure:"mode"`
	OIDC OIDCConfig `mapstructure:"oidc"`
}

// OIDCConfig holds generic OIDC provider configuration
type OIDCConfig struct {
	Enabled      bool     `mapstructure:"enabled"`
	IssuerURL    string   `mapstructure:"issuer_url"`
	ClientID     string   `mapstructure:"client_id"`
	ClientSecret string   `mapstructure:"client_secret"`
	RedirectURL  string   `mapstructure:"redirect_url"`
	Scopes       []string `mapstructure:"scopes"`
}

// SessionConfig controls the browser session cookie and server-side session state.
type SessionConfig struct {
	CookieName string `mapstructure:"cookie_name"`
	// Secret signs the session cookie. Required unless server.dev_mode is set.
	Secret       string        `mapstructure:"secret"`
	CookieMaxAge time.Duration `mapstructure:"cookie_max_age"`
	// Store is where tokens and profile snapshots persist: memory or redis.
	Store      string        `mapstructure:"store"`
	KeyPrefix  string        `mapstructure:"key_prefix"`
	PersistTTL time.Duration `mapstructure:"persist_ttl"`
	// IdleTTL is how long an unused session stays in memory before the sweeper drops it.
	IdleTTL       time.Duration `mapstructure:"idle_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	// BootTimeout bounds rehydration of a persisted token; BootWait is how long a
	// request waits for it before the waiting page is shown.
	BootTimeout time.Duration `mapstructure:"boot_timeout"`
	BootWait    time.Duration `mapstructure:"boot_wait"`
}

// RedisConfig holds the Redis connection used for sessions and rate limiting.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Enabled reports whether a Redis address is configured.
func (r *RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// I18nConfig selects the interface languages.
type I18nConfig struct {
	DefaultLanguage string   `mapstructure:"default_language"`
	Supported       []string `mapstructure:"supported"`
}

// SiteConfig holds static values shown on public pages.
type SiteConfig struct {
	Name              string `mapstructure:"name"`
	PublicationsCount int    `mapstructure:"publications_count"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	CSRF         CSRFConfig         `mapstructure:"csrf"`
	RateLimiting RateLimitingConfig `mapstructure:"rate_limiting"`
	TLS          TLSConfig          `mapstructure:"tls"`
}

// CSRFConfig configures form protection on admin and auth routes.
type CSRFConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// Key is a 32 byte secret; the session secret is used when empty.
	Key string `mapstructure:"key"`
}

// RateLimitingConfig holds rate limiting configuration for the auth endpoints.
type RateLimitingConfig struct {
	Enabled           bool `mapstructure:"enabled"`
	RequestsPerMinute int  `mapstructure:"requests_per_minute"`
	Burst             int  `mapstructure:"burst"`
}

// TLSConfig holds TLS/HTTPS configuration
type TLSConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	CertFile string `mapstructure:"cert_file"`
	KeyFile  string `mapstructure:"key_file"`
}

// AuditConfig controls the audit trail of admin writes.
type AuditConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// LogFailedRequests also records writes the backend rejected.
	LogFailedRequests bool               `mapstructure:"log_failed_requests"`
	File              AuditFileConfig    `mapstructure:"file"`
	Webhook           AuditWebhookConfig `mapstructure:"webhook"`
}

// AuditFileConfig appends JSON lines to a local file.
type AuditFileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// AuditWebhookConfig posts entries to an HTTP collector.
type AuditWebhookConfig struct {
	URL           string            `mapstructure:"url"`
	Headers       map[string]string `mapstructure:"headers"`
	Timeout       time.Duration     `mapstructure:"timeout"`
	BatchSize     int               `mapstructure:"batch_size"`
	FlushInterval time.Duration     `mapstructure:"flush_interval"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	// Watch reloads logging.level when the config file changes.
	Watch bool `mapstructure:"watch"`
}

// TelemetryConfig holds observability configuration
type TelemetryConfig struct {
	ServiceName string          `mapstructure:"service_name"`
	Metrics     MetricsConfig   `mapstructure:"metrics"`
	Profiling   ProfilingConfig `mapstructure:"profiling"`
}

// MetricsConfig holds Prometheus metrics configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// ProfilingConfig holds profiling configuration
type ProfilingConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// bindEnvVars explicitly binds environment variables to config keys.
// This is necessary because AutomaticEnv() doesn't work well with nested structs during Unmarshal.
func bindEnvVars(v *viper.Viper) error {
	keys := []string{
		// Server
		"server.host",
		"server.port",
		"server.base_url",
		"server.public_url",
		"server.read_timeout",
		"server.write_timeout",
		"server.dev_mode",

		// Backend
		"backend.url",
		"backend.timeout",
		"backend.login_path",
		"backend.health_path",

		// Auth
		"auth.mode",
		"auth.oidc.enabled",
		"auth.oidc.issuer_url",
		"auth.oidc.client_id",
		"auth.oidc.client_secret",
		"auth.oidc.redirect_url",
		"auth.oidc.scopes",

		// Session
		"session.cookie_name",
		"session.secret",
		"session.cookie_max_age",
		"session.store",
		"session.key_prefix",
		"session.persist_ttl",
		"session.idle_ttl",
		"session.sweep_interval",
		"session.boot_timeout",
		"session.boot_wait",

		// Redis
		"redis.addr",
		"redis.password",
		"redis.db",

		// I18n and site
		"i18n.default_language",
		"i18n.supported",
		"site.name",
		"site.publications_count",

		// Security
		"security.csrf.enabled",
		"security.csrf.key",
		"security.rate_limiting.enabled",
		"security.rate_limiting.requests_per_minute",
		"security.rate_limiting.burst",
		"security.tls.enabled",
		"security.tls.cert_file",
		"security.tls.key_file",

		// Audit
		"audit.enabled",
		"audit.log_failed_requests",
		"audit.file.path",
		"audit.file.max_size_mb",
		"audit.file.max_backups",
		"audit.webhook.url",
		"audit.webhook.timeout",
		"audit.webhook.batch_size",
		"audit.webhook.flush_interval",

		// Logging
		"logging.level",
		"logging.format",
		"logging.watch",

		// Telemetry
		"telemetry.service_name",
		"telemetry.metrics.enabled",
		"telemetry.metrics.port",
		"telemetry.profiling.enabled",
		"telemetry.profiling.port",
	}
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return fmt.Errorf("failed to bind env var %q: %w", key, err)
		}
	}
	return nil
}

// newViper builds the layered viper instance shared by Load and WatchLogLevel.
func newViper(configPath string) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/research-portal")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; use defaults and environment variables
	}

	v.SetEnvPrefix("RP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := bindEnvVars(v); err != nil {
		return nil, err
	}
	return v, nil
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v, err := newViper(configPath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Expand environment variables in sensitive fields
	cfg.Session.Secret = expandEnv(cfg.Session.Secret)
	cfg.Auth.OIDC.ClientSecret = expandEnv(cfg.Auth.OIDC.ClientSecret)
	cfg.Redis.Password = expandEnv(cfg.Redis.Password)
	cfg.Security.CSRF.Key = expandEnv(cfg.Security.CSRF.Key)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// WatchLogLevel watches the config file and calls apply with logging.level every
// time the file changes. It returns false when there is no file to watch.
func WatchLogLevel(configPath string, apply func(level string)) (bool, error) {
	v, err := newViper(configPath)
	if err != nil {
		return false, err
	}
	if v.ConfigFileUsed() == "" {
		return false, nil
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		apply(v.GetString("logging.level"))
	})
	v.WatchConfig()
	return true, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.base_url", "http://localhost:8080")
	v.SetDefault("server.public_url", "")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.dev_mode", false)

	// Backend defaults
	v.SetDefault("backend.url", "http://localhost:3000")
	v.SetDefault("backend.timeout", "15s")
	v.SetDefault("backend.login_path", "/auth/google")
	v.SetDefault("backend.health_path", "/")

	// Auth defaults
	v.SetDefault("auth.mode", AuthModeBackend)
	v.SetDefault("auth.oidc.enabled", false)
	v.SetDefault("auth.oidc.scopes", []string{"openid", "email", "profile"})

	// Session defaults
	v.SetDefault("session.cookie_name", "rp_session")
	v.SetDefault("session.cookie_max_age", "720h")
	v.SetDefault("session.store", SessionStoreMemory)
	v.SetDefault("session.key_prefix", "portal:session")
	v.SetDefault("session.persist_ttl", "720h")
	v.SetDefault("session.idle_ttl", "2h")
	v.SetDefault("session.sweep_interval", "10m")
	v.SetDefault("session.boot_timeout", "10s")
	v.SetDefault("session.boot_wait", "2s")

	// Redis defaults
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.db", 0)

	// I18n and site defaults
	v.SetDefault("i18n.default_language", "en")
	v.SetDefault("i18n.supported", []string{"en", "es"})
	v.SetDefault("site.name", "Research Group")
	v.SetDefault("site.publications_count", 12)

	// Security defaults
	v.SetDefault("security.csrf.enabled", true)
	v.SetDefault("security.rate_limiting.enabled", true)
	v.SetDefault("security.rate_limiting.requests_per_minute", 30)
	v.SetDefault("security.rate_limiting.burst", 10)
	v.SetDefault("security.tls.enabled", false)

	// Audit defaults
	v.SetDefault("audit.enabled", false)
	v.SetDefault("audit.log_failed_requests", false)
	v.SetDefault("audit.file.max_size_mb", 100)
	v.SetDefault("audit.file.max_backups", 5)
	v.SetDefault("audit.webhook.timeout", "10s")
	v.SetDefault("audit.webhook.flush_interval", "5s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.watch", false)

	// Telemetry defaults
	v.SetDefault("telemetry.service_name", "research-portal")
	v.SetDefault("telemetry.metrics.enabled", true)
	v.SetDefault("telemetry.metrics.port", 9090)
	v.SetDefault("telemetry.profiling.enabled", false)
	v.SetDefault("telemetry.profiling.port", 6060)
}

// expandEnv expands environment variables in the format ${VAR_NAME}
func expandEnv(s string) string {
	return os.ExpandEnv(s)
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Validate server
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Server.BaseURL == "" {
		return fmt.Errorf("server.base_url is required")
	}

	// Validate backend
	if c.Backend.URL == "" {
		return fmt.Errorf("backend.url is required")
	}
	if c.Backend.Timeout <= 0 {
		return fmt.Errorf("backend.timeout must be positive")
	}

	// Validate auth mode
	switch c.Auth.Mode {
	case AuthModeBackend:
	case AuthModeOIDC:
		if c.Auth.OIDC.IssuerURL == "" {
			return fmt.Errorf("auth.oidc.issuer_url is required when auth.mode is oidc")
		}
		if c.Auth.OIDC.ClientID == "" {
			return fmt.Errorf("auth.oidc.client_id is required when auth.mode is oidc")
		}
		if c.Auth.OIDC.ClientSecret == "" {
			return fmt.Errorf("auth.oidc.client_secret is required when auth.mode is oidc")
		}
	default:
		return fmt.Errorf("invalid auth mode: %s (must be backend or oidc)", c.Auth.Mode)
	}

	// Validate session
	if c.Session.CookieName == "" {
		return fmt.Errorf("session.cookie_name is required")
	}
	if c.Session.Secret == "" && !c.Server.DevMode {
		return fmt.Errorf("session.secret is required unless server.dev_mode is enabled")
	}
	switch c.Session.Store {
	case SessionStoreMemory:
	case SessionStoreRedis:
		if !c.Redis.Enabled() {
			return fmt.Errorf("redis.addr is required when session.store is redis")
		}
	default:
		return fmt.Errorf("invalid session store: %s (must be memory or redis)", c.Session.Store)
	}

	// Validate languages
	if len(c.I18n.Supported) == 0 {
		return fmt.Errorf("i18n.supported must list at least one language")
	}
	if !slices.Contains(c.I18n.Supported, c.I18n.DefaultLanguage) {
		return fmt.Errorf("i18n.default_language %q is not in i18n.supported", c.I18n.DefaultLanguage)
	}

	// Validate TLS if enabled
	if c.Security.TLS.Enabled {
		if c.Security.TLS.CertFile == "" {
			return fmt.Errorf("security.tls.cert_file is required when TLS is enabled")
		}
		if c.Security.TLS.KeyFile == "" {
			return fmt.Errorf("security.tls.key_file is required when TLS is enabled")
		}
	}

	// Validate audit destinations
	if c.Audit.Enabled && c.Audit.File.Path == "" && c.Audit.Webhook.URL == "" {
		return fmt.Errorf("audit.file.path or audit.webhook.url is required when audit is enabled")
	}

	// Validate logging level
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s (must be debug, info, warn, or error)", c.Logging.Level)
	}

	return nil
}
