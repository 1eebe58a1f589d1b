package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/openveil/openveil/pkg/httputil"
	"github.com/openveil/openveil/pkg/observability"
	"github.com/openveil/openveil/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Storage configuration
	Storage storage.Config

	// Observability configuration
	Observability ObservabilityConfig

	// Bearer token configuration
	Auth AuthConfig

	// Public site identity used for links and citations
	Site SiteConfig

	// Optional YAML file holding runtime settings (api_access etc.)
	SettingsFile string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
	MaxBodyBytes    int64
	CORSOrigins     []string
	// Proxies allowed to report the client address via X-Forwarded-For
	TrustedProxies []string

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// AuthConfig holds bearer token settings. An empty secret disables
// authentication and every caller is anonymous.
type AuthConfig struct {
	JWTSecret string
	JWTIssuer string
	TokenTTL  time.Duration

	// Optional OpenID Connect provider whose tokens are also accepted
	OIDCIssuerURL   string
	OIDCClientID    string
	OIDCUserIDClaim string
	OIDCRolesClaim  string
	OIDCUserInfo    bool
}

// SiteConfig describes the public site
type SiteConfig struct {
	URL       string
	Name      string
	APIPrefix string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Storage:       loadStorageConfig(),
		Observability: loadObservabilityConfig(),
		Auth: AuthConfig{
			JWTSecret: getEnv("OPENVEIL_JWT_SECRET", ""),
			JWTIssuer: getEnv("OPENVEIL_JWT_ISSUER", "openveil"),
			TokenTTL:  getEnvDuration("OPENVEIL_TOKEN_TTL", 24*time.Hour),

			OIDCIssuerURL:   getEnv("OPENVEIL_OIDC_ISSUER_URL", ""),
			OIDCClientID:    getEnv("OPENVEIL_OIDC_CLIENT_ID", ""),
			OIDCUserIDClaim: getEnv("OPENVEIL_OIDC_USER_ID_CLAIM", "openveil_user_id"),
			OIDCRolesClaim:  getEnv("OPENVEIL_OIDC_ROLES_CLAIM", "roles"),
			OIDCUserInfo:    getEnvBool("OPENVEIL_OIDC_USERINFO", false),
		},
		Site: SiteConfig{
			URL:       strings.TrimRight(getEnv("OPENVEIL_SITE_URL", "http://localhost:8080"), "/"),
			Name:      getEnv("OPENVEIL_SITE_NAME", "Open Veil"),
			APIPrefix: "/" + strings.Trim(getEnv("OPENVEIL_API_PREFIX", "/open-veil/v1"), "/"),
		},
		SettingsFile: getEnv("OPENVEIL_SETTINGS_FILE", ""),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	cfg := ServerConfig{
		Host:            getEnv("OPENVEIL_HOST", "0.0.0.0"),
		Port:            getEnv("OPENVEIL_PORT", "8080"),
		ReadTimeout:     getEnvDuration("OPENVEIL_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("OPENVEIL_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("OPENVEIL_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("OPENVEIL_SHUTDOWN_TIMEOUT", 30*time.Second),
		MaxBodyBytes:    getEnvInt64("OPENVEIL_MAX_BODY_BYTES", 1<<20),
		HealthPort:      getEnv("OPENVEIL_HEALTH_PORT", "9090"),
	}
	cfg.CORSOrigins = getEnvList("OPENVEIL_CORS_ORIGINS")
	cfg.TrustedProxies = getEnvList("OPENVEIL_TRUSTED_PROXIES")
	return cfg
}

// loadStorageConfig loads storage configuration from environment
func loadStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()

	if storageType := getEnv("OPENVEIL_STORAGE_TYPE", ""); storageType != "" {
		cfg.Type = storageType
	}

	// SQLite config
	if path := getEnv("OPENVEIL_SQLITE_PATH", ""); path != "" {
		cfg.SQLitePath = path
	}

	// PostgreSQL config
	if pgURL := getEnv("OPENVEIL_POSTGRES_URL", ""); pgURL != "" {
		cfg.PostgresURL = pgURL
	}
	if maxConns := getEnvInt("OPENVEIL_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		cfg.PostgresMaxConns = maxConns
	}
	if minConns := getEnvInt("OPENVEIL_POSTGRES_MIN_CONNS", 0); minConns > 0 {
		cfg.PostgresMinConns = minConns
	}
	if timeout := getEnvDuration("OPENVEIL_POSTGRES_TIMEOUT", 0); timeout > 0 {
		cfg.PostgresTimeout = timeout
	}

	// S3 config
	cfg.S3Endpoint = getEnv("OPENVEIL_S3_ENDPOINT", cfg.S3Endpoint)
	cfg.S3Region = getEnv("OPENVEIL_S3_REGION", cfg.S3Region)
	cfg.S3Bucket = getEnv("OPENVEIL_S3_BUCKET", cfg.S3Bucket)
	cfg.S3AccessKey = getEnv("OPENVEIL_S3_ACCESS_KEY", cfg.S3AccessKey)
	cfg.S3SecretKey = getEnv("OPENVEIL_S3_SECRET_KEY", cfg.S3SecretKey)
	cfg.S3UsePathStyle = getEnvBool("OPENVEIL_S3_USE_PATH_STYLE", cfg.S3UsePathStyle)

	// Redis config
	if redisURL := getEnv("OPENVEIL_REDIS_URL", ""); redisURL != "" {
		cfg.RedisURL = redisURL
	}
	if redisPassword := getEnv("OPENVEIL_REDIS_PASSWORD", ""); redisPassword != "" {
		cfg.RedisPassword = redisPassword
	}
	if redisDB := getEnvInt("OPENVEIL_REDIS_DB", -1); redisDB >= 0 {
		cfg.RedisDB = redisDB
	}
	if redisMaxRetries := getEnvInt("OPENVEIL_REDIS_MAX_RETRIES", 0); redisMaxRetries > 0 {
		cfg.RedisMaxRetries = redisMaxRetries
	}
	if redisPoolSize := getEnvInt("OPENVEIL_REDIS_POOL_SIZE", 0); redisPoolSize > 0 {
		cfg.RedisPoolSize = redisPoolSize
	}

	// Cache config
	cfg.CacheEnabled = getEnvBool("OPENVEIL_CACHE_ENABLED", cfg.CacheEnabled)
	if ttl := getEnvDuration("OPENVEIL_CACHE_TTL", 0); ttl > 0 {
		cfg.CacheTTL = ttl
	}
	if l1 := getEnvInt("OPENVEIL_L1_CACHE_SIZE", 0); l1 > 0 {
		cfg.L1CacheSize = l1
	}

	return cfg
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLogLevel(getEnv("OPENVEIL_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("OPENVEIL_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("OPENVEIL_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("OPENVEIL_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("OPENVEIL_OTEL_SERVICE_NAME", "openveil-api"),
		OTelServiceVersion: getEnv("OPENVEIL_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("OPENVEIL_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}
	if _, err := httputil.ParseTrustedProxies(c.Server.TrustedProxies); err != nil {
		return err
	}
	if (c.Auth.OIDCIssuerURL == "") != (c.Auth.OIDCClientID == "") {
		return fmt.Errorf("OIDC issuer URL and client ID must be set together")
	}

	if err := c.Storage.Validate(); err != nil {
		return err
	}

	if c.Site.URL == "" {
		return fmt.Errorf("site URL is required")
	}
	if !strings.HasPrefix(c.Site.APIPrefix, "/") || c.Site.APIPrefix == "/" {
		return fmt.Errorf("invalid API prefix: %q", c.Site.APIPrefix)
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
// getEnvList splits a comma separated variable, dropping blanks
func getEnvList(key string) []string {
	var out []string
	for _, v := range strings.Split(getEnv(key, ""), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
