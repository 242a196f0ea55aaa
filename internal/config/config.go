package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Provider identifiers
const (
	ProviderGmail   = "gmail"
	ProviderDiscord = "discord"
	ProviderSlack   = "slack"
)

// State store constants
const (
	StateStoreMemory = "memory"
	StateStoreRedis  = "redis"
)

// Rate limit store constants
const (
	RateLimitStoreMemory = "memory"
	RateLimitStoreRedis  = "redis"
)

// Log format constants
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// ProviderSettings holds the deployment values for one OAuth provider.
type ProviderSettings struct {
	Enabled      bool
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
}

type Config struct {
	// Server settings
	ServerAddr   string
	BaseURL      string
	Environment  string
	IsProduction bool

	ServerShutdownTimeout time.Duration

	// Session settings
	SessionSecret string
	SessionMaxAge int // seconds

	// Database
	DatabaseDriver string // "sqlite" or "postgres"
	DatabaseDSN    string
	DBInitTimeout  time.Duration

	// Providers
	Gmail   ProviderSettings
	Discord ProviderSettings
	Slack   ProviderSettings

	// OAuth flow
	OAuthTimeout            time.Duration // bounds every exchange, refresh and account lookup
	OAuthInsecureSkipVerify bool
	OAuthStateTTL           time.Duration
	TokenExpiryLeeway       time.Duration
	ConnectSuccessURL       string

	// Pending state store
	StateStore       string // "memory" or "redis"
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	RedisConnTimeout time.Duration

	StateCleanupInterval time.Duration // memory store sweep and pending-state gauge

	// Rate limiting
	EnableRateLimit   bool
	RateLimitStore    string // "memory" or "redis"
	ConnectRateLimit  int    // requests per minute
	CallbackRateLimit int    // requests per minute

	RateLimitCleanupInterval time.Duration

	// Metrics
	MetricsEnabled bool
	MetricsToken   string

	MetricsGaugeUpdateInterval time.Duration

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	baseURL := strings.TrimRight(getEnv("BASE_URL", "http://localhost:8080"), "/")
	environment := getEnv("ENVIRONMENT", "development")

	driver := getEnv("DATABASE_DRIVER", "sqlite")
	dsn := getEnv("DATABASE_DSN", "")
	if dsn == "" && driver == "sqlite" {
		dsn = "connectgate.db"
	}

	return &Config{
		ServerAddr:   getEnv("SERVER_ADDR", ":8080"),
		BaseURL:      baseURL,
		Environment:  environment,
		IsProduction: environment == "production",

		ServerShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 5*time.Second),

		SessionSecret: getEnv("SESSION_SECRET", "session-secret-change-in-production"),
		SessionMaxAge: getEnvInt("SESSION_MAX_AGE", 3600),

		DatabaseDriver: driver,
		DatabaseDSN:    dsn,
		DBInitTimeout:  getEnvDuration("DB_INIT_TIMEOUT", 30*time.Second),

		Gmail: loadProvider(baseURL, "GMAIL", ProviderGmail, []string{
			"https://www.googleapis.com/auth/gmail.send",
			"https://www.googleapis.com/auth/gmail.readonly",
			"https://www.googleapis.com/auth/userinfo.email",
		}),
		Discord: loadProvider(baseURL, "DISCORD", ProviderDiscord, []string{
			"identify",
			"email",
		}),
		Slack: loadProvider(baseURL, "SLACK", ProviderSlack, []string{
			"chat:write",
			"channels:read",
			"users:read",
			"users:read.email",
		}),

		OAuthTimeout:            getEnvDuration("OAUTH_TIMEOUT", 15*time.Second),
		OAuthInsecureSkipVerify: getEnvBool("OAUTH_INSECURE_SKIP_VERIFY", false),
		OAuthStateTTL:           getEnvDuration("OAUTH_STATE_TTL", 10*time.Minute),
		TokenExpiryLeeway:       getEnvDuration("TOKEN_EXPIRY_LEEWAY", 30*time.Second),
		ConnectSuccessURL:       getEnv("CONNECT_SUCCESS_URL", "/"),

		StateStore:       getEnv("STATE_STORE", StateStoreMemory),
		RedisAddr:        getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    getEnv("REDIS_PASSWORD", ""),
		RedisDB:          getEnvInt("REDIS_DB", 0),
		RedisConnTimeout: getEnvDuration("REDIS_CONN_TIMEOUT", 5*time.Second),

		StateCleanupInterval: getEnvDuration("STATE_CLEANUP_INTERVAL", time.Minute),

		EnableRateLimit:   getEnvBool("ENABLE_RATE_LIMIT", true),
		RateLimitStore:    getEnv("RATE_LIMIT_STORE", RateLimitStoreMemory),
		ConnectRateLimit:  getEnvInt("CONNECT_RATE_LIMIT", 20),
		CallbackRateLimit: getEnvInt("CALLBACK_RATE_LIMIT", 20),

		RateLimitCleanupInterval: getEnvDuration("RATE_LIMIT_CLEANUP_INTERVAL", 5*time.Minute),

		MetricsEnabled: getEnvBool("METRICS_ENABLED", false),
		MetricsToken:   getEnv("METRICS_TOKEN", ""),

		MetricsGaugeUpdateInterval: getEnvDuration("METRICS_GAUGE_UPDATE_INTERVAL", 30*time.Second),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", LogFormatText),
	}
}

// loadProvider reads the <PREFIX>_* variables for one provider. The redirect
// URL defaults to BASE_URL/callback/<id>.
func loadProvider(baseURL, prefix, id string, defaultScopes []string) ProviderSettings {
	redirect := getEnv(prefix+"_REDIRECT_URL", "")
	if redirect == "" {
		redirect = baseURL + "/callback/" + id
	}
	return ProviderSettings{
		Enabled:      getEnvBool(prefix+"_OAUTH_ENABLED", true),
		ClientID:     getEnv(prefix+"_CLIENT_ID", ""),
		ClientSecret: getEnv(prefix+"_CLIENT_SECRET", ""),
		RedirectURL:  redirect,
		Scopes:       getEnvSlice(prefix+"_SCOPES", defaultScopes),
	}
}

// Providers returns the provider settings keyed by provider id.
func (c *Config) Providers() map[string]ProviderSettings {
	return map[string]ProviderSettings{
		ProviderGmail:   c.Gmail,
		ProviderDiscord: c.Discord,
		ProviderSlack:   c.Slack,
	}
}

// Validate checks enum values and timeouts. Missing provider credentials are
// not a validation error here; the provider registry reports them per provider.
func (c *Config) Validate() error {
	switch c.DatabaseDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf(
			"invalid DATABASE_DRIVER value: %q (must be \"sqlite\" or \"postgres\")",
			c.DatabaseDriver,
		)
	}
	if c.DatabaseDSN == "" {
		return errors.New("DATABASE_DSN is required")
	}

	if c.StateStore != StateStoreMemory && c.StateStore != StateStoreRedis {
		return fmt.Errorf(
			"invalid STATE_STORE value: %q (must be \"memory\" or \"redis\")",
			c.StateStore,
		)
	}
	if c.RateLimitStore != RateLimitStoreMemory && c.RateLimitStore != RateLimitStoreRedis {
		return fmt.Errorf(
			"invalid RATE_LIMIT_STORE value: %q (must be \"memory\" or \"redis\")",
			c.RateLimitStore,
		)
	}
	if c.LogFormat != LogFormatText && c.LogFormat != LogFormatJSON {
		return fmt.Errorf(
			"invalid LOG_FORMAT value: %q (must be \"text\" or \"json\")",
			c.LogFormat,
		)
	}

	if c.OAuthTimeout <= 0 {
		return errors.New("OAUTH_TIMEOUT must be positive")
	}
	if c.OAuthStateTTL <= 0 {
		return errors.New("OAUTH_STATE_TTL must be positive")
	}
	if c.StateCleanupInterval <= 0 {
		return errors.New("STATE_CLEANUP_INTERVAL must be positive")
	}
	if c.MetricsEnabled && c.MetricsGaugeUpdateInterval <= 0 {
		return errors.New("METRICS_GAUGE_UPDATE_INTERVAL must be positive")
	}
	if c.TokenExpiryLeeway < 0 {
		return errors.New("TOKEN_EXPIRY_LEEWAY must not be negative")
	}
	if c.EnableRateLimit && (c.ConnectRateLimit <= 0 || c.CallbackRateLimit <= 0) {
		return errors.New("CONNECT_RATE_LIMIT and CALLBACK_RATE_LIMIT must be positive")
	}

	if c.IsProduction && c.SessionSecret == "session-secret-change-in-production" {
		return errors.New("SESSION_SECRET must be set in production")
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		var i int
		if _, err := fmt.Sscanf(value, "%d", &i); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		if parts := splitAndTrim(value, ","); len(parts) > 0 {
			return parts
		}
	}
	return defaultValue
}

func splitAndTrim(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
