package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultBaseURL is the deployed E-Health CST backend.
const DefaultBaseURL = "https://e-health-backend.onrender.com/api/v1"

// Config aggregates runtime configuration for the client and the devserver.
type Config struct {
	App        AppConfig
	API        APIConfig
	TokenStore TokenStoreConfig
	Redis      RedisConfig
	Logger     LoggerConfig
	Server     ServerConfig
	Postgres   PostgresConfig
	Auth       AuthConfig
}

// AppConfig identifies the running binary.
type AppConfig struct {
	Name    string
	Env     string
	Version string
}

// APIConfig describes the backend the client talks to.
type APIConfig struct {
	BaseURL        string
	TimeoutSeconds int
	UserAgent      string
	// MetricsFile, when set, receives client metrics in the Prometheus text
	// format when a command finishes.
	MetricsFile string
}

// TokenStoreConfig selects where credentials are persisted.
type TokenStoreConfig struct {
	Backend  string // keyring | redis | memory
	Service  string
	Account  string
	RedisKey string
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// ServerConfig controls the devserver listener and cookie attributes.
type ServerConfig struct {
	Host                  string
	Port                  string
	BasePath              string
	CookieSecure          bool
	RequestTimeoutSeconds int
	SessionStore          string // memory | redis
	SeedDemoData          bool
}

// PostgresConfig holds DB connection values.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// AuthConfig defines devserver token parameters.
type AuthConfig struct {
	JWTSecret             string
	AccessTokenTTLMinutes int
	RefreshTokenTTLHours  int
	BcryptCost            int
	DemoPassword          string
	DemoMFACode           string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:    getEnv("APP_NAME", "ehealth-cst"),
			Env:     getEnv("APP_ENV", "development"),
			Version: getEnv("APP_VERSION", "dev"),
		},
		API: APIConfig{
			BaseURL:        strings.TrimRight(getEnv("EHEALTH_API_BASE_URL", DefaultBaseURL), "/"),
			TimeoutSeconds: getEnvAsInt("EHEALTH_API_TIMEOUT_SECONDS", 10),
			UserAgent:      getEnv("EHEALTH_USER_AGENT", "ehealth-cli"),
			MetricsFile:    os.Getenv("EHEALTH_METRICS_FILE"),
		},
		TokenStore: TokenStoreConfig{
			Backend:  strings.ToLower(getEnv("TOKEN_STORE_BACKEND", "keyring")),
			Service:  getEnv("TOKEN_STORE_SERVICE", "ehealth-cst"),
			Account:  getEnv("TOKEN_STORE_ACCOUNT", "default"),
			RedisKey: getEnv("TOKEN_STORE_REDIS_PREFIX", "ehealth:tokens"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       redisDB,
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Host:                  getEnv("DEVSERVER_HOST", "127.0.0.1"),
			Port:                  getEnv("DEVSERVER_PORT", "8080"),
			BasePath:              getEnv("DEVSERVER_BASE_PATH", "/api/v1"),
			CookieSecure:          getEnvAsBool("DEVSERVER_COOKIE_SECURE", false),
			RequestTimeoutSeconds: getEnvAsInt("DEVSERVER_REQUEST_TIMEOUT_SECONDS", 30),
			SessionStore:          strings.ToLower(getEnv("DEVSERVER_SESSION_STORE", "memory")),
			SeedDemoData:          getEnvAsBool("DEVSERVER_SEED", true),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Auth: AuthConfig{
			JWTSecret:             getEnv("AUTH_JWT_SECRET", "dev-secret"),
			AccessTokenTTLMinutes: getEnvAsInt("AUTH_ACCESS_TOKEN_TTL_MINUTES", 15),
			RefreshTokenTTLHours:  getEnvAsInt("AUTH_REFRESH_TOKEN_TTL_HOURS", 24*7),
			BcryptCost:            getEnvAsInt("AUTH_BCRYPT_COST", 12),
			DemoPassword:          getEnv("DEVSERVER_DEMO_PASSWORD", "password123"),
			DemoMFACode:           getEnv("DEVSERVER_DEMO_MFA_CODE", "123456"),
		},
	}

	if _, err := url.ParseRequestURI(cfg.API.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid EHEALTH_API_BASE_URL: %w", err)
	}

	return cfg, nil
}

// AccessTokenTTL returns the lifetime of devserver access tokens.
func (a AuthConfig) AccessTokenTTL() time.Duration {
	if a.AccessTokenTTLMinutes <= 0 {
		return 15 * time.Minute
	}
	return time.Duration(a.AccessTokenTTLMinutes) * time.Minute
}

// RefreshTokenTTL returns the lifetime of a devserver session.
func (a AuthConfig) RefreshTokenTTL() time.Duration {
	if a.RefreshTokenTTLHours <= 0 {
		return 7 * 24 * time.Hour
	}
	return time.Duration(a.RefreshTokenTTLHours) * time.Hour
}

// Timeout returns the fixed bound applied to every outbound call.
func (a APIConfig) Timeout() time.Duration {
	if a.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(a.TimeoutSeconds) * time.Second
}

// Addr returns the HTTP bind address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%s", s.Host, s.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (s ServerConfig) RequestTimeout() time.Duration {
	if s.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(s.RequestTimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
