package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the server
type Config struct {
	Server    ServerConfig
	Storage   StorageConfig
	Logging   LoggingConfig
	Metrics   MetricsConfig
	Explorer  ExplorerConfig
	Chain     ChainConfig
	Proxy     ProxyConfig
	RateLimit RateLimitConfig
	Auth      AuthConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           int
	Host           string
	ReadTimeout    int // seconds
	WriteTimeout   int // seconds
	IdleTimeout    int // seconds
	RequestTimeout int // seconds
	ShutdownGrace  int // seconds
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	Type     string // "sqlite" or "postgres"
	Postgres PostgresConfig
	SQLite   SQLiteConfig
}

// PostgresConfig holds Postgres connection settings
type PostgresConfig struct {
	URL string
}

// SQLiteConfig holds SQLite settings
type SQLiteConfig struct {
	Path string
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string
	Format string // "text" or "json"
}

// MetricsConfig holds prometheus settings
type MetricsConfig struct {
	Enabled     bool
	ServiceName string
}

// ExplorerConfig holds settings for talking to block explorers
type ExplorerConfig struct {
	APIKey       string
	PollInterval time.Duration
	HTTPTimeout  time.Duration
	RateLimit    float64 // requests per second, 0 disables pacing
	RateBurst    int
	// EndpointsFile is an optional YAML table merged over the built-in endpoints
	EndpointsFile string
}

// ChainConfig holds JSON-RPC settings used for chain ID and bytecode checks
type ChainConfig struct {
	RPCURL      string
	Network     string
	RPCAttempts int
	RPCTimeout  time.Duration
}

// RateLimitConfig limits how fast one client can start verification jobs
type RateLimitConfig struct {
	Enabled        bool
	RequestsPerMin int
	BurstSize      int
	CleanupMinutes int
}

// AuthConfig holds the bearer tokens allowed to start verification jobs.
// No tokens leaves job creation open.
type AuthConfig struct {
	Tokens []string
}

// ProxyConfig holds trusted proxy settings for X-Forwarded-For handling
type ProxyConfig struct {
	TrustProxy bool
}

// Load loads configuration from environment variables. A .env file (or
// ENV_FILE) is read first; it never overrides variables already set.
func Load() (*Config, error) {
	if err := loadDotEnv(getEnv("ENV_FILE", ".env")); err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnvInt("PORT", 8080),
			Host:           getEnv("HOST", "0.0.0.0"),
			ReadTimeout:    getEnvInt("SERVER_READ_TIMEOUT", 30),
			WriteTimeout:   getEnvInt("SERVER_WRITE_TIMEOUT", 60),
			IdleTimeout:    getEnvInt("SERVER_IDLE_TIMEOUT", 120),
			RequestTimeout: getEnvInt("SERVER_REQUEST_TIMEOUT", 30),
			ShutdownGrace:  getEnvInt("SERVER_SHUTDOWN_GRACE", 30),
		},
		Storage: StorageConfig{
			Type: getEnv("STORAGE_TYPE", "sqlite"),
			Postgres: PostgresConfig{
				URL: getEnv("DATABASE_URL", ""),
			},
			SQLite: SQLiteConfig{
				Path: getEnv("SQLITE_PATH", "./data/explorerverify.db"),
			},
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled:     getEnvBool("METRICS_ENABLED", true),
			ServiceName: getEnv("METRICS_SERVICE_NAME", "explorerverify"),
		},
		Explorer: ExplorerConfig{
			APIKey:        getEnv("EXPLORER_API_KEY", ""),
			PollInterval:  time.Duration(getEnvInt("EXPLORER_POLL_INTERVAL_MS", 3000)) * time.Millisecond,
			HTTPTimeout:   time.Duration(getEnvInt("EXPLORER_HTTP_TIMEOUT", 30)) * time.Second,
			RateLimit:     getEnvFloat("EXPLORER_RATE_LIMIT", 5),
			RateBurst:     getEnvInt("EXPLORER_RATE_BURST", 5),
			EndpointsFile: getEnv("EXPLORER_ENDPOINTS_FILE", ""),
		},
		Chain: ChainConfig{
			RPCURL:      getEnv("RPC_URL", ""),
			Network:     getEnv("NETWORK", ""),
			RPCAttempts: getEnvInt("RPC_ATTEMPTS", 3),
			RPCTimeout:  time.Duration(getEnvInt("RPC_TIMEOUT", 10)) * time.Second,
		},
		Proxy: ProxyConfig{
			TrustProxy: getEnvBool("TRUST_PROXY", false),
		},
		RateLimit: RateLimitConfig{
			Enabled:        getEnvBool("RATE_LIMIT_ENABLED", true),
			RequestsPerMin: getEnvInt("RATE_LIMIT_RPM", 30),
			BurstSize:      getEnvInt("RATE_LIMIT_BURST", 10),
			CleanupMinutes: getEnvInt("RATE_LIMIT_CLEANUP_MINUTES", 10),
		},
		Auth: AuthConfig{
			Tokens: getEnvList("API_TOKENS"),
		},
	}

	// If DATABASE_URL is set, default to postgres
	if cfg.Storage.Postgres.URL != "" && os.Getenv("STORAGE_TYPE") == "" {
		cfg.Storage.Type = "postgres"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks settings that would otherwise fail late
func (c *Config) Validate() error {
	switch c.Storage.Type {
	case "sqlite":
	case "postgres":
		if c.Storage.Postgres.URL == "" {
			return errors.New("DATABASE_URL is required for postgres storage")
		}
	default:
		return fmt.Errorf("unknown storage type: %s", c.Storage.Type)
	}
	if c.Explorer.PollInterval <= 0 {
		return errors.New("EXPLORER_POLL_INTERVAL_MS must be positive")
	}
	if c.Chain.RPCAttempts < 1 {
		return errors.New("RPC_ATTEMPTS must be at least 1")
	}
	return nil
}

func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvList splits a comma-separated variable, dropping blank entries.
func getEnvList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
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
