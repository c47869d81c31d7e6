// Package config provides configuration loading and management for the application.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds all application configuration
type Config struct {
	// HTTP server port
	Port string

	// Postgres-backed REST data store
	DataStoreURL      string
	DataStoreKey      string
	TransactionsTable string
	ProfilesTable     string

	// Transaction indexing API. Only the first key is used.
	IndexerBaseURL string
	IndexerAPIKeys []string

	// Token price API
	PricesBaseURL string
	PricesAPIKey  string

	// Realtime messaging key, reserved for the push feed
	RealtimeAPIKey string

	// Per-upstream call timeouts
	DataStoreTimeout time.Duration
	IndexerTimeout   time.Duration
	PricesTimeout    time.Duration

	// Cache layer
	RedisURL     string
	CacheEnabled bool
	CachePrefix  string

	// Circuit breaker settings
	EnableCircuitBreaker    bool
	CircuitFailureThreshold int
	CircuitResetDelay       time.Duration

	// Observability
	EnableMetrics bool
	OtelEndpoint  string

	// Rate limiting, disabled when RateLimitRPS is zero
	RateLimitRPS   float64
	RateLimitBurst int

	// Variables that were required but not set at load time
	Missing []string
}

// Required lists the environment variables that have no default.
var Required = []string{
	"SUPABASE_URL",
	"SUPABASE_KEY",
	"HELIUS_API_KEY_1",
	"HELIUS_API_KEY_2",
	"HELIUS_API_KEY_3",
	"BIRDEYE_API_KEY",
	"ABLY_API_KEY",
}

// LoadDotEnv preloads variables from a .env file when one exists.
func LoadDotEnv(paths ...string) {
	if err := godotenv.Load(paths...); err != nil {
		logrus.Debugf("No .env file loaded: %v", err)
	}
}

// Load creates a new Config from environment variables
func Load() Config {
	cfg := Config{
		Port:              GetEnvOrDefault("PORT", "5000"),
		DataStoreURL:      strings.TrimRight(os.Getenv("SUPABASE_URL"), "/"),
		DataStoreKey:      os.Getenv("SUPABASE_KEY"),
		TransactionsTable: GetEnvOrDefault("TRANSACTIONS_TABLE", "webhook_transactions"),
		ProfilesTable:     GetEnvOrDefault("PROFILES_TABLE", "kol_profiles"),
		IndexerBaseURL:    strings.TrimRight(GetEnvOrDefault("HELIUS_BASE_URL", "https://api.helius.xyz/v0"), "/"),
		IndexerAPIKeys: []string{
			os.Getenv("HELIUS_API_KEY_1"),
			os.Getenv("HELIUS_API_KEY_2"),
			os.Getenv("HELIUS_API_KEY_3"),
		},
		PricesBaseURL:  strings.TrimRight(GetEnvOrDefault("BIRDEYE_BASE_URL", "https://public-api.birdeye.so"), "/"),
		PricesAPIKey:   os.Getenv("BIRDEYE_API_KEY"),
		RealtimeAPIKey: os.Getenv("ABLY_API_KEY"),

		DataStoreTimeout: GetEnvAsDuration("DATASTORE_TIMEOUT", 10*time.Second),
		IndexerTimeout:   GetEnvAsDuration("INDEXER_TIMEOUT", 15*time.Second),
		PricesTimeout:    GetEnvAsDuration("PRICES_TIMEOUT", 10*time.Second),

		RedisURL:     GetEnvOrDefault("REDIS_URL", "redis://localhost:6379/0"),
		CacheEnabled: GetEnvAsBool("CACHE_ENABLED", true),
		CachePrefix:  os.Getenv("CACHE_PREFIX"),

		EnableCircuitBreaker:    GetEnvAsBool("ENABLE_CIRCUIT_BREAKER", true),
		CircuitFailureThreshold: GetEnvAsInt("CIRCUIT_FAILURE_THRESHOLD", 5),
		CircuitResetDelay:       GetEnvAsDuration("CIRCUIT_RESET_DELAY", 30*time.Second),

		EnableMetrics: GetEnvAsBool("ENABLE_METRICS", true),
		OtelEndpoint:  os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),

		RateLimitRPS:   GetEnvAsFloat("RATE_LIMIT_RPS", 0),
		RateLimitBurst: GetEnvAsInt("RATE_LIMIT_BURST", 20),
	}

	for _, key := range Required {
		if value, exists := GetEnv(key); !exists || strings.TrimSpace(value) == "" {
			cfg.Missing = append(cfg.Missing, key)
		}
	}

	return cfg
}

// IndexerAPIKey returns the key used for indexer calls.
func (c Config) IndexerAPIKey() string {
	if len(c.IndexerAPIKeys) == 0 {
		return ""
	}
	return c.IndexerAPIKeys[0]
}

// LogMissing warns about every required variable that was not set.
// Startup continues; the affected endpoints fail at request time.
func (c Config) LogMissing() {
	for _, key := range c.Missing {
		logrus.WithField("variable", key).Warn("Required environment variable is not set")
	}
}

// GetEnv retrieves an environment variable and whether it exists
func GetEnv(key string) (string, bool) {
	value, exists := os.LookupEnv(key)
	return value, exists
}

// GetEnvOrDefault retrieves an environment variable or returns the default value if not set
func GetEnvOrDefault(key, defaultValue string) string {
	if value, exists := GetEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

// GetEnvAsInt retrieves an environment variable as an integer with a default value
func GetEnvAsInt(key string, defaultValue int) int {
	if value, exists := GetEnv(key); exists && value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		logrus.Warnf("Invalid integer in %s: %q, using default: %v", key, value, defaultValue)
	}
	return defaultValue
}

// GetEnvAsFloat retrieves an environment variable as a float with a default value
func GetEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := GetEnv(key); exists && value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
		logrus.Warnf("Invalid float in %s: %q, using default: %v", key, value, defaultValue)
	}
	return defaultValue
}

// GetEnvAsBool retrieves an environment variable as a boolean with a default value
func GetEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := GetEnv(key); exists && value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
		logrus.Warnf("Invalid boolean in %s: %q, using default: %v", key, value, defaultValue)
	}
	return defaultValue
}

// GetEnvAsDuration retrieves an environment variable as a duration with a default value
func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := GetEnv(key); exists && value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
		logrus.Warnf("Invalid duration in %s: %q, using default: %v", key, value, defaultValue)
	}
	return defaultValue
}
