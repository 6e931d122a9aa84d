// Package config provides configuration loading and management for the application.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	// HTTP server port
	Port string

	// Base URL of the upstream yields aggregator
	YieldsURL string

	// Chain to keep from the upstream dataset
	Chain string

	// OpenTelemetry endpoint for observability
	OtelEndpoint string

	// Timeout for a single upstream fetch; a timeout is handled
	// exactly like a fetch failure
	RequestTimeout time.Duration

	// How long a fetched dataset stays fresh before the next request
	// triggers a refresh
	CacheTTL time.Duration

	// Absolute APY sanity ceiling as a decimal fraction; records above
	// it are discarded regardless of batch statistics
	MaxAPY float64

	// Maximum relative TVL swing between consecutive datasets before
	// the circuit breaker trips
	MaxTVLChange float64

	// Minimum number of records for a dataset to be considered sane
	MinRecordCount int

	// Cooldown before an open circuit breaker attempts recovery
	CircuitResetDelay time.Duration

	// Rate limiting for API endpoints
	RateLimitRPS   float64
	RateLimitBurst int

	// Whether to sign API responses with the data integrity service
	SigningEnabled bool
}

// Load creates a new Config from environment variables
func Load() Config {
	return Config{
		Port:           GetEnvOrDefault("PORT", "8080"),
		YieldsURL:      GetEnvOrDefault("YIELDS_URL", "https://yields.llama.fi/pools"),
		Chain:          GetEnvOrDefault("CHAIN", "Solana"),
		OtelEndpoint:   GetEnvOrDefault("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		RequestTimeout: GetEnvAsDuration("REQUEST_TIMEOUT", 30*time.Second),
		CacheTTL:       GetEnvAsDuration("CACHE_TTL", 5*time.Minute),
		MaxAPY:         GetEnvAsFloat("MAX_APY", 10.0), // 1000% as decimal
		MaxTVLChange:   GetEnvAsFloat("MAX_TVL_CHANGE", 0.5),
		// Zero by default: an empty upstream dataset is valid, not a fault
		MinRecordCount:    GetEnvAsInt("MIN_RECORD_COUNT", 0),
		CircuitResetDelay: GetEnvAsDuration("CIRCUIT_RESET_DELAY", 5*time.Minute),
		RateLimitRPS:      GetEnvAsFloat("RATE_LIMIT_RPS", 10.0),
		RateLimitBurst:    GetEnvAsInt("RATE_LIMIT_BURST", 20),
		SigningEnabled:    GetEnvAsBool("DATA_INTEGRITY_ENABLED", false),
	}
}

// GetEnv retrieves an environment variable and whether it exists
func GetEnv(key string) (string, bool) {
	value, exists := os.LookupEnv(key)
	return value, exists
}

// GetEnvOrDefault retrieves an environment variable or returns the default value if not set
func GetEnvOrDefault(key, defaultValue string) string {
	if value, exists := GetEnv(key); exists {
		return value
	}
	return defaultValue
}

// GetEnvAsInt retrieves an environment variable as an integer with a default value
func GetEnvAsInt(key string, defaultValue int) int {
	if value, exists := GetEnv(key); exists {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// GetEnvAsFloat retrieves an environment variable as a float with a default value
func GetEnvAsFloat(key string, defaultValue float64) float64 {
	if value, exists := GetEnv(key); exists {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

// GetEnvAsBool retrieves an environment variable as a boolean with a default value
func GetEnvAsBool(key string, defaultValue bool) bool {
	if value, exists := GetEnv(key); exists {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

// GetEnvAsDuration retrieves an environment variable as a duration with a default value
func GetEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, exists := GetEnv(key); exists {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
