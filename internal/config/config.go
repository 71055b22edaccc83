package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration values for the application
type Config struct {
	Port           string
	AllowedOrigins []string
	LogLevel       string
	Environment    string

	// DatabaseURL selects the PostgreSQL store; empty keeps everything in memory
	DatabaseURL string
	// AutoMigrate creates the schema at startup when a database is configured
	AutoMigrate bool
	// RedisURL moves survey counters to Redis
	RedisURL string

	// OperatorJWTSecret enables bearer-token operator identity
	OperatorJWTSecret string

	// StoreLockTimeout bounds the wait for the in-memory store lock
	StoreLockTimeout time.Duration
	// DBLockTimeout is applied as lock_timeout to every PostgreSQL transaction
	DBLockTimeout time.Duration
	// RequestTimeout bounds request handling
	RequestTimeout time.Duration
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	return &Config{
		Port:              getEnv("PORT", "8080"),
		AllowedOrigins:    parseOrigins(getEnv("ALLOWED_ORIGINS", "http://localhost:5173,http://localhost:5174")),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
		Environment:       getEnv("ENVIRONMENT", "production"),
		DatabaseURL:       getEnv("DATABASE_URL", ""),
		AutoMigrate:       getBoolEnv("AUTO_MIGRATE", false),
		RedisURL:          getEnv("REDIS_URL", ""),
		OperatorJWTSecret: getEnv("OPERATOR_JWT_SECRET", ""),
		StoreLockTimeout:  getDurationEnv("STORE_LOCK_TIMEOUT", 5*time.Second),
		DBLockTimeout:     getDurationEnv("DB_LOCK_TIMEOUT", 3*time.Second),
		RequestTimeout:    getDurationEnv("REQUEST_TIMEOUT", 30*time.Second),
	}, nil
}

// IsDevelopment reports whether the service runs outside production
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "local"
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// parseOrigins parses comma-separated origins into a slice
func parseOrigins(origins string) []string {
	if origins == "" {
		return []string{}
	}

	parts := strings.Split(origins, ",")
	result := make([]string, 0, len(parts))

	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}

// getBoolEnv gets a boolean environment variable with a fallback value
func getBoolEnv(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// getDurationEnv gets a duration ("5s", "250ms") with a fallback value.
// Non-positive or malformed values fall back.
func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil && parsed > 0 {
			return parsed
		}
	}
	return fallback
}
