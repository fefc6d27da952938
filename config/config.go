package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/cjjenkinson/ephemeral-oauth/store"
)

type Config struct {
	// Server settings
	ServerAddr string
	BaseURL    string

	// Token lifetimes
	AccessTokenExpiration       time.Duration
	RefreshTokenExpiration      time.Duration
	AuthorizationCodeExpiration time.Duration

	// Refresh token rotation (default: rotate on every use)
	RotateRefreshTokens bool

	// Authorize endpoint settings
	AllowEmptyState bool

	// Extended token attributes passthrough
	AllowExtendedTokenAttributes bool

	// JWT settings (only used when the JWT token generator is enabled)
	JWTEnabled    bool
	JWTSecret     string
	JWTIssuer     string
	JWTExpiration time.Duration

	// Database
	DatabaseDriver string // "sqlite" or "postgres"
	DatabaseDSN    string // Database connection string (DSN or path)

	// Redis cache (disabled when RedisAddr is empty)
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	// Rate limiting for the token endpoint, e.g. "20-M" for 20 req/min
	RateLimit string

	// Metrics
	MetricsEnabled bool
}

func Load() *Config {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	// Determine database driver and DSN
	driver := getEnv("DATABASE_DRIVER", store.DriverSQLite)
	var dsn string
	if driver == store.DriverSQLite {
		dsn = getEnv("DATABASE_DSN", getEnv("DATABASE_PATH", "oauth.db"))
	} else {
		dsn = getEnv("DATABASE_DSN", "")
	}

	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),
		BaseURL:    getEnv("BASE_URL", "http://localhost:8080"),

		AccessTokenExpiration:       getEnvDuration("ACCESS_TOKEN_EXPIRATION", time.Hour),
		RefreshTokenExpiration:      getEnvDuration("REFRESH_TOKEN_EXPIRATION", 336*time.Hour), // 14 days
		AuthorizationCodeExpiration: getEnvDuration("AUTHORIZATION_CODE_EXPIRATION", 5*time.Minute),

		RotateRefreshTokens: getEnvBool("ROTATE_REFRESH_TOKENS", true),
		AllowEmptyState:     getEnvBool("ALLOW_EMPTY_STATE", false),

		AllowExtendedTokenAttributes: getEnvBool("ALLOW_EXTENDED_TOKEN_ATTRIBUTES", false),

		JWTEnabled:    getEnvBool("JWT_ENABLED", false),
		JWTSecret:     getEnv("JWT_SECRET", "your-256-bit-secret-change-in-production"),
		JWTIssuer:     getEnv("JWT_ISSUER", "ephemeral-oauth"),
		JWTExpiration: getEnvDuration("JWT_EXPIRATION", time.Hour),

		DatabaseDriver: driver,
		DatabaseDSN:    dsn,

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		CacheTTL:      getEnvDuration("CACHE_TTL", 5*time.Minute),

		RateLimit: getEnv("RATE_LIMIT", "60-M"),

		MetricsEnabled: getEnvBool("METRICS_ENABLED", true),
	}
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
