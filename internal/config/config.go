package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rl1809/inventory-tracker/internal/logger"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	minSecretLength = 16
)

type Config struct {
	AppEnv string

	HTTPAddr string
	GRPCAddr string

	DBDriver string
	DBDSN    string

	// RedisAddr empty disables idempotency keys and rate limiting
	RedisAddr     string
	RedisPassword string

	JWTSecret string
	JWTTTL    time.Duration

	CORSOrigin      string
	RateLimitMax    int
	RateLimitWindow time.Duration
	MaxUploadBytes  int64

	CompanyName    string
	CompanyAddress string

	LogLevel      string
	LogFormat     string
	LogTimeFormat string
	LogOutput     string
}

func Load() (*Config, error) {
	config := &Config{
		AppEnv:          getEnv("APP_ENV", EnvDevelopment),
		HTTPAddr:        getEnv("HTTP_ADDR", ":3001"),
		GRPCAddr:        getEnv("GRPC_ADDR", ":50051"),
		DBDriver:        getEnv("DB_DRIVER", "sqlite3"),
		DBDSN:           getEnv("DB_DSN", "./inventory.db"),
		RedisAddr:       getEnv("REDIS_ADDR", ""),
		RedisPassword:   getEnv("REDIS_PASSWORD", ""),
		JWTSecret:       getEnv("JWT_SECRET", ""),
		CORSOrigin:      getEnv("CORS_ORIGIN", "http://localhost:5173"),
		CompanyName:     getEnv("COMPANY_NAME", "Inventory Management System"),
		CompanyAddress:  getEnv("COMPANY_ADDRESS", "123 Business St, City, State 12345"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "console"),
		LogTimeFormat:   getEnv("LOG_TIME_FORMAT", time.RFC3339),
		LogOutput:       getEnv("LOG_OUTPUT", "stdout"),
		JWTTTL:          24 * time.Hour,
		RateLimitMax:    100,
		RateLimitWindow: 15 * time.Minute,
		MaxUploadBytes:  10 << 20,
	}

	var err error
	if config.JWTTTL, err = getDuration("JWT_TTL", config.JWTTTL); err != nil {
		return nil, err
	}
	if config.RateLimitWindow, err = getDuration("RATE_LIMIT_WINDOW", config.RateLimitWindow); err != nil {
		return nil, err
	}
	if config.RateLimitMax, err = getInt("RATE_LIMIT_MAX", config.RateLimitMax); err != nil {
		return nil, err
	}
	maxUpload, err := getInt("MAX_UPLOAD_BYTES", int(config.MaxUploadBytes))
	if err != nil {
		return nil, err
	}
	config.MaxUploadBytes = int64(maxUpload)

	if config.JWTSecret == "" && config.AppEnv == EnvDevelopment {
		config.JWTSecret = "development-only-secret"
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

func (c *Config) Validate() error {
	switch c.DBDriver {
	case "mysql", "sqlite3":
	default:
		return fmt.Errorf("DB_DRIVER must be mysql or sqlite3, got %q", c.DBDriver)
	}
	if c.DBDSN == "" {
		return fmt.Errorf("DB_DSN is required")
	}
	if c.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.AppEnv != EnvDevelopment && len(c.JWTSecret) < minSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d characters", minSecretLength)
	}
	if c.JWTTTL <= 0 {
		return fmt.Errorf("JWT_TTL must be positive")
	}
	if c.RateLimitMax <= 0 || c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_MAX and RATE_LIMIT_WINDOW must be positive")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("MAX_UPLOAD_BYTES must be positive")
	}
	return nil
}

func (c *Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}

// GetLoggerConfig returns a logger configuration from the main config
func (c *Config) GetLoggerConfig() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		TimeFormat: c.LogTimeFormat,
		Output:     c.LogOutput,
	}
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
