package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	Redis     RedisConfig
	Minio     MinioConfig
	Processor ProcessorConfig
	Plans     PlanPrices
	Jobs      JobsConfig
}

type ServerConfig struct {
	Port     int
	Env      string
	LogLevel string
}

type DatabaseConfig struct {
	URL           string
	RunMigrations bool
}

type AuthConfig struct {
	JWTSecret string
	// JWKSURL switches token verification to the auth provider's key set.
	JWKSURL string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

// ProcessorConfig holds env fallbacks; the settings store takes precedence.
type ProcessorConfig struct {
	APIKey       string
	Environment  string
	WebhookToken string
	Timeout      time.Duration
}

type PlanPrices struct {
	Monthly decimal.Decimal
	Annual  decimal.Decimal
}

type JobsConfig struct {
	PendingSweepInterval time.Duration
	PendingSweepAge      time.Duration
	ExpiryInterval       time.Duration
	PlanChangeTTL        time.Duration
}

// Load reads .env (when present) and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Port:     getEnvAsInt("PORT", 8080),
			Env:      getEnv("APP_ENV", "development"),
			LogLevel: getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL:           getEnv("DATABASE_URL", ""),
			RunMigrations: getEnvAsBool("RUN_MIGRATIONS", true),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", ""),
			JWKSURL:   getEnv("JWKS_URL", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Minio: MinioConfig{
			Endpoint:  getEnv("MINIO_ENDPOINT", ""),
			AccessKey: getEnv("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey: getEnv("MINIO_SECRET_KEY", "minioadmin"),
			UseSSL:    getEnvAsBool("MINIO_USE_SSL", false),
			Bucket:    getEnv("MINIO_BUCKET", "finsync-webhooks"),
		},
		Processor: ProcessorConfig{
			APIKey:       getEnv("PROCESSOR_API_KEY", ""),
			Environment:  getEnv("PROCESSOR_ENVIRONMENT", "sandbox"),
			WebhookToken: getEnv("PROCESSOR_WEBHOOK_TOKEN", ""),
			Timeout:      getEnvAsDuration("PROCESSOR_TIMEOUT", 10*time.Second),
		},
		Plans: PlanPrices{
			Monthly: getEnvAsDecimal("PLAN_MONTHLY_PRICE", decimal.RequireFromString("19.90")),
			Annual:  getEnvAsDecimal("PLAN_ANNUAL_PRICE", decimal.RequireFromString("199.90")),
		},
		Jobs: JobsConfig{
			PendingSweepInterval: getEnvAsDuration("PENDING_SWEEP_INTERVAL", 15*time.Minute),
			PendingSweepAge:      getEnvAsDuration("PENDING_SWEEP_AGE", 10*time.Minute),
			ExpiryInterval:       getEnvAsDuration("SUBSCRIPTION_EXPIRY_INTERVAL", time.Hour),
			PlanChangeTTL:        getEnvAsDuration("PLAN_CHANGE_TTL", 24*time.Hour),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL environment variable is required")
	}
	switch c.Processor.Environment {
	case "sandbox", "production":
	default:
		return fmt.Errorf("PROCESSOR_ENVIRONMENT must be sandbox or production, got %q", c.Processor.Environment)
	}
	if c.Processor.Timeout <= 0 {
		return fmt.Errorf("PROCESSOR_TIMEOUT must be positive")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value, err := strconv.Atoi(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value, err := strconv.ParseBool(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value, err := time.ParseDuration(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDecimal(key string, defaultValue decimal.Decimal) decimal.Decimal {
	if value, err := decimal.NewFromString(getEnv(key, "")); err == nil {
		return value
	}
	return defaultValue
}
