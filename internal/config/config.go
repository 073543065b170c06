package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string `validate:"required"`
	HTTPAddr    string `validate:"required"`
	AppURL      string

	OTLPEndpoint string

	DBType            string `validate:"oneof=postgres mysql sqlite"`
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Stripe       StripeConfig
	Notification NotificationConfig
	Cache        CacheConfig

	SeedDevFixtures bool
}

type StripeConfig struct {
	WebhookSecret    string        `validate:"required"`
	WebhookTolerance time.Duration `validate:"gt=0"`
}

type NotificationConfig struct {
	Enabled        bool
	Async          bool
	Provider       string `validate:"oneof=sendgrid smtp noop"`
	FromEmail      string
	FromName       string
	SendgridAPIKey string `validate:"required_if=Provider sendgrid"`
	SandboxMode    bool
	SMTPHost       string `validate:"required_if=Provider smtp"`
	SMTPPort       int
	SMTPUsername   string
	SMTPPassword   string
	TemplatesPath  string
}

type CacheConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	UserTTL       time.Duration
	MemorySize    int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "entitlement"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  strings.ToLower(getenv("ENVIRONMENT", "development")),
		HTTPAddr:     getenv("HTTP_ADDR", ":8080"),
		AppURL:       strings.TrimRight(getenv("APP_URL", "http://localhost:3000"), "/"),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),

		DBType:            getenv("DATABASE_TYPE", "postgres"),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "entitlement"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),

		Stripe: StripeConfig{
			WebhookSecret:    strings.TrimSpace(getenv("STRIPE_WEBHOOK_SECRET", "")),
			WebhookTolerance: getenvDuration("STRIPE_WEBHOOK_TOLERANCE", 300*time.Second),
		},
		Notification: NotificationConfig{
			Enabled:        getenvBool("NOTIFICATIONS_ENABLED", true),
			Async:          getenvBool("NOTIFICATIONS_ASYNC", true),
			Provider:       strings.ToLower(getenv("NOTIFICATIONS_PROVIDER", "noop")),
			FromEmail:      getenv("NOTIFICATIONS_FROM_EMAIL", "onboarding@resend.dev"),
			FromName:       getenv("NOTIFICATIONS_FROM_NAME", "MasterClass"),
			SendgridAPIKey: strings.TrimSpace(getenv("SENDGRID_API_KEY", "")),
			SandboxMode:    getenvBool("SENDGRID_SANDBOX_MODE", false),
			SMTPHost:       getenv("SMTP_HOST", ""),
			SMTPPort:       getenvInt("SMTP_PORT", 587),
			SMTPUsername:   getenv("SMTP_USERNAME", ""),
			SMTPPassword:   getenv("SMTP_PASSWORD", ""),
			TemplatesPath:  getenv("NOTIFICATIONS_CONFIG_PATH", ""),
		},
		Cache: CacheConfig{
			RedisAddr:     strings.TrimSpace(getenv("REDIS_ADDR", "")),
			RedisPassword: getenv("REDIS_PASSWORD", ""),
			RedisDB:       getenvInt("REDIS_DB", 0),
			UserTTL:       getenvDuration("USER_CACHE_TTL", 5*time.Minute),
			MemorySize:    getenvInt("USER_CACHE_SIZE", 1024),
		},
		SeedDevFixtures: getenvBool("SEED_DEV_FIXTURES", false),
	}

	return cfg
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks required settings before the application starts.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

const (
	EnvProduction  = "production"
	EnvDevelopment = "development"
)

func (c Config) IsProduction() bool {
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case EnvProduction, "prod":
		return true
	default:
		return false
	}
}

// NotificationsEnabled reports whether confirmation notices may be sent.
// Notices are restricted to non-production environments.
func (c Config) NotificationsEnabled() bool {
	return c.Notification.Enabled && !c.IsProduction()
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second
	}
	return def
}
