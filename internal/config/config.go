package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	defaultHTTPAddr           = ":8080"
	defaultJWTSecret          = "change-me-jwt-secret"
	defaultLockBackend        = "local"
	defaultLockTTL            = "10s"
	defaultLockWait           = "5s"
	defaultMaxRetries         = "3"
	defaultTaxRate            = "0"
	defaultDownpaymentPercent = "30"
	defaultQuoteValidDays     = "14"
	defaultMetricsEnabled     = "true"
	defaultAutoMigrate        = "true"
)

type Config struct {
	AppEnv              string
	HTTPAddr            string
	DatabaseURL         string
	JWTSecret           string
	PaymentWebhookToken string
	CORSAllowedOrigins  []string

	LockBackend string
	RedisURL    string
	LockTTL     time.Duration
	LockWait    time.Duration

	BookingMaxRetries         int
	DefaultTaxRate            decimal.Decimal
	DefaultDownpaymentPercent decimal.Decimal
	QuoteValidDays            int

	MetricsEnabled bool
	AutoMigrate    bool
}

// Load reads the configuration from the environment. Callers that want .env
// support load it before calling Load.
func Load() (*Config, error) {
	cfg := &Config{}
	appEnv := strings.TrimSpace(os.Getenv("APP_ENV"))
	if appEnv == "" {
		appEnv = strings.TrimSpace(os.Getenv("ENV"))
	}
	if appEnv == "" {
		appEnv = "dev"
	}
	cfg.AppEnv = strings.ToLower(appEnv)

	cfg.HTTPAddr = strings.TrimSpace(getEnv("HTTP_ADDR", defaultHTTPAddr))
	cfg.DatabaseURL = strings.TrimSpace(os.Getenv("DATABASE_URL"))
	cfg.JWTSecret = strings.TrimSpace(getEnv("JWT_SECRET", defaultJWTSecret))
	cfg.PaymentWebhookToken = strings.TrimSpace(os.Getenv("PAYMENT_WEBHOOK_TOKEN"))
	cfg.CORSAllowedOrigins = splitList(os.Getenv("CORS_ALLOWED_ORIGINS"))

	cfg.LockBackend = strings.ToLower(strings.TrimSpace(getEnv("LOCK_BACKEND", defaultLockBackend)))
	cfg.RedisURL = strings.TrimSpace(os.Getenv("REDIS_URL"))

	var err error
	cfg.LockTTL, err = parseDurationEnv("LOCK_TTL", defaultLockTTL)
	if err != nil {
		return nil, err
	}
	cfg.LockWait, err = parseDurationEnv("LOCK_WAIT", defaultLockWait)
	if err != nil {
		return nil, err
	}
	cfg.BookingMaxRetries, err = parseIntEnv("BOOKING_MAX_RETRIES", defaultMaxRetries)
	if err != nil {
		return nil, err
	}
	cfg.QuoteValidDays, err = parseIntEnv("QUOTE_VALID_DAYS", defaultQuoteValidDays)
	if err != nil {
		return nil, err
	}
	cfg.DefaultTaxRate, err = parseDecimalEnv("DEFAULT_TAX_RATE", defaultTaxRate)
	if err != nil {
		return nil, err
	}
	cfg.DefaultDownpaymentPercent, err = parseDecimalEnv("DEFAULT_DOWNPAYMENT_PERCENT", defaultDownpaymentPercent)
	if err != nil {
		return nil, err
	}

	cfg.MetricsEnabled = parseBoolEnv("METRICS_ENABLED", defaultMetricsEnabled)
	cfg.AutoMigrate = parseBoolEnv("AUTO_MIGRATE", defaultAutoMigrate)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsProd() bool {
	return isProdLike(c.AppEnv)
}

func validateConfig(cfg *Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL must be set")
	}
	if cfg.HTTPAddr == "" {
		return fmt.Errorf("HTTP_ADDR must not be empty")
	}
	if cfg.LockTTL <= 0 {
		return fmt.Errorf("LOCK_TTL must be > 0")
	}
	if cfg.LockWait <= 0 {
		return fmt.Errorf("LOCK_WAIT must be > 0")
	}
	if cfg.BookingMaxRetries < 0 {
		return fmt.Errorf("BOOKING_MAX_RETRIES must be >= 0")
	}
	if cfg.QuoteValidDays <= 0 {
		return fmt.Errorf("QUOTE_VALID_DAYS must be > 0")
	}
	hundred := decimal.NewFromInt(100)
	if cfg.DefaultTaxRate.IsNegative() || cfg.DefaultTaxRate.GreaterThan(hundred) {
		return fmt.Errorf("DEFAULT_TAX_RATE must be between 0 and 100")
	}
	if cfg.DefaultDownpaymentPercent.IsNegative() || cfg.DefaultDownpaymentPercent.GreaterThan(hundred) {
		return fmt.Errorf("DEFAULT_DOWNPAYMENT_PERCENT must be between 0 and 100")
	}

	switch cfg.LockBackend {
	case "local":
	case "redis":
		if cfg.RedisURL == "" {
			return fmt.Errorf("REDIS_URL must be set when LOCK_BACKEND=redis")
		}
	default:
		return fmt.Errorf("LOCK_BACKEND must be one of: local, redis")
	}

	if isProdLike(cfg.AppEnv) {
		if isEmptyOrDefault(cfg.JWTSecret, defaultJWTSecret) {
			return fmt.Errorf("in prod/release JWT_SECRET must be set and not default")
		}
		if cfg.PaymentWebhookToken == "" {
			return fmt.Errorf("in prod/release PAYMENT_WEBHOOK_TOKEN must be set")
		}
	}

	return nil
}

func isProdLike(env string) bool {
	env = strings.ToLower(strings.TrimSpace(env))
	return env == "prod" || env == "production" || env == "release"
}

func isEmptyOrDefault(v, def string) bool {
	trimmed := strings.TrimSpace(v)
	return trimmed == "" || trimmed == def
}

func parseDurationEnv(name, fallback string) (time.Duration, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func parseIntEnv(name, fallback string) (int, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return n, nil
}

func parseDecimalEnv(name, fallback string) (decimal.Decimal, error) {
	value := strings.TrimSpace(getEnv(name, fallback))
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s value %q: %w", name, value, err)
	}
	return d, nil
}

func parseBoolEnv(name, fallback string) bool {
	value := strings.ToLower(strings.TrimSpace(getEnv(name, fallback)))
	return value == "1" || value == "true" || value == "yes" || value == "on"
}

func getEnv(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
