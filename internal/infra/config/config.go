package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StorageMemory   = "memory"
	StorageMongo    = "mongo"
	StoragePostgres = "postgres"

	PaymentsSandbox = "sandbox"
	PaymentsStripe  = "stripe"
)

// Config aggregates application configuration values loaded from environment variables.
type Config struct {
	Env                  string
	HTTPAddr             string
	LogLevel             string
	CORSOrigins          []string
	StorageDriver        string
	MongoURI             string
	MongoDB              string
	PostgresURL          string
	AutoMigrate          bool
	BoltPath             string
	KafkaBrokers         []string
	KafkaTopicPrefix     string
	IdempotencyTTL       time.Duration
	OutboxPollInterval   time.Duration
	RetryBackoff         []time.Duration
	PaymentsProvider     string
	StripeSecretKey      string
	SandboxAutoCapture   bool
	RefundMaxAttempts    int
	RefundRetryBackoff   []time.Duration
	RefundServiceFee     bool
	S3Endpoint           string
	S3AccessKey          string
	S3SecretKey          string
	S3Bucket             string
	S3UseSSL             bool
	FeeScheduleOverrides string
	ListingFixtures      string
}

// Load parses configuration from the current environment.
func Load() (Config, error) {
	cfg := Config{
		Env:                  getEnv("APP_ENV", "dev"),
		HTTPAddr:             getEnv("HTTP_ADDR", ":8080"),
		LogLevel:             strings.ToLower(getEnv("LOG_LEVEL", "info")),
		StorageDriver:        strings.ToLower(getEnv("STORAGE_DRIVER", StorageMemory)),
		MongoURI:             os.Getenv("MONGO_URI"),
		MongoDB:              getEnv("MONGO_DB", "rentspace"),
		PostgresURL:          os.Getenv("POSTGRES_URL"),
		BoltPath:             os.Getenv("BOLT_PATH"),
		KafkaTopicPrefix:     getEnv("KAFKA_TOPIC_PREFIX", "rentspace"),
		PaymentsProvider:     strings.ToLower(getEnv("PAYMENTS_PROVIDER", PaymentsSandbox)),
		StripeSecretKey:      os.Getenv("STRIPE_SECRET_KEY"),
		S3Endpoint:           os.Getenv("S3_ENDPOINT"),
		S3AccessKey:          getEnv("S3_ACCESS_KEY", "minioadmin"),
		S3SecretKey:          getEnv("S3_SECRET_KEY", "minioadmin"),
		S3Bucket:             getEnv("S3_BUCKET", "rentspace-receipts"),
		FeeScheduleOverrides: os.Getenv("FEE_SCHEDULE_OVERRIDES"),
		ListingFixtures:      os.Getenv("LISTING_FIXTURES"),
		CORSOrigins:          splitList(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		KafkaBrokers:         splitList(os.Getenv("KAFKA_BROKERS")),
	}
	var err error
	if cfg.IdempotencyTTL, err = parseDurationEnv("IDEMP_TTL", 168*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.OutboxPollInterval, err = parseDurationEnv("OUTBOX_POLL_INTERVAL", 500*time.Millisecond); err != nil {
		return Config{}, err
	}
	if cfg.RetryBackoff, err = parseDurationListEnv("RETRY_BACKOFF", "1s,5s,30s"); err != nil {
		return Config{}, err
	}
	if cfg.RefundRetryBackoff, err = parseDurationListEnv("REFUND_RETRY_BACKOFF", "200ms,1s"); err != nil {
		return Config{}, err
	}
	if cfg.RefundMaxAttempts, err = parseIntEnv("REFUND_MAX_ATTEMPTS", 3); err != nil {
		return Config{}, err
	}
	if cfg.RefundServiceFee, err = parseBoolEnv("REFUND_SERVICE_FEE", false); err != nil {
		return Config{}, err
	}
	if cfg.SandboxAutoCapture, err = parseBoolEnv("SANDBOX_AUTO_CAPTURE", false); err != nil {
		return Config{}, err
	}
	if cfg.AutoMigrate, err = parseBoolEnv("AUTO_MIGRATE", true); err != nil {
		return Config{}, err
	}
	if cfg.S3UseSSL, err = parseBoolEnv("S3_USE_SSL", false); err != nil {
		return Config{}, err
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.StorageDriver {
	case StorageMemory:
	case StorageMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGO_URI is required for STORAGE_DRIVER=%s", c.StorageDriver)
		}
	case StoragePostgres:
		if c.PostgresURL == "" {
			return fmt.Errorf("POSTGRES_URL is required for STORAGE_DRIVER=%s", c.StorageDriver)
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	switch c.PaymentsProvider {
	case PaymentsSandbox:
	case PaymentsStripe:
		if c.StripeSecretKey == "" {
			return fmt.Errorf("STRIPE_SECRET_KEY is required for PAYMENTS_PROVIDER=stripe")
		}
	default:
		return fmt.Errorf("unknown PAYMENTS_PROVIDER %q", c.PaymentsProvider)
	}
	if c.RefundMaxAttempts < 1 {
		return fmt.Errorf("REFUND_MAX_ATTEMPTS must be at least 1")
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func parseDurationEnv(key string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", key, err)
	}
	return d, nil
}

func parseDurationListEnv(key, def string) ([]time.Duration, error) {
	var out []time.Duration
	for _, val := range splitList(getEnv(key, def)) {
		d, err := time.ParseDuration(val)
		if err != nil {
			return nil, fmt.Errorf("invalid %s component %q: %w", key, val, err)
		}
		out = append(out, d)
	}
	return out, nil
}

func parseIntEnv(key string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s integer: %w", key, err)
	}
	return n, nil
}

func parseBoolEnv(key string, def bool) (bool, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "t", "true", "yes", "y", "on":
		return true, nil
	case "0", "f", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid %s boolean: %q", key, raw)
	}
}
