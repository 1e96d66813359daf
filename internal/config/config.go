package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port           string
	Environment    string
	DatabaseURL    string
	RedisURL       string
	KafkaBrokers   []string
	RefundTopic    string
	NatsURL        string
	JaegerEndpoint string

	GatewayBaseURL string
	GatewayTimeout time.Duration

	// SecretsBackend is "aws" or "env".
	SecretsBackend         string
	SecretsCacheTTL        time.Duration
	GatewayKeyIDSecret     string
	GatewayKeySecretSecret string
	WebhookSecretName      string

	CancelAttempts int
	CancelDelay    time.Duration
	RefundLockTTL  time.Duration

	ReconcileInterval  time.Duration
	ReconcileMinAge    time.Duration
	ReconcileBatchSize int
	ReconcileWorkers   int

	NotificationSubject string
	CancelSubject       string
	NatsRequestTimeout  time.Duration
}

// Load reads configuration from the environment, after loading a .env file if one
// is present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Port:                   getEnv("PORT", "8084"),
		Environment:            getEnv("ENVIRONMENT", "development"),
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		RedisURL:               getEnv("REDIS_URL", "localhost:6379"),
		KafkaBrokers:           splitList(getEnv("KAFKA_BROKERS", "localhost:9092")),
		RefundTopic:            getEnv("REFUND_EVENTS_TOPIC", "refund.status.changed"),
		NatsURL:                getEnv("NATS_URL", "nats://localhost:4222"),
		JaegerEndpoint:         os.Getenv("JAEGER_ENDPOINT"),
		GatewayBaseURL:         getEnv("GATEWAY_BASE_URL", "https://api.razorpay.com/v1"),
		SecretsBackend:         getEnv("SECRETS_BACKEND", "env"),
		GatewayKeyIDSecret:     getEnv("GATEWAY_KEY_ID_SECRET", "GATEWAY_KEY_ID"),
		GatewayKeySecretSecret: getEnv("GATEWAY_KEY_SECRET_SECRET", "GATEWAY_KEY_SECRET"),
		WebhookSecretName:      getEnv("WEBHOOK_SECRET_NAME", "GATEWAY_WEBHOOK_SECRET"),
		NotificationSubject:    getEnv("NOTIFICATION_SUBJECT", "notifications.push"),
		CancelSubject:          getEnv("SUBSCRIPTION_CANCEL_SUBJECT", "subscriptions.cancel"),
	}

	durations := []struct {
		key string
		def time.Duration
		dst *time.Duration
	}{
		{"GATEWAY_TIMEOUT", 15 * time.Second, &cfg.GatewayTimeout},
		{"SECRETS_CACHE_TTL", 5 * time.Minute, &cfg.SecretsCacheTTL},
		{"SUBSCRIPTION_CANCEL_DELAY", 500 * time.Millisecond, &cfg.CancelDelay},
		{"REFUND_LOCK_TTL", 30 * time.Second, &cfg.RefundLockTTL},
		{"RECONCILE_INTERVAL", 5 * time.Minute, &cfg.ReconcileInterval},
		{"RECONCILE_MIN_AGE", 10 * time.Minute, &cfg.ReconcileMinAge},
		{"NATS_REQUEST_TIMEOUT", 5 * time.Second, &cfg.NatsRequestTimeout},
	}
	for _, d := range durations {
		v, err := getDuration(d.key, d.def)
		if err != nil {
			return nil, err
		}
		*d.dst = v
	}

	ints := []struct {
		key string
		def int
		dst *int
	}{
		{"SUBSCRIPTION_CANCEL_ATTEMPTS", 2, &cfg.CancelAttempts},
		{"RECONCILE_BATCH_SIZE", 50, &cfg.ReconcileBatchSize},
		{"RECONCILE_WORKERS", 5, &cfg.ReconcileWorkers},
	}
	for _, i := range ints {
		v, err := getInt(i.key, i.def)
		if err != nil {
			return nil, err
		}
		*i.dst = v
	}

	if cfg.SecretsBackend != "aws" && cfg.SecretsBackend != "env" {
		return nil, fmt.Errorf("SECRETS_BACKEND must be aws or env, got %q", cfg.SecretsBackend)
	}
	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getInt(key string, fallback int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
