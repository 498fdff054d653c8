package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type StoreBackend string

const (
	BackendPostgres StoreBackend = "postgres"
	BackendSQLite   StoreBackend = "sqlite"
	BackendMongo    StoreBackend = "mongo"
)

type Config struct {
	AppEnv   string
	LogLevel string

	HTTPPort string
	GRPCPort string

	Store        StoreBackend
	PostgresHost string
	PostgresPort int
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	SQLitePath   string
	MongoURI     string
	MongoDB      string

	BreakerFailures uint32
	BreakerTimeout  time.Duration

	RedisAddr     string
	RedisPassword string
	CacheTTL      time.Duration

	KafkaBrokers     []string
	OrderEventsTopic string
	ConsumerGroup    string

	JWTSecret string
	JWTIssuer string

	OTLPEndpoint string

	RequestTimeout     time.Duration
	ShutdownTimeout    time.Duration
	MaxRequestBodySize int64
	RateLimitPerSecond float64
	RateLimitBurst     int
}

// Load reads the configuration from the environment. Malformed numbers and durations are errors.
func Load() (*Config, error) {
	var errs []error
	intEnv := func(key string, def int) int {
		v, err := getEnvInt(key, def)
		errs = append(errs, err)
		return v
	}
	durEnv := func(key string, def time.Duration) time.Duration {
		v, err := getEnvDuration(key, def)
		errs = append(errs, err)
		return v
	}
	floatEnv := func(key string, def float64) float64 {
		v, err := getEnvFloat(key, def)
		errs = append(errs, err)
		return v
	}

	cfg := &Config{
		AppEnv:   getEnv("APP_ENV", "development"),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		HTTPPort: getEnv("HTTP_PORT", "8080"),
		GRPCPort: getEnv("GRPC_PORT", "50051"),

		Store:        StoreBackend(getEnv("STORE_BACKEND", string(BackendSQLite))),
		PostgresHost: getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort: intEnv("POSTGRES_PORT", 5432),
		PostgresUser: getEnv("POSTGRES_USER", "storefront"),
		PostgresPass: getEnv("POSTGRES_PASSWORD", "storefront"),
		PostgresDB:   getEnv("POSTGRES_DB", "storefront"),
		SQLitePath:   getEnv("SQLITE_PATH", "storefront.db"),
		MongoURI:     getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:      getEnv("MONGO_DB", "storefront"),

		BreakerFailures: uint32(intEnv("BREAKER_FAILURES", 5)),
		BreakerTimeout:  durEnv("BREAKER_TIMEOUT", 30*time.Second),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		CacheTTL:      durEnv("CACHE_TTL", 15*time.Minute),

		KafkaBrokers:     splitList(getEnv("KAFKA_BROKERS", "")),
		OrderEventsTopic: getEnv("ORDER_EVENTS_TOPIC", "order-events"),
		ConsumerGroup:    getEnv("KAFKA_CONSUMER_GROUP", "storefront-cache"),

		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTIssuer: getEnv("JWT_ISSUER", "universal-electronics"),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		RequestTimeout:     durEnv("REQUEST_TIMEOUT", 30*time.Second),
		ShutdownTimeout:    durEnv("SHUTDOWN_TIMEOUT", 10*time.Second),
		MaxRequestBodySize: 1 << 20, // 1MB
		RateLimitPerSecond: floatEnv("RATE_LIMIT_RPS", 20),
		RateLimitBurst:     intEnv("RATE_LIMIT_BURST", 40),
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	switch c.Store {
	case BackendPostgres, BackendSQLite, BackendMongo:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.Store)
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}
	if c.RateLimitPerSecond <= 0 || c.RateLimitBurst <= 0 {
		return errors.New("rate limit must be positive")
	}
	return nil
}

func (c *Config) Development() bool {
	return c.AppEnv == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	raw := getEnv(key, "")
	if raw == "" {
		return defaultValue, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return defaultValue, fmt.Errorf("%s: %w", key, err)
	}
	return v, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
