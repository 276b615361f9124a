package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Server captures process-level configuration. Empty connection strings
// select the in-memory implementation for that concern.
type Server struct {
	Addr             string
	Environment      string
	LogLevel         string
	SeedDemoAccounts bool

	Postgres  PostgresConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	Auth      AuthConfig
	Notify    NotifyConfig
	RateLimit RateLimitConfig
	Tracing   TracingConfig
}

type PostgresConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type KafkaConfig struct {
	Brokers       []string
	AuditTopic    string
	RelaySchedule string
	RelayBatch    int
}

// Enabled reports whether the audit relay should run.
func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 }

type AuthConfig struct {
	JWTSigningKey  string
	JWTIssuer      string
	JWTAudience    string
	AccessTokenTTL time.Duration
}

type NotifyConfig struct {
	Enabled     bool
	AWSRegion   string
	SenderEmail string
}

type TracingConfig struct {
	Enabled      bool
	OTLPEndpoint string
}

type RateLimitConfig struct {
	LoginMaxAttempts int
	LoginWindow      time.Duration
	IPRequestsPerMin int
	// SweepSchedule is the cron spec for dropping expired in-memory windows.
	SweepSchedule string
}

// FromEnv builds a Server config from environment variables so main stays lean.
// A .env file in the working directory is loaded first when present.
func FromEnv() Server {
	_ = godotenv.Load()

	return Server{
		Addr:             getEnv("PORTAL_ADDR", ":8080"),
		Environment:      getEnv("PORTAL_ENV", "dev"),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		SeedDemoAccounts: getBool("SEED_DEMO_ACCOUNTS", false),
		Postgres: PostgresConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getInt("DATABASE_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    getInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDuration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:       getList("KAFKA_BROKERS"),
			AuditTopic:    getEnv("KAFKA_AUDIT_TOPIC", "portal.audit"),
			RelaySchedule: getEnv("AUDIT_RELAY_SCHEDULE", "@every 5s"),
			RelayBatch:    getInt("AUDIT_RELAY_BATCH", 100),
		},
		Auth: AuthConfig{
			// Dev default; production deployments must override it.
			JWTSigningKey:  getEnv("JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
			JWTIssuer:      getEnv("JWT_ISSUER", "portal"),
			JWTAudience:    getEnv("JWT_AUDIENCE", "portal-api"),
			AccessTokenTTL: getDuration("ACCESS_TOKEN_TTL", 30*time.Minute),
		},
		Notify: NotifyConfig{
			Enabled:     getBool("NOTIFY_ENABLED", false),
			AWSRegion:   getEnv("AWS_REGION", "eu-west-1"),
			SenderEmail: getEnv("NOTIFY_SENDER_EMAIL", "no-reply@portal.local"),
		},
		RateLimit: RateLimitConfig{
			LoginMaxAttempts: getInt("LOGIN_MAX_ATTEMPTS", 5),
			LoginWindow:      getDuration("LOGIN_WINDOW", 15*time.Minute),
			IPRequestsPerMin: getInt("IP_REQUESTS_PER_MINUTE", 120),
			SweepSchedule:    getEnv("RATE_LIMIT_SWEEP_SCHEDULE", "@every 1m"),
		},
		Tracing: TracingConfig{
			Enabled:      getBool("TRACING_ENABLED", false),
			OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		},
	}
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if n, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return n
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if b, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return b
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(os.Getenv(key)); err == nil {
		return d
	}
	return fallback
}

func getList(key string) []string {
	raw := os.Getenv(key)
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
