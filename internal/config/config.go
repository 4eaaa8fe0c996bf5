package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the service.
type Config struct {
	App          AppConfig
	Postgres     PostgresConfig
	Redis        RedisConfig
	Logger       LoggerConfig
	Auth         AuthConfig
	Notification NotificationConfig
	Tickets      TicketsConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
}

// PostgresConfig holds DB connection values. An empty DSN selects the
// in-memory store.
type PostgresConfig struct {
	DSN            string
	MaxConns       int32
	MinConns       int32
	RunMigrations  bool
	ConnMaxIdleSec int32
	ConnMaxLifeSec int32
}

// RedisConfig holds Redis connection values.
type RedisConfig struct {
	Addr         string
	Password     string
	DB           int
	LocksEnabled bool
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
	// Format is "json" or "console".
	Format string
}

// AuthConfig defines bearer token verification parameters.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
}

// NotificationConfig configures email delivery and the dispatch queue.
type NotificationConfig struct {
	SMTPHost           string
	SMTPPort           int
	SMTPUser           string
	SMTPPassword       string
	EmailFrom          string
	EmailFromName      string
	BaseURL            string
	Workers            int
	QueueSize          int
	SendTimeoutSeconds int
}

// TicketsConfig tunes the ticket core.
type TicketsConfig struct {
	LockTTLSeconds   int
	LockWaitMillis   int
	VisibilityPolicy string
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	redisDB, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
	}
	smtpPort, err := strconv.Atoi(getEnv("NOTIFY_SMTP_PORT", "587"))
	if err != nil {
		return nil, fmt.Errorf("invalid NOTIFY_SMTP_PORT: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "helpdesk"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 30),
		},
		Postgres: PostgresConfig{
			DSN:            os.Getenv("POSTGRES_DSN"),
			MaxConns:       int32(getEnvAsInt("POSTGRES_MAX_CONNS", 10)),
			MinConns:       int32(getEnvAsInt("POSTGRES_MIN_CONNS", 2)),
			RunMigrations:  getEnvAsBool("POSTGRES_RUN_MIGRATIONS", true),
			ConnMaxIdleSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_IDLE_SECONDS", 30)),
			ConnMaxLifeSec: int32(getEnvAsInt("POSTGRES_CONN_MAX_LIFE_SECONDS", 300)),
		},
		Redis: RedisConfig{
			Addr:         getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			Password:     os.Getenv("REDIS_PASSWORD"),
			DB:           redisDB,
			LocksEnabled: getEnvAsBool("REDIS_LOCKS_ENABLED", false),
		},
		Logger: LoggerConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", "dev-secret"),
			Issuer:    os.Getenv("AUTH_JWT_ISSUER"),
		},
		Notification: NotificationConfig{
			SMTPHost:           os.Getenv("NOTIFY_SMTP_HOST"),
			SMTPPort:           smtpPort,
			SMTPUser:           os.Getenv("NOTIFY_SMTP_USER"),
			SMTPPassword:       os.Getenv("NOTIFY_SMTP_PASSWORD"),
			EmailFrom:          getEnv("NOTIFY_EMAIL_FROM", "noreply@example.com"),
			EmailFromName:      getEnv("NOTIFY_EMAIL_FROM_NAME", "Helpdesk"),
			BaseURL:            strings.TrimRight(getEnv("NOTIFY_BASE_URL", "http://localhost:8080"), "/"),
			Workers:            getEnvAsInt("NOTIFY_WORKERS", 4),
			QueueSize:          getEnvAsInt("NOTIFY_QUEUE_SIZE", 1024),
			SendTimeoutSeconds: getEnvAsInt("NOTIFY_SEND_TIMEOUT_SECONDS", 15),
		},
		Tickets: TicketsConfig{
			LockTTLSeconds:   getEnvAsInt("TICKETS_LOCK_TTL_SECONDS", 30),
			LockWaitMillis:   getEnvAsInt("TICKETS_LOCK_WAIT_MILLIS", 5000),
			VisibilityPolicy: os.Getenv("TICKETS_VISIBILITY_POLICY"),
		},
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// SendTimeout bounds a single notification delivery.
func (n NotificationConfig) SendTimeout() time.Duration {
	if n.SendTimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(n.SendTimeoutSeconds) * time.Second
}

// LockTTL returns how long a ticket lock survives a crashed holder.
func (t TicketsConfig) LockTTL() time.Duration {
	return time.Duration(t.LockTTLSeconds) * time.Second
}

// LockWait returns how long a mutation waits for a ticket lock.
func (t TicketsConfig) LockWait() time.Duration {
	return time.Duration(t.LockWaitMillis) * time.Millisecond
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
