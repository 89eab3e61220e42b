package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	KurrentDB     KurrentDBConfig
	Auth          AuthConfig
	Scheduling    SchedulingConfig
	Billing       BillingConfig
	Notifications NotificationConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

// KurrentDBConfig holds configuration for KurrentDB (EventStoreDB).
type KurrentDBConfig struct {
	// Host is the KurrentDB server hostname
	Host string
	// Port is the gRPC/HTTP port (default 2113)
	Port int
	// Insecure disables TLS (for development)
	Insecure bool
	// Username for authentication (optional)
	Username string
	// Password for authentication (optional)
	Password string
}

type AuthConfig struct {
	JWTSecret string
}

// SchedulingConfig holds the rescheduling engine knobs.
type SchedulingConfig struct {
	// HorizonDays bounds the forward fallback scan for a free slot
	HorizonDays int
	// MaxBatchSize caps the affected-session set of one commit
	MaxBatchSize int
	// StoreTimeout bounds every session/subscription store operation
	StoreTimeout time.Duration
	// WeekendDays are the non-teaching days of the center (time.Weekday names)
	WeekendDays []string
	// MinFreezeReasonLen is the minimum documentation length for a freeze
	MinFreezeReasonLen int
}

// BillingConfig drives the cost projection in impact analysis. Payment
// execution is owned by a separate billing system; only estimates live here.
type BillingConfig struct {
	SessionRate float64
	Currency    string
}

type NotificationConfig struct {
	Workers    int
	BufferSize int
}

func Load() (*Config, error) {
	return &Config{
		Server: ServerConfig{
			Port: getEnvInt("SERVER_PORT", 8080),
			Env:  getEnv("ENV", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "platform"),
			Password: getEnv("DB_PASSWORD", "platform"),
			Database: getEnv("DB_NAME", "platform"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		KurrentDB: KurrentDBConfig{
			Host:     getEnv("KURRENTDB_HOST", "localhost"),
			Port:     getEnvInt("KURRENTDB_PORT", 2113),
			Insecure: getEnvBool("KURRENTDB_INSECURE", true),
			Username: getEnv("KURRENTDB_USERNAME", ""),
			Password: getEnv("KURRENTDB_PASSWORD", ""),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("JWT_SECRET", "dev-secret-change-in-prod"),
		},
		Scheduling: SchedulingConfig{
			HorizonDays:        getEnvInt("SCHEDULING_HORIZON_DAYS", 14),
			MaxBatchSize:       getEnvInt("SCHEDULING_MAX_BATCH", 50),
			StoreTimeout:       getEnvDuration("SCHEDULING_STORE_TIMEOUT", 5*time.Second),
			WeekendDays:        getEnvSlice("SCHEDULING_WEEKEND_DAYS", []string{"Friday", "Saturday"}),
			MinFreezeReasonLen: getEnvInt("SCHEDULING_MIN_REASON_LEN", 10),
		},
		Billing: BillingConfig{
			SessionRate: getEnvFloat("BILLING_SESSION_RATE", 45.0),
			Currency:    getEnv("BILLING_CURRENCY", "JOD"),
		},
		Notifications: NotificationConfig{
			Workers:    getEnvInt("NOTIFY_WORKERS", 4),
			BufferSize: getEnvInt("NOTIFY_BUFFER_SIZE", 1000),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
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

func getEnvSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, v := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(v); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}
