package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage backend names accepted in CONSENT_STORAGE_BACKEND.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// DefaultStorageKey is the key the banner front end persists its record under.
const DefaultStorageKey = "cookie-consent"

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	Environment     string
	LogLevel        string
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	Storage  StorageConfig
	Redis    RedisConfig
	Database DatabaseConfig
	Policy   PolicyConfig
	Audit    AuditConfig
	Visitor  VisitorConfig
}

// StorageConfig selects and tunes the consent record backend.
type StorageConfig struct {
	Backend         string
	Key             string
	RecordTTL       time.Duration
	SQLitePath      string
	BreakerFailures int
	BreakerCooldown time.Duration
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	RunMigrations   bool
}

// PolicyConfig identifies the consent policy currently in force.
// Hash wins over File when both are set.
type PolicyConfig struct {
	Hash string
	File string
}

// AuditConfig controls where audit events go.
type AuditConfig struct {
	KafkaBrokers []string
	Topic        string
	BufferSize   int
}

// VisitorConfig controls the visitor identification cookie.
type VisitorConfig struct {
	CookieName   string
	CookieMaxAge time.Duration
	SecureCookie bool
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	return Server{
		Addr:            getEnv("CONSENT_ADDR", ":8080"),
		Environment:     getEnv("ENVIRONMENT", "development"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		RequestTimeout:  getDuration("REQUEST_TIMEOUT", 10*time.Second),
		ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 15*time.Second),
		Storage: StorageConfig{
			Backend:         strings.ToLower(getEnv("CONSENT_STORAGE_BACKEND", BackendMemory)),
			Key:             getEnv("CONSENT_STORAGE_KEY", DefaultStorageKey),
			RecordTTL:       getDuration("CONSENT_RECORD_TTL", 0),
			SQLitePath:      getEnv("SQLITE_PATH", "consentstate.db"),
			BreakerFailures: getInt("CONSENT_STORE_BREAKER_FAILURES", 5),
			BreakerCooldown: getDuration("CONSENT_STORE_BREAKER_COOLDOWN", 10*time.Second),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			RunMigrations:   getBool("DB_RUN_MIGRATIONS", true),
		},
		Policy: PolicyConfig{
			Hash: os.Getenv("CONSENT_POLICY_HASH"),
			File: os.Getenv("CONSENT_POLICY_FILE"),
		},
		Audit: AuditConfig{
			KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:        getEnv("AUDIT_TOPIC", "consentstate.audit"),
			BufferSize:   getInt("AUDIT_BUFFER_SIZE", 1024),
		},
		Visitor: VisitorConfig{
			CookieName:   getEnv("VISITOR_COOKIE_NAME", "consent_visitor"),
			CookieMaxAge: getDuration("VISITOR_COOKIE_MAX_AGE", 365*24*time.Hour),
			SecureCookie: getBool("VISITOR_COOKIE_SECURE", false),
		},
	}
}

// Validate reports configuration that cannot start a server.
func (s Server) Validate() error {
	switch s.Storage.Backend {
	case BackendMemory, BackendSQLite:
	case BackendRedis:
		if s.Redis.URL == "" {
			return fmt.Errorf("REDIS_URL is required for the %s backend", BackendRedis)
		}
	case BackendPostgres:
		if s.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for the %s backend", BackendPostgres)
		}
	default:
		return fmt.Errorf("unknown CONSENT_STORAGE_BACKEND %q", s.Storage.Backend)
	}
	if s.Storage.Key == "" {
		return fmt.Errorf("CONSENT_STORAGE_KEY must not be empty")
	}
	if s.Policy.Hash == "" && s.Policy.File == "" {
		return fmt.Errorf("one of CONSENT_POLICY_HASH or CONSENT_POLICY_FILE is required")
	}
	return nil
}

// IsProduction reports whether the server runs in production.
func (s Server) IsProduction() bool {
	return s.Environment == "production"
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
