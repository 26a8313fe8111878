// Package config loads and validates application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Environment names accepted in APP_ENV / NODE_ENV.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTest        = "test"
)

// Config holds all configuration values for the API server and CLI.
type Config struct {
	// Port is the TCP port the HTTP server listens on. Defaults to "8080".
	Port string

	// LogLevel controls the minimum log level: debug, info, warn, error.
	LogLevel string

	// Env is the deployment environment, read from APP_ENV and then NODE_ENV.
	Env string

	// CORSOrigins is the list of allowed cross-origin request origins.
	CORSOrigins []string

	Database DatabaseConfig

	Bandsintown BandsintownConfig

	Sync SyncConfig

	// HTTPTimeout bounds each outbound HTTP call.
	HTTPTimeout time.Duration

	// MaxRetries and InitialBackoff configure retries of outbound calls and the
	// startup database ping.
	MaxRetries     int
	InitialBackoff time.Duration

	// CacheTTL is how long tour reads stay cached. Zero disables the cache.
	CacheTTL time.Duration

	// MaxBodyBytes caps request bodies.
	MaxBodyBytes int64

	// MigrateOnStart applies pending migrations before the server accepts traffic.
	MigrateOnStart bool

	// OTLPEndpoint is the gRPC OTLP collector address. Empty disables tracing export.
	OTLPEndpoint string
}

// DatabaseConfig carries every way of pointing the app at Postgres.
// database.Resolve decides which one wins.
type DatabaseConfig struct {
	URL                      string // DATABASE_URL
	SupabaseConnectionString string // SUPABASE_CONNECTION_STRING
	Host                     string // DB_HOST
	Port                     string // DB_PORT
	Name                     string // DB_NAME
	User                     string // DB_USER
	Password                 string // DB_PASSWORD
}

// HasAny reports whether any connection setting is present.
func (d DatabaseConfig) HasAny() bool {
	return d.URL != "" || d.SupabaseConnectionString != "" || d.Host != ""
}

// BandsintownConfig configures the webhook receiver and the REST client.
type BandsintownConfig struct {
	WebhookSecret string
	AppID         string
	APIURL        string
}

// SyncConfig configures the daily Bandsintown sync.
type SyncConfig struct {
	// Interval between scheduled runs. Zero disables the in-process scheduler.
	Interval time.Duration
	// Timeout bounds a single run.
	Timeout time.Duration
	// Concurrency bounds parallel artist fetches.
	Concurrency int
}

// IsDevelopment reports whether Env is development.
func (c Config) IsDevelopment() bool {
	return c.Env == EnvDevelopment
}

// Load reads a .env file from the working directory if present (real
// environment variables win), then builds a Config from the environment.
// Returns an error listing every required variable that is not set.
func Load() (Config, error) {
	if err := LoadDotEnv(); err != nil {
		return Config{}, err
	}
	return FromEnv()
}

// LoadDotEnv loads .env from the working directory without overriding
// variables that are already set. A missing file is not an error.
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config: load .env: %w", err)
	}
	return nil
}

// EnvFromEnv returns APP_ENV, then NODE_ENV, then development.
func EnvFromEnv() string {
	return getEnv("APP_ENV", getEnv("NODE_ENV", EnvDevelopment))
}

// DatabaseFromEnv reads the connection settings without validating them.
func DatabaseFromEnv() DatabaseConfig {
	return DatabaseConfig{
		URL:                      os.Getenv("DATABASE_URL"),
		SupabaseConnectionString: os.Getenv("SUPABASE_CONNECTION_STRING"),
		Host:                     os.Getenv("DB_HOST"),
		Port:                     getEnv("DB_PORT", "5432"),
		Name:                     os.Getenv("DB_NAME"),
		User:                     os.Getenv("DB_USER"),
		Password:                 os.Getenv("DB_PASSWORD"),
	}
}

// FromEnv builds a Config from the current process environment only.
func FromEnv() (Config, error) {
	cfg := Config{
		Port:        getEnv("PORT", "8080"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Env:         EnvFromEnv(),
		CORSOrigins: splitCSV(getEnv("CORS_ORIGINS", "http://localhost:5173")),
		Database:    DatabaseFromEnv(),
		Bandsintown: BandsintownConfig{
			WebhookSecret: os.Getenv("BANDSINTOWN_WEBHOOK_SECRET"),
			AppID:         os.Getenv("BANDSINTOWN_APP_ID"),
			APIURL:        strings.TrimRight(getEnv("BANDSINTOWN_API_URL", "https://rest.bandsintown.com"), "/"),
		},
		Sync: SyncConfig{
			Interval:    getEnvDuration("SYNC_INTERVAL", 24*time.Hour),
			Timeout:     getEnvDuration("SYNC_TIMEOUT", 10*time.Minute),
			Concurrency: getEnvInt("SYNC_CONCURRENCY", 4),
		},
		HTTPTimeout:    getEnvDuration("HTTP_TIMEOUT", 10*time.Second),
		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 200*time.Millisecond),
		CacheTTL:       getEnvDuration("CACHE_TTL", time.Minute),
		MaxBodyBytes:   int64(getEnvInt("MAX_BODY_BYTES", 1<<20)),
		MigrateOnStart: getEnvBool("MIGRATE_ON_START", false),
		OTLPEndpoint:   os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	var missing []string
	if !cfg.Database.HasAny() {
		missing = append(missing, "DATABASE_URL (or SUPABASE_CONNECTION_STRING or DB_HOST)")
	}
	if cfg.Database.URL == "" && cfg.Database.SupabaseConnectionString == "" && cfg.Database.Host != "" {
		if cfg.Database.Name == "" {
			missing = append(missing, "DB_NAME")
		}
		if cfg.Database.User == "" {
			missing = append(missing, "DB_USER")
		}
	}

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("required environment variables not set: %s", strings.Join(missing, ", "))
	}
	if cfg.Sync.Concurrency < 1 {
		cfg.Sync.Concurrency = 1
	}

	return cfg, nil
}

// getEnv returns the value of the environment variable named by key,
// or fallback if the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// splitCSV splits a comma-separated string into a trimmed slice, ignoring empty entries.
func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}
