// Package database resolves the Postgres connection string and opens pools.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/pkordes/tour-manager/internal/config"
	"github.com/pkordes/tour-manager/internal/resilience"
)

// ErrNoConnectionString is returned when no connection setting is present.
var ErrNoConnectionString = errors.New("database: no connection string configured (set DATABASE_URL, SUPABASE_CONNECTION_STRING or DB_HOST)")

// Source names where a connection string came from.
type Source string

const (
	SourceDatabaseURL Source = "DATABASE_URL"
	SourceSupabase    Source = "SUPABASE_CONNECTION_STRING"
	SourceParts       Source = "DB_*"
)

const defaultPort = "5432"

// Target is a resolved connection string plus what is known about it.
type Target struct {
	URL    string
	Source Source
	Host   string
	Port   uint16
	// Pooler is set for transaction poolers, which cannot use prepared statements.
	Pooler bool
}

// Resolve picks the connection string from cfg. DATABASE_URL wins, then
// SUPABASE_CONNECTION_STRING, then a URL built from the DB_* parts.
// Outside development the built URL requires TLS.
func Resolve(cfg config.DatabaseConfig, env string) (Target, error) {
	var t Target
	switch {
	case cfg.URL != "":
		t = Target{URL: cfg.URL, Source: SourceDatabaseURL}
	case cfg.SupabaseConnectionString != "":
		t = Target{URL: cfg.SupabaseConnectionString, Source: SourceSupabase}
	case cfg.Host != "":
		t = Target{URL: buildURL(cfg, env), Source: SourceParts}
	default:
		return Target{}, ErrNoConnectionString
	}

	pc, err := pgconn.ParseConfig(t.URL)
	if err != nil {
		// pgconn errors can echo the password.
		return Target{}, fmt.Errorf("database: parse %s: invalid connection string", t.Source)
	}
	t.Host = pc.Host
	t.Port = pc.Port
	t.Pooler = IsPooler(t.Host, t.Port)
	return t, nil
}

func buildURL(cfg config.DatabaseConfig, env string) string {
	port := cfg.Port
	if port == "" {
		port = defaultPort
	}
	user := url.User(cfg.User)
	if cfg.Password != "" {
		user = url.UserPassword(cfg.User, cfg.Password)
	}
	u := url.URL{
		Scheme: "postgres",
		User:   user,
		Host:   net.JoinHostPort(cfg.Host, port),
		Path:   "/" + cfg.Name,
	}
	if env != config.EnvDevelopment {
		u.RawQuery = "sslmode=require"
	}
	return u.String()
}

// IsPooler reports whether host:port looks like a Supabase or Neon pooler.
func IsPooler(host string, port uint16) bool {
	h := strings.ToLower(host)
	return strings.Contains(h, "pooler.supabase.com") ||
		strings.Contains(h, "-pooler.") ||
		port == 6543
}

// Redact replaces the password in a URL-form connection string.
// Anything that does not parse as a URL is hidden entirely.
func Redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "[redacted]"
	}
	return u.Redacted()
}

// NewPool opens a pgx pool for t and pings it, retrying with backoff.
func NewPool(ctx context.Context, t Target, retry resilience.Config, log *slog.Logger) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(t.URL)
	if err != nil {
		return nil, fmt.Errorf("database: parse %s: invalid connection string", t.Source)
	}
	if t.Pooler {
		cfg.ConnConfig.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("database: create pool: %w", err)
	}

	attempt := 0
	err = resilience.RetryWithBackoff(ctx, retry, func() error {
		attempt++
		if err := pool.Ping(ctx); err != nil {
			log.WarnContext(ctx, "database ping failed", "attempt", attempt, "error", err)
			return err
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("database: ping: %w", err)
	}

	log.InfoContext(ctx, "database connection established",
		"source", string(t.Source), "host", t.Host, "port", t.Port, "pooler", t.Pooler)
	return pool, nil
}

// OpenSQL opens a database/sql handle on the pgx driver for tools that need
// one, such as the migration runner.
func OpenSQL(t Target) (*sql.DB, error) {
	cfg, err := pgx.ParseConfig(t.URL)
	if err != nil {
		return nil, fmt.Errorf("database: parse %s: invalid connection string", t.Source)
	}
	if t.Pooler {
		cfg.DefaultQueryExecMode = pgx.QueryExecModeSimpleProtocol
	}
	return stdlib.OpenDB(*cfg), nil
}

// ServerInfo is what Probe reports about the connected server.
type ServerInfo struct {
	Version  string
	Database string
}

// Probe runs a trivial query to confirm the connection works.
func Probe(ctx context.Context, db *sql.DB) (ServerInfo, error) {
	var info ServerInfo
	err := db.QueryRowContext(ctx, "SELECT version(), current_database()").Scan(&info.Version, &info.Database)
	if err != nil {
		return ServerInfo{}, fmt.Errorf("database: probe: %w", err)
	}
	return info, nil
}

// FormatPort renders a port for display, empty when unknown.
func FormatPort(p uint16) string {
	if p == 0 {
		return ""
	}
	return strconv.Itoa(int(p))
}
