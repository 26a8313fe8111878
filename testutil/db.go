// Package testutil provides shared helpers for integration tests.
// Helpers skip the test when TEST_DATABASE_URL is not set, so unit tests run
// without a database.
package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pkordes/tour-manager/internal/config"
	"github.com/pkordes/tour-manager/internal/database"
	"github.com/pkordes/tour-manager/internal/migrate"
	"github.com/pkordes/tour-manager/internal/observability"
	"github.com/pkordes/tour-manager/internal/resilience"
)

// DSNVar names the variable holding the integration database URL.
const DSNVar = "TEST_DATABASE_URL"

// connectRetry gives a freshly started container a few seconds to accept
// connections.
var connectRetry = resilience.Config{MaxRetries: 3, InitialBackoff: 200 * time.Millisecond}

// Target resolves TEST_DATABASE_URL the same way the server resolves
// DATABASE_URL, so a pooler URL in tests gets the simple protocol too.
func Target(t *testing.T) database.Target {
	t.Helper()
	target, err := resolve(requireDSN(t))
	if err != nil {
		t.Fatalf("testutil.Target: %v", err)
	}
	return target
}

// NewPool opens a pool on TEST_DATABASE_URL and closes it when the test ends.
func NewPool(t *testing.T) *pgxpool.Pool {
	t.Helper()

	pool, err := database.NewPool(context.Background(), Target(t), connectRetry, observability.NewNopLogger())
	if err != nil {
		t.Fatalf("testutil.NewPool: %v", err)
	}
	t.Cleanup(pool.Close)
	return pool
}

// NewSQLDB opens a database/sql handle on TEST_DATABASE_URL, for example to
// drive migrations. It is closed when the test ends.
func NewSQLDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := openSQL(Target(t))
	if err != nil {
		t.Fatalf("testutil.NewSQLDB: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// MustMigrate applies every pending migration to dsn and panics on error.
// It is meant for TestMain, where no *testing.T exists.
func MustMigrate(dsn string) {
	target, err := resolve(dsn)
	if err != nil {
		panic("testutil.MustMigrate: " + err.Error())
	}
	db, err := openSQL(target)
	if err != nil {
		panic("testutil.MustMigrate: " + err.Error())
	}
	defer db.Close()

	runner, err := migrate.New(db, observability.NewNopLogger())
	if err != nil {
		panic("testutil.MustMigrate: " + err.Error())
	}
	if err := runner.Up(context.Background()); err != nil {
		panic("testutil.MustMigrate: " + err.Error())
	}
}

func resolve(dsn string) (database.Target, error) {
	return database.Resolve(config.DatabaseConfig{URL: dsn}, config.EnvTest)
}

func openSQL(target database.Target) (*sql.DB, error) {
	db, err := database.OpenSQL(target)
	if err != nil {
		return nil, err
	}
	err = resilience.RetryWithBackoff(context.Background(), connectRetry, func() error {
		return db.PingContext(context.Background())
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", target.Host, err)
	}
	return db, nil
}

// requireDSN returns TEST_DATABASE_URL or skips the test.
func requireDSN(t *testing.T) string {
	t.Helper()
	dsn := os.Getenv(DSNVar)
	if dsn == "" {
		t.Skip(DSNVar + " not set; skipping integration test")
	}
	return dsn
}
