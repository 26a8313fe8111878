// Package migrate applies the embedded SQL migrations with goose.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/pressly/goose/v3"

	"github.com/pkordes/tour-manager/migrations"
)

// Runner drives a goose provider over migrations.FS.
type Runner struct {
	provider *goose.Provider
	log      *slog.Logger
}

// Status is the state of one migration file.
type Status struct {
	Version   int64
	Name      string
	Applied   bool
	AppliedAt time.Time
}

// New builds a Runner. It does not touch the database.
func New(db *sql.DB, log *slog.Logger) (*Runner, error) {
	p, err := goose.NewProvider(goose.DialectPostgres, db, migrations.FS)
	if err != nil {
		return nil, fmt.Errorf("migrate: create provider: %w", err)
	}
	return &Runner{provider: p, log: log}, nil
}

// Versions lists the embedded migration versions in apply order.
func (r *Runner) Versions() []int64 {
	sources := r.provider.ListSources()
	out := make([]int64, 0, len(sources))
	for _, s := range sources {
		out = append(out, s.Version)
	}
	return out
}

// Up applies every pending migration.
func (r *Runner) Up(ctx context.Context) error {
	results, err := r.provider.Up(ctx)
	r.logResults(ctx, results...)
	if err != nil {
		return fmt.Errorf("migrate: up: %w", err)
	}
	if len(results) == 0 {
		r.log.InfoContext(ctx, "no pending migrations")
	}
	return nil
}

// Down rolls back the most recent migration.
func (r *Runner) Down(ctx context.Context) error {
	result, err := r.provider.Down(ctx)
	if result != nil {
		r.logResults(ctx, result)
	}
	if err != nil {
		return fmt.Errorf("migrate: down: %w", err)
	}
	return nil
}

// Reset rolls back every applied migration.
func (r *Runner) Reset(ctx context.Context) error {
	results, err := r.provider.DownTo(ctx, 0)
	r.logResults(ctx, results...)
	if err != nil {
		return fmt.Errorf("migrate: reset: %w", err)
	}
	return nil
}

// Status reports every embedded migration and whether it is applied.
func (r *Runner) Status(ctx context.Context) ([]Status, error) {
	st, err := r.provider.Status(ctx)
	if err != nil {
		return nil, fmt.Errorf("migrate: status: %w", err)
	}
	out := make([]Status, 0, len(st))
	for _, s := range st {
		out = append(out, Status{
			Version:   s.Source.Version,
			Name:      filepath.Base(s.Source.Path),
			Applied:   s.State == goose.StateApplied,
			AppliedAt: s.AppliedAt,
		})
	}
	return out, nil
}

// Version returns the current database version, 0 when nothing is applied.
func (r *Runner) Version(ctx context.Context) (int64, error) {
	v, err := r.provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("migrate: version: %w", err)
	}
	return v, nil
}

func (r *Runner) logResults(ctx context.Context, results ...*goose.MigrationResult) {
	for _, res := range results {
		if res == nil || res.Source == nil {
			continue
		}
		attrs := []any{
			"version", res.Source.Version,
			"file", filepath.Base(res.Source.Path),
			"direction", res.Direction,
			"duration_ms", res.Duration.Milliseconds(),
		}
		if res.Error != nil {
			r.log.ErrorContext(ctx, "migration failed", append(attrs, "error", res.Error)...)
			continue
		}
		r.log.InfoContext(ctx, "migration applied", attrs...)
	}
}
