// Package cli defines the cobra command tree for tourctl.
package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net"
	"os"

	"github.com/spf13/cobra"

	"github.com/pkordes/tour-manager/internal/config"
	"github.com/pkordes/tour-manager/internal/database"
	"github.com/pkordes/tour-manager/internal/observability"
)

// deps are the side effects commands reach for. Tests replace them.
type deps struct {
	lookupHost func(ctx context.Context, host string) ([]string, error)
	openSQL    func(t database.Target) (*sql.DB, error)
	newLogger  func(cfg config.Config) (*slog.Logger, func() error, error)
}

func defaultDeps() deps {
	return deps{
		lookupHost: net.DefaultResolver.LookupHost,
		openSQL:    database.OpenSQL,
		newLogger: func(cfg config.Config) (*slog.Logger, func() error, error) {
			return observability.NewLogger(cfg.LogLevel, cfg.IsDevelopment())
		},
	}
}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	return newRootCmd(defaultDeps())
}

func newRootCmd(d deps) *cobra.Command {
	root := &cobra.Command{
		Use:           "tourctl",
		Short:         "Operate the tour manager",
		Long:          "Apply database migrations, inspect connection settings and run the Bandsintown sync.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newMigrateCmd(d),
		newDebugCmd(d),
		newSyncCmd(d),
	)

	return root
}

// loadConfig loads .env and the full validated config.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// syncLogger flushes buffered log entries. zap reports EINVAL when stderr is
// a terminal, so the error is dropped.
func syncLogger(sync func() error) {
	_ = sync()
}

// closeDB closes the database, logging any error to stderr.
func closeDB(db *sql.DB) {
	if err := db.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: closing database: %v\n", err)
	}
}
