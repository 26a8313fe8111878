package cli

import (
	"context"
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pkordes/tour-manager/internal/database"
	"github.com/pkordes/tour-manager/internal/migrate"
)

func newMigrateCmd(d deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.AddCommand(
		newMigrateStepCmd(d, "up", "Apply all pending migrations", (*migrate.Runner).Up),
		newMigrateStepCmd(d, "down", "Roll back the most recent migration", (*migrate.Runner).Down),
		newMigrateStepCmd(d, "reset", "Roll back every migration", (*migrate.Runner).Reset),
		newMigrateStatusCmd(d),
	)

	return cmd
}

func newMigrateStepCmd(d deps, use, short string, step func(*migrate.Runner, context.Context) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(cmd.Context(), d, func(ctx context.Context, r *migrate.Runner, log *slog.Logger) error {
				if err := step(r, ctx); err != nil {
					log.ErrorContext(ctx, "migration failed", "command", use, "error", err)
					return err
				}
				v, err := r.Version(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "migrate %s: database at version %d\n", use, v)
				return nil
			})
		},
	}
}

func newMigrateStatusCmd(d deps) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List migrations and whether each is applied",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(cmd.Context(), d, func(ctx context.Context, r *migrate.Runner, _ *slog.Logger) error {
				st, err := r.Status(ctx)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
				fmt.Fprintln(tw, "VERSION\tFILE\tAPPLIED AT")
				for _, s := range st {
					applied := "pending"
					if s.Applied {
						applied = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
					fmt.Fprintf(tw, "%d\t%s\t%s\n", s.Version, s.Name, applied)
				}
				return tw.Flush()
			})
		},
	}
}

// withRunner resolves the database, opens it and hands fn a migration runner.
func withRunner(ctx context.Context, d deps, fn func(context.Context, *migrate.Runner, *slog.Logger) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, sync, err := d.newLogger(cfg)
	if err != nil {
		return err
	}
	defer syncLogger(sync)

	target, err := database.Resolve(cfg.Database, cfg.Env)
	if err != nil {
		return err
	}
	db, err := d.openSQL(target)
	if err != nil {
		return err
	}
	defer closeDB(db)

	r, err := migrate.New(db, log)
	if err != nil {
		return err
	}
	return fn(ctx, r, log)
}
