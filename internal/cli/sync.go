package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pkordes/tour-manager/internal/bandsintown"
	"github.com/pkordes/tour-manager/internal/database"
	"github.com/pkordes/tour-manager/internal/domain"
	"github.com/pkordes/tour-manager/internal/repo"
	"github.com/pkordes/tour-manager/internal/resilience"
	"github.com/pkordes/tour-manager/internal/service"
)

func newSyncCmd(d deps) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Run the Bandsintown event sync once",
		Long:  "Fetches upcoming events for every artist with a tour and stores them. Requires BANDSINTOWN_APP_ID.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.Bandsintown.AppID == "" {
				return errors.New("BANDSINTOWN_APP_ID is not set")
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
			retry := resilience.Config{MaxRetries: cfg.MaxRetries, InitialBackoff: cfg.InitialBackoff}
			pool, err := database.NewPool(ctx, target, retry, log)
			if err != nil {
				return err
			}
			defer pool.Close()

			client := bandsintown.NewFromConfig(cfg.Bandsintown, cfg.HTTPTimeout, retry, log)
			svc := service.NewSyncService(repo.NewStore(pool), client, service.SyncOptions{
				Concurrency: cfg.Sync.Concurrency,
			}, log)

			run, err := svc.Run(ctx, domain.TriggerCLI)
			if run.Status != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "sync %s: %d artists, %d events upserted\n",
					run.Status, run.Artists, run.EventsUpserted)
			}
			return err
		},
	}
}
