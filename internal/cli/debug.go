package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/pkordes/tour-manager/internal/config"
	"github.com/pkordes/tour-manager/internal/database"
)

type varKind int

const (
	plainVar varKind = iota
	secretVar
	urlVar
)

type envVar struct {
	name string
	kind varKind
}

// consumedVars is every variable the server and CLI read.
var consumedVars = []envVar{
	{"APP_ENV", plainVar},
	{"NODE_ENV", plainVar},
	{"PORT", plainVar},
	{"LOG_LEVEL", plainVar},
	{"CORS_ORIGINS", plainVar},
	{"DATABASE_URL", urlVar},
	{"SUPABASE_CONNECTION_STRING", urlVar},
	{"DB_HOST", plainVar},
	{"DB_PORT", plainVar},
	{"DB_NAME", plainVar},
	{"DB_USER", plainVar},
	{"DB_PASSWORD", secretVar},
	{"MIGRATE_ON_START", plainVar},
	{"BANDSINTOWN_WEBHOOK_SECRET", secretVar},
	{"BANDSINTOWN_APP_ID", secretVar},
	{"BANDSINTOWN_API_URL", plainVar},
	{"SYNC_INTERVAL", plainVar},
	{"SYNC_TIMEOUT", plainVar},
	{"SYNC_CONCURRENCY", plainVar},
	{"HTTP_TIMEOUT", plainVar},
	{"MAX_RETRIES", plainVar},
	{"INITIAL_BACKOFF", plainVar},
	{"CACHE_TTL", plainVar},
	{"MAX_BODY_BYTES", plainVar},
	{"OTEL_EXPORTER_OTLP_ENDPOINT", plainVar},
}

const lookupTimeout = 5 * time.Second

func newDebugCmd(d deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "debug",
		Short: "Diagnose configuration problems",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.AddCommand(newDebugEnvCmd(d))
	return cmd
}

func newDebugEnvCmd(d deps) *cobra.Command {
	var ping bool

	cmd := &cobra.Command{
		Use:   "env",
		Short: "Print the environment and the resolved database connection",
		Long: "Prints every variable tourctl and the server read, with secrets masked, " +
			"then shows which connection setting wins, whether it points at a pooler " +
			"and what the database host resolves to.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDebugEnv(cmd.Context(), cmd.OutOrStdout(), d, ping)
		},
	}

	cmd.Flags().BoolVar(&ping, "ping", false, "connect and run a probe query")

	return cmd
}

func runDebugEnv(ctx context.Context, out io.Writer, d deps, ping bool) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}

	fmt.Fprintln(out, "Environment")
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, v := range consumedVars {
		fmt.Fprintf(tw, "  %s\t%s\n", v.name, maskValue(v.kind, os.Getenv(v.name)))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	env := config.EnvFromEnv()
	target, err := database.Resolve(config.DatabaseFromEnv(), env)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Connection")
	fmt.Fprintf(out, "  environment: %s\n", env)
	if err != nil {
		fmt.Fprintf(out, "  error:       %v\n", err)
		return err
	}
	fmt.Fprintf(out, "  source:      %s\n", target.Source)
	fmt.Fprintf(out, "  url:         %s\n", database.Redact(target.URL))
	fmt.Fprintf(out, "  host:        %s\n", target.Host)
	fmt.Fprintf(out, "  port:        %s\n", database.FormatPort(target.Port))
	if target.Pooler {
		fmt.Fprintln(out, "  pooler:      yes (simple protocol, no prepared statements)")
	} else {
		fmt.Fprintln(out, "  pooler:      no")
	}

	lookupCtx, cancel := context.WithTimeout(ctx, lookupTimeout)
	addrs, err := d.lookupHost(lookupCtx, target.Host)
	cancel()
	if err != nil {
		fmt.Fprintf(out, "  dns:         lookup failed: %v\n", err)
	} else {
		fmt.Fprintf(out, "  dns:         %s\n", strings.Join(addrs, ", "))
	}

	if !ping {
		return nil
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Probe")
	db, err := d.openSQL(target)
	if err != nil {
		fmt.Fprintf(out, "  error:       %v\n", err)
		return err
	}
	defer closeDB(db)

	info, err := database.Probe(ctx, db)
	if err != nil {
		fmt.Fprintf(out, "  error:       %v\n", err)
		return errors.New("database probe failed")
	}
	fmt.Fprintf(out, "  database:    %s\n", info.Database)
	fmt.Fprintf(out, "  version:     %s\n", info.Version)
	return nil
}

// maskValue renders a variable for display without leaking credentials.
func maskValue(kind varKind, v string) string {
	if v == "" {
		return "(not set)"
	}
	switch kind {
	case secretVar:
		return fmt.Sprintf("******** (%d chars)", len(v))
	case urlVar:
		return database.Redact(v)
	default:
		return v
	}
}
