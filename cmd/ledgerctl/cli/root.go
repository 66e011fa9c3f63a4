// Package cli holds the ledgerctl operator commands.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
	"github.com/odyssey-erp/odyssey-ledger/migrations"
)

type env struct {
	cfg    *app.Config
	logger *slog.Logger
}

func (e *env) pool(ctx context.Context) (*pgxpool.Pool, error) {
	return db.New(ctx, e.cfg.PGDSN, db.Options{MaxConns: e.cfg.PGMaxConns})
}

func (e *env) services(pool *pgxpool.Pool) *app.Services {
	return app.NewServices(app.ServiceDeps{Pool: pool, Config: e.cfg, Logger: e.logger})
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	e := &env{}
	rootCmd := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Operate the Odyssey ledger",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return err
			}
			e.cfg = cfg
			e.logger = app.NewLogger(cfg)
			return nil
		},
	}

	rootCmd.AddCommand(
		newMigrateCommand(e),
		newSeedCommand(e),
		newIntegrityCommand(e),
		newEnqueueCommand(e),
		newQueuesCommand(e),
	)
	return rootCmd
}

func newMigrateCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := e.pool(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()
			applied, err := migrations.Apply(cmd.Context(), pool, e.logger)
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", strings.Join(applied, ", "))
			return nil
		},
	}
}

func newSeedCommand(e *env) *cobra.Command {
	seedCmd := &cobra.Command{
		Use:   "seed",
		Short: "Load starter data",
	}
	seedCmd.AddCommand(&cobra.Command{
		Use:   "chart",
		Short: "Create the default chart of accounts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := e.pool(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()
			res, err := SeedChart(cmd.Context(), e.services(pool).Accounts, DefaultChart)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %d accounts, %d already present\n", len(res.Created), len(res.Existing))
			return nil
		},
	})
	return seedCmd
}

func newIntegrityCommand(e *env) *cobra.Command {
	var failOnDrift bool
	cmd := &cobra.Command{
		Use:   "integrity",
		Short: "Recompute balances and list drift or unbalanced entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			pool, err := e.pool(cmd.Context())
			if err != nil {
				return err
			}
			defer pool.Close()
			job := jobs.NewGLIntegrityJob(e.services(pool).Journals, e.logger, nil)
			report, runErr := job.Run(cmd.Context(), jobs.GLIntegrityPayload{FailOnDrift: failOnDrift})
			if runErr != nil && report.CheckedAt.IsZero() {
				return runErr
			}
			out := cmd.OutOrStdout()
			if report.Healthy() {
				fmt.Fprintln(out, "ledger healthy")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ACCOUNT\tCODE\tCACHED\tRECOMPUTED")
			for _, d := range report.Drift {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", d.AccountID, d.Code, d.Cached.StringFixed(2), d.Recomputed.StringFixed(2))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			for _, id := range report.UnbalancedEntries {
				fmt.Fprintf(out, "unbalanced entry %d\n", id)
			}
			return runErr
		},
	}
	cmd.Flags().BoolVar(&failOnDrift, "fail-on-drift", false, "exit non-zero when problems are found")
	return cmd
}

func newEnqueueCommand(e *env) *cobra.Command {
	var (
		failOnDrift bool
		asOf        string
	)
	cmd := &cobra.Command{
		Use:       "enqueue <job>",
		Short:     "Queue a ledger job for the worker",
		ValidArgs: Triggerable,
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := TriggerOptions{FailOnDrift: failOnDrift}
			if asOf != "" {
				parsed, err := time.Parse(time.DateOnly, asOf)
				if err != nil {
					return fmt.Errorf("--as-of: %w", err)
				}
				opts.AsOf = parsed
			}
			client := NewJobsCLI(e.cfg.RedisAddr)
			defer func() {
				if err := client.Close(); err != nil {
					e.logger.Warn("jobs cli close", slog.Any("error", err))
				}
			}()
			info, err := client.Trigger(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queued %s as %s on %s\n", info.Type, info.ID, info.Queue)
			return nil
		},
	}
	cmd.Flags().BoolVar(&failOnDrift, "fail-on-drift", false, "integrity run fails when problems are found")
	cmd.Flags().StringVar(&asOf, "as-of", "", "reference date for overdue marking (YYYY-MM-DD)")
	return cmd
}

func newQueuesCommand(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "queues",
		Short: "Show queue depth",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := NewJobsCLI(e.cfg.RedisAddr)
			defer func() {
				if err := client.Close(); err != nil {
					e.logger.Warn("jobs cli close", slog.Any("error", err))
				}
			}()
			stats, err := client.InspectQueues()
			if err != nil {
				return err
			}
			return writeQueueStats(cmd.OutOrStdout(), stats)
		},
	}
}
