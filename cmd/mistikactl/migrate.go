package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mistika/checkout/internal/config"
	"github.com/mistika/checkout/internal/database"
)

type migrateOptions struct {
	databaseURL string
	path        string
}

func migrateCmd() *cobra.Command {
	opts := &migrateOptions{}

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply, roll back or inspect database migrations",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.complete()
		},
	}

	cmd.PersistentFlags().StringVar(&opts.databaseURL, "database-url", "", "Postgres URL (defaults to DATABASE_URL or DB_* variables)")
	cmd.PersistentFlags().StringVar(&opts.path, "path", "", "migrations directory (defaults to MIGRATIONS_PATH or ./migrations)")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := database.RunMigrations(opts.databaseURL, opts.path); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	})

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if steps <= 0 {
				return fmt.Errorf("--steps must be positive, got %d", steps)
			}
			if err := database.RollbackMigrations(opts.databaseURL, opts.path, steps); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d migration(s)\n", steps)
			return nil
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	cmd.AddCommand(down)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			version, dirty, err := database.MigrationVersion(opts.databaseURL, opts.path)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "version=%d dirty=%t\n", version, dirty)
			return nil
		},
	})

	return cmd
}

func (o *migrateOptions) complete() error {
	if o.databaseURL != "" && o.path != "" {
		return nil
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if o.databaseURL == "" {
		o.databaseURL = cfg.Database.URL
	}
	if o.path == "" {
		o.path = cfg.Database.MigrationsPath
	}
	if _, err := os.Stat(o.path); err != nil {
		return fmt.Errorf("migrations directory: %w", err)
	}
	return nil
}
