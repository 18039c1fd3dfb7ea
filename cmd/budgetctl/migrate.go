package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"budget/internal/config"
	"budget/internal/log"
	"budget/internal/storage"
)

func newMigrateCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dialect, dsn, err := migrationTarget(a.cfg)
			if err != nil {
				return err
			}
			if err := storage.RunMigrations(dialect, dsn); err != nil {
				return err
			}
			a.logger.Debug("Migrations applied", log.FieldOperation, log.OpMigrate, log.FieldBackend, string(dialect))
			return printVersion(cmd, dialect, dsn)
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Revert the most recent migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if steps < 1 {
				return fmt.Errorf("--steps must be at least 1")
			}
			dialect, dsn, err := migrationTarget(a.cfg)
			if err != nil {
				return err
			}
			if err := storage.RollbackMigrations(dialect, dsn, steps); err != nil {
				return err
			}
			return printVersion(cmd, dialect, dsn)
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to revert")

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the applied schema version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dialect, dsn, err := migrationTarget(a.cfg)
			if err != nil {
				return err
			}
			return printVersion(cmd, dialect, dsn)
		},
	}

	cmd.AddCommand(up, down, version)
	return cmd
}

func printVersion(cmd *cobra.Command, dialect storage.Dialect, dsn string) error {
	v, dirty, err := storage.MigrationVersion(dialect, dsn)
	if err != nil {
		return err
	}
	suffix := ""
	if dirty {
		suffix = " (dirty)"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "schema version: %d%s\n", v, suffix)
	return nil
}

// migrationTarget resolves the dialect and DSN migrations run against.
func migrationTarget(cfg *config.Config) (storage.Dialect, string, error) {
	switch cfg.DataBackend {
	case config.BackendPostgres:
		return storage.Postgres, cfg.PostgresDSN(), nil
	case config.BackendSQLite:
		if dir := filepath.Dir(cfg.SQLiteDBPath); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return "", "", fmt.Errorf("create db directory: %w", err)
			}
		}
		return storage.SQLite, storage.SQLiteDSN(cfg.SQLiteDBPath), nil
	default:
		return "", "", fmt.Errorf("backend %q has no schema to migrate", cfg.DataBackend)
	}
}
