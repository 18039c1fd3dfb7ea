// Command budgetctl administers a budget tracker database: schema
// migrations, user accounts and read-only ledger reports.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"budget/internal/backend"
	"budget/internal/cli"
	"budget/internal/config"
	"budget/internal/log"
)

type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	envFile string
	verbose bool

	cfg    *config.Config
	logger *log.Logger
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "budgetctl",
		Short: "Administer the budget tracker",
		Long: `budgetctl manages the budget tracker store directly.

It reads the same environment as the server (DATA_BACKEND, DATABASE_URL,
DB_*, SQLITE_DB_PATH, ...), optionally from an env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}
	root.SetIn(a.stdin)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	root.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "env file to load before reading the environment")
	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "log at debug level")

	root.AddCommand(newMigrateCmd(a), newUserCmd(a), newEntriesCmd(a))
	return root
}

func (a *app) setup() error {
	if err := cli.LoadEnvFile(a.envFile); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	cfg := config.Load()
	if err := cfg.ValidateStorage(); err != nil {
		return err
	}
	level := slog.LevelWarn
	if a.verbose {
		level = slog.LevelDebug
	}
	a.cfg = cfg
	a.logger = log.New(log.Config{
		Level:     level,
		Format:    cfg.LogFormat,
		Component: log.ComponentCLI,
		Output:    a.stderr,
	})
	return nil
}

// openStore opens the configured backend, migrating it unless told not to.
func (a *app) openStore(ctx context.Context, skipMigration bool) (*backend.BackendResult, error) {
	bc, err := backend.FromAppConfig(a.cfg)
	if err != nil {
		return nil, err
	}
	bc.SkipMigration = skipMigration
	return backend.NewFactory(a.logger).CreateBackend(ctx, bc)
}

func main() {
	a := &app{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}

	ctx, stop := cli.SignalContext(context.Background())
	err := newRootCmd(a).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
