package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"moneywise/internal/cli"
	"moneywise/internal/config"
	"moneywise/internal/log"
	"moneywise/internal/storage"
)

var (
	dbPath   string
	logLevel string
	logger   *log.Logger

	rootCmd = &cobra.Command{
		Use:   "moneywise-admin",
		Short: "Administrative tasks for a MoneyWise database",
		Long: `moneywise-admin runs maintenance against the MoneyWise SQLite database:
schema migrations, user management, recurring processing and session cleanup.

The database path defaults to SQLITE_DB_PATH.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			logger = cli.SetupLogger(log.ComponentAdmin, logLevel)
		},
	}
)

func init() {
	cli.LoadEnvFile()
	cfg := config.Load()

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", cfg.SQLiteDBPath, "path to the SQLite database")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(userCmd())
	rootCmd.AddCommand(recurringCmd())
	rootCmd.AddCommand(sessionsCmd())
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openRepo opens the database named by --db, applying pending migrations.
func openRepo() (*storage.SQLiteRepository, error) {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", dbPath, err)
	}
	return repo, nil
}
