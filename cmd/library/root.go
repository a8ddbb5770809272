package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/SivaGaneshv1729/library-management-api/pkg/circuitbreaker"
	"github.com/SivaGaneshv1729/library-management-api/pkg/config"
	"github.com/SivaGaneshv1729/library-management-api/pkg/database"
	"github.com/SivaGaneshv1729/library-management-api/pkg/ledger"
	"github.com/SivaGaneshv1729/library-management-api/pkg/lending"
	"github.com/SivaGaneshv1729/library-management-api/pkg/retry"
)

// app carries what every subcommand needs once the root command has run.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	httpAddr string
	dbDriver string
	logOut   io.Writer
}

func newRootCmd() *cobra.Command {
	a := &app{logOut: os.Stderr}

	root := &cobra.Command{
		Use:          "library",
		Short:        "Library lending service",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}

	root.PersistentFlags().StringVar(&a.httpAddr, "http-addr", "", "HTTP listen address (overrides HTTP_ADDR)")
	root.PersistentFlags().StringVar(&a.dbDriver, "db-driver", "", "database driver, postgres or sqlite (overrides DB_DRIVER)")

	root.AddCommand(
		newServeCmd(a),
		newMigrateCmd(a),
		newSeedCmd(a),
		newSweepCmd(a),
	)
	return root
}

func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	if cmd.Flags().Changed("http-addr") {
		cfg.HTTPAddr = a.httpAddr
	}
	if cmd.Flags().Changed("db-driver") {
		switch a.dbDriver {
		case config.DriverPostgres, config.DriverSQLite:
			cfg.Database.Driver = a.dbDriver
		default:
			return fmt.Errorf("unsupported database driver %q", a.dbDriver)
		}
	}

	a.cfg = cfg
	a.logger = slog.New(slog.NewJSONHandler(a.logOut, &slog.HandlerOptions{Level: cfg.LogLevel}))
	return nil
}

// openDatabase connects and brings the schema up to date.
func (a *app) openDatabase(ctx context.Context) (*gorm.DB, error) {
	db, err := database.Open(ctx, a.cfg.Database, a.logger)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		closeDatabase(db)
		return nil, err
	}
	return db, nil
}

func closeDatabase(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func (a *app) newEngine(db *gorm.DB) *lending.Engine {
	cb := circuitbreaker.NewCircuitBreaker(a.cfg.BreakerMaxFailures, a.cfg.BreakerTimeout)

	return lending.NewEngine(ledger.NewGormStore(db),
		lending.WithPolicy(a.cfg.Policy()),
		lending.WithTxTimeout(a.cfg.TxTimeout),
		lending.WithRetry(
			retry.WithMaxAttempts(a.cfg.RetryAttempts),
			retry.WithBaseDelay(a.cfg.RetryBaseDelay),
		),
		lending.WithCircuitBreaker(cb),
		lending.WithLogger(a.logger),
	)
}
