package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/SivaGaneshv1729/library-management-api/pkg/api"
	"github.com/SivaGaneshv1729/library-management-api/pkg/database"
	"github.com/SivaGaneshv1729/library-management-api/pkg/sweeper"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the overdue sweeper",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	a.logger.Info("starting library service", "addr", a.cfg.HTTPAddr, "driver", a.cfg.Database.Driver)

	db, err := a.openDatabase(ctx)
	if err != nil {
		return err
	}
	defer closeDatabase(db)

	if a.cfg.SeedOnStart {
		if _, err := database.Seed(ctx, db, a.logger); err != nil {
			return err
		}
	}

	engine := a.newEngine(db)

	sw := sweeper.New(engine, nil,
		sweeper.WithSchedule(a.cfg.SweepSchedule),
		sweeper.WithLogger(a.logger),
	)
	if err := sw.Start(); err != nil {
		return err
	}

	server := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           api.NewHandler(db, engine, a.logger).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.logger.Info("library service listening", "addr", server.Addr)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err = <-serveErr:
	case <-ctx.Done():
		a.logger.Info("shutting down library service")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
		a.logger.Error("http server shutdown failed", "error", shutdownErr.Error())
	}
	if stopErr := sw.Stop(shutdownCtx); stopErr != nil {
		a.logger.Error("sweeper shutdown failed", "error", stopErr.Error())
	}

	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
