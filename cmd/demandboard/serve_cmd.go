package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/jask/demandboard/internal/config"
	"github.com/jask/demandboard/internal/database"
	"github.com/jask/demandboard/internal/logging"
	"github.com/jask/demandboard/internal/server"
	"github.com/jask/demandboard/internal/service"
)

// serveOptions override the server section of the config. Migrations, when
// set, is a directory applied instead of the embedded migrations.
type serveOptions struct {
	Identity   string
	Addr       string
	DBPath     string
	Migrations string
	Reset      bool
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve [--as NAME] [--addr ADDR] [--db PATH]",
		Short: "Run the demo backend as one node of the network",
		Long: "Serves the demand and project REST API for a single node identity. " +
			"Several nodes may share one database file, each on its own address.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if opts.Identity == "" {
				opts.Identity = cfg.Server.Identity
			}
			if opts.Addr == "" {
				opts.Addr = cfg.Server.Addr
			}
			if opts.DBPath == "" {
				opts.DBPath = cfg.Server.DatabasePath
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return serve(ctx, cfg, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Identity, "as", "", "node identity, e.g. \"O=PLTeam1, L=Singapore, C=SG\"")
	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address")
	cmd.Flags().StringVar(&opts.DBPath, "db", "", "sqlite database file")
	cmd.Flags().StringVar(&opts.Migrations, "migrations", "", "apply migrations from this directory instead of the built-in set")
	cmd.Flags().BoolVar(&opts.Reset, "reset", false, "delete every demand, project and allocation before serving")
	return cmd
}

func serve(ctx context.Context, cfg config.Config, opts serveOptions) error {
	log := logging.New(logging.Level(cfg.Log.Level), os.Stderr)

	if opts.Migrations != "" {
		if err := database.RunMigrations(opts.DBPath, opts.Migrations); err != nil {
			return fmt.Errorf("migrate from %s: %w", opts.Migrations, err)
		}
	}
	db, err := database.Open(opts.DBPath)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()
	if opts.Migrations == "" {
		if err := database.Migrate(db); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	if err := database.SeedParties(ctx, db); err != nil {
		return fmt.Errorf("seed parties: %w", err)
	}
	if opts.Reset {
		if err := (&service.MaintenanceService{DB: db}).Reset(ctx); err != nil {
			return fmt.Errorf("reset: %w", err)
		}
		log.Warn("ledger reset")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	ledger := &service.Ledger{DB: db, Log: log}
	h := server.New(ledger, opts.Identity, server.WithLogger(log), server.WithRegistry(reg))

	srv := &http.Server{Addr: opts.Addr, Handler: h, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	log.WithField("addr", opts.Addr).WithField("me", h.Identity()).Info("node listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	log.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}
