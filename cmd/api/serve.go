package main

import (
	"context"
	"errors"
	"io/fs"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/GregMSThompson/gridboard/internal/bootstrap"
	"github.com/GregMSThompson/gridboard/internal/config"
	"github.com/GregMSThompson/gridboard/internal/events"
	"github.com/GregMSThompson/gridboard/internal/handlers"
	"github.com/GregMSThompson/gridboard/internal/models"
	"github.com/GregMSThompson/gridboard/internal/response"
	"github.com/GregMSThompson/gridboard/internal/router"
	"github.com/GregMSThompson/gridboard/internal/services"
	"github.com/GregMSThompson/gridboard/internal/store"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	// bootstrap
	bs, err := bootstrap.Run(ctx, cfg)
	if err != nil {
		bs.Log.Error("bootstrap failed", "error", err)
		return err
	}
	defer bs.Close()
	log := bs.Log

	// stores
	qstore := store.NewQueryStore(bs.DB)

	// services
	dsvc := services.NewDashboardService(bs.Registry, bs.Engine, events.NewBus(), log)
	defer dsvc.Close()
	ssvc := services.NewSQLService(qstore)

	defs, err := config.LoadDashboards(cfg.DashboardsPath)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.Warn("no dashboard definitions found", "path", cfg.DashboardsPath)
	case err != nil:
		return err
	default:
		if err := dsvc.Reload(ctx, defs); err != nil {
			return err
		}
	}

	// dependencies
	deps := new(handlers.Deps)
	deps.Log = log
	deps.ResponseHandler = response.New(log)
	deps.DashboardSvc = dsvc
	deps.SQLSvc = ssvc
	deps.WidgetKinds = bs.Registry.Kinds

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router.NewRouter(deps, router.Options{Metrics: cfg.Metrics}),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(_ net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Watch {
		g.Go(func() error {
			return config.Watch(gctx, cfg.DashboardsPath, log, func(defs []models.DashboardConfig) {
				if err := dsvc.Reload(gctx, defs); err != nil {
					log.Error("applying reloaded dashboards failed", "error", err)
				}
			})
		})
	}
	g.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr, "dashboards", len(defs))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
