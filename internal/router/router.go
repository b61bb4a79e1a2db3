package router

import (
	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GregMSThompson/gridboard/internal/handlers"
	"github.com/GregMSThompson/gridboard/internal/middleware"
)

type Options struct {
	// Metrics exposes /metrics for Prometheus scraping.
	Metrics bool
}

func NewRouter(deps *handlers.Deps, opts Options) chi.Router {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.NewLoggerMiddleware(deps.Log).LoggerMiddleware)
	r.Use(middleware.Metrics)
	r.Use(chimw.Recoverer)

	dh := handlers.NewDashboardHandlers(deps)
	sh := handlers.NewSQLHandlers(deps)

	r.Mount("/dashboards", dh.DashboardRoutes())
	r.Mount("/sql", sh.SQLRoutes())
	r.Get("/widget-types", dh.GetWidgetTypes)
	if opts.Metrics {
		r.Handle("/metrics", promhttp.Handler())
	}
	return r
}
