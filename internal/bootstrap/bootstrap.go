package bootstrap

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/GregMSThompson/gridboard/internal/config"
	"github.com/GregMSThompson/gridboard/internal/query"
	"github.com/GregMSThompson/gridboard/internal/store"
	"github.com/GregMSThompson/gridboard/internal/widget"
	"github.com/GregMSThompson/gridboard/pkg/logger"
)

type Bootstrap struct {
	Log      *slog.Logger
	DB       *sql.DB
	Engine   *query.Engine
	Registry *widget.Registry
}

func Run(ctx context.Context, cfg *config.Config) (*Bootstrap, error) {
	var err error
	bs := new(Bootstrap)

	bs.Log = logger.New(cfg.LogLevel, logger.NewSeverityHandler)
	bs.DB, err = store.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return bs, err
	}
	bs.Engine = query.NewEngine(
		query.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		query.WithLogger(bs.Log),
	)
	bs.Registry = widget.Default()
	bs.Registry.SetLogger(bs.Log)

	return bs, nil
}

// Close releases the engine's sockets and timers, then the database.
func (bs *Bootstrap) Close() {
	if bs.Engine != nil {
		bs.Engine.Close()
	}
	if bs.DB != nil {
		if err := bs.DB.Close(); err != nil {
			bs.Log.Warn("closing database", "error", err)
		}
	}
}
