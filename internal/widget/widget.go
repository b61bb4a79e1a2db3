package widget

import (
	"context"
	"log/slog"

	"github.com/GregMSThompson/gridboard/internal/models"
	"github.com/GregMSThompson/gridboard/internal/query"
)

// State is a widget's data lifecycle state.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateSuccess State = "success"
	StateError   State = "error"
)

// Widget is the capability set every widget kind implements.
type Widget interface {
	// Initialize binds the widget to its container and config. It must be
	// called once before anything else.
	Initialize(c Container, cfg models.WidgetConfig) error
	// Render replaces the container content with the current state.
	Render()
	SetData(res query.Result)
	// LoadData executes the widget's query and applies the outcome. It never
	// returns an error: failures become the error state.
	LoadData(ctx context.Context)
	StartRefresh()
	StopRefresh()
	// Resize tells the widget its container changed size.
	Resize()
	// Destroy stops timers, aborts in-flight loads and clears the container.
	Destroy()
	Config() models.WidgetConfig
	State() State
}

// Executor runs a widget query. *query.Engine satisfies it.
type Executor interface {
	Execute(ctx context.Context, cfg models.QueryConfig, vars map[string]any) (query.Result, error)
}

// Pusher delivers websocket push messages. *query.Engine satisfies it.
type Pusher interface {
	OnPush(cfg models.QueryConfig, fn func(query.Result)) func()
}

// Deps are handed to every constructor.
type Deps struct {
	Engine Executor
	Log    *slog.Logger
	// Variables returns the dashboard-level variables (global filters)
	// passed with every query. It may be nil.
	Variables func() map[string]any
	// OnData is called after a load or push applied new data. It may be nil.
	OnData func(cfg models.WidgetConfig, res query.Result)
}

func (d Deps) variables() map[string]any {
	if d.Variables == nil {
		return nil
	}
	return d.Variables()
}

func (d Deps) dataApplied(cfg models.WidgetConfig, res query.Result) {
	if d.OnData != nil {
		d.OnData(cfg, res)
	}
}
