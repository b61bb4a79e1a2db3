package services

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/GregMSThompson/gridboard/internal/dto"
	"github.com/GregMSThompson/gridboard/internal/errs"
	"github.com/GregMSThompson/gridboard/internal/events"
	"github.com/GregMSThompson/gridboard/internal/layout"
	"github.com/GregMSThompson/gridboard/internal/models"
	"github.com/GregMSThompson/gridboard/internal/query"
	"github.com/GregMSThompson/gridboard/internal/widget"
	"github.com/GregMSThompson/gridboard/pkg/logger"
)

// dashboardEngine is the query engine surface the service drives.
type dashboardEngine interface {
	Execute(ctx context.Context, cfg models.QueryConfig, vars map[string]any) (query.Result, error)
}

type board struct {
	dash *layout.Dashboard
	host *layout.MemoryHost
}

type dashboardService struct {
	registry *widget.Registry
	engine   dashboardEngine
	bus      *events.Bus
	log      *slog.Logger

	mu     sync.RWMutex
	boards map[string]*board
}

func NewDashboardService(registry *widget.Registry, engine dashboardEngine, bus *events.Bus, log *slog.Logger) *dashboardService {
	if registry == nil {
		registry = widget.Default()
	}
	if bus == nil {
		bus = events.NewBus()
	}
	return &dashboardService{
		registry: registry,
		engine:   engine,
		bus:      bus,
		log:      logger.OrDiscard(log),
		boards:   make(map[string]*board),
	}
}

func (s *dashboardService) Bus() *events.Bus { return s.bus }

type confirmKey struct{}
type editKey struct{}

// WithConfirmation marks a request as confirmed for destructive edits.
func WithConfirmation(ctx context.Context, confirmed bool) context.Context {
	return context.WithValue(ctx, confirmKey{}, confirmed)
}

func confirmed(ctx context.Context, _ string) bool {
	ok, _ := ctx.Value(confirmKey{}).(bool)
	return ok
}

// editFromContext is the configurator for HTTP edits: the new config
// arrives with the request.
func editFromContext(ctx context.Context, current models.WidgetConfig) (models.WidgetConfig, error) {
	next, ok := ctx.Value(editKey{}).(models.WidgetConfig)
	if !ok {
		return current, nil
	}
	if next.Type == "" {
		next.Type = current.Type
	}
	return next, nil
}

// Reload replaces every dashboard with defs. Existing dashboards are
// destroyed once all new ones mounted; a widget error never fails the load.
func (s *dashboardService) Reload(ctx context.Context, defs []models.DashboardConfig) error {
	next := make(map[string]*board, len(defs))
	for _, def := range defs {
		b, err := s.mount(ctx, def)
		if err != nil {
			for _, nb := range next {
				nb.dash.Destroy()
			}
			return err
		}
		next[def.ID] = b
	}

	s.mu.Lock()
	prev := s.boards
	s.boards = next
	s.mu.Unlock()

	for _, old := range prev {
		old.dash.Destroy()
	}
	s.log.Info("dashboards loaded", "count", len(next))
	return nil
}

func (s *dashboardService) mount(ctx context.Context, def models.DashboardConfig) (*board, error) {
	host := layout.NewMemoryHost()
	opts := []layout.Option{
		layout.WithRegistry(s.registry),
		layout.WithHost(host),
		layout.WithBus(s.bus),
		layout.WithLogger(s.log),
		layout.WithConfirmer(layout.ConfirmFunc(confirmed)),
		layout.WithConfigurator(layout.ConfiguratorFunc(editFromContext)),
	}
	if s.engine != nil {
		opts = append(opts, layout.WithEngine(s.engine))
	}
	d, err := layout.New(def, opts...)
	if err != nil {
		return nil, err
	}
	if err := d.Mount(ctx); err != nil {
		d.Destroy()
		return nil, err
	}
	return &board{dash: d, host: host}, nil
}

func (s *dashboardService) get(id string) (*board, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.boards[id]
	if !ok {
		return nil, errs.NewNotFoundError(fmt.Sprintf("dashboard %q not found", id))
	}
	return b, nil
}

// --- Public service methods ---

func (s *dashboardService) ListDashboards(_ context.Context) []dto.DashboardSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]dto.DashboardSummary, 0, len(s.boards))
	for _, b := range s.boards {
		cfg := b.dash.Config()
		out = append(out, dto.DashboardSummary{
			ID:          cfg.ID,
			Name:        cfg.Name,
			Description: cfg.Description,
			Widgets:     len(cfg.Widgets),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *dashboardService) GetDashboard(_ context.Context, id string) (dto.DashboardResponse, error) {
	b, err := s.get(id)
	if err != nil {
		return dto.DashboardResponse{}, err
	}
	return dto.DashboardResponse{
		Dashboard:        b.dash.Config(),
		EffectiveColumns: b.dash.EffectiveColumns(),
		Overlaps:         b.dash.Overlaps(),
	}, nil
}

func (s *dashboardService) AddWidget(ctx context.Context, id string, req dto.AddWidgetRequest) (models.WidgetConfig, error) {
	b, err := s.get(id)
	if err != nil {
		return models.WidgetConfig{}, err
	}
	if req.AutoPlace {
		return b.dash.AutoAddWidget(ctx, req.Widget)
	}
	return b.dash.AddWidget(ctx, req.Widget)
}

// UpdateWidget applies an edited config through the dashboard's edit path,
// which announces widget:edit first.
func (s *dashboardService) UpdateWidget(ctx context.Context, id, widgetID string, cfg models.WidgetConfig) (models.WidgetConfig, error) {
	b, err := s.get(id)
	if err != nil {
		return models.WidgetConfig{}, err
	}
	cfg.ID = widgetID
	return b.dash.EditWidget(context.WithValue(ctx, editKey{}, cfg), widgetID)
}

func (s *dashboardService) UpdateWidgetLayout(_ context.Context, id, widgetID string, r models.Rect) (models.Rect, error) {
	b, err := s.get(id)
	if err != nil {
		return models.Rect{}, err
	}
	return b.dash.SetLayout(widgetID, r)
}

// HandlePointer forwards a remote pointer event to the gesture machine.
func (s *dashboardService) HandlePointer(_ context.Context, id string, ev layout.PointerEvent) (layout.Transition, error) {
	b, err := s.get(id)
	if err != nil {
		return layout.Transition{}, err
	}
	return b.dash.HandlePointer(ev), nil
}

func (s *dashboardService) Observe(_ context.Context, id string, width float64) (dto.ObserveResponse, error) {
	b, err := s.get(id)
	if err != nil {
		return dto.ObserveResponse{}, err
	}
	changed := b.dash.Observe(width)
	return dto.ObserveResponse{EffectiveColumns: b.dash.EffectiveColumns(), Changed: changed}, nil
}

func (s *dashboardService) SetGlobalFilters(ctx context.Context, id string, filters map[string]any) error {
	b, err := s.get(id)
	if err != nil {
		return err
	}
	b.dash.SetGlobalFilters(filters)
	return b.dash.Refresh(ctx)
}

// DeleteWidget removes a widget. Without confirmation nothing is removed
// and a validation error is returned.
func (s *dashboardService) DeleteWidget(ctx context.Context, id, widgetID string, confirm bool) error {
	b, err := s.get(id)
	if err != nil {
		return err
	}
	removed, err := b.dash.RemoveWidget(WithConfirmation(ctx, confirm), widgetID)
	if err != nil {
		return err
	}
	if !removed {
		return errs.NewValidationError("widget removal was not confirmed")
	}
	return nil
}

// GetWidgetData runs the widget's query fresh, with the dashboard's global
// filters as variables.
func (s *dashboardService) GetWidgetData(ctx context.Context, id, widgetID string) (dto.WidgetDataResponse, error) {
	b, err := s.get(id)
	if err != nil {
		return dto.WidgetDataResponse{}, err
	}
	cfg := b.dash.Config()
	wc, ok := cfg.Widget(widgetID)
	if !ok {
		return dto.WidgetDataResponse{}, errs.NewNotFoundError(fmt.Sprintf("widget %q not found", widgetID))
	}
	if !wc.HasSource() {
		return dto.WidgetDataResponse{}, errs.NewConfigurationError("query", fmt.Sprintf("widget %q has no data source", widgetID))
	}
	if s.engine == nil {
		return dto.WidgetDataResponse{}, errs.NewConfigurationError("engine", "no query engine configured")
	}
	res, err := s.engine.Execute(ctx, *wc.Query, cfg.GlobalFilters)
	if err != nil {
		return dto.WidgetDataResponse{}, err
	}
	return dto.WidgetDataResponse{WidgetID: widgetID, Result: res}, nil
}

// RenderWidget returns the widget's current markup.
func (s *dashboardService) RenderWidget(_ context.Context, id, widgetID string) (string, error) {
	b, err := s.get(id)
	if err != nil {
		return "", err
	}
	c, ok := b.host.Container(widgetID)
	if !ok {
		return "", errs.NewNotFoundError(fmt.Sprintf("widget %q not found", widgetID))
	}
	return c.Content(), nil
}

func (s *dashboardService) RefreshDashboard(ctx context.Context, id string) error {
	b, err := s.get(id)
	if err != nil {
		return err
	}
	return b.dash.Refresh(ctx)
}

func (s *dashboardService) SaveDashboard(_ context.Context, id string) (models.DashboardConfig, error) {
	b, err := s.get(id)
	if err != nil {
		return models.DashboardConfig{}, err
	}
	return b.dash.Save(), nil
}

// Configs snapshots every dashboard, sorted by id.
func (s *dashboardService) Configs() []models.DashboardConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.DashboardConfig, 0, len(s.boards))
	for _, b := range s.boards {
		out = append(out, b.dash.Config())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Subscribe delivers the dashboard's events to fn, including the widget:data
// each widget publishes when its own load or refresh timer produces data.
// The subscription follows the dashboard id, so it survives a reload.
func (s *dashboardService) Subscribe(id string, fn func(events.Event)) (func(), error) {
	if _, err := s.get(id); err != nil {
		return nil, err
	}
	unsub := s.bus.Subscribe(events.TopicAll, func(ev events.Event) {
		if ev.DashboardID == id {
			fn(ev)
		}
	})
	var once sync.Once
	return func() { once.Do(unsub) }, nil
}

// Close destroys every dashboard.
func (s *dashboardService) Close() {
	s.mu.Lock()
	boards := s.boards
	s.boards = make(map[string]*board)
	s.mu.Unlock()

	for _, b := range boards {
		b.dash.Destroy()
	}
}
