package layout

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/GregMSThompson/gridboard/internal/errs"
	"github.com/GregMSThompson/gridboard/internal/events"
	"github.com/GregMSThompson/gridboard/internal/models"
	"github.com/GregMSThompson/gridboard/internal/query"
	"github.com/GregMSThompson/gridboard/internal/widget"
	"github.com/GregMSThompson/gridboard/pkg/logger"
)

// maxConcurrentLoads bounds how many widgets load at once during Refresh.
const maxConcurrentLoads = 8

// Confirmer approves destructive edits.
type Confirmer interface {
	Confirm(ctx context.Context, prompt string) bool
}

type ConfirmFunc func(ctx context.Context, prompt string) bool

func (f ConfirmFunc) Confirm(ctx context.Context, prompt string) bool { return f(ctx, prompt) }

// Configurator edits a widget config outside the engine, typically a UI.
type Configurator interface {
	Configure(ctx context.Context, cfg models.WidgetConfig) (models.WidgetConfig, error)
}

type ConfiguratorFunc func(ctx context.Context, cfg models.WidgetConfig) (models.WidgetConfig, error)

func (f ConfiguratorFunc) Configure(ctx context.Context, cfg models.WidgetConfig) (models.WidgetConfig, error) {
	return f(ctx, cfg)
}

type Option func(*Dashboard)

func WithRegistry(r *widget.Registry) Option { return func(d *Dashboard) { d.registry = r } }
func WithHost(h Host) Option                 { return func(d *Dashboard) { d.host = h } }
func WithBus(b *events.Bus) Option            { return func(d *Dashboard) { d.bus = b } }
func WithLogger(log *slog.Logger) Option     { return func(d *Dashboard) { d.log = log } }
func WithEngine(e widget.Executor) Option    { return func(d *Dashboard) { d.engine = e } }
func WithConfirmer(c Confirmer) Option       { return func(d *Dashboard) { d.confirmer = c } }
func WithConfigurator(c Configurator) Option { return func(d *Dashboard) { d.configurator = c } }

// Dashboard owns one dashboard's config, its widget instances and their
// containers. It is safe for concurrent use.
type Dashboard struct {
	registry     *widget.Registry
	host         Host
	bus          *events.Bus
	log          *slog.Logger
	engine       widget.Executor
	confirmer    Confirmer
	configurator Configurator

	mu          sync.Mutex
	cfg         models.DashboardConfig
	widgets     map[string]widget.Widget
	width       float64
	gestures    *Gestures
	stopRefresh chan struct{}
	destroyed   bool
}

// New validates cfg and prepares a dashboard. Nothing is rendered until
// Mount.
func New(cfg models.DashboardConfig, opts ...Option) (*Dashboard, error) {
	cfg = cfg.Clone()
	cfg.ApplyDefaults()
	if cfg.Columns <= 0 || cfg.RowHeight <= 0 {
		return nil, errs.NewConfigurationError("columns", "dashboard needs positive columns and rowHeight")
	}
	d := &Dashboard{
		cfg:      cfg,
		widgets:  make(map[string]widget.Widget),
		gestures: NewGestures(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.registry == nil {
		d.registry = widget.Default()
	}
	if d.host == nil {
		d.host = NewMemoryHost()
	}
	if d.bus == nil {
		d.bus = events.NewBus()
	}
	d.log = logger.OrDiscard(d.log).With("dashboard_id", cfg.ID)
	return d, nil
}

func (d *Dashboard) deps() widget.Deps {
	return widget.Deps{Engine: d.engine, Log: d.log, Variables: d.variables, OnData: d.publishData}
}

// publishData announces data a widget applied, from a load or a push.
func (d *Dashboard) publishData(wc models.WidgetConfig, res query.Result) {
	d.mu.Lock()
	id := d.cfg.ID
	d.mu.Unlock()
	d.bus.Publish(events.Event{Topic: events.TopicWidgetData, DashboardID: id, Widget: &wc, Data: res})
}

// variables are the dashboard's global filters.
func (d *Dashboard) variables() map[string]any {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.cfg.GlobalFilters) == 0 {
		return nil
	}
	out := make(map[string]any, len(d.cfg.GlobalFilters))
	for k, v := range d.cfg.GlobalFilters {
		out[k] = v
	}
	return out
}

func (d *Dashboard) gridLocked() Grid {
	width := d.width
	if width <= 0 {
		// Unobserved: assume the widest layout.
		width = WideBreakpoint
	}
	g := NewGrid(d.cfg, width)
	if d.width <= 0 {
		g.Columns = d.cfg.Columns
	}
	return g
}

// Grid returns the geometry in force.
func (d *Dashboard) Grid() Grid {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.gridLocked()
}

// Mount instantiates every configured widget, auto-placing those without a
// rect, starts loading the ones bound to a source and starts refresh
// timers. It does not wait for any load.
func (d *Dashboard) Mount(_ context.Context) error {
	d.mu.Lock()
	if d.destroyed {
		d.mu.Unlock()
		return errs.NewValidationError("dashboard is destroyed")
	}
	for i := range d.cfg.Widgets {
		if d.cfg.Widgets[i].ID == "" {
			d.cfg.Widgets[i].ID = uuid.NewString()
		}
	}
	Arrange(d.cfg.Widgets, d.cfg.Columns)
	configs := append([]models.WidgetConfig(nil), d.cfg.Widgets...)
	d.mu.Unlock()

	for _, wc := range configs {
		if _, err := d.instantiate(wc); err != nil {
			d.log.Warn("widget failed to initialize", "widget_id", wc.ID, "error", err)
		}
	}
	d.log.Info("dashboard mounted", "widgets", len(configs))

	d.Load()
	d.startWidgetRefresh()

	d.mu.Lock()
	interval := d.cfg.RefreshInterval.Std()
	d.mu.Unlock()
	if interval > 0 {
		d.StartRefresh(interval)
	}
	return nil
}

// instantiate creates, mounts and initializes a widget. A config error
// leaves the widget mounted in its error state.
func (d *Dashboard) instantiate(wc models.WidgetConfig) (widget.Widget, error) {
	w := d.registry.Create(wc, d.deps())

	d.mu.Lock()
	px := d.gridLocked()
	c := d.host.Mount(wc.ID, px.Pixels(px.Visual(wc.Layout)))
	d.widgets[wc.ID] = w
	metricWidgetsMounted.Set(float64(d.mountedLocked()))
	d.mu.Unlock()

	if err := w.Initialize(c, wc); err != nil {
		return w, err
	}
	if !wc.HasSource() {
		w.Render()
	}
	return w, nil
}

func (d *Dashboard) mountedLocked() int { return len(d.widgets) }

func (d *Dashboard) startWidgetRefresh() {
	for _, w := range d.instances() {
		w.StartRefresh()
	}
}

func (d *Dashboard) instances() []widget.Widget {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]widget.Widget, 0, len(d.widgets))
	for _, wc := range d.cfg.Widgets {
		if w, ok := d.widgets[wc.ID]; ok {
			out = append(out, w)
		}
	}
	return out
}

// Load starts a reload of every widget bound to a source and returns at
// once. Each load is bound to its widget's lifetime, so a source that never
// answers holds only its own widget in the loading state. A widget still
// loading is left alone.
func (d *Dashboard) Load() {
	for _, w := range d.instances() {
		if w.Config().HasSource() && w.State() != widget.StateLoading {
			go w.LoadData(context.Background())
		}
	}
}

// Refresh reloads every widget bound to a source concurrently and waits
// for the loads, or for ctx to end. Widget
// failures become widget error states and never fail the refresh.
func (d *Dashboard) Refresh(ctx context.Context) error {
	var g errgroup.Group
	g.SetLimit(maxConcurrentLoads)
	for _, w := range d.instances() {
		if !w.Config().HasSource() {
			continue
		}
		g.Go(func() error {
			w.LoadData(ctx)
			return nil
		})
	}
	return g.Wait()
}

// StartRefresh runs a dashboard-wide reload every interval, independent of
// each widget's own refresh. Restarting replaces the previous timer.
func (d *Dashboard) StartRefresh(interval time.Duration) {
	d.StopRefresh()
	if interval <= 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return
	}
	stop := make(chan struct{})
	d.stopRefresh = stop
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				_ = d.Refresh(context.Background())
			}
		}
	}()
}

func (d *Dashboard) StopRefresh() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopRefresh != nil {
		close(d.stopRefresh)
		d.stopRefresh = nil
	}
}

// Refreshing reports whether the dashboard-wide timer runs.
func (d *Dashboard) Refreshing() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stopRefresh != nil
}

// AddWidget places and instantiates a new widget and starts its load. A
// config without a span is auto-placed with the default span.
func (d *Dashboard) AddWidget(ctx context.Context, wc models.WidgetConfig) (models.WidgetConfig, error) {
	if wc.Type == "" {
		return models.WidgetConfig{}, errs.NewValidationError("widget type is required")
	}
	if wc.Layout.IsZero() {
		return d.addWidget(ctx, wc, DefaultWidgetW, DefaultWidgetH, true)
	}
	return d.addWidget(ctx, wc, wc.Layout.W, wc.Layout.H, false)
}

// AutoAddWidget is AddWidget with the origin always chosen by
// auto-placement; the config's span is kept.
func (d *Dashboard) AutoAddWidget(ctx context.Context, wc models.WidgetConfig) (models.WidgetConfig, error) {
	if wc.Type == "" {
		return models.WidgetConfig{}, errs.NewValidationError("widget type is required")
	}
	w, h := wc.Layout.W, wc.Layout.H
	if w <= 0 {
		w = DefaultWidgetW
	}
	if h <= 0 {
		h = DefaultWidgetH
	}
	return d.addWidget(ctx, wc, w, h, true)
}

func (d *Dashboard) addWidget(_ context.Context, wc models.WidgetConfig, w, h int, auto bool) (models.WidgetConfig, error) {
	d.mu.Lock()
	if d.destroyed {
		d.mu.Unlock()
		return models.WidgetConfig{}, errs.NewValidationError("dashboard is destroyed")
	}
	if wc.ID == "" {
		wc.ID = uuid.NewString()
	}
	if _, exists := d.widgets[wc.ID]; exists {
		d.mu.Unlock()
		return models.WidgetConfig{}, errs.NewAlreadyExistsError(fmt.Sprintf("widget %q already exists", wc.ID))
	}
	if auto {
		placed := make([]models.Rect, len(d.cfg.Widgets))
		for i, existing := range d.cfg.Widgets {
			placed[i] = existing.Layout
		}
		minW, minH := wc.Layout.MinW, wc.Layout.MinH
		wc.Layout = AutoPlace(placed, w, h, d.cfg.Columns)
		wc.Layout.MinW, wc.Layout.MinH = minW, minH
	}
	wc.Layout = wc.Layout.Normalize()
	d.cfg.Widgets = append(d.cfg.Widgets, wc)
	dashboardID := d.cfg.ID
	d.mu.Unlock()

	inst, err := d.instantiate(wc)
	if err != nil {
		d.log.Warn("added widget failed to initialize", "widget_id", wc.ID, "error", err)
	} else if wc.HasSource() {
		go inst.LoadData(context.Background())
		inst.StartRefresh()
	}

	d.bus.Publish(events.Event{Topic: events.TopicWidgetAdd, DashboardID: dashboardID, Widget: &wc})
	d.log.Info("widget added", "widget_id", wc.ID, "widget_type", wc.Type, "x", wc.Layout.X, "y", wc.Layout.Y)
	return wc, nil
}

// RemoveWidget deletes a widget after the confirmer approves. It reports
// whether the widget was removed.
func (d *Dashboard) RemoveWidget(ctx context.Context, id string) (bool, error) {
	d.mu.Lock()
	confirmer := d.confirmer
	_, ok := d.widgets[id]
	d.mu.Unlock()
	if !ok {
		return false, errs.NewNotFoundError(fmt.Sprintf("widget %q not found", id))
	}
	if confirmer == nil {
		return false, errs.NewValidationError("removing a widget requires confirmation")
	}
	if !confirmer.Confirm(ctx, fmt.Sprintf("Remove widget %q?", id)) {
		return false, nil
	}

	d.mu.Lock()
	w, ok := d.widgets[id]
	if !ok {
		d.mu.Unlock()
		return false, nil
	}
	delete(d.widgets, id)
	var removed models.WidgetConfig
	kept := d.cfg.Widgets[:0]
	for _, wc := range d.cfg.Widgets {
		if wc.ID == id {
			removed = wc
			continue
		}
		kept = append(kept, wc)
	}
	d.cfg.Widgets = kept
	delete(d.gestures.active, id)
	metricWidgetsMounted.Set(float64(d.mountedLocked()))
	dashboardID := d.cfg.ID
	d.mu.Unlock()

	w.Destroy()
	d.host.Unmount(id)
	d.bus.Publish(events.Event{Topic: events.TopicWidgetRemove, DashboardID: dashboardID, Widget: &removed})
	d.log.Info("widget removed", "widget_id", id)
	return true, nil
}

// EditWidget announces the edit and, when a configurator is set, applies
// the config it returns.
func (d *Dashboard) EditWidget(ctx context.Context, id string) (models.WidgetConfig, error) {
	d.mu.Lock()
	wc, ok := d.cfg.Widget(id)
	configurator := d.configurator
	dashboardID := d.cfg.ID
	d.mu.Unlock()
	if !ok {
		return models.WidgetConfig{}, errs.NewNotFoundError(fmt.Sprintf("widget %q not found", id))
	}

	d.bus.Publish(events.Event{Topic: events.TopicWidgetEdit, DashboardID: dashboardID, Widget: &wc})
	if configurator == nil {
		return wc, nil
	}
	updated, err := configurator.Configure(ctx, wc)
	if err != nil {
		return models.WidgetConfig{}, err
	}
	updated.ID = id
	if err := d.UpdateWidget(ctx, updated); err != nil {
		return models.WidgetConfig{}, err
	}
	return updated, nil
}

// UpdateWidget replaces a widget's config and re-creates its instance,
// whose load runs in the background. Timers of the old instance are
// cleared first.
func (d *Dashboard) UpdateWidget(_ context.Context, wc models.WidgetConfig) error {
	d.mu.Lock()
	old, ok := d.widgets[wc.ID]
	if !ok {
		d.mu.Unlock()
		return errs.NewNotFoundError(fmt.Sprintf("widget %q not found", wc.ID))
	}
	if wc.Layout.IsZero() {
		prev, _ := d.cfg.Widget(wc.ID)
		wc.Layout = prev.Layout
	}
	wc.Layout = wc.Layout.Normalize()
	for i := range d.cfg.Widgets {
		if d.cfg.Widgets[i].ID == wc.ID {
			d.cfg.Widgets[i] = wc
		}
	}
	d.mu.Unlock()

	old.StopRefresh()
	old.Destroy()

	inst, err := d.instantiate(wc)
	if err != nil {
		return err
	}
	if wc.HasSource() {
		go inst.LoadData(context.Background())
		inst.StartRefresh()
	}
	return nil
}

type layoutUpdater interface {
	UpdateLayout(models.Rect)
}

// HandlePointer feeds one pointer event to the gesture machine. On release
// the candidate rect is committed to the config as is; overlaps are not
// displaced.
func (d *Dashboard) HandlePointer(ev PointerEvent) Transition {
	d.mu.Lock()
	wc, ok := d.cfg.Widget(ev.WidgetID)
	if !ok || d.destroyed || !d.cfg.Editable {
		d.mu.Unlock()
		return Transition{Kind: TransitionNone, Phase: PhaseIdle, WidgetID: ev.WidgetID}
	}
	grid := d.gridLocked()
	tr := d.gestures.Handle(ev, grid, wc.Layout)

	var resized widget.Widget
	w := d.widgets[ev.WidgetID]
	switch tr.Kind {
	case TransitionStarted, TransitionMoved:
		d.host.Place(ev.WidgetID, tr.Floating)
	case TransitionCommitted, TransitionCancelled:
		for i := range d.cfg.Widgets {
			if d.cfg.Widgets[i].ID == ev.WidgetID {
				d.cfg.Widgets[i].Layout = tr.Rect
			}
		}
		d.host.Place(ev.WidgetID, grid.Pixels(grid.Visual(tr.Rect)))
		if lw, ok := w.(layoutUpdater); ok {
			lw.UpdateLayout(tr.Rect)
		}
		if tr.Kind == TransitionCommitted && tr.Phase == PhaseResizing {
			resized = w
		}
	}
	d.mu.Unlock()

	if tr.Kind == TransitionCommitted {
		d.log.Debug("widget layout committed", "widget_id", ev.WidgetID, "phase", tr.Phase,
			"x", tr.Rect.X, "y", tr.Rect.Y, "w", tr.Rect.W, "h", tr.Rect.H)
	}
	// Re-measure after a resize so chart widgets re-fit.
	if resized != nil {
		resized.Resize()
	}
	return tr
}

// SetLayout commits an explicit rect, as a keyboard or remote edit would.
// A span change re-measures the widget like a finished resize.
func (d *Dashboard) SetLayout(id string, r models.Rect) (models.Rect, error) {
	d.mu.Lock()
	prev, ok := d.cfg.Widget(id)
	if !ok {
		d.mu.Unlock()
		return models.Rect{}, errs.NewNotFoundError(fmt.Sprintf("widget %q not found", id))
	}
	r = r.Normalize()
	grid := d.gridLocked()
	if r.W > d.cfg.Columns {
		r.W = d.cfg.Columns
	}
	if r.X+r.W > d.cfg.Columns {
		r.X = d.cfg.Columns - r.W
	}
	for i := range d.cfg.Widgets {
		if d.cfg.Widgets[i].ID == id {
			d.cfg.Widgets[i].Layout = r
		}
	}
	w := d.widgets[id]
	d.host.Place(id, grid.Pixels(grid.Visual(r)))
	d.mu.Unlock()

	if lw, ok := w.(layoutUpdater); ok {
		lw.UpdateLayout(r)
	}
	if w != nil && (prev.Layout.W != r.W || prev.Layout.H != r.H) {
		w.Resize()
	}
	return r, nil
}

// Observe records the grid's pixel width. When the effective column count
// changes every widget is re-placed visually and told to re-measure;
// authored rects are untouched. It reports whether the columns changed.
func (d *Dashboard) Observe(width float64) bool {
	d.mu.Lock()
	before := d.gridLocked().Columns
	d.width = width
	grid := d.gridLocked()
	for _, wc := range d.cfg.Widgets {
		d.host.Place(wc.ID, grid.Pixels(grid.Visual(wc.Layout)))
	}
	d.mu.Unlock()

	for _, w := range d.instances() {
		w.Resize()
	}
	changed := before != grid.Columns
	if changed {
		d.log.Debug("effective columns changed", "from", before, "to", grid.Columns, "width", width)
	}
	return changed
}

// EffectiveColumns is the column count at the last observed width.
func (d *Dashboard) EffectiveColumns() int {
	return d.Grid().Columns
}

// Save snapshots the config and announces it.
func (d *Dashboard) Save() models.DashboardConfig {
	cfg := d.Config()
	d.bus.Publish(events.Event{Topic: events.TopicDashboardSave, DashboardID: cfg.ID, Dashboard: &cfg})
	return cfg
}

func (d *Dashboard) Config() models.DashboardConfig {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cfg.Clone()
}

// SetGlobalFilters replaces the variables sent with every widget query.
func (d *Dashboard) SetGlobalFilters(filters map[string]any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cfg.GlobalFilters = filters
}

func (d *Dashboard) Widget(id string) (widget.Widget, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	w, ok := d.widgets[id]
	return w, ok
}

func (d *Dashboard) Overlaps() []Overlap {
	d.mu.Lock()
	defer d.mu.Unlock()
	return Overlaps(d.cfg.Widgets)
}

func (d *Dashboard) Bus() *events.Bus { return d.bus }

// Destroy stops every timer, destroys the widgets and unmounts them.
func (d *Dashboard) Destroy() {
	d.StopRefresh()

	d.mu.Lock()
	if d.destroyed {
		d.mu.Unlock()
		return
	}
	d.destroyed = true
	widgets := d.widgets
	d.widgets = make(map[string]widget.Widget)
	metricWidgetsMounted.Set(0)
	d.mu.Unlock()

	for id, w := range widgets {
		w.Destroy()
		d.host.Unmount(id)
	}
	d.log.Info("dashboard destroyed", "widgets", len(widgets))
}
