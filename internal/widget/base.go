package widget

import (
	"bytes"
	"context"
	"errors"
	"html/template"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/GregMSThompson/gridboard/internal/errs"
	"github.com/GregMSThompson/gridboard/internal/models"
	"github.com/GregMSThompson/gridboard/internal/query"
	"github.com/GregMSThompson/gridboard/pkg/logger"
)

// Snapshot is what a View renders from.
type Snapshot struct {
	Config models.WidgetConfig
	State  State
	Data   query.Result
	Err    error
	Width  int
	Height int
	// Resizes counts Resize calls so views can re-fit on change.
	Resizes int
}

// View is the kind-specific part of a widget.
type View interface {
	// Configure decodes the type-specific config blob.
	Configure(cfg models.WidgetConfig) error
	// Body renders the widget body. The Base wraps it in the frame.
	Body(s Snapshot) template.HTML
}

// Base implements Widget around a View. It owns the lifecycle: state,
// refresh timer, lifetime context and push subscription.
type Base struct {
	view View
	deps Deps
	log  *slog.Logger

	life   context.Context
	cancel context.CancelFunc

	// renderMu serializes container writes so none lands after Destroy
	// cleared the container.
	renderMu sync.Mutex

	mu          sync.Mutex
	container   Container
	cfg         models.WidgetConfig
	state       State
	data        query.Result
	err         error
	resizes     int
	loadSeq     uint64
	destroyed   bool
	stopRefresh chan struct{}
	unsubscribe func()
}

func NewBase(view View, deps Deps) *Base {
	life, cancel := context.WithCancel(context.Background())
	return &Base{
		view:   view,
		deps:   deps,
		log:    logger.OrDiscard(deps.Log),
		life:   life,
		cancel: cancel,
		state:  StateIdle,
	}
}

func (b *Base) Initialize(c Container, cfg models.WidgetConfig) error {
	if c == nil {
		return errs.NewValidationError("widget container is required")
	}
	cfg.Layout = cfg.Layout.Normalize()

	b.mu.Lock()
	b.container = c
	b.cfg = cfg
	b.log = b.log.With("widget_id", cfg.ID, "widget_type", cfg.Type)
	b.mu.Unlock()

	if err := b.view.Configure(cfg); err != nil {
		b.mu.Lock()
		b.state, b.err = StateError, err
		b.mu.Unlock()
		b.Render()
		return err
	}

	if cfg.HasSource() && cfg.Query.SourceType == models.SourceWebSocket {
		if p, ok := b.deps.Engine.(Pusher); ok {
			unsub := p.OnPush(*cfg.Query, b.applyPush)
			b.mu.Lock()
			b.unsubscribe = unsub
			b.mu.Unlock()
		}
	}
	return nil
}

func (b *Base) applyPush(res query.Result) {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return
	}
	b.mu.Unlock()
	b.SetData(res)
}

// Render is idempotent: it always replaces the container content.
func (b *Base) Render() {
	b.renderMu.Lock()
	defer b.renderMu.Unlock()

	b.mu.Lock()
	if b.destroyed || b.container == nil {
		b.mu.Unlock()
		return
	}
	snap := b.snapshotLocked()
	c := b.container
	b.mu.Unlock()

	c.SetContent(renderFrame(snap, b.view.Body(snap)))
}

func (b *Base) snapshotLocked() Snapshot {
	w, h := b.container.Size()
	return Snapshot{
		Config:  b.cfg,
		State:   b.state,
		Data:    b.data,
		Err:     b.err,
		Width:   w,
		Height:  h,
		Resizes: b.resizes,
	}
}

func (b *Base) SetData(res query.Result) {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return
	}
	b.state, b.data, b.err = StateSuccess, res, nil
	cfg := b.cfg
	b.mu.Unlock()
	b.Render()
	b.deps.dataApplied(cfg, res)
}

// LoadData runs the query bound to the widget's lifetime. A response that
// arrives after Destroy, or after a newer load started, is discarded.
func (b *Base) LoadData(ctx context.Context) {
	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return
	}
	cfg := b.cfg
	if !cfg.HasSource() || b.deps.Engine == nil {
		b.mu.Unlock()
		b.Render()
		return
	}
	b.loadSeq++
	seq := b.loadSeq
	b.state = StateLoading
	b.mu.Unlock()
	b.Render()

	lctx, cancel := context.WithCancel(b.life)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	res, err := b.deps.Engine.Execute(lctx, *cfg.Query, b.deps.variables())

	b.mu.Lock()
	if b.destroyed || seq != b.loadSeq {
		b.mu.Unlock()
		b.log.Debug("discarding stale widget response", "seq", seq)
		return
	}
	if err != nil {
		b.state, b.err = StateError, err
		b.mu.Unlock()
		if !errors.Is(err, context.Canceled) {
			b.log.Warn("widget load failed", "error", err)
		}
		b.Render()
		return
	}
	b.state, b.data, b.err = StateSuccess, res, nil
	cfg = b.cfg
	b.mu.Unlock()
	b.Render()
	b.deps.dataApplied(cfg, res)
}

// StartRefresh reloads on the query's refresh interval when enabled.
// Restarting replaces the previous timer.
func (b *Base) StartRefresh() {
	b.StopRefresh()

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.destroyed || !b.cfg.HasSource() {
		return
	}
	r := b.cfg.Query.Refresh
	interval := r.Interval.Std()
	if !r.Enabled || interval <= 0 {
		return
	}
	stop := make(chan struct{})
	b.stopRefresh = stop

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-b.life.Done():
				return
			case <-ticker.C:
				b.LoadData(b.life)
			}
		}
	}()
}

func (b *Base) StopRefresh() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.stopRefresh != nil {
		close(b.stopRefresh)
		b.stopRefresh = nil
	}
}

// Refreshing reports whether a refresh timer is running.
func (b *Base) Refreshing() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stopRefresh != nil
}

func (b *Base) Resize() {
	b.mu.Lock()
	b.resizes++
	b.mu.Unlock()
	b.Render()
}

func (b *Base) Destroy() {
	b.StopRefresh()

	b.mu.Lock()
	if b.destroyed {
		b.mu.Unlock()
		return
	}
	b.destroyed = true
	unsub := b.unsubscribe
	b.unsubscribe = nil
	c := b.container
	b.mu.Unlock()

	b.cancel()
	if unsub != nil {
		unsub()
	}
	if c != nil {
		b.renderMu.Lock()
		c.SetContent("")
		b.renderMu.Unlock()
	}
}

func (b *Base) Config() models.WidgetConfig {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cfg
}

// UpdateLayout records a new rect without re-rendering.
func (b *Base) UpdateLayout(r models.Rect) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cfg.Layout = r
}

func (b *Base) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Err returns the error behind StateError.
func (b *Base) Err() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.err
}

var frameTemplate = template.Must(template.New("frame").Parse(
	`<div class="widget widget-{{.Type}} state-{{.State}}" data-widget-id="{{.ID}}"{{if .Style}} style="{{.Style}}"{{end}}>` +
		`{{if .Title}}<div class="widget-header"><span class="widget-title">{{.Title}}</span></div>{{end}}` +
		`<div class="widget-body">{{.Body}}</div></div>`))

type frameData struct {
	ID    string
	Type  string
	Title string
	State State
	Style template.CSS
	Body  template.HTML
}

func renderFrame(s Snapshot, body template.HTML) string {
	var buf bytes.Buffer
	err := frameTemplate.Execute(&buf, frameData{
		ID:    s.Config.ID,
		Type:  s.Config.Type,
		Title: s.Config.Title,
		State: s.State,
		Style: styleCSS(s.Config.Style),
		Body:  body,
	})
	if err != nil {
		return template.HTMLEscapeString(err.Error())
	}
	return buf.String()
}

func styleCSS(st models.WidgetStyle) template.CSS {
	var parts []string
	add := func(prop, v string) {
		if v = strings.TrimSpace(v); v != "" && !strings.ContainsAny(v, ";{}<>\"") {
			parts = append(parts, prop+": "+v)
		}
	}
	add("background-color", st.BackgroundColor)
	add("border-radius", st.BorderRadius)
	add("box-shadow", st.Shadow)
	add("padding", st.Padding)
	add("border", st.Border)
	return template.CSS(strings.Join(parts, "; "))
}

// StatusBody renders the shared loading and error placeholders. It returns
// false when the view should render its data.
func StatusBody(s Snapshot) (template.HTML, bool) {
	switch s.State {
	case StateLoading:
		if s.Data.Kind == "" {
			return `<div class="widget-loading">Loading…</div>`, true
		}
	case StateError:
		msg := "failed to load data"
		if s.Err != nil {
			msg = s.Err.Error()
		}
		return template.HTML(`<div class="widget-error">` + template.HTMLEscapeString(msg) + `</div>`), true
	}
	return "", false
}
