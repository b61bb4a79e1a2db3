package widget

import (
	"context"
	"errors"
	"html/template"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GregMSThompson/gridboard/internal/errs"
	"github.com/GregMSThompson/gridboard/internal/models"
	"github.com/GregMSThompson/gridboard/internal/query"
	"github.com/GregMSThompson/gridboard/pkg/helpers"
)

type textView struct {
	configErr error
}

func (v textView) Configure(models.WidgetConfig) error { return v.configErr }

func (textView) Body(s Snapshot) template.HTML {
	if body, ok := StatusBody(s); ok {
		return body
	}
	var parts []string
	for _, r := range s.Data.Records() {
		parts = append(parts, template.HTMLEscapeString(toText(r["v"])))
	}
	return template.HTML("<p>" + strings.Join(parts, ",") + "</p>")
}

func toText(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// stubExecutor answers every Execute with result/err, optionally blocking
// until release is closed.
type stubExecutor struct {
	mu       sync.Mutex
	result   query.Result
	err      error
	release  chan struct{}
	calls    atomic.Int32
	lastVars map[string]any
	lastCtx  context.Context
}

func (s *stubExecutor) Execute(ctx context.Context, _ models.QueryConfig, vars map[string]any) (query.Result, error) {
	s.calls.Add(1)
	s.mu.Lock()
	s.lastVars = vars
	s.lastCtx = ctx
	release := s.release
	s.mu.Unlock()
	if release != nil {
		<-release
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result, s.err
}

func sourced(id string) models.WidgetConfig {
	return models.WidgetConfig{
		ID:    id,
		Type:  "text",
		Title: "Text",
		Query: &models.QueryConfig{SourceType: models.SourceStatic},
	}
}

func TestRegistry_UnknownTypeReturnsStub(t *testing.T) {
	r := NewRegistry(nil)

	w := r.Create(models.WidgetConfig{ID: "w1", Type: "sparkline"}, Deps{})
	require.NotNil(t, w)
	_, isStub := w.(*Stub)
	assert.True(t, isStub)

	c := NewMemoryContainer(100, 100)
	require.NoError(t, w.Initialize(c, models.WidgetConfig{ID: "w1", Type: "sparkline"}))
	w.LoadData(helpers.TestCtx())
	assert.Contains(t, c.Content(), "Unknown widget type: sparkline")
}

func TestRegistry_RegisterLookupReset(t *testing.T) {
	r := NewRegistry(nil)
	ctor := func(d Deps) Widget { return NewBase(textView{}, d) }

	require.NoError(t, r.Register("text", ctor))
	require.NoError(t, r.Register("alpha", ctor))
	assert.Equal(t, []string{"alpha", "text"}, r.Kinds())

	_, ok := r.Lookup("text")
	assert.True(t, ok)
	_, isStub := r.Create(models.WidgetConfig{Type: "text"}, Deps{}).(*Stub)
	assert.False(t, isStub)

	r.Reset()
	assert.Empty(t, r.Kinds())
}

func TestRegistry_RegisterValidates(t *testing.T) {
	r := NewRegistry(nil)

	var valErr *errs.ValidationError
	assert.True(t, errors.As(r.Register(" ", func(Deps) Widget { return nil }), &valErr))
	assert.True(t, errors.As(r.Register("x", nil), &valErr))
}

func TestDefault_IsShared(t *testing.T) {
	assert.Same(t, Default(), Default())
}

func TestBase_LoadDataSuccess(t *testing.T) {
	exec := &stubExecutor{result: query.Result{Kind: query.KindRecords, Data: []models.Record{{"v": "hello"}}}}
	w := NewBase(textView{}, Deps{Engine: exec, Variables: func() map[string]any { return map[string]any{"region": "E"} }})
	c := NewMemoryContainer(200, 100)
	require.NoError(t, w.Initialize(c, sourced("w1")))
	assert.Equal(t, StateIdle, w.State())

	w.LoadData(helpers.TestCtx())

	assert.Equal(t, StateSuccess, w.State())
	assert.Contains(t, c.Content(), "<p>hello</p>")
	assert.Contains(t, c.Content(), `data-widget-id="w1"`)
	assert.Equal(t, "E", exec.lastVars["region"])
}

func TestBase_LoadDataErrorBecomesState(t *testing.T) {
	exec := &stubExecutor{err: errs.NewTransientIOError("api", 503, nil)}
	w := NewBase(textView{}, Deps{Engine: exec})
	c := NewMemoryContainer(200, 100)
	require.NoError(t, w.Initialize(c, sourced("w1")))

	w.LoadData(helpers.TestCtx())

	assert.Equal(t, StateError, w.State())
	assert.Contains(t, c.Content(), "status 503")
	assert.Contains(t, c.Content(), "state-error")
}

func TestBase_NoSourceRendersDefaults(t *testing.T) {
	exec := &stubExecutor{}
	w := NewBase(textView{}, Deps{Engine: exec})
	c := NewMemoryContainer(200, 100)
	require.NoError(t, w.Initialize(c, models.WidgetConfig{ID: "w1", Type: "text"}))

	w.LoadData(helpers.TestCtx())

	assert.Equal(t, int32(0), exec.calls.Load())
	assert.Equal(t, StateIdle, w.State())
	assert.Contains(t, c.Content(), "widget-body")
}

func TestBase_RenderReplaces(t *testing.T) {
	w := NewBase(textView{}, Deps{})
	c := NewMemoryContainer(200, 100)
	require.NoError(t, w.Initialize(c, sourced("w1")))

	w.SetData(query.Result{Kind: query.KindRecords, Data: []models.Record{{"v": "a"}}})
	first := c.Content()
	w.Render()
	w.Render()

	assert.Equal(t, first, c.Content())
	assert.Equal(t, 1, strings.Count(c.Content(), "widget-body"))
}

func TestBase_DestroyDiscardsLateResponse(t *testing.T) {
	exec := &stubExecutor{
		result:  query.Result{Kind: query.KindRecords, Data: []models.Record{{"v": "late"}}},
		release: make(chan struct{}),
	}
	w := NewBase(textView{}, Deps{Engine: exec})
	c := NewMemoryContainer(200, 100)
	require.NoError(t, w.Initialize(c, sourced("w1")))

	done := make(chan struct{})
	go func() {
		w.LoadData(helpers.TestCtx())
		close(done)
	}()
	require.Eventually(t, func() bool { return exec.calls.Load() == 1 }, time.Second, time.Millisecond)

	w.Destroy()
	exec.mu.Lock()
	ctx := exec.lastCtx
	exec.mu.Unlock()
	assert.ErrorIs(t, ctx.Err(), context.Canceled, "destroy cancels in-flight loads")

	close(exec.release)
	<-done

	assert.Empty(t, c.Content())
	assert.NotEqual(t, StateSuccess, w.State())
}

func TestBase_CallerContextCancelsLoad(t *testing.T) {
	exec := &stubExecutor{release: make(chan struct{})}
	w := NewBase(textView{}, Deps{Engine: exec})
	require.NoError(t, w.Initialize(NewMemoryContainer(1, 1), sourced("w1")))

	ctx, cancel := context.WithCancel(helpers.TestCtx())
	go w.LoadData(ctx)
	require.Eventually(t, func() bool { return exec.calls.Load() == 1 }, time.Second, time.Millisecond)

	cancel()
	exec.mu.Lock()
	inner := exec.lastCtx
	exec.mu.Unlock()
	require.Eventually(t, func() bool { return inner.Err() != nil }, time.Second, time.Millisecond)
	close(exec.release)
}

func TestBase_RefreshTimer(t *testing.T) {
	exec := &stubExecutor{result: query.Result{Kind: query.KindRecords}}
	w := NewBase(textView{}, Deps{Engine: exec})
	cfg := sourced("w1")
	cfg.Query.Refresh = models.RefreshConfig{Enabled: true, Interval: models.Duration(5 * time.Millisecond)}
	require.NoError(t, w.Initialize(NewMemoryContainer(1, 1), cfg))

	w.StartRefresh()
	w.StartRefresh()
	require.True(t, w.Refreshing())
	require.Eventually(t, func() bool { return exec.calls.Load() >= 2 }, time.Second, time.Millisecond)

	w.StopRefresh()
	assert.False(t, w.Refreshing())

	w.StartRefresh()
	w.Destroy()
	assert.False(t, w.Refreshing(), "destroy clears the timer")
}

func TestBase_RefreshDisabled(t *testing.T) {
	w := NewBase(textView{}, Deps{Engine: &stubExecutor{}})
	cfg := sourced("w1")
	cfg.Query.Refresh = models.RefreshConfig{Enabled: false, Interval: models.Duration(time.Second)}
	require.NoError(t, w.Initialize(NewMemoryContainer(1, 1), cfg))

	w.StartRefresh()
	assert.False(t, w.Refreshing())
}

func TestBase_ConfigureErrorRendersError(t *testing.T) {
	w := NewBase(textView{configErr: errs.NewConfigurationError("config.decimals", "bad decimals")}, Deps{})
	c := NewMemoryContainer(1, 1)

	err := w.Initialize(c, sourced("w1"))
	require.Error(t, err)
	assert.Equal(t, StateError, w.State())
	assert.Contains(t, c.Content(), "bad decimals")
}

func TestBase_StyleAndEscaping(t *testing.T) {
	w := NewBase(textView{}, Deps{})
	c := NewMemoryContainer(1, 1)
	cfg := sourced("w1")
	cfg.Title = "<b>Sales</b>"
	cfg.Style = models.WidgetStyle{BackgroundColor: "#fff", Padding: "8px", Border: "red; x: y"}
	require.NoError(t, w.Initialize(c, cfg))

	w.Render()

	assert.Contains(t, c.Content(), "&lt;b&gt;Sales&lt;/b&gt;")
	assert.Contains(t, c.Content(), "background-color: #fff; padding: 8px")
	assert.NotContains(t, c.Content(), "x: y")
}

type stubPusher struct {
	stubExecutor
	fn    func(query.Result)
	unsub atomic.Bool
}

func (p *stubPusher) OnPush(_ models.QueryConfig, fn func(query.Result)) func() {
	p.fn = fn
	return func() { p.unsub.Store(true) }
}

func TestBase_WebSocketPush(t *testing.T) {
	p := &stubPusher{}
	w := NewBase(textView{}, Deps{Engine: p})
	c := NewMemoryContainer(1, 1)
	cfg := sourced("w1")
	cfg.Query.SourceType = models.SourceWebSocket
	require.NoError(t, w.Initialize(c, cfg))
	require.NotNil(t, p.fn)

	p.fn(query.Result{Kind: query.KindRecords, Data: []models.Record{{"v": "pushed"}}})
	assert.Contains(t, c.Content(), "pushed")

	w.Destroy()
	assert.True(t, p.unsub.Load())
	p.fn(query.Result{Kind: query.KindRecords, Data: []models.Record{{"v": "after"}}})
	assert.Empty(t, c.Content())
}

func TestStub_RefreshNeverQueries(t *testing.T) {
	exec := &stubExecutor{}
	w := NewStub(Deps{Engine: exec})
	cfg := sourced("w1")
	cfg.Type = "sparkline"
	cfg.Query.Refresh = models.RefreshConfig{Enabled: true, Interval: models.Duration(time.Millisecond)}
	require.NoError(t, w.Initialize(NewMemoryContainer(1, 1), cfg))

	w.StartRefresh()
	defer w.Destroy()
	assert.False(t, w.Refreshing())
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), exec.calls.Load())
}

// gatedView holds its first Body call until release is closed.
type gatedView struct {
	once    sync.Once
	entered chan struct{}
	release chan struct{}
}

func (*gatedView) Configure(models.WidgetConfig) error { return nil }

func (v *gatedView) Body(Snapshot) template.HTML {
	v.once.Do(func() {
		close(v.entered)
		<-v.release
	})
	return "<p>body</p>"
}

func TestBase_DestroyWaitsForInFlightRender(t *testing.T) {
	view := &gatedView{entered: make(chan struct{}), release: make(chan struct{})}
	w := NewBase(view, Deps{})
	c := NewMemoryContainer(1, 1)
	require.NoError(t, w.Initialize(c, sourced("w1")))

	rendered := make(chan struct{})
	go func() {
		w.Render()
		close(rendered)
	}()
	<-view.entered

	destroyed := make(chan struct{})
	go func() {
		w.Destroy()
		close(destroyed)
	}()
	require.Eventually(t, func() bool {
		w.mu.Lock()
		defer w.mu.Unlock()
		return w.destroyed
	}, time.Second, time.Millisecond)

	close(view.release)
	<-rendered
	<-destroyed

	assert.Empty(t, c.Content(), "a render in flight must not write after destroy")
	w.Render()
	assert.Empty(t, c.Content())
}

func TestBase_OnDataAfterLoadAndPush(t *testing.T) {
	p := &stubPusher{stubExecutor: stubExecutor{result: query.Result{Kind: query.KindRecords, Data: []models.Record{{"v": "loaded"}}}}}
	var mu sync.Mutex
	var got []string
	w := NewBase(textView{}, Deps{Engine: p, OnData: func(cfg models.WidgetConfig, res query.Result) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, cfg.ID+":"+toText(res.Records()[0]["v"]))
	}})
	cfg := sourced("w1")
	cfg.Query.SourceType = models.SourceWebSocket
	require.NoError(t, w.Initialize(NewMemoryContainer(1, 1), cfg))

	w.LoadData(helpers.TestCtx())
	p.fn(query.Result{Kind: query.KindRecords, Data: []models.Record{{"v": "pushed"}}})

	p.stubExecutor.mu.Lock()
	p.stubExecutor.err = errs.NewTransientIOError("api", 503, nil)
	p.stubExecutor.mu.Unlock()
	w.LoadData(helpers.TestCtx())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"w1:loaded", "w1:pushed"}, got, "failed loads publish nothing")
}
