package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/GregMSThompson/gridboard/internal/dto"
	"github.com/GregMSThompson/gridboard/internal/errs"
	"github.com/GregMSThompson/gridboard/internal/events"
	"github.com/GregMSThompson/gridboard/internal/layout"
	"github.com/GregMSThompson/gridboard/internal/models"
)

type stubResponseHandler struct {
	writeSuccessCalled bool
	writeSuccessStatus int
	writeSuccessData   any

	writeHTMLCalled bool
	writeHTMLMarkup string

	handleErrorCalled bool
	handleError       error

	writeErrorCalled bool
	writeErrorStatus int
}

func (s *stubResponseHandler) WriteSuccess(w http.ResponseWriter, _ *http.Request, status int, data any) {
	s.writeSuccessCalled = true
	s.writeSuccessStatus = status
	s.writeSuccessData = data

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write([]byte(`{"success":true}`))
}

func (s *stubResponseHandler) WriteHTML(w http.ResponseWriter, _ *http.Request, status int, markup string) {
	s.writeHTMLCalled = true
	s.writeHTMLMarkup = markup
	w.WriteHeader(status)
	w.Write([]byte(markup))
}

func (s *stubResponseHandler) WriteError(w http.ResponseWriter, _ *http.Request, status int, _, _ string) {
	s.writeErrorCalled = true
	s.writeErrorStatus = status
	w.WriteHeader(status)
}

func (s *stubResponseHandler) HandleError(w http.ResponseWriter, _ *http.Request, err error) {
	s.handleErrorCalled = true
	s.handleError = err
	status, _ := errs.HTTPStatus(err)
	w.WriteHeader(status)
}

type stubDashboardService struct {
	getErr error

	addReq dto.AddWidgetRequest
	addErr error

	lastDashboardID string
	lastWidgetID    string
	lastConfig      models.WidgetConfig
	lastRect        models.Rect
	lastConfirm     bool
	deleteErr       error

	lastPointer layout.PointerEvent
	lastWidth   float64
	lastFilters map[string]any

	data   dto.WidgetDataResponse
	markup string

	refreshCalled bool
	saveCalled    bool

	// subscribed receives each Subscribe callback; buffer it in tests
	// that stream.
	subscribed  chan func(events.Event)
	unsubCalled chan struct{}
}

func (s *stubDashboardService) ListDashboards(context.Context) []dto.DashboardSummary {
	return []dto.DashboardSummary{{ID: "ops", Name: "Ops", Widgets: 2}}
}

func (s *stubDashboardService) GetDashboard(_ context.Context, id string) (dto.DashboardResponse, error) {
	s.lastDashboardID = id
	if s.getErr != nil {
		return dto.DashboardResponse{}, s.getErr
	}
	return dto.DashboardResponse{Dashboard: models.DashboardConfig{ID: id}, EffectiveColumns: 12}, nil
}

func (s *stubDashboardService) AddWidget(_ context.Context, id string, req dto.AddWidgetRequest) (models.WidgetConfig, error) {
	s.lastDashboardID = id
	s.addReq = req
	if s.addErr != nil {
		return models.WidgetConfig{}, s.addErr
	}
	wc := req.Widget
	wc.ID = "new-id"
	return wc, nil
}

func (s *stubDashboardService) UpdateWidget(_ context.Context, id, widgetID string, cfg models.WidgetConfig) (models.WidgetConfig, error) {
	s.lastDashboardID, s.lastWidgetID, s.lastConfig = id, widgetID, cfg
	if widgetID == "missing" {
		return models.WidgetConfig{}, errs.NewNotFoundError("widget not found")
	}
	return cfg, nil
}

func (s *stubDashboardService) UpdateWidgetLayout(_ context.Context, id, widgetID string, r models.Rect) (models.Rect, error) {
	s.lastDashboardID, s.lastWidgetID, s.lastRect = id, widgetID, r
	return r, nil
}

func (s *stubDashboardService) DeleteWidget(_ context.Context, id, widgetID string, confirm bool) error {
	s.lastDashboardID, s.lastWidgetID, s.lastConfirm = id, widgetID, confirm
	return s.deleteErr
}

func (s *stubDashboardService) GetWidgetData(_ context.Context, id, widgetID string) (dto.WidgetDataResponse, error) {
	s.lastDashboardID, s.lastWidgetID = id, widgetID
	return s.data, nil
}

func (s *stubDashboardService) RenderWidget(_ context.Context, _, widgetID string) (string, error) {
	s.lastWidgetID = widgetID
	return s.markup, nil
}

func (s *stubDashboardService) RefreshDashboard(context.Context, string) error {
	s.refreshCalled = true
	return nil
}

func (s *stubDashboardService) SaveDashboard(_ context.Context, id string) (models.DashboardConfig, error) {
	s.saveCalled = true
	return models.DashboardConfig{ID: id}, nil
}

func (s *stubDashboardService) SetGlobalFilters(_ context.Context, _ string, filters map[string]any) error {
	s.lastFilters = filters
	return nil
}

func (s *stubDashboardService) HandlePointer(_ context.Context, _ string, ev layout.PointerEvent) (layout.Transition, error) {
	s.lastPointer = ev
	return layout.Transition{Kind: layout.TransitionStarted, WidgetID: ev.WidgetID}, nil
}

func (s *stubDashboardService) Observe(_ context.Context, _ string, width float64) (dto.ObserveResponse, error) {
	s.lastWidth = width
	return dto.ObserveResponse{EffectiveColumns: 6, Changed: true}, nil
}

func (s *stubDashboardService) Subscribe(_ string, fn func(events.Event)) (func(), error) {
	if s.subscribed != nil {
		s.subscribed <- fn
	}
	return func() {
		if s.unsubCalled != nil {
			close(s.unsubCalled)
		}
	}, nil
}

// withChiParam injects chi URL parameters, given as key/value pairs, into the request context.
func withChiParam(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	ctx := context.WithValue(r.Context(), chi.RouteCtxKey, rctx)
	return r.WithContext(ctx)
}
