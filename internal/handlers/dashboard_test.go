package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/GregMSThompson/gridboard/internal/dto"
	"github.com/GregMSThompson/gridboard/internal/errs"
	"github.com/GregMSThompson/gridboard/internal/layout"
	"github.com/GregMSThompson/gridboard/internal/models"
	"github.com/GregMSThompson/gridboard/internal/query"
)

func newTestHandlers(svc *stubDashboardService, resp *stubResponseHandler) *dashboardHandlers {
	return NewDashboardHandlers(&Deps{
		ResponseHandler: resp,
		DashboardSvc:    svc,
		WidgetKinds:     func() []string { return []string{"chart", "counter"} },
	})
}

func TestListDashboards_OK(t *testing.T) {
	resp := &stubResponseHandler{}
	h := newTestHandlers(&stubDashboardService{}, resp)

	rr := httptest.NewRecorder()
	h.ListDashboards(rr, httptest.NewRequest(http.MethodGet, "/dashboards", nil))

	if !resp.writeSuccessCalled || resp.writeSuccessStatus != http.StatusOK {
		t.Fatalf("expected WriteSuccess 200")
	}
	list, ok := resp.writeSuccessData.([]dto.DashboardSummary)
	if !ok || len(list) != 1 || list[0].ID != "ops" {
		t.Fatalf("unexpected data: %#v", resp.writeSuccessData)
	}
}

func TestGetDashboard_OK(t *testing.T) {
	svc := &stubDashboardService{}
	resp := &stubResponseHandler{}
	h := newTestHandlers(svc, resp)

	req := withChiParam(httptest.NewRequest(http.MethodGet, "/dashboards/ops", nil), "dashboardId", "ops")
	rr := httptest.NewRecorder()
	h.GetDashboard(rr, req)

	if svc.lastDashboardID != "ops" {
		t.Fatalf("expected dashboardId=ops, got %q", svc.lastDashboardID)
	}
	if !resp.writeSuccessCalled {
		t.Fatalf("expected WriteSuccess to be called")
	}
}

func TestGetDashboard_NotFound(t *testing.T) {
	svc := &stubDashboardService{getErr: errs.NewNotFoundError("dashboard not found")}
	resp := &stubResponseHandler{}
	h := newTestHandlers(svc, resp)

	req := withChiParam(httptest.NewRequest(http.MethodGet, "/dashboards/nope", nil), "dashboardId", "nope")
	rr := httptest.NewRecorder()
	h.GetDashboard(rr, req)

	if !resp.handleErrorCalled {
		t.Fatalf("expected HandleError to be called")
	}
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestAddWidget_OK(t *testing.T) {
	svc := &stubDashboardService{}
	resp := &stubResponseHandler{}
	h := newTestHandlers(svc, resp)

	body := `{"widget":{"type":"counter","title":"Orders"},"autoPlace":true}`
	req := withChiParam(httptest.NewRequest(http.MethodPost, "/dashboards/ops/widgets", strings.NewReader(body)), "dashboardId", "ops")
	rr := httptest.NewRecorder()
	h.AddWidget(rr, req)

	if !resp.writeSuccessCalled || resp.writeSuccessStatus != http.StatusCreated {
		t.Fatalf("expected WriteSuccess 201, got called=%v status=%d", resp.writeSuccessCalled, resp.writeSuccessStatus)
	}
	if svc.addReq.Widget.Type != "counter" || !svc.addReq.AutoPlace {
		t.Fatalf("service received wrong request: %#v", svc.addReq)
	}
}

func TestAddWidget_InvalidJSON(t *testing.T) {
	svc := &stubDashboardService{}
	resp := &stubResponseHandler{}
	h := newTestHandlers(svc, resp)

	req := withChiParam(httptest.NewRequest(http.MethodPost, "/dashboards/ops/widgets", strings.NewReader("not-json")), "dashboardId", "ops")
	rr := httptest.NewRecorder()
	h.AddWidget(rr, req)

	if svc.lastDashboardID != "" {
		t.Fatalf("AddWidget should not reach the service when JSON invalid")
	}
	if !resp.handleErrorCalled || rr.Code != http.StatusBadRequest {
		t.Fatalf("expected HandleError with 400, got called=%v status=%d", resp.handleErrorCalled, rr.Code)
	}
}

func TestAddWidget_ServiceError(t *testing.T) {
	svc := &stubDashboardService{addErr: errs.NewAlreadyExistsError("widget already exists")}
	resp := &stubResponseHandler{}
	h := newTestHandlers(svc, resp)

	body := `{"widget":{"id":"a","type":"counter"}}`
	req := withChiParam(httptest.NewRequest(http.MethodPost, "/dashboards/ops/widgets", strings.NewReader(body)), "dashboardId", "ops")
	rr := httptest.NewRecorder()
	h.AddWidget(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}

func TestUpdateWidget_OK(t *testing.T) {
	svc := &stubDashboardService{}
	resp := &stubResponseHandler{}
	h := newTestHandlers(svc, resp)

	body := `{"type":"chart","title":"Revenue"}`
	req := httptest.NewRequest(http.MethodPut, "/dashboards/ops/widgets/w1", strings.NewReader(body))
	req = withChiParam(req, "dashboardId", "ops", "widgetId", "w1")
	rr := httptest.NewRecorder()
	h.UpdateWidget(rr, req)

	if !resp.writeSuccessCalled || resp.writeSuccessStatus != http.StatusOK {
		t.Fatalf("expected WriteSuccess 200")
	}
	if svc.lastWidgetID != "w1" || svc.lastConfig.Title != "Revenue" {
		t.Errorf("service received widgetId=%q title=%q", svc.lastWidgetID, svc.lastConfig.Title)
	}
}

func TestUpdateWidget_NotFound(t *testing.T) {
	resp := &stubResponseHandler{}
	h := newTestHandlers(&stubDashboardService{}, resp)

	req := httptest.NewRequest(http.MethodPut, "/dashboards/ops/widgets/missing", strings.NewReader(`{"type":"chart"}`))
	req = withChiParam(req, "dashboardId", "ops", "widgetId", "missing")
	rr := httptest.NewRecorder()
	h.UpdateWidget(rr, req)

	if !resp.handleErrorCalled || rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 via HandleError, got %d", rr.Code)
	}
}

func TestUpdateWidgetLayout_OK(t *testing.T) {
	svc := &stubDashboardService{}
	resp := &stubResponseHandler{}
	h := newTestHandlers(svc, resp)

	body := `{"layout":{"x":2,"y":1,"w":3,"h":2}}`
	req := httptest.NewRequest(http.MethodPut, "/dashboards/ops/widgets/w1/layout", strings.NewReader(body))
	req = withChiParam(req, "dashboardId", "ops", "widgetId", "w1")
	rr := httptest.NewRecorder()
	h.UpdateWidgetLayout(rr, req)

	want := models.Rect{X: 2, Y: 1, W: 3, H: 2}
	if svc.lastRect != want {
		t.Fatalf("expected rect %+v, got %+v", want, svc.lastRect)
	}
}

func TestDeleteWidget_PassesConfirmation(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  bool
	}{
		{"confirmed", "?confirm=true", true},
		{"missing", "", false},
		{"garbage", "?confirm=maybe", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &stubDashboardService{}
			resp := &stubResponseHandler{}
			h := newTestHandlers(svc, resp)

			req := httptest.NewRequest(http.MethodDelete, "/dashboards/ops/widgets/w1"+tc.query, nil)
			req = withChiParam(req, "dashboardId", "ops", "widgetId", "w1")
			rr := httptest.NewRecorder()
			h.DeleteWidget(rr, req)

			if svc.lastConfirm != tc.want {
				t.Fatalf("expected confirm=%v, got %v", tc.want, svc.lastConfirm)
			}
		})
	}
}

func TestDeleteWidget_Unconfirmed(t *testing.T) {
	svc := &stubDashboardService{deleteErr: errs.NewValidationError("widget removal was not confirmed")}
	resp := &stubResponseHandler{}
	h := newTestHandlers(svc, resp)

	req := httptest.NewRequest(http.MethodDelete, "/dashboards/ops/widgets/w1", nil)
	req = withChiParam(req, "dashboardId", "ops", "widgetId", "w1")
	rr := httptest.NewRecorder()
	h.DeleteWidget(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if resp.writeSuccessCalled {
		t.Fatalf("WriteSuccess should not be called")
	}
}

func TestGetWidgetData_OK(t *testing.T) {
	svc := &stubDashboardService{data: dto.WidgetDataResponse{
		WidgetID: "w1",
		Result:   query.Result{Kind: query.KindObject, Object: models.Record{"value": 42.0}},
	}}
	resp := &stubResponseHandler{}
	h := newTestHandlers(svc, resp)

	req := httptest.NewRequest(http.MethodGet, "/dashboards/ops/widgets/w1/data", nil)
	req = withChiParam(req, "dashboardId", "ops", "widgetId", "w1")
	rr := httptest.NewRecorder()
	h.GetWidgetData(rr, req)

	data, ok := resp.writeSuccessData.(dto.WidgetDataResponse)
	if !ok || data.WidgetID != "w1" || data.Result.Kind != query.KindObject {
		t.Fatalf("unexpected data: %#v", resp.writeSuccessData)
	}
}

func TestRenderWidget_WritesHTML(t *testing.T) {
	svc := &stubDashboardService{markup: `<div class="counter">42</div>`}
	resp := &stubResponseHandler{}
	h := newTestHandlers(svc, resp)

	req := httptest.NewRequest(http.MethodGet, "/dashboards/ops/widgets/w1/render", nil)
	req = withChiParam(req, "dashboardId", "ops", "widgetId", "w1")
	rr := httptest.NewRecorder()
	h.RenderWidget(rr, req)

	if !resp.writeHTMLCalled || resp.writeHTMLMarkup != svc.markup {
		t.Fatalf("expected WriteHTML with the widget markup, got %q", resp.writeHTMLMarkup)
	}
}

func TestObserve_OK(t *testing.T) {
	svc := &stubDashboardService{}
	resp := &stubResponseHandler{}
	h := newTestHandlers(svc, resp)

	req := withChiParam(httptest.NewRequest(http.MethodPost, "/dashboards/ops/observe", strings.NewReader(`{"width":700}`)), "dashboardId", "ops")
	rr := httptest.NewRecorder()
	h.Observe(rr, req)

	if svc.lastWidth != 700 {
		t.Fatalf("expected width 700, got %v", svc.lastWidth)
	}
	out, ok := resp.writeSuccessData.(dto.ObserveResponse)
	if !ok || out.EffectiveColumns != 6 || !out.Changed {
		t.Fatalf("unexpected data: %#v", resp.writeSuccessData)
	}
}

func TestHandlePointer_OK(t *testing.T) {
	svc := &stubDashboardService{}
	resp := &stubResponseHandler{}
	h := newTestHandlers(svc, resp)

	body := `{"kind":"down","pointerId":1,"widgetId":"w1","handle":"resize","x":10,"y":20}`
	req := withChiParam(httptest.NewRequest(http.MethodPost, "/dashboards/ops/pointer", strings.NewReader(body)), "dashboardId", "ops")
	rr := httptest.NewRecorder()
	h.HandlePointer(rr, req)

	want := layout.PointerEvent{Kind: layout.PointerDown, PointerID: 1, WidgetID: "w1", Handle: layout.HandleResize, X: 10, Y: 20}
	if svc.lastPointer != want {
		t.Fatalf("expected %+v, got %+v", want, svc.lastPointer)
	}
}

func TestSetGlobalFilters_OK(t *testing.T) {
	svc := &stubDashboardService{}
	resp := &stubResponseHandler{}
	h := newTestHandlers(svc, resp)

	req := withChiParam(httptest.NewRequest(http.MethodPut, "/dashboards/ops/filters", strings.NewReader(`{"filters":{"region":"EU"}}`)), "dashboardId", "ops")
	rr := httptest.NewRecorder()
	h.SetGlobalFilters(rr, req)

	if svc.lastFilters["region"] != "EU" {
		t.Fatalf("expected region filter, got %v", svc.lastFilters)
	}
}

func TestRefreshAndSave_OK(t *testing.T) {
	svc := &stubDashboardService{}
	resp := &stubResponseHandler{}
	h := newTestHandlers(svc, resp)

	req := withChiParam(httptest.NewRequest(http.MethodPost, "/dashboards/ops/refresh", nil), "dashboardId", "ops")
	h.RefreshDashboard(httptest.NewRecorder(), req)
	req = withChiParam(httptest.NewRequest(http.MethodPost, "/dashboards/ops/save", nil), "dashboardId", "ops")
	h.SaveDashboard(httptest.NewRecorder(), req)

	if !svc.refreshCalled || !svc.saveCalled {
		t.Fatalf("expected refresh and save, got refresh=%v save=%v", svc.refreshCalled, svc.saveCalled)
	}
}

func TestGetWidgetTypes_OK(t *testing.T) {
	resp := &stubResponseHandler{}
	h := newTestHandlers(&stubDashboardService{}, resp)

	rr := httptest.NewRecorder()
	h.GetWidgetTypes(rr, httptest.NewRequest(http.MethodGet, "/widget-types", nil))

	kinds, ok := resp.writeSuccessData.([]string)
	if !ok || len(kinds) != 2 || kinds[0] != "chart" {
		t.Fatalf("unexpected data: %#v", resp.writeSuccessData)
	}
}
