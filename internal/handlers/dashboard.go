package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/GregMSThompson/gridboard/internal/dto"
	"github.com/GregMSThompson/gridboard/internal/errs"
	"github.com/GregMSThompson/gridboard/internal/events"
	"github.com/GregMSThompson/gridboard/internal/layout"
	"github.com/GregMSThompson/gridboard/internal/models"
	"github.com/GregMSThompson/gridboard/internal/response"
)

type DashboardService interface {
	ListDashboards(ctx context.Context) []dto.DashboardSummary
	GetDashboard(ctx context.Context, id string) (dto.DashboardResponse, error)
	AddWidget(ctx context.Context, id string, req dto.AddWidgetRequest) (models.WidgetConfig, error)
	UpdateWidget(ctx context.Context, id, widgetID string, cfg models.WidgetConfig) (models.WidgetConfig, error)
	UpdateWidgetLayout(ctx context.Context, id, widgetID string, r models.Rect) (models.Rect, error)
	DeleteWidget(ctx context.Context, id, widgetID string, confirm bool) error
	GetWidgetData(ctx context.Context, id, widgetID string) (dto.WidgetDataResponse, error)
	RenderWidget(ctx context.Context, id, widgetID string) (string, error)
	RefreshDashboard(ctx context.Context, id string) error
	SaveDashboard(ctx context.Context, id string) (models.DashboardConfig, error)
	SetGlobalFilters(ctx context.Context, id string, filters map[string]any) error
	HandlePointer(ctx context.Context, id string, ev layout.PointerEvent) (layout.Transition, error)
	Observe(ctx context.Context, id string, width float64) (dto.ObserveResponse, error)
	Subscribe(id string, fn func(events.Event)) (func(), error)
}

type dashboardHandlers struct {
	ResponseHandler response.ResponseHandler
	DashboardSvc    DashboardService
	WidgetKinds     func() []string
}

func NewDashboardHandlers(deps *Deps) *dashboardHandlers {
	return &dashboardHandlers{
		ResponseHandler: deps.ResponseHandler,
		DashboardSvc:    deps.DashboardSvc,
		WidgetKinds:     deps.WidgetKinds,
	}
}

func (h *dashboardHandlers) DashboardRoutes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListDashboards)
	r.Route("/{dashboardId}", func(r chi.Router) {
		r.Get("/", h.GetDashboard)
		r.Post("/refresh", h.RefreshDashboard)
		r.Post("/save", h.SaveDashboard)
		r.Put("/filters", h.SetGlobalFilters)
		r.Post("/observe", h.Observe)
		r.Post("/pointer", h.HandlePointer)
		r.Get("/events", h.Events)
		r.Post("/widgets", h.AddWidget)
		r.Put("/widgets/{widgetId}", h.UpdateWidget)
		r.Put("/widgets/{widgetId}/layout", h.UpdateWidgetLayout)
		r.Delete("/widgets/{widgetId}", h.DeleteWidget)
		r.Get("/widgets/{widgetId}/data", h.GetWidgetData)
		r.Get("/widgets/{widgetId}/render", h.RenderWidget)
	})
	return r
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errs.NewValidationError("invalid request body: " + err.Error())
	}
	return nil
}

func (h *dashboardHandlers) ListDashboards(w http.ResponseWriter, r *http.Request) {
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, h.DashboardSvc.ListDashboards(r.Context()))
}

func (h *dashboardHandlers) GetDashboard(w http.ResponseWriter, r *http.Request) {
	dash, err := h.DashboardSvc.GetDashboard(r.Context(), chi.URLParam(r, "dashboardId"))
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, dash)
}

func (h *dashboardHandlers) RefreshDashboard(w http.ResponseWriter, r *http.Request) {
	if err := h.DashboardSvc.RefreshDashboard(r.Context(), chi.URLParam(r, "dashboardId")); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, nil)
}

func (h *dashboardHandlers) SaveDashboard(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.DashboardSvc.SaveDashboard(r.Context(), chi.URLParam(r, "dashboardId"))
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, cfg)
}

func (h *dashboardHandlers) SetGlobalFilters(w http.ResponseWriter, r *http.Request) {
	var req dto.GlobalFiltersRequest
	if err := decode(r, &req); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	if err := h.DashboardSvc.SetGlobalFilters(r.Context(), chi.URLParam(r, "dashboardId"), req.Filters); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, nil)
}

func (h *dashboardHandlers) Observe(w http.ResponseWriter, r *http.Request) {
	var req dto.ObserveRequest
	if err := decode(r, &req); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	resp, err := h.DashboardSvc.Observe(r.Context(), chi.URLParam(r, "dashboardId"), req.Width)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, resp)
}

func (h *dashboardHandlers) HandlePointer(w http.ResponseWriter, r *http.Request) {
	var ev layout.PointerEvent
	if err := decode(r, &ev); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	tr, err := h.DashboardSvc.HandlePointer(r.Context(), chi.URLParam(r, "dashboardId"), ev)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, tr)
}

func (h *dashboardHandlers) AddWidget(w http.ResponseWriter, r *http.Request) {
	var req dto.AddWidgetRequest
	if err := decode(r, &req); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	wc, err := h.DashboardSvc.AddWidget(r.Context(), chi.URLParam(r, "dashboardId"), req)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusCreated, wc)
}

func (h *dashboardHandlers) UpdateWidget(w http.ResponseWriter, r *http.Request) {
	var cfg models.WidgetConfig
	if err := decode(r, &cfg); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	wc, err := h.DashboardSvc.UpdateWidget(r.Context(), chi.URLParam(r, "dashboardId"), chi.URLParam(r, "widgetId"), cfg)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, wc)
}

func (h *dashboardHandlers) UpdateWidgetLayout(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateLayoutRequest
	if err := decode(r, &req); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	rect, err := h.DashboardSvc.UpdateWidgetLayout(r.Context(), chi.URLParam(r, "dashboardId"), chi.URLParam(r, "widgetId"), req.Layout)
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, rect)
}

// DeleteWidget needs ?confirm=true; removal is irreversible.
func (h *dashboardHandlers) DeleteWidget(w http.ResponseWriter, r *http.Request) {
	confirm, _ := strconv.ParseBool(r.URL.Query().Get("confirm"))
	if err := h.DashboardSvc.DeleteWidget(r.Context(), chi.URLParam(r, "dashboardId"), chi.URLParam(r, "widgetId"), confirm); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, nil)
}

func (h *dashboardHandlers) GetWidgetData(w http.ResponseWriter, r *http.Request) {
	data, err := h.DashboardSvc.GetWidgetData(r.Context(), chi.URLParam(r, "dashboardId"), chi.URLParam(r, "widgetId"))
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, data)
}

func (h *dashboardHandlers) RenderWidget(w http.ResponseWriter, r *http.Request) {
	markup, err := h.DashboardSvc.RenderWidget(r.Context(), chi.URLParam(r, "dashboardId"), chi.URLParam(r, "widgetId"))
	if err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}
	h.ResponseHandler.WriteHTML(w, r, http.StatusOK, markup)
}

// GetWidgetTypes returns the registered widget type tags.
func (h *dashboardHandlers) GetWidgetTypes(w http.ResponseWriter, r *http.Request) {
	kinds := []string{}
	if h.WidgetKinds != nil {
		kinds = h.WidgetKinds()
	}
	h.ResponseHandler.WriteSuccess(w, r, http.StatusOK, kinds)
}
