package dto

import (
	"github.com/GregMSThompson/gridboard/internal/layout"
	"github.com/GregMSThompson/gridboard/internal/models"
	"github.com/GregMSThompson/gridboard/internal/query"
)

type DashboardSummary struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Widgets     int    `json:"widgets"`
}

type DashboardResponse struct {
	Dashboard        models.DashboardConfig `json:"dashboard"`
	EffectiveColumns int                    `json:"effectiveColumns"`
	Overlaps         []layout.Overlap       `json:"overlaps,omitempty"`
}

type AddWidgetRequest struct {
	Widget models.WidgetConfig `json:"widget"`
	// AutoPlace keeps the requested span but lets the grid choose the origin.
	AutoPlace bool `json:"autoPlace,omitempty"`
}

type UpdateLayoutRequest struct {
	Layout models.Rect `json:"layout"`
}

type ObserveRequest struct {
	Width float64 `json:"width"`
}

type ObserveResponse struct {
	EffectiveColumns int  `json:"effectiveColumns"`
	Changed          bool `json:"changed"`
}

type GlobalFiltersRequest struct {
	Filters map[string]any `json:"filters"`
}

type WidgetDataResponse struct {
	WidgetID string       `json:"widgetId"`
	Result   query.Result `json:"result"`
}
