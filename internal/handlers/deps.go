package handlers

import (
	"log/slog"

	"github.com/GregMSThompson/gridboard/internal/response"
)

type Deps struct {
	Log             *slog.Logger
	ResponseHandler response.ResponseHandler
	DashboardSvc    DashboardService
	SQLSvc          SQLService
	// WidgetKinds lists the registered widget type tags.
	WidgetKinds func() []string
}
