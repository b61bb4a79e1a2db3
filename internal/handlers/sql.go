package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/GregMSThompson/gridboard/internal/dto"
	"github.com/GregMSThompson/gridboard/internal/errs"
	"github.com/GregMSThompson/gridboard/internal/models"
	"github.com/GregMSThompson/gridboard/internal/response"
	"github.com/GregMSThompson/gridboard/pkg/logger"
)

type SQLService interface {
	Execute(ctx context.Context, req dto.SQLRequest) ([]models.Record, error)
}

type sqlHandlers struct {
	ResponseHandler response.ResponseHandler
	SQLSvc          SQLService
}

func NewSQLHandlers(deps *Deps) *sqlHandlers {
	return &sqlHandlers{ResponseHandler: deps.ResponseHandler, SQLSvc: deps.SQLSvc}
}

func (h *sqlHandlers) SQLRoutes() chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.Execute)
	return r
}

// Execute serves the sql source contract. Failures are reported in the body
// as {success:false, error} so the source can surface the backend message;
// only a malformed body is an HTTP error.
func (h *sqlHandlers) Execute(w http.ResponseWriter, r *http.Request) {
	var req dto.SQLRequest
	if err := decode(r, &req); err != nil {
		h.ResponseHandler.HandleError(w, r, err)
		return
	}

	rows, err := h.SQLSvc.Execute(r.Context(), req)
	if err != nil {
		status, _ := errs.HTTPStatus(err)
		logger.FromContext(r.Context()).Warn("sql query failed", "status", status, "error", err)
		writeJSON(w, r, http.StatusOK, dto.SQLResponse{Success: false, Data: []models.Record{}, Error: publicMessage(err)})
		return
	}
	writeJSON(w, r, http.StatusOK, dto.SQLResponse{Success: true, Data: rows})
}

// publicMessage keeps driver details out of the response body.
func publicMessage(err error) string {
	var db *errs.DatabaseError
	if errors.As(err, &db) {
		return db.Message
	}
	return err.Error()
}
