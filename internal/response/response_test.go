package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/GregMSThompson/gridboard/internal/errs"
	"github.com/GregMSThompson/gridboard/pkg/helpers"
	"github.com/GregMSThompson/gridboard/pkg/logger"
)

func TestHandleError_Statuses(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"not found", errs.NewNotFoundError("missing"), http.StatusNotFound, "not_found"},
		{"exists", errs.NewAlreadyExistsError("dup"), http.StatusConflict, "already_exists"},
		{"validation", errs.NewValidationError("bad"), http.StatusBadRequest, "invalid_input"},
		{"configuration", errs.NewConfigurationError("type", "unknown"), http.StatusBadRequest, "invalid_input"},
		{"transient", errs.NewTransientIOError("api", 503, nil), http.StatusBadGateway, "source_unavailable"},
		{"socket", errs.NewSocketError("ws://x", errors.New("refused")), http.StatusBadGateway, "source_unavailable"},
		{"database", errs.NewDatabaseError("query", "boom", errors.New("x")), http.StatusInternalServerError, "internal_error"},
		{"external transient", errs.NewExternalServiceError("s", "m", true, nil), http.StatusServiceUnavailable, "service_unavailable"},
		{"unknown", errors.New("x"), http.StatusInternalServerError, "internal_error"},
	}

	h := New(logger.Discard())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(helpers.TestCtx())
			rr := httptest.NewRecorder()
			h.HandleError(rr, req, tt.err)

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			var body ErrorResponse
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Code != tt.wantCode {
				t.Fatalf("code = %q, want %q", body.Code, tt.wantCode)
			}
		})
	}
}

func TestWriteSuccess_Envelope(t *testing.T) {
	h := New(logger.Discard())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rr := httptest.NewRecorder()
	h.WriteSuccess(rr, req, http.StatusCreated, map[string]int{"n": 1})

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d", rr.Code)
	}
	var env struct {
		Success bool           `json:"success"`
		Data    map[string]int `json:"data"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !env.Success || env.Data["n"] != 1 {
		t.Fatalf("unexpected envelope: %+v", env)
	}
}

func TestWriteHTML(t *testing.T) {
	h := New(logger.Discard())
	rr := httptest.NewRecorder()
	h.WriteHTML(rr, httptest.NewRequest(http.MethodGet, "/", nil), http.StatusOK, "<div>x</div>")
	if ct := rr.Header().Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Fatalf("content type = %q", ct)
	}
	if rr.Body.String() != "<div>x</div>" {
		t.Fatalf("body = %q", rr.Body.String())
	}
}
