package response

import (
	"encoding/json"
	"net/http"

	"github.com/GregMSThompson/gridboard/pkg/logger"
)

type SuccessEnvelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data,omitempty"`
}

func (h *responseHandler) WriteSuccess(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	resp := SuccessEnvelope{
		Success: true,
		Data:    data,
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		// Last-ditch logging; can't return an error now
		logger.FromContext(r.Context()).Error("failed to encode success response", "error", err)
	}
}

// WriteHTML writes rendered widget markup.
func (h *responseHandler) WriteHTML(w http.ResponseWriter, r *http.Request, status int, markup string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write([]byte(markup)); err != nil {
		logger.FromContext(r.Context()).Error("failed to write html response", "error", err)
	}
}
