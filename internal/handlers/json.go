package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/GregMSThompson/gridboard/pkg/logger"
)

// writeJSON writes v without the success envelope.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.FromContext(r.Context()).Error("failed to encode response", "error", err)
	}
}
