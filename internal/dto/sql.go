package dto

import "github.com/GregMSThompson/gridboard/internal/models"

// SQLRequest is the body the sql source POSTs.
type SQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

// SQLResponse is written without the success envelope; the sql source
// reads success, data and error directly.
type SQLResponse struct {
	Success bool            `json:"success"`
	Data    []models.Record `json:"data"`
	Error   string          `json:"error,omitempty"`
}
