package services

import (
	"context"
	"strings"

	"github.com/GregMSThompson/gridboard/internal/dto"
	"github.com/GregMSThompson/gridboard/internal/errs"
	"github.com/GregMSThompson/gridboard/internal/models"
)

type queryStore interface {
	Query(ctx context.Context, query string, vars map[string]any) ([]models.Record, error)
}

// readPrefixes are the statement kinds the sql endpoint accepts. The check
// only rejects obvious writes early; the store runs every query read-only.
var readPrefixes = []string{"select", "with", "values", "explain"}

type sqlService struct {
	store queryStore
}

func NewSQLService(store queryStore) *sqlService {
	return &sqlService{store: store}
}

// Execute runs a read-only query for the sql source contract.
func (s *sqlService) Execute(ctx context.Context, req dto.SQLRequest) ([]models.Record, error) {
	q := strings.TrimSpace(req.Query)
	if q == "" {
		return nil, errs.NewValidationError("query is required")
	}
	if !readOnly(q) {
		return nil, errs.NewValidationError("only read statements are allowed")
	}
	return s.store.Query(ctx, q, req.Variables)
}

func readOnly(q string) bool {
	head := strings.ToLower(q)
	if i := strings.IndexAny(head, " \t\r\n("); i > 0 {
		head = head[:i]
	}
	for _, p := range readPrefixes {
		if head == p {
			return !strings.Contains(strings.TrimRight(q, "; \t\r\n"), ";")
		}
	}
	return false
}
