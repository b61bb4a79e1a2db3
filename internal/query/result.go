package query

import (
	"time"

	"github.com/GregMSThompson/gridboard/internal/models"
)

// Kind describes the shape a mapping produced.
type Kind string

const (
	// KindRecords passes the transformed records through unchanged.
	KindRecords Kind = "records"
	// KindObject is a flat role -> value object for single-value widgets.
	KindObject Kind = "object"
	// KindItems is a list of {text, meta, value, ...row} items.
	KindItems Kind = "items"
	// KindTable carries derived columns alongside the unchanged records.
	KindTable Kind = "table"
)

type Column struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// Result is the widget-ready output of one execution.
type Result struct {
	Kind      Kind            `json:"kind"`
	Data      []models.Record `json:"data,omitempty"`
	Object    models.Record   `json:"object,omitempty"`
	Items     []models.Record `json:"items,omitempty"`
	Columns   []Column        `json:"columns,omitempty"`
	FetchedAt time.Time       `json:"fetchedAt"`
}

// Records returns the rows behind the result regardless of its kind.
func (r Result) Records() []models.Record {
	switch r.Kind {
	case KindItems:
		return r.Items
	case KindObject:
		if r.Object == nil {
			return nil
		}
		return []models.Record{r.Object}
	default:
		return r.Data
	}
}

// StaticResult wraps literal records as a passthrough result.
func StaticResult(records []models.Record) Result {
	return Result{Kind: KindRecords, Data: records, FetchedAt: time.Now()}
}
