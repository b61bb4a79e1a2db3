package query

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/GregMSThompson/gridboard/internal/errs"
	"github.com/GregMSThompson/gridboard/internal/models"
	"github.com/GregMSThompson/gridboard/pkg/helpers"
	"github.com/GregMSThompson/gridboard/pkg/logger"
)

// Transform runs the pipeline in order. A step that is unknown or fails is
// skipped with a warning and its input flows to the next step unchanged.
func Transform(records []models.Record, specs []models.TransformSpec, log *slog.Logger) []models.Record {
	log = logger.OrDiscard(log)
	out := records
	for i, spec := range specs {
		next, err := applyTransform(out, spec)
		if err != nil {
			log.Warn("skipping transform", "index", i, "type", spec.Type, "error", err)
			continue
		}
		out = next
	}
	return out
}

func applyTransform(records []models.Record, spec models.TransformSpec) ([]models.Record, error) {
	switch spec.Type {
	case models.TransformFilter:
		return Filter(records, spec.Field, spec.Operator, spec.Value)
	case models.TransformSort:
		return Sort(records, spec.Field, spec.Order), nil
	case models.TransformAggregate:
		return Aggregate(records, spec.GroupBy, spec.Aggregations)
	case models.TransformCompute:
		return Compute(records, spec)
	case models.TransformPivot:
		return Pivot(records, spec.Rows, spec.Columns, spec.Values)
	case models.TransformSlice:
		return Slice(records, spec.Start, spec.End), nil
	default:
		return nil, errs.NewConfigurationError("transforms.type", fmt.Sprintf("unknown transform type %q", spec.Type))
	}
}

// Filter keeps rows where row[field] <op> value holds.
func Filter(records []models.Record, field, op string, value any) ([]models.Record, error) {
	match, err := predicate(op, value)
	if err != nil {
		return nil, err
	}
	out := make([]models.Record, 0, len(records))
	for _, row := range records {
		if match(row[field]) {
			out = append(out, row)
		}
	}
	return out, nil
}

func predicate(op string, want any) (func(any) bool, error) {
	switch op {
	case "=", "==", "eq":
		return func(v any) bool { return looseEqual(v, want) }, nil
	case "!=", "≠", "<>", "ne":
		return func(v any) bool { return !looseEqual(v, want) }, nil
	case ">", "gt":
		return ordered(want, func(c int) bool { return c > 0 }), nil
	case "<", "lt":
		return ordered(want, func(c int) bool { return c < 0 }), nil
	case ">=", "≥", "gte":
		return ordered(want, func(c int) bool { return c >= 0 }), nil
	case "<=", "≤", "lte":
		return ordered(want, func(c int) bool { return c <= 0 }), nil
	case "contains":
		return stringOp(want, strings.Contains), nil
	case "startsWith":
		return stringOp(want, strings.HasPrefix), nil
	case "endsWith":
		return stringOp(want, strings.HasSuffix), nil
	case "in":
		list, ok := toSlice(want)
		if !ok {
			return nil, errs.NewConfigurationError("transforms.value", "filter operator in requires a list value")
		}
		return func(v any) bool {
			for _, candidate := range list {
				if looseEqual(v, candidate) {
					return true
				}
			}
			return false
		}, nil
	default:
		return nil, errs.NewConfigurationError("transforms.operator", fmt.Sprintf("unknown filter operator %q", op))
	}
}

func ordered(want any, ok func(int) bool) func(any) bool {
	return func(v any) bool {
		if v == nil || want == nil {
			return false
		}
		return ok(compareLoose(v, want))
	}
}

func stringOp(want any, fn func(s, sub string) bool) func(any) bool {
	sub := toString(want)
	return func(v any) bool {
		if v == nil {
			return false
		}
		return fn(toString(v), sub)
	}
}

// Sort orders rows by field. Numbers compare numerically, everything else
// lexicographically; nil values sort last in both directions.
func Sort(records []models.Record, field, order string) []models.Record {
	desc := strings.EqualFold(order, "desc")
	out := slices.Clone(records)
	slices.SortStableFunc(out, func(a, b models.Record) int {
		va, vb := a[field], b[field]
		switch {
		case va == nil && vb == nil:
			return 0
		case va == nil:
			return 1
		case vb == nil:
			return -1
		}
		c := compareStrict(va, vb)
		if desc {
			return -c
		}
		return c
	})
	return out
}

// Aggregate partitions rows by the composite groupBy key and emits one row
// per group, in first-seen order, holding the group values plus aliases.
func Aggregate(records []models.Record, groupBy []string, aggs []models.Aggregation) ([]models.Record, error) {
	for _, a := range aggs {
		if _, ok := aggregators[a.Function]; !ok {
			return nil, errs.NewConfigurationError("transforms.aggregations", fmt.Sprintf("unknown aggregate function %q", a.Function))
		}
	}

	type group struct {
		first models.Record
		rows  []models.Record
	}
	var order []string
	groups := make(map[string]*group)
	for _, row := range records {
		key := groupKey(row, groupBy)
		g, ok := groups[key]
		if !ok {
			g = &group{first: row}
			groups[key] = g
			order = append(order, key)
		}
		g.rows = append(g.rows, row)
	}

	out := make([]models.Record, 0, len(order))
	for _, key := range order {
		g := groups[key]
		row := make(models.Record, len(groupBy)+len(aggs))
		for _, f := range groupBy {
			row[f] = g.first[f]
		}
		for _, a := range aggs {
			row[a.Alias()] = aggregators[a.Function](population(g.rows, a.Field))
		}
		out = append(out, row)
	}
	return out, nil
}

func groupKey(row models.Record, fields []string) string {
	parts := make([]string, len(fields))
	for i, f := range fields {
		v := row[f]
		if v == nil {
			parts[i] = "\x00"
			continue
		}
		parts[i] = toString(v)
	}
	return strings.Join(parts, "\x1f")
}

// population collects the non-nil values of field. An empty field counts
// rows, so every row contributes a placeholder.
func population(rows []models.Record, field string) []any {
	out := make([]any, 0, len(rows))
	for _, row := range rows {
		if field == "" {
			out = append(out, true)
			continue
		}
		if v := row[field]; v != nil {
			out = append(out, v)
		}
	}
	return out
}

var aggregators = map[string]func([]any) any{
	"sum": func(vals []any) any {
		var sum float64
		for _, v := range vals {
			if n, ok := coerceNumber(v); ok {
				sum += n
			}
		}
		return sum
	},
	"avg": func(vals []any) any {
		var sum float64
		var n int
		for _, v := range vals {
			if f, ok := coerceNumber(v); ok {
				sum += f
				n++
			}
		}
		if n == 0 {
			return nil
		}
		return sum / float64(n)
	},
	"count": func(vals []any) any {
		return len(vals)
	},
	"min": func(vals []any) any {
		return extreme(vals, -1)
	},
	"max": func(vals []any) any {
		return extreme(vals, 1)
	},
	"first": func(vals []any) any {
		if len(vals) == 0 {
			return nil
		}
		return vals[0]
	},
	"last": func(vals []any) any {
		if len(vals) == 0 {
			return nil
		}
		return vals[len(vals)-1]
	},
}

func extreme(vals []any, sign int) any {
	var best any
	for _, v := range vals {
		if best == nil || compareLoose(v, best)*sign > 0 {
			best = v
		}
	}
	return best
}

// Compute adds spec.Field to every row from spec.Fn, or from the Starlark
// spec.Expression when no Fn is set. Other fields are left untouched.
func Compute(records []models.Record, spec models.TransformSpec) ([]models.Record, error) {
	if spec.Field == "" {
		return nil, errs.NewConfigurationError("transforms.field", "compute requires a target field")
	}
	fn := spec.Fn
	if fn == nil {
		if spec.Expression == "" {
			return nil, errs.NewConfigurationError("transforms.expression", "compute requires an expression")
		}
		expr, err := compileExpression(spec.Expression)
		if err != nil {
			return nil, err
		}
		out := make([]models.Record, len(records))
		for i, row := range records {
			v, err := expr.eval(row)
			if err != nil {
				return nil, fmt.Errorf("compute %s row %d: %w", spec.Field, i, err)
			}
			out[i] = withField(row, spec.Field, v)
		}
		return out, nil
	}
	out := make([]models.Record, len(records))
	for i, row := range records {
		out[i] = withField(row, spec.Field, fn(row))
	}
	return out, nil
}

func withField(row models.Record, field string, v any) models.Record {
	next := make(models.Record, len(row)+1)
	for k, val := range row {
		next[k] = val
	}
	next[field] = v
	return next
}

// Pivot reshapes rows keyed by rowsField into one column per distinct
// columnsField value. Duplicate (row, column) pairs keep the last value.
func Pivot(records []models.Record, rowsField, columnsField, valuesField string) ([]models.Record, error) {
	if rowsField == "" || columnsField == "" || valuesField == "" {
		return nil, errs.NewConfigurationError("transforms.pivot", "pivot requires rows, columns and values fields")
	}
	var order []string
	byKey := make(map[string]models.Record)
	for _, row := range records {
		key := toString(row[rowsField])
		out, ok := byKey[key]
		if !ok {
			out = models.Record{rowsField: row[rowsField]}
			byKey[key] = out
			order = append(order, key)
		}
		out[toString(row[columnsField])] = row[valuesField]
	}
	result := make([]models.Record, len(order))
	for i, key := range order {
		result[i] = byKey[key]
	}
	return result, nil
}

// Slice truncates to [start, end). Negative indices count from the end and
// a nil end means the length.
func Slice(records []models.Record, start int, end *int) []models.Record {
	n := len(records)
	from := clampIndex(start, n)
	to := clampIndex(helpers.ValueOr(end, n), n)
	if from >= to {
		return []models.Record{}
	}
	return slices.Clone(records[from:to])
}

func clampIndex(i, n int) int {
	if i < 0 {
		i += n
	}
	return max(0, min(i, n))
}
