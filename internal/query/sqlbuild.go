package query

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/GregMSThompson/gridboard/internal/errs"
	"github.com/GregMSThompson/gridboard/internal/models"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)*$`)

var sqlOperators = map[string]string{
	"=":           "=",
	"!=":          "<>",
	"<>":          "<>",
	">":           ">",
	"<":           "<",
	">=":          ">=",
	"<=":          "<=",
	"like":        "LIKE",
	"in":          "IN",
	"is null":     "IS NULL",
	"is not null": "IS NOT NULL",
}

// BuildSQL renders a visual query to SQL. Literal condition values are bound
// as :wN named parameters; variable conditions bind :<variable>. Select
// items and order fields that are plain identifiers are quoted, anything
// else (expressions such as SUM(x) AS total) is emitted as written.
func BuildSQL(q models.VisualQuery) (string, map[string]any, error) {
	if q.From == "" {
		return "", nil, errs.NewConfigurationError("query.from", "visual query requires a from table")
	}
	if !identPattern.MatchString(q.From) {
		return "", nil, errs.NewConfigurationError("query.from", fmt.Sprintf("invalid table name %q", q.From))
	}

	params := make(map[string]any)
	var b strings.Builder

	b.WriteString("SELECT ")
	if len(q.Select) == 0 {
		b.WriteString("*")
	} else {
		cols := make([]string, len(q.Select))
		for i, c := range q.Select {
			cols[i] = quoteMaybe(c)
		}
		b.WriteString(strings.Join(cols, ", "))
	}
	b.WriteString(" FROM ")
	b.WriteString(quoteIdent(q.From))

	if len(q.Where) > 0 {
		preds := make([]string, 0, len(q.Where))
		for i, c := range q.Where {
			p, err := buildCondition(i, c, params)
			if err != nil {
				return "", nil, err
			}
			preds = append(preds, p)
		}
		b.WriteString(" WHERE ")
		b.WriteString(strings.Join(preds, " AND "))
	}

	if len(q.GroupBy) > 0 {
		groups := make([]string, len(q.GroupBy))
		for i, g := range q.GroupBy {
			if !identPattern.MatchString(g) {
				return "", nil, errs.NewConfigurationError("query.groupBy", fmt.Sprintf("invalid group field %q", g))
			}
			groups[i] = quoteIdent(g)
		}
		b.WriteString(" GROUP BY ")
		b.WriteString(strings.Join(groups, ", "))
	}

	if len(q.OrderBy) > 0 {
		orders := make([]string, len(q.OrderBy))
		for i, o := range q.OrderBy {
			dir := "ASC"
			if strings.EqualFold(o.Direction, "desc") {
				dir = "DESC"
			}
			orders[i] = quoteMaybe(o.Field) + " " + dir
		}
		b.WriteString(" ORDER BY ")
		b.WriteString(strings.Join(orders, ", "))
	}

	if q.Limit > 0 {
		fmt.Fprintf(&b, " LIMIT %d", q.Limit)
	}
	return b.String(), params, nil
}

func buildCondition(i int, c models.Condition, params map[string]any) (string, error) {
	if !identPattern.MatchString(c.Field) {
		return "", errs.NewConfigurationError("query.where", fmt.Sprintf("invalid condition field %q", c.Field))
	}
	op, ok := sqlOperators[strings.ToLower(strings.TrimSpace(c.Operator))]
	if !ok {
		return "", errs.NewConfigurationError("query.where", fmt.Sprintf("unsupported operator %q", c.Operator))
	}
	field := quoteIdent(c.Field)

	switch op {
	case "IS NULL", "IS NOT NULL":
		return field + " " + op, nil
	}

	if c.Variable != "" {
		if !identPattern.MatchString(c.Variable) || strings.Contains(c.Variable, ".") {
			return "", errs.NewConfigurationError("query.where", fmt.Sprintf("invalid variable name %q", c.Variable))
		}
		if op == "IN" {
			return fmt.Sprintf("%s IN (:%s)", field, c.Variable), nil
		}
		return fmt.Sprintf("%s %s :%s", field, op, c.Variable), nil
	}

	if op == "IN" {
		list, ok := toSlice(c.Value)
		if !ok || len(list) == 0 {
			return "", errs.NewConfigurationError("query.where", "IN requires a non-empty list value")
		}
		names := make([]string, len(list))
		for j, v := range list {
			name := fmt.Sprintf("w%d_%d", i, j)
			params[name] = v
			names[j] = ":" + name
		}
		return fmt.Sprintf("%s IN (%s)", field, strings.Join(names, ", ")), nil
	}

	name := fmt.Sprintf("w%d", i)
	params[name] = c.Value
	return fmt.Sprintf("%s %s :%s", field, op, name), nil
}

func quoteMaybe(s string) string {
	if s == "*" {
		return s
	}
	if identPattern.MatchString(s) {
		return quoteIdent(s)
	}
	return s
}

func quoteIdent(s string) string {
	parts := strings.Split(s, ".")
	for i, p := range parts {
		parts[i] = `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
	}
	return strings.Join(parts, ".")
}
