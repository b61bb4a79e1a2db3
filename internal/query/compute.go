package query

import (
	"fmt"
	"sort"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/GregMSThompson/gridboard/internal/errs"
	"github.com/GregMSThompson/gridboard/internal/models"
)

// expression is a compiled Starlark expression evaluated once per row with
// the row bound as `row` and each field also bound by name.
type expression struct {
	src  string
	opts *syntax.FileOptions
}

func compileExpression(src string) (*expression, error) {
	opts := &syntax.FileOptions{}
	if _, err := opts.ParseExpr("compute", src, 0); err != nil {
		return nil, errs.NewConfigurationError("transforms.expression", fmt.Sprintf("invalid expression %q: %v", src, err))
	}
	return &expression{src: src, opts: opts}, nil
}

func (e *expression) eval(row models.Record) (any, error) {
	dict, err := toStarlark(row)
	if err != nil {
		return nil, err
	}
	env := starlark.StringDict{"row": dict}
	for k, v := range row {
		if !isIdentifier(k) {
			continue
		}
		sv, err := toStarlark(v)
		if err != nil {
			return nil, err
		}
		env[k] = sv
	}
	thread := &starlark.Thread{Name: "compute", Print: func(*starlark.Thread, string) {}}
	out, err := starlark.EvalOptions(e.opts, thread, "compute", e.src, env)
	if err != nil {
		return nil, err
	}
	return fromStarlark(out), nil
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case i > 0 && r >= '0' && r <= '9':
		default:
			return false
		}
	}
	return true
}

func toStarlark(v any) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}
	switch val := v.(type) {
	case string:
		return starlark.String(val), nil
	case bool:
		return starlark.Bool(val), nil
	case int:
		return starlark.MakeInt(val), nil
	case int64:
		return starlark.MakeInt64(val), nil
	case float64:
		return starlark.Float(val), nil
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		dict := starlark.NewDict(len(val))
		for _, k := range keys {
			sv, err := toStarlark(val[k])
			if err != nil {
				return nil, fmt.Errorf("field %q: %w", k, err)
			}
			if err := dict.SetKey(starlark.String(k), sv); err != nil {
				return nil, err
			}
		}
		return dict, nil
	}
	if n, ok := toNumber(v); ok {
		return starlark.Float(n), nil
	}
	if items, ok := toSlice(v); ok {
		list := make([]starlark.Value, len(items))
		for i, item := range items {
			sv, err := toStarlark(item)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			list[i] = sv
		}
		return starlark.NewList(list), nil
	}
	return starlark.String(toString(v)), nil
}

func fromStarlark(v starlark.Value) any {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil
	case starlark.String:
		return string(val)
	case starlark.Bool:
		return bool(val)
	case starlark.Int:
		if i, ok := val.Int64(); ok {
			return float64(i)
		}
		return val.String()
	case starlark.Float:
		return float64(val)
	case *starlark.List:
		out := make([]any, val.Len())
		for i := range out {
			out[i] = fromStarlark(val.Index(i))
		}
		return out
	case starlark.Tuple:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = fromStarlark(item)
		}
		return out
	case *starlark.Dict:
		out := make(map[string]any, val.Len())
		for _, item := range val.Items() {
			out[toString(fromStarlark(item[0]))] = fromStarlark(item[1])
		}
		return out
	default:
		return val.String()
	}
}
