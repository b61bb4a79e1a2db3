package query

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// toNumber returns v as float64 when it is a Go numeric type.
func toNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}

// coerceNumber is toNumber plus numeric strings.
func coerceNumber(v any) (float64, bool) {
	if n, ok := toNumber(v); ok {
		return n, true
	}
	if s, ok := v.(string); ok {
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || math.IsNaN(f) {
			return 0, false
		}
		return f, true
	}
	return 0, false
}

func toString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	case []byte:
		return string(s)
	case bool:
		return strconv.FormatBool(s)
	}
	if n, ok := toNumber(v); ok {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

// looseEqual treats a number and its numeric string form as equal.
func looseEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	na, aNum := toNumber(a)
	nb, bNum := toNumber(b)
	switch {
	case aNum && bNum:
		return na == nb
	case aNum:
		if f, ok := coerceNumber(b); ok {
			return na == f
		}
		return false
	case bNum:
		if f, ok := coerceNumber(a); ok {
			return nb == f
		}
		return false
	}
	return toString(a) == toString(b)
}

// compareLoose orders two non-nil values numerically when both coerce to
// numbers and lexicographically otherwise.
func compareLoose(a, b any) int {
	na, aok := coerceNumber(a)
	nb, bok := coerceNumber(b)
	if aok && bok {
		return compareFloat(na, nb)
	}
	return strings.Compare(toString(a), toString(b))
}

// compareStrict orders numerically only when both values are numbers.
func compareStrict(a, b any) int {
	na, aok := toNumber(a)
	nb, bok := toNumber(b)
	if aok && bok {
		return compareFloat(na, nb)
	}
	return strings.Compare(toString(a), toString(b))
}

func compareFloat(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// toSlice flattens any slice or array value into []any.
func toSlice(v any) ([]any, bool) {
	if s, ok := v.([]any); ok {
		return s, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}
