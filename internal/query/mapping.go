package query

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/GregMSThompson/gridboard/internal/models"
)

// Mapping roles with structural meaning.
const (
	RoleColumns = "columns"
	RoleItems   = "items"
	RoleText    = "text"
	RoleMeta    = "meta"
	RoleValue   = "value"

	autoColumns = "auto"
)

// Map projects records into the widget shape the mapping asks for:
//   - columns "auto" (or a comma list of keys) with data: table columns
//   - items/text/meta roles: an item list
//   - a single row with scalar roles: a flat object
//   - otherwise the records unchanged
func Map(records []models.Record, m models.Mapping) Result {
	if len(m) == 0 {
		return Result{Kind: KindRecords, Data: records}
	}

	if cols, ok := m[RoleColumns]; ok && cols != "" && len(records) > 0 {
		return Result{Kind: KindTable, Data: records, Columns: deriveColumns(records[0], cols)}
	}

	if hasAny(m, RoleItems, RoleText, RoleMeta) {
		return Result{Kind: KindItems, Items: mapItems(records, m)}
	}

	if len(records) == 1 {
		row := records[0]
		obj := make(models.Record, len(m))
		for role, field := range m {
			if role == RoleColumns {
				continue
			}
			obj[role] = row[field]
		}
		return Result{Kind: KindObject, Object: obj}
	}

	return Result{Kind: KindRecords, Data: records}
}

func hasAny(m models.Mapping, roles ...string) bool {
	for _, r := range roles {
		if m[r] != "" {
			return true
		}
	}
	return false
}

func mapItems(records []models.Record, m models.Mapping) []models.Record {
	rows := records
	// items names a nested array field on a single container row.
	if field := m[RoleItems]; field != "" && len(records) == 1 {
		if nested, ok := toSlice(records[0][field]); ok {
			rows = make([]models.Record, 0, len(nested))
			for _, n := range nested {
				if rec, ok := n.(map[string]any); ok {
					rows = append(rows, rec)
				} else {
					rows = append(rows, models.Record{RoleValue: n})
				}
			}
		}
	}

	items := make([]models.Record, len(rows))
	for i, row := range rows {
		item := make(models.Record, len(row)+3)
		item[RoleText] = lookup(row, m[RoleText])
		item[RoleMeta] = lookup(row, m[RoleMeta])
		item[RoleValue] = lookup(row, m[RoleValue])
		for k, v := range row {
			item[k] = v
		}
		items[i] = item
	}
	return items
}

func lookup(row models.Record, field string) any {
	if field == "" {
		return nil
	}
	return row[field]
}

// deriveColumns builds one column per key. "auto" uses the first row's keys
// in sorted order; a comma list keeps the caller's order.
func deriveColumns(first models.Record, spec string) []Column {
	var keys []string
	if spec == autoColumns {
		keys = make([]string, 0, len(first))
		for k := range first {
			keys = append(keys, k)
		}
		sort.Strings(keys)
	} else {
		for _, k := range strings.Split(spec, ",") {
			if k = strings.TrimSpace(k); k != "" {
				keys = append(keys, k)
			}
		}
	}
	cols := make([]Column, len(keys))
	for i, k := range keys {
		cols[i] = Column{Key: k, Label: Label(k)}
	}
	return cols
}

// Label humanizes a field key: underscores become spaces, lower/upper
// boundaries are split and every word is title-cased.
// "total_sales" -> "Total Sales", "orderCount" -> "Order Count".
func Label(key string) string {
	var b strings.Builder
	runes := []rune(strings.ReplaceAll(key, "_", " "))
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) && unicode.IsLower(runes[i-1]) {
			b.WriteRune(' ')
		}
		b.WriteRune(r)
	}
	// Casers are stateful and not safe to share between goroutines.
	return cases.Title(language.English, cases.NoLower).String(strings.Join(strings.Fields(b.String()), " "))
}
