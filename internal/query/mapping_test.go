package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GregMSThompson/gridboard/internal/models"
)

func TestLabel(t *testing.T) {
	tests := map[string]string{
		"total_sales": "Total Sales",
		"orderCount":  "Order Count",
		"a":           "A",
		"ID":          "ID",
		"_leading":    "Leading",
		"userID_code": "User ID Code",
	}
	for in, want := range tests {
		t.Run(in, func(t *testing.T) {
			assert.Equal(t, want, Label(in))
		})
	}
}

func TestMap_AutoColumns(t *testing.T) {
	records := []models.Record{{"b": 10, "a": 1}, {"a": 2, "b": 20}}
	res := Map(records, models.Mapping{RoleColumns: "auto"})

	assert.Equal(t, KindTable, res.Kind)
	assert.Equal(t, []Column{{Key: "a", Label: "A"}, {Key: "b", Label: "B"}}, res.Columns)
	assert.Equal(t, records, res.Data)
}

func TestMap_ExplicitColumnsKeepOrder(t *testing.T) {
	records := []models.Record{{"region": "E", "total_sales": 3}}
	res := Map(records, models.Mapping{RoleColumns: "total_sales, region"})

	require.Equal(t, KindTable, res.Kind)
	assert.Equal(t, []Column{{Key: "total_sales", Label: "Total Sales"}, {Key: "region", Label: "Region"}}, res.Columns)
}

func TestMap_AutoColumnsNeedData(t *testing.T) {
	res := Map([]models.Record{}, models.Mapping{RoleColumns: "auto"})
	assert.Equal(t, KindRecords, res.Kind)
	assert.Empty(t, res.Columns)
}

func TestMap_SingleRowObject(t *testing.T) {
	records := []models.Record{{"revenue": 1200, "label": "Revenue"}}
	res := Map(records, models.Mapping{RoleValue: "revenue", "label": "label"})

	assert.Equal(t, KindObject, res.Kind)
	assert.Equal(t, models.Record{"value": 1200, "label": "Revenue"}, res.Object)
	assert.Equal(t, []models.Record{res.Object}, res.Records())
}

func TestMap_Items(t *testing.T) {
	records := []models.Record{
		{"name": "Ada", "role": "eng", "score": 3},
		{"name": "Bo", "role": "ops", "score": 5},
	}
	res := Map(records, models.Mapping{RoleText: "name", RoleMeta: "role", RoleValue: "score"})

	require.Equal(t, KindItems, res.Kind)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "Ada", res.Items[0][RoleText])
	assert.Equal(t, "eng", res.Items[0][RoleMeta])
	assert.Equal(t, 3, res.Items[0][RoleValue])
	assert.Equal(t, "Ada", res.Items[0]["name"], "row fields are spread into the item")
}

func TestMap_ItemsFromNestedArray(t *testing.T) {
	records := []models.Record{{
		"entries": []any{
			map[string]any{"title": "one"},
			map[string]any{"title": "two"},
		},
	}}
	res := Map(records, models.Mapping{RoleItems: "entries", RoleText: "title"})

	require.Equal(t, KindItems, res.Kind)
	require.Len(t, res.Items, 2)
	assert.Equal(t, "two", res.Items[1][RoleText])
}

func TestMap_PassThrough(t *testing.T) {
	records := []models.Record{{"a": 1}, {"a": 2}}

	assert.Equal(t, Result{Kind: KindRecords, Data: records}, Map(records, nil))
	assert.Equal(t, Result{Kind: KindRecords, Data: records}, Map(records, models.Mapping{RoleValue: "a"}))
}
