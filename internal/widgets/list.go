package widgets

import (
	"fmt"
	"html/template"

	"github.com/GregMSThompson/gridboard/internal/models"
	"github.com/GregMSThompson/gridboard/internal/query"
	"github.com/GregMSThompson/gridboard/internal/widget"
)

type ListOptions struct {
	MaxItems  int    `mapstructure:"maxItems"`
	EmptyText string `mapstructure:"emptyText"`
	ShowValue bool   `mapstructure:"showValue"`
}

func listDefaults() map[string]any {
	return map[string]any{
		"maxItems":  10,
		"emptyText": "No items",
		"showValue": true,
	}
}

type listView struct {
	opts ListOptions
}

func NewList(deps widget.Deps) widget.Widget {
	return widget.NewBase(&listView{}, deps)
}

func (v *listView) Configure(cfg models.WidgetConfig) error {
	var opts ListOptions
	if err := decodeOptions(listDefaults(), cfg.Config, &opts); err != nil {
		return err
	}
	v.opts = opts
	return nil
}

type listItem struct {
	Text  string
	Meta  string
	Value string
}

var listTemplate = template.Must(template.New("list").Parse(
	`{{if .Items}}<ul class="widget-list">{{range .Items}}<li>` +
		`<span class="item-text">{{.Text}}</span>` +
		`{{if .Meta}}<span class="item-meta">{{.Meta}}</span>{{end}}` +
		`{{if .Value}}<span class="item-value">{{.Value}}</span>{{end}}` +
		`</li>{{end}}</ul>{{if .More}}<div class="list-more">+{{.More}} more</div>{{end}}` +
		`{{else}}<div class="widget-empty">{{.Empty}}</div>{{end}}`))

func (v *listView) Body(s widget.Snapshot) template.HTML {
	if body, ok := widget.StatusBody(s); ok {
		return body
	}
	rows := s.Data.Records()
	more := 0
	if v.opts.MaxItems > 0 && len(rows) > v.opts.MaxItems {
		more = len(rows) - v.opts.MaxItems
		rows = rows[:v.opts.MaxItems]
	}
	items := make([]listItem, len(rows))
	for i, row := range rows {
		items[i] = listItem{
			Text: display(firstOf(row, query.RoleText, "name", "title", "label")),
			Meta: display(row[query.RoleMeta]),
		}
		if v.opts.ShowValue {
			items[i].Value = display(row[query.RoleValue])
		}
	}
	return execute(listTemplate, map[string]any{
		"Items": items,
		"More":  more,
		"Empty": v.opts.EmptyText,
	})
}

func firstOf(row models.Record, keys ...string) any {
	for _, k := range keys {
		if v, ok := row[k]; ok && v != nil {
			return v
		}
	}
	return nil
}

func display(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	}
	if n, ok := number(v); ok {
		return FormatNumber(n, NumberFormat{Decimals: decimalsFor(n), Locale: "en"})
	}
	return fmt.Sprint(v)
}

func decimalsFor(n float64) int {
	if n == float64(int64(n)) {
		return 0
	}
	return 2
}
