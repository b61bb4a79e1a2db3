package widgets

import (
	"fmt"
	"html/template"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/GregMSThompson/gridboard/internal/models"
	"github.com/GregMSThompson/gridboard/internal/query"
	"github.com/GregMSThompson/gridboard/internal/widget"
)

type TableOptions struct {
	Columns   []query.Column `mapstructure:"columns"`
	MaxRows   int            `mapstructure:"maxRows"`
	EmptyText string         `mapstructure:"emptyText"`
	Footer    bool           `mapstructure:"footer"`
}

func tableDefaults() map[string]any {
	return map[string]any{
		"maxRows":   100,
		"emptyText": "No data",
	}
}

type tableView struct {
	opts TableOptions
}

func NewTable(deps widget.Deps) widget.Widget {
	return widget.NewBase(&tableView{}, deps)
}

func (v *tableView) Configure(cfg models.WidgetConfig) error {
	var opts TableOptions
	if err := decodeOptions(tableDefaults(), cfg.Config, &opts); err != nil {
		return err
	}
	for i, c := range opts.Columns {
		if c.Label == "" {
			opts.Columns[i].Label = query.Label(c.Key)
		}
	}
	v.opts = opts
	return nil
}

// columns prefers configured columns, then mapped ones, then the sorted
// keys of the first row.
func (v *tableView) columns(res query.Result, rows []models.Record) []query.Column {
	if len(v.opts.Columns) > 0 {
		return v.opts.Columns
	}
	if len(res.Columns) > 0 {
		return res.Columns
	}
	if len(rows) == 0 {
		return nil
	}
	keys := make([]string, 0, len(rows[0]))
	for k := range rows[0] {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	cols := make([]query.Column, len(keys))
	for i, k := range keys {
		cols[i] = query.Column{Key: k, Label: query.Label(k)}
	}
	return cols
}

func (v *tableView) Body(s widget.Snapshot) template.HTML {
	if body, ok := widget.StatusBody(s); ok {
		return body
	}
	rows := s.Data.Records()
	if len(rows) == 0 {
		return template.HTML(`<div class="widget-empty">` + template.HTMLEscapeString(v.opts.EmptyText) + `</div>`)
	}
	cols := v.columns(s.Data, rows)
	total := len(rows)
	if v.opts.MaxRows > 0 && total > v.opts.MaxRows {
		rows = rows[:v.opts.MaxRows]
	}
	return template.HTML(RenderTableHTML(cols, rows, v.opts.Footer, total))
}

// RenderTableHTML renders rows as an HTML table. Cell text is escaped.
func RenderTableHTML(cols []query.Column, rows []models.Record, footer bool, total int) string {
	t := table.NewWriter()
	t.Style().HTML = table.HTMLOptions{
		CSSClass:    "widget-table",
		EmptyColumn: "&nbsp;",
		EscapeText:  true,
		Newline:     "<br/>",
	}
	t.Style().Format.Header = text.FormatDefault
	t.Style().Format.Footer = text.FormatDefault

	header := make(table.Row, len(cols))
	for i, c := range cols {
		header[i] = c.Label
	}
	t.AppendHeader(header)

	for _, r := range rows {
		row := make(table.Row, len(cols))
		for i, c := range cols {
			row[i] = display(r[c.Key])
		}
		t.AppendRow(row)
	}
	if footer {
		t.AppendFooter(table.Row{fmt.Sprintf("%d rows", total)})
	}
	return t.RenderHTML()
}
