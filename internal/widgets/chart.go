package widgets

import (
	"encoding/json"
	"html/template"
	"strconv"
	"sync"

	"github.com/GregMSThompson/gridboard/internal/models"
	"github.com/GregMSThompson/gridboard/internal/widget"
)

type ChartOptions struct {
	ChartType string   `mapstructure:"chartType"`
	XField    string   `mapstructure:"xField"`
	YFields   []string `mapstructure:"yFields"`
	Colors    []string `mapstructure:"colors"`
	Legend    bool     `mapstructure:"legend"`
	Smooth    bool     `mapstructure:"smooth"`
	Stack     bool     `mapstructure:"stack"`
}

func chartDefaults() map[string]any {
	return map[string]any{
		"chartType": "line",
		"xField":    "x",
		"yFields":   []any{"y"},
		"colors":    []any{"#5470c6", "#91cc75", "#fac858"},
		"legend":    true,
	}
}

// OptionBuilder turns chart options and records into a chart library
// option object. The default targets ECharts.
type OptionBuilder interface {
	Build(opts ChartOptions, records []models.Record) map[string]any
}

type OptionBuilderFunc func(opts ChartOptions, records []models.Record) map[string]any

func (f OptionBuilderFunc) Build(opts ChartOptions, records []models.Record) map[string]any {
	return f(opts, records)
}

// Chart embeds the option JSON in its markup; the client library draws
// it. Resize bumps the fit revision so the client re-fits the canvas.
type Chart struct {
	*widget.Base
	view *chartView
}

type chartView struct {
	builder OptionBuilder

	mu     sync.Mutex
	opts   ChartOptions
	option map[string]any
}

func NewChart(deps widget.Deps) widget.Widget {
	return NewChartWith(deps, EChartsBuilder{})
}

func NewChartWith(deps widget.Deps, b OptionBuilder) *Chart {
	v := &chartView{builder: b}
	return &Chart{Base: widget.NewBase(v, deps), view: v}
}

// Option returns the last built option object.
func (c *Chart) Option() map[string]any {
	c.view.mu.Lock()
	defer c.view.mu.Unlock()
	return c.view.option
}

func (v *chartView) Configure(cfg models.WidgetConfig) error {
	var opts ChartOptions
	if err := decodeOptions(chartDefaults(), cfg.Config, &opts); err != nil {
		return err
	}
	v.mu.Lock()
	v.opts = opts
	v.mu.Unlock()
	return nil
}

func (v *chartView) Body(s widget.Snapshot) template.HTML {
	if body, ok := widget.StatusBody(s); ok {
		return body
	}
	v.mu.Lock()
	option := v.builder.Build(v.opts, s.Data.Records())
	v.option = option
	v.mu.Unlock()

	raw, err := json.Marshal(option)
	if err != nil {
		return template.HTML(`<div class="widget-error">` + template.HTMLEscapeString(err.Error()) + `</div>`)
	}
	// json.Marshal escapes <, > and &, so the payload cannot close the script tag.
	return template.HTML(`<div class="widget-chart" data-fit="` + strconv.Itoa(s.Resizes) +
		`" data-width="` + strconv.Itoa(s.Width) + `" data-height="` + strconv.Itoa(s.Height) + `">` +
		`<script type="application/json" class="chart-option">` + string(raw) + `</script></div>`)
}

// EChartsBuilder builds ECharts option objects for line, bar, area and
// pie charts.
type EChartsBuilder struct{}

func (EChartsBuilder) Build(opts ChartOptions, records []models.Record) map[string]any {
	option := map[string]any{
		"color":   opts.Colors,
		"legend":  map[string]any{"show": opts.Legend},
		"tooltip": map[string]any{"trigger": "axis"},
	}

	if opts.ChartType == "pie" {
		y := ""
		if len(opts.YFields) > 0 {
			y = opts.YFields[0]
		}
		data := make([]map[string]any, len(records))
		for i, r := range records {
			data[i] = map[string]any{"name": r[opts.XField], "value": r[y]}
		}
		option["tooltip"] = map[string]any{"trigger": "item"}
		option["series"] = []map[string]any{{"type": "pie", "name": y, "data": data}}
		return option
	}

	seriesType := "line"
	if opts.ChartType == "bar" {
		seriesType = "bar"
	}

	categories := make([]any, len(records))
	for i, r := range records {
		categories[i] = r[opts.XField]
	}
	series := make([]map[string]any, 0, len(opts.YFields))
	for _, y := range opts.YFields {
		data := make([]any, len(records))
		for i, r := range records {
			data[i] = r[y]
		}
		s := map[string]any{"name": y, "type": seriesType, "data": data}
		if opts.Smooth && seriesType == "line" {
			s["smooth"] = true
		}
		if opts.ChartType == "area" {
			s["areaStyle"] = map[string]any{}
		}
		if opts.Stack {
			s["stack"] = "total"
		}
		series = append(series, s)
	}
	option["xAxis"] = map[string]any{"type": "category", "data": categories}
	option["yAxis"] = map[string]any{"type": "value"}
	option["series"] = series
	return option
}
