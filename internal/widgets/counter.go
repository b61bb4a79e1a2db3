package widgets

import (
	"fmt"
	"html/template"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/GregMSThompson/gridboard/internal/models"
	"github.com/GregMSThompson/gridboard/internal/query"
	"github.com/GregMSThompson/gridboard/internal/widget"
)

// CounterOptions configure a single-value counter.
type CounterOptions struct {
	Label  string       `mapstructure:"label"`
	Prefix string       `mapstructure:"prefix"`
	Suffix string       `mapstructure:"suffix"`
	Field  string       `mapstructure:"field"`
	Format NumberFormat `mapstructure:"format"`
}

type NumberFormat struct {
	Decimals int    `mapstructure:"decimals"`
	Locale   string `mapstructure:"locale"`
}

func counterDefaults() map[string]any {
	return map[string]any{
		"field": query.RoleValue,
		"format": map[string]any{
			"decimals": 0,
			"locale":   "en",
		},
	}
}

type counterView struct {
	opts CounterOptions
}

func NewCounter(deps widget.Deps) widget.Widget {
	return widget.NewBase(&counterView{}, deps)
}

func (v *counterView) Configure(cfg models.WidgetConfig) error {
	var opts CounterOptions
	if err := decodeOptions(counterDefaults(), cfg.Config, &opts); err != nil {
		return err
	}
	if opts.Format.Decimals < 0 || opts.Format.Decimals > 10 {
		opts.Format.Decimals = 0
	}
	v.opts = opts
	return nil
}

var counterTemplate = template.Must(template.New("counter").Parse(
	`<div class="counter">` +
		`<div class="counter-value">{{.Prefix}}{{.Value}}{{.Suffix}}</div>` +
		`{{if .Label}}<div class="counter-label">{{.Label}}</div>{{end}}` +
		`</div>`))

func (v *counterView) Body(s widget.Snapshot) template.HTML {
	if body, ok := widget.StatusBody(s); ok {
		return body
	}
	label := v.opts.Label
	if l, ok := s.Data.Object["label"].(string); ok && label == "" {
		label = l
	}
	return execute(counterTemplate, map[string]any{
		"Prefix": v.opts.Prefix,
		"Suffix": v.opts.Suffix,
		"Label":  label,
		"Value":  FormatNumber(counterValue(s.Data, v.opts.Field), v.opts.Format),
	})
}

// counterValue reads the value role of a mapped object, or the configured
// field of the first record.
func counterValue(res query.Result, field string) any {
	if res.Kind == query.KindObject {
		if v, ok := res.Object[field]; ok {
			return v
		}
		return res.Object[query.RoleValue]
	}
	records := res.Records()
	if len(records) == 0 {
		return nil
	}
	return records[0][field]
}

// FormatNumber renders numbers with locale digit grouping; other values
// are printed as-is and nil as a dash.
func FormatNumber(v any, f NumberFormat) string {
	n, ok := number(v)
	if !ok {
		if v == nil {
			return "—"
		}
		return fmt.Sprint(v)
	}
	tag, err := language.Parse(f.Locale)
	if err != nil {
		tag = language.English
	}
	p := message.NewPrinter(tag)
	return strings.TrimSpace(p.Sprintf(fmt.Sprintf("%%.%df", f.Decimals), n))
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
