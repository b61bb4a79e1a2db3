package widgets

import (
	"bytes"
	"html/template"

	"github.com/GregMSThompson/gridboard/internal/widget"
)

const (
	KindCounter = "counter"
	KindList    = "list"
	KindTable   = "table"
	KindChart   = "chart"
)

func init() {
	RegisterBuiltins(widget.Default())
}

// RegisterBuiltins registers every built-in kind into r.
func RegisterBuiltins(r *widget.Registry) {
	builtins := map[string]widget.Constructor{
		KindCounter: NewCounter,
		KindList:    NewList,
		KindTable:   NewTable,
		KindChart:   NewChart,
	}
	for kind, ctor := range builtins {
		// Only empty kinds or nil constructors fail.
		_ = r.Register(kind, ctor)
	}
}

func execute(t *template.Template, data any) template.HTML {
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return template.HTML(`<div class="widget-error">` + template.HTMLEscapeString(err.Error()) + `</div>`)
	}
	return template.HTML(buf.String())
}
