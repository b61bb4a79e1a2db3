package models

// Rect is a widget's position and span in grid-cell units.
type Rect struct {
	X    int `json:"x" yaml:"x"`
	Y    int `json:"y" yaml:"y"`
	W    int `json:"w" yaml:"w"`
	H    int `json:"h" yaml:"h"`
	MinW int `json:"minW,omitempty" yaml:"minW,omitempty"`
	MinH int `json:"minH,omitempty" yaml:"minH,omitempty"`
}

// IsZero reports whether no span was given, which means "auto-place".
func (r Rect) IsZero() bool {
	return r.W == 0 && r.H == 0
}

// Normalize enforces w >= minW, h >= minH and a minimum span of one cell.
func (r Rect) Normalize() Rect {
	if r.MinW < 1 {
		r.MinW = 1
	}
	if r.MinH < 1 {
		r.MinH = 1
	}
	if r.W < r.MinW {
		r.W = r.MinW
	}
	if r.H < r.MinH {
		r.H = r.MinH
	}
	if r.X < 0 {
		r.X = 0
	}
	if r.Y < 0 {
		r.Y = 0
	}
	return r
}

// Overlaps reports whether two rects share at least one cell.
func (r Rect) Overlaps(o Rect) bool {
	return r.X < o.X+o.W && o.X < r.X+r.W && r.Y < o.Y+o.H && o.Y < r.Y+r.H
}

// WidgetStyle holds presentation overrides applied to the widget frame.
type WidgetStyle struct {
	BackgroundColor string `json:"backgroundColor,omitempty" yaml:"backgroundColor,omitempty"`
	BorderRadius    string `json:"borderRadius,omitempty" yaml:"borderRadius,omitempty"`
	Shadow          string `json:"shadow,omitempty" yaml:"shadow,omitempty"`
	Padding         string `json:"padding,omitempty" yaml:"padding,omitempty"`
	Border          string `json:"border,omitempty" yaml:"border,omitempty"`
}

// WidgetInteractions names the actions bound to pointer interactions.
// The values are opaque to the core and interpreted by the host.
type WidgetInteractions struct {
	OnClick string `json:"onClick,omitempty" yaml:"onClick,omitempty"`
	OnHover string `json:"onHover,omitempty" yaml:"onHover,omitempty"`
}

// WidgetConfig is the persisted configuration of one placed widget.
// Config holds the type-specific blob; each widget kind decodes it.
type WidgetConfig struct {
	ID           string             `json:"id" yaml:"id"`
	Type         string             `json:"type" yaml:"type"`
	Title        string             `json:"title,omitempty" yaml:"title,omitempty"`
	Layout       Rect               `json:"layout" yaml:"layout"`
	Query        *QueryConfig       `json:"query,omitempty" yaml:"query,omitempty"`
	Config       map[string]any     `json:"config,omitempty" yaml:"config,omitempty"`
	Style        WidgetStyle        `json:"style,omitempty" yaml:"style,omitempty"`
	Interactions WidgetInteractions `json:"interactions,omitempty" yaml:"interactions,omitempty"`
}

// HasSource reports whether the widget is bound to a data source.
func (w WidgetConfig) HasSource() bool {
	return w.Query != nil && w.Query.SourceType != ""
}
