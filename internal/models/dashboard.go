package models

const (
	DefaultColumns   = 12
	DefaultRowHeight = 80
	DefaultGap       = 16
)

// DashboardConfig is the persisted configuration of a dashboard grid.
type DashboardConfig struct {
	ID              string         `json:"id" yaml:"id"`
	Name            string         `json:"name" yaml:"name"`
	Description     string         `json:"description,omitempty" yaml:"description,omitempty"`
	Columns         int            `json:"columns" yaml:"columns"`
	RowHeight       int            `json:"rowHeight" yaml:"rowHeight"`
	Gap             int            `json:"gap" yaml:"gap"`
	Margin          int            `json:"margin" yaml:"margin"`
	Widgets         []WidgetConfig `json:"widgets" yaml:"widgets"`
	GlobalFilters   map[string]any `json:"globalFilters,omitempty" yaml:"globalFilters,omitempty"`
	Theme           string         `json:"theme,omitempty" yaml:"theme,omitempty"`
	RefreshInterval Duration       `json:"refreshInterval,omitempty" yaml:"refreshInterval,omitempty"`
	Editable        bool           `json:"editable" yaml:"editable"`
}

// ApplyDefaults fills zero grid settings. Gap and margin may legitimately
// be zero, so only a negative value is replaced.
func (d *DashboardConfig) ApplyDefaults() {
	if d.Columns <= 0 {
		d.Columns = DefaultColumns
	}
	if d.RowHeight <= 0 {
		d.RowHeight = DefaultRowHeight
	}
	if d.Gap < 0 {
		d.Gap = DefaultGap
	}
	if d.Margin < 0 {
		d.Margin = 0
	}
}

// Widget returns the widget config with the given id.
func (d *DashboardConfig) Widget(id string) (WidgetConfig, bool) {
	for _, w := range d.Widgets {
		if w.ID == id {
			return w, true
		}
	}
	return WidgetConfig{}, false
}

// Clone returns a copy whose widget slice can be mutated independently.
// Nested maps are shared.
func (d DashboardConfig) Clone() DashboardConfig {
	out := d
	out.Widgets = append([]WidgetConfig(nil), d.Widgets...)
	return out
}
