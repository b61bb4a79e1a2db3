// Package layout is the dashboard grid engine: placement, drag and resize
// gestures, and responsive column breakpoints.
package layout

import (
	"math"

	"github.com/GregMSThompson/gridboard/internal/models"
)

// Breakpoints in pixels of grid width.
const (
	WideBreakpoint   = 1024
	MediumBreakpoint = 768

	MediumColumns = 8
	NarrowColumns = 4
)

// EffectiveColumns is the column count in force at a grid width. A width
// of zero means no observation yet and keeps the configured count.
func EffectiveColumns(width, configured int) int {
	switch {
	case width <= 0 || width >= WideBreakpoint:
		return configured
	case width >= MediumBreakpoint:
		return min(MediumColumns, configured)
	default:
		return min(NarrowColumns, configured)
	}
}

// PixelRect is a rectangle in pixels relative to the grid origin.
type PixelRect struct {
	Left   float64 `json:"left"`
	Top    float64 `json:"top"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Grid is the geometry of a dashboard at one observed width.
type Grid struct {
	Columns   int
	RowHeight int
	Gap       int
	Width     float64
}

func NewGrid(cfg models.DashboardConfig, width float64) Grid {
	return Grid{
		Columns:   EffectiveColumns(int(width), cfg.Columns),
		RowHeight: cfg.RowHeight,
		Gap:       cfg.Gap,
		Width:     width,
	}
}

// CellWidth excludes the gaps between columns.
func (g Grid) CellWidth() float64 {
	if g.Columns <= 0 {
		return 0
	}
	return (g.Width - float64((g.Columns-1)*g.Gap)) / float64(g.Columns)
}

// CellHeight is the row pitch, row height plus one gap.
func (g Grid) CellHeight() float64 {
	return float64(g.RowHeight + g.Gap)
}

// PitchX is the horizontal distance between two column origins.
func (g Grid) PitchX() float64 {
	return g.CellWidth() + float64(g.Gap)
}

func (g Grid) Pixels(r models.Rect) PixelRect {
	cw := g.CellWidth()
	gap := float64(g.Gap)
	return PixelRect{
		Left:   float64(r.X) * g.PitchX(),
		Top:    float64(r.Y) * g.CellHeight(),
		Width:  float64(r.W)*cw + float64(max(r.W-1, 0))*gap,
		Height: float64(r.H*g.RowHeight) + float64(max(r.H-1, 0))*gap,
	}
}

// CellAt maps a pixel point to the cell a widget of span w would occupy,
// clamped to x in [0, columns-w] and y >= 0.
func (g Grid) CellAt(px, py float64, w int) (int, int) {
	x, y := 0, 0
	if cw := g.CellWidth(); cw > 0 {
		x = int(math.Floor(px / cw))
	}
	if ch := g.CellHeight(); ch > 0 {
		y = int(math.Floor(py / ch))
	}
	return clamp(x, 0, max(g.Columns-w, 0)), max(y, 0)
}

// Visual clamps an authored rect into the effective column count without
// changing the authored rect itself.
func (g Grid) Visual(r models.Rect) models.Rect {
	if g.Columns <= 0 {
		return r
	}
	r.W = min(r.W, g.Columns)
	r.X = clamp(r.X, 0, g.Columns-r.W)
	return r
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
