package layout

import "github.com/GregMSThompson/gridboard/internal/models"

// MaxScanRows bounds the auto-placement search.
const MaxScanRows = 100

// Default span for widgets added without one.
const (
	DefaultWidgetW = 4
	DefaultWidgetH = 2
)

type cell struct{ x, y int }

// AutoPlace finds the first top-left origin, scanning rows from y=0 and
// columns from x=0, where a w by h rect overlaps no placed rect. When none
// exists within MaxScanRows rows it falls back to (0, len(placed)).
func AutoPlace(placed []models.Rect, w, h, columns int) models.Rect {
	w = clamp(w, 1, max(columns, 1))
	h = max(h, 1)

	occupied := make(map[cell]struct{})
	for _, r := range placed {
		for y := r.Y; y < r.Y+r.H; y++ {
			for x := r.X; x < r.X+r.W; x++ {
				occupied[cell{x, y}] = struct{}{}
			}
		}
	}

	for y := 0; y < MaxScanRows; y++ {
		for x := 0; x <= columns-w; x++ {
			if free(occupied, x, y, w, h) {
				return models.Rect{X: x, Y: y, W: w, H: h}
			}
		}
	}
	return models.Rect{X: 0, Y: len(placed), W: w, H: h}
}

// Arrange normalizes every rect in place and auto-places, in order, the
// widgets that have none. Authored rects are reserved first so an
// auto-placed widget never lands on one.
func Arrange(widgets []models.WidgetConfig, columns int) {
	placed := make([]models.Rect, 0, len(widgets))
	for i := range widgets {
		if !widgets[i].Layout.IsZero() {
			widgets[i].Layout = widgets[i].Layout.Normalize()
			placed = append(placed, widgets[i].Layout)
		}
	}
	for i := range widgets {
		if widgets[i].Layout.IsZero() {
			widgets[i].Layout = AutoPlace(placed, DefaultWidgetW, DefaultWidgetH, columns).Normalize()
			placed = append(placed, widgets[i].Layout)
		}
	}
}

func free(occupied map[cell]struct{}, x, y, w, h int) bool {
	for dy := 0; dy < h; dy++ {
		for dx := 0; dx < w; dx++ {
			if _, taken := occupied[cell{x + dx, y + dy}]; taken {
				return false
			}
		}
	}
	return true
}

// Overlap names two widgets whose rects share a cell.
type Overlap struct {
	A string `json:"a"`
	B string `json:"b"`
}

// Overlaps lists every overlapping pair. Drops are not displaced, so a
// caller can use this to warn.
func Overlaps(widgets []models.WidgetConfig) []Overlap {
	var out []Overlap
	for i := 0; i < len(widgets); i++ {
		for j := i + 1; j < len(widgets); j++ {
			if widgets[i].Layout.Overlaps(widgets[j].Layout) {
				out = append(out, Overlap{A: widgets[i].ID, B: widgets[j].ID})
			}
		}
	}
	return out
}
