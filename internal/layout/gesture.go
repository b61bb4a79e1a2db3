package layout

import (
	"math"

	"github.com/GregMSThompson/gridboard/internal/models"
)

type PointerKind string

const (
	PointerDown   PointerKind = "down"
	PointerMove   PointerKind = "move"
	PointerUp     PointerKind = "up"
	PointerCancel PointerKind = "cancel"
)

// Handle is the part of a widget a pointer went down on.
type Handle string

const (
	HandleMove   Handle = "move"
	HandleResize Handle = "resize"
)

// PointerEvent is one discrete pointer input. X and Y are relative to the
// grid origin.
type PointerEvent struct {
	Kind      PointerKind `json:"kind"`
	PointerID int         `json:"pointerId"`
	WidgetID  string      `json:"widgetId"`
	Handle    Handle      `json:"handle,omitempty"`
	X         float64     `json:"x"`
	Y         float64     `json:"y"`
}

type Phase string

const (
	PhaseIdle     Phase = "idle"
	PhaseDragging Phase = "dragging"
	PhaseResizing Phase = "resizing"
)

// Gesture is the transient state of one widget being dragged or resized.
type Gesture struct {
	Phase     Phase
	WidgetID  string
	PointerID int
	// Origin is the rect at pointer-down; a cancel restores it.
	Origin models.Rect
	// Candidate is the placeholder rect the widget commits to on release.
	Candidate models.Rect
	// Floating is the pixel rect the dragged widget is drawn at.
	Floating PixelRect

	grabX, grabY   float64
	startX, startY float64
	startW, startH float64
}

// TransitionKind reports what a pointer event did.
type TransitionKind string

const (
	TransitionNone      TransitionKind = "none"
	TransitionStarted   TransitionKind = "started"
	TransitionMoved     TransitionKind = "moved"
	TransitionCommitted TransitionKind = "committed"
	TransitionCancelled TransitionKind = "cancelled"
)

type Transition struct {
	Kind     TransitionKind
	Phase    Phase
	WidgetID string
	Rect     models.Rect
	Floating PixelRect
}

// Gestures is the state machine for every widget: idle, dragging(origin,
// pointer) or resizing(origin, pointer). At most one gesture runs per
// widget and each is bound to the pointer that started it.
type Gestures struct {
	active map[string]*Gesture
}

func NewGestures() *Gestures {
	return &Gestures{active: make(map[string]*Gesture)}
}

// Phase of the widget's gesture, idle when none runs.
func (g *Gestures) Phase(widgetID string) Phase {
	if st, ok := g.active[widgetID]; ok {
		return st.Phase
	}
	return PhaseIdle
}

func (g *Gestures) Active(widgetID string) (Gesture, bool) {
	st, ok := g.active[widgetID]
	if !ok {
		return Gesture{}, false
	}
	return *st, true
}

// Handle advances the machine. current is the widget's placed rect, used
// only on pointer-down.
func (g *Gestures) Handle(ev PointerEvent, grid Grid, current models.Rect) Transition {
	none := Transition{Kind: TransitionNone, Phase: g.Phase(ev.WidgetID), WidgetID: ev.WidgetID}

	st, busy := g.active[ev.WidgetID]
	if busy && st.PointerID != ev.PointerID {
		return none
	}

	switch ev.Kind {
	case PointerDown:
		if busy {
			return none
		}
		return g.start(ev, grid, current)
	case PointerMove:
		if !busy {
			return none
		}
		g.move(st, ev, grid)
		return Transition{Kind: TransitionMoved, Phase: st.Phase, WidgetID: ev.WidgetID, Rect: st.Candidate, Floating: st.Floating}
	case PointerUp:
		if !busy {
			return none
		}
		g.move(st, ev, grid)
		delete(g.active, ev.WidgetID)
		return Transition{Kind: TransitionCommitted, Phase: st.Phase, WidgetID: ev.WidgetID, Rect: st.Candidate}
	case PointerCancel:
		if !busy {
			return none
		}
		delete(g.active, ev.WidgetID)
		return Transition{Kind: TransitionCancelled, Phase: st.Phase, WidgetID: ev.WidgetID, Rect: st.Origin}
	}
	return none
}

func (g *Gestures) start(ev PointerEvent, grid Grid, current models.Rect) Transition {
	px := grid.Pixels(grid.Visual(current))
	st := &Gesture{
		WidgetID:  ev.WidgetID,
		PointerID: ev.PointerID,
		Origin:    current,
		Candidate: current,
		Floating:  px,
		grabX:     ev.X - px.Left,
		grabY:     ev.Y - px.Top,
		startX:    ev.X,
		startY:    ev.Y,
		// Footprints include one trailing gap so that a zero delta
		// rounds back to the current span.
		startW: float64(current.W) * grid.PitchX(),
		startH: float64(current.H) * grid.CellHeight(),
	}
	switch ev.Handle {
	case HandleResize:
		st.Phase = PhaseResizing
	default:
		st.Phase = PhaseDragging
	}
	g.active[ev.WidgetID] = st
	return Transition{Kind: TransitionStarted, Phase: st.Phase, WidgetID: ev.WidgetID, Rect: current, Floating: px}
}

func (g *Gestures) move(st *Gesture, ev PointerEvent, grid Grid) {
	switch st.Phase {
	case PhaseDragging:
		st.Floating.Left = ev.X - st.grabX
		st.Floating.Top = ev.Y - st.grabY
		x, y := grid.CellAt(ev.X, ev.Y, st.Origin.W)
		st.Candidate.X, st.Candidate.Y = x, y
	case PhaseResizing:
		cand := st.Origin
		if pitch := grid.PitchX(); pitch > 0 {
			cand.W = spanFor(st.startW+ev.X-st.startX, pitch)
		}
		if pitch := grid.CellHeight(); pitch > 0 {
			cand.H = spanFor(st.startH+ev.Y-st.startY, pitch)
		}
		cand.W = max(cand.W, cand.MinW)
		cand.H = max(cand.H, cand.MinH)
		if grid.Columns > 0 {
			cand.W = min(cand.W, max(grid.Columns-cand.X, 1))
		}
		st.Candidate = cand
		p := grid.Pixels(cand)
		st.Floating.Width, st.Floating.Height = p.Width, p.Height
	}
}

func spanFor(px, pitch float64) int {
	return max(int(math.Round(px/pitch)), 1)
}
