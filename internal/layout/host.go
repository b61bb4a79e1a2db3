package layout

import (
	"sort"
	"sync"

	"github.com/GregMSThompson/gridboard/internal/widget"
)

// Host owns the surfaces widgets render into.
type Host interface {
	// Mount creates the container for a widget at a pixel rect.
	Mount(id string, r PixelRect) widget.Container
	// Place moves or resizes a mounted container.
	Place(id string, r PixelRect)
	Unmount(id string)
}

// MemoryHost keeps containers in memory. It is the host for server-side
// rendering and tests.
type MemoryHost struct {
	mu         sync.RWMutex
	containers map[string]*widget.MemoryContainer
	rects      map[string]PixelRect
}

func NewMemoryHost() *MemoryHost {
	return &MemoryHost{
		containers: make(map[string]*widget.MemoryContainer),
		rects:      make(map[string]PixelRect),
	}
}

func (h *MemoryHost) Mount(id string, r PixelRect) widget.Container {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.containers[id]
	if !ok {
		c = widget.NewMemoryContainer(int(r.Width), int(r.Height))
		h.containers[id] = c
	} else {
		c.SetSize(int(r.Width), int(r.Height))
	}
	h.rects[id] = r
	return c
}

func (h *MemoryHost) Place(id string, r PixelRect) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.containers[id]
	if !ok {
		return
	}
	c.SetSize(int(r.Width), int(r.Height))
	h.rects[id] = r
}

func (h *MemoryHost) Unmount(id string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.containers, id)
	delete(h.rects, id)
}

func (h *MemoryHost) Container(id string) (*widget.MemoryContainer, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.containers[id]
	return c, ok
}

func (h *MemoryHost) Rect(id string) (PixelRect, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	r, ok := h.rects[id]
	return r, ok
}

// IDs returns the mounted widget ids, sorted.
func (h *MemoryHost) IDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.containers))
	for id := range h.containers {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
