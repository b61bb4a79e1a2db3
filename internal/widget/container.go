package widget

import "sync"

// Container is the surface a widget renders into. SetContent replaces
// whatever was rendered before.
type Container interface {
	SetContent(markup string)
	Content() string
	Size() (width, height int)
}

// MemoryContainer keeps rendered markup in memory. It backs server-side
// rendering and tests.
type MemoryContainer struct {
	mu      sync.RWMutex
	content string
	width   int
	height  int
	writes  int
}

func NewMemoryContainer(width, height int) *MemoryContainer {
	return &MemoryContainer{width: width, height: height}
}

func (c *MemoryContainer) SetContent(markup string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.content = markup
	c.writes++
}

func (c *MemoryContainer) Content() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.content
}

func (c *MemoryContainer) Size() (int, int) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.width, c.height
}

func (c *MemoryContainer) SetSize(width, height int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.width, c.height = width, height
}

// Writes counts SetContent calls.
func (c *MemoryContainer) Writes() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.writes
}
