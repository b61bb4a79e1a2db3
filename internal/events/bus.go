// Package events carries dashboard notifications to external collaborators
// such as configurators, theme builders and the HTTP event stream.
package events

import (
	"sync"
	"time"

	"github.com/GregMSThompson/gridboard/internal/models"
)

const (
	TopicWidgetAdd     = "widget:add"
	TopicWidgetEdit    = "widget:edit"
	TopicWidgetRemove  = "widget:remove"
	TopicDashboardSave = "dashboard:save"
	// TopicWidgetData is published when a server-side refresh produced data.
	TopicWidgetData = "widget:data"

	// TopicAll subscribes to every topic.
	TopicAll = "*"
)

type Event struct {
	Topic       string                  `json:"topic"`
	DashboardID string                  `json:"dashboardId"`
	Widget      *models.WidgetConfig    `json:"widget,omitempty"`
	Dashboard   *models.DashboardConfig `json:"dashboard,omitempty"`
	Data        any                     `json:"data,omitempty"`
	At          time.Time               `json:"at"`
}

// Bus is an in-process publish/subscribe hub. Handlers run synchronously on
// the publishing goroutine and must not block.
type Bus struct {
	mu     sync.RWMutex
	subs   map[string]map[int]func(Event)
	nextID int
	now    func() time.Time
}

func NewBus() *Bus {
	return &Bus{subs: make(map[string]map[int]func(Event)), now: time.Now}
}

// Subscribe registers fn for topic and returns a func that removes it.
func (b *Bus) Subscribe(topic string, fn func(Event)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	if b.subs[topic] == nil {
		b.subs[topic] = make(map[int]func(Event))
	}
	b.subs[topic][id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.subs[topic], id)
			if len(b.subs[topic]) == 0 {
				delete(b.subs, topic)
			}
		})
	}
}

func (b *Bus) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = b.now()
	}
	b.mu.RLock()
	fns := make([]func(Event), 0, len(b.subs[ev.Topic])+len(b.subs[TopicAll]))
	for _, fn := range b.subs[ev.Topic] {
		fns = append(fns, fn)
	}
	if ev.Topic != TopicAll {
		for _, fn := range b.subs[TopicAll] {
			fns = append(fns, fn)
		}
	}
	b.mu.RUnlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// Subscribers reports how many handlers are registered for topic.
func (b *Bus) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}
