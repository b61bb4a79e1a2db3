package widget

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/GregMSThompson/gridboard/internal/errs"
	"github.com/GregMSThompson/gridboard/internal/models"
	"github.com/GregMSThompson/gridboard/pkg/logger"
)

// Constructor builds an uninitialized widget.
type Constructor func(deps Deps) Widget

// Registry maps widget type tags to constructors. Registration stays open
// at runtime so hosts can add their own kinds.
type Registry struct {
	mu    sync.RWMutex
	kinds map[string]Constructor
	log   *slog.Logger
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{kinds: make(map[string]Constructor), log: logger.OrDiscard(log)}
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default is the process-wide registry the built-in kinds register into.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry(nil)
	})
	return defaultRegistry
}

// SetLogger replaces the logger used for unknown-type warnings.
func (r *Registry) SetLogger(log *slog.Logger) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log = logger.OrDiscard(log)
}

// Register adds or replaces the constructor for kind.
func (r *Registry) Register(kind string, ctor Constructor) error {
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return errs.NewValidationError("widget type is required")
	}
	if ctor == nil {
		return errs.NewValidationError(fmt.Sprintf("widget type %q has no constructor", kind))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds[kind] = ctor
	return nil
}

func (r *Registry) Lookup(kind string) (Constructor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ctor, ok := r.kinds[kind]
	return ctor, ok
}

// Kinds returns the registered type tags, sorted.
func (r *Registry) Kinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.kinds))
	for k := range r.kinds {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Create instantiates the kind named by cfg.Type. An unregistered type
// never fails: it is logged and a Stub is returned in its place.
func (r *Registry) Create(cfg models.WidgetConfig, deps Deps) Widget {
	ctor, ok := r.Lookup(cfg.Type)
	if !ok {
		r.mu.RLock()
		log := r.log
		r.mu.RUnlock()
		log.Warn("unknown widget type, using stub", "widget_id", cfg.ID, "widget_type", cfg.Type)
		return NewStub(deps)
	}
	return ctor(deps)
}

// Reset drops every registration. Tests use it to isolate the registry.
func (r *Registry) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = make(map[string]Constructor)
}

// Stub stands in for a widget whose type is not registered.
type Stub struct {
	*Base
}

func NewStub(deps Deps) *Stub {
	return &Stub{Base: NewBase(stubView{}, deps)}
}

type stubView struct{}

func (stubView) Configure(models.WidgetConfig) error { return nil }

func (stubView) Body(s Snapshot) template.HTML {
	return template.HTML(`<div class="widget-unknown">Unknown widget type: ` +
		template.HTMLEscapeString(s.Config.Type) + `</div>`)
}

// LoadData on a stub only renders; there is nothing to bind data to.
func (s *Stub) LoadData(_ context.Context) {
	s.Render()
}

// StartRefresh on a stub does nothing: the embedded timer would run the
// query through Base.LoadData.
func (s *Stub) StartRefresh() {}
