package query

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/GregMSThompson/gridboard/internal/errs"
	"github.com/GregMSThompson/gridboard/internal/models"
	"github.com/GregMSThompson/gridboard/pkg/logger"
)

// Engine runs query pipelines: acquire, transform, map, cache.
// It is safe for concurrent use.
type Engine struct {
	client  *http.Client
	cache   *Cache
	sockets *socketPool
	log     *slog.Logger
	now     func() time.Time

	// base is cancelled by Close and scopes refresh executions.
	base   context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	timers map[string]*refreshTimer
}

type Option func(*Engine)

func WithHTTPClient(c *http.Client) Option {
	return func(e *Engine) { e.client = c }
}

func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithCache shares a cache between engines.
func WithCache(c *Cache) Option {
	return func(e *Engine) { e.cache = c }
}

// WithClock sets the time source for fetch timestamps and the cache.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func WithDialer(d Dialer) Option {
	return func(e *Engine) { e.sockets.dialer = d }
}

func NewEngine(opts ...Option) *Engine {
	ctx, cancel := context.WithCancel(context.Background())
	e := &Engine{
		client:  &http.Client{Timeout: 30 * time.Second},
		cache:   NewCache(),
		sockets: newSocketPool(websocket.DefaultDialer, nil),
		now:     time.Now,
		base:    ctx,
		cancel:  cancel,
		timers:  make(map[string]*refreshTimer),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = logger.OrDiscard(e.log)
	e.sockets.log = e.log
	e.cache.SetClock(e.now)
	return e
}

func (e *Engine) Cache() *Cache { return e.cache }

// Execute runs the pipeline for cfg. vars are the caller's variables (for
// example dashboard filters); cfg.Variables override them key by key.
func (e *Engine) Execute(ctx context.Context, cfg models.QueryConfig, vars map[string]any) (Result, error) {
	effective := mergeVars(vars, cfg.Variables)

	records, err := e.acquireCached(ctx, cfg, effective)
	if err != nil {
		return Result{}, err
	}
	return e.shape(records, cfg), nil
}

func (e *Engine) shape(records []models.Record, cfg models.QueryConfig) Result {
	out := Map(Transform(records, cfg.Transforms, e.log), cfg.Mapping)
	out.FetchedAt = e.now()
	return out
}

// acquireCached consults the cache when it is enabled for cfg. Static data
// is never cached and neither are websocket sources, where every call waits
// for a fresh message.
func (e *Engine) acquireCached(ctx context.Context, cfg models.QueryConfig, vars map[string]any) ([]models.Record, error) {
	ttl := cfg.Cache.TTL.Std()
	if !cfg.Cache.Enabled || ttl <= 0 || cfg.SourceType == models.SourceStatic || cfg.SourceType == models.SourceWebSocket {
		return e.acquire(ctx, cfg, vars)
	}

	key := CacheKey(cfg, vars)
	if records, ok := e.cache.Get(key, ttl); ok {
		metricCacheHits.Inc()
		return records, nil
	}
	metricCacheMisses.Inc()

	return e.cache.do(key, func() ([]models.Record, error) {
		if records, ok := e.cache.Get(key, ttl); ok {
			return records, nil
		}
		records, err := e.acquire(ctx, cfg, vars)
		if err != nil {
			return nil, err
		}
		e.cache.Set(key, records)
		return records, nil
	})
}

func (e *Engine) acquire(ctx context.Context, cfg models.QueryConfig, vars map[string]any) ([]models.Record, error) {
	source := string(cfg.SourceType)
	var (
		records []models.Record
		err     error
	)
	switch cfg.SourceType {
	case models.SourceStatic:
		records = e.acquireStatic(cfg)
	case models.SourceSQL:
		records, err = e.acquireSQL(ctx, cfg, vars)
	case models.SourceAPI:
		records, err = e.acquireAPI(ctx, cfg, vars)
	case models.SourceWebSocket:
		records, err = e.acquireWebSocket(ctx, cfg)
	case "":
		return nil, errs.NewConfigurationError("sourceType", "query has no source type")
	default:
		return nil, errs.NewConfigurationError("sourceType", fmt.Sprintf("unknown source type %q", cfg.SourceType))
	}

	metricAcquisitions.WithLabelValues(source).Inc()
	if err != nil {
		metricAcquisitionErrors.WithLabelValues(source).Inc()
		e.log.Debug("acquisition failed", "source", source, "endpoint", cfg.Source.Endpoint, "error", err)
		return nil, err
	}
	return records, nil
}

// OnPush registers fn for every message a websocket source sends, shaped by
// cfg's transforms and mapping. The returned func unsubscribes.
func (e *Engine) OnPush(cfg models.QueryConfig, fn func(Result)) func() {
	return e.sockets.subscribe(cfg.Source.Endpoint, func(records []models.Record) {
		fn(e.shape(records, cfg))
	})
}

// OpenSockets reports how many websocket sources are connected.
func (e *Engine) OpenSockets() int { return e.sockets.open() }

// Close stops every refresh timer and closes websocket sources.
func (e *Engine) Close() {
	e.cancel()
	e.mu.Lock()
	timers := e.timers
	e.timers = make(map[string]*refreshTimer)
	e.mu.Unlock()
	for _, t := range timers {
		t.stop()
	}
	e.sockets.closeAll()
}
