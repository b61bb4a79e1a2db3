package query

import (
	"encoding/json"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/GregMSThompson/gridboard/internal/models"
)

type cacheEntry struct {
	records []models.Record
	written time.Time
}

// Cache stores acquired records keyed by CacheKey. Entries expire ttl after
// they were written; expiry is only checked on read.
type Cache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
	now     func() time.Time
	flight  singleflight.Group
}

func NewCache() *Cache {
	return &Cache{entries: make(map[string]cacheEntry), now: time.Now}
}

// SetClock replaces the time source, for tests.
func (c *Cache) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Get returns the entry for key if it was written less than ttl ago.
// Stale entries are dropped.
func (c *Cache) Get(key string, ttl time.Duration) ([]models.Record, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.now().Sub(e.written) >= ttl {
		delete(c.entries, key)
		return nil, false
	}
	return e.records, true
}

// Set writes records under key. Writing the same key twice is last writer wins.
func (c *Cache) Set(key string, records []models.Record) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{records: records, written: c.now()}
}

func (c *Cache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]cacheEntry)
}

func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// do collapses concurrent loads of the same key into one call.
func (c *Cache) do(key string, load func() ([]models.Record, error)) ([]models.Record, error) {
	v, err, _ := c.flight.Do(key, func() (any, error) {
		return load()
	})
	if err != nil {
		return nil, err
	}
	return v.([]models.Record), nil
}

type cacheKeyParts struct {
	SourceType models.SourceType   `json:"sourceType"`
	Source     models.Source       `json:"source"`
	RawQuery   string              `json:"rawQuery"`
	Query      *models.VisualQuery `json:"query"`
	Variables  map[string]any      `json:"variables"`
}

// CacheKey serializes {source, rawQuery, query, variables}. encoding/json
// sorts map keys, so equal inputs always produce equal keys.
func CacheKey(cfg models.QueryConfig, vars map[string]any) string {
	b, err := json.Marshal(cacheKeyParts{
		SourceType: cfg.SourceType,
		Source:     cfg.Source,
		RawQuery:   cfg.RawQuery,
		Query:      cfg.Query,
		Variables:  vars,
	})
	if err != nil {
		// Fall back to the coarse identity of the source.
		return string(cfg.SourceType) + "|" + cfg.Source.Endpoint + "|" + cfg.RawQuery + "|" + err.Error()
	}
	return string(b)
}
