package query

import (
	"time"

	"github.com/GregMSThompson/gridboard/internal/models"
)

type refreshTimer struct {
	ticker *time.Ticker
	done   chan struct{}
}

// stop does not wait for an in-flight execution; its outcome is dropped.
func (t *refreshTimer) stop() {
	t.ticker.Stop()
	close(t.done)
}

// StartRefresh re-executes cfg every interval and hands each outcome to
// onResult or onError. A zero interval falls back to cfg.Refresh.Interval.
// Starting a refresh for a source that already has one replaces it, so at
// most one timer runs per source key. It returns that key, or "" when no
// usable interval is configured.
func (e *Engine) StartRefresh(cfg models.QueryConfig, vars map[string]any, interval time.Duration, onResult func(Result), onError func(error)) string {
	if interval <= 0 {
		interval = cfg.Refresh.Interval.Std()
	}
	if interval <= 0 {
		return ""
	}
	key := CacheKey(cfg, mergeVars(vars, cfg.Variables))

	t := &refreshTimer{
		ticker: time.NewTicker(interval),
		done:   make(chan struct{}),
	}

	e.mu.Lock()
	if e.base.Err() != nil {
		e.mu.Unlock()
		t.ticker.Stop()
		return ""
	}
	prev := e.timers[key]
	e.timers[key] = t
	e.mu.Unlock()
	if prev != nil {
		prev.stop()
	}

	go func() {
		for {
			select {
			case <-t.done:
				return
			case <-e.base.Done():
				return
			case <-t.ticker.C:
				res, err := e.Execute(e.base, cfg, vars)
				select {
				case <-t.done:
					return
				default:
				}
				if err != nil {
					if onError != nil {
						onError(err)
					} else {
						e.log.Warn("refresh failed", "source", cfg.SourceType, "error", err)
					}
					continue
				}
				if onResult != nil {
					onResult(res)
				}
			}
		}
	}()
	e.log.Debug("refresh started", "source", cfg.SourceType, "interval", interval)
	return key
}

// StopRefresh stops the timer for key. Unknown keys are ignored.
func (e *Engine) StopRefresh(key string) {
	e.mu.Lock()
	t := e.timers[key]
	delete(e.timers, key)
	e.mu.Unlock()
	if t != nil {
		t.stop()
	}
}

// ActiveRefreshes reports the number of running refresh timers.
func (e *Engine) ActiveRefreshes() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.timers)
}
