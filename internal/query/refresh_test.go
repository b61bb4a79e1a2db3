package query

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GregMSThompson/gridboard/internal/models"
)

func TestStartRefresh_DeliversResults(t *testing.T) {
	e := NewEngine()
	defer e.Close()

	results := make(chan Result, 8)
	key := e.StartRefresh(models.QueryConfig{
		SourceType: models.SourceStatic,
		Data:       []models.Record{{"v": 1}},
	}, nil, 10*time.Millisecond, func(r Result) {
		select {
		case results <- r:
		default:
		}
	}, nil)
	require.NotEmpty(t, key)

	select {
	case r := <-results:
		assert.Equal(t, 1, r.Data[0]["v"])
	case <-time.After(time.Second):
		t.Fatal("no refresh delivered")
	}
}

func TestStartRefresh_ReplacesTimerForSameSource(t *testing.T) {
	e := NewEngine()
	defer e.Close()

	cfg := models.QueryConfig{SourceType: models.SourceStatic, Data: []models.Record{{"v": 1}}}
	var firstCalls, secondCalls atomic.Int32

	k1 := e.StartRefresh(cfg, nil, 5*time.Millisecond, func(Result) { firstCalls.Add(1) }, nil)
	k2 := e.StartRefresh(cfg, nil, 5*time.Millisecond, func(Result) { secondCalls.Add(1) }, nil)

	assert.Equal(t, k1, k2)
	assert.Equal(t, 1, e.ActiveRefreshes())

	require.Eventually(t, func() bool { return secondCalls.Load() >= 2 }, time.Second, 5*time.Millisecond)
	before := firstCalls.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, before, firstCalls.Load(), "replaced timer must stop firing")
}

func TestStartRefresh_DistinctSources(t *testing.T) {
	e := NewEngine()
	defer e.Close()

	a := models.QueryConfig{SourceType: models.SourceAPI, Source: models.Source{Endpoint: "http://a.test"}}
	b := models.QueryConfig{SourceType: models.SourceAPI, Source: models.Source{Endpoint: "http://b.test"}}
	ka := e.StartRefresh(a, nil, time.Hour, nil, func(error) {})
	kb := e.StartRefresh(b, nil, time.Hour, nil, func(error) {})

	assert.NotEqual(t, ka, kb)
	assert.Equal(t, 2, e.ActiveRefreshes())

	e.StopRefresh(ka)
	assert.Equal(t, 1, e.ActiveRefreshes())
	e.StopRefresh("unknown")
	assert.Equal(t, 1, e.ActiveRefreshes())

	e.Close()
	assert.Equal(t, 0, e.ActiveRefreshes())
	assert.Empty(t, e.StartRefresh(a, nil, time.Hour, nil, nil), "closed engine starts no timers")
}

func TestStartRefresh_UsesConfiguredInterval(t *testing.T) {
	e := NewEngine()
	defer e.Close()

	cfg := models.QueryConfig{SourceType: models.SourceStatic}
	assert.Empty(t, e.StartRefresh(cfg, nil, 0, nil, nil), "no interval configured")

	cfg.Refresh = models.RefreshConfig{Enabled: true, Interval: models.Duration(time.Hour)}
	assert.NotEmpty(t, e.StartRefresh(cfg, nil, 0, nil, nil))
}

func TestStartRefresh_ReportsErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	e := NewEngine(WithHTTPClient(srv.Client()))
	defer e.Close()

	errCh := make(chan error, 4)
	e.StartRefresh(models.QueryConfig{
		SourceType: models.SourceAPI,
		Source:     models.Source{Endpoint: srv.URL},
	}, nil, 10*time.Millisecond, nil, func(err error) {
		select {
		case errCh <- err:
		default:
		}
	})

	select {
	case err := <-errCh:
		assert.Contains(t, err.Error(), "503")
	case <-time.After(time.Second):
		t.Fatal("no error reported")
	}
}
