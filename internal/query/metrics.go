package query

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricAcquisitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gridboard",
		Subsystem: "query",
		Name:      "acquisitions_total",
		Help:      "Data acquisitions performed, by source type.",
	}, []string{"source"})
	metricAcquisitionErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gridboard",
		Subsystem: "query",
		Name:      "acquisition_errors_total",
		Help:      "Failed data acquisitions, by source type.",
	}, []string{"source"})
	metricCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gridboard",
		Subsystem: "query",
		Name:      "cache_hits_total",
		Help:      "Query cache reads that returned a fresh entry.",
	})
	metricCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "gridboard",
		Subsystem: "query",
		Name:      "cache_misses_total",
		Help:      "Query cache reads that found no fresh entry.",
	})
	metricActiveSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "gridboard",
		Subsystem: "query",
		Name:      "websockets_active",
		Help:      "Open websocket source connections.",
	})
)
