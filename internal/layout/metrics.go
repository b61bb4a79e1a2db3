package layout

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var metricWidgetsMounted = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "gridboard",
	Subsystem: "layout",
	Name:      "widgets_mounted",
	Help:      "Widgets mounted on the most recently changed dashboard.",
})
