// metrics.go — Prometheus instruments for the dispatcher, scraped through
// the daemon's observability endpoint.
package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	dispatchCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "perftest",
		Subsystem: "api",
		Name:      "calls_total",
		Help:      "Number of dispatched api invocations.",
	}, []string{"api"})

	backendObjectGauge = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "perftest",
		Subsystem: "api",
		Name:      "backend_objects",
		Help:      "Live backend objects in the registry.",
	})
)
