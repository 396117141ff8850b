// Package metrics holds the Prometheus collectors shared across packages.
// Feature-specific counters live in their own package's metrics.go; only
// the cross-cutting HTTP and database collectors are defined here.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "facilityresponse"

// HTTPRequestDuration observes request latency per method, route pattern
// and status code.
var HTTPRequestDuration = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Duration of HTTP requests",
		Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
	},
	[]string{"method", "route", "status_code"},
)

// DBPoolConnections gauges the pgx pool by connection state.
var DBPoolConnections = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "db",
		Name:      "pool_connections",
		Help:      "Database pool connections by state",
	},
	[]string{"state"},
)
