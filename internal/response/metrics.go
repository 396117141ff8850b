package response

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "facilityresponse"

var (
	incidentsDeclared = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "incidents",
			Name:      "declared_total",
			Help:      "Total incidents declared",
		},
		[]string{"category", "priority"},
	)

	incidentsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "incidents",
			Name:      "active",
			Help:      "Number of currently active incidents",
		},
	)

	autoActions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "response",
			Name:      "auto_actions_total",
			Help:      "Automated protocol actions by outcome",
		},
		[]string{"action", "status"},
	)

	actuationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "response",
			Name:      "actuation_failures_total",
			Help:      "Collaborator actuation failures by operation",
		},
		[]string{"operation"},
	)

	lockdownsInitiated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "response",
			Name:      "lockdowns_initiated_total",
			Help:      "Lockdowns initiated by level",
		},
		[]string{"level"},
	)

	evacuationsInitiated = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "response",
			Name:      "evacuations_initiated_total",
			Help:      "Evacuations initiated",
		},
	)

	incidentsResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "incidents",
			Name:      "resolved_total",
			Help:      "Incidents resolved by category",
		},
		[]string{"category"},
	)

	declareDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "response",
			Name:      "declare_duration_seconds",
			Help:      "Time to run the full declaration sequence",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)
)

func recordDeclared(category, priority string) {
	incidentsDeclared.WithLabelValues(category, priority).Inc()
}

func recordActiveCount(n int) {
	incidentsActive.Set(float64(n))
}

func recordAutoAction(action, status string) {
	autoActions.WithLabelValues(action, status).Inc()
}

func recordActuationFailure(operation string) {
	actuationFailures.WithLabelValues(operation).Inc()
}

func recordLockdown(level string) {
	lockdownsInitiated.WithLabelValues(level).Inc()
}

func recordEvacuation() {
	evacuationsInitiated.Inc()
}

func recordResolution(category string) {
	incidentsResolved.WithLabelValues(category).Inc()
}

func recordDeclareDuration(d time.Duration) {
	declareDuration.Observe(d.Seconds())
}
