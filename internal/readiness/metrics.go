package readiness

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var probeHealthy = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "facilityresponse",
		Subsystem: "readiness",
		Name:      "probe_healthy",
		Help:      "Whether the last run of a readiness probe succeeded",
	},
	[]string{"probe"},
)

func recordProbe(name string, healthy bool) {
	v := 0.0
	if healthy {
		v = 1.0
	}
	probeHealthy.WithLabelValues(name).Set(v)
}
