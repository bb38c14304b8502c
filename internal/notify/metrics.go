package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DispatchTotal counts notification dispatch attempts by gateway and outcome.
var DispatchTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "incidentpulse",
		Subsystem: "notify",
		Name:      "dispatch_total",
		Help:      "Total number of notification dispatch attempts",
	},
	[]string{"gateway", "outcome"},
)
