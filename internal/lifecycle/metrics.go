package lifecycle

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IncidentsCreated counts created incidents by severity.
	IncidentsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "incidentpulse",
			Subsystem: "lifecycle",
			Name:      "incidents_created_total",
			Help:      "Total number of incidents created",
		},
		[]string{"severity"},
	)

	// StatusTransitions counts applied status transitions.
	StatusTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "incidentpulse",
			Subsystem: "lifecycle",
			Name:      "status_transitions_total",
			Help:      "Total number of applied status transitions",
		},
		[]string{"from", "to"},
	)
)
