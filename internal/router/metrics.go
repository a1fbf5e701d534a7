package router

import "github.com/prometheus/client_golang/prometheus"

var (
	tierSelectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tierd",
			Subsystem: "router",
			Name:      "tier_selections_total",
			Help:      "Routing decisions by classified and selected tier",
		},
		[]string{"classified", "selected"},
	)

	fallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tierd",
			Subsystem: "router",
			Name:      "fallbacks_total",
			Help:      "Fallbacks applied, by reason",
		},
		[]string{"reason"},
	)

	backendDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tierd",
			Subsystem: "router",
			Name:      "backend_duration_seconds",
			Help:      "Backend invocation latency by tier and outcome",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"tier", "outcome"},
	)

	idleUnloadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tierd",
			Subsystem: "router",
			Name:      "idle_unloads_total",
			Help:      "Idle unload signals emitted per tier",
		},
		[]string{"tier"},
	)

	eventsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tierd",
			Subsystem: "router",
			Name:      "events_dropped_total",
			Help:      "Events dropped by a publisher whose queue was full",
		},
		[]string{"publisher"},
	)

	currentTierGauge = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tierd",
			Subsystem: "router",
			Name:      "current_tier",
			Help:      "Current tier (0 light, 1 specialized, 2 heavy)",
		},
	)
)

// Fallback reasons.
const (
	reasonResource = "resource"
	reasonDeclined = "declined"
	reasonBackend  = "backend"
)

func init() {
	prometheus.MustRegister(tierSelectionsTotal, fallbacksTotal, backendDuration, idleUnloadsTotal, eventsDroppedTotal, currentTierGauge)
}
