package service

import "github.com/prometheus/client_golang/prometheus"

var (
	inferRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tierd",
			Subsystem: "service",
			Name:      "infer_requests_total",
			Help:      "Inference requests by outcome",
		},
		[]string{"outcome"},
	)

	confidenceScore = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tierd",
			Subsystem: "service",
			Name:      "confidence_score",
			Help:      "Confidence of answers by tier used",
			Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
		},
		[]string{"tier"},
	)

	escalationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tierd",
			Subsystem: "service",
			Name:      "escalations_total",
			Help:      "Answers flagged for escalation by tier used",
		},
		[]string{"tier"},
	)

	sessionsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "tierd",
			Subsystem: "service",
			Name:      "sessions_expired_total",
			Help:      "Sessions removed by the cleanup job",
		},
	)
)

func init() {
	prometheus.MustRegister(inferRequestsTotal, confidenceScore, escalationsTotal, sessionsExpiredTotal)
}
