package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"tierd/pkg/types"
)

// Inference runs from sub-second light answers to multi-minute heavy ones.
var inferBuckets = []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300}

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tierd",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by route pattern, method and status",
		},
		[]string{"path", "method", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tierd",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route pattern and method",
			Buckets:   append([]float64{0.005, 0.025}, inferBuckets...),
		},
		[]string{"path", "method"},
	)

	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "tierd",
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "In-flight HTTP requests",
		},
	)

	backpressureTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tierd",
			Subsystem: "http",
			Name:      "backpressure_total",
			Help:      "Requests rejected with 429, by reason",
		},
		[]string{"reason"},
	)

	inferDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "tierd",
			Subsystem: "http",
			Name:      "infer_duration_seconds",
			Help:      "Answered /infer requests by tier used, classified tier and whether a fallback applied",
			Buckets:   inferBuckets,
		},
		[]string{"tier", "classified", "fallback"},
	)

	inferFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "tierd",
			Subsystem: "http",
			Name:      "infer_failures_total",
			Help:      "Failed /infer requests by response status",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal, httpRequestDuration, httpInflight, backpressureTotal,
		inferDuration, inferFailuresTotal)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// MetricsMiddleware instruments requests for Prometheus. The path label is
// read after routing so that parameterised routes share one series.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httpInflight.Inc()
		defer httpInflight.Dec()

		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sr, r)
		path := routePatternOrPath(r)
		httpRequestsTotal.WithLabelValues(path, r.Method, strconv.Itoa(sr.status)).Inc()
		httpRequestDuration.WithLabelValues(path, r.Method).Observe(time.Since(start).Seconds())
	})
}

func routePatternOrPath(r *http.Request) string {
	if rc := chi.RouteContext(r.Context()); rc != nil {
		if p := rc.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}

// IncrementBackpressure is called when returning 429 to the client
func IncrementBackpressure(reason string) {
	if reason == "" {
		reason = "unspecified"
	}
	backpressureTotal.WithLabelValues(reason).Inc()
}

func observeInfer(resp types.InferResponse, start time.Time) {
	inferDuration.WithLabelValues(resp.TierUsed, resp.ClassifiedTier, strconv.FormatBool(resp.FallbackApplied)).
		Observe(time.Since(start).Seconds())
}

func observeInferFailure(status int) {
	inferFailuresTotal.WithLabelValues(strconv.Itoa(status)).Inc()
}
