package httpapi

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"tierd/internal/router"
	"tierd/pkg/types"
)

func scrape(t *testing.T) []byte {
	t.Helper()
	mrr := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(mrr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if mrr.Code != http.StatusOK {
		t.Fatalf("/metrics status=%d", mrr.Code)
	}
	return mrr.Body.Bytes()
}

func TestMetricsMiddleware_EmitsRequestCounters(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	rr := httptest.NewRecorder()
	MetricsMiddleware(next).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/test", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if body := scrape(t); !bytes.Contains(body, []byte("tierd_http_requests_total")) {
		t.Fatalf("expected tierd_http_requests_total in metrics")
	}
}

// Parameterised routes must share one series.
func TestMetricsMiddleware_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(MetricsMiddleware)
	r.Get("/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	for _, id := range []string{"a", "b"} {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/sessions/"+id, nil))
	}
	body := scrape(t)
	if !bytes.Contains(body, []byte(`path="/sessions/{id}"`)) {
		t.Fatalf("expected route pattern label in metrics")
	}
	if bytes.Contains(body, []byte(`path="/sessions/a"`)) {
		t.Fatalf("raw path leaked into labels")
	}
}

func TestIncrementBackpressure_IncrementsCounter(t *testing.T) {
	baseline := testutil.ToFloat64(backpressureTotal.WithLabelValues("rate_limit"))
	IncrementBackpressure("rate_limit")
	IncrementBackpressure("rate_limit")
	if got := testutil.ToFloat64(backpressureTotal.WithLabelValues("rate_limit")); got < baseline+2 {
		t.Fatalf("expected backpressure counter >= %v, got %v", baseline+2, got)
	}

	before := testutil.ToFloat64(backpressureTotal.WithLabelValues("unspecified"))
	IncrementBackpressure("")
	if after := testutil.ToFloat64(backpressureTotal.WithLabelValues("unspecified")); after < before+1 {
		t.Fatalf("expected unspecified reason to increment: before=%v after=%v", before, after)
	}
}

func TestInferMetrics_TierAndFailureSeries(t *testing.T) {
	h := NewMux(&mockService{ready: true})
	if w := postJSON(h, "/infer", `{"query":"welcher befehl zeigt ports?"}`); w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	if body := scrape(t); !bytes.Contains(body, []byte(`tierd_http_infer_duration_seconds_count{classified="",fallback="false",tier="light"}`)) {
		t.Fatalf("expected per-tier infer duration series")
	}

	before := testutil.ToFloat64(inferFailuresTotal.WithLabelValues("503"))
	h = NewMux(&mockService{ready: true, inferErr: router.ErrServiceUnavailable(types.TierLight, errors.New("refused"))})
	if w := postJSON(h, "/infer", `{"query":"hallo welt"}`); w.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", w.Code)
	}
	if after := testutil.ToFloat64(inferFailuresTotal.WithLabelValues("503")); after != before+1 {
		t.Fatalf("infer failures: before=%v after=%v", before, after)
	}
}
