package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHTTPMiddlewareCountsRequestsByNormalizedPath(t *testing.T) {
	m := NewHTTPServerMetrics("rrr-api")
	handler := m.Middleware("rrr-api", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/query" {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))

	for _, path := range []string{"/v1/query", "/healthz", "/random/123"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.ToFloat64(m.requestTotal.WithLabelValues("rrr-api", http.MethodGet, "/v1/query", "502")); got != 1 {
		t.Fatalf("expected one 502 on /v1/query, got %v", got)
	}
	if got := testutil.ToFloat64(m.requestTotal.WithLabelValues("rrr-api", http.MethodGet, "other", "200")); got != 1 {
		t.Fatalf("expected unknown path collapsed to other, got %v", got)
	}
	if got := testutil.ToFloat64(m.requestInFlight); got != 0 {
		t.Fatalf("expected in-flight gauge back to zero, got %v", got)
	}
}

func TestQueryMetricsSharesHTTPRegistry(t *testing.T) {
	httpMetrics := NewHTTPServerMetrics("rrr-api")
	q := NewQueryMetrics("rrr-api", httpMetrics.Registerer())

	q.ObserveQuery("success", 2, 1.5)
	q.ObserveQuery("decomposition_format", 0, 0.2)
	q.ObserveUnknownCategory("PARIS")
	q.ObserveRetrieval("VAN_GOGH", 3)
	q.ObserveUnknownCategory(strings.Repeat("X", 80))

	if got := testutil.ToFloat64(q.queriesTotal.WithLabelValues("rrr-api", "success")); got != 1 {
		t.Fatalf("expected one successful query, got %v", got)
	}
	if got := testutil.ToFloat64(q.unknownCategories.WithLabelValues("rrr-api", "PARIS")); got != 1 {
		t.Fatalf("expected one unknown PARIS, got %v", got)
	}
	if got := testutil.ToFloat64(q.unknownCategories.WithLabelValues("rrr-api", "overlong")); got != 1 {
		t.Fatalf("expected overlong category collapsed, got %v", got)
	}

	rec := httptest.NewRecorder()
	httpMetrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	for _, name := range []string{"rrr_query_total", "rrr_query_sub_questions", "rrr_retrieval_fragments"} {
		if !strings.Contains(body, name) {
			t.Fatalf("expected %s in exposition", name)
		}
	}
}

func TestWorkerMetricsObserveRequest(t *testing.T) {
	m := NewWorkerMetrics("rrr-worker")
	m.IncInFlight()
	if got := testutil.ToFloat64(m.requestInFlight); got != 1 {
		t.Fatalf("expected in-flight 1, got %v", got)
	}
	m.DecInFlight()
	m.ObserveRequest("success", 300*time.Millisecond)
	m.ObserveRequest("", time.Second)

	if got := testutil.ToFloat64(m.requestTotal.WithLabelValues("rrr-worker", "success")); got != 1 {
		t.Fatalf("expected one success, got %v", got)
	}
	if got := testutil.ToFloat64(m.requestTotal.WithLabelValues("rrr-worker", "unknown")); got != 1 {
		t.Fatalf("expected blank status recorded as unknown, got %v", got)
	}
}

func TestDependencyMetricsBreakerState(t *testing.T) {
	m := NewDependencyMetrics("rrr-api", NewHTTPServerMetrics("rrr-api").Registerer())
	m.ObserveRetry("ollama.generate")
	m.ObserveRetry("ollama.generate")
	m.ObserveBreakerState("neo4j.search_triplets", "open")

	if got := testutil.ToFloat64(m.retriesTotal.WithLabelValues("ollama.generate")); got != 2 {
		t.Fatalf("expected 2 retries, got %v", got)
	}
	if got := testutil.ToFloat64(m.breakerState.WithLabelValues("neo4j.search_triplets")); got != 2 {
		t.Fatalf("expected open state encoded as 2, got %v", got)
	}
	m.ObserveBreakerState("neo4j.search_triplets", "closed")
	if got := testutil.ToFloat64(m.breakerState.WithLabelValues("neo4j.search_triplets")); got != 0 {
		t.Fatalf("expected closed state encoded as 0, got %v", got)
	}
}
