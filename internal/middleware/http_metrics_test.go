package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/create_stream", "/api/create_stream"},
		{"/api/join_stream", "/api/join_stream"},
		{"/api/raise_hand", "/api/raise_hand"},
		{"/metrics", "/metrics"},
		{"/api/does_not_exist", "/unknown"},
		{"/wp-admin/login.php", "/unknown"},
		{"/api/create_stream/extra", "/unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			if got := normalizePath(tt.path); got != tt.want {
				t.Errorf("normalizePath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

// gatherCounter returns the value of a counter metric with the given labels.
func gatherCounter(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if metricMatchesLabels(m, labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func metricMatchesLabels(m *dto.Metric, labels map[string]string) bool {
	got := make(map[string]string)
	for _, lp := range m.GetLabel() {
		got[lp.GetName()] = lp.GetValue()
	}
	for k, v := range labels {
		if got[k] != v {
			return false
		}
	}
	return true
}

func TestHTTPMetrics_RecordsRequests(t *testing.T) {
	metrics := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	handler := HTTPMetrics(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/create_stream", nil))

	got := gatherCounter(t, reg, MetricHTTPRequestsTotal, map[string]string{
		"method": "POST",
		"path":   "/api/create_stream",
		"status": "200",
	})
	if got != 1 {
		t.Errorf("http_requests_total = %v, want 1", got)
	}
}

func TestHTTPMetrics_SkipsHealthEndpoints(t *testing.T) {
	metrics := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	handler := HTTPMetrics(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ready", nil))

	got := gatherCounter(t, reg, MetricHTTPRequestsTotal, map[string]string{"method": "GET"})
	if got != 0 {
		t.Errorf("expected no metrics for health endpoints, got %v", got)
	}
}

func TestHTTPMetrics_UnknownPathCollapsed(t *testing.T) {
	metrics := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	handler := HTTPMetrics(metrics)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/probe/123", nil))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/probe/456", nil))

	got := gatherCounter(t, reg, MetricHTTPRequestsTotal, map[string]string{
		"method": "GET",
		"path":   "/unknown",
		"status": "404",
	})
	if got != 2 {
		t.Errorf("expected both probes collapsed into /unknown, got %v", got)
	}
}

func TestMetrics_RateLimitCounters(t *testing.T) {
	metrics := NewMetrics()
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	metrics.IncRateLimitRequests("/api/create_stream", "ip")
	metrics.IncRateLimitRequests("/api/create_stream", "ip")
	metrics.IncRateLimitBlocked("/api/create_stream", "ip")
	metrics.IncRateLimitRedisErrors()

	if got := gatherCounter(t, reg, MetricRateLimitRequests, map[string]string{"endpoint": "/api/create_stream", "key_type": "ip"}); got != 2 {
		t.Errorf("rate_limit_requests_total = %v, want 2", got)
	}
	if got := gatherCounter(t, reg, MetricRateLimitBlocked, map[string]string{"endpoint": "/api/create_stream", "key_type": "ip"}); got != 1 {
		t.Errorf("rate_limit_blocked_total = %v, want 1", got)
	}
	if got := gatherCounter(t, reg, MetricRateLimitRedisErrors, nil); got != 1 {
		t.Errorf("rate_limit_redis_errors_total = %v, want 1", got)
	}
}
