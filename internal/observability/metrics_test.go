package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestNewMetrics(t *testing.T) {
	cfg := MetricsConfig{
		Enabled:   true,
		Namespace: "test",
		Version:   "1.0.0",
	}
	m := NewMetrics(cfg)

	if m == nil {
		t.Fatal("expected non-nil Metrics")
	}
	if m.namespace != "test" {
		t.Errorf("expected namespace 'test', got %q", m.namespace)
	}
	if m.version != "1.0.0" {
		t.Errorf("expected version '1.0.0', got %q", m.version)
	}
}

func TestDefaultMetricsConfig(t *testing.T) {
	cfg := DefaultMetricsConfig()

	if !cfg.Enabled {
		t.Error("expected Enabled=true by default")
	}
	if cfg.Namespace != "authgate" {
		t.Errorf("expected namespace 'authgate', got %q", cfg.Namespace)
	}
	if cfg.Version != "dev" {
		t.Errorf("expected version 'dev', got %q", cfg.Version)
	}
}

func TestMetricsConfigFromEnv(t *testing.T) {
	t.Setenv("AUTHGATE_METRICS_ENABLED", "false")
	t.Setenv("APP_VERSION", "v2.0.0")

	cfg := MetricsConfigFromEnv()
	if cfg.Enabled {
		t.Error("expected Enabled=false")
	}
	if cfg.Version != "v2.0.0" {
		t.Errorf("expected version 'v2.0.0', got %q", cfg.Version)
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	m := NewMetrics(DefaultMetricsConfig())

	m.RecordHTTPRequest("GET", "/healthz", 200, 5*time.Millisecond)
	m.RecordHTTPRequest("GET", "/healthz", 200, 7*time.Millisecond)
	m.RecordHTTPRequest("POST", "/api/v1/admin/registrations", 409, 10*time.Millisecond)

	out := scrape(t, m)
	if !strings.Contains(out, `authgate_http_requests_total{method="GET",path="/healthz",status="200"} 2`) {
		t.Errorf("missing GET counter in output:\n%s", out)
	}
	if !strings.Contains(out, `authgate_http_requests_total{method="POST",path="/api/v1/admin/registrations",status="409"} 1`) {
		t.Errorf("missing POST counter in output:\n%s", out)
	}
	if !strings.Contains(out, `authgate_http_request_duration_seconds_count{method="GET",path="/healthz"} 2`) {
		t.Errorf("missing duration count in output:\n%s", out)
	}
}

func TestRateLimitCounters(t *testing.T) {
	m := NewMetrics(DefaultMetricsConfig())

	m.RecordRateLimitAllowed()
	m.RecordRateLimitAllowed()
	m.RecordRateLimitRejected()

	out := scrape(t, m)
	if !strings.Contains(out, `authgate_rate_limit_requests_total{status="allowed"} 2`) {
		t.Errorf("missing allowed counter:\n%s", out)
	}
	if !strings.Contains(out, `authgate_rate_limit_requests_total{status="rejected"} 1`) {
		t.Errorf("missing rejected counter:\n%s", out)
	}
}

func TestRecordResolution(t *testing.T) {
	m := NewMetrics(DefaultMetricsConfig())

	m.RecordResolution(3, 1)

	out := scrape(t, m)
	if !strings.Contains(out, "authgate_registrations_resolved 3") {
		t.Errorf("missing resolved gauge:\n%s", out)
	}
	if !strings.Contains(out, "authgate_registrations_excluded 1") {
		t.Errorf("missing excluded gauge:\n%s", out)
	}
}

func TestRecordLogin(t *testing.T) {
	m := NewMetrics(DefaultMetricsConfig())

	m.RecordLogin("google", true)
	m.RecordLogin("google", true)
	m.RecordLogin("google", false)
	m.RecordLogin("github", false)

	out := scrape(t, m)
	if !strings.Contains(out, `authgate_logins_total{registration="google",outcome="success"} 2`) {
		t.Errorf("missing google success counter:\n%s", out)
	}
	if !strings.Contains(out, `authgate_logins_total{registration="google",outcome="failure"} 1`) {
		t.Errorf("missing google failure counter:\n%s", out)
	}
	if !strings.Contains(out, `authgate_logins_total{registration="github",outcome="failure"} 1`) {
		t.Errorf("missing github failure counter:\n%s", out)
	}
}

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/api/v1/admin/registrations", "/api/v1/admin/registrations"},
		{"/api/v1/admin/registrations/123", "/api/v1/admin/registrations/{id}"},
		{"/api/v1/admin/registrations/550e8400-e29b-41d4-a716-446655440000", "/api/v1/admin/registrations/{id}"},
		{"/oauth2/authorization/google", "/oauth2/authorization/google"},
	}

	for _, tt := range tests {
		if got := normalizePath(tt.path); got != tt.want {
			t.Errorf("normalizePath(%q) = %q, want %q", tt.path, got, tt.want)
		}
	}
}

func TestDurationQuantiles(t *testing.T) {
	c := newDurationCollector(100)
	for i := 1; i <= 100; i++ {
		c.add(time.Duration(i) * time.Millisecond)
	}

	p50 := c.quantile(0.5)
	if p50 < 0.045 || p50 > 0.055 {
		t.Errorf("p50 = %f, want ~0.050", p50)
	}
	p99 := c.quantile(0.99)
	if p99 < 0.095 || p99 > 0.101 {
		t.Errorf("p99 = %f, want ~0.099", p99)
	}
}

func TestDurationCollectorWindow(t *testing.T) {
	c := newDurationCollector(10)
	for i := 0; i < 25; i++ {
		c.add(time.Millisecond)
	}
	if got := c.count(); got != 10 {
		t.Errorf("count = %d, want window size 10", got)
	}
}

func TestMetricsHandlerMethodNotAllowed(t *testing.T) {
	m := NewMetrics(DefaultMetricsConfig())

	req := httptest.NewRequest(http.MethodPost, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", rec.Code)
	}
}

func TestMetricsMiddleware(t *testing.T) {
	m := NewMetrics(DefaultMetricsConfig())
	handler := MetricsMiddleware(m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/teapot", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	out := scrape(t, m)
	if !strings.Contains(out, `authgate_http_requests_total{method="GET",path="/teapot",status="418"} 1`) {
		t.Errorf("middleware did not record request:\n%s", out)
	}
}

func TestMetricsMiddlewareSkipsMetricsEndpoint(t *testing.T) {
	m := NewMetrics(DefaultMetricsConfig())
	handler := MetricsMiddleware(m)(m.Handler())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	out := scrape(t, m)
	if strings.Contains(out, `path="/metrics"`) {
		t.Errorf("metrics endpoint should not record itself:\n%s", out)
	}
}

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("scrape status = %d", rec.Code)
	}
	return rec.Body.String()
}
