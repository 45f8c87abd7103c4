package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"authgate/internal/observability"
)

func TestSanitizeRequestID(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"valid uuid", "550e8400-e29b-41d4-a716-446655440000", "550e8400-e29b-41d4-a716-446655440000"},
		{"valid alphanumeric", "req_123.abc-XYZ", "req_123.abc-XYZ"},
		{"empty", "", ""},
		{"whitespace only", "   ", ""},
		{"too long", string(make([]byte, 80)), ""},
		{"contains space", "abc def", ""},
		{"contains newline", "abc\ndef", ""},
		{"header injection attempt", "abc\r\nX-Evil: 1", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizeRequestID(tt.input); got != tt.want {
				t.Errorf("sanitizeRequestID(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestRequestIDMiddleware_GeneratesAndPropagates(t *testing.T) {
	var seen string
	h := ApplyMiddlewares(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = observability.RequestIDFromContext(r.Context())
	}), RequestIDMiddleware())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))

	got := rec.Header().Get("X-Request-ID")
	if got == "" {
		t.Fatal("missing X-Request-ID response header")
	}
	if seen != got {
		t.Errorf("context request id = %q, header = %q", seen, got)
	}
}

func TestRequestIDMiddleware_KeepsValidClientID(t *testing.T) {
	h := ApplyMiddlewares(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}), RequestIDMiddleware())

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-ID", "client-id-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if got := rec.Header().Get("X-Request-ID"); got != "client-id-123" {
		t.Errorf("request id = %q, want client-supplied id", got)
	}
}

func TestRequestIDMiddleware_ReplacesMalformedClientID(t *testing.T) {
	h := ApplyMiddlewares(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}), RequestIDMiddleware())

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("X-Request-ID", "bad id with spaces")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	got := rec.Header().Get("X-Request-ID")
	if got == "" || got == "bad id with spaces" {
		t.Errorf("malformed client id must be replaced, got %q", got)
	}
}

func TestDefaultRateLimitConfig(t *testing.T) {
	t.Setenv("RATE_LIMIT_RPS", "")
	t.Setenv("RATE_LIMIT_BURST", "")
	cfg := DefaultRateLimitConfig()
	if cfg.RequestsPerSecond != 100 || cfg.Burst != 200 {
		t.Errorf("defaults = %v/%v, want 100/200", cfg.RequestsPerSecond, cfg.Burst)
	}

	t.Setenv("RATE_LIMIT_RPS", "5.5")
	t.Setenv("RATE_LIMIT_BURST", "10")
	cfg = DefaultRateLimitConfig()
	if cfg.RequestsPerSecond != 5.5 || cfg.Burst != 10 {
		t.Errorf("env config = %v/%v, want 5.5/10", cfg.RequestsPerSecond, cfg.Burst)
	}

	t.Setenv("RATE_LIMIT_RPS", "not-a-number")
	t.Setenv("RATE_LIMIT_BURST", "-3")
	cfg = DefaultRateLimitConfig()
	if cfg.RequestsPerSecond != 100 || cfg.Burst != 200 {
		t.Errorf("invalid env must fall back to defaults, got %v/%v", cfg.RequestsPerSecond, cfg.Burst)
	}
}

func TestRateLimitMiddleware_SetsHeaders(t *testing.T) {
	logger := observability.NewLogger(observability.Config{Output: io.Discard})
	h := ApplyMiddlewares(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), RateLimitMiddleware(RateLimitConfig{RequestsPerSecond: 100, Burst: 5}, logger, nil))

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("X-RateLimit-Limit") != "100" {
		t.Errorf("X-RateLimit-Limit = %q", rec.Header().Get("X-RateLimit-Limit"))
	}
	if rec.Header().Get("X-RateLimit-Remaining") == "" {
		t.Error("missing X-RateLimit-Remaining")
	}
	if rec.Header().Get("X-RateLimit-Reset") == "" {
		t.Error("missing X-RateLimit-Reset")
	}
}

func TestRateLimitMiddleware_PerClientBuckets(t *testing.T) {
	logger := observability.NewLogger(observability.Config{Output: io.Discard})
	h := ApplyMiddlewares(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), RateLimitMiddleware(RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1}, logger, nil))

	do := func(addr string) int {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.RemoteAddr = addr
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	if got := do("10.0.0.1:1111"); got != http.StatusOK {
		t.Fatalf("first request = %d", got)
	}
	if got := do("10.0.0.1:2222"); got != http.StatusTooManyRequests {
		t.Errorf("same client second request = %d, want 429", got)
	}
	// A different client gets its own bucket.
	if got := do("10.0.0.2:1111"); got != http.StatusOK {
		t.Errorf("other client = %d, want 200", got)
	}
}

func TestRateLimitMiddleware_TrustedProxyKeysByForwardedClient(t *testing.T) {
	trusted, err := ParseTrustedProxies("10.0.0.0/8")
	if err != nil {
		t.Fatal(err)
	}

	logger := observability.NewLogger(observability.Config{Output: io.Discard})
	h := ApplyMiddlewares(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}), RateLimitMiddleware(RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1, ProxyConfig: trusted}, logger, nil))

	do := func(remoteAddr, forwardedFor string) int {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.RemoteAddr = remoteAddr
		if forwardedFor != "" {
			req.Header.Set("X-Forwarded-For", forwardedFor)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	// Behind the trusted proxy, clients are told apart by X-Forwarded-For.
	if got := do("10.0.0.1:1111", "203.0.113.9"); got != http.StatusOK {
		t.Fatalf("first forwarded client = %d", got)
	}
	if got := do("10.0.0.1:2222", "203.0.113.9"); got != http.StatusTooManyRequests {
		t.Errorf("same forwarded client = %d, want 429", got)
	}
	if got := do("10.0.0.1:3333", "198.51.100.20"); got != http.StatusOK {
		t.Errorf("other forwarded client = %d, want 200", got)
	}

	// An untrusted remote cannot spoof a fresh bucket with the header.
	if got := do("192.0.2.7:1111", "203.0.113.50"); got != http.StatusOK {
		t.Fatalf("untrusted remote first request = %d", got)
	}
	if got := do("192.0.2.7:2222", "198.51.100.99"); got != http.StatusTooManyRequests {
		t.Errorf("untrusted remote with changed header = %d, want 429", got)
	}
}

func TestRateLimitMiddleware_DisabledPassesThrough(t *testing.T) {
	logger := observability.NewLogger(observability.Config{Output: io.Discard})
	h := ApplyMiddlewares(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}), RateLimitMiddleware(RateLimitConfig{}, logger, nil))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("status = %d, want passthrough", rec.Code)
	}
	if rec.Header().Get("X-RateLimit-Limit") != "" {
		t.Error("disabled limiter must not set headers")
	}
}

func TestParseTrustedProxies(t *testing.T) {
	tc, err := ParseTrustedProxies("10.0.0.0/8, 192.168.1.0/24")
	if err != nil {
		t.Fatalf("ParseTrustedProxies: %v", err)
	}
	if len(tc.CIDRs) != 2 {
		t.Fatalf("cidrs = %d, want 2", len(tc.CIDRs))
	}
	if !tc.IsTrusted("10.1.2.3:555") {
		t.Error("10.1.2.3 should be trusted")
	}
	if tc.IsTrusted("172.16.0.1:555") {
		t.Error("172.16.0.1 should not be trusted")
	}
	if tc.IsTrusted("not-an-addr") {
		t.Error("malformed remote addr should not be trusted")
	}

	if _, err := ParseTrustedProxies("garbage"); err == nil {
		t.Error("expected error for invalid CIDR")
	}

	empty, err := ParseTrustedProxies("")
	if err != nil {
		t.Fatalf("empty list: %v", err)
	}
	if empty.IsTrusted("10.0.0.1:1") {
		t.Error("empty config must trust nobody")
	}
}

func TestClientKeyWithProxies(t *testing.T) {
	trusted, err := ParseTrustedProxies("10.0.0.0/8")
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.RemoteAddr = "10.0.0.5:4000"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.5")
	if got := clientKeyWithProxies(req, trusted); got != "203.0.113.9" {
		t.Errorf("trusted proxy key = %q, want forwarded client ip", got)
	}

	// Untrusted remote: the forwarded header is ignored.
	req.RemoteAddr = "198.51.100.7:4000"
	if got := clientKeyWithProxies(req, trusted); got != "198.51.100.7" {
		t.Errorf("untrusted key = %q, want remote host", got)
	}

	if got := clientKeyWithProxies(req, nil); got != "198.51.100.7" {
		t.Errorf("nil config key = %q", got)
	}
}
