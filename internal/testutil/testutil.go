// Package testutil provides testing utilities for authgate integration tests.
package testutil

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-jose/go-jose/v4"
	"github.com/go-jose/go-jose/v4/jwt"

	"authgate/internal/api"
	"authgate/internal/auth"
	"authgate/internal/auth/oidc"
	"authgate/internal/observability"
	"authgate/internal/registration"
	"authgate/internal/storage"
)

// TestServerConfig holds configuration for creating a test server.
type TestServerConfig struct {
	// Entries are the statically bound registration properties.
	Entries map[string]registration.ClientProperties
	// Catalog resolves template names. Nil means no templates.
	Catalog registration.TemplateCatalog
	// BaseURL overrides the external base URL used for redirect URIs.
	BaseURL string
	// SecretKey enables client secret encryption for the managed store.
	SecretKey []byte
	// EnableAdminToken provisions an admin token for the management API.
	EnableAdminToken bool
	// EnableRateLimit enables rate limiting middleware.
	EnableRateLimit bool
	// RateLimitConfig configures rate limiting if enabled.
	RateLimitConfig api.RateLimitConfig
	// EnableMetrics enables metrics collection.
	EnableMetrics bool
}

// TestServerComponents holds all the components created for a test server.
type TestServerComponents struct {
	// Server is the test HTTP server.
	Server *httptest.Server
	// Store is the managed registration store.
	Store *storage.MemoryRegistrationStore
	// Repository holds the statically resolved registrations.
	Repository *registration.Repository
	// Metrics is the metrics collector, nil unless enabled.
	Metrics *observability.Metrics
	// Logger is the structured logger.
	Logger observability.Logger
	// AdminToken is the plaintext admin token, empty unless enabled.
	AdminToken string
	// Cleanup tears down the test server.
	Cleanup func()
}

// NewTestServer creates a fully configured test server with all dependencies.
func NewTestServer(t *testing.T, cfg TestServerConfig) *TestServerComponents {
	t.Helper()

	store := storage.NewMemoryRegistrationStore()

	// Discard log output in tests
	logger := observability.NewLogger(observability.Config{
		Level:  "debug",
		Format: "json",
		Output: io.Discard,
	})

	var metrics *observability.Metrics
	if cfg.EnableMetrics {
		metrics = observability.NewMetrics(observability.MetricsConfig{
			Namespace: "authgate_test",
			Version:   "test",
		})
	}

	var adminPlaintext string
	var adminToken *auth.AdminToken
	if cfg.EnableAdminToken {
		var err error
		adminPlaintext, adminToken, err = auth.GenerateAdminToken()
		if err != nil {
			t.Fatalf("failed to generate admin token: %v", err)
		}
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	repo := registration.Resolve(cfg.Catalog, cfg.Entries)

	mux := http.NewServeMux()
	srv := api.NewServer(api.ServerConfig{
		Mux:        mux,
		Repository: repo,
		Catalog:    cfg.Catalog,
		Store:      store,
		Logger:     logger,
		Metrics:    metrics,
		BaseURL:    baseURL,
		SecretKey:  cfg.SecretKey,
		AdminToken: adminToken,
	})
	srv.RegisterRoutes()

	var handler http.Handler = mux
	if cfg.EnableRateLimit {
		handler = api.RateLimitMiddleware(cfg.RateLimitConfig, logger, metrics)(handler)
	}
	if cfg.EnableMetrics && metrics != nil {
		handler = observability.MetricsMiddleware(metrics)(handler)
	}
	handler = api.RequestIDMiddleware()(handler)

	testServer := httptest.NewServer(handler)

	cleanup := func() {
		testServer.Close()
		_ = store.Close()
	}

	return &TestServerComponents{
		Server:     testServer,
		Store:      store,
		Repository: repo,
		Metrics:    metrics,
		Logger:     logger,
		AdminToken: adminPlaintext,
		Cleanup:    cleanup,
	}
}

// HTTPClient returns the test server's client configured for the server.
func (c *TestServerComponents) HTTPClient() *http.Client {
	return c.Server.Client()
}

// URL returns the full URL for a given path.
func (c *TestServerComponents) URL(path string) string {
	return c.Server.URL + path
}

// MapCatalog is a template catalog backed by a plain map with
// case-insensitive lookup.
type MapCatalog map[string]registration.ClientProperties

// Lookup implements registration.TemplateCatalog.
func (m MapCatalog) Lookup(name string) (registration.ClientProperties, bool) {
	for k, v := range m {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return registration.ClientProperties{}, false
}

// FakeIdentityProvider is a minimal OAuth2/OIDC provider for tests: an
// authorization endpoint that immediately redirects back with a code, a
// token endpoint that mints RSA-signed ID tokens, a JWKS endpoint, and a
// user-info endpoint.
type FakeIdentityProvider struct {
	Server *httptest.Server

	// ClientID is the audience baked into minted ID tokens.
	ClientID string
	// Subject and Email go into the minted claims.
	Subject string
	Email   string
	Name    string

	key *rsa.PrivateKey
}

// NewFakeIdentityProvider starts a fake provider for the given client id.
func NewFakeIdentityProvider(t *testing.T, clientID string) *FakeIdentityProvider {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate RSA key: %v", err)
	}

	idp := &FakeIdentityProvider{
		ClientID: clientID,
		Subject:  "user-123",
		Email:    "alice@example.com",
		Name:     "Alice",
		key:      key,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /authorize", func(w http.ResponseWriter, r *http.Request) {
		redirectURI := r.URL.Query().Get("redirect_uri")
		state := r.URL.Query().Get("state")
		if redirectURI == "" {
			http.Error(w, "missing redirect_uri", http.StatusBadRequest)
			return
		}
		sep := "?"
		if strings.Contains(redirectURI, "?") {
			sep = "&"
		}
		http.Redirect(w, r, redirectURI+sep+"code=fake-auth-code&state="+state, http.StatusFound)
	})

	mux.HandleFunc("GET /keys", func(w http.ResponseWriter, r *http.Request) {
		jwks := jose.JSONWebKeySet{
			Keys: []jose.JSONWebKey{
				{
					Key:       &key.PublicKey,
					KeyID:     "test-key-1",
					Algorithm: string(jose.RS256),
					Use:       "sig",
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(jwks)
	})

	mux.HandleFunc("POST /token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			http.Error(w, "bad form", http.StatusBadRequest)
			return
		}
		code := r.PostFormValue("code")
		if code == "" {
			code = r.FormValue("code")
		}
		if code != "fake-auth-code" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}

		rawJWT, err := idp.mintIDToken()
		if err != nil {
			http.Error(w, fmt.Sprintf("sign jwt: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "fake-access-token",
			"token_type":   "Bearer",
			"expires_in":   3600,
			"id_token":     rawJWT,
		})
	})

	mux.HandleFunc("GET /userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer fake-access-token" {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"sub":   idp.Subject,
			"name":  idp.Name,
			"email": idp.Email,
		})
	})

	idp.Server = httptest.NewServer(mux)
	t.Cleanup(idp.Server.Close)
	return idp
}

// Properties returns raw client properties pointing at the fake provider's
// endpoints, suitable as a bound registration entry.
func (idp *FakeIdentityProvider) Properties() registration.ClientProperties {
	return registration.ClientProperties{
		ClientID:         idp.ClientID,
		ClientSecret:     "test-secret",
		Scope:            []string{"openid", "profile", "email"},
		AuthorizationURI: idp.Server.URL + "/authorize",
		TokenURI:         idp.Server.URL + "/token",
		UserInfoURI:      idp.Server.URL + "/userinfo",
		JWKSetURI:        idp.Server.URL + "/keys",
	}
}

func (idp *FakeIdentityProvider) mintIDToken() (string, error) {
	signerKey := jose.SigningKey{Algorithm: jose.RS256, Key: idp.key}
	signerOpts := (&jose.SignerOptions{}).WithType("JWT").WithHeader("kid", "test-key-1")
	signer, err := jose.NewSigner(signerKey, signerOpts)
	if err != nil {
		return "", err
	}

	now := time.Now()
	claims := jwt.Claims{
		Issuer:    idp.Server.URL,
		Subject:   idp.Subject,
		Audience:  jwt.Audience{idp.ClientID},
		IssuedAt:  jwt.NewNumericDate(now),
		Expiry:    jwt.NewNumericDate(now.Add(time.Hour)),
		NotBefore: jwt.NewNumericDate(now.Add(-time.Minute)),
	}
	extraClaims := map[string]any{
		"email": idp.Email,
		"name":  idp.Name,
	}
	return jwt.Signed(signer).Claims(claims).Claims(extraClaims).Serialize()
}

// MustGenerateKey returns a fresh AES-256 encryption key for tests.
func MustGenerateKey(t *testing.T) []byte {
	t.Helper()
	key, err := oidc.GenerateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return key
}

// AuthenticatedRequest creates an HTTP request with Bearer token authentication.
func AuthenticatedRequest(method, url, token string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

// MustAuthenticatedRequest creates an HTTP request with Bearer token
// authentication, failing the test on error.
func MustAuthenticatedRequest(t *testing.T, method, url, token string, body io.Reader) *http.Request {
	t.Helper()
	req, err := AuthenticatedRequest(method, url, token, body)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}
	return req
}

// DoRequest performs an HTTP request and returns the response.
func DoRequest(t *testing.T, client *http.Client, req *http.Request) *http.Response {
	t.Helper()
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	return resp
}

// AssertStatus checks that the response has the expected status code.
func AssertStatus(t *testing.T, got, expected int) {
	t.Helper()
	if got != expected {
		t.Errorf("expected status %d, got %d", expected, got)
	}
}

// JSONBody creates an io.Reader from a JSON-serializable value.
func JSONBody(t *testing.T, v any) io.Reader {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("failed to marshal JSON: %v", err)
	}
	return bytes.NewReader(data)
}

// ReadJSONResponse reads and unmarshals a JSON response body.
func ReadJSONResponse(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer func() { _ = resp.Body.Close() }()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("failed to unmarshal response: %v\nBody: %s", err, string(data))
	}
}
