package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/getsentry/sentry-go"

	"authgate/internal/auth"
	"authgate/internal/observability"
	"authgate/internal/registration"
	"authgate/internal/storage"
)

type apiError struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// Server serves the login flows and the registration management API. The
// static repository holds registrations resolved from configuration; the
// store holds dynamically managed ones, resolved on demand through the same
// template catalog.
type Server struct {
	mux        *http.ServeMux
	repo       *registration.Repository
	catalog    registration.TemplateCatalog
	store      storage.RegistrationStore
	logger     observability.Logger
	metrics    *observability.Metrics
	baseURL    string
	secretKey  []byte
	adminToken *auth.AdminToken

	// clientCache caches login clients per registration id. Entries are
	// invalidated whenever the admin API mutates the backing registration.
	clientCache sync.Map
}

// ServerConfig carries the dependencies for NewServer.
type ServerConfig struct {
	Mux        *http.ServeMux
	Repository *registration.Repository
	Catalog    registration.TemplateCatalog
	Store      storage.RegistrationStore
	Logger     observability.Logger
	Metrics    *observability.Metrics
	BaseURL    string
	SecretKey  []byte
	AdminToken *auth.AdminToken
}

// NewServer creates the HTTP server with the given dependencies.
// If Logger is nil, a default logger is used.
// If Metrics is nil, metrics collection is disabled.
func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = observability.NewLogger(observability.DefaultConfig())
	}
	repo := cfg.Repository
	if repo == nil {
		repo = registration.NewRepository(nil)
	}
	return &Server{
		mux:        cfg.Mux,
		repo:       repo,
		catalog:    cfg.Catalog,
		store:      cfg.Store,
		logger:     logger,
		metrics:    cfg.Metrics,
		baseURL:    cfg.BaseURL,
		secretKey:  cfg.SecretKey,
		adminToken: cfg.AdminToken,
	}
}

// RegisterRoutes registers all HTTP routes. Login and registration listing
// are public; the management API requires the admin bearer token.
func (s *Server) RegisterRoutes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)
	s.mux.HandleFunc("/readyz", s.handleReady)
	if s.metrics != nil {
		s.mux.Handle("/metrics", s.metrics.Handler())
	}

	s.mux.HandleFunc("GET /oauth2/authorization/{id}", s.handleAuthorize)
	s.mux.HandleFunc("GET /login/oauth2/code/{id}", s.handleCallback)
	s.mux.HandleFunc("GET /api/v1/registrations", s.handleListRegistrations)

	adminMW := AdminAuthMiddleware(s.adminToken, s.logger)
	s.mux.Handle("GET /api/v1/admin/registrations", adminMW(http.HandlerFunc(s.handleAdminListRegistrations)))
	s.mux.Handle("POST /api/v1/admin/registrations", adminMW(http.HandlerFunc(s.handleAdminCreateRegistration)))
	s.mux.Handle("GET /api/v1/admin/registrations/{id}", adminMW(http.HandlerFunc(s.handleAdminGetRegistration)))
	s.mux.Handle("PATCH /api/v1/admin/registrations/{id}", adminMW(http.HandlerFunc(s.handleAdminUpdateRegistration)))
	s.mux.Handle("DELETE /api/v1/admin/registrations/{id}", adminMW(http.HandlerFunc(s.handleAdminDeleteRegistration)))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		if _, err := s.store.ListEnabledRegistrations(r.Context()); err != nil {
			s.writeErr(r.Context(), w, http.StatusServiceUnavailable, "store not ready", err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) writeErr(ctx context.Context, w http.ResponseWriter, code int, msg string, detail string) {
	fields := []any{
		"status", code,
		"error", msg,
	}
	if detail != "" {
		fields = append(fields, "detail", detail)
	}
	fields = appendRequestID(ctx, fields)
	if code >= 500 {
		s.logger.ErrorContext(ctx, "request failed", fields...)
		sentry.CaptureMessage(fmt.Sprintf("HTTP %d: %s (detail: %s)", code, msg, detail))
	} else {
		s.logger.WarnContext(ctx, "request failed", fields...)
	}
	writeJSON(w, code, apiError{Error: msg, Detail: detail})
}

// writeStoreErr maps a storage-layer error to the appropriate HTTP status code
// and writes the error response. It uses errors.Is() to detect sentinel errors
// from the storage package, falling back to 500 Internal Server Error for unknown errors.
func (s *Server) writeStoreErr(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		s.writeErr(ctx, w, http.StatusNotFound, err.Error(), "")
	case errors.Is(err, storage.ErrConflict):
		s.writeErr(ctx, w, http.StatusConflict, err.Error(), "")
	case errors.Is(err, storage.ErrValidation):
		s.writeErr(ctx, w, http.StatusBadRequest, err.Error(), "")
	default:
		s.writeErr(ctx, w, http.StatusInternalServerError, "internal error", err.Error())
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) { s.status = code; s.ResponseWriter.WriteHeader(code) }

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }
