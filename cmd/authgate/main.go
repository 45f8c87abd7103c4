package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"

	"authgate/internal/api"
	"authgate/internal/auth"
	"authgate/internal/auth/oidc"
	"authgate/internal/config"
	"authgate/internal/observability"
	"authgate/internal/registration"
	"authgate/internal/templates"
)

func main() {
	// Initialize structured logger from environment configuration
	logCfg := observability.ConfigFromEnv()
	logger := observability.NewLogger(logCfg)

	configPath := flag.String("config", envOr("AUTHGATE_CONFIG", ""), "path to YAML configuration file")
	registrationsPath := flag.String("registrations-file", "", "path to a YAML file of registration entries; replaces the configured set")
	flag.Parse()

	// Initialize Sentry if DSN is provided
	sentryDSN := os.Getenv("SENTRY_DSN")
	sentryEnabled := false
	if sentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              sentryDSN,
			Environment:      envOr("SENTRY_ENVIRONMENT", "production"),
			Release:          envOr("APP_VERSION", "dev"),
			TracesSampleRate: 1.0,
			AttachStacktrace: true,
		})
		if err != nil {
			logger.Warn("sentry initialization failed", "error", err)
		} else {
			logger.Info("sentry initialized",
				"environment", envOr("SENTRY_ENVIRONMENT", "production"),
				"release", envOr("APP_VERSION", "dev"),
			)
			sentryEnabled = true
		}
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	catalog, err := templates.Load()
	if err != nil {
		logger.Error("failed to load provider templates", "error", err)
		os.Exit(1)
	}
	logger.Info("provider templates loaded", "names", catalog.Names())

	// Static registrations come from one of two places. A registrations file
	// supplies pre-resolved registrations and suppresses template resolution
	// outright; otherwise the configured raw entries go through the resolver,
	// gated on at least one entry carrying a client id.
	var repo *registration.Repository
	excluded := 0
	switch {
	case *registrationsPath != "":
		regs, err := config.LoadRegistrationsFile(*registrationsPath)
		if err != nil {
			logger.Error("failed to load registrations file", "error", err)
			os.Exit(1)
		}
		repo = registration.NewRepository(regs)
		logger.Info("registrations loaded from file", "path", *registrationsPath, "count", repo.Len())
	case registration.ClientsConfigured(cfg.OAuth2.Client.Registrations):
		entries := cfg.OAuth2.Client.Registrations
		logger.Info("client registrations configured", "ids", registration.ConfiguredRegistrationIDs(entries))
		repo = registration.Resolve(catalog, entries)
		excluded = len(entries) - repo.Len()
		logger.Info("client registrations resolved", "resolved", repo.Len(), "excluded", excluded)
	default:
		// No entry carries a client id: serve without static registrations.
		// Dynamically managed registrations still work.
		repo = registration.NewRepository(nil)
		logger.Warn("no static client registrations configured",
			"hint", "set oauth2.client.registrations.<id>.client-id in the configuration",
		)
	}

	// Select storage for managed registrations based on build tags and
	// configuration (see store_*.go in this package).
	store := selectStore(logger, cfg)

	// Initialize metrics
	metricsCfg := observability.MetricsConfigFromEnv()
	var metrics *observability.Metrics
	if metricsCfg.Enabled {
		metrics = observability.NewMetrics(metricsCfg)
		metrics.RecordResolution(repo.Len(), excluded)
		logger.Info("metrics enabled",
			"namespace", metricsCfg.Namespace,
			"version", metricsCfg.Version,
		)
	} else {
		logger.Info("metrics disabled")
	}

	rateCfg := api.DefaultRateLimitConfig()
	if proxiesEnv := os.Getenv("AUTHGATE_TRUSTED_PROXIES"); proxiesEnv != "" {
		proxyConfig, err := api.ParseTrustedProxies(proxiesEnv)
		if err != nil {
			logger.Error("invalid AUTHGATE_TRUSTED_PROXIES", "error", err)
			os.Exit(1)
		}
		rateCfg.ProxyConfig = proxyConfig
		logger.Info("trusted proxies configured", "cidrs", proxiesEnv)
	}
	if !rateCfg.Enabled() {
		logger.Info("rate limiting disabled")
	} else {
		logger.Info("rate limiting configured",
			"requests_per_second", rateCfg.RequestsPerSecond,
			"burst", rateCfg.Burst,
		)
	}

	// Client secret encryption key for the managed store.
	var secretKey []byte
	if raw := os.Getenv("AUTHGATE_SECRET_KEY"); raw != "" {
		secretKey, err = oidc.ParseKeyHex(raw)
		if err != nil {
			logger.Error("invalid AUTHGATE_SECRET_KEY", "error", err)
			os.Exit(1)
		}
		logger.Info("client secret encryption enabled")
	} else {
		logger.Warn("AUTHGATE_SECRET_KEY not set; managed registrations cannot store client secrets")
	}

	// The management API stays disabled unless a token is configured.
	var adminToken *auth.AdminToken
	if raw := os.Getenv("AUTHGATE_ADMIN_TOKEN"); raw != "" {
		adminToken, err = auth.HashAdminToken(raw)
		if err != nil {
			logger.Error("invalid AUTHGATE_ADMIN_TOKEN", "error", err)
			os.Exit(1)
		}
		logger.Info("management API enabled", "token", auth.MaskToken(raw))
	} else {
		logger.Info("management API disabled (set AUTHGATE_ADMIN_TOKEN to enable)")
	}

	mux := http.NewServeMux()
	srv := api.NewServer(api.ServerConfig{
		Mux:        mux,
		Repository: repo,
		Catalog:    catalog,
		Store:      store,
		Logger:     logger.WithComponent("api"),
		Metrics:    metrics,
		BaseURL:    cfg.Server.ExternalURL,
		SecretKey:  secretKey,
		AdminToken: adminToken,
	})
	srv.RegisterRoutes()

	// Apply middleware stack (metrics, request ID, structured logging, rate limiting).
	// Order: metrics (outermost) -> requestID -> logging -> rateLimiting (innermost before handler)
	handler := api.ApplyMiddlewares(
		mux,
		observability.MetricsMiddleware(metrics),
		api.RequestIDMiddleware(),
		api.LoggingMiddleware(logger),
		api.RateLimitMiddleware(rateCfg, logger, metrics),
	)
	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("authgate listening", "addr", cfg.Server.Addr, "base_url", cfg.Server.ExternalURL)
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
		}
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig)
	}

	// Graceful shutdown with 15-second timeout
	logger.Info("shutting down server", "timeout", "15s")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	} else {
		logger.Info("server stopped gracefully")
	}

	if err := store.Close(); err != nil {
		logger.Error("error closing store", "error", err)
	}

	// Flush Sentry events
	if sentryEnabled {
		sentry.Flush(2 * time.Second)
	}

	logger.Info("shutdown complete")
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
