// Package api wires the HTTP routes for the subscription service.
package api

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/keyhub-dev/keyhub/internal/api/handler"
	"github.com/keyhub-dev/keyhub/internal/api/middleware"
	"github.com/keyhub-dev/keyhub/internal/security"
	"github.com/keyhub-dev/keyhub/internal/service"
)

// RouterConfig collects the dependencies the router needs.
type RouterConfig struct {
	Logger        *slog.Logger
	Subscriptions *service.SubscriptionService
	DB            *sql.DB
	RateLimiter   *security.RateLimiter
	RateLimit     int
	RateWindow    time.Duration
	EnableMetrics bool
}

// NewRouter builds the chi router with the full middleware chain.
func NewRouter(cfg RouterConfig) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Recoverer)

	logCfg := middleware.DefaultLoggingConfig()
	logCfg.Logger = cfg.Logger
	r.Use(middleware.StructuredLogger(logCfg))

	if cfg.EnableMetrics {
		metricsCfg := middleware.DefaultMetricsConfig()
		metrics := middleware.NewMetrics(metricsCfg)
		r.Use(metrics.Middleware(metricsCfg))
		r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	}

	if cfg.RateLimiter != nil {
		r.Use(middleware.RateLimit(middleware.RateLimitConfig{
			Limiter:   cfg.RateLimiter,
			Limit:     cfg.RateLimit,
			Window:    cfg.RateWindow,
			SkipPaths: []string{"/health", "/healthz", "/metrics"},
		}))
	}

	subs := handler.NewSubscription(cfg.Subscriptions, cfg.Logger)
	r.Get("/sub/{email}", subs.Legacy)
	r.Get("/subscription/{email}/{ownerID}", subs.Modern)

	r.Get("/healthz", healthHandler(cfg.DB))
	r.Get("/health", healthHandler(cfg.DB))

	return r
}

// healthHandler reports liveness, including a database ping when available.
func healthHandler(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := db.PingContext(ctx); err != nil {
				http.Error(w, "database unavailable", http.StatusServiceUnavailable)
				return
			}
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	}
}
