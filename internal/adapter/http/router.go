package http

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/iho/pointledger/internal/adapter/http/handler"
	"github.com/iho/pointledger/internal/adapter/http/middleware"
	"github.com/iho/pointledger/internal/infrastructure/metrics"
	"github.com/iho/pointledger/internal/usecase"
)

// RouterConfig holds dependencies for the router.
type RouterConfig struct {
	PointsHandler    *handler.PointsHandler
	UserHandler      *handler.UserHandler
	HealthHandler    *handler.HealthHandler
	LedgerHandler    *handler.LedgerHandler
	IdempotencyStore usecase.IdempotencyStore
	IdempotencyTTL   time.Duration
	RateLimiter      *middleware.RateLimiter
	Metrics          *metrics.Metrics
	MetricsHandler   http.Handler
	Logger           *zerolog.Logger
}

// NewRouter creates a new HTTP router.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	if cfg.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(*cfg.Logger).Wrap)
		r.Use(middleware.RecoveryWithLogger(*cfg.Logger))
	} else {
		r.Use(middleware.Recovery)
	}
	if cfg.Metrics != nil {
		r.Use(middleware.NewMetricsMiddleware(cfg.Metrics).Wrap)
	}
	if cfg.RateLimiter != nil {
		r.Use(cfg.RateLimiter.Limit)
	}

	// Health endpoints
	r.Get("/health", cfg.HealthHandler.Liveness)
	r.Get("/ready", cfg.HealthHandler.Readiness)
	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			// Idempotency middleware for mutating requests
			if cfg.IdempotencyStore != nil {
				r.Use(middleware.NewIdempotencyMiddleware(cfg.IdempotencyStore, cfg.IdempotencyTTL).Wrap)
			}

			r.Post("/earn", cfg.PointsHandler.Earn)
			r.Post("/spend", cfg.PointsHandler.Spend)
			r.Post("/transfer", cfg.PointsHandler.Transfer)
			r.Post("/reversal", cfg.PointsHandler.Reverse)
		})

		// Users
		r.Route("/users/{id}", func(r chi.Router) {
			r.Get("/balance", cfg.UserHandler.Balance)
			r.Get("/entries", cfg.UserHandler.Entries)
			r.Get("/daily/{kind}", cfg.UserHandler.DailyTotal)
		})

		r.Get("/entries/{id}", cfg.UserHandler.GetEntry)

		if cfg.LedgerHandler != nil {
			r.Get("/ledger/consistency", cfg.LedgerHandler.CheckConsistency)
		}
	})

	return r
}
