package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/utafrali/ReviewPulse/pkg/health"
	"github.com/utafrali/ReviewPulse/pkg/middleware"
	"github.com/utafrali/ReviewPulse/services/review/internal/service"
)

// RouterConfig carries the optional parts of the router.
type RouterConfig struct {
	// TokenValidator authenticates bearer JWTs. Nil trusts the gateway X-User-ID header.
	TokenValidator middleware.TokenValidator
	// PprofCIDRs lists the networks allowed to reach /debug/pprof. Empty disables pprof.
	PprofCIDRs []string
	// RequestTimeout bounds a whole request, fan-out included.
	RequestTimeout time.Duration
}

// NewRouter creates a chi router with all review service routes registered.
func NewRouter(
	reviewService *service.ReviewService,
	healthHandler *health.Handler,
	logger *slog.Logger,
	cfg RouterConfig,
) http.Handler {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Recovery(logger))
	r.Use(chimw.Compress(5))
	r.Use(chimw.Timeout(cfg.RequestTimeout))
	r.Use(middleware.RequestLogging(logger))
	r.Use(middleware.PrometheusMetrics("review"))
	r.Use(middleware.Tracing("review"))

	// Health check endpoints
	r.Get("/health/live", healthHandler.LivenessHandler())
	r.Get("/health/ready", healthHandler.ReadinessHandler())
	r.Get("/metrics", func(w http.ResponseWriter, r *http.Request) {
		promhttp.Handler().ServeHTTP(w, r)
	})

	if len(cfg.PprofCIDRs) > 0 {
		middleware.RegisterPprof(r, cfg.PprofCIDRs, logger)
	}

	reviewHandler := NewReviewHandler(reviewService, logger)

	r.Route("/api/v1/reviews", func(r chi.Router) {
		r.Use(middleware.Identity(cfg.TokenValidator))
		r.Use(middleware.RequestLogger(logger))
		r.Use(middleware.PrivateNoStore)

		r.Get("/", reviewHandler.ListReviews)
		r.Get("/analytics", reviewHandler.GetAnalytics)

		r.Put("/connection", reviewHandler.Connect)
		r.Delete("/connection", reviewHandler.Disconnect)
	})

	return r
}
