package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	apimiddleware "github.com/phrazzld/caro-api/internal/api/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterDeps are the handlers and collaborators served by NewRouter.
type RouterDeps struct {
	Reviews *ReviewHandler
	Stats   *StatsHandler
	Health  []HealthCheck

	// Registry receives the HTTP metrics and is scraped on /metrics.
	// Nil disables both.
	Registry *prometheus.Registry
	Logger   *slog.Logger
}

// NewRouter builds the HTTP routes of the service.
func NewRouter(deps RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(apimiddleware.NewTraceMiddleware(deps.Logger))
	r.Use(chimiddleware.Recoverer)
	if deps.Registry != nil {
		r.Use(apimiddleware.MustNewHTTPMetrics(deps.Registry).Handler)
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/review", func(r chi.Router) {
			r.Get("/today", deps.Reviews.GetTodayReviewCardIDs)
			r.Get("/today/details", deps.Reviews.GetTodayReviews)
			r.Get("/cards/{cardId}", deps.Reviews.GetReviewRecord)
			r.Post("/", deps.Reviews.RecordReview)
			r.Post("/initialize", deps.Reviews.InitializeCard)
		})

		r.Get("/gamification/stats/{memberId}", deps.Stats.GetMemberStats)
		r.Get("/gamification/badges/{memberId}", deps.Stats.GetEarnedBadges)
		r.Get("/analytics/daily/{memberId}", deps.Stats.GetDailyStats)
	})

	r.Get("/health", NewHealthHandler(deps.Health...))
	if deps.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	return r
}
