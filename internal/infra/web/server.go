package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"subscription-tracker/internal/infra/redis"
	"subscription-tracker/internal/usecase"
)

// Server exposes the engine over an authenticated JSON API.
type Server struct {
	quotaUC   usecase.QuotaUseCase
	permUC    usecase.PermissionUseCase
	subUC     usecase.SubscriptionUseCase
	renewalUC usecase.RenewalUseCase
	statsUC   usecase.StatsUseCase
	ents      *usecase.Entitlements

	auth      *AuthManager
	limiter   *redis.RateLimiter
	rateLimit int
	log       *zerolog.Logger
}

func NewServer(
	quotaUC usecase.QuotaUseCase,
	permUC usecase.PermissionUseCase,
	subUC usecase.SubscriptionUseCase,
	renewalUC usecase.RenewalUseCase,
	statsUC usecase.StatsUseCase,
	ents *usecase.Entitlements,
	auth *AuthManager,
	limiter *redis.RateLimiter,
	rateLimit int,
	logger *zerolog.Logger,
) *Server {
	l := logger.With().Str("component", "web").Logger()
	return &Server{
		quotaUC:   quotaUC,
		permUC:    permUC,
		subUC:     subUC,
		renewalUC: renewalUC,
		statsUC:   statsUC,
		ents:      ents,
		auth:      auth,
		limiter:   limiter,
		rateLimit: rateLimit,
		log:       &l,
	}
}

// Routes builds the router. Everything under /api/v1 except login sits behind
// the session token middleware.
func (s *Server) Routes() *chi.Mux {
	r := chi.NewRouter()
	r.Use(TraceID())
	r.Use(Recover(s.log))
	r.Use(RequestLog(s.log))
	r.Use(Timeout(30 * time.Second))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/login", s.handleLogin)

		r.Group(func(r chi.Router) {
			r.Use(s.auth.Middleware)

			r.Route("/users/{userID}", func(r chi.Router) {
				r.Use(UserContext())
				r.Get("/quotas", s.handleQuotaOverview)
				r.Get("/quotas/{quotaType}", s.handleQuotaCheck)
				r.With(RateLimit(s.limiter, s.rateLimit, s.log)).
					Post("/quotas/{quotaType}/record", s.handleRecordUsage)
				r.Get("/permissions/{capability}", s.handlePermissionCheck)
				r.Get("/spend", s.handleSpend)
				r.Get("/subscriptions", s.handleListSubscriptions)
				r.With(RateLimit(s.limiter, s.rateLimit, s.log)).
					Post("/subscriptions", s.handleCreateSubscription)
				r.Post("/logout", s.handleLogout)
			})

			r.Get("/subscriptions/{id}", s.handleGetSubscription)
			r.Get("/subscriptions/{id}/next-billing", s.handleNextBilling)
			r.Post("/renewals/run", s.handleRunRenewals)
		})
	})

	return r
}
