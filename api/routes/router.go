package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/goldvault-backend/api/controllers"
	billingcontrollers "github.com/angelmondragon/goldvault-backend/api/controllers/billing"
	"github.com/angelmondragon/goldvault-backend/api/middleware"
	"github.com/angelmondragon/goldvault-backend/api/responses"
	"github.com/angelmondragon/goldvault-backend/internal/storagebilling"
	"github.com/angelmondragon/goldvault-backend/pkg/config"
	"github.com/angelmondragon/goldvault-backend/pkg/db"
	pkgerrors "github.com/angelmondragon/goldvault-backend/pkg/errors"
	"github.com/angelmondragon/goldvault-backend/pkg/logger"
	"github.com/angelmondragon/goldvault-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisP redis.Pinger,
	billingRunner storagebilling.Runner,
	gatherer prometheus.Gatherer,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		responses.WriteError(req.Context(), logg, w, pkgerrors.New(pkgerrors.CodeMethodNotAllowed, "method not allowed"))
	})
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		responses.WriteError(req.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "route not found"))
	})

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, map[string]controllers.Pinger{
			"db":    dbP,
			"redis": redisP,
		}))
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/billing", func(r chi.Router) {
		r.With(middleware.TriggerSecret(cfg.Billing.TriggerSecret, logg)).
			Post("/storage/run", billingcontrollers.StorageBillingRun(billingRunner, logg))
	})

	return r
}
