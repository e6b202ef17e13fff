package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/GregMSThompson/agent-bridge/internal/handlers"
	"github.com/GregMSThompson/agent-bridge/internal/middleware"
)

// NewRouter mounts the agent routes behind auth. /healthz and /metrics are
// left open for the platform's probes and scrapers.
func NewRouter(deps *handlers.Deps, auth *middleware.Middleware, gatherer prometheus.Gatherer) chi.Router {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.NewLoggerMiddleware(deps.Log).LoggerMiddleware)
	r.Use(chimiddleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	ah := handlers.NewAgentHandlers(deps)
	r.With(auth.FirebaseAuth).Mount("/agent", ah.AgentRoutes())
	return r
}
