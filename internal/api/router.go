package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/costcoplus/offline-relay/internal/api/handler"
	apimw "github.com/costcoplus/offline-relay/internal/api/middleware"
	"github.com/costcoplus/offline-relay/internal/connectivity"
	"github.com/costcoplus/offline-relay/internal/queue"
	"github.com/costcoplus/offline-relay/internal/service"
	"github.com/costcoplus/offline-relay/internal/worker"
)

// Deps are the components the HTTP surface reads from.
type Deps struct {
	Service *service.MutationService
	Queue   *queue.Store
	Drainer *worker.Drainer
	Probe   *connectivity.HTTPProbe
	Metrics prometheus.Gatherer
}

// NewRouter wires the chi router, attaches all middleware, and registers
// every route. It is the single source of truth for the HTTP surface area.
func NewRouter(d Deps, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- global middleware (applied to every route) ---
	r.Use(chimw.Recoverer)          // recover panics, return 500
	r.Use(chimw.RequestSize(1 << 20)) // 1 MB max request body
	r.Use(apimw.CorrelationID)      // X-Correlation-ID inject / echo
	r.Use(apimw.RequestLogger(logger))

	// --- handler instances ---
	muh := handler.NewMutationHandler(d.Service, logger)
	qh := handler.NewQueueHandler(d.Service, logger)
	ch := handler.NewConnectivityHandler(d.Probe)
	mh := handler.NewMetricsHandler(d.Queue, d.Drainer, d.Probe)
	hh := handler.NewHealthHandler(d.Queue)

	// --- routes ---
	r.Get("/health", hh.Health)
	r.Get("/ready", hh.Ready)

	// Raw Prometheus scrape endpoint
	r.Handle("/metrics", promhttp.HandlerFor(d.Metrics, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/mutations", muh.Submit)

		// /drain must be registered before /{id} so chi does not treat
		// the literal string "drain" as an ID.
		r.Post("/queue/drain", qh.Drain)
		r.Get("/queue", qh.List)
		r.Delete("/queue", qh.Clear)
		r.Get("/queue/{id}", qh.Get)
		r.Delete("/queue/{id}", qh.Discard)
		r.Post("/queue/{id}/retry", qh.Retry)

		r.Get("/connectivity", ch.Get)
		r.Post("/connectivity", ch.Report)

		// JSON status snapshot
		r.Get("/metrics", mh.GetMetrics)
	})

	return r
}
