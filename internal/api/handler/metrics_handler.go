package handler

import (
	"context"
	"net/http"

	"github.com/costcoplus/offline-relay/internal/worker"
)

type depthReader interface {
	Len(ctx context.Context) (int, error)
}

type stateReader interface {
	State() worker.State
}

type lastKnown interface {
	Last() (online, known bool)
}

// MetricsHandler serves a human-readable JSON snapshot of the relay.
// Raw Prometheus metrics (counters, histograms) are available at /metrics
// via promhttp.Handler and are separate from this endpoint.
type MetricsHandler struct {
	q       depthReader
	drainer stateReader
	conn    lastKnown
}

func NewMetricsHandler(q depthReader, drainer stateReader, conn lastKnown) *MetricsHandler {
	return &MetricsHandler{q: q, drainer: drainer, conn: conn}
}

// GetMetrics handles GET /api/v1/metrics
//
// @Summary  Queue depth, drain state and connectivity
// @Tags     metrics
// @Produce  json
// @Success  200  {object}  map[string]any
// @Router   /api/v1/metrics [get]
func (h *MetricsHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	depth, err := h.q.Len(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}
	online, known := h.conn.Last()
	respondJSON(w, http.StatusOK, map[string]any{
		"queue_depth": depth,
		"drain_state": h.drainer.State().String(),
		"connectivity": map[string]bool{
			"online": online,
			"known":  known,
		},
	})
}
