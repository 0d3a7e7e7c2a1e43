package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	apimw "github.com/costcoplus/offline-relay/internal/api/middleware"
	"github.com/costcoplus/offline-relay/internal/domain"
	"github.com/costcoplus/offline-relay/internal/service"
	"github.com/costcoplus/offline-relay/internal/worker"
)

// QueueHandler exposes the pending queue for badges and manual control.
type QueueHandler struct {
	svc    *service.MutationService
	logger *zap.Logger
}

func NewQueueHandler(svc *service.MutationService, logger *zap.Logger) *QueueHandler {
	return &QueueHandler{svc: svc, logger: logger}
}

type queueResponse struct {
	Count int                     `json:"count"`
	Items []domain.QueuedMutation `json:"items"`
}

// List handles GET /api/v1/queue
//
// @Summary  Pending mutations, oldest first
// @Tags     queue
// @Produce  json
// @Success  200  {object}  queueResponse
// @Failure  503  {object}  map[string]string
// @Router   /api/v1/queue [get]
func (h *QueueHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Pending(r.Context())
	if err != nil {
		mapError(w, err)
		return
	}
	if items == nil {
		items = []domain.QueuedMutation{}
	}
	respondJSON(w, http.StatusOK, queueResponse{Count: len(items), Items: items})
}

// Get handles GET /api/v1/queue/{id}
func (h *QueueHandler) Get(w http.ResponseWriter, r *http.Request) {
	m, err := h.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}

// Clear handles DELETE /api/v1/queue
func (h *QueueHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Clear(r.Context()); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Discard handles DELETE /api/v1/queue/{id}. Unknown ids still return 204.
func (h *QueueHandler) Discard(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Discard(r.Context(), chi.URLParam(r, "id")); err != nil {
		mapError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Retry handles POST /api/v1/queue/{id}/retry
//
// @Summary  Send one queued mutation now
// @Tags     queue
// @Produce  json
// @Param    id   path      string  true  "Mutation id"
// @Success  200  {object}  map[string]string
// @Failure  404  {object}  map[string]string
// @Failure  409  {object}  map[string]string  "A drain cycle is running"
// @Failure  502  {object}  map[string]string  "Remote unavailable, record kept"
// @Router   /api/v1/queue/{id}/retry [post]
func (h *QueueHandler) Retry(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	outcome, err := h.svc.Retry(r.Context(), id)
	if err != nil {
		h.logger.Warn("retry queued mutation failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.String("mutation_id", id),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]worker.Outcome{"outcome": outcome})
}

// Drain handles POST /api/v1/queue/drain and blocks until the cycle ends.
func (h *QueueHandler) Drain(w http.ResponseWriter, r *http.Request) {
	report := h.svc.Drain(r.Context())
	status := http.StatusOK
	if report.Skipped && report.Reason == "in progress" {
		status = http.StatusConflict
	}
	respondJSON(w, status, report)
}
