package handler

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	apimw "github.com/costcoplus/offline-relay/internal/api/middleware"
	"github.com/costcoplus/offline-relay/internal/domain"
	"github.com/costcoplus/offline-relay/internal/service"
)

// MutationHandler accepts writes from interactive features.
type MutationHandler struct {
	svc    *service.MutationService
	logger *zap.Logger
}

func NewMutationHandler(svc *service.MutationService, logger *zap.Logger) *MutationHandler {
	return &MutationHandler{svc: svc, logger: logger}
}

// Submit handles POST /api/v1/mutations
//
// @Summary     Send a mutation, or queue it while offline
// @Tags        mutations
// @Accept      json
// @Produce     json
// @Param       body  body      domain.SubmitRequest  true  "Mutation kind and payload"
// @Success     200   {object}  domain.SubmitResult   "Sent to the remote API"
// @Success     202   {object}  domain.SubmitResult   "Queued, will be sent automatically"
// @Failure     422   {object}  map[string]string
// @Failure     503   {object}  map[string]string
// @Router      /api/v1/mutations [post]
func (h *MutationHandler) Submit(w http.ResponseWriter, r *http.Request) {
	var req domain.SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	res, err := h.svc.Submit(r.Context(), req)
	if err != nil {
		h.logger.Warn("submit mutation failed",
			zap.String("correlation_id", apimw.GetCorrelationID(r.Context())),
			zap.String("kind", string(req.Kind)),
			zap.Error(err),
		)
		mapError(w, err)
		return
	}

	status := http.StatusOK
	if res.Queued {
		status = http.StatusAccepted
	}
	respondJSON(w, status, res)
}
