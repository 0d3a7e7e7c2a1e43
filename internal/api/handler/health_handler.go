package handler

import "net/http"

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	q depthReader
}

func NewHealthHandler(q depthReader) *HealthHandler { return &HealthHandler{q: q} }

// Health handles GET /health
//
// @Summary  Liveness probe
// @Tags     system
// @Produce  json
// @Success  200  {object}  map[string]string
// @Router   /health [get]
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Ready handles GET /ready. It fails while the queue backend cannot be read.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if _, err := h.q.Len(r.Context()); err != nil {
		mapError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
