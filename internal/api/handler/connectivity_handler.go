package handler

import (
	"encoding/json"
	"net/http"
)

// Reporter accepts connectivity state pushed by the embedding client.
type Reporter interface {
	Report(online bool)
	Last() (online, known bool)
}

// ConnectivityHandler lets the client forward the platform's network
// callbacks instead of waiting for the next probe.
type ConnectivityHandler struct {
	r Reporter
}

func NewConnectivityHandler(r Reporter) *ConnectivityHandler {
	return &ConnectivityHandler{r: r}
}

type connectivityState struct {
	Online *bool `json:"online"`
}

// Report handles POST /api/v1/connectivity with {"online": true|false}.
func (h *ConnectivityHandler) Report(w http.ResponseWriter, r *http.Request) {
	var body connectivityState
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Online == nil {
		respondError(w, http.StatusBadRequest, `body must be {"online": true|false}`)
		return
	}
	h.r.Report(*body.Online)
	w.WriteHeader(http.StatusNoContent)
}

// Get handles GET /api/v1/connectivity
func (h *ConnectivityHandler) Get(w http.ResponseWriter, r *http.Request) {
	online, known := h.r.Last()
	respondJSON(w, http.StatusOK, map[string]bool{"online": online, "known": known})
}
