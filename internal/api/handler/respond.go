package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/costcoplus/offline-relay/internal/domain"
)

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// mapError translates domain sentinel errors to HTTP status codes.
// All mapping lives here so individual handlers stay concise.
func mapError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrDrainInProgress):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrUnknownKind),
		errors.Is(err, domain.ErrInvalidPayload):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, domain.ErrPermanentRemote):
		respondError(w, http.StatusUnprocessableEntity, "rejected by remote API: "+err.Error())
	case errors.Is(err, domain.ErrTransientRemote):
		respondError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, domain.ErrStorage):
		respondError(w, http.StatusServiceUnavailable, "offline queue storage unavailable")
	default:
		respondError(w, http.StatusInternalServerError, "internal server error")
	}
}
