package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/oakmere/smsbridge/internal/coordinator"
)

// handleWebhook accepts push deliveries from the vendor.
//
// The secret webhook ID in the path is the only authentication on this
// route; a mismatch 404s so the endpoint is indistinguishable from an
// unregistered path. The payload enters the coordinator's shared
// ingestion path, so a webhook delivery and a later poll of the same
// message count once.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	presented := chi.URLParam(r, "webhookID")
	if subtle.ConstantTimeCompare([]byte(presented), []byte(s.webhookID)) != 1 {
		writeNotFound(w, "not found")
		return
	}

	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if err := s.coord.HandleWebhook(r.Context(), payload); err != nil {
		if errors.Is(err, coordinator.ErrBadWebhook) {
			writeBadRequest(w, err.Error())
			return
		}
		writeInternalError(w, "processing webhook")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
}
