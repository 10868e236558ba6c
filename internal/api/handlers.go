package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/oakmere/smsbridge/internal/coordinator"
	"github.com/oakmere/smsbridge/internal/gateway"
)

// handleSnapshot returns the full account aggregate.
func (s *Server) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.coord.Store().Snapshot())
}

// handleListDevices returns all device records in first-registration order.
func (s *Server) handleListDevices(w http.ResponseWriter, _ *http.Request) {
	snap := s.coord.Store().Snapshot()
	writeJSON(w, http.StatusOK, map[string]any{
		"devices": snap.Devices,
		"count":   len(snap.Devices),
	})
}

// handleGetDevice returns a single device record.
func (s *Server) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "id")

	rec, ok := s.coord.Store().Device(deviceID)
	if !ok {
		writeNotFound(w, "device not found: "+deviceID)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// handleDeviceMessages returns recent journal entries for a device.
func (s *Server) handleDeviceMessages(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		writeNotFound(w, "message journal is not enabled")
		return
	}

	deviceID := chi.URLParam(r, "id")

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			writeBadRequest(w, "limit must be a non-negative integer")
			return
		}
		limit = parsed
	}

	entries, err := s.journal.Recent(r.Context(), deviceID, limit)
	if err != nil {
		s.logger.Error("journal query failed", "device_id", deviceID, "error", err)
		writeInternalError(w, "querying message journal")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": deviceID,
		"messages":  entries,
		"count":     len(entries),
	})
}

// sendBody is the request body for POST /devices/{id}/send. Recipients
// and media URLs accept either a list or a packed string.
type sendBody struct {
	Recipients coordinator.StringList `json:"recipients"`
	Message    string                 `json:"message"`
	MediaURLs  coordinator.StringList `json:"media_urls,omitempty"`
}

// handleSend delivers an outbound SMS through the device in the path.
func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "id")

	var body sendBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	recorded, err := s.coord.SendMessage(r.Context(), coordinator.SendRequest{
		DeviceID:   deviceID,
		Recipients: body.Recipients,
		Message:    body.Message,
		MediaURLs:  body.MediaURLs,
	})
	if err != nil {
		switch {
		case errors.Is(err, coordinator.ErrNoRecipients),
			errors.Is(err, coordinator.ErrEmptyMessage):
			writeBadRequest(w, err.Error())
		case errors.Is(err, coordinator.ErrNoDevice):
			writeNotFound(w, err.Error())
		case errors.Is(err, gateway.ErrAuth):
			writeUnauthorized(w, "gateway rejected the API key")
		default:
			writeUpstreamError(w, "send failed: "+err.Error())
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "sent",
		"device_id": recorded,
	})
}

// autoReplyBody is the request body for PUT /devices/{id}/autoreply.
// Pointer fields allow partial updates.
type autoReplyBody struct {
	Enabled *bool   `json:"enabled,omitempty"`
	Message *string `json:"message,omitempty"`
}

// handleSetAutoReply updates a device's auto-reply configuration.
func (s *Server) handleSetAutoReply(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "id")

	var body autoReplyBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if body.Enabled == nil && body.Message == nil {
		writeBadRequest(w, "at least one of enabled or message is required")
		return
	}

	st := s.coord.Store()
	if body.Enabled != nil {
		st.SetAutoReplyEnabled(deviceID, *body.Enabled)
	}
	if body.Message != nil {
		st.SetAutoReplyMessage(deviceID, *body.Message)
	}

	enabled, message := st.AutoReplyConfig(deviceID)
	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": deviceID,
		"enabled":   enabled,
		"message":   message,
	})
}

// handleGetAutoReply returns a device's auto-reply configuration.
func (s *Server) handleGetAutoReply(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "id")

	enabled, message := s.coord.Store().AutoReplyConfig(deviceID)
	writeJSON(w, http.StatusOK, map[string]any{
		"device_id": deviceID,
		"enabled":   enabled,
		"message":   message,
	})
}
