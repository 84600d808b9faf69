package handlers

import (
	"net/http"
	"strconv"

	"github.com/prudhvinik1/sheetsync/internal/models"
	"github.com/prudhvinik1/sheetsync/internal/services"
)

const maxEventLimit = 500

// handleSync applies a request synchronously. Success false with a 502 means
// the spreadsheet side failed; the primary store is not involved.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	var req models.SyncRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := services.ValidateRequest(req); err != nil {
		writeJSON(w, http.StatusBadRequest, models.SyncResult{Success: false, Error: err.Error()})
		return
	}

	result := s.syncer.Sync(r.Context(), req)
	if !result.Success {
		writeJSON(w, http.StatusBadGateway, result)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	status := models.SyncStatus(r.URL.Query().Get("status"))
	switch status {
	case "", models.SyncStatusSucceeded, models.SyncStatusFailed:
	default:
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "status must be succeeded or failed"})
		return
	}

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 1 {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = min(parsed, maxEventLimit)
	}

	events, err := s.events.ListRecent(r.Context(), status, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if events == nil {
		events = []*models.SyncEvent{}
	}
	writeJSON(w, http.StatusOK, events)
}
