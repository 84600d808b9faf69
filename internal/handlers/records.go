package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prudhvinik1/sheetsync/internal/models"
)

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	table := models.Table(chi.URLParam(r, "table"))

	var data map[string]any
	if err := decodeJSON(r, &data); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	record, err := s.records.Create(r.Context(), table, data)
	if err != nil {
		slog.Error("create record failed", "table", table, "err", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	table := models.Table(chi.URLParam(r, "table"))

	records, err := s.records.List(r.Context(), table)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	if records == nil {
		records = []*models.Record{}
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	table := models.Table(chi.URLParam(r, "table"))
	id, ok := recordID(w, r)
	if !ok {
		return
	}

	record, err := s.records.Get(r.Context(), table, id)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	table := models.Table(chi.URLParam(r, "table"))
	id, ok := recordID(w, r)
	if !ok {
		return
	}

	var data map[string]any
	if err := decodeJSON(r, &data); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	record, err := s.records.Update(r.Context(), table, id, data)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	table := models.Table(chi.URLParam(r, "table"))
	id, ok := recordID(w, r)
	if !ok {
		return
	}

	if err := s.records.Delete(r.Context(), table, id); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	table := models.Table(chi.URLParam(r, "table"))

	var rows []map[string]any
	if err := decodeJSON(r, &rows); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := s.records.Import(r.Context(), table, rows)
	if err != nil {
		slog.Error("import failed", "table", table, "rows", len(rows), "err", err)
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func recordID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "id must be a uuid"})
		return uuid.Nil, false
	}
	return id, true
}
