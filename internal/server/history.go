package server

import (
	"net/http"

	"github.com/pitchline-ai/pitchline/internal/history"
)

type historyListResponse struct {
	Records []history.Record `json:"records"`
}

func (s *Server) handleHistoryList(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.List(r.Context())
	if err != nil {
		s.storeError(w, "list", err)
		return
	}
	if records == nil {
		records = []history.Record{}
	}
	writeJSON(w, http.StatusOK, historyListResponse{Records: records})
}

func (s *Server) handleHistorySave(w http.ResponseWriter, r *http.Request) {
	var rec history.Record
	if !decodeBody(w, r, &rec) {
		return
	}

	if err := s.store.Save(r.Context(), &rec); err != nil {
		s.storeError(w, "save", err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) handleHistoryDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, codeInvalidRequest, "record id is required")
		return
	}

	if err := s.store.Delete(r.Context(), id); err != nil {
		s.storeError(w, "delete", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
