package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (s *Server) handleLineage(w http.ResponseWriter, r *http.Request) {
	view, err := s.lineage.Snapshot(r.Context(), chi.URLParam(r, "sourceID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
