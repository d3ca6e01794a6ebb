package server

import (
	"net/http"
)

func (s *Server) handleDashboardStats(w http.ResponseWriter, r *http.Request) {
	summary, err := s.store.Summary()
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleDashboardTimeline(w http.ResponseWriter, r *http.Request) {
	buckets, err := s.store.CheckTimeline(queryInt(r, "days", 7))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, buckets)
}
