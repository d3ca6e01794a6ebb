package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/leapstack-labs/leapdq/internal/pipeline"
	"github.com/leapstack-labs/leapdq/pkg/core"
)

// handleTriggerRun executes the pipeline for a source and returns the
// terminal run record. A run that failed its quality gate is still a
// 201: the failure lives in the run's layer statuses and Error field.
// Only pre-run conditions map to error responses.
func (s *Server) handleTriggerRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.engine.Run(r.Context(), chi.URLParam(r, "sourceID"), pipeline.RunOptions{})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, run)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	sourceID := chi.URLParam(r, "sourceID")
	if _, err := s.store.GetSource(sourceID); err != nil {
		s.writeError(w, r, err)
		return
	}

	runs, err := s.store.ListRunsBySource(sourceID, queryInt(r, "limit", 50))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if runs == nil {
		runs = []*core.PipelineRun{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, err := s.store.GetRun(chi.URLParam(r, "runID"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleListChecks(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if _, err := s.store.GetRun(runID); err != nil {
		s.writeError(w, r, err)
		return
	}

	results, err := s.store.ListCheckResults(runID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if results == nil {
		results = []*core.CheckResult{}
	}
	writeJSON(w, http.StatusOK, results)
}
