package server

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/leapstack-labs/leapdq/pkg/core"
)

func (s *Server) handleListRules(w http.ResponseWriter, r *http.Request) {
	domainParam := r.URL.Query().Get("domain")

	var list []core.QualityRule
	if domainParam == "" {
		list = s.registry.All()
	} else {
		domain, ok := core.ParseDomain(domainParam)
		if !ok {
			s.writeError(w, r, fmt.Errorf("%w: unknown domain %q", core.ErrInvalid, domainParam))
			return
		}
		list = s.registry.RulesFor(domain)
	}
	if list == nil {
		list = []core.QualityRule{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetRule(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	rule, ok := s.registry.Lookup(key)
	if !ok {
		s.writeError(w, r, fmt.Errorf("%w: rule %s", core.ErrNotFound, key))
		return
	}
	writeJSON(w, http.StatusOK, rule)
}
