package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// handleDemandLeaders handles GET /v1/demand/leaders?by=buy|sell|net&limit=.
func (s *Server) handleDemandLeaders(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r, defaultLimit, s.maxLimit)
	if err != nil {
		fail(w, err)
		return
	}
	entries, err := s.deps.DemandLeaders(r.Context(), r.URL.Query().Get("by"), limit)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleStandings handles GET /v1/standings?limit=.
func (s *Server) handleStandings(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r, defaultLimit, s.maxLimit)
	if err != nil {
		fail(w, err)
		return
	}
	entries, err := s.deps.StandingsTop(r.Context(), limit)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleStandingsRank handles GET /v1/standings/{teamID}.
func (s *Server) handleStandingsRank(w http.ResponseWriter, r *http.Request) {
	entry, err := s.deps.StandingsRank(r.Context(), chi.URLParam(r, "teamID"))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}
