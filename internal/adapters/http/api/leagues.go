package api

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	service "github.com/okian/peloton/internal/app"
)

const defaultNeighbours = 3

type createLeagueRequest struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Region  string `json:"region"`
	OwnerID string `json:"owner_id"`
	Season  int    `json:"season"`
}

type joinRequest struct {
	TeamID string `json:"team_id"`
	Code   string `json:"code"`
}

// queryCount reads a non-negative ?name=, defaulting to def and capping at limitCap.
func queryCount(r *http.Request, name string, def, limitCap int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s must be a non-negative integer", ErrBadRequest, name)
	}
	return min(n, limitCap), nil
}

// handleCreateLeague handles POST /v1/leagues.
func (s *Server) handleCreateLeague(w http.ResponseWriter, r *http.Request) {
	var req createLeagueRequest
	if err := decode(r, &req); err != nil {
		fail(w, err)
		return
	}
	l, err := s.deps.CreateLeague(r.Context(), service.LeagueRequest{
		Name:    req.Name,
		Type:    req.Type,
		Region:  req.Region,
		OwnerID: strings.TrimSpace(req.OwnerID),
		Season:  req.Season,
	})
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, l)
}

// handleListLeagues handles GET /v1/leagues?type=.
func (s *Server) handleListLeagues(w http.ResponseWriter, r *http.Request) {
	leagues, err := s.deps.Leagues(r.Context(), r.URL.Query().Get("type"))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, leagues)
}

// handleGetLeague handles GET /v1/leagues/{leagueID}.
func (s *Server) handleGetLeague(w http.ResponseWriter, r *http.Request) {
	l, err := s.deps.League(r.Context(), chi.URLParam(r, "leagueID"))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// handleDeleteLeague handles DELETE /v1/leagues/{leagueID}?owner_id=.
func (s *Server) handleDeleteLeague(w http.ResponseWriter, r *http.Request) {
	owner := strings.TrimSpace(r.URL.Query().Get("owner_id"))
	if owner == "" {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%w: owner_id is required", ErrBadRequest))
		return
	}
	if err := s.deps.DeleteLeague(r.Context(), chi.URLParam(r, "leagueID"), owner); err != nil {
		fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeJoin(r *http.Request) (joinRequest, error) {
	var req joinRequest
	if err := decode(r, &req); err != nil {
		return req, err
	}
	req.TeamID = strings.TrimSpace(req.TeamID)
	if req.TeamID == "" {
		return req, fmt.Errorf("%w: team_id is required", ErrBadRequest)
	}
	return req, nil
}

// handleJoinByCode handles POST /v1/leagues/join.
func (s *Server) handleJoinByCode(w http.ResponseWriter, r *http.Request) {
	req, err := decodeJoin(r)
	if err != nil {
		fail(w, err)
		return
	}
	l, err := s.deps.JoinLeagueByCode(r.Context(), req.Code, req.TeamID)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// handleJoinLeague handles POST /v1/leagues/{leagueID}/members.
func (s *Server) handleJoinLeague(w http.ResponseWriter, r *http.Request) {
	req, err := decodeJoin(r)
	if err != nil {
		fail(w, err)
		return
	}
	l, err := s.deps.JoinLeague(r.Context(), chi.URLParam(r, "leagueID"), req.TeamID)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, l)
}

// handleLeaveLeague handles DELETE /v1/leagues/{leagueID}/members/{teamID}.
func (s *Server) handleLeaveLeague(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.LeaveLeague(r.Context(), chi.URLParam(r, "leagueID"), chi.URLParam(r, "teamID")); err != nil {
		fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleLeagueStandings handles GET /v1/leagues/{leagueID}/standings?limit=.
func (s *Server) handleLeagueStandings(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r, defaultLimit, s.maxLimit)
	if err != nil {
		fail(w, err)
		return
	}
	entries, err := s.deps.LeagueStandings(r.Context(), chi.URLParam(r, "leagueID"), limit)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleLeagueRank handles GET /v1/leagues/{leagueID}/standings/{teamID}.
func (s *Server) handleLeagueRank(w http.ResponseWriter, r *http.Request) {
	entry, err := s.deps.LeagueRank(r.Context(), chi.URLParam(r, "leagueID"), chi.URLParam(r, "teamID"))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// handleLeagueAround handles GET /v1/leagues/{leagueID}/standings/{teamID}/around?above=&below=.
func (s *Server) handleLeagueAround(w http.ResponseWriter, r *http.Request) {
	above, err := queryCount(r, "above", defaultNeighbours, s.maxLimit)
	if err != nil {
		fail(w, err)
		return
	}
	below, err := queryCount(r, "below", defaultNeighbours, s.maxLimit)
	if err != nil {
		fail(w, err)
		return
	}
	entries, err := s.deps.LeagueAround(r.Context(), chi.URLParam(r, "leagueID"), chi.URLParam(r, "teamID"), above, below)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// handleTeamLeagues handles GET /v1/teams/{teamID}/leagues.
func (s *Server) handleTeamLeagues(w http.ResponseWriter, r *http.Request) {
	leagues, err := s.deps.TeamLeagues(r.Context(), chi.URLParam(r, "teamID"))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, leagues)
}
