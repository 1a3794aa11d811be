package api

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/okian/peloton/internal/domain/roster"
)

type stageRequest struct {
	CyclistID string `json:"cyclist_id"`
	Action    string `json:"action"`
}

type stageResponse struct {
	CyclistID   string             `json:"cyclist_id"`
	Action      string             `json:"action"`
	Eligibility roster.Eligibility `json:"eligibility"`
}

type captainRequest struct {
	CyclistID string `json:"cyclist_id"`
}

type activeRequest struct {
	CyclistID string `json:"cyclist_id"`
	Active    bool   `json:"active"`
}

type powerUpRequest struct {
	RaceID string `json:"race_id"`
}

type scoreResponse struct {
	TeamID   string `json:"team_id"`
	Gameweek int    `json:"gameweek"`
	Points   int    `json:"points"`
}

func sessionOf(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(SessionHeader))
}

// handleStage handles POST /v1/teams/{teamID}/draft/stage.
func (s *Server) handleStage(w http.ResponseWriter, r *http.Request) {
	var req stageRequest
	if err := decode(r, &req); err != nil {
		fail(w, err)
		return
	}
	if strings.TrimSpace(req.CyclistID) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
		return
	}
	teamID := chi.URLParam(r, "teamID")
	e, err := s.deps.StageTransfer(r.Context(), teamID, sessionOf(r), req.CyclistID, req.Action)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stageResponse{CyclistID: req.CyclistID, Action: req.Action, Eligibility: e})
}

// handleEffectiveTeam handles GET /v1/teams/{teamID}/draft.
func (s *Server) handleEffectiveTeam(w http.ResponseWriter, r *http.Request) {
	eff, err := s.deps.EffectiveTeam(r.Context(), chi.URLParam(r, "teamID"), sessionOf(r))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, eff)
}

// handleCommit handles POST /v1/teams/{teamID}/draft/commit.
func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	sum, err := s.deps.CommitDraft(r.Context(), chi.URLParam(r, "teamID"), sessionOf(r))
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// handleDiscard handles DELETE /v1/teams/{teamID}/draft.
func (s *Server) handleDiscard(w http.ResponseWriter, r *http.Request) {
	s.deps.DiscardDraft(r.Context(), chi.URLParam(r, "teamID"), sessionOf(r))
	w.WriteHeader(http.StatusNoContent)
}

// handleSetCaptain handles PUT /v1/teams/{teamID}/lineup/captain.
func (s *Server) handleSetCaptain(w http.ResponseWriter, r *http.Request) {
	var req captainRequest
	if err := decode(r, &req); err != nil {
		fail(w, err)
		return
	}
	if err := s.deps.SetCaptain(r.Context(), chi.URLParam(r, "teamID"), req.CyclistID); err != nil {
		fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSetActive handles PUT /v1/teams/{teamID}/lineup/active.
func (s *Server) handleSetActive(w http.ResponseWriter, r *http.Request) {
	var req activeRequest
	if err := decode(r, &req); err != nil {
		fail(w, err)
		return
	}
	if err := s.deps.SetActive(r.Context(), chi.URLParam(r, "teamID"), req.CyclistID, req.Active); err != nil {
		fail(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleActivatePowerUp handles POST /v1/teams/{teamID}/powerups/{kind}/activate.
func (s *Server) handleActivatePowerUp(w http.ResponseWriter, r *http.Request) {
	var req powerUpRequest
	if err := decode(r, &req); err != nil {
		fail(w, err)
		return
	}
	team, err := s.deps.ActivatePowerUp(r.Context(), chi.URLParam(r, "teamID"), chi.URLParam(r, "kind"), req.RaceID)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}

// handleCancelPowerUp handles POST /v1/teams/{teamID}/powerups/{kind}/cancel.
func (s *Server) handleCancelPowerUp(w http.ResponseWriter, r *http.Request) {
	var req powerUpRequest
	if err := decode(r, &req); err != nil {
		fail(w, err)
		return
	}
	team, err := s.deps.CancelPowerUp(r.Context(), chi.URLParam(r, "teamID"), chi.URLParam(r, "kind"), req.RaceID)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, team)
}

// handleGameweekScore handles GET /v1/teams/{teamID}/gameweeks/{gameweek}/score.
func (s *Server) handleGameweekScore(w http.ResponseWriter, r *http.Request) {
	gw, err := positiveParam(r, "gameweek")
	if err != nil {
		fail(w, err)
		return
	}
	teamID := chi.URLParam(r, "teamID")
	points, err := s.deps.GameweekScore(r.Context(), teamID, gw)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, scoreResponse{TeamID: teamID, Gameweek: gw, Points: points})
}
