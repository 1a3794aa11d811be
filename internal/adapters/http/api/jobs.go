package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/okian/peloton/internal/domain/model"
)

func (s *Server) enqueue(w http.ResponseWriter, r *http.Request, j model.Job) {
	queued, err := s.deps.EnqueueJob(r.Context(), j)
	if err != nil {
		fail(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, queued)
}

// handleProcessStage handles POST /v1/races/{raceID}/stages/{stage}/process.
func (s *Server) handleProcessStage(w http.ResponseWriter, r *http.Request) {
	stage, err := positiveParam(r, "stage")
	if err != nil {
		fail(w, err)
		return
	}
	s.enqueue(w, r, model.Job{Kind: model.JobProcessStage, RaceID: chi.URLParam(r, "raceID"), Stage: stage})
}

// handleFinalGc handles POST /v1/races/{raceID}/final-gc.
func (s *Server) handleFinalGc(w http.ResponseWriter, r *http.Request) {
	s.enqueue(w, r, model.Job{Kind: model.JobFinalGc, RaceID: chi.URLParam(r, "raceID")})
}

// handleFinalize handles POST /v1/races/{raceID}/finalize.
func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	s.enqueue(w, r, model.Job{Kind: model.JobFinalizeRace, RaceID: chi.URLParam(r, "raceID")})
}

// handlePricing handles POST /v1/jobs/pricing.
func (s *Server) handlePricing(w http.ResponseWriter, r *http.Request) {
	s.enqueue(w, r, model.Job{Kind: model.JobPricing})
}

// handleRollover handles POST /v1/jobs/rollover/{gameweek}.
func (s *Server) handleRollover(w http.ResponseWriter, r *http.Request) {
	gw, err := positiveParam(r, "gameweek")
	if err != nil {
		fail(w, err)
		return
	}
	s.enqueue(w, r, model.Job{Kind: model.JobRollover, Gameweek: gw})
}
