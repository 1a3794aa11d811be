// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	service "github.com/okian/peloton/internal/app"
	"github.com/okian/peloton/internal/domain/model"
	"github.com/okian/peloton/internal/domain/roster"
	"github.com/okian/peloton/internal/domain/transfer"
	"github.com/okian/peloton/internal/domain/types"
	"github.com/okian/peloton/pkg/metrics"
)

// SessionHeader selects the draft session of a request. Requests without
// it share the default session.
const SessionHeader = "X-Draft-Session"

const (
	defaultRequestTimeout = 30 * time.Second
	defaultMaxLimit       = 100
	defaultLimit          = 10
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service implementation.
type Dependencies interface {
	StageTransfer(ctx context.Context, teamID, sessionID, cyclistID, action string) (roster.Eligibility, error)
	EffectiveTeam(ctx context.Context, teamID, sessionID string) (transfer.Effective, error)
	CommitDraft(ctx context.Context, teamID, sessionID string) (transfer.Summary, error)
	DiscardDraft(ctx context.Context, teamID, sessionID string)

	SetCaptain(ctx context.Context, teamID, cyclistID string) error
	SetActive(ctx context.Context, teamID, cyclistID string, active bool) error

	ActivatePowerUp(ctx context.Context, teamID, kind, raceID string) (model.FantasyTeam, error)
	CancelPowerUp(ctx context.Context, teamID, kind, raceID string) (model.FantasyTeam, error)

	GameweekScore(ctx context.Context, teamID string, gameweek int) (int, error)
	EnqueueJob(ctx context.Context, j model.Job) (model.Job, error)

	DemandLeaders(ctx context.Context, by string, limit int) ([]types.DemandEntry, error)
	StandingsTop(ctx context.Context, limit int) ([]types.StandingEntry, error)
	StandingsRank(ctx context.Context, teamID string) (types.StandingEntry, error)

	CreateLeague(ctx context.Context, req service.LeagueRequest) (model.League, error)
	League(ctx context.Context, leagueID string) (model.League, error)
	Leagues(ctx context.Context, typ string) ([]model.League, error)
	TeamLeagues(ctx context.Context, teamID string) ([]model.League, error)
	JoinLeague(ctx context.Context, leagueID, teamID string) (model.League, error)
	JoinLeagueByCode(ctx context.Context, code, teamID string) (model.League, error)
	LeaveLeague(ctx context.Context, leagueID, teamID string) error
	DeleteLeague(ctx context.Context, leagueID, ownerID string) error
	LeagueStandings(ctx context.Context, leagueID string, limit int) ([]types.StandingEntry, error)
	LeagueRank(ctx context.Context, leagueID, teamID string) (types.StandingEntry, error)
	LeagueAround(ctx context.Context, leagueID, teamID string, above, below int) ([]types.StandingEntry, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	deps     Dependencies
	stats    StatsProvider
	mux      *chi.Mux
	maxLimit int
	timeout  time.Duration
}

// Option applies a configuration option to the Server.
type Option func(*Server)

// WithMaxLimit caps the limit accepted by list endpoints.
func WithMaxLimit(n int) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithRequestTimeout bounds the time a handler may run.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// NewServer creates a new API server with all routes registered.
func NewServer(deps Dependencies, stats StatsProvider, opts ...Option) *Server {
	s := &Server{
		deps:     deps,
		stats:    stats,
		mux:      chi.NewRouter(),
		maxLimit: defaultMaxLimit,
		timeout:  defaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// Router exposes the router so other packages can mount routes on it.
func (s *Server) Router() chi.Router { return s.mux }

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.mux }

func (s *Server) routes() {
	r := s.mux
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(s.timeout))
	r.Use(MetricsMiddleware)

	r.Get("/healthz", handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	r.Get("/stats", NewStatsHandler(s.stats).HandleStats)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/teams/{teamID}", func(r chi.Router) {
			r.Get("/draft", s.handleEffectiveTeam)
			r.Delete("/draft", s.handleDiscard)
			r.Post("/draft/stage", s.handleStage)
			r.Post("/draft/commit", s.handleCommit)

			r.Put("/lineup/captain", s.handleSetCaptain)
			r.Put("/lineup/active", s.handleSetActive)

			r.Post("/powerups/{kind}/activate", s.handleActivatePowerUp)
			r.Post("/powerups/{kind}/cancel", s.handleCancelPowerUp)

			r.Get("/gameweeks/{gameweek}/score", s.handleGameweekScore)
			r.Get("/leagues", s.handleTeamLeagues)
		})

		r.Post("/races/{raceID}/stages/{stage}/process", s.handleProcessStage)
		r.Post("/races/{raceID}/final-gc", s.handleFinalGc)
		r.Post("/races/{raceID}/finalize", s.handleFinalize)
		r.Post("/jobs/pricing", s.handlePricing)
		r.Post("/jobs/rollover/{gameweek}", s.handleRollover)

		r.Get("/demand/leaders", s.handleDemandLeaders)
		r.Get("/standings", s.handleStandings)
		r.Get("/standings/{teamID}", s.handleStandingsRank)

		r.Route("/leagues", func(r chi.Router) {
			r.Get("/", s.handleListLeagues)
			r.Post("/", s.handleCreateLeague)
			r.Post("/join", s.handleJoinByCode)
			r.Route("/{leagueID}", func(r chi.Router) {
				r.Get("/", s.handleGetLeague)
				r.Delete("/", s.handleDeleteLeague)
				r.Post("/members", s.handleJoinLeague)
				r.Delete("/members/{teamID}", s.handleLeaveLeague)
				r.Get("/standings", s.handleLeagueStandings)
				r.Get("/standings/{teamID}", s.handleLeagueRank)
				r.Get("/standings/{teamID}/around", s.handleLeagueAround)
			})
		})
	})
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// statusOf maps the domain error taxonomy onto an HTTP status and code.
func statusOf(err error) (int, string) {
	if reason, ok := roster.ReasonOf(err); ok {
		return http.StatusUnprocessableEntity, string(reason)
	}
	switch {
	case errors.Is(err, ErrBadRequest), errors.Is(err, service.ErrInvalidInput), errors.Is(err, service.ErrInvalidJob):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, model.ErrStaleData):
		return http.StatusConflict, "stale_data"
	case errors.Is(err, model.ErrDuplicate):
		return http.StatusConflict, "duplicate"
	case errors.Is(err, model.ErrLockHeld):
		return http.StatusConflict, "locked"
	case errors.Is(err, model.ErrRuleViolation), errors.Is(err, model.ErrTeamLocked):
		return http.StatusUnprocessableEntity, "rule_violation"
	case errors.Is(err, model.ErrInvariantViolation):
		return http.StatusInternalServerError, "invariant_violation"
	case errors.Is(err, model.ErrTransientStorage):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func fail(w http.ResponseWriter, err error) {
	status, code := statusOf(err)
	writeError(w, status, code, err)
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %w", ErrBadRequest, err)
	}
	return nil
}

func positiveParam(r *http.Request, name string) (int, error) {
	n, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", ErrBadRequest, name)
	}
	return n, nil
}

// queryLimit reads ?limit=, defaulting to def and capping at limitCap.
func queryLimit(r *http.Request, def, limitCap int) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%w: limit must be a positive integer", ErrBadRequest)
	}
	return min(n, limitCap), nil
}
