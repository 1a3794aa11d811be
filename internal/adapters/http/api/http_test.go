package api_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/okian/peloton/internal/adapters/http/api"
	service "github.com/okian/peloton/internal/app"
	"github.com/okian/peloton/internal/domain/model"
	"github.com/okian/peloton/internal/domain/roster"
	"github.com/okian/peloton/internal/domain/transfer"
	"github.com/okian/peloton/internal/domain/types"
	"github.com/okian/peloton/internal/domain/wildcard"
	. "github.com/smartystreets/goconvey/convey"
)

// mockDependencies records calls and returns err from every fallible method.
type mockDependencies struct {
	err       error
	session   string
	cyclistID string
	action    string
	active    bool
	kind      string
	raceID    string
	limit     int
	by        string
	jobs      []model.Job
	discarded bool
	leagueID  string
	teamID    string
	code      string
	typ       string
	above     int
	below     int
	created   service.LeagueRequest
}

func (m *mockDependencies) StageTransfer(_ context.Context, _, sessionID, cyclistID, action string) (roster.Eligibility, error) {
	m.session, m.cyclistID, m.action = sessionID, cyclistID, action
	if m.err != nil {
		return "", m.err
	}
	return roster.Eligible, nil
}

func (m *mockDependencies) EffectiveTeam(_ context.Context, teamID, sessionID string) (transfer.Effective, error) {
	m.session = sessionID
	if m.err != nil {
		return transfer.Effective{}, m.err
	}
	return transfer.Effective{TeamID: teamID, Budget: 87.5, PendingAdditions: []string{"c1"}, TransferCount: 1}, nil
}

func (m *mockDependencies) CommitDraft(_ context.Context, _, sessionID string) (transfer.Summary, error) {
	m.session = sessionID
	if m.err != nil {
		return transfer.Summary{}, m.err
	}
	return transfer.Summary{TransferCount: 1, Budget: 87.5, Succeeded: []transfer.Outcome{{CyclistID: "c1", Action: transfer.ActionAdd, Price: 12.5}}}, nil
}

func (m *mockDependencies) DiscardDraft(_ context.Context, _, sessionID string) {
	m.session = sessionID
	m.discarded = true
}

func (m *mockDependencies) SetCaptain(_ context.Context, _, cyclistID string) error {
	m.cyclistID = cyclistID
	return m.err
}

func (m *mockDependencies) SetActive(_ context.Context, _, cyclistID string, active bool) error {
	m.cyclistID, m.active = cyclistID, active
	return m.err
}

func (m *mockDependencies) ActivatePowerUp(_ context.Context, teamID, kind, raceID string) (model.FantasyTeam, error) {
	m.kind, m.raceID = kind, raceID
	if m.err != nil {
		return model.FantasyTeam{}, m.err
	}
	return model.FantasyTeam{ID: teamID, Wildcard: model.PowerUp{Used: true, Active: true, RaceID: raceID}}, nil
}

func (m *mockDependencies) CancelPowerUp(_ context.Context, teamID, kind, raceID string) (model.FantasyTeam, error) {
	m.kind, m.raceID = kind, raceID
	if m.err != nil {
		return model.FantasyTeam{}, m.err
	}
	return model.FantasyTeam{ID: teamID}, nil
}

func (m *mockDependencies) GameweekScore(_ context.Context, _ string, gameweek int) (int, error) {
	if m.err != nil {
		return 0, m.err
	}
	return gameweek * 10, nil
}

func (m *mockDependencies) EnqueueJob(_ context.Context, j model.Job) (model.Job, error) {
	if m.err != nil {
		return model.Job{}, m.err
	}
	j.ID = fmt.Sprintf("job-%d", len(m.jobs)+1)
	m.jobs = append(m.jobs, j)
	return j, nil
}

func (m *mockDependencies) DemandLeaders(_ context.Context, by string, limit int) ([]types.DemandEntry, error) {
	m.by, m.limit = by, limit
	if m.err != nil {
		return nil, m.err
	}
	return []types.DemandEntry{{CyclistID: "c1", Count: 3}}, nil
}

func (m *mockDependencies) StandingsTop(_ context.Context, limit int) ([]types.StandingEntry, error) {
	m.limit = limit
	if m.err != nil {
		return nil, m.err
	}
	return []types.StandingEntry{{Rank: 1, TeamID: "team-1", Points: 40}}, nil
}

func (m *mockDependencies) StandingsRank(_ context.Context, teamID string) (types.StandingEntry, error) {
	if m.err != nil {
		return types.StandingEntry{}, m.err
	}
	return types.StandingEntry{Rank: 2, TeamID: teamID, Points: 12}, nil
}

func (m *mockDependencies) CreateLeague(_ context.Context, req service.LeagueRequest) (model.League, error) {
	m.created = req
	if m.err != nil {
		return model.League{}, m.err
	}
	return model.League{ID: "lg-1", Name: req.Name, Type: model.LeaguePrivate, Code: "K7Q2ZP", Season: 2026, MemberCount: 1}, nil
}

func (m *mockDependencies) League(_ context.Context, leagueID string) (model.League, error) {
	m.leagueID = leagueID
	if m.err != nil {
		return model.League{}, m.err
	}
	return model.League{ID: leagueID, Name: "Amigos", Type: model.LeaguePrivate}, nil
}

func (m *mockDependencies) Leagues(_ context.Context, typ string) ([]model.League, error) {
	m.typ = typ
	if m.err != nil {
		return nil, m.err
	}
	return []model.League{{ID: "global-2026", Type: model.LeagueGlobal}}, nil
}

func (m *mockDependencies) TeamLeagues(_ context.Context, teamID string) ([]model.League, error) {
	m.teamID = teamID
	if m.err != nil {
		return nil, m.err
	}
	return []model.League{{ID: "global-2026", Type: model.LeagueGlobal}}, nil
}

func (m *mockDependencies) JoinLeague(_ context.Context, leagueID, teamID string) (model.League, error) {
	m.leagueID, m.teamID = leagueID, teamID
	if m.err != nil {
		return model.League{}, m.err
	}
	return model.League{ID: leagueID, MemberCount: 2}, nil
}

func (m *mockDependencies) JoinLeagueByCode(_ context.Context, code, teamID string) (model.League, error) {
	m.code, m.teamID = code, teamID
	if m.err != nil {
		return model.League{}, m.err
	}
	return model.League{ID: "lg-1", Code: code, MemberCount: 2}, nil
}

func (m *mockDependencies) LeaveLeague(_ context.Context, leagueID, teamID string) error {
	m.leagueID, m.teamID = leagueID, teamID
	return m.err
}

func (m *mockDependencies) DeleteLeague(_ context.Context, leagueID, ownerID string) error {
	m.leagueID, m.teamID = leagueID, ownerID
	return m.err
}

func (m *mockDependencies) LeagueStandings(_ context.Context, leagueID string, limit int) ([]types.StandingEntry, error) {
	m.leagueID, m.limit = leagueID, limit
	if m.err != nil {
		return nil, m.err
	}
	return []types.StandingEntry{{Rank: 1, TeamID: "team-1", Points: 40}}, nil
}

func (m *mockDependencies) LeagueRank(_ context.Context, leagueID, teamID string) (types.StandingEntry, error) {
	m.leagueID, m.teamID = leagueID, teamID
	if m.err != nil {
		return types.StandingEntry{}, m.err
	}
	return types.StandingEntry{Rank: 3, TeamID: teamID, Points: 20}, nil
}

func (m *mockDependencies) LeagueAround(_ context.Context, leagueID, teamID string, above, below int) ([]types.StandingEntry, error) {
	m.leagueID, m.teamID, m.above, m.below = leagueID, teamID, above, below
	if m.err != nil {
		return nil, m.err
	}
	return []types.StandingEntry{{Rank: 2, TeamID: "team-2"}, {Rank: 3, TeamID: teamID}}, nil
}

type mockStatsProvider struct {
	stats map[string]any
}

func (m *mockStatsProvider) GetStats() map[string]any { return m.stats }

func do(h http.Handler, method, path, body string, headers ...string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodeError(w *httptest.ResponseRecorder) map[string]string {
	var body map[string]string
	So(json.Unmarshal(w.Body.Bytes(), &body), ShouldBeNil)
	return body
}

func TestOpsRoutes(t *testing.T) {
	Convey("Given a new API server", t, func() {
		deps := &mockDependencies{}
		h := api.NewServer(deps, &mockStatsProvider{stats: map[string]any{"started": true}}).Handler()

		Convey("Then /healthz reports ok", func() {
			w := do(h, http.MethodGet, "/healthz", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"ok":true`)
		})

		Convey("Then /stats returns the provider's stats", func() {
			w := do(h, http.MethodGet, "/stats", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"started":true`)
		})

		Convey("Then /metrics exposes prometheus text", func() {
			do(h, http.MethodGet, "/healthz", "")
			w := do(h, http.MethodGet, "/metrics", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, "http_requests_total")
		})

		Convey("Then unknown routes are 404", func() {
			w := do(h, http.MethodGet, "/v1/nothing", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}

func TestDraftRoutes(t *testing.T) {
	Convey("Given an API server over mocked dependencies", t, func() {
		deps := &mockDependencies{}
		h := api.NewServer(deps, &mockStatsProvider{}).Handler()

		Convey("When a rider is staged in a named session", func() {
			w := do(h, http.MethodPost, "/v1/teams/team-1/draft/stage",
				`{"cyclist_id":"c1","action":"add"}`, api.SessionHeader, "tab-2")

			Convey("Then the eligibility is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"eligibility":"ELIGIBLE"`)
				So(deps.session, ShouldEqual, "tab-2")
				So(deps.cyclistID, ShouldEqual, "c1")
				So(deps.action, ShouldEqual, "add")
			})
		})

		Convey("When the body is malformed or incomplete", func() {
			bad := do(h, http.MethodPost, "/v1/teams/team-1/draft/stage", `{"cyclist_id":`)
			unknown := do(h, http.MethodPost, "/v1/teams/team-1/draft/stage", `{"cyclist":"c1"}`)
			empty := do(h, http.MethodPost, "/v1/teams/team-1/draft/stage", `{"action":"add"}`)

			Convey("Then each is a 400", func() {
				So(bad.Code, ShouldEqual, http.StatusBadRequest)
				So(unknown.Code, ShouldEqual, http.StatusBadRequest)
				So(empty.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeError(bad)["code"], ShouldEqual, "bad_request")
			})
		})

		Convey("When the roster rules refuse the rider", func() {
			deps.err = &roster.Violation{Reason: roster.CategoryFull, CyclistID: "c1"}
			w := do(h, http.MethodPost, "/v1/teams/team-1/draft/stage", `{"cyclist_id":"c1","action":"add"}`)

			Convey("Then the reason comes back as a 422", func() {
				So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
				So(decodeError(w)["code"], ShouldEqual, "CATEGORY_FULL")
			})
		})

		Convey("When the effective team is read", func() {
			w := do(h, http.MethodGet, "/v1/teams/team-1/draft", "")

			Convey("Then the projection is returned for the default session", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var eff transfer.Effective
				So(json.Unmarshal(w.Body.Bytes(), &eff), ShouldBeNil)
				So(eff.Budget, ShouldEqual, 87.5)
				So(eff.PendingAdditions, ShouldResemble, []string{"c1"})
				So(deps.session, ShouldEqual, "")
			})
		})

		Convey("When the draft is committed", func() {
			w := do(h, http.MethodPost, "/v1/teams/team-1/draft/commit", "")

			Convey("Then the summary is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				var sum transfer.Summary
				So(json.Unmarshal(w.Body.Bytes(), &sum), ShouldBeNil)
				So(sum.Budget, ShouldEqual, 87.5)
				So(len(sum.Succeeded), ShouldEqual, 1)
			})
		})

		Convey("When the draft is discarded", func() {
			w := do(h, http.MethodDelete, "/v1/teams/team-1/draft", "")

			Convey("Then it answers 204", func() {
				So(w.Code, ShouldEqual, http.StatusNoContent)
				So(deps.discarded, ShouldBeTrue)
			})
		})
	})
}

func TestErrorMapping(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{fmt.Errorf("commit: %w", model.ErrStaleData), http.StatusConflict, "stale_data"},
		{fmt.Errorf("commit: %w", model.ErrLockHeld), http.StatusConflict, "locked"},
		{fmt.Errorf("create: %w", model.ErrDuplicate), http.StatusConflict, "duplicate"},
		{service.ErrNoDraft, http.StatusNotFound, "not_found"},
		{fmt.Errorf("get: %w: boom", model.ErrTransientStorage), http.StatusServiceUnavailable, "unavailable"},
		{fmt.Errorf("lineup: %w", model.ErrInvariantViolation), http.StatusInternalServerError, "invariant_violation"},
		{fmt.Errorf("%w: x", service.ErrInvalidInput), http.StatusBadRequest, "bad_request"},
		{wildcard.ErrRaceStarted, http.StatusUnprocessableEntity, "rule_violation"},
		{fmt.Errorf("opaque"), http.StatusInternalServerError, "internal_error"},
	}

	Convey("Given commit failures of every kind", t, func() {
		for _, tc := range cases {
			deps := &mockDependencies{err: tc.err}
			h := api.NewServer(deps, &mockStatsProvider{}).Handler()
			w := do(h, http.MethodPost, "/v1/teams/team-1/draft/commit", "")

			So(w.Code, ShouldEqual, tc.status)
			So(decodeError(w)["code"], ShouldEqual, tc.code)
		}
	})
}

func TestLineupAndPowerUpRoutes(t *testing.T) {
	Convey("Given an API server over mocked dependencies", t, func() {
		deps := &mockDependencies{}
		h := api.NewServer(deps, &mockStatsProvider{}).Handler()

		Convey("When the captain and active flags are set", func() {
			c := do(h, http.MethodPut, "/v1/teams/team-1/lineup/captain", `{"cyclist_id":"c4"}`)
			a := do(h, http.MethodPut, "/v1/teams/team-1/lineup/active", `{"cyclist_id":"c5","active":true}`)

			Convey("Then both answer 204", func() {
				So(c.Code, ShouldEqual, http.StatusNoContent)
				So(a.Code, ShouldEqual, http.StatusNoContent)
				So(deps.cyclistID, ShouldEqual, "c5")
				So(deps.active, ShouldBeTrue)
			})
		})

		Convey("When a power-up is activated", func() {
			w := do(h, http.MethodPost, "/v1/teams/team-1/powerups/triple-captain/activate", `{"race_id":"R2"}`)

			Convey("Then the kind and race reach the service", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.kind, ShouldEqual, "triple-captain")
				So(deps.raceID, ShouldEqual, "R2")
			})
		})

		Convey("When a power-up is cancelled", func() {
			w := do(h, http.MethodPost, "/v1/teams/team-1/powerups/wildcard/cancel", `{"race_id":"R2"}`)

			Convey("Then it answers 200", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.kind, ShouldEqual, "wildcard")
			})
		})

		Convey("When a gameweek score is read", func() {
			ok := do(h, http.MethodGet, "/v1/teams/team-1/gameweeks/3/score", "")
			bad := do(h, http.MethodGet, "/v1/teams/team-1/gameweeks/zero/score", "")

			Convey("Then valid gameweeks score and others are 400", func() {
				So(ok.Code, ShouldEqual, http.StatusOK)
				So(ok.Body.String(), ShouldContainSubstring, `"points":30`)
				So(bad.Code, ShouldEqual, http.StatusBadRequest)
			})
		})
	})
}

func TestJobRoutes(t *testing.T) {
	Convey("Given an API server over mocked dependencies", t, func() {
		deps := &mockDependencies{}
		h := api.NewServer(deps, &mockStatsProvider{}).Handler()

		Convey("When every job route is called", func() {
			codes := []int{
				do(h, http.MethodPost, "/v1/races/R1/stages/4/process", "").Code,
				do(h, http.MethodPost, "/v1/races/R1/final-gc", "").Code,
				do(h, http.MethodPost, "/v1/races/R1/finalize", "").Code,
				do(h, http.MethodPost, "/v1/jobs/pricing", "").Code,
				do(h, http.MethodPost, "/v1/jobs/rollover/7", "").Code,
			}

			Convey("Then each job is accepted with its fields", func() {
				So(codes, ShouldResemble, []int{202, 202, 202, 202, 202})
				So(len(deps.jobs), ShouldEqual, 5)
				So(deps.jobs[0], ShouldResemble, model.Job{ID: "job-1", Kind: model.JobProcessStage, RaceID: "R1", Stage: 4})
				So(deps.jobs[1].Kind, ShouldEqual, model.JobFinalGc)
				So(deps.jobs[2].Kind, ShouldEqual, model.JobFinalizeRace)
				So(deps.jobs[3].Kind, ShouldEqual, model.JobPricing)
				So(deps.jobs[4].Gameweek, ShouldEqual, 7)
			})
		})

		Convey("When the stage is not a number", func() {
			w := do(h, http.MethodPost, "/v1/races/R1/stages/x/process", "")

			Convey("Then it is a 400 and nothing is queued", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(deps.jobs, ShouldBeEmpty)
			})
		})

		Convey("When the queue is full", func() {
			deps.err = service.ErrQueueFull
			w := do(h, http.MethodPost, "/v1/jobs/pricing", "")

			Convey("Then it is a 503", func() {
				So(w.Code, ShouldEqual, http.StatusServiceUnavailable)
			})
		})
	})
}

func TestMarketRoutes(t *testing.T) {
	Convey("Given an API server capped at 50 rows", t, func() {
		deps := &mockDependencies{}
		h := api.NewServer(deps, &mockStatsProvider{}, api.WithMaxLimit(50)).Handler()

		Convey("When demand leaders are requested", func() {
			w := do(h, http.MethodGet, "/v1/demand/leaders?by=net&limit=500", "")

			Convey("Then the order passes through and the limit is capped", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.by, ShouldEqual, "net")
				So(deps.limit, ShouldEqual, 50)
				So(w.Body.String(), ShouldContainSubstring, `"cyclist_id":"c1"`)
			})
		})

		Convey("When standings are requested without a limit", func() {
			w := do(h, http.MethodGet, "/v1/standings", "")

			Convey("Then the default limit applies", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.limit, ShouldEqual, 10)
			})
		})

		Convey("When the limit is invalid", func() {
			w := do(h, http.MethodGet, "/v1/standings?limit=-1", "")

			Convey("Then it is a 400", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When one team's standing is read", func() {
			w := do(h, http.MethodGet, "/v1/standings/team-9", "")

			Convey("Then it is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, `"team_id":"team-9"`)
			})
		})

		Convey("When the team is unranked", func() {
			deps.err = fmt.Errorf("standings: %w", model.ErrNotFound)
			w := do(h, http.MethodGet, "/v1/standings/ghost", "")

			Convey("Then it is a 404", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestLeagueRoutes(t *testing.T) {
	Convey("Given an API server capped at 20 rows", t, func() {
		deps := &mockDependencies{}
		h := api.NewServer(deps, &mockStatsProvider{}, api.WithMaxLimit(20)).Handler()

		Convey("When a league is created", func() {
			w := do(h, http.MethodPost, "/v1/leagues", `{"name":"Amigos","type":"private","owner_id":" team-1 ","season":2026}`)

			Convey("Then it is 201 with the join code", func() {
				So(w.Code, ShouldEqual, http.StatusCreated)
				So(deps.created, ShouldResemble, service.LeagueRequest{Name: "Amigos", Type: "private", OwnerID: "team-1", Season: 2026})
				So(w.Body.String(), ShouldContainSubstring, `"code":"K7Q2ZP"`)
			})
		})

		Convey("When the create body has unknown fields", func() {
			w := do(h, http.MethodPost, "/v1/leagues", `{"name":"Amigos","private":true}`)

			Convey("Then it is a 400", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When leagues are listed by type", func() {
			w := do(h, http.MethodGet, "/v1/leagues?type=global", "")

			Convey("Then the type passes through", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.typ, ShouldEqual, "global")
				So(w.Body.String(), ShouldContainSubstring, `"id":"global-2026"`)
			})
		})

		Convey("When a league is read", func() {
			w := do(h, http.MethodGet, "/v1/leagues/lg-9", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.leagueID, ShouldEqual, "lg-9")
		})

		Convey("When a team joins by code", func() {
			w := do(h, http.MethodPost, "/v1/leagues/join", `{"code":"k7q2zp","team_id":"team-2"}`)

			Convey("Then code and team pass through", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.code, ShouldEqual, "k7q2zp")
				So(deps.teamID, ShouldEqual, "team-2")
			})
		})

		Convey("When a join has no team", func() {
			w := do(h, http.MethodPost, "/v1/leagues/lg-1/members", `{"team_id":"  "}`)

			Convey("Then it is a 400", func() {
				So(w.Code, ShouldEqual, http.StatusBadRequest)
				So(decodeError(w)["code"], ShouldEqual, "bad_request")
			})
		})

		Convey("When a team joins by id and is already a member", func() {
			deps.err = fmt.Errorf("league lg-1: %w", model.ErrRuleViolation)
			w := do(h, http.MethodPost, "/v1/leagues/lg-1/members", `{"team_id":"team-2"}`)

			Convey("Then it is a 422", func() {
				So(w.Code, ShouldEqual, http.StatusUnprocessableEntity)
				So(deps.leagueID, ShouldEqual, "lg-1")
			})
		})

		Convey("When a team leaves", func() {
			w := do(h, http.MethodDelete, "/v1/leagues/lg-1/members/team-2", "")
			So(w.Code, ShouldEqual, http.StatusNoContent)
			So(deps.teamID, ShouldEqual, "team-2")
		})

		Convey("When a league is deleted", func() {
			w := do(h, http.MethodDelete, "/v1/leagues/lg-1?owner_id=team-1", "")
			So(w.Code, ShouldEqual, http.StatusNoContent)
			So(deps.teamID, ShouldEqual, "team-1")

			Convey("And without an owner it is a 400", func() {
				w := do(h, http.MethodDelete, "/v1/leagues/lg-1", "")
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When league standings are requested", func() {
			w := do(h, http.MethodGet, "/v1/leagues/lg-1/standings?limit=50", "")

			Convey("Then the limit is capped", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.limit, ShouldEqual, 20)
			})
		})

		Convey("When one member's row is read", func() {
			w := do(h, http.MethodGet, "/v1/leagues/lg-1/standings/team-4", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(w.Body.String(), ShouldContainSubstring, `"rank":3`)
		})

		Convey("When the rows around a member are read", func() {
			w := do(h, http.MethodGet, "/v1/leagues/lg-1/standings/team-4/around?above=1", "")

			Convey("Then below defaults to three", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(deps.above, ShouldEqual, 1)
				So(deps.below, ShouldEqual, 3)
			})

			Convey("And a negative count is a 400", func() {
				w := do(h, http.MethodGet, "/v1/leagues/lg-1/standings/team-4/around?below=-2", "")
				So(w.Code, ShouldEqual, http.StatusBadRequest)
			})
		})

		Convey("When a team's leagues are listed", func() {
			w := do(h, http.MethodGet, "/v1/teams/team-7/leagues", "")
			So(w.Code, ShouldEqual, http.StatusOK)
			So(deps.teamID, ShouldEqual, "team-7")
		})

		Convey("When a league is unknown", func() {
			deps.err = fmt.Errorf("league: %w", model.ErrNotFound)
			w := do(h, http.MethodGet, "/v1/leagues/ghost/standings", "")
			So(w.Code, ShouldEqual, http.StatusNotFound)
		})
	})
}
