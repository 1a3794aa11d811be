// Package seed fills a store with a playable season: a rider catalog, a race
// calendar with results and fantasy teams drafted through the transfer rules.
package seed

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/okian/peloton/internal/adapters/repository"
	"github.com/okian/peloton/internal/domain/model"
	"github.com/okian/peloton/internal/domain/roster"
	"github.com/okian/peloton/internal/domain/transfer"
	"github.com/okian/peloton/pkg/logger"
)

// Defaults for a generated season.
const (
	defaultTeams            = 20
	defaultRidersPerProTeam = 8
	startingBudget          = 100.0
	startingFreeTransfers   = 2
	seasonGameweek          = 1
	stageRaceStages         = 3
)

var proTeams = []string{"UAE", "JVB", "INE", "SOQ", "LTK", "EFE", "BOH", "ADC"} //nolint:gochecknoglobals // fixture data

// Drafter stages and commits transfers the way a player would.
type Drafter interface {
	StageTransfer(ctx context.Context, teamID, sessionID, cyclistID, action string) (roster.Eligibility, error)
	CommitDraft(ctx context.Context, teamID, sessionID string) (transfer.Summary, error)
}

// Report summarises a seeding run.
type Report struct {
	Cyclists  int `json:"cyclists"`
	Teams     int `json:"teams"`
	Transfers int `json:"transfers"`
	Races     int `json:"races"`
	Results   int `json:"results"`
}

// Generator builds a season into a store.
type Generator struct {
	store   repository.Store
	drafter Drafter

	teams            int
	ridersPerProTeam int
	seed             uint64
	clock            func() time.Time
	logger           logger.Logger
}

// New creates a Generator writing to store and drafting through drafter.
func New(store repository.Store, drafter Drafter, opts ...Option) *Generator {
	g := &Generator{
		store:            store,
		drafter:          drafter,
		teams:            defaultTeams,
		ridersPerProTeam: defaultRidersPerProTeam,
		seed:             1,
		clock:            time.Now,
		logger:           logger.Get().Named("seed"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Run writes the season. Teams are drafted before the calendar exists so no
// race is in progress while rosters are built.
func (g *Generator) Run(ctx context.Context) (Report, error) {
	var rep Report
	rng := rand.New(rand.NewPCG(g.seed, g.seed^0x9e3779b97f4a7c15)) //nolint:gosec // fixture data
	now := g.clock().UTC()

	cyclists, err := g.catalog(ctx, rng)
	if err != nil {
		return rep, err
	}
	rep.Cyclists = len(cyclists)

	for i := range g.teams {
		id := uuid.NewString()
		if _, err := g.store.CreateTeam(ctx, model.FantasyTeam{
			ID:            id,
			UserID:        fmt.Sprintf("user-%03d", i+1),
			Name:          fmt.Sprintf("Team %03d", i+1),
			Season:        now.Year(),
			Budget:        startingBudget,
			FreeTransfers: roster.DefaultTeamSize,
			Gameweek:      seasonGameweek,
		}); err != nil {
			return rep, fmt.Errorf("seed: create team: %w", err)
		}
		n, err := g.draft(ctx, rng, id, cyclists)
		if err != nil {
			return rep, err
		}
		rep.Teams++
		rep.Transfers += n
	}

	races, results, err := g.calendar(ctx, rng, cyclists, now)
	if err != nil {
		return rep, err
	}
	rep.Races, rep.Results = races, results

	g.logger.Info(ctx, "season seeded",
		logger.Int("cyclists", rep.Cyclists),
		logger.Int("teams", rep.Teams),
		logger.Int("transfers", rep.Transfers),
		logger.Int("races", rep.Races),
	)
	return rep, nil
}

func (g *Generator) catalog(ctx context.Context, rng *rand.Rand) ([]model.Cyclist, error) {
	categories := model.Categories()
	out := make([]model.Cyclist, 0, len(proTeams)*g.ridersPerProTeam)
	for _, team := range proTeams {
		for i := range g.ridersPerProTeam {
			// 4.0 to 12.0 in steps of 0.5
			price := 4 + float64(rng.IntN(17))/2
			c := model.Cyclist{
				ID:        fmt.Sprintf("%s-%02d", team, i+1),
				Name:      fmt.Sprintf("%s rider %d", team, i+1),
				ProTeam:   team,
				Category:  categories[(i+len(out))%len(categories)],
				Price:     price,
				BasePrice: price,
			}
			if err := g.store.UpsertCyclist(ctx, c); err != nil {
				return nil, fmt.Errorf("seed: upsert cyclist %s: %w", c.ID, err)
			}
			out = append(out, c)
		}
	}
	return out, nil
}

// draft stages riders in random order, skipping the ones the rules refuse,
// and commits what fits.
func (g *Generator) draft(ctx context.Context, rng *rand.Rand, teamID string, cyclists []model.Cyclist) (int, error) {
	order := rng.Perm(len(cyclists))
	staged := 0
	for _, idx := range order {
		if staged == roster.DefaultTeamSize {
			break
		}
		_, err := g.drafter.StageTransfer(ctx, teamID, "seed", cyclists[idx].ID, string(transfer.ActionAdd))
		switch {
		case err == nil:
			staged++
		case errors.Is(err, model.ErrRuleViolation):
		default:
			return 0, fmt.Errorf("seed: stage %s for %s: %w", cyclists[idx].ID, teamID, err)
		}
	}
	committed := 0
	if staged > 0 {
		sum, err := g.drafter.CommitDraft(ctx, teamID, "seed")
		if err != nil {
			return 0, fmt.Errorf("seed: commit %s: %w", teamID, err)
		}
		committed = len(sum.Succeeded)
	}
	// The opening squad is free; the weekly allowance starts afterwards.
	team, err := g.store.GetTeam(ctx, teamID)
	if err != nil {
		return 0, fmt.Errorf("seed: get team %s: %w", teamID, err)
	}
	team.FreeTransfers = startingFreeTransfers
	team.TransfersMadeThisWeek = 0
	if _, err := g.store.UpdateTeam(ctx, team, team.Version); err != nil {
		return 0, fmt.Errorf("seed: reset allowance %s: %w", teamID, err)
	}
	return committed, nil
}

// calendar writes a finished stage race with results for every stage, a
// one-day classic with results and a stage race that opens next week.
func (g *Generator) calendar(ctx context.Context, rng *rand.Rand, cyclists []model.Cyclist, now time.Time) (int, int, error) {
	day := 24 * time.Hour
	ids := make([]string, len(cyclists))
	for i, c := range cyclists {
		ids[i] = c.ID
	}

	races := []struct {
		race   model.Race
		stages []model.StageType
	}{
		{
			race:   model.Race{ID: "tour-north", Name: "Tour of the North", Type: model.RaceStage, StartDate: now.Add(-5 * day), EndDate: now.Add(-2 * day), Stages: stageRaceStages, Season: now.Year()},
			stages: []model.StageType{model.StageFlat, model.StageMountain, model.StageITT},
		},
		{
			race:   model.Race{ID: "classic-coast", Name: "Coast Classic", Type: model.RaceOneDay, StartDate: now.Add(-day), Stages: 1, Season: now.Year()},
			stages: []model.StageType{model.StageHilly},
		},
		{
			race: model.Race{ID: "tour-south", Name: "Tour of the South", Type: model.RaceStage, StartDate: now.Add(7 * day), EndDate: now.Add(10 * day), Stages: stageRaceStages, Season: now.Year()},
		},
	}

	results := 0
	for _, r := range races {
		if err := g.store.UpsertRace(ctx, r.race); err != nil {
			return 0, 0, fmt.Errorf("seed: upsert race %s: %w", r.race.ID, err)
		}
		if err := g.store.SetParticipants(ctx, r.race.ID, ids); err != nil {
			return 0, 0, fmt.Errorf("seed: participants %s: %w", r.race.ID, err)
		}
		for i, st := range r.stages {
			n := i + 1
			if err := g.store.UpsertStage(ctx, model.Stage{
				RaceID: r.race.ID, Number: n, Type: st, Gameweek: seasonGameweek,
				Date: r.race.StartDate.Add(time.Duration(i) * day),
			}); err != nil {
				return 0, 0, fmt.Errorf("seed: upsert stage %s/%d: %w", r.race.ID, n, err)
			}
			rows := stageResults(rng, r.race.ID, n, ids)
			if err := g.store.SaveStageResults(ctx, rows); err != nil {
				return 0, 0, fmt.Errorf("seed: results %s/%d: %w", r.race.ID, n, err)
			}
			results += len(rows)
		}
		if r.race.Type != model.RaceOneDay && len(r.stages) > 0 {
			gc := make([]model.GcStanding, 0, len(ids))
			for pos, idx := range rng.Perm(len(ids)) {
				gc = append(gc, model.GcStanding{RaceID: r.race.ID, CyclistID: ids[idx], GcPosition: pos + 1})
			}
			if err := g.store.SaveGcStandings(ctx, gc); err != nil {
				return 0, 0, fmt.Errorf("seed: gc %s: %w", r.race.ID, err)
			}
		}
	}
	return len(races), results, nil
}

// stageResults shuffles the field into a finishing order. One rider in
// twenty abandons; the first four finishers lead the classifications.
func stageResults(rng *rand.Rand, raceID string, stage int, ids []string) []model.StageResult {
	out := make([]model.StageResult, 0, len(ids))
	pos := 0
	for _, idx := range rng.Perm(len(ids)) {
		r := model.StageResult{RaceID: raceID, StageNumber: stage, CyclistID: ids[idx], Status: model.StatusFinished}
		if rng.IntN(20) == 0 {
			r.Status = model.StatusDNF
		} else {
			pos++
			r.Position = pos
			r.GcPosition = pos
			r.Jerseys = model.Jerseys{GC: pos == 1, Points: pos == 2, Mountains: pos == 3, Young: pos == 4}
		}
		out = append(out, r)
	}
	return out
}
