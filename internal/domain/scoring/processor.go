package scoring

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/okian/peloton/internal/domain/dedupe"
	"github.com/okian/peloton/internal/domain/model"
	"github.com/okian/peloton/pkg/logger"
	"github.com/okian/peloton/pkg/metrics"
)

// Processor defaults, prizes in millions.
const (
	DefaultStagePrizePool   = 20.0
	DefaultOneDayPrizePool  = 50.0
	DefaultFinalGcPrizePool = 30.0
	DefaultFreePerGameweek  = 2
	DefaultMaxFreeTransfers = 5

	// FinalGcStage is the stage number final GC scores are stored under.
	FinalGcStage = 0

	defaultLockTTL = 10 * time.Second
)

// TeamRepository is the team storage scoring writes through.
type TeamRepository interface {
	GetTeam(ctx context.Context, teamID string) (model.FantasyTeam, error)
	ListTeams(ctx context.Context) ([]model.FantasyTeam, error)
	GetTeamCyclists(ctx context.Context, teamID string) ([]model.TeamCyclist, error)
	UpdateTeam(ctx context.Context, team model.FantasyTeam, expectedVersion int64) (model.FantasyTeam, error)
	AddPoints(ctx context.Context, teamID string, delta int) (int, error)
	AddBudget(ctx context.Context, teamID string, delta float64) (float64, error)
}

// RaceRepository reads and closes races.
type RaceRepository interface {
	GetRace(ctx context.Context, raceID string) (model.Race, error)
	UpdateRace(ctx context.Context, race model.Race) error
}

// ResultRepository reads results and stores team scores.
type ResultRepository interface {
	GetStage(ctx context.Context, raceID string, number int) (model.Stage, error)
	StageResults(ctx context.Context, raceID string, number int) ([]model.StageResult, error)
	GcStandings(ctx context.Context, raceID string) ([]model.GcStanding, error)
	SaveTeamStageScores(ctx context.Context, scores []model.TeamStageScore) error
	TeamStageScores(ctx context.Context, teamID string, gameweek int) ([]model.TeamStageScore, error)
}

// PowerUpFinalizer retires power-ups armed for a finished race.
type PowerUpFinalizer interface {
	FinalizeAfterRace(ctx context.Context, raceID string) (int, error)
}

// Locker serialises writers of one team.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// TeamAward is what one team received from a scoring run.
type TeamAward struct {
	TeamID string  `json:"team_id"`
	Points int     `json:"points"`
	Budget float64 `json:"budget"`
}

// Report summarises a scoring run.
type Report struct {
	RaceID    string      `json:"race_id"`
	Stage     int         `json:"stage"`
	Duplicate bool        `json:"duplicate"`
	Teams     int         `json:"teams"`
	Skipped   int         `json:"skipped"`
	Failed    int         `json:"failed"`
	Awards    []TeamAward `json:"awards"`
}

// Processor applies stage results to team totals. Every award is guarded by
// a processed marker so reruns never apply points twice.
type Processor struct {
	teams    TeamRepository
	races    RaceRepository
	results  ResultRepository
	powerups PowerUpFinalizer
	markers  dedupe.Marker
	locker   Locker

	stagePool   float64
	oneDayPool  float64
	gcPool      float64
	freePerWeek int
	maxFree     int
	lockTTL     time.Duration
	clock       func() time.Time
	logger      logger.Logger
}

// NewProcessor creates a scoring processor.
func NewProcessor(teams TeamRepository, races RaceRepository, results ResultRepository, powerups PowerUpFinalizer, markers dedupe.Marker, locker Locker, opts ...Option) *Processor {
	p := &Processor{
		teams:       teams,
		races:       races,
		results:     results,
		powerups:    powerups,
		markers:     markers,
		locker:      locker,
		stagePool:   DefaultStagePrizePool,
		oneDayPool:  DefaultOneDayPrizePool,
		gcPool:      DefaultFinalGcPrizePool,
		freePerWeek: DefaultFreePerGameweek,
		maxFree:     DefaultMaxFreeTransfers,
		lockTTL:     defaultLockTTL,
		clock:       time.Now,
		logger:      logger.Get().Named("scoring"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessStage scores one stage for every team.
func (p *Processor) ProcessStage(ctx context.Context, raceID string, number int) (Report, error) {
	start := p.clock()
	rep := Report{RaceID: raceID, Stage: number}
	done, err := p.markers.Seen(ctx, dedupe.StageKey(raceID, number))
	if err != nil {
		return rep, model.Transient("scoring: stage marker", err)
	}
	if done {
		metrics.RecordStageDuplicate()
		rep.Duplicate = true
		return rep, nil
	}

	race, err := p.races.GetRace(ctx, raceID)
	if err != nil {
		return rep, model.Transient("scoring: get race "+raceID, err)
	}
	stage, err := p.results.GetStage(ctx, raceID, number)
	if err != nil {
		return rep, model.Transient(fmt.Sprintf("scoring: get stage %s/%d", raceID, number), err)
	}
	results, err := p.results.StageResults(ctx, raceID, number)
	if err != nil {
		return rep, model.Transient("scoring: stage results", err)
	}
	if len(results) == 0 {
		return rep, fmt.Errorf("scoring: %s/%d: %w", raceID, number, ErrNoResults)
	}

	points := make(map[string]int, len(results))
	for _, r := range results {
		points[r.CyclistID] += ResultPoints(r, stage.Type, race.Type)
	}
	pool := p.stagePool
	if race.Type == model.RaceOneDay {
		pool = p.oneDayPool
	}

	run := award{
		race:      race,
		stage:     number,
		gameweek:  stage.Gameweek,
		pool:      pool,
		pointsKey: func(teamID string) string { return dedupe.TeamStageKey(raceID, number, teamID) },
		prizeKey:  func(teamID string) string { return dedupe.StagePrizeKey(raceID, number, teamID) },
		score: func(team model.FantasyTeam, roster []model.TeamCyclist) int {
			total, _ := TeamScore(team, roster, points, raceID)
			return total
		},
	}
	err = p.apply(ctx, run, &rep)
	if err == nil {
		if _, err = p.markers.SeenAndRecord(ctx, dedupe.StageKey(raceID, number)); err != nil {
			err = model.Transient("scoring: record stage marker", err)
		}
	}
	if err == nil {
		metrics.RecordStageProcessed()
	}
	metrics.RecordScoringLatency(p.clock().Sub(start).Seconds())
	p.logger.Info(ctx, "stage processed",
		logger.String("race", raceID),
		logger.Int("stage", number),
		logger.Int("teams", rep.Teams),
		logger.Int("skipped", rep.Skipped),
		logger.Int("failed", rep.Failed),
	)
	return rep, err
}

// ApplyFinalGcBonus awards the final general classification bonus of a
// stage race to every team's starters.
func (p *Processor) ApplyFinalGcBonus(ctx context.Context, raceID string) (Report, error) {
	rep := Report{RaceID: raceID, Stage: FinalGcStage}
	done, err := p.markers.Seen(ctx, dedupe.FinalGcKey(raceID))
	if err != nil {
		return rep, model.Transient("scoring: final gc marker", err)
	}
	if done {
		metrics.RecordStageDuplicate()
		rep.Duplicate = true
		return rep, nil
	}

	race, err := p.races.GetRace(ctx, raceID)
	if err != nil {
		return rep, model.Transient("scoring: get race "+raceID, err)
	}
	if race.Type == model.RaceOneDay {
		return rep, fmt.Errorf("scoring: final gc %s: %w", raceID, ErrNoGcForOneDay)
	}
	standings, err := p.results.GcStandings(ctx, raceID)
	if err != nil {
		return rep, model.Transient("scoring: gc standings", err)
	}
	if len(standings) == 0 {
		return rep, fmt.Errorf("scoring: final gc %s: %w", raceID, ErrNoResults)
	}
	gameweek := 0
	if race.Stages > 0 {
		last, err := p.results.GetStage(ctx, raceID, race.Stages)
		if err != nil {
			return rep, model.Transient("scoring: last stage", err)
		}
		gameweek = last.Gameweek
	}

	points := make(map[string]int, len(standings))
	for _, s := range standings {
		points[s.CyclistID] = FinalGcBonus(s.GcPosition)
	}
	run := award{
		race:      race,
		stage:     FinalGcStage,
		gameweek:  gameweek,
		pool:      p.gcPool,
		pointsKey: func(teamID string) string { return dedupe.TeamFinalGcKey(raceID, teamID) },
		prizeKey:  func(teamID string) string { return dedupe.FinalGcPrizeKey(raceID, teamID) },
		score: func(team model.FantasyTeam, roster []model.TeamCyclist) int {
			return StartersScore(team, roster, points, raceID)
		},
	}
	if err := p.apply(ctx, run, &rep); err != nil {
		return rep, err
	}
	if _, err := p.markers.SeenAndRecord(ctx, dedupe.FinalGcKey(raceID)); err != nil {
		return rep, model.Transient("scoring: record final gc marker", err)
	}
	p.logger.Info(ctx, "final gc applied", logger.String("race", raceID), logger.Int("teams", rep.Teams))
	return rep, nil
}

// FinalizeReport summarises FinalizeRace.
type FinalizeReport struct {
	RaceID           string `json:"race_id"`
	MarkedFinished   bool   `json:"marked_finished"`
	PowerUpsFinished int    `json:"power_ups_finished"`
}

// FinalizeRace marks the race finished and retires every power-up armed for
// it. Safe to call repeatedly.
func (p *Processor) FinalizeRace(ctx context.Context, raceID string) (FinalizeReport, error) {
	rep := FinalizeReport{RaceID: raceID}
	race, err := p.races.GetRace(ctx, raceID)
	if err != nil {
		return rep, model.Transient("scoring: get race "+raceID, err)
	}
	if !race.IsFinished {
		race.IsFinished = true
		race.IsActive = false
		race.FinishedAt = p.clock()
		if err := p.races.UpdateRace(ctx, race); err != nil {
			return rep, model.Transient("scoring: finish race "+raceID, err)
		}
		rep.MarkedFinished = true
	}
	n, err := p.powerups.FinalizeAfterRace(ctx, raceID)
	rep.PowerUpsFinished = n
	if err != nil {
		return rep, err
	}
	if _, err := p.markers.SeenAndRecord(ctx, dedupe.FinalizeKey(raceID)); err != nil {
		return rep, model.Transient("scoring: record finalize marker", err)
	}
	p.logger.Info(ctx, "race finalized", logger.String("race", raceID), logger.Int("power_ups", n))
	return rep, nil
}

// ComputeGameweekScore sums a team's recorded scores for gameweek.
func (p *Processor) ComputeGameweekScore(ctx context.Context, teamID string, gameweek int) (int, error) {
	if _, err := p.teams.GetTeam(ctx, teamID); err != nil {
		return 0, model.Transient("scoring: get team "+teamID, err)
	}
	scores, err := p.results.TeamStageScores(ctx, teamID, gameweek)
	if err != nil {
		return 0, model.Transient("scoring: team stage scores", err)
	}
	total := 0
	for _, s := range scores {
		total += s.Points
	}
	return total, nil
}

type award struct {
	race      model.Race
	stage     int
	gameweek  int
	pool      float64
	pointsKey func(teamID string) string
	prizeKey  func(teamID string) string
	score     func(team model.FantasyTeam, roster []model.TeamCyclist) int
}

type teamScore struct {
	team   model.FantasyTeam
	points int
	prize  float64
}

// apply scores every team, ranks the scorers for the prize pool and writes
// each team's row, points and prize under its own markers.
func (p *Processor) apply(ctx context.Context, a award, rep *Report) error {
	teams, err := p.teams.ListTeams(ctx)
	if err != nil {
		return model.Transient("scoring: list teams", err)
	}
	var errs []error
	scored := make([]teamScore, 0, len(teams))
	for _, t := range teams {
		roster, err := p.teams.GetTeamCyclists(ctx, t.ID)
		if err != nil {
			rep.Failed++
			errs = append(errs, model.Transient("scoring: roster of "+t.ID, err))
			continue
		}
		scored = append(scored, teamScore{team: t, points: a.score(t, roster)})
	}

	ranked := make([]*teamScore, 0, len(scored))
	for i := range scored {
		if scored[i].points > 0 {
			ranked = append(ranked, &scored[i])
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].points != ranked[j].points {
			return ranked[i].points > ranked[j].points
		}
		return ranked[i].team.ID < ranked[j].team.ID
	})
	for i, share := range PrizeShares(a.pool, len(ranked)) {
		ranked[i].prize = share
	}

	for _, s := range scored {
		applied, err := p.applyTeam(ctx, a, s)
		switch {
		case err != nil:
			rep.Failed++
			errs = append(errs, err)
		case !applied:
			rep.Skipped++
		default:
			rep.Teams++
			rep.Awards = append(rep.Awards, TeamAward{TeamID: s.team.ID, Points: s.points, Budget: s.prize})
		}
	}
	return errors.Join(errs...)
}

func (p *Processor) applyTeam(ctx context.Context, a award, s teamScore) (bool, error) {
	teamID := s.team.ID
	row := model.TeamStageScore{
		TeamID:        teamID,
		RaceID:        a.race.ID,
		StageNumber:   a.stage,
		Gameweek:      a.gameweek,
		Points:        s.points,
		BudgetEarned:  s.prize,
		TripleCaptain: s.team.TripleCaptain.ActiveFor(a.race.ID),
		BenchBoost:    s.team.BenchBoost.ActiveFor(a.race.ID),
		CreatedAt:     p.clock(),
	}
	// The row and the points delta share one marker so the stored score
	// always matches what was added to totalPoints.
	applied, err := p.once(ctx, a.pointsKey(teamID), func() error {
		if err := p.results.SaveTeamStageScores(ctx, []model.TeamStageScore{row}); err != nil {
			return model.Transient("scoring: save score of "+teamID, err)
		}
		if s.points == 0 {
			return nil
		}
		if _, err := p.teams.AddPoints(ctx, teamID, s.points); err != nil {
			return model.Transient("scoring: add points to "+teamID, err)
		}
		metrics.RecordPointsAwarded(s.points)
		return nil
	})
	if err != nil {
		return false, err
	}
	if s.prize <= 0 {
		return applied, nil
	}
	paid, err := p.once(ctx, a.prizeKey(teamID), func() error {
		if _, err := p.teams.AddBudget(ctx, teamID, s.prize); err != nil {
			return model.Transient("scoring: add prize to "+teamID, err)
		}
		metrics.RecordBudgetAwarded(s.prize)
		return nil
	})
	return applied || paid, err
}

// once runs fn unless key was already recorded, releasing the key if fn fails.
func (p *Processor) once(ctx context.Context, key string, fn func() error) (bool, error) {
	seen, err := p.markers.SeenAndRecord(ctx, key)
	if err != nil {
		return false, model.Transient("scoring: marker "+key, err)
	}
	if seen {
		return false, nil
	}
	if err := fn(); err != nil {
		if uerr := p.markers.Unrecord(context.WithoutCancel(ctx), key); uerr != nil {
			p.logger.Error(ctx, "failed to release marker", logger.String("key", key), logger.Error(uerr))
		}
		return false, err
	}
	return true, nil
}
