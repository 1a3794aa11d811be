// Package wildcard runs the per-team lifecycle of the season power-ups:
// Unused, ActiveForRace(raceID), Used.
package wildcard

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/peloton/internal/domain/model"
	"github.com/okian/peloton/pkg/logger"
	"github.com/okian/peloton/pkg/metrics"
)

const defaultLockTTL = 10 * time.Second

// State is the lifecycle position of one power-up.
type State string

// Power-up states.
const (
	Unused        State = "UNUSED"
	ActiveForRace State = "ACTIVE_FOR_RACE"
	Used          State = "USED"
)

// StateOf derives the state from the stored flags.
func StateOf(p model.PowerUp) State {
	switch {
	case p.Active:
		return ActiveForRace
	case p.Used:
		return Used
	default:
		return Unused
	}
}

// TeamRepository is the team storage the machine writes through.
type TeamRepository interface {
	GetTeam(ctx context.Context, teamID string) (model.FantasyTeam, error)
	ListTeams(ctx context.Context) ([]model.FantasyTeam, error)
	GetTeamCyclists(ctx context.Context, teamID string) ([]model.TeamCyclist, error)
	UpdateTeam(ctx context.Context, team model.FantasyTeam, expectedVersion int64) (model.FantasyTeam, error)
}

// RaceRepository looks up the race a power-up is armed for.
type RaceRepository interface {
	GetRace(ctx context.Context, raceID string) (model.Race, error)
}

// Locker serialises writers of one team.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// Machine applies power-up transitions.
type Machine struct {
	teams   TeamRepository
	races   RaceRepository
	locker  Locker
	clock   func() time.Time
	lockTTL time.Duration
	logger  logger.Logger
}

// NewMachine creates a power-up state machine.
func NewMachine(teams TeamRepository, races RaceRepository, locker Locker, opts ...Option) *Machine {
	m := &Machine{
		teams:   teams,
		races:   races,
		locker:  locker,
		clock:   time.Now,
		lockTTL: defaultLockTTL,
		logger:  logger.Get().Named("wildcard"),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Activate arms kind for raceID. Only legal from Unused and before the race starts.
func (m *Machine) Activate(ctx context.Context, teamID string, kind model.PowerUpKind, raceID string) (model.FantasyTeam, error) {
	if err := m.raceOpen(ctx, raceID); err != nil {
		return model.FantasyTeam{}, err
	}
	return m.transition(ctx, teamID, kind, raceID, "activate", func(team *model.FantasyTeam, p *model.PowerUp) error {
		if s := StateOf(*p); s != Unused {
			return fmt.Errorf("activate %s on %s (state %s): %w", kind, teamID, s, ErrNotUnused)
		}
		p.Used, p.Active, p.RaceID = true, true, raceID
		if kind == model.BenchBoost {
			bench, err := m.bench(ctx, teamID)
			if err != nil {
				return err
			}
			team.BenchBoostSnapshot = bench
		}
		return nil
	})
}

// Cancel disarms kind while raceID has not started, returning it to Unused.
func (m *Machine) Cancel(ctx context.Context, teamID string, kind model.PowerUpKind, raceID string) (model.FantasyTeam, error) {
	if err := m.raceOpen(ctx, raceID); err != nil {
		return model.FantasyTeam{}, err
	}
	return m.transition(ctx, teamID, kind, raceID, "cancel", func(team *model.FantasyTeam, p *model.PowerUp) error {
		if !p.ActiveFor(raceID) {
			return fmt.Errorf("cancel %s on %s for %s: %w", kind, teamID, raceID, ErrNotActiveFor)
		}
		*p = model.PowerUp{}
		if kind == model.BenchBoost {
			team.BenchBoostSnapshot = nil
		}
		return nil
	})
}

// FinalizeAfterRace moves every power-up armed for raceID to Used on every
// team. Already finalized power-ups are left as they are.
func (m *Machine) FinalizeAfterRace(ctx context.Context, raceID string) (int, error) {
	teams, err := m.teams.ListTeams(ctx)
	if err != nil {
		return 0, model.Transient("finalize power-ups: list teams", err)
	}
	finalized := 0
	for _, t := range teams {
		if !armedFor(t, raceID) {
			continue
		}
		n, err := m.finalizeTeam(ctx, t.ID, raceID)
		if err != nil {
			return finalized, err
		}
		finalized += n
	}
	m.logger.Info(ctx, "power-ups finalized", logger.String("race", raceID), logger.Int("count", finalized))
	return finalized, nil
}

func (m *Machine) finalizeTeam(ctx context.Context, teamID, raceID string) (int, error) {
	release, err := m.locker.Acquire(ctx, model.TeamLockKey(teamID), m.lockTTL)
	if err != nil {
		return 0, model.Transient("finalize power-ups: lock team "+teamID, err)
	}
	defer release()

	team, err := m.teams.GetTeam(ctx, teamID)
	if err != nil {
		return 0, model.Transient("finalize power-ups: get team", err)
	}
	n := 0
	for _, kind := range model.PowerUpKinds() {
		p := team.PowerUp(kind)
		if p.ActiveFor(raceID) {
			p.Active, p.Used = false, true
			metrics.RecordPowerUpTransition(string(kind), "finalize")
			n++
		}
	}
	if n == 0 {
		return 0, nil
	}
	if _, err := m.teams.UpdateTeam(ctx, team, team.Version); err != nil {
		return 0, model.Transient("finalize power-ups: update team", err)
	}
	return n, nil
}

func (m *Machine) transition(ctx context.Context, teamID string, kind model.PowerUpKind, raceID, name string,
	fn func(team *model.FantasyTeam, p *model.PowerUp) error,
) (model.FantasyTeam, error) {
	release, err := m.locker.Acquire(ctx, model.TeamLockKey(teamID), m.lockTTL)
	if err != nil {
		return model.FantasyTeam{}, model.Transient(name+": lock team "+teamID, err)
	}
	defer release()

	team, err := m.teams.GetTeam(ctx, teamID)
	if err != nil {
		return model.FantasyTeam{}, model.Transient(name+": get team", err)
	}
	p := team.PowerUp(kind)
	if p == nil {
		return model.FantasyTeam{}, fmt.Errorf("%s %q: %w", name, kind, ErrUnknownKind)
	}
	if err := fn(&team, p); err != nil {
		return model.FantasyTeam{}, err
	}
	updated, err := m.teams.UpdateTeam(ctx, team, team.Version)
	if err != nil {
		return model.FantasyTeam{}, model.Transient(name+": update team", err)
	}
	metrics.RecordPowerUpTransition(string(kind), name)
	m.logger.Info(ctx, "power-up transition",
		logger.String("team", teamID),
		logger.String("kind", string(kind)),
		logger.String("transition", name),
		logger.String("race", raceID),
	)
	return updated, nil
}

// raceOpen fails unless raceID exists and has not started.
func (m *Machine) raceOpen(ctx context.Context, raceID string) error {
	race, err := m.races.GetRace(ctx, raceID)
	if err != nil {
		return model.Transient("power-up: get race "+raceID, err)
	}
	if race.Started(m.clock()) {
		return fmt.Errorf("race %s: %w", raceID, ErrRaceStarted)
	}
	return nil
}

func (m *Machine) bench(ctx context.Context, teamID string) ([]string, error) {
	members, err := m.teams.GetTeamCyclists(ctx, teamID)
	if err != nil {
		return nil, model.Transient("bench boost: get roster", err)
	}
	bench := []string{}
	for _, mem := range members {
		if !mem.IsActive {
			bench = append(bench, mem.CyclistID)
		}
	}
	return bench, nil
}

func armedFor(t model.FantasyTeam, raceID string) bool {
	return t.Wildcard.ActiveFor(raceID) || t.TripleCaptain.ActiveFor(raceID) || t.BenchBoost.ActiveFor(raceID)
}
