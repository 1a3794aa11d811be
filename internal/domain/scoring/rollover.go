package scoring

import (
	"context"
	"errors"

	"github.com/okian/peloton/internal/domain/dedupe"
	"github.com/okian/peloton/internal/domain/model"
	"github.com/okian/peloton/pkg/logger"
)

// RolloverReport summarises a gameweek rollover.
type RolloverReport struct {
	Gameweek int `json:"gameweek"`
	Rolled   int `json:"rolled"`
	Skipped  int `json:"skipped"`
	Failed   int `json:"failed"`
}

// NextFreeTransfers is the free transfer allowance after a rollover.
func NextFreeTransfers(current, perWeek, maxFree int) int {
	return min(current+perWeek, maxFree)
}

// Rollover closes gameweek for every team still in it: free transfers are
// topped up, the weekly counter cleared and the gameweek advanced.
func (p *Processor) Rollover(ctx context.Context, gameweek int) (RolloverReport, error) {
	rep := RolloverReport{Gameweek: gameweek}
	teams, err := p.teams.ListTeams(ctx)
	if err != nil {
		return rep, model.Transient("rollover: list teams", err)
	}
	var errs []error
	for _, t := range teams {
		if t.Gameweek != gameweek {
			rep.Skipped++
			continue
		}
		rolled, err := p.once(ctx, dedupe.RolloverKey(t.ID, gameweek), func() error {
			return p.rollTeam(ctx, t.ID, gameweek)
		})
		switch {
		case err != nil:
			rep.Failed++
			errs = append(errs, err)
		case rolled:
			rep.Rolled++
		default:
			rep.Skipped++
		}
	}
	p.logger.Info(ctx, "gameweek rolled over",
		logger.Int("gameweek", gameweek),
		logger.Int("rolled", rep.Rolled),
		logger.Int("failed", rep.Failed),
	)
	return rep, errors.Join(errs...)
}

func (p *Processor) rollTeam(ctx context.Context, teamID string, gameweek int) error {
	release, err := p.locker.Acquire(ctx, model.TeamLockKey(teamID), p.lockTTL)
	if err != nil {
		return model.Transient("rollover: lock team "+teamID, err)
	}
	defer release()

	team, err := p.teams.GetTeam(ctx, teamID)
	if err != nil {
		return model.Transient("rollover: get team", err)
	}
	if team.Gameweek != gameweek {
		return nil
	}
	team.FreeTransfers = NextFreeTransfers(team.FreeTransfers, p.freePerWeek, p.maxFree)
	team.TransfersMadeThisWeek = 0
	team.Gameweek++
	if _, err := p.teams.UpdateTeam(ctx, team, team.Version); err != nil {
		return model.Transient("rollover: update team", err)
	}
	return nil
}
