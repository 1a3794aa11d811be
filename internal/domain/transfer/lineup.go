package transfer

import (
	"context"
	"fmt"

	"github.com/okian/peloton/internal/domain/model"
	"github.com/okian/peloton/pkg/logger"
)

// SetCaptain moves the captaincy to cyclistID.
func (l *Ledger) SetCaptain(ctx context.Context, teamID, cyclistID string) error {
	return l.withLineup(ctx, teamID, func(members []model.TeamCyclist) error {
		if _, ok := findMember(members, cyclistID); !ok {
			return fmt.Errorf("captain %s: %w", cyclistID, ErrNotOwned)
		}
		if err := l.teams.SetCaptain(ctx, teamID, cyclistID); err != nil {
			return model.Transient("set captain", err)
		}
		l.logger.Info(ctx, "captain changed", logger.String("team", teamID), logger.String("cyclist", cyclistID))
		return nil
	})
}

// SetActive moves cyclistID between the starting eight and the bench.
func (l *Ledger) SetActive(ctx context.Context, teamID, cyclistID string, active bool) error {
	return l.withLineup(ctx, teamID, func(members []model.TeamCyclist) error {
		i, ok := findMember(members, cyclistID)
		if !ok {
			return fmt.Errorf("lineup %s: %w", cyclistID, ErrNotOwned)
		}
		if members[i].IsActive == active {
			return nil
		}
		members[i].IsActive = active
		if err := l.rules.ValidateLineup(members); err != nil {
			return err
		}
		if err := l.teams.SetActive(ctx, teamID, cyclistID, active); err != nil {
			return model.Transient("set active", err)
		}
		return nil
	})
}

// withLineup runs fn under the team lock once no race is being ridden.
func (l *Ledger) withLineup(ctx context.Context, teamID string, fn func([]model.TeamCyclist) error) error {
	races, err := l.races.ListRaces(ctx)
	if err != nil {
		return model.Transient("lineup: list races", err)
	}
	now := l.clock()
	for _, r := range races {
		if r.InProgress(now) {
			return fmt.Errorf("lineup %s: race %s: %w", teamID, r.ID, model.ErrTeamLocked)
		}
	}

	release, err := l.locker.Acquire(ctx, model.TeamLockKey(teamID), l.lockTTL)
	if err != nil {
		return model.Transient("lineup: lock team "+teamID, err)
	}
	defer release()

	members, err := l.teams.GetTeamCyclists(ctx, teamID)
	if err != nil {
		return model.Transient("lineup: get roster", err)
	}
	return fn(members)
}

func findMember(members []model.TeamCyclist, cyclistID string) (int, bool) {
	for i, m := range members {
		if m.CyclistID == cyclistID {
			return i, true
		}
	}
	return -1, false
}
