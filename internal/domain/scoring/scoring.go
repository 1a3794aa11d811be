// Package scoring turns race results into fantasy points and budget prizes.
package scoring

import (
	"math"

	"github.com/okian/peloton/internal/domain/model"
)

// Jersey bonuses.
const (
	GcJerseyBonus        = 10
	PointsJerseyBonus    = 5
	MountainsJerseyBonus = 5
	YoungJerseyBonus     = 3
)

// Captain multipliers.
const (
	CaptainMultiplier       = 2
	TripleCaptainMultiplier = 3
)

// Points by finishing position, index 0 is first place.
//
//nolint:gochecknoglobals // immutable tables
var (
	stagePointsTable  = [...]int{50, 40, 35, 30, 25, 22, 20, 18, 16, 14, 12, 10, 8, 6, 5, 4, 3, 2, 1, 1}
	oneDayPointsTable = [...]int{100, 80, 70, 60, 50, 45, 40, 35, 30, 25, 20, 18, 16, 14, 12, 10, 8, 6, 4, 2}
	finalGcBonusTable = [...]int{200, 150, 100, 80, 60, 50, 40, 35, 30, 25}
)

func lookup(table []int, position int) int {
	if position < 1 || position > len(table) {
		return 0
	}
	return table[position-1]
}

// StagePoints returns the position points of a stage scaled by the stage
// type multiplier and floored.
func StagePoints(position int, stageType model.StageType) int {
	base := lookup(stagePointsTable[:], position)
	return int(math.Floor(float64(base) * stageType.Multiplier()))
}

// OneDayPoints returns the position points of a one-day race.
func OneDayPoints(position int) int {
	return lookup(oneDayPointsTable[:], position)
}

// JerseyBonus sums the bonuses of every jersey held.
func JerseyBonus(j model.Jerseys) int {
	bonus := 0
	if j.GC {
		bonus += GcJerseyBonus
	}
	if j.Points {
		bonus += PointsJerseyBonus
	}
	if j.Mountains {
		bonus += MountainsJerseyBonus
	}
	if j.Young {
		bonus += YoungJerseyBonus
	}
	return bonus
}

// FinalGcBonus is the one-off bonus for the final general classification.
func FinalGcBonus(gcPosition int) int {
	return lookup(finalGcBonusTable[:], gcPosition)
}

// ResultPoints scores one rider on one stage. A rider who did not finish
// gets no position points but keeps any jersey bonus.
func ResultPoints(r model.StageResult, stageType model.StageType, raceType model.RaceType) int {
	points := 0
	if r.Status.Finished() {
		if raceType == model.RaceOneDay {
			points = OneDayPoints(r.Position)
		} else {
			points = StagePoints(r.Position, stageType)
		}
	}
	return points + JerseyBonus(r.Jerseys)
}

// CaptainMultiplierFor returns 3 when TripleCaptain is armed for raceID, else 2.
func CaptainMultiplierFor(team model.FantasyTeam, raceID string) int {
	if team.TripleCaptain.ActiveFor(raceID) {
		return TripleCaptainMultiplier
	}
	return CaptainMultiplier
}

// Contribution is what one roster member added to a team score.
type Contribution struct {
	CyclistID  string `json:"cyclist_id"`
	Points     int    `json:"points"`
	Multiplier int    `json:"multiplier"`
	Counted    bool   `json:"counted"`
}

// TeamScore sums the points of the team's starters for raceID, with the
// captain multiplied. Bench riders count only while BenchBoost is armed for
// raceID.
func TeamScore(team model.FantasyTeam, roster []model.TeamCyclist, points map[string]int, raceID string) (int, []Contribution) {
	bench := team.BenchBoost.ActiveFor(raceID)
	captain := CaptainMultiplierFor(team, raceID)
	total := 0
	out := make([]Contribution, 0, len(roster))
	for _, m := range roster {
		c := Contribution{CyclistID: m.CyclistID, Points: points[m.CyclistID], Multiplier: 1}
		if m.IsCaptain {
			c.Multiplier = captain
		}
		c.Counted = m.IsActive || bench
		if c.Counted {
			total += c.Points * c.Multiplier
		}
		out = append(out, c)
	}
	return total, out
}

// StartersScore is TeamScore without the bench, used for the final GC bonus.
func StartersScore(team model.FantasyTeam, roster []model.TeamCyclist, points map[string]int, raceID string) int {
	captain := CaptainMultiplierFor(team, raceID)
	total := 0
	for _, m := range roster {
		if !m.IsActive {
			continue
		}
		p := points[m.CyclistID]
		if m.IsCaptain {
			p *= captain
		}
		total += p
	}
	return total
}

// PrizeShares splits pool between ranked teams. The top half (rounded up)
// is paid, rank i of M receiving (M-i+1) / (M(M+1)/2) of the pool.
func PrizeShares(pool float64, ranked int) []float64 {
	if ranked <= 0 || pool <= 0 {
		return nil
	}
	paid := (ranked + 1) / 2
	denom := float64(paid*(paid+1)) / 2
	out := make([]float64, paid)
	for i := range out {
		out[i] = model.RoundMoney(pool * float64(paid-i) / denom)
	}
	return out
}
