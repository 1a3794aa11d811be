package dedupe

import (
	"fmt"
	"time"
)

// Key builders shared by every Marker backend so processed state survives a
// switch between them.

func StageKey(raceID string, stage int) string {
	return fmt.Sprintf("stage:%s:%d", raceID, stage)
}

func TeamStageKey(raceID string, stage int, teamID string) string {
	return fmt.Sprintf("stage:%s:%d:team:%s", raceID, stage, teamID)
}

func StagePrizeKey(raceID string, stage int, teamID string) string {
	return fmt.Sprintf("prize:stage:%s:%d:team:%s", raceID, stage, teamID)
}

func FinalGcKey(raceID string) string {
	return "gc:" + raceID
}

func TeamFinalGcKey(raceID, teamID string) string {
	return fmt.Sprintf("gc:%s:team:%s", raceID, teamID)
}

func FinalGcPrizeKey(raceID, teamID string) string {
	return fmt.Sprintf("prize:gc:%s:team:%s", raceID, teamID)
}

func FinalizeKey(raceID string) string {
	return "finalize:" + raceID
}

// DemandKey marks one demand drift per cyclist per UTC day.
func DemandKey(cyclistID string, day time.Time) string {
	return fmt.Sprintf("demand:%s:%s", cyclistID, day.UTC().Format(time.DateOnly))
}

func RolloverKey(teamID string, gameweek int) string {
	return fmt.Sprintf("rollover:%s:%d", teamID, gameweek)
}
