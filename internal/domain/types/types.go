// Package types contains common types used across the application
package types

// StandingEntry represents one row of the season standings.
type StandingEntry struct {
	Rank         int    `json:"rank"`
	TeamID       string `json:"team_id"`
	Points       int    `json:"points"`
	PreviousRank int    `json:"previous_rank,omitempty"`

	// RankChange is positive when the team climbed since the last snapshot.
	RankChange int `json:"rank_change"`
}

// DemandEntry is one row of a transfer-market leaderboard.
type DemandEntry struct {
	CyclistID string `json:"cyclist_id"`
	Count     int    `json:"count"`
}
