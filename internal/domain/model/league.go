package model

import (
	"strings"
	"time"
)

// LeagueType classifies a league.
type LeagueType string

// League types. Every team of a season belongs to that season's global
// league; the others are joined on request.
const (
	LeagueGlobal   LeagueType = "GLOBAL"
	LeaguePrivate  LeagueType = "PRIVATE"
	LeagueRegional LeagueType = "REGIONAL"
	LeagueMonthly  LeagueType = "MONTHLY"
)

// ParseLeagueType accepts the type names above in any case.
func ParseLeagueType(s string) (LeagueType, bool) {
	t := LeagueType(strings.ToUpper(strings.TrimSpace(s)))
	switch t {
	case LeagueGlobal, LeaguePrivate, LeagueRegional, LeagueMonthly:
		return t, true
	default:
		return "", false
	}
}

// League is a group of teams ranked against each other by season points.
// Code is set for private leagues only and is how outsiders join them.
type League struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Type        LeagueType `json:"type"`
	Code        string     `json:"code,omitempty"`
	OwnerID     string     `json:"owner_id,omitempty"`
	Region      string     `json:"region,omitempty"`
	Season      int        `json:"season"`
	MemberCount int        `json:"member_count"`
	CreatedAt   time.Time  `json:"created_at"`
}

// LeagueMember is one team's membership of a league.
type LeagueMember struct {
	LeagueID string    `json:"league_id"`
	TeamID   string    `json:"team_id"`
	JoinedAt time.Time `json:"joined_at"`
}
