// Package repository defines the storage contracts shared by the memory,
// postgres and redis backends.
package repository

import (
	"context"
	"time"

	"github.com/okian/peloton/internal/domain/model"
	"github.com/okian/peloton/internal/domain/types"
)

// Teams reads and writes fantasy teams and their rosters. Every call is
// atomic on its own; there is no cross-call transaction.
type Teams interface {
	GetTeam(ctx context.Context, teamID string) (model.FantasyTeam, error)
	ListTeams(ctx context.Context) ([]model.FantasyTeam, error)
	CreateTeam(ctx context.Context, team model.FantasyTeam) (model.FantasyTeam, error)
	// UpdateTeam writes every field except Budget and TotalPoints when the
	// stored version equals expectedVersion. Returns model.ErrStaleData otherwise.
	UpdateTeam(ctx context.Context, team model.FantasyTeam, expectedVersion int64) (model.FantasyTeam, error)
	AddPoints(ctx context.Context, teamID string, delta int) (int, error)
	AddBudget(ctx context.Context, teamID string, delta float64) (float64, error)

	GetTeamCyclists(ctx context.Context, teamID string) ([]model.TeamCyclist, error)
	AddCyclistToTeam(ctx context.Context, member model.TeamCyclist) error
	RemoveCyclistFromTeam(ctx context.Context, teamID, cyclistID string) error
	SetCaptain(ctx context.Context, teamID, cyclistID string) error
	SetActive(ctx context.Context, teamID, cyclistID string, active bool) error
	// OwnershipCounts returns how many teams own each cyclist and the team total.
	OwnershipCounts(ctx context.Context) (map[string]int, int, error)

	SaveTransfers(ctx context.Context, transfers []model.Transfer) error
	ListTransfers(ctx context.Context, teamID string) ([]model.Transfer, error)
}

// Cyclists is the cyclist catalog.
type Cyclists interface {
	GetCyclist(ctx context.Context, cyclistID string) (model.Cyclist, error)
	ListCyclists(ctx context.Context) ([]model.Cyclist, error)
	UpsertCyclist(ctx context.Context, c model.Cyclist) error
	// UpdatePrice writes the price and boost fields only.
	UpdatePrice(ctx context.Context, c model.Cyclist) error
}

// Races is the race calendar.
type Races interface {
	GetRace(ctx context.Context, raceID string) (model.Race, error)
	ListRaces(ctx context.Context) ([]model.Race, error)
	UpsertRace(ctx context.Context, race model.Race) error
	UpdateRace(ctx context.Context, race model.Race) error
	Participants(ctx context.Context, raceID string) ([]string, error)
	SetParticipants(ctx context.Context, raceID string, cyclistIDs []string) error
}

// Results holds stage metadata, results and recorded team scores.
type Results interface {
	GetStage(ctx context.Context, raceID string, number int) (model.Stage, error)
	UpsertStage(ctx context.Context, stage model.Stage) error
	StageResults(ctx context.Context, raceID string, number int) ([]model.StageResult, error)
	SaveStageResults(ctx context.Context, results []model.StageResult) error
	GcStandings(ctx context.Context, raceID string) ([]model.GcStanding, error)
	SaveGcStandings(ctx context.Context, standings []model.GcStanding) error
	// SaveTeamStageScores upserts by (team, race, stage).
	SaveTeamStageScores(ctx context.Context, scores []model.TeamStageScore) error
	TeamStageScores(ctx context.Context, teamID string, gameweek int) ([]model.TeamStageScore, error)
}

// Demand holds the transfer-market counters. Increments are storage-side atomic.
type Demand interface {
	IncrementBuy(ctx context.Context, cyclistID string, period time.Time) error
	IncrementSell(ctx context.Context, cyclistID string, period time.Time) error
	UpdateOwnership(ctx context.Context, cyclistID string, period time.Time, owners, totalTeams int) error
	// GetDemand returns zero counters when nothing was recorded for the period.
	GetDemand(ctx context.Context, cyclistID string, period time.Time) (model.CyclistDemand, error)
	TopDemand(ctx context.Context, period time.Time, order model.DemandOrder, limit int) ([]types.DemandEntry, error)
}

// PriceHistory is the append-only log of price changes.
type PriceHistory interface {
	RecordPriceChange(ctx context.Context, change model.PriceChange) error
	PriceHistory(ctx context.Context, cyclistID string) ([]model.PriceChange, error)
}

// Markers records processed keys with set-if-absent semantics.
type Markers interface {
	SeenAndRecord(ctx context.Context, key string) (bool, error)
	Unrecord(ctx context.Context, key string) error
	Seen(ctx context.Context, key string) (bool, error)
}

// Locker hands out short-lived exclusive locks.
type Locker interface {
	// Acquire returns model.ErrLockHeld when key is taken. The returned
	// release func is safe to call more than once.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// Leagues stores leagues and their memberships. AddMember and RemoveMember
// keep League.MemberCount in step with the membership rows.
type Leagues interface {
	// CreateLeague returns model.ErrDuplicate when the id or the code is taken.
	CreateLeague(ctx context.Context, league model.League) (model.League, error)
	GetLeague(ctx context.Context, leagueID string) (model.League, error)
	GetLeagueByCode(ctx context.Context, code string) (model.League, error)
	ListLeagues(ctx context.Context) ([]model.League, error)
	// DeleteLeague removes the league and its memberships.
	DeleteLeague(ctx context.Context, leagueID string) error

	// AddMember returns model.ErrDuplicate when the team is already a member.
	AddMember(ctx context.Context, member model.LeagueMember) error
	RemoveMember(ctx context.Context, leagueID, teamID string) error
	Members(ctx context.Context, leagueID string) ([]model.LeagueMember, error)
	TeamLeagues(ctx context.Context, teamID string) ([]model.League, error)
}

// Store is the record store backing a deployment.
type Store interface {
	Teams
	Cyclists
	Races
	Results
	PriceHistory
}
