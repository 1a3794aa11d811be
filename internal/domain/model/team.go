package model

import (
	"strings"
	"time"
)

// PowerUpKind names one of the three season power-ups.
type PowerUpKind string

// Power-up kinds.
const (
	Wildcard      PowerUpKind = "wildcard"
	TripleCaptain PowerUpKind = "triple_captain"
	BenchBoost    PowerUpKind = "bench_boost"
)

// PowerUpKinds lists every power-up kind.
func PowerUpKinds() []PowerUpKind {
	return []PowerUpKind{Wildcard, TripleCaptain, BenchBoost}
}

// ParsePowerUpKind accepts "wildcard", "triple-captain", "TRIPLE_CAPTAIN" and friends.
func ParsePowerUpKind(s string) (PowerUpKind, bool) {
	k := PowerUpKind(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_"))
	for _, known := range PowerUpKinds() {
		if k == known {
			return k, true
		}
	}
	return "", false
}

// PowerUp is the persisted state of one power-up on a team.
type PowerUp struct {
	Used   bool
	Active bool
	RaceID string
}

// ActiveFor reports whether the power-up is armed for raceID.
func (p PowerUp) ActiveFor(raceID string) bool {
	return p.Active && p.RaceID == raceID
}

// FantasyTeam is a user's season entry. Budget is the money left to spend and
// FreeTransfers the free transfers left before penalties apply.
type FantasyTeam struct {
	ID                    string
	UserID                string
	Name                  string
	Season                int
	Budget                float64
	FreeTransfers         int
	TransfersMadeThisWeek int
	TotalPoints           int
	Gameweek              int
	Wildcard              PowerUp
	TripleCaptain         PowerUp
	BenchBoost            PowerUp
	BenchBoostSnapshot    []string
	Version               int64
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

// PowerUp returns a pointer to the state of kind, or nil for an unknown kind.
func (t *FantasyTeam) PowerUp(kind PowerUpKind) *PowerUp {
	switch kind {
	case Wildcard:
		return &t.Wildcard
	case TripleCaptain:
		return &t.TripleCaptain
	case BenchBoost:
		return &t.BenchBoost
	default:
		return nil
	}
}

// UnlimitedTransfers reports whether the wildcard is currently armed.
func (t FantasyTeam) UnlimitedTransfers() bool {
	return t.Wildcard.Active
}

// TeamCyclist is one roster membership row.
type TeamCyclist struct {
	TeamID        string
	CyclistID     string
	IsActive      bool
	IsCaptain     bool
	PurchasePrice float64
	AddedAt       time.Time
}

// Transfer is the immutable record of one committed swap. Either side may be
// empty when additions and removals were unbalanced.
type Transfer struct {
	ID           string
	TeamID       string
	CyclistInID  string
	CyclistOutID string
	PriceIn      float64
	PriceOut     float64
	Gameweek     int
	PointsCost   int
	CreatedAt    time.Time
}

// TeamLockKey is the lock key serialising writers of one team.
func TeamLockKey(teamID string) string {
	return "team:" + teamID
}
