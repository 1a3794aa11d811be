// Package model contains domain models passed between layers.
package model

import (
	"math"
	"strings"
	"time"
)

// Category is the rider speciality that roster quotas are counted against.
type Category string

// Fixed rider categories.
const (
	CategoryGC      Category = "GC"
	CategoryClimber Category = "CLIMBER"
	CategorySprint  Category = "SPRINT"
	CategoryTT      Category = "TT"
	CategoryHills   Category = "HILLS"
	CategoryOneDay  Category = "ONEDAY"
)

// Categories lists every category in display order.
func Categories() []Category {
	return []Category{CategoryGC, CategoryClimber, CategorySprint, CategoryTT, CategoryHills, CategoryOneDay}
}

// ParseCategory maps a case-insensitive name onto a Category.
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToUpper(strings.TrimSpace(s)))
	for _, known := range Categories() {
		if c == known {
			return c, true
		}
	}
	return "", false
}

// Cyclist is a professional rider as seen by the game. Price is only ever
// written by the pricing engine.
type Cyclist struct {
	ID               string
	Name             string
	ProTeam          string
	Category         Category
	Price            float64
	BasePrice        float64
	PriceBoostActive bool
	PriceBoostRaceID string
	PriceBoostAt     time.Time
	Disabled         bool
	UpdatedAt        time.Time
}

// Boosted reports whether the cyclist carries a pre-race boost for raceID.
func (c Cyclist) Boosted(raceID string) bool {
	return c.PriceBoostActive && c.PriceBoostRaceID == raceID
}

// PriceReason explains why a price changed.
type PriceReason string

// Price change reasons.
const (
	PriceReasonDemand       PriceReason = "DEMAND"
	PriceReasonPreRaceBoost PriceReason = "PRE_RACE_BOOST"
	PriceReasonRaceReset    PriceReason = "RACE_RESET"
	PriceReasonStaleReset   PriceReason = "STALE_RESET"
)

// PriceChange is one entry of a cyclist's price history.
type PriceChange struct {
	ID        string
	CyclistID string
	OldPrice  float64
	NewPrice  float64
	Reason    PriceReason
	CreatedAt time.Time
}

// RoundMoney rounds an amount in millions to two decimals so repeated budget
// arithmetic does not accumulate float noise.
func RoundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}
