// Package pricing computes demand drift, pre-race boosts and boost resets.
// The functions here are pure; Job drives them against the repositories.
package pricing

import (
	"math"
	"time"

	"github.com/okian/peloton/internal/domain/model"
)

// Pricing defaults, prices in millions.
const (
	DefaultBoostFactor      = 1.05
	DefaultLookahead        = 5 * 24 * time.Hour
	DefaultDailyChangeLimit = 0.05
	DefaultMinPrice         = 1.0
	DefaultMaxPrice         = 25.0

	driftStep     = 0.1
	bucketPercent = 5.0
	minFactor     = 0.5
	maxFactor     = 2.0
)

// RoundTenth rounds to the nearest 0.1.
func RoundTenth(v float64) float64 {
	return math.Round(v*10) / 10
}

// OwnershipPercent is the share of teams owning the cyclist, 0 to 100.
func OwnershipPercent(d model.CyclistDemand) float64 {
	return d.OwnershipRatio() * 100
}

// NetDemandPercent is buys minus sells relative to the number of teams.
func NetDemandPercent(d model.CyclistDemand) float64 {
	if d.TotalTeams <= 0 {
		return 0
	}
	return float64(d.NetDemand()) / float64(d.TotalTeams) * 100
}

// DriftPrice moves basePrice by 0.1 for every 5% of ownership and every 5%
// of net demand, then clamps to [0.5, 2.0] × basePrice.
func DriftPrice(basePrice float64, d model.CyclistDemand) float64 {
	steps := math.Floor(OwnershipPercent(d)/bucketPercent) + math.Floor(NetDemandPercent(d)/bucketPercent)
	price := RoundTenth(basePrice + driftStep*steps)
	return clamp(price, basePrice*minFactor, basePrice*maxFactor)
}

// LimitDailyChange moves current toward target by at most limit × current.
func LimitDailyChange(current, target, limit float64) float64 {
	if limit <= 0 || current <= 0 {
		return target
	}
	lo, hi := current*(1-limit), current*(1+limit)
	out := RoundTenth(clamp(target, lo, hi))
	// Rounding must not push the move past the limit.
	if out > hi+1e-9 {
		out = RoundTenth(out - driftStep)
	}
	if out < lo-1e-9 {
		out = RoundTenth(out + driftStep)
	}
	return out
}

// ClampGlobal keeps a price inside the game-wide bounds.
func ClampGlobal(price, minPrice, maxPrice float64) float64 {
	return clamp(price, minPrice, maxPrice)
}

// BoostWindowOpen reports whether race starts within lookahead of now.
func BoostWindowOpen(race model.Race, lookahead time.Duration, now time.Time) bool {
	if race.IsFinished || race.Started(now) {
		return false
	}
	return !race.StartDate.After(now.Add(lookahead))
}

// ApplyPreRaceBoost prices c at basePrice × factor for race. The price is
// always derived from basePrice so repeated calls yield the same value. A
// cyclist already boosted for a different race is returned unchanged.
func ApplyPreRaceBoost(c model.Cyclist, race model.Race, factor float64, now time.Time) (model.Cyclist, bool) {
	if c.PriceBoostActive && c.PriceBoostRaceID != race.ID {
		return c, false
	}
	target := RoundTenth(c.BasePrice * factor)
	if c.Boosted(race.ID) && c.Price == target {
		return c, false
	}
	if !c.Boosted(race.ID) {
		c.PriceBoostAt = now
	}
	c.PriceBoostActive = true
	c.PriceBoostRaceID = race.ID
	c.Price = target
	return c, true
}

// BoostReset is a boost cleared by ResetStaleBoosts.
type BoostReset struct {
	Cyclist  model.Cyclist
	OldPrice float64
	Reason   model.PriceReason
}

// ResetStaleBoosts clears boosts whose race finished or vanished, or whose
// lookahead window elapsed without the race starting. Prices go back to
// basePrice.
func ResetStaleBoosts(cyclists []model.Cyclist, races map[string]model.Race, lookahead time.Duration, now time.Time) []BoostReset {
	var out []BoostReset
	for _, c := range cyclists {
		if !c.PriceBoostActive {
			continue
		}
		reason, stale := staleReason(c, races, lookahead, now)
		if !stale {
			continue
		}
		old := c.Price
		c.Price = c.BasePrice
		c.PriceBoostActive = false
		c.PriceBoostRaceID = ""
		c.PriceBoostAt = time.Time{}
		out = append(out, BoostReset{Cyclist: c, OldPrice: old, Reason: reason})
	}
	return out
}

func staleReason(c model.Cyclist, races map[string]model.Race, lookahead time.Duration, now time.Time) (model.PriceReason, bool) {
	race, ok := races[c.PriceBoostRaceID]
	switch {
	case !ok:
		return model.PriceReasonStaleReset, true
	case race.IsFinished:
		return model.PriceReasonRaceReset, true
	case !race.EndDate.IsZero() && now.After(race.EndDate) && !race.IsActive:
		return model.PriceReasonRaceReset, true
	case !c.PriceBoostAt.IsZero() && now.Sub(c.PriceBoostAt) > lookahead && !race.Started(now):
		return model.PriceReasonStaleReset, true
	default:
		return "", false
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
