package model

import "time"

// CyclistDemand holds the transfer-market counters of one cyclist for a period.
type CyclistDemand struct {
	CyclistID      string
	PeriodStart    time.Time
	BuyCount       int
	SellCount      int
	OwnershipCount int
	TotalTeams     int
}

// NetDemand is buys minus sells.
func (d CyclistDemand) NetDemand() int {
	return d.BuyCount - d.SellCount
}

// OwnershipRatio is the share of teams owning the cyclist, in [0, 1].
func (d CyclistDemand) OwnershipRatio() float64 {
	if d.TotalTeams <= 0 {
		return 0
	}
	return float64(d.OwnershipCount) / float64(d.TotalTeams)
}

// DemandOrder selects the leaderboard used by demand queries.
type DemandOrder string

// Demand orderings.
const (
	DemandByBuys DemandOrder = "buy"
	DemandBySell DemandOrder = "sell"
	DemandByNet  DemandOrder = "net"
)

// PeriodStart returns the Monday 00:00 UTC that opens the demand period of t.
func PeriodStart(t time.Time) time.Time {
	t = t.UTC()
	day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}
