package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/okian/peloton/internal/adapters/repository"
	"github.com/okian/peloton/internal/domain/model"
	"github.com/okian/peloton/internal/domain/types"
)

type demandKey struct {
	cyclistID string
	period    int64
}

// Demand keeps demand counters per cyclist and period.
type Demand struct {
	mu       sync.Mutex
	counters map[demandKey]model.CyclistDemand
}

// NewDemand creates empty demand counters.
func NewDemand() *Demand {
	return &Demand{counters: make(map[demandKey]model.CyclistDemand)}
}

func (d *Demand) update(cyclistID string, period time.Time, fn func(*model.CyclistDemand)) {
	period = model.PeriodStart(period)
	k := demandKey{cyclistID, period.Unix()}
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.counters[k]
	if !ok {
		c = model.CyclistDemand{CyclistID: cyclistID, PeriodStart: period}
	}
	fn(&c)
	d.counters[k] = c
}

// IncrementBuy adds one buy.
func (d *Demand) IncrementBuy(_ context.Context, cyclistID string, period time.Time) error {
	d.update(cyclistID, period, func(c *model.CyclistDemand) { c.BuyCount++ })
	return nil
}

// IncrementSell adds one sell.
func (d *Demand) IncrementSell(_ context.Context, cyclistID string, period time.Time) error {
	d.update(cyclistID, period, func(c *model.CyclistDemand) { c.SellCount++ })
	return nil
}

// UpdateOwnership overwrites the ownership snapshot.
func (d *Demand) UpdateOwnership(_ context.Context, cyclistID string, period time.Time, owners, totalTeams int) error {
	d.update(cyclistID, period, func(c *model.CyclistDemand) {
		c.OwnershipCount = owners
		c.TotalTeams = totalTeams
	})
	return nil
}

// GetDemand returns the counters, zero when none were recorded.
func (d *Demand) GetDemand(_ context.Context, cyclistID string, period time.Time) (model.CyclistDemand, error) {
	period = model.PeriodStart(period)
	d.mu.Lock()
	defer d.mu.Unlock()
	if c, ok := d.counters[demandKey{cyclistID, period.Unix()}]; ok {
		return c, nil
	}
	return model.CyclistDemand{CyclistID: cyclistID, PeriodStart: period}, nil
}

// TopDemand returns the cyclists with the highest count for order.
func (d *Demand) TopDemand(_ context.Context, period time.Time, order model.DemandOrder, limit int) ([]types.DemandEntry, error) {
	if limit < 1 {
		return nil, repository.ErrInvalidLimit
	}
	p := model.PeriodStart(period).Unix()
	d.mu.Lock()
	var out []types.DemandEntry
	for k, c := range d.counters {
		if k.period != p {
			continue
		}
		out = append(out, types.DemandEntry{CyclistID: c.CyclistID, Count: demandCount(c, order)})
	}
	d.mu.Unlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].CyclistID < out[j].CyclistID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func demandCount(c model.CyclistDemand, order model.DemandOrder) int {
	switch order {
	case model.DemandBySell:
		return c.SellCount
	case model.DemandByNet:
		return c.NetDemand()
	default:
		return c.BuyCount
	}
}
