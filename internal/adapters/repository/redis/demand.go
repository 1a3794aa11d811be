package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/okian/peloton/internal/adapters/repository"
	"github.com/okian/peloton/internal/domain/model"
	"github.com/okian/peloton/internal/domain/types"
)

// demandTTL keeps a few weeks of counters around.
const demandTTL = 35 * 24 * time.Hour

const (
	fieldBuy    = "buy"
	fieldSell   = "sell"
	fieldOwners = "owners"
	fieldTeams  = "teams"
)

// DemandStore implements repository.Demand. Counters live in one hash per
// cyclist and period; leaderboards are sorted sets scored with the negated
// count so ZRANGE yields count desc then id asc.
type DemandStore struct {
	rdb *redis.Client
}

// NewDemandStore creates a DemandStore backed by the given Client.
func NewDemandStore(c *Client) *DemandStore {
	return &DemandStore{rdb: c.Underlying()}
}

func periodTag(period time.Time) string {
	return model.PeriodStart(period).Format("2006-01-02")
}

func counterKey(cyclistID string, period time.Time) string {
	return "demand:" + periodTag(period) + ":c:" + cyclistID
}

func boardKey(order model.DemandOrder, period time.Time) string {
	return "demand:" + periodTag(period) + ":top:" + string(order)
}

// IncrementBuy adds one buy.
func (d *DemandStore) IncrementBuy(ctx context.Context, cyclistID string, period time.Time) error {
	defer observe("increment_buy", time.Now())
	_, err := d.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		ck := counterKey(cyclistID, period)
		p.HIncrBy(ctx, ck, fieldBuy, 1)
		p.Expire(ctx, ck, demandTTL)
		d.touchBoards(ctx, p, cyclistID, period, -1, 0, -1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: increment buy %s: %w", cyclistID, err)
	}
	return nil
}

// IncrementSell adds one sell.
func (d *DemandStore) IncrementSell(ctx context.Context, cyclistID string, period time.Time) error {
	defer observe("increment_sell", time.Now())
	_, err := d.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		ck := counterKey(cyclistID, period)
		p.HIncrBy(ctx, ck, fieldSell, 1)
		p.Expire(ctx, ck, demandTTL)
		d.touchBoards(ctx, p, cyclistID, period, 0, -1, 1)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: increment sell %s: %w", cyclistID, err)
	}
	return nil
}

// touchBoards applies negated deltas to the three leaderboards.
func (d *DemandStore) touchBoards(ctx context.Context, p redis.Pipeliner, cyclistID string, period time.Time, buy, sell, net float64) {
	for order, delta := range map[model.DemandOrder]float64{
		model.DemandByBuys: buy,
		model.DemandBySell: sell,
		model.DemandByNet:  net,
	} {
		bk := boardKey(order, period)
		p.ZIncrBy(ctx, bk, delta, cyclistID)
		p.Expire(ctx, bk, demandTTL)
	}
}

// UpdateOwnership overwrites the ownership snapshot.
func (d *DemandStore) UpdateOwnership(ctx context.Context, cyclistID string, period time.Time, owners, totalTeams int) error {
	defer observe("update_ownership", time.Now())
	_, err := d.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		ck := counterKey(cyclistID, period)
		p.HSet(ctx, ck, fieldOwners, owners, fieldTeams, totalTeams)
		p.Expire(ctx, ck, demandTTL)
		d.touchBoards(ctx, p, cyclistID, period, 0, 0, 0)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis: update ownership %s: %w", cyclistID, err)
	}
	return nil
}

// GetDemand returns the counters, zero when none were recorded.
func (d *DemandStore) GetDemand(ctx context.Context, cyclistID string, period time.Time) (model.CyclistDemand, error) {
	defer observe("get_demand", time.Now())
	c := model.CyclistDemand{CyclistID: cyclistID, PeriodStart: model.PeriodStart(period)}
	vals, err := d.rdb.HGetAll(ctx, counterKey(cyclistID, period)).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return model.CyclistDemand{}, fmt.Errorf("redis: get demand %s: %w", cyclistID, err)
	}
	c.BuyCount = atoi(vals[fieldBuy])
	c.SellCount = atoi(vals[fieldSell])
	c.OwnershipCount = atoi(vals[fieldOwners])
	c.TotalTeams = atoi(vals[fieldTeams])
	return c, nil
}

// TopDemand returns the cyclists with the highest count for order.
func (d *DemandStore) TopDemand(ctx context.Context, period time.Time, order model.DemandOrder, limit int) ([]types.DemandEntry, error) {
	defer observe("top_demand", time.Now())
	if limit < 1 {
		return nil, repository.ErrInvalidLimit
	}
	switch order {
	case model.DemandBySell, model.DemandByNet:
	default:
		order = model.DemandByBuys
	}

	zs, err := d.rdb.ZRangeWithScores(ctx, boardKey(order, period), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: top demand: %w", err)
	}
	out := make([]types.DemandEntry, 0, len(zs))
	for _, z := range zs {
		id, _ := z.Member.(string)
		out = append(out, types.DemandEntry{CyclistID: id, Count: -int(z.Score)})
	}
	return out, nil
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
