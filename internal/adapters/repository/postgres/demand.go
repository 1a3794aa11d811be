package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/okian/peloton/internal/adapters/repository"
	"github.com/okian/peloton/internal/domain/model"
	"github.com/okian/peloton/internal/domain/types"
)

// DemandStore implements repository.Demand with upserted counters.
type DemandStore struct {
	pool *pgxpool.Pool
}

// NewDemandStore creates a DemandStore backed by the given connection pool.
func NewDemandStore(pool *pgxpool.Pool) *DemandStore {
	return &DemandStore{pool: pool}
}

func (d *DemandStore) increment(ctx context.Context, column, cyclistID string, period time.Time) error {
	query := fmt.Sprintf(`
		INSERT INTO cyclist_demand (cyclist_id, period_start, %[1]s) VALUES ($1, $2, 1)
		ON CONFLICT (cyclist_id, period_start) DO UPDATE SET %[1]s = cyclist_demand.%[1]s + 1`, column)
	if _, err := d.pool.Exec(ctx, query, cyclistID, model.PeriodStart(period)); err != nil {
		return fmt.Errorf("postgres: increment %s for %s: %w", column, cyclistID, err)
	}
	return nil
}

// IncrementBuy adds one buy.
func (d *DemandStore) IncrementBuy(ctx context.Context, cyclistID string, period time.Time) error {
	defer observe("increment_buy", time.Now())
	return d.increment(ctx, "buy_count", cyclistID, period)
}

// IncrementSell adds one sell.
func (d *DemandStore) IncrementSell(ctx context.Context, cyclistID string, period time.Time) error {
	defer observe("increment_sell", time.Now())
	return d.increment(ctx, "sell_count", cyclistID, period)
}

// UpdateOwnership overwrites the ownership snapshot.
func (d *DemandStore) UpdateOwnership(ctx context.Context, cyclistID string, period time.Time, owners, totalTeams int) error {
	defer observe("update_ownership", time.Now())
	_, err := d.pool.Exec(ctx,
		`INSERT INTO cyclist_demand (cyclist_id, period_start, ownership_count, total_teams)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (cyclist_id, period_start) DO UPDATE SET
			ownership_count = EXCLUDED.ownership_count,
			total_teams     = EXCLUDED.total_teams`,
		cyclistID, model.PeriodStart(period), owners, totalTeams,
	)
	if err != nil {
		return fmt.Errorf("postgres: update ownership %s: %w", cyclistID, err)
	}
	return nil
}

// GetDemand returns the counters, zero when none were recorded.
func (d *DemandStore) GetDemand(ctx context.Context, cyclistID string, period time.Time) (model.CyclistDemand, error) {
	defer observe("get_demand", time.Now())
	start := model.PeriodStart(period)
	c := model.CyclistDemand{CyclistID: cyclistID, PeriodStart: start}
	err := d.pool.QueryRow(ctx,
		`SELECT buy_count, sell_count, ownership_count, total_teams
		   FROM cyclist_demand WHERE cyclist_id = $1 AND period_start = $2`,
		cyclistID, start,
	).Scan(&c.BuyCount, &c.SellCount, &c.OwnershipCount, &c.TotalTeams)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return model.CyclistDemand{}, fmt.Errorf("postgres: get demand %s: %w", cyclistID, err)
	}
	return c, nil
}

// TopDemand returns the cyclists with the highest count for order.
func (d *DemandStore) TopDemand(ctx context.Context, period time.Time, order model.DemandOrder, limit int) ([]types.DemandEntry, error) {
	defer observe("top_demand", time.Now())
	if limit < 1 {
		return nil, repository.ErrInvalidLimit
	}

	expr := "buy_count"
	switch order {
	case model.DemandBySell:
		expr = "sell_count"
	case model.DemandByNet:
		expr = "buy_count - sell_count"
	}
	query := `SELECT cyclist_id, ` + expr + ` AS n FROM cyclist_demand
		WHERE period_start = $1 ORDER BY n DESC, cyclist_id LIMIT $2`

	rows, err := d.pool.Query(ctx, query, model.PeriodStart(period), limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: top demand: %w", err)
	}
	defer rows.Close()

	var out []types.DemandEntry
	for rows.Next() {
		var e types.DemandEntry
		if err := rows.Scan(&e.CyclistID, &e.Count); err != nil {
			return nil, fmt.Errorf("postgres: scan demand: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: top demand rows: %w", err)
	}
	return out, nil
}
