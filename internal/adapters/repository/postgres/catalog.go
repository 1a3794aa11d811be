package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/okian/peloton/internal/domain/model"
)

const cyclistCols = `id, name, pro_team, category, price, base_price,
	price_boost_active, price_boost_race_id, price_boost_at, disabled, updated_at`

func scanCyclist(row pgx.Row) (model.Cyclist, error) {
	var c model.Cyclist
	var category string
	var boostAt *time.Time
	err := row.Scan(
		&c.ID, &c.Name, &c.ProTeam, &category, &c.Price, &c.BasePrice,
		&c.PriceBoostActive, &c.PriceBoostRaceID, &boostAt, &c.Disabled, &c.UpdatedAt,
	)
	if err != nil {
		return model.Cyclist{}, err
	}
	c.Category = model.Category(category)
	c.PriceBoostAt = timeOf(boostAt)
	return c, nil
}

// GetCyclist retrieves a cyclist by id.
func (s *Store) GetCyclist(ctx context.Context, cyclistID string) (model.Cyclist, error) {
	defer observe("get_cyclist", time.Now())
	c, err := scanCyclist(s.pool.QueryRow(ctx, `SELECT `+cyclistCols+` FROM cyclists WHERE id = $1`, cyclistID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Cyclist{}, fmt.Errorf("postgres: cyclist %s: %w", cyclistID, model.ErrNotFound)
		}
		return model.Cyclist{}, fmt.Errorf("postgres: get cyclist %s: %w", cyclistID, err)
	}
	return c, nil
}

// ListCyclists returns the catalog ordered by id.
func (s *Store) ListCyclists(ctx context.Context) ([]model.Cyclist, error) {
	defer observe("list_cyclists", time.Now())
	rows, err := s.pool.Query(ctx, `SELECT `+cyclistCols+` FROM cyclists ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list cyclists: %w", err)
	}
	defer rows.Close()

	var out []model.Cyclist
	for rows.Next() {
		c, err := scanCyclist(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan cyclist: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list cyclists rows: %w", err)
	}
	return out, nil
}

// UpsertCyclist inserts or replaces a catalog entry.
func (s *Store) UpsertCyclist(ctx context.Context, c model.Cyclist) error {
	defer observe("upsert_cyclist", time.Now())
	const query = `
		INSERT INTO cyclists (
			id, name, pro_team, category, price, base_price,
			price_boost_active, price_boost_race_id, price_boost_at, disabled, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		ON CONFLICT (id) DO UPDATE SET
			name                = EXCLUDED.name,
			pro_team            = EXCLUDED.pro_team,
			category            = EXCLUDED.category,
			price               = EXCLUDED.price,
			base_price          = EXCLUDED.base_price,
			price_boost_active  = EXCLUDED.price_boost_active,
			price_boost_race_id = EXCLUDED.price_boost_race_id,
			price_boost_at      = EXCLUDED.price_boost_at,
			disabled            = EXCLUDED.disabled,
			updated_at          = NOW()`

	_, err := s.pool.Exec(ctx, query,
		c.ID, c.Name, c.ProTeam, string(c.Category), c.Price, c.BasePrice,
		c.PriceBoostActive, c.PriceBoostRaceID, nullTime(c.PriceBoostAt), c.Disabled,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert cyclist %s: %w", c.ID, err)
	}
	return nil
}

// UpdatePrice writes the price and boost fields only.
func (s *Store) UpdatePrice(ctx context.Context, c model.Cyclist) error {
	defer observe("update_price", time.Now())
	tag, err := s.pool.Exec(ctx,
		`UPDATE cyclists SET
			price               = $2,
			price_boost_active  = $3,
			price_boost_race_id = $4,
			price_boost_at      = $5,
			updated_at          = NOW()
		 WHERE id = $1`,
		c.ID, c.Price, c.PriceBoostActive, c.PriceBoostRaceID, nullTime(c.PriceBoostAt),
	)
	if err != nil {
		return fmt.Errorf("postgres: update price %s: %w", c.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: price of %s: %w", c.ID, model.ErrNotFound)
	}
	return nil
}

// RecordPriceChange appends to the price history.
func (s *Store) RecordPriceChange(ctx context.Context, change model.PriceChange) error {
	defer observe("record_price_change", time.Now())
	created := change.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO price_history (id, cyclist_id, old_price, new_price, reason, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		change.ID, change.CyclistID, change.OldPrice, change.NewPrice, string(change.Reason), created,
	)
	if err != nil {
		return fmt.Errorf("postgres: record price change %s: %w", change.CyclistID, err)
	}
	return nil
}

// PriceHistory returns a cyclist's price changes oldest first.
func (s *Store) PriceHistory(ctx context.Context, cyclistID string) ([]model.PriceChange, error) {
	defer observe("price_history", time.Now())
	rows, err := s.pool.Query(ctx,
		`SELECT id, cyclist_id, old_price, new_price, reason, created_at
		   FROM price_history WHERE cyclist_id = $1 ORDER BY seq`, cyclistID)
	if err != nil {
		return nil, fmt.Errorf("postgres: price history %s: %w", cyclistID, err)
	}
	defer rows.Close()

	var out []model.PriceChange
	for rows.Next() {
		var h model.PriceChange
		var reason string
		if err := rows.Scan(&h.ID, &h.CyclistID, &h.OldPrice, &h.NewPrice, &reason, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan price change: %w", err)
		}
		h.Reason = model.PriceReason(reason)
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: price history rows: %w", err)
	}
	return out, nil
}

const raceCols = `id, name, type, start_date, end_date, stages, is_active, is_finished, finished_at, season`

func scanRace(row pgx.Row) (model.Race, error) {
	var r model.Race
	var raceType string
	var end, finished *time.Time
	err := row.Scan(&r.ID, &r.Name, &raceType, &r.StartDate, &end, &r.Stages,
		&r.IsActive, &r.IsFinished, &finished, &r.Season)
	if err != nil {
		return model.Race{}, err
	}
	r.Type = model.RaceType(raceType)
	r.EndDate = timeOf(end)
	r.FinishedAt = timeOf(finished)
	return r, nil
}

// GetRace retrieves a race by id.
func (s *Store) GetRace(ctx context.Context, raceID string) (model.Race, error) {
	defer observe("get_race", time.Now())
	r, err := scanRace(s.pool.QueryRow(ctx, `SELECT `+raceCols+` FROM races WHERE id = $1`, raceID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.Race{}, fmt.Errorf("postgres: race %s: %w", raceID, model.ErrNotFound)
		}
		return model.Race{}, fmt.Errorf("postgres: get race %s: %w", raceID, err)
	}
	return r, nil
}

// ListRaces returns the calendar ordered by start date.
func (s *Store) ListRaces(ctx context.Context) ([]model.Race, error) {
	defer observe("list_races", time.Now())
	rows, err := s.pool.Query(ctx, `SELECT `+raceCols+` FROM races ORDER BY start_date, id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list races: %w", err)
	}
	defer rows.Close()

	var out []model.Race
	for rows.Next() {
		r, err := scanRace(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan race: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list races rows: %w", err)
	}
	return out, nil
}

const upsertRace = `
	INSERT INTO races (id, name, type, start_date, end_date, stages, is_active, is_finished, finished_at, season)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	ON CONFLICT (id) DO UPDATE SET
		name        = EXCLUDED.name,
		type        = EXCLUDED.type,
		start_date  = EXCLUDED.start_date,
		end_date    = EXCLUDED.end_date,
		stages      = EXCLUDED.stages,
		is_active   = EXCLUDED.is_active,
		is_finished = EXCLUDED.is_finished,
		finished_at = EXCLUDED.finished_at,
		season      = EXCLUDED.season`

func raceArgs(r model.Race) []any {
	return []any{
		r.ID, r.Name, string(r.Type), r.StartDate, nullTime(r.EndDate), r.Stages,
		r.IsActive, r.IsFinished, nullTime(r.FinishedAt), r.Season,
	}
}

// UpsertRace inserts or replaces a race.
func (s *Store) UpsertRace(ctx context.Context, race model.Race) error {
	defer observe("upsert_race", time.Now())
	if _, err := s.pool.Exec(ctx, upsertRace, raceArgs(race)...); err != nil {
		return fmt.Errorf("postgres: upsert race %s: %w", race.ID, err)
	}
	return nil
}

// UpdateRace replaces an existing race.
func (s *Store) UpdateRace(ctx context.Context, race model.Race) error {
	defer observe("update_race", time.Now())
	tag, err := s.pool.Exec(ctx,
		`UPDATE races SET
			name = $2, type = $3, start_date = $4, end_date = $5, stages = $6,
			is_active = $7, is_finished = $8, finished_at = $9, season = $10
		 WHERE id = $1`, raceArgs(race)...)
	if err != nil {
		return fmt.Errorf("postgres: update race %s: %w", race.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: race %s: %w", race.ID, model.ErrNotFound)
	}
	return nil
}

// Participants returns the start list of a race.
func (s *Store) Participants(ctx context.Context, raceID string) ([]string, error) {
	defer observe("participants", time.Now())
	rows, err := s.pool.Query(ctx,
		`SELECT cyclist_id FROM race_participants WHERE race_id = $1 ORDER BY cyclist_id`, raceID)
	if err != nil {
		return nil, fmt.Errorf("postgres: participants %s: %w", raceID, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("postgres: scan participant: %w", err)
		}
		out = append(out, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: participants rows: %w", err)
	}
	return out, nil
}

// SetParticipants replaces the start list of a race in one transaction.
func (s *Store) SetParticipants(ctx context.Context, raceID string, cyclistIDs []string) error {
	defer observe("set_participants", time.Now())
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: begin participants %s: %w", raceID, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM race_participants WHERE race_id = $1`, raceID); err != nil {
		return fmt.Errorf("postgres: clear participants %s: %w", raceID, err)
	}
	if len(cyclistIDs) > 0 {
		_, err := tx.Exec(ctx,
			`INSERT INTO race_participants (race_id, cyclist_id)
			 SELECT $1, unnest($2::text[]) ON CONFLICT DO NOTHING`, raceID, cyclistIDs)
		if err != nil {
			return fmt.Errorf("postgres: insert participants %s: %w", raceID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: commit participants %s: %w", raceID, err)
	}
	return nil
}
