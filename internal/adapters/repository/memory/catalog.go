package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/okian/peloton/internal/domain/model"
)

// GetCyclist returns a cyclist by id.
func (s *Store) GetCyclist(_ context.Context, cyclistID string) (model.Cyclist, error) {
	if err := s.inject("get_cyclist", cyclistID); err != nil {
		return model.Cyclist{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cyclists[cyclistID]
	if !ok {
		return model.Cyclist{}, fmt.Errorf("memory: cyclist %s: %w", cyclistID, model.ErrNotFound)
	}
	return c, nil
}

// ListCyclists returns the catalog ordered by id.
func (s *Store) ListCyclists(_ context.Context) ([]model.Cyclist, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Cyclist, 0, len(s.cyclists))
	for _, c := range s.cyclists {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpsertCyclist inserts or replaces a catalog entry.
func (s *Store) UpsertCyclist(_ context.Context, c model.Cyclist) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.UpdatedAt = s.clock()
	s.cyclists[c.ID] = c
	return nil
}

// UpdatePrice writes the price and boost fields of an existing cyclist.
func (s *Store) UpdatePrice(_ context.Context, c model.Cyclist) error {
	if err := s.inject("update_price", c.ID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.cyclists[c.ID]
	if !ok {
		return fmt.Errorf("memory: update price %s: %w", c.ID, model.ErrNotFound)
	}
	cur.Price = c.Price
	cur.PriceBoostActive = c.PriceBoostActive
	cur.PriceBoostRaceID = c.PriceBoostRaceID
	cur.PriceBoostAt = c.PriceBoostAt
	cur.UpdatedAt = s.clock()
	s.cyclists[c.ID] = cur
	return nil
}

// RecordPriceChange appends to the price history.
func (s *Store) RecordPriceChange(_ context.Context, change model.PriceChange) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if change.CreatedAt.IsZero() {
		change.CreatedAt = s.clock()
	}
	s.history = append(s.history, change)
	return nil
}

// PriceHistory returns a cyclist's price changes oldest first.
func (s *Store) PriceHistory(_ context.Context, cyclistID string) ([]model.PriceChange, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.PriceChange
	for _, h := range s.history {
		if h.CyclistID == cyclistID {
			out = append(out, h)
		}
	}
	return out, nil
}

// GetRace returns a race by id.
func (s *Store) GetRace(_ context.Context, raceID string) (model.Race, error) {
	if err := s.inject("get_race", raceID); err != nil {
		return model.Race{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.races[raceID]
	if !ok {
		return model.Race{}, fmt.Errorf("memory: race %s: %w", raceID, model.ErrNotFound)
	}
	return r, nil
}

// ListRaces returns the calendar ordered by start date.
func (s *Store) ListRaces(_ context.Context) ([]model.Race, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Race, 0, len(s.races))
	for _, r := range s.races {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartDate.Equal(out[j].StartDate) {
			return out[i].StartDate.Before(out[j].StartDate)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// UpsertRace inserts or replaces a race.
func (s *Store) UpsertRace(_ context.Context, race model.Race) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.races[race.ID] = race
	return nil
}

// UpdateRace replaces an existing race.
func (s *Store) UpdateRace(_ context.Context, race model.Race) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.races[race.ID]; !ok {
		return fmt.Errorf("memory: update race %s: %w", race.ID, model.ErrNotFound)
	}
	s.races[race.ID] = race
	return nil
}

// Participants returns the confirmed start list of a race.
func (s *Store) Participants(_ context.Context, raceID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.participants[raceID]...), nil
}

// SetParticipants replaces the start list of a race.
func (s *Store) SetParticipants(_ context.Context, raceID string, cyclistIDs []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.participants[raceID] = append([]string(nil), cyclistIDs...)
	return nil
}
