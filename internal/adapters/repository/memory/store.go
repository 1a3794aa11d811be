// Package memory implements the repository contracts in process memory.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/okian/peloton/internal/domain/model"
)

type stageKey struct {
	raceID string
	number int
}

type scoreKey struct {
	teamID string
	raceID string
	stage  int
}

// Store keeps every record in maps guarded by one RWMutex. Each method is
// atomic on its own, matching what the durable backends promise.
type Store struct {
	mu sync.RWMutex

	teams        map[string]model.FantasyTeam
	members      map[string]map[string]model.TeamCyclist
	transfers    []model.Transfer
	cyclists     map[string]model.Cyclist
	races        map[string]model.Race
	participants map[string][]string
	stages       map[stageKey]model.Stage
	results      map[stageKey][]model.StageResult
	gc           map[string][]model.GcStanding
	scores       map[scoreKey]model.TeamStageScore
	history      []model.PriceChange

	fault func(op, key string) error
	clock func() time.Time
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		teams:        make(map[string]model.FantasyTeam),
		members:      make(map[string]map[string]model.TeamCyclist),
		cyclists:     make(map[string]model.Cyclist),
		races:        make(map[string]model.Race),
		participants: make(map[string][]string),
		stages:       make(map[stageKey]model.Stage),
		results:      make(map[stageKey][]model.StageResult),
		gc:           make(map[string][]model.GcStanding),
		scores:       make(map[scoreKey]model.TeamStageScore),
		clock:        time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) inject(op, key string) error {
	if s.fault == nil {
		return nil
	}
	if err := s.fault(op, key); err != nil {
		return fmt.Errorf("memory: %s %s: %w", op, key, err)
	}
	return nil
}

func copyTeam(t model.FantasyTeam) model.FantasyTeam {
	if t.BenchBoostSnapshot != nil {
		t.BenchBoostSnapshot = append([]string(nil), t.BenchBoostSnapshot...)
	}
	return t
}

// GetTeam returns a team by id.
func (s *Store) GetTeam(_ context.Context, teamID string) (model.FantasyTeam, error) {
	if err := s.inject("get_team", teamID); err != nil {
		return model.FantasyTeam{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.teams[teamID]
	if !ok {
		return model.FantasyTeam{}, fmt.Errorf("memory: team %s: %w", teamID, model.ErrNotFound)
	}
	return copyTeam(t), nil
}

// ListTeams returns all teams ordered by id.
func (s *Store) ListTeams(_ context.Context) ([]model.FantasyTeam, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.FantasyTeam, 0, len(s.teams))
	for _, t := range s.teams {
		out = append(out, copyTeam(t))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// CreateTeam inserts a new team at version 1.
func (s *Store) CreateTeam(_ context.Context, team model.FantasyTeam) (model.FantasyTeam, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.teams[team.ID]; ok {
		return model.FantasyTeam{}, fmt.Errorf("memory: create team %s: %w", team.ID, model.ErrStaleData)
	}
	now := s.clock()
	team.Version = 1
	team.CreatedAt, team.UpdatedAt = now, now
	s.teams[team.ID] = copyTeam(team)
	return copyTeam(team), nil
}

// UpdateTeam is a version compare-and-swap that leaves the accumulators alone.
func (s *Store) UpdateTeam(_ context.Context, team model.FantasyTeam, expectedVersion int64) (model.FantasyTeam, error) {
	if err := s.inject("update_team", team.ID); err != nil {
		return model.FantasyTeam{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.teams[team.ID]
	if !ok {
		return model.FantasyTeam{}, fmt.Errorf("memory: update team %s: %w", team.ID, model.ErrNotFound)
	}
	if cur.Version != expectedVersion {
		return model.FantasyTeam{}, fmt.Errorf("memory: update team %s at version %d (stored %d): %w",
			team.ID, expectedVersion, cur.Version, model.ErrStaleData)
	}
	team.Budget = cur.Budget
	team.TotalPoints = cur.TotalPoints
	team.CreatedAt = cur.CreatedAt
	team.UpdatedAt = s.clock()
	team.Version = cur.Version + 1
	s.teams[team.ID] = copyTeam(team)
	return copyTeam(team), nil
}

// AddPoints atomically adds delta to the team's total points.
func (s *Store) AddPoints(_ context.Context, teamID string, delta int) (int, error) {
	if err := s.inject("add_points", teamID); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.teams[teamID]
	if !ok {
		return 0, fmt.Errorf("memory: add points %s: %w", teamID, model.ErrNotFound)
	}
	t.TotalPoints += delta
	s.teams[teamID] = t
	return t.TotalPoints, nil
}

// AddBudget atomically adds delta to the team's remaining budget.
func (s *Store) AddBudget(_ context.Context, teamID string, delta float64) (float64, error) {
	if err := s.inject("add_budget", teamID); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.teams[teamID]
	if !ok {
		return 0, fmt.Errorf("memory: add budget %s: %w", teamID, model.ErrNotFound)
	}
	t.Budget = model.RoundMoney(t.Budget + delta)
	s.teams[teamID] = t
	return t.Budget, nil
}

// GetTeamCyclists returns the roster ordered by added time then cyclist id.
func (s *Store) GetTeamCyclists(_ context.Context, teamID string) ([]model.TeamCyclist, error) {
	if err := s.inject("get_team_cyclists", teamID); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.TeamCyclist, 0, len(s.members[teamID]))
	for _, m := range s.members[teamID] {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AddedAt.Equal(out[j].AddedAt) {
			return out[i].AddedAt.Before(out[j].AddedAt)
		}
		return out[i].CyclistID < out[j].CyclistID
	})
	return out, nil
}

// AddCyclistToTeam inserts one roster row.
func (s *Store) AddCyclistToTeam(_ context.Context, member model.TeamCyclist) error {
	if err := s.inject("add_cyclist", member.CyclistID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.teams[member.TeamID]; !ok {
		return fmt.Errorf("memory: add cyclist to %s: %w", member.TeamID, model.ErrNotFound)
	}
	roster := s.members[member.TeamID]
	if roster == nil {
		roster = make(map[string]model.TeamCyclist)
		s.members[member.TeamID] = roster
	}
	if _, ok := roster[member.CyclistID]; ok {
		return fmt.Errorf("memory: cyclist %s already on %s: %w", member.CyclistID, member.TeamID, model.ErrStaleData)
	}
	if member.AddedAt.IsZero() {
		member.AddedAt = s.clock()
	}
	roster[member.CyclistID] = member
	return nil
}

// RemoveCyclistFromTeam deletes one roster row.
func (s *Store) RemoveCyclistFromTeam(_ context.Context, teamID, cyclistID string) error {
	if err := s.inject("remove_cyclist", cyclistID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[teamID][cyclistID]; !ok {
		return fmt.Errorf("memory: cyclist %s on %s: %w", cyclistID, teamID, model.ErrNotFound)
	}
	delete(s.members[teamID], cyclistID)
	return nil
}

// SetCaptain moves the captain flag to cyclistID in one write.
func (s *Store) SetCaptain(_ context.Context, teamID, cyclistID string) error {
	if err := s.inject("set_captain", cyclistID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	roster := s.members[teamID]
	if _, ok := roster[cyclistID]; !ok {
		return fmt.Errorf("memory: captain %s on %s: %w", cyclistID, teamID, model.ErrNotFound)
	}
	for id, m := range roster {
		m.IsCaptain = id == cyclistID
		roster[id] = m
	}
	return nil
}

// SetActive flips the starting flag of one roster row.
func (s *Store) SetActive(_ context.Context, teamID, cyclistID string, active bool) error {
	if err := s.inject("set_active", cyclistID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.members[teamID][cyclistID]
	if !ok {
		return fmt.Errorf("memory: cyclist %s on %s: %w", cyclistID, teamID, model.ErrNotFound)
	}
	m.IsActive = active
	s.members[teamID][cyclistID] = m
	return nil
}

// OwnershipCounts counts roster rows per cyclist across all teams.
func (s *Store) OwnershipCounts(_ context.Context) (map[string]int, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	owners := make(map[string]int)
	for _, roster := range s.members {
		for id := range roster {
			owners[id]++
		}
	}
	return owners, len(s.teams), nil
}

// SaveTransfers appends transfer rows.
func (s *Store) SaveTransfers(_ context.Context, transfers []model.Transfer) error {
	if err := s.inject("save_transfers", ""); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transfers = append(s.transfers, transfers...)
	return nil
}

// ListTransfers returns a team's transfers in insertion order.
func (s *Store) ListTransfers(_ context.Context, teamID string) ([]model.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []model.Transfer
	for _, t := range s.transfers {
		if t.TeamID == teamID {
			out = append(out, t)
		}
	}
	return out, nil
}
