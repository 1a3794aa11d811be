package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/okian/peloton/internal/domain/model"
)

// Leagues keeps leagues and memberships in maps guarded by one mutex.
type Leagues struct {
	mu      sync.RWMutex
	leagues map[string]model.League
	codes   map[string]string
	members map[string]map[string]model.LeagueMember
}

// NewLeagues creates an empty league store.
func NewLeagues() *Leagues {
	return &Leagues{
		leagues: make(map[string]model.League),
		codes:   make(map[string]string),
		members: make(map[string]map[string]model.LeagueMember),
	}
}

// CreateLeague stores league with no members.
func (l *Leagues) CreateLeague(_ context.Context, league model.League) (model.League, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.leagues[league.ID]; ok {
		return model.League{}, fmt.Errorf("memory: league %s: %w", league.ID, model.ErrDuplicate)
	}
	if league.Code != "" {
		if _, ok := l.codes[league.Code]; ok {
			return model.League{}, fmt.Errorf("memory: league code %s: %w", league.Code, model.ErrDuplicate)
		}
		l.codes[league.Code] = league.ID
	}
	league.MemberCount = 0
	l.leagues[league.ID] = league
	l.members[league.ID] = make(map[string]model.LeagueMember)
	return league, nil
}

// GetLeague returns one league.
func (l *Leagues) GetLeague(_ context.Context, leagueID string) (model.League, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	league, ok := l.leagues[leagueID]
	if !ok {
		return model.League{}, fmt.Errorf("memory: league %s: %w", leagueID, model.ErrNotFound)
	}
	return league, nil
}

// GetLeagueByCode returns the league with the given join code.
func (l *Leagues) GetLeagueByCode(_ context.Context, code string) (model.League, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	id, ok := l.codes[code]
	if !ok {
		return model.League{}, fmt.Errorf("memory: league code %s: %w", code, model.ErrNotFound)
	}
	return l.leagues[id], nil
}

// ListLeagues returns every league ordered by id.
func (l *Leagues) ListLeagues(_ context.Context) ([]model.League, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]model.League, 0, len(l.leagues))
	for _, league := range l.leagues {
		out = append(out, league)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// DeleteLeague removes the league and its memberships.
func (l *Leagues) DeleteLeague(_ context.Context, leagueID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	league, ok := l.leagues[leagueID]
	if !ok {
		return fmt.Errorf("memory: delete league %s: %w", leagueID, model.ErrNotFound)
	}
	delete(l.codes, league.Code)
	delete(l.leagues, leagueID)
	delete(l.members, leagueID)
	return nil
}

// AddMember adds one team to a league.
func (l *Leagues) AddMember(_ context.Context, member model.LeagueMember) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	league, ok := l.leagues[member.LeagueID]
	if !ok {
		return fmt.Errorf("memory: add member to %s: %w", member.LeagueID, model.ErrNotFound)
	}
	rows := l.members[member.LeagueID]
	if _, ok := rows[member.TeamID]; ok {
		return fmt.Errorf("memory: %s already in %s: %w", member.TeamID, member.LeagueID, model.ErrDuplicate)
	}
	rows[member.TeamID] = member
	league.MemberCount = len(rows)
	l.leagues[member.LeagueID] = league
	return nil
}

// RemoveMember drops one team from a league.
func (l *Leagues) RemoveMember(_ context.Context, leagueID, teamID string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	league, ok := l.leagues[leagueID]
	if !ok {
		return fmt.Errorf("memory: remove member from %s: %w", leagueID, model.ErrNotFound)
	}
	rows := l.members[leagueID]
	if _, ok := rows[teamID]; !ok {
		return fmt.Errorf("memory: %s not in %s: %w", teamID, leagueID, model.ErrNotFound)
	}
	delete(rows, teamID)
	league.MemberCount = len(rows)
	l.leagues[leagueID] = league
	return nil
}

// Members returns a league's memberships ordered by team id.
func (l *Leagues) Members(_ context.Context, leagueID string) ([]model.LeagueMember, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rows, ok := l.members[leagueID]
	if !ok {
		return nil, fmt.Errorf("memory: members of %s: %w", leagueID, model.ErrNotFound)
	}
	out := make([]model.LeagueMember, 0, len(rows))
	for _, m := range rows {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TeamID < out[j].TeamID })
	return out, nil
}

// TeamLeagues returns the leagues teamID belongs to, ordered by id.
func (l *Leagues) TeamLeagues(_ context.Context, teamID string) ([]model.League, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var out []model.League
	for id, rows := range l.members {
		if _, ok := rows[teamID]; ok {
			out = append(out, l.leagues[id])
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
