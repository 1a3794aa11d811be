// Package league runs mini-leagues: groups of teams ranked against each other
// by season points. Each league keeps its own standings table, rebuilt from
// the team store on Sync and kept current with Refresh between syncs.
package league

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/okian/peloton/internal/domain/model"
	"github.com/okian/peloton/internal/domain/types"
	"github.com/okian/peloton/pkg/logger"
	"github.com/okian/peloton/pkg/metrics"
)

const (
	maxNameLength       = 50
	codeLength          = 6
	codeAlphabet        = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	defaultCodeAttempts = 10
)

// LeagueRepository stores leagues and memberships.
type LeagueRepository interface {
	CreateLeague(ctx context.Context, league model.League) (model.League, error)
	GetLeague(ctx context.Context, leagueID string) (model.League, error)
	GetLeagueByCode(ctx context.Context, code string) (model.League, error)
	ListLeagues(ctx context.Context) ([]model.League, error)
	DeleteLeague(ctx context.Context, leagueID string) error
	AddMember(ctx context.Context, member model.LeagueMember) error
	RemoveMember(ctx context.Context, leagueID, teamID string) error
	Members(ctx context.Context, leagueID string) ([]model.LeagueMember, error)
	TeamLeagues(ctx context.Context, teamID string) ([]model.League, error)
}

// TeamRepository is the read side of the team store.
type TeamRepository interface {
	GetTeam(ctx context.Context, teamID string) (model.FantasyTeam, error)
	ListTeams(ctx context.Context) ([]model.FantasyTeam, error)
}

// Table is one league's ranked standings.
type Table interface {
	Upsert(ctx context.Context, teamID string, points int) bool
	Remove(ctx context.Context, teamID string)
	Sync(ctx context.Context, teams []model.FantasyTeam) int
	Checkpoint(ctx context.Context)
	Rank(ctx context.Context, teamID string) (types.StandingEntry, error)
	TopN(ctx context.Context, n int) ([]types.StandingEntry, error)
	Around(ctx context.Context, teamID string, above, below int) ([]types.StandingEntry, error)
	Contains(ctx context.Context, teamID string) bool
}

// GlobalID is the id of the global league of season.
func GlobalID(season int) string {
	return fmt.Sprintf("global-%d", season)
}

// Board manages leagues and their standings tables.
type Board struct {
	leagues  LeagueRepository
	teams    TeamRepository
	newTable func() Table

	// write serialises membership changes with Sync so a rebuild never
	// drops a join that landed while it was reading.
	write  sync.Mutex
	mu     sync.RWMutex
	tables map[string]Table

	codes    func() (string, error)
	attempts int
	clock    func() time.Time
	logger   logger.Logger
}

// NewBoard creates a Board. newTable builds an empty standings table.
func NewBoard(leagues LeagueRepository, teams TeamRepository, newTable func() Table, opts ...Option) *Board {
	b := &Board{
		leagues:  leagues,
		teams:    teams,
		newTable: newTable,
		tables:   make(map[string]Table),
		codes:    randomCode,
		attempts: defaultCodeAttempts,
		clock:    time.Now,
		logger:   logger.Get().Named("league"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// randomCode draws codeLength characters from codeAlphabet without modulo bias.
func randomCode() (string, error) {
	const limit = 256 - 256%len(codeAlphabet)
	out := make([]byte, 0, codeLength)
	buf := make([]byte, 2*codeLength)
	for len(out) < codeLength {
		if _, err := rand.Read(buf); err != nil {
			return "", err
		}
		for _, c := range buf {
			if int(c) >= limit {
				continue
			}
			out = append(out, codeAlphabet[int(c)%len(codeAlphabet)])
			if len(out) == codeLength {
				break
			}
		}
	}
	return string(out), nil
}

// NormalizeCode trims and upper-cases a join code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Create stores a new league. Private leagues get a unique join code. When
// OwnerID is set the owner's team joins at once, and a zero Season is taken
// from it.
func (b *Board) Create(ctx context.Context, in model.League) (model.League, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" || len(name) > maxNameLength {
		return model.League{}, ErrInvalidName
	}
	typ := in.Type
	if typ == "" {
		typ = model.LeaguePrivate
	}
	if typ == model.LeagueGlobal {
		return model.League{}, ErrGlobalLeague
	}
	region := strings.TrimSpace(in.Region)
	if typ == model.LeagueRegional && region == "" {
		return model.League{}, ErrRegionRequired
	}

	var owner model.FantasyTeam
	if in.OwnerID != "" {
		t, err := b.teams.GetTeam(ctx, in.OwnerID)
		if err != nil {
			return model.League{}, model.Transient("league: load owner "+in.OwnerID, err)
		}
		owner = t
		if in.Season == 0 {
			in.Season = t.Season
		}
	}
	if in.Season < 1 {
		return model.League{}, ErrInvalidSeason
	}
	if owner.ID != "" && owner.Season != in.Season {
		return model.League{}, ErrSeasonMismatch
	}

	l := model.League{
		ID:        uuid.NewString(),
		Name:      name,
		Type:      typ,
		OwnerID:   in.OwnerID,
		Region:    region,
		Season:    in.Season,
		CreatedAt: b.clock().UTC(),
	}
	created, err := b.store(ctx, l)
	if err != nil {
		return model.League{}, err
	}
	b.mu.Lock()
	b.tables[created.ID] = b.newTable()
	b.mu.Unlock()
	b.logger.Info(ctx, "league created",
		logger.String("league", created.ID),
		logger.String("type", string(created.Type)),
		logger.Int("season", created.Season),
	)

	if owner.ID != "" {
		return b.join(ctx, created, owner)
	}
	return created, nil
}

// store inserts l, drawing fresh codes for a private league until one is free.
func (b *Board) store(ctx context.Context, l model.League) (model.League, error) {
	if l.Type != model.LeaguePrivate {
		created, err := b.leagues.CreateLeague(ctx, l)
		return created, model.Transient("league: create "+l.ID, err)
	}
	for range b.attempts {
		code, err := b.codes()
		if err != nil {
			return model.League{}, fmt.Errorf("league: draw code: %w", err)
		}
		l.Code = code
		created, err := b.leagues.CreateLeague(ctx, l)
		if err == nil {
			return created, nil
		}
		if !errors.Is(err, model.ErrDuplicate) {
			return model.League{}, model.Transient("league: create "+l.ID, err)
		}
		b.logger.Debug(ctx, "join code taken", logger.String("code", code))
	}
	return model.League{}, fmt.Errorf("league: %w after %d attempts", ErrCodeExhausted, b.attempts)
}

// EnsureGlobal returns the global league of season, creating it if needed.
func (b *Board) EnsureGlobal(ctx context.Context, season int) (model.League, error) {
	if season < 1 {
		return model.League{}, ErrInvalidSeason
	}
	id := GlobalID(season)
	l, err := b.leagues.GetLeague(ctx, id)
	if err == nil {
		return l, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return model.League{}, model.Transient("league: get "+id, err)
	}
	l, err = b.leagues.CreateLeague(ctx, model.League{
		ID:        id,
		Name:      fmt.Sprintf("Peloton %d", season),
		Type:      model.LeagueGlobal,
		Season:    season,
		CreatedAt: b.clock().UTC(),
	})
	if errors.Is(err, model.ErrDuplicate) {
		l, err = b.leagues.GetLeague(ctx, id)
	}
	if err != nil {
		return model.League{}, model.Transient("league: create "+id, err)
	}
	b.logger.Info(ctx, "global league created", logger.String("league", id))
	return l, nil
}

// Get returns one league.
func (b *Board) Get(ctx context.Context, leagueID string) (model.League, error) {
	l, err := b.leagues.GetLeague(ctx, leagueID)
	if err != nil {
		return model.League{}, model.Transient("league: get "+leagueID, err)
	}
	return l, nil
}

// List returns the leagues of typ, or every league when typ is empty.
func (b *Board) List(ctx context.Context, typ model.LeagueType) ([]model.League, error) {
	all, err := b.leagues.ListLeagues(ctx)
	if err != nil {
		return nil, model.Transient("league: list", err)
	}
	if typ == "" {
		return all, nil
	}
	out := make([]model.League, 0, len(all))
	for _, l := range all {
		if l.Type == typ {
			out = append(out, l)
		}
	}
	return out, nil
}

// ForTeam returns the leagues teamID belongs to.
func (b *Board) ForTeam(ctx context.Context, teamID string) ([]model.League, error) {
	out, err := b.leagues.TeamLeagues(ctx, teamID)
	if err != nil {
		return nil, model.Transient("league: leagues of "+teamID, err)
	}
	return out, nil
}

// Join adds teamID to a non-global league of the same season.
func (b *Board) Join(ctx context.Context, leagueID, teamID string) (model.League, error) {
	l, err := b.Get(ctx, leagueID)
	if err != nil {
		return model.League{}, err
	}
	return b.joinTeam(ctx, l, teamID)
}

// JoinByCode adds teamID to the private league with the given code.
func (b *Board) JoinByCode(ctx context.Context, code, teamID string) (model.League, error) {
	code = NormalizeCode(code)
	l, err := b.leagues.GetLeagueByCode(ctx, code)
	if err != nil {
		return model.League{}, model.Transient("league: code "+code, err)
	}
	return b.joinTeam(ctx, l, teamID)
}

func (b *Board) joinTeam(ctx context.Context, l model.League, teamID string) (model.League, error) {
	if l.Type == model.LeagueGlobal {
		return model.League{}, ErrGlobalLeague
	}
	team, err := b.teams.GetTeam(ctx, teamID)
	if err != nil {
		return model.League{}, model.Transient("league: load team "+teamID, err)
	}
	return b.join(ctx, l, team)
}

func (b *Board) join(ctx context.Context, l model.League, team model.FantasyTeam) (model.League, error) {
	if team.Season != l.Season {
		return model.League{}, ErrSeasonMismatch
	}

	b.write.Lock()
	defer b.write.Unlock()
	err := b.leagues.AddMember(ctx, model.LeagueMember{LeagueID: l.ID, TeamID: team.ID, JoinedAt: b.clock().UTC()})
	if errors.Is(err, model.ErrDuplicate) {
		return model.League{}, fmt.Errorf("league %s: %w", l.ID, ErrAlreadyMember)
	}
	if err != nil {
		return model.League{}, model.Transient("league: add "+team.ID+" to "+l.ID, err)
	}
	b.tableFor(l.ID).Upsert(ctx, team.ID, team.TotalPoints)
	metrics.RecordLeagueMembership("join")
	b.logger.Debug(ctx, "team joined league", logger.String("league", l.ID), logger.String("team", team.ID))

	updated, err := b.leagues.GetLeague(ctx, l.ID)
	if err != nil {
		l.MemberCount++
		return l, nil
	}
	return updated, nil
}

// Leave removes teamID from a non-global league.
func (b *Board) Leave(ctx context.Context, leagueID, teamID string) error {
	l, err := b.Get(ctx, leagueID)
	if err != nil {
		return err
	}
	if l.Type == model.LeagueGlobal {
		return ErrGlobalLeague
	}

	b.write.Lock()
	defer b.write.Unlock()
	if err := b.leagues.RemoveMember(ctx, leagueID, teamID); err != nil {
		return model.Transient("league: remove "+teamID+" from "+leagueID, err)
	}
	b.tableFor(leagueID).Remove(ctx, teamID)
	metrics.RecordLeagueMembership("leave")
	b.logger.Debug(ctx, "team left league", logger.String("league", leagueID), logger.String("team", teamID))
	return nil
}

// Delete removes a league on behalf of its owner.
func (b *Board) Delete(ctx context.Context, leagueID, ownerID string) error {
	l, err := b.Get(ctx, leagueID)
	if err != nil {
		return err
	}
	if l.Type == model.LeagueGlobal {
		return ErrGlobalLeague
	}
	if l.OwnerID == "" || l.OwnerID != ownerID {
		return ErrNotOwner
	}

	b.write.Lock()
	defer b.write.Unlock()
	if err := b.leagues.DeleteLeague(ctx, leagueID); err != nil {
		return model.Transient("league: delete "+leagueID, err)
	}
	b.mu.Lock()
	delete(b.tables, leagueID)
	b.mu.Unlock()
	b.logger.Info(ctx, "league deleted", logger.String("league", leagueID))
	return nil
}

// Standings returns the first limit rows of a league table.
func (b *Board) Standings(ctx context.Context, leagueID string, limit int) ([]types.StandingEntry, error) {
	t, err := b.table(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	return t.TopN(ctx, limit)
}

// Position returns one member's row of a league table.
func (b *Board) Position(ctx context.Context, leagueID, teamID string) (types.StandingEntry, error) {
	t, err := b.table(ctx, leagueID)
	if err != nil {
		return types.StandingEntry{}, err
	}
	return t.Rank(ctx, teamID)
}

// Around returns a member's row with up to above rows before and below
// rows after it.
func (b *Board) Around(ctx context.Context, leagueID, teamID string, above, below int) ([]types.StandingEntry, error) {
	t, err := b.table(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	return t.Around(ctx, teamID, above, below)
}

// table returns the league's table, building it when this board has not
// seen the league yet.
func (b *Board) table(ctx context.Context, leagueID string) (Table, error) {
	b.mu.RLock()
	t, ok := b.tables[leagueID]
	b.mu.RUnlock()
	if ok {
		return t, nil
	}
	l, err := b.Get(ctx, leagueID)
	if err != nil {
		return nil, err
	}
	teams, err := b.teams.ListTeams(ctx)
	if err != nil {
		return nil, model.Transient("league: list teams", err)
	}

	b.write.Lock()
	defer b.write.Unlock()
	t = b.tableFor(l.ID)
	if err := b.fill(ctx, l, t, index(teams)); err != nil {
		return nil, err
	}
	return t, nil
}

// tableFor returns the table of leagueID, adding an empty one if missing.
func (b *Board) tableFor(leagueID string) Table {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.tables[leagueID]
	if !ok {
		t = b.newTable()
		b.tables[leagueID] = t
	}
	return t
}

func index(teams []model.FantasyTeam) map[string]model.FantasyTeam {
	byID := make(map[string]model.FantasyTeam, len(teams))
	for _, t := range teams {
		byID[t.ID] = t
	}
	return byID
}

// fill makes t match the stored members of l. Global leagues first enrol
// every team of their season that is not a member yet.
func (b *Board) fill(ctx context.Context, l model.League, t Table, teams map[string]model.FantasyTeam) error {
	members, err := b.leagues.Members(ctx, l.ID)
	if err != nil {
		return model.Transient("league: members of "+l.ID, err)
	}
	rows := make([]model.FantasyTeam, 0, len(members))
	in := make(map[string]struct{}, len(members))
	for _, m := range members {
		in[m.TeamID] = struct{}{}
		if team, ok := teams[m.TeamID]; ok {
			rows = append(rows, team)
		}
	}
	if l.Type == model.LeagueGlobal {
		for id, team := range teams {
			if _, ok := in[id]; ok || team.Season != l.Season {
				continue
			}
			err := b.leagues.AddMember(ctx, model.LeagueMember{LeagueID: l.ID, TeamID: id, JoinedAt: b.clock().UTC()})
			if err != nil && !errors.Is(err, model.ErrDuplicate) {
				return model.Transient("league: enrol "+id+" in "+l.ID, err)
			}
			rows = append(rows, team)
		}
	}
	t.Sync(ctx, rows)
	return nil
}

// Sync rebuilds every league table from teams, the source of truth for
// points, creating the global league of each season seen.
func (b *Board) Sync(ctx context.Context, teams []model.FantasyTeam) error {
	seasons := make(map[int]struct{})
	for _, t := range teams {
		if t.Season > 0 {
			seasons[t.Season] = struct{}{}
		}
	}
	for season := range seasons {
		if _, err := b.EnsureGlobal(ctx, season); err != nil {
			return err
		}
	}

	b.write.Lock()
	defer b.write.Unlock()
	leagues, err := b.leagues.ListLeagues(ctx)
	if err != nil {
		return model.Transient("league: list", err)
	}
	byID := index(teams)
	fresh := make(map[string]Table, len(leagues))
	for _, l := range leagues {
		b.mu.RLock()
		t, ok := b.tables[l.ID]
		b.mu.RUnlock()
		if !ok {
			t = b.newTable()
		}
		if err := b.fill(ctx, l, t, byID); err != nil {
			return err
		}
		fresh[l.ID] = t
	}
	b.mu.Lock()
	b.tables = fresh
	b.mu.Unlock()
	b.logger.Debug(ctx, "league tables synced", logger.Int("leagues", len(fresh)))
	return nil
}

// Checkpoint makes the current ranks of every league the baseline for rank
// changes.
func (b *Board) Checkpoint(ctx context.Context) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, t := range b.tables {
		t.Checkpoint(ctx)
	}
}

// Refresh pushes one team's points into every league table it sits in.
func (b *Board) Refresh(ctx context.Context, team model.FantasyTeam) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, t := range b.tables {
		if t.Contains(ctx, team.ID) {
			t.Upsert(ctx, team.ID, team.TotalPoints)
		}
	}
}
