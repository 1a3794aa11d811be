package repository

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/okian/peloton/internal/domain/model"
	"github.com/okian/peloton/internal/domain/types"
	"github.com/okian/peloton/pkg/metrics"
)

// Treap-based, in-memory season standings.
//
// Ordering: points DESC, then teamID ASC (deterministic). "less" means ranks
// earlier, so in-order traversal yields the table from first to last. Each
// node carries its subtree size so ranks are O(log n).

// treap node
type node struct {
	id     string
	points int
	prio   uint64
	left   *node
	right  *node
	size   int
}

func nsize(n *node) int {
	if n == nil {
		return 0
	}
	return n.size
}

func fix(n *node) {
	if n != nil {
		n.size = 1 + nsize(n.left) + nsize(n.right)
	}
}

// less returns true if (aPoints, aID) appears before (bPoints, bID).
func less(aPoints int, aID string, bPoints int, bID string) bool {
	if aPoints != bPoints {
		return aPoints > bPoints
	}
	return aID < bID
}

func rotateRight(y *node) *node {
	x := y.left
	y.left = x.right
	x.right = y
	fix(y)
	fix(x)
	return x
}

func rotateLeft(x *node) *node {
	y := x.right
	x.right = y.left
	y.left = x
	fix(x)
	fix(y)
	return y
}

func insert(n *node, id string, points int, prio uint64) *node {
	if n == nil {
		return &node{id: id, points: points, prio: prio, size: 1}
	}
	if less(points, id, n.points, n.id) {
		n.left = insert(n.left, id, points, prio)
		if n.left.prio > n.prio {
			n = rotateRight(n)
		}
	} else {
		n.right = insert(n.right, id, points, prio)
		if n.right.prio > n.prio {
			n = rotateLeft(n)
		}
	}
	fix(n)
	return n
}

func deleteNode(n *node, id string, points int) *node {
	if n == nil {
		return nil
	}
	switch {
	case points == n.points && id == n.id:
		if n.left == nil {
			return n.right
		}
		if n.right == nil {
			return n.left
		}
		if n.left.prio > n.right.prio {
			n = rotateRight(n)
			n.right = deleteNode(n.right, id, points)
		} else {
			n = rotateLeft(n)
			n.left = deleteNode(n.left, id, points)
		}
	case less(points, id, n.points, n.id):
		n.left = deleteNode(n.left, id, points)
	default:
		n.right = deleteNode(n.right, id, points)
	}
	fix(n)
	return n
}

// countAbove returns how many teams have strictly more than points.
func countAbove(n *node, points int) int {
	count := 0
	for n != nil {
		if n.points > points {
			count += 1 + nsize(n.left)
			n = n.right
		} else {
			n = n.left
		}
	}
	return count
}

// collectTopN appends up to limit nodes in table order.
func collectTopN(n *node, limit int, out *[]*node) {
	if n == nil || len(*out) >= limit {
		return
	}
	collectTopN(n.left, limit, out)
	if len(*out) < limit {
		*out = append(*out, n)
	}
	if len(*out) < limit {
		collectTopN(n.right, limit, out)
	}
}

// before counts the nodes that sort ahead of (points, id).
func before(n *node, points int, id string) int {
	count := 0
	for n != nil {
		if less(n.points, n.id, points, id) {
			count += 1 + nsize(n.left)
			n = n.right
		} else {
			n = n.left
		}
	}
	return count
}

// collectRange appends the nodes whose table index is in [lo, hi). base is
// the index of the leftmost node under n.
func collectRange(n *node, base, lo, hi int, out *[]*node) {
	if n == nil {
		return
	}
	idx := base + nsize(n.left)
	if lo < idx {
		collectRange(n.left, base, lo, hi, out)
	}
	if idx >= lo && idx < hi {
		*out = append(*out, n)
	}
	if idx+1 < hi {
		collectRange(n.right, idx+1, lo, hi, out)
	}
}

func collectAll(n *node, out *[]*node) {
	if n == nil {
		return
	}
	collectAll(n.left, out)
	*out = append(*out, n)
	collectAll(n.right, out)
}

// StandingsStore ranks teams by total points. Teams level on points share a
// rank and the next rank skips (1, 1, 3). Rank changes are measured against
// the last Checkpoint.
type StandingsStore struct {
	mu       sync.RWMutex
	root     *node
	byID     map[string]int
	previous map[string]int
	gauge    bool
}

// StandingsOption configures a StandingsStore.
type StandingsOption func(*StandingsStore)

// WithEntriesGauge controls whether the table reports its size to the
// standings_entries gauge. Only the season table should.
func WithEntriesGauge(enabled bool) StandingsOption {
	return func(s *StandingsStore) {
		s.gauge = enabled
	}
}

// NewStandingsStore creates an empty standings table.
func NewStandingsStore(opts ...StandingsOption) *StandingsStore {
	s := &StandingsStore{
		byID:     make(map[string]int),
		previous: make(map[string]int),
		gauge:    true,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *StandingsStore) report() {
	if s.gauge {
		metrics.UpdateStandingsEntries(len(s.byID))
	}
}

// Upsert sets a team's points. It reports whether anything changed.
func (s *StandingsStore) Upsert(_ context.Context, teamID string, points int) bool {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryLatency("standings", "upsert", time.Since(start).Seconds())
	}()

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsertLocked(teamID, points)
}

func (s *StandingsStore) upsertLocked(teamID string, points int) bool {
	if old, ok := s.byID[teamID]; ok {
		if old == points {
			return false
		}
		s.root = deleteNode(s.root, teamID, old)
	}
	s.byID[teamID] = points
	s.root = insert(s.root, teamID, points, rand.Uint64()) //nolint:gosec // treap priority
	s.report()
	return true
}

// Remove drops a team from the table.
func (s *StandingsStore) Remove(_ context.Context, teamID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if old, ok := s.byID[teamID]; ok {
		s.root = deleteNode(s.root, teamID, old)
		delete(s.byID, teamID)
		s.report()
	}
}

// Sync makes the table match teams, the source of truth for points.
func (s *StandingsStore) Sync(_ context.Context, teams []model.FantasyTeam) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]struct{}, len(teams))
	changed := 0
	for _, t := range teams {
		seen[t.ID] = struct{}{}
		if s.upsertLocked(t.ID, t.TotalPoints) {
			changed++
		}
	}
	for id, pts := range s.byID {
		if _, ok := seen[id]; !ok {
			s.root = deleteNode(s.root, id, pts)
			delete(s.byID, id)
			changed++
		}
	}
	s.report()
	return changed
}

// Checkpoint remembers the current ranks as the baseline for rank changes.
func (s *StandingsStore) Checkpoint(_ context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := make([]*node, 0, len(s.byID))
	collectAll(s.root, &all)
	s.previous = make(map[string]int, len(all))
	for _, e := range s.entries(all) {
		s.previous[e.TeamID] = e.Rank
	}
}

// Rank returns one team's standing in O(log n).
func (s *StandingsStore) Rank(_ context.Context, teamID string) (types.StandingEntry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryLatency("standings", "rank", time.Since(start).Seconds())
	}()

	s.mu.RLock()
	defer s.mu.RUnlock()
	points, ok := s.byID[teamID]
	if !ok {
		return types.StandingEntry{}, fmt.Errorf("standings: team %s: %w", teamID, model.ErrNotFound)
	}
	return s.entry(teamID, points, countAbove(s.root, points)+1), nil
}

// TopN returns the first n teams in table order.
func (s *StandingsStore) TopN(_ context.Context, n int) ([]types.StandingEntry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryLatency("standings", "top_n", time.Since(start).Seconds())
	}()

	if n < 1 {
		return nil, ErrInvalidLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	nodes := make([]*node, 0, min(n, len(s.byID)))
	collectTopN(s.root, n, &nodes)
	return s.entries(nodes), nil
}

// Around returns teamID's row with up to above rows before it and below
// rows after it.
func (s *StandingsStore) Around(_ context.Context, teamID string, above, below int) ([]types.StandingEntry, error) {
	start := time.Now()
	defer func() {
		metrics.RecordRepositoryLatency("standings", "around", time.Since(start).Seconds())
	}()

	if above < 0 || below < 0 {
		return nil, ErrInvalidLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	points, ok := s.byID[teamID]
	if !ok {
		return nil, fmt.Errorf("standings: team %s: %w", teamID, model.ErrNotFound)
	}
	idx := before(s.root, points, teamID)
	lo := max(0, idx-above)
	nodes := make([]*node, 0, idx-lo+below+1)
	collectRange(s.root, 0, lo, idx+below+1, &nodes)
	return s.entries(nodes), nil
}

// Contains reports whether teamID is ranked.
func (s *StandingsStore) Contains(_ context.Context, teamID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.byID[teamID]
	return ok
}

// Count returns the number of ranked teams.
func (s *StandingsStore) Count(_ context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}

// entries assigns ranks to a contiguous run of the table in order.
func (s *StandingsStore) entries(nodes []*node) []types.StandingEntry {
	out := make([]types.StandingEntry, 0, len(nodes))
	if len(nodes) == 0 {
		return out
	}
	first := before(s.root, nodes[0].points, nodes[0].id)
	rank := 0
	for i, n := range nodes {
		switch {
		case i == 0:
			rank = countAbove(s.root, n.points) + 1
		case n.points != nodes[i-1].points:
			rank = first + i + 1
		}
		out = append(out, s.entry(n.id, n.points, rank))
	}
	return out
}

func (s *StandingsStore) entry(teamID string, points, rank int) types.StandingEntry {
	e := types.StandingEntry{Rank: rank, TeamID: teamID, Points: points}
	if prev, ok := s.previous[teamID]; ok {
		e.PreviousRank = prev
		e.RankChange = prev - rank
	}
	return e
}
