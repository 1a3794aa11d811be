// Package transfer holds the per-session draft of roster changes and the
// ledger that commits it.
package transfer

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/okian/peloton/internal/domain/model"
	"github.com/okian/peloton/internal/domain/roster"
)

// DefaultPenaltyPerTransfer is the points cost of each transfer beyond the free ones.
const DefaultPenaltyPerTransfer = 4

// Action is a staging direction.
type Action string

// Staging actions.
const (
	ActionAdd    Action = "add"
	ActionRemove Action = "remove"
)

// ParseAction accepts "add" and "remove" in any case.
func ParseAction(s string) (Action, error) {
	switch a := Action(strings.ToLower(strings.TrimSpace(s))); a {
	case ActionAdd, ActionRemove:
		return a, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidAction, s)
	}
}

// Penalty is the points cost of count transfers with free remaining.
func Penalty(count, free int, unlimited bool, perTransfer int) int {
	if unlimited {
		return 0
	}
	if extra := count - max(free, 0); extra > 0 {
		return extra * perTransfer
	}
	return 0
}

// Draft is one editing session's scratchpad over a snapshot of the team.
// Pending additions and removals are always disjoint.
type Draft struct {
	mu sync.Mutex

	teamID      string
	sessionID   string
	baseVersion int64
	baseBudget  float64
	openedAt    time.Time

	owned      map[string]model.Cyclist
	ownedOrder []string

	additions map[string]model.Cyclist
	addOrder  []string
	removals  map[string]model.Cyclist
	remOrder  []string

	rules      *roster.Rules
	penaltyPer int
}

// NewDraft opens a draft over team and the catalog entries of its roster.
func NewDraft(team model.FantasyTeam, owned []model.Cyclist, rules *roster.Rules, sessionID string) *Draft {
	d := &Draft{
		teamID:      team.ID,
		sessionID:   sessionID,
		baseVersion: team.Version,
		baseBudget:  team.Budget,
		openedAt:    time.Now(),
		owned:       make(map[string]model.Cyclist, len(owned)),
		additions:   make(map[string]model.Cyclist),
		removals:    make(map[string]model.Cyclist),
		rules:       rules,
		penaltyPer:  DefaultPenaltyPerTransfer,
	}
	if d.rules == nil {
		d.rules = roster.NewRules()
	}
	for _, c := range owned {
		d.owned[c.ID] = c
		d.ownedOrder = append(d.ownedOrder, c.ID)
	}
	return d
}

// TeamID returns the team being edited.
func (d *Draft) TeamID() string { return d.teamID }

// SessionID returns the editing session.
func (d *Draft) SessionID() string { return d.sessionID }

// BaseVersion is the team version the draft was opened at.
func (d *Draft) BaseVersion() int64 { return d.baseVersion }

// OpenedAt is when the draft was created.
func (d *Draft) OpenedAt() time.Time { return d.openedAt }

// StageAddition stages cyclist for purchase. Staging a cyclist that is
// pending removal restores it instead.
func (d *Draft) StageAddition(c model.Cyclist) (roster.Eligibility, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cancelRemovalLocked(c.ID) {
		return roster.Eligible, nil
	}
	if c.Disabled {
		return "", fmt.Errorf("stage %s: %w", c.ID, ErrCyclistDisabled)
	}
	if e := d.rules.Evaluate(c, d.snapshotLocked()); e != roster.Eligible {
		return e, &roster.Violation{Reason: e, CyclistID: c.ID}
	}
	d.additions[c.ID] = c
	d.addOrder = append(d.addOrder, c.ID)
	return roster.Eligible, nil
}

// CancelRemoval drops a pending removal of cyclistID, keeping the rider
// whatever has happened to it in the catalog since. It reports whether a
// removal was pending.
func (d *Draft) CancelRemoval(cyclistID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cancelRemovalLocked(cyclistID)
}

func (d *Draft) cancelRemovalLocked(cyclistID string) bool {
	if _, ok := d.removals[cyclistID]; !ok {
		return false
	}
	delete(d.removals, cyclistID)
	d.remOrder = without(d.remOrder, cyclistID)
	return true
}

// StageRemoval stages the sale of cyclistID. A pending addition is simply
// dropped since it was never bought.
func (d *Draft) StageRemoval(cyclistID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.additions[cyclistID]; ok {
		delete(d.additions, cyclistID)
		d.addOrder = without(d.addOrder, cyclistID)
		return nil
	}
	c, ok := d.owned[cyclistID]
	if !ok {
		return fmt.Errorf("remove %s: %w", cyclistID, ErrNotOwned)
	}
	if _, staged := d.removals[cyclistID]; !staged {
		d.removals[cyclistID] = c
		d.remOrder = append(d.remOrder, cyclistID)
	}
	return nil
}

// Effective is the projection of a draft onto its base team.
type Effective struct {
	TeamID           string                 `json:"team_id"`
	Budget           float64                `json:"budget"`
	Cyclists         []model.Cyclist        `json:"cyclists"`
	ByCategory       map[model.Category]int `json:"by_category"`
	ByProTeam        map[string]int         `json:"by_pro_team"`
	PendingAdditions []string               `json:"pending_additions"`
	PendingRemovals  []string               `json:"pending_removals"`
	TransferCount    int                    `json:"transfer_count"`
	Deficits         []roster.Deficit       `json:"deficits,omitempty"`
	Complete         bool                   `json:"complete"`
}

// EffectiveTeam recomputes budget and counts from base and pending sets.
func (d *Draft) EffectiveTeam() Effective {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := d.snapshotLocked()
	counts := s.Counts()
	return Effective{
		TeamID:           d.teamID,
		Budget:           s.Budget,
		Cyclists:         s.Cyclists,
		ByCategory:       counts.ByCategory,
		ByProTeam:        counts.ByProTeam,
		PendingAdditions: slices.Clone(d.addOrder),
		PendingRemovals:  slices.Clone(d.remOrder),
		TransferCount:    len(d.addOrder) + len(d.remOrder),
		Deficits:         d.rules.Deficits(s),
		Complete:         d.rules.Complete(s),
	}
}

// TransferCount is the gross number of staged operations.
func (d *Draft) TransferCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.addOrder) + len(d.remOrder)
}

// Penalty is the points cost of committing now.
func (d *Draft) Penalty(freeTransfers int, unlimited bool) int {
	return Penalty(d.TransferCount(), freeTransfers, unlimited, d.penaltyPer)
}

// Empty reports whether nothing is staged.
func (d *Draft) Empty() bool {
	return d.TransferCount() == 0
}

// Discard clears both pending sets.
func (d *Draft) Discard() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.resetLocked()
}

func (d *Draft) resetLocked() {
	d.additions = make(map[string]model.Cyclist)
	d.removals = make(map[string]model.Cyclist)
	d.addOrder = nil
	d.remOrder = nil
}

// snapshotLocked must be called with d.mu held.
func (d *Draft) snapshotLocked() roster.Snapshot {
	budget := d.baseBudget
	cyclists := make([]model.Cyclist, 0, len(d.ownedOrder)+len(d.addOrder))
	for _, id := range d.ownedOrder {
		if c, removed := d.removals[id]; removed {
			budget += c.Price
			continue
		}
		cyclists = append(cyclists, d.owned[id])
	}
	for _, id := range d.addOrder {
		c := d.additions[id]
		budget -= c.Price
		cyclists = append(cyclists, c)
	}
	return roster.Snapshot{Budget: model.RoundMoney(budget), Cyclists: cyclists}
}

func without(ids []string, id string) []string {
	out := ids[:0]
	for _, v := range ids {
		if v != id {
			out = append(out, v)
		}
	}
	return out
}
