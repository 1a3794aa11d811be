package transfer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/okian/peloton/internal/domain/model"
	"github.com/okian/peloton/internal/domain/roster"
	"github.com/okian/peloton/pkg/logger"
	"github.com/okian/peloton/pkg/metrics"
)

const defaultLockTTL = 30 * time.Second

// TeamRepository is the team storage the ledger writes through. Each call
// is atomic on its own.
type TeamRepository interface {
	GetTeam(ctx context.Context, teamID string) (model.FantasyTeam, error)
	GetTeamCyclists(ctx context.Context, teamID string) ([]model.TeamCyclist, error)
	AddCyclistToTeam(ctx context.Context, member model.TeamCyclist) error
	RemoveCyclistFromTeam(ctx context.Context, teamID, cyclistID string) error
	UpdateTeam(ctx context.Context, team model.FantasyTeam, expectedVersion int64) (model.FantasyTeam, error)
	AddPoints(ctx context.Context, teamID string, delta int) (int, error)
	AddBudget(ctx context.Context, teamID string, delta float64) (float64, error)
	SetCaptain(ctx context.Context, teamID, cyclistID string) error
	SetActive(ctx context.Context, teamID, cyclistID string, active bool) error
	SaveTransfers(ctx context.Context, transfers []model.Transfer) error
}

// CyclistRepository is the read side of the cyclist catalog.
type CyclistRepository interface {
	GetCyclist(ctx context.Context, cyclistID string) (model.Cyclist, error)
}

// DemandRepository receives buy and sell increments.
type DemandRepository interface {
	IncrementBuy(ctx context.Context, cyclistID string, period time.Time) error
	IncrementSell(ctx context.Context, cyclistID string, period time.Time) error
}

// RaceRepository tells whether a race is being ridden.
type RaceRepository interface {
	ListRaces(ctx context.Context) ([]model.Race, error)
}

// Locker serialises writers of one team.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// Outcome is the result of one staged item at commit time.
type Outcome struct {
	CyclistID string  `json:"cyclist_id"`
	Action    Action  `json:"action"`
	Price     float64 `json:"price"`
	Reason    string  `json:"reason,omitempty"`
	Err       error   `json:"-"`
}

func (o *Outcome) fail(err error) {
	o.Err = err
	o.Reason = err.Error()
}

// Summary reports every staged item's outcome.
type Summary struct {
	Succeeded      []Outcome        `json:"succeeded"`
	Failed         []Outcome        `json:"failed"`
	PenaltyApplied int              `json:"penalty_applied"`
	TransferCount  int              `json:"transfer_count"`
	Budget         float64          `json:"budget"`
	Transfers      []model.Transfer `json:"transfers,omitempty"`
	Warnings       []string         `json:"warnings,omitempty"`
}

// Ledger opens drafts and commits them through the repositories.
type Ledger struct {
	teams    TeamRepository
	cyclists CyclistRepository
	demand   DemandRepository
	races    RaceRepository
	locker   Locker

	rules              *roster.Rules
	penaltyPerTransfer int
	lockTTL            time.Duration
	clock              func() time.Time
	newID              func() string
	logger             logger.Logger
}

// NewLedger creates a ledger over the given collaborators.
func NewLedger(teams TeamRepository, cyclists CyclistRepository, demand DemandRepository, races RaceRepository, locker Locker, opts ...Option) *Ledger {
	l := &Ledger{
		teams:              teams,
		cyclists:           cyclists,
		demand:             demand,
		races:              races,
		locker:             locker,
		rules:              roster.NewRules(),
		penaltyPerTransfer: DefaultPenaltyPerTransfer,
		lockTTL:            defaultLockTTL,
		clock:              time.Now,
		newID:              func() string { return uuid.NewString() },
		logger:             logger.Get().Named("transfer"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Rules returns the roster rules in use.
func (l *Ledger) Rules() *roster.Rules { return l.rules }

// Open snapshots a team and its roster into a new draft.
func (l *Ledger) Open(ctx context.Context, teamID, sessionID string) (*Draft, error) {
	team, err := l.teams.GetTeam(ctx, teamID)
	if err != nil {
		return nil, model.Transient("open draft: get team", err)
	}
	members, err := l.teams.GetTeamCyclists(ctx, teamID)
	if err != nil {
		return nil, model.Transient("open draft: get roster", err)
	}
	owned := make([]model.Cyclist, 0, len(members))
	for _, m := range members {
		c, err := l.cyclists.GetCyclist(ctx, m.CyclistID)
		if errors.Is(err, model.ErrNotFound) {
			l.logger.Warn(ctx, "roster cyclist missing from catalog",
				logger.String("team", teamID), logger.String("cyclist", m.CyclistID))
			c = model.Cyclist{ID: m.CyclistID, Price: m.PurchasePrice, BasePrice: m.PurchasePrice}
		} else if err != nil {
			return nil, model.Transient("open draft: get cyclist", err)
		}
		owned = append(owned, c)
	}
	d := NewDraft(team, owned, l.rules, sessionID)
	d.penaltyPer = l.penaltyPerTransfer
	return d, nil
}

// Stage resolves cyclistID and stages it in d.
func (l *Ledger) Stage(ctx context.Context, d *Draft, cyclistID string, action Action) (roster.Eligibility, error) {
	switch action {
	case ActionAdd:
		if d.CancelRemoval(cyclistID) {
			metrics.RecordTransferStaged(string(action))
			return roster.Eligible, nil
		}
		c, err := l.cyclists.GetCyclist(ctx, cyclistID)
		if errors.Is(err, model.ErrNotFound) {
			return "", fmt.Errorf("stage %s: %w", cyclistID, ErrUnknownCyclist)
		}
		if err != nil {
			return "", model.Transient("stage: get cyclist", err)
		}
		e, err := d.StageAddition(c)
		if err != nil {
			reason := string(e)
			if reason == "" {
				reason = "rejected"
			}
			metrics.RecordStageRejection(reason)
			return e, err
		}
		metrics.RecordTransferStaged(string(action))
		return e, nil
	case ActionRemove:
		if err := d.StageRemoval(cyclistID); err != nil {
			metrics.RecordStageRejection("not_owned")
			return "", err
		}
		metrics.RecordTransferStaged(string(action))
		return roster.Eligible, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidAction, action)
	}
}

// Commit applies d to storage. Removals run before additions and every
// item is attempted independently; failures are reported, not rolled back.
// The draft is cleared once sub-operations start, whatever the outcome, so a
// retry never replays items that were already applied.
func (l *Ledger) Commit(ctx context.Context, d *Draft) (Summary, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	release, err := l.locker.Acquire(ctx, model.TeamLockKey(d.teamID), l.lockTTL)
	if err != nil {
		return Summary{}, model.Transient("commit: lock team "+d.teamID, err)
	}
	defer release()

	team, err := l.teams.GetTeam(ctx, d.teamID)
	if err != nil {
		return Summary{}, model.Transient("commit: get team", err)
	}
	if team.Version != d.baseVersion {
		metrics.RecordStaleCommit()
		return Summary{}, fmt.Errorf("commit %s: draft opened at version %d, team is at %d: %w",
			d.teamID, d.baseVersion, team.Version, model.ErrStaleData)
	}
	if len(d.addOrder)+len(d.remOrder) == 0 {
		return Summary{Budget: team.Budget}, nil
	}
	members, err := l.teams.GetTeamCyclists(ctx, d.teamID)
	if err != nil {
		return Summary{}, model.Transient("commit: get roster", err)
	}
	defer d.resetLocked()

	now := l.clock()
	unlimited := team.UnlimitedTransfers()
	sum := Summary{TransferCount: len(d.addOrder) + len(d.remOrder)}
	penalty := Penalty(sum.TransferCount, team.FreeTransfers, unlimited, l.penaltyPerTransfer)

	byID := make(map[string]model.TeamCyclist, len(members))
	for _, m := range members {
		byID[m.CyclistID] = m
	}
	running := make([]model.Cyclist, 0, len(d.ownedOrder))
	for _, id := range d.ownedOrder {
		running = append(running, d.owned[id])
	}
	active := 0
	for _, m := range members {
		if m.IsActive {
			active++
		}
	}
	budget := team.Budget

	var removed, added []Outcome
	for _, id := range d.remOrder {
		o := Outcome{CyclistID: id, Action: ActionRemove, Price: d.removals[id].Price}
		if err := ctx.Err(); err != nil {
			o.fail(err)
			sum.Failed = append(sum.Failed, o)
			continue
		}
		if err := l.teams.RemoveCyclistFromTeam(ctx, d.teamID, id); err != nil {
			o.fail(model.Transient("remove "+id, err))
			sum.Failed = append(sum.Failed, o)
			metrics.RecordCommitOperation(string(ActionRemove), "failed")
			continue
		}
		budget = model.RoundMoney(budget + o.Price)
		running = dropCyclist(running, id)
		if byID[id].IsActive {
			active--
		}
		removed = append(removed, o)
		sum.Succeeded = append(sum.Succeeded, o)
		metrics.RecordCommitOperation(string(ActionRemove), "succeeded")
	}

	for _, id := range d.addOrder {
		o := Outcome{CyclistID: id, Action: ActionAdd, Price: d.additions[id].Price}
		if err := ctx.Err(); err != nil {
			o.fail(err)
			sum.Failed = append(sum.Failed, o)
			continue
		}
		if err := l.addOne(ctx, d.teamID, id, now, budget, running, active, &o); err != nil {
			o.fail(err)
			sum.Failed = append(sum.Failed, o)
			metrics.RecordCommitOperation(string(ActionAdd), "failed")
			continue
		}
		budget = model.RoundMoney(budget - o.Price)
		c := d.additions[id]
		c.Price = o.Price
		running = append(running, c)
		if active < l.rules.ActiveSize() {
			active++
		}
		added = append(added, o)
		sum.Succeeded = append(sum.Succeeded, o)
		metrics.RecordCommitOperation(string(ActionAdd), "succeeded")
	}

	// Bookkeeping runs even when ctx was cancelled mid-batch so the applied
	// items stay consistent with budget and counters.
	bctx := context.WithoutCancel(ctx)

	sum.Transfers = l.buildTransfers(team, removed, added, now, unlimited)
	if len(sum.Transfers) > 0 {
		if err := l.teams.SaveTransfers(bctx, sum.Transfers); err != nil {
			sum.warn(l.warnf(bctx, "save transfers", err))
		}
	}

	period := model.PeriodStart(now)
	for _, o := range added {
		if err := l.demand.IncrementBuy(bctx, o.CyclistID, period); err != nil {
			sum.warn(l.warnf(bctx, "increment buy "+o.CyclistID, err))
		}
	}
	for _, o := range removed {
		if err := l.demand.IncrementSell(bctx, o.CyclistID, period); err != nil {
			sum.warn(l.warnf(bctx, "increment sell "+o.CyclistID, err))
		}
	}

	sum.Budget = team.Budget
	if delta := model.RoundMoney(budget - team.Budget); delta != 0 {
		newBudget, err := l.teams.AddBudget(bctx, d.teamID, delta)
		if err != nil {
			return sum, model.Transient("commit: apply budget delta", err)
		}
		sum.Budget = newBudget
		if newBudget < 0 {
			metrics.RecordInvariantViolation("transfer")
			l.logger.Error(bctx, "negative budget after commit",
				logger.String("team", d.teamID),
				logger.Float64("budget", newBudget),
				logger.Float64("delta", delta),
			)
			return sum, fmt.Errorf("commit %s: budget %.2f after commit: %w", d.teamID, newBudget, model.ErrInvariantViolation)
		}
	}

	if !unlimited {
		team.FreeTransfers = max(0, team.FreeTransfers-sum.TransferCount)
	}
	team.TransfersMadeThisWeek += sum.TransferCount
	if _, err := l.teams.UpdateTeam(bctx, team, team.Version); err != nil {
		return sum, model.Transient("commit: update team counters", err)
	}

	if penalty > 0 {
		if _, err := l.teams.AddPoints(bctx, d.teamID, -penalty); err != nil {
			return sum, model.Transient("commit: apply penalty", err)
		}
		metrics.RecordPenalty(penalty)
	}
	sum.PenaltyApplied = penalty

	if err := l.ensureCaptain(bctx, d.teamID); err != nil {
		sum.warn(l.warnf(bctx, "assign captain", err))
	}

	l.logger.Info(ctx, "draft committed",
		logger.String("team", d.teamID),
		logger.String("session", d.sessionID),
		logger.Int("succeeded", len(sum.Succeeded)),
		logger.Int("failed", len(sum.Failed)),
		logger.Int("penalty", penalty),
		logger.Bool("unlimited", unlimited),
	)
	return sum, nil
}

func (l *Ledger) addOne(ctx context.Context, teamID, cyclistID string, now time.Time, budget float64, running []model.Cyclist, active int, o *Outcome) error {
	c, err := l.cyclists.GetCyclist(ctx, cyclistID)
	if err != nil {
		return model.Transient("get cyclist "+cyclistID, err)
	}
	if c.Disabled {
		return fmt.Errorf("add %s: %w", cyclistID, ErrCyclistDisabled)
	}
	o.Price = c.Price
	if err := l.rules.Check(c, roster.Snapshot{Budget: budget, Cyclists: running}); err != nil {
		return err
	}
	member := model.TeamCyclist{
		TeamID:        teamID,
		CyclistID:     cyclistID,
		IsActive:      active < l.rules.ActiveSize(),
		PurchasePrice: c.Price,
		AddedAt:       now,
	}
	if err := l.teams.AddCyclistToTeam(ctx, member); err != nil {
		return model.Transient("add "+cyclistID, err)
	}
	return nil
}

// buildTransfers pairs succeeded removals with succeeded additions in staging
// order. Each side counts as one transfer against the free allowance.
func (l *Ledger) buildTransfers(team model.FantasyTeam, removed, added []Outcome, now time.Time, unlimited bool) []model.Transfer {
	n := max(len(removed), len(added))
	out := make([]model.Transfer, 0, n)
	free := team.FreeTransfers
	for i := 0; i < n; i++ {
		t := model.Transfer{ID: l.newID(), TeamID: team.ID, Gameweek: team.Gameweek, CreatedAt: now}
		units := 0
		if i < len(removed) {
			t.CyclistOutID, t.PriceOut = removed[i].CyclistID, removed[i].Price
			units++
		}
		if i < len(added) {
			t.CyclistInID, t.PriceIn = added[i].CyclistID, added[i].Price
			units++
		}
		if !unlimited {
			charged := max(0, units-free)
			free = max(0, free-units)
			t.PointsCost = charged * l.penaltyPerTransfer
		}
		out = append(out, t)
	}
	return out
}

// ensureCaptain keeps exactly one captain on a non-empty roster.
func (l *Ledger) ensureCaptain(ctx context.Context, teamID string) error {
	members, err := l.teams.GetTeamCyclists(ctx, teamID)
	if err != nil || len(members) == 0 {
		return err
	}
	pick := ""
	for _, m := range members {
		if m.IsCaptain {
			return nil
		}
		if pick == "" && m.IsActive {
			pick = m.CyclistID
		}
	}
	if pick == "" {
		pick = members[0].CyclistID
	}
	return l.teams.SetCaptain(ctx, teamID, pick)
}

func (l *Ledger) warnf(ctx context.Context, what string, err error) string {
	metrics.RecordError("transfer", "post_commit")
	l.logger.Warn(ctx, "post-commit step failed", logger.String("step", what), logger.Error(err))
	return what + ": " + err.Error()
}

func (s *Summary) warn(msg string) {
	s.Warnings = append(s.Warnings, msg)
}

func dropCyclist(cs []model.Cyclist, id string) []model.Cyclist {
	out := cs[:0]
	for _, c := range cs {
		if c.ID != id {
			out = append(out, c)
		}
	}
	return out
}
