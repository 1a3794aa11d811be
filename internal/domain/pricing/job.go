package pricing

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/okian/peloton/internal/domain/dedupe"
	"github.com/okian/peloton/internal/domain/model"
	"github.com/okian/peloton/pkg/logger"
	"github.com/okian/peloton/pkg/metrics"
)

const defaultConcurrency = 8

// CyclistRepository reads the catalog and writes prices.
type CyclistRepository interface {
	ListCyclists(ctx context.Context) ([]model.Cyclist, error)
	UpdatePrice(ctx context.Context, c model.Cyclist) error
}

// OwnershipSource counts roster rows per cyclist.
type OwnershipSource interface {
	OwnershipCounts(ctx context.Context) (map[string]int, int, error)
}

// RaceRepository reads the calendar and start lists.
type RaceRepository interface {
	ListRaces(ctx context.Context) ([]model.Race, error)
	Participants(ctx context.Context, raceID string) ([]string, error)
}

// DemandRepository holds the demand counters.
type DemandRepository interface {
	UpdateOwnership(ctx context.Context, cyclistID string, period time.Time, owners, totalTeams int) error
	GetDemand(ctx context.Context, cyclistID string, period time.Time) (model.CyclistDemand, error)
}

// PriceHistory records every price change.
type PriceHistory interface {
	RecordPriceChange(ctx context.Context, change model.PriceChange) error
}

// Report summarises one pricing run.
type Report struct {
	Ownership int `json:"ownership_updated"`
	Drifted   int `json:"drifted"`
	Skipped   int `json:"skipped"`
	Reset     int `json:"reset"`
	Boosted   int `json:"boosted"`
	Failed    int `json:"failed"`
}

// Job is the periodic price update.
type Job struct {
	cyclists  CyclistRepository
	ownership OwnershipSource
	races     RaceRepository
	demand    DemandRepository
	history   PriceHistory
	markers   dedupe.Marker

	boostFactor float64
	lookahead   time.Duration
	dailyLimit  float64
	minPrice    float64
	maxPrice    float64
	concurrency int
	newID       func() string
	logger      logger.Logger
}

// NewJob creates a pricing job over the given collaborators.
func NewJob(cyclists CyclistRepository, ownership OwnershipSource, races RaceRepository, demand DemandRepository, history PriceHistory, markers dedupe.Marker, opts ...Option) *Job {
	j := &Job{
		cyclists:    cyclists,
		ownership:   ownership,
		races:       races,
		demand:      demand,
		history:     history,
		markers:     markers,
		boostFactor: DefaultBoostFactor,
		lookahead:   DefaultLookahead,
		dailyLimit:  DefaultDailyChangeLimit,
		minPrice:    DefaultMinPrice,
		maxPrice:    DefaultMaxPrice,
		concurrency: defaultConcurrency,
		newID:       func() string { return uuid.NewString() },
		logger:      logger.Get().Named("pricing"),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Run refreshes ownership, drifts unboosted prices on demand once per day,
// clears stale boosts and applies pre-race boosts. Safe to re-run.
func (j *Job) Run(ctx context.Context, now time.Time) (Report, error) {
	var rep Report
	cyclists, err := j.cyclists.ListCyclists(ctx)
	if err != nil {
		return rep, model.Transient("pricing: list cyclists", err)
	}
	races, err := j.races.ListRaces(ctx)
	if err != nil {
		return rep, model.Transient("pricing: list races", err)
	}

	var errs []error
	if err := j.refreshOwnership(ctx, cyclists, now, &rep); err != nil {
		errs = append(errs, err)
	}
	if err := j.drift(ctx, cyclists, now, &rep); err != nil {
		errs = append(errs, err)
	}
	if err := j.resetStale(ctx, cyclists, races, now, &rep); err != nil {
		errs = append(errs, err)
	}
	if err := j.boost(ctx, cyclists, races, now, &rep); err != nil {
		errs = append(errs, err)
	}

	boosted := 0
	for _, c := range cyclists {
		if c.PriceBoostActive {
			boosted++
		}
	}
	metrics.UpdateBoostedCyclists(boosted)
	j.logger.Info(ctx, "pricing run finished",
		logger.Int("drifted", rep.Drifted),
		logger.Int("skipped", rep.Skipped),
		logger.Int("reset", rep.Reset),
		logger.Int("boosted", rep.Boosted),
		logger.Int("failed", rep.Failed),
	)
	return rep, errors.Join(errs...)
}

func (j *Job) refreshOwnership(ctx context.Context, cyclists []model.Cyclist, now time.Time, rep *Report) error {
	owners, total, err := j.ownership.OwnershipCounts(ctx)
	if err != nil {
		return model.Transient("pricing: ownership counts", err)
	}
	period := model.PeriodStart(now)
	var updated atomic.Int64
	g := j.group()
	for _, c := range cyclists {
		g.Go(func() error {
			if err := j.demand.UpdateOwnership(ctx, c.ID, period, owners[c.ID], total); err != nil {
				return model.Transient("pricing: update ownership "+c.ID, err)
			}
			updated.Add(1)
			return nil
		})
	}
	err = g.Wait()
	rep.Ownership = int(updated.Load())
	return err
}

// drift mutates cyclists in place so later phases see the new prices.
func (j *Job) drift(ctx context.Context, cyclists []model.Cyclist, now time.Time, rep *Report) error {
	period := model.PeriodStart(now)
	var mu sync.Mutex
	g := j.group()
	for i := range cyclists {
		c := cyclists[i]
		if c.PriceBoostActive || c.Disabled {
			mu.Lock()
			rep.Skipped++
			mu.Unlock()
			continue
		}
		g.Go(func() error {
			changed, err := j.driftOne(ctx, &c, period, now)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				rep.Failed++
				return err
			case changed:
				rep.Drifted++
				cyclists[i] = c
			default:
				rep.Skipped++
			}
			return nil
		})
	}
	return g.Wait()
}

func (j *Job) driftOne(ctx context.Context, c *model.Cyclist, period, now time.Time) (bool, error) {
	key := dedupe.DemandKey(c.ID, now)
	seen, err := j.markers.SeenAndRecord(ctx, key)
	if err != nil {
		return false, model.Transient("pricing: demand marker", err)
	}
	if seen {
		return false, nil
	}
	d, err := j.demand.GetDemand(ctx, c.ID, period)
	if err != nil {
		j.unrecord(ctx, key)
		return false, model.Transient("pricing: get demand "+c.ID, err)
	}
	target := ClampGlobal(DriftPrice(c.BasePrice, d), j.minPrice, j.maxPrice)
	next := ClampGlobal(LimitDailyChange(c.Price, target, j.dailyLimit), j.minPrice, j.maxPrice)
	if next == c.Price {
		return false, nil
	}
	old := c.Price
	c.Price = next
	if err := j.write(ctx, *c, old, model.PriceReasonDemand, now); err != nil {
		j.unrecord(ctx, key)
		c.Price = old
		return false, err
	}
	return true, nil
}

func (j *Job) resetStale(ctx context.Context, cyclists []model.Cyclist, races []model.Race, now time.Time, rep *Report) error {
	byID := make(map[string]model.Race, len(races))
	for _, r := range races {
		byID[r.ID] = r
	}
	index := indexByID(cyclists)
	var errs []error
	for _, r := range ResetStaleBoosts(cyclists, byID, j.lookahead, now) {
		if err := j.write(ctx, r.Cyclist, r.OldPrice, r.Reason, now); err != nil {
			rep.Failed++
			errs = append(errs, err)
			continue
		}
		cyclists[index[r.Cyclist.ID]] = r.Cyclist
		rep.Reset++
	}
	return errors.Join(errs...)
}

func (j *Job) boost(ctx context.Context, cyclists []model.Cyclist, races []model.Race, now time.Time, rep *Report) error {
	index := indexByID(cyclists)
	var errs []error
	for _, race := range races {
		if !BoostWindowOpen(race, j.lookahead, now) {
			continue
		}
		ids, err := j.races.Participants(ctx, race.ID)
		if err != nil {
			errs = append(errs, model.Transient("pricing: participants "+race.ID, err))
			continue
		}
		for _, id := range ids {
			i, ok := index[id]
			if !ok || cyclists[i].Disabled {
				continue
			}
			old := cyclists[i].Price
			next, changed := ApplyPreRaceBoost(cyclists[i], race, j.boostFactor, now)
			if !changed {
				continue
			}
			next.Price = ClampGlobal(next.Price, j.minPrice, j.maxPrice)
			if next.Price == old && cyclists[i].Boosted(race.ID) {
				continue
			}
			if err := j.write(ctx, next, old, model.PriceReasonPreRaceBoost, now); err != nil {
				rep.Failed++
				errs = append(errs, err)
				continue
			}
			cyclists[i] = next
			rep.Boosted++
		}
	}
	return errors.Join(errs...)
}

func (j *Job) write(ctx context.Context, c model.Cyclist, old float64, reason model.PriceReason, now time.Time) error {
	if err := j.cyclists.UpdatePrice(ctx, c); err != nil {
		return model.Transient("pricing: update price "+c.ID, err)
	}
	metrics.RecordPriceChange(string(reason))
	change := model.PriceChange{
		ID:        j.newID(),
		CyclistID: c.ID,
		OldPrice:  old,
		NewPrice:  c.Price,
		Reason:    reason,
		CreatedAt: now,
	}
	if err := j.history.RecordPriceChange(ctx, change); err != nil {
		// The price itself is written; only the audit row is missing.
		metrics.RecordError("pricing", "history")
		j.logger.Warn(ctx, "price history write failed", logger.String("cyclist", c.ID), logger.Error(err))
	}
	return nil
}

func (j *Job) unrecord(ctx context.Context, key string) {
	if err := j.markers.Unrecord(context.WithoutCancel(ctx), key); err != nil {
		j.logger.Error(ctx, "failed to release demand marker", logger.String("key", key), logger.Error(err))
	}
}

func (j *Job) group() *errgroup.Group {
	g := &errgroup.Group{}
	g.SetLimit(j.concurrency)
	return g
}

func indexByID(cyclists []model.Cyclist) map[string]int {
	out := make(map[string]int, len(cyclists))
	for i, c := range cyclists {
		out[c.ID] = i
	}
	return out
}
