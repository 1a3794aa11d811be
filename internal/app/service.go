// Package service wires the rules engines, the job pipeline and the
// standings table into the operations exposed by the HTTP API and the CLI.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"

	eventqueue "github.com/okian/peloton/internal/adapters/mq/queue"
	workerpool "github.com/okian/peloton/internal/adapters/mq/worker"
	"github.com/okian/peloton/internal/adapters/repository"
	"github.com/okian/peloton/internal/adapters/repository/memory"
	"github.com/okian/peloton/internal/domain/dedupe"
	"github.com/okian/peloton/internal/domain/league"
	"github.com/okian/peloton/internal/domain/model"
	"github.com/okian/peloton/internal/domain/pricing"
	"github.com/okian/peloton/internal/domain/roster"
	"github.com/okian/peloton/internal/domain/scoring"
	"github.com/okian/peloton/internal/domain/transfer"
	"github.com/okian/peloton/internal/domain/types"
	"github.com/okian/peloton/internal/domain/wildcard"
	"github.com/okian/peloton/pkg/logger"
	"github.com/okian/peloton/pkg/metrics"
)

const sweepInterval = time.Minute

// Service implements the API dependencies for the rules engine.
type Service struct {
	mu sync.RWMutex

	// Backends
	store       repository.Store
	demand      repository.Demand
	markers     dedupe.Marker
	locker      repository.Locker
	leagueStore repository.Leagues

	// Engines
	ledger    *transfer.Ledger
	powerups  *wildcard.Machine
	processor *scoring.Processor
	pricer    *pricing.Job
	standings *repository.StandingsStore
	leagues   *league.Board
	drafts    *drafts

	// Job pipeline, built by Start
	queue *eventqueue.InMemoryQueue
	pool  *workerpool.Pool

	// Configuration
	workerCount     int
	queueSize       int
	dedupeSize      int
	jobRetries      int
	jobBackoff      time.Duration
	draftTTL        time.Duration
	lockTTL         time.Duration
	pricingInterval time.Duration
	transferOpts    []transfer.Option
	scoringOpts     []scoring.Option
	pricingOpts     []pricing.Option
	clock           func() time.Time

	// State
	started bool
	stopCh  chan struct{}
	loops   sync.WaitGroup

	logger logger.Logger
}

// New constructs a Service. Backends not supplied through options default
// to the in-memory implementations.
func New(opts ...Option) *Service {
	s := &Service{
		workerCount: runtime.NumCPU(),
		queueSize:   1024,
		dedupeSize:  0,
		jobRetries:  3,
		jobBackoff:  200 * time.Millisecond,
		draftTTL:    30 * time.Minute,
		lockTTL:     10 * time.Second,
		clock:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.store == nil {
		s.store = memory.New(memory.WithClock(s.clock))
	}
	if s.demand == nil {
		s.demand = memory.NewDemand()
	}
	if s.markers == nil {
		s.markers = dedupe.NewInMemoryMarker(dedupe.WithMaxSize(s.dedupeSize))
	}
	if s.locker == nil {
		s.locker = memory.NewLocker()
	}
	if s.leagueStore == nil {
		s.leagueStore = memory.NewLeagues()
	}

	s.ledger = transfer.NewLedger(s.store, s.store, s.demand, s.store, s.locker,
		append([]transfer.Option{
			transfer.WithClock(s.clock),
			transfer.WithLockTTL(s.lockTTL),
		}, s.transferOpts...)...)
	s.powerups = wildcard.NewMachine(s.store, s.store, s.locker,
		wildcard.WithClock(s.clock),
		wildcard.WithLockTTL(s.lockTTL),
	)
	s.processor = scoring.NewProcessor(s.store, s.store, s.store, s.powerups, s.markers, s.locker,
		append([]scoring.Option{
			scoring.WithClock(s.clock),
			scoring.WithLockTTL(s.lockTTL),
		}, s.scoringOpts...)...)
	s.pricer = pricing.NewJob(s.store, s.store, s.store, s.demand, s.store, s.markers, s.pricingOpts...)
	s.standings = repository.NewStandingsStore()
	s.leagues = league.NewBoard(s.leagueStore, s.store, newLeagueTable,
		league.WithClock(s.clock),
		league.WithLogger(s.logger.Named("league")),
	)
	s.drafts = newDrafts(s.draftTTL, s.clock)
	return s
}

// Start builds the job pipeline, loads standings and starts the background
// loops. Calling Start twice is a no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting peloton service...")

	if err := s.syncStandings(ctx); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	s.checkpoint(ctx)

	s.queue = eventqueue.NewInMemoryQueue(eventqueue.WithCapacity(s.queueSize))
	s.pool = workerpool.NewPool(s.workerCount, s.queue, workerpool.HandlerFunc(s.HandleJob),
		workerpool.WithRetry(s.jobRetries, s.jobBackoff),
		workerpool.WithLogger(s.logger.Named("worker")),
	)
	s.pool.Start(ctx)

	s.stopCh = make(chan struct{})
	s.loops.Add(1)
	go s.sweepLoop(s.stopCh)
	if s.pricingInterval > 0 {
		s.loops.Add(1)
		go s.pricingLoop(ctx, s.stopCh)
	}

	s.started = true
	metrics.UpdateWorkerCount(s.pool.Size())
	metrics.UpdateQueueCapacity(s.queueSize)
	s.logger.Info(ctx, "peloton service started",
		logger.Int("workers", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Duration("pricingInterval", s.pricingInterval),
	)
	return nil
}

// Stop halts the background loops, drains the queue and waits for the
// workers to exit.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	s.logger.Info(ctx, "stopping peloton service...")
	s.started = false
	close(s.stopCh)
	pool := s.pool
	s.mu.Unlock()

	// Loops may be blocked in EnqueueJob on the read lock.
	s.loops.Wait()
	err := pool.Shutdown(ctx)

	s.logger.Info(ctx, "peloton service stopped")
	return err
}

func (s *Service) sweepLoop(stop <-chan struct{}) {
	defer s.loops.Done()
	t := time.NewTicker(sweepInterval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			if n := s.drafts.sweep(); n > 0 {
				s.logger.Debug(context.Background(), "expired draft sessions", logger.Int("dropped", n))
			}
		}
	}
}

func (s *Service) pricingLoop(ctx context.Context, stop <-chan struct{}) {
	defer s.loops.Done()
	t := time.NewTicker(s.pricingInterval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := s.EnqueueJob(ctx, model.Job{Kind: model.JobPricing}); err != nil {
				s.logger.Warn(ctx, "scheduled pricing not enqueued", logger.Error(err))
			}
		}
	}
}

// Rules returns the roster constraints in force.
func (s *Service) Rules() *roster.Rules { return s.ledger.Rules() }

// Store exposes the record store, mainly for seeding.
func (s *Service) Store() repository.Store { return s.store }

func session(id string) string {
	if id == "" {
		return DefaultSession
	}
	return id
}

// StageTransfer stages one addition or removal in the team's draft session,
// opening the session on first use.
func (s *Service) StageTransfer(ctx context.Context, teamID, sessionID, cyclistID, action string) (roster.Eligibility, error) {
	act, err := transfer.ParseAction(action)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	d, err := s.drafts.get(ctx, teamID, session(sessionID), s.ledger.Open)
	if err != nil {
		return "", err
	}
	return s.ledger.Stage(ctx, d, cyclistID, act)
}

// EffectiveTeam projects the team's open draft. A team with no open draft
// gets a fresh, empty projection.
func (s *Service) EffectiveTeam(ctx context.Context, teamID, sessionID string) (transfer.Effective, error) {
	d, err := s.drafts.get(ctx, teamID, session(sessionID), s.ledger.Open)
	if err != nil {
		return transfer.Effective{}, err
	}
	return d.EffectiveTeam(), nil
}

// CommitDraft commits the session. The session is closed after a stale-version
// refusal or once the ledger has cleared the draft, even when bookkeeping
// failed; the next stage opens it against the new team.
func (s *Service) CommitDraft(ctx context.Context, teamID, sessionID string) (transfer.Summary, error) {
	sid := session(sessionID)
	d, ok := s.drafts.lookup(teamID, sid)
	if !ok {
		return transfer.Summary{}, fmt.Errorf("commit %s/%s: %w", teamID, sid, ErrNoDraft)
	}
	sum, err := s.ledger.Commit(ctx, d)
	if err == nil || errors.Is(err, model.ErrStaleData) || d.Empty() {
		s.drafts.drop(teamID, sid)
	}
	if err != nil {
		return sum, err
	}
	s.refreshTeam(ctx, teamID)
	return sum, nil
}

// DiscardDraft throws the session away. Discarding a missing session is a no-op.
func (s *Service) DiscardDraft(_ context.Context, teamID, sessionID string) {
	sid := session(sessionID)
	if d, ok := s.drafts.lookup(teamID, sid); ok {
		d.Discard()
	}
	s.drafts.drop(teamID, sid)
}

// SetCaptain names the team captain.
func (s *Service) SetCaptain(ctx context.Context, teamID, cyclistID string) error {
	return s.ledger.SetCaptain(ctx, teamID, cyclistID)
}

// SetActive moves a rider between starters and bench.
func (s *Service) SetActive(ctx context.Context, teamID, cyclistID string, active bool) error {
	return s.ledger.SetActive(ctx, teamID, cyclistID, active)
}

// ActivatePowerUp arms a power-up for a race.
func (s *Service) ActivatePowerUp(ctx context.Context, teamID, kind, raceID string) (model.FantasyTeam, error) {
	k, ok := model.ParsePowerUpKind(kind)
	if !ok {
		return model.FantasyTeam{}, fmt.Errorf("%w: power-up %q: %w", ErrInvalidInput, kind, wildcard.ErrUnknownKind)
	}
	return s.powerups.Activate(ctx, teamID, k, raceID)
}

// CancelPowerUp disarms a power-up before its race starts.
func (s *Service) CancelPowerUp(ctx context.Context, teamID, kind, raceID string) (model.FantasyTeam, error) {
	k, ok := model.ParsePowerUpKind(kind)
	if !ok {
		return model.FantasyTeam{}, fmt.Errorf("%w: power-up %q: %w", ErrInvalidInput, kind, wildcard.ErrUnknownKind)
	}
	return s.powerups.Cancel(ctx, teamID, k, raceID)
}

// GameweekScore sums a team's recorded stage scores for a gameweek.
func (s *Service) GameweekScore(ctx context.Context, teamID string, gameweek int) (int, error) {
	if gameweek < 1 {
		return 0, fmt.Errorf("%w: gameweek must be >= 1", ErrInvalidInput)
	}
	return s.processor.ComputeGameweekScore(ctx, teamID, gameweek)
}

// EnqueueJob validates a job and hands it to the worker pool. The job's ID
// and enqueue time are assigned here.
func (s *Service) EnqueueJob(ctx context.Context, j model.Job) (model.Job, error) {
	if err := j.Validate(); err != nil {
		return model.Job{}, fmt.Errorf("%w: %w", ErrInvalidJob, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return model.Job{}, ErrNotStarted
	}

	j.ID = uuid.NewString()
	j.EnqueuedAt = s.clock()
	if err := s.queue.Enqueue(ctx, j); err != nil {
		if errors.Is(err, eventqueue.ErrFull) {
			metrics.RecordQueueRejected()
			return model.Job{}, ErrQueueFull
		}
		return model.Job{}, fmt.Errorf("enqueue %s: %w: %w", j.Kind, model.ErrTransientStorage, err)
	}
	metrics.UpdateQueueSize(s.queue.Len())
	s.logger.Debug(ctx, "job enqueued", logger.String("id", j.ID), logger.String("kind", string(j.Kind)))
	return j, nil
}

// HandleJob runs one job. The worker pool calls it; the CLI calls it directly.
func (s *Service) HandleJob(ctx context.Context, j model.Job) error {
	start := time.Now()
	_, err := s.RunJob(ctx, j)
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.RecordJobRun(string(j.Kind), outcome, time.Since(start).Seconds())
	return err
}

// RunJob runs one job synchronously and returns its report.
func (s *Service) RunJob(ctx context.Context, j model.Job) (any, error) {
	if err := j.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidJob, err)
	}
	log := s.logger.With(logger.String("job", j.ID), logger.String("kind", string(j.Kind)))

	var (
		report any
		err    error
	)
	switch j.Kind {
	case model.JobProcessStage:
		report, err = s.processor.ProcessStage(ctx, j.RaceID, j.Stage)
		if err == nil {
			err = s.syncStandings(ctx)
		}
	case model.JobFinalGc:
		report, err = s.processor.ApplyFinalGcBonus(ctx, j.RaceID)
		if err == nil {
			err = s.syncStandings(ctx)
		}
	case model.JobFinalizeRace:
		report, err = s.processor.FinalizeRace(ctx, j.RaceID)
	case model.JobPricing:
		report, err = s.pricer.Run(ctx, s.clock())
	case model.JobRollover:
		report, err = s.processor.Rollover(ctx, j.Gameweek)
		if err == nil {
			if err = s.syncStandings(ctx); err == nil {
				s.checkpoint(ctx)
			}
		}
	}
	if err != nil {
		log.Error(ctx, "job failed", logger.Error(err))
		return report, err
	}
	log.Info(ctx, "job done", logger.Any("report", report))
	return report, nil
}

// DemandLeaders returns the week's transfer-market leaders.
func (s *Service) DemandLeaders(ctx context.Context, by string, limit int) ([]types.DemandEntry, error) {
	order := model.DemandOrder(by)
	switch order {
	case "":
		order = model.DemandByBuys
	case model.DemandByBuys, model.DemandBySell, model.DemandByNet:
	default:
		return nil, fmt.Errorf("%w: unknown demand order %q", ErrInvalidInput, by)
	}
	entries, err := s.demand.TopDemand(ctx, model.PeriodStart(s.clock()), order, limit)
	if errors.Is(err, repository.ErrInvalidLimit) {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	return entries, err
}

// StandingsTop returns the first limit teams of the season table.
func (s *Service) StandingsTop(ctx context.Context, limit int) ([]types.StandingEntry, error) {
	entries, err := s.standings.TopN(ctx, limit)
	return entries, limitError(err)
}

// StandingsRank returns one team's place in the season table.
func (s *Service) StandingsRank(ctx context.Context, teamID string) (types.StandingEntry, error) {
	return s.standings.Rank(ctx, teamID)
}

// SyncStandings reloads the season and league tables from the team store.
func (s *Service) SyncStandings(ctx context.Context) error {
	return s.syncStandings(ctx)
}

func (s *Service) syncStandings(ctx context.Context) error {
	teams, err := s.store.ListTeams(ctx)
	if err != nil {
		return model.Transient("sync standings", err)
	}
	s.standings.Sync(ctx, teams)
	return s.leagues.Sync(ctx, teams)
}

// checkpoint makes the current ranks the baseline for rank changes.
func (s *Service) checkpoint(ctx context.Context) {
	s.standings.Checkpoint(ctx)
	s.leagues.Checkpoint(ctx)
}

// refreshTeam pushes one team's points into the table. Commits may change
// points through penalties.
func (s *Service) refreshTeam(ctx context.Context, teamID string) {
	team, err := s.store.GetTeam(ctx, teamID)
	if err != nil {
		s.logger.Warn(ctx, "standings refresh failed", logger.String("team", teamID), logger.Error(err))
		return
	}
	s.standings.Upsert(ctx, team.ID, team.TotalPoints)
	s.leagues.Refresh(ctx, team)
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]any {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]any{
		"started":       s.started,
		"workerCount":   s.workerCount,
		"queueSize":     s.queueSize,
		"draftSessions": s.drafts.size(),
		"standings":     s.standings.Count(ctx),
	}
	if m, ok := s.markers.(*dedupe.InMemoryMarker); ok {
		stats["markers"] = m.Size()
	}
	if s.started {
		queueLen := s.queue.Len()
		stats["queueLength"] = queueLen
		metrics.UpdateQueueSize(queueLen)
	}
	return stats
}
