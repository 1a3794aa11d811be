package main

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/peloton/internal/adapters/repository"
	"github.com/okian/peloton/internal/adapters/repository/memory"
	"github.com/okian/peloton/internal/adapters/repository/postgres"
	"github.com/okian/peloton/internal/adapters/repository/redis"
	service "github.com/okian/peloton/internal/app"
	"github.com/okian/peloton/internal/config"
	"github.com/okian/peloton/internal/domain/dedupe"
	"github.com/okian/peloton/internal/domain/model"
	"github.com/okian/peloton/internal/domain/pricing"
	"github.com/okian/peloton/internal/domain/roster"
	"github.com/okian/peloton/internal/domain/scoring"
	"github.com/okian/peloton/internal/domain/transfer"
	"github.com/okian/peloton/pkg/logger"
)

// markerTTL keeps processed markers in Redis for a full season.
const markerTTL = 400 * 24 * time.Hour

// backends holds the storage chosen by configuration.
type backends struct {
	store   repository.Store
	demand  repository.Demand
	markers dedupe.Marker
	locker  repository.Locker
	leagues repository.Leagues
	pg      *postgres.Client
	closers []func()
}

func (b *backends) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

// openBackends connects the configured store and, when set, Redis. Redis
// takes over demand counters, markers and locks from the store.
func openBackends(ctx context.Context, cfg *config.Config, log logger.Logger) (*backends, error) {
	b := &backends{}
	switch cfg.Store {
	case config.StorePostgres:
		pg, err := postgres.New(ctx, postgres.ClientConfig{DSN: cfg.PostgresDSN, MaxConns: cfg.PostgresMaxConns})
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		b.pg = pg
		b.closers = append(b.closers, pg.Close)
		b.store = postgres.NewStore(pg.Pool())
		b.demand = postgres.NewDemandStore(pg.Pool())
		b.markers = postgres.NewMarkerStore(pg.Pool())
		b.locker = postgres.NewLocker(pg.Pool())
		b.leagues = postgres.NewLeagueStore(pg.Pool())
		log.Info(ctx, "using postgres store")
	default:
		b.store = memory.New()
		b.demand = memory.NewDemand()
		b.markers = dedupe.NewInMemoryMarker(dedupe.WithMaxSize(cfg.DedupeSize))
		b.locker = memory.NewLocker()
		b.leagues = memory.NewLeagues()
		log.Info(ctx, "using in-memory store")
	}

	if cfg.RedisAddr != "" {
		rc, err := redis.New(ctx, redis.ClientConfig{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			b.Close()
			return nil, fmt.Errorf("open redis: %w", err)
		}
		b.closers = append(b.closers, func() { _ = rc.Close() })
		b.demand = redis.NewDemandStore(rc)
		b.markers = redis.NewMarkerStore(rc, markerTTL)
		b.locker = redis.NewLockManager(rc)
		log.Info(ctx, "using redis for demand, markers and locks", logger.String("addr", cfg.RedisAddr))
	}
	return b, nil
}

// rosterRules builds the roster rules from configuration.
func rosterRules(cfg *config.Config) (*roster.Rules, error) {
	quotas := make(map[model.Category]int, len(cfg.CategoryQuotas))
	for name, q := range cfg.CategoryQuotas {
		cat, ok := model.ParseCategory(name)
		if !ok {
			return nil, fmt.Errorf("%w: unknown category %q in category_quotas", config.ErrInvalidConfig, name)
		}
		quotas[cat] = q
	}
	return roster.NewRules(
		roster.WithTeamSize(cfg.TeamSize),
		roster.WithActiveSize(cfg.ActiveSize),
		roster.WithMaxPerProTeam(cfg.MaxPerProTeam),
		roster.WithCategoryQuotas(quotas),
	), nil
}

// newService builds the service from configuration over b.
func newService(cfg *config.Config, b *backends, log logger.Logger) (*service.Service, error) {
	rules, err := rosterRules(cfg)
	if err != nil {
		return nil, err
	}
	return service.New(
		service.WithLogger(log.Named("service")),
		service.WithStore(b.store),
		service.WithDemand(b.demand),
		service.WithMarkers(b.markers),
		service.WithLocker(b.locker),
		service.WithLeagues(b.leagues),
		service.WithWorkerCount(cfg.WorkerCount),
		service.WithQueueSize(cfg.QueueSize),
		service.WithDedupeSize(cfg.DedupeSize),
		service.WithJobRetry(cfg.JobRetries, cfg.JobBackoff()),
		service.WithDraftTTL(cfg.DraftTTL()),
		service.WithLockTTL(cfg.LockTTL()),
		service.WithPricingInterval(cfg.PricingInterval()),
		service.WithTransferOptions(
			transfer.WithRules(rules),
			transfer.WithPenaltyPerTransfer(cfg.TransferPenalty),
		),
		service.WithScoringOptions(
			scoring.WithPrizePools(cfg.StagePrizePool, cfg.OneDayPrizePool, cfg.FinalGcPrizePool),
			scoring.WithRolloverTransfers(cfg.FreePerGameweek, cfg.MaxFreeTransfers),
		),
		service.WithPricingOptions(
			pricing.WithBoostFactor(cfg.BoostFactor),
			pricing.WithLookahead(cfg.BoostLookahead()),
			pricing.WithDailyChangeLimit(cfg.DailyChangeLimit),
			pricing.WithPriceBounds(cfg.MinPrice, cfg.MaxPrice),
			pricing.WithConcurrency(cfg.PricingConcurrency),
		),
	), nil
}
