package service

import (
	"time"

	"github.com/okian/peloton/internal/adapters/repository"
	"github.com/okian/peloton/internal/domain/dedupe"
	"github.com/okian/peloton/internal/domain/pricing"
	"github.com/okian/peloton/internal/domain/scoring"
	"github.com/okian/peloton/internal/domain/transfer"
	"github.com/okian/peloton/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the record store. The default is an in-memory store.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithDemand sets the demand counters backend.
func WithDemand(demand repository.Demand) Option {
	return func(s *Service) {
		if demand != nil {
			s.demand = demand
		}
	}
}

// WithMarkers sets the processed-marker backend.
func WithMarkers(markers dedupe.Marker) Option {
	return func(s *Service) {
		if markers != nil {
			s.markers = markers
		}
	}
}

// WithLocker sets the team lock backend.
func WithLocker(locker repository.Locker) Option {
	return func(s *Service) {
		if locker != nil {
			s.locker = locker
		}
	}
}

// WithLeagues sets the league store.
func WithLeagues(leagues repository.Leagues) Option {
	return func(s *Service) {
		if leagues != nil {
			s.leagueStore = leagues
		}
	}
}

// WithWorkerCount sets the number of job workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the job queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize bounds the default in-memory marker set. Zero is unbounded.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size >= 0 {
			s.dedupeSize = size
		}
	}
}

// WithJobRetry sets retries and first backoff for transient job failures.
func WithJobRetry(attempts int, backoff time.Duration) Option {
	return func(s *Service) {
		if attempts >= 0 {
			s.jobRetries = attempts
		}
		if backoff > 0 {
			s.jobBackoff = backoff
		}
	}
}

// WithDraftTTL expires draft sessions idle for longer than ttl.
func WithDraftTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.draftTTL = ttl
		}
	}
}

// WithPricingInterval enqueues a pricing job every interval while started.
func WithPricingInterval(interval time.Duration) Option {
	return func(s *Service) {
		if interval >= 0 {
			s.pricingInterval = interval
		}
	}
}

// WithTransferOptions passes options to the transfer ledger.
func WithTransferOptions(opts ...transfer.Option) Option {
	return func(s *Service) {
		s.transferOpts = append(s.transferOpts, opts...)
	}
}

// WithScoringOptions passes options to the scoring processor.
func WithScoringOptions(opts ...scoring.Option) Option {
	return func(s *Service) {
		s.scoringOpts = append(s.scoringOpts, opts...)
	}
}

// WithPricingOptions passes options to the pricing job.
func WithPricingOptions(opts ...pricing.Option) Option {
	return func(s *Service) {
		s.pricingOpts = append(s.pricingOpts, opts...)
	}
}

// WithLockTTL sets the team lock lease used by every engine.
func WithLockTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.lockTTL = ttl
		}
	}
}

// WithClock sets the time source.
func WithClock(clock func() time.Time) Option {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.logger = log
		}
	}
}
