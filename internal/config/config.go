// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Keys are flat and map 1:1 onto PELOTON_* environment variables.
// - New returns a Config populated with defaults; Load layers file and env on top.
// - Validate reports every problem at once, wrapped in ErrInvalidConfig.
package config

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Storage backends.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`
	// LogFormat selects text or json records.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// Store selects the record store: memory or postgres.
	Store            string `koanf:"store"`
	PostgresDSN      string `koanf:"postgres_dsn"`
	PostgresMaxConns int    `koanf:"postgres_max_conns"`
	// AutoMigrate applies embedded migrations when serving from postgres.
	AutoMigrate bool `koanf:"auto_migrate"`

	// RedisAddr, when set, moves demand counters, markers and team locks to Redis.
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`

	// QueueSize bounds the in-memory job queue.
	QueueSize int `koanf:"queue_size"`
	// WorkerCount sets the number of job workers.
	WorkerCount int `koanf:"worker_count"`
	// JobRetries is the number of extra attempts for transient job failures.
	JobRetries   int `koanf:"job_retries"`
	JobBackoffMS int `koanf:"job_backoff_ms"`
	// DedupeSize bounds the in-memory processed markers. Only 0 (unbounded)
	// is accepted: an evicted marker would let a stage be scored twice.
	DedupeSize     int `koanf:"dedupe_size"`
	LockTTLSeconds int `koanf:"lock_ttl_seconds"`

	// DraftTTLMinutes expires idle draft sessions.
	DraftTTLMinutes int `koanf:"draft_ttl_minutes"`

	// PricingIntervalMinutes schedules the pricing job; 0 disables the schedule.
	PricingIntervalMinutes int     `koanf:"pricing_interval_minutes"`
	PricingConcurrency     int     `koanf:"pricing_concurrency"`
	BoostFactor            float64 `koanf:"boost_factor"`
	BoostLookaheadDays     int     `koanf:"boost_lookahead_days"`
	DailyChangeLimit       float64 `koanf:"daily_change_limit"`
	MinPrice               float64 `koanf:"min_price"`
	MaxPrice               float64 `koanf:"max_price"`

	StagePrizePool   float64 `koanf:"stage_prize_pool"`
	OneDayPrizePool  float64 `koanf:"one_day_prize_pool"`
	FinalGcPrizePool float64 `koanf:"final_gc_prize_pool"`

	TransferPenalty   int `koanf:"transfer_penalty"`
	FreePerGameweek   int `koanf:"free_per_gameweek"`
	MaxFreeTransfers  int `koanf:"max_free_transfers"`
	MaxStandingsLimit int `koanf:"max_standings_limit"`

	// Roster shape. CategoryQuotas is keyed by category name (GC, CLIMBER, ...)
	// and can only be set from the YAML file; missing categories keep their default.
	TeamSize       int            `koanf:"team_size"`
	ActiveSize     int            `koanf:"active_size"`
	MaxPerProTeam  int            `koanf:"max_per_pro_team"`
	CategoryQuotas map[string]int `koanf:"category_quotas"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:               "info",
		LogFormat:              "text",
		Addr:                   ":9080",
		Store:                  StoreMemory,
		PostgresMaxConns:       10,
		QueueSize:              1024,
		WorkerCount:            runtime.NumCPU(),
		JobRetries:             3,
		JobBackoffMS:           200,
		DedupeSize:             0,
		LockTTLSeconds:         10,
		DraftTTLMinutes:        30,
		PricingIntervalMinutes: 0,
		PricingConcurrency:     8,
		BoostFactor:            1.1,
		BoostLookaheadDays:     5,
		DailyChangeLimit:       0.05,
		MinPrice:               1,
		MaxPrice:               25,
		StagePrizePool:         20,
		OneDayPrizePool:        50,
		FinalGcPrizePool:       30,
		TransferPenalty:        4,
		FreePerGameweek:        2,
		MaxFreeTransfers:       5,
		MaxStandingsLimit:      100,
		TeamSize:               15,
		ActiveSize:             8,
		MaxPerProTeam:          3,
	}
}

// LockTTL returns the team lock lease.
func (c *Config) LockTTL() time.Duration {
	return time.Duration(c.LockTTLSeconds) * time.Second
}

// DraftTTL returns the idle lifetime of a draft session.
func (c *Config) DraftTTL() time.Duration {
	return time.Duration(c.DraftTTLMinutes) * time.Minute
}

// JobBackoff returns the first retry delay for transient job failures.
func (c *Config) JobBackoff() time.Duration {
	return time.Duration(c.JobBackoffMS) * time.Millisecond
}

// PricingInterval returns the pricing schedule, zero when disabled.
func (c *Config) PricingInterval() time.Duration {
	return time.Duration(c.PricingIntervalMinutes) * time.Minute
}

// BoostLookahead returns the pre-race boost window.
func (c *Config) BoostLookahead() time.Duration {
	return time.Duration(c.BoostLookaheadDays) * 24 * time.Hour
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true} //nolint:gochecknoglobals // lookup

// Validate checks the whole config and reports every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q", c.LogLevel))
	}
	if f := strings.ToLower(c.LogFormat); f != "text" && f != "json" {
		errs = append(errs, fmt.Sprintf("unknown log_format %q", c.LogFormat))
	}
	if c.Addr == "" {
		errs = append(errs, "addr must not be empty")
	}
	switch c.Store {
	case StoreMemory:
	case StorePostgres:
		if c.PostgresDSN == "" {
			errs = append(errs, "postgres_dsn is required when store is postgres")
		}
	default:
		errs = append(errs, fmt.Sprintf("unknown store %q (valid: memory, postgres)", c.Store))
	}
	if c.QueueSize <= 0 {
		errs = append(errs, "queue_size must be positive")
	}
	if c.WorkerCount <= 0 {
		errs = append(errs, "worker_count must be positive")
	}
	if c.JobRetries < 0 {
		errs = append(errs, "job_retries must not be negative")
	}
	if c.DedupeSize != 0 {
		errs = append(errs, "dedupe_size must be 0: bounded markers can re-apply points and prizes")
	}
	if c.LockTTLSeconds <= 0 {
		errs = append(errs, "lock_ttl_seconds must be positive")
	}
	if c.DraftTTLMinutes <= 0 {
		errs = append(errs, "draft_ttl_minutes must be positive")
	}
	if c.PricingIntervalMinutes < 0 {
		errs = append(errs, "pricing_interval_minutes must not be negative")
	}
	if c.BoostFactor < 1 {
		errs = append(errs, "boost_factor must be at least 1")
	}
	if c.DailyChangeLimit < 0 {
		errs = append(errs, "daily_change_limit must not be negative")
	}
	if c.MinPrice <= 0 || c.MaxPrice < c.MinPrice {
		errs = append(errs, "min_price must be positive and not above max_price")
	}
	if c.StagePrizePool < 0 || c.OneDayPrizePool < 0 || c.FinalGcPrizePool < 0 {
		errs = append(errs, "prize pools must not be negative")
	}
	if c.FreePerGameweek < 0 || c.MaxFreeTransfers < 0 {
		errs = append(errs, "free transfer settings must not be negative")
	}
	if c.MaxStandingsLimit <= 0 {
		errs = append(errs, "max_standings_limit must be positive")
	}
	if c.TeamSize <= 0 || c.ActiveSize <= 0 || c.ActiveSize > c.TeamSize {
		errs = append(errs, "team_size and active_size must be positive with active_size <= team_size")
	}
	if c.MaxPerProTeam <= 0 {
		errs = append(errs, "max_per_pro_team must be positive")
	}
	for name, quota := range c.CategoryQuotas {
		if quota < 0 {
			errs = append(errs, fmt.Sprintf("category_quotas[%s] must not be negative", name))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}
