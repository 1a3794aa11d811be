// Command peloton runs the fantasy-cycling rules engine: the HTTP API, the
// batch jobs and the schema migrations.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/okian/peloton/internal/adapters/http/api"
	"github.com/okian/peloton/internal/adapters/http/swagger"
	service "github.com/okian/peloton/internal/app"
	"github.com/okian/peloton/internal/config"
	"github.com/okian/peloton/internal/domain/model"
	"github.com/okian/peloton/internal/seed"
	"github.com/okian/peloton/pkg/logger"
	"github.com/okian/peloton/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout           = 10 * time.Second
	writeTimeout          = 35 * time.Second
	idleTimeout           = 60 * time.Second
	readHeaderTimeout     = 5 * time.Second
	shutdownTimeout       = 30 * time.Second
	systemMetricsInterval = 10 * time.Second
)

var errMigrateMemory = errors.New("migrate needs store=postgres")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "peloton",
		Short:         "Fantasy-cycling rules engine",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(
		newServeCmd(),
		newMigrateCmd(),
		newPriceCmd(),
		newRolloverCmd(),
		newSeedCmd(),
	)
	return root
}

// setup loads configuration and initializes logging.
func setup(ctx context.Context) (*config.Config, logger.Logger, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if err := logger.InitWith(os.Stderr, logger.Format(cfg.LogFormat)); err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	log := logger.Get()
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}
	return cfg, log, nil
}

// open connects the backends, migrating when configured, and builds the service.
func open(ctx context.Context, cfg *config.Config, log logger.Logger) (*service.Service, *backends, error) {
	b, err := openBackends(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	if b.pg != nil && cfg.AutoMigrate {
		applied, err := b.pg.RunMigrations(ctx)
		if err != nil {
			b.Close()
			return nil, nil, fmt.Errorf("migrate: %w", err)
		}
		log.Info(ctx, "migrations applied", logger.Int("count", len(applied)))
	}
	svc, err := newService(cfg, b, log)
	if err != nil {
		b.Close()
		return nil, nil, err
	}
	return svc, b, nil
}

func newServeCmd() *cobra.Command {
	var seedTeams int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the job workers",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), seedTeams)
		},
	}
	cmd.Flags().IntVar(&seedTeams, "seed-teams", 0, "seed a demo season with this many teams before serving")
	return cmd
}

func runServe(ctx context.Context, seedTeams int) error {
	cfg, log, err := setup(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	svc, b, err := open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()

	if seedTeams > 0 {
		report, err := seed.New(svc.Store(), svc, seed.WithTeams(seedTeams), seed.WithLogger(log.Named("seed"))).Run(ctx)
		if err != nil {
			return fmt.Errorf("seed: %w", err)
		}
		log.Info(ctx, "seeded", logger.Any("report", report))
	}

	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}

	server := api.NewServer(svc, svc, api.WithMaxLimit(cfg.MaxStandingsLimit))
	if err := swagger.Register(ctx, server.Router()); err != nil {
		return fmt.Errorf("register docs: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server.Handler(),
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info(gctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		startSystemMetricsUpdater(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info(context.Background(), "shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
		}
		if err := svc.Stop(shutdownCtx); err != nil {
			log.Error(shutdownCtx, "service stop failed", logger.Error(err))
		}
		return nil
	})

	err = g.Wait()
	log.Info(context.Background(), "server stopped")
	return err
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the PostgreSQL schema migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, log, err := setup(ctx)
			if err != nil {
				return err
			}
			if cfg.Store != config.StorePostgres {
				return errMigrateMemory
			}
			b, err := openBackends(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer b.Close()

			applied, err := b.pg.RunMigrations(ctx)
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			return printJSON(cmd, map[string]any{"applied": applied})
		},
	}
}

func newPriceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "price",
		Short: "Run the daily pricing job once",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOnce(cmd, model.Job{Kind: model.JobPricing})
		},
	}
}

func newRolloverCmd() *cobra.Command {
	var gameweek int
	cmd := &cobra.Command{
		Use:   "rollover",
		Short: "Close a gameweek and roll free transfers over",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOnce(cmd, model.Job{Kind: model.JobRollover, Gameweek: gameweek})
		},
	}
	cmd.Flags().IntVar(&gameweek, "gameweek", 0, "gameweek being closed")
	_ = cmd.MarkFlagRequired("gameweek")
	return cmd
}

// runOnce runs a single job synchronously against the configured backends.
func runOnce(cmd *cobra.Command, j model.Job) error {
	ctx := cmd.Context()
	cfg, log, err := setup(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	svc, b, err := open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer b.Close()

	report, err := svc.RunJob(ctx, j)
	if err != nil {
		return err
	}
	return printJSON(cmd, report)
}

func newSeedCmd() *cobra.Command {
	var (
		teams  int
		seedID uint64
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Generate a demo season: catalog, teams, races and results",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, log, err := setup(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			svc, b, err := open(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer b.Close()

			opts := []seed.Option{seed.WithTeams(teams), seed.WithLogger(log.Named("seed"))}
			if seedID != 0 {
				opts = append(opts, seed.WithSeed(seedID))
			}
			report, err := seed.New(svc.Store(), svc, opts...).Run(ctx)
			if err != nil {
				return err
			}
			return printJSON(cmd, report)
		},
	}
	cmd.Flags().IntVar(&teams, "teams", 10, "fantasy teams to create")
	cmd.Flags().Uint64Var(&seedID, "seed", 0, "random seed; 0 keeps the default")
	return cmd
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// startSystemMetricsUpdater refreshes process gauges until ctx is done.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateMemoryUsage(m.Alloc)
	metrics.UpdateGoroutineCount(runtime.NumGoroutine())
}
