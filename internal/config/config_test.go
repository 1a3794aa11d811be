package config_test

import (
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/okian/peloton/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.Store, convey.ShouldEqual, config.StoreMemory)
			convey.So(cfg.QueueSize, convey.ShouldEqual, 1024)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU())
			convey.So(cfg.StagePrizePool, convey.ShouldEqual, 20)
			convey.So(cfg.OneDayPrizePool, convey.ShouldEqual, 50)
			convey.So(cfg.FinalGcPrizePool, convey.ShouldEqual, 30)
			convey.So(cfg.TeamSize, convey.ShouldEqual, 15)
			convey.So(cfg.ActiveSize, convey.ShouldEqual, 8)
			convey.So(cfg.MaxPerProTeam, convey.ShouldEqual, 3)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})

		convey.Convey("Then durations are derived from the numeric keys", func() {
			convey.So(cfg.LockTTL(), convey.ShouldEqual, 10*time.Second)
			convey.So(cfg.DraftTTL(), convey.ShouldEqual, 30*time.Minute)
			convey.So(cfg.BoostLookahead(), convey.ShouldEqual, 5*24*time.Hour)
			convey.So(cfg.PricingInterval(), convey.ShouldEqual, time.Duration(0))
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given an otherwise valid config", t, func() {
		cfg := config.New()

		convey.Convey("When postgres is selected without a DSN", func() {
			cfg.Store = config.StorePostgres
			err := cfg.Validate()

			convey.Convey("Then it is rejected", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "postgres_dsn")
			})
		})

		convey.Convey("When several fields are wrong", func() {
			cfg.Store = "sqlite"
			cfg.LogLevel = "loud"
			cfg.BoostFactor = 0.9
			err := cfg.Validate()

			convey.Convey("Then every problem is reported", func() {
				convey.So(err.Error(), convey.ShouldContainSubstring, `unknown store "sqlite"`)
				convey.So(err.Error(), convey.ShouldContainSubstring, `unknown log_level "loud"`)
				convey.So(err.Error(), convey.ShouldContainSubstring, "boost_factor")
			})
		})

		convey.Convey("When more riders may start than the roster holds", func() {
			cfg.ActiveSize = cfg.TeamSize + 1
			err := cfg.Validate()
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "active_size")
		})

		convey.Convey("When the processed markers are bounded", func() {
			cfg.DedupeSize = 1000
			err := cfg.Validate()

			convey.Convey("Then it is rejected", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "dedupe_size")
			})
		})

		convey.Convey("When the price bounds are inverted", func() {
			cfg.MinPrice, cfg.MaxPrice = 30, 25
			convey.So(cfg.Validate(), convey.ShouldNotBeNil)
		})
	})
}
