package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestManagerCreation(t *testing.T) {
	Convey("Given a fresh registry", t, func() {
		registry := prometheus.NewRegistry()

		Convey("When creating a manager with custom options", func() {
			m := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{0.1, 1}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)

			Convey("Then collectors are registered under the namespace", func() {
				So(m, ShouldNotBeNil)
				m.penaltyPoints.Add(4)
				families, err := registry.Gather()
				So(err, ShouldBeNil)
				names := map[string]bool{}
				for _, f := range families {
					names[f.GetName()] = true
				}
				So(names["test_unit_transfer_penalty_points_total"], ShouldBeTrue)
			})
		})

		Convey("When two managers share one registry", func() {
			NewManager(WithPrometheusRegistry(registry))

			Convey("Then the second registration panics", func() {
				So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestGlobalRecorders(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording penalties", func() {
			before := testutil.ToFloat64(globalManager.penaltyPoints)
			RecordPenalty(8)
			RecordPenalty(0)

			Convey("Then only positive amounts are added", func() {
				So(testutil.ToFloat64(globalManager.penaltyPoints)-before, ShouldEqual, 8)
			})
		})

		Convey("When recording labelled counters", func() {
			before := testutil.ToFloat64(globalManager.priceChanges.WithLabelValues("DEMAND"))
			RecordPriceChange("DEMAND")
			RecordPriceChange("DEMAND")

			Convey("Then the labelled series grows", func() {
				So(testutil.ToFloat64(globalManager.priceChanges.WithLabelValues("DEMAND"))-before, ShouldEqual, 2)
			})
		})

		Convey("When recording the rest", func() {
			So(func() {
				RecordTransferStaged("add")
				RecordStageRejection("TeamFull")
				RecordCommitOperation("addition", "succeeded")
				RecordStaleCommit()
				RecordInvariantViolation("transfer")
				UpdateDraftSessions(3)
				RecordPowerUpTransition("wildcard", "activate")
				UpdateBoostedCyclists(2)
				RecordStageProcessed()
				RecordStageDuplicate()
				RecordPointsAwarded(50)
				RecordBudgetAwarded(16.7)
				RecordScoringLatency(0.02)
				UpdateStandingsEntries(10)
				RecordLeagueMembership("join")
				RecordJobRun("pricing", "ok", 0.5)
				UpdateQueueSize(1)
				UpdateQueueCapacity(64)
				RecordQueueRejected()
				UpdateWorkerCount(4)
				RecordRepositoryLatency("memory", "get_team", 0.001)
				RecordHTTPRequest("/v1/teams/{teamID}/draft", "GET", "200", 0.003)
				RecordError("api", "not_found")
				UpdateMemoryUsage(1 << 20)
				UpdateGoroutineCount(12)
			}, ShouldNotPanic)
			So(GetRegistry(), ShouldNotBeNil)
		})
	})
}
