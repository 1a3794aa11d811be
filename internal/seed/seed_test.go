package seed_test

import (
	"context"
	"testing"
	"time"

	"github.com/okian/peloton/internal/adapters/repository/memory"
	service "github.com/okian/peloton/internal/app"
	"github.com/okian/peloton/internal/domain/model"
	"github.com/okian/peloton/internal/domain/roster"
	"github.com/okian/peloton/internal/seed"
	"github.com/okian/peloton/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

func TestGenerator(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	Convey("Given an empty store behind a service", t, func() {
		store := memory.New(memory.WithClock(clock))
		svc := service.New(service.WithStore(store), service.WithClock(clock))
		gen := seed.New(store, svc, seed.WithTeams(4), seed.WithSeed(7), seed.WithClock(clock))

		Convey("When a season is generated", func() {
			rep, err := gen.Run(ctx)
			So(err, ShouldBeNil)

			Convey("Then the catalog, calendar and teams exist", func() {
				So(rep.Cyclists, ShouldEqual, 64)
				So(rep.Teams, ShouldEqual, 4)
				So(rep.Races, ShouldEqual, 3)
				So(rep.Results, ShouldBeGreaterThan, 0)
				So(rep.Transfers, ShouldBeGreaterThan, 0)

				races, _ := store.ListRaces(ctx)
				So(len(races), ShouldEqual, 3)
			})

			Convey("And every roster respects the rules without penalties", func() {
				teams, err := store.ListTeams(ctx)
				So(err, ShouldBeNil)
				So(len(teams), ShouldEqual, 4)
				for _, team := range teams {
					So(team.TotalPoints, ShouldEqual, 0)
					So(team.FreeTransfers, ShouldEqual, 2)
					So(team.TransfersMadeThisWeek, ShouldEqual, 0)
					So(team.Budget, ShouldBeGreaterThanOrEqualTo, 0)

					members, _ := store.GetTeamCyclists(ctx, team.ID)
					So(len(members), ShouldBeLessThanOrEqualTo, roster.DefaultTeamSize)
					So(len(members), ShouldBeGreaterThan, 0)
					captains, active := 0, 0
					for _, m := range members {
						if m.IsCaptain {
							captains++
						}
						if m.IsActive {
							active++
						}
					}
					So(captains, ShouldEqual, 1)
					So(active, ShouldBeLessThanOrEqualTo, roster.DefaultActiveSize)
				}
			})

			Convey("And a stage of the finished race can be scored", func() {
				So(svc.Start(ctx), ShouldBeNil)
				defer func() { _ = svc.Stop(ctx) }()

				_, err := svc.RunJob(ctx, model.Job{Kind: model.JobProcessStage, RaceID: "tour-north", Stage: 1})
				So(err, ShouldBeNil)
			})
		})
	})
}
