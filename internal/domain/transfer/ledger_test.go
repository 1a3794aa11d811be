package transfer_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/okian/peloton/internal/adapters/repository/memory"
	"github.com/okian/peloton/internal/domain/model"
	"github.com/okian/peloton/internal/domain/roster"
	"github.com/okian/peloton/internal/domain/transfer"
	"github.com/okian/peloton/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	if err := logger.Init(); err != nil {
		panic(err)
	}
}

var fixedNow = time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

type fixture struct {
	store  *memory.Store
	demand *memory.Demand
	locker *memory.Locker
	ledger *transfer.Ledger
}

func newFixture(opts ...memory.Option) *fixture {
	f := &fixture{
		store:  memory.New(append([]memory.Option{memory.WithClock(func() time.Time { return fixedNow })}, opts...)...),
		demand: memory.NewDemand(),
		locker: memory.NewLocker(),
	}
	seq := 0
	f.ledger = transfer.NewLedger(f.store, f.store, f.demand, f.store, f.locker,
		transfer.WithClock(func() time.Time { return fixedNow }),
		transfer.WithIDGenerator(func() string { seq++; return fmt.Sprintf("tr-%d", seq) }),
	)
	return f
}

func (f *fixture) cyclists(cs ...model.Cyclist) {
	for _, c := range cs {
		So(f.store.UpsertCyclist(context.Background(), c), ShouldBeNil)
	}
}

func (f *fixture) team(t model.FantasyTeam) model.FantasyTeam {
	created, err := f.store.CreateTeam(context.Background(), t)
	So(err, ShouldBeNil)
	return created
}

func TestLedgerCommit(t *testing.T) {
	ctx := context.Background()

	Convey("Given a team with budget 100 and a rider priced 12.5", t, func() {
		f := newFixture()
		f.cyclists(rider("c1", model.CategoryGC, "UAE", 12.5))
		f.team(model.FantasyTeam{ID: "team-1", Budget: 100, FreeTransfers: 2, Gameweek: 4})

		d, err := f.ledger.Open(ctx, "team-1", "s1")
		So(err, ShouldBeNil)

		Convey("When the rider is staged and committed", func() {
			e, err := f.ledger.Stage(ctx, d, "c1", transfer.ActionAdd)
			So(err, ShouldBeNil)
			So(e, ShouldEqual, roster.Eligible)
			So(d.EffectiveTeam().Budget, ShouldEqual, 87.5)

			sum, err := f.ledger.Commit(ctx, d)

			Convey("Then budget, roster and transfer log are updated", func() {
				So(err, ShouldBeNil)
				So(len(sum.Succeeded), ShouldEqual, 1)
				So(sum.Failed, ShouldBeEmpty)
				So(sum.PenaltyApplied, ShouldEqual, 0)
				So(sum.Budget, ShouldEqual, 87.5)

				team, _ := f.store.GetTeam(ctx, "team-1")
				So(team.Budget, ShouldEqual, 87.5)
				So(team.FreeTransfers, ShouldEqual, 1)
				So(team.TransfersMadeThisWeek, ShouldEqual, 1)
				So(team.Version, ShouldEqual, 2)

				members, _ := f.store.GetTeamCyclists(ctx, "team-1")
				So(len(members), ShouldEqual, 1)
				So(members[0].PurchasePrice, ShouldEqual, 12.5)
				So(members[0].IsActive, ShouldBeTrue)
				So(members[0].IsCaptain, ShouldBeTrue)

				transfers, _ := f.store.ListTransfers(ctx, "team-1")
				So(len(transfers), ShouldEqual, 1)
				So(transfers[0].CyclistInID, ShouldEqual, "c1")
				So(transfers[0].PriceIn, ShouldEqual, 12.5)
				So(transfers[0].Gameweek, ShouldEqual, 4)
				So(transfers[0].PointsCost, ShouldEqual, 0)

				dem, _ := f.demand.GetDemand(ctx, "c1", fixedNow)
				So(dem.BuyCount, ShouldEqual, 1)

				So(d.Empty(), ShouldBeTrue)
			})
		})

		Convey("When an unknown rider is staged", func() {
			_, err := f.ledger.Stage(ctx, d, "nobody", transfer.ActionAdd)
			So(errors.Is(err, transfer.ErrUnknownCyclist), ShouldBeTrue)
			So(errors.Is(err, model.ErrNotFound), ShouldBeTrue)
		})

		Convey("When the team changed after the draft opened", func() {
			_, err := f.ledger.Stage(ctx, d, "c1", transfer.ActionAdd)
			So(err, ShouldBeNil)
			team, _ := f.store.GetTeam(ctx, "team-1")
			team.Name = "renamed"
			_, err = f.store.UpdateTeam(ctx, team, team.Version)
			So(err, ShouldBeNil)

			_, err = f.ledger.Commit(ctx, d)

			Convey("Then the commit is refused and nothing is applied", func() {
				So(errors.Is(err, model.ErrStaleData), ShouldBeTrue)
				members, _ := f.store.GetTeamCyclists(ctx, "team-1")
				So(members, ShouldBeEmpty)
				after, _ := f.store.GetTeam(ctx, "team-1")
				So(after.Budget, ShouldEqual, 100.0)
				So(d.Empty(), ShouldBeFalse)
			})
		})

		Convey("When another writer holds the team lock", func() {
			release, err := f.locker.Acquire(ctx, model.TeamLockKey("team-1"), time.Minute)
			So(err, ShouldBeNil)
			defer release()
			_, _ = f.ledger.Stage(ctx, d, "c1", transfer.ActionAdd)

			_, err = f.ledger.Commit(ctx, d)
			So(errors.Is(err, model.ErrLockHeld), ShouldBeTrue)
		})

		Convey("When nothing is staged", func() {
			sum, err := f.ledger.Commit(ctx, d)
			So(err, ShouldBeNil)
			So(sum.TransferCount, ShouldEqual, 0)
			team, _ := f.store.GetTeam(ctx, "team-1")
			So(team.Version, ShouldEqual, 1)
		})
	})

	Convey("Given no free transfers and three staged riders", t, func() {
		f := newFixture()
		f.team(model.FantasyTeam{ID: "team-1", Budget: 100, FreeTransfers: 0})
		for i := 0; i < 3; i++ {
			f.cyclists(rider(fmt.Sprintf("c%d", i), model.CategorySprint, fmt.Sprintf("p%d", i), 5))
		}
		d, _ := f.ledger.Open(ctx, "team-1", "s1")
		for i := 0; i < 3; i++ {
			_, err := f.ledger.Stage(ctx, d, fmt.Sprintf("c%d", i), transfer.ActionAdd)
			So(err, ShouldBeNil)
		}
		So(d.Penalty(0, false), ShouldEqual, 12)

		Convey("When committed", func() {
			sum, err := f.ledger.Commit(ctx, d)

			Convey("Then 12 points are deducted", func() {
				So(err, ShouldBeNil)
				So(sum.PenaltyApplied, ShouldEqual, 12)
				team, _ := f.store.GetTeam(ctx, "team-1")
				So(team.TotalPoints, ShouldEqual, -12)
				So(team.FreeTransfers, ShouldEqual, 0)
				So(team.TransfersMadeThisWeek, ShouldEqual, 3)

				transfers, _ := f.store.ListTransfers(ctx, "team-1")
				total := 0
				for _, tr := range transfers {
					total += tr.PointsCost
				}
				So(total, ShouldEqual, 12)
			})
		})
	})

	Convey("Given an armed wildcard", t, func() {
		f := newFixture()
		f.team(model.FantasyTeam{ID: "team-1", Budget: 100, FreeTransfers: 0,
			Wildcard: model.PowerUp{Used: true, Active: true, RaceID: "r1"}})
		for i := 0; i < 3; i++ {
			f.cyclists(rider(fmt.Sprintf("c%d", i), model.CategoryClimber, fmt.Sprintf("p%d", i), 5))
		}
		d, _ := f.ledger.Open(ctx, "team-1", "s1")
		for i := 0; i < 3; i++ {
			_, _ = f.ledger.Stage(ctx, d, fmt.Sprintf("c%d", i), transfer.ActionAdd)
		}

		Convey("When committed", func() {
			sum, err := f.ledger.Commit(ctx, d)

			Convey("Then no penalty applies and free transfers are untouched", func() {
				So(err, ShouldBeNil)
				So(sum.PenaltyApplied, ShouldEqual, 0)
				team, _ := f.store.GetTeam(ctx, "team-1")
				So(team.TotalPoints, ShouldEqual, 0)
				So(team.FreeTransfers, ShouldEqual, 0)
				So(team.TransfersMadeThisWeek, ShouldEqual, 3)
			})
		})
	})

	Convey("Given a team with no budget owning one rider", t, func() {
		f := newFixture()
		f.cyclists(rider("old", model.CategoryGC, "A", 10), rider("new", model.CategoryGC, "B", 10))
		f.team(model.FantasyTeam{ID: "team-1", Budget: 0, FreeTransfers: 2})
		So(f.store.AddCyclistToTeam(ctx, model.TeamCyclist{TeamID: "team-1", CyclistID: "old", IsActive: true, IsCaptain: true, PurchasePrice: 10}), ShouldBeNil)

		d, _ := f.ledger.Open(ctx, "team-1", "s1")
		_, err := f.ledger.Stage(ctx, d, "old", transfer.ActionRemove)
		So(err, ShouldBeNil)
		_, err = f.ledger.Stage(ctx, d, "new", transfer.ActionAdd)
		So(err, ShouldBeNil)

		Convey("When the rider being sold is disabled and then staged back", func() {
			gone := rider("old", model.CategoryGC, "A", 10)
			gone.Disabled = true
			So(f.store.UpsertCyclist(ctx, gone), ShouldBeNil)

			e, err := f.ledger.Stage(ctx, d, "old", transfer.ActionAdd)

			Convey("Then the pending sale is cancelled", func() {
				So(err, ShouldBeNil)
				So(e, ShouldEqual, roster.Eligible)
				eff := d.EffectiveTeam()
				So(eff.PendingRemovals, ShouldBeEmpty)
				So(eff.PendingAdditions, ShouldResemble, []string{"new"})
			})
		})

		Convey("When committed", func() {
			sum, err := f.ledger.Commit(ctx, d)

			Convey("Then the removal frees the budget before the purchase", func() {
				So(err, ShouldBeNil)
				So(len(sum.Succeeded), ShouldEqual, 2)
				So(sum.Succeeded[0].Action, ShouldEqual, transfer.ActionRemove)
				team, _ := f.store.GetTeam(ctx, "team-1")
				So(team.Budget, ShouldEqual, 0.0)

				members, _ := f.store.GetTeamCyclists(ctx, "team-1")
				So(len(members), ShouldEqual, 1)
				So(members[0].CyclistID, ShouldEqual, "new")
				So(members[0].IsCaptain, ShouldBeTrue)

				transfers, _ := f.store.ListTransfers(ctx, "team-1")
				So(len(transfers), ShouldEqual, 1)
				So(transfers[0].CyclistOutID, ShouldEqual, "old")
				So(transfers[0].CyclistInID, ShouldEqual, "new")

				sold, _ := f.demand.GetDemand(ctx, "old", fixedNow)
				So(sold.SellCount, ShouldEqual, 1)
			})
		})
	})

	Convey("Given a storage failure on one addition", t, func() {
		f := newFixture(memory.WithFaultInjector(func(op, key string) error {
			if op == "add_cyclist" && key == "c2" {
				return errors.New("connection reset")
			}
			return nil
		}))
		f.cyclists(rider("c1", model.CategoryGC, "A", 10), rider("c2", model.CategoryGC, "B", 20))
		f.team(model.FantasyTeam{ID: "team-1", Budget: 100, FreeTransfers: 2})
		d, _ := f.ledger.Open(ctx, "team-1", "s1")
		_, _ = f.ledger.Stage(ctx, d, "c1", transfer.ActionAdd)
		_, _ = f.ledger.Stage(ctx, d, "c2", transfer.ActionAdd)

		Convey("When committed", func() {
			sum, err := f.ledger.Commit(ctx, d)

			Convey("Then the other item still applies and the failure is reported", func() {
				So(err, ShouldBeNil)
				So(len(sum.Succeeded), ShouldEqual, 1)
				So(len(sum.Failed), ShouldEqual, 1)
				So(sum.Failed[0].CyclistID, ShouldEqual, "c2")
				So(errors.Is(sum.Failed[0].Err, model.ErrTransientStorage), ShouldBeTrue)
				So(sum.Failed[0].Reason, ShouldContainSubstring, "connection reset")

				team, _ := f.store.GetTeam(ctx, "team-1")
				So(team.Budget, ShouldEqual, 90.0)
				So(team.FreeTransfers, ShouldEqual, 0)
				So(team.TransfersMadeThisWeek, ShouldEqual, 2)
			})
		})
	})

	Convey("Given a budget write that fails after the roster changed", t, func() {
		failing := true
		f := newFixture(memory.WithFaultInjector(func(op, _ string) error {
			if failing && op == "add_budget" {
				return errors.New("connection reset")
			}
			return nil
		}))
		f.cyclists(rider("c1", model.CategoryGC, "A", 10))
		f.team(model.FantasyTeam{ID: "team-1", Budget: 100, FreeTransfers: 2})
		d, _ := f.ledger.Open(ctx, "team-1", "s1")
		_, _ = f.ledger.Stage(ctx, d, "c1", transfer.ActionAdd)

		Convey("When committed", func() {
			_, err := f.ledger.Commit(ctx, d)

			Convey("Then the error is reported and the draft is still cleared", func() {
				So(errors.Is(err, model.ErrTransientStorage), ShouldBeTrue)
				So(d.Empty(), ShouldBeTrue)

				members, _ := f.store.GetTeamCyclists(ctx, "team-1")
				So(len(members), ShouldEqual, 1)
			})

			Convey("Then committing again replays nothing", func() {
				failing = false
				sum, err := f.ledger.Commit(ctx, d)
				So(err, ShouldBeNil)
				So(sum.Failed, ShouldBeEmpty)
				So(sum.Succeeded, ShouldBeEmpty)
			})
		})
	})

	Convey("Given a commit cancelled after its first addition", t, func() {
		cctx, cancel := context.WithCancel(ctx)
		defer cancel()
		f := newFixture(memory.WithFaultInjector(func(op, key string) error {
			if op == "add_cyclist" && key == "c1" {
				cancel()
			}
			return nil
		}))
		f.cyclists(rider("c1", model.CategoryGC, "A", 10), rider("c2", model.CategoryGC, "B", 20))
		f.team(model.FantasyTeam{ID: "team-1", Budget: 100, FreeTransfers: 5})
		d, _ := f.ledger.Open(ctx, "team-1", "s1")
		_, _ = f.ledger.Stage(ctx, d, "c1", transfer.ActionAdd)
		_, _ = f.ledger.Stage(ctx, d, "c2", transfer.ActionAdd)

		sum, err := f.ledger.Commit(cctx, d)

		Convey("Then applied items stay applied and the rest are failed", func() {
			So(err, ShouldBeNil)
			So(len(sum.Succeeded), ShouldEqual, 1)
			So(len(sum.Failed), ShouldEqual, 1)
			So(errors.Is(sum.Failed[0].Err, context.Canceled), ShouldBeTrue)
			team, _ := f.store.GetTeam(ctx, "team-1")
			So(team.Budget, ShouldEqual, 90.0)
		})
	})

	Convey("Given a price rise between staging and commit", t, func() {
		f := newFixture()
		f.cyclists(rider("c1", model.CategoryGC, "A", 10))
		f.team(model.FantasyTeam{ID: "team-1", Budget: 10, FreeTransfers: 2})
		d, _ := f.ledger.Open(ctx, "team-1", "s1")
		_, err := f.ledger.Stage(ctx, d, "c1", transfer.ActionAdd)
		So(err, ShouldBeNil)
		f.cyclists(rider("c1", model.CategoryGC, "A", 10.5))

		sum, err := f.ledger.Commit(ctx, d)

		Convey("Then the addition is re-checked and fails on budget", func() {
			So(err, ShouldBeNil)
			So(len(sum.Failed), ShouldEqual, 1)
			reason, ok := roster.ReasonOf(sum.Failed[0].Err)
			So(ok, ShouldBeTrue)
			So(reason, ShouldEqual, roster.InsufficientBudget)
			team, _ := f.store.GetTeam(ctx, "team-1")
			So(team.Budget, ShouldEqual, 10.0)
		})
	})
}

func TestLedgerLineup(t *testing.T) {
	ctx := context.Background()

	Convey("Given a team of nine with eight starters", t, func() {
		f := newFixture()
		f.team(model.FantasyTeam{ID: "team-1", Budget: 10})
		for i := 0; i < 9; i++ {
			id := fmt.Sprintf("c%d", i)
			So(f.store.AddCyclistToTeam(ctx, model.TeamCyclist{
				TeamID: "team-1", CyclistID: id, IsActive: i < 8, IsCaptain: i == 0, PurchasePrice: 5,
				AddedAt: fixedNow.Add(time.Duration(i) * time.Minute),
			}), ShouldBeNil)
		}

		Convey("When a ninth starter is requested", func() {
			err := f.ledger.SetActive(ctx, "team-1", "c8", true)
			So(errors.Is(err, roster.ErrTooManyActive), ShouldBeTrue)
		})

		Convey("When the captain is benched", func() {
			So(f.ledger.SetActive(ctx, "team-1", "c0", false), ShouldBeNil)
			So(f.ledger.SetActive(ctx, "team-1", "c8", true), ShouldBeNil)
			members, _ := f.store.GetTeamCyclists(ctx, "team-1")
			So(members[0].IsActive, ShouldBeFalse)
			So(members[0].IsCaptain, ShouldBeTrue)
		})

		Convey("When the captaincy moves", func() {
			So(f.ledger.SetCaptain(ctx, "team-1", "c3"), ShouldBeNil)
			members, _ := f.store.GetTeamCyclists(ctx, "team-1")
			captains := 0
			for _, m := range members {
				if m.IsCaptain {
					captains++
					So(m.CyclistID, ShouldEqual, "c3")
				}
			}
			So(captains, ShouldEqual, 1)
		})

		Convey("When a stranger is made captain", func() {
			So(errors.Is(f.ledger.SetCaptain(ctx, "team-1", "zz"), transfer.ErrNotOwned), ShouldBeTrue)
		})

		Convey("When a race is being ridden", func() {
			So(f.store.UpsertRace(ctx, model.Race{ID: "r1", StartDate: fixedNow.Add(-time.Hour), IsActive: true}), ShouldBeNil)

			Convey("Then the lineup is frozen", func() {
				So(errors.Is(f.ledger.SetCaptain(ctx, "team-1", "c3"), model.ErrTeamLocked), ShouldBeTrue)
			})
		})
	})
}
