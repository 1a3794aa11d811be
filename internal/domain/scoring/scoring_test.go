package scoring

import (
	"testing"

	"github.com/okian/peloton/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestPointTables(t *testing.T) {
	Convey("Given the stage points table", t, func() {
		Convey("Then positions map onto base points", func() {
			So(StagePoints(1, model.StageFlat), ShouldEqual, 50)
			So(StagePoints(10, model.StageFlat), ShouldEqual, 14)
			So(StagePoints(20, model.StageFlat), ShouldEqual, 1)
			So(StagePoints(21, model.StageFlat), ShouldEqual, 0)
			So(StagePoints(0, model.StageFlat), ShouldEqual, 0)
		})

		Convey("Then the stage type multiplier is floored", func() {
			So(StagePoints(1, model.StageMountain), ShouldEqual, 60)
			So(StagePoints(3, model.StagePrologue), ShouldEqual, 17)
			So(StagePoints(19, model.StagePrologue), ShouldEqual, 0)
			So(StagePoints(5, model.StageITT), ShouldEqual, 30)
		})
	})

	Convey("Given the other fixed tables", t, func() {
		So(OneDayPoints(1), ShouldEqual, 100)
		So(OneDayPoints(20), ShouldEqual, 2)
		So(OneDayPoints(25), ShouldEqual, 0)
		So(FinalGcBonus(1), ShouldEqual, 200)
		So(FinalGcBonus(10), ShouldEqual, 25)
		So(FinalGcBonus(11), ShouldEqual, 0)
		So(JerseyBonus(model.Jerseys{}), ShouldEqual, 0)
		So(JerseyBonus(model.Jerseys{GC: true, Points: true, Mountains: true, Young: true}), ShouldEqual, 23)
	})
}

func TestResultPoints(t *testing.T) {
	Convey("Given a stage winner", t, func() {
		r := model.StageResult{CyclistID: "c1", Position: 1, Status: model.StatusFinished}
		So(ResultPoints(r, model.StageFlat, model.RaceStage), ShouldEqual, 50)
		So(ResultPoints(r, model.StageFlat, model.RaceOneDay), ShouldEqual, 100)
	})

	Convey("Given a rider who did not finish while holding the GC jersey", t, func() {
		r := model.StageResult{CyclistID: "c1", Position: 1, Status: model.StatusDNF, Jerseys: model.Jerseys{GC: true}}

		Convey("Then position points are zero and the jersey bonus is kept", func() {
			So(ResultPoints(r, model.StageFlat, model.RaceStage), ShouldEqual, GcJerseyBonus)
		})
	})

	Convey("Given every non-finishing status", t, func() {
		for _, st := range []model.ResultStatus{model.StatusDNF, model.StatusDNS, model.StatusDSQ, model.StatusOTL} {
			r := model.StageResult{Position: 2, Status: st}
			So(ResultPoints(r, model.StageMountain, model.RaceGrandTour), ShouldEqual, 0)
		}
	})
}

func TestTeamScore(t *testing.T) {
	Convey("Given a team whose captain sits on the bench", t, func() {
		team := model.FantasyTeam{ID: "t"}
		roster := []model.TeamCyclist{
			{CyclistID: "starter", IsActive: true},
			{CyclistID: "cap", IsActive: false, IsCaptain: true},
		}
		points := map[string]int{"starter": 10, "cap": 50}

		Convey("When BenchBoost is not armed", func() {
			total, parts := TeamScore(team, roster, points, "R1")

			Convey("Then the captain contributes nothing", func() {
				So(total, ShouldEqual, 10)
				So(parts[1].Counted, ShouldBeFalse)
			})
		})

		Convey("When BenchBoost is armed for the race", func() {
			team.BenchBoost = model.PowerUp{Used: true, Active: true, RaceID: "R1"}
			total, _ := TeamScore(team, roster, points, "R1")
			So(total, ShouldEqual, 10+50*CaptainMultiplier)

			Convey("And TripleCaptain too", func() {
				team.TripleCaptain = model.PowerUp{Used: true, Active: true, RaceID: "R1"}
				total, _ := TeamScore(team, roster, points, "R1")
				So(total, ShouldEqual, 10+50*TripleCaptainMultiplier)
			})
		})

		Convey("When BenchBoost is armed for another race", func() {
			team.BenchBoost = model.PowerUp{Used: true, Active: true, RaceID: "R2"}
			total, _ := TeamScore(team, roster, points, "R1")
			So(total, ShouldEqual, 10)
		})

		Convey("Then the final GC score ignores the bench", func() {
			team.BenchBoost = model.PowerUp{Used: true, Active: true, RaceID: "R1"}
			So(StartersScore(team, roster, points, "R1"), ShouldEqual, 10)
		})
	})
}

func TestPrizeShares(t *testing.T) {
	Convey("Given a prize pool", t, func() {
		Convey("Then the top half is paid on a linear scale", func() {
			So(PrizeShares(20, 3), ShouldResemble, []float64{13.33, 6.67})
			So(PrizeShares(50, 4), ShouldResemble, []float64{33.33, 16.67})
			So(PrizeShares(30, 1), ShouldResemble, []float64{30})
		})

		Convey("Then shares decrease and sum to the pool", func() {
			shares := PrizeShares(30, 11)
			So(len(shares), ShouldEqual, 6)
			sum := 0.0
			for i, s := range shares {
				sum += s
				if i > 0 {
					So(s, ShouldBeLessThan, shares[i-1])
				}
			}
			So(sum, ShouldAlmostEqual, 30, 0.05)
		})

		Convey("Then nothing is paid without scorers", func() {
			So(PrizeShares(20, 0), ShouldBeNil)
			So(PrizeShares(0, 5), ShouldBeNil)
		})
	})

	Convey("Given rollover allowances", t, func() {
		So(NextFreeTransfers(0, 2, 5), ShouldEqual, 2)
		So(NextFreeTransfers(4, 2, 5), ShouldEqual, 5)
		So(NextFreeTransfers(5, 2, 5), ShouldEqual, 5)
	})
}
