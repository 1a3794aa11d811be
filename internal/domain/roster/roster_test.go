package roster_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/okian/peloton/internal/domain/model"
	"github.com/okian/peloton/internal/domain/roster"
	. "github.com/smartystreets/goconvey/convey"
)

func cyclist(id string, cat model.Category, pro string, price float64) model.Cyclist {
	return model.Cyclist{ID: id, Category: cat, ProTeam: pro, Price: price, BasePrice: price}
}

// fullRoster builds a 15-rider roster spread over five pro teams.
func fullRoster() []model.Cyclist {
	var out []model.Cyclist
	n := 0
	for cat, q := range roster.DefaultQuotas() {
		for i := 0; i < q; i++ {
			out = append(out, cyclist(fmt.Sprintf("c%02d", n), cat, fmt.Sprintf("pro-%d", n%5), 5))
			n++
		}
	}
	return out
}

func TestEvaluate(t *testing.T) {
	Convey("Given default rules", t, func() {
		rules := roster.NewRules()

		Convey("When the team is empty with budget", func() {
			s := roster.Snapshot{Budget: 100}

			Convey("Then any affordable rider is eligible", func() {
				So(rules.Evaluate(cyclist("a", model.CategoryGC, "UAE", 12.5), s), ShouldEqual, roster.Eligible)
				So(rules.Check(cyclist("a", model.CategoryGC, "UAE", 12.5), s), ShouldBeNil)
			})

			Convey("Then a price exactly equal to the budget is eligible", func() {
				s.Budget = 12.5
				So(rules.Evaluate(cyclist("a", model.CategoryGC, "UAE", 12.5), s), ShouldEqual, roster.Eligible)
			})

			Convey("Then an unaffordable rider is rejected", func() {
				s.Budget = 10
				So(rules.Evaluate(cyclist("a", model.CategoryGC, "UAE", 12.5), s), ShouldEqual, roster.InsufficientBudget)
			})
		})

		Convey("When the rider is already owned", func() {
			s := roster.Snapshot{Budget: 0, Cyclists: []model.Cyclist{cyclist("a", model.CategoryGC, "UAE", 12.5)}}

			Convey("Then AlreadyInTeam wins over every later check", func() {
				So(rules.Evaluate(cyclist("a", model.CategoryGC, "UAE", 12.5), s), ShouldEqual, roster.AlreadyInTeam)
			})
		})

		Convey("When the roster is full", func() {
			s := roster.Snapshot{Budget: 0, Cyclists: fullRoster()}

			Convey("Then TeamFull is reported before category and budget", func() {
				So(rules.Evaluate(cyclist("new", model.CategoryGC, "UAE", 99), s), ShouldEqual, roster.TeamFull)
				So(rules.Complete(s), ShouldBeTrue)
				So(rules.Deficits(s), ShouldBeEmpty)
			})
		})

		Convey("When a category is at quota", func() {
			s := roster.Snapshot{Budget: 0, Cyclists: []model.Cyclist{
				cyclist("t1", model.CategoryTT, "A", 5),
				cyclist("t2", model.CategoryTT, "B", 5),
			}}

			Convey("Then CategoryFull is reported before budget", func() {
				So(rules.Evaluate(cyclist("t3", model.CategoryTT, "C", 5), s), ShouldEqual, roster.CategoryFull)
			})
		})

		Convey("When three riders share a pro team", func() {
			s := roster.Snapshot{Budget: 0, Cyclists: []model.Cyclist{
				cyclist("a", model.CategoryGC, "UAE", 5),
				cyclist("b", model.CategoryClimber, "UAE", 5),
				cyclist("c", model.CategorySprint, "UAE", 5),
			}}

			Convey("Then a fourth is TooManyFromSameTeam before budget", func() {
				So(rules.Evaluate(cyclist("d", model.CategoryHills, "UAE", 5), s), ShouldEqual, roster.TooManyFromSameTeam)
			})

			Convey("Then the violation matches ErrRuleViolation", func() {
				err := rules.Check(cyclist("d", model.CategoryHills, "UAE", 5), s)
				So(errors.Is(err, model.ErrRuleViolation), ShouldBeTrue)
				reason, ok := roster.ReasonOf(err)
				So(ok, ShouldBeTrue)
				So(reason, ShouldEqual, roster.TooManyFromSameTeam)
			})
		})
	})

	Convey("Given custom limits", t, func() {
		rules := roster.NewRules(
			roster.WithTeamSize(2),
			roster.WithMaxPerProTeam(1),
			roster.WithCategoryQuotas(map[model.Category]int{model.CategoryGC: 1}),
		)
		s := roster.Snapshot{Budget: 50, Cyclists: []model.Cyclist{cyclist("a", model.CategoryGC, "X", 5)}}

		So(rules.TeamSize(), ShouldEqual, 2)
		So(rules.Evaluate(cyclist("b", model.CategoryGC, "Y", 5), s), ShouldEqual, roster.CategoryFull)
		So(rules.Evaluate(cyclist("b", model.CategorySprint, "X", 5), s), ShouldEqual, roster.TooManyFromSameTeam)
		So(rules.Quota(model.CategoryClimber), ShouldEqual, 3)
	})
}

func TestDeficits(t *testing.T) {
	Convey("Given a partial roster", t, func() {
		rules := roster.NewRules()
		s := roster.Snapshot{Cyclists: []model.Cyclist{
			cyclist("a", model.CategoryGC, "A", 5),
			cyclist("b", model.CategoryGC, "B", 5),
			cyclist("c", model.CategoryGC, "C", 5),
			cyclist("d", model.CategoryTT, "D", 5),
		}}

		d := rules.Deficits(s)

		Convey("Then filled categories are absent and the rest are ordered", func() {
			So(len(d), ShouldEqual, 5)
			So(d[0].Category, ShouldEqual, model.CategoryClimber)
			So(d[0].Missing(), ShouldEqual, 3)
			So(d[2].Category, ShouldEqual, model.CategoryTT)
			So(d[2].Missing(), ShouldEqual, 1)
			So(rules.Complete(s), ShouldBeFalse)
		})
	})
}

func TestValidateLineup(t *testing.T) {
	Convey("Given lineup flags", t, func() {
		rules := roster.NewRules()

		Convey("When the team is empty", func() {
			So(rules.ValidateLineup(nil), ShouldBeNil)
		})

		Convey("When there is one captain and eight starters", func() {
			var members []model.TeamCyclist
			for i := 0; i < 10; i++ {
				members = append(members, model.TeamCyclist{CyclistID: fmt.Sprint(i), IsActive: i < 8, IsCaptain: i == 0})
			}
			So(rules.ValidateLineup(members), ShouldBeNil)

			Convey("And a ninth starter is added", func() {
				members[8].IsActive = true
				err := rules.ValidateLineup(members)
				So(errors.Is(err, roster.ErrTooManyActive), ShouldBeTrue)
				So(errors.Is(err, model.ErrRuleViolation), ShouldBeTrue)
			})

			Convey("And the captain flag is doubled", func() {
				members[1].IsCaptain = true
				So(errors.Is(rules.ValidateLineup(members), roster.ErrCaptainCount), ShouldBeTrue)
			})
		})
	})
}
