package types_test

import (
	"encoding/json"
	"testing"

	types "github.com/okian/peloton/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

func TestStandingEntry(t *testing.T) {
	Convey("Given a StandingEntry without a previous rank", t, func() {
		entry := types.StandingEntry{Rank: 1, TeamID: "team-1", Points: 150}

		Convey("When it is encoded", func() {
			raw, err := json.Marshal(entry)
			So(err, ShouldBeNil)

			Convey("Then previous_rank is omitted and rank_change is kept", func() {
				So(string(raw), ShouldNotContainSubstring, "previous_rank")
				So(string(raw), ShouldContainSubstring, `"rank_change":0`)
				So(string(raw), ShouldContainSubstring, `"team_id":"team-1"`)
			})
		})
	})
}
