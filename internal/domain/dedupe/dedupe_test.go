package dedupe_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	dedupe "github.com/okian/peloton/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryMarker(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new in-memory marker", t, func() {
		m := dedupe.NewInMemoryMarker()
		So(m.Size(), ShouldEqual, 0)

		Convey("When a key is recorded for the first time", func() {
			seen, err := m.SeenAndRecord(ctx, "stage:r1:1")

			Convey("Then it reports not seen and stores the key", func() {
				So(err, ShouldBeNil)
				So(seen, ShouldBeFalse)
				So(m.Size(), ShouldEqual, 1)
				ok, _ := m.Seen(ctx, "stage:r1:1")
				So(ok, ShouldBeTrue)
			})

			Convey("And recorded again", func() {
				seen, err := m.SeenAndRecord(ctx, "stage:r1:1")

				Convey("Then it reports seen", func() {
					So(err, ShouldBeNil)
					So(seen, ShouldBeTrue)
					So(m.Size(), ShouldEqual, 1)
				})
			})

			Convey("And unrecorded after a failure", func() {
				So(m.Unrecord(ctx, "stage:r1:1"), ShouldBeNil)

				Convey("Then the key can be claimed again", func() {
					seen, err := m.SeenAndRecord(ctx, "stage:r1:1")
					So(err, ShouldBeNil)
					So(seen, ShouldBeFalse)
				})
			})
		})

		Convey("When the context is already cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := m.SeenAndRecord(cctx, "k")

			Convey("Then nothing is recorded", func() {
				So(err, ShouldNotBeNil)
				So(m.Size(), ShouldEqual, 0)
			})
		})
	})

	Convey("Given a bounded marker", t, func() {
		m := dedupe.NewInMemoryMarker(dedupe.WithMaxSize(2))
		for _, k := range []string{"a", "b", "c"} {
			_, _ = m.SeenAndRecord(ctx, k)
		}

		Convey("Then the oldest key was evicted", func() {
			So(m.Size(), ShouldEqual, 2)
			ok, _ := m.Seen(ctx, "a")
			So(ok, ShouldBeFalse)
			ok, _ = m.Seen(ctx, "c")
			So(ok, ShouldBeTrue)
		})
	})
}

func TestInMemoryMarkerConcurrency(t *testing.T) {
	Convey("Given many goroutines racing for the same key", t, func() {
		m := dedupe.NewInMemoryMarker()
		var winners atomic.Int32
		var wg sync.WaitGroup
		for i := 0; i < 64; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				seen, err := m.SeenAndRecord(context.Background(), "team:1")
				if err == nil && !seen {
					winners.Add(1)
				}
			}()
		}
		wg.Wait()

		Convey("Then exactly one claims it", func() {
			So(winners.Load(), ShouldEqual, 1)
		})
	})
}

func TestKeys(t *testing.T) {
	Convey("Given key builders", t, func() {
		day := time.Date(2026, 7, 4, 18, 30, 0, 0, time.UTC)

		So(dedupe.StageKey("tdf", 3), ShouldEqual, "stage:tdf:3")
		So(dedupe.TeamStageKey("tdf", 3, "t1"), ShouldEqual, "stage:tdf:3:team:t1")
		So(dedupe.DemandKey("c1", day), ShouldEqual, "demand:c1:2026-07-04")
		So(dedupe.RolloverKey("t1", 12), ShouldEqual, "rollover:t1:12")

		Convey("Then stage and prize keys never collide", func() {
			keys := map[string]struct{}{}
			for i := 1; i <= 3; i++ {
				keys[dedupe.TeamStageKey("r", i, "t")] = struct{}{}
				keys[dedupe.StagePrizeKey("r", i, "t")] = struct{}{}
			}
			So(len(keys), ShouldEqual, 6)
			So(dedupe.FinalGcKey("r"), ShouldNotEqual, dedupe.TeamFinalGcKey("r", "t"))
		})
	})
}
