package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/okian/peloton/internal/adapters/repository"
	"github.com/okian/peloton/internal/domain/dedupe"
	"github.com/okian/peloton/internal/domain/model"
	"github.com/okian/peloton/internal/domain/types"
	. "github.com/smartystreets/goconvey/convey"
)

var (
	_ repository.Demand = (*DemandStore)(nil)
	_ repository.Locker = (*LockManager)(nil)
	_ dedupe.Marker     = (*MarkerStore)(nil)
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := New(context.Background(), ClientConfig{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestClient(t *testing.T) {
	Convey("Given an unreachable address", t, func() {
		_, err := New(context.Background(), ClientConfig{Addr: "127.0.0.1:1"})

		Convey("Then New fails the ping", func() {
			So(err, ShouldNotBeNil)
		})
	})
}

func TestDemandStore(t *testing.T) {
	c, _ := newTestClient(t)
	ctx := context.Background()
	week := time.Date(2026, 6, 3, 12, 0, 0, 0, time.UTC)
	d := NewDemandStore(c)

	Convey("Given counters for one week", t, func() {
		So(c.Underlying().FlushAll(ctx).Err(), ShouldBeNil)
		for i := 0; i < 3; i++ {
			So(d.IncrementBuy(ctx, "c1", week), ShouldBeNil)
		}
		So(d.IncrementBuy(ctx, "c2", week), ShouldBeNil)
		So(d.IncrementSell(ctx, "c2", week), ShouldBeNil)
		So(d.IncrementSell(ctx, "c2", week), ShouldBeNil)
		So(d.IncrementBuy(ctx, "c3", week.AddDate(0, 0, -7)), ShouldBeNil)

		Convey("Then counters are read back for any day of the week", func() {
			got, err := d.GetDemand(ctx, "c2", week.Add(48*time.Hour))
			So(err, ShouldBeNil)
			So(got.BuyCount, ShouldEqual, 1)
			So(got.SellCount, ShouldEqual, 2)
			So(got.NetDemand(), ShouldEqual, -1)
		})

		Convey("Then an unknown cyclist reads as zero", func() {
			got, err := d.GetDemand(ctx, "c9", week)
			So(err, ShouldBeNil)
			So(got.BuyCount, ShouldEqual, 0)
			So(got.PeriodStart, ShouldEqual, model.PeriodStart(week))
		})

		Convey("Then leaderboards order by count then id", func() {
			buys, err := d.TopDemand(ctx, week, model.DemandByBuys, 5)
			So(err, ShouldBeNil)
			So(buys, ShouldResemble, []types.DemandEntry{{CyclistID: "c1", Count: 3}, {CyclistID: "c2", Count: 1}})

			sells, _ := d.TopDemand(ctx, week, model.DemandBySell, 1)
			So(sells, ShouldResemble, []types.DemandEntry{{CyclistID: "c2", Count: 2}})

			net, _ := d.TopDemand(ctx, week, model.DemandByNet, 5)
			So(net, ShouldResemble, []types.DemandEntry{{CyclistID: "c1", Count: 3}, {CyclistID: "c2", Count: -1}})

			_, err = d.TopDemand(ctx, week, model.DemandByNet, 0)
			So(errors.Is(err, repository.ErrInvalidLimit), ShouldBeTrue)
		})

		Convey("Then ownership is overwritten without touching counts", func() {
			So(d.UpdateOwnership(ctx, "c1", week, 4, 10), ShouldBeNil)
			So(d.UpdateOwnership(ctx, "c1", week, 6, 10), ShouldBeNil)
			got, _ := d.GetDemand(ctx, "c1", week)
			So(got.OwnershipCount, ShouldEqual, 6)
			So(got.TotalTeams, ShouldEqual, 10)
			So(got.BuyCount, ShouldEqual, 3)
		})
	})
}

func TestMarkerStore(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	Convey("Given a marker store", t, func() {
		m := NewMarkerStore(c, time.Hour)

		seen, err := m.SeenAndRecord(ctx, "stage:r1:1")
		So(err, ShouldBeNil)
		So(seen, ShouldBeFalse)

		Convey("Then the second record reports seen", func() {
			seen, err := m.SeenAndRecord(ctx, "stage:r1:1")
			So(err, ShouldBeNil)
			So(seen, ShouldBeTrue)
		})

		Convey("Then unrecord allows a retry", func() {
			So(m.Unrecord(ctx, "stage:r1:1"), ShouldBeNil)
			ok, _ := m.Seen(ctx, "stage:r1:1")
			So(ok, ShouldBeFalse)
		})

		Convey("Then markers expire after their ttl", func() {
			mr.FastForward(2 * time.Hour)
			ok, _ := m.Seen(ctx, "stage:r1:1")
			So(ok, ShouldBeFalse)
		})

		Reset(func() { mr.FlushAll() })
	})
}

func TestLockManager(t *testing.T) {
	c, mr := newTestClient(t)
	ctx := context.Background()

	Convey("Given a held lock", t, func() {
		lm := NewLockManager(c)
		release, err := lm.Acquire(ctx, "team:t1", time.Minute)
		So(err, ShouldBeNil)

		Convey("Then a second acquire is refused", func() {
			_, err := lm.Acquire(ctx, "team:t1", time.Minute)
			So(errors.Is(err, model.ErrLockHeld), ShouldBeTrue)
		})

		Convey("Then release is idempotent and frees the key", func() {
			release()
			release()
			next, err := lm.Acquire(ctx, "team:t1", time.Minute)
			So(err, ShouldBeNil)
			next()
		})

		Convey("Then a stale release does not free a newer holder", func() {
			mr.FastForward(2 * time.Minute)
			next, err := lm.Acquire(ctx, "team:t1", time.Minute)
			So(err, ShouldBeNil)
			release()
			_, err = lm.Acquire(ctx, "team:t1", time.Minute)
			So(errors.Is(err, model.ErrLockHeld), ShouldBeTrue)
			next()
		})

		Reset(func() { mr.FlushAll() })
	})
}
