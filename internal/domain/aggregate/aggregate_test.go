package aggregate_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/anuntech/metas/internal/domain/aggregate"
	"github.com/anuntech/metas/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

var march = model.Period{Month: 3, Year: 2025}

func rec(unit string, revenue, receipts int64, updated time.Time) model.PerformanceRecord {
	return model.PerformanceRecord{
		ID:        uuid.New(),
		Period:    march,
		Unit:      unit,
		Window:    march.Range(),
		Revenue:   decimal.NewFromInt(revenue),
		Receipts:  decimal.NewFromInt(receipts),
		UpdatedAt: updated,
	}
}

func TestSummarize(t *testing.T) {
	base := time.Date(2025, 3, 31, 12, 0, 0, 0, time.UTC)

	Convey("Given three unit records and no explicit Total", t, func() {
		records := []model.PerformanceRecord{
			rec("North", 100, 90, base),
			rec("South", 200, 180, base),
			rec("East", 300, 270, base),
		}
		records[0].ContractCount = 2
		records[1].ContractCount = 3
		records[1].Expense = decimal.NewFromInt(50)

		snap := aggregate.Summarize(records, march.Range())

		Convey("Then a synthetic Total should be computed", func() {
			So(snap.Total, ShouldNotBeNil)
			So(snap.TotalComputed(), ShouldBeTrue)
			So(snap.Total.Unit, ShouldEqual, model.TotalUnit)
			So(snap.Total.Revenue.Equal(decimal.NewFromInt(600)), ShouldBeTrue)
			So(snap.Total.Receipts.Equal(decimal.NewFromInt(540)), ShouldBeTrue)
			So(snap.Total.Expense.Equal(decimal.NewFromInt(50)), ShouldBeTrue)
			So(snap.Total.ContractCount, ShouldEqual, 5)
			So(snap.Total.DelinquencyPercent, ShouldAlmostEqual, 10.0, 1e-9)
		})

		Convey("And every unit should be kept", func() {
			So(snap.UnitNames(), ShouldResemble, []string{"East", "North", "South"})
		})
	})

	Convey("Given an explicit Total record", t, func() {
		explicit := rec(model.TotalUnit, 1000, 500, base)
		explicit.DelinquencyPercent = 42
		records := []model.PerformanceRecord{rec("North", 100, 90, base), explicit}

		snap := aggregate.Summarize(records, march.Range())

		Convey("Then it should be used as-is", func() {
			So(snap.TotalComputed(), ShouldBeFalse)
			So(snap.Total.ID, ShouldEqual, explicit.ID)
			So(snap.Total.DelinquencyPercent, ShouldEqual, 42)
			So(snap.Units, ShouldNotContainKey, model.TotalUnit)
		})
	})

	Convey("Given several overlapping samples for the same unit", t, func() {
		older := rec("North", 100, 100, base.Add(-time.Hour))
		newest := rec("North", 150, 100, base)
		records := []model.PerformanceRecord{newest, older}

		snap := aggregate.Summarize(records, march.Range())

		Convey("Then the most recently updated should win", func() {
			So(snap.Units["North"].ID, ShouldEqual, newest.ID)
			So(snap.Total.Revenue.Equal(decimal.NewFromInt(150)), ShouldBeTrue)
		})
	})

	Convey("Given a sample outside the target window", t, func() {
		outside := rec("North", 100, 100, base)
		outside.Window = model.DateRange{
			Start: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC),
		}
		window := model.DateRange{
			Start: time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC),
		}

		snap := aggregate.Summarize([]model.PerformanceRecord{outside}, window)

		Convey("Then no unit and no Total should be produced", func() {
			So(snap.Units, ShouldBeEmpty)
			So(snap.Total, ShouldBeNil)
		})
	})
}

func TestLatest(t *testing.T) {
	base := time.Date(2025, 3, 31, 12, 0, 0, 0, time.UTC)

	Convey("Given two samples with the same update time", t, func() {
		low := rec("North", 100, 100, base)
		low.ID = uuid.MustParse("00000000-0000-0000-0000-000000000001")
		high := rec("North", 200, 100, base)
		high.ID = uuid.MustParse("ffffffff-0000-0000-0000-000000000000")

		Convey("Then the greater ID wins regardless of input order", func() {
			forward := aggregate.Latest([]model.PerformanceRecord{low, high}, march.Range())
			backward := aggregate.Latest([]model.PerformanceRecord{high, low}, march.Range())
			So(forward["North"].ID, ShouldEqual, high.ID)
			So(backward["North"].ID, ShouldEqual, high.ID)
		})
	})

	Convey("Given a newer sample that misses the window and an older one inside it", t, func() {
		window := model.DateRange{
			Start: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC),
		}
		inside := rec("North", 100, 100, base.Add(-48*time.Hour))
		inside.Window = window
		outside := rec("North", 900, 100, base)
		outside.Window = model.DateRange{
			Start: time.Date(2025, 3, 15, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC),
		}

		latest := aggregate.Latest([]model.PerformanceRecord{outside, inside}, window)

		Convey("Then the overlapping sample is kept", func() {
			So(latest, ShouldContainKey, "North")
			So(latest["North"].ID, ShouldEqual, inside.ID)
		})
	})
}

func TestComputeTotal(t *testing.T) {
	base := time.Date(2025, 3, 31, 12, 0, 0, 0, time.UTC)

	Convey("Given unit records mixed with a Total record", t, func() {
		units := map[string]model.PerformanceRecord{
			"North":         rec("North", 100, 80, base.Add(-time.Hour)),
			"South":         rec("South", 300, 240, base.Add(-2*time.Hour)),
			model.TotalUnit: rec(model.TotalUnit, 5000, 0, base),
		}

		total, ok := aggregate.ComputeTotal(units, march.Range())

		Convey("Then only individual units are summed", func() {
			So(ok, ShouldBeTrue)
			So(total.Synthetic, ShouldBeTrue)
			So(total.Revenue.Equal(decimal.NewFromInt(400)), ShouldBeTrue)
			So(total.Receipts.Equal(decimal.NewFromInt(320)), ShouldBeTrue)
			So(total.DelinquencyPercent, ShouldAlmostEqual, 20.0, 1e-9)
			So(total.UpdatedAt, ShouldEqual, base.Add(-time.Hour))
		})
	})

	Convey("Given only a Total record", t, func() {
		units := map[string]model.PerformanceRecord{model.TotalUnit: rec(model.TotalUnit, 5000, 0, base)}

		_, ok := aggregate.ComputeTotal(units, march.Range())

		Convey("Then nothing is computed", func() {
			So(ok, ShouldBeFalse)
		})
	})
}

func TestDelinquencyPercent(t *testing.T) {
	Convey("Given zero revenue", t, func() {
		Convey("Then the delinquency percentage should be 0", func() {
			So(aggregate.DelinquencyPercent(decimal.Zero, decimal.NewFromInt(10)), ShouldEqual, 0)
		})
	})

	Convey("Given a repeating fraction", t, func() {
		Convey("Then it should be rounded to two decimals", func() {
			pct := aggregate.DelinquencyPercent(decimal.NewFromInt(3), decimal.NewFromInt(2))
			So(pct, ShouldAlmostEqual, 33.33, 1e-9)
		})
	})
}
