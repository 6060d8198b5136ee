package progress_test

import (
	"testing"

	"github.com/shopspring/decimal"

	"github.com/anuntech/metas/internal/domain/level"
	"github.com/anuntech/metas/internal/domain/model"
	"github.com/anuntech/metas/internal/domain/progress"
	. "github.com/smartystreets/goconvey/convey"
)

func tiers() []model.GoalTier {
	return []model.GoalTier{
		{Unit: "North", Level: level.I, Revenue: decimal.NewFromInt(1000), Headcount: 10, ExpenseRatio: 40, DelinquencyRatio: 10},
		{Unit: "North", Level: level.II, Revenue: decimal.NewFromInt(2000), Headcount: 10, ExpenseRatio: 35, DelinquencyRatio: 8},
	}
}

func TestEvaluateUnit(t *testing.T) {
	Convey("Given a two-tier ladder without contract targets", t, func() {
		rec := &model.PerformanceRecord{
			Unit:               "North",
			Revenue:            decimal.NewFromInt(1500),
			Expense:            decimal.NewFromInt(600),
			DelinquencyPercent: 9,
			ContractCount:      5,
		}

		up, err := progress.EvaluateUnit("North", rec, tiers())
		So(err, ShouldBeNil)

		Convey("Then the active level is the first rung", func() {
			So(up.ActiveLevel, ShouldEqual, level.I)
			So(up.HasRecord, ShouldBeTrue)
		})

		Convey("And revenue is evaluated as a forward metric", func() {
			mp, ok := up.Metric(progress.Revenue)
			So(ok, ShouldBeTrue)
			So(mp.Reversed, ShouldBeFalse)
			So(mp.Actual, ShouldEqual, 1500)
			So(percents(mp.Result), ShouldResemble, []int{100, 50})
			So(mp.Overall, ShouldEqual, 75)
		})

		Convey("And the expense ratio is derived from expense over revenue", func() {
			mp, ok := up.Metric(progress.ExpenseRatio)
			So(ok, ShouldBeTrue)
			So(mp.Reversed, ShouldBeTrue)
			So(mp.Actual, ShouldAlmostEqual, 40, 1e-9)
			So(percents(mp.Result), ShouldResemble, []int{100, 20})
			So(mp.Overall, ShouldEqual, 60)
		})

		Convey("And the delinquency ratio uses the recorded percentage", func() {
			mp, ok := up.Metric(progress.DelinquencyRatio)
			So(ok, ShouldBeTrue)
			So(percents(mp.Result), ShouldResemble, []int{100, 50})
			So(mp.Overall, ShouldEqual, 75)
		})

		Convey("And revenue per headcount divides by the active tier headcount", func() {
			mp, ok := up.Metric(progress.RevenuePerHeadcount)
			So(ok, ShouldBeTrue)
			So(mp.Actual, ShouldAlmostEqual, 150, 1e-9)
			So(mp.Tiers[0].Target, ShouldAlmostEqual, 100, 1e-9)
			So(mp.Overall, ShouldEqual, 75)
		})

		Convey("And average ticket is skipped because tiers carry no contract target", func() {
			_, ok := up.Metric(progress.AverageTicket)
			So(ok, ShouldBeFalse)
			So(up.Metrics, ShouldHaveLength, 4)
		})
	})

	Convey("Given a unit with tiers but no performance sample", t, func() {
		up, err := progress.EvaluateUnit("North", nil, tiers())
		So(err, ShouldBeNil)

		Convey("Then actual values default to zero", func() {
			So(up.HasRecord, ShouldBeFalse)
			mp, ok := up.Metric(progress.Revenue)
			So(ok, ShouldBeTrue)
			So(mp.Actual, ShouldEqual, 0)
			So(mp.Overall, ShouldEqual, 0)
		})
	})

	Convey("Given a unit with a sample but no tiers", t, func() {
		rec := &model.PerformanceRecord{Unit: "West", Revenue: decimal.NewFromInt(800), ContractCount: 4}
		up, err := progress.EvaluateUnit("West", rec, nil)
		So(err, ShouldBeNil)

		Convey("Then the unit is reported with no metrics", func() {
			So(up.Unit, ShouldEqual, "West")
			So(up.HasRecord, ShouldBeTrue)
			So(up.ActiveLevel, ShouldEqual, level.Level(""))
			So(up.Metrics, ShouldBeEmpty)
			_, ok := up.Metric(progress.Revenue)
			So(ok, ShouldBeFalse)
		})
	})

	Convey("Given a unit with neither a sample nor tiers", t, func() {
		up, err := progress.EvaluateUnit("Nowhere", nil, nil)
		So(err, ShouldBeNil)

		Convey("Then the result is empty", func() {
			So(up.HasRecord, ShouldBeFalse)
			So(up.Metrics, ShouldBeEmpty)
		})
	})
}

func TestProject(t *testing.T) {
	Convey("Given tiers with contract targets", t, func() {
		ts := tiers()
		ts[0].ContractCount = 4
		ts[1].ContractCount = 5

		Convey("Then average ticket divides revenue by contract count", func() {
			targets, ok := progress.Project(progress.AverageTicket, ts)
			So(ok, ShouldBeTrue)
			So(targets[0].Value, ShouldAlmostEqual, 250, 1e-9)
			So(targets[1].Value, ShouldAlmostEqual, 400, 1e-9)
			So(targets[1].Level, ShouldEqual, level.II)
		})
	})

	Convey("Given a tier without headcount", t, func() {
		ts := tiers()
		ts[1].Headcount = 0

		Convey("Then revenue per headcount cannot be projected", func() {
			_, ok := progress.Project(progress.RevenuePerHeadcount, ts)
			So(ok, ShouldBeFalse)
		})
	})
}
