package progress

import (
	"github.com/shopspring/decimal"

	"github.com/anuntech/metas/internal/domain/model"
)

// Metric names one tracked dimension of unit performance.
type Metric string

// Tracked metrics.
const (
	Revenue             Metric = "revenue"
	ExpenseRatio        Metric = "expenseRatio"
	DelinquencyRatio    Metric = "delinquencyRatio"
	RevenuePerHeadcount Metric = "revenuePerHeadcount"
	AverageTicket       Metric = "averageTicket"
)

// Metrics lists every metric in display order.
var Metrics = []Metric{Revenue, ExpenseRatio, DelinquencyRatio, RevenuePerHeadcount, AverageTicket} //nolint:gochecknoglobals // fixed catalogue

var hundred = decimal.NewFromInt(100) //nolint:gochecknoglobals // constant decimal

// Reversed reports whether lower values are better for m.
func (m Metric) Reversed() bool {
	return m == ExpenseRatio || m == DelinquencyRatio
}

// Project turns each tier into the single target value m is compared against.
// Derived metrics divide two tier fields; the result is false when any tier
// would divide by zero.
func Project(m Metric, tiers []model.GoalTier) ([]Target, bool) {
	out := make([]Target, len(tiers))
	for i, t := range tiers {
		var v float64
		switch m {
		case Revenue:
			v = t.Revenue.InexactFloat64()
		case ExpenseRatio:
			v = t.ExpenseRatio
		case DelinquencyRatio:
			v = t.DelinquencyRatio
		case RevenuePerHeadcount:
			if t.Headcount == 0 {
				return nil, false
			}
			v = t.Revenue.Div(decimal.NewFromInt(int64(t.Headcount))).InexactFloat64()
		case AverageTicket:
			if t.ContractCount == 0 {
				return nil, false
			}
			v = t.Revenue.Div(decimal.NewFromInt(int64(t.ContractCount))).InexactFloat64()
		default:
			return nil, false
		}
		out[i] = Target{Level: t.Level, Value: v}
	}
	return out, true
}

// Actual derives the observed value of m from rec. ladder is the unit's ladder
// starting at its active tier; revenue per headcount divides by the active
// tier's headcount. The result is false when the value cannot be derived.
func Actual(m Metric, rec model.PerformanceRecord, ladder []model.GoalTier) (float64, bool) {
	switch m {
	case Revenue:
		return rec.Revenue.InexactFloat64(), true
	case ExpenseRatio:
		if rec.Revenue.IsZero() {
			return 0, true
		}
		return rec.Expense.Div(rec.Revenue).Mul(hundred).InexactFloat64(), true
	case DelinquencyRatio:
		return rec.DelinquencyPercent, true
	case RevenuePerHeadcount:
		if len(ladder) == 0 || ladder[0].Headcount == 0 {
			return 0, false
		}
		return rec.Revenue.Div(decimal.NewFromInt(int64(ladder[0].Headcount))).InexactFloat64(), true
	case AverageTicket:
		if rec.ContractCount == 0 {
			return 0, true
		}
		return rec.Revenue.Div(decimal.NewFromInt(int64(rec.ContractCount))).InexactFloat64(), true
	default:
		return 0, false
	}
}
