// Package aggregate reduces raw performance samples to one current record per
// unit and derives the aggregate Total when none was recorded.
package aggregate

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/anuntech/metas/internal/domain/model"
)

// delinquencyScale is the number of decimal places kept on a computed delinquency percentage.
const delinquencyScale = 2

var hundred = decimal.NewFromInt(100) //nolint:gochecknoglobals // constant decimal

// Snapshot is the normalized record set for one period window.
type Snapshot struct {
	Window model.DateRange
	// Units holds the selected record for every individual unit.
	Units map[string]model.PerformanceRecord
	// Total is the explicit Total record when one was selected, a synthetic one
	// computed from Units otherwise, or nil when there is no data at all.
	Total *model.PerformanceRecord
}

// TotalComputed reports whether Total was synthesized from unit records.
func (s Snapshot) TotalComputed() bool {
	return s.Total != nil && s.Total.Synthetic
}

// UnitNames returns the individual unit names in ascending order.
func (s Snapshot) UnitNames() []string {
	names := make([]string, 0, len(s.Units))
	for name := range s.Units {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Summarize selects the latest record per unit among those overlapping window
// and attaches a Total, computing it when no explicit Total was selected.
func Summarize(records []model.PerformanceRecord, window model.DateRange) Snapshot {
	latest := Latest(records, window)

	snap := Snapshot{Window: window, Units: make(map[string]model.PerformanceRecord, len(latest))}
	for unit, rec := range latest {
		if unit == model.TotalUnit {
			total := rec
			snap.Total = &total
			continue
		}
		snap.Units[unit] = rec
	}

	if snap.Total == nil {
		if total, ok := ComputeTotal(snap.Units, window); ok {
			snap.Total = &total
		}
	}
	return snap
}

// Latest keeps, per unit, the overlapping record with the most recent UpdatedAt.
// Ties are broken by the greater ID so the result does not depend on input order.
func Latest(records []model.PerformanceRecord, window model.DateRange) map[string]model.PerformanceRecord {
	out := make(map[string]model.PerformanceRecord)
	for _, rec := range records {
		if !rec.Window.Overlaps(window) {
			continue
		}
		cur, ok := out[rec.Unit]
		if !ok || newer(rec, cur) {
			out[rec.Unit] = rec
		}
	}
	return out
}

func newer(a, b model.PerformanceRecord) bool {
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.After(b.UpdatedAt)
	}
	return a.ID.String() > b.ID.String()
}

// ComputeTotal sums the given individual-unit records into a synthetic Total.
// Records already belonging to the Total unit are ignored. It returns false
// when there is nothing to sum.
func ComputeTotal(units map[string]model.PerformanceRecord, window model.DateRange) (model.PerformanceRecord, bool) {
	total := model.PerformanceRecord{
		Unit:      model.TotalUnit,
		Window:    window,
		Synthetic: true,
	}

	var (
		count  int
		latest time.Time
	)
	for _, rec := range units {
		if rec.IsTotal() {
			continue
		}
		count++
		total.Period = rec.Period
		total.Revenue = total.Revenue.Add(rec.Revenue)
		total.Receipts = total.Receipts.Add(rec.Receipts)
		total.Expense = total.Expense.Add(rec.Expense)
		total.DelinquencyValue = total.DelinquencyValue.Add(rec.DelinquencyValue)
		total.ContractCount += rec.ContractCount
		if rec.UpdatedAt.After(latest) {
			latest = rec.UpdatedAt
		}
	}
	if count == 0 {
		return model.PerformanceRecord{}, false
	}

	total.UpdatedAt = latest
	total.DelinquencyPercent = DelinquencyPercent(total.Revenue, total.Receipts)
	return total, true
}

// DelinquencyPercent returns (revenue - receipts) / revenue * 100 rounded to two
// decimals, or 0 when revenue is 0.
func DelinquencyPercent(revenue, receipts decimal.Decimal) float64 {
	if revenue.IsZero() {
		return 0
	}
	pct := revenue.Sub(receipts).Div(revenue).Mul(hundred).Round(delinquencyScale)
	return pct.InexactFloat64()
}
