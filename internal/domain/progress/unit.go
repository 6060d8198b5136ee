package progress

import (
	"fmt"

	"github.com/anuntech/metas/internal/domain/level"
	"github.com/anuntech/metas/internal/domain/model"
)

// MetricProgress is the Result of one metric for a unit.
type MetricProgress struct {
	Metric   Metric
	Reversed bool
	Result
}

// UnitProgress holds every metric evaluated for one unit.
type UnitProgress struct {
	Unit string
	// ActiveLevel is empty when the unit has no tiers for the period.
	ActiveLevel level.Level
	// HasRecord is false when no performance sample was found; actuals are then zero.
	HasRecord bool
	// Synthetic is true when the record was computed rather than stored.
	Synthetic bool
	Metrics   []MetricProgress
}

// Metric returns the progress of m, if it was evaluated.
func (u UnitProgress) Metric(m Metric) (MetricProgress, bool) {
	for _, mp := range u.Metrics {
		if mp.Metric == m {
			return mp, true
		}
	}
	return MetricProgress{}, false
}

// EvaluateUnit computes every metric for a unit. rec may be nil, in which case
// actual values are zero. ladder must start at the active tier and be sorted by
// level; an empty ladder yields no metrics at all.
// Derived metrics that cannot be projected onto the ladder are skipped.
func EvaluateUnit(unit string, rec *model.PerformanceRecord, ladder []model.GoalTier) (UnitProgress, error) {
	up := UnitProgress{Unit: unit, HasRecord: rec != nil}

	var sample model.PerformanceRecord
	if rec != nil {
		sample = *rec
		up.Synthetic = rec.Synthetic
	}
	if len(ladder) == 0 {
		return up, nil
	}
	up.ActiveLevel = ladder[0].Level

	for _, m := range Metrics {
		targets, ok := Project(m, ladder)
		if !ok {
			continue
		}
		actual, ok := Actual(m, sample, ladder)
		if !ok {
			continue
		}
		res, err := Calculate(actual, targets, m.Reversed())
		if err != nil {
			return UnitProgress{}, fmt.Errorf("unit %s metric %s: %w", unit, m, err)
		}
		up.Metrics = append(up.Metrics, MetricProgress{Metric: m, Reversed: m.Reversed(), Result: res})
	}
	return up, nil
}
