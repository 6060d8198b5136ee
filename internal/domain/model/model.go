// Package model contains domain models passed between layers.
package model

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/anuntech/metas/internal/domain/level"
)

// TotalUnit is the reserved name of the aggregate unit.
const TotalUnit = "Total"

// Sentinel kinds for model validation.
var (
	ErrInvalidPeriod = errors.New("invalid period")
	ErrInvalidRange  = errors.New("invalid date range")
	ErrInvalidRecord = errors.New("invalid performance record")
	ErrInvalidTier   = errors.New("invalid goal tier")
)

// Period identifies a calendar month.
type Period struct {
	Month int
	Year  int
}

// NewPeriod builds a validated Period.
func NewPeriod(month, year int) (Period, error) {
	p := Period{Month: month, Year: year}
	if err := p.Validate(); err != nil {
		return Period{}, err
	}
	return p, nil
}

// Validate checks the month is 1..12 and the year is positive.
func (p Period) Validate() error {
	if p.Month < 1 || p.Month > 12 {
		return fmt.Errorf("%w: month %d", ErrInvalidPeriod, p.Month)
	}
	if p.Year < 1 {
		return fmt.Errorf("%w: year %d", ErrInvalidPeriod, p.Year)
	}
	return nil
}

// Range returns the first and last day of the period in UTC.
func (p Period) Range() DateRange {
	start := time.Date(p.Year, time.Month(p.Month), 1, 0, 0, 0, 0, time.UTC)
	return DateRange{Start: start, End: start.AddDate(0, 1, -1)}
}

func (p Period) String() string { return fmt.Sprintf("%04d-%02d", p.Year, p.Month) }

// DateRange is a closed [Start, End] interval.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// IsZero reports whether both bounds are unset.
func (r DateRange) IsZero() bool { return r.Start.IsZero() && r.End.IsZero() }

// Validate rejects ranges that end before they start.
func (r DateRange) Validate() error {
	if r.End.Before(r.Start) {
		return fmt.Errorf("%w: end %s before start %s", ErrInvalidRange,
			r.End.Format(time.DateOnly), r.Start.Format(time.DateOnly))
	}
	return nil
}

// Overlaps reports whether r and other share at least one instant. This covers
// r containing other, other containing r, and either one straddling a boundary
// of the other.
func (r DateRange) Overlaps(other DateRange) bool {
	return !r.Start.After(other.End) && !r.End.Before(other.Start)
}

// GoalTier is one rung of a unit's target ladder for a period.
type GoalTier struct {
	ID     uuid.UUID
	Period Period
	Unit   string
	Level  level.Level

	Revenue          decimal.Decimal // currency
	Headcount        int
	ExpenseRatio     float64 // percent
	DelinquencyRatio float64 // percent
	ContractCount    int     // optional, 0 when unset

	IsComplete bool
	UpdatedAt  time.Time
}

// PerformanceRecord is one observed sample for a unit over a window inside a period.
type PerformanceRecord struct {
	ID     uuid.UUID
	Period Period
	Unit   string
	Window DateRange

	Revenue            decimal.Decimal
	Receipts           decimal.Decimal
	Expense            decimal.Decimal
	DelinquencyPercent float64
	DelinquencyValue   decimal.Decimal
	ContractCount      int

	UpdatedAt time.Time

	// Synthetic marks a Total computed from unit records; it is never persisted.
	Synthetic bool
}

// IsTotal reports whether the record belongs to the aggregate unit.
func (r PerformanceRecord) IsTotal() bool { return r.Unit == TotalUnit }
