// Package types contains the JSON shapes exchanged with callers.
package types

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/anuntech/metas/internal/domain/level"
	"github.com/anuntech/metas/internal/domain/model"
	"github.com/anuntech/metas/internal/domain/progress"
)

// MetaLevel is one tier of a metric ladder with its progress.
type MetaLevel struct {
	Nivel    string  `json:"nivel"`
	Valor    float64 `json:"valor"`
	Progress int     `json:"progress"`
}

// MetricProgress is the rendered progress of one metric.
type MetricProgress struct {
	Metric          string      `json:"metric"`
	Reversed        bool        `json:"reversed"`
	Atual           float64     `json:"atual"`
	MetaLevels      []MetaLevel `json:"metaLevels"`
	OverallProgress int         `json:"overallProgress"`
}

// UnitProgress groups the metrics of one unit.
type UnitProgress struct {
	Unit        string           `json:"unit"`
	ActiveLevel string           `json:"activeLevel,omitempty"`
	HasRecord   bool             `json:"hasRecord"`
	Synthetic   bool             `json:"synthetic,omitempty"`
	Metrics     []MetricProgress `json:"metrics"`
}

// ProgressSummary is the dashboard view of a period.
type ProgressSummary struct {
	Period        string         `json:"period"`
	Start         string         `json:"start"`
	End           string         `json:"end"`
	TotalComputed bool           `json:"totalComputed"`
	Units         []UnitProgress `json:"units"`
}

// ActiveLevels maps unit names to their active level for a period.
type ActiveLevels struct {
	Period string            `json:"period"`
	Levels map[string]string `json:"levels"`
}

// Advancement is the outcome of completing a tier.
type Advancement struct {
	NextLevel   string `json:"nextLevel"`
	HasNextTier *bool  `json:"hasNextTier,omitempty"`
}

// FromUnitProgress renders a unit evaluation.
func FromUnitProgress(u progress.UnitProgress) UnitProgress {
	out := UnitProgress{
		Unit:        u.Unit,
		ActiveLevel: string(u.ActiveLevel),
		HasRecord:   u.HasRecord,
		Synthetic:   u.Synthetic,
		Metrics:     make([]MetricProgress, 0, len(u.Metrics)),
	}
	for _, m := range u.Metrics {
		mp := MetricProgress{
			Metric:          string(m.Metric),
			Reversed:        m.Reversed,
			Atual:           m.Result.Actual,
			MetaLevels:      make([]MetaLevel, 0, len(m.Result.Tiers)),
			OverallProgress: m.Result.Overall,
		}
		for _, t := range m.Result.Tiers {
			mp.MetaLevels = append(mp.MetaLevels, MetaLevel{Nivel: string(t.Level), Valor: t.Target, Progress: t.Percent})
		}
		out.Metrics = append(out.Metrics, mp)
	}
	return out
}

// FromActiveLevels renders a resolved active-tier map.
func FromActiveLevels(p model.Period, levels map[string]level.Level) ActiveLevels {
	out := ActiveLevels{Period: p.String(), Levels: make(map[string]string, len(levels))}
	for unit, l := range levels {
		out.Levels[unit] = string(l)
	}
	return out
}

// TierInput is the body of a tier write.
type TierInput struct {
	ID               string          `json:"id,omitempty"`
	Year             int             `json:"year"`
	Month            int             `json:"month"`
	Unit             string          `json:"unit"`
	Nivel            string          `json:"nivel"`
	Revenue          decimal.Decimal `json:"revenue"`
	Headcount        int             `json:"headcount"`
	ExpenseRatio     float64         `json:"expenseRatio"`
	DelinquencyRatio float64         `json:"delinquencyRatio"`
	ContractCount    int             `json:"contractCount,omitempty"`
	IsComplete       bool            `json:"isComplete"`
}

// Model converts the input into a validated GoalTier.
func (in TierInput) Model() (model.GoalTier, error) {
	p, err := model.NewPeriod(in.Month, in.Year)
	if err != nil {
		return model.GoalTier{}, err
	}
	lvl, err := level.Parse(in.Nivel)
	if err != nil {
		return model.GoalTier{}, err
	}
	unit := strings.TrimSpace(in.Unit)
	if unit == "" {
		return model.GoalTier{}, fmt.Errorf("%w: unit is required", ErrInvalidInput)
	}
	id, err := parseID(in.ID)
	if err != nil {
		return model.GoalTier{}, err
	}
	return model.GoalTier{
		ID:               id,
		Period:           p,
		Unit:             unit,
		Level:            lvl,
		Revenue:          in.Revenue,
		Headcount:        in.Headcount,
		ExpenseRatio:     in.ExpenseRatio,
		DelinquencyRatio: in.DelinquencyRatio,
		ContractCount:    in.ContractCount,
		IsComplete:       in.IsComplete,
	}, nil
}

// RecordInput is the body of a performance record write.
type RecordInput struct {
	ID                 string          `json:"id,omitempty"`
	Year               int             `json:"year"`
	Month              int             `json:"month"`
	Unit               string          `json:"unit"`
	Start              string          `json:"start"`
	End                string          `json:"end"`
	Revenue            decimal.Decimal `json:"revenue"`
	Receipts           decimal.Decimal `json:"receipts"`
	Expense            decimal.Decimal `json:"expense"`
	DelinquencyPercent float64         `json:"delinquencyPercent"`
	DelinquencyValue   decimal.Decimal `json:"delinquencyValue"`
	ContractCount      int             `json:"contractCount,omitempty"`
}

// Model converts the input into a validated PerformanceRecord.
func (in RecordInput) Model() (model.PerformanceRecord, error) {
	p, err := model.NewPeriod(in.Month, in.Year)
	if err != nil {
		return model.PerformanceRecord{}, err
	}
	unit := strings.TrimSpace(in.Unit)
	if unit == "" {
		return model.PerformanceRecord{}, fmt.Errorf("%w: unit is required", ErrInvalidInput)
	}
	window, err := ParseWindow(in.Start, in.End)
	if err != nil {
		return model.PerformanceRecord{}, err
	}
	if window.IsZero() {
		window = p.Range()
	}
	id, err := parseID(in.ID)
	if err != nil {
		return model.PerformanceRecord{}, err
	}
	return model.PerformanceRecord{
		ID:                 id,
		Period:             p,
		Unit:               unit,
		Window:             window,
		Revenue:            in.Revenue,
		Receipts:           in.Receipts,
		Expense:            in.Expense,
		DelinquencyPercent: in.DelinquencyPercent,
		DelinquencyValue:   in.DelinquencyValue,
		ContractCount:      in.ContractCount,
	}, nil
}

// ParseWindow parses a pair of ISO dates. Two empty strings yield a zero range.
func ParseWindow(start, end string) (model.DateRange, error) {
	if start == "" && end == "" {
		return model.DateRange{}, nil
	}
	if start == "" || end == "" {
		return model.DateRange{}, fmt.Errorf("%w: start and end must be given together", model.ErrInvalidRange)
	}
	s, err := time.Parse(time.DateOnly, start)
	if err != nil {
		return model.DateRange{}, fmt.Errorf("%w: start: %v", model.ErrInvalidRange, err)
	}
	e, err := time.Parse(time.DateOnly, end)
	if err != nil {
		return model.DateRange{}, fmt.Errorf("%w: end: %v", model.ErrInvalidRange, err)
	}
	r := model.DateRange{Start: s, End: e}
	if err := r.Validate(); err != nil {
		return model.DateRange{}, err
	}
	return r, nil
}

func parseID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.New(), nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: id: %v", ErrInvalidInput, err)
	}
	return id, nil
}
