// Package service implements the goal progress engine on top of the
// repository ports: tier advancement, active level resolution, dashboard
// progress and administrative ingestion.
package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/anuntech/metas/internal/adapters/repository"
	"github.com/anuntech/metas/internal/domain/aggregate"
	"github.com/anuntech/metas/internal/domain/ladder"
	"github.com/anuntech/metas/internal/domain/level"
	"github.com/anuntech/metas/internal/domain/model"
	"github.com/anuntech/metas/internal/domain/progress"
	"github.com/anuntech/metas/pkg/logger"
	"github.com/anuntech/metas/pkg/metrics"
)

// Advancement scopes and outcomes reported to metrics.
const (
	scopeTotal = "total"
	scopeUnit  = "unit"

	outcomeAdvanced = "advanced"
	outcomeRetired  = "retired"
	outcomeNotFound = "not_found"
	outcomeError    = "error"
)

// Service is the engine. It keeps no state between calls.
type Service struct {
	tiers   repository.TierRepository
	records repository.RecordRepository
	logger  logger.Logger
	now     func() time.Time
}

// New constructs a Service over the given repositories.
func New(tiers repository.TierRepository, records repository.RecordRepository, opts ...Option) *Service {
	s := &Service{tiers: tiers, records: records, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Named("engine")
	}
	return s
}

// UnitAdvancement is the outcome of completing a unit tier.
type UnitAdvancement struct {
	NextLevel level.Level
	// HasNextTier is false when the unit has no tier at NextLevel and should
	// leave active tracking.
	HasNextTier bool
}

// CompleteAggregateTier marks the Total tier at lvl complete and returns the
// cyclic successor of lvl.
func (s *Service) CompleteAggregateTier(ctx context.Context, period model.Period, lvl level.Level) (level.Level, error) {
	next, err := s.complete(ctx, scopeTotal, period, model.TotalUnit, lvl)
	if err != nil {
		return "", err
	}
	metrics.RecordAdvancement(scopeTotal, outcomeAdvanced)
	return next, nil
}

// CompleteUnitTier marks the unit's tier at lvl complete, returns the cyclic
// successor of lvl and whether the unit has a tier at that successor.
func (s *Service) CompleteUnitTier(ctx context.Context, period model.Period, unit string, lvl level.Level) (UnitAdvancement, error) {
	unit = strings.TrimSpace(unit)
	next, err := s.complete(ctx, scopeUnit, period, unit, lvl)
	if err != nil {
		return UnitAdvancement{}, err
	}

	_, err = s.tiers.FindTier(ctx, period, unit, next)
	switch {
	case err == nil:
		metrics.RecordAdvancement(scopeUnit, outcomeAdvanced)
		return UnitAdvancement{NextLevel: next, HasNextTier: true}, nil
	case errors.Is(err, repository.ErrNotFound):
		metrics.RecordAdvancement(scopeUnit, outcomeRetired)
		s.logger.Info(ctx, "unit has no successor tier",
			logger.String("unit", unit), logger.String("period", period.String()), logger.String("next", next.String()))
		return UnitAdvancement{NextLevel: next, HasNextTier: false}, nil
	default:
		metrics.RecordAdvancement(scopeUnit, outcomeError)
		s.logger.Error(ctx, "successor lookup failed", logger.String("unit", unit), logger.Error(err))
		return UnitAdvancement{}, fmt.Errorf("find successor of %s for %s: %w", lvl, unit, err)
	}
}

func (s *Service) complete(ctx context.Context, scope string, period model.Period, unit string, lvl level.Level) (level.Level, error) {
	if err := period.Validate(); err != nil {
		return "", err
	}
	if !lvl.Valid() {
		return "", fmt.Errorf("%w: %q", level.ErrInvalidLevel, lvl)
	}

	tier, err := s.tiers.MarkComplete(ctx, period, unit, lvl)
	if errors.Is(err, repository.ErrNotFound) {
		metrics.RecordAdvancement(scope, outcomeNotFound)
		s.logger.Warn(ctx, "advancement for missing tier",
			logger.String("unit", unit), logger.String("level", lvl.String()), logger.String("period", period.String()))
		return "", fmt.Errorf("%w: %s level %s in %s: %w", ErrTierNotFound, unit, lvl, period, err)
	}
	if err != nil {
		metrics.RecordAdvancement(scope, outcomeError)
		metrics.RecordErrorByComponent("engine", "repository")
		s.logger.Error(ctx, "mark tier complete failed", logger.String("unit", unit), logger.Error(err))
		return "", fmt.Errorf("complete %s level %s: %w", unit, lvl, err)
	}

	next := lvl.Next()
	if next.Less(lvl) {
		s.logger.Warn(ctx, "top tier completed, successor wraps to the first level",
			logger.String("unit", unit), logger.String("period", period.String()))
	}
	s.logger.Info(ctx, "tier completed",
		logger.String("unit", unit),
		logger.String("period", period.String()),
		logger.String("level", tier.Level.String()),
		logger.String("next", next.String()),
	)
	return next, nil
}

// ResolveActiveLevels maps every unit with tiers in period to its active level.
func (s *Service) ResolveActiveLevels(ctx context.Context, period model.Period) (map[string]level.Level, error) {
	if err := period.Validate(); err != nil {
		return nil, err
	}
	tiers, err := s.tiers.ListTiers(ctx, period)
	if err != nil {
		return nil, fmt.Errorf("list tiers for %s: %w", period, err)
	}
	active := ladder.ResolveActiveLevels(tiers)
	s.logger.Debug(ctx, "active levels resolved",
		logger.String("period", period.String()), logger.Any("levels", active))
	return active, nil
}

// Summary is the dashboard view of one period.
type Summary struct {
	Period        model.Period
	Window        model.DateRange
	TotalComputed bool
	// Units lists Total first, then every other unit by name.
	Units []progress.UnitProgress
}

// Progress evaluates every unit of period over window. A zero window selects
// the whole month.
func (s *Service) Progress(ctx context.Context, period model.Period, window model.DateRange) (Summary, error) {
	start := s.now()
	if err := period.Validate(); err != nil {
		return Summary{}, err
	}
	if window.IsZero() {
		window = period.Range()
	}
	if err := window.Validate(); err != nil {
		return Summary{}, err
	}

	records, err := s.records.ListRecords(ctx, period)
	if err != nil {
		return Summary{}, fmt.Errorf("list records for %s: %w", period, err)
	}
	tiers, err := s.tiers.ListTiers(ctx, period)
	if err != nil {
		return Summary{}, fmt.Errorf("list tiers for %s: %w", period, err)
	}

	snap := aggregate.Summarize(records, window)
	if snap.TotalComputed() {
		metrics.RecordComputedTotal()
		s.logger.Debug(ctx, "total computed from unit records",
			logger.String("period", period.String()), logger.Int("units", len(snap.Units)))
	}
	ladders := ladder.Group(tiers)

	sum := Summary{Period: period, Window: window, TotalComputed: snap.TotalComputed()}
	for _, unit := range unitOrder(snap, ladders) {
		var rec *model.PerformanceRecord
		if unit == model.TotalUnit {
			rec = snap.Total
		} else if r, ok := snap.Units[unit]; ok {
			rec = &r
		}

		up, err := progress.EvaluateUnit(unit, rec, ladder.FromActive(ladders[unit]))
		if err != nil {
			metrics.RecordEvaluationError()
			s.logger.Error(ctx, "evaluation failed", logger.String("unit", unit), logger.Error(err))
			return Summary{}, err
		}
		for _, m := range up.Metrics {
			metrics.RecordEvaluation(string(m.Metric))
		}
		sum.Units = append(sum.Units, up)
	}

	tookMS := float64(s.now().Sub(start).Microseconds()) / 1000
	metrics.UpdateUnitsTracked(len(sum.Units))
	metrics.RecordSummaryLatency(tookMS)
	s.logger.Debug(ctx, "progress evaluated",
		logger.String("period", period.String()),
		logger.Int("units", len(sum.Units)),
		logger.Bool("total_computed", sum.TotalComputed),
		logger.Float64("took_ms", tookMS),
	)
	return sum, nil
}

// unitOrder puts Total first, then every unit with a record or a ladder by name.
func unitOrder(snap aggregate.Snapshot, ladders map[string][]model.GoalTier) []string {
	seen := make(map[string]bool)
	var rest []string
	for _, name := range snap.UnitNames() {
		seen[name] = true
		rest = append(rest, name)
	}
	for name := range ladders {
		if name != model.TotalUnit && !seen[name] {
			seen[name] = true
			rest = append(rest, name)
		}
	}
	slices.Sort(rest)

	if snap.Total != nil || len(ladders[model.TotalUnit]) > 0 {
		return append([]string{model.TotalUnit}, rest...)
	}
	return rest
}

// SaveTier validates tier against the rest of its ladder and persists it. A
// nil ID is replaced by a fresh one.
func (s *Service) SaveTier(ctx context.Context, tier model.GoalTier) (model.GoalTier, error) {
	if err := tier.Period.Validate(); err != nil {
		return model.GoalTier{}, err
	}
	if !tier.Level.Valid() {
		return model.GoalTier{}, fmt.Errorf("%w: %q", level.ErrInvalidLevel, tier.Level)
	}
	tier.Unit = strings.TrimSpace(tier.Unit)
	if tier.Unit == "" {
		return model.GoalTier{}, fmt.Errorf("%w: unit is required", model.ErrInvalidTier)
	}
	if tier.ID == uuid.Nil {
		tier.ID = uuid.New()
	}

	existing, err := s.tiers.ListTiers(ctx, tier.Period)
	if err != nil {
		return model.GoalTier{}, fmt.Errorf("list tiers for %s: %w", tier.Period, err)
	}
	unitLadder := []model.GoalTier{tier}
	for _, t := range existing {
		if t.Unit != tier.Unit || t.ID == tier.ID {
			continue
		}
		if t.Level == tier.Level {
			return model.GoalTier{}, fmt.Errorf("%w: %s level %s in %s", repository.ErrDuplicateTier, tier.Unit, tier.Level, tier.Period)
		}
		unitLadder = append(unitLadder, t)
	}
	if err := ladder.Validate(unitLadder); err != nil {
		return model.GoalTier{}, err
	}

	ladder.Sort(unitLadder)
	for _, field := range ladder.NonMonotonic(unitLadder) {
		metrics.RecordLadderWarning(field)
		s.logger.Warn(ctx, "ladder targets are not monotonic",
			logger.String("unit", tier.Unit), logger.String("period", tier.Period.String()), logger.String("field", field))
	}

	if err := s.tiers.SaveTier(ctx, tier); err != nil {
		return model.GoalTier{}, fmt.Errorf("save tier: %w", err)
	}
	metrics.RecordIngested("tier")
	return tier, nil
}

// SaveRecord validates and persists a performance record. A zero window
// covers the whole month and a nil ID is replaced by a fresh one.
func (s *Service) SaveRecord(ctx context.Context, rec model.PerformanceRecord) (model.PerformanceRecord, error) {
	if err := rec.Period.Validate(); err != nil {
		return model.PerformanceRecord{}, err
	}
	rec.Unit = strings.TrimSpace(rec.Unit)
	if rec.Unit == "" {
		return model.PerformanceRecord{}, fmt.Errorf("%w: unit is required", model.ErrInvalidRecord)
	}
	if rec.Window.IsZero() {
		rec.Window = rec.Period.Range()
	}
	if err := rec.Window.Validate(); err != nil {
		return model.PerformanceRecord{}, err
	}
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	rec.Synthetic = false

	if err := s.records.SaveRecord(ctx, rec); err != nil {
		return model.PerformanceRecord{}, fmt.Errorf("save record: %w", err)
	}
	metrics.RecordIngested("record")
	s.logger.Debug(ctx, "record saved",
		logger.String("unit", rec.Unit),
		logger.Time("window_start", rec.Window.Start),
		logger.Time("window_end", rec.Window.End),
	)
	return rec, nil
}
