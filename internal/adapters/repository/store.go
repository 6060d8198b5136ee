// Package repository defines the persistence ports of the engine and an
// in-memory implementation.
package repository

import (
	"context"

	"github.com/anuntech/metas/internal/domain/level"
	"github.com/anuntech/metas/internal/domain/model"
)

// TierRepository reads and writes goal tiers.
type TierRepository interface {
	// ListTiers returns every tier of the period, all units included.
	ListTiers(ctx context.Context, period model.Period) ([]model.GoalTier, error)

	// FindTier returns the tier at (period, unit, level).
	// Returns ErrNotFound if there is none.
	FindTier(ctx context.Context, period model.Period, unit string, lvl level.Level) (model.GoalTier, error)

	// MarkComplete sets IsComplete on the tier at (period, unit, level) and
	// returns it. Marking an already complete tier is not an error.
	// Returns ErrNotFound if there is none.
	MarkComplete(ctx context.Context, period model.Period, unit string, lvl level.Level) (model.GoalTier, error)

	// SaveTier inserts or replaces a tier by ID.
	// Returns ErrDuplicateTier if another tier already holds its (period, unit, level).
	SaveTier(ctx context.Context, tier model.GoalTier) error
}

// RecordRepository reads and writes performance records.
type RecordRepository interface {
	// ListRecords returns every record of the period, all units and windows included.
	ListRecords(ctx context.Context, period model.Period) ([]model.PerformanceRecord, error)

	// SaveRecord inserts or replaces a record by ID.
	SaveRecord(ctx context.Context, rec model.PerformanceRecord) error
}

// Store is the full persistence surface used by the engine.
type Store interface {
	TierRepository
	RecordRepository
	Close() error
}
