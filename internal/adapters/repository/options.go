package repository

import (
	"time"

	"github.com/anuntech/metas/internal/domain/model"
)

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithClock sets the time source used to stamp UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

// WithTiers preloads the store with tiers.
func WithTiers(tiers ...model.GoalTier) Option {
	return func(s *MemoryStore) {
		for _, t := range tiers {
			s.tiers[keyOf(t.Period, t.Unit, t.Level)] = t
		}
	}
}

// WithRecords preloads the store with performance records.
func WithRecords(records ...model.PerformanceRecord) Option {
	return func(s *MemoryStore) {
		for _, r := range records {
			s.records[r.ID] = r
		}
	}
}
