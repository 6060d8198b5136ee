package repository

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/anuntech/metas/internal/domain/level"
	"github.com/anuntech/metas/internal/domain/model"
)

const memoryBackend = "memory"

type tierKey struct {
	period model.Period
	unit   string
	level  level.Level
}

func keyOf(p model.Period, unit string, lvl level.Level) tierKey {
	return tierKey{period: p, unit: unit, level: lvl}
}

// MemoryStore keeps tiers and records in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	tiers   map[tierKey]model.GoalTier
	records map[uuid.UUID]model.PerformanceRecord
	now     func() time.Time
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore constructs an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		tiers:   make(map[tierKey]model.GoalTier),
		records: make(map[uuid.UUID]model.PerformanceRecord),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListTiers returns the period's tiers ordered by unit then level.
func (s *MemoryStore) ListTiers(_ context.Context, period model.Period) (out []model.GoalTier, err error) {
	defer Track(memoryBackend, "list_tiers", time.Now(), &err)

	s.mu.RLock()
	for k, t := range s.tiers {
		if k.period == period {
			out = append(out, t)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b model.GoalTier) int {
		if c := cmp.Compare(a.Unit, b.Unit); c != 0 {
			return c
		}
		return level.Compare(a.Level, b.Level)
	})
	return out, nil
}

// FindTier returns the tier at (period, unit, level).
func (s *MemoryStore) FindTier(_ context.Context, period model.Period, unit string, lvl level.Level) (t model.GoalTier, err error) {
	defer Track(memoryBackend, "find_tier", time.Now(), &err)

	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tiers[keyOf(period, unit, lvl)]
	if !ok {
		return model.GoalTier{}, ErrNotFound
	}
	return t, nil
}

// MarkComplete flags the tier at (period, unit, level) as complete.
func (s *MemoryStore) MarkComplete(_ context.Context, period model.Period, unit string, lvl level.Level) (t model.GoalTier, err error) {
	defer Track(memoryBackend, "mark_complete", time.Now(), &err)

	s.mu.Lock()
	defer s.mu.Unlock()
	k := keyOf(period, unit, lvl)
	t, ok := s.tiers[k]
	if !ok {
		return model.GoalTier{}, ErrNotFound
	}
	if !t.IsComplete {
		t.IsComplete = true
		t.UpdatedAt = s.now()
		s.tiers[k] = t
	}
	return t, nil
}

// SaveTier inserts or replaces a tier by ID.
func (s *MemoryStore) SaveTier(_ context.Context, tier model.GoalTier) (err error) {
	defer Track(memoryBackend, "save_tier", time.Now(), &err)

	if tier.UpdatedAt.IsZero() {
		tier.UpdatedAt = s.now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	k := keyOf(tier.Period, tier.Unit, tier.Level)
	if existing, ok := s.tiers[k]; ok && existing.ID != tier.ID {
		return ErrDuplicateTier
	}
	for ek, existing := range s.tiers {
		if existing.ID == tier.ID && ek != k {
			delete(s.tiers, ek)
		}
	}
	s.tiers[k] = tier
	return nil
}

// ListRecords returns the period's records ordered by unit then update time.
func (s *MemoryStore) ListRecords(_ context.Context, period model.Period) (out []model.PerformanceRecord, err error) {
	defer Track(memoryBackend, "list_records", time.Now(), &err)

	s.mu.RLock()
	for _, r := range s.records {
		if r.Period == period {
			out = append(out, r)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(out, func(a, b model.PerformanceRecord) int {
		if c := cmp.Compare(a.Unit, b.Unit); c != 0 {
			return c
		}
		if c := a.UpdatedAt.Compare(b.UpdatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
	return out, nil
}

// SaveRecord inserts or replaces a record by ID.
func (s *MemoryStore) SaveRecord(_ context.Context, rec model.PerformanceRecord) (err error) {
	defer Track(memoryBackend, "save_record", time.Now(), &err)

	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = s.now()
	}

	s.mu.Lock()
	s.records[rec.ID] = rec
	s.mu.Unlock()
	return nil
}

// Close is a no-op.
func (s *MemoryStore) Close() error { return nil }
