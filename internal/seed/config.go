// Package seed generates deterministic demo ladders and performance records.
package seed

import (
	"errors"
	"fmt"

	"github.com/anuntech/metas/internal/domain/level"
	"github.com/anuntech/metas/internal/domain/model"
)

// Limits for generated datasets.
const (
	MaxUnits    = 500
	DefaultSeed = 42
)

// ErrInvalidConfig is returned when a Config cannot produce a dataset.
var ErrInvalidConfig = errors.New("invalid seed config")

// Config describes the dataset to generate.
type Config struct {
	Period model.Period
	Units  int    // number of named units besides Total
	Levels int    // tiers per ladder, 1..6
	Seed   uint64 // same seed, same dataset (IDs included)
}

// Validate checks the config bounds.
func (c Config) Validate() error {
	if err := c.Period.Validate(); err != nil {
		return err
	}
	if c.Units < 1 || c.Units > MaxUnits {
		return fmt.Errorf("%w: units must be in 1..%d, got %d", ErrInvalidConfig, MaxUnits, c.Units)
	}
	if c.Levels < 1 || c.Levels > len(level.All) {
		return fmt.Errorf("%w: levels must be in 1..%d, got %d", ErrInvalidConfig, len(level.All), c.Levels)
	}
	return nil
}

// Dataset is a generated set of tiers and records for one period.
type Dataset struct {
	Tiers   []model.GoalTier
	Records []model.PerformanceRecord
}

// Stats summarizes a Run.
type Stats struct {
	TiersWritten   int
	RecordsWritten int
	Units          int
}
