package seed

import (
	"context"
	"fmt"

	"github.com/anuntech/metas/internal/domain/model"
	"github.com/anuntech/metas/pkg/logger"
)

// Sink receives generated data; the engine service satisfies it.
type Sink interface {
	SaveTier(ctx context.Context, tier model.GoalTier) (model.GoalTier, error)
	SaveRecord(ctx context.Context, rec model.PerformanceRecord) (model.PerformanceRecord, error)
}

// Run generates a dataset for cfg and writes it to sink, tiers first.
func Run(ctx context.Context, sink Sink, cfg Config, log logger.Logger) (Stats, error) {
	ds, err := Generate(cfg)
	if err != nil {
		return Stats{}, err
	}

	log.Info(ctx, "seeding period",
		logger.String("period", cfg.Period.String()),
		logger.Int("units", cfg.Units),
		logger.Int("levels", cfg.Levels),
		logger.Int("tiers", len(ds.Tiers)),
		logger.Int("records", len(ds.Records)))

	stats := Stats{Units: cfg.Units}
	for _, t := range ds.Tiers {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("seed cancelled: %w", err)
		}
		if _, err := sink.SaveTier(ctx, t); err != nil {
			return stats, fmt.Errorf("save tier %s/%s: %w", t.Unit, t.Level, err)
		}
		stats.TiersWritten++
	}
	for _, r := range ds.Records {
		if err := ctx.Err(); err != nil {
			return stats, fmt.Errorf("seed cancelled: %w", err)
		}
		if _, err := sink.SaveRecord(ctx, r); err != nil {
			return stats, fmt.Errorf("save record %s: %w", r.Unit, err)
		}
		stats.RecordsWritten++
	}

	log.Info(ctx, "seed complete",
		logger.Int("tiers", stats.TiersWritten), logger.Int("records", stats.RecordsWritten))
	return stats, nil
}
