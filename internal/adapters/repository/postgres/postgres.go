// Package postgres implements the repository ports on a pgx connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"github.com/anuntech/metas/internal/adapters/repository"
	"github.com/anuntech/metas/internal/adapters/repository/migrations"
	"github.com/anuntech/metas/internal/domain/level"
	"github.com/anuntech/metas/internal/domain/model"
)

const (
	backend           = "postgres"
	uniqueViolation   = "23505"
	healthCheckPeriod = 30 * time.Second
)

// Store persists tiers and records in PostgreSQL.
type Store struct {
	pool *pgxpool.Pool
	now  func() time.Time

	maxConns    int32
	autoMigrate bool
}

var _ repository.Store = (*Store)(nil)

// Connect opens a pool on url and verifies it with a ping.
func Connect(ctx context.Context, url string, opts ...Option) (*Store, error) {
	s := &Store{now: time.Now, maxConns: 10}
	for _, opt := range opts {
		opt(s)
	}

	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("parse postgres url: %w", err)
	}
	cfg.MaxConns = s.maxConns
	cfg.HealthCheckPeriod = healthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s.pool = pool

	if s.autoMigrate {
		if err := s.Migrate(ctx); err != nil {
			pool.Close()
			return nil, err
		}
	}
	return s, nil
}

// Migrate applies pending migrations through a database/sql view of the pool.
func (s *Store) Migrate(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(s.pool)
	defer func() { _ = db.Close() }()

	if _, err := migrations.Up(ctx, db, migrations.Postgres); err != nil {
		return fmt.Errorf("migrate postgres: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

const tierColumns = `id, year, month, unit, level, revenue::text, headcount, expense_ratio,
	delinquency_ratio, contract_count, is_complete, updated_at`

func scanTier(row pgx.Row) (model.GoalTier, error) {
	var (
		t       model.GoalTier
		lvl     string
		revenue string
		month   int16
	)
	err := row.Scan(&t.ID, &t.Period.Year, &month, &t.Unit, &lvl, &revenue, &t.Headcount,
		&t.ExpenseRatio, &t.DelinquencyRatio, &t.ContractCount, &t.IsComplete, &t.UpdatedAt)
	if err != nil {
		return model.GoalTier{}, err
	}
	t.Period.Month = int(month)
	if t.Level, err = level.Parse(lvl); err != nil {
		return model.GoalTier{}, err
	}
	if t.Revenue, err = decimal.NewFromString(revenue); err != nil {
		return model.GoalTier{}, fmt.Errorf("tier %s revenue: %w", t.ID, err)
	}
	return t, nil
}

// ListTiers returns the period's tiers ordered by unit.
func (s *Store) ListTiers(ctx context.Context, period model.Period) (out []model.GoalTier, err error) {
	defer repository.Track(backend, "list_tiers", time.Now(), &err)

	rows, err := s.pool.Query(ctx, `SELECT `+tierColumns+` FROM goal_tiers
		WHERE year = $1 AND month = $2 ORDER BY unit, level`, period.Year, period.Month)
	if err != nil {
		return nil, fmt.Errorf("list tiers: %w", err)
	}
	out, err = pgx.CollectRows(rows, func(row pgx.CollectableRow) (model.GoalTier, error) {
		return scanTier(row)
	})
	if err != nil {
		return nil, fmt.Errorf("list tiers: %w", err)
	}
	return out, nil
}

// FindTier returns the tier at (period, unit, level).
func (s *Store) FindTier(ctx context.Context, period model.Period, unit string, lvl level.Level) (t model.GoalTier, err error) {
	defer repository.Track(backend, "find_tier", time.Now(), &err)

	t, err = scanTier(s.pool.QueryRow(ctx, `SELECT `+tierColumns+` FROM goal_tiers
		WHERE year = $1 AND month = $2 AND unit = $3 AND level = $4`, period.Year, period.Month, unit, string(lvl)))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.GoalTier{}, repository.ErrNotFound
	}
	if err != nil {
		return model.GoalTier{}, fmt.Errorf("find tier: %w", err)
	}
	return t, nil
}

// MarkComplete flags the tier at (period, unit, level) as complete. The
// timestamp only moves on the first call.
func (s *Store) MarkComplete(ctx context.Context, period model.Period, unit string, lvl level.Level) (t model.GoalTier, err error) {
	defer repository.Track(backend, "mark_complete", time.Now(), &err)

	t, err = scanTier(s.pool.QueryRow(ctx, `UPDATE goal_tiers
		SET updated_at = CASE WHEN is_complete THEN updated_at ELSE $5 END, is_complete = TRUE
		WHERE year = $1 AND month = $2 AND unit = $3 AND level = $4
		RETURNING `+tierColumns, period.Year, period.Month, unit, string(lvl), s.now()))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.GoalTier{}, repository.ErrNotFound
	}
	if err != nil {
		return model.GoalTier{}, fmt.Errorf("mark complete: %w", err)
	}
	return t, nil
}

// SaveTier inserts or replaces a tier by ID.
func (s *Store) SaveTier(ctx context.Context, tier model.GoalTier) (err error) {
	defer repository.Track(backend, "save_tier", time.Now(), &err)

	if tier.UpdatedAt.IsZero() {
		tier.UpdatedAt = s.now()
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO goal_tiers (id, year, month, unit, level, revenue, headcount, expense_ratio,
			delinquency_ratio, contract_count, is_complete, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6::numeric, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET year = EXCLUDED.year, month = EXCLUDED.month, unit = EXCLUDED.unit,
			level = EXCLUDED.level, revenue = EXCLUDED.revenue, headcount = EXCLUDED.headcount,
			expense_ratio = EXCLUDED.expense_ratio, delinquency_ratio = EXCLUDED.delinquency_ratio,
			contract_count = EXCLUDED.contract_count, is_complete = EXCLUDED.is_complete,
			updated_at = EXCLUDED.updated_at
	`, tier.ID, tier.Period.Year, tier.Period.Month, tier.Unit, string(tier.Level), tier.Revenue.String(),
		tier.Headcount, tier.ExpenseRatio, tier.DelinquencyRatio, tier.ContractCount, tier.IsComplete, tier.UpdatedAt)

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return repository.ErrDuplicateTier
	}
	if err != nil {
		return fmt.Errorf("save tier: %w", err)
	}
	return nil
}

// ListRecords returns the period's records ordered by unit then update time.
func (s *Store) ListRecords(ctx context.Context, period model.Period) (out []model.PerformanceRecord, err error) {
	defer repository.Track(backend, "list_records", time.Now(), &err)

	rows, err := s.pool.Query(ctx, `
		SELECT id, year, month, unit, window_start, window_end, revenue::text, receipts::text, expense::text,
			delinquency_percent, delinquency_value::text, contract_count, updated_at
		FROM performance_records
		WHERE year = $1 AND month = $2
		ORDER BY unit, updated_at, id
	`, period.Year, period.Month)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	out, err = pgx.CollectRows(rows, scanRecord)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return out, nil
}

func scanRecord(row pgx.CollectableRow) (model.PerformanceRecord, error) {
	var (
		r                                            model.PerformanceRecord
		month                                        int16
		revenue, receipts, expense, delinquencyValue string
	)
	err := row.Scan(&r.ID, &r.Period.Year, &month, &r.Unit, &r.Window.Start, &r.Window.End,
		&revenue, &receipts, &expense, &r.DelinquencyPercent, &delinquencyValue, &r.ContractCount, &r.UpdatedAt)
	if err != nil {
		return model.PerformanceRecord{}, err
	}
	r.Period.Month = int(month)
	amounts := []struct {
		dst *decimal.Decimal
		src string
	}{{&r.Revenue, revenue}, {&r.Receipts, receipts}, {&r.Expense, expense}, {&r.DelinquencyValue, delinquencyValue}}
	for _, a := range amounts {
		if *a.dst, err = decimal.NewFromString(a.src); err != nil {
			return model.PerformanceRecord{}, fmt.Errorf("record %s amount: %w", r.ID, err)
		}
	}
	return r, nil
}

// SaveRecord inserts or replaces a record by ID.
func (s *Store) SaveRecord(ctx context.Context, rec model.PerformanceRecord) (err error) {
	defer repository.Track(backend, "save_record", time.Now(), &err)

	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = s.now()
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO performance_records (id, year, month, unit, window_start, window_end, revenue, receipts,
			expense, delinquency_percent, delinquency_value, contract_count, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8::numeric, $9::numeric, $10, $11::numeric, $12, $13)
		ON CONFLICT (id) DO UPDATE SET year = EXCLUDED.year, month = EXCLUDED.month, unit = EXCLUDED.unit,
			window_start = EXCLUDED.window_start, window_end = EXCLUDED.window_end, revenue = EXCLUDED.revenue,
			receipts = EXCLUDED.receipts, expense = EXCLUDED.expense,
			delinquency_percent = EXCLUDED.delinquency_percent, delinquency_value = EXCLUDED.delinquency_value,
			contract_count = EXCLUDED.contract_count, updated_at = EXCLUDED.updated_at
	`, rec.ID, rec.Period.Year, rec.Period.Month, rec.Unit, rec.Window.Start, rec.Window.End,
		rec.Revenue.String(), rec.Receipts.String(), rec.Expense.String(), rec.DelinquencyPercent,
		rec.DelinquencyValue.String(), rec.ContractCount, rec.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save record: %w", err)
	}
	return nil
}
