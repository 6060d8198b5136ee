// Package sqlstore implements the repository ports on database/sql for the
// SQLite and MySQL backends.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/anuntech/metas/internal/adapters/repository"
	"github.com/anuntech/metas/internal/adapters/repository/migrations"
	"github.com/anuntech/metas/internal/domain/level"
	"github.com/anuntech/metas/internal/domain/model"
)

// Store persists tiers and records through database/sql.
type Store struct {
	db      *sql.DB
	dialect migrations.Dialect
	now     func() time.Time

	maxOpenConns int
	autoMigrate  bool
}

var _ repository.Store = (*Store)(nil)

// Open connects to dsn with the driver of dialect, which must be SQLite or MySQL.
func Open(ctx context.Context, dialect migrations.Dialect, dsn string, opts ...Option) (*Store, error) {
	if dialect != migrations.SQLite && dialect != migrations.MySQL {
		return nil, fmt.Errorf("%w: %q", migrations.ErrUnknownDialect, dialect)
	}
	db, err := migrations.Open(dialect, dsn)
	if err != nil {
		return nil, err
	}
	s, err := New(ctx, db, dialect, opts...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open handle. The store takes ownership of db.
func New(ctx context.Context, db *sql.DB, dialect migrations.Dialect, opts ...Option) (*Store, error) {
	s := &Store{db: db, dialect: dialect, now: time.Now, maxOpenConns: 10}
	for _, opt := range opts {
		opt(s)
	}

	if dialect == migrations.SQLite {
		// an in-memory database lives and dies with its single connection
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(s.maxOpenConns)
	}

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", dialect, err)
	}
	if s.autoMigrate {
		if _, err := migrations.Up(ctx, db, dialect); err != nil {
			return nil, fmt.Errorf("migrate %s: %w", dialect, err)
		}
	}
	return s, nil
}

// DB exposes the underlying handle for migrations.
func (s *Store) DB() *sql.DB { return s.db }

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) backend() string { return string(s.dialect) }

const tierColumns = `id, year, month, unit, level, revenue, headcount, expense_ratio,
	delinquency_ratio, contract_count, is_complete, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTier(row rowScanner) (model.GoalTier, error) {
	var (
		t       model.GoalTier
		lvl     string
		revenue string
		updated int64
	)
	err := row.Scan(&t.ID, &t.Period.Year, &t.Period.Month, &t.Unit, &lvl, &revenue, &t.Headcount,
		&t.ExpenseRatio, &t.DelinquencyRatio, &t.ContractCount, &t.IsComplete, &updated)
	if err != nil {
		return model.GoalTier{}, err
	}
	if t.Level, err = level.Parse(lvl); err != nil {
		return model.GoalTier{}, err
	}
	if t.Revenue, err = decimal.NewFromString(revenue); err != nil {
		return model.GoalTier{}, fmt.Errorf("tier %s revenue: %w", t.ID, err)
	}
	t.UpdatedAt = time.Unix(0, updated).UTC()
	return t, nil
}

// ListTiers returns the period's tiers ordered by unit.
func (s *Store) ListTiers(ctx context.Context, period model.Period) (out []model.GoalTier, err error) {
	defer repository.Track(s.backend(), "list_tiers", time.Now(), &err)

	rows, err := s.db.QueryContext(ctx, `SELECT `+tierColumns+` FROM goal_tiers
		WHERE year = ? AND month = ? ORDER BY unit, level`, period.Year, period.Month)
	if err != nil {
		return nil, fmt.Errorf("list tiers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		t, err := scanTier(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tier: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tiers: %w", err)
	}
	return out, nil
}

// FindTier returns the tier at (period, unit, level).
func (s *Store) FindTier(ctx context.Context, period model.Period, unit string, lvl level.Level) (t model.GoalTier, err error) {
	defer repository.Track(s.backend(), "find_tier", time.Now(), &err)
	return s.findTier(ctx, s.db, period, unit, lvl)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) findTier(ctx context.Context, q querier, period model.Period, unit string, lvl level.Level) (model.GoalTier, error) {
	row := q.QueryRowContext(ctx, `SELECT `+tierColumns+` FROM goal_tiers
		WHERE year = ? AND month = ? AND unit = ? AND level = ?`, period.Year, period.Month, unit, string(lvl))
	t, err := scanTier(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.GoalTier{}, repository.ErrNotFound
	}
	if err != nil {
		return model.GoalTier{}, fmt.Errorf("find tier: %w", err)
	}
	return t, nil
}

// MarkComplete flags the tier at (period, unit, level) as complete.
func (s *Store) MarkComplete(ctx context.Context, period model.Period, unit string, lvl level.Level) (t model.GoalTier, err error) {
	defer repository.Track(s.backend(), "mark_complete", time.Now(), &err)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.GoalTier{}, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	t, err = s.findTier(ctx, tx, period, unit, lvl)
	if err != nil {
		return model.GoalTier{}, err
	}
	if !t.IsComplete {
		t.IsComplete = true
		t.UpdatedAt = s.now().UTC()
		if _, err := tx.ExecContext(ctx, `UPDATE goal_tiers SET is_complete = ?, updated_at = ? WHERE id = ?`,
			true, t.UpdatedAt.UnixNano(), t.ID.String()); err != nil {
			return model.GoalTier{}, fmt.Errorf("mark complete: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return model.GoalTier{}, fmt.Errorf("commit: %w", err)
	}
	return t, nil
}

// SaveTier inserts or replaces a tier by ID.
func (s *Store) SaveTier(ctx context.Context, tier model.GoalTier) (err error) {
	defer repository.Track(s.backend(), "save_tier", time.Now(), &err)

	if tier.UpdatedAt.IsZero() {
		tier.UpdatedAt = s.now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var holder string
	err = tx.QueryRowContext(ctx, `SELECT id FROM goal_tiers WHERE year = ? AND month = ? AND unit = ? AND level = ?`,
		tier.Period.Year, tier.Period.Month, tier.Unit, string(tier.Level)).Scan(&holder)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return fmt.Errorf("check tier slot: %w", err)
	case holder != tier.ID.String():
		return repository.ErrDuplicateTier
	}

	if _, err := tx.ExecContext(ctx, s.upsertTierQuery(),
		tier.ID.String(), tier.Period.Year, tier.Period.Month, tier.Unit, string(tier.Level), tier.Revenue.String(),
		tier.Headcount, tier.ExpenseRatio, tier.DelinquencyRatio, tier.ContractCount, tier.IsComplete,
		tier.UpdatedAt.UnixNano()); err != nil {
		return fmt.Errorf("save tier: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) upsertTierQuery() string {
	insert := `INSERT INTO goal_tiers (` + tierColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if s.dialect == migrations.MySQL {
		return insert + ` AS new ON DUPLICATE KEY UPDATE year = new.year, month = new.month, unit = new.unit,
			level = new.level, revenue = new.revenue, headcount = new.headcount, expense_ratio = new.expense_ratio,
			delinquency_ratio = new.delinquency_ratio, contract_count = new.contract_count,
			is_complete = new.is_complete, updated_at = new.updated_at`
	}
	return insert + ` ON CONFLICT (id) DO UPDATE SET year = excluded.year, month = excluded.month,
		unit = excluded.unit, level = excluded.level, revenue = excluded.revenue, headcount = excluded.headcount,
		expense_ratio = excluded.expense_ratio, delinquency_ratio = excluded.delinquency_ratio,
		contract_count = excluded.contract_count, is_complete = excluded.is_complete, updated_at = excluded.updated_at`
}

const recordColumns = `id, year, month, unit, window_start, window_end, revenue, receipts, expense,
	delinquency_percent, delinquency_value, contract_count, updated_at`

func scanRecord(row rowScanner) (model.PerformanceRecord, error) {
	var (
		r                                            model.PerformanceRecord
		start, end                                   string
		revenue, receipts, expense, delinquencyValue string
		updated                                      int64
	)
	err := row.Scan(&r.ID, &r.Period.Year, &r.Period.Month, &r.Unit, &start, &end, &revenue, &receipts, &expense,
		&r.DelinquencyPercent, &delinquencyValue, &r.ContractCount, &updated)
	if err != nil {
		return model.PerformanceRecord{}, err
	}
	if r.Window.Start, err = time.Parse(time.DateOnly, start); err != nil {
		return model.PerformanceRecord{}, fmt.Errorf("record %s window start: %w", r.ID, err)
	}
	if r.Window.End, err = time.Parse(time.DateOnly, end); err != nil {
		return model.PerformanceRecord{}, fmt.Errorf("record %s window end: %w", r.ID, err)
	}
	for _, f := range []struct {
		dst *decimal.Decimal
		src string
	}{{&r.Revenue, revenue}, {&r.Receipts, receipts}, {&r.Expense, expense}, {&r.DelinquencyValue, delinquencyValue}} {
		if *f.dst, err = decimal.NewFromString(f.src); err != nil {
			return model.PerformanceRecord{}, fmt.Errorf("record %s amount: %w", r.ID, err)
		}
	}
	r.UpdatedAt = time.Unix(0, updated).UTC()
	return r, nil
}

// ListRecords returns the period's records ordered by unit then update time.
func (s *Store) ListRecords(ctx context.Context, period model.Period) (out []model.PerformanceRecord, err error) {
	defer repository.Track(s.backend(), "list_records", time.Now(), &err)

	rows, err := s.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM performance_records
		WHERE year = ? AND month = ? ORDER BY unit, updated_at, id`, period.Year, period.Month)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	return out, nil
}

// SaveRecord inserts or replaces a record by ID.
func (s *Store) SaveRecord(ctx context.Context, rec model.PerformanceRecord) (err error) {
	defer repository.Track(s.backend(), "save_record", time.Now(), &err)

	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = s.now()
	}
	if _, err := s.db.ExecContext(ctx, s.upsertRecordQuery(),
		rec.ID.String(), rec.Period.Year, rec.Period.Month, rec.Unit,
		rec.Window.Start.Format(time.DateOnly), rec.Window.End.Format(time.DateOnly),
		rec.Revenue.String(), rec.Receipts.String(), rec.Expense.String(), rec.DelinquencyPercent,
		rec.DelinquencyValue.String(), rec.ContractCount, rec.UpdatedAt.UnixNano()); err != nil {
		return fmt.Errorf("save record: %w", err)
	}
	return nil
}

func (s *Store) upsertRecordQuery() string {
	insert := `INSERT INTO performance_records (` + recordColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	if s.dialect == migrations.MySQL {
		return insert + ` AS new ON DUPLICATE KEY UPDATE year = new.year, month = new.month, unit = new.unit,
			window_start = new.window_start, window_end = new.window_end, revenue = new.revenue,
			receipts = new.receipts, expense = new.expense, delinquency_percent = new.delinquency_percent,
			delinquency_value = new.delinquency_value, contract_count = new.contract_count, updated_at = new.updated_at`
	}
	return insert + ` ON CONFLICT (id) DO UPDATE SET year = excluded.year, month = excluded.month,
		unit = excluded.unit, window_start = excluded.window_start, window_end = excluded.window_end,
		revenue = excluded.revenue, receipts = excluded.receipts, expense = excluded.expense,
		delinquency_percent = excluded.delinquency_percent, delinquency_value = excluded.delinquency_value,
		contract_count = excluded.contract_count, updated_at = excluded.updated_at`
}
