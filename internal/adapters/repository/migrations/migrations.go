// Package migrations holds the versioned schema of every supported SQL
// backend and applies it with goose.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"

	"github.com/pressly/goose/v3"

	_ "github.com/go-sql-driver/mysql" // mysql driver
	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver
	_ "modernc.org/sqlite"             // sqlite driver
)

//go:embed sql
var embedded embed.FS

// Dialect names a supported SQL backend.
type Dialect string

// Supported dialects.
const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
	MySQL    Dialect = "mysql"
)

// ErrUnknownDialect is returned for a backend without migrations.
var ErrUnknownDialect = errors.New("unknown sql dialect")

// Driver returns the database/sql driver name registered for d.
func (d Dialect) Driver() (string, error) {
	switch d {
	case Postgres:
		return "pgx", nil
	case SQLite:
		return "sqlite", nil
	case MySQL:
		return "mysql", nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDialect, d)
	}
}

func (d Dialect) goose() (goose.Dialect, error) {
	switch d {
	case Postgres:
		return goose.DialectPostgres, nil
	case SQLite:
		return goose.DialectSQLite3, nil
	case MySQL:
		return goose.DialectMySQL, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownDialect, d)
	}
}

// Open opens a database/sql handle for d.
func Open(d Dialect, dsn string) (*sql.DB, error) {
	driver, err := d.Driver()
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", d, err)
	}
	return db, nil
}

// NewProvider builds a goose provider over the embedded migrations of d.
// The provider does not own db; closing it closes db.
func NewProvider(db *sql.DB, d Dialect) (*goose.Provider, error) {
	gd, err := d.goose()
	if err != nil {
		return nil, err
	}
	fsys, err := fs.Sub(embedded, path.Join("sql", string(d)))
	if err != nil {
		return nil, fmt.Errorf("migrations for %s: %w", d, err)
	}
	return goose.NewProvider(gd, db, fsys)
}

// Up applies every pending migration.
func Up(ctx context.Context, db *sql.DB, d Dialect) ([]*goose.MigrationResult, error) {
	p, err := NewProvider(db, d)
	if err != nil {
		return nil, err
	}
	return p.Up(ctx)
}

// Down rolls back the most recent migration.
func Down(ctx context.Context, db *sql.DB, d Dialect) (*goose.MigrationResult, error) {
	p, err := NewProvider(db, d)
	if err != nil {
		return nil, err
	}
	return p.Down(ctx)
}

// Status reports every known migration and whether it is applied.
func Status(ctx context.Context, db *sql.DB, d Dialect) ([]*goose.MigrationStatus, error) {
	p, err := NewProvider(db, d)
	if err != nil {
		return nil, err
	}
	return p.Status(ctx)
}
