package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/anuntech/metas/internal/adapters/repository/migrations"
	"github.com/anuntech/metas/internal/config"
	"github.com/anuntech/metas/pkg/logger"
)

func newMigrateCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the SQL schema of the configured store",
		Long: `Apply, roll back or inspect the embedded schema migrations.

Only the postgres, sqlite and mysql drivers have a schema; the memory driver
is rejected.`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply every pending migration",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return c.withMigrationDB(cmd.Context(), func(db *sql.DB, d migrations.Dialect) error {
					results, err := migrations.Up(cmd.Context(), db, d)
					if err != nil {
						return err
					}
					for _, r := range results {
						c.log.Info(cmd.Context(), "migration applied",
							logger.Int("version", int(r.Source.Version)), logger.Duration("took", r.Duration))
					}
					_, err = fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", len(results))
					return err
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return c.withMigrationDB(cmd.Context(), func(db *sql.DB, d migrations.Dialect) error {
					r, err := migrations.Down(cmd.Context(), db, d)
					if err != nil {
						return err
					}
					_, err = fmt.Fprintf(cmd.OutOrStdout(), "rolled back version %d\n", r.Source.Version)
					return err
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "List migrations and whether they are applied",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return c.withMigrationDB(cmd.Context(), func(db *sql.DB, d migrations.Dialect) error {
					statuses, err := migrations.Status(cmd.Context(), db, d)
					if err != nil {
						return err
					}
					return renderMigrationStatus(cmd.OutOrStdout(), statuses)
				})
			},
		},
	)
	return cmd
}

// withMigrationDB opens a database/sql handle for the configured driver.
func (c *cli) withMigrationDB(ctx context.Context, fn func(*sql.DB, migrations.Dialect) error) error {
	if c.cfg.StoreDriver == config.DriverMemory {
		return fmt.Errorf("%w: migrate needs a sql store_driver, got %q", config.ErrInvalidConfig, c.cfg.StoreDriver)
	}
	d := migrations.Dialect(c.cfg.StoreDriver)
	db, err := migrations.Open(d, c.cfg.StoreDSN)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if d == migrations.SQLite {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("connect to %s: %w", d, err)
	}
	return fn(db, d)
}

func renderMigrationStatus(w io.Writer, statuses []*goose.MigrationStatus) error {
	table := tablewriter.NewWriter(w)
	table.Header([]string{"Version", "File", "State", "Applied At"})

	data := make([][]string, 0, len(statuses))
	for _, s := range statuses {
		applied := "-"
		if s.State == goose.StateApplied && !s.AppliedAt.IsZero() {
			applied = s.AppliedAt.UTC().Format(time.RFC3339)
		}
		data = append(data, []string{
			strconv.FormatInt(s.Source.Version, 10),
			s.Source.Path,
			string(s.State),
			applied,
		})
	}

	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}
