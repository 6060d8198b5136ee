package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/anuntech/metas/internal/adapters/repository"
	"github.com/anuntech/metas/internal/adapters/repository/migrations"
	"github.com/anuntech/metas/internal/adapters/repository/postgres"
	"github.com/anuntech/metas/internal/adapters/repository/sqlstore"
	"github.com/anuntech/metas/internal/config"
	"github.com/anuntech/metas/pkg/logger"
	"github.com/anuntech/metas/pkg/metrics"
)

// Set by the linker at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// cli carries state shared by every subcommand.
type cli struct {
	cfg *config.Config
	log logger.Logger

	storeDriver string
	storeDSN    string
	logLevel    string
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:   "metas",
		Short: "Tiered goal progress and advancement engine",
		Long: `Track units against six-level goal ladders, report progress per metric
and advance completed tiers.

Configuration is read from defaults, then the YAML file named by METAS_CONFIG,
then METAS_* environment variables, then flags.`,
		SilenceUsage:      true,
		PersistentPreRunE: c.setup,
	}

	root.PersistentFlags().StringVar(&c.storeDriver, "store-driver", "", "Store backend: memory, postgres, sqlite or mysql")
	root.PersistentFlags().StringVar(&c.storeDSN, "store-dsn", "", "Connection string for the store backend")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "Log level: debug, info, warn or error")

	root.AddCommand(
		newServeCmd(c),
		newMigrateCmd(c),
		newReportCmd(c),
		newSeedCmd(c),
		newVersionCmd(),
	)
	return root
}

// setup loads configuration and initializes logging and metrics.
func (c *cli) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Read(cmd.Context())
	if err != nil {
		return err
	}
	if cfg, err = c.applyFlags(cfg); err != nil {
		return err
	}
	c.cfg = cfg

	if err := logger.Init(
		logger.WithFormat(cfg.LogFormat),
		logger.WithLevel(cfg.LogLevel),
		logger.WithOutput(os.Stderr),
	); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	c.log = logger.Get()

	metrics.Init(metrics.WithNamespace(cfg.MetricsNamespace))
	return nil
}

func (c *cli) applyFlags(cfg *config.Config) (*config.Config, error) {
	if c.storeDriver != "" {
		cfg.StoreDriver = c.storeDriver
	}
	if c.storeDSN != "" {
		cfg.StoreDSN = c.storeDSN
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openStore connects to the configured backend.
func (c *cli) openStore(ctx context.Context) (repository.Store, error) {
	cfg := c.cfg
	switch cfg.StoreDriver {
	case config.DriverMemory:
		return repository.NewMemoryStore(), nil
	case config.DriverPostgres:
		s, err := postgres.Connect(ctx, cfg.StoreDSN,
			postgres.WithMaxConns(int32(cfg.MaxDBConns)), //nolint:gosec // bounded by config validation
			postgres.WithAutoMigrate(cfg.AutoMigrate),
		)
		if err != nil {
			return nil, err
		}
		return s, nil
	case config.DriverSQLite, config.DriverMySQL:
		s, err := sqlstore.Open(ctx, migrations.Dialect(cfg.StoreDriver), cfg.StoreDSN,
			sqlstore.WithMaxOpenConns(cfg.MaxDBConns),
			sqlstore.WithAutoMigrate(cfg.AutoMigrate),
		)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("%w: unknown store_driver %q", config.ErrInvalidConfig, cfg.StoreDriver)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		// logging and config are not needed
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "metas %s (commit %s, built %s)\n", version, commit, date)
			return err
		},
	}
}
