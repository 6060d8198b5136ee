package config_test

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/anuntech/metas/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldNotBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.StoreDriver, convey.ShouldEqual, config.DriverMemory)
				convey.So(cfg.MaxDBConns, convey.ShouldEqual, 10)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("METAS_ADDR", ":8080")
			_ = os.Setenv("METAS_STORE_DRIVER", "sqlite")
			_ = os.Setenv("METAS_STORE_DSN", "file:metas.db")
			_ = os.Setenv("METAS_AUTO_MIGRATE", "false")
			_ = os.Setenv("METAS_MAX_DB_CONNS", "4")
			_ = os.Setenv("METAS_LOG_FORMAT", "json")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.StoreDriver, convey.ShouldEqual, config.DriverSQLite)
				convey.So(cfg.StoreDSN, convey.ShouldEqual, "file:metas.db")
				convey.So(cfg.AutoMigrate, convey.ShouldBeFalse)
				convey.So(cfg.MaxDBConns, convey.ShouldEqual, 4)
				convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			tmpFile := createTempConfigFile(`
# metas settings
addr: ":9090"
store_driver: postgres
store_dsn: postgres://metas@localhost/metas
shutdown_timeout_ms: 5000
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("METAS_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file and keep other defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.StoreDriver, convey.ShouldEqual, config.DriverPostgres)
				convey.So(cfg.StoreDSN, convey.ShouldEqual, "postgres://metas@localhost/metas")
				convey.So(cfg.ShutdownTimeoutMS, convey.ShouldEqual, 5000)
				convey.So(cfg.ReadTimeoutMS, convey.ShouldEqual, 10_000)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			tmpFile := createTempConfigFile(`
addr: ":9090"
log_level: debug
`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("METAS_CONFIG", tmpFile)
			_ = os.Setenv("METAS_ADDR", ":7070")
			defer clearConfigEnvVars()

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":7070")
				convey.So(cfg.LogLevel, convey.ShouldEqual, "debug")
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile("addr: [unterminated")
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("METAS_CONFIG", tmpFile)
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("METAS_CONFIG", "/nonexistent/metas.yaml")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a database driver is selected without a DSN", func() {
			_ = os.Setenv("METAS_STORE_DRIVER", "mysql")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("METAS_MAX_DB_CONNS", "many")
			defer clearConfigEnvVars()

			_, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"METAS_CONFIG",
		"METAS_ADDR",
		"METAS_LOG_LEVEL",
		"METAS_LOG_FORMAT",
		"METAS_STORE_DRIVER",
		"METAS_STORE_DSN",
		"METAS_AUTO_MIGRATE",
		"METAS_MAX_DB_CONNS",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "metas-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}

func TestConfigRead(t *testing.T) {
	convey.Convey("Given an incomplete environment", t, func() {
		clearConfigEnvVars()
		_ = os.Setenv("METAS_STORE_DRIVER", "sqlite")
		defer clearConfigEnvVars()

		convey.Convey("Read returns it unvalidated so callers can complete it", func() {
			cfg, err := config.Read(context.Background())
			convey.So(err, convey.ShouldBeNil)
			convey.So(cfg.StoreDriver, convey.ShouldEqual, config.DriverSQLite)
			convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)

			cfg.StoreDSN = ":memory:"
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}
