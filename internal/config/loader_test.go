package config_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/okian/tiergate/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tiergate.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// clearConfigEnvVars unsets every TIERGATE_ variable so branches do not
// leak into each other.
func clearConfigEnvVars() {
	for _, kv := range os.Environ() {
		if k, _, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(k, config.EnvPrefix) {
			_ = os.Unsetenv(k)
		}
	}
}

func TestConfigLoader(t *testing.T) {
	ctx := context.Background()

	convey.Convey("Given a config loader", t, func() {
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
				convey.So(cfg.MaxPlayerDowns, convey.ShouldEqual, 1)
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("TIERGATE_ADDR", ":8080")
			_ = os.Setenv("TIERGATE_WORKER_COUNT", "16")
			_ = os.Setenv("TIERGATE_MIN_GAME_BUILD", "153978")
			_ = os.Setenv("TIERGATE_DEBUG_MECHANICS", "true")
			_ = os.Setenv("TIERGATE_LOG_SOURCE_RATE", "0.5")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.WorkerCount, convey.ShouldEqual, 16)
				convey.So(cfg.MinGameBuild, convey.ShouldEqual, 153978)
				convey.So(cfg.DebugMechanics, convey.ShouldBeTrue)
				convey.So(cfg.LogSourceRate, convey.ShouldEqual, 0.5)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			_ = os.Setenv("TIERGATE_CONFIG", writeConfig(t, `
addr: ":9090"
queue_size: 300
max_squad_downs: 12
store_driver: sqlite
store_dsn: /tmp/tiergate.db
`))
			_ = os.Setenv("TIERGATE_QUEUE_SIZE", "50")

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.QueueSize, convey.ShouldEqual, 50)
				convey.So(cfg.MaxSquadDowns, convey.ShouldEqual, 12)
				convey.So(cfg.StoreDriver, convey.ShouldEqual, config.DriverSQLite)
				convey.So(cfg.MaxSquadDeaths, convey.ShouldEqual, 2)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			_ = os.Setenv("TIERGATE_CONFIG", writeConfig(t, `invalid: yaml: content: [`))

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with a missing file", func() {
			_ = os.Setenv("TIERGATE_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

			_, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When loading config with empty addr", func() {
			_ = os.Setenv("TIERGATE_ADDR", "")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a validation error", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("TIERGATE_QUEUE_SIZE", "invalid")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return an error", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})
	})
}
