package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/okian/tiergate/internal/adapters/cache"
	"github.com/okian/tiergate/internal/adapters/http/api"
	"github.com/okian/tiergate/internal/adapters/http/swagger"
	"github.com/okian/tiergate/internal/adapters/logsource"
	"github.com/okian/tiergate/internal/adapters/repository"
	app "github.com/okian/tiergate/internal/app"
	"github.com/okian/tiergate/internal/config"
	"github.com/okian/tiergate/internal/domain/performance"
	"github.com/okian/tiergate/pkg/logger"
)

// openStore opens the configured backend wrapped with metrics.
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, error) {
	opts := []repository.Option{
		repository.WithMaxConns(cfg.StoreMaxConns),
		repository.WithLogger(logger.Named("store")),
	}
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		s, err := repository.NewPostgresStore(ctx, cfg.StoreDSN, opts...)
		if err != nil {
			return nil, err
		}
		return repository.Instrument(s, config.DriverPostgres), nil
	case config.DriverSQLite:
		s, err := repository.NewSQLiteStore(ctx, cfg.StoreDSN, opts...)
		if err != nil {
			return nil, err
		}
		return repository.Instrument(s, config.DriverSQLite), nil
	case config.DriverMemory:
		return repository.Instrument(repository.NewMemoryStore(opts...), config.DriverMemory), nil
	}
	return nil, fmt.Errorf("%w: unknown store_driver %q", config.ErrInvalidConfig, cfg.StoreDriver)
}

// openCache connects to Redis when configured and falls back to no caching.
func openCache(ctx context.Context, cfg *config.Config) (cache.Provider, error) {
	if cfg.CacheAddr == "" {
		return cache.Noop{}, nil
	}
	return cache.NewRedisProvider(ctx, cfg.CacheAddr, cfg.CachePassword)
}

func newLogSource(cfg *config.Config, c cache.Provider) *logsource.Client {
	return logsource.NewClient(
		logsource.WithBaseURL(cfg.LogSourceURL),
		logsource.WithRateLimit(cfg.LogSourceRate),
		logsource.WithTimeout(cfg.LogSourceTimeout()),
		logsource.WithCache(c, cfg.CacheTTL()),
	)
}

func performanceConfig(cfg *config.Config) performance.Config {
	return performance.Config{
		MaxPlayerDowns:            cfg.MaxPlayerDowns,
		MaxSquadDowns:             cfg.MaxSquadDowns,
		MaxSquadDeaths:            cfg.MaxSquadDeaths,
		MaxHealers:                cfg.MaxHealers,
		HealerExceptionProfession: cfg.HealerExceptionProfession,
	}
}

// newHandler builds the router with the API and docs routes.
func newHandler(ctx context.Context, cfg *config.Config, svc *app.Service) http.Handler {
	r := api.NewRouter(cfg.Origins())
	swagger.Register(ctx, r)
	api.NewServer(svc, svc, svc).Register(ctx, r)
	return r
}
