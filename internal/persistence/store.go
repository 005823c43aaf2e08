package persistence

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/ticket-lifecycle/internal/config"
	"github.com/spec-kit/ticket-lifecycle/internal/repository"
)

// OpenStore opens the configured backend. The returned close func releases
// every resource OpenStore acquired.
func OpenStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (repository.Store, func(), error) {
	switch cfg.Store.Driver {
	case config.StoreDriverPostgres:
		pool, err := NewPostgresPool(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if cfg.Postgres.RunMigrations {
			if err := RunMigrations(ctx, pool, cfg.Postgres.MigrationsDir, logger); err != nil {
				pool.Close()
				return nil, nil, err
			}
		}
		return repository.NewPostgresStore(pool), pool.Close, nil
	case config.StoreDriverSQLite:
		store, err := repository.OpenSQLite(cfg.SQLite.Path)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("opened sqlite store", zap.String("path", cfg.SQLite.Path))
		return store, store.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}
