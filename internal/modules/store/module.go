package store

import (
	"context"
	"fmt"

	"trade_watch/internal/models"
	"trade_watch/internal/modules/config"
	"trade_watch/internal/modules/store/service"
	"trade_watch/pkg/db"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

func NewBackend(lc fx.Lifecycle, cfg *config.Config, log *zap.Logger) (service.Backend, error) {
	ctx := context.Background()

	var backend service.Backend
	switch cfg.Store.Driver {
	case "", "badger":
		b, err := service.NewBadgerBackend(cfg.Store.Path)
		if err != nil {
			return nil, err
		}
		backend = b
	case "postgres":
		pool, err := db.NewPool(ctx, db.PoolConfig{DSN: cfg.Store.DSN})
		if err != nil {
			return nil, fmt.Errorf("failed to create poolMaster: %w", err)
		}
		tx := db.NewPgTxManager(pool)
		lc.Append(fx.Hook{OnStop: func(context.Context) error {
			tx.Close()
			return nil
		}})
		b, err := service.NewPostgresBackend(ctx, tx)
		if err != nil {
			return nil, err
		}
		backend = b
	case "redis":
		b, err := service.NewRedisBackend(ctx, service.RedisConfig{
			Addr:      cfg.Store.RedisAddr,
			Password:  cfg.Store.RedisPassword,
			DB:        cfg.Store.RedisDB,
			KeyPrefix: cfg.Store.KeyPrefix,
		})
		if err != nil {
			return nil, err
		}
		backend = b
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Store.Driver)
	}

	log.Info("record store ready", zap.String("driver", cfg.Store.Driver))
	lc.Append(fx.Hook{OnStop: func(context.Context) error {
		return backend.Close()
	}})
	return backend, nil
}

func newFamily[T any](name string) func(fx.Lifecycle, service.Backend, *zap.Logger) *service.Family[T] {
	return func(lc fx.Lifecycle, backend service.Backend, log *zap.Logger) *service.Family[T] {
		f := service.NewFamily[T](name, backend, log)
		lc.Append(fx.Hook{
			OnStart: f.Load,
			OnStop: func(ctx context.Context) error {
				if err := f.Flush(ctx); err != nil {
					log.Error("flush on stop", zap.String("family", name), zap.Error(err))
				}
				return nil
			},
		})
		return f
	}
}

func Module() fx.Option {
	return fx.Module("store",
		fx.Provide(
			NewBackend,
			newFamily[models.Position](service.FamilyPositions),
			newFamily[models.Signal](service.FamilySignals),
			newFamily[models.Cursor](service.FamilyCursors),
		),
	)
}
