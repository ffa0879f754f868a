package service

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// RedisBackend - одно значение на семейство под ключом <prefix><family>.
type RedisBackend struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisBackend(ctx context.Context, cfg RedisConfig) (*RedisBackend, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "redis ping")
	}
	return &RedisBackend{rdb: rdb, prefix: cfg.KeyPrefix}, nil
}

func (r *RedisBackend) Load(ctx context.Context, family string) ([]byte, error) {
	data, err := r.rdb.Get(ctx, r.prefix+family).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "redis get")
	}
	return data, nil
}

func (r *RedisBackend) Save(ctx context.Context, family string, data []byte) error {
	return errors.Wrap(r.rdb.Set(ctx, r.prefix+family, data, 0).Err(), "redis set")
}

func (r *RedisBackend) Close() error {
	return r.rdb.Close()
}
