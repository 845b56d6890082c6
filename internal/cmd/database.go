package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gomodule/redigo/redis"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/wordparty/catchphrase/internal/store"
)

// setupStore builds the configured record store, optionally wrapped with
// NATS fan-out.
func setupStore(ctx context.Context, cfg *Config) (store.Store, func(), error) {
	var (
		st      store.Store
		cleanup func()
		err     error
	)
	switch cfg.StoreBackend {
	case "memory":
		st = store.NewMemory()
		cleanup = func() {}
		log.Info().Msg("using in-memory game store")
	case "postgres":
		st, cleanup, err = setupPostgres(ctx, cfg.DatabaseURL)
	case "redis":
		st, cleanup, err = setupRedis(cfg.RedisURL)
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
	if err != nil {
		return nil, nil, err
	}

	if cfg.NATSURL != "" {
		nc, err := store.Connect(cfg.NATSURL)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("failed to connect to nats: %w", err)
		}
		log.Info().Str("url", cfg.NATSURL).Msg("connected to nats")
		inner := cleanup
		cleanup = func() {
			nc.Close()
			inner()
		}
		st = store.WithNATS(st, nc)
	}
	return st, cleanup, nil
}

func setupPostgres(ctx context.Context, url string) (store.Store, func(), error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	st, err := store.NewPostgres(ctx, pool)
	if err != nil {
		pool.Close()
		return nil, nil, err
	}
	log.Info().Msg("connected to postgres")
	return st, pool.Close, nil
}

func setupRedis(url string) (store.Store, func(), error) {
	pool := &redis.Pool{
		MaxIdle:     8,
		IdleTimeout: 240 * time.Second,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			return redis.DialURLContext(ctx, url)
		},
		TestOnBorrow: func(c redis.Conn, t time.Time) error {
			if time.Since(t) < time.Minute {
				return nil
			}
			_, err := c.Do("PING")
			return err
		},
	}

	conn := pool.Get()
	_, err := conn.Do("PING")
	conn.Close()
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	log.Info().Msg("connected to redis")
	return store.NewRedis(pool), func() { pool.Close() }, nil
}
