// Package database - подключение к PostgreSQL с повторными попытками.
package database

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	connectTimeout    = 10 * time.Second
	retryBackoffDelta = 2 * time.Second
)

// PoolOptions - настройки пула соединений.
type PoolOptions struct {
	MaxConns    int
	IdleTimeout time.Duration
}

// Connect создает пул подключений по DSN и проверяет его ping-ом.
func Connect(ctx context.Context, dsn string, opts PoolOptions) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("ошибка при разборе строки подключения: %w", err)
	}
	if opts.MaxConns > 0 {
		poolConfig.MaxConns = int32(opts.MaxConns)
	}
	if opts.IdleTimeout > 0 {
		poolConfig.MaxConnIdleTime = opts.IdleTimeout
	}

	connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("не удалось создать пул подключений: %w", err)
	}

	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("не удалось подключиться к базе данных: %w", err)
	}

	log.Println("Успешное подключение к базе данных PostgreSQL")
	return pool, nil
}

// ConnectWithRetry повторяет подключение attempts раз с нарастающей задержкой.
// База может подниматься дольше приложения, ошибка первого пинга не фатальна.
func ConnectWithRetry(ctx context.Context, dsn string, opts PoolOptions, attempts int) (*pgxpool.Pool, error) {
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		pool, err := Connect(ctx, dsn, opts)
		if err == nil {
			return pool, nil
		}
		lastErr = err
		log.Printf("Попытка подключения к БД %d/%d не удалась: %v", attempt, attempts, err)

		if attempt < attempts {
			select {
			case <-time.After(time.Duration(attempt) * retryBackoffDelta):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, fmt.Errorf("база данных недоступна после %d попыток: %w", attempts, lastErr)
}
