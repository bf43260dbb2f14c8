package health

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// DepsChecker probes the Postgres pool and Redis client backing the service.
type DepsChecker struct {
	Pool  *pgxpool.Pool
	Redis *redis.Client
}

// PingDB probes the database within the given timeout.
func (c DepsChecker) PingDB(ctx context.Context, timeout time.Duration) error {
	if c.Pool == nil {
		return errors.New("database pool not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.Pool.Ping(ctx)
}

// PingRedis probes Redis within the given timeout.
func (c DepsChecker) PingRedis(ctx context.Context, timeout time.Duration) error {
	if c.Redis == nil {
		return errors.New("redis client not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return c.Redis.Ping(ctx).Err()
}
