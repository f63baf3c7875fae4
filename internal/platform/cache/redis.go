package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// New creates the Redis client backing the role and policy caches and probes
// connectivity. Those caches are best-effort, so an unreachable Redis is
// logged and the client returned anyway; decisions fall through to Postgres
// until it recovers.
func New(ctx context.Context, addr string, logger *slog.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unreachable, caches degraded to miss", slog.String("addr", addr), slog.Any("error", err))
	}

	return client
}
