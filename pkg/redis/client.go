package redis

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"stagepay/pkg/config"
)

// NewRedisClient builds the client used for webhook dedup and payment locks.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 2 * time.Second
	}
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  dialTimeout,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})
}

// CheckAvailable pings Redis once at startup. Dedup and locking degrade to
// pass-through when Redis is down, so a failure is only logged.
func CheckAvailable(ctx context.Context, rdb *redis.Client, logger *zap.Logger) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis unavailable, dedup and payment locks are disabled until it recovers",
			zap.String("addr", rdb.Options().Addr),
			zap.Error(err),
		)
		return false
	}
	return true
}
