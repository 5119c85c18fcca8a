package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrNotObtained is returned when another holder owns the key.
var ErrNotObtained = redislock.ErrNotObtained

// Locker hands out short-lived Redis locks. A nil *Locker is valid and never locks.
type Locker struct {
	client *redislock.Client
	logger *zap.Logger
}

func NewLocker(rdb *redis.Client, logger *zap.Logger) *Locker {
	return &Locker{client: redislock.New(rdb), logger: logger}
}

// Release frees a lock obtained from the Locker.
type Release func()

// TryObtain returns ErrNotObtained if the key is held elsewhere. Other Redis
// errors are returned as-is; callers decide whether the lock is advisory.
func (l *Locker) TryObtain(ctx context.Context, key string, ttl time.Duration) (Release, error) {
	if l == nil || l.client == nil {
		return func() {}, nil
	}

	lk, err := l.client.Obtain(ctx, key, ttl, nil)
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			return nil, ErrNotObtained
		}
		return nil, fmt.Errorf("obtain lock %s: %w", key, err)
	}

	return func() {
		if err := lk.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			l.logger.Warn("failed to release redis lock", zap.String("key", key), zap.Error(err))
		}
	}, nil
}

// Advisory obtains the lock when it can and otherwise proceeds without it.
// The returned release is always safe to call.
func (l *Locker) Advisory(ctx context.Context, key string, ttl time.Duration) Release {
	release, err := l.TryObtain(ctx, key, ttl)
	if err != nil {
		if l != nil {
			l.logger.Warn("could not obtain redis lock; proceeding without it",
				zap.String("key", key),
				zap.Error(err),
			)
		}
		return func() {}
	}
	return release
}
