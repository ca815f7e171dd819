package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/DanielPopoola/ficmart-payment-service/internal/application"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only while it still holds our token.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

// OrderLock is a short-lived per-order mutex shared by all instances.
type OrderLock struct {
	rdb      redis.Cmdable
	newToken func() string
}

func NewOrderLock(rdb redis.Cmdable) *OrderLock {
	return &OrderLock{
		rdb:      rdb,
		newToken: func() string { return uuid.New().String() },
	}
}

func lockKey(orderID string) string {
	return "payments:order-lock:" + orderID
}

// Acquire takes the lock for ttl. The returned release is a no-op once
// the lock has expired and been taken by someone else.
func (l *OrderLock) Acquire(ctx context.Context, orderID string, ttl time.Duration) (func(context.Context) error, error) {
	key := lockKey(orderID)
	token := l.newToken()

	ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock %s: %w", key, err)
	}
	if !ok {
		return nil, application.ErrLockNotAcquired
	}

	return func(ctx context.Context) error {
		err := l.rdb.Eval(ctx, releaseScript, []string{key}, token).Err()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("release lock %s: %w", key, err)
		}
		return nil
	}, nil
}
