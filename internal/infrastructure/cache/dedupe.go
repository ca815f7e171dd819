package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Dedupe remembers consumed message keys for ttl.
type Dedupe struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewDedupe(rdb redis.Cmdable, ttl time.Duration) *Dedupe {
	return &Dedupe{rdb: rdb, ttl: ttl}
}

// Seen marks key and reports whether it was already marked.
func (d *Dedupe) Seen(ctx context.Context, key string) (bool, error) {
	ok, err := d.rdb.SetNX(ctx, key, "1", d.ttl).Result()
	if err != nil {
		return false, err
	}

	return !ok, nil
}

// Forget unmarks key so a failed message can be processed again.
func (d *Dedupe) Forget(ctx context.Context, key string) error {
	return d.rdb.Del(ctx, key).Err()
}
